// Package image implements the image CAPTCHA challenge: a short code drawn
// into a PNG.
package image

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/TecharoHQ/codegate/internal"
	"github.com/TecharoHQ/codegate/lib/challenge"
	"github.com/google/uuid"
)

// Alphabet leaves out glyphs that are easy to confuse (0/O, 1/I/L).
const Alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

func init() {
	challenge.Register(challenge.TypeImage, challenge.FactoryFunc(Build))
}

// Factory renders a code into image bytes.
type Factory interface {
	Render(code string, width, height int) (data []byte, contentType string, err error)
}

// Build assembles the image processor with the default renderer.
func Build(in challenge.BuildInput) (challenge.Impl, error) {
	return challenge.NewProcessor(in, &Generator{Factory: PNGFactory{}}, Deliverer{}, nil), nil
}

// Generator issues image challenges.
type Generator struct {
	Factory Factory
}

func (g *Generator) Generate(in *challenge.GenerateInput) (*challenge.Challenge, error) {
	width := Dimension(in.Request, "width", in.Config.Width)
	height := Dimension(in.Request, "height", in.Config.Height)

	code, err := internal.RandomString(Alphabet, in.Config.Length)
	if err != nil {
		return nil, err
	}

	token, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("can't generate token: %w", err)
	}

	data, contentType, err := g.Factory.Render(code, width, height)
	if err != nil {
		return nil, fmt.Errorf("can't render %dx%d image: %w", width, height, err)
	}

	return &challenge.Challenge{
		Code:        code,
		ExpiresAt:   in.Now.Add(in.Config.TTL),
		Token:       token.String(),
		Reusable:    in.Config.Reusable,
		Payload:     data,
		ContentType: contentType,
	}, nil
}

// Dimension reads a pixel size from the query string. Malformed values give
// def; numbers are clamped to [1, 2*def].
func Dimension(r *http.Request, name string, def int) int {
	if def < 1 {
		def = 1
	}

	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}

	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}

	return min(max(val, 1), 2*def)
}

// Deliverer writes the rendered image.
type Deliverer struct{}

func (Deliverer) Deliver(w http.ResponseWriter, r *http.Request, c *challenge.Challenge) error {
	return challenge.WritePayload(w, c)
}
