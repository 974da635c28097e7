package puzzle

import (
	"math"
	"net/http"
	"strconv"

	"github.com/TecharoHQ/codegate/internal"
	"github.com/TecharoHQ/codegate/lib/challenge"
)

// PieceSize is the edge length of the slider piece in pixels.
const PieceSize = 40

// BuildSlider assembles the slider processor.
func BuildSlider(in challenge.BuildInput) (challenge.Impl, error) {
	return challenge.NewProcessor(in, SliderGenerator{}, Deliverer{Type: challenge.TypeSlider}, SliderAnswer), nil
}

func tolerance(cfg *challenge.TypeConfig) int {
	return max(cfg.Tolerance, 1)
}

// SliderCode is the expected answer for a piece placed at offset x. The
// client never learns it; it sends the offset and the server recomputes the
// hash from the cached token.
func SliderCode(token string, x, tol int) string {
	bucket := (x + tol/2) / tol
	return internal.SHA256sum(token + strconv.Itoa(bucket))
}

// SliderGenerator places the gap at a random multiple of the tolerance.
type SliderGenerator struct{}

func (SliderGenerator) Generate(in *challenge.GenerateInput) (*challenge.Challenge, error) {
	tol := tolerance(in.Config)
	width := max(in.Config.Width, 2*PieceSize+tol)
	height := max(in.Config.Height, PieceSize+1)

	steps := (width - 2*PieceSize) / tol
	step, err := internal.RandomInt(steps + 1)
	if err != nil {
		return nil, err
	}
	x := PieceSize + step*tol

	y, err := internal.RandomInt(height - PieceSize + 1)
	if err != nil {
		return nil, err
	}

	return newChallenge(in, func(token string) string {
		return SliderCode(token, x, tol)
	}, map[string]string{
		"width":  strconv.Itoa(width),
		"height": strconv.Itoa(height),
		"piece":  strconv.Itoa(PieceSize),
		"y":      strconv.Itoa(y),
	})
}

// SliderAnswer turns the submitted offset into a comparable hash.
func SliderAnswer(r *http.Request, cfg *challenge.TypeConfig, rec *challenge.Stored) string {
	raw := challenge.FormAnswer(r, cfg, rec)
	if raw == "" {
		return ""
	}

	offset, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(offset) || math.IsInf(offset, 0) || offset < 0 {
		return invalidAnswer
	}

	return SliderCode(rec.Token, int(math.Round(offset)), tolerance(cfg))
}
