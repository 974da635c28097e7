package puzzle

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/TecharoHQ/codegate/internal"
	"github.com/TecharoHQ/codegate/lib/challenge"
	"github.com/TecharoHQ/codegate/lib/challenge/image"
)

// Checkpoints are the ids a track can pass through.
const Checkpoints = "ABCDEFGHJKLM"

// BuildTrack assembles the track processor.
func BuildTrack(in challenge.BuildInput) (challenge.Impl, error) {
	return challenge.NewProcessor(in, TrackGenerator{}, Deliverer{Type: challenge.TypeTrack}, TrackAnswer), nil
}

// TrackGenerator asks the client to pass distinct checkpoints in order. The
// order is only handed out as a rendered image, never as text, so a client
// has to read it like an image code. Factory defaults to image.PNGFactory.
type TrackGenerator struct {
	Factory image.Factory
}

func (g TrackGenerator) Generate(in *challenge.GenerateInput) (*challenge.Challenge, error) {
	n := min(max(in.Config.Length, 2), len(Checkpoints))

	perm, err := internal.RandomPerm(len(Checkpoints), n)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(perm))
	for i, p := range perm {
		ids[i] = string(Checkpoints[p])
	}
	code := strings.Join(ids, "-")

	factory := g.Factory
	if factory == nil {
		factory = image.PNGFactory{}
	}

	data, contentType, err := factory.Render(code, 14*len(code), 30)
	if err != nil {
		return nil, fmt.Errorf("can't render track order: %w", err)
	}

	return newChallenge(in, func(string) string { return code }, map[string]string{
		"checkpoints": Checkpoints,
		"order":       "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data),
	})
}

func splitAnswer(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '-' || r == ' ' || r == ';'
	})
}

// TrackAnswer normalizes separators and case.
func TrackAnswer(r *http.Request, cfg *challenge.TypeConfig, rec *challenge.Stored) string {
	raw := challenge.FormAnswer(r, cfg, rec)
	if raw == "" {
		return ""
	}

	ids := splitAnswer(strings.ToUpper(raw))
	if len(ids) == 0 {
		return invalidAnswer
	}

	for _, id := range ids {
		if len(id) != 1 || !strings.Contains(Checkpoints, id) {
			return invalidAnswer
		}
	}

	return strings.Join(ids, "-")
}
