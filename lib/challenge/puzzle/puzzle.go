// Package puzzle implements the interactive challenges: slider, track and
// selection. Rendering the puzzle is up to the client; the server issues the
// parameters, draws the track order, and checks the answer.
package puzzle

import (
	"fmt"
	"net/http"

	"github.com/TecharoHQ/codegate/lib/challenge"
	"github.com/google/uuid"
)

func init() {
	challenge.Register(challenge.TypeSlider, challenge.FactoryFunc(BuildSlider))
	challenge.Register(challenge.TypeTrack, challenge.FactoryFunc(BuildTrack))
	challenge.Register(challenge.TypeSelection, challenge.FactoryFunc(BuildSelection))
}

// invalidAnswer never equals a generated code. Answers that can't be parsed
// map to it so that they fail as a mismatch instead of as empty.
const invalidAnswer = "!"

func newChallenge(in *challenge.GenerateInput, code func(token string) string, details map[string]string) (*challenge.Challenge, error) {
	token, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("can't generate token: %w", err)
	}

	if details == nil {
		details = map[string]string{}
	}

	return &challenge.Challenge{
		Code:      code(token.String()),
		ExpiresAt: in.Now.Add(in.Config.TTL),
		Token:     token.String(),
		Reusable:  in.Config.Reusable,
		Metadata:  details,
	}, nil
}

// Deliverer acknowledges a puzzle with its token and client-side parameters.
type Deliverer struct {
	Type challenge.Type
}

func (d Deliverer) Deliver(w http.ResponseWriter, r *http.Request, c *challenge.Challenge) error {
	details := make(map[string]any, len(c.Metadata))
	for k, v := range c.Metadata {
		details[k] = v
	}

	return challenge.WriteJSON(w, http.StatusOK, challenge.Ack{
		Type:      d.Type,
		Token:     c.Token,
		ExpiresAt: c.ExpiresAt,
		Details:   details,
	})
}
