// Package customize is the challenge type for host-defined challenges. Hosts
// pass their own Generator (and optionally Deliverer) through
// challenge.BuildInput; without one an alphanumeric code is issued and only
// acknowledged.
package customize

import (
	"fmt"
	"net/http"

	"github.com/TecharoHQ/codegate/internal"
	"github.com/TecharoHQ/codegate/lib/challenge"
	"github.com/google/uuid"
)

// Alphabet is used by the default generator.
const Alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

func init() {
	challenge.Register(challenge.TypeCustomize, challenge.FactoryFunc(Build))
}

func Build(in challenge.BuildInput) (challenge.Impl, error) {
	return challenge.NewProcessor(in, Generator{}, Deliverer{}, nil), nil
}

// Generator is the fallback generator.
type Generator struct{}

func (Generator) Generate(in *challenge.GenerateInput) (*challenge.Challenge, error) {
	code, err := internal.RandomString(Alphabet, in.Config.Length)
	if err != nil {
		return nil, err
	}

	token, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("can't generate token: %w", err)
	}

	return &challenge.Challenge{
		Code:      code,
		ExpiresAt: in.Now.Add(in.Config.TTL),
		Token:     token.String(),
		Reusable:  in.Config.Reusable,
	}, nil
}

// Deliverer writes the payload when the generator produced one and a JSON
// acknowledgement otherwise.
type Deliverer struct{}

func (Deliverer) Deliver(w http.ResponseWriter, r *http.Request, c *challenge.Challenge) error {
	if len(c.Payload) != 0 {
		return challenge.WritePayload(w, c)
	}

	details := map[string]any{}
	for k, v := range c.Metadata {
		details[k] = v
	}

	return challenge.WriteJSON(w, http.StatusOK, challenge.Ack{
		Type:      challenge.TypeCustomize,
		Token:     c.Token,
		ExpiresAt: c.ExpiresAt,
		Details:   details,
	})
}
