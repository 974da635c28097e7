package lib

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"net/http"
	"time"

	"github.com/TecharoHQ/codegate/lib/challenge"
	"github.com/TecharoHQ/codegate/lib/config"
	"github.com/TecharoHQ/codegate/lib/gate"
)

type Options struct {
	// Next is the protected application. Requests that pass the gate are
	// handed to it.
	Next   http.Handler
	Policy *config.Config

	BasePrefix      string
	StripBasePrefix bool

	CookieDomain        string
	CookieDynamicDomain bool
	CookieExpiration    time.Duration
	CookieName          string
	CookiePartitioned   bool
	CookieSecure        bool
	SessionIdleTimeout  time.Duration
	ED25519PrivateKey   ed25519.PrivateKey
	HS512Secret         []byte

	// FailureHandler renders failed issuance and validation. Defaults to a
	// localized JSON response.
	FailureHandler gate.FailureHandler

	// Overrides replace parts of individual challenge types, such as the
	// sender used for sms codes.
	Overrides map[challenge.Type]challenge.BuildInput

	// Now replaces the clock of every challenge type.
	Now func() time.Time
}

// LoadPoliciesOrDefault loads the policy at fname, or the built-in one when
// fname is empty.
func LoadPoliciesOrDefault(ctx context.Context, fname string) (*config.Config, error) {
	result, err := config.LoadFile(fname)
	if err != nil {
		return nil, fmt.Errorf("can't load policy: %w", err)
	}

	var missing []string
	for _, tc := range result.Types {
		if _, ok := challenge.GetFactory(tc.Type); !ok {
			missing = append(missing, string(tc.Type))
		}
	}

	if len(missing) != 0 {
		return nil, fmt.Errorf("%w: no implementation for %v", challenge.ErrIllegalChallengeType, missing)
	}

	return result, nil
}
