// Package challengetest has helpers for testing challenge processors and the
// code that drives them.
package challengetest

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/TecharoHQ/codegate/internal"
	"github.com/TecharoHQ/codegate/lib/challenge"
	"github.com/TecharoHQ/codegate/lib/session"
	"github.com/google/uuid"
)

// New returns a fresh challenge expiring a minute from now.
func New(t *testing.T) *challenge.Challenge {
	t.Helper()

	id := uuid.Must(uuid.NewV7())

	return &challenge.Challenge{
		Code:      strings.ToUpper(internal.SHA256sum(id.String())[:6]),
		Token:     id.String(),
		ExpiresAt: time.Now().Add(time.Minute),
	}
}

// Clock is a manually advanced clock.
type Clock struct {
	lock sync.Mutex
	now  time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.now = c.now.Add(d)
}

// Session returns an in-memory session with a random id.
func Session(t *testing.T) session.Session {
	t.Helper()
	return session.NewMemory(uuid.Must(uuid.NewV7()).String())
}

// Request builds a request carrying sess in its context. Non-GET requests
// send values as a url-encoded body, GET requests as the query string.
func Request(t *testing.T, method, target string, sess session.Session, values url.Values) *http.Request {
	t.Helper()

	var req *http.Request
	if method == http.MethodGet || values == nil {
		u, err := url.Parse(target)
		if err != nil {
			t.Fatal(err)
		}
		q := u.Query()
		for k, vs := range values {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
		req = httptest.NewRequestWithContext(t.Context(), method, u.String(), nil)
	} else {
		req = httptest.NewRequestWithContext(t.Context(), method, target, strings.NewReader(values.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	if sess != nil {
		req = req.WithContext(session.WithSession(req.Context(), sess))
	}

	return req
}

// StaticGenerator issues the same code every time with a fresh token.
// Payload and ContentType are attached to every challenge when set.
type StaticGenerator struct {
	Code        string
	Reusable    bool
	Payload     []byte
	ContentType string
}

func (g StaticGenerator) Generate(in *challenge.GenerateInput) (*challenge.Challenge, error) {
	return &challenge.Challenge{
		Code:        g.Code,
		Token:       uuid.Must(uuid.NewV7()).String(),
		ExpiresAt:   in.Now.Add(in.Config.TTL),
		Reusable:    g.Reusable || in.Config.Reusable,
		Payload:     g.Payload,
		ContentType: g.ContentType,
	}, nil
}

// Recorder is a Deliverer that remembers every challenge it delivered.
type Recorder struct {
	lock      sync.Mutex
	Delivered []*challenge.Challenge
	Err       error
}

func (rd *Recorder) Deliver(w http.ResponseWriter, r *http.Request, c *challenge.Challenge) error {
	rd.lock.Lock()
	defer rd.lock.Unlock()

	if rd.Err != nil {
		return rd.Err
	}

	rd.Delivered = append(rd.Delivered, c)
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// Last returns the most recently delivered challenge.
func (rd *Recorder) Last(t *testing.T) *challenge.Challenge {
	t.Helper()

	rd.lock.Lock()
	defer rd.lock.Unlock()

	if len(rd.Delivered) == 0 {
		t.Fatal("nothing was delivered")
	}

	return rd.Delivered[len(rd.Delivered)-1]
}
