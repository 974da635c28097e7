package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/TecharoHQ/codegate/lib/challenge"
	"github.com/TecharoHQ/codegate/lib/session"
	"github.com/TecharoHQ/codegate/lib/store"
	"github.com/TecharoHQ/codegate/lib/store/memory"
)

func record(t challenge.Type, code string, expiresAt time.Time) *challenge.Stored {
	c := &challenge.Challenge{
		Code:      code,
		Token:     "token-" + code,
		ExpiresAt: expiresAt,
		Payload:   []byte("large payload"),
	}
	return c.Storable(t)
}

func TestStores(t *testing.T) {
	for _, tt := range []struct {
		name  string
		build func(t *testing.T) challenge.Store
	}{
		{
			name: "session",
			build: func(t *testing.T) challenge.Store {
				return NewSession(nil)
			},
		},
		{
			name: "remote",
			build: func(t *testing.T) challenge.Store {
				return NewRemote(memory.New(t.Context()), nil)
			},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			st := tt.build(t)
			sess := session.NewMemory("S1")
			other := session.NewMemory("S2")
			ctx := t.Context()
			exp := time.Now().Add(time.Minute)

			if _, err := st.Fetch(ctx, sess, challenge.TypeImage); !errors.Is(err, challenge.ErrNotFound) {
				t.Errorf("empty store should report ErrNotFound, got %v", err)
			}

			if err := st.Remove(ctx, sess, challenge.TypeImage); err != nil {
				t.Errorf("removing a missing record must succeed, got %v", err)
			}

			if err := st.Save(ctx, sess, challenge.TypeImage, record(challenge.TypeImage, "AAAA", exp)); err != nil {
				t.Fatal(err)
			}
			if err := st.Save(ctx, sess, challenge.TypeImage, record(challenge.TypeImage, "BBBB", exp)); err != nil {
				t.Fatal(err)
			}
			if err := st.Save(ctx, sess, challenge.TypeSMS, record(challenge.TypeSMS, "123456", exp)); err != nil {
				t.Fatal(err)
			}

			got, err := st.Fetch(ctx, sess, challenge.TypeImage)
			if err != nil {
				t.Fatal(err)
			}
			if got.Code != "BBBB" {
				t.Errorf("last save should win, got %q", got.Code)
			}

			if _, err := st.Fetch(ctx, other, challenge.TypeImage); !errors.Is(err, challenge.ErrNotFound) {
				t.Error("records leaked across sessions")
			}

			if err := st.Remove(ctx, sess, challenge.TypeImage); err != nil {
				t.Fatal(err)
			}

			if _, err := st.Fetch(ctx, sess, challenge.TypeImage); !errors.Is(err, challenge.ErrNotFound) {
				t.Error("record survived Remove")
			}

			if got, err := st.Fetch(ctx, sess, challenge.TypeSMS); err != nil || got.Code != "123456" {
				t.Errorf("removing one type touched another: %v", err)
			}
		})
	}
}

func TestSessionKeepsIdentity(t *testing.T) {
	st := NewSession(Prefixes{challenge.TypeImage: "captcha:"})
	sess := session.NewMemory("S1")
	rec := record(challenge.TypeImage, "AB12", time.Now().Add(time.Minute))

	if err := st.Save(t.Context(), sess, challenge.TypeImage, rec); err != nil {
		t.Fatal(err)
	}

	if _, ok := sess.Get("captcha:"); !ok {
		t.Error("record not stored under the configured prefix")
	}

	got, err := st.Fetch(t.Context(), sess, challenge.TypeImage)
	if err != nil {
		t.Fatal(err)
	}

	if got != rec {
		t.Error("session store should return the saved pointer")
	}
}

func TestSessionForeignAttribute(t *testing.T) {
	st := NewSession(nil)
	sess := session.NewMemory("S1")
	sess.Set("code:image:", "something else")

	if _, err := st.Fetch(t.Context(), sess, challenge.TypeImage); !errors.Is(err, challenge.ErrNotFound) {
		t.Errorf("foreign attribute should read as not found, got %v", err)
	}
}

func TestSessionSharedPrefix(t *testing.T) {
	st := NewSession(Prefixes{challenge.TypeImage: "code:", challenge.TypeSMS: "code:"})
	sess := session.NewMemory("S1")

	if err := st.Save(t.Context(), sess, challenge.TypeImage, record(challenge.TypeImage, "AB12", time.Now().Add(time.Minute))); err != nil {
		t.Fatal(err)
	}

	if rec, err := st.Fetch(t.Context(), sess, challenge.TypeSMS); !errors.Is(err, challenge.ErrNotFound) {
		t.Errorf("sms fetch returned another type's record: %+v, %v", rec, err)
	}

	if _, err := st.Fetch(t.Context(), sess, challenge.TypeImage); err != nil {
		t.Errorf("image record should still be there: %v", err)
	}
}

type recordingBackend struct {
	store.Interface
	key string
	ttl time.Duration
}

func (r *recordingBackend) Set(ctx context.Context, key string, value []byte, expiry time.Duration) error {
	r.key = key
	r.ttl = expiry
	return r.Interface.Set(ctx, key, value, expiry)
}

func TestRemoteKeyAndTTL(t *testing.T) {
	backend := &recordingBackend{Interface: memory.New(t.Context())}
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

	st := NewRemote(backend, nil)
	st.Now = func() time.Time { return now }
	sess := session.NewMemory("S1")

	if err := st.Save(t.Context(), sess, challenge.TypeSMS, record(challenge.TypeSMS, "482913", now.Add(120*time.Second))); err != nil {
		t.Fatal(err)
	}

	if backend.key != "code:sms:S1" {
		t.Errorf("wrong key %q", backend.key)
	}
	if backend.ttl != 120*time.Second {
		t.Errorf("ttl should be the remaining lifetime, got %s", backend.ttl)
	}

	if err := st.Save(t.Context(), sess, challenge.TypeSMS, record(challenge.TypeSMS, "482913", now.Add(-time.Second))); err != nil {
		t.Fatal(err)
	}
	if backend.ttl != MinRemoteTTL {
		t.Errorf("dead records should be kept for %s, got %s", MinRemoteTTL, backend.ttl)
	}

	raw, err := backend.Get(t.Context(), "code:sms:S1")
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["type"] != "sms" || decoded["version"] != float64(challenge.StoredVersion) {
		t.Errorf("record is not type tagged: %s", raw)
	}
	if _, ok := decoded["payload"]; ok {
		t.Errorf("payload reached the backend: %s", raw)
	}
}

func TestRemoteRejectsForeignRecords(t *testing.T) {
	backend := memory.New(t.Context())
	st := NewRemote(backend, nil)
	sess := session.NewMemory("S1")

	for _, tt := range []struct {
		name string
		data string
	}{
		{name: "garbage", data: `not json`},
		{name: "wrong type", data: `{"type":"image","version":1,"code":"x"}`},
		{name: "future version", data: `{"type":"sms","version":99,"code":"x"}`},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if err := backend.Set(t.Context(), "code:sms:S1", []byte(tt.data), time.Minute); err != nil {
				t.Fatal(err)
			}

			if _, err := st.Fetch(t.Context(), sess, challenge.TypeSMS); !errors.Is(err, challenge.ErrNotFound) {
				t.Errorf("wanted ErrNotFound, got %v", err)
			}
		})
	}
}

var errDown = errors.New("connection refused")

type downBackend struct{}

func (downBackend) Delete(context.Context, string) error { return errDown }

func (downBackend) Get(context.Context, string) ([]byte, error) { return nil, errDown }

func (downBackend) Set(context.Context, string, []byte, time.Duration) error { return errDown }

func TestRemoteInfrastructureErrors(t *testing.T) {
	st := NewRemote(downBackend{}, nil)
	sess := session.NewMemory("S1")

	_, err := st.Fetch(t.Context(), sess, challenge.TypeSMS)
	if errors.Is(err, challenge.ErrNotFound) || !errors.Is(err, errDown) {
		t.Errorf("infrastructure errors must not read as not found: %v", err)
	}

	if err := st.Remove(t.Context(), sess, challenge.TypeSMS); !errors.Is(err, errDown) {
		t.Errorf("remove should surface infrastructure errors: %v", err)
	}

	if err := st.Save(t.Context(), sess, challenge.TypeSMS, record(challenge.TypeSMS, "1", time.Now().Add(time.Minute))); !errors.Is(err, errDown) {
		t.Errorf("save should surface infrastructure errors: %v", err)
	}
}

func TestBuild(t *testing.T) {
	st, err := Build(t.Context(), "", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := st.(*Session); !ok {
		t.Errorf("empty kind should build the session store, got %T", st)
	}

	st, err = Build(t.Context(), "memory", json.RawMessage(`{}`), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := st.(*Remote); !ok {
		t.Errorf("memory should build a remote store, got %T", st)
	}

	if _, err := Build(t.Context(), "tape", nil, nil); !errors.Is(err, store.ErrBadConfig) {
		t.Errorf("unknown backend should be a config error, got %v", err)
	}
}

func TestPrefixesFor(t *testing.T) {
	cfg := challenge.DefaultTypeConfig(challenge.TypeImage)
	cfg.Prefix = "img:"

	p := PrefixesFor([]challenge.TypeConfig{cfg})
	if got, _ := p.prefix(challenge.TypeImage); got != "img:" {
		t.Errorf("configured prefix ignored: %q", got)
	}
	if got, _ := p.prefix(challenge.TypeSMS); got != "code:sms:" {
		t.Errorf("default prefix not used: %q", got)
	}
	if _, err := p.prefix("fax"); !errors.Is(err, ErrUnknownPrefix) {
		t.Errorf("unknown type should fail, got %v", err)
	}
}
