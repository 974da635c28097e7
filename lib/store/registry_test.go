package store_test

import (
	"encoding/json"
	"errors"
	"slices"
	"testing"

	"github.com/TecharoHQ/codegate/lib/store"
	_ "github.com/TecharoHQ/codegate/lib/store/all"
)

func TestMethods(t *testing.T) {
	got := store.Methods()
	for _, want := range []string{"bbolt", "memory", "valkey"} {
		if !slices.Contains(got, want) {
			t.Errorf("backend %q not registered, have %v", want, got)
		}
	}
	if !slices.IsSorted(got) {
		t.Errorf("Methods should be sorted, got %v", got)
	}
}

func TestValid(t *testing.T) {
	for _, tt := range []struct {
		name    string
		backend string
		config  string
		err     error
	}{
		{name: "memory default", backend: "memory", config: `{}`},
		{name: "memory no parameters", backend: "memory"},
		{name: "memory bad interval", backend: "memory", config: `{"cleanupInterval": "soon"}`, err: store.ErrBadConfig},
		{name: "bbolt no path", backend: "bbolt", config: `{}`, err: store.ErrBadConfig},
		{name: "unknown", backend: "tape", config: `{}`, err: store.ErrUnknownBackend},
		{name: "unknown is a config error", backend: "tape", err: store.ErrBadConfig},
	} {
		t.Run(tt.name, func(t *testing.T) {
			var cfg json.RawMessage
			if tt.config != "" {
				cfg = json.RawMessage(tt.config)
			}

			err := store.Valid(tt.backend, cfg)
			if !errors.Is(err, tt.err) {
				t.Fatalf("wanted %v, got %v", tt.err, err)
			}
		})
	}
}

func TestBuildUnknown(t *testing.T) {
	if _, err := store.Build(t.Context(), "tape", nil); !errors.Is(err, store.ErrUnknownBackend) {
		t.Fatalf("wanted ErrUnknownBackend, got %v", err)
	}
}

func TestRegisterPanicsWithoutName(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Register with an empty name should panic")
		}
	}()
	store.Register("", nil)
}
