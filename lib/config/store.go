package config

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/TecharoHQ/codegate/lib/cache"
	"github.com/TecharoHQ/codegate/lib/store"
	_ "github.com/TecharoHQ/codegate/lib/store/all"
)

var (
	ErrUnknownStoreBackend = errors.New("config.Store: unknown backend")
	ErrSessionNoParameters = errors.New("config.Store: the session backend takes no parameters")
)

// Store picks where issued challenges live. The session backend keeps them in
// the server-side session; every other backend is a shared remote store.
type Store struct {
	Backend    string          `json:"backend"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

func (s *Store) backend() string {
	if s.Backend == "" {
		return cache.KindSession
	}
	return s.Backend
}

func (s *Store) Valid() error {
	if s.backend() == cache.KindSession {
		if len(s.Parameters) != 0 && string(s.Parameters) != "null" && string(s.Parameters) != "{}" {
			return ErrSessionNoParameters
		}
		return nil
	}

	if err := store.Valid(s.Backend, s.Parameters); err != nil {
		if errors.Is(err, store.ErrUnknownBackend) {
			return fmt.Errorf("%w: %w", ErrUnknownStoreBackend, err)
		}
		return err
	}
	return nil
}
