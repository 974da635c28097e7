// Package cache holds the two challenge.Store variants: Session keeps records
// inside the caller's server-side session, Remote keeps them in a shared
// key/value backend keyed by session id.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/TecharoHQ/codegate/lib/challenge"
	"github.com/TecharoHQ/codegate/lib/session"
	"github.com/TecharoHQ/codegate/lib/store"
)

// Names of the two variants in configuration.
const (
	KindSession = "session"
	KindRemote  = "remote"
)

// MinRemoteTTL is the smallest TTL handed to a remote backend.
const MinRemoteTTL = time.Second

var ErrUnknownPrefix = errors.New("cache: no key prefix configured for challenge type")

// Prefixes maps a challenge type to its key prefix.
type Prefixes map[challenge.Type]string

// PrefixesFor collects the key prefixes of configs.
func PrefixesFor(configs []challenge.TypeConfig) Prefixes {
	result := Prefixes{}
	for _, cfg := range configs {
		result[cfg.Type] = cfg.Prefix
	}
	return result
}

func (p Prefixes) prefix(t challenge.Type) (string, error) {
	if prefix, ok := p[t]; ok && prefix != "" {
		return prefix, nil
	}

	if t.Valid() {
		return challenge.DefaultTypeConfig(t).Prefix, nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownPrefix, t)
}

// Session is the session-affine store. Records are kept as session
// attributes named by the type prefix, so a fetch returns the very pointer
// that was saved.
type Session struct {
	Prefixes Prefixes
}

// NewSession returns a session-affine store.
func NewSession(prefixes Prefixes) *Session {
	return &Session{Prefixes: prefixes}
}

func (s *Session) Save(ctx context.Context, sess session.Session, t challenge.Type, rec *challenge.Stored) error {
	key, err := s.Prefixes.prefix(t)
	if err != nil {
		return err
	}

	sess.Set(key, rec)
	return nil
}

func (s *Session) Fetch(ctx context.Context, sess session.Session, t challenge.Type) (*challenge.Stored, error) {
	key, err := s.Prefixes.prefix(t)
	if err != nil {
		return nil, err
	}

	val, ok := sess.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", challenge.ErrNotFound, key)
	}

	rec, ok := val.(*challenge.Stored)
	if !ok || rec == nil {
		sess.Delete(key)
		return nil, fmt.Errorf("%w: %s holds %T", challenge.ErrNotFound, key, val)
	}

	if rec.Type != t {
		return nil, fmt.Errorf("%w: %s holds a %s record", challenge.ErrNotFound, key, rec.Type)
	}

	return rec, nil
}

func (s *Session) Remove(ctx context.Context, sess session.Session, t challenge.Type) error {
	key, err := s.Prefixes.prefix(t)
	if err != nil {
		return err
	}

	sess.Delete(key)
	return nil
}

// Remote is the shared-remote store. Records are JSON encoded under
// {prefix}{sessionID} with a backend TTL equal to their remaining lifetime.
type Remote struct {
	Prefixes Prefixes
	Store    store.Interface
	Now      func() time.Time
}

// NewRemote returns a shared-remote store over backend.
func NewRemote(backend store.Interface, prefixes Prefixes) *Remote {
	return &Remote{
		Prefixes: prefixes,
		Store:    backend,
	}
}

func (r *Remote) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Remote) codec(t challenge.Type) (*store.JSON[challenge.Stored], error) {
	prefix, err := r.Prefixes.prefix(t)
	if err != nil {
		return nil, err
	}

	return &store.JSON[challenge.Stored]{
		Underlying: r.Store,
		Prefix:     prefix,
	}, nil
}

// Save stores rec until its expiry. Records already at or past their expiry
// are kept for MinRemoteTTL so that the processor still reports them as
// expired instead of missing.
func (r *Remote) Save(ctx context.Context, sess session.Session, t challenge.Type, rec *challenge.Stored) error {
	codec, err := r.codec(t)
	if err != nil {
		return err
	}

	ttl := rec.ExpiresAt.Sub(r.now())
	if ttl < MinRemoteTTL {
		ttl = MinRemoteTTL
	}

	if err := codec.Set(ctx, sess.ID(), *rec, ttl); err != nil {
		return fmt.Errorf("cache: can't save %s challenge: %w", t, err)
	}

	return nil
}

func (r *Remote) Fetch(ctx context.Context, sess session.Session, t challenge.Type) (*challenge.Stored, error) {
	codec, err := r.codec(t)
	if err != nil {
		return nil, err
	}

	rec, err := codec.Get(ctx, sess.ID())
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("%w: %w", challenge.ErrNotFound, err)
	case errors.Is(err, store.ErrCantDecode):
		return nil, fmt.Errorf("%w: %w", challenge.ErrNotFound, err)
	case err != nil:
		return nil, fmt.Errorf("cache: can't fetch %s challenge: %w", t, err)
	}

	if rec.Version != challenge.StoredVersion || rec.Type != t {
		return nil, fmt.Errorf("%w: record is %s v%d", challenge.ErrNotFound, rec.Type, rec.Version)
	}

	return &rec, nil
}

func (r *Remote) Remove(ctx context.Context, sess session.Session, t challenge.Type) error {
	codec, err := r.codec(t)
	if err != nil {
		return err
	}

	if err := codec.Delete(ctx, sess.ID()); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("cache: can't remove %s challenge: %w", t, err)
	}

	return nil
}

// Build returns the store named by kind. KindSession needs no backend; any
// other name is looked up in the store backend registry and built from
// config.
func Build(ctx context.Context, kind string, config json.RawMessage, prefixes Prefixes) (challenge.Store, error) {
	if kind == "" || kind == KindSession {
		return NewSession(prefixes), nil
	}

	backend, err := store.Build(ctx, kind, config)
	if err != nil {
		return nil, err
	}

	return NewRemote(backend, prefixes), nil
}
