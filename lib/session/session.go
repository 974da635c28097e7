// Package session keeps server-side sessions addressed by a signed cookie.
//
// The cookie only carries a JWT with the session id. Attributes live in
// process memory. A valid cookie whose session is unknown to this process
// (restart, another replica) gets a fresh empty session under the same id, so
// stores keyed by session id keep working across instances that share the
// signing key.
package session

import (
	"context"
	"sync"
)

// Session is the server-side state of one caller.
type Session interface {
	// ID is stable for the life of the session and safe to use as a store key.
	ID() string

	Get(key string) (any, bool)
	Set(key string, value any)
	Delete(key string)
}

type memorySession struct {
	id    string
	lock  sync.RWMutex
	attrs map[string]any
}

// NewMemory returns an attribute map session with the given id.
func NewMemory(id string) Session {
	return &memorySession{
		id:    id,
		attrs: map[string]any{},
	}
}

func (s *memorySession) ID() string { return s.id }

func (s *memorySession) Get(key string) (any, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	val, ok := s.attrs[key]
	return val, ok
}

func (s *memorySession) Set(key string, value any) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.attrs[key] = value
}

func (s *memorySession) Delete(key string) {
	s.lock.Lock()
	defer s.lock.Unlock()

	delete(s.attrs, key)
}

type ctxKey struct{}

// WithSession returns a copy of ctx carrying sess.
func WithSession(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, sess)
}

// FromContext returns the session attached by Manager.Middleware.
func FromContext(ctx context.Context) (Session, bool) {
	sess, ok := ctx.Value(ctxKey{}).(Session)
	return sess, ok
}
