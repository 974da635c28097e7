package challenge

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/TecharoHQ/codegate/lib/session"
)

// ErrNotFound is returned by Store.Fetch when no record exists for the
// session and type.
var ErrNotFound = errors.New("challenge: record not found")

// GenerateInput is everything a Generator may look at.
type GenerateInput struct {
	Request *http.Request
	Type    Type
	Config  *TypeConfig
	Now     time.Time
}

// Generator creates a fresh Challenge on every call.
type Generator interface {
	Generate(in *GenerateInput) (*Challenge, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(in *GenerateInput) (*Challenge, error)

func (f GeneratorFunc) Generate(in *GenerateInput) (*Challenge, error) {
	return f(in)
}

// Deliverer shows an issued challenge to the caller.
type Deliverer interface {
	Deliver(w http.ResponseWriter, r *http.Request, c *Challenge) error
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(w http.ResponseWriter, r *http.Request, c *Challenge) error

func (f DelivererFunc) Deliver(w http.ResponseWriter, r *http.Request, c *Challenge) error {
	return f(w, r, c)
}

// Store caches at most one Stored record per session and type.
type Store interface {
	// Save replaces any existing record for the session and type.
	Save(ctx context.Context, sess session.Session, t Type, rec *Stored) error

	// Fetch returns ErrNotFound when nothing is stored. Other errors are
	// infrastructure failures.
	Fetch(ctx context.Context, sess session.Session, t Type) (*Stored, error)

	// Remove succeeds when nothing is stored.
	Remove(ctx context.Context, sess session.Session, t Type) error
}

// Impl is a registered challenge processor.
type Impl interface {
	Type() Type

	// Produce issues a challenge and writes its delivery to w.
	Produce(w http.ResponseWriter, r *http.Request) error

	// Validate checks the answer carried by r. Errors are *Error values.
	Validate(r *http.Request) error
}

// RegistryAware implementations get the finished Registry injected during
// Registry.Build.
type RegistryAware interface {
	SetRegistry(reg *Registry)
}

// BuildInput is what a Factory gets to assemble an Impl.
type BuildInput struct {
	Config TypeConfig
	Store  Store
	Logger *slog.Logger

	// Generator and Deliverer override the type's defaults when set.
	Generator Generator
	Deliverer Deliverer

	// Now overrides the processor clock.
	Now func() time.Time
}

// Factory builds the Impl of one challenge type.
type Factory interface {
	Build(in BuildInput) (Impl, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(in BuildInput) (Impl, error)

func (f FactoryFunc) Build(in BuildInput) (Impl, error) {
	return f(in)
}
