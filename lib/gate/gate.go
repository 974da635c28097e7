// Package gate is the HTTP middleware that demands a solved challenge before
// a request reaches the protected application.
package gate

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/TecharoHQ/codegate/internal"
	"github.com/TecharoHQ/codegate/lib/challenge"
	"github.com/TecharoHQ/codegate/lib/config"
)

var (
	ErrNoRegistry       = errors.New("gate: no challenge registry configured")
	ErrNoFailureHandler = errors.New("gate: no failure handler configured")
	ErrUnregisteredType = errors.New("gate: route names a challenge type without a processor")
	ErrConditionNotBool = errors.New("gate: condition must evaluate to a bool")
)

const (
	// StatusHeader is set to "PASS" on requests that solved their challenge.
	StatusHeader = "X-Codegate-Status"

	// ChallengeHeader names the challenge type a passing request solved.
	ChallengeHeader = "X-Codegate-Challenge"
)

// FailureHandler renders failed validations. The gate never writes a
// response body of its own.
type FailureHandler interface {
	OnFailure(w http.ResponseWriter, r *http.Request, err *challenge.Error)
}

type FailureHandlerFunc func(w http.ResponseWriter, r *http.Request, err *challenge.Error)

func (f FailureHandlerFunc) OnFailure(w http.ResponseWriter, r *http.Request, err *challenge.Error) {
	f(w, r, err)
}

type Options struct {
	Registry       *challenge.Registry
	Routes         []config.Route
	Conditions     map[challenge.Type]*config.ExpressionOrList
	BasePrefix     string
	FailureHandler FailureHandler
	Logger         *slog.Logger
}

type Gate struct {
	table      *Table
	registry   *challenge.Registry
	conditions map[challenge.Type]*CELChecker
	basePrefix string
	failure    FailureHandler
	logger     *slog.Logger
}

// New builds a Gate. Every route must name a registered type and every
// condition must compile.
func New(opts Options) (*Gate, error) {
	var errs []error

	if opts.Registry == nil {
		errs = append(errs, ErrNoRegistry)
	}

	if opts.FailureHandler == nil {
		errs = append(errs, ErrNoFailureHandler)
	}

	for _, r := range opts.Routes {
		if opts.Registry == nil {
			break
		}

		if _, ok := opts.Registry.Get(r.Type); !ok {
			errs = append(errs, fmt.Errorf("%w: %s (%s)", ErrUnregisteredType, r.Type, r))
		}
	}

	result := &Gate{
		table:      NewTable(opts.Routes),
		registry:   opts.Registry,
		conditions: map[challenge.Type]*CELChecker{},
		basePrefix: strings.TrimSuffix(opts.BasePrefix, "/"),
		failure:    opts.FailureHandler,
		logger:     opts.Logger,
	}

	for t, cond := range opts.Conditions {
		if cond == nil {
			continue
		}

		cc, err := NewCELChecker(cond)
		if err != nil {
			errs = append(errs, fmt.Errorf("condition for %s: %w", t, err))
			continue
		}

		result.conditions[t] = cc
	}

	if len(errs) != 0 {
		return nil, fmt.Errorf("can't build gate: %w", errors.Join(errs...))
	}

	return result, nil
}

func (g *Gate) log(r *http.Request) *slog.Logger {
	if g.logger != nil {
		return g.logger
	}
	return internal.GetRequestLogger(r)
}

// Path strips the base prefix from the request path.
func (g *Gate) Path(r *http.Request) string {
	p := r.URL.Path
	if g.basePrefix != "" {
		trimmed := strings.TrimPrefix(p, g.basePrefix)
		if trimmed == "" || trimmed[0] == '/' {
			p = trimmed
		}
	}
	return config.CleanPath(p)
}

// Resolve returns the challenge type r must solve, if any. A condition that
// fails to evaluate counts as true.
func (g *Gate) Resolve(r *http.Request) (challenge.Type, bool) {
	p := g.Path(r)

	route, id, ok := g.table.Resolve(r.Method, p)
	if !ok {
		return "", false
	}

	cc, ok := g.conditions[route.Type]
	if !ok {
		return route.Type, true
	}

	pass, err := cc.Check(r, route.Type, p)
	if err != nil {
		gateConditionErrors.WithLabelValues(string(route.Type)).Inc()
		g.log(r).Error("can't evaluate gate condition, gating request", "type", route.Type, "route", id, "err", err)
		return route.Type, true
	}

	return route.Type, pass
}

func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Del(StatusHeader)
		r.Header.Del(ChallengeHeader)

		t, ok := g.Resolve(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		if err := g.validate(r, t); err != nil {
			cerr := challenge.AsError(err, t, challenge.KindUnexpected).WithRequest(r)
			gateDecisions.WithLabelValues(string(t), string(cerr.Kind)).Inc()

			lg := g.log(r)
			switch cerr.Kind {
			case challenge.KindIllegalChallengeType, challenge.KindUnexpected:
				lg.Error("gate can't validate request", "err", cerr)
			default:
				lg.Debug("challenge not solved", "err", cerr)
			}

			g.failure.OnFailure(w, r, cerr)
			return
		}

		gateDecisions.WithLabelValues(string(t), "pass").Inc()
		r.Header.Set(StatusHeader, "PASS")
		r.Header.Set(ChallengeHeader, string(t))
		next.ServeHTTP(w, r)
	})
}

func (g *Gate) validate(r *http.Request, t challenge.Type) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = challenge.NewError(challenge.KindUnexpected, t, fmt.Errorf("panic during validation: %v", rec))
		}
	}()

	impl, ok := g.registry.Get(t)
	if !ok {
		return challenge.NewError(challenge.KindIllegalChallengeType, t, fmt.Errorf("%w: %s", ErrUnregisteredType, t))
	}

	return impl.Validate(r)
}
