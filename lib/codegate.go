package lib

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/TecharoHQ/codegate"
	"github.com/TecharoHQ/codegate/internal"
	"github.com/TecharoHQ/codegate/lib/cache"
	"github.com/TecharoHQ/codegate/lib/challenge"
	"github.com/TecharoHQ/codegate/lib/gate"
	"github.com/TecharoHQ/codegate/lib/session"

	// challenge implementations
	_ "github.com/TecharoHQ/codegate/lib/challenge/all"
)

var (
	requestsProxied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codegate_proxied_requests_total",
		Help: "Number of requests proxied through codegate to upstream targets",
	}, []string{"host"})

	ErrNoPolicy = errors.New("lib: no policy configured")
)

type Server struct {
	next     http.Handler
	mux      *http.ServeMux
	handler  http.Handler
	sessions *session.Manager
	registry *challenge.Registry
	gate     *gate.Gate
	store    challenge.Store
	failure  gate.FailureHandler
	opts     Options
}

// New wires the session manager, challenge store, challenge types and gate
// from opts. ctx bounds background work of the store backend.
func New(ctx context.Context, opts Options) (*Server, error) {
	if opts.Policy == nil {
		return nil, ErrNoPolicy
	}

	codegate.BasePrefix = opts.BasePrefix

	sessions, err := session.NewManager(session.Options{
		CookieName:          opts.CookieName,
		CookieDomain:        opts.CookieDomain,
		CookieDynamicDomain: opts.CookieDynamicDomain,
		CookiePartitioned:   opts.CookiePartitioned,
		CookieSecure:        opts.CookieSecure,
		CookiePath:          cookiePath(opts.BasePrefix),
		CookieExpiration:    opts.CookieExpiration,
		IdleTimeout:         opts.SessionIdleTimeout,
		ED25519PrivateKey:   opts.ED25519PrivateKey,
		HS512Secret:         opts.HS512Secret,
	})
	if err != nil {
		return nil, err
	}

	policy := opts.Policy

	store, err := cache.Build(ctx, policy.Store.Backend, policy.Store.Parameters, cache.PrefixesFor(policy.Types))
	if err != nil {
		return nil, fmt.Errorf("can't build challenge store: %w", err)
	}

	overrides := map[challenge.Type]challenge.BuildInput{}
	for _, tc := range policy.Types {
		in := opts.Overrides[tc.Type]
		if in.Now == nil {
			in.Now = opts.Now
		}
		overrides[tc.Type] = in
	}

	registry, err := challenge.BuildAll(store, policy.Types, overrides)
	if err != nil {
		return nil, err
	}

	failure := opts.FailureHandler
	if failure == nil {
		failure = JSONFailureHandler{}
	}

	g, err := gate.New(gate.Options{
		Registry:       registry,
		Routes:         policy.Routes,
		Conditions:     policy.Conditions,
		BasePrefix:     opts.BasePrefix,
		FailureHandler: failure,
	})
	if err != nil {
		return nil, err
	}

	result := &Server{
		next:     opts.Next,
		sessions: sessions,
		registry: registry,
		gate:     g,
		store:    store,
		failure:  failure,
		opts:     opts,
	}

	mux := http.NewServeMux()

	basePrefix := strings.TrimSuffix(opts.BasePrefix, "/")
	mux.Handle("GET "+basePrefix+codegate.CodePath+"{type}", internal.NoStoreCache(internal.GzipMiddleware(1, http.HandlerFunc(result.IssueChallenge))))
	mux.Handle("/", g.Middleware(http.HandlerFunc(result.ServeHTTPNext)))

	result.mux = mux
	result.handler = sessions.Middleware(mux)

	go sessions.CleanupThread(ctx, codegate.SessionDefaultExpirationTime)

	slog.Debug("codegate ready", "store", policy.Store.Backend, "types", registry.Types(), "routes", len(policy.Routes))

	return result, nil
}

func cookiePath(basePrefix string) string {
	if basePrefix == "" {
		return "/"
	}
	return strings.TrimSuffix(basePrefix, "/") + "/"
}

// Registry returns the challenge types this server issues.
func (s *Server) Registry() *challenge.Registry {
	return s.registry
}

// IssueChallenge serves GET {basePrefix}/code/{type}.
func (s *Server) IssueChallenge(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("type")

	t, err := challenge.ParseType(name)
	if err != nil {
		s.failure.OnFailure(w, r, challenge.NewError(challenge.KindParameterError, "", err).WithField("type").WithRequest(r))
		return
	}

	impl, ok := s.registry.Get(t)
	if !ok {
		cerr := challenge.NewError(challenge.KindIllegalChallengeType, t, fmt.Errorf("%w: %s", gate.ErrUnregisteredType, t)).WithRequest(r)
		internal.GetRequestLogger(r).Error("no processor for challenge type", "err", cerr)
		s.failure.OnFailure(w, r, cerr)
		return
	}

	if err := impl.Produce(w, r); err != nil {
		s.failure.OnFailure(w, r, challenge.AsError(err, t, challenge.KindGenerationFailure).WithRequest(r))
	}
}
