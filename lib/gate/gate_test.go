package gate_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/TecharoHQ/codegate/lib/cache"
	"github.com/TecharoHQ/codegate/lib/challenge"
	"github.com/TecharoHQ/codegate/lib/challenge/challengetest"
	"github.com/TecharoHQ/codegate/lib/config"
	"github.com/TecharoHQ/codegate/lib/gate"
)

type fakeImpl struct {
	typ      challenge.Type
	validate func(r *http.Request) error
	calls    atomic.Int64
}

func (f *fakeImpl) Type() challenge.Type {
	return f.typ
}

func (f *fakeImpl) Produce(w http.ResponseWriter, r *http.Request) error {
	return nil
}

func (f *fakeImpl) Validate(r *http.Request) error {
	f.calls.Add(1)
	if f.validate == nil {
		return nil
	}
	return f.validate(r)
}

type failures struct {
	errs []*challenge.Error
}

func (f *failures) OnFailure(w http.ResponseWriter, r *http.Request, err *challenge.Error) {
	f.errs = append(f.errs, err)
	w.WriteHeader(err.StatusCode)
}

func (f *failures) last(t *testing.T) *challenge.Error {
	t.Helper()
	if len(f.errs) == 0 {
		t.Fatal("failure handler was not called")
	}
	return f.errs[len(f.errs)-1]
}

func routes(t *testing.T, typ challenge.Type, specs ...string) []config.Route {
	t.Helper()

	var result []config.Route
	for _, spec := range specs {
		r, err := config.ParseRoute(typ, spec)
		if err != nil {
			t.Fatal(err)
		}
		result = append(result, r)
	}
	return result
}

type upstream struct {
	hits   int
	header http.Header
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.hits++
	u.header = r.Header.Clone()
	w.WriteHeader(http.StatusOK)
}

func TestNew(t *testing.T) {
	reg := challenge.NewRegistry(&fakeImpl{typ: challenge.TypeImage})
	fh := &failures{}

	for _, tt := range []struct {
		name string
		opts gate.Options
		err  error
		fail bool
	}{
		{
			name: "ok",
			opts: gate.Options{Registry: reg, FailureHandler: fh, Routes: routes(t, challenge.TypeImage, "/login")},
		},
		{
			name: "no registry",
			opts: gate.Options{FailureHandler: fh},
			err:  gate.ErrNoRegistry,
		},
		{
			name: "no failure handler",
			opts: gate.Options{Registry: reg},
			err:  gate.ErrNoFailureHandler,
		},
		{
			name: "unregistered type",
			opts: gate.Options{Registry: reg, FailureHandler: fh, Routes: routes(t, challenge.TypeSMS, "/sms")},
			err:  gate.ErrUnregisteredType,
		},
		{
			name: "condition doesn't compile",
			opts: gate.Options{
				Registry:       reg,
				FailureHandler: fh,
				Conditions: map[challenge.Type]*config.ExpressionOrList{
					challenge.TypeImage: {Expression: `method ==`},
				},
			},
			fail: true,
		},
		{
			name: "condition isn't a bool",
			opts: gate.Options{
				Registry:       reg,
				FailureHandler: fh,
				Conditions: map[challenge.Type]*config.ExpressionOrList{
					challenge.TypeImage: {Expression: `path`},
				},
			},
			err: gate.ErrConditionNotBool,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gate.New(tt.opts)
			if tt.fail {
				if err == nil {
					t.Fatal("wanted an error")
				}
				return
			}

			if !errors.Is(err, tt.err) {
				t.Errorf("wanted %v, got: %v", tt.err, err)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	image := &fakeImpl{typ: challenge.TypeImage}
	sms := &fakeImpl{typ: challenge.TypeSMS, validate: func(r *http.Request) error {
		return challenge.NewError(challenge.KindMismatch, challenge.TypeSMS, nil)
	}}
	slider := &fakeImpl{typ: challenge.TypeSlider, validate: func(r *http.Request) error {
		panic("boom")
	}}
	track := &fakeImpl{typ: challenge.TypeTrack, validate: func(r *http.Request) error {
		return errors.New("store exploded")
	}}

	var all []config.Route
	all = append(all, routes(t, challenge.TypeSMS, "/a/*")...)
	all = append(all, routes(t, challenge.TypeImage, "/a/b")...)
	all = append(all, routes(t, challenge.TypeSlider, "/panic")...)
	all = append(all, routes(t, challenge.TypeTrack, "/broken")...)

	fh := &failures{}
	g, err := gate.New(gate.Options{
		Registry:       challenge.NewRegistry(image, sms, slider, track),
		Routes:         all,
		FailureHandler: fh,
		BasePrefix:     "/myapp/",
	})
	if err != nil {
		t.Fatal(err)
	}

	up := &upstream{}
	h := g.Middleware(up)

	serve := func(method, target string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, nil)
		req.Header.Set(gate.StatusHeader, "PASS")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	t.Run("pass", func(t *testing.T) {
		hits := up.hits
		rec := serve(http.MethodPost, "/myapp/a/b")
		if rec.Code != http.StatusOK || up.hits != hits+1 {
			t.Fatalf("request didn't reach upstream: %d", rec.Code)
		}
		if up.header.Get(gate.StatusHeader) != "PASS" || up.header.Get(gate.ChallengeHeader) != "image" {
			t.Errorf("upstream headers not set: %v", up.header)
		}
	})

	t.Run("spoofed status is dropped", func(t *testing.T) {
		serve(http.MethodPost, "/myapp/elsewhere")
		if got := up.header.Get(gate.StatusHeader); got != "" {
			t.Errorf("client supplied %s reached upstream: %q", gate.StatusHeader, got)
		}
	})

	t.Run("GET skips validation", func(t *testing.T) {
		calls := sms.calls.Load()
		if rec := serve(http.MethodGet, "/myapp/a/c"); rec.Code != http.StatusOK {
			t.Errorf("wanted 200, got %d", rec.Code)
		}
		if sms.calls.Load() != calls {
			t.Error("GET request was validated")
		}
	})

	t.Run("failure goes to the handler", func(t *testing.T) {
		hits := up.hits
		rec := serve(http.MethodPost, "/myapp/a/c")
		if rec.Code != http.StatusForbidden {
			t.Errorf("wanted 403, got %d", rec.Code)
		}
		if up.hits != hits {
			t.Error("failed request reached upstream")
		}
		cerr := fh.last(t)
		if !errors.Is(cerr, challenge.ErrMismatch) || cerr.Type != challenge.TypeSMS {
			t.Errorf("wrong failure: %v", cerr)
		}
		if cerr.RemoteIP == "" {
			t.Error("failure has no audit context")
		}
	})

	t.Run("panic is recovered", func(t *testing.T) {
		rec := serve(http.MethodPost, "/myapp/panic")
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("wanted 500, got %d", rec.Code)
		}
		if !errors.Is(fh.last(t), challenge.ErrUnexpected) {
			t.Errorf("wanted unexpected failure, got %v", fh.last(t))
		}
	})

	t.Run("plain errors are unexpected", func(t *testing.T) {
		serve(http.MethodPost, "/myapp/broken")
		if !errors.Is(fh.last(t), challenge.ErrUnexpected) {
			t.Errorf("wanted unexpected failure, got %v", fh.last(t))
		}
	})

	t.Run("base prefix must be a whole segment", func(t *testing.T) {
		calls := image.calls.Load()
		serve(http.MethodPost, "/myappx/a/b")
		if image.calls.Load() != calls {
			t.Error("/myappx was treated as the base prefix")
		}
	})
}

func TestConditions(t *testing.T) {
	image := &fakeImpl{typ: challenge.TypeImage, validate: func(r *http.Request) error {
		return challenge.NewError(challenge.KindNotEmpty, challenge.TypeImage, nil)
	}}

	g, err := gate.New(gate.Options{
		Registry:       challenge.NewRegistry(image),
		Routes:         routes(t, challenge.TypeImage, "/login"),
		FailureHandler: &failures{},
		Conditions: map[challenge.Type]*config.ExpressionOrList{
			challenge.TypeImage: {All: []string{
				`!("X-Trusted" in headers)`,
				`!("n" in query) || int(query["n"]) > 5`,
				`challengeType == "image" && path == "/login"`,
			}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	for _, tt := range []struct {
		name   string
		target string
		header string
		gated  bool
	}{
		{name: "plain", target: "/login", gated: true},
		{name: "trusted header skips", target: "/login", header: "X-Trusted", gated: false},
		{name: "small n skips", target: "/login?n=2", gated: false},
		{name: "large n gates", target: "/login?n=9", gated: true},
		{name: "evaluation error fails closed", target: "/login?n=abc", gated: true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.target, nil)
			if tt.header != "" {
				req.Header.Set(tt.header, "1")
			}

			typ, gated := g.Resolve(req)
			if gated != tt.gated {
				t.Errorf("wanted gated=%v, got %v", tt.gated, gated)
			}
			if typ != challenge.TypeImage {
				t.Errorf("wanted image, got %q", typ)
			}
		})
	}
}

func TestWithProcessor(t *testing.T) {
	cfg := challenge.DefaultTypeConfig(challenge.TypeSMS)
	rd := &challengetest.Recorder{}
	proc := challenge.NewProcessor(challenge.BuildInput{
		Config: cfg,
		Store:  cache.NewSession(nil),
	}, challengetest.StaticGenerator{Code: "482913"}, rd, nil)

	fh := &failures{}
	g, err := gate.New(gate.Options{
		Registry:       challenge.NewRegistry(proc),
		Routes:         routes(t, challenge.TypeSMS, "/account/phone/**:POST"),
		FailureHandler: fh,
	})
	if err != nil {
		t.Fatal(err)
	}

	up := &upstream{}
	h := g.Middleware(up)
	sess := challengetest.Session(t)

	issue := challengetest.Request(t, http.MethodGet, "/code/sms", sess, url.Values{"mobile": {"+15550001234"}})
	if err := proc.Produce(httptest.NewRecorder(), issue); err != nil {
		t.Fatal(err)
	}

	submit := func(code string) int {
		req := challengetest.Request(t, http.MethodPost, "/account/phone/verify", sess, url.Values{cfg.Param: {code}})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := submit("482913"); code != http.StatusOK || up.hits != 1 {
		t.Fatalf("correct code rejected: %d", code)
	}

	if code := submit("482913"); code != http.StatusForbidden {
		t.Errorf("replayed code accepted: %d", code)
	}

	if !errors.Is(fh.last(t), challenge.ErrNotFoundInCache) {
		t.Errorf("wanted not found in cache, got %v", fh.last(t))
	}
}
