package challenge

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/TecharoHQ/codegate/internal"
	"github.com/TecharoHQ/codegate/lib/session"
)

// AnswerFunc extracts the comparable answer from a request. rec is the cached
// record, for types whose answer is derived from it.
type AnswerFunc func(r *http.Request, cfg *TypeConfig, rec *Stored) string

// FormAnswer reads cfg.Param from the query string or a form body.
func FormAnswer(r *http.Request, cfg *TypeConfig, _ *Stored) string {
	return strings.TrimSpace(internal.FormValue(r, cfg.Param))
}

// Processor runs the issue and validate flow shared by every challenge type.
// Types plug in a Generator, a Deliverer and optionally an AnswerFunc.
type Processor struct {
	Config    TypeConfig
	Generator Generator
	Deliverer Deliverer
	Store     Store
	Answer    AnswerFunc
	Now       func() time.Time
	Logger    *slog.Logger

	registry *Registry
}

// NewProcessor fills a Processor from a BuildInput, using gen and del unless
// the input overrides them.
func NewProcessor(in BuildInput, gen Generator, del Deliverer, answer AnswerFunc) *Processor {
	if in.Generator != nil {
		gen = in.Generator
	}

	if in.Deliverer != nil {
		del = in.Deliverer
	}

	return &Processor{
		Config:    in.Config,
		Generator: gen,
		Deliverer: del,
		Store:     in.Store,
		Answer:    answer,
		Now:       in.Now,
		Logger:    in.Logger,
	}
}

func (p *Processor) Type() Type {
	return p.Config.Type
}

func (p *Processor) SetRegistry(reg *Registry) {
	p.registry = reg
}

func (p *Processor) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Processor) logger(r *http.Request) *slog.Logger {
	lg := p.Logger
	if lg == nil {
		lg = internal.GetRequestLogger(r)
	}
	return lg.With("challenge_type", string(p.Config.Type))
}

func (p *Processor) fail(r *http.Request, kind Kind, reason error) *Error {
	return p.failed(r, NewError(kind, p.Config.Type, reason))
}

func (p *Processor) failed(r *http.Request, err *Error) *Error {
	err.WithRequest(r)
	challengeFailures.WithLabelValues(string(err.Type), string(err.Kind)).Inc()
	return err
}

// Produce generates a challenge, checks the prerequisite type, caches the
// storable projection and delivers it. When delivery fails the cached record
// is removed again.
func (p *Processor) Produce(w http.ResponseWriter, r *http.Request) error {
	start := time.Now()
	defer func() {
		TimeTaken.WithLabelValues(string(p.Config.Type), "produce").Observe(float64(time.Since(start).Microseconds()) / 1000)
	}()

	sess, ok := session.FromContext(r.Context())
	if !ok {
		return p.fail(r, KindGenerationFailure, ErrNoSession)
	}

	c, err := p.Generator.Generate(&GenerateInput{
		Request: r,
		Type:    p.Config.Type,
		Config:  &p.Config,
		Now:     p.now(),
	})
	if err != nil {
		return p.wrapIssue(r, err)
	}

	// After Generate, so that bad parameters don't use up the prerequisite.
	if err := p.checkRequired(r); err != nil {
		return err
	}

	if err := p.Store.Save(r.Context(), sess, p.Config.Type, c.Storable(p.Config.Type)); err != nil {
		return p.fail(r, KindGenerationFailure, fmt.Errorf("can't save challenge: %w", err))
	}

	if err := p.deliver(w, r, c); err != nil {
		if rmErr := p.Store.Remove(r.Context(), sess, p.Config.Type); rmErr != nil {
			p.logger(r).Error("can't remove undelivered challenge", "err", rmErr)
		}
		return p.wrapIssue(r, err)
	}

	challengesIssued.WithLabelValues(string(p.Config.Type)).Inc()
	p.logger(r).Debug("challenge issued", "session", internal.SessionRef(sess.ID()), "expires_at", c.ExpiresAt)

	return nil
}

func (p *Processor) deliver(w http.ResponseWriter, r *http.Request, c *Challenge) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrDeliveryPanic, rec)
		}
	}()

	return p.Deliverer.Deliver(w, r, c)
}

// wrapIssue keeps domain errors unchanged and turns everything else into a
// GenerationFailure.
func (p *Processor) wrapIssue(r *http.Request, err error) *Error {
	var cerr *Error
	if errors.As(err, &cerr) {
		if cerr.Type == "" {
			cerr.Type = p.Config.Type
		}
		return p.failed(r, cerr)
	}

	return p.fail(r, KindGenerationFailure, err)
}

func (p *Processor) checkRequired(r *http.Request) error {
	if p.Config.Requires == "" {
		return nil
	}

	impl, ok := p.registry.Get(p.Config.Requires)
	if !ok {
		return p.fail(r, KindIllegalChallengeType, fmt.Errorf("%w: required type %s", ErrIllegalChallengeType, p.Config.Requires))
	}

	return impl.Validate(r)
}

// Validate checks the submitted answer against the cached record:
//
//  1. no record (or a store failure) is NotFoundInCache
//  2. an empty answer is NotEmpty and burns a non-reusable record
//  3. an expired record is removed and reported as Expired
//  4. a wrong answer is Mismatch and burns a non-reusable record
//  5. a correct answer consumes a non-reusable record
//
// Fetch and remove are not atomic. Two concurrent validations for the same
// session and type may both read the record; at most one of them can see it
// after the other has removed it, and the loser gets NotFoundInCache or the
// outcome of its own comparison.
func (p *Processor) Validate(r *http.Request) error {
	start := time.Now()
	defer func() {
		TimeTaken.WithLabelValues(string(p.Config.Type), "validate").Observe(float64(time.Since(start).Microseconds()) / 1000)
	}()

	sess, ok := session.FromContext(r.Context())
	if !ok {
		return p.fail(r, KindNotFoundInCache, ErrNoSession)
	}

	rec, err := p.Store.Fetch(r.Context(), sess, p.Config.Type)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			p.logger(r).Error("can't fetch challenge", "err", err)
		}
		return p.fail(r, KindNotFoundInCache, err)
	}

	answer := p.answer(r, rec)

	if answer == "" {
		if !rec.Reusable {
			p.remove(r, sess)
		}
		return p.fail(r, KindNotEmpty, fmt.Errorf("%w: %s", ErrNotEmpty, p.Config.Param)).WithField(p.Config.Param)
	}

	if rec.Expired(p.now()) {
		p.remove(r, sess)
		return p.fail(r, KindExpired, fmt.Errorf("expired at %s", rec.ExpiresAt.Format(time.RFC3339)))
	}

	if subtle.ConstantTimeCompare([]byte(strings.ToLower(answer)), []byte(strings.ToLower(rec.Code))) != 1 {
		if !rec.Reusable {
			p.remove(r, sess)
		}
		return p.fail(r, KindMismatch, nil).WithField(p.Config.Param)
	}

	if !rec.Reusable {
		if err := p.Store.Remove(r.Context(), sess, p.Config.Type); err != nil {
			p.logger(r).Error("can't consume challenge", "err", err)
			return p.fail(r, KindNotFoundInCache, fmt.Errorf("can't consume challenge: %w", err))
		}
	}

	challengesValidated.WithLabelValues(string(p.Config.Type)).Inc()
	return nil
}

func (p *Processor) answer(r *http.Request, rec *Stored) string {
	if p.Answer == nil {
		return FormAnswer(r, &p.Config, rec)
	}
	return p.Answer(r, &p.Config, rec)
}

func (p *Processor) remove(r *http.Request, sess session.Session) {
	if err := p.Store.Remove(r.Context(), sess, p.Config.Type); err != nil {
		p.logger(r).Warn("can't remove challenge", "err", err)
	}
}
