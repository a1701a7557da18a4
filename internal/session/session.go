// Package session turns a command line into a ready query.
//
// Build dispatches each token to its registered handler, then waits for every
// asynchronous resolution the handlers started before it hands the query
// back. Nothing reaches storage until Build returns without error.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/chronicle/internal/identity"
	"github.com/roach88/chronicle/internal/param"
	"github.com/roach88/chronicle/internal/queryir"
)

// Session binds a query to the principal that requested it and to the flags
// the command line set.
type Session struct {
	mu        sync.Mutex
	principal identity.Principal
	now       time.Time
	query     *queryir.Query
	flags     queryir.Flags
	global    bool
}

var _ param.Session = (*Session)(nil)

// New returns a session with an empty query.
func New(p identity.Principal, now time.Time) *Session {
	return &Session{principal: p, now: now, query: queryir.NewQuery()}
}

func (s *Session) Principal() identity.Principal { return s.principal }
func (s *Session) Now() time.Time                { return s.now }
func (s *Session) Query() *queryir.Query         { return s.query }

func (s *Session) Flags() queryir.Flags {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags
}

func (s *Session) SetFlag(f queryir.Flags) {
	s.mu.Lock()
	s.flags = s.flags.With(f)
	s.mu.Unlock()
	if f.Has(queryir.NoGroup) {
		s.query.SetAggregate(false)
	}
}

func (s *Session) SetSort(sort queryir.Sort) { s.query.SetSort(sort) }
func (s *Session) SetLimit(n int)            { s.query.SetLimit(n) }

func (s *Session) MarkGlobal() {
	s.mu.Lock()
	s.global = true
	s.mu.Unlock()
}

// Global reports whether the command line lifted the default radius.
func (s *Session) Global() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.global
}

// Radius returns the location condition's half-width, or zero when the query
// has none or matches one exact position.
func (s *Session) Radius() int {
	c, ok := s.query.Condition(queryir.PathLocation)
	if !ok {
		return 0
	}
	g, ok := c.(queryir.Group)
	if !ok {
		return 0
	}
	for _, child := range g.Children {
		fc, ok := child.(queryir.FieldCondition)
		if !ok || fc.Field != queryir.FieldX || fc.Match != queryir.Between {
			continue
		}
		lo, lok := fc.Range.Lower.(int)
		hi, hok := fc.Range.Upper.(int)
		if lok && hok {
			return (hi-lo)/2 - 1
		}
	}
	return 0
}

// Defaults are applied after the command line when it leaves a dimension
// open.
type Defaults struct {
	// Radius bounds located principals when no r: token is given.
	Radius int
	// Since bounds the timestamp when no since:/before: token is given.
	Since time.Duration
	// Limit is the page size when -per-page is absent.
	Limit int
}

// Builder parses command lines against a registry.
type Builder struct {
	registry *param.Registry
	defaults Defaults
	clock    func() time.Time
}

// Option configures a Builder.
type Option func(*Builder)

// WithDefaults sets the defaults applied to open dimensions.
func WithDefaults(d Defaults) Option {
	return func(b *Builder) { b.defaults = d }
}

// WithClock overrides time.Now.
func WithClock(clock func() time.Time) Option {
	return func(b *Builder) { b.clock = clock }
}

// NewBuilder returns a Builder dispatching to registry.
func NewBuilder(registry *param.Registry, opts ...Option) *Builder {
	b := &Builder{registry: registry, clock: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type pendingOp struct {
	token string
	run   param.Pending
}

// Build parses tokens into a session for principal.
//
// Every token is dispatched before any pending resolution runs; the
// resolutions then run concurrently and Build returns after all of them
// finish. The first failure is returned as a *param.ParameterError naming its
// token. Zero tokens produce an empty query without defaults.
func (b *Builder) Build(ctx context.Context, principal identity.Principal, tokens []string) (*Session, error) {
	s := New(principal, b.clock())
	if len(tokens) == 0 {
		return s, nil
	}

	var pending []pendingOp
	for _, raw := range tokens {
		run, err := b.dispatch(ctx, s, raw)
		if err != nil {
			return nil, err
		}
		if run != nil {
			pending = append(pending, pendingOp{token: raw, run: run})
		}
	}

	if len(pending) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		for _, op := range pending {
			op := op
			g.Go(func() error {
				if err := op.run(gctx); err != nil {
					return param.NewResolutionError(op.token, err)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	b.applyDefaults(s)
	slog.Debug("session built",
		"principal", principal.Name,
		"tokens", len(tokens),
		"pending", len(pending),
		"conditions", s.query.Len(),
		"flags", s.Flags().String())
	return s, nil
}

func (b *Builder) dispatch(ctx context.Context, s *Session, raw string) (param.Pending, error) {
	tok := param.ParseToken(raw)
	switch tok.Kind {
	case param.KindFlag:
		h, ok := b.registry.Flag(tok.Name)
		if !ok {
			return nil, param.NewUnknownAliasError(raw, tok.Name)
		}
		if !h.AcceptsValue(tok.Value) {
			return nil, param.NewRejectedValueError(raw, tok.Value, nil)
		}
		run, err := h.Process(ctx, s, tok.Name, tok.Value)
		return run, wrapProcessError(raw, tok.Value, err)

	case param.KindParameter:
		h, ok := b.registry.Parameter(tok.Name)
		if !ok {
			return nil, param.NewUnknownAliasError(raw, tok.Name)
		}
		return b.process(ctx, s, h, tok)

	default:
		h := b.registry.Bare()
		if h == nil {
			return nil, param.NewUnknownAliasError(raw, "")
		}
		return b.process(ctx, s, h, tok)
	}
}

func (b *Builder) process(ctx context.Context, s *Session, h param.ParameterHandler, tok param.Token) (param.Pending, error) {
	if !h.AcceptsSource(s.Principal()) {
		return nil, param.NewRejectedSourceError(tok.Raw, s.Principal().Name)
	}
	if !h.AcceptsValue(tok.Value) {
		return nil, param.NewRejectedValueError(tok.Raw, tok.Value, nil)
	}
	run, err := h.Process(ctx, s, tok.Name, tok.Value, s.query)
	return run, wrapProcessError(tok.Raw, tok.Value, err)
}

func wrapProcessError(raw, value string, err error) error {
	if err == nil {
		return nil
	}
	if param.IsParameterError(err) {
		return err
	}
	return param.NewRejectedValueError(raw, value, err)
}

func (b *Builder) applyDefaults(s *Session) {
	q := s.query
	if _, ok := q.Condition(queryir.PathLocation); !ok && !s.Global() && b.defaults.Radius > 0 && s.principal.Located() {
		q.AddCondition(queryir.FromLocationRadius(s.principal.Location, b.defaults.Radius))
	}
	if _, ok := q.Condition(queryir.FieldTimestamp); !ok && b.defaults.Since > 0 {
		q.AddCondition(queryir.Gte(queryir.FieldTimestamp, s.now.Add(-b.defaults.Since)))
	}
	if q.Limit() == 0 && b.defaults.Limit > 0 {
		q.SetLimit(b.defaults.Limit)
	}
}
