// Package param parses command-line tokens into query conditions and session
// flags.
//
// Each parameter alias and flag name maps to a handler. Handlers validate the
// requesting principal and the raw value, then mutate the query or session.
// Handlers that need an identity lookup return a Pending function instead of
// blocking; the session runs every pending function concurrently and joins
// them before the query is used.
package param

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/roach88/chronicle/internal/identity"
	"github.com/roach88/chronicle/internal/queryir"
)

// Pending completes asynchronous work started by Process.
type Pending func(ctx context.Context) error

// Session is the part of a query session handlers may change.
type Session interface {
	Principal() identity.Principal
	Now() time.Time
	SetFlag(f queryir.Flags)
	SetSort(s queryir.Sort)
	SetLimit(n int)
	// MarkGlobal suppresses the default radius.
	MarkGlobal()
}

// ParameterHandler handles "alias:value" tokens.
type ParameterHandler interface {
	Aliases() []string
	AcceptsSource(p identity.Principal) bool
	AcceptsValue(raw string) bool
	Process(ctx context.Context, s Session, alias, value string, q *queryir.Query) (Pending, error)
}

// FlagHandler handles "-name" and "-name=value" tokens. value is empty when
// the token has no "=".
type FlagHandler interface {
	Names() []string
	AcceptsValue(raw string) bool
	Process(ctx context.Context, s Session, name, value string) (Pending, error)
}

// Registry maps aliases and flag names to handlers.
//
// A Registry is built once at startup and is read-only afterwards, so it is
// safe to share between sessions.
type Registry struct {
	params map[string]ParameterHandler
	flags  map[string]FlagHandler
	bare   ParameterHandler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		params: make(map[string]ParameterHandler),
		flags:  make(map[string]FlagHandler),
	}
}

// RegisterParameter adds h under every alias it declares.
func (r *Registry) RegisterParameter(h ParameterHandler) error {
	for _, a := range h.Aliases() {
		a = strings.ToLower(a)
		if _, dup := r.params[a]; dup {
			return fmt.Errorf("parameter alias %q already registered", a)
		}
		r.params[a] = h
	}
	return nil
}

// RegisterFlag adds h under every name it declares.
func (r *Registry) RegisterFlag(h FlagHandler) error {
	for _, n := range h.Names() {
		n = strings.ToLower(n)
		if _, dup := r.flags[n]; dup {
			return fmt.Errorf("flag %q already registered", n)
		}
		r.flags[n] = h
	}
	return nil
}

// SetBare sets the handler for tokens with no alias.
func (r *Registry) SetBare(h ParameterHandler) {
	r.bare = h
}

// Parameter returns the handler for alias.
func (r *Registry) Parameter(alias string) (ParameterHandler, bool) {
	h, ok := r.params[strings.ToLower(alias)]
	return h, ok
}

// Flag returns the handler for name.
func (r *Registry) Flag(name string) (FlagHandler, bool) {
	h, ok := r.flags[strings.ToLower(name)]
	return h, ok
}

// Bare returns the bare-token handler, or nil.
func (r *Registry) Bare() ParameterHandler {
	return r.bare
}

// Aliases lists registered parameter aliases, sorted.
func (r *Registry) Aliases() []string {
	out := make([]string, 0, len(r.params))
	for a := range r.params {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// FlagNames lists registered flag names, sorted.
func (r *Registry) FlagNames() []string {
	out := make([]string, 0, len(r.flags))
	for n := range r.flags {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Options configures the built-in handlers.
type Options struct {
	Identity  identity.Resolver
	MaxRadius int
	MaxLimit  int
}

// NewDefaultRegistry registers every built-in parameter and flag.
func NewDefaultRegistry(opts Options) (*Registry, error) {
	if opts.MaxRadius <= 0 {
		opts.MaxRadius = 128
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = 1000
	}

	r := NewRegistry()
	player := &ActorParameter{Identity: opts.Identity}
	params := []ParameterHandler{
		&ListParameter{Field: queryir.FieldEventName, Names: []string{"a", "action"}, Validate: knownEventName},
		player,
		&ListParameter{Field: queryir.FieldCause, Names: []string{"c", "cause"}},
		&ListParameter{Field: queryir.FieldTarget, Names: []string{"b", "block", "t", "target"}},
		&RadiusParameter{Max: opts.MaxRadius},
		&WorldParameter{},
		&TimeParameter{Names: []string{"since", "s"}, Match: queryir.GreaterEq},
		&TimeParameter{Names: []string{"before"}, Match: queryir.LessEq},
		&IDParameter{},
	}
	for _, h := range params {
		if err := r.RegisterParameter(h); err != nil {
			return nil, err
		}
	}
	r.SetBare(player)

	flags := []FlagHandler{
		&BoolFlag{Flag: queryir.NoGroup, Aliases: []string{"no-group", "nogroup"}},
		&BoolFlag{Flag: queryir.Extended, Aliases: []string{"extended"}},
		&BoolFlag{Flag: queryir.CleanArea, Aliases: []string{"clean-area"}},
		&BoolFlag{Flag: queryir.DrainLiquids, Aliases: []string{"drain-liquids", "drain"}},
		&BoolFlag{Flag: queryir.Overwrite, Aliases: []string{"overwrite"}},
		&OrderFlag{},
		&LimitFlag{Max: opts.MaxLimit},
	}
	for _, h := range flags {
		if err := r.RegisterFlag(h); err != nil {
			return nil, err
		}
	}
	return r, nil
}
