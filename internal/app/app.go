// Package app wires configuration, storage, the recorder, the query pipeline
// and the actionable engine into one object the command surface drives.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/chronicle/internal/actionable"
	"github.com/roach88/chronicle/internal/config"
	"github.com/roach88/chronicle/internal/identity"
	"github.com/roach88/chronicle/internal/param"
	"github.com/roach88/chronicle/internal/record"
	"github.com/roach88/chronicle/internal/recorder"
	"github.com/roach88/chronicle/internal/result"
	"github.com/roach88/chronicle/internal/session"
	"github.com/roach88/chronicle/internal/store"
	"github.com/roach88/chronicle/internal/world"
	"github.com/roach88/chronicle/internal/world/memworld"
)

// DefaultWorlds are the worlds of the in-memory world used when no host
// world is supplied.
var DefaultWorlds = []string{"overworld", "nether", "the_end"}

// ErrNoParameters is returned by commands that refuse to run unfiltered.
var ErrNoParameters = errors.New("at least one parameter is required")

// Options configures New. Only Config is required.
type Options struct {
	Config *config.Config
	// Store is used as is when set. Otherwise the configured backend is
	// opened, and closed again by Close.
	Store store.Adapter
	// World is the host world. Nil means an in-memory world.
	World    world.World
	Identity identity.Resolver
	Clock    func() time.Time
	IDs      record.IDGenerator
}

// App holds every long-lived component. It has no package-level state.
type App struct {
	cfg       *config.Config
	store     store.Adapter
	ownsStore bool
	resolver  identity.Resolver
	world     world.World
	exec      *world.Executor
	registry  *param.Registry
	lookups   *session.Builder
	actions   *session.Builder
	translate result.Translator
	recorder  *recorder.Recorder
	engine    *actionable.Engine
	clock     func() time.Time
}

// New builds an App. The executor and recorder are started; Close stops
// them.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	resolver := opts.Identity
	if resolver == nil {
		dir, err := identity.LoadDirectory(cfg.Identities)
		if err != nil {
			return nil, fmt.Errorf("app: identities: %w", err)
		}
		resolver = dir
	}

	registry, err := param.NewDefaultRegistry(param.Options{
		Identity:  resolver,
		MaxRadius: cfg.Query.MaxRadius,
		MaxLimit:  cfg.Query.MaxLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("app: registry: %w", err)
	}

	a := &App{
		cfg:       cfg,
		store:     opts.Store,
		resolver:  resolver,
		world:     opts.World,
		registry:  registry,
		translate: result.NewIdentity(resolver),
		clock:     opts.Clock,
	}
	a.lookups = session.NewBuilder(registry, session.WithClock(opts.Clock), session.WithDefaults(session.Defaults{
		Radius: cfg.Query.DefaultRadius,
		Since:  cfg.Query.DefaultSince,
		Limit:  cfg.Query.DefaultLimit,
	}))
	// Rollback, restore and purge act on every match, so no default page size.
	a.actions = session.NewBuilder(registry, session.WithClock(opts.Clock), session.WithDefaults(session.Defaults{
		Radius: cfg.Query.DefaultRadius,
		Since:  cfg.Query.DefaultSince,
	}))

	if a.store == nil {
		s, err := OpenStore(ctx, cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		a.store = s
		a.ownsStore = true
	}
	if a.world == nil {
		a.world = memworld.New(DefaultWorlds...)
	}

	a.exec = world.NewExecutor(64)
	a.exec.Start()
	a.engine = actionable.New(a.world, a.exec, actionable.Options{
		Blacklist: cfg.Actionable.Blacklist,
		Liquids:   cfg.Actionable.Liquids,
		Hazards:   cfg.Actionable.Hazards,
	})
	a.recorder = recorder.New(a.store, recorder.Options{
		FlushInterval: cfg.Recorder.FlushInterval,
		IDs:           opts.IDs,
		Clock:         opts.Clock,
	})
	a.recorder.Start(ctx)

	slog.Debug("app started", "backend", a.store.Name(), "flush_interval", cfg.Recorder.FlushInterval)
	return a, nil
}

// Close drains the recorder, stops the executor and closes an owned store.
func (a *App) Close() error {
	a.recorder.Stop()
	a.exec.Stop()
	if a.ownsStore {
		return a.store.Close()
	}
	return nil
}

func (a *App) Config() *config.Config       { return a.cfg }
func (a *App) Store() store.Adapter         { return a.store }
func (a *App) Recorder() *recorder.Recorder { return a.recorder }
func (a *App) Engine() *actionable.Engine   { return a.engine }
func (a *App) Registry() *param.Registry    { return a.registry }
func (a *App) World() world.World           { return a.world }
func (a *App) Identity() identity.Resolver  { return a.resolver }
func (a *App) Executor() *world.Executor    { return a.exec }
func (a *App) Now() time.Time               { return a.clock() }

// Principal resolves a command issuer. An empty name is the console; at is
// an optional "world:x,y,z" position.
func (a *App) Principal(ctx context.Context, name, at string) (identity.Principal, error) {
	p := identity.Console()
	if name != "" && name != p.Name {
		id, err := a.resolver.ResolveNameToID(ctx, name)
		if err != nil {
			return identity.Principal{}, fmt.Errorf("principal %q: %w", name, err)
		}
		p = identity.Principal{ID: id, Name: name}
	}
	if at != "" {
		loc, err := record.ParseLocation(at)
		if err != nil {
			return identity.Principal{}, err
		}
		p.Location = loc
	}
	return p, nil
}
