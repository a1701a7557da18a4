package app

import (
	"context"
	"fmt"

	"github.com/roach88/chronicle/internal/actionable"
	"github.com/roach88/chronicle/internal/identity"
	"github.com/roach88/chronicle/internal/queryir"
	"github.com/roach88/chronicle/internal/result"
	"github.com/roach88/chronicle/internal/session"
	"github.com/roach88/chronicle/internal/store"
)

// Lookup runs a query and returns one page with principal names resolved.
func (a *App) Lookup(ctx context.Context, p identity.Principal, tokens []string) ([]result.Result, error) {
	s, err := a.lookups.Build(ctx, p, tokens)
	if err != nil {
		return nil, err
	}
	return a.store.Query(ctx, s, a.translate)
}

// Explain returns the backend-native form of the query tokens build.
func (a *App) Explain(ctx context.Context, p identity.Principal, tokens []string) (string, error) {
	s, err := a.lookups.Build(ctx, p, tokens)
	if err != nil {
		return "", err
	}
	compiled, err := a.store.Compiler().Compile(s.Query(), s.Flags())
	if err != nil {
		return "", err
	}
	return compiled.String(), nil
}

// Rollback writes the before state of every matching record.
func (a *App) Rollback(ctx context.Context, p identity.Principal, tokens []string) (*actionable.Summary, error) {
	return a.apply(ctx, actionable.Rollback, p, tokens)
}

// Restore writes the after state of every matching record.
func (a *App) Restore(ctx context.Context, p identity.Principal, tokens []string) (*actionable.Summary, error) {
	return a.apply(ctx, actionable.Restore, p, tokens)
}

func (a *App) apply(ctx context.Context, mode actionable.Mode, p identity.Principal, tokens []string) (*actionable.Summary, error) {
	s, err := a.buildActionable(ctx, p, tokens)
	if err != nil {
		return nil, err
	}
	// Actionable batches need every stored record, not groups.
	s.SetFlag(queryir.NoGroup)

	records, err := a.store.Query(ctx, s, nil)
	if err != nil {
		return nil, err
	}
	return a.engine.Apply(ctx, actionable.Request{
		Mode:      mode,
		Principal: p,
		Flags:     s.Flags(),
		Radius:    s.Radius(),
		Records:   records,
	})
}

// Undo reverts p's last rollback or restore. Tokens may carry flags such as
// -overwrite; parameters are refused.
func (a *App) Undo(ctx context.Context, p identity.Principal, tokens []string) (*actionable.Summary, error) {
	s, err := session.NewBuilder(a.registry).Build(ctx, p, tokens)
	if err != nil {
		return nil, err
	}
	if s.Query().Len() > 0 {
		return nil, fmt.Errorf("undo takes flags only")
	}
	return a.engine.Undo(ctx, p, s.Flags())
}

// Purge deletes every matching record.
func (a *App) Purge(ctx context.Context, p identity.Principal, tokens []string) (store.DeleteResult, error) {
	s, err := a.buildActionable(ctx, p, tokens)
	if err != nil {
		return store.DeleteResult{}, err
	}
	return a.store.Delete(ctx, s.Query())
}

func (a *App) buildActionable(ctx context.Context, p identity.Principal, tokens []string) (*session.Session, error) {
	if len(tokens) == 0 {
		return nil, ErrNoParameters
	}
	return a.actions.Build(ctx, p, tokens)
}

// Flush writes everything the recorder holds.
func (a *App) Flush(ctx context.Context) (int, error) {
	return a.recorder.Flush(ctx)
}
