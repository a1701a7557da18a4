package result

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader/v7"

	"github.com/roach88/chronicle/internal/identity"
)

// Translator post-processes a page of results before it is returned.
type Translator interface {
	Translate(ctx context.Context, page []Result) error
}

// TranslatorFunc adapts a function to Translator.
type TranslatorFunc func(ctx context.Context, page []Result) error

func (f TranslatorFunc) Translate(ctx context.Context, page []Result) error {
	return f(ctx, page)
}

// Identity substitutes principal names for ids, one batched lookup per page.
type Identity struct {
	resolver identity.Resolver
	wait     time.Duration
}

// NewIdentity returns a Translator backed by resolver.
func NewIdentity(resolver identity.Resolver) *Identity {
	return &Identity{resolver: resolver, wait: time.Millisecond}
}

// Translate implements Translator. Ids the resolver does not know keep their
// id form.
func (t *Identity) Translate(ctx context.Context, page []Result) error {
	var keys []uuid.UUID
	seen := make(map[uuid.UUID]bool)
	for _, r := range page {
		if r.HasPrincipal() && !seen[r.ActorID] {
			seen[r.ActorID] = true
			keys = append(keys, r.ActorID)
		}
	}
	if len(keys) == 0 {
		return nil
	}

	// A fresh loader per page: its cache must not outlive the page.
	loader := dataloader.NewBatchedLoader(
		t.batch,
		dataloader.WithWait[uuid.UUID, string](t.wait),
	)
	names, errs := loader.LoadMany(ctx, keys)()
	for _, err := range errs {
		if err != nil {
			return fmt.Errorf("resolve actor names: %w", err)
		}
	}

	byID := make(map[uuid.UUID]string, len(keys))
	for i, id := range keys {
		if i < len(names) && names[i] != "" {
			byID[id] = names[i]
		}
	}
	for i := range page {
		if name, ok := byID[page[i].ActorID]; ok && page[i].HasPrincipal() {
			page[i].Actor = name
		}
	}
	slog.Debug("actor names resolved", "ids", len(keys), "named", len(byID))
	return nil
}

func (t *Identity) batch(ctx context.Context, keys []uuid.UUID) []*dataloader.Result[string] {
	names, err := t.resolver.ResolveIDsToNames(ctx, keys)
	out := make([]*dataloader.Result[string], len(keys))
	for i, k := range keys {
		if err != nil {
			out[i] = &dataloader.Result[string]{Error: err}
			continue
		}
		out[i] = &dataloader.Result[string]{Data: names[k]}
	}
	return out
}
