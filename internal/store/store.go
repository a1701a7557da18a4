package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/chronicle/internal/queryir"
	"github.com/roach88/chronicle/internal/record"
	"github.com/roach88/chronicle/internal/result"
	"github.com/roach88/chronicle/internal/session"
)

// WriteResult reports a persisted batch.
type WriteResult struct {
	Written int
}

// DeleteResult reports a purge.
type DeleteResult struct {
	Deleted int64
}

// Adapter is a storage backend.
//
// Implementations must be safe for concurrent use once Connect returns: the
// recorder writes from its own goroutine while lookups run on callers'.
type Adapter interface {
	// Name identifies the backend, e.g. "sqlite".
	Name() string

	// Connect opens connections and applies the schema.
	Connect(ctx context.Context) error

	// TestConnection checks the backend is reachable.
	TestConnection(ctx context.Context) error

	// Write persists a batch. The batch is written as a whole or not at all
	// where the backend supports transactions.
	Write(ctx context.Context, batch []record.Event) (WriteResult, error)

	// Query runs the session's query and returns one page of results.
	// translate, when non-nil, post-processes the page before it is
	// returned. Every error wraps ErrQueryFailed.
	Query(ctx context.Context, s *session.Session, translate result.Translator) ([]result.Result, error)

	// Delete removes every record matching q. A query without conditions is
	// refused.
	Delete(ctx context.Context, q *queryir.Query) (DeleteResult, error)

	// Compiler returns the compiler used for lookups.
	Compiler() queryir.Compiler

	Close() error
}

// Backend names accepted by configuration.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

// Backends lists every backend name.
func Backends() []string {
	return []string{BackendSQLite, BackendPostgres, BackendMongo}
}

// CheckBackend validates a backend name.
func CheckBackend(name string) error {
	for _, b := range Backends() {
		if b == name {
			return nil
		}
	}
	return fmt.Errorf("unknown storage backend %q (want %s)", name, strings.Join(Backends(), ", "))
}

// Translate runs translate over page if it is set.
func Translate(ctx context.Context, translate result.Translator, page []result.Result) error {
	if translate == nil || len(page) == 0 {
		return nil
	}
	return translate.Translate(ctx, page)
}
