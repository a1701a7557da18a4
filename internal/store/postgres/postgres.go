// Package postgres stores events in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/roach88/chronicle/internal/querysql"
	"github.com/roach88/chronicle/internal/queryir"
	"github.com/roach88/chronicle/internal/record"
	"github.com/roach88/chronicle/internal/result"
	"github.com/roach88/chronicle/internal/session"
	"github.com/roach88/chronicle/internal/store"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Pool is the subset of *pgxpool.Pool the adapter uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// Options configures an Adapter.
type Options struct {
	DSN      string
	MaxConns int32
	Compress bool
}

// Adapter implements store.Adapter on PostgreSQL.
type Adapter struct {
	opts     Options
	pool     Pool
	compiler *querysql.Compiler
	codec    *record.Codec
}

var _ store.Adapter = (*Adapter)(nil)

// New returns an unconnected adapter.
func New(opts Options) (*Adapter, error) {
	if opts.DSN == "" {
		return nil, fmt.Errorf("postgres: empty DSN")
	}
	codec, err := record.NewCodec(opts.Compress)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	return &Adapter{opts: opts, compiler: querysql.NewCompiler(querysql.Postgres), codec: codec}, nil
}

// NewWithPool wraps an existing pool whose schema is already migrated.
func NewWithPool(pool Pool, compress bool) (*Adapter, error) {
	codec, err := record.NewCodec(compress)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	return &Adapter{
		opts:     Options{Compress: compress},
		pool:     pool,
		compiler: querysql.NewCompiler(querysql.Postgres),
		codec:    codec,
	}, nil
}

func (a *Adapter) Name() string { return store.BackendPostgres }

func (a *Adapter) Compiler() queryir.Compiler { return a.compiler }

// Connect creates the pool, pings it and runs migrations.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.pool != nil {
		return nil
	}
	cfg, err := pgxpool.ParseConfig(a.opts.DSN)
	if err != nil {
		return fmt.Errorf("postgres: parse DSN: %w", err)
	}
	if a.opts.MaxConns > 0 {
		cfg.MaxConns = a.opts.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return mapError("connect", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return err
	}

	a.pool = pool
	slog.Debug("postgres connected", "max_conns", cfg.MaxConns)
	return nil
}

// Migrate applies the embedded migrations through a database/sql view of
// the pool.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("postgres: migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return fmt.Errorf("postgres: goose provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("postgres: goose up: %w", err)
	}
	for _, r := range results {
		slog.Debug("migration applied", "backend", store.BackendPostgres, "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}

// TestConnection pings the pool.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if a.pool == nil {
		return store.ErrNotConnected
	}
	return mapError("ping", a.pool.Ping(ctx))
}

// Close closes the pool.
func (a *Adapter) Close() error {
	a.codec.Close()
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	return nil
}

// Write inserts a batch in one transaction.
func (a *Adapter) Write(ctx context.Context, batch []record.Event) (store.WriteResult, error) {
	if a.pool == nil {
		return store.WriteResult{}, store.ErrNotConnected
	}
	if len(batch) == 0 {
		return store.WriteResult{}, nil
	}
	stmts, err := a.compiler.CompileInsert(batch, a.codec.Encode)
	if err != nil {
		return store.WriteResult{}, fmt.Errorf("postgres: %w", err)
	}

	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return store.WriteResult{}, mapError("begin", err)
	}
	defer tx.Rollback(ctx)

	for _, st := range stmts {
		if _, err := tx.Exec(ctx, st.SQL, st.Args...); err != nil {
			return store.WriteResult{}, mapError("write", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return store.WriteResult{}, mapError("commit", err)
	}
	return store.WriteResult{Written: len(batch)}, nil
}

// Query runs a lookup.
func (a *Adapter) Query(ctx context.Context, s *session.Session, translate result.Translator) ([]result.Result, error) {
	if a.pool == nil {
		return nil, store.QueryError(store.ErrNotConnected)
	}
	grouped := s.Query().Grouped(s.Flags())
	st, err := a.compiler.CompileSelect(s.Query(), s.Flags())
	if err != nil {
		return nil, store.QueryError(err)
	}

	rows, err := a.pool.Query(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, store.QueryError(mapError("query", err))
	}
	defer rows.Close()

	var page []result.Result
	for rows.Next() {
		var r result.Result
		if grouped {
			r, err = scanAggregate(rows)
		} else {
			r, err = a.scanComplete(rows)
		}
		if err != nil {
			return nil, store.QueryError(err)
		}
		page = append(page, r)
	}
	if err := rows.Err(); err != nil {
		return nil, store.QueryError(mapError("query", err))
	}

	if err := store.Translate(ctx, translate, page); err != nil {
		return nil, store.QueryError(err)
	}
	return page, nil
}

func scanAggregate(rows pgx.Rows) (result.Result, error) {
	var (
		eventName, target string
		actor             *uuid.UUID
		cause             *string
		count, latest     int64
	)
	if err := rows.Scan(&eventName, &target, &actor, &cause, &count, &latest); err != nil {
		return result.Result{}, fmt.Errorf("scan aggregate: %w", err)
	}
	return result.NewAggregate(eventName, target, deref(actor), derefString(cause), count, time.UnixMilli(latest).UTC()), nil
}

func (a *Adapter) scanComplete(rows pgx.Rows) (result.Result, error) {
	var (
		e     record.Event
		id    uuid.UUID
		ts    int64
		actor *uuid.UUID
		cause *string
		data  []byte
	)
	err := rows.Scan(&id, &e.EventName, &ts, &e.Location.World, &e.Location.X, &e.Location.Y, &e.Location.Z,
		&actor, &cause, &e.Target, &data)
	if err != nil {
		return result.Result{}, fmt.Errorf("scan record: %w", err)
	}
	e.ID = id.String()
	e.Timestamp = time.UnixMilli(ts).UTC()
	if actor != nil {
		e.Cause = actor.String()
	} else {
		e.Cause = derefString(cause)
	}
	if len(data) > 0 {
		if e.Extra, err = a.codec.Decode(data); err != nil {
			return result.Result{}, fmt.Errorf("record %s: %w", e.ID, err)
		}
	}
	return result.NewComplete(e), nil
}

func deref(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Delete purges matching records.
func (a *Adapter) Delete(ctx context.Context, q *queryir.Query) (store.DeleteResult, error) {
	if a.pool == nil {
		return store.DeleteResult{}, store.ErrNotConnected
	}
	st, err := a.compiler.CompileDelete(q)
	if err != nil {
		return store.DeleteResult{}, fmt.Errorf("postgres: %w", err)
	}
	tag, err := a.pool.Exec(ctx, st.SQL, st.Args...)
	if err != nil {
		return store.DeleteResult{}, mapError("delete", err)
	}
	return store.DeleteResult{Deleted: tag.RowsAffected()}, nil
}

// mapError classifies pgx errors by SQLSTATE.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("postgres %s: %w", op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505": // unique_violation
			return store.NewStorageError("postgres "+op, store.ErrCodeConflict, err)
		case pgErr.Code == "23503", pgErr.Code == "23514", pgErr.Code == "23502":
			return store.NewStorageError("postgres "+op, store.ErrCodeConstraint, err)
		case len(pgErr.Code) == 5 && pgErr.Code[:2] == "08": // connection_exception
			return store.NewStorageError("postgres "+op, store.ErrCodeUnavailable, err)
		}
		return store.NewStorageError("postgres "+op, store.ErrCodeInternal, err)
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return store.NewStorageError("postgres "+op, store.ErrCodeUnavailable, err)
	}
	return store.NewStorageError("postgres "+op, store.ErrCodeInternal, err)
}
