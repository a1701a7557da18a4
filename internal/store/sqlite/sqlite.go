// Package sqlite stores events in a single SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/roach88/chronicle/internal/querysql"
	"github.com/roach88/chronicle/internal/queryir"
	"github.com/roach88/chronicle/internal/record"
	"github.com/roach88/chronicle/internal/result"
	"github.com/roach88/chronicle/internal/session"
	"github.com/roach88/chronicle/internal/store"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Driver names registered with database/sql.
const (
	DriverCGO  = "sqlite3"
	DriverPure = "sqlite"
)

// Options configures an Adapter.
type Options struct {
	// Path is the database file. ":memory:" is not supported because every
	// pooled connection would see its own database.
	Path string

	// Driver is DriverCGO or DriverPure. Empty means DriverCGO.
	Driver string

	// Compress stores extra payloads zstd-compressed.
	Compress bool
}

// Adapter implements store.Adapter on SQLite.
type Adapter struct {
	opts     Options
	db       *sql.DB
	compiler *querysql.Compiler
	codec    *record.Codec
}

var _ store.Adapter = (*Adapter)(nil)

// New returns an unconnected adapter.
func New(opts Options) (*Adapter, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("sqlite: empty database path")
	}
	switch opts.Driver {
	case "":
		opts.Driver = DriverCGO
	case DriverCGO, DriverPure:
	default:
		return nil, fmt.Errorf("sqlite: unknown driver %q (want %s or %s)", opts.Driver, DriverCGO, DriverPure)
	}
	codec, err := record.NewCodec(opts.Compress)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	return &Adapter{
		opts:     opts,
		compiler: querysql.NewCompiler(querysql.SQLite),
		codec:    codec,
	}, nil
}

// Open creates an adapter and connects it.
func Open(ctx context.Context, opts Options) (*Adapter, error) {
	a, err := New(opts)
	if err != nil {
		return nil, err
	}
	if err := a.Connect(ctx); err != nil {
		a.codec.Close()
		return nil, err
	}
	return a, nil
}

func (a *Adapter) Name() string { return store.BackendSQLite }

func (a *Adapter) Compiler() queryir.Compiler { return a.compiler }

// Connect opens the database, applies pragmas and runs migrations.
//
// The pool is limited to one connection: SQLite allows one writer, and the
// foreign_keys pragma is per connection.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.db != nil {
		return nil
	}
	db, err := sql.Open(a.opts.Driver, a.opts.Path)
	if err != nil {
		return fmt.Errorf("sqlite: open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return mapError("connect", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return fmt.Errorf("sqlite: apply pragmas: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return fmt.Errorf("sqlite: %w", err)
	}

	a.db = db
	slog.Debug("sqlite connected", "path", a.opts.Path, "driver", a.opts.Driver)
	return nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("goose provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	for _, r := range results {
		slog.Debug("migration applied", "backend", store.BackendSQLite, "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}

// TestConnection pings the database.
func (a *Adapter) TestConnection(ctx context.Context) error {
	if a.db == nil {
		return store.ErrNotConnected
	}
	return mapError("ping", a.db.PingContext(ctx))
}

// Close closes the database.
func (a *Adapter) Close() error {
	a.codec.Close()
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

// DB returns the underlying database.
func (a *Adapter) DB() *sql.DB {
	return a.db
}

// Write inserts a batch in one transaction.
func (a *Adapter) Write(ctx context.Context, batch []record.Event) (store.WriteResult, error) {
	if a.db == nil {
		return store.WriteResult{}, store.ErrNotConnected
	}
	if len(batch) == 0 {
		return store.WriteResult{}, nil
	}
	stmts, err := a.compiler.CompileInsert(batch, a.codec.Encode)
	if err != nil {
		return store.WriteResult{}, fmt.Errorf("sqlite: %w", err)
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return store.WriteResult{}, mapError("begin", err)
	}
	defer tx.Rollback()

	for _, st := range stmts {
		if _, err := tx.ExecContext(ctx, st.SQL, st.Args...); err != nil {
			return store.WriteResult{}, mapError("write", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return store.WriteResult{}, mapError("commit", err)
	}
	return store.WriteResult{Written: len(batch)}, nil
}

// Query runs a lookup.
func (a *Adapter) Query(ctx context.Context, s *session.Session, translate result.Translator) ([]result.Result, error) {
	if a.db == nil {
		return nil, store.QueryError(store.ErrNotConnected)
	}
	grouped := s.Query().Grouped(s.Flags())
	st, err := a.compiler.CompileSelect(s.Query(), s.Flags())
	if err != nil {
		return nil, store.QueryError(err)
	}

	rows, err := a.db.QueryContext(ctx, st.SQL, st.Args...)
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

func scanAggregate(rows *sql.Rows) (result.Result, error) {
	var (
		eventName, target string
		actor             []byte
		cause             sql.NullString
		count, latest     int64
	)
	if err := rows.Scan(&eventName, &target, &actor, &cause, &count, &latest); err != nil {
		return result.Result{}, fmt.Errorf("scan aggregate: %w", err)
	}
	id, err := actorID(actor)
	if err != nil {
		return result.Result{}, err
	}
	return result.NewAggregate(eventName, target, id, cause.String, count, time.UnixMilli(latest).UTC()), nil
}

func (a *Adapter) scanComplete(rows *sql.Rows) (result.Result, error) {
	var (
		e     record.Event
		ts    int64
		actor []byte
		cause sql.NullString
		data  []byte
	)
	err := rows.Scan(&e.ID, &e.EventName, &ts, &e.Location.World, &e.Location.X, &e.Location.Y, &e.Location.Z,
		&actor, &cause, &e.Target, &data)
	if err != nil {
		return result.Result{}, fmt.Errorf("scan record: %w", err)
	}
	e.Timestamp = time.UnixMilli(ts).UTC()

	id, err := actorID(actor)
	if err != nil {
		return result.Result{}, err
	}
	if id != uuid.Nil {
		e.Cause = id.String()
	} else {
		e.Cause = cause.String
	}

	if len(data) > 0 {
		if e.Extra, err = a.codec.Decode(data); err != nil {
			return result.Result{}, fmt.Errorf("record %s: %w", e.ID, err)
		}
	}
	return result.NewComplete(e), nil
}

func actorID(b []byte) (uuid.UUID, error) {
	if len(b) == 0 {
		return uuid.Nil, nil
	}
	id, err := uuid.FromBytes(b)
	if err != nil {
		return uuid.Nil, fmt.Errorf("actor id: %w", err)
	}
	return id, nil
}

// Delete purges matching records. Extra payload rows follow through the
// cascade.
func (a *Adapter) Delete(ctx context.Context, q *queryir.Query) (store.DeleteResult, error) {
	if a.db == nil {
		return store.DeleteResult{}, store.ErrNotConnected
	}
	st, err := a.compiler.CompileDelete(q)
	if err != nil {
		return store.DeleteResult{}, fmt.Errorf("sqlite: %w", err)
	}
	res, err := a.db.ExecContext(ctx, st.SQL, st.Args...)
	if err != nil {
		return store.DeleteResult{}, mapError("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return store.DeleteResult{}, mapError("delete", err)
	}
	return store.DeleteResult{Deleted: n}, nil
}

// mapError classifies driver errors. Only the cgo driver exposes typed
// error codes; errors from the pure Go driver are classified as internal.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("sqlite %s: %w", op, err)
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintPrimaryKey, sqlite3.ErrConstraintUnique:
			return store.NewStorageError("sqlite "+op, store.ErrCodeConflict, err)
		case sqlite3.ErrConstraintForeignKey, sqlite3.ErrConstraintCheck, sqlite3.ErrConstraintNotNull:
			return store.NewStorageError("sqlite "+op, store.ErrCodeConstraint, err)
		}
		switch se.Code {
		case sqlite3.ErrCantOpen, sqlite3.ErrBusy, sqlite3.ErrLocked:
			return store.NewStorageError("sqlite "+op, store.ErrCodeUnavailable, err)
		}
	}
	return store.NewStorageError("sqlite "+op, store.ErrCodeInternal, err)
}
