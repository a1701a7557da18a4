// Package store defines the contract every storage backend implements.
//
// An Adapter persists batches of events, runs compiled lookups, and purges
// records matching a query. Three adapters ship with the module:
//
//   - sqlite: a single-file database through database/sql, using either the
//     cgo driver (mattn/go-sqlite3, driver name "sqlite3") or the pure Go
//     driver (modernc.org/sqlite, driver name "sqlite").
//   - postgres: a pgx connection pool.
//   - mongo: a document collection queried with aggregation pipelines.
//
// Both SQL adapters apply their schema with goose migrations embedded in the
// binary. Extra payloads are stored as encoded bytes in a side table and
// follow their event on purge through a cascading foreign key.
//
// # Errors
//
// Read failures wrap ErrQueryFailed. Backend paths an adapter cannot serve
// return ErrNotSupported. Driver errors are classified into a *StorageError
// so callers can tell a conflict from an unreachable backend without
// importing a driver.
package store
