// Package queryir is the backend-agnostic condition model that lookup,
// rollback, restore and purge commands are expressed in.
//
// ARCHITECTURE:
//
// Parameters parsed from a command line add conditions to a Query. Storage
// adapters hand the finished Query to a compiler that renders it into the
// backend's native language:
//
//	[tokens] → [param handlers] → [queryir.Query] → [querysql.Compiler]  → SQL text + args
//	                                              → [querydoc.Compiler]  → aggregation pipeline
//
// No package below the compilers knows which backend is in use.
//
// CONDITIONS:
//
// Condition is a sealed interface using the marker method pattern. Only two
// types implement it:
//   - FieldCondition: a single test of one field (EQUALS, GREATER_EQ,
//     LESS_EQ, BETWEEN, INCLUDES, EXCLUDE)
//   - Group: an AND or OR over child conditions, nested to any depth
//
// Conditions are immutable once built. The constructors copy their inputs.
//
// QUERY:
//
// A Query holds at most one condition per field path. Adding a second
// condition for the same path replaces the first; the replacement is logged
// and reported by AddCondition so callers can tell a user their earlier
// parameter was overridden. Groups carry a synthetic path (for example
// "location" for the world + x/y/z group built by FromLocationRadius).
//
// A Query is safe for concurrent use: asynchronous parameter resolutions add
// their conditions from their own goroutines.
//
// RANGES:
//
// BETWEEN is exclusive on both ends: it renders "field > lower AND field <
// upper" in every backend. Builders that need an inclusive range widen the
// bounds by one, as FromLocationRadius does.
package queryir
