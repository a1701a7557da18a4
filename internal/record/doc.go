// Package record defines the immutable event record captured for every world
// mutation, the event-kind catalog, and the codec used to persist the extra
// payload attached to each record.
//
// A record is written once by the recording queue and never updated. The only
// way a record leaves storage is a purge.
//
// Payload encoding is canonical: object keys are sorted by UTF-16 code units,
// strings are NFC normalised and HTML characters are not escaped. Two payloads
// holding the same data therefore encode to identical bytes, which keeps
// deduplicated snapshots and golden test output stable.
package record
