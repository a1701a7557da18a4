// Package querysql compiles queryir queries into parameterized SQL.
//
// A Compiler is bound to a Dialect. The dialect chooses the placeholder
// style (SQLite "?", PostgreSQL "$n") and the value mutators that turn
// domain values into the column encoding of that backend: principal UUIDs
// become 16-byte BLOBs in SQLite and native uuid values in PostgreSQL,
// timestamps become unix milliseconds in both.
//
// Every value is a bound argument. Condition text never contains user input.
//
// Schema the compiler targets:
//
//	events(id, event_name, ts, world, x, y, z, actor_id, cause, target)
//	event_extra(event_id → events.id, data)
//
// Aggregate queries group by (event_name, target, actor_id, cause) and
// project COUNT(*). Complete queries project every column and LEFT JOIN the
// extra payload.
package querysql
