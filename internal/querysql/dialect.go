package querysql

import (
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/roach88/chronicle/internal/queryir"
)

// ValueMutator converts a domain value into its column encoding.
type ValueMutator func(v any) (any, error)

// Dialect describes one SQL backend.
type Dialect struct {
	Name        string
	Placeholder squirrel.PlaceholderFormat
	Mutators    map[string]ValueMutator
}

// SQLite stores principal ids as 16-byte BLOBs and record ids as text.
var SQLite = Dialect{
	Name:        "sqlite",
	Placeholder: squirrel.Question,
	Mutators: map[string]ValueMutator{
		queryir.FieldActor:     UUIDBlob,
		queryir.FieldTimestamp: UnixMillis,
	},
}

// Postgres uses native uuid columns for record and principal ids.
var Postgres = Dialect{
	Name:        "postgres",
	Placeholder: squirrel.Dollar,
	Mutators: map[string]ValueMutator{
		queryir.FieldID:        NativeUUID,
		queryir.FieldActor:     NativeUUID,
		queryir.FieldTimestamp: UnixMillis,
	},
}

func (d Dialect) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(d.Placeholder)
}

func (d Dialect) mutate(field string, v any) (any, error) {
	m, ok := d.Mutators[field]
	if !ok || v == nil {
		return v, nil
	}
	out, err := m(v)
	if err != nil {
		return nil, fmt.Errorf("%s value for %q: %w", d.Name, field, err)
	}
	return out, nil
}

func toUUID(v any) (uuid.UUID, error) {
	switch id := v.(type) {
	case uuid.UUID:
		return id, nil
	case string:
		return uuid.Parse(id)
	case []byte:
		return uuid.FromBytes(id)
	}
	return uuid.Nil, fmt.Errorf("cannot use %T as uuid", v)
}

// UUIDBlob encodes a UUID as its 16 raw bytes.
func UUIDBlob(v any) (any, error) {
	id, err := toUUID(v)
	if err != nil {
		return nil, err
	}
	b := make([]byte, 16)
	copy(b, id[:])
	return b, nil
}

// NativeUUID passes a UUID through for drivers with a uuid type.
func NativeUUID(v any) (any, error) {
	return toUUID(v)
}

// UnixMillis encodes a time as milliseconds since the epoch.
func UnixMillis(v any) (any, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UnixMilli(), nil
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	}
	return nil, fmt.Errorf("cannot use %T as timestamp", v)
}
