package querysql

import (
	"fmt"

	"github.com/roach88/chronicle/internal/queryir"
)

const (
	tableEvents = "events"
	tableExtra  = "event_extra"
	aliasEvents = "e"
	aliasExtra  = "ex"
)

var columns = map[string]string{
	queryir.FieldID:        "id",
	queryir.FieldEventName: "event_name",
	queryir.FieldTimestamp: "ts",
	queryir.FieldWorld:     "world",
	queryir.FieldX:         "x",
	queryir.FieldY:         "y",
	queryir.FieldZ:         "z",
	queryir.FieldActor:     "actor_id",
	queryir.FieldCause:     "cause",
	queryir.FieldTarget:    "target",
}

// nullable columns need an explicit IS NULL arm under EXCLUDE, otherwise
// NOT IN silently drops rows with no value.
var nullable = map[string]bool{
	queryir.FieldActor: true,
	queryir.FieldCause: true,
}

// eventColumns is the insert and complete-projection column order.
var eventColumns = []string{
	queryir.FieldID,
	queryir.FieldEventName,
	queryir.FieldTimestamp,
	queryir.FieldWorld,
	queryir.FieldX,
	queryir.FieldY,
	queryir.FieldZ,
	queryir.FieldActor,
	queryir.FieldCause,
	queryir.FieldTarget,
}

func column(field, qualifier string) (string, error) {
	col, ok := columns[field]
	if !ok {
		return "", fmt.Errorf("no column for field %q", field)
	}
	if qualifier == "" {
		return col, nil
	}
	return qualifier + "." + col, nil
}

func qualified(fields []string, qualifier string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i], _ = column(f, qualifier)
	}
	return out
}
