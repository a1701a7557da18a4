package querysql

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Statement is a compiled SQL statement and its bound arguments.
type Statement struct {
	SQL  string
	Args []any
}

// String renders the statement and a readable argument list.
func (s Statement) String() string {
	parts := make([]string, len(s.Args))
	for i, a := range s.Args {
		parts[i] = formatArg(a)
	}
	return s.SQL + "\nargs: [" + strings.Join(parts, ", ") + "]"
}

func formatArg(a any) string {
	switch v := a.(type) {
	case nil:
		return "NULL"
	case string:
		return fmt.Sprintf("%q", v)
	case []byte:
		return "x'" + hex.EncodeToString(v) + "'"
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprintf("%v", a)
}
