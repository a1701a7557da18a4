package actionable

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/chronicle/internal/record"
	"github.com/roach88/chronicle/internal/result"
	"github.com/roach88/chronicle/internal/world"
)

// Mode selects which snapshot of a record is written.
type Mode int

const (
	// Rollback writes the before snapshot, newest record first.
	Rollback Mode = iota + 1
	// Restore writes the after snapshot, oldest record first.
	Restore
	// Undo writes the Before state of stored transactions.
	Undo
)

func (m Mode) String() string {
	switch m {
	case Rollback:
		return "rollback"
	case Restore:
		return "restore"
	case Undo:
		return "undo"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// SkipReason explains why a record was not applied.
type SkipReason string

const (
	SkipIllegalBlock    SkipReason = "ILLEGAL_BLOCK"
	SkipInvalidLocation SkipReason = "INVALID_LOCATION"
	SkipInvalid         SkipReason = "INVALID"
	SkipOccupied        SkipReason = "OCCUPIED"
	SkipUnimplemented   SkipReason = "UNIMPLEMENTED"
	SkipUnknown         SkipReason = "UNKNOWN"
)

// SkipError carries the reason a record could not be applied.
type SkipError struct {
	Reason SkipReason
	Err    error
}

func (e *SkipError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *SkipError) Unwrap() error { return e.Err }

func skip(reason SkipReason, format string, args ...any) *SkipError {
	return &SkipError{Reason: reason, Err: fmt.Errorf(format, args...)}
}

// ReasonOf maps err to a skip reason. Errors that are not a *SkipError are
// UNKNOWN.
func ReasonOf(err error) SkipReason {
	var se *SkipError
	if errors.As(err, &se) {
		return se.Reason
	}
	return SkipUnknown
}

// Transaction is the state change made at one position.
type Transaction struct {
	Location record.Location
	Before   world.Snapshot
	After    world.Snapshot
}

// Result is the outcome for one record. Cleanup passes produce results with
// a zero Record.
type Result struct {
	Record      result.Result
	Applied     bool
	Skip        SkipReason
	Err         error
	Transaction *Transaction
}

// Summary tallies a batch.
type Summary struct {
	Mode    Mode
	Results []Result
	Applied int
	Skipped int
	// Skips counts skipped records by reason.
	Skips map[SkipReason]int
	// Cleaned counts positions cleared by -drain-liquids and -clean-area.
	Cleaned int
}

func newSummary(mode Mode) *Summary {
	return &Summary{Mode: mode, Skips: make(map[SkipReason]int)}
}

func (s *Summary) add(r Result) {
	s.Results = append(s.Results, r)
	if r.Applied {
		s.Applied++
		return
	}
	s.Skipped++
	s.Skips[r.Skip]++
}

// Transactions returns the applied transactions in application order.
func (s *Summary) Transactions() []Transaction {
	var out []Transaction
	for _, r := range s.Results {
		if r.Applied && r.Transaction != nil {
			out = append(out, *r.Transaction)
		}
	}
	return out
}

// String renders e.g. "rollback: 3 applied, 2 skipped (OCCUPIED=2)".
func (s *Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d applied, %d skipped", s.Mode, s.Applied, s.Skipped)
	if len(s.Skips) > 0 {
		reasons := make([]string, 0, len(s.Skips))
		for r, n := range s.Skips {
			reasons = append(reasons, fmt.Sprintf("%s=%d", r, n))
		}
		sort.Strings(reasons)
		fmt.Fprintf(&b, " (%s)", strings.Join(reasons, ", "))
	}
	if s.Cleaned > 0 {
		fmt.Fprintf(&b, ", %d cleaned", s.Cleaned)
	}
	return b.String()
}
