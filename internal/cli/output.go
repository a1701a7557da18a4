package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/roach88/chronicle/internal/actionable"
	"github.com/roach88/chronicle/internal/app"
	"github.com/roach88/chronicle/internal/param"
	"github.com/roach88/chronicle/internal/result"
	"github.com/roach88/chronicle/internal/store"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Command ran and failed (bad parameters, failed scenarios, nothing to undo)
	ExitCommandError = 2 // Command could not run (bad config, unreachable storage, missing paths)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitSuccess for nil and ExitFailure if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // parameter or storage error code
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Outcome prints a command outcome: its terminal lines as text, or its
// structured form as JSON.
func (f *OutputFormatter) Outcome(out *app.Outcome) error {
	if f.Format == "json" {
		return f.Success(outcomeData(out))
	}
	for _, line := range out.Lines() {
		fmt.Fprintln(f.Writer, line)
	}
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Failure prints err with the code ErrorCode assigns it.
func (f *OutputFormatter) Failure(err error) error {
	var details any
	if pe, ok := param.AsParameterError(err); ok {
		details = map[string]string{"token": pe.Token}
	}
	return f.Error(ErrorCode(err), err.Error(), details)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// ErrorCode classifies err for CLI output.
func ErrorCode(err error) string {
	if pe, ok := param.AsParameterError(err); ok {
		return string(pe.Code)
	}
	if code := store.ErrorCodeOf(err); code != "" {
		return string(code)
	}
	switch {
	case errors.Is(err, actionable.ErrNothingToUndo):
		return "NOTHING_TO_UNDO"
	case errors.Is(err, app.ErrNoParameters):
		return "NO_PARAMETERS"
	}
	return "ERROR"
}

type resultJSON struct {
	Kind      string         `json:"kind"`
	Event     string         `json:"event"`
	Target    string         `json:"target"`
	Actor     string         `json:"actor"`
	ActorID   string         `json:"actor_id,omitempty"`
	Count     int64          `json:"count,omitempty"`
	Latest    *time.Time     `json:"latest,omitempty"`
	ID        string         `json:"id,omitempty"`
	Timestamp *time.Time     `json:"timestamp,omitempty"`
	Location  string         `json:"location,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

type summaryJSON struct {
	Mode    string         `json:"mode"`
	Applied int            `json:"applied"`
	Skipped int            `json:"skipped"`
	Skips   map[string]int `json:"skips,omitempty"`
	Cleaned int            `json:"cleaned,omitempty"`
}

type outcomeJSON struct {
	Command string       `json:"command"`
	Results []resultJSON `json:"results,omitempty"`
	Summary *summaryJSON `json:"summary,omitempty"`
	Deleted *int64       `json:"deleted,omitempty"`
	Explain string       `json:"explain,omitempty"`
}

func outcomeData(out *app.Outcome) outcomeJSON {
	data := outcomeJSON{Command: out.Command, Explain: out.Explain}
	switch out.Command {
	case "lookup":
		data.Results = make([]resultJSON, len(out.Results))
		for i, r := range out.Results {
			data.Results[i] = toResultJSON(r)
		}
	case "purge":
		deleted := out.Deleted
		data.Deleted = &deleted
	}
	if s := out.Summary; s != nil {
		data.Summary = &summaryJSON{
			Mode:    s.Mode.String(),
			Applied: s.Applied,
			Skipped: s.Skipped,
			Cleaned: s.Cleaned,
		}
		if len(s.Skips) > 0 {
			data.Summary.Skips = make(map[string]int, len(s.Skips))
			for reason, n := range s.Skips {
				data.Summary.Skips[string(reason)] = n
			}
		}
	}
	return data
}

func toResultJSON(r result.Result) resultJSON {
	out := resultJSON{
		Kind:   r.Kind.String(),
		Event:  r.EventName,
		Target: r.Target,
		Actor:  r.Actor,
	}
	if r.HasPrincipal() {
		out.ActorID = r.ActorID.String()
	}
	switch r.Kind {
	case result.Aggregate:
		latest := r.Latest.UTC()
		out.Count = r.Count
		out.Latest = &latest
	case result.Complete:
		ts := r.Timestamp.UTC()
		out.ID = r.ID
		out.Timestamp = &ts
		out.Location = r.Location.String()
		out.Extra = r.Extra
	}
	return out
}
