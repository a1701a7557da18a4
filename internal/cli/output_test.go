package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chronicle/internal/actionable"
	"github.com/roach88/chronicle/internal/app"
	"github.com/roach88/chronicle/internal/param"
	"github.com/roach88/chronicle/internal/record"
	"github.com/roach88/chronicle/internal/result"
	"github.com/roach88/chronicle/internal/store"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]string{"result": "success"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Error("UNAVAILABLE", "storage unreachable", nil))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "UNAVAILABLE", resp.Error.Code)
	assert.Equal(t, "storage unreachable", resp.Error.Message)
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Error("ERROR", "something broke", map[string]string{"token": "r:x"}))
	assert.Equal(t, "Error [ERROR]: something broke\n", buf.String())
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}

	require.NoError(t, formatter.Error("ERROR", "something broke", "r:x"))
	assert.Contains(t, buf.String(), "Details: r:x")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	out := &bytes.Buffer{}
	diag := &bytes.Buffer{}

	quiet := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag}
	quiet.VerboseLog("hidden %d", 1)
	assert.Empty(t, diag.String())

	loud := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag, Verbose: true}
	loud.VerboseLog("shown %d", 2)
	assert.Equal(t, "shown 2\n", diag.String())
	assert.Empty(t, out.String(), "diagnostics must not corrupt JSON output")

	fallback := &OutputFormatter{Format: "text", Writer: out, Verbose: true}
	fallback.VerboseLog("to stdout")
	assert.Equal(t, "to stdout\n", out.String())
}

func TestOutputFormatter_FailureParameterError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	err := WrapExitError(ExitFailure, "lookup failed", param.NewUnknownAliasError("zz:1", "zz"))
	require.NoError(t, formatter.Failure(err))

	var resp struct {
		Error struct {
			Code    string            `json:"code"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "UNKNOWN_ALIAS", resp.Error.Code)
	assert.Equal(t, "zz:1", resp.Error.Details["token"])
}

func TestOutputFormatter_Outcome(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Outcome(&app.Outcome{Command: "purge", Deleted: 3}))
	assert.Equal(t, "purged 3 records\n", buf.String())
}

func TestOutcomeData(t *testing.T) {
	latest := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	actor := uuid.MustParse("123e4567-e89b-12d3-a456-426614174000")

	agg := result.NewAggregate(record.BlockBreak, "stone", actor, "", 4, latest)
	agg.Actor = "Steve"
	data := outcomeData(&app.Outcome{Command: "lookup", Results: []result.Result{agg}})
	require.Len(t, data.Results, 1)
	assert.Equal(t, "aggregate", data.Results[0].Kind)
	assert.Equal(t, "Steve", data.Results[0].Actor)
	assert.Equal(t, actor.String(), data.Results[0].ActorID)
	assert.Equal(t, int64(4), data.Results[0].Count)
	assert.Equal(t, latest, *data.Results[0].Latest)
	assert.Nil(t, data.Results[0].Timestamp)

	sum := &actionable.Summary{
		Mode:    actionable.Rollback,
		Applied: 2,
		Skipped: 1,
		Skips:   map[actionable.SkipReason]int{actionable.SkipOccupied: 1},
	}
	data = outcomeData(&app.Outcome{Command: "rollback", Summary: sum})
	require.NotNil(t, data.Summary)
	assert.Equal(t, "rollback", data.Summary.Mode)
	assert.Equal(t, map[string]int{"OCCUPIED": 1}, data.Summary.Skips)
	assert.Nil(t, data.Deleted)

	data = outcomeData(&app.Outcome{Command: "purge"})
	require.NotNil(t, data.Deleted)
	assert.Equal(t, int64(0), *data.Deleted)
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{param.NewUnknownAliasError("zz:1", "zz"), "UNKNOWN_ALIAS"},
		{store.NewStorageError("insert", store.ErrCodeUnavailable, errors.New("down")), "UNAVAILABLE"},
		{fmt.Errorf("undo: %w", actionable.ErrNothingToUndo), "NOTHING_TO_UNDO"},
		{WrapExitError(ExitFailure, "purge failed", app.ErrNoParameters), "NO_PARAMETERS"},
		{errors.New("boom"), "ERROR"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorCode(tt.err), tt.err.Error())
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad path")))
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("wrapped: %w", NewExitError(ExitCommandError, "bad path"))))
}

func TestExitErrorMessage(t *testing.T) {
	assert.Equal(t, "bad path", NewExitError(ExitCommandError, "bad path").Error())
	err := WrapExitError(ExitFailure, "lookup failed", errors.New("boom"))
	assert.Equal(t, "lookup failed: boom", err.Error())
	assert.EqualError(t, errors.Unwrap(err), "boom")
}
