package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, cfg string, args ...string) {
	t.Helper()
	stdout, stderr, code := execute(t, append([]string{"--config", cfg, "capture"}, args...)...)
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "recorded 1 change(s)")
}

func TestCaptureThenLookup(t *testing.T) {
	cfg := writeConfig(t)
	capture(t, cfg, "block-break", steveID, "overworld:10,64,10", "--before", "stone")

	stdout, stderr, code := execute(t, "--config", cfg, "lookup", "a:block-break")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "Steve block-break stone x1")

	stdout, _, code = execute(t, "--config", cfg, "l", "a:block-break", "-no-group")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "Steve block-break stone at overworld:10,64,10")
}

func TestLookupRadiusFromIssuer(t *testing.T) {
	cfg := writeConfig(t)
	capture(t, cfg, "block-break", steveID, "overworld:10,64,10", "--before", "stone")

	stdout, _, code := execute(t, "--config", cfg, "--as", "Alex", "--at", "overworld:12,64,10", "lookup", "a:block-break")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "Steve block-break stone x1")

	stdout, _, code = execute(t, "--config", cfg, "lookup", "--as", "Alex", "--at", "overworld:100,64,100", "a:block-break")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "no results\n", stdout)
}

func TestLookupJSON(t *testing.T) {
	cfg := writeConfig(t)
	capture(t, cfg, "block-explode", "creeper", "overworld:0,64,0", "--before", "dirt")

	stdout, _, code := execute(t, "--config", cfg, "--format", "json", "lookup", "a:block-explode", "-no-group")
	require.Equal(t, ExitSuccess, code)

	var resp struct {
		Status string      `json:"status"`
		Data   outcomeJSON `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "lookup", resp.Data.Command)
	require.Len(t, resp.Data.Results, 1)
	r := resp.Data.Results[0]
	assert.Equal(t, "complete", r.Kind)
	assert.Equal(t, "creeper", r.Actor)
	assert.Empty(t, r.ActorID)
	assert.Equal(t, "dirt", r.Target)
	assert.Equal(t, "overworld:0,64,0", r.Location)
	assert.NotNil(t, r.Timestamp)
}

func TestParameterErrorExitCode(t *testing.T) {
	cfg := writeConfig(t)

	_, stderr, code := execute(t, "--config", cfg, "lookup", "zz:1")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, "Error [UNKNOWN_ALIAS]")

	stdout, _, code := execute(t, "--config", cfg, "--format", "json", "lookup", "zz:1")
	assert.Equal(t, ExitFailure, code)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "UNKNOWN_ALIAS", resp.Error.Code)
}

func TestActionableCommandsNeedParameters(t *testing.T) {
	cfg := writeConfig(t)
	for _, name := range []string{"rollback", "restore", "purge"} {
		_, stderr, code := execute(t, "--config", cfg, name)
		assert.Equal(t, ExitFailure, code, name)
		assert.Contains(t, stderr, "Error [NO_PARAMETERS]", name)
	}
}

func TestUndoAcrossProcessesHasNothing(t *testing.T) {
	cfg := writeConfig(t)
	_, stderr, code := execute(t, "--config", cfg, "undo")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, "Error [NOTHING_TO_UNDO]")
}

func TestRollbackAndPurge(t *testing.T) {
	cfg := writeConfig(t)
	capture(t, cfg, "block-break", steveID, "overworld:10,64,10", "--before", "stone")
	capture(t, cfg, "block-break", steveID, "overworld:11,64,10", "--before", "dirt")

	stdout, _, code := execute(t, "--config", cfg, "rb", "a:block-break")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "rollback: 2 applied, 0 skipped\n", stdout)

	stdout, _, code = execute(t, "--config", cfg, "purge", "a:block-break")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "purged 2 records\n", stdout)

	stdout, _, code = execute(t, "--config", cfg, "lookup", "a:block-break")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "no results\n", stdout)
}

func TestExplain(t *testing.T) {
	cfg := writeConfig(t)
	stdout, _, code := execute(t, "--config", cfg, "explain", "a:block-break")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "SELECT")
	assert.Contains(t, stdout, "args:")
}

func TestCaptureRejectsBadInput(t *testing.T) {
	cfg := writeConfig(t)

	_, stderr, code := execute(t, "--config", cfg, "capture", "block-smash", "tnt", "overworld:0,0,0")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, `unknown event "block-smash"`)

	_, stderr, code = execute(t, "--config", cfg, "capture", "block-break", "tnt", "nowhere")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, "invalid location")
}
