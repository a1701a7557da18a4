package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const harnessScenarios = "../harness/testdata/scenarios"

func TestTestCommandRunsScenarios(t *testing.T) {
	stdout, stderr, code := execute(t, "test", harnessScenarios)
	require.Equal(t, ExitSuccess, code, stdout+stderr)
	assert.Contains(t, stdout, "✓ explosion_rollback")
	assert.Contains(t, stdout, "✓ lookup_radius")
	assert.Contains(t, stdout, "2 passed, 0 failed, 2 total")
}

func TestTestCommandFilterJSON(t *testing.T) {
	stdout, _, code := execute(t, "--format", "json", "test", harnessScenarios, "--filter", "lookup_*")
	require.Equal(t, ExitSuccess, code)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, "lookup_radius", resp.Data.Scenarios[0].Name)
}

func TestTestCommandUpdateAndMismatch(t *testing.T) {
	dir := t.TempDir()
	scenarios := filepath.Join(dir, "scenarios")
	golden := filepath.Join(dir, "golden")
	require.NoError(t, os.MkdirAll(scenarios, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(scenarios, "tiny.yaml"), []byte(`
name: tiny
description: one lookup on an empty log
steps:
  - run: lookup a:block-break
    expect:
      results: 0
`), 0o644))

	stdout, _, code := execute(t, "test", scenarios, "--update")
	require.Equal(t, ExitSuccess, code, stdout)
	data, err := os.ReadFile(filepath.Join(golden, "tiny.golden"))
	require.NoError(t, err)
	assert.Equal(t, "# tiny\n> lookup a:block-break\nno results\n", string(data))

	require.NoError(t, os.WriteFile(filepath.Join(golden, "tiny.golden"), []byte("# tiny\n"), 0o644))
	stdout, _, code = execute(t, "test", scenarios)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stdout, "✗ tiny")
	assert.Contains(t, stdout, "golden file mismatch")
}

func TestTestCommandFailedExpectation(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(`
name: bad
description: expects a result that is not there
steps:
  - run: lookup a:block-break
    expect:
      results: 1
`), 0o644))

	stdout, _, code := execute(t, "test", dir)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stdout, "expected 1 results, got 0")
}

func TestTestCommandMissingDir(t *testing.T) {
	_, stderr, code := execute(t, "test", filepath.Join(t.TempDir(), "absent"))
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "scenarios directory not found")
}

func TestTestCommandEmptyDir(t *testing.T) {
	stdout, _, code := execute(t, "test", t.TempDir())
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "No scenarios found.")
}

func TestConfigCommand(t *testing.T) {
	cfg := writeConfig(t)

	stdout, _, code := execute(t, "--config", cfg, "config")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "backend: sqlite")
	assert.Contains(t, stdout, "flush_interval: 1h0m0s")
	assert.Contains(t, stdout, "Steve: "+steveID)

	stdout, _, code = execute(t, "--config", cfg, "--format", "json", "config")
	require.Equal(t, ExitSuccess, code)
	var resp struct {
		Data struct {
			Storage struct {
				Backend string `json:"backend"`
			} `json:"storage"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "sqlite", resp.Data.Storage.Backend)
}

func TestKindsCommand(t *testing.T) {
	stdout, _, code := execute(t, "kinds")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "EVENT")
	assert.Regexp(t, `block-break\s+true`, stdout)
	assert.Regexp(t, `player-join\s+false`, stdout)
}
