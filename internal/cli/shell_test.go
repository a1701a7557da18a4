package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runShell(t *testing.T, cfg, script string) string {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--config", cfg, "shell"})
	cmd.SetIn(strings.NewReader(script))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	require.NoError(t, cmd.ExecuteContext(context.Background()), stderr.String())
	return stdout.String()
}

func TestShellSession(t *testing.T) {
	cfg := writeConfig(t)
	out := runShell(t, cfg, `
# a creeper blast, rolled back and undone in one session
place overworld:10,64,10 stone
capture block-explode creeper overworld:10,64,10 air
as Alex overworld:10,64,10
lookup a:block-explode
rollback a:block-explode
undo
undo
lookup zz:1
quit
lookup a:block-explode
`)

	assert.Contains(t, out, "issuer Alex at overworld:10,64,10")
	assert.Contains(t, out, "creeper block-explode stone x1")
	assert.Contains(t, out, "rollback: 1 applied, 0 skipped")
	assert.Contains(t, out, "undo: 1 applied, 0 skipped")
	assert.Contains(t, out, "Error [NOTHING_TO_UNDO]")
	assert.Contains(t, out, "Error [UNKNOWN_ALIAS]")
	assert.Equal(t, 1, strings.Count(out, "creeper block-explode stone x1"), "commands after quit must not run")
}

func TestShellBuiltinErrors(t *testing.T) {
	cfg := writeConfig(t)
	out := runShell(t, cfg, `
place overworld:10,64,10
capture block-smash tnt overworld:0,0,0 air
as Nobody
flush
help
frobnicate
`)

	assert.Contains(t, out, "usage: place")
	assert.Contains(t, out, `unknown event "block-smash"`)
	assert.Contains(t, out, `principal "Nobody"`)
	assert.Contains(t, out, "flushed 0 record(s)")
	assert.Contains(t, out, "set a block without recording")
	assert.Contains(t, out, `unknown command "frobnicate"`)
}
