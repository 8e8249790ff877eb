// File: internal/agent/log_test.go
package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/matchpilot/internal/screen"
)

func TestArtifactPath(t *testing.T) {
	path := artifactPath("/tmp/artifacts", "live action: log!", "json")
	base := filepath.Base(path)
	assert.True(t, strings.HasPrefix(base, "live_action__log_"))
	assert.True(t, strings.HasSuffix(base, ".json"))

	path = artifactPath("/tmp/artifacts", "???", ".png")
	assert.True(t, strings.HasPrefix(filepath.Base(path), "____"))
	assert.True(t, strings.HasSuffix(path, ".png"))
}

func TestRunLog(t *testing.T) {
	t.Run("flush writes a JSON array", func(t *testing.T) {
		dir := t.TempDir()
		rl, err := newRunLog(dir, false)
		require.NoError(t, err)
		assert.Empty(t, rl.packetLogPath)

		require.NoError(t, rl.Append(ActionLogEntry{Iteration: 1, Decision: ActionLike, ScreenType: screen.TypeDiscoverCard}))
		require.NoError(t, rl.Append(ActionLogEntry{Iteration: 2, Decision: ActionWait, ScreenType: screen.TypeTabShell}))

		logPath, err := rl.Flush(dir)
		require.NoError(t, err)

		data, err := os.ReadFile(logPath)
		require.NoError(t, err)
		var entries []ActionLogEntry
		require.NoError(t, json.Unmarshal(data, &entries))
		require.Len(t, entries, 2)
		assert.Equal(t, ActionLike, entries[0].Decision)
		assert.Equal(t, 2, entries[1].Iteration)
	})

	t.Run("packet log streams JSONL", func(t *testing.T) {
		dir := t.TempDir()
		rl, err := newRunLog(dir, true)
		require.NoError(t, err)
		require.NotEmpty(t, rl.packetLogPath)

		require.NoError(t, rl.Append(ActionLogEntry{Iteration: 1, Decision: ActionPass}))
		require.NoError(t, rl.Append(ActionLogEntry{Iteration: 2, Decision: ActionBack}))
		_, err = rl.Flush(dir)
		require.NoError(t, err)

		data, err := os.ReadFile(rl.packetLogPath)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		require.Len(t, lines, 2)

		var first ActionLogEntry
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
		assert.Equal(t, ActionPass, first.Decision)
	})

	t.Run("empty run still flushes", func(t *testing.T) {
		dir := t.TempDir()
		rl, err := newRunLog(dir, false)
		require.NoError(t, err)
		logPath, err := rl.Flush(dir)
		require.NoError(t, err)
		assert.FileExists(t, logPath)
	})
}
