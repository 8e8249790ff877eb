// File: internal/agent/recovery_test.go
package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveActivityComponent(t *testing.T) {
	t.Run("relative activity is qualified by package", func(t *testing.T) {
		component, err := ResolveActivityComponent("co.hinge.app", ".ui.AppActivity")
		require.NoError(t, err)
		assert.Equal(t, "co.hinge.app/.ui.AppActivity", component)
	})

	t.Run("full component passes through", func(t *testing.T) {
		component, err := ResolveActivityComponent("co.hinge.app", "co.hinge.app/co.hinge.app.MainActivity")
		require.NoError(t, err)
		assert.Equal(t, "co.hinge.app/co.hinge.app.MainActivity", component)
	})

	t.Run("empty activity is rejected", func(t *testing.T) {
		_, err := ResolveActivityComponent("co.hinge.app", "  ")
		require.Error(t, err)
	})
}

func TestSanitizeADBText(t *testing.T) {
	t.Run("spaces become %s", func(t *testing.T) {
		got, err := SanitizeADBText("hello world")
		require.NoError(t, err)
		assert.Equal(t, "hello%sworld", got)
	})

	t.Run("whitespace collapses", func(t *testing.T) {
		got, err := SanitizeADBText("  hi\n\tthere  ")
		require.NoError(t, err)
		assert.Equal(t, "hi%sthere", got)
	})

	t.Run("disallowed characters are dropped", func(t *testing.T) {
		got, err := SanitizeADBText(`great "pick" & nice prompt;`)
		require.NoError(t, err)
		assert.NotContains(t, got, `"`)
		assert.NotContains(t, got, "&")
		assert.NotContains(t, got, ";")
		assert.Contains(t, got, "great")
	})

	t.Run("allowed punctuation survives", func(t *testing.T) {
		got, err := SanitizeADBText("What's up, you?!")
		require.NoError(t, err)
		assert.Equal(t, "What's%sup,%syou?!", got)
	})

	t.Run("empty after sanitizing is an error", func(t *testing.T) {
		_, err := SanitizeADBText("   ")
		require.Error(t, err)

		_, err = SanitizeADBText("\"\"")
		require.Error(t, err)
	})
}
