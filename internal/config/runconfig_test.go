// File: internal/config/runconfig_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRunConfigJSON() string {
	return `{
  "appium_server_url": "http://127.0.0.1:4723",
  "capabilities_path": "testdata/capabilities.json",
  "profile_path": "testdata/profile.json",
  "command_query": "swipe for 10 actions",
  "decision_engine": {
    "type": "llm",
    "failure_mode": "fallback_deterministic",
    "llm": {
      "model": "gpt-4o-mini",
      "temperature": 0.2,
      "timeout_s": 30,
      "api_key_env": "OPENAI_API_KEY",
      "base_url": "https://api.openai.com",
      "include_screenshot": true,
      "image_detail": "low",
      "max_observed_strings": 120
    }
  },
  "artifacts_dir": "artifacts/run",
  "max_runtime_s": 120,
  "max_actions": 10,
  "loop_sleep_s": 0.5,
  "validation": {
    "enabled": true,
    "post_action_sleep_s": 0.8,
    "require_screen_change_for": ["like", "pass", "back"],
    "max_consecutive_failures": 4
  },
  "locators": {
    "discover_tab": [{"using": "accessibility id", "value": "Discover"}],
    "matches_tab": [{"using": "accessibility id", "value": "Matches"}],
    "like": [{"using": "accessibility id", "value": "Like"}],
    "pass": [{"using": "accessibility id", "value": "Skip"}],
    "open_thread": [{"using": "accessibility id", "value": "Thread"}],
    "message_input": [{"using": "accessibility id", "value": "Composer"}],
    "send": [{"using": "accessibility id", "value": "Send"}],
    "overlay_close": [{"using": "accessibility id", "value": "Close sheet"}]
  }
}`
}

func TestParseRunConfig(t *testing.T) {
	t.Run("valid document with durations resolved", func(t *testing.T) {
		cfg, err := ParseRunConfig([]byte(validRunConfigJSON()), "test")
		require.NoError(t, err)

		assert.Equal(t, "http://127.0.0.1:4723", cfg.ServerURL)
		assert.Equal(t, EngineLLM, cfg.Engine.Type)
		assert.Equal(t, FailureModeFallback, cfg.Engine.FailureMode)
		assert.Equal(t, 30*time.Second, cfg.Engine.LLM.Timeout)
		assert.Equal(t, 2*time.Minute, cfg.MaxRuntime)
		assert.Equal(t, 500*time.Millisecond, cfg.LoopSleep)
		assert.Equal(t, 800*time.Millisecond, cfg.Validation.PostActionSleep)
		assert.Equal(t, "co.hinge.app", cfg.TargetPackage)
		assert.Equal(t, ".ui.AppActivity", cfg.TargetActivity)
		assert.True(t, cfg.Recovery.Enabled)
		assert.Equal(t, 3, cfg.Recovery.MaxAttempts)
	})

	t.Run("validation set membership", func(t *testing.T) {
		cfg, err := ParseRunConfig([]byte(validRunConfigJSON()), "test")
		require.NoError(t, err)

		assert.True(t, cfg.Validation.RequiresChange("like"))
		assert.True(t, cfg.Validation.RequiresChange("back"))
		assert.False(t, cfg.Validation.RequiresChange("wait"))
		assert.False(t, cfg.Validation.RequiresChange("goto_discover"))
	})

	t.Run("rejects unknown engine type", func(t *testing.T) {
		doc := validRunConfigJSON()
		cfg := []byte(doc)
		bad := []byte(`"type": "oracle"`)
		cfg = replaceOnce(cfg, []byte(`"type": "llm"`), bad)
		_, err := ParseRunConfig(cfg, "test")
		require.ErrorContains(t, err, "decision_engine.type")
	})

	t.Run("rejects unknown failure mode", func(t *testing.T) {
		cfg := replaceOnce([]byte(validRunConfigJSON()),
			[]byte(`"failure_mode": "fallback_deterministic"`),
			[]byte(`"failure_mode": "retry"`))
		_, err := ParseRunConfig(cfg, "test")
		require.ErrorContains(t, err, "failure_mode")
	})

	t.Run("rejects missing required locator role", func(t *testing.T) {
		cfg := replaceOnce([]byte(validRunConfigJSON()),
			[]byte(`"like": [{"using": "accessibility id", "value": "Like"}],`),
			nil)
		_, err := ParseRunConfig(cfg, "test")
		require.ErrorContains(t, err, "locators.like")
	})

	t.Run("rejects unrecognized locator role", func(t *testing.T) {
		cfg := replaceOnce([]byte(validRunConfigJSON()),
			[]byte(`"overlay_close":`),
			[]byte(`"mystery_button":`))
		_, err := ParseRunConfig(cfg, "test")
		require.ErrorContains(t, err, "mystery_button")
	})

	t.Run("rejects invalid image detail", func(t *testing.T) {
		cfg := replaceOnce([]byte(validRunConfigJSON()),
			[]byte(`"image_detail": "low"`),
			[]byte(`"image_detail": "ultra"`))
		_, err := ParseRunConfig(cfg, "test")
		require.ErrorContains(t, err, "image_detail")
	})

	t.Run("artifacts dir defaults when omitted", func(t *testing.T) {
		cfg := replaceOnce([]byte(validRunConfigJSON()),
			[]byte(`"artifacts_dir": "artifacts/run",`),
			nil)
		parsed, err := ParseRunConfig(cfg, "test")
		require.NoError(t, err)
		assert.Equal(t, "artifacts/live_hinge", parsed.ArtifactsDir)
	})

	t.Run("rejects blank artifacts dir", func(t *testing.T) {
		cfg := replaceOnce([]byte(validRunConfigJSON()),
			[]byte(`"artifacts_dir": "artifacts/run",`),
			[]byte(`"artifacts_dir": "  ",`))
		_, err := ParseRunConfig(cfg, "test")
		require.ErrorContains(t, err, "artifacts_dir")
	})

	t.Run("rejects missing server URL", func(t *testing.T) {
		cfg := replaceOnce([]byte(validRunConfigJSON()),
			[]byte(`"appium_server_url": "http://127.0.0.1:4723",`),
			[]byte(`"appium_server_url": "",`))
		_, err := ParseRunConfig(cfg, "test")
		require.ErrorContains(t, err, "appium_server_url")
	})

	t.Run("deterministic engine skips llm validation", func(t *testing.T) {
		cfg := replaceOnce([]byte(validRunConfigJSON()),
			[]byte(`"type": "llm"`),
			[]byte(`"type": "deterministic"`))
		cfg = replaceOnce(cfg,
			[]byte(`"model": "gpt-4o-mini",`),
			[]byte(`"model": "",`))
		parsed, err := ParseRunConfig(cfg, "test")
		require.NoError(t, err)
		assert.Equal(t, EngineDeterministic, parsed.Engine.Type)
	})
}

func replaceOnce(doc, old, new []byte) []byte {
	return []byte(replaceString(string(doc), string(old), string(new)))
}

func replaceString(doc, old, new string) string {
	idx := indexOf(doc, old)
	if idx < 0 {
		panic("test fixture does not contain: " + old)
	}
	return doc[:idx] + new + doc[idx+len(old):]
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func TestLoadRunConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.json")
	require.NoError(t, os.WriteFile(path, []byte(validRunConfigJSON()), 0o644))

	cfg, err := LoadRunConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.MaxActions)

	_, err = LoadRunConfig(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}

func TestLoadCapabilities(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "caps.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"capabilities": {"alwaysMatch": {"platformName": "Android"}}}`), 0o644))

	caps, err := LoadCapabilities(path)
	require.NoError(t, err)
	assert.Contains(t, caps, "capabilities")

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{}`), 0o644))
	_, err = LoadCapabilities(empty)
	require.Error(t, err)
}
