// File: internal/config/runconfig.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/matchpilot/internal/policy"
)

// Decision engine selection.
const (
	EngineDeterministic = "deterministic"
	EngineLLM           = "llm"
)

// LLM failure handling.
const (
	FailureModeFail     = "fail"
	FailureModeFallback = "fallback_deterministic"
)

// Locator roles every run config must (or may) bind.
var (
	requiredLocatorRoles = []string{
		"discover_tab", "matches_tab", "like", "pass",
		"open_thread", "message_input", "send",
	}
	optionalLocatorRoles = []string{
		"likes_you_tab", "standouts_tab", "profile_hub_tab",
		"overlay_close", "discover_message_input", "discover_send",
	}
)

// LLMConfig configures the remote decision engine.
type LLMConfig struct {
	Model              string        `json:"model"`
	Temperature        float64       `json:"temperature"`
	Timeout            time.Duration `json:"-"`
	TimeoutS           float64       `json:"timeout_s"`
	APIKeyEnv          string        `json:"api_key_env"`
	BaseURL            string        `json:"base_url"`
	IncludeScreenshot  bool          `json:"include_screenshot"`
	ImageDetail        string        `json:"image_detail"`
	MaxObservedStrings int           `json:"max_observed_strings"`
}

// DecisionEngineConfig selects the engine and its failure behavior.
type DecisionEngineConfig struct {
	Type        string    `json:"type"`
	FailureMode string    `json:"failure_mode"`
	LLM         LLMConfig `json:"llm"`
}

// ForegroundRecoveryConfig bounds how the loop reacts when the target app
// leaves the foreground.
type ForegroundRecoveryConfig struct {
	Enabled     bool          `json:"enabled"`
	MaxAttempts int           `json:"max_attempts"`
	Cooldown    time.Duration `json:"-"`
	CooldownS   float64       `json:"cooldown_s"`
}

// ValidationConfig controls post-action screen-change validation.
type ValidationConfig struct {
	Enabled                bool            `json:"enabled"`
	PostActionSleep        time.Duration   `json:"-"`
	PostActionSleepS       float64         `json:"post_action_sleep_s"`
	RequireScreenChangeFor []string        `json:"require_screen_change_for"`
	MaxConsecutiveFailures int             `json:"max_consecutive_failures"`
	mutating               map[string]bool `json:"-"`
}

// RequiresChange reports whether the named action must visibly change the
// screen to count as successful.
func (v ValidationConfig) RequiresChange(action string) bool {
	return v.mutating[action]
}

// RunConfig is the single JSON document describing one agent run: transport
// endpoints, target app, decision engine, budgets and the locator map.
type RunConfig struct {
	ServerURL        string `json:"appium_server_url"`
	CapabilitiesPath string `json:"capabilities_path"`
	ProfilePath      string `json:"profile_path"`
	CommandQuery     string `json:"command_query"`

	Engine DecisionEngineConfig `json:"decision_engine"`

	ArtifactsDir   string `json:"artifacts_dir"`
	TargetPackage  string `json:"target_package"`
	TargetActivity string `json:"target_activity"`

	Recovery ForegroundRecoveryConfig `json:"foreground_recovery"`

	DryRun      bool          `json:"dry_run"`
	MaxRuntime  time.Duration `json:"-"`
	MaxRuntimeS float64       `json:"max_runtime_s"`
	MaxActions  int           `json:"max_actions"`
	LoopSleep   time.Duration `json:"-"`
	LoopSleepS  float64       `json:"loop_sleep_s"`

	CaptureEachAction       bool `json:"capture_each_action"`
	PersistPacketLog        bool `json:"persist_packet_log"`
	PacketCaptureScreenshot bool `json:"packet_capture_screenshot"`
	PacketCaptureXML        bool `json:"packet_capture_xml"`

	Validation ValidationConfig `json:"validation"`

	Locators map[string]policy.Candidates `json:"locators"`
}

// LoadRunConfig reads, defaults and validates a run config JSON document.
func LoadRunConfig(path string) (RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, fmt.Errorf("%s: read run config: %w", path, err)
	}
	return ParseRunConfig(data, path)
}

// ParseRunConfig decodes a run config document; context names the source in
// errors. Validation is eager: a broken config never reaches the loop.
func ParseRunConfig(data []byte, context string) (RunConfig, error) {
	cfg := defaultRunConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, fmt.Errorf("%s: run config must be a JSON object: %w", context, err)
	}
	cfg.applyDurations()
	if err := cfg.Validate(context); err != nil {
		return RunConfig{}, err
	}
	return cfg, nil
}

func defaultRunConfig() RunConfig {
	return RunConfig{
		ServerURL:      "http://127.0.0.1:4723",
		ArtifactsDir:   "artifacts/live_hinge",
		TargetPackage:  "co.hinge.app",
		TargetActivity: ".ui.AppActivity",
		Engine: DecisionEngineConfig{
			Type:        EngineDeterministic,
			FailureMode: FailureModeFallback,
			LLM: LLMConfig{
				Model:              "gpt-4o-mini",
				Temperature:        0.2,
				TimeoutS:           45,
				APIKeyEnv:          "OPENAI_API_KEY",
				BaseURL:            "https://api.openai.com",
				ImageDetail:        "low",
				MaxObservedStrings: 120,
			},
		},
		Recovery: ForegroundRecoveryConfig{
			Enabled:     true,
			MaxAttempts: 3,
			CooldownS:   1,
		},
		MaxRuntimeS: 300,
		MaxActions:  30,
		LoopSleepS:  1.0,
		Validation: ValidationConfig{
			Enabled:          true,
			PostActionSleepS: 0.8,
			RequireScreenChangeFor: []string{
				"like", "pass", "open_thread", "send_message", "back", "dismiss_overlay",
			},
			MaxConsecutiveFailures: 4,
		},
		PersistPacketLog: true,
		PacketCaptureXML: true,
	}
}

func (c *RunConfig) applyDurations() {
	c.MaxRuntime = secondsToDuration(c.MaxRuntimeS)
	c.LoopSleep = secondsToDuration(c.LoopSleepS)
	c.Engine.LLM.Timeout = secondsToDuration(c.Engine.LLM.TimeoutS)
	c.Recovery.Cooldown = secondsToDuration(c.Recovery.CooldownS)
	c.Validation.PostActionSleep = secondsToDuration(c.Validation.PostActionSleepS)
	c.Validation.mutating = make(map[string]bool, len(c.Validation.RequireScreenChangeFor))
	for _, action := range c.Validation.RequireScreenChangeFor {
		c.Validation.mutating[strings.TrimSpace(action)] = true
	}
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Validate checks the document end to end.
func (c *RunConfig) Validate(context string) error {
	if strings.TrimSpace(c.ServerURL) == "" {
		return fmt.Errorf("%s: 'appium_server_url' is required", context)
	}
	if strings.TrimSpace(c.CapabilitiesPath) == "" {
		return fmt.Errorf("%s: 'capabilities_path' is required", context)
	}
	if strings.TrimSpace(c.ProfilePath) == "" {
		return fmt.Errorf("%s: 'profile_path' is required", context)
	}
	if strings.TrimSpace(c.TargetPackage) == "" {
		return fmt.Errorf("%s: 'target_package' is required", context)
	}
	if strings.TrimSpace(c.ArtifactsDir) == "" {
		return fmt.Errorf("%s: 'artifacts_dir' must not be empty", context)
	}

	switch c.Engine.Type {
	case EngineDeterministic, EngineLLM:
	default:
		return fmt.Errorf("%s: decision_engine.type must be %q or %q, got %q",
			context, EngineDeterministic, EngineLLM, c.Engine.Type)
	}
	switch c.Engine.FailureMode {
	case FailureModeFail, FailureModeFallback:
	default:
		return fmt.Errorf("%s: decision_engine.failure_mode must be %q or %q, got %q",
			context, FailureModeFail, FailureModeFallback, c.Engine.FailureMode)
	}
	if c.Engine.Type == EngineLLM {
		llm := c.Engine.LLM
		if strings.TrimSpace(llm.Model) == "" {
			return fmt.Errorf("%s: decision_engine.llm.model is required", context)
		}
		if strings.TrimSpace(llm.APIKeyEnv) == "" {
			return fmt.Errorf("%s: decision_engine.llm.api_key_env is required", context)
		}
		if llm.Timeout <= 0 {
			return fmt.Errorf("%s: decision_engine.llm.timeout_s must be > 0", context)
		}
		switch llm.ImageDetail {
		case "low", "high", "auto":
		default:
			return fmt.Errorf("%s: decision_engine.llm.image_detail must be low, high or auto", context)
		}
		if llm.MaxObservedStrings <= 0 {
			return fmt.Errorf("%s: decision_engine.llm.max_observed_strings must be > 0", context)
		}
	}

	if c.MaxActions <= 0 {
		return fmt.Errorf("%s: 'max_actions' must be > 0", context)
	}
	if c.MaxRuntime <= 0 {
		return fmt.Errorf("%s: 'max_runtime_s' must be > 0", context)
	}
	if c.LoopSleep < 0 {
		return fmt.Errorf("%s: 'loop_sleep_s' must be >= 0", context)
	}
	if c.Recovery.Enabled && c.Recovery.MaxAttempts <= 0 {
		return fmt.Errorf("%s: foreground_recovery.max_attempts must be > 0", context)
	}
	if c.Validation.Enabled {
		if c.Validation.PostActionSleep < 0 {
			return fmt.Errorf("%s: validation.post_action_sleep_s must be >= 0", context)
		}
		if c.Validation.MaxConsecutiveFailures <= 0 {
			return fmt.Errorf("%s: validation.max_consecutive_failures must be > 0", context)
		}
	}

	for _, role := range requiredLocatorRoles {
		candidates, ok := c.Locators[role]
		if !ok || len(candidates) == 0 {
			return fmt.Errorf("%s: locators.%s requires at least one candidate", context, role)
		}
	}
	known := make(map[string]struct{}, len(requiredLocatorRoles)+len(optionalLocatorRoles))
	for _, role := range requiredLocatorRoles {
		known[role] = struct{}{}
	}
	for _, role := range optionalLocatorRoles {
		known[role] = struct{}{}
	}
	for role, candidates := range c.Locators {
		if _, ok := known[role]; !ok {
			return fmt.Errorf("%s: locators.%s is not a recognized role", context, role)
		}
		if err := candidates.Validate(); err != nil {
			return fmt.Errorf("%s: locators.%s: %w", context, role, err)
		}
	}
	return nil
}

// LoadCapabilities reads the raw desired-capabilities document used to open
// the Appium session. The shape is device specific and passed through as-is.
func LoadCapabilities(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: read capabilities: %w", path, err)
	}
	var caps map[string]interface{}
	if err := json.Unmarshal(data, &caps); err != nil {
		return nil, fmt.Errorf("%s: capabilities must be a JSON object: %w", path, err)
	}
	if len(caps) == 0 {
		return nil, fmt.Errorf("%s: capabilities must not be empty", path)
	}
	return caps, nil
}
