// File: internal/agent/log.go
package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/matchpilot/internal/policy"
	"github.com/xkilldash9x/matchpilot/internal/screen"
)

// RecoveryReport records the foreground recovery attempt of one tick spent
// outside the target package.
type RecoveryReport struct {
	Enabled   bool   `json:"enabled"`
	Attempted bool   `json:"attempted"`
	Status    string `json:"status"`
	Component string `json:"component,omitempty"`
	Streak    int    `json:"outside_target_package_streak"`
}

// ActionLogEntry is the audit record of one tick. Every tick appends exactly
// one entry regardless of outcome, so the log length always equals the
// iteration count.
type ActionLogEntry struct {
	Timestamp   string      `json:"ts"`
	Iteration   int         `json:"iteration"`
	PackageName string      `json:"package_name,omitempty"`
	ScreenType  screen.Type `json:"screen_type"`

	QualityScore         int             `json:"quality_score_v1"`
	QualityFlags         []string        `json:"quality_flags"`
	ProfileNameCandidate string          `json:"profile_name_candidate,omitempty"`
	QualityFeatures      screen.Features `json:"quality_features"`
	ObservedStrings      []string        `json:"observed_strings,omitempty"`

	Decision         Action          `json:"decision"`
	Reason           string          `json:"reason"`
	DryRun           bool            `json:"dry_run"`
	AvailableActions []Action        `json:"available_actions,omitempty"`
	MatchedLocator   *policy.Locator `json:"matched_locator,omitempty"`
	MessageText      string          `json:"message_text,omitempty"`
	TargetID         string          `json:"target_id,omitempty"`

	PacketScreenshotPath     string `json:"packet_screenshot_path,omitempty"`
	PacketXMLPath            string `json:"packet_xml_path,omitempty"`
	PostActionScreenshotPath string `json:"post_action_screenshot_path,omitempty"`

	ValidationStatus    string      `json:"validation_status"`
	ValidationReason    string      `json:"validation_reason"`
	PreFingerprint      string      `json:"pre_fingerprint,omitempty"`
	PostFingerprint     string      `json:"post_fingerprint,omitempty"`
	PostScreenType      screen.Type `json:"post_screen_type,omitempty"`
	ConsecutiveFailures int         `json:"consecutive_validation_failures"`

	TargetPackage      string          `json:"target_package,omitempty"`
	ForegroundRecovery *RecoveryReport `json:"foreground_recovery,omitempty"`
}

// Validation status values recorded per tick.
const (
	ValidationPassed        = "passed"
	ValidationFailed        = "failed"
	ValidationSkipped       = "skipped"
	ValidationSkippedDryRun = "skipped_dry_run"
)

func artifactTimestamp() string {
	return time.Now().Format("20060102-150405.000000")
}

// artifactPath builds a collision-resistant file path under dir. The stem is
// sanitized to alphanumerics, dash and underscore.
func artifactPath(dir, stem, ext string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(stem) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	safe := b.String()
	if safe == "" {
		safe = "artifact"
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%s.%s", safe, artifactTimestamp(), strings.TrimPrefix(ext, ".")))
}

// runLog accumulates the action log and streams the packet log. Owned by the
// loop goroutine.
type runLog struct {
	entries       []ActionLogEntry
	packetLog     *os.File
	packetLogPath string
}

func newRunLog(artifactsDir string, persistPacketLog bool) (*runLog, error) {
	rl := &runLog{}
	if persistPacketLog {
		rl.packetLogPath = artifactPath(artifactsDir, "live_packet_log", "jsonl")
		fh, err := os.Create(rl.packetLogPath)
		if err != nil {
			return nil, fmt.Errorf("create packet log: %w", err)
		}
		rl.packetLog = fh
	}
	return rl, nil
}

// Append records the entry and streams it to the packet log when enabled.
func (rl *runLog) Append(entry ActionLogEntry) error {
	rl.entries = append(rl.entries, entry)
	if rl.packetLog == nil {
		return nil
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode packet log entry: %w", err)
	}
	if _, err := rl.packetLog.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write packet log entry: %w", err)
	}
	return nil
}

// Flush writes the complete action log as a JSON array and closes the
// packet log. The action log is always written, even for aborted runs.
func (rl *runLog) Flush(artifactsDir string) (string, error) {
	logPath := artifactPath(artifactsDir, "live_action_log", "json")
	encoded, err := json.MarshalIndent(rl.entries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode action log: %w", err)
	}
	if err := os.WriteFile(logPath, encoded, 0o644); err != nil {
		return "", fmt.Errorf("write action log: %w", err)
	}
	if rl.packetLog != nil {
		if err := rl.packetLog.Close(); err != nil {
			return logPath, fmt.Errorf("close packet log: %w", err)
		}
		rl.packetLog = nil
	}
	return logPath, nil
}
