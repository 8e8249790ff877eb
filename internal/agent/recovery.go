// File: internal/agent/recovery.go
package agent

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// ForegroundRecovery brings the target app back when something else takes
// the screen (notifications, system dialogs, app switches).
type ForegroundRecovery interface {
	// Foreground launches the target activity and returns the component
	// string that was started.
	Foreground(ctx context.Context, packageName, activityName string) (string, error)
}

// TextInput types into the currently focused field outside the WebDriver
// protocol. Used when a composer is not exposed as an editable element.
type TextInput interface {
	InputText(ctx context.Context, text string) error
}

// ADBBridge shells out to adb for the device operations the WebDriver
// protocol cannot express reliably.
type ADBBridge struct{}

var adbTextAllowed = regexp.MustCompile(`[^A-Za-z0-9 @._,!?'-]`)

// ResolveActivityComponent turns an activity name into a launchable
// package/activity component.
func ResolveActivityComponent(packageName, activityName string) (string, error) {
	activity := strings.TrimSpace(activityName)
	if activity == "" {
		return "", fmt.Errorf("target activity must be non-empty when foreground recovery is enabled")
	}
	if strings.Contains(activity, "/") {
		return activity, nil
	}
	return packageName + "/" + activity, nil
}

// Foreground starts the target activity via `adb shell am start`.
func (ADBBridge) Foreground(ctx context.Context, packageName, activityName string) (string, error) {
	component, err := ResolveActivityComponent(packageName, activityName)
	if err != nil {
		return "", err
	}
	cmd := exec.CommandContext(ctx, "adb", "shell", "am", "start", "-n", component)
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("foreground app via adb start (%s): %w", component, err)
	}
	return component, nil
}

// SanitizeADBText normalizes text for `adb shell input text`: collapse
// whitespace, drop characters that do not survive the shell, encode spaces.
func SanitizeADBText(text string) (string, error) {
	cleaned := strings.Join(strings.Fields(text), " ")
	cleaned = adbTextAllowed.ReplaceAllString(cleaned, " ")
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned == "" {
		return "", fmt.Errorf("cannot input empty text via adb")
	}
	return strings.ReplaceAll(cleaned, " ", "%s"), nil
}

// InputText types into the focused field via `adb shell input text`.
func (ADBBridge) InputText(ctx context.Context, text string) error {
	encoded, err := SanitizeADBText(text)
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, "adb", "shell", "input", "text", encoded)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("adb text input fallback: %w", err)
	}
	return nil
}
