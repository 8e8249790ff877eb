// File: internal/screen/fingerprint.go
package screen

import "strings"

// Fingerprint compresses an observation into a stable key used to detect
// whether an action actually changed the screen. Only the leading slices of
// flags and strings participate so minor tail churn (clock text, badges)
// does not mask a stuck UI.
func Fingerprint(screenType Type, f Features, observed []string) string {
	flags := f.Flags
	if len(flags) > 6 {
		flags = flags[:6]
	}
	head := observed
	if len(head) > 12 {
		head = head[:12]
	}
	parts := []string{
		string(screenType),
		f.ProfileNameCandidate,
		f.PromptAnswer,
		strings.Join(flags, "|"),
		strings.Join(head, "|"),
	}
	return strings.Join(parts, "||")
}
