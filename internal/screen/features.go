// File: internal/screen/features.go
package screen

import (
	"sort"
	"strings"
)

// Features is the quality signal extracted from one discover card (or, for
// other screens, whatever partial signal the strings expose).
type Features struct {
	ProfileNameCandidate string   `json:"profile_name_candidate,omitempty"`
	PromptAnswer         string   `json:"prompt_answer,omitempty"`
	LikeTargets          []string `json:"like_targets"`
	Flags                []string `json:"quality_flags"`
}

// Flag values surfaced by ExtractFeatures.
const (
	FlagSelfieVerified = "selfie_verified"
	FlagActiveToday    = "active_today"
	FlagVoicePrompt    = "has_voice_prompt"
)

// ExtractFeatures scans the observed strings for quality signals. The first
// "<name>'s photo" caption wins for the name; the first "Prompt: ... Answer:"
// pair wins for the prompt answer. Flags come back sorted so fingerprints and
// logs are stable.
func ExtractFeatures(observed []string) Features {
	var f Features
	f.LikeTargets = []string{}
	flags := make(map[string]struct{})

	for _, s := range observed {
		trimmed := strings.TrimSpace(s)
		lowered := strings.ToLower(trimmed)

		if f.ProfileNameCandidate == "" &&
			(strings.HasSuffix(lowered, "'s photo") || strings.HasSuffix(lowered, "’s photo")) {
			name := s
			if i := strings.Index(name, "'s photo"); i >= 0 {
				name = name[:i]
			}
			if i := strings.Index(name, "’s photo"); i >= 0 {
				name = name[:i]
			}
			f.ProfileNameCandidate = strings.TrimSpace(name)
		}

		if f.PromptAnswer == "" && strings.HasPrefix(lowered, "prompt:") {
			// Cut on the lowered copy so "ANSWER:" and "answer:" both match.
			if i := strings.Index(lowered, "answer:"); i >= 0 {
				f.PromptAnswer = strings.TrimSpace(trimmed[i+len("answer:"):])
			}
		}

		if strings.HasPrefix(lowered, "like ") {
			f.LikeTargets = append(f.LikeTargets, s)
		}
		if strings.Contains(lowered, "selfie verified") {
			flags[FlagSelfieVerified] = struct{}{}
		}
		if strings.Contains(lowered, "active today") {
			flags[FlagActiveToday] = struct{}{}
		}
		if strings.Contains(lowered, "voice prompt") {
			flags[FlagVoicePrompt] = struct{}{}
		}
	}

	f.Flags = make([]string, 0, len(flags))
	for flag := range flags {
		f.Flags = append(f.Flags, flag)
	}
	sort.Strings(f.Flags)
	return f
}
