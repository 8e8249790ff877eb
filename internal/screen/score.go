// File: internal/screen/score.go
package screen

// Score weights. Chosen so a well-filled discover card lands in the high 80s
// without saturating on any single signal.
const (
	scoreDiscoverCard   = 20
	scoreSelfieVerified = 20
	scoreActiveToday    = 15
	scoreVoicePrompt    = 10
	scorePromptAnswer   = 15
	scorePerLikeTarget  = 8
	scoreProfileName    = 8
	maxLikeTargetsCount = 3
)

// Score collapses the features into a deterministic 0..100 quality score.
// An empty matches screen always scores zero regardless of stray signals.
func Score(screenType Type, f Features) int {
	if screenType == TypeMatchesEmpty {
		return 0
	}

	score := 0
	if screenType == TypeDiscoverCard {
		score += scoreDiscoverCard
	}
	for _, flag := range f.Flags {
		switch flag {
		case FlagSelfieVerified:
			score += scoreSelfieVerified
		case FlagActiveToday:
			score += scoreActiveToday
		case FlagVoicePrompt:
			score += scoreVoicePrompt
		}
	}
	if f.PromptAnswer != "" {
		score += scorePromptAnswer
	}
	if n := len(f.LikeTargets); n > 0 {
		if n > maxLikeTargetsCount {
			n = maxLikeTargetsCount
		}
		score += n * scorePerLikeTarget
	}
	if f.ProfileNameCandidate != "" {
		score += scoreProfileName
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}
