// File: internal/screen/classify.go
package screen

import "strings"

// Type is the coarse screen classification driving the decision engines.
type Type string

const (
	TypeDiscoverCard Type = "discover_card"
	TypeChat         Type = "chat"
	TypeTabShell     Type = "tab_shell"
	TypeMatchesEmpty Type = "matches_empty"
	TypeOverlayRose  Type = "overlay_rose_sheet"
	TypeLikePaywall  Type = "like_paywall"
	TypeUnknown      Type = "unknown"
)

// Classify maps observed strings to exactly one screen type. Blocking
// surfaces (paywall, rose sheet) are checked before content screens so an
// interstitial is never mistaken for the card underneath it. Pure and total:
// any input yields a type, with TypeUnknown as the catch-all.
func Classify(observed []string) Type {
	lowered := make([]string, len(observed))
	for i, s := range observed {
		lowered[i] = strings.ToLower(s)
	}

	contains := func(sub string) bool {
		for _, s := range lowered {
			if strings.Contains(s, sub) {
				return true
			}
		}
		return false
	}
	prefix := func(pre string) bool {
		for _, s := range lowered {
			if strings.HasPrefix(s, pre) {
				return true
			}
		}
		return false
	}
	exact := func(want string) bool {
		for _, s := range lowered {
			if s == want {
				return true
			}
		}
		return false
	}

	if contains("out of free likes") {
		return TypeLikePaywall
	}
	if (contains("close sheet") && contains("rose")) || contains("catch their eye by sending a rose") {
		return TypeOverlayRose
	}
	if contains("no matches yet") || contains("when a like is mutual") {
		return TypeMatchesEmpty
	}

	likeSignal := prefix("like ") || contains("send like with message")
	passSignal := prefix("skip ") || exact("skip") || contains("undo the previous pass rating")
	composerSignal := contains("edit comment") || contains("add a comment") || contains("send like with message")
	if (likeSignal && passSignal) || composerSignal {
		return TypeDiscoverCard
	}

	if contains("type a message") || exact("send") {
		return TypeChat
	}
	if exact("matches") && exact("discover") {
		return TypeTabShell
	}
	return TypeUnknown
}
