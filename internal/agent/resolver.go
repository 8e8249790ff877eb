// File: internal/agent/resolver.go
package agent

import (
	"context"
	"sort"

	"github.com/xkilldash9x/matchpilot/internal/policy"
	"github.com/xkilldash9x/matchpilot/internal/screen"
)

// Prober answers locator presence questions about the current screen.
// Satisfied by the Appium driver in production and by table fakes in tests.
type Prober interface {
	Has(ctx context.Context, candidates policy.Candidates) bool
}

// AvailableActions computes the action set an engine may choose from this
// tick. It is deliberately conservative: an action is offered only when its
// executing control is actually present, so a stale classification cannot
// produce an unexecutable decision. wait and back are always offered.
func AvailableActions(
	ctx context.Context,
	prober Prober,
	screenType screen.Type,
	locators map[string]policy.Candidates,
	messageEnabled bool,
) []Action {
	available := map[Action]struct{}{
		ActionWait: {},
		ActionBack: {},
	}

	has := func(role string) bool {
		candidates := locators[role]
		if len(candidates) == 0 {
			return false
		}
		return prober.Has(ctx, candidates)
	}

	hasLike := has("like")
	hasPass := has("pass")
	hasMessageInput := has("message_input")
	hasSend := has("send")
	discoverComposerConfigured := len(locators["discover_message_input"]) > 0 && len(locators["discover_send"]) > 0
	hasDiscoverInput := has("discover_message_input")
	hasDiscoverSend := has("discover_send")
	discoverSurfaceSignals := hasLike || hasPass || hasDiscoverInput || hasDiscoverSend
	hasOverlayClose := has("overlay_close")

	for action, role := range tapActionLocatorRoles {
		if action == ActionOpenThread || action == ActionDismissOverlay {
			continue
		}
		if has(role) {
			available[action] = struct{}{}
		}
	}

	if screenType == screen.TypeDiscoverCard {
		if hasLike {
			available[ActionLike] = struct{}{}
		}
		if hasPass {
			available[ActionPass] = struct{}{}
		}
		// Some UI variants support comment-with-like messaging from the card.
		if messageEnabled && hasLike && (discoverComposerConfigured || (hasMessageInput && hasSend)) {
			available[ActionSendMessage] = struct{}{}
		}
	}

	if (screenType == screen.TypeTabShell || screenType == screen.TypeMatchesEmpty) && !discoverSurfaceSignals {
		if has("open_thread") {
			available[ActionOpenThread] = struct{}{}
		}
	}

	if screenType == screen.TypeChat && messageEnabled && hasMessageInput && hasSend {
		available[ActionSendMessage] = struct{}{}
	}

	if (screenType == screen.TypeOverlayRose || screenType == screen.TypeLikePaywall) && hasOverlayClose {
		available[ActionDismissOverlay] = struct{}{}
	}

	out := make([]Action, 0, len(available))
	for action := range available {
		out = append(out, action)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
