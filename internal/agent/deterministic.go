// File: internal/agent/deterministic.go
package agent

import (
	"fmt"

	"github.com/xkilldash9x/matchpilot/internal/policy"
	"github.com/xkilldash9x/matchpilot/internal/screen"
)

// deterministicDecide is the rule-table engine. Evaluation order on a
// discover card is fixed: like quota, blocked keyword, required flags,
// message policy, like threshold, pass, back, wait. The first matching rule
// wins and the reason string names it.
func deterministicDecide(packet Packet, prof policy.Profile, state *runtimeState, directive Directive) Decision {
	screenType := packet.ScreenType
	score := packet.QualityScore
	features := packet.QualityFeatures

	templateMessage := func() string {
		rendered := policy.RenderTemplate(prof.Message.Template, features.ProfileNameCandidate)
		return prof.NormalizeMessage(rendered, features.ProfileNameCandidate)
	}

	if directive.ForceActionOnce != "" && !state.forceActionConsumed {
		forced := directive.ForceActionOnce
		if packet.hasAction(forced) {
			state.forceActionConsumed = true
			return Decision{Action: forced, Reason: "natural_language_forced_action"}
		}

		// Route toward prerequisite surfaces when the requested force action
		// is not immediately available.
		switch forced {
		case ActionSendMessage:
			if screenType == screen.TypeOverlayRose || screenType == screen.TypeLikePaywall {
				if packet.hasAction(ActionDismissOverlay) {
					return Decision{Action: ActionDismissOverlay, Reason: "forced_send_message_overlay_recovery_dismiss"}
				}
				if packet.hasAction(ActionBack) {
					return Decision{Action: ActionBack, Reason: "forced_send_message_overlay_recovery_back"}
				}
			}
			if packet.hasAction(ActionGotoDiscover) {
				return Decision{Action: ActionGotoDiscover, Reason: "forced_send_message_route_discover"}
			}
			if packet.hasAction(ActionOpenThread) {
				return Decision{Action: ActionOpenThread, Reason: "forced_send_message_route_open_thread"}
			}
			if packet.hasAction(ActionGotoMatches) {
				return Decision{Action: ActionGotoMatches, Reason: "forced_send_message_route_matches"}
			}
		case ActionOpenThread:
			if packet.hasAction(ActionGotoMatches) {
				return Decision{Action: ActionGotoMatches, Reason: "forced_open_thread_route_matches"}
			}
		case ActionLike, ActionPass:
			if packet.hasAction(ActionGotoDiscover) {
				return Decision{Action: ActionGotoDiscover, Reason: fmt.Sprintf("forced_%s_route_discover", forced)}
			}
		}
	}

	if directive.Goal == GoalExplore {
		return exploreDecide(packet, prof, state, templateMessage)
	}
	if directive.Goal == GoalMessage {
		return messageGoalDecide(packet, prof, state, templateMessage)
	}

	if screenType == screen.TypeDiscoverCard {
		blocked := prof.Swipe.BlocksPrompt(features.PromptAnswer)
		hasRequiredFlags := prof.Swipe.HasRequiredFlags(features.Flags)

		if state.likes >= prof.Swipe.MaxLikes {
			if packet.hasAction(ActionPass) && state.passes < prof.Swipe.MaxPasses {
				return Decision{Action: ActionPass, Reason: "like_quota_exhausted"}
			}
			return Decision{Action: ActionWait, Reason: "like_quota_exhausted_no_pass"}
		}

		if blocked {
			if packet.hasAction(ActionPass) && state.passes < prof.Swipe.MaxPasses {
				return Decision{Action: ActionPass, Reason: "blocked_prompt_keyword"}
			}
			return Decision{Action: ActionWait, Reason: "blocked_prompt_keyword_no_pass"}
		}

		if !hasRequiredFlags {
			if packet.hasAction(ActionPass) && state.passes < prof.Swipe.MaxPasses {
				return Decision{Action: ActionPass, Reason: "required_flags_missing"}
			}
			return Decision{Action: ActionWait, Reason: "required_flags_missing_no_pass"}
		}

		if prof.Message.Enabled &&
			state.messages < prof.Message.MaxMessages &&
			packet.hasAction(ActionSendMessage) &&
			score >= prof.Message.MinScoreToMessage {
			return Decision{
				Action:      ActionSendMessage,
				Reason:      "discover_profile_message_policy",
				MessageText: templateMessage(),
			}
		}

		if score >= prof.Swipe.MinScoreToLike && packet.hasAction(ActionLike) {
			return Decision{Action: ActionLike, Reason: fmt.Sprintf("score>=%d", prof.Swipe.MinScoreToLike)}
		}

		if packet.hasAction(ActionPass) && state.passes < prof.Swipe.MaxPasses {
			return Decision{Action: ActionPass, Reason: fmt.Sprintf("score<%d", prof.Swipe.MinScoreToLike)}
		}

		if packet.hasAction(ActionBack) {
			return Decision{Action: ActionBack, Reason: "discover_no_pass_recovery_back"}
		}

		return Decision{Action: ActionWait, Reason: "no_like_or_pass_available"}
	}

	if screenType == screen.TypeOverlayRose {
		if packet.hasAction(ActionDismissOverlay) {
			return Decision{Action: ActionDismissOverlay, Reason: "swipe_goal_overlay_recovery_dismiss"}
		}
		if packet.hasAction(ActionBack) {
			return Decision{Action: ActionBack, Reason: "swipe_goal_overlay_recovery_back"}
		}
	}
	if screenType == screen.TypeLikePaywall {
		if packet.hasAction(ActionDismissOverlay) {
			return Decision{Action: ActionDismissOverlay, Reason: "swipe_goal_like_paywall_recovery_dismiss"}
		}
		if packet.hasAction(ActionBack) {
			return Decision{Action: ActionBack, Reason: "swipe_goal_like_paywall_recovery_back"}
		}
	}

	if screenType == screen.TypeChat {
		if prof.Message.Enabled &&
			state.messages < prof.Message.MaxMessages &&
			packet.hasAction(ActionSendMessage) &&
			score >= prof.Message.MinScoreToMessage {
			return Decision{
				Action:      ActionSendMessage,
				Reason:      "chat_surface_profile_message_policy",
				MessageText: templateMessage(),
			}
		}
		if packet.hasAction(ActionGotoDiscover) {
			return Decision{Action: ActionGotoDiscover, Reason: "chat_surface_return_discover"}
		}
		if packet.hasAction(ActionBack) {
			return Decision{Action: ActionBack, Reason: "chat_surface_back"}
		}
		return Decision{Action: ActionWait, Reason: "chat_surface_no_available_navigation"}
	}

	if packet.hasAction(ActionGotoDiscover) {
		return Decision{Action: ActionGotoDiscover, Reason: "default_route_discover"}
	}
	if screenType == screen.TypeUnknown && packet.hasAction(ActionBack) {
		return Decision{Action: ActionBack, Reason: "unknown_surface_recovery_back"}
	}

	return Decision{Action: ActionWait, Reason: "default_wait"}
}

func exploreDecide(packet Packet, prof policy.Profile, state *runtimeState, templateMessage func() string) Decision {
	screenType := packet.ScreenType
	score := packet.QualityScore
	features := packet.QualityFeatures

	if screenType == screen.TypeOverlayRose {
		if packet.hasAction(ActionDismissOverlay) {
			return Decision{Action: ActionDismissOverlay, Reason: "explore_overlay_recovery_dismiss"}
		}
		if packet.hasAction(ActionBack) {
			return Decision{Action: ActionBack, Reason: "explore_overlay_recovery_back"}
		}
	}

	if screenType == screen.TypeDiscoverCard {
		blocked := prof.Swipe.BlocksPrompt(features.PromptAnswer)
		hasRequiredFlags := prof.Swipe.HasRequiredFlags(features.Flags)

		if prof.Message.Enabled &&
			state.messages < prof.Message.MaxMessages &&
			packet.hasAction(ActionSendMessage) &&
			score >= prof.Message.MinScoreToMessage &&
			hasRequiredFlags && !blocked {
			return Decision{
				Action:      ActionSendMessage,
				Reason:      "explore_discover_message_opportunity",
				MessageText: templateMessage(),
			}
		}
		if score >= prof.Swipe.MinScoreToLike && hasRequiredFlags && !blocked &&
			packet.hasAction(ActionLike) && state.likes < prof.Swipe.MaxLikes {
			return Decision{Action: ActionLike, Reason: "explore_scored_like"}
		}
		if packet.hasAction(ActionPass) && state.passes < prof.Swipe.MaxPasses {
			return Decision{Action: ActionPass, Reason: "explore_fallback_pass"}
		}
	}

	if prof.Message.Enabled && state.messages < prof.Message.MaxMessages && screenType != screen.TypeDiscoverCard {
		if packet.hasAction(ActionSendMessage) {
			return Decision{
				Action:      ActionSendMessage,
				Reason:      "explore_message_opportunity",
				MessageText: templateMessage(),
			}
		}
		if packet.hasAction(ActionOpenThread) {
			return Decision{Action: ActionOpenThread, Reason: "explore_open_thread"}
		}
	}

	navCycle := []Action{ActionGotoMatches, ActionGotoLikesYou, ActionGotoStandouts, ActionGotoProfileHub, ActionGotoDiscover}
	for offset := 0; offset < len(navCycle); offset++ {
		idx := (state.exploreNavIndex + offset) % len(navCycle)
		candidate := navCycle[idx]
		if packet.hasAction(candidate) && candidate != state.lastAction {
			state.exploreNavIndex = (idx + 1) % len(navCycle)
			return Decision{Action: candidate, Reason: "explore_nav_cycle"}
		}
	}

	for _, candidate := range packet.AvailableActions {
		if candidate != ActionWait && candidate != state.lastAction {
			return Decision{Action: candidate, Reason: "explore_any_available"}
		}
	}
	return Decision{Action: ActionWait, Reason: "explore_wait"}
}

func messageGoalDecide(packet Packet, prof policy.Profile, state *runtimeState, templateMessage func() string) Decision {
	screenType := packet.ScreenType

	if state.consecutiveFailures >= 2 {
		if screenType == screen.TypeDiscoverCard && packet.hasAction(ActionBack) {
			return Decision{Action: ActionBack, Reason: "message_goal_validation_recovery_back"}
		}
		if packet.hasAction(ActionGotoDiscover) {
			return Decision{Action: ActionGotoDiscover, Reason: "message_goal_validation_recovery_discover"}
		}
	}
	if screenType == screen.TypeOverlayRose {
		if packet.hasAction(ActionDismissOverlay) {
			return Decision{Action: ActionDismissOverlay, Reason: "message_goal_overlay_recovery_dismiss"}
		}
		if packet.hasAction(ActionBack) {
			return Decision{Action: ActionBack, Reason: "message_goal_overlay_recovery_back"}
		}
	}
	if screenType == screen.TypeLikePaywall {
		if packet.hasAction(ActionDismissOverlay) {
			return Decision{Action: ActionDismissOverlay, Reason: "message_goal_like_paywall_recovery_dismiss"}
		}
		if packet.hasAction(ActionBack) {
			return Decision{Action: ActionBack, Reason: "message_goal_like_paywall_recovery_back"}
		}
	}
	if screenType == screen.TypeDiscoverCard {
		if state.consecutiveFailures >= 2 && packet.hasAction(ActionBack) {
			return Decision{Action: ActionBack, Reason: "message_goal_discover_validation_recovery_back"}
		}
		if packet.hasAction(ActionSendMessage) && state.messages < prof.Message.MaxMessages {
			return Decision{
				Action:      ActionSendMessage,
				Reason:      "message_goal_discover_message_surface",
				MessageText: templateMessage(),
			}
		}
		if packet.hasAction(ActionGotoMatches) {
			return Decision{Action: ActionGotoMatches, Reason: "message_goal_route_matches"}
		}
	}
	if screenType == screen.TypeMatchesEmpty {
		if packet.hasAction(ActionGotoDiscover) {
			return Decision{Action: ActionGotoDiscover, Reason: "message_goal_no_matches_route_discover"}
		}
		return Decision{Action: ActionWait, Reason: "message_goal_no_matches_available"}
	}
	if screenType == screen.TypeTabShell && packet.hasAction(ActionGotoDiscover) {
		return Decision{Action: ActionGotoDiscover, Reason: "message_goal_tab_shell_route_discover"}
	}
	if packet.hasAction(ActionSendMessage) && state.messages < prof.Message.MaxMessages {
		return Decision{
			Action:      ActionSendMessage,
			Reason:      "message_goal_chat_surface",
			MessageText: templateMessage(),
		}
	}
	if packet.hasAction(ActionOpenThread) {
		return Decision{Action: ActionOpenThread, Reason: "message_goal_open_thread"}
	}
	if packet.hasAction(ActionGotoMatches) {
		return Decision{Action: ActionGotoMatches, Reason: "message_goal_navigate_matches"}
	}
	if packet.hasAction(ActionGotoDiscover) {
		return Decision{Action: ActionGotoDiscover, Reason: "message_goal_fallback_discover"}
	}
	if packet.hasAction(ActionBack) {
		return Decision{Action: ActionBack, Reason: "message_goal_back_recovery"}
	}
	return Decision{Action: ActionWait, Reason: "message_goal_no_action_available"}
}
