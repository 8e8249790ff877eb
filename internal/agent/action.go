// File: internal/agent/action.go

// Package agent implements the observe-decide-execute-validate control loop
// that drives the dating app UI through an Appium session.
package agent

// Action is one executable step the loop can take in a tick.
type Action string

const (
	ActionGotoDiscover   Action = "goto_discover"
	ActionGotoMatches    Action = "goto_matches"
	ActionGotoLikesYou   Action = "goto_likes_you"
	ActionGotoStandouts  Action = "goto_standouts"
	ActionGotoProfileHub Action = "goto_profile_hub"
	ActionOpenThread     Action = "open_thread"
	ActionLike           Action = "like"
	ActionPass           Action = "pass"
	ActionSendMessage    Action = "send_message"
	ActionBack           Action = "back"
	ActionDismissOverlay Action = "dismiss_overlay"
	ActionWait           Action = "wait"

	// ActionError is never decided; the executor records it when a decided
	// action fails so the log keeps one entry per tick.
	ActionError Action = "error"
)

// CatalogEntry documents one action for the LLM payload and the CLI.
type CatalogEntry struct {
	Action      Action `json:"action"`
	HumanAction string `json:"human_action"`
	Description string `json:"description"`
}

var actionCatalog = []CatalogEntry{
	{ActionGotoDiscover, "Tap Discover tab", "Navigate to Discover where swiping cards is possible."},
	{ActionGotoMatches, "Tap Matches tab", "Navigate to Matches to review conversations."},
	{ActionGotoLikesYou, "Tap Likes You tab", "Navigate to Likes You surface."},
	{ActionGotoStandouts, "Tap Standouts tab", "Navigate to Standouts surface."},
	{ActionGotoProfileHub, "Tap Profile tab", "Navigate to profile/settings tab."},
	{ActionOpenThread, "Tap a match thread", "Open a conversation thread in Matches."},
	{ActionLike, "Tap Like on current card item", "Like the current profile card/prompt/photo/voice item."},
	{ActionPass, "Tap Skip/Pass", "Skip the current profile card."},
	{ActionSendMessage, "Type and send a message", "Send a chat message in an open thread."},
	{ActionBack, "Tap Android back", "Dismiss overlays/modals or navigate one level back."},
	{ActionDismissOverlay, "Tap overlay close affordance", "Close visible overlays (for example rose or paywall sheets) without Android back."},
	{ActionWait, "Observe", "Take no action this iteration."},
}

// ActionCatalog returns a copy of the full action vocabulary.
func ActionCatalog() []CatalogEntry {
	out := make([]CatalogEntry, len(actionCatalog))
	copy(out, actionCatalog)
	return out
}

// tapActionLocatorRoles maps simple tap actions to the locator role that
// executes them. like/pass/send_message/back/wait have dedicated handling.
var tapActionLocatorRoles = map[Action]string{
	ActionGotoDiscover:   "discover_tab",
	ActionGotoMatches:    "matches_tab",
	ActionGotoLikesYou:   "likes_you_tab",
	ActionGotoStandouts:  "standouts_tab",
	ActionGotoProfileHub: "profile_hub_tab",
	ActionOpenThread:     "open_thread",
	ActionDismissOverlay: "overlay_close",
}
