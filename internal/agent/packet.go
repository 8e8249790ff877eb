// File: internal/agent/packet.go
package agent

import (
	"github.com/xkilldash9x/matchpilot/internal/screen"
)

// Limits snapshots how much quota remains at decision time.
type Limits struct {
	LikesRemaining    int `json:"likes_remaining"`
	PassesRemaining   int `json:"passes_remaining"`
	MessagesRemaining int `json:"messages_remaining"`
}

// Packet is the decision input for one tick: everything an engine (rule
// table or LLM) is allowed to see. It carries no driver handles so a packet
// can be persisted and replayed offline.
type Packet struct {
	Timestamp        string          `json:"ts"`
	Iteration        int             `json:"iteration"`
	ScreenType       screen.Type     `json:"screen_type"`
	PackageName      string          `json:"package_name,omitempty"`
	QualityScore     int             `json:"quality_score_v1"`
	QualityFeatures  screen.Features `json:"quality_features"`
	AvailableActions []Action        `json:"available_actions"`
	ObservedStrings  []string        `json:"observed_strings"`
	ScreenshotPath   string          `json:"packet_screenshot_path,omitempty"`
	XMLPath          string          `json:"packet_xml_path,omitempty"`
	Limits           Limits          `json:"limits"`
}

// Decision is one engine verdict for a packet.
type Decision struct {
	Action      Action
	Reason      string
	MessageText string
	// TargetID optionally names the observed element the decision acts on.
	// The executor still resolves via locator candidates; this is audit data.
	TargetID string
}

func (p Packet) hasAction(a Action) bool {
	for _, candidate := range p.AvailableActions {
		if candidate == a {
			return true
		}
	}
	return false
}
