// File: internal/agent/llm.go
package agent

import (
	"context"
	"fmt"
	"strings"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/matchpilot/internal/llmclient"
	"github.com/xkilldash9x/matchpilot/internal/llmutil"
	"github.com/xkilldash9x/matchpilot/internal/policy"
)

const llmSystemPrompt = "You are an autonomous dating app action selector and first-message writer. " +
	"Decide the safest next action for the current screen. " +
	"Return strict JSON with keys: action (string), reason (string), message_text (string|null), " +
	"and optionally target_id (string) naming the on-screen element you are acting on. " +
	"Action must be exactly one of available_actions. " +
	"Respect profile persona_spec and hard_boundaries. " +
	"If action is send_message, provide concise message_text that follows opener_strategy " +
	"and max_message_chars. If action is not send_message, message_text must be null. " +
	"Do not include any additional keys."

// llmDecision mirrors the JSON contract the model is instructed to return.
type llmDecision struct {
	Action      string  `json:"action"`
	Reason      string  `json:"reason"`
	MessageText *string `json:"message_text"`
	TargetID    *string `json:"target_id"`
}

// llmUserPayload is the single text part of the user message.
type llmUserPayload struct {
	AvailableActions []Action       `json:"available_actions"`
	ActionCatalog    []CatalogEntry `json:"action_catalog"`
	CommandQuery     string         `json:"command_query,omitempty"`
	Profile          policy.Profile `json:"profile"`
	Packet           Packet         `json:"packet"`
}

// LLMEngineOptions carries the packet shaping knobs for the remote engine.
type LLMEngineOptions struct {
	MaxObservedStrings int
	IncludeScreenshot  bool
	ImageDetail        string
}

// llmDecide asks the chat model to pick the next action. Any transport,
// parse or contract violation returns an error; the loop's failure mode
// decides whether that aborts the run or falls back to the rule table.
func llmDecide(
	ctx context.Context,
	chat llmclient.ChatClient,
	packet Packet,
	prof policy.Profile,
	query string,
	screenshotPNG []byte,
	opts LLMEngineOptions,
) (Decision, error) {
	packetForLLM := packet
	if opts.MaxObservedStrings > 0 && len(packetForLLM.ObservedStrings) > opts.MaxObservedStrings {
		packetForLLM.ObservedStrings = packetForLLM.ObservedStrings[:opts.MaxObservedStrings]
	}

	payload := llmUserPayload{
		AvailableActions: packet.AvailableActions,
		ActionCatalog:    ActionCatalog(),
		CommandQuery:     query,
		Profile:          prof,
		Packet:           packetForLLM,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return Decision{}, fmt.Errorf("encode decision payload: %w", err)
	}

	parts := []llmclient.ContentPart{{Type: "text", Text: string(encoded)}}
	if opts.IncludeScreenshot && len(screenshotPNG) > 0 {
		parts = append(parts, llmclient.ContentPart{
			Type: "image_url",
			ImageURL: &llmclient.ImageURL{
				URL:    llmclient.PNGDataURL(screenshotPNG),
				Detail: opts.ImageDetail,
			},
		})
	}

	content, err := chat.Complete(ctx, llmclient.ChatRequest{
		System:    llmSystemPrompt,
		UserParts: parts,
		ForceJSON: true,
	})
	if err != nil {
		return Decision{}, err
	}

	parsed, err := llmutil.ParseJSONResponse[llmDecision](content)
	if err != nil {
		return Decision{}, err
	}

	action := Action(strings.TrimSpace(parsed.Action))
	if action == "" {
		return Decision{}, fmt.Errorf("llm decision: 'action' must be a non-empty string")
	}
	if !packet.hasAction(action) {
		return Decision{}, fmt.Errorf("llm decision: selected unavailable action %q, available=%v",
			action, packet.AvailableActions)
	}

	reason := strings.TrimSpace(parsed.Reason)
	if reason == "" {
		reason = "llm_selected_action"
	}

	messageText := ""
	if parsed.MessageText != nil {
		messageText = strings.TrimSpace(*parsed.MessageText)
		if messageText == "" {
			return Decision{}, fmt.Errorf("llm decision: 'message_text' must be a non-empty string when present")
		}
	}

	if action == ActionSendMessage {
		messageText = prof.NormalizeMessage(messageText, packet.QualityFeatures.ProfileNameCandidate)
	} else {
		// Keep the log shape deterministic for non-message actions.
		messageText = ""
	}

	targetID := ""
	if parsed.TargetID != nil {
		targetID = strings.TrimSpace(*parsed.TargetID)
	}

	return Decision{Action: action, Reason: reason, MessageText: messageText, TargetID: targetID}, nil
}
