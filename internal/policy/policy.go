// File: internal/policy/policy.go
package policy

import (
	"fmt"
	"os"
	"sort"
	"strings"

	json "github.com/json-iterator/go"
)

// SwipePolicy bounds swiping behavior for one run. Values are immutable once
// loaded; directive overrides produce a new value via Profile.Apply.
type SwipePolicy struct {
	MinScoreToLike  int      `json:"min_quality_score_like"`
	RequireFlagsAll []string `json:"require_flags_all"`
	BlockedKeywords []string `json:"block_prompt_keywords"`
	MaxLikes        int      `json:"max_likes"`
	MaxPasses       int      `json:"max_passes"`
}

// MessagePolicy bounds outbound messaging for one run.
type MessagePolicy struct {
	Enabled           bool   `json:"enabled"`
	MinScoreToMessage int    `json:"min_quality_score_to_message"`
	MaxMessages       int    `json:"max_messages"`
	Template          string `json:"template"`
}

// PersonaSpec constrains generated message text.
type PersonaSpec struct {
	Archetype        string   `json:"archetype"`
	Intent           string   `json:"intent"`
	ToneTraits       []string `json:"tone_traits"`
	HardBoundaries   []string `json:"hard_boundaries"`
	PreferredSignals []string `json:"preferred_signals"`
	AvoidSignals     []string `json:"avoid_signals"`
	OpenerStrategy   string   `json:"opener_strategy"`
	Examples         []string `json:"examples"`
	MaxMessageChars  int      `json:"max_message_chars"`
	RequireQuestion  bool     `json:"require_question"`
}

// Profile bundles the persona and both policies under a name, plus free-form
// criteria forwarded verbatim to the LLM engine.
type Profile struct {
	Name        string                 `json:"name"`
	Persona     PersonaSpec            `json:"persona_spec"`
	Swipe       SwipePolicy            `json:"swipe_policy"`
	Message     MessagePolicy          `json:"message_policy"`
	LLMCriteria map[string]interface{} `json:"llm_criteria"`
}

// HasRequiredFlags reports whether every required flag is present in the
// observed flag set.
func (s SwipePolicy) HasRequiredFlags(flags []string) bool {
	set := make(map[string]struct{}, len(flags))
	for _, f := range flags {
		set[f] = struct{}{}
	}
	for _, want := range s.RequireFlagsAll {
		if _, ok := set[want]; !ok {
			return false
		}
	}
	return true
}

// BlocksPrompt reports whether the (lower-cased) prompt answer contains any
// blocked keyword.
func (s SwipePolicy) BlocksPrompt(promptAnswer string) bool {
	lowered := strings.ToLower(promptAnswer)
	for _, k := range s.BlockedKeywords {
		if k != "" && strings.Contains(lowered, k) {
			return true
		}
	}
	return false
}

// rawProfile mirrors the profile JSON document before validation.
type rawProfile struct {
	Name        string                 `json:"name"`
	Persona     *rawPersona            `json:"persona_spec"`
	Swipe       *rawSwipe              `json:"swipe_policy"`
	Message     *rawMessage            `json:"message_policy"`
	LLMCriteria map[string]interface{} `json:"llm_criteria"`
}

type rawSwipe struct {
	MinScoreToLike  *int     `json:"min_quality_score_like"`
	RequireFlagsAll []string `json:"require_flags_all"`
	BlockedKeywords []string `json:"block_prompt_keywords"`
	MaxLikes        *int     `json:"max_likes"`
	MaxPasses       *int     `json:"max_passes"`
}

type rawMessage struct {
	Enabled           *bool   `json:"enabled"`
	MinScoreToMessage *int    `json:"min_quality_score_to_message"`
	MaxMessages       *int    `json:"max_messages"`
	Template          *string `json:"template"`
}

type rawPersona struct {
	Archetype        *string  `json:"archetype"`
	Intent           *string  `json:"intent"`
	ToneTraits       []string `json:"tone_traits"`
	HardBoundaries   []string `json:"hard_boundaries"`
	PreferredSignals []string `json:"preferred_signals"`
	AvoidSignals     []string `json:"avoid_signals"`
	OpenerStrategy   *string  `json:"opener_strategy"`
	Examples         []string `json:"examples"`
	MaxMessageChars  *int     `json:"max_message_chars"`
	RequireQuestion  *bool    `json:"require_question"`
}

// LoadProfile reads, defaults and validates a profile JSON document.
// Validation is eager and fail-fast: any malformed field aborts the run
// before the control loop starts.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("%s: read profile: %w", path, err)
	}
	return ParseProfile(data, path)
}

// ParseProfile decodes a profile document; context names the source in errors.
func ParseProfile(data []byte, context string) (Profile, error) {
	var raw rawProfile
	if err := json.Unmarshal(data, &raw); err != nil {
		return Profile{}, fmt.Errorf("%s: profile must be a JSON object: %w", context, err)
	}
	if raw.Swipe == nil {
		return Profile{}, fmt.Errorf("%s: 'swipe_policy' is required", context)
	}
	if raw.Message == nil {
		return Profile{}, fmt.Errorf("%s: 'message_policy' is required", context)
	}

	name := strings.TrimSpace(raw.Name)
	if name == "" {
		name = "agent_profile"
	}

	swipe := SwipePolicy{
		MinScoreToLike:  intOr(raw.Swipe.MinScoreToLike, 70),
		RequireFlagsAll: trimmedList(raw.Swipe.RequireFlagsAll),
		BlockedKeywords: loweredList(raw.Swipe.BlockedKeywords),
		MaxLikes:        intOr(raw.Swipe.MaxLikes, 20),
		MaxPasses:       intOr(raw.Swipe.MaxPasses, 120),
	}
	sort.Strings(swipe.RequireFlagsAll)
	if err := requirePositive(context, "swipe_policy.min_quality_score_like", swipe.MinScoreToLike); err != nil {
		return Profile{}, err
	}
	if err := requirePositive(context, "swipe_policy.max_likes", swipe.MaxLikes); err != nil {
		return Profile{}, err
	}
	if err := requirePositive(context, "swipe_policy.max_passes", swipe.MaxPasses); err != nil {
		return Profile{}, err
	}

	message := MessagePolicy{
		Enabled:           boolOr(raw.Message.Enabled, false),
		MinScoreToMessage: intOr(raw.Message.MinScoreToMessage, 85),
		MaxMessages:       intOr(raw.Message.MaxMessages, 5),
		Template:          stringOr(raw.Message.Template, "Hey {{name}}, how's your week going?"),
	}
	if err := requirePositive(context, "message_policy.min_quality_score_to_message", message.MinScoreToMessage); err != nil {
		return Profile{}, err
	}
	if err := requirePositive(context, "message_policy.max_messages", message.MaxMessages); err != nil {
		return Profile{}, err
	}
	if strings.TrimSpace(message.Template) == "" {
		return Profile{}, fmt.Errorf("%s: message_policy.template must be a non-empty string", context)
	}

	persona := defaultPersona()
	if raw.Persona != nil {
		persona.Archetype = stringOr(raw.Persona.Archetype, persona.Archetype)
		persona.Intent = stringOr(raw.Persona.Intent, persona.Intent)
		persona.OpenerStrategy = stringOr(raw.Persona.OpenerStrategy, persona.OpenerStrategy)
		if raw.Persona.ToneTraits != nil {
			persona.ToneTraits = trimmedList(raw.Persona.ToneTraits)
		}
		if raw.Persona.HardBoundaries != nil {
			persona.HardBoundaries = trimmedList(raw.Persona.HardBoundaries)
		}
		if raw.Persona.PreferredSignals != nil {
			persona.PreferredSignals = trimmedList(raw.Persona.PreferredSignals)
		}
		if raw.Persona.AvoidSignals != nil {
			persona.AvoidSignals = trimmedList(raw.Persona.AvoidSignals)
		}
		if raw.Persona.Examples != nil {
			persona.Examples = trimmedList(raw.Persona.Examples)
		}
		persona.MaxMessageChars = intOr(raw.Persona.MaxMessageChars, persona.MaxMessageChars)
		persona.RequireQuestion = boolOr(raw.Persona.RequireQuestion, persona.RequireQuestion)
	}
	if err := requirePositive(context, "persona_spec.max_message_chars", persona.MaxMessageChars); err != nil {
		return Profile{}, err
	}
	// First-message safety bound.
	if persona.MaxMessageChars > 500 {
		return Profile{}, fmt.Errorf("%s: persona_spec.max_message_chars must be <= 500", context)
	}

	criteria := raw.LLMCriteria
	if criteria == nil {
		criteria = map[string]interface{}{}
	}

	return Profile{
		Name:        name,
		Persona:     persona,
		Swipe:       swipe,
		Message:     message,
		LLMCriteria: criteria,
	}, nil
}

func defaultPersona() PersonaSpec {
	return PersonaSpec{
		Archetype: "intentional_warm_connector",
		Intent:    "Find emotionally available, high-intent matches for meaningful dating.",
		ToneTraits: []string{
			"warm", "curious", "grounded", "playful",
		},
		HardBoundaries: []string{
			"No sexual content in first message",
			"No manipulative or negging language",
			"No pressure to move off-app immediately",
		},
		PreferredSignals: []string{
			"Specific prompt answers with personality",
			"Evidence of emotional maturity",
			"Signs of an active lifestyle",
		},
		AvoidSignals: []string{
			"Profile hostility",
			"Heavy cynicism",
			"Low-effort one-word prompts",
		},
		OpenerStrategy: "Reference one concrete profile detail and end with one easy-to-answer question.",
		Examples: []string{
			"You mentioned learning salsa. What's been the hardest move to get right so far?",
			"Your travel prompt made me laugh. What's your most controversial airport opinion?",
		},
		MaxMessageChars: 180,
		RequireQuestion: true,
	}
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func stringOr(v *string, def string) string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return def
	}
	return strings.TrimSpace(*v)
}

func trimmedList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func loweredList(in []string) []string {
	out := trimmedList(in)
	for i, s := range out {
		out[i] = strings.ToLower(s)
	}
	return out
}

func requirePositive(context, field string, v int) error {
	if v <= 0 {
		return fmt.Errorf("%s: '%s' must be > 0", context, field)
	}
	return nil
}
