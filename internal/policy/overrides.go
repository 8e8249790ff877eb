// File: internal/policy/overrides.go
package policy

import "time"

// Overrides carries the optional knobs a parsed directive may set. Nil means
// "leave the loaded value alone". Applying overrides never mutates the
// receiver; sessions running concurrently must not share policy state.
type Overrides struct {
	MinScoreToLike *int           `json:"min_quality_score_like,omitempty"`
	MaxLikes       *int           `json:"max_likes,omitempty"`
	MaxPasses      *int           `json:"max_passes,omitempty"`
	MaxMessages    *int           `json:"max_messages,omitempty"`
	MessageEnabled *bool          `json:"message_enabled,omitempty"`
	MaxActions     *int           `json:"max_actions,omitempty"`
	MaxRuntime     *time.Duration `json:"max_runtime,omitempty"`
	DryRun         *bool          `json:"dry_run,omitempty"`
}

// IsZero reports whether no override is set.
func (o Overrides) IsZero() bool {
	return o.MinScoreToLike == nil && o.MaxLikes == nil && o.MaxPasses == nil &&
		o.MaxMessages == nil && o.MessageEnabled == nil && o.MaxActions == nil &&
		o.MaxRuntime == nil && o.DryRun == nil
}

// Apply returns a copy of the profile with the policy-scoped overrides
// folded in. Runtime-scoped overrides (MaxActions, MaxRuntime, DryRun) are
// the loop's business and ignored here.
func (p Profile) Apply(o Overrides) Profile {
	out := p
	out.Swipe = p.Swipe
	out.Message = p.Message

	if o.MinScoreToLike != nil {
		out.Swipe.MinScoreToLike = *o.MinScoreToLike
	}
	if o.MaxLikes != nil {
		out.Swipe.MaxLikes = *o.MaxLikes
	}
	if o.MaxPasses != nil {
		out.Swipe.MaxPasses = *o.MaxPasses
	}
	if o.MessageEnabled != nil {
		out.Message.Enabled = *o.MessageEnabled
	}
	if o.MaxMessages != nil {
		out.Message.MaxMessages = *o.MaxMessages
	}
	return out
}
