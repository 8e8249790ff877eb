// File: internal/agent/directive_test.go
package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirective(t *testing.T) {
	t.Run("empty query defaults to swipe", func(t *testing.T) {
		d := ParseDirective("")
		assert.Equal(t, GoalSwipe, d.Goal)
		assert.Empty(t, d.ForceActionOnce)
		assert.True(t, d.Overrides.IsZero())
	})

	t.Run("action budget", func(t *testing.T) {
		d := ParseDirective("swipe for 10 actions")
		assert.Equal(t, GoalSwipe, d.Goal)
		require.NotNil(t, d.Overrides.MaxActions)
		assert.Equal(t, 10, *d.Overrides.MaxActions)
	})

	t.Run("message goal with runtime", func(t *testing.T) {
		d := ParseDirective("message my matches for 5 minutes")
		assert.Equal(t, GoalMessage, d.Goal)
		require.NotNil(t, d.Overrides.MaxRuntime)
		assert.Equal(t, 5*time.Minute, *d.Overrides.MaxRuntime)
		require.NotNil(t, d.Overrides.MessageEnabled)
		assert.True(t, *d.Overrides.MessageEnabled)
	})

	t.Run("seconds runtime", func(t *testing.T) {
		d := ParseDirective("swipe for 45 seconds")
		require.NotNil(t, d.Overrides.MaxRuntime)
		assert.Equal(t, 45*time.Second, *d.Overrides.MaxRuntime)
	})

	t.Run("explore goal", func(t *testing.T) {
		assert.Equal(t, GoalExplore, ParseDirective("explore the app").Goal)
		assert.Equal(t, GoalExplore, ParseDirective("freely navigate around").Goal)
	})

	t.Run("swipe keyword beats explore", func(t *testing.T) {
		assert.Equal(t, GoalSwipe, ParseDirective("explore then swipe").Goal)
	})

	t.Run("negated messaging", func(t *testing.T) {
		d := ParseDirective("swipe but don't message anyone")
		assert.Equal(t, GoalSwipe, d.Goal)
		require.NotNil(t, d.Overrides.MessageEnabled)
		assert.False(t, *d.Overrides.MessageEnabled)

		d = ParseDirective("do not message, just swipe")
		require.NotNil(t, d.Overrides.MessageEnabled)
		assert.False(t, *d.Overrides.MessageEnabled)
	})

	t.Run("quota overrides", func(t *testing.T) {
		d := ParseDirective("swipe with max likes 3 max passes 9 max messages 2")
		require.NotNil(t, d.Overrides.MaxLikes)
		assert.Equal(t, 3, *d.Overrides.MaxLikes)
		require.NotNil(t, d.Overrides.MaxPasses)
		assert.Equal(t, 9, *d.Overrides.MaxPasses)
		require.NotNil(t, d.Overrides.MaxMessages)
		assert.Equal(t, 2, *d.Overrides.MaxMessages)
	})

	t.Run("score threshold", func(t *testing.T) {
		d := ParseDirective("like profiles with score above 80")
		require.NotNil(t, d.Overrides.MinScoreToLike)
		assert.Equal(t, 80, *d.Overrides.MinScoreToLike)

		d = ParseDirective("swipe on quality over 90")
		require.NotNil(t, d.Overrides.MinScoreToLike)
		assert.Equal(t, 90, *d.Overrides.MinScoreToLike)
	})

	t.Run("forced actions", func(t *testing.T) {
		tests := []struct {
			query string
			want  Action
		}{
			{"go to matches", ActionGotoMatches},
			{"go to discover", ActionGotoDiscover},
			{"go to likes you", ActionGotoLikesYou},
			{"go to standouts", ActionGotoStandouts},
			{"go to profile", ActionGotoProfileHub},
			{"press back", ActionBack},
			{"dismiss overlay", ActionDismissOverlay},
			{"force open thread", ActionOpenThread},
			{"force send message", ActionSendMessage},
			{"force like this one", ActionLike},
			{"pass now", ActionPass},
			{"do nothing now", ActionWait},
		}
		for _, tc := range tests {
			assert.Equal(t, tc.want, ParseDirective(tc.query).ForceActionOnce, "query %q", tc.query)
		}
	})

	t.Run("first forced phrase wins", func(t *testing.T) {
		d := ParseDirective("go to matches then go to discover")
		assert.Equal(t, ActionGotoMatches, d.ForceActionOnce)
	})

	t.Run("dry run flags", func(t *testing.T) {
		d := ParseDirective("dry run swipe for 5 actions")
		require.NotNil(t, d.Overrides.DryRun)
		assert.True(t, *d.Overrides.DryRun)

		d = ParseDirective("live run swipe")
		require.NotNil(t, d.Overrides.DryRun)
		assert.False(t, *d.Overrides.DryRun)
	})

	t.Run("parsing is deterministic", func(t *testing.T) {
		query := "Message matches for 3 minutes with max messages 2"
		first := ParseDirective(query)
		second := ParseDirective(query)
		assert.Equal(t, first.Goal, second.Goal)
		assert.Equal(t, first.ForceActionOnce, second.ForceActionOnce)
		assert.Equal(t, *first.Overrides.MaxMessages, *second.Overrides.MaxMessages)
	})
}
