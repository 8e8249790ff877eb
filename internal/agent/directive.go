// File: internal/agent/directive.go
package agent

import (
	"regexp"
	"strings"
	"time"

	"github.com/xkilldash9x/matchpilot/internal/policy"
)

// Goal is the coarse objective extracted from the operator's command query.
type Goal string

const (
	GoalSwipe   Goal = "swipe"
	GoalMessage Goal = "message"
	GoalExplore Goal = "explore"
)

// Directive is the parsed form of a natural language command query. Parsing
// is a fixed keyword and pattern vocabulary, deterministic and idempotent;
// anything unrecognized falls through to the defaults.
type Directive struct {
	Query           string
	Goal            Goal
	ForceActionOnce Action
	Overrides       policy.Overrides
}

var (
	actionsPattern  = regexp.MustCompile(`(?:for\s+)?(\d+)\s+actions`)
	likesPattern    = regexp.MustCompile(`max\s+likes?\s+(\d+)`)
	passesPattern   = regexp.MustCompile(`max\s+passes?\s+(\d+)`)
	messagesPattern = regexp.MustCompile(`max\s+messages?\s+(\d+)`)
	scorePattern    = regexp.MustCompile(`(?:score|quality)\s*(?:>=|above|over)?\s*(\d{1,3})`)
	minutesPattern  = regexp.MustCompile(`for\s+(\d+)\s+minutes?`)
	secondsPattern  = regexp.MustCompile(`for\s+(\d+)\s+seconds?`)
)

// forcedActionPhrases is checked in order; the first match wins.
var forcedActionPhrases = []struct {
	phrases []string
	action  Action
}{
	{[]string{"go to matches"}, ActionGotoMatches},
	{[]string{"go to discover"}, ActionGotoDiscover},
	{[]string{"go to likes you", "go to likes"}, ActionGotoLikesYou},
	{[]string{"go to standouts"}, ActionGotoStandouts},
	{[]string{"go to profile"}, ActionGotoProfileHub},
	{[]string{"go back", "press back"}, ActionBack},
	{[]string{"dismiss overlay", "close overlay"}, ActionDismissOverlay},
	{[]string{"open thread now", "force open thread"}, ActionOpenThread},
	{[]string{"send message now", "force send message"}, ActionSendMessage},
	{[]string{"like now", "force like"}, ActionLike},
	{[]string{"pass now", "force pass"}, ActionPass},
	{[]string{"wait now", "force wait", "do nothing now"}, ActionWait},
}

// ParseDirective interprets the operator's free-text query. An empty query
// yields the default swipe goal with no overrides.
func ParseDirective(query string) Directive {
	q := strings.TrimSpace(query)
	if q == "" {
		return Directive{Goal: GoalSwipe}
	}

	lowered := strings.ToLower(q)
	d := Directive{Query: q, Goal: GoalSwipe}

	if strings.Contains(lowered, "explore") ||
		strings.Contains(lowered, "free form") ||
		strings.Contains(lowered, "freely navigate") {
		d.Goal = GoalExplore
	}

	for _, entry := range forcedActionPhrases {
		for _, phrase := range entry.phrases {
			if strings.Contains(lowered, phrase) {
				d.ForceActionOnce = entry.action
				break
			}
		}
		if d.ForceActionOnce != "" {
			break
		}
	}

	noMessage := strings.Contains(lowered, "don't message") || strings.Contains(lowered, "do not message")
	if strings.Contains(lowered, "message") && !noMessage {
		d.Goal = GoalMessage
	}
	if strings.Contains(lowered, "swipe") {
		d.Goal = GoalSwipe
	}

	if m := actionsPattern.FindStringSubmatch(lowered); m != nil {
		d.Overrides.MaxActions = intPtr(parseInt(m[1]))
	}
	if m := likesPattern.FindStringSubmatch(lowered); m != nil {
		d.Overrides.MaxLikes = intPtr(parseInt(m[1]))
	}
	if m := passesPattern.FindStringSubmatch(lowered); m != nil {
		d.Overrides.MaxPasses = intPtr(parseInt(m[1]))
	}
	if m := messagesPattern.FindStringSubmatch(lowered); m != nil {
		d.Overrides.MaxMessages = intPtr(parseInt(m[1]))
	}
	if m := scorePattern.FindStringSubmatch(lowered); m != nil {
		d.Overrides.MinScoreToLike = intPtr(parseInt(m[1]))
	}
	if m := minutesPattern.FindStringSubmatch(lowered); m != nil {
		d.Overrides.MaxRuntime = durationPtr(time.Duration(parseInt(m[1])) * time.Minute)
	}
	if m := secondsPattern.FindStringSubmatch(lowered); m != nil {
		d.Overrides.MaxRuntime = durationPtr(time.Duration(parseInt(m[1])) * time.Second)
	}

	if strings.Contains(lowered, "dry run") {
		d.Overrides.DryRun = boolPtr(true)
	}
	if strings.Contains(lowered, "live run") || strings.Contains(lowered, "execute") {
		d.Overrides.DryRun = boolPtr(false)
	}

	if noMessage {
		d.Overrides.MessageEnabled = boolPtr(false)
	} else if strings.Contains(lowered, "message") {
		d.Overrides.MessageEnabled = boolPtr(true)
	}

	return d
}

func parseInt(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}

func intPtr(v int) *int                          { return &v }
func boolPtr(v bool) *bool                       { return &v }
func durationPtr(v time.Duration) *time.Duration { return &v }
