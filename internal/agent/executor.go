// File: internal/agent/executor.go
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/matchpilot/internal/appium"
	"github.com/xkilldash9x/matchpilot/internal/policy"
	"github.com/xkilldash9x/matchpilot/internal/screen"
)

const androidBackKeycode = 4

// Driver is the device surface the executor and loop need. Implemented by
// appium.Client and by fakes in tests.
type Driver interface {
	appium.Session
	PageSource(ctx context.Context) (string, error)
	ScreenshotPNG(ctx context.Context) ([]byte, error)
	SendKeys(ctx context.Context, el appium.ElementRef, text string) error
	PressKeyCode(ctx context.Context, keycode int) error
}

// quotaError marks an execution refused because a quota is already spent.
// The decision engines respect quotas, so hitting one here means the engine
// and the tally disagree; the tick records the error and the loop goes on.
type quotaError struct{ what string }

func (e *quotaError) Error() string { return e.what + " limit reached" }

// executor performs one decided action against the device.
type executor struct {
	driver    Driver
	textInput TextInput
	locators  map[string]policy.Candidates
	profile   policy.Profile
	dryRun    bool
	logger    *zap.Logger
}

// execOutcome reports what actually happened during execution.
type execOutcome struct {
	matchedLocator *policy.Locator
	reasonSuffix   string
	messageText    string
}

// execute runs the decision. Quotas are re-checked immediately before any
// mutating step so no execution path can exceed them, then counters bump
// exactly once on success. Dry run counts the action without touching the
// device.
func (e *executor) execute(ctx context.Context, decision Decision, obs screen.Observation, state *runtimeState) (execOutcome, error) {
	var out execOutcome

	switch decision.Action {
	case ActionLike:
		if state.likes >= e.profile.Swipe.MaxLikes {
			return out, &quotaError{what: "like"}
		}
		if !e.dryRun {
			matched, err := appium.ClickAny(ctx, e.driver, e.locators["like"])
			if err != nil {
				return out, err
			}
			out.matchedLocator = &matched
		}
		state.likes++

	case ActionPass:
		if state.passes >= e.profile.Swipe.MaxPasses {
			return out, &quotaError{what: "pass"}
		}
		if !e.dryRun {
			matched, err := appium.ClickAny(ctx, e.driver, e.locators["pass"])
			if err != nil {
				return out, err
			}
			out.matchedLocator = &matched
		}
		state.passes++

	case ActionSendMessage:
		if state.messages >= e.profile.Message.MaxMessages {
			return out, &quotaError{what: "message"}
		}
		text := e.profile.NormalizeMessage(decision.MessageText, obs.Features.ProfileNameCandidate)
		out.messageText = text
		if !e.dryRun {
			if obs.Type == screen.TypeDiscoverCard {
				outcome, err := e.sendDiscoverMessage(ctx, text)
				if err != nil {
					return out, err
				}
				out.matchedLocator = outcome.matchedLocator
				out.reasonSuffix = outcome.reasonSuffix
			} else {
				inputLocator, inputEl, err := appium.FindFirstAny(ctx, e.driver, e.locators["message_input"])
				if err != nil {
					return out, err
				}
				if err := e.driver.SendKeys(ctx, inputEl, text); err != nil {
					return out, err
				}
				sendLocator, err := appium.ClickAny(ctx, e.driver, e.locators["send"])
				if err != nil {
					return out, err
				}
				out.matchedLocator = &sendLocator
				out.reasonSuffix = "input=" + inputLocator.String()
			}
		}
		state.messages++

	case ActionBack:
		if !e.dryRun {
			if err := e.driver.PressKeyCode(ctx, androidBackKeycode); err != nil {
				return out, err
			}
		}

	case ActionWait:

	default:
		role, ok := tapActionLocatorRoles[decision.Action]
		if !ok {
			return out, fmt.Errorf("unsupported action selected: %s", decision.Action)
		}
		if !e.dryRun {
			matched, err := appium.ClickAny(ctx, e.driver, e.locators[role])
			if err != nil {
				return out, err
			}
			out.matchedLocator = &matched
		}
	}

	return out, nil
}

// sendDiscoverMessage runs the comment-with-like flow on a discover card:
// open the composer via Like when it is not already visible, focus it, type
// the text (adb fallback when the view is not editable), then tap Send.
func (e *executor) sendDiscoverMessage(ctx context.Context, text string) (execOutcome, error) {
	var out execOutcome

	inputCandidates := e.locators["discover_message_input"]
	if len(inputCandidates) == 0 {
		inputCandidates = e.locators["message_input"]
	}
	sendCandidates := e.locators["discover_send"]
	if len(sendCandidates) == 0 {
		sendCandidates = e.locators["send"]
	}

	var likeLocator policy.Locator
	composerAlreadyOpen := true
	inputLocator, inputEl, err := appium.FindFirstAny(ctx, e.driver, inputCandidates)
	if err != nil {
		composerAlreadyOpen = false
		likeLocator, err = appium.ClickAny(ctx, e.driver, e.locators["like"])
		if err != nil {
			return out, err
		}
		sleepCtx(ctx, 350*time.Millisecond)
		inputLocator, inputEl, err = appium.FindFirstAny(ctx, e.driver, inputCandidates)
		if err != nil {
			if e.paywallVisible(ctx) {
				return out, fmt.Errorf("discover message send blocked: out of free likes")
			}
			return out, err
		}
	}
	if composerAlreadyOpen {
		// Annotate the log even when Like was not needed.
		likeLocator = policy.Locator{Using: "synthetic", Value: "discover_composer_already_open"}
	}

	// Some UIs expose a non-editable view for the comment area. Click to focus.
	if err := e.driver.Click(ctx, inputEl); err != nil {
		inputLocator, inputEl, err = appium.FindFirstAny(ctx, e.driver, inputCandidates)
		if err != nil {
			return out, err
		}
		if err := e.driver.Click(ctx, inputEl); err != nil {
			return out, err
		}
	}

	if err := e.driver.SendKeys(ctx, inputEl, text); err != nil {
		e.logger.Debug("send_keys failed on discover composer, using adb text fallback", zap.Error(err))
		if err := e.textInput.InputText(ctx, text); err != nil {
			return out, err
		}
	}

	sendLocator, err := appium.ClickAny(ctx, e.driver, sendCandidates)
	if err != nil {
		return out, err
	}
	if e.paywallVisible(ctx) {
		return out, fmt.Errorf("discover message send blocked: out of free likes")
	}

	out.matchedLocator = &sendLocator
	out.reasonSuffix = "discover_like=" + likeLocator.String() + "; input=" + inputLocator.String()
	return out, nil
}

// paywallVisible is a best-effort post-step inspection; dump failures are
// treated as "no paywall" so inspection can never fail a successful send.
func (e *executor) paywallVisible(ctx context.Context) bool {
	xml, err := e.driver.PageSource(ctx)
	if err != nil {
		return false
	}
	strs, err := screen.ExtractStrings(xml, 800)
	if err != nil {
		return false
	}
	for _, s := range strs {
		if strings.Contains(strings.ToLower(s), "out of free likes") {
			return true
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
