// File: internal/appium/finder.go
package appium

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/matchpilot/internal/policy"
)

// Session is the element lookup surface the finder helpers need. Implemented
// by Client and by fakes in tests.
type Session interface {
	FindElements(ctx context.Context, loc policy.Locator) ([]ElementRef, error)
	Click(ctx context.Context, el ElementRef) error
}

// FindFirstAny walks the candidate list in order and returns the first
// locator that resolves to at least one element.
func FindFirstAny(ctx context.Context, c Session, candidates policy.Candidates) (policy.Locator, ElementRef, error) {
	for _, loc := range candidates {
		elements, err := c.FindElements(ctx, loc)
		if err != nil {
			return policy.Locator{}, ElementRef{}, err
		}
		if len(elements) > 0 {
			return loc, elements[0], nil
		}
	}
	return policy.Locator{}, ElementRef{}, fmt.Errorf(
		"appium: no elements found for locator candidates: %s", candidates.DebugString())
}

// HasAny reports whether any candidate resolves to an element. Lookup errors
// on individual candidates are swallowed; presence probing must never abort
// a tick.
func HasAny(ctx context.Context, c Session, candidates policy.Candidates) bool {
	for _, loc := range candidates {
		elements, err := c.FindElements(ctx, loc)
		if err != nil {
			continue
		}
		if len(elements) > 0 {
			return true
		}
	}
	return false
}

// ClickAny finds the first resolvable candidate and clicks it, returning the
// locator that matched so logs can name the exact control used.
func ClickAny(ctx context.Context, c Session, candidates policy.Candidates) (policy.Locator, error) {
	matched, element, err := FindFirstAny(ctx, c, candidates)
	if err != nil {
		return policy.Locator{}, err
	}
	if err := c.Click(ctx, element); err != nil {
		return policy.Locator{}, err
	}
	return matched, nil
}
