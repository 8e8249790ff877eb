// File: internal/policy/locator.go
package policy

import (
	"fmt"
	"strings"
)

// Locator identifies a UI element selection strategy: a WebDriver
// (using, value) pair, e.g. ("-android uiautomator", "...").
type Locator struct {
	Using string `json:"using"`
	Value string `json:"value"`
}

// String renders the locator in the compact "using:value" form used in logs.
func (l Locator) String() string {
	return l.Using + ":" + l.Value
}

// Validate checks that both halves of the locator are present.
func (l Locator) Validate() error {
	if strings.TrimSpace(l.Using) == "" {
		return fmt.Errorf("locator 'using' must be a non-empty string")
	}
	if strings.TrimSpace(l.Value) == "" {
		return fmt.Errorf("locator 'value' must be a non-empty string")
	}
	return nil
}

// Candidates is an ordered, first-match-wins list of locators for one
// logical role ("like", "pass", "message_input", ...).
type Candidates []Locator

// Validate checks every locator in the list.
func (c Candidates) Validate() error {
	for i, l := range c {
		if err := l.Validate(); err != nil {
			return fmt.Errorf("candidate %d: %w", i+1, err)
		}
	}
	return nil
}

// DebugString joins all candidates for error messages.
func (c Candidates) DebugString() string {
	parts := make([]string, 0, len(c))
	for _, l := range c {
		parts = append(parts, l.String())
	}
	return strings.Join(parts, "; ")
}
