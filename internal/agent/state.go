// File: internal/agent/state.go
package agent

// runtimeState is the mutable per-run tally. Owned by the loop goroutine;
// never shared.
type runtimeState struct {
	likes      int
	passes     int
	messages   int
	iterations int

	forceActionConsumed bool
	lastAction          Action
	consecutiveFailures int
	exploreNavIndex     int

	artifacts []string
}
