// File: internal/agent/session_test.go
package agent

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSessionManagerLifecycle(t *testing.T) {
	manager := NewSessionManager(zap.NewNop())

	cfg := testRunConfig(t, nil)
	cfg.DryRun = true
	driver := cardDriver(loopCardXMLA)
	controller := newTestController(t, cfg, ControllerDeps{Driver: driver})

	session := manager.Start(context.Background(), controller)
	require.NotEmpty(t, session.ID)

	result, err := session.Wait()
	require.NoError(t, err)
	assert.Equal(t, 3, result.Iterations)
	assert.Equal(t, StatusFinished, session.Status())

	got, err := manager.Get(session.ID)
	require.NoError(t, err)
	assert.Same(t, session, got)
	assert.Contains(t, manager.List(), session.ID)
}

func TestSessionManagerStop(t *testing.T) {
	manager := NewSessionManager(nil)

	cfg := testRunConfig(t, func(doc string) string {
		doc = strings.Replace(doc, `"max_actions": 3`, `"max_actions": 100000`, 1)
		return strings.Replace(doc, `"loop_sleep_s": 0`, `"loop_sleep_s": 0.01`, 1)
	})
	cfg.DryRun = true
	driver := cardDriver(loopCardXMLA)
	controller := newTestController(t, cfg, ControllerDeps{Driver: driver})

	session := manager.Start(context.Background(), controller)
	require.NoError(t, manager.Stop(session.ID))

	assert.Equal(t, StatusStopped, session.Status())
	_, err := session.Result()
	require.ErrorIs(t, err, context.Canceled)
}

func TestSessionManagerUnknownID(t *testing.T) {
	manager := NewSessionManager(nil)
	_, err := manager.Get("missing")
	require.ErrorContains(t, err, "unknown session")
	require.Error(t, manager.Stop("missing"))
}

func TestSessionManagerCloseAll(t *testing.T) {
	manager := NewSessionManager(nil)

	for i := 0; i < 2; i++ {
		cfg := testRunConfig(t, func(doc string) string {
			doc = strings.Replace(doc, `"max_actions": 3`, `"max_actions": 100000`, 1)
			return strings.Replace(doc, `"loop_sleep_s": 0`, `"loop_sleep_s": 0.01`, 1)
		})
		cfg.DryRun = true
		controller := newTestController(t, cfg, ControllerDeps{Driver: cardDriver(loopCardXMLA)})
		manager.Start(context.Background(), controller)
	}
	require.Len(t, manager.List(), 2)

	done := make(chan struct{})
	go func() {
		manager.CloseAll()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("CloseAll did not return")
	}

	for _, id := range manager.List() {
		session, err := manager.Get(id)
		require.NoError(t, err)
		assert.NotEqual(t, StatusRunning, session.Status())
	}
}
