// ./main.go
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/matchpilot/cmd"
)

// main is the entry point for the matchpilot CLI. Commands receive a
// signal-aware context so an interrupt stops the control loop cleanly and
// the device session still gets torn down.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cmd.ExecuteContext(ctx)
}
