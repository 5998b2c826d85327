package commands

import (
	"context"
	"os/signal"
)

// runAsService runs the guard until the process receives a shutdown signal
func runAsService() error {
	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)
	defer stop()
	return runGuard(ctx)
}
