package runtime

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

var shutdownSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}

// ShutdownContext derives a context from parent that is cancelled on the
// first SIGINT or SIGTERM. The signal is logged so a container stop shows up
// ahead of the drain logs. A second signal falls through to the default
// handler and kills the process.
func ShutdownContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, shutdownSignals...)
	go func() {
		defer signal.Stop(ch)
		select {
		case sig := <-ch:
			if logger != nil {
				logger.Info("shutdown signal received", "signal", sig.String())
			}
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
