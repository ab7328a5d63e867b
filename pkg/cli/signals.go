package cli

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// SetupSignalHandler returns a context canceled on the first SIGINT or
// SIGTERM. A second signal exits the process immediately, calling onForce
// first if set. The returned cancel func stops listening for signals.
func SetupSignalHandler(parent context.Context, onForce func()) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	stop := make(chan struct{})
	var once sync.Once
	stopFn := func() {
		cancel()
		once.Do(func() { close(stop) })
	}

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)

		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
			return
		}

		select {
		case <-sigChan:
			if onForce != nil {
				onForce()
			}
			os.Exit(ExitFailure)
		case <-stop:
		}
	}()

	return ctx, stopFn
}
