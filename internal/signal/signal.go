// Package signal maps process signals onto contexts.
package signal

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// NotifyContext returns a context that is cancelled when SIGTERM is received.
// SIGINT is left to Interruptible so Ctrl+C only stops the current request.
// The returned stop function should be called to release resources.
func NotifyContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM)
}

// Interruptible returns a child of parent that is cancelled by SIGINT. Call
// stop when the request finishes so a later Ctrl+C reaches the prompt again.
func Interruptible(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt)
}
