package daemon

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/t0dorakis/murmur/internal/event"
)

// Watch connects to a daemon's socket as a read-only observer and invokes
// fn for every event until the daemon shuts down, the stream closes, or
// ctx is cancelled. An unexpected close surfaces as a synthesized
// daemon:shutdown before Watch returns.
func Watch(ctx context.Context, socketPath string, fn func(event.Event)) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to connect to daemon socket: %w", err)
	}
	defer conn.Close()

	// Unblock the read loop when the caller gives up.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.SetReadDeadline(time.Now())
			conn.Close()
		case <-done:
		}
	}()

	stop := false
	err = ReadEvents(conn, func(e event.Event) {
		if stop {
			return
		}
		fn(e)
		if e.Type == event.TypeDaemonShutdown {
			stop = true
		}
	})

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
