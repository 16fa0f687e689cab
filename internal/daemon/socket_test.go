package daemon

import (
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/t0dorakis/murmur/internal/event"
)

func startTestServer(t *testing.T) (*SocketServer, *event.Bus, string) {
	t.Helper()
	// Socket paths have a tight length limit; keep the temp name short.
	path := filepath.Join(t.TempDir(), "m.sock")
	bus := event.NewBus()
	srv := NewSocketServer(path, bus)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { srv.Close() })
	return srv, bus, path
}

// collectEvents runs Watch in a goroutine, feeding received events into a
// channel the test can drain with a timeout.
func collectEvents(t *testing.T, ctx context.Context, path string) (<-chan event.Event, <-chan error) {
	t.Helper()
	events := make(chan event.Event, 64)
	errc := make(chan error, 1)
	go func() {
		errc <- Watch(ctx, path, func(e event.Event) { events <- e })
	}()
	return events, errc
}

func nextEvent(t *testing.T, events <-chan event.Event) event.Event {
	t.Helper()
	select {
	case e := <-events:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return event.Event{}
	}
}

func TestSocket_ClientReceivesReadyThenBroadcast(t *testing.T) {
	_, bus, path := startTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _ := collectEvents(t, ctx, path)

	// Every client gets daemon:ready on connect.
	assert.Equal(t, event.TypeDaemonReady, nextEvent(t, events).Type)

	ev := event.New(event.TypeHeartbeatStart)
	ev.Heartbeat = "/home/me/proj"
	bus.Emit(ev)

	got := nextEvent(t, events)
	assert.Equal(t, event.TypeHeartbeatStart, got.Type)
	assert.Equal(t, "/home/me/proj", got.Heartbeat)
}

func TestSocket_MultipleClients(t *testing.T) {
	_, bus, path := startTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventsA, _ := collectEvents(t, ctx, path)
	eventsB, _ := collectEvents(t, ctx, path)
	assert.Equal(t, event.TypeDaemonReady, nextEvent(t, eventsA).Type)
	assert.Equal(t, event.TypeDaemonReady, nextEvent(t, eventsB).Type)

	bus.Emit(event.New(event.TypeTick))

	assert.Equal(t, event.TypeTick, nextEvent(t, eventsA).Type)
	assert.Equal(t, event.TypeTick, nextEvent(t, eventsB).Type)
}

func clientCount(s *SocketServer) int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}

func TestSocket_SlowClientDoesNotBlockOthers(t *testing.T) {
	srv, bus, path := startTestServer(t)
	srv.writeTimeout = 100 * time.Millisecond

	// A client that connects and never reads eventually fills its
	// socket buffer. The write deadline must turn the blocked write
	// into a drop so the broadcast, and with it the tick loop, keeps
	// moving for everyone else.
	stalled, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer stalled.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _ := collectEvents(t, ctx, path)
	require.Equal(t, event.TypeDaemonReady, nextEvent(t, events).Type)

	require.Eventually(t, func() bool { return clientCount(srv) == 2 },
		2*time.Second, 10*time.Millisecond)

	// Large chunks fill the stalled client's buffer within a few emits.
	// Emit runs on this goroutine, so a broadcast that could block on
	// the stalled write would hang the loop past the test timeout.
	big := event.New(event.TypeHeartbeatStdout)
	big.Chunk = strings.Repeat("x", 64*1024)

	deadline := time.Now().Add(10 * time.Second)
	for clientCount(srv) == 2 {
		require.True(t, time.Now().Before(deadline), "stalled client was never dropped")
		bus.Emit(big)

		// Keep the responsive client drained so only the stalled one
		// backs up.
		for drained := false; !drained; {
			select {
			case <-events:
			default:
				drained = true
			}
		}
	}
	require.Equal(t, 1, clientCount(srv))

	// The surviving client still receives the live stream.
	ev := event.New(event.TypeHeartbeatStart)
	ev.Heartbeat = "/home/me/proj"
	bus.Emit(ev)
	for {
		got := nextEvent(t, events)
		if got.Type == event.TypeHeartbeatStart {
			assert.Equal(t, "/home/me/proj", got.Heartbeat)
			break
		}
	}
}

func TestSocket_ReadyPrecedesBroadcastUnderLoad(t *testing.T) {
	_, bus, path := startTestServer(t)

	// Hammer the bus while clients connect. Each connection must still
	// open with a cleanly framed daemon:ready before any broadcast data.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				bus.Emit(event.New(event.TypeHeartbeatStart))
			}
		}
	}()

	for i := 0; i < 5; i++ {
		conn, err := net.Dial("unix", path)
		require.NoError(t, err)

		var first event.Event
		require.NoError(t, json.NewDecoder(conn).Decode(&first))
		assert.Equal(t, event.TypeDaemonReady, first.Type)
		conn.Close()
	}

	close(stop)
	wg.Wait()
}

func TestSocket_ServerCloseSynthesizesShutdown(t *testing.T) {
	srv, _, path := startTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, errc := collectEvents(t, ctx, path)

	assert.Equal(t, event.TypeDaemonReady, nextEvent(t, events).Type)

	// Closing the server without an explicit daemon:shutdown event still
	// leaves observers with a complete stream.
	require.NoError(t, srv.Close())

	assert.Equal(t, event.TypeDaemonShutdown, nextEvent(t, events).Type)

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return after server close")
	}
}

func TestSocket_ShutdownEventEndsWatch(t *testing.T) {
	_, bus, path := startTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _ := collectEvents(t, ctx, path)

	assert.Equal(t, event.TypeDaemonReady, nextEvent(t, events).Type)

	bus.Emit(event.New(event.TypeDaemonShutdown))

	// The shutdown event is delivered exactly once even though the stream
	// close would otherwise synthesize another.
	assert.Equal(t, event.TypeDaemonShutdown, nextEvent(t, events).Type)
}

func TestSocket_WatchCancelled(t *testing.T) {
	_, _, path := startTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	events, errc := collectEvents(t, ctx, path)

	assert.Equal(t, event.TypeDaemonReady, nextEvent(t, events).Type)
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return after cancel")
	}
}

func TestReadEvents_MalformedLinesSkipped(t *testing.T) {
	input := `{"type":"daemon:ready","time":"2026-08-31T12:00:00Z"}` + "\n" +
		"garbage\n" +
		`{"type":"tick","time":"2026-08-31T12:00:01Z"}` + "\n" +
		`{"type":"daemon:shutdown","time":"2026-08-31T12:00:02Z"}` + "\n"

	var types []event.Type
	err := ReadEvents(strings.NewReader(input), func(e event.Event) {
		types = append(types, e.Type)
	})
	require.NoError(t, err)
	assert.Equal(t, []event.Type{
		event.TypeDaemonReady, event.TypeTick, event.TypeDaemonShutdown,
	}, types)
}

func TestReadEvents_SynthesizedShutdown(t *testing.T) {
	input := `{"type":"daemon:ready","time":"2026-08-31T12:00:00Z"}` + "\n"

	var types []event.Type
	err := ReadEvents(strings.NewReader(input), func(e event.Event) {
		types = append(types, e.Type)
	})
	require.NoError(t, err)
	assert.Equal(t, []event.Type{event.TypeDaemonReady, event.TypeDaemonShutdown}, types)
}
