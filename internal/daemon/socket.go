package daemon

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/t0dorakis/murmur/internal/event"
	"github.com/t0dorakis/murmur/internal/logging"
)

// SocketFileName is the Unix socket inside the data dir.
const SocketFileName = "murmur.sock"

// defaultWriteTimeout bounds each client write. A client that stops
// reading fills its socket buffer; the deadline turns the resulting
// blocked write into a failed one, which drops the client instead of
// stalling broadcast for everyone else.
const defaultWriteTimeout = 5 * time.Second

// SocketServer rebroadcasts bus events to every connected client as
// newline-delimited JSON. Clients are read-only observers: anything they
// send is drained and ignored. A slow or dead client is dropped on its
// first failed write without affecting the others.
type SocketServer struct {
	path string
	bus  *event.Bus

	listener    net.Listener
	unsubscribe func()

	clients   map[int]net.Conn
	nextID    int
	clientsMu sync.Mutex

	writeTimeout time.Duration
	logger       *slog.Logger
}

// NewSocketServer creates a server for the given socket path.
func NewSocketServer(path string, bus *event.Bus) *SocketServer {
	return &SocketServer{
		path:         path,
		bus:          bus,
		clients:      make(map[int]net.Conn),
		writeTimeout: defaultWriteTimeout,
		logger:       logging.ForComponent(logging.CompSocket),
	}
}

// Start binds the socket and begins accepting clients. A stale socket
// file from a previous daemon is removed first.
func (s *SocketServer) Start() error {
	_ = os.Remove(s.path)

	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.path, err)
	}
	// Trust boundary is filesystem permissions on the socket file.
	_ = os.Chmod(s.path, 0600)
	s.listener = ln

	s.unsubscribe = s.bus.Subscribe(s.broadcast)

	go s.acceptLoop()
	s.logger.Info("socket server listening", "path", s.path)
	return nil
}

func (s *SocketServer) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Listener closed on shutdown.
			return
		}

		// daemon:ready goes out before the conn joins the broadcast set,
		// so the stream always opens with it and never interleaves with a
		// concurrent broadcast.
		if !s.writeEvent(conn, event.New(event.TypeDaemonReady)) {
			conn.Close()
			continue
		}

		s.clientsMu.Lock()
		id := s.nextID
		s.nextID++
		s.clients[id] = conn
		s.clientsMu.Unlock()

		s.logger.Debug("watcher connected", "client", id)
		go s.drainClient(id, conn)
	}
}

// drainClient discards anything the client sends and drops it when the
// connection closes.
func (s *SocketServer) drainClient(id int, conn net.Conn) {
	_, _ = io.Copy(io.Discard, conn)
	s.dropClient(id)
	s.logger.Debug("watcher disconnected", "client", id)
}

func (s *SocketServer) dropClient(id int) {
	s.clientsMu.Lock()
	conn, ok := s.clients[id]
	if ok {
		delete(s.clients, id)
	}
	s.clientsMu.Unlock()
	if ok {
		conn.Close()
	}
}

// broadcast writes one event to every client; a failed write silently
// drops that client from the set.
func (s *SocketServer) broadcast(e event.Event) {
	s.clientsMu.Lock()
	conns := make(map[int]net.Conn, len(s.clients))
	for id, c := range s.clients {
		conns[id] = c
	}
	s.clientsMu.Unlock()

	for id, conn := range conns {
		if !s.writeEvent(conn, e) {
			s.dropClient(id)
		}
	}
}

func (s *SocketServer) writeEvent(conn net.Conn, e event.Event) bool {
	data, err := json.Marshal(e)
	if err != nil {
		s.logger.Error("failed to marshal event", "type", e.Type, "error", err)
		return true
	}
	data = append(data, '\n')
	_ = conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	_, err = conn.Write(data)
	return err == nil
}

// Close broadcasts nothing further, closes all clients, and removes the
// socket file.
func (s *SocketServer) Close() error {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if s.listener != nil {
		s.listener.Close()
	}

	s.clientsMu.Lock()
	for _, conn := range s.clients {
		conn.Close()
	}
	s.clients = make(map[int]net.Conn)
	s.clientsMu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove socket file: %w", err)
	}
	return nil
}

// ReadEvents consumes an NDJSON event stream from r, invoking fn per
// event with the same partial-line buffering discipline as the output
// parsers. Malformed lines are skipped with a diagnostic. When the stream
// ends without a daemon:shutdown event, one is synthesized so observers
// built on the socket see the same vocabulary as local subscribers.
func ReadEvents(r io.Reader, fn func(event.Event)) error {
	logger := logging.ForComponent(logging.CompSocket)

	sawShutdown := false
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e event.Event
		if err := json.Unmarshal(line, &e); err != nil {
			logger.Debug("skipping malformed event line", "error", err)
			continue
		}
		fn(e)
		if e.Type == event.TypeDaemonShutdown {
			sawShutdown = true
		}
	}
	err := scanner.Err()

	if !sawShutdown {
		fn(event.New(event.TypeDaemonShutdown))
	}
	return err
}
