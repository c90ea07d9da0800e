// Package admin implements the optional admin acceptor described in
// spec §4.8/§5: a semaphore-bounded listener that upgrades each
// connection to a WebSocket and streams the events handed to Publish
// as JSON. No component of the server calls Publish, so a connected
// admin client receives only ping frames. Grounded on the teacher's
// internal/websocket.Client, turned inside-out — that client dials out
// and runs read/write pumps against a single server connection; Feed
// accepts inbound connections and fans one broadcast stream out to
// each of them, reusing the same ping/pong and write-deadline
// constants.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/shanesims/screenlink/internal/logging"
)

var log = logging.L("admin")

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	// DefaultPermits bounds concurrent admin connections (spec §4.8's
	// "admin acceptor: semaphore N=3 permits").
	DefaultPermits = 3
	bindRetryInterval = 5 * time.Second
)

// Event is one broadcast message: session connect/disconnect, active
// screen change, or clipboard ownership change.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Screen    string    `json:"screen,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// Feed is the admin broadcaster: it owns the upgrader, the set of
// connected subscribers, and the bounded accept loop.
type Feed struct {
	upgrader websocket.Upgrader

	mu   sync.Mutex
	subs map[*subscriber]struct{}

	sem chan struct{}
}

type subscriber struct {
	conn *websocket.Conn
	send chan Event
	done chan struct{}
}

// NewFeed builds a Feed with the given permit count (0 uses DefaultPermits).
func NewFeed(permits int) *Feed {
	if permits <= 0 {
		permits = DefaultPermits
	}
	return &Feed{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		subs: make(map[*subscriber]struct{}),
		sem:  make(chan struct{}, permits),
	}
}

// Publish fans an event out to every connected subscriber. Slow
// subscribers are dropped rather than allowed to block the broadcast
// (spec §5's "outbound writes rely on non-blocking send buffers;
// overflow is treated as a peer failure").
func (f *Feed) Publish(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for s := range f.subs {
		select {
		case s.send <- ev:
		default:
			log.Warn("admin subscriber too slow, dropping")
			f.removeLocked(s)
		}
	}
}

func (f *Feed) removeLocked(s *subscriber) {
	if _, ok := f.subs[s]; !ok {
		return
	}
	delete(f.subs, s)
	close(s.done)
}

// Serve binds addr (retrying address-in-use every 5s until bindTimeout,
// matching the core acceptor's policy) and runs the accept loop until
// ctx is cancelled.
func (f *Feed) Serve(ctx context.Context, addr string, bindTimeout time.Duration) error {
	ln, err := f.bindWithRetry(ctx, addr, bindTimeout)
	if err != nil {
		return err
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", f.handleUpgrade)
	srv := &http.Server{Handler: mux}

	log.Info("admin feed listening", "addr", addr)
	err = srv.Serve(ln)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (f *Feed) bindWithRetry(ctx context.Context, addr string, bindTimeout time.Duration) (net.Listener, error) {
	deadline := time.Now().Add(bindTimeout)
	for {
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			return ln, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, err
		}
		log.Warn("admin bind address in use, retrying", "addr", addr)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(bindRetryInterval):
		}
	}
}

func (f *Feed) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	select {
	case f.sem <- struct{}{}:
	default:
		http.Error(w, "too many admin connections", http.StatusServiceUnavailable)
		return
	}
	defer func() { <-f.sem }()

	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("admin upgrade failed", "error", err)
		return
	}

	s := &subscriber{conn: conn, send: make(chan Event, 32), done: make(chan struct{})}
	f.mu.Lock()
	f.subs[s] = struct{}{}
	f.mu.Unlock()

	log.Info("admin client connected", "remote", conn.RemoteAddr())
	go f.readPump(s)
	f.writePump(s)
}

// readPump only exists to observe pong frames and client disconnects;
// the protocol is one-directional (broadcast only).
func (f *Feed) readPump(s *subscriber) {
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			f.mu.Lock()
			f.removeLocked(s)
			f.mu.Unlock()
			return
		}
	}
}

func (f *Feed) writePump(s *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.send:
			if !ok {
				return
			}
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			body, err := json.Marshal(ev)
			if err != nil {
				log.Warn("admin event marshal failed", "error", err)
				continue
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, body); err != nil {
				log.Warn("admin write failed", "error", err)
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
