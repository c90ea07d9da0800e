// Package supervisor implements SessionSupervisor (spec §4.8): the
// server's listen/accept/handshake lifecycle, client registration,
// reconfiguration, and shutdown — grounded on the teacher's
// sessionbroker.Broker accept-loop/idleReaper/Close shape, adapted
// from a Unix-socket IPC broker to a bind-retrying TCP acceptor.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/shanesims/screenlink/internal/clientproxy"
	"github.com/shanesims/screenlink/internal/clipboard"
	"github.com/shanesims/screenlink/internal/config"
	"github.com/shanesims/screenlink/internal/logging"
	"github.com/shanesims/screenlink/internal/primaryclient"
	"github.com/shanesims/screenlink/internal/protocol"
	"github.com/shanesims/screenlink/internal/switchengine"
)

var log = logging.L("supervisor")

const (
	bindRetryInterval = 5 * time.Second
	closeGracePeriod  = 3 * time.Second
)

// Server is the SessionSupervisor: it owns the listener, the
// connected-client map, the engine, and the clipboard registry.
type Server struct {
	mu       sync.Mutex
	cfg      *config.Config
	engine   *switchengine.Engine
	registry *clipboard.Registry
	primary  *primaryclient.PrimaryClient

	listener net.Listener
	clients  map[string]*clientSession

	wg sync.WaitGroup

	connSeq uint64

	acceptorCancel context.CancelFunc
}

type clientSession struct {
	proxy  *clientproxy.Proxy
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Server. cfg must already validate HasPrimary(primaryName).
func New(cfg *config.Config, primaryName string, driver primaryclient.ScreenDriver) (*Server, error) {
	if !cfg.HasPrimary(primaryName) {
		return nil, fmt.Errorf("supervisor: config does not include primary screen %q", primaryName)
	}
	primary := primaryclient.New(driver)
	registry := clipboard.NewRegistry()
	engine := switchengine.NewEngine(cfg, registry, primary)
	if err := primary.Reconfigure(cfg.ActiveSideMask(primaryName)); err != nil {
		return nil, fmt.Errorf("supervisor: initial primary reconfigure: %w", err)
	}

	return &Server{
		cfg:      cfg,
		engine:   engine,
		registry: registry,
		primary:  primary,
		clients:  make(map[string]*clientSession),
	}, nil
}

// Engine exposes the SwitchEngine so eventrouter.Router can be wired
// to this server's instance.
func (s *Server) Engine() *switchengine.Engine { return s.engine }

// Serve binds the configured address, retrying AddressInUse every 5
// seconds until bindTimeout elapses (spec §4.8's acceptor), then runs
// the accept loop until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := s.bindWithRetry(ctx, s.cfg.ServerAddress())
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	acceptCtx, cancel := context.WithCancel(ctx)
	s.acceptorCancel = cancel
	s.mu.Unlock()

	log.Info("listening", "addr", s.cfg.ServerAddress())
	return s.acceptLoop(acceptCtx, ln)
}

func (s *Server) bindWithRetry(ctx context.Context, addr string) (net.Listener, error) {
	deadline := time.Now().Add(s.cfg.BindTimeout())
	for {
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			return ln, nil
		}
		if !isAddrInUse(err) {
			return nil, fmt.Errorf("supervisor: bind %s: %w", addr, err)
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("supervisor: bind %s: address in use past bind timeout: %w", addr, err)
		}
		log.Warn("bind address in use, retrying", "addr", addr, "retryIn", bindRetryInterval)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(bindRetryInterval):
		}
	}
}

func isAddrInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE)
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				log.Warn("accept error", "error", err)
				continue
			}
		}
		s.wg.Add(1)
		go s.runSession(ctx, conn)
	}
}

func (s *Server) nextConnSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connSeq++
	return s.connSeq
}

// runSession handshakes the connection, registers its proxy, pumps
// mainLoop until termination, then removes it (spec §4.8's session
// thread).
func (s *Server) runSession(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	connSeq := s.nextConnSeq()

	router := &engineCallbacks{engine: s.engine}
	proxy, err := clientproxy.Handshake(conn, connSeq, router)
	if err != nil {
		s.handleHandshakeFailure(conn, err)
		return
	}

	if err := s.addConnection(proxy); err != nil {
		log.Warn("rejecting connection", "name", proxy.Name(), "error", err)
		writeRejection(proxy, err)
		proxy.Close()
		return
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.mu.Lock()
	s.clients[proxy.Name()] = &clientSession{proxy: proxy, cancel: cancel, done: done}
	s.mu.Unlock()
	defer close(done)

	if _, err := proxy.Open(); err != nil {
		log.Warn("open failed", "name", proxy.Name(), "error", err)
		s.removeConnection(proxy.Name())
		proxy.Close()
		return
	}
	s.engine.AddScreen(proxy)

	if err := proxy.MainLoop(sessionCtx); err != nil {
		log.Info("session ended", "name", proxy.Name(), "error", err)
	}

	s.removeConnection(proxy.Name())
	proxy.Close()
}

// handleHandshakeFailure implements spec §7's ProtocolError policy:
// terminate the connection, writing EBAD first if the failure was a
// framing violation rather than a version mismatch (clientproxy.Handshake
// already writes EICV itself for IncompatibleError before returning).
func (s *Server) handleHandshakeFailure(conn net.Conn, err error) {
	log.Warn("handshake failed", "error", err)
	var protoErr *protocol.ProtocolError
	if errors.As(err, &protoErr) {
		codec := protocol.NewCodec(conn, conn)
		_ = codec.WriteFrame(protocol.CmdProtocolError, nil)
	}
	conn.Close()
}

func writeRejection(proxy *clientproxy.Proxy, err error) {
	switch err.(type) {
	case *duplicateNameError:
		proxy.WriteRejection(protocol.CmdBusy)
	case *unknownNameError:
		proxy.WriteRejection(protocol.CmdUnknown)
	}
}

type duplicateNameError struct{ name string }

func (e *duplicateNameError) Error() string { return fmt.Sprintf("duplicate client name %q", e.name) }

type unknownNameError struct{ name string }

func (e *unknownNameError) Error() string { return fmt.Sprintf("unknown screen name %q", e.name) }

// addConnection implements spec §4.8's registration rule: the name
// must be a declared screen, and no existing client may already bear
// it.
func (s *Server) addConnection(proxy *clientproxy.Proxy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.IsScreen(proxy.Name()) {
		return &unknownNameError{name: proxy.Name()}
	}
	if _, exists := s.clients[proxy.Name()]; exists {
		return &duplicateNameError{name: proxy.Name()}
	}
	return nil
}

// removeConnection implements spec §4.8's removal rule: if the removed
// client was active (or the screensaver screen), SwitchEngine jumps to
// the primary at its center.
func (s *Server) removeConnection(name string) {
	s.mu.Lock()
	delete(s.clients, name)
	s.mu.Unlock()
	s.engine.RemoveScreen(name)
}

// SetConfig implements spec §4.8's reconfiguration: reject configs
// missing the primary; drop clients whose names the new config no
// longer declares; publish the new config; reconfigure the primary's
// active sides. A client registered under an alias stays connected,
// still under that alias, while the new config declares the alias.
func (s *Server) SetConfig(newCfg *config.Config, primaryName string) error {
	if !newCfg.HasPrimary(primaryName) {
		return fmt.Errorf("supervisor: rejected config missing primary screen %q", primaryName)
	}

	s.mu.Lock()
	var toDrop []*clientSession
	for name, cs := range s.clients {
		if !newCfg.IsScreen(name) {
			toDrop = append(toDrop, cs)
			delete(s.clients, name)
		}
	}
	s.cfg = newCfg
	s.mu.Unlock()

	for _, cs := range toDrop {
		cs.cancel()
		cs.proxy.Close()
		select {
		case <-cs.done:
		case <-time.After(closeGracePeriod):
		}
		s.engine.RemoveScreen(cs.proxy.Name())
	}

	return s.primary.Reconfigure(newCfg.ActiveSideMask(primaryName))
}

// Shutdown cancels the acceptor, closes every non-primary client, and
// waits (bounded) for session threads to exit.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.acceptorCancel != nil {
		s.acceptorCancel()
	}
	ln := s.listener
	var sessions []*clientSession
	for _, cs := range s.clients {
		sessions = append(sessions, cs)
	}
	s.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	for _, cs := range sessions {
		cs.cancel()
		cs.proxy.Close()
	}

	waitDone := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-ctx.Done():
		log.Warn("shutdown timed out waiting for sessions to exit")
	case <-time.After(closeGracePeriod):
		log.Warn("shutdown grace period elapsed, forcing exit")
	}
	return nil
}

// engineCallbacks adapts switchengine.Engine to clientproxy.Callbacks.
type engineCallbacks struct {
	engine *switchengine.Engine
}

func (c *engineCallbacks) OnInfoChanged(p *clientproxy.Proxy, info protocol.ScreenInfo) {
	log.Debug("screen info changed", "screen", p.Name())
}

func (c *engineCallbacks) OnGrabClipboard(p *clientproxy.Proxy, id protocol.ClipboardID, seq uint32) {
	c.engine.HandleClipboardGrab(p.Name(), id, seq)
}

func (c *engineCallbacks) OnClipboardChanged(p *clientproxy.Proxy, id protocol.ClipboardID, seq uint32, data []byte) {
	c.engine.HandleClipboardChanged(id, seq, data)
}
