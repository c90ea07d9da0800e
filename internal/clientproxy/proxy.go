// Package clientproxy implements ClientProxy (spec §4.3): the
// server-side handle for one connected remote screen. It owns the
// handshake/version-negotiation, the outbound command emission
// methods SwitchEngine and ClipboardRegistry call, and the inbound
// demultiplexing loop that turns wire frames into callbacks.
package clientproxy

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/shanesims/screenlink/internal/layout"
	"github.com/shanesims/screenlink/internal/logging"
	"github.com/shanesims/screenlink/internal/protocol"
)

var log = logging.L("clientproxy")

const (
	// ServerMajor/ServerMinor are the highest protocol version this
	// server speaks; the handshake negotiates down to whatever the
	// client also supports.
	ServerMajor uint16 = 1
	ServerMinor uint16 = 6

	handshakeTimeout = 30 * time.Second
	openTimeout      = 10 * time.Second
	keepaliveEvery   = 5 * time.Second
	readIdleTimeout  = 3 * keepaliveEvery
)

// Callbacks is how a Proxy reports inbound events to the rest of the
// server (spec §4.3: "Inbound DINF triggers onInfoChanged; inbound
// CCLP triggers onGrabClipboard; inbound DCLP triggers
// onClipboardChanged"). Implemented by eventrouter/supervisor.
type Callbacks interface {
	OnInfoChanged(p *Proxy, info protocol.ScreenInfo)
	OnGrabClipboard(p *Proxy, id protocol.ClipboardID, seq uint32)
	OnClipboardChanged(p *Proxy, id protocol.ClipboardID, seq uint32, data []byte)
}

// Proxy is a per-connection session: outbound commands, inbound
// acks/events, sequence tracking (spec §4.3).
type Proxy struct {
	conn      net.Conn
	codec     *protocol.Codec
	callbacks Callbacks

	name         string
	connSeq      uint64
	major, minor uint16

	mu       sync.Mutex
	shape    layout.Shape
	mouseX   int
	mouseY   int
	enterSeq uint32
	pushSeq  map[protocol.ClipboardID]uint32

	writeMu sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
}

// Handshake performs spec §4.3's version negotiation over conn and
// returns a ready-to-Open Proxy. The handshake itself is bounded to
// 30 seconds; exceeding it fails the session.
func Handshake(conn net.Conn, connSeq uint64, callbacks Callbacks) (*Proxy, error) {
	deadline := time.Now().Add(handshakeTimeout)
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set handshake deadline: %w", err)
	}
	codec := protocol.NewCodec(conn, conn)

	if err := codec.WriteHello(ServerMajor, ServerMinor); err != nil {
		return nil, err
	}
	clientMajor, clientMinor, name, err := codec.ReadHelloReply()
	if err != nil {
		return nil, err
	}

	minor, negErr := negotiateMinor(ServerMajor, ServerMinor, clientMajor, clientMinor)
	if negErr != nil {
		_ = codec.WriteFrame(protocol.CmdIncompatible, protocol.EncodeIncompatible(ServerMajor, ServerMinor))
		conn.Close()
		return nil, negErr
	}

	if err := conn.SetDeadline(time.Time{}); err != nil {
		return nil, fmt.Errorf("clear handshake deadline: %w", err)
	}

	log.Info("handshake complete", "name", name, "connSeq", connSeq, "major", clientMajor, "minor", minor)

	return &Proxy{
		conn:      conn,
		codec:     codec,
		callbacks: callbacks,
		name:      name,
		connSeq:   connSeq,
		major:     ServerMajor,
		minor:     minor,
		pushSeq:   make(map[protocol.ClipboardID]uint32),
		closed:    make(chan struct{}),
	}, nil
}

// negotiateMinor implements spec §4.3's rules. The wire's major/minor
// fields are unsigned (i2), so the original "reject negative version"
// rule has no representable input here; malformed hello bytes already
// fail earlier as a ProtocolError out of ReadHelloReply.
func negotiateMinor(serverMajor, serverMinor, clientMajor, clientMinor uint16) (uint16, error) {
	if clientMajor == 0 && serverMajor != 0 {
		return 0, &protocol.IncompatibleError{Major: int(clientMajor), Minor: int(clientMinor)}
	}
	if clientMajor > serverMajor || (clientMajor == serverMajor && clientMinor > serverMinor) {
		return 0, &protocol.IncompatibleError{Major: int(clientMajor), Minor: int(clientMinor)}
	}
	if clientMinor < serverMinor {
		return clientMinor, nil
	}
	return serverMinor, nil
}

func (p *Proxy) Name() string    { return p.name }
func (p *Proxy) ConnSeq() uint64 { return p.connSeq }

// Open sends QINF and blocks for the client's DINF reply, per spec
// §4.3's "open (send QINF and block for DINF, timeout yields
// BadClient)". It runs before MainLoop starts the continuous pump.
func (p *Proxy) Open() (protocol.ScreenInfo, error) {
	if err := p.writeFrame(protocol.CmdQueryInfo, nil); err != nil {
		return protocol.ScreenInfo{}, err
	}
	if err := p.conn.SetReadDeadline(time.Now().Add(openTimeout)); err != nil {
		return protocol.ScreenInfo{}, err
	}
	defer p.conn.SetReadDeadline(time.Time{})

	code, body, err := p.codec.ReadFrame()
	if err != nil {
		return protocol.ScreenInfo{}, &protocol.BadClientError{Reason: "timed out waiting for DINF: " + err.Error()}
	}
	if code != protocol.CmdScreenInfo {
		return protocol.ScreenInfo{}, &protocol.BadClientError{Reason: fmt.Sprintf("expected DINF, got %s", code)}
	}
	info, err := protocol.DecodeScreenInfo(body)
	if err != nil {
		return protocol.ScreenInfo{}, err
	}
	p.applyInfo(info)
	if err := p.writeFrame(protocol.CmdInfoAck, nil); err != nil {
		return info, err
	}
	return info, nil
}

func (p *Proxy) applyInfo(info protocol.ScreenInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shape = layout.Shape{X: info.X, Y: info.Y, Width: info.Width, Height: info.Height, ZoneSize: info.ZoneSize}
	p.mouseX, p.mouseY = info.MouseX, info.MouseY
}

func (p *Proxy) GetShape() layout.Shape {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shape
}

func (p *Proxy) GetJumpZoneSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shape.ZoneSize
}

// Enter sends CINN: cursor has entered this screen. forScreensaver is
// not itself a wire field — screensaver state reaches a remote client
// through its own CSEC command — but the parameter is kept so Proxy
// satisfies the same Enter signature PrimaryClient does.
func (p *Proxy) Enter(x, y int, seq uint32, mask uint16, forScreensaver bool) error {
	p.mu.Lock()
	p.enterSeq = seq
	p.mu.Unlock()
	return p.writeFrame(protocol.CmdEnter, protocol.EncodeEnter(protocol.EnterParams{X: x, Y: y, Seq: seq, Mask: mask}))
}

// Leave sends COUT. A RemoteClientProxy always succeeds: only
// PrimaryClient's leave() can refuse (it may fail to install local
// input hooks), per spec §4.6's switchScreen.
func (p *Proxy) Leave() (bool, error) {
	if err := p.writeFrame(protocol.CmdLeave, nil); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Proxy) KeyDown(key, mask, button uint16) error {
	return p.writeFrame(protocol.CmdKeyDown, protocol.EncodeKeyEvent(protocol.KeyEvent{Key: key, Mask: mask, Button: button}, false))
}

func (p *Proxy) KeyUp(key, mask, button uint16) error {
	return p.writeFrame(protocol.CmdKeyUp, protocol.EncodeKeyEvent(protocol.KeyEvent{Key: key, Mask: mask, Button: button}, false))
}

func (p *Proxy) KeyRepeat(key, mask, button, count uint16) error {
	return p.writeFrame(protocol.CmdKeyRepeat, protocol.EncodeKeyEvent(protocol.KeyEvent{Key: key, Mask: mask, Button: button, Count: count}, true))
}

func (p *Proxy) MouseDown(button uint8) error {
	return p.writeFrame(protocol.CmdMouseDown, protocol.EncodeMouseButton(button))
}

func (p *Proxy) MouseUp(button uint8) error {
	return p.writeFrame(protocol.CmdMouseUp, protocol.EncodeMouseButton(button))
}

func (p *Proxy) MouseMove(x, y int) error {
	return p.writeFrame(protocol.CmdMouseMove, protocol.EncodeMouseMove(x, y))
}

func (p *Proxy) MouseWheel(delta int) error {
	return p.writeFrame(protocol.CmdMouseWheel, protocol.EncodeMouseWheel(delta))
}

func (p *Proxy) Screensaver(on bool) error {
	return p.writeFrame(protocol.CmdScreensaver, protocol.EncodeScreensaver(on))
}

// GrabClipboard tells this client to become the owner of clipboard id
// (spec §4.5's grab: "otherwise send grabClipboard(id)"). The outbound
// CCLP carries seq 0: it's a request to re-grab, not an assertion of a
// specific sequence number — the client's own subsequent inbound CCLP
// carries the sequence that actually matters.
func (p *Proxy) GrabClipboard(id protocol.ClipboardID) error {
	return p.writeFrame(protocol.CmdClipboardGrab, protocol.EncodeClipboardGrab(protocol.ClipboardGrabParams{ID: id, Seq: 0}))
}

// SetClipboard pushes clipboard bytes to this client via DCLP. The
// registry's seq/owner bookkeeping is independent of DCLP's own wire
// sequence field, which this proxy increments locally per id purely
// to give the receiver a monotonic counter to dedupe retransmits on.
func (p *Proxy) SetClipboard(id protocol.ClipboardID, data []byte) error {
	p.mu.Lock()
	p.pushSeq[id]++
	seq := p.pushSeq[id]
	p.mu.Unlock()
	return p.writeFrame(protocol.CmdClipboardData, protocol.EncodeClipboardData(protocol.ClipboardDataParams{ID: id, Seq: seq, Data: data}))
}

// SetClipboardDirty records whether this client's clipboard view is
// stale. The protocol's clipboard commands are limited to CCLP/DCLP
// (spec §6); there is no dedicated wire message for the dirty flag, so
// it is local bookkeeping only, observable to the client through the
// next grabClipboard/setClipboard it actually receives rather than a
// frame of its own.
func (p *Proxy) SetClipboardDirty(id protocol.ClipboardID, dirty bool) error {
	log.Debug("clipboard dirty flag updated", "screen", p.name, "clipboard", id, "dirty", dirty)
	return nil
}

// WriteRejection writes a bare rejection frame (EBSY/EUNK/EBAD) with
// no body, best-effort, for a connection that is about to be closed
// without ever reaching MainLoop (spec §7: duplicate/unknown clients
// are told why before the socket closes).
func (p *Proxy) WriteRejection(code string) {
	_ = p.writeFrame(code, nil)
}

func (p *Proxy) writeFrame(code string, body []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.codec.WriteFrame(code, body)
}

// MainLoop runs the inbound pump until cancelled or the peer closes,
// per spec §4.3. It refreshes a read deadline on every decoded frame
// and emits CALV keepalives on an independent ticker so idle
// connections don't false-positive a dead peer.
func (p *Proxy) MainLoop(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go p.keepaliveLoop(done)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := p.conn.SetReadDeadline(time.Now().Add(readIdleTimeout)); err != nil {
			return err
		}
		code, body, err := p.codec.ReadFrame()
		if err != nil {
			return err
		}

		switch code {
		case protocol.CmdNoop:
		case protocol.CmdKeepAlive:
		case protocol.CmdClientBye:
			return nil
		case protocol.CmdScreenInfo:
			info, derr := protocol.DecodeScreenInfo(body)
			if derr != nil {
				return derr
			}
			p.applyInfo(info)
			p.callbacks.OnInfoChanged(p, info)
		case protocol.CmdClipboardData:
			data, derr := protocol.DecodeClipboardData(body)
			if derr != nil {
				return derr
			}
			p.callbacks.OnClipboardChanged(p, data.ID, data.Seq, data.Data)
		case protocol.CmdClipboardGrab:
			grab, derr := protocol.DecodeClipboardGrab(body)
			if derr != nil {
				return derr
			}
			p.callbacks.OnGrabClipboard(p, grab.ID, grab.Seq)
		default:
			return &protocol.BadClientError{Reason: fmt.Sprintf("unrecognized command code %q", code)}
		}
	}
}

func (p *Proxy) keepaliveLoop(done <-chan struct{}) {
	ticker := time.NewTicker(keepaliveEvery)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-p.closed:
			return
		case <-ticker.C:
			if err := p.writeFrame(protocol.CmdKeepAlive, nil); err != nil {
				log.Debug("keepalive write failed", "screen", p.name, "error", err)
				return
			}
		}
	}
}

// Close tears down the connection. Safe to call more than once.
func (p *Proxy) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.closed)
		err = p.conn.Close()
	})
	return err
}
