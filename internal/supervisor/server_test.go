package supervisor

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/shanesims/screenlink/internal/config"
	"github.com/shanesims/screenlink/internal/layout"
	"github.com/shanesims/screenlink/internal/primaryclient"
	"github.com/shanesims/screenlink/internal/protocol"
)

type fakeDriver struct {
	name  string
	shape layout.Shape
}

func (d *fakeDriver) Name() string                                { return d.name }
func (d *fakeDriver) Shape() layout.Shape                         { return d.shape }
func (d *fakeDriver) JumpZoneSize() int                           { return d.shape.ZoneSize }
func (d *fakeDriver) Enter(int, int, bool) error                  { return nil }
func (d *fakeDriver) Leave() (bool, error)                        { return true, nil }
func (d *fakeDriver) KeyDown(uint16, uint16, uint16) error        { return nil }
func (d *fakeDriver) KeyUp(uint16, uint16, uint16) error          { return nil }
func (d *fakeDriver) KeyRepeat(uint16, uint16, uint16, uint16) error { return nil }
func (d *fakeDriver) MouseDown(uint8) error                       { return nil }
func (d *fakeDriver) MouseUp(uint8) error                         { return nil }
func (d *fakeDriver) MouseMove(int, int) error                    { return nil }
func (d *fakeDriver) MouseWheel(int) error                        { return nil }
func (d *fakeDriver) Screensaver(bool) error                      { return nil }
func (d *fakeDriver) IsLockedToScreen() bool                      { return false }
func (d *fakeDriver) ToggleMask() uint16                          { return 0 }
func (d *fakeDriver) Reconfigure([4]bool) error                   { return nil }
func (d *fakeDriver) ReadClipboard(protocol.ClipboardID) ([]byte, error) { return nil, nil }
func (d *fakeDriver) WriteClipboard(protocol.ClipboardID, []byte) error  { return nil }

func testConfig(t *testing.T, addr string, screens ...string) *config.Config {
	t.Helper()
	b := config.NewBuilder().SetServerAddress(addr).SetBindTimeout(5 * time.Second)
	for _, s := range screens {
		b.AddScreen(s)
	}
	result := b.ValidateTiered()
	if result.HasFatals() {
		t.Fatalf("config: %v", result.Fatals)
	}
	cfg, err := b.Build()
	if err != nil {
		t.Fatalf("build config: %v", err)
	}
	return cfg
}

func startServer(t *testing.T, cfg *config.Config, primaryName string) (*Server, func()) {
	t.Helper()
	srv, err := New(cfg, primaryName, &fakeDriver{name: primaryName, shape: layout.Shape{Width: 1000, Height: 800, ZoneSize: 1}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go srv.Serve(ctx)
	time.Sleep(50 * time.Millisecond)
	return srv, cancel
}

// dialAndHandshake drives the client side of the wire handshake over a
// real TCP connection to addr, returning the codec for further reads.
func dialAndHandshake(t *testing.T, addr string, clientMajor, clientMinor uint16, name string) (*protocol.Codec, error) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	codec := protocol.NewCodec(conn, conn)

	if _, _, err := codec.ReadHello(); err != nil {
		conn.Close()
		return nil, err
	}
	if err := codec.WriteHelloReply(clientMajor, clientMinor, name); err != nil {
		conn.Close()
		return nil, err
	}
	return codec, nil
}

// TestHandshakeVersionMismatchRejectsWithoutRegistering validates S5:
// a client offering an incompatible (newer) version receives EICV and
// is never registered as a connected screen.
func TestHandshakeVersionMismatchRejectsWithoutRegistering(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	cfg := testConfig(t, addr, "office")

	srv, cancel := startServer(t, cfg, "office")
	defer cancel()

	codec, err := dialAndHandshake(t, addr, 2, 0, "intruder")
	if err != nil {
		t.Fatalf("handshake I/O: %v", err)
	}
	code, body, err := codec.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if code != protocol.CmdIncompatible {
		t.Fatalf("code = %q, want %q", code, protocol.CmdIncompatible)
	}
	_ = body

	time.Sleep(50 * time.Millisecond)
	if srv.Engine().ActiveName() != "office" {
		t.Fatalf("active = %q, want office (intruder must never register)", srv.Engine().ActiveName())
	}
}

// TestDuplicateNameRejectsSecondClientAndKeepsFirst validates S6: two
// clients claiming the same declared screen name — the first succeeds,
// the second is told EBSY and closed, and the first is unaffected.
func TestDuplicateNameRejectsSecondClientAndKeepsFirst(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	cfg := testConfig(t, addr, "office", "den")

	srv, cancel := startServer(t, cfg, "office")
	defer cancel()

	codec1, err := dialAndHandshake(t, addr, 1, 6, "den")
	if err != nil {
		t.Fatalf("client1 handshake: %v", err)
	}
	// client1 expects QINF next (spec's open()); reply with screen info.
	go func() {
		code, _, err := codec1.ReadFrame()
		if err != nil || code != protocol.CmdQueryInfo {
			return
		}
		_ = codec1.WriteFrame(protocol.CmdScreenInfo, protocol.EncodeScreenInfo(protocol.ScreenInfo{Width: 800, Height: 600, ZoneSize: 1}))
		codec1.ReadFrame() // CIAK
	}()
	time.Sleep(100 * time.Millisecond)

	codec2, err := dialAndHandshake(t, addr, 1, 6, "den")
	if err != nil {
		t.Fatalf("client2 handshake: %v", err)
	}
	code, _, err := codec2.ReadFrame()
	if err != nil {
		t.Fatalf("client2 ReadFrame: %v", err)
	}
	if code != protocol.CmdBusy {
		t.Fatalf("client2 code = %q, want %q", code, protocol.CmdBusy)
	}

	time.Sleep(50 * time.Millisecond)
	if _, ok := srv.clients["den"]; !ok {
		t.Fatal("the first 'den' client should remain registered after the duplicate is rejected")
	}
}
