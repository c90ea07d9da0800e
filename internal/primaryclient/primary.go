// Package primaryclient implements PrimaryClient (spec §4.4): the
// adapter that presents the server's own machine through the same
// ScreenSink/ScreenSource surface a remote ClientProxy exposes, so
// SwitchEngine never has to special-case "am I talking to the local
// machine or a remote one."
//
// The actual platform capture/inject driver — the thing that would
// grab exclusive input capture, hide the cursor, and read/write the
// real OS clipboard — is out of this repository's scope (spec §1);
// ScreenDriver is the interface seam for it; the only implementation in
// this repository is the no-op headlessDriver in cmd/screenlink-server.
// Tests use a fake driver.
package primaryclient

import (
	"github.com/shanesims/screenlink/internal/layout"
	"github.com/shanesims/screenlink/internal/logging"
	"github.com/shanesims/screenlink/internal/protocol"
)

var log = logging.L("primaryclient")

// ScreenDriver is the platform-specific collaborator PrimaryClient
// drives. On Enter, the platform releases exclusive capture and shows
// the cursor; on Leave, it installs input hooks and hides the cursor
// (spec §4.4).
type ScreenDriver interface {
	Name() string
	Shape() layout.Shape
	JumpZoneSize() int

	Enter(x, y int, forScreensaver bool) error
	// Leave reports whether input hooks were installed successfully;
	// false aborts the pending switch (spec §4.6's switchScreen).
	Leave() (bool, error)

	KeyDown(key, mask, button uint16) error
	KeyUp(key, mask, button uint16) error
	KeyRepeat(key, mask, button, count uint16) error
	MouseDown(button uint8) error
	MouseUp(button uint8) error
	MouseMove(x, y int) error
	MouseWheel(delta int) error
	Screensaver(on bool) error

	IsLockedToScreen() bool
	ToggleMask() uint16
	// Reconfigure tells the platform which sides currently have a
	// neighbor, so jump zones are armed only there (spec §4.4).
	Reconfigure(activeSideMask [4]bool) error

	ReadClipboard(id protocol.ClipboardID) ([]byte, error)
	WriteClipboard(id protocol.ClipboardID, data []byte) error
}

// PrimaryClient adapts a ScreenDriver to the ScreenSink/ScreenSource
// surface SwitchEngine and ClipboardRegistry operate on.
type PrimaryClient struct {
	driver ScreenDriver
}

func New(driver ScreenDriver) *PrimaryClient {
	return &PrimaryClient{driver: driver}
}

func (p *PrimaryClient) Name() string           { return p.driver.Name() }
func (p *PrimaryClient) GetShape() layout.Shape { return p.driver.Shape() }
func (p *PrimaryClient) GetJumpZoneSize() int   { return p.driver.JumpZoneSize() }

func (p *PrimaryClient) Enter(x, y int, seq uint32, mask uint16, forScreensaver bool) error {
	return p.driver.Enter(x, y, forScreensaver)
}

func (p *PrimaryClient) Leave() (bool, error) { return p.driver.Leave() }

func (p *PrimaryClient) KeyDown(key, mask, button uint16) error {
	return p.driver.KeyDown(key, mask, button)
}
func (p *PrimaryClient) KeyUp(key, mask, button uint16) error {
	return p.driver.KeyUp(key, mask, button)
}
func (p *PrimaryClient) KeyRepeat(key, mask, button, count uint16) error {
	return p.driver.KeyRepeat(key, mask, button, count)
}
func (p *PrimaryClient) MouseDown(button uint8) error { return p.driver.MouseDown(button) }
func (p *PrimaryClient) MouseUp(button uint8) error   { return p.driver.MouseUp(button) }
func (p *PrimaryClient) MouseMove(x, y int) error     { return p.driver.MouseMove(x, y) }
func (p *PrimaryClient) MouseWheel(delta int) error   { return p.driver.MouseWheel(delta) }
func (p *PrimaryClient) Screensaver(on bool) error    { return p.driver.Screensaver(on) }

func (p *PrimaryClient) IsLockedToScreen() bool { return p.driver.IsLockedToScreen() }
func (p *PrimaryClient) ToggleMask() uint16     { return p.driver.ToggleMask() }

// Reconfigure tells the platform which of the four sides currently
// have a neighbor, keyed by layout.Sides' stable order.
func (p *PrimaryClient) Reconfigure(activeSideMask [4]bool) error {
	return p.driver.Reconfigure(activeSideMask)
}

// GrabClipboard claims local ownership; the primary has no wire
// message to send itself, so this just logs (clipboard.Registry drives
// PrimaryReader.ReadClipboard separately when it needs fresh bytes).
func (p *PrimaryClient) GrabClipboard(id protocol.ClipboardID) error {
	log.Debug("primary claimed clipboard ownership", "clipboard", id)
	return nil
}

func (p *PrimaryClient) SetClipboardDirty(id protocol.ClipboardID, dirty bool) error {
	log.Debug("primary clipboard dirty flag updated", "clipboard", id, "dirty", dirty)
	return nil
}

func (p *PrimaryClient) SetClipboard(id protocol.ClipboardID, data []byte) error {
	return p.driver.WriteClipboard(id, data)
}

// ReadClipboard implements clipboard.PrimaryReader.
func (p *PrimaryClient) ReadClipboard(id protocol.ClipboardID) ([]byte, error) {
	return p.driver.ReadClipboard(id)
}
