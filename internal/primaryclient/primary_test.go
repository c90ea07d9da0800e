package primaryclient

import (
	"testing"

	"github.com/shanesims/screenlink/internal/layout"
	"github.com/shanesims/screenlink/internal/protocol"
)

type fakeDriver struct {
	name          string
	shape         layout.Shape
	locked        bool
	toggleMask    uint16
	enterCalls    int
	leaveOK       bool
	reconfigured  [4]bool
	clipboard     map[protocol.ClipboardID][]byte
}

func newFakeDriver(name string) *fakeDriver {
	return &fakeDriver{name: name, leaveOK: true, clipboard: make(map[protocol.ClipboardID][]byte)}
}

func (d *fakeDriver) Name() string          { return d.name }
func (d *fakeDriver) Shape() layout.Shape   { return d.shape }
func (d *fakeDriver) JumpZoneSize() int     { return d.shape.ZoneSize }
func (d *fakeDriver) Enter(x, y int, forScreensaver bool) error {
	d.enterCalls++
	return nil
}
func (d *fakeDriver) Leave() (bool, error)                                { return d.leaveOK, nil }
func (d *fakeDriver) KeyDown(key, mask, button uint16) error              { return nil }
func (d *fakeDriver) KeyUp(key, mask, button uint16) error                { return nil }
func (d *fakeDriver) KeyRepeat(key, mask, button, count uint16) error     { return nil }
func (d *fakeDriver) MouseDown(button uint8) error                       { return nil }
func (d *fakeDriver) MouseUp(button uint8) error                         { return nil }
func (d *fakeDriver) MouseMove(x, y int) error                           { return nil }
func (d *fakeDriver) MouseWheel(delta int) error                         { return nil }
func (d *fakeDriver) Screensaver(on bool) error                          { return nil }
func (d *fakeDriver) IsLockedToScreen() bool                            { return d.locked }
func (d *fakeDriver) ToggleMask() uint16                                { return d.toggleMask }
func (d *fakeDriver) Reconfigure(mask [4]bool) error {
	d.reconfigured = mask
	return nil
}
func (d *fakeDriver) ReadClipboard(id protocol.ClipboardID) ([]byte, error) {
	return d.clipboard[id], nil
}
func (d *fakeDriver) WriteClipboard(id protocol.ClipboardID, data []byte) error {
	d.clipboard[id] = data
	return nil
}

func TestPrimaryClientDelegatesToDriver(t *testing.T) {
	driver := newFakeDriver("local")
	driver.shape = layout.Shape{Width: 1920, Height: 1080, ZoneSize: 1}
	p := New(driver)

	if p.Name() != "local" {
		t.Fatalf("Name() = %q", p.Name())
	}
	if p.GetShape() != driver.shape {
		t.Fatalf("GetShape() = %+v", p.GetShape())
	}

	if err := p.Enter(100, 200, 1, 0, false); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if driver.enterCalls != 1 {
		t.Fatalf("driver.enterCalls = %d, want 1", driver.enterCalls)
	}

	ok, err := p.Leave()
	if err != nil || !ok {
		t.Fatalf("Leave() = %v, %v, want true, nil", ok, err)
	}

	mask := [4]bool{true, false, true, false}
	if err := p.Reconfigure(mask); err != nil {
		t.Fatalf("Reconfigure: %v", err)
	}
	if driver.reconfigured != mask {
		t.Fatalf("driver.reconfigured = %v, want %v", driver.reconfigured, mask)
	}
}

func TestPrimaryClientClipboardRoundTrip(t *testing.T) {
	driver := newFakeDriver("local")
	p := New(driver)

	if err := p.SetClipboard(protocol.ClipboardPrimary, []byte("hello")); err != nil {
		t.Fatalf("SetClipboard: %v", err)
	}
	got, err := p.ReadClipboard(protocol.ClipboardPrimary)
	if err != nil {
		t.Fatalf("ReadClipboard: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q, want hello", got)
	}
}

func TestLeaveFailurePropagates(t *testing.T) {
	driver := newFakeDriver("local")
	driver.leaveOK = false
	p := New(driver)

	ok, err := p.Leave()
	if err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if ok {
		t.Fatal("Leave() should report false when the driver fails to install hooks")
	}
}
