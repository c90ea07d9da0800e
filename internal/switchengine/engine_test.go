package switchengine

import (
	"testing"

	"github.com/shanesims/screenlink/internal/clipboard"
	"github.com/shanesims/screenlink/internal/layout"
	"github.com/shanesims/screenlink/internal/protocol"
)

type fakeScreen struct {
	name       string
	shape      layout.Shape
	leaveOK    bool
	enterCalls []enterCall
	moveCalls  [][2]int
	saverCalls []bool
	dirty      map[protocol.ClipboardID]bool
	data       map[protocol.ClipboardID][]byte
	grabCalls  int
}

type enterCall struct {
	x, y           int
	seq            uint32
	mask           uint16
	forScreensaver bool
}

func newFakeScreen(name string, shape layout.Shape) *fakeScreen {
	return &fakeScreen{name: name, shape: shape, leaveOK: true, dirty: map[protocol.ClipboardID]bool{}, data: map[protocol.ClipboardID][]byte{}}
}

func (s *fakeScreen) Name() string          { return s.name }
func (s *fakeScreen) GetShape() layout.Shape { return s.shape }
func (s *fakeScreen) GetJumpZoneSize() int   { return s.shape.ZoneSize }
func (s *fakeScreen) Enter(x, y int, seq uint32, mask uint16, forScreensaver bool) error {
	s.enterCalls = append(s.enterCalls, enterCall{x, y, seq, mask, forScreensaver})
	return nil
}
func (s *fakeScreen) Leave() (bool, error) { return s.leaveOK, nil }
func (s *fakeScreen) MouseMove(x, y int) error {
	s.moveCalls = append(s.moveCalls, [2]int{x, y})
	return nil
}
func (s *fakeScreen) Screensaver(on bool) error {
	s.saverCalls = append(s.saverCalls, on)
	return nil
}
func (s *fakeScreen) GrabClipboard(id protocol.ClipboardID) error {
	s.grabCalls++
	return nil
}
func (s *fakeScreen) SetClipboardDirty(id protocol.ClipboardID, dirty bool) error {
	s.dirty[id] = dirty
	return nil
}
func (s *fakeScreen) SetClipboard(id protocol.ClipboardID, data []byte) error {
	s.data[id] = data
	return nil
}

type fakePrimary struct {
	*fakeScreen
	locked     bool
	toggleMask uint16
	clipboard  map[protocol.ClipboardID][]byte
}

func newFakePrimary(name string, shape layout.Shape) *fakePrimary {
	return &fakePrimary{fakeScreen: newFakeScreen(name, shape), clipboard: map[protocol.ClipboardID][]byte{}}
}

func (p *fakePrimary) IsLockedToScreen() bool { return p.locked }
func (p *fakePrimary) ToggleMask() uint16     { return p.toggleMask }
func (p *fakePrimary) ReadClipboard(id protocol.ClipboardID) ([]byte, error) {
	return p.clipboard[id], nil
}

type fakeLookup struct {
	links map[string]map[layout.Side]string
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{links: make(map[string]map[layout.Side]string)}
}

func (l *fakeLookup) add(screen string, side layout.Side, target string) {
	if l.links[screen] == nil {
		l.links[screen] = make(map[layout.Side]string)
	}
	l.links[screen][side] = target
}

func (l *fakeLookup) Neighbor(canonical string, side layout.Side) string {
	return l.links[canonical][side]
}

func TestOnMouseMovePrimaryCrossesRightIntoNeighbor(t *testing.T) {
	a := newFakePrimary("A", layout.Shape{X: 0, Y: 0, Width: 1000, Height: 800, ZoneSize: 1})
	b := newFakeScreen("B", layout.Shape{X: 0, Y: 0, Width: 800, Height: 600, ZoneSize: 1})
	lookup := newFakeLookup()
	lookup.add("A", layout.RightSide, "B")

	e := NewEngine(lookup, clipboard.NewRegistry(), a)
	e.AddScreen(b)

	if err := e.OnMouseMovePrimary(1000, 400); err != nil {
		t.Fatalf("OnMouseMovePrimary: %v", err)
	}

	if len(b.enterCalls) != 1 {
		t.Fatalf("expected one Enter call on B, got %d", len(b.enterCalls))
	}
	got := b.enterCalls[0]
	if got.x != 1 || got.y != 300 {
		t.Fatalf("entry = (%d,%d), want (1,300)", got.x, got.y)
	}
	if e.ActiveName() != "B" {
		t.Fatalf("active = %q, want B", e.ActiveName())
	}
}

// TestOnMouseMovePrimaryEntryUsesSourceZoneNotDestZone guards against
// computeEntry folding the destination's jump-zone size into the
// crossing-axis translation: with A's zone widened to 5 (B's left
// unchanged), the correct entry x comes from A's own zone pre-bias
// (1000+5-1000), not from B.X+B.ZoneSize.
func TestOnMouseMovePrimaryEntryUsesSourceZoneNotDestZone(t *testing.T) {
	a := newFakePrimary("A", layout.Shape{X: 0, Y: 0, Width: 1000, Height: 800, ZoneSize: 5})
	b := newFakeScreen("B", layout.Shape{X: 0, Y: 0, Width: 800, Height: 600, ZoneSize: 1})
	lookup := newFakeLookup()
	lookup.add("A", layout.RightSide, "B")

	e := NewEngine(lookup, clipboard.NewRegistry(), a)
	e.AddScreen(b)

	if err := e.OnMouseMovePrimary(1000, 400); err != nil {
		t.Fatalf("OnMouseMovePrimary: %v", err)
	}

	if len(b.enterCalls) != 1 {
		t.Fatalf("expected one Enter call on B, got %d", len(b.enterCalls))
	}
	got := b.enterCalls[0]
	if got.x != 5 || got.y != 300 {
		t.Fatalf("entry = (%d,%d), want (5,300)", got.x, got.y)
	}
}

// TestOnMouseMoveSecondaryPrimaryReentryClampAppliesOnce guards against
// the primary re-entry inset being applied twice (once unconditionally
// in computeEntry, once more in OnMouseMoveSecondary): with A's zone 5
// and a link back from A's left to C, crossing from C into A should
// clamp to x=5, not double-apply to x=10.
func TestOnMouseMoveSecondaryPrimaryReentryClampAppliesOnce(t *testing.T) {
	a := newFakePrimary("A", layout.Shape{X: 0, Y: 0, Width: 1000, Height: 800, ZoneSize: 5})
	c := newFakeScreen("C", layout.Shape{X: 0, Y: 0, Width: 500, Height: 600, ZoneSize: 5})
	lookup := newFakeLookup()
	lookup.add("A", layout.LeftSide, "C")
	lookup.add("C", layout.RightSide, "A")

	e := NewEngine(lookup, clipboard.NewRegistry(), a)
	e.AddScreen(c)

	// Cross A's left edge into C: lands at (495, 300).
	if err := e.OnMouseMovePrimary(0, 400); err != nil {
		t.Fatalf("OnMouseMovePrimary: %v", err)
	}
	if e.ActiveName() != "C" {
		t.Fatalf("setup failed: active = %q, want C", e.ActiveName())
	}

	// Cross C's right edge back into A: the raw translation alone
	// would land at x=0, inside A's own jump zone, so the clamp must
	// push it out to x=5 exactly once.
	if err := e.OnMouseMoveSecondary(5, 0); err != nil {
		t.Fatalf("OnMouseMoveSecondary: %v", err)
	}
	if e.ActiveName() != "A" {
		t.Fatalf("active = %q, want A", e.ActiveName())
	}
	if len(a.enterCalls) != 1 {
		t.Fatalf("expected one Enter call on A, got %d", len(a.enterCalls))
	}
	got := a.enterCalls[0]
	if got.x != 5 || got.y != 400 {
		t.Fatalf("entry = (%d,%d), want (5,400)", got.x, got.y)
	}
}

func TestOnMouseMovePrimaryNoNeighborNoSwitch(t *testing.T) {
	a := newFakePrimary("A", layout.Shape{X: 0, Y: 0, Width: 1000, Height: 800, ZoneSize: 1})
	lookup := newFakeLookup()
	e := NewEngine(lookup, clipboard.NewRegistry(), a)

	if err := e.OnMouseMovePrimary(1000, 400); err != nil {
		t.Fatalf("OnMouseMovePrimary: %v", err)
	}
	if e.ActiveName() != "A" {
		t.Fatalf("active = %q, want A (no neighbor declared)", e.ActiveName())
	}
}

func TestOnMouseMovePrimaryIgnoredWhenLocked(t *testing.T) {
	a := newFakePrimary("A", layout.Shape{X: 0, Y: 0, Width: 1000, Height: 800, ZoneSize: 1})
	a.locked = true
	b := newFakeScreen("B", layout.Shape{X: 0, Y: 0, Width: 800, Height: 600, ZoneSize: 1})
	lookup := newFakeLookup()
	lookup.add("A", layout.RightSide, "B")
	e := NewEngine(lookup, clipboard.NewRegistry(), a)
	e.AddScreen(b)

	if err := e.OnMouseMovePrimary(1000, 400); err != nil {
		t.Fatalf("OnMouseMovePrimary: %v", err)
	}
	if len(b.enterCalls) != 0 {
		t.Fatal("locked primary should never trigger a switch")
	}
}

func TestNeighborChainSkipsDisconnectedScreens(t *testing.T) {
	a := newFakePrimary("A", layout.Shape{X: 0, Y: 0, Width: 1000, Height: 800, ZoneSize: 1})
	c := newFakeScreen("C", layout.Shape{X: 0, Y: 0, Width: 400, Height: 400, ZoneSize: 1})
	lookup := newFakeLookup()
	lookup.add("A", layout.RightSide, "B") // B declared but never connects
	lookup.add("B", layout.RightSide, "C")
	e := NewEngine(lookup, clipboard.NewRegistry(), a)
	e.AddScreen(c)

	if err := e.OnMouseMovePrimary(1000, 400); err != nil {
		t.Fatalf("OnMouseMovePrimary: %v", err)
	}
	if len(c.enterCalls) != 1 {
		t.Fatalf("expected the walk to skip disconnected B and land on C, got %d enter calls", len(c.enterCalls))
	}
	if e.ActiveName() != "C" {
		t.Fatalf("active = %q, want C", e.ActiveName())
	}
}

func TestOnMouseMoveSecondaryStaysWithinScreen(t *testing.T) {
	a := newFakePrimary("A", layout.Shape{X: 0, Y: 0, Width: 1000, Height: 800, ZoneSize: 1})
	b := newFakeScreen("B", layout.Shape{X: 0, Y: 0, Width: 800, Height: 600, ZoneSize: 1})
	lookup := newFakeLookup()
	lookup.add("A", layout.RightSide, "B")
	e := NewEngine(lookup, clipboard.NewRegistry(), a)
	e.AddScreen(b)
	_ = e.OnMouseMovePrimary(1000, 400) // switch active to B at (1,300)

	if err := e.OnMouseMoveSecondary(10, 10); err != nil {
		t.Fatalf("OnMouseMoveSecondary: %v", err)
	}
	if len(b.moveCalls) != 1 || b.moveCalls[0] != [2]int{11, 310} {
		t.Fatalf("moveCalls = %v, want one call to (11,310)", b.moveCalls)
	}
}

func TestOnMouseMoveSecondaryDroppedWhenActiveIsPrimary(t *testing.T) {
	a := newFakePrimary("A", layout.Shape{X: 0, Y: 0, Width: 1000, Height: 800, ZoneSize: 1})
	lookup := newFakeLookup()
	e := NewEngine(lookup, clipboard.NewRegistry(), a)

	if err := e.OnMouseMoveSecondary(5, 5); err != nil {
		t.Fatalf("OnMouseMoveSecondary: %v", err)
	}
	if e.ActiveName() != "A" {
		t.Fatal("secondary move while primary is active should be a no-op")
	}
}

func TestRemoveActiveScreenJumpsToPrimary(t *testing.T) {
	a := newFakePrimary("A", layout.Shape{X: 0, Y: 0, Width: 1000, Height: 800, ZoneSize: 1})
	b := newFakeScreen("B", layout.Shape{X: 0, Y: 0, Width: 800, Height: 600, ZoneSize: 1})
	lookup := newFakeLookup()
	lookup.add("A", layout.RightSide, "B")
	e := NewEngine(lookup, clipboard.NewRegistry(), a)
	e.AddScreen(b)
	_ = e.OnMouseMovePrimary(1000, 400)
	if e.ActiveName() != "B" {
		t.Fatal("setup failed: expected active to be B")
	}

	e.RemoveScreen("B")
	if e.ActiveName() != "A" {
		t.Fatalf("active = %q, want A after removing the active screen", e.ActiveName())
	}
}

func TestScreensaverSaveAndRestore(t *testing.T) {
	a := newFakePrimary("A", layout.Shape{X: 0, Y: 0, Width: 1000, Height: 800, ZoneSize: 1})
	b := newFakeScreen("B", layout.Shape{X: 0, Y: 0, Width: 800, Height: 600, ZoneSize: 1})
	lookup := newFakeLookup()
	lookup.add("A", layout.RightSide, "B")
	e := NewEngine(lookup, clipboard.NewRegistry(), a)
	e.AddScreen(b)
	_ = e.OnMouseMovePrimary(1000, 400) // active = B at (1,300)

	if err := e.SetScreensaver(true); err != nil {
		t.Fatalf("SetScreensaver(true): %v", err)
	}
	if e.ActiveName() != "A" {
		t.Fatalf("active = %q, want A during screensaver", e.ActiveName())
	}
	if len(a.saverCalls) == 0 || !a.saverCalls[len(a.saverCalls)-1] {
		t.Fatal("primary should have received Screensaver(true)")
	}
	if len(b.saverCalls) == 0 || !b.saverCalls[len(b.saverCalls)-1] {
		t.Fatal("B should have received Screensaver(true) too (broadcast unconditionally)")
	}

	if err := e.SetScreensaver(false); err != nil {
		t.Fatalf("SetScreensaver(false): %v", err)
	}
	if e.ActiveName() != "B" {
		t.Fatalf("active = %q, want B restored after screensaver ends", e.ActiveName())
	}
}

func TestHandleClipboardGrabAndChangedDelegateToRegistry(t *testing.T) {
	a := newFakePrimary("A", layout.Shape{X: 0, Y: 0, Width: 1000, Height: 800, ZoneSize: 1})
	b := newFakeScreen("B", layout.Shape{X: 0, Y: 0, Width: 800, Height: 600, ZoneSize: 1})
	lookup := newFakeLookup()
	e := NewEngine(lookup, clipboard.NewRegistry(), a)
	e.AddScreen(b)

	e.HandleClipboardGrab("B", protocol.ClipboardPrimary, 1)
	if b.grabCalls != 0 {
		t.Fatal("requester should not receive its own GrabClipboard call")
	}
	if a.grabCalls != 1 {
		t.Fatal("primary should have received a GrabClipboard propagation")
	}

	e.HandleClipboardChanged(protocol.ClipboardPrimary, 2, []byte("hi"))
	if !a.dirty[protocol.ClipboardPrimary] {
		t.Fatal("A is not the clipboard owner (B is), so it should be marked dirty by the update")
	}
}
