// Package switchengine implements SwitchEngine (spec §4.6): the cursor
// state machine that decides, under a single lock, whether a mouse
// move stays on the active screen or crosses into a neighbor, and
// drives the clipboard registry and screensaver save/restore logic
// that piggyback on a screen switch.
package switchengine

import (
	"math"
	"sync"

	"github.com/shanesims/screenlink/internal/clipboard"
	"github.com/shanesims/screenlink/internal/layout"
	"github.com/shanesims/screenlink/internal/logging"
	"github.com/shanesims/screenlink/internal/protocol"
)

var log = logging.L("switchengine")

// Screen is the capability set SwitchEngine needs from any connected
// screen, remote or local (clientproxy.Proxy and primaryclient.PrimaryClient
// both satisfy it).
type Screen interface {
	Name() string
	GetShape() layout.Shape
	GetJumpZoneSize() int
	Enter(x, y int, seq uint32, mask uint16, forScreensaver bool) error
	Leave() (bool, error)
	MouseMove(x, y int) error
	Screensaver(on bool) error
	clipboard.Sink
}

// PrimaryScreen additionally exposes the local-machine-only queries
// SwitchEngine needs to run its primary-side logic.
type PrimaryScreen interface {
	Screen
	IsLockedToScreen() bool
	ToggleMask() uint16
	clipboard.PrimaryReader
}

// NeighborLookup is the subset of config.Config the engine needs:
// the neighbor-link graph. Kept as a narrow interface so tests don't
// need a full config.Config.
type NeighborLookup interface {
	Neighbor(canonical string, side layout.Side) string
}

type saverState struct {
	screen string
	x, y   int
}

// Engine holds active screen, (m_x, m_y), and screensaver-save state
// (spec §4.6).
type Engine struct {
	mu sync.Mutex

	cfg      NeighborLookup
	registry *clipboard.Registry
	primary  PrimaryScreen
	screens  map[string]Screen

	active          Screen
	activeIsPrimary bool
	mx, my          int
	enterSeq        uint32
	saver           *saverState

	commandKeyHook func(key, mask uint16) bool
}

func NewEngine(cfg NeighborLookup, registry *clipboard.Registry, primary PrimaryScreen) *Engine {
	return &Engine{
		cfg:             cfg,
		registry:        registry,
		primary:         primary,
		screens:         make(map[string]Screen),
		active:          primary,
		activeIsPrimary: true,
	}
}

// AddScreen registers a newly connected remote screen.
func (e *Engine) AddScreen(s Screen) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.screens[s.Name()] = s
}

// RemoveScreen unregisters a disconnected screen. If it was the active
// screen, the cursor jumps back to the primary at its center (spec
// §4.8: session removal forces a jump to the primary).
func (e *Engine) RemoveScreen(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.screens, name)
	if !e.activeIsPrimary && e.active.Name() == name {
		cx, cy := e.primary.GetShape().Center()
		e.active = e.primary
		e.activeIsPrimary = true
		e.mx, e.my = cx, cy
	}
}

// ActiveName reports the currently active screen's canonical name.
func (e *Engine) ActiveName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active.Name()
}

// ActiveScreen returns the currently active screen, so EventRouter can
// relay key/mouse-button events that SwitchEngine itself doesn't
// interpret (spec §4.7).
func (e *Engine) ActiveScreen() Screen {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// SetCommandKeyHook installs the reserved command-key interception
// hook (spec §4.6: "reserved hook returns false by default").
func (e *Engine) SetCommandKeyHook(fn func(key, mask uint16) bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commandKeyHook = fn
}

// HandleCommandKey lets EventRouter give the hook first refusal on a
// key event before normal routing.
func (e *Engine) HandleCommandKey(key, mask uint16) bool {
	e.mu.Lock()
	hook := e.commandKeyHook
	e.mu.Unlock()
	if hook == nil {
		return false
	}
	return hook(key, mask)
}

func (e *Engine) connectedScreen(name string) (Screen, bool) {
	if name == e.primary.Name() {
		return e.primary, true
	}
	s, ok := e.screens[name]
	return s, ok
}

func (e *Engine) sinksLocked() map[string]clipboard.Sink {
	out := make(map[string]clipboard.Sink, len(e.screens)+1)
	out[e.primary.Name()] = e.primary
	for name, s := range e.screens {
		out[name] = s
	}
	return out
}

// neighborChain implements spec §4.6's "neighbor traversal with skip":
// starting at (src, side), repeatedly look up the neighbor name; if
// not currently connected, continue in the same direction from that
// hypothetical screen. A disconnected intermediate screen's own
// dimensions are unknowable (it has never reported a DINF), so the
// skip is purely topological — the geometric rescale below is always
// computed between the true source shape and the first *connected*
// screen found, never against an intermediate.
func (e *Engine) neighborChain(srcName string, side layout.Side) (string, bool) {
	name := srcName
	for {
		next := e.cfg.Neighbor(name, side)
		if next == "" {
			return "", false
		}
		if _, ok := e.connectedScreen(next); ok {
			return next, true
		}
		name = next
	}
}

// rescale maps a coordinate from a src extent to a dst extent by
// linear proportion, per spec §4.6: "new_ortho = round(old_ortho *
// (dest_extent-1) / (src_extent-1)) clamped to [0, dest_extent-1]."
func rescale(local, srcExtent, dstExtent int) int {
	if srcExtent <= 1 {
		return 0
	}
	v := int(math.Round(float64(local) * float64(dstExtent-1) / float64(srcExtent-1)))
	if v < 0 {
		v = 0
	}
	if v > dstExtent-1 {
		v = dstExtent - 1
	}
	return v
}

// computeEntry translates a crossing on srcShape's `side` into an entry
// point on dstShape (spec §4.6/§9). The crossing axis carries the raw
// coordinate's overshoot past src's boundary straight into dst's frame
// (src/dst origins and widths/heights only — never dst's own zone size); the
// orthogonal axis is rescaled proportionally. Callers bias rawX/rawY by
// the *source's* jump zone before a primary-screen crossing (mirroring
// the pre-adjustment onMouseMovePrimary does before resolving a
// neighbor) and apply the primary-only re-entry clamp afterward.
func computeEntry(srcShape layout.Shape, side layout.Side, rawX, rawY int, dstShape layout.Shape) (x, y int) {
	entrySide := side.Opposite()
	switch entrySide {
	case layout.LeftSide:
		x = rawX - srcShape.X - srcShape.Width + dstShape.X
		y = rescale(rawY-srcShape.Y, srcShape.Height, dstShape.Height) + dstShape.Y
	case layout.RightSide:
		x = rawX - srcShape.X + dstShape.Width + dstShape.X
		y = rescale(rawY-srcShape.Y, srcShape.Height, dstShape.Height) + dstShape.Y
	case layout.TopSide:
		y = rawY - srcShape.Y - srcShape.Height + dstShape.Y
		x = rescale(rawX-srcShape.X, srcShape.Width, dstShape.Width) + dstShape.X
	case layout.BottomSide:
		y = rawY - srcShape.Y + dstShape.Height + dstShape.Y
		x = rescale(rawX-srcShape.X, srcShape.Width, dstShape.Width) + dstShape.X
	}
	return x, y
}

// clampPrimaryReentry implements spec §4.6/§9's "if entering primary
// screen then be sure to move in far enough to avoid the jump zone"
// rule: a clamp, applied once, only when dst is the primary and only
// when the primary itself has a further neighbor back out through the
// side just entered (an asymmetrical side can't provoke a re-jump, so
// it's left alone).
func (e *Engine) clampPrimaryReentry(dst Screen, entrySide layout.Side, x, y int) (int, int) {
	if dst.Name() != e.primary.Name() {
		return x, y
	}
	if e.cfg.Neighbor(e.primary.Name(), entrySide) == "" {
		return x, y
	}
	shape := dst.GetShape()
	z := dst.GetJumpZoneSize()
	switch entrySide {
	case layout.LeftSide:
		if x < shape.X+z {
			x = shape.X + z
		}
	case layout.RightSide:
		if x > shape.X+shape.Width-1-z {
			x = shape.X + shape.Width - 1 - z
		}
	case layout.TopSide:
		if y < shape.Y+z {
			y = shape.Y + z
		}
	case layout.BottomSide:
		if y > shape.Y+shape.Height-1-z {
			y = shape.Y + shape.Height - 1 - z
		}
	}
	return x, y
}

// onMouseMovePrimary handles cursor motion while the primary is
// active (spec §4.6).
func (e *Engine) OnMouseMovePrimary(x, y int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.activeIsPrimary {
		return nil
	}
	if e.primary.IsLockedToScreen() {
		return nil
	}

	shape := e.primary.GetShape()
	z := shape.ZoneSize
	var side layout.Side
	crossed := false
	switch {
	case x < shape.X+z:
		x -= z
		side, crossed = layout.LeftSide, true
	case x >= shape.X+shape.Width-z:
		x += z
		side, crossed = layout.RightSide, true
	case y < shape.Y+z:
		y -= z
		side, crossed = layout.TopSide, true
	case y >= shape.Y+shape.Height-z:
		y += z
		side, crossed = layout.BottomSide, true
	}
	if !crossed {
		e.mx, e.my = x, y
		return nil
	}

	dstName, ok := e.neighborChain(e.primary.Name(), side)
	if !ok {
		return nil
	}
	dst, _ := e.connectedScreen(dstName)
	entryX, entryY := computeEntry(shape, side, x, y, dst.GetShape())
	entryX, entryY = e.clampPrimaryReentry(dst, side.Opposite(), entryX, entryY)
	return e.switchScreenLocked(dst, entryX, entryY, false)
}

// onMouseMoveSecondary handles cursor motion while a remote screen is
// active (spec §4.6).
func (e *Engine) OnMouseMoveSecondary(dx, dy int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.activeIsPrimary {
		// Race with a concurrent switch back to primary: drop.
		return nil
	}

	e.mx += dx
	e.my += dy
	shape := e.active.GetShape()

	if e.primary.IsLockedToScreen() {
		cx, cy := shape.Clamp(e.mx, e.my)
		e.mx, e.my = cx, cy
		return e.active.MouseMove(cx, cy)
	}

	if shape.Contains(e.mx, e.my) {
		return e.active.MouseMove(e.mx, e.my)
	}

	var side layout.Side
	switch {
	case e.mx < shape.X:
		side = layout.LeftSide
	case e.mx >= shape.X+shape.Width:
		side = layout.RightSide
	case e.my < shape.Y:
		side = layout.TopSide
	default:
		side = layout.BottomSide
	}

	dstName, ok := e.neighborChain(e.active.Name(), side)
	if !ok {
		cx, cy := shape.Clamp(e.mx, e.my)
		e.mx, e.my = cx, cy
		return e.active.MouseMove(cx, cy)
	}
	dst, _ := e.connectedScreen(dstName)
	entryX, entryY := computeEntry(shape, side, e.mx, e.my, dst.GetShape())
	entryX, entryY = e.clampPrimaryReentry(dst, side.Opposite(), entryX, entryY)

	return e.switchScreenLocked(dst, entryX, entryY, false)
}

// switchScreenLocked implements spec §4.6's switchScreen. Caller must
// hold e.mu.
func (e *Engine) switchScreenLocked(dst Screen, x, y int, forScreensaver bool) error {
	if dst.Name() == e.active.Name() {
		return e.active.MouseMove(x, y)
	}

	ok, err := e.active.Leave()
	if err != nil {
		return err
	}
	if !ok {
		log.Warn("switch aborted: active screen could not leave", "screen", e.active.Name())
		return nil
	}

	if e.activeIsPrimary {
		e.registry.ResyncFromPrimary(e.primary.Name(), e.primary, e.sinksLocked(), dst)
	}

	e.enterSeq++
	mask := e.primary.ToggleMask()
	if err := dst.Enter(x, y, e.enterSeq, mask, forScreensaver); err != nil {
		return err
	}
	e.registry.PushAllTo(dst)

	e.active = dst
	e.activeIsPrimary = dst.Name() == e.primary.Name()
	e.mx, e.my = x, y
	return nil
}

// SetScreensaver implements spec §4.6's screensaver save/restore.
func (e *Engine) SetScreensaver(on bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if on {
		e.saver = &saverState{screen: e.active.Name(), x: e.mx, y: e.my}
		shape := e.primary.GetShape()
		cx, cy := shape.Center()
		if err := e.switchScreenLocked(e.primary, cx, cy, true); err != nil {
			return err
		}
	} else {
		if e.saver != nil && e.saver.screen != e.primary.Name() {
			if dst, ok := e.connectedScreen(e.saver.screen); ok {
				shape := dst.GetShape()
				z := dst.GetJumpZoneSize()
				cx, cy := shape.Clamp(e.saver.x, e.saver.y)
				if cx < shape.X+z {
					cx = shape.X + z
				}
				if cx > shape.X+shape.Width-1-z {
					cx = shape.X + shape.Width - 1 - z
				}
				if cy < shape.Y+z {
					cy = shape.Y + z
				}
				if cy > shape.Y+shape.Height-1-z {
					cy = shape.Y + shape.Height - 1 - z
				}
				if err := e.switchScreenLocked(dst, cx, cy, false); err != nil {
					return err
				}
			}
		}
		e.saver = nil
	}

	for name, s := range e.sinksLocked() {
		sc, ok := s.(Screen)
		if !ok {
			continue
		}
		if err := sc.Screensaver(on); err != nil {
			log.Warn("broadcast screensaver state failed", "screen", name, "error", err)
		}
	}
	return nil
}

// HandleClipboardGrab forwards an inbound CCLP to the clipboard
// registry (spec §4.7's onGrabClipboard).
func (e *Engine) HandleClipboardGrab(requesterName string, id protocol.ClipboardID, seq uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	isPrimary := requesterName == e.primary.Name()
	e.registry.Grab(requesterName, id, seq, isPrimary, e.sinksLocked())
}

// HandleClipboardChanged forwards an inbound DCLP to the clipboard
// registry (spec §4.7's onClipboardChanged).
func (e *Engine) HandleClipboardChanged(id protocol.ClipboardID, seq uint32, data []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registry.Update(id, seq, data, e.sinksLocked(), e.active)
}
