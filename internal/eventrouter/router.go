// Package eventrouter implements EventRouter / IPrimaryReceiver (spec
// §4.7): the single entry point the platform primary-screen driver
// calls into. Every handler acquires the server lock (via SwitchEngine,
// which owns it) and either relays to the active screen or mutates
// switch/clipboard state.
package eventrouter

import (
	"time"

	"github.com/shanesims/screenlink/internal/logging"
	"github.com/shanesims/screenlink/internal/protocol"
	"github.com/shanesims/screenlink/internal/switchengine"
)

var log = logging.L("eventrouter")

// ShutdownGrace bounds how long onError's orderly shutdown waits
// before forcing exit (spec §4.7: "a short grace period").
const ShutdownGrace = 3 * time.Second

// Router implements IPrimaryReceiver.
type Router struct {
	engine   *switchengine.Engine
	shutdown func(grace time.Duration)
}

// inputSink is the key/mouse-button surface the Router relays to the
// active screen without SwitchEngine interpreting it. clientproxy.Proxy
// and primaryclient.PrimaryClient both implement it.
type inputSink interface {
	KeyDown(key, mask, button uint16) error
	KeyUp(key, mask, button uint16) error
	KeyRepeat(key, mask, button, count uint16) error
	MouseDown(button uint8) error
	MouseUp(button uint8) error
	MouseWheel(delta int) error
}

// New builds a Router. shutdown is invoked by OnError to request an
// orderly server shutdown.
func New(engine *switchengine.Engine, shutdown func(grace time.Duration)) *Router {
	return &Router{engine: engine, shutdown: shutdown}
}

func (r *Router) OnScreensaver(on bool) error {
	return r.engine.SetScreensaver(on)
}

func (r *Router) OnKeyDown(key, mask, button uint16) error {
	if r.engine.HandleCommandKey(key, mask) {
		return nil
	}
	return r.engine.ActiveScreen().(inputSink).KeyDown(key, mask, button)
}

func (r *Router) OnKeyUp(key, mask, button uint16) error {
	if r.engine.HandleCommandKey(key, mask) {
		return nil
	}
	return r.engine.ActiveScreen().(inputSink).KeyUp(key, mask, button)
}

func (r *Router) OnKeyRepeat(key, mask, button, count uint16) error {
	if r.engine.HandleCommandKey(key, mask) {
		return nil
	}
	return r.engine.ActiveScreen().(inputSink).KeyRepeat(key, mask, button, count)
}

func (r *Router) OnMouseDown(button uint8) error {
	return r.engine.ActiveScreen().(inputSink).MouseDown(button)
}

func (r *Router) OnMouseUp(button uint8) error {
	return r.engine.ActiveScreen().(inputSink).MouseUp(button)
}

// OnMouseMovePrimary is only meaningful while the primary is active;
// SwitchEngine itself enforces the precondition.
func (r *Router) OnMouseMovePrimary(x, y int) error {
	return r.engine.OnMouseMovePrimary(x, y)
}

// OnMouseMoveSecondary is only meaningful while a remote screen is
// active; SwitchEngine itself enforces the precondition.
func (r *Router) OnMouseMoveSecondary(dx, dy int) error {
	return r.engine.OnMouseMoveSecondary(dx, dy)
}

func (r *Router) OnMouseWheel(delta int) error {
	return r.engine.ActiveScreen().(inputSink).MouseWheel(delta)
}

// OnInfoChanged is a notification-only hook: the proxy that received
// DINF has already applied the new shape to itself (clientproxy.Proxy.applyInfo),
// so there's nothing further to mutate here beyond logging.
func (r *Router) OnInfoChanged(name string, info protocol.ScreenInfo) {
	log.Debug("screen info changed", "screen", name, "width", info.Width, "height", info.Height)
}

func (r *Router) OnGrabClipboard(name string, id protocol.ClipboardID, seq uint32) {
	r.engine.HandleClipboardGrab(name, id, seq)
}

func (r *Router) OnClipboardChanged(id protocol.ClipboardID, seq uint32, data []byte) {
	r.engine.HandleClipboardChanged(id, seq, data)
}

// OnError requests an orderly shutdown with a short grace period.
func (r *Router) OnError() {
	log.Error("primary driver reported an unrecoverable error, requesting shutdown")
	if r.shutdown != nil {
		r.shutdown(ShutdownGrace)
	}
}
