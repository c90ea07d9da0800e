package main

import (
	"github.com/shanesims/screenlink/internal/layout"
	"github.com/shanesims/screenlink/internal/protocol"
)

// headlessDriver is a no-op ScreenDriver: it satisfies primaryclient's
// platform seam without ever grabbing real input or the real OS
// clipboard. A platform build swaps this out for a real capture/inject
// driver (out of this repository's scope, spec §1); this keeps `run`
// startable end to end in its absence.
type headlessDriver struct {
	name     string
	shape    layout.Shape
	locked   bool
	mask     uint16
	clipData map[protocol.ClipboardID][]byte
}

func newHeadlessDriver(name string, shape layout.Shape) *headlessDriver {
	return &headlessDriver{
		name:     name,
		shape:    shape,
		clipData: make(map[protocol.ClipboardID][]byte),
	}
}

func (d *headlessDriver) Name() string           { return d.name }
func (d *headlessDriver) Shape() layout.Shape     { return d.shape }
func (d *headlessDriver) JumpZoneSize() int       { return d.shape.ZoneSize }

func (d *headlessDriver) Enter(x, y int, forScreensaver bool) error { return nil }
func (d *headlessDriver) Leave() (bool, error)                      { return true, nil }

func (d *headlessDriver) KeyDown(key, mask, button uint16) error            { return nil }
func (d *headlessDriver) KeyUp(key, mask, button uint16) error              { return nil }
func (d *headlessDriver) KeyRepeat(key, mask, button, count uint16) error   { return nil }
func (d *headlessDriver) MouseDown(button uint8) error                     { return nil }
func (d *headlessDriver) MouseUp(button uint8) error                       { return nil }
func (d *headlessDriver) MouseMove(x, y int) error                         { return nil }
func (d *headlessDriver) MouseWheel(delta int) error                       { return nil }
func (d *headlessDriver) Screensaver(on bool) error                        { return nil }

func (d *headlessDriver) IsLockedToScreen() bool { return d.locked }
func (d *headlessDriver) ToggleMask() uint16     { return d.mask }
func (d *headlessDriver) Reconfigure(activeSideMask [4]bool) error { return nil }

func (d *headlessDriver) ReadClipboard(id protocol.ClipboardID) ([]byte, error) {
	return d.clipData[id], nil
}

func (d *headlessDriver) WriteClipboard(id protocol.ClipboardID, data []byte) error {
	d.clipData[id] = data
	return nil
}
