package protocol

// Command codes, per spec §6. Each is exactly 4 ASCII bytes.
const (
	CmdQueryInfo      = "QINF" // S->C: request client screen info
	CmdScreenInfo     = "DINF" // C->S: screen info/update
	CmdInfoAck        = "CIAK" // S->C: info received
	CmdResetOptions   = "CROP" // S->C: reset options
	CmdSetOptions     = "DSOP" // S->C: set options
	CmdEnter          = "CINN" // S->C: enter
	CmdLeave          = "COUT" // S->C: leave
	CmdKeyDown        = "DKDN" // S->C: key down
	CmdKeyUp          = "DKUP" // S->C: key up
	CmdKeyRepeat      = "DKRP" // S->C: key repeat
	CmdMouseDown      = "DMDN" // S->C: mouse button down
	CmdMouseUp        = "DMUP" // S->C: mouse button up
	CmdMouseMove      = "DMMV" // S->C: mouse move
	CmdMouseWheel     = "DMWM" // S->C: mouse wheel
	CmdClipboardGrab  = "CCLP" // both: clipboard grab
	CmdClipboardData  = "DCLP" // both: clipboard contents
	CmdScreensaver    = "CSEC" // S->C: screensaver state
	CmdKeepAlive      = "CALV" // both: keepalive
	CmdClientBye      = "CBYE" // C->S: client closing
	CmdNoop           = "CNOP" // both: noop
	CmdIncompatible   = "EICV" // S->C: incompatible version
	CmdBusy           = "EBSY" // S->C: duplicate name
	CmdUnknown        = "EUNK" // S->C: unknown name
	CmdProtocolError  = "EBAD" // S->C: protocol violation
)

// ClipboardID identifies one of the two clipboards the protocol
// tracks (spec §3).
type ClipboardID uint8

const (
	ClipboardPrimary   ClipboardID = 0
	ClipboardSelection ClipboardID = 1 // X11-style CLIPBOARD buffer
)

// ScreenInfo is the payload of DINF: a screen's shape and last
// reported mouse position.
type ScreenInfo struct {
	X, Y, Width, Height int
	ZoneSize            int
	MouseX, MouseY      int
}

func EncodeScreenInfo(info ScreenInfo) []byte {
	return NewFrameWriter().
		Uint16(uint16(info.X)).
		Uint16(uint16(info.Y)).
		Uint16(uint16(info.Width)).
		Uint16(uint16(info.Height)).
		Uint16(uint16(info.ZoneSize)).
		Uint16(uint16(info.MouseX)).
		Uint16(uint16(info.MouseY)).
		Body()
}

func DecodeScreenInfo(body []byte) (ScreenInfo, error) {
	r := NewFrameReader(body)
	var info ScreenInfo
	fields := []*int{&info.X, &info.Y, &info.Width, &info.Height, &info.ZoneSize, &info.MouseX, &info.MouseY}
	for _, f := range fields {
		v, err := r.Uint16()
		if err != nil {
			return ScreenInfo{}, err
		}
		*f = int(v)
	}
	return info, nil
}

// EnterParams is the payload of CINN.
type EnterParams struct {
	X, Y     int
	Seq      uint32
	Mask     uint16
}

func EncodeEnter(p EnterParams) []byte {
	return NewFrameWriter().
		Uint16(uint16(p.X)).
		Uint16(uint16(p.Y)).
		Uint32(p.Seq).
		Uint16(p.Mask).
		Body()
}

func DecodeEnter(body []byte) (EnterParams, error) {
	r := NewFrameReader(body)
	var p EnterParams
	x, err := r.Uint16()
	if err != nil {
		return p, err
	}
	y, err := r.Uint16()
	if err != nil {
		return p, err
	}
	seq, err := r.Uint32()
	if err != nil {
		return p, err
	}
	mask, err := r.Uint16()
	if err != nil {
		return p, err
	}
	return EnterParams{X: int(x), Y: int(y), Seq: seq, Mask: mask}, nil
}

// KeyEvent is the shared payload shape of DKDN/DKUP/DKRP.
type KeyEvent struct {
	Key, Mask, Button uint16
	Count             uint16 // only meaningful for DKRP
}

func EncodeKeyEvent(e KeyEvent, repeat bool) []byte {
	w := NewFrameWriter().Uint16(e.Key).Uint16(e.Mask)
	if repeat {
		w.Uint16(e.Count)
	}
	return w.Uint16(e.Button).Body()
}

func DecodeKeyEvent(body []byte, repeat bool) (KeyEvent, error) {
	r := NewFrameReader(body)
	var e KeyEvent
	var err error
	if e.Key, err = r.Uint16(); err != nil {
		return e, err
	}
	if e.Mask, err = r.Uint16(); err != nil {
		return e, err
	}
	if repeat {
		if e.Count, err = r.Uint16(); err != nil {
			return e, err
		}
	}
	if e.Button, err = r.Uint16(); err != nil {
		return e, err
	}
	return e, nil
}

func EncodeMouseButton(id uint8) []byte {
	return NewFrameWriter().Uint8(id).Body()
}

func DecodeMouseButton(body []byte) (uint8, error) {
	return NewFrameReader(body).Uint8()
}

func EncodeMouseMove(x, y int) []byte {
	return NewFrameWriter().Uint16(uint16(x)).Uint16(uint16(y)).Body()
}

func DecodeMouseMove(body []byte) (x, y int, err error) {
	r := NewFrameReader(body)
	ux, err := r.Uint16()
	if err != nil {
		return 0, 0, err
	}
	uy, err := r.Uint16()
	if err != nil {
		return 0, 0, err
	}
	return int(ux), int(uy), nil
}

func EncodeMouseWheel(delta int) []byte {
	return NewFrameWriter().Uint16(uint16(int16(delta))).Body()
}

func DecodeMouseWheel(body []byte) (int, error) {
	v, err := NewFrameReader(body).Uint16()
	if err != nil {
		return 0, err
	}
	return int(int16(v)), nil
}

// ClipboardGrabParams is the payload of CCLP.
type ClipboardGrabParams struct {
	ID  ClipboardID
	Seq uint32
}

func EncodeClipboardGrab(p ClipboardGrabParams) []byte {
	return NewFrameWriter().Uint8(uint8(p.ID)).Uint32(p.Seq).Body()
}

func DecodeClipboardGrab(body []byte) (ClipboardGrabParams, error) {
	r := NewFrameReader(body)
	id, err := r.Uint8()
	if err != nil {
		return ClipboardGrabParams{}, err
	}
	seq, err := r.Uint32()
	if err != nil {
		return ClipboardGrabParams{}, err
	}
	return ClipboardGrabParams{ID: ClipboardID(id), Seq: seq}, nil
}

// ClipboardDataParams is the payload of DCLP.
type ClipboardDataParams struct {
	ID   ClipboardID
	Seq  uint32
	Data []byte
}

func EncodeClipboardData(p ClipboardDataParams) []byte {
	return NewFrameWriter().Uint8(uint8(p.ID)).Uint32(p.Seq).Bytes(p.Data).Body()
}

func DecodeClipboardData(body []byte) (ClipboardDataParams, error) {
	r := NewFrameReader(body)
	id, err := r.Uint8()
	if err != nil {
		return ClipboardDataParams{}, err
	}
	seq, err := r.Uint32()
	if err != nil {
		return ClipboardDataParams{}, err
	}
	data, err := r.BytesField()
	if err != nil {
		return ClipboardDataParams{}, err
	}
	return ClipboardDataParams{ID: ClipboardID(id), Seq: seq, Data: data}, nil
}

func EncodeScreensaver(on bool) []byte {
	var b uint8
	if on {
		b = 1
	}
	return NewFrameWriter().Uint8(b).Body()
}

func DecodeScreensaver(body []byte) (bool, error) {
	v, err := NewFrameReader(body).Uint8()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func EncodeSetOptions(pairs []uint32) []byte {
	return NewFrameWriter().UintVector(pairs).Body()
}

func DecodeSetOptions(body []byte) ([]uint32, error) {
	return NewFrameReader(body).UintVector()
}

func EncodeIncompatible(major, minor uint16) []byte {
	return NewFrameWriter().Uint16(major).Uint16(minor).Body()
}

func DecodeIncompatible(body []byte) (major, minor uint16, err error) {
	r := NewFrameReader(body)
	if major, err = r.Uint16(); err != nil {
		return 0, 0, err
	}
	if minor, err = r.Uint16(); err != nil {
		return 0, 0, err
	}
	return major, minor, nil
}
