package protocol

import "encoding/binary"

// FrameWriter accumulates the typed fields of one message body
// (i1/i2/i4/s/vi, per spec §4.2) before handing it to Codec.WriteFrame.
type FrameWriter struct {
	buf []byte
}

func NewFrameWriter() *FrameWriter {
	return &FrameWriter{}
}

func (w *FrameWriter) Uint8(v uint8) *FrameWriter {
	w.buf = append(w.buf, v)
	return w
}

func (w *FrameWriter) Uint16(v uint16) *FrameWriter {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
	return w
}

func (w *FrameWriter) Uint32(v uint32) *FrameWriter {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
	return w
}

// String writes a length-prefixed byte string (the `s` field type).
func (w *FrameWriter) String(s string) *FrameWriter {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(len(s)))
	w.buf = append(w.buf, s...)
	return w
}

// Bytes writes a length-prefixed byte string from a []byte (used for
// clipboard payloads, which are opaque marshalled bytes, not text).
func (w *FrameWriter) Bytes(b []byte) *FrameWriter {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(len(b)))
	w.buf = append(w.buf, b...)
	return w
}

// UintVector writes the `vi` field type: a count-prefixed vector of
// 32-bit integers (used by DSOP's option pairs).
func (w *FrameWriter) UintVector(vals []uint32) *FrameWriter {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(len(vals)))
	for _, v := range vals {
		w.buf = binary.BigEndian.AppendUint32(w.buf, v)
	}
	return w
}

// Body returns the accumulated field bytes.
func (w *FrameWriter) Body() []byte { return w.buf }

// FrameReader decodes the typed fields of a received message body,
// failing with a ProtocolError on any short read (spec: "Reads fail
// with ProtocolError on EOF mid-frame").
type FrameReader struct {
	buf []byte
	pos int
}

func NewFrameReader(body []byte) *FrameReader {
	return &FrameReader{buf: body}
}

func (r *FrameReader) need(n int) error {
	if r.pos+n > len(r.buf) {
		return newProtocolError("unexpected end of frame", nil)
	}
	return nil
}

func (r *FrameReader) Uint8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *FrameReader) Uint16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *FrameReader) Uint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *FrameReader) String() (string, error) {
	b, err := r.BytesField()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// BytesField reads the `s` field type as raw bytes (clipboard data).
func (r *FrameReader) BytesField() ([]byte, error) {
	n, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	if err := r.need(int(n)); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b, nil
}

// UintVector reads the `vi` field type.
func (r *FrameReader) UintVector() ([]uint32, error) {
	n, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	out := make([]uint32, n)
	for i := range out {
		v, err := r.Uint32()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Raw reads n unparsed bytes (used only for the "Synergy" hello tag).
func (r *FrameReader) Raw(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Done reports whether the frame has been fully consumed.
func (r *FrameReader) Done() bool { return r.pos == len(r.buf) }
