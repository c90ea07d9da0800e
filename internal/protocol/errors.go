package protocol

import "fmt"

// ProtocolError covers bad framing, unknown format directives, and
// frame lengths exceeding the configured ceiling (spec §4.2/§7).
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("protocol: %s", e.Reason)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func newProtocolError(reason string, err error) *ProtocolError {
	return &ProtocolError{Reason: reason, Err: err}
}

// IncompatibleError is returned by the handshake when the peer's
// version can't be served, per spec §4.3.
type IncompatibleError struct {
	Major, Minor int
}

func (e *IncompatibleError) Error() string {
	return fmt.Sprintf("protocol: incompatible client version %d.%d", e.Major, e.Minor)
}

// BadClientError is returned for a client that misbehaves after the
// handshake: no DINF (or a different command) in reply to Open's QINF,
// or an unrecognized command code in MainLoop.
type BadClientError struct {
	Reason string
}

func (e *BadClientError) Error() string {
	return fmt.Sprintf("protocol: bad client: %s", e.Reason)
}
