package transport

import "errors"

// Sentinel errors returned by transport implementations, grouped by
// subsystem the way the teacher's hsms/errors.go groups its sentinels.
// Session code (package session) maps these onto visa.Kind at the
// session/transport boundary.
var (
	// ErrTimeout indicates a deadline was exceeded during I/O.
	ErrTimeout = errors.New("transport: timeout")

	// ErrConnectionLost indicates the peer closed the connection or the
	// socket was found not open.
	ErrConnectionLost = errors.New("transport: connection lost")

	// ErrProtocol indicates a protocol violation, wire corruption, or a
	// device-reported error (maps to visa.IO).
	ErrProtocol = errors.New("transport: protocol error")

	// ErrResourceLocked indicates a USB interface claim was rejected.
	ErrResourceLocked = errors.New("transport: resource locked")

	// ErrResourceNotFound indicates discovery came back empty, a host did
	// not resolve, or a device was absent.
	ErrResourceNotFound = errors.New("transport: resource not found")

	// ErrNotSupported indicates the operation is unavailable on this
	// transport (e.g. GPIB without a controller library).
	ErrNotSupported = errors.New("transport: not supported")
)
