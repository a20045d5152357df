package session

import (
	"errors"

	"github.com/openvisa-go/govisa/transport"
	"github.com/openvisa-go/govisa/visa"
)

// ErrInvalidObject is returned for an unknown or already-closed session or
// find-list handle (spec.md §7 "invalid_object").
var ErrInvalidObject = errors.New("session: invalid object")

// ErrNoTransport is returned when an I/O operation is attempted on the
// Resource Manager session, which owns no transport (spec.md §3).
var ErrNoTransport = errors.New("session: resource manager session has no transport")

// ErrAllocationFailure is returned when the session or find-list table has
// no free slot (spec.md §7 "allocation_failure").
var ErrAllocationFailure = errors.New("session: table full")

// ErrInvalidResourceName is returned when Open's resource string does not
// parse (spec.md §7 "invalid_resource_name").
var ErrInvalidResourceName = errors.New("session: invalid resource name")

// classify maps a transport error onto the closed visa.Kind taxonomy of
// spec.md §7 by walking the shared transport.Err* sentinels with errors.Is,
// the same style the teacher's hsms/errors.go groups sentinel checks in.
func classify(err error) visa.Kind {
	switch {
	case err == nil:
		return visa.Success
	case errors.Is(err, transport.ErrTimeout):
		return visa.Timeout
	case errors.Is(err, transport.ErrConnectionLost):
		return visa.ConnectionLost
	case errors.Is(err, transport.ErrResourceLocked):
		return visa.ResourceLocked
	case errors.Is(err, transport.ErrResourceNotFound):
		return visa.ResourceNotFound
	case errors.Is(err, transport.ErrNotSupported):
		return visa.NotSupported
	case errors.Is(err, transport.ErrProtocol):
		return visa.IO
	default:
		return visa.IO
	}
}
