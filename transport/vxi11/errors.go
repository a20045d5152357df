package vxi11

import (
	"errors"

	"github.com/openvisa-go/govisa/transport"
)

// errShortXDR is a local decode-boundary error, always surfaced wrapped in
// transport.ErrProtocol at the call site.
var errShortXDR = errors.New("vxi11: short xdr buffer")

// Local aliases keep call sites in this package terse while still
// returning the shared transport.Err* sentinels session code classifies on.
var (
	errProtocol         = transport.ErrProtocol
	errConnectionLost   = transport.ErrConnectionLost
	errTimeout          = transport.ErrTimeout
	errResourceNotFound = transport.ErrResourceNotFound
)
