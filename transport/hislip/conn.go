package hislip

import (
	"bufio"
	"context"
	"fmt"
	"net"

	"github.com/openvisa-go/govisa/transport"
)

// Protocol version this client speaks (HiSLIP 1.1). Vendor ID is a fixed
// placeholder, matching the original C source (spec.md's SUPPLEMENTED
// FEATURES note in SPEC_FULL.md).
const (
	protoMajor = 1
	protoMinor = 1
	vendorID   = 0x0000
)

// conn holds the two TCP channels a HiSLIP session requires.
type conn struct {
	sync      net.Conn
	syncR     *bufio.Reader
	async     net.Conn
	asyncR    *bufio.Reader
	sessionID uint16
}

// dial performs the five-step handshake of spec.md §4.6.
func dial(ctx context.Context, host string, port uint16, subAddress string) (*conn, error) {
	dialer := &net.Dialer{}
	address := net.JoinHostPort(host, fmt.Sprintf("%d", port))

	syncConn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("%w: sync dial: %v", transport.ErrConnectionLost, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = syncConn.SetDeadline(deadline)
	}

	c := &conn{sync: syncConn, syncR: bufio.NewReader(syncConn)}

	param := uint32(protoMajor)<<24 | uint32(protoMinor)<<16 | uint32(vendorID)
	if err := WriteMessage(c.sync, Header{MsgType: MsgInitialize, Param: param}, []byte(subAddress)); err != nil {
		c.closeAll()
		return nil, fmt.Errorf("%w: %v", transport.ErrConnectionLost, err)
	}

	h, err := ReadHeader(c.syncR)
	if err != nil {
		c.closeAll()
		return nil, fmt.Errorf("%w: %v", transport.ErrConnectionLost, err)
	}
	if _, err := ReadPayload(c.syncR, h); err != nil {
		c.closeAll()
		return nil, fmt.Errorf("%w: %v", transport.ErrConnectionLost, err)
	}
	if h.MsgType != MsgInitializeResponse {
		c.closeAll()
		return nil, fmt.Errorf("%w: expected InitializeResponse, got type %d", transport.ErrProtocol, h.MsgType)
	}
	c.sessionID = uint16(h.Param & 0xFFFF)

	asyncConn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		c.closeAll()
		return nil, fmt.Errorf("%w: async dial: %v", transport.ErrConnectionLost, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = asyncConn.SetDeadline(deadline)
	}
	c.async = asyncConn
	c.asyncR = bufio.NewReader(asyncConn)

	if err := WriteMessage(c.async, Header{MsgType: MsgAsyncInitialize, Param: uint32(c.sessionID)}, nil); err != nil {
		c.closeAll()
		return nil, fmt.Errorf("%w: %v", transport.ErrConnectionLost, err)
	}

	ah, err := ReadHeader(c.asyncR)
	if err != nil {
		c.closeAll()
		return nil, fmt.Errorf("%w: %v", transport.ErrConnectionLost, err)
	}
	if _, err := ReadPayload(c.asyncR, ah); err != nil {
		c.closeAll()
		return nil, fmt.Errorf("%w: %v", transport.ErrConnectionLost, err)
	}
	if ah.MsgType != MsgAsyncInitializeResponse {
		c.closeAll()
		return nil, fmt.Errorf("%w: expected AsyncInitializeResponse, got type %d", transport.ErrProtocol, ah.MsgType)
	}

	return c, nil
}

func (c *conn) closeAll() {
	if c.sync != nil {
		_ = c.sync.Close()
	}
	if c.async != nil {
		_ = c.async.Close()
	}
}

func (c *conn) setDeadline(ctx context.Context) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return
	}
	if c.sync != nil {
		_ = c.sync.SetDeadline(deadline)
	}
	if c.async != nil {
		_ = c.async.SetDeadline(deadline)
	}
}
