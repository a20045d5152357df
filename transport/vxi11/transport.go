// Package vxi11 implements the VXI-11 transport of spec.md §4.5: ONC RPC
// (RFC 5531) over TCP, bootstrapped through the portmapper, carrying
// create_link/device_write/device_read/device_readstb/device_clear/
// destroy_link.
package vxi11

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/openvisa-go/govisa/logger"
	"github.com/openvisa-go/govisa/resource"
	"github.com/openvisa-go/govisa/transport"
)

const (
	procCreateLink   = 10
	procDeviceWrite  = 11
	procDeviceRead   = 12
	procDeviceReadSTB = 13
	procDeviceClear  = 15
	procDestroyLink  = 23

	flagEnd        = 0x08
	reasonReqCnt   = 0x01
	reasonChr      = 0x02
	reasonEnd      = 0x04

	defaultMaxRecvSize = 65536
	writeTimeout       = 10 * time.Second
)

// Transport is the VXI-11 transport instance. Exactly one per session,
// per spec.md §3.
type Transport struct {
	desc *resource.Descriptor
	log  logger.Logger

	conn        net.Conn
	xid         uint32
	linkID      int32
	maxRecvSize uint32
}

var _ transport.Transport = (*Transport)(nil)

func init() {
	transport.Register("vxi11", func(d *resource.Descriptor, log logger.Logger) transport.Transport {
		return New(d, log)
	})
}

// New constructs a VXI-11 transport for d. d.Kind must be TCPIP with
// neither IsSocket nor IsHiSLIP set.
func New(d *resource.Descriptor, log logger.Logger) *Transport {
	return &Transport{desc: d, log: log}
}

func randomSeed() uint32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return uint32(time.Now().UnixNano())
	}
	return binary.BigEndian.Uint32(b[:]) ^ uint32(time.Now().UnixNano())
}

// nextXID increments and returns the next RPC transaction id. spec.md §5,
// invariant 6: strictly increasing across successive calls (mod 2^32).
func (t *Transport) nextXID() uint32 {
	t.xid++
	return t.xid
}

// Open bootstraps through the portmapper, then issues create_link.
func (t *Transport) Open(ctx context.Context) error {
	t.xid = randomSeed()

	port, err := getPort(ctx, t.desc.Host, t.nextXID())
	if err != nil {
		return err
	}

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(t.desc.Host, fmt.Sprintf("%d", port)))
	if err != nil {
		return fmt.Errorf("%w: core dial: %v", errConnectionLost, err)
	}
	t.conn = conn

	device := t.desc.DeviceName
	if device == "" {
		device = "inst0"
	}

	xid := t.nextXID()
	args := make([]byte, 0, 32)
	args = putI32(args, 0)      // clientId
	args = putBool(args, false) // lockDevice
	args = putU32(args, 0)      // lockTimeout
	args = putString(args, device)

	body, err := t.call(ctx, procCreateLink, xid, args)
	if err != nil {
		_ = conn.Close()
		t.conn = nil
		return err
	}

	r := newXDRReader(body)
	errCode, err := r.i32()
	if err != nil {
		return err
	}
	if errCode != 0 {
		_ = conn.Close()
		t.conn = nil
		return fmt.Errorf("%w: create_link error %d", errProtocol, errCode)
	}
	linkID, err := r.i32()
	if err != nil {
		return err
	}
	if _, err := r.u32(); err != nil { // abortPort, unused (async I/O out of scope)
		return err
	}
	maxRecv, err := r.u32()
	if err != nil {
		return err
	}

	t.linkID = linkID
	t.maxRecvSize = maxRecv
	if t.maxRecvSize == 0 {
		t.maxRecvSize = defaultMaxRecvSize
	}

	t.log.Debug("vxi11: link created", "host", t.desc.Host, "port", port, "linkID", linkID, "maxRecvSize", t.maxRecvSize)
	return nil
}

// call sends one RPC request on the core link and returns the reply body.
func (t *Transport) call(ctx context.Context, procedure uint32, xid uint32, args []byte) ([]byte, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetDeadline(deadline)
	}

	call := buildCallHeader(xid, vxi11CoreProg, vxi11CoreVers, procedure)
	call = append(call, args...)

	if err := writeRecord(t.conn, call); err != nil {
		return nil, fmt.Errorf("%w: %v", errConnectionLost, err)
	}

	record, err := readRecord(t.conn)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, errTimeout
		}
		return nil, fmt.Errorf("%w: %v", errConnectionLost, err)
	}

	return parseReplyHeader(xid, record)
}

// ioTimeoutMillis extracts a millisecond budget from ctx's deadline,
// falling back to the session default.
func ioTimeoutMillis(ctx context.Context) uint32 {
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}
		return uint32(remaining / time.Millisecond)
	}
	return uint32(transport.DefaultTimeout / time.Millisecond)
}

// Close issues destroy_link best-effort, then closes the TCP link.
func (t *Transport) Close() error {
	if t.conn == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), transport.InternalBound)
	defer cancel()

	args := putI32(nil, t.linkID)
	_, _ = t.call(ctx, procDestroyLink, t.nextXID(), args)

	err := t.conn.Close()
	t.conn = nil
	return err
}

// Write fragments the payload into chunks of at most maxRecvSize, setting
// the END flag only on the last chunk (spec.md §4.5 "write").
func (t *Transport) Write(ctx context.Context, p []byte) (int, error) {
	if t.conn == nil {
		return 0, errConnectionLost
	}

	ioTimeout := ioTimeoutMillis(ctx)
	total := 0
	for total < len(p) {
		chunkSize := len(p) - total
		if uint32(chunkSize) > t.maxRecvSize {
			chunkSize = int(t.maxRecvSize)
		}
		chunk := p[total : total+chunkSize]
		last := total+chunkSize >= len(p)

		flags := uint32(0)
		if last {
			flags = flagEnd
		}

		args := make([]byte, 0, 32+len(chunk))
		args = putI32(args, t.linkID)
		args = putU32(args, ioTimeout)
		args = putU32(args, 0) // lockTimeout
		args = putU32(args, flags)
		args = putOpaque(args, chunk)

		body, err := t.call(ctx, procDeviceWrite, t.nextXID(), args)
		if err != nil {
			return total, err
		}

		r := newXDRReader(body)
		errCode, err := r.i32()
		if err != nil {
			return total, err
		}
		if errCode != 0 {
			return total, fmt.Errorf("%w: device_write error %d", errProtocol, errCode)
		}
		written, err := r.u32()
		if err != nil {
			return total, err
		}

		total += int(written)
		if written == 0 {
			// Guard against a device bug reporting zero progress forever.
			break
		}
	}

	return total, nil
}

// Read repeats device_read until END/REQCNT/CHR is signalled or the
// device returns short of the requested size (spec.md §4.5 "read").
func (t *Transport) Read(ctx context.Context, p []byte) (int, transport.TermStatus, error) {
	if t.conn == nil {
		return 0, transport.TermNone, errConnectionLost
	}

	ioTimeout := ioTimeoutMillis(ctx)
	total := 0
	for total < len(p) {
		requestSize := uint32(len(p) - total)
		if requestSize > t.maxRecvSize {
			requestSize = t.maxRecvSize
		}

		args := make([]byte, 0, 32)
		args = putI32(args, t.linkID)
		args = putU32(args, requestSize)
		args = putU32(args, ioTimeout)
		args = putU32(args, 0) // lockTimeout
		args = putU32(args, 0) // flags
		args = putU32(args, 0) // termChar

		body, err := t.call(ctx, procDeviceRead, t.nextXID(), args)
		if err != nil {
			return total, transport.TermNone, err
		}

		r := newXDRReader(body)
		errCode, err := r.i32()
		if err != nil {
			return total, transport.TermNone, err
		}
		if errCode != 0 {
			return total, transport.TermNone, fmt.Errorf("%w: device_read error %d", errProtocol, errCode)
		}
		reason, err := r.u32()
		if err != nil {
			return total, transport.TermNone, err
		}
		data, err := r.opaque()
		if err != nil {
			return total, transport.TermNone, err
		}

		n := copy(p[total:], data) // truncation must not happen by construction
		total += n

		if reason&(reasonEnd|reasonReqCnt|reasonChr) != 0 {
			if reason&(reasonEnd|reasonChr) != 0 {
				return total, transport.TermChar, nil
			}
			return total, transport.TermMaxCount, nil
		}
		if uint32(len(data)) < requestSize {
			return total, transport.TermMaxCount, nil
		}
	}

	return total, transport.TermMaxCount, nil
}

// ReadStatus issues device_readstb.
func (t *Transport) ReadStatus(ctx context.Context) (byte, error) {
	if t.conn == nil {
		return 0, errConnectionLost
	}
	args := make([]byte, 0, 16)
	args = putI32(args, t.linkID)
	args = putU32(args, 0) // flags
	args = putU32(args, 0) // lockTimeout
	args = putU32(args, ioTimeoutMillis(ctx))

	body, err := t.call(ctx, procDeviceReadSTB, t.nextXID(), args)
	if err != nil {
		return 0, err
	}

	r := newXDRReader(body)
	errCode, err := r.i32()
	if err != nil {
		return 0, err
	}
	if errCode != 0 {
		return 0, fmt.Errorf("%w: device_readstb error %d", errProtocol, errCode)
	}
	stb, err := r.u32()
	if err != nil {
		return 0, err
	}
	return byte(stb & 0xFF), nil
}

// Clear issues device_clear.
func (t *Transport) Clear(ctx context.Context) error {
	if t.conn == nil {
		return errConnectionLost
	}
	args := make([]byte, 0, 16)
	args = putI32(args, t.linkID)
	args = putU32(args, 0) // flags
	args = putU32(args, 0) // lockTimeout
	args = putU32(args, ioTimeoutMillis(ctx))

	body, err := t.call(ctx, procDeviceClear, t.nextXID(), args)
	if err != nil {
		return err
	}
	r := newXDRReader(body)
	errCode, err := r.i32()
	if err != nil {
		return err
	}
	if errCode != 0 {
		return fmt.Errorf("%w: device_clear error %d", errProtocol, errCode)
	}
	return nil
}
