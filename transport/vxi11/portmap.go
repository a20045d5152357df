package vxi11

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
)

const (
	portmapProg     = 100000
	portmapVers     = 2
	portmapProcGet  = 3
	portmapPort     = 111
	protoTCP        = 6
	vxi11CoreProg   = 0x0607AF
	vxi11CoreVers   = 1
)

// portmapDialPort is the port getPort connects to. It is a variable, not a
// constant, so tests can point it at a fake portmapper on an ephemeral port.
var portmapDialPort = "111"

// getPort opens a short-lived TCP connection to host:111 and issues a
// portmapper GETPORT call for (vxi11CoreProg, vxi11CoreVers, TCP), returning
// the VXI-11 core port. spec.md §4.5 "Bootstrap".
func getPort(ctx context.Context, host string, xid uint32) (uint16, error) {
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, portmapDialPort))
	if err != nil {
		return 0, fmt.Errorf("%w: portmapper dial: %v", errConnectionLost, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	call := buildCallHeader(xid, portmapProg, portmapVers, portmapProcGet)
	// mapping args: {prog, vers, prot, port=0}
	call = putU32(call, vxi11CoreProg)
	call = putU32(call, vxi11CoreVers)
	call = putU32(call, protoTCP)
	call = putU32(call, 0)

	if err := writeRecord(conn, call); err != nil {
		return 0, fmt.Errorf("%w: portmapper write: %v", errConnectionLost, err)
	}

	record, err := readRecord(conn)
	if err != nil {
		return 0, fmt.Errorf("%w: portmapper read: %v", errConnectionLost, err)
	}

	body, err := parseReplyHeader(xid, record)
	if err != nil {
		return 0, err
	}
	if len(body) < 4 {
		return 0, fmt.Errorf("%w: short portmapper reply", errProtocol)
	}
	port := binary.BigEndian.Uint32(body)
	if port == 0 {
		return 0, fmt.Errorf("%w: portmapper has no mapping for VXI-11 core", errResourceNotFound)
	}
	return uint16(port), nil
}
