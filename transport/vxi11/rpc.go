package vxi11

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

// TCP Record Marking + ONC RPC (RFC 5531) framing, spec.md §4.5.

const (
	rmLastFragment = 0x80000000
	rmLengthMask   = 0x7FFFFFFF

	rpcCall           = 0
	rpcReply          = 1
	rpcMsgAccepted    = 0
	rpcAcceptSuccess  = 0
	rpcVersion        = 2
	authNull          = 0
	maxRecordFragment = 1 << 24 // sanity bound against a corrupt length header
)

// writeRecord sends payload as a single last-fragment RM record.
func writeRecord(conn net.Conn, payload []byte) error {
	hdr := make([]byte, 4)
	binary.BigEndian.PutUint32(hdr, rmLastFragment|uint32(len(payload)))
	if _, err := conn.Write(hdr); err != nil {
		return err
	}
	_, err := conn.Write(payload)
	return err
}

// readRecord reads one or more RM fragments and concatenates them into a
// single record. The sender always uses a single fragment; the receiver
// must tolerate several.
func readRecord(conn net.Conn) ([]byte, error) {
	var out []byte
	hdr := make([]byte, 4)
	for {
		if _, err := io.ReadFull(conn, hdr); err != nil {
			return nil, err
		}
		h := binary.BigEndian.Uint32(hdr)
		last := h&rmLastFragment != 0
		n := h & rmLengthMask
		if n > maxRecordFragment {
			return nil, fmt.Errorf("%w: fragment too large (%d bytes)", errProtocol, n)
		}
		frag := make([]byte, n)
		if n > 0 {
			if _, err := io.ReadFull(conn, frag); err != nil {
				return nil, err
			}
		}
		out = append(out, frag...)
		if last {
			return out, nil
		}
	}
}

// buildCallHeader encodes the 40-byte RPC call header:
// {xid, CALL, rpc_version, program, version, procedure, cred=AUTH_NULL{0,0}, verf=AUTH_NULL{0,0}}.
func buildCallHeader(xid, program, version, procedure uint32) []byte {
	buf := make([]byte, 0, 40)
	buf = putU32(buf, xid)
	buf = putU32(buf, rpcCall)
	buf = putU32(buf, rpcVersion)
	buf = putU32(buf, program)
	buf = putU32(buf, version)
	buf = putU32(buf, procedure)
	buf = putU32(buf, authNull) // cred flavor
	buf = putU32(buf, 0)        // cred length
	buf = putU32(buf, authNull) // verf flavor
	buf = putU32(buf, 0)        // verf length
	return buf
}

// parseReplyHeader validates the RPC reply header and returns the body
// following it (the procedure-specific reply arguments).
func parseReplyHeader(xid uint32, data []byte) ([]byte, error) {
	r := newXDRReader(data)

	repXid, err := r.u32()
	if err != nil {
		return nil, err
	}
	if repXid != xid {
		return nil, fmt.Errorf("%w: xid mismatch, want %d got %d", errProtocol, xid, repXid)
	}

	msgType, err := r.u32()
	if err != nil {
		return nil, err
	}
	if msgType != rpcReply {
		return nil, fmt.Errorf("%w: not a reply message", errProtocol)
	}

	replyStat, err := r.u32()
	if err != nil {
		return nil, err
	}
	if replyStat != rpcMsgAccepted {
		return nil, fmt.Errorf("%w: rpc call rejected (stat=%d)", errProtocol, replyStat)
	}

	// verf: flavor + opaque length + padded data
	if _, err := r.u32(); err != nil { // verf flavor
		return nil, err
	}
	if _, err := r.opaque(); err != nil { // verf body
		return nil, err
	}

	acceptStat, err := r.u32()
	if err != nil {
		return nil, err
	}
	if acceptStat != rpcAcceptSuccess {
		return nil, fmt.Errorf("%w: rpc accept status %d", errProtocol, acceptStat)
	}

	return data[r.pos:], nil
}
