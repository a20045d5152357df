// Package hislip implements the HiSLIP dual-channel framed transport of
// spec.md §4.6 (IVI-6.1). Message framing and the message-type table are
// grounded on _examples/xiabin827-gohislip (a from-scratch Go HiSLIP client
// implementing this exact wire format); connection/handshake plumbing
// follows the teacher's hsmsss.Connection dual-purpose-connection style.
package hislip

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Message types used by this transport (spec.md §4.6).
const (
	MsgInitialize                 uint8 = 0
	MsgInitializeResponse         uint8 = 1
	MsgFatalError                 uint8 = 2
	MsgError                      uint8 = 3
	MsgData                       uint8 = 6
	MsgDataEnd                    uint8 = 7
	MsgDeviceClearComplete        uint8 = 8
	MsgDeviceClearAcknowledge     uint8 = 9
	MsgAsyncInitialize            uint8 = 17
	MsgAsyncInitializeResponse    uint8 = 18
	MsgAsyncDeviceClear           uint8 = 19
	MsgAsyncStatusQuery           uint8 = 21
	MsgAsyncStatusResponse        uint8 = 22
	MsgAsyncDeviceClearAck        uint8 = 23
)

const (
	prologueHi = 'H'
	prologueLo = 'S'
	headerSize = 16

	// DefaultPort is the well-known HiSLIP TCP port.
	DefaultPort = 4880
)

// Header is the 16-byte HiSLIP message header of spec.md §4.6.
type Header struct {
	MsgType uint8
	Control uint8
	Param   uint32
	Length  uint64
}

// Encode writes the 16-byte header into buf[:16] (buf must have len>=16).
func (h *Header) Encode(buf []byte) {
	buf[0] = prologueHi
	buf[1] = prologueLo
	buf[2] = h.MsgType
	buf[3] = h.Control
	binary.BigEndian.PutUint32(buf[4:8], h.Param)
	binary.BigEndian.PutUint64(buf[8:16], h.Length)
}

// WriteMessage writes a full header+payload message to w.
func WriteMessage(w io.Writer, h Header, payload []byte) error {
	h.Length = uint64(len(payload))
	buf := make([]byte, headerSize+len(payload))
	h.Encode(buf)
	copy(buf[headerSize:], payload)
	_, err := w.Write(buf)
	return err
}

// ReadHeader reads and validates the 16-byte prologue-tagged header.
func ReadHeader(r io.Reader) (*Header, error) {
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	if buf[0] != prologueHi || buf[1] != prologueLo {
		return nil, fmt.Errorf("hislip: invalid prologue %q%q", buf[0], buf[1])
	}
	return &Header{
		MsgType: buf[2],
		Control: buf[3],
		Param:   binary.BigEndian.Uint32(buf[4:8]),
		Length:  binary.BigEndian.Uint64(buf[8:16]),
	}, nil
}

// ReadPayload reads exactly h.Length bytes following a header already read
// with ReadHeader.
func ReadPayload(r io.Reader, h *Header) ([]byte, error) {
	payload := make([]byte, h.Length)
	if h.Length == 0 {
		return payload, nil
	}
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
