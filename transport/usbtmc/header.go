// Package usbtmc implements the USBTMC/USB488 bulk-transfer transport of
// spec.md §4.7. Header framing and the bTag discipline are grounded on
// _examples/other_examples/nasa-jpl-golaborate__usbtmc.go; enumeration and
// endpoint/control-transfer plumbing use github.com/google/gousb, the same
// library that reference file depends on.
package usbtmc

import (
	"encoding/binary"
	"fmt"

	"github.com/openvisa-go/govisa/transport"
)

// Bulk message IDs (USBTMC spec table 2).
const (
	msgDevDepMsgOut        = 0x01
	msgRequestDevDepMsgIn  = 0x02
	msgVendorSpecificOut   = 0x7E
	msgRequestVendorSpecIn = 0x7F
)

// USB488 class-specific control requests (USBTMC spec table 15/16).
const (
	reqInitiateAbortBulkOut = 1
	reqInitiateAbortBulkIn  = 3
	reqInitiateClear        = 5
	reqCheckClearStatus     = 6
	reqGetCapabilities      = 7
	reqIndicatorPulse       = 64
	req488ReadStatusByte    = 128
)

const headerSize = 12

// bTag generates the 1..255 wrapping tag USBTMC uses to pair a bulk-out
// request with its response, skipping 0 (reserved).
type bTag struct {
	value byte
}

func (b *bTag) next() byte {
	b.value++
	if b.value == 0 {
		b.value = 1
	}
	return b.value
}

func invTag(tag byte) byte {
	return tag ^ 0xFF
}

// encDevDepMsgOut builds the 12-byte DEV_DEP_MSG_OUT header (Table 3).
func encDevDepMsgOut(tag byte, transferSize int, eom bool) [headerSize]byte {
	var out [headerSize]byte
	out[0] = msgDevDepMsgOut
	out[1] = tag
	out[2] = invTag(tag)
	out[3] = 0x00
	binary.LittleEndian.PutUint32(out[4:8], uint32(transferSize))
	if eom {
		out[8] = 0x01
	}
	return out
}

// encRequestDevDepMsgIn builds the REQUEST_DEV_DEP_MSG_IN header (Table 4).
// If useTerm is true, the transfer terminates early on termChar.
func encRequestDevDepMsgIn(tag byte, transferSize int, useTerm bool, termChar byte) [headerSize]byte {
	var out [headerSize]byte
	out[0] = msgRequestDevDepMsgIn
	out[1] = tag
	out[2] = invTag(tag)
	out[3] = 0x00
	binary.LittleEndian.PutUint32(out[4:8], uint32(transferSize))
	if useTerm {
		out[8] = 0x02
		out[9] = termChar
	}
	return out
}

// bulkInHeader is the 12-byte header USBTMC prepends to a DEV_DEP_MSG_IN
// bulk-in response.
type bulkInHeader struct {
	msgID        byte
	tag          byte
	tagInverse   byte
	transferSize uint32
	eom          bool
}

func decodeBulkInHeader(buf []byte) (bulkInHeader, error) {
	if len(buf) < headerSize {
		return bulkInHeader{}, errShortHeader
	}
	return bulkInHeader{
		msgID:        buf[0],
		tag:          buf[1],
		tagInverse:   buf[2],
		transferSize: binary.LittleEndian.Uint32(buf[4:8]),
		eom:          buf[8]&0x01 != 0,
	}, nil
}

// verifyBulkInTag checks that hdr echoes the tag a REQUEST_DEV_DEP_MSG_IN
// sent under tag, and its correctly-inverted complement. USBTMC spec table 3
// requires both to match exactly; a mismatch means the reply cannot be
// trusted to belong to this request.
func verifyBulkInTag(hdr bulkInHeader, tag byte) error {
	if hdr.tag != tag || hdr.tagInverse != invTag(tag) {
		return fmt.Errorf("%w: bulk-in tag mismatch: got tag=0x%02x inverse=0x%02x, want tag=0x%02x inverse=0x%02x",
			transport.ErrProtocol, hdr.tag, hdr.tagInverse, tag, invTag(tag))
	}
	return nil
}

// padTo4 returns b padded with zero bytes to the next multiple of 4, the
// alignment USBTMC requires between consecutive bulk transfers.
func padTo4(b []byte) []byte {
	if residual := len(b) % 4; residual != 0 {
		b = append(b, make([]byte, 4-residual)...)
	}
	return b
}

// parseReadStatusResponse extracts the USB488 status byte from a
// READ_STATUS_BYTE control-transfer reply. A conforming device answers with
// 3 bytes {usbtmc_status, tag_echo, status_byte}; n reports how many of buf
// were actually transferred, since a non-conforming device may answer with
// only 2 bytes {usbtmc_status, status_byte} instead, dropping the tag echo.
func parseReadStatusResponse(buf []byte, n int) (byte, error) {
	if n < 2 || n > len(buf) {
		return 0, fmt.Errorf("%w: short read_status_byte response (%d bytes)", transport.ErrProtocol, n)
	}
	if buf[0] != statusSuccess {
		return 0, fmt.Errorf("%w: read_status_byte failed, status=0x%02x", transport.ErrProtocol, buf[0])
	}
	if n >= 3 {
		return buf[2], nil
	}
	return buf[1], nil
}

// clearPollAction is the action Clear's poll loop takes after inspecting a
// CHECK_CLEAR_STATUS response.
type clearPollAction int

const (
	clearPollContinue     clearPollAction = iota // still pending, no drain needed
	clearPollContinueDrain                       // still pending, drain bulk-in before re-polling
	clearPollDone                                // clear completed
	clearPollFailed                              // device reported failure
)

// nextClearPollAction interprets a 2-byte CHECK_CLEAR_STATUS response
// {usbtmc_status, aux}. Bit 0 of the auxiliary byte, valid only while
// pending, tells the host to drain the bulk-IN pipe before polling again.
func nextClearPollAction(status byte, aux byte) clearPollAction {
	switch status {
	case statusSuccess:
		return clearPollDone
	case statusFailed:
		return clearPollFailed
	default:
		if aux&0x01 != 0 {
			return clearPollContinueDrain
		}
		return clearPollContinue
	}
}
