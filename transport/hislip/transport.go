package hislip

import (
	"context"
	"fmt"

	"github.com/openvisa-go/govisa/logger"
	"github.com/openvisa-go/govisa/resource"
	"github.com/openvisa-go/govisa/transport"
)

// negotiatedMaxMessageSize is the fragmentation boundary this client uses.
// spec.md §9 Open Questions: no size negotiation is performed against the
// peer, so this equals the session buffer size unconditionally.
const negotiatedMaxMessageSize = 65536

// Transport is the HiSLIP dual-channel transport.
type Transport struct {
	desc *resource.Descriptor
	log  logger.Logger

	c     *conn
	msgID uint32
}

var _ transport.Transport = (*Transport)(nil)

func init() {
	transport.Register("hislip", func(d *resource.Descriptor, log logger.Logger) transport.Transport {
		return New(d, log)
	})
}

// New constructs a HiSLIP transport for d. d.Kind must be TCPIP with
// IsHiSLIP set.
func New(d *resource.Descriptor, log logger.Logger) *Transport {
	return &Transport{desc: d, log: log}
}

// Open performs the five-step handshake of spec.md §4.6.
func (t *Transport) Open(ctx context.Context) error {
	port := t.desc.Port
	if port == 0 {
		port = DefaultPort
	}
	subAddress := t.desc.DeviceName
	if subAddress == "" {
		subAddress = "hislip0"
	}

	c, err := dial(ctx, t.desc.Host, port, subAddress)
	if err != nil {
		return err
	}
	t.c = c
	t.msgID = 0
	t.log.Debug("hislip: session established", "host", t.desc.Host, "port", port, "sessionID", c.sessionID)
	return nil
}

// Close closes both channels. HiSLIP has no explicit teardown message.
func (t *Transport) Close() error {
	if t.c == nil {
		return nil
	}
	t.c.closeAll()
	t.c = nil
	return nil
}

// nextMessageID increments by 2 before every new write (spec.md §4.6,
// invariant 7).
func (t *Transport) nextMessageID() uint32 {
	t.msgID += 2
	return t.msgID
}

// Write fragments payload into Data messages, tagging the final fragment
// as DataEnd.
func (t *Transport) Write(ctx context.Context, p []byte) (int, error) {
	if t.c == nil {
		return 0, transport.ErrConnectionLost
	}
	t.c.setDeadline(ctx)

	id := t.nextMessageID()
	total := 0
	for {
		remaining := len(p) - total
		chunkSize := remaining
		last := true
		if chunkSize > negotiatedMaxMessageSize {
			chunkSize = negotiatedMaxMessageSize
			last = false
		}
		chunk := p[total : total+chunkSize]

		msgType := MsgData
		if last {
			msgType = MsgDataEnd
		}
		if err := WriteMessage(t.c.sync, Header{MsgType: msgType, Param: id}, chunk); err != nil {
			return total, fmt.Errorf("%w: %v", transport.ErrConnectionLost, err)
		}
		total += chunkSize

		if last {
			return total, nil
		}
	}
}

// Read loops on the sync channel, ignoring unexpected message types,
// copying Data/DataEnd payloads into p, and stopping on DataEnd.
func (t *Transport) Read(ctx context.Context, p []byte) (int, transport.TermStatus, error) {
	if t.c == nil {
		return 0, transport.TermNone, transport.ErrConnectionLost
	}
	t.c.setDeadline(ctx)

	total := 0
	truncated := false
	for {
		h, err := ReadHeader(t.c.syncR)
		if err != nil {
			return total, transport.TermNone, fmt.Errorf("%w: %v", transport.ErrConnectionLost, err)
		}
		payload, err := ReadPayload(t.c.syncR, h)
		if err != nil {
			return total, transport.TermNone, fmt.Errorf("%w: %v", transport.ErrConnectionLost, err)
		}

		switch h.MsgType {
		case MsgData, MsgDataEnd:
			var n int
			if total < len(p) {
				n = copy(p[total:], payload)
			}
			total += n
			if n < len(payload) {
				truncated = true
			}
			if h.MsgType == MsgDataEnd {
				if truncated {
					return total, transport.TermMaxCount, nil
				}
				return total, transport.TermChar, nil
			}
			// Keep draining fragments (discarding overflow) until DataEnd.
		case MsgFatalError, MsgError:
			return total, transport.TermNone, fmt.Errorf("%w: peer reported hislip error (type %d)", transport.ErrProtocol, h.MsgType)
		default:
			// Ignore unexpected types (e.g. service-request notifications).
		}
	}
}

// ReadStatus sends AsyncStatusQuery and reads the status byte from the
// AsyncStatusResponse's control-code field (spec.md §4.6).
func (t *Transport) ReadStatus(ctx context.Context) (byte, error) {
	if t.c == nil {
		return 0, transport.ErrConnectionLost
	}
	t.c.setDeadline(ctx)

	if err := WriteMessage(t.c.async, Header{MsgType: MsgAsyncStatusQuery, Param: t.msgID}, nil); err != nil {
		return 0, fmt.Errorf("%w: %v", transport.ErrConnectionLost, err)
	}
	h, err := ReadHeader(t.c.asyncR)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", transport.ErrConnectionLost, err)
	}
	if _, err := ReadPayload(t.c.asyncR, h); err != nil {
		return 0, fmt.Errorf("%w: %v", transport.ErrConnectionLost, err)
	}
	if h.MsgType != MsgAsyncStatusResponse {
		return 0, fmt.Errorf("%w: expected AsyncStatusResponse, got type %d", transport.ErrProtocol, h.MsgType)
	}
	return h.Control, nil
}

// Clear performs the four-step device-clear handshake of spec.md §4.6 and
// resets the client message ID to 0 on success.
func (t *Transport) Clear(ctx context.Context) error {
	if t.c == nil {
		return transport.ErrConnectionLost
	}
	t.c.setDeadline(ctx)

	if err := WriteMessage(t.c.async, Header{MsgType: MsgAsyncDeviceClear}, nil); err != nil {
		return fmt.Errorf("%w: %v", transport.ErrConnectionLost, err)
	}
	ah, err := ReadHeader(t.c.asyncR)
	if err != nil {
		return fmt.Errorf("%w: %v", transport.ErrConnectionLost, err)
	}
	if _, err := ReadPayload(t.c.asyncR, ah); err != nil {
		return fmt.Errorf("%w: %v", transport.ErrConnectionLost, err)
	}
	if ah.MsgType != MsgAsyncDeviceClearAck {
		return fmt.Errorf("%w: expected AsyncDeviceClearAcknowledge, got type %d", transport.ErrProtocol, ah.MsgType)
	}

	sh, err := ReadHeader(t.c.syncR)
	if err != nil {
		return fmt.Errorf("%w: %v", transport.ErrConnectionLost, err)
	}
	if _, err := ReadPayload(t.c.syncR, sh); err != nil {
		return fmt.Errorf("%w: %v", transport.ErrConnectionLost, err)
	}
	if sh.MsgType != MsgDeviceClearComplete {
		return fmt.Errorf("%w: expected DeviceClearComplete, got type %d", transport.ErrProtocol, sh.MsgType)
	}
	featureFlags := sh.Control

	if err := WriteMessage(t.c.sync, Header{MsgType: MsgDeviceClearAcknowledge, Control: featureFlags}, nil); err != nil {
		return fmt.Errorf("%w: %v", transport.ErrConnectionLost, err)
	}

	t.msgID = 0
	return nil
}
