// Package session implements the process-wide session registry, find-list
// table, and handle allocation of spec.md §4.9 and §3. It is the top of the
// dependency stack: it owns transport instances via transport.New and
// classifies every transport error onto the closed visa.Kind taxonomy of
// spec.md §7.
//
// The registry follows the teacher's lazily-initialized process singleton
// (hsms.getMsgIDGenerator's sync.Once pattern), and per-session attributes
// use the functional-options style of secs1.ConnectionConfig.
package session

import (
	"context"
	"fmt"

	"github.com/openvisa-go/govisa/logger"
	"github.com/openvisa-go/govisa/resource"
	"github.com/openvisa-go/govisa/transport"
	"github.com/openvisa-go/govisa/visa"
)

// Handle identifies a live session or find-list. The low bits are a table
// index; the high bits are a generation counter that changes every time the
// slot is reused, so a stale handle from a closed session is rejected
// instead of aliasing whatever now occupies that slot (spec.md §3,
// invariant "handles are unique while live and not reused concurrently").
type Handle uint32

const indexBits = 12

func makeHandle(generation uint32, index int) Handle {
	return Handle(generation<<indexBits | uint32(index))
}

func (h Handle) index() int         { return int(h) & (1<<indexBits - 1) }
func (h Handle) generation() uint32 { return uint32(h) >> indexBits }

// Session is one entry in the registry's table.
type Session struct {
	active     bool
	generation uint32
	isRM       bool
	desc       *resource.Descriptor
	transport  transport.Transport
	attrs      attrs
	log        logger.Logger
}

// IsResourceManager reports whether s is the Resource Manager session,
// which owns no transport (spec.md §3).
func (s *Session) IsResourceManager() bool { return s.isRM }

// Descriptor returns the resource descriptor s was opened against, or nil
// for the Resource Manager session.
func (s *Session) Descriptor() *resource.Descriptor { return s.desc }

func (s *Session) requireTransport() error {
	if s.isRM || s.transport == nil {
		return ErrNoTransport
	}
	return nil
}

// Write delivers p to the instrument, honoring the session's timeout
// attribute unless ctx already carries a deadline.
func (s *Session) Write(ctx context.Context, p []byte) (int, visa.Kind, error) {
	if err := s.requireTransport(); err != nil {
		return 0, visa.InvalidObject, err
	}
	ctx, cancel := s.boundContext(ctx)
	defer cancel()

	n, err := s.transport.Write(ctx, p)
	return n, classify(err), err
}

// Read fills p from the instrument, returning how the read terminated.
func (s *Session) Read(ctx context.Context, p []byte) (int, visa.Kind, error) {
	if err := s.requireTransport(); err != nil {
		return 0, visa.InvalidObject, err
	}
	ctx, cancel := s.boundContext(ctx)
	defer cancel()

	n, term, err := s.transport.Read(ctx, p)
	if err != nil {
		return n, classify(err), err
	}
	switch term {
	case transport.TermChar:
		return n, visa.SuccessTermChar, nil
	case transport.TermMaxCount:
		return n, visa.SuccessMaxCnt, nil
	default:
		return n, visa.Success, nil
	}
}

// ReadStatus performs the protocol's serial-poll equivalent.
func (s *Session) ReadStatus(ctx context.Context) (byte, visa.Kind, error) {
	if err := s.requireTransport(); err != nil {
		return 0, visa.InvalidObject, err
	}
	ctx, cancel := s.boundContext(ctx)
	defer cancel()

	stb, err := s.transport.ReadStatus(ctx)
	return stb, classify(err), err
}

// Clear resets the device's I/O buffers, using the protocol-internal bound
// rather than the session timeout attribute (spec.md §5).
func (s *Session) Clear(ctx context.Context) (visa.Kind, error) {
	if err := s.requireTransport(); err != nil {
		return visa.InvalidObject, err
	}
	ctx, cancel := context.WithTimeout(ctx, transport.InternalBound)
	defer cancel()

	err := s.transport.Clear(ctx)
	return classify(err), err
}

// boundContext applies the session's timeout attribute when ctx has no
// deadline of its own.
func (s *Session) boundContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return transport.WithTimeout(ctx, msToDuration(s.attrs.timeoutMillis))
}

// SetAttribute applies opts to the session's attributes in place.
func (s *Session) SetAttribute(opts ...Option) error {
	if err := applyOptions(&s.attrs, opts); err != nil {
		return fmt.Errorf("session: set attribute: %w", err)
	}
	return nil
}

// TimeoutMillis returns VI_ATTR_TMO_VALUE.
func (s *Session) TimeoutMillis() uint32 { return s.attrs.timeoutMillis }

// TermChar returns VI_ATTR_TERM_CHAR.
func (s *Session) TermChar() byte { return s.attrs.termChar }

// TermCharEnable returns VI_ATTR_TERM_CHAR_EN.
func (s *Session) TermCharEnable() bool { return s.attrs.termCharEnable }

// SendEndEnable returns VI_ATTR_SEND_END_EN.
func (s *Session) SendEndEnable() bool { return s.attrs.sendEndEnable }
