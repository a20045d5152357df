// Package gpib is a placeholder GPIB (IEEE-488) transport. spec.md's
// Non-goals exclude a full GPIB controller implementation; native GPIB
// requires vendor kernel drivers (NI-488.2, linux-gpib) this module does not
// bind to. Every operation reports transport.ErrNotSupported so callers get
// the same closed error taxonomy as any other transport (spec.md §7),
// rather than a panic or a silent no-op.
package gpib

import (
	"context"

	"github.com/openvisa-go/govisa/logger"
	"github.com/openvisa-go/govisa/resource"
	"github.com/openvisa-go/govisa/transport"
)

// Transport reports transport.ErrNotSupported for every operation.
type Transport struct {
	desc *resource.Descriptor
	log  logger.Logger
}

var _ transport.Transport = (*Transport)(nil)

func init() {
	transport.Register("gpib", func(d *resource.Descriptor, log logger.Logger) transport.Transport {
		return New(d, log)
	})
}

// New constructs a GPIB transport stub for d.
func New(d *resource.Descriptor, log logger.Logger) *Transport {
	return &Transport{desc: d, log: log}
}

func (t *Transport) Open(ctx context.Context) error {
	t.log.Warn("gpib: no controller backend compiled in", "board", t.desc.Board, "primary", t.desc.GPIBPrimary)
	return transport.ErrNotSupported
}

func (t *Transport) Close() error { return transport.ErrNotSupported }

func (t *Transport) Write(ctx context.Context, p []byte) (int, error) {
	return 0, transport.ErrNotSupported
}

func (t *Transport) Read(ctx context.Context, p []byte) (int, transport.TermStatus, error) {
	return 0, transport.TermNone, transport.ErrNotSupported
}

func (t *Transport) ReadStatus(ctx context.Context) (byte, error) {
	return 0, transport.ErrNotSupported
}

func (t *Transport) Clear(ctx context.Context) error {
	return transport.ErrNotSupported
}
