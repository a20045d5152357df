// Package serial implements the ASRL (serial-port) transport of spec.md
// §4.4 on top of go.bug.st/serial (grounded on
// other_examples/bugst-go-serial__doc.go, the reference cross-platform
// serial library the retrieved pack uses for exactly this purpose).
package serial

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/openvisa-go/govisa/logger"
	"github.com/openvisa-go/govisa/resource"
	"github.com/openvisa-go/govisa/transport"
)

// Default UART configuration (spec.md §4.4). New starts a Transport's
// exported Baud/DataBits/StopBits/Parity fields from these (one stop bit, no
// parity); no session attribute changes them.
const (
	DefaultBaud     = 9600
	DefaultDataBits = 8
)

// Transport is the ASRL serial transport.
type Transport struct {
	desc *resource.Descriptor
	log  logger.Logger

	Baud     int
	DataBits int
	StopBits serial.StopBits
	Parity   serial.Parity

	port serial.Port
}

var _ transport.Transport = (*Transport)(nil)

func init() {
	transport.Register("serial", func(d *resource.Descriptor, log logger.Logger) transport.Transport {
		return New(d, log)
	})
}

// New constructs a serial transport for d. d.Kind must be ASRL.
func New(d *resource.Descriptor, log logger.Logger) *Transport {
	return &Transport{
		desc:     d,
		log:      log,
		Baud:     DefaultBaud,
		DataBits: DefaultDataBits,
		StopBits: serial.OneStopBit,
		Parity:   serial.NoParity,
	}
}

// portName derives the platform-named device from the port number
// (spec.md §4.4): "COMn" on Windows ("\\.\COMn" past 9 to bypass the
// namespace limit), "/dev/ttySn-1" elsewhere.
func portName(n int) string {
	if runtime.GOOS == "windows" {
		if n > 9 {
			return `\\.\COM` + strconv.Itoa(n)
		}
		return "COM" + strconv.Itoa(n)
	}
	if n < 1 {
		n = 1
	}
	return "/dev/ttyS" + strconv.Itoa(n-1)
}

// Open configures and opens the serial port.
func (t *Transport) Open(ctx context.Context) error {
	name := portName(t.desc.ASRLPort)
	mode := &serial.Mode{
		BaudRate: t.Baud,
		DataBits: t.DataBits,
		StopBits: t.StopBits,
		Parity:   t.Parity,
	}

	port, err := serial.Open(name, mode)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", transport.ErrResourceNotFound, name, err)
	}
	t.port = port
	t.log.Debug("serial: opened", "port", name, "baud", t.Baud)
	return nil
}

// Close closes the underlying port.
func (t *Transport) Close() error {
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	return err
}

func (t *Transport) applyDeadline(ctx context.Context) {
	if t.port == nil {
		return
	}
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}
		_ = t.port.SetReadTimeout(remaining)
	}
}

// Write sends p in a single blocking loop.
func (t *Transport) Write(ctx context.Context, p []byte) (int, error) {
	if t.port == nil {
		return 0, transport.ErrConnectionLost
	}
	written := 0
	for written < len(p) {
		n, err := t.port.Write(p[written:])
		written += n
		if err != nil {
			return written, fmt.Errorf("%w: %v", transport.ErrConnectionLost, err)
		}
	}
	return written, nil
}

// Read applies a readiness-wait bounded by the context deadline and
// reports TermChar on a trailing newline.
func (t *Transport) Read(ctx context.Context, p []byte) (int, transport.TermStatus, error) {
	if t.port == nil {
		return 0, transport.TermNone, transport.ErrConnectionLost
	}
	t.applyDeadline(ctx)

	n := 0
	single := make([]byte, 1)
	for n < len(p) {
		rn, err := t.port.Read(single)
		if err != nil {
			return n, transport.TermMaxCount, fmt.Errorf("%w: %v", transport.ErrConnectionLost, err)
		}
		if rn == 0 {
			// Read timeout with no data: distinguish "nothing yet" from EOF.
			if n == 0 {
				return 0, transport.TermNone, transport.ErrTimeout
			}
			return n, transport.TermMaxCount, nil
		}
		p[n] = single[0]
		n++
		if single[0] == '\n' {
			return n, transport.TermChar, nil
		}
	}
	return n, transport.TermMaxCount, nil
}

// ReadStatus sends "*STB?\n" and parses the decimal reply, like rawsocket.
func (t *Transport) ReadStatus(ctx context.Context) (byte, error) {
	if _, err := t.Write(ctx, []byte("*STB?\n")); err != nil {
		return 0, err
	}
	buf := make([]byte, 32)
	n, _, err := t.Read(ctx, buf)
	if err != nil {
		return 0, err
	}
	s := strings.TrimRight(string(buf[:n]), "\r\n")
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed *STB? reply %q", transport.ErrProtocol, s)
	}
	return byte(v), nil
}

// Clear sends "*CLS\n".
func (t *Transport) Clear(ctx context.Context) error {
	_, err := t.Write(ctx, []byte("*CLS\n"))
	return err
}
