// Package rawsocket implements the raw TCP socket transport of spec.md
// §4.3: newline-terminated byte streams with no protocol framing.
//
// Dial pattern and logging are grounded on the teacher's secs1/conn_active.go
// tryConnect; the SCPI *STB?/*CLS convention for read_status/clear follows
// spec.md §4.3-§4.4 verbatim (shared with transport/serial).
package rawsocket

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/openvisa-go/govisa/logger"
	"github.com/openvisa-go/govisa/resource"
	"github.com/openvisa-go/govisa/transport"
)

// DefaultPort is used when the resource string omitted a port in socket mode.
const DefaultPort = 5025

// Transport is the raw TCP socket transport.
type Transport struct {
	desc *resource.Descriptor
	log  logger.Logger

	conn   net.Conn
	reader *bufio.Reader
}

var _ transport.Transport = (*Transport)(nil)

func init() {
	transport.Register("rawsocket", func(d *resource.Descriptor, log logger.Logger) transport.Transport {
		return New(d, log)
	})
}

// New constructs a raw socket transport for d. d.Kind must be TCPIP with
// IsSocket set.
func New(d *resource.Descriptor, log logger.Logger) *Transport {
	return &Transport{desc: d, log: log}
}

// Open dials host:port and enables TCP_NODELAY (spec.md §4.3).
func (t *Transport) Open(ctx context.Context) error {
	port := t.desc.Port
	if port == 0 {
		port = DefaultPort
	}
	address := net.JoinHostPort(t.desc.Host, strconv.Itoa(int(port)))

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		t.log.Debug("rawsocket: dial failed", "address", address, "error", err)
		return fmt.Errorf("%w: %v", transport.ErrConnectionLost, err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}

	t.conn = conn
	t.reader = bufio.NewReader(conn)
	t.log.Debug("rawsocket: connected", "remoteAddr", conn.RemoteAddr())

	return nil
}

// Close performs a best-effort graceful teardown.
func (t *Transport) Close() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

// Write sends p in a single blocking loop.
func (t *Transport) Write(ctx context.Context, p []byte) (int, error) {
	if t.conn == nil {
		return 0, transport.ErrConnectionLost
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetWriteDeadline(deadline)
	}

	written := 0
	for written < len(p) {
		n, err := t.conn.Write(p[written:])
		written += n
		if err != nil {
			if isTimeout(err) {
				return written, transport.ErrTimeout
			}
			return written, fmt.Errorf("%w: %v", transport.ErrConnectionLost, err)
		}
	}
	return written, nil
}

// Read returns up to len(p) bytes, applying a receive-timeout for the
// duration of the call. A trailing newline reports TermChar.
func (t *Transport) Read(ctx context.Context, p []byte) (int, transport.TermStatus, error) {
	if t.conn == nil {
		return 0, transport.TermNone, transport.ErrConnectionLost
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetReadDeadline(deadline)
	}

	n := 0
	for n < len(p) {
		b, err := t.reader.ReadByte()
		if err != nil {
			if n > 0 {
				break
			}
			if isTimeout(err) {
				return 0, transport.TermNone, transport.ErrTimeout
			}
			return 0, transport.TermNone, fmt.Errorf("%w: %v", transport.ErrConnectionLost, err)
		}
		p[n] = b
		n++
		if b == '\n' {
			return n, transport.TermChar, nil
		}
	}
	return n, transport.TermMaxCount, nil
}

// ReadStatus sends "*STB?\n" and parses the decimal reply.
func (t *Transport) ReadStatus(ctx context.Context) (byte, error) {
	if _, err := t.Write(ctx, []byte("*STB?\n")); err != nil {
		return 0, err
	}
	buf := make([]byte, 32)
	n, _, err := t.Read(ctx, buf)
	if err != nil {
		return 0, err
	}
	return parseStatusByte(buf[:n])
}

// Clear sends "*CLS\n".
func (t *Transport) Clear(ctx context.Context) error {
	_, err := t.Write(ctx, []byte("*CLS\n"))
	return err
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

func parseStatusByte(reply []byte) (byte, error) {
	s := string(reply)
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed *STB? reply %q", transport.ErrProtocol, s)
	}
	return byte(v), nil
}
