package rawsocket

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/openvisa-go/govisa/logger"
	"github.com/openvisa-go/govisa/resource"
	"github.com/openvisa-go/govisa/transport"
	"github.com/stretchr/testify/require"
)

func startEchoServer(t *testing.T) (addr string, closeFn func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			switch line {
			case "*STB?\n":
				_, _ = conn.Write([]byte("64\n"))
			case "*CLS\n":
				// no reply expected
			default:
				_, _ = conn.Write([]byte(line))
			}
		}
	}()

	return ln.Addr().String(), func() { _ = ln.Close() }
}

func TestRawSocketWriteRead(t *testing.T) {
	addr, closeFn := startEchoServer(t)
	defer closeFn()

	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)

	desc, err := resource.Parse("TCPIP::" + host + "::" + portStr + "::SOCKET")
	require.NoError(t, err)

	tr := New(desc, logger.GetLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, tr.Open(ctx))
	defer tr.Close()

	n, err := tr.Write(ctx, []byte("*IDN?\n"))
	require.NoError(t, err)
	require.Equal(t, len("*IDN?\n"), n)

	buf := make([]byte, 64)
	n, status, err := tr.Read(ctx, buf)
	require.NoError(t, err)
	require.Greater(t, n, 0)
	require.Equal(t, byte('\n'), buf[n-1])
	require.Equal(t, transport.TermChar, status)

	stb, err := tr.ReadStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, byte(64), stb)

	require.NoError(t, tr.Clear(ctx))
}
