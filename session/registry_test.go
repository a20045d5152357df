package session

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOpenDefaultResourceManagerHasNoTransport(t *testing.T) {
	h, err := OpenDefaultResourceManager()
	require.NoError(t, err)
	defer Close(h)

	s, err := Get(h)
	require.NoError(t, err)
	require.True(t, s.IsResourceManager())

	_, _, err = s.Write(context.Background(), []byte("x"))
	require.ErrorIs(t, err, ErrNoTransport)
}

func TestOpenRawSocketAndRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 64)
		n, _ := conn.Read(buf)
		_, _ = conn.Write(buf[:n])
	}()

	_, port, _ := net.SplitHostPort(ln.Addr().String())
	rsrc := "TCPIP::127.0.0.1::" + port + "::SOCKET"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	h, err := Open(ctx, rsrc)
	require.NoError(t, err)
	defer Close(h)

	s, err := Get(h)
	require.NoError(t, err)
	require.False(t, s.IsResourceManager())

	n, kind, err := s.Write(ctx, []byte("*IDN?\n"))
	require.NoError(t, err)
	require.Equal(t, len("*IDN?\n"), n)
	require.Equal(t, kind.String(), "success")

	buf := make([]byte, 64)
	rn, _, err := s.Read(ctx, buf)
	require.NoError(t, err)
	require.Equal(t, "*IDN?\n", string(buf[:rn]))
}

func TestCloseRejectsStaleHandle(t *testing.T) {
	h, err := OpenDefaultResourceManager()
	require.NoError(t, err)
	require.NoError(t, Close(h))

	_, err = Get(h)
	require.ErrorIs(t, err, ErrInvalidObject)

	err = Close(h)
	require.ErrorIs(t, err, ErrInvalidObject)
}

func TestGetInvalidHandle(t *testing.T) {
	_, err := Get(Handle(0xFFFFFFFF))
	require.ErrorIs(t, err, ErrInvalidObject)
}
