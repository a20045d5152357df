package session

import (
	"context"
	"testing"
	"time"

	"github.com/openvisa-go/govisa/transport"
	"github.com/stretchr/testify/require"
)

func TestFindResourcesNoMatchesReturnsResourceNotFound(t *testing.T) {
	// A pattern no real or simulated instrument on the test host will match,
	// bounded to a short window so the mDNS listener doesn't hold the test
	// suite open for its full per-service window.
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	_, _, _, err := FindResources(ctx, "NO_SUCH_DEVICE_MATCHES_THIS::*")
	require.ErrorIs(t, err, transport.ErrResourceNotFound)
}

func TestFindNextOnInvalidHandle(t *testing.T) {
	_, ok, err := FindNext(Handle(0xFFFFFFFF))
	require.False(t, ok)
	require.ErrorIs(t, err, ErrInvalidObject)
}

func TestCloseFindListRejectsStaleHandle(t *testing.T) {
	err := CloseFindList(Handle(0xFFFFFFFF))
	require.ErrorIs(t, err, ErrInvalidObject)
}
