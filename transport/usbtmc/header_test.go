package usbtmc

import (
	"testing"

	"github.com/openvisa-go/govisa/transport"
	"github.com/stretchr/testify/require"
)

func TestBTagWrapsSkippingZero(t *testing.T) {
	var tag bTag
	tag.value = 254
	require.Equal(t, byte(255), tag.next())
	require.Equal(t, byte(1), tag.next())
}

func TestInvTag(t *testing.T) {
	require.Equal(t, byte(0xFE), invTag(0x01))
	require.Equal(t, byte(0x00), invTag(0xFF))
}

func TestEncDevDepMsgOut(t *testing.T) {
	hdr := encDevDepMsgOut(5, 10, true)
	require.Equal(t, byte(msgDevDepMsgOut), hdr[0])
	require.Equal(t, byte(5), hdr[1])
	require.Equal(t, invTag(5), hdr[2])
	require.Equal(t, byte(1), hdr[8])
}

func TestEncRequestDevDepMsgIn(t *testing.T) {
	term := byte('\n')
	hdr := encRequestDevDepMsgIn(9, 512, true, term)
	require.Equal(t, byte(msgRequestDevDepMsgIn), hdr[0])
	require.Equal(t, byte(0x02), hdr[8])
	require.Equal(t, term, hdr[9])
}

func TestDecodeBulkInHeaderShort(t *testing.T) {
	_, err := decodeBulkInHeader(make([]byte, 4))
	require.ErrorIs(t, err, errShortHeader)
}

func TestPadTo4(t *testing.T) {
	require.Len(t, padTo4([]byte{1, 2, 3}), 4)
	require.Len(t, padTo4([]byte{1, 2, 3, 4}), 4)
	require.Len(t, padTo4([]byte{1}), 4)
}

func TestParseReadStatusResponseConforming(t *testing.T) {
	// {usbtmc_status, tag_echo, status_byte}
	buf := []byte{statusSuccess, 0x2A, 0x99}
	got, err := parseReadStatusResponse(buf, 3)
	require.NoError(t, err)
	require.Equal(t, byte(0x99), got)
}

func TestParseReadStatusResponseNonConforming(t *testing.T) {
	// {usbtmc_status, status_byte}, only 2 bytes actually transferred
	buf := []byte{statusSuccess, 0x99, 0x00}
	got, err := parseReadStatusResponse(buf, 2)
	require.NoError(t, err)
	require.Equal(t, byte(0x99), got)
}

func TestParseReadStatusResponseFailedStatus(t *testing.T) {
	buf := []byte{statusFailed, 0x2A, 0x99}
	_, err := parseReadStatusResponse(buf, 3)
	require.ErrorIs(t, err, transport.ErrProtocol)
}

func TestParseReadStatusResponseShort(t *testing.T) {
	buf := []byte{statusSuccess, 0x00, 0x00}
	_, err := parseReadStatusResponse(buf, 1)
	require.ErrorIs(t, err, transport.ErrProtocol)
}

func TestNextClearPollAction(t *testing.T) {
	require.Equal(t, clearPollDone, nextClearPollAction(statusSuccess, 0x00))
	require.Equal(t, clearPollFailed, nextClearPollAction(statusFailed, 0x00))
	require.Equal(t, clearPollContinue, nextClearPollAction(statusPending, 0x00))
	require.Equal(t, clearPollContinueDrain, nextClearPollAction(statusPending, 0x01))
}
