package discovery

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeNameNoCompression(t *testing.T) {
	encoded := encodeName("_lxi._tcp.local")
	name, next, err := decodeName(encoded, 0)
	require.NoError(t, err)
	require.Equal(t, "_lxi._tcp.local", name)
	require.Equal(t, len(encoded), next)
}

func TestDecodeNameWithCompressionPointer(t *testing.T) {
	// Build a tiny synthetic message: the target name lives at offset 0,
	// and a second occurrence at offset N is a pointer back to it, exactly
	// the shape mDNS uses to avoid repeating "local." on every record.
	base := encodeName("scope1._lxi._tcp.local")
	ptrOffset := len(base)
	buf := append([]byte{}, base...)
	buf = append(buf, 0xC0, 0x00) // pointer to offset 0

	name, next, err := decodeName(buf, ptrOffset)
	require.NoError(t, err)
	require.Equal(t, "scope1._lxi._tcp.local", name)
	require.Equal(t, ptrOffset+2, next)
}

func TestDecodeMessagePTRAnswer(t *testing.T) {
	// A full query/response round trip is complex to build by hand, so this
	// test runs decodeMessage on a hand-built PTR answer following a
	// zero-question header.
	header := make([]byte, dnsHeaderSize)
	binary.BigEndian.PutUint16(header[6:8], 1) // ANCOUNT=1

	name := encodeName("_lxi._tcp.local")
	rdata := encodeName("scope1._lxi._tcp.local")

	rr := make([]byte, 0, len(name)+10+len(rdata))
	rr = append(rr, name...)
	var typeClassTTL [8]byte
	binary.BigEndian.PutUint16(typeClassTTL[0:2], typePTR)
	binary.BigEndian.PutUint16(typeClassTTL[2:4], classIN)
	rr = append(rr, typeClassTTL[:]...)
	var rdlen [2]byte
	binary.BigEndian.PutUint16(rdlen[:], uint16(len(rdata)))
	rr = append(rr, rdlen[:]...)
	rr = append(rr, rdata...)

	msg := append(header, rr...)
	decoded, err := decodeMessage(msg)
	require.NoError(t, err)
	require.Len(t, decoded.answers, 1)
	require.Equal(t, typePTR, decoded.answers[0].rtype)

	target, err := decodeRDataName(msg, decoded.answers[0], 0)
	require.NoError(t, err)
	require.Equal(t, "scope1._lxi._tcp.local", target)
}
