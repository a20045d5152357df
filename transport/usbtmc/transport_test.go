package usbtmc

import (
	"testing"

	"github.com/google/gousb"
	"github.com/openvisa-go/govisa/transport"
	"github.com/stretchr/testify/require"
)

func TestVerifyBulkInTagAcceptsMatchingHeader(t *testing.T) {
	hdr := bulkInHeader{tag: 7, tagInverse: invTag(7)}
	require.NoError(t, verifyBulkInTag(hdr, 7))
}

func TestVerifyBulkInTagRejectsCorruptedComplement(t *testing.T) {
	// spec.md §8: a reply that echoes the tag but corrupts the complement
	// must fail the read with an io/protocol error.
	hdr := bulkInHeader{tag: 7, tagInverse: invTag(7) ^ 0x01}
	err := verifyBulkInTag(hdr, 7)
	require.ErrorIs(t, err, transport.ErrProtocol)
}

func TestVerifyBulkInTagRejectsWrongTag(t *testing.T) {
	hdr := bulkInHeader{tag: 9, tagInverse: invTag(9)}
	err := verifyBulkInTag(hdr, 7)
	require.ErrorIs(t, err, transport.ErrProtocol)
}

func TestSelectInterfaceFindsUSBTMCClass(t *testing.T) {
	desc := &gousb.DeviceDesc{
		Configs: map[int]gousb.ConfigDesc{
			1: {
				Interfaces: []gousb.InterfaceDesc{
					{Number: 0, AltSettings: []gousb.InterfaceSetting{{Class: 0x03, SubClass: 0x01}}},
					{Number: 2, AltSettings: []gousb.InterfaceSetting{{Class: usbtmcClass, SubClass: usbtmcSubClass, Alternate: 0}}},
				},
			},
		},
	}

	cfgNum, ifaceNum, altNum, err := selectInterface(desc, 0)
	require.NoError(t, err)
	require.Equal(t, 1, cfgNum)
	require.Equal(t, 2, ifaceNum)
	require.Equal(t, 0, altNum)
}

func TestSelectInterfaceHonorsExplicitInterfaceNumber(t *testing.T) {
	desc := &gousb.DeviceDesc{
		Configs: map[int]gousb.ConfigDesc{
			1: {
				Interfaces: []gousb.InterfaceDesc{
					{Number: 2, AltSettings: []gousb.InterfaceSetting{{Class: usbtmcClass, SubClass: usbtmcSubClass}}},
					{Number: 5, AltSettings: []gousb.InterfaceSetting{{Class: usbtmcClass, SubClass: usbtmcSubClass}}},
				},
			},
		},
	}

	_, ifaceNum, _, err := selectInterface(desc, 5)
	require.NoError(t, err)
	require.Equal(t, 5, ifaceNum)
}

func TestSelectInterfaceNoMatchIsResourceNotFound(t *testing.T) {
	desc := &gousb.DeviceDesc{
		Configs: map[int]gousb.ConfigDesc{
			1: {
				Interfaces: []gousb.InterfaceDesc{
					{Number: 0, AltSettings: []gousb.InterfaceSetting{{Class: 0x03, SubClass: 0x01}}},
				},
			},
		},
	}

	_, _, _, err := selectInterface(desc, 0)
	require.ErrorIs(t, err, transport.ErrResourceNotFound)
}
