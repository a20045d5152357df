package resource

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    *Descriptor
		wantErr bool
	}{
		{
			name: "TCPIP socket",
			raw:  "TCPIP::192.168.1.50::5025::SOCKET",
			want: &Descriptor{Kind: TCPIP, Host: "192.168.1.50", Port: 5025, IsSocket: true},
		},
		{
			name: "HiSLIP default",
			raw:  "TCPIP::192.168.1.50::hislip0",
			want: &Descriptor{Kind: TCPIP, Host: "192.168.1.50", IsHiSLIP: true, Port: 4880, DeviceName: "hislip0"},
		},
		{
			name: "VXI-11 default",
			raw:  "TCPIP::192.168.1.50::INSTR",
			want: &Descriptor{Kind: TCPIP, Host: "192.168.1.50", DeviceName: "inst0", Port: 111},
		},
		{
			name: "VXI-11 explicit device",
			raw:  "TCPIP0::192.168.1.50::inst0::INSTR",
			want: &Descriptor{Kind: TCPIP, Host: "192.168.1.50", DeviceName: "inst0", Port: 111},
		},
		{
			name: "USB parse",
			raw:  "USB::0x1234::0x5678::MY_SERIAL::INSTR",
			want: &Descriptor{Kind: USB, USBVendorID: 0x1234, USBProductID: 0x5678, USBSerial: "MY_SERIAL"},
		},
		{
			name: "USB with interface",
			raw:  "USB0::4660::22136::MY_SERIAL::1::INSTR",
			want: &Descriptor{Kind: USB, USBVendorID: 4660, USBProductID: 22136, USBSerial: "MY_SERIAL", USBInterface: 1},
		},
		{
			name: "ASRL",
			raw:  "ASRL2::INSTR",
			want: &Descriptor{Kind: ASRL, Board: 2, ASRLPort: 2},
		},
		{
			name: "GPIB secondary",
			raw:  "GPIB::1::2::INSTR",
			want: &Descriptor{Kind: GPIB, GPIBPrimary: 1, GPIBSecondary: 2},
		},
		{
			name: "GPIB no secondary",
			raw:  "GPIB0::22::INSTR",
			want: &Descriptor{Kind: GPIB, GPIBPrimary: 22, GPIBSecondary: -1},
		},
		{
			name:    "invalid interface keyword",
			raw:     "FOOBAR::something",
			wantErr: true,
		},
		{
			name:    "empty string",
			raw:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.want.Raw = tt.raw
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCaseInsensitivity(t *testing.T) {
	tests := []string{
		"TCPIP::192.168.1.50::5025::SOCKET",
		"TCPIP::192.168.1.50::INSTR",
		"ASRL2::INSTR",
		"GPIB::1::2::INSTR",
	}

	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			lower, err := Parse(strings.ToLower(raw))
			require.NoError(t, err)
			upper, err := Parse(strings.ToUpper(raw))
			require.NoError(t, err)
			lower.Raw = ""
			upper.Raw = ""
			assert.Equal(t, lower, upper)
		})
	}
}

// TestParseHiSLIPDeviceNamePreservesCase documents why the HiSLIP device
// token is excluded from TestParseCaseInsensitivity: unlike the surrounding
// "::"-delimited keywords, it is a literal sub-address copied verbatim into
// DeviceName, so its case is part of the value, not part of the grammar.
func TestParseHiSLIPDeviceNamePreservesCase(t *testing.T) {
	d, err := Parse("TCPIP::192.168.1.50::HiSlip0")
	require.NoError(t, err)
	require.Equal(t, "HiSlip0", d.DeviceName)
}

func TestParseRoundTrip(t *testing.T) {
	tests := []string{
		"TCPIP::192.168.1.50::5025::SOCKET",
		"TCPIP::192.168.1.50::inst0::INSTR",
		"ASRL2::INSTR",
		"GPIB::1::2::INSTR",
		"USB::0x1234::0x5678::MY_SERIAL::INSTR",
	}

	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			d, err := Parse(raw)
			require.NoError(t, err)

			d2, err := Parse(d.String())
			require.NoError(t, err)

			d.Raw = ""
			d2.Raw = ""
			assert.Equal(t, d, d2)
		})
	}
}
