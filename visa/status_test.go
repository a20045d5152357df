package visa

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestStatusErrorConstantsMatchIVI pins each StatusError* constant to the
// 32-bit ViStatus value the IVI Foundation VISA specification defines for
// it. A Status is transmitted across the C ABI as a raw int32, so the two's
// complement encoding has to land on the documented 0xBFFFxxxx bit pattern
// exactly, not just "look close" in decimal.
func TestStatusErrorConstantsMatchIVI(t *testing.T) {
	tests := []struct {
		name string
		got  Status
		want uint32
	}{
		{"SystemError", StatusErrorSystemError, 0xBFFF0000},
		{"InvObject", StatusErrorInvObject, 0xBFFF000E},
		{"RsrcLocked", StatusErrorRsrcLocked, 0xBFFF000F},
		{"RsrcNFound", StatusErrorRsrcNFound, 0xBFFF0011},
		{"InvRsrcName", StatusErrorInvRsrcName, 0xBFFF0012},
		{"TMO", StatusErrorTMO, 0xBFFF0015},
		{"NSupAttr", StatusErrorNSupAttr, 0xBFFF001D},
		{"Alloc", StatusErrorAlloc, 0xBFFF003C},
		{"IO", StatusErrorIO, 0xBFFF003E},
		{"NSupMode", StatusErrorNSupMode, 0xBFFF0046},
		{"NSupOper", StatusErrorNSupOper, 0xBFFF0067},
		{"ConnLost", StatusErrorConnLost, 0xBFFF006D},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, uint32(int32(tt.got)))
		})
	}
}

func TestStatusSuccessConstants(t *testing.T) {
	require.Equal(t, uint32(0x00000000), uint32(int32(StatusSuccess)))
	require.Equal(t, uint32(0x3FFF0005), uint32(int32(StatusSuccessTermChar)))
	require.Equal(t, uint32(0x3FFF0006), uint32(int32(StatusSuccessMaxCnt)))
}

// TestKindToStatusRoundTrip checks that every Kind maps to a Status whose
// sign matches VISA's success/error convention (bit 31 set on error).
func TestKindToStatusRoundTrip(t *testing.T) {
	kinds := []Kind{
		Success, SuccessTermChar, SuccessMaxCnt,
		InvalidObject, InvalidResourceName, ResourceNotFound, ResourceLocked,
		Timeout, IO, ConnectionLost, AllocationFailure, NotSupported,
		UnsupportedAttribute,
	}

	for _, k := range kinds {
		t.Run(k.String(), func(t *testing.T) {
			s := k.ToStatus()
			isError := s < 0
			wantError := k != Success && k != SuccessTermChar && k != SuccessMaxCnt
			require.Equal(t, wantError, isError)
		})
	}
}
