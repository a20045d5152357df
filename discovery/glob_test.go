package discovery

import (
	"strconv"
	"testing"

	"github.com/openvisa-go/govisa/transport"
	"github.com/stretchr/testify/require"
)

func TestMatchGlob(t *testing.T) {
	tests := []struct {
		pattern string
		s       string
		want    bool
	}{
		{"*", "TCPIP0::10.0.0.1::INSTR", true},
		{"TCPIP*", "tcpip0::10.0.0.1::instr", true},
		{"USB*", "TCPIP0::10.0.0.1::INSTR", false},
		{"ASRL?::INSTR", "ASRL3::INSTR", true},
		{"ASRL?::INSTR", "ASRL30::INSTR", false},
		{"*hislip*", "TCPIP0::10.0.0.1::hislip0::INSTR", true},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, matchGlob(tt.pattern, tt.s), "%s vs %s", tt.pattern, tt.s)
	}
}

func TestFilterDedupCap(t *testing.T) {
	candidates := []string{"A::INSTR", "A::INSTR", "B::INSTR", "C::INSTR"}
	out, err := filterDedupCap("*", candidates)
	require.NoError(t, err)
	require.Equal(t, []string{"A::INSTR", "B::INSTR", "C::INSTR"}, out)
}

func TestFilterDedupCapEmptyIsResourceNotFound(t *testing.T) {
	_, err := filterDedupCap("NOPE*", []string{"A::INSTR"})
	require.ErrorIs(t, err, transport.ErrResourceNotFound)
}

func TestFilterDedupCapRespectsCap(t *testing.T) {
	candidates := make([]string, MaxResults+10)
	for i := range candidates {
		candidates[i] = "ASRL" + strconv.Itoa(i) + "::INSTR"
	}
	out, err := filterDedupCap("*", candidates)
	require.NoError(t, err)
	require.LessOrEqual(t, len(out), MaxResults)
}
