package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultAttrs(t *testing.T) {
	a := defaultAttrs()
	require.Equal(t, uint32(DefaultTimeout), a.timeoutMillis)
	require.Equal(t, DefaultTermChar, a.termChar)
	require.False(t, a.termCharEnable)
	require.True(t, a.sendEndEnable)
}

func TestApplyOptions(t *testing.T) {
	a := defaultAttrs()
	err := applyOptions(&a, []Option{
		WithTimeout(5000),
		WithTermChar('\r'),
		WithTermCharEnable(true),
		WithSendEndEnable(false),
	})
	require.NoError(t, err)
	require.Equal(t, uint32(5000), a.timeoutMillis)
	require.Equal(t, byte('\r'), a.termChar)
	require.True(t, a.termCharEnable)
	require.False(t, a.sendEndEnable)
}
