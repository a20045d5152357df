package serial

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPortName(t *testing.T) {
	if runtime.GOOS == "windows" {
		assert.Equal(t, "COM3", portName(3))
		assert.Equal(t, `\\.\COM12`, portName(12))
		return
	}
	assert.Equal(t, "/dev/ttyS1", portName(2))
	assert.Equal(t, "/dev/ttyS0", portName(1))
}
