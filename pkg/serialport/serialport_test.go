package serialport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.bug.st/serial"
)

func TestMode(t *testing.T) {
	m := Mode(0)

	assert.Equal(t, DefaultBaudRate, m.BaudRate)
	assert.Equal(t, 8, m.DataBits)
	assert.Equal(t, serial.NoParity, m.Parity)
	assert.Equal(t, serial.OneStopBit, m.StopBits)

	assert.Equal(t, 115200, Mode(115200).BaudRate)
}

func TestOpen_MissingPort(t *testing.T) {
	port, err := Open("/dev/does-not-exist-potservo", 19200)
	assert.Error(t, err)
	assert.Nil(t, port)
}
