package serialport

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loopPort struct {
	rx     *bytes.Reader
	tx     bytes.Buffer
	closes int
}

func (p *loopPort) Read(b []byte) (int, error)  { return p.rx.Read(b) }
func (p *loopPort) Write(b []byte) (int, error) { return p.tx.Write(b) }
func (p *loopPort) Close() error {
	p.closes++
	return nil
}

func TestShare(t *testing.T) {
	port := &loopPort{rx: bytes.NewReader([]byte("abc"))}
	handles := Share(port, 2)
	require.Len(t, handles, 2)

	got, err := io.ReadAll(handles[0])
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	_, err = handles[1].Write([]byte("M0,0,0\n"))
	require.NoError(t, err)
	assert.Equal(t, "M0,0,0\n", port.tx.String())

	require.NoError(t, handles[0].Close())
	require.NoError(t, handles[0].Close())
	assert.Equal(t, 0, port.closes, "port stays open while another handle is held")

	require.NoError(t, handles[1].Close())
	assert.Equal(t, 1, port.closes)
}
