package acquire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/potservo/pkg/config"
)

func TestNewPool_RejectsSmallPools(t *testing.T) {
	_, err := NewPool(config.MinBuffers-1, 8)
	assert.Error(t, err)

	_, err = NewPool(config.MinBuffers, 0)
	assert.Error(t, err)

	p, err := NewPool(config.MinBuffers, 8)
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestPool_Handoff(t *testing.T) {
	p, err := NewPool(3, 4)
	require.NoError(t, err)

	_, ok := p.Next()
	assert.False(t, ok, "nothing ready yet")

	b, ok := p.Acquire()
	require.True(t, ok)
	copy(b.Samples, []uint16{1, 2, 3, 4})
	p.Commit(b)

	select {
	case <-p.Signal():
	default:
		t.Fatal("commit must raise the signal")
	}

	d, ok := p.Next()
	require.True(t, ok)
	assert.False(t, d.Overrun())
	assert.Equal(t, []uint16{1, 2, 3, 4}, d.Samples())
	d.Release()

	assert.Equal(t, uint64(1), p.Blocks())
	assert.Equal(t, uint64(0), p.Overruns())
}

func TestPool_OverrunWhenExhausted(t *testing.T) {
	p, err := NewPool(3, 4)
	require.NoError(t, err)

	// Consumer stalls: the producer fills all three buffers.
	for range 3 {
		b, ok := p.Acquire()
		require.True(t, ok)
		p.Commit(b)
	}

	b, ok := p.Acquire()
	assert.False(t, ok)
	assert.Nil(t, b)
	assert.Equal(t, uint64(1), p.Overruns())

	// The overrun is reported first, then the queued blocks.
	d, ok := p.Next()
	require.True(t, ok)
	assert.True(t, d.Overrun())
	assert.Empty(t, d.Samples())
	d.Release() // no-op

	for range 3 {
		d, ok = p.Next()
		require.True(t, ok)
		assert.False(t, d.Overrun())
		d.Release()
	}
	_, ok = p.Next()
	assert.False(t, ok)

	// Buffers are back in rotation.
	_, ok = p.Acquire()
	assert.True(t, ok)
}

func TestPool_ProducerKeepsTwoBuffersWhileOneIsHeld(t *testing.T) {
	p, err := NewPool(3, 4)
	require.NoError(t, err)

	b, _ := p.Acquire()
	p.Commit(b)
	held, ok := p.Next()
	require.True(t, ok)

	for range 2 {
		b, ok := p.Acquire()
		require.True(t, ok, "two buffers stay available while one is aggregated")
		p.Commit(b)
	}
	_, ok = p.Acquire()
	assert.False(t, ok)

	held.Release()
	_, ok = p.Acquire()
	assert.True(t, ok)
}
