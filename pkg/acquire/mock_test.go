package acquire

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedPlant struct {
	setpoints []float32
	positions []float32
}

func (p *fixedPlant) Setpoint(motor int) float32 { return p.setpoints[motor] }
func (p *fixedPlant) Position(motor int) float32 { return p.positions[motor] }

func TestMock_FillInterleavesChannels(t *testing.T) {
	p, err := NewPool(3, 12)
	require.NoError(t, err)
	plant := &fixedPlant{
		setpoints: []float32{100, 30000},
		positions: []float32{200, 65535},
	}
	m := NewMock(p, plant, 2, 3, time.Millisecond, 0)

	m.produce()

	d, ok := p.Next()
	require.True(t, ok)
	assert.Equal(t, []uint16{
		100, 200, 30000, 65535,
		100, 200, 30000, 65535,
		100, 200, 30000, 65535,
	}, d.Samples())
}

func TestMock_SampleClampsToADCRange(t *testing.T) {
	m := NewMock(nil, nil, 1, 1, time.Millisecond, 0)

	assert.Equal(t, uint16(0), m.sample(-50, 0))
	assert.Equal(t, uint16(65535), m.sample(70000, 0))
	assert.Equal(t, uint16(1234), m.sample(1234.4, 0))
}

func TestMock_NoiseStaysWithinBounds(t *testing.T) {
	m := NewMock(nil, nil, 1, 1, time.Millisecond, 10)

	for range 1000 {
		m.tick++
		v := m.sample(1000, 0)
		assert.GreaterOrEqual(t, v, uint16(990))
		assert.LessOrEqual(t, v, uint16(1010))
	}
}

func TestMock_ProduceOverrunsWhenPoolFull(t *testing.T) {
	p, err := NewPool(3, 2)
	require.NoError(t, err)
	m := NewMock(p, &fixedPlant{setpoints: []float32{1}, positions: []float32{2}}, 1, 1, time.Millisecond, 0)

	for range 4 {
		m.produce()
	}

	assert.Equal(t, uint64(3), p.Blocks())
	assert.Equal(t, uint64(1), p.Overruns())
}

func TestMock_StartClose(t *testing.T) {
	p, err := NewPool(3, 2)
	require.NoError(t, err)
	m := NewMock(p, &fixedPlant{setpoints: []float32{1}, positions: []float32{2}}, 1, 1, time.Millisecond, 0)

	require.NoError(t, m.Start(context.Background()))
	assert.Error(t, m.Start(context.Background()), "second start must fail")

	select {
	case <-p.Signal():
	case <-time.After(time.Second):
		t.Fatal("no block produced")
	}

	assert.NoError(t, m.Close())
	assert.NoError(t, m.Close())
}

func TestMock_StartRejectsZeroPeriod(t *testing.T) {
	m := NewMock(nil, nil, 1, 1, 0, 0)
	assert.Error(t, m.Start(context.Background()))
}
