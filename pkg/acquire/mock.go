package acquire

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chewxy/math32"
)

const fullScale = 65535

// Plant supplies the simulated potentiometer readings in ADC counts.
type Plant interface {
	Setpoint(motor int) float32
	Position(motor int) float32
}

// Mock simulates the ADC by sampling a Plant at a fixed block rate.
type Mock struct {
	pool   *Pool
	plant  Plant
	motors int
	frames int
	period time.Duration
	noise  float32

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	tick    float32
}

// NewMock creates a simulated source delivering one block every period.
func NewMock(pool *Pool, plant Plant, motors, framesPerBlock int, period time.Duration, noise float32) *Mock {
	return &Mock{
		pool:   pool,
		plant:  plant,
		motors: motors,
		frames: framesPerBlock,
		period: period,
		noise:  noise,
	}
}

// Start begins generating blocks until ctx is cancelled or Close is called.
func (m *Mock) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("already running")
	}
	if m.period <= 0 {
		return fmt.Errorf("invalid block period %v", m.period)
	}

	ctx, m.cancel = context.WithCancel(ctx)
	m.running = true

	go m.generateBlocks(ctx)

	return nil
}

// Close stops generating blocks.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.cancel()
	m.running = false
	return nil
}

func (m *Mock) generateBlocks(ctx context.Context) {
	ticker := time.NewTicker(m.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.produce()
		}
	}
}

// produce fills and commits one block, or lets the pool record an overrun.
func (m *Mock) produce() {
	b, ok := m.pool.Acquire()
	if !ok {
		return
	}
	m.fill(b)
	m.pool.Commit(b)
}

func (m *Mock) fill(b *Block) {
	b.Samples = b.Samples[:cap(b.Samples)]
	n := m.frames * m.motors * 2
	if n > len(b.Samples) {
		n = len(b.Samples) - len(b.Samples)%(m.motors*2)
	}
	b.Samples = b.Samples[:n]

	idx := 0
	for range n / (m.motors * 2) {
		m.tick++
		for motor := range m.motors {
			b.Samples[idx] = m.sample(m.plant.Setpoint(motor), float32(motor))
			b.Samples[idx+1] = m.sample(m.plant.Position(motor), float32(motor)+0.5)
			idx += 2
		}
	}
}

// sample adds deterministic wiper noise and quantizes to 16 bits.
func (m *Mock) sample(v, phase float32) uint16 {
	noise := (math32.Sin(m.tick*0.7+phase) + math32.Cos(m.tick*1.3+phase)) * m.noise * 0.5
	v = math32.Round(v + noise)
	if v < 0 {
		return 0
	}
	if v > fullScale {
		return fullScale
	}
	return uint16(v)
}
