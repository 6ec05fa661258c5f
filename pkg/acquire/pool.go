// Package acquire moves raw ADC blocks from a sample source to the
// aggregator through a fixed pool of rotating buffers.
package acquire

import (
	"fmt"
	"sync/atomic"

	"github.com/itohio/potservo/pkg/config"
)

// Block is one pooled buffer of interleaved 16-bit samples.
type Block struct {
	Samples []uint16
}

// Delivery is what the acquisition callback receives: either a filled block
// or an overrun notice.
type Delivery struct {
	pool  *Pool
	block *Block
}

// Overrun reports that the producer ran out of free buffers and dropped data.
func (d Delivery) Overrun() bool {
	return d.block == nil
}

// Samples returns the block contents. It is empty for an overrun.
func (d Delivery) Samples() []uint16 {
	if d.block == nil {
		return nil
	}
	return d.block.Samples
}

// Release hands the buffer back to the producer. It is a no-op for an overrun.
func (d Delivery) Release() {
	if d.block != nil {
		d.pool.put(d.block)
	}
}

// Pool is a bounded set of buffers with explicit ownership handoff:
// producer Acquire -> fill -> Commit, consumer Next -> aggregate -> Release.
// Neither side ever blocks.
type Pool struct {
	free    chan *Block
	ready   chan *Block
	signal  chan struct{}
	overrun atomic.Bool

	blocks   atomic.Uint64
	overruns atomic.Uint64
}

// NewPool allocates n buffers of blockLen samples each. n must be at least
// config.MinBuffers.
func NewPool(n, blockLen int) (*Pool, error) {
	if n < config.MinBuffers {
		return nil, fmt.Errorf("buffer pool needs at least %d buffers, got %d", config.MinBuffers, n)
	}
	if blockLen <= 0 {
		return nil, fmt.Errorf("invalid block length %d", blockLen)
	}

	p := &Pool{
		free:   make(chan *Block, n),
		ready:  make(chan *Block, n),
		signal: make(chan struct{}, 1),
	}
	for range n {
		p.free <- &Block{Samples: make([]uint16, blockLen)}
	}
	return p, nil
}

// Acquire takes a free buffer for the producer to fill. If every buffer is
// queued or being aggregated it records an overrun and returns false; the
// producer must drop its data.
func (p *Pool) Acquire() (*Block, bool) {
	select {
	case b := <-p.free:
		return b, true
	default:
		p.overruns.Add(1)
		p.overrun.Store(true)
		p.notify()
		return nil, false
	}
}

// Commit queues a filled buffer for the consumer.
func (p *Pool) Commit(b *Block) {
	p.blocks.Add(1)
	// ready has room for every buffer in the pool, so this never blocks.
	p.ready <- b
	p.notify()
}

// Signal is readable whenever Next may have something to return.
func (p *Pool) Signal() <-chan struct{} {
	return p.signal
}

// Next returns the next pending delivery without blocking. A pending overrun
// is reported before any queued block.
func (p *Pool) Next() (Delivery, bool) {
	if p.overrun.Swap(false) {
		return Delivery{pool: p}, true
	}
	select {
	case b := <-p.ready:
		return Delivery{pool: p, block: b}, true
	default:
		return Delivery{}, false
	}
}

// Blocks returns the number of committed blocks.
func (p *Pool) Blocks() uint64 {
	return p.blocks.Load()
}

// Overruns returns the number of blocks dropped for lack of a free buffer.
func (p *Pool) Overruns() uint64 {
	return p.overruns.Load()
}

// put returns a buffer to the free list. There is room for every buffer in
// the pool, so it never blocks.
func (p *Pool) put(b *Block) {
	b.Samples = b.Samples[:cap(b.Samples)]
	p.free <- b
}

func (p *Pool) notify() {
	select {
	case p.signal <- struct{}{}:
	default:
	}
}
