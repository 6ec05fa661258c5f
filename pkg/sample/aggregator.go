// Package sample reduces oversampled ADC blocks to filtered per-motor readings.
package sample

import (
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/itohio/potservo/pkg/acquire"
	"github.com/itohio/potservo/pkg/state"
)

// ChannelsPerMotor is the number of ADC channels per motor: setpoint, then position.
const ChannelsPerMotor = 2

var (
	// ErrOverrun is returned for an empty block: the acquisition layer had no
	// free buffer and dropped data.
	ErrOverrun = errors.New("buffer overrun")
	// ErrShortBlock is returned for a block that does not hold one complete frame.
	ErrShortBlock = errors.New("block shorter than one frame")
)

// Aggregate computes the average, minimum and maximum of every channel in an
// interleaved block and stores them per motor in dst.
//
// Only the first length samples of block are used, and a trailing partial
// frame is ignored. Averages are floor(sum/n). dst is untouched on error.
func Aggregate(dst []state.Readings, block []uint16, length int) error {
	if length == 0 {
		return ErrOverrun
	}
	if length > len(block) {
		length = len(block)
	}

	numChannels := len(dst) * ChannelsPerMotor
	if numChannels == 0 {
		return fmt.Errorf("no motors to aggregate")
	}
	frames := length / numChannels
	if frames == 0 {
		return fmt.Errorf("%w: %d samples for %d channels", ErrShortBlock, length, numChannels)
	}

	for motor := range dst {
		offset := motor * ChannelsPerMotor
		sp, spMin, spMax := channelStats(block, offset, numChannels, frames)
		pos, posMin, posMax := channelStats(block, offset+1, numChannels, frames)
		dst[motor] = state.Readings{
			Setpoint:    sp,
			Position:    pos,
			SetpointMin: spMin,
			SetpointMax: spMax,
			PositionMin: posMin,
			PositionMax: posMax,
		}
	}
	return nil
}

// channelStats walks every stride-th sample starting at offset.
func channelStats(block []uint16, offset, stride, frames int) (avg, lo, hi uint16) {
	var sum uint64
	lo = math.MaxUint16
	for i := offset; i < offset+frames*stride; i += stride {
		v := block[i]
		sum += uint64(v)
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return uint16(sum / uint64(frames)), lo, hi
}

// Aggregator is the acquisition callback. It owns the Readings half of the
// state table.
type Aggregator struct {
	table    *state.Table
	logger   *log.Logger
	readings []state.Readings

	blocks   uint64
	overruns uint64
}

// NewAggregator creates an aggregator writing into table. Diagnostics go to
// logger, or the standard logger if nil.
func NewAggregator(table *state.Table, logger *log.Logger) *Aggregator {
	if logger == nil {
		logger = log.Default()
	}
	return &Aggregator{
		table:    table,
		logger:   logger,
		readings: make([]state.Readings, table.Len()),
	}
}

// Process aggregates one block and publishes the readings of every motor.
// On an empty or short block the table keeps its previous values and a
// diagnostic is logged.
func (a *Aggregator) Process(block []uint16) error {
	if err := Aggregate(a.readings, block, len(block)); err != nil {
		if errors.Is(err, ErrOverrun) {
			a.overruns++
		}
		a.logger.Printf("Skipping filter update: %v", err)
		return err
	}

	a.blocks++
	for motor, r := range a.readings {
		a.table.SetReadings(motor, r)
	}
	return nil
}

// Handle processes a pool delivery and returns its buffer to the pool.
func (a *Aggregator) Handle(d acquire.Delivery) {
	defer d.Release()

	if d.Overrun() {
		a.Process(nil)
		return
	}
	a.Process(d.Samples())
}

// Blocks returns the number of blocks that updated the table.
func (a *Aggregator) Blocks() uint64 {
	return a.blocks
}

// Overruns returns the number of overruns seen by the aggregator.
func (a *Aggregator) Overruns() uint64 {
	return a.overruns
}
