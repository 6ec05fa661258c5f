// Package telemetry formats the motor state table as text lines.
package telemetry

import (
	"fmt"
	"io"
	"strconv"

	"github.com/chewxy/math32"

	"github.com/itohio/potservo/pkg/config"
	"github.com/itohio/potservo/pkg/state"
)

// Mode selects the line format.
type Mode int

const (
	// Compact is a comma-separated line terminated by CR.
	Compact Mode = iota
	// Verbose is a tagged line terminated by CRLF.
	Verbose
)

// ParseMode maps a configuration string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case config.ModeCompact:
		return Compact, nil
	case config.ModeVerbose:
		return Verbose, nil
	}
	return Compact, fmt.Errorf("unknown telemetry mode %q", s)
}

func (m Mode) String() string {
	if m == Verbose {
		return config.ModeVerbose
	}
	return config.ModeCompact
}

// Percent converts a duty cycle to an integer percentage, rounded to nearest.
func Percent(duty float32) int {
	return int(math32.Round(duty * 100))
}

// AppendCompact appends
//
//	setpoint,position,error,duty%,spMin,spMax,posMin,posMax,dir\r
func AppendCompact(dst []byte, s state.MotorState) []byte {
	dst = strconv.AppendUint(dst, uint64(s.Setpoint), 10)
	dst = append(dst, ',')
	dst = strconv.AppendUint(dst, uint64(s.Position), 10)
	dst = append(dst, ',')
	dst = strconv.AppendInt(dst, int64(s.Error), 10)
	dst = append(dst, ',')
	dst = strconv.AppendInt(dst, int64(Percent(s.DutyCycle)), 10)
	dst = append(dst, ',')
	dst = strconv.AppendUint(dst, uint64(s.SetpointMin), 10)
	dst = append(dst, ',')
	dst = strconv.AppendUint(dst, uint64(s.SetpointMax), 10)
	dst = append(dst, ',')
	dst = strconv.AppendUint(dst, uint64(s.PositionMin), 10)
	dst = append(dst, ',')
	dst = strconv.AppendUint(dst, uint64(s.PositionMax), 10)
	dst = append(dst, ',')
	dst = appendBit(dst, s.Reverse)
	return append(dst, '\r')
}

// AppendVerbose appends the same values as AppendCompact, tagged and
// prefixed with the motor index, terminated by CRLF.
func AppendVerbose(dst []byte, motor int, s state.MotorState) []byte {
	dst = append(dst, 'M')
	dst = strconv.AppendInt(dst, int64(motor), 10)
	dst = append(dst, " SP:"...)
	dst = strconv.AppendUint(dst, uint64(s.Setpoint), 10)
	dst = append(dst, " POS:"...)
	dst = strconv.AppendUint(dst, uint64(s.Position), 10)
	dst = append(dst, " ERR:"...)
	dst = strconv.AppendInt(dst, int64(s.Error), 10)
	dst = append(dst, " DC:"...)
	dst = strconv.AppendInt(dst, int64(Percent(s.DutyCycle)), 10)
	dst = append(dst, " SPMIN:"...)
	dst = strconv.AppendUint(dst, uint64(s.SetpointMin), 10)
	dst = append(dst, " SPMAX:"...)
	dst = strconv.AppendUint(dst, uint64(s.SetpointMax), 10)
	dst = append(dst, " POSMIN:"...)
	dst = strconv.AppendUint(dst, uint64(s.PositionMin), 10)
	dst = append(dst, " POSMAX:"...)
	dst = strconv.AppendUint(dst, uint64(s.PositionMax), 10)
	dst = append(dst, " DIR:"...)
	dst = appendBit(dst, s.Reverse)
	return append(dst, '\r', '\n')
}

func appendBit(dst []byte, b bool) []byte {
	if b {
		return append(dst, '1')
	}
	return append(dst, '0')
}

// Encoder writes one line per motor per Emit. It never retries: a failed or
// short write is returned and the line is lost.
type Encoder struct {
	w    io.Writer
	mode Mode

	snapshot []state.MotorState
	buf      []byte
}

// NewEncoder creates an encoder writing to w.
func NewEncoder(w io.Writer, mode Mode) *Encoder {
	return &Encoder{
		w:    w,
		mode: mode,
		buf:  make([]byte, 0, 128),
	}
}

// Emit snapshots the table and writes one line per motor, motors in index order.
func (e *Encoder) Emit(t *state.Table) error {
	e.snapshot = t.Snapshot(e.snapshot)
	for i, s := range e.snapshot {
		e.buf = e.appendLine(e.buf[:0], i, s)
		if _, err := e.w.Write(e.buf); err != nil {
			return fmt.Errorf("telemetry write: %w", err)
		}
	}
	return nil
}

func (e *Encoder) appendLine(dst []byte, motor int, s state.MotorState) []byte {
	if e.mode == Verbose {
		return AppendVerbose(dst, motor, s)
	}
	return AppendCompact(dst, s)
}
