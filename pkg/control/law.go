// Package control turns position error into a signed H-bridge duty cycle.
package control

import (
	"github.com/chewxy/math32"

	"github.com/itohio/potservo/pkg/state"
)

// DefaultKp gives 100% duty at an error of half the 16-bit measurement range.
const DefaultKp = 1.0 / 32768

// Law is a proportional control law without integral or derivative terms.
type Law struct {
	Kp float32
}

// Compute returns the drive for the given readings.
// Error is position - setpoint; the duty saturates at exactly 1.
func (l Law) Compute(setpoint, position uint16) state.Drive {
	e := int32(position) - int32(setpoint)

	raw := l.Kp * float32(e)
	switch {
	case math32.IsNaN(raw):
		raw = 0
	case raw > 1:
		raw = 1
	case raw < -1:
		raw = -1
	}

	return state.Drive{
		Error:     e,
		DutyCycle: math32.Abs(raw),
		Reverse:   raw < 0,
	}
}
