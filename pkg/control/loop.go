package control

import (
	"fmt"
	"log"

	"github.com/itohio/potservo/pkg/hbridge"
	"github.com/itohio/potservo/pkg/state"
)

// Loop is the control task. It owns the Drive half of the state table.
type Loop struct {
	law       Law
	table     *state.Table
	actuators []hbridge.Actuator
	logger    *log.Logger

	faulted []bool
	ticks   uint64
}

// NewLoop creates a control loop with one actuator per motor in table.
func NewLoop(law Law, table *state.Table, actuators []hbridge.Actuator, logger *log.Logger) (*Loop, error) {
	if len(actuators) != table.Len() {
		return nil, fmt.Errorf("have %d actuators for %d motors", len(actuators), table.Len())
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Loop{
		law:       law,
		table:     table,
		actuators: actuators,
		logger:    logger,
		faulted:   make([]bool, len(actuators)),
	}, nil
}

// Tick runs one control cycle over all motors. It uses whatever readings the
// aggregator stored last, however old they are.
func (l *Loop) Tick() {
	l.ticks++
	for motor, act := range l.actuators {
		r := l.table.Readings(motor)
		d := l.law.Compute(r.Setpoint, r.Position)

		err := act.SetDirection(d.Reverse)
		if err == nil {
			err = act.SetDuty(d.DutyCycle)
		}
		l.report(motor, err)

		l.table.SetDrive(motor, d)
	}
}

// Ticks returns the number of completed control cycles.
func (l *Loop) Ticks() uint64 {
	return l.ticks
}

// report logs actuator faults once when they appear and once when they clear.
func (l *Loop) report(motor int, err error) {
	switch {
	case err != nil && !l.faulted[motor]:
		l.logger.Printf("Actuator %d fault: %v", motor, err)
		l.faulted[motor] = true
	case err == nil && l.faulted[motor]:
		l.logger.Printf("Actuator %d recovered", motor)
		l.faulted[motor] = false
	}
}
