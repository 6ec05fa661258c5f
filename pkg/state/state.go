// Package state holds the motor state table shared by the acquisition,
// control and telemetry tasks.
//
// Each MotorState is split into two groups with exactly one writer each:
// Readings belong to the sample aggregator and Drive belongs to the control
// loop. Telemetry only reads. All tasks run on the scheduler goroutine, so
// the table needs no locking.
package state

// Readings are the filtered ADC values of one motor for the most recent
// acquisition block.
type Readings struct {
	Setpoint    uint16
	Position    uint16
	SetpointMin uint16
	SetpointMax uint16
	PositionMin uint16
	PositionMax uint16
}

// Drive is the control loop output for one motor.
type Drive struct {
	Error     int32   // Position - Setpoint
	DutyCycle float32 // Magnitude in [0, 1]
	Reverse   bool    // Direction output
}

// MotorState is the complete record of one motor.
type MotorState struct {
	Readings
	Drive
}

// Table is the per-motor state, allocated once and never resized.
type Table struct {
	motors []MotorState
}

// NewTable creates a zeroed table for n motors.
func NewTable(n int) *Table {
	return &Table{motors: make([]MotorState, n)}
}

// Len returns the number of motors.
func (t *Table) Len() int {
	return len(t.motors)
}

// Readings returns the filtered readings of motor i.
func (t *Table) Readings(i int) Readings {
	return t.motors[i].Readings
}

// SetReadings stores the filtered readings of motor i.
// Only the sample aggregator calls this.
func (t *Table) SetReadings(i int, r Readings) {
	t.motors[i].Readings = r
}

// Drive returns the last control output of motor i.
func (t *Table) Drive(i int) Drive {
	return t.motors[i].Drive
}

// SetDrive stores the control output of motor i.
// Only the control loop calls this.
func (t *Table) SetDrive(i int, d Drive) {
	t.motors[i].Drive = d
}

// Motor returns a copy of the full state of motor i.
func (t *Table) Motor(i int) MotorState {
	return t.motors[i]
}

// Snapshot copies the whole table into dst, reusing its capacity.
func (t *Table) Snapshot(dst []MotorState) []MotorState {
	if cap(dst) < len(t.motors) {
		dst = make([]MotorState, len(t.motors))
	}
	dst = dst[:len(t.motors)]
	copy(dst, t.motors)
	return dst
}
