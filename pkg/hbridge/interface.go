// Package hbridge drives DC motors through direction + PWM H-bridge outputs.
package hbridge

// Actuator is one H-bridge channel: a direction output and a PWM output
// taking a normalized duty cycle.
type Actuator interface {
	SetDirection(reverse bool) error
	SetDuty(duty float32) error
}

// Ensure actuators implement Actuator.
var (
	_ Actuator = (*MockMotor)(nil)
	_ Actuator = (*SerialMotor)(nil)
)
