package hbridge

import (
	"sync"
	"time"

	"github.com/chewxy/math32"

	"github.com/itohio/potservo/pkg/config"
)

const fullScale = 65535

// Mock simulates motors whose shafts turn position potentiometers, and the
// operator potentiometers that give their setpoints.
//
// Forward drive moves the position wiper toward zero, so a positive error
// (position above setpoint) with forward drive closes the loop.
type Mock struct {
	cfg *config.MockConfig

	mu        sync.Mutex
	now       func() time.Time
	last      time.Time
	setpoints []float32
	positions []float32
	duty      []float32
	reverse   []bool
}

// MockMotor is the Actuator of one simulated motor.
type MockMotor struct {
	plant *Mock
	motor int
}

// NewMock creates a simulated plant with n motors.
func NewMock(cfg *config.MockConfig, n int) *Mock {
	if cfg == nil {
		cfg = &config.Default().Mock
	}

	m := &Mock{
		cfg:       cfg,
		now:       time.Now,
		setpoints: make([]float32, n),
		positions: make([]float32, n),
		duty:      make([]float32, n),
		reverse:   make([]bool, n),
	}
	for i := range n {
		m.setpoints[i] = fullScale / 2
		if i < len(cfg.Setpoints) {
			m.setpoints[i] = float32(cfg.Setpoints[i])
		}
		m.positions[i] = fullScale / 2
		if i < len(cfg.InitialPositions) {
			m.positions[i] = float32(cfg.InitialPositions[i])
		}
	}
	m.last = m.now()
	return m
}

// Motor returns the actuator of motor i.
func (m *Mock) Motor(i int) *MockMotor {
	return &MockMotor{plant: m, motor: i}
}

// Actuators returns the actuators of all motors in index order.
func (m *Mock) Actuators() []Actuator {
	result := make([]Actuator, len(m.positions))
	for i := range result {
		result[i] = m.Motor(i)
	}
	return result
}

// SetSetpoint turns the simulated operator potentiometer of a motor.
func (m *Mock) SetSetpoint(motor int, v uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setpoints[motor] = float32(v)
}

// Setpoint returns the operator potentiometer reading in ADC counts.
func (m *Mock) Setpoint(motor int) float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setpoints[motor]
}

// Position returns the shaft potentiometer reading in ADC counts.
func (m *Mock) Position(motor int) float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advance()
	return m.positions[motor]
}

// Drive returns the last commanded duty and direction of a motor.
func (m *Mock) Drive(motor int) (float32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duty[motor], m.reverse[motor]
}

// advance integrates every motor up to now. Callers hold mu.
func (m *Mock) advance() {
	now := m.now()
	dt := float32(now.Sub(m.last).Seconds())
	m.last = now
	if dt <= 0 {
		return
	}

	for i := range m.positions {
		v := m.duty[i] * m.cfg.SlewRate * dt
		if !m.reverse[i] {
			v = -v
		}
		m.positions[i] = math32.Max(0, math32.Min(fullScale, m.positions[i]+v))
	}
}

// SetDirection implements Actuator.
func (a *MockMotor) SetDirection(reverse bool) error {
	a.plant.mu.Lock()
	defer a.plant.mu.Unlock()
	a.plant.advance()
	a.plant.reverse[a.motor] = reverse
	return nil
}

// SetDuty implements Actuator.
func (a *MockMotor) SetDuty(duty float32) error {
	a.plant.mu.Lock()
	defer a.plant.mu.Unlock()
	a.plant.advance()
	a.plant.duty[a.motor] = duty
	return nil
}
