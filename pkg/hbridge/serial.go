package hbridge

import (
	"fmt"
	"io"
	"log"
	"strconv"
	"sync"

	"github.com/chewxy/math32"

	"github.com/itohio/potservo/pkg/serialport"
)

// DutyScale is the resolution of the duty field in motor commands.
const DutyScale = 10000

// Serial sends H-bridge commands to a motor driver microcontroller.
//
// Commands are ASCII lines:
//
//	F<hz>\n                     PWM carrier frequency, sent on connect
//	M<motor>,<dir>,<duty>\n     dir 0 forward / 1 reverse, duty 0..10000
type Serial struct {
	port     string
	baudRate int
	pwmFreq  int

	mu        sync.Mutex
	conn      io.WriteCloser
	connected bool
	reverse   []bool
	buf       []byte
}

// SerialMotor is the Actuator of one motor behind a Serial driver.
type SerialMotor struct {
	drv   *Serial
	motor int
}

// NewSerial creates a driver for n motors.
func NewSerial(port string, baudRate, pwmFreq, n int) *Serial {
	return &Serial{
		port:     port,
		baudRate: baudRate,
		pwmFreq:  pwmFreq,
		reverse:  make([]bool, n),
	}
}

// Connect opens the serial port and sets the PWM carrier.
func (s *Serial) Connect() error {
	conn, err := serialport.Open(s.port, s.baudRate)
	if err != nil {
		return err
	}
	if err := s.Attach(conn); err != nil {
		conn.Close()
		return err
	}
	return nil
}

// Attach takes over an already open connection and sets the PWM carrier.
// If the carrier command fails the driver stays disconnected and the caller
// keeps ownership of conn.
func (s *Serial) Attach(conn io.WriteCloser) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return fmt.Errorf("already connected")
	}

	s.buf = append(s.buf[:0], 'F')
	s.buf = strconv.AppendInt(s.buf, int64(s.pwmFreq), 10)
	s.buf = append(s.buf, '\n')
	if _, err := conn.Write(s.buf); err != nil {
		return fmt.Errorf("failed to send PWM frequency: %w", err)
	}

	s.conn = conn
	s.connected = true
	return nil
}

// Close stops all motors and closes the port.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil
	}

	for i := range s.reverse {
		s.buf = AppendCommand(s.buf[:0], i, false, 0)
		if _, err := s.conn.Write(s.buf); err != nil {
			log.Printf("Error stopping motor %d: %v", i, err)
		}
	}

	err := s.conn.Close()
	s.conn = nil
	s.connected = false
	return err
}

// Motor returns the actuator of motor i.
func (s *Serial) Motor(i int) *SerialMotor {
	return &SerialMotor{drv: s, motor: i}
}

// Actuators returns the actuators of all motors in index order.
func (s *Serial) Actuators() []Actuator {
	result := make([]Actuator, len(s.reverse))
	for i := range result {
		result[i] = s.Motor(i)
	}
	return result
}

// SetDirection latches the direction; it goes out with the next duty command.
func (a *SerialMotor) SetDirection(reverse bool) error {
	a.drv.mu.Lock()
	defer a.drv.mu.Unlock()
	a.drv.reverse[a.motor] = reverse
	return nil
}

// SetDuty sends the duty and latched direction of the motor.
func (a *SerialMotor) SetDuty(duty float32) error {
	s := a.drv
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return fmt.Errorf("not connected")
	}

	s.buf = AppendCommand(s.buf[:0], a.motor, s.reverse[a.motor], duty)
	if _, err := s.conn.Write(s.buf); err != nil {
		return fmt.Errorf("failed to send motor command: %w", err)
	}
	return nil
}

// AppendCommand appends one motor command line to dst.
func AppendCommand(dst []byte, motor int, reverse bool, duty float32) []byte {
	dst = append(dst, 'M')
	dst = strconv.AppendInt(dst, int64(motor), 10)
	dst = append(dst, ',')
	if reverse {
		dst = append(dst, '1')
	} else {
		dst = append(dst, '0')
	}
	dst = append(dst, ',')
	dst = strconv.AppendInt(dst, int64(math32.Round(duty*DutyScale)), 10)
	return append(dst, '\n')
}
