// Package serialport opens the byte-oriented serial links used for ADC
// input, actuator commands and telemetry output.
package serialport

import (
	"fmt"

	"go.bug.st/serial"
)

// DefaultBaudRate is the telemetry line rate.
const DefaultBaudRate = 19200

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Mode returns the 8N1 line setting without flow control at the given baud rate.
func Mode(baudRate int) *serial.Mode {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	return &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// Open opens the named port at the given baud rate.
func Open(name string, baudRate int) (serial.Port, error) {
	port, err := serial.Open(name, Mode(baudRate))
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	return port, nil
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{
			Name:        name,
			Description: name,
		})
	}

	return result, nil
}
