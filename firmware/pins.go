//go:build tinygo

package main

import "machine"

const (
	// Sampling configuration
	SAMPLE_INTERVAL_US = 250 // One frame (all channels) every 250us
	FRAMES_PER_BLOCK   = 4   // Frames per binary block sent to the host
	MOTORS             = 1   // Setpoint + position potentiometer per motor

	// ADC configuration
	ADC_REFERENCE_MV = 3300
	ADC_RESOLUTION   = 12 // machine.ADC.Get scales to 16 bits regardless

	// Motor outputs
	PIN_DIR1 = machine.D7
	PIN_PWM1 = machine.D8

	// ADC pins: setpoint then position, per motor
	PIN_SETPOINT1 = machine.A1
	PIN_POSITION1 = machine.A2

	// Default PWM carrier until the host sends F<hz>
	PWM_FREQUENCY = 5000
	DUTY_SCALE    = 10000 // Host duty units per 100%

	// Serial configuration
	// Block size: 4 header bytes + FRAMES_PER_BLOCK*MOTORS*2 samples * 2 bytes = 20 bytes
	// 1000 blocks/sec * 20 bytes = 20,000 bytes/sec, UART 8N1 needs 200,000 baud
	UART_BAUD_RATE = 460800
)
