//go:build tinygo

//go:generate tinygo flash -target=xiao

// Firmware for the ADC/H-bridge companion MCU. It streams framed potentiometer
// samples to the host and applies the host's motor commands.
package main

import (
	"machine"
	"time"
)

type motor struct {
	dir machine.Pin
	pwm machine.Pin
	ch  uint8
}

var (
	uart = machine.UART0
	pwm  = machine.TCC0

	adcs   [MOTORS * 2]machine.ADC
	motors [MOTORS]motor

	// Block being filled and its fill position in frames
	block [FRAMES_PER_BLOCK * MOTORS * 2]uint16
	frame int

	// Timing
	lastSample time.Time

	// Serial buffer for reading command lines
	lineBuffer [24]byte
	linePos    int
)

func main() {
	adcConfig := machine.ADCConfig{
		Reference:  ADC_REFERENCE_MV,
		Resolution: ADC_RESOLUTION,
	}
	machine.InitADC()
	for i, pin := range []machine.Pin{PIN_SETPOINT1, PIN_POSITION1} {
		pin.Configure(machine.PinConfig{Mode: machine.PinInput})
		adcs[i] = machine.ADC{Pin: pin}
		adcs[i].Configure(adcConfig)
	}

	configurePWM(PWM_FREQUENCY)
	for i, pins := range [][2]machine.Pin{{PIN_DIR1, PIN_PWM1}} {
		pins[0].Configure(machine.PinConfig{Mode: machine.PinOutput})
		pins[0].Low()
		ch, err := pwm.Channel(pins[1])
		if err != nil {
			println("pwm channel:", err.Error())
			continue
		}
		motors[i] = motor{dir: pins[0], pwm: pins[1], ch: ch}
	}

	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	lastSample = time.Now()

	for {
		now := time.Now()

		processSerial()

		if now.Sub(lastSample) >= SAMPLE_INTERVAL_US*time.Microsecond {
			sampleFrame()
			lastSample = now
		}

		if frame >= FRAMES_PER_BLOCK {
			writeBlock()
			frame = 0
		}
	}
}

func configurePWM(hz int) {
	if hz <= 0 {
		return
	}
	if err := pwm.Configure(machine.PWMConfig{Period: uint64(1e9 / hz)}); err != nil {
		println("pwm configure:", err.Error())
	}
}

// sampleFrame reads one sample per channel in setpoint/position order.
func sampleFrame() {
	base := frame * len(adcs)
	for i := range adcs {
		block[base+i] = adcs[i].Get()
	}
	frame++
}

// writeBlock sends 0xA5 0x5A, the little-endian sample count, then samples.
func writeBlock() {
	var out [4 + len(block)*2]byte
	out[0], out[1] = 0xA5, 0x5A
	out[2], out[3] = byte(len(block)), byte(len(block)>>8)
	for i, v := range block {
		out[4+2*i] = byte(v)
		out[5+2*i] = byte(v >> 8)
	}
	uart.Write(out[:])
}

func processSerial() {
	for uart.Buffered() > 0 {
		data, err := uart.ReadByte()
		if err != nil {
			break
		}

		if data == '\n' || data == '\r' {
			if linePos > 0 {
				handleCommand(lineBuffer[:linePos])
			}
			linePos = 0
			continue
		}

		if linePos < len(lineBuffer) {
			lineBuffer[linePos] = data
			linePos++
		} else {
			// Overlong line, drop it
			linePos = 0
		}
	}
}

// handleCommand applies "F<hz>" or "M<motor>,<dir>,<duty>".
func handleCommand(line []byte) {
	switch line[0] {
	case 'F':
		hz, _ := parseUint(line[1:])
		configurePWM(hz)
	case 'M':
		rest := line[1:]
		idx, n := parseUint(rest)
		if n == 0 || idx >= MOTORS || len(rest) < n+4 {
			return
		}
		rest = rest[n+1:]
		reverse := rest[0] == '1'
		duty, _ := parseUint(rest[2:])
		if duty > DUTY_SCALE {
			duty = DUTY_SCALE
		}
		m := motors[idx]
		m.dir.Set(reverse)
		pwm.Set(m.ch, uint32(uint64(pwm.Top())*uint64(duty)/DUTY_SCALE))
	}
}

// parseUint reads leading decimal digits and returns the value and digit count.
func parseUint(b []byte) (int, int) {
	v, n := 0, 0
	for n < len(b) && b[n] >= '0' && b[n] <= '9' {
		v = v*10 + int(b[n]-'0')
		n++
	}
	return v, n
}
