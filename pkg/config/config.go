package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every error returned from Validate.
var ErrInvalid = errors.New("invalid configuration")

// Telemetry output modes.
const (
	ModeCompact = "compact"
	ModeVerbose = "verbose"
)

// Sample and actuator drivers.
const (
	DriverMock   = "mock"
	DriverSerial = "serial"
)

// LinkBaudRate is the UART rate of the companion ADC/H-bridge firmware.
// Its sample stream needs about 200 kbaud at the default block rate.
const LinkBaudRate = 460800

// MinBuffers is the smallest acquisition pool that still leaves two buffers
// for the producer while one is being aggregated.
const MinBuffers = 3

// Config represents the application configuration.
type Config struct {
	Control     ControlConfig     `yaml:"control"`
	Acquisition AcquisitionConfig `yaml:"acquisition"`
	Actuator    ActuatorConfig    `yaml:"actuator"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Heartbeat   HeartbeatConfig   `yaml:"heartbeat"`
	Mock        MockConfig        `yaml:"mock"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// ControlConfig contains the proportional control law parameters.
type ControlConfig struct {
	Kp        float32 `yaml:"kp"`        // Duty per ADC count of error
	Frequency float64 `yaml:"frequency"` // Control ticks per second
}

// AcquisitionConfig describes the oversampled ADC stream.
type AcquisitionConfig struct {
	Motors         int          `yaml:"motors"`
	Oversampling   int          `yaml:"oversampling"`     // Blocks per control tick
	FramesPerBlock int          `yaml:"frames_per_block"` // Samples per channel in one block
	Buffers        int          `yaml:"buffers"`
	Source         string       `yaml:"source"`
	Serial         SerialConfig `yaml:"serial"`
}

// ActuatorConfig describes the H-bridge outputs.
type ActuatorConfig struct {
	Driver       string       `yaml:"driver"`
	PWMFrequency int          `yaml:"pwm_frequency"` // Carrier frequency in Hz
	Serial       SerialConfig `yaml:"serial"`
}

// TelemetryConfig describes the telemetry stream and its optional relays.
type TelemetryConfig struct {
	Enabled   bool            `yaml:"enabled"`
	Mode      string          `yaml:"mode"`
	Frequency float64         `yaml:"frequency"`
	Serial    SerialConfig    `yaml:"serial"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Websocket WebsocketConfig `yaml:"websocket"`
}

// MQTTConfig configures the MQTT telemetry relay. Empty Broker disables it.
type MQTTConfig struct {
	Broker   string `yaml:"broker"` // e.g. tcp://localhost:1883
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

// WebsocketConfig configures the websocket telemetry relay. Empty Listen disables it.
type WebsocketConfig struct {
	Listen string `yaml:"listen"`
}

// HeartbeatConfig configures the liveness diagnostic.
type HeartbeatConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// MockConfig contains the simulated plant configuration.
type MockConfig struct {
	Setpoints        []uint16 `yaml:"setpoints"`         // Setpoint potentiometer per motor (ADC counts)
	InitialPositions []uint16 `yaml:"initial_positions"` // Starting wiper position per motor (ADC counts)
	Noise            float32  `yaml:"noise"`             // Peak noise (ADC counts)
	SlewRate         float32  `yaml:"slew_rate"`         // Wiper travel at 100% duty (ADC counts per second)
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Control: ControlConfig{
			Kp:        1.0 / 32768, // Half the 16-bit range of error gives full duty
			Frequency: 100,
		},
		Acquisition: AcquisitionConfig{
			Motors:         1,
			Oversampling:   10,
			FramesPerBlock: 4,
			Buffers:        MinBuffers,
			Source:         DriverMock,
			Serial: SerialConfig{
				Port:     "/dev/ttyACM0",
				BaudRate: LinkBaudRate,
			},
		},
		Actuator: ActuatorConfig{
			Driver:       DriverMock,
			PWMFrequency: 5000,
			Serial: SerialConfig{
				Port:     "/dev/ttyACM0", // Same MCU as the ADC stream
				BaudRate: LinkBaudRate,
			},
		},
		Telemetry: TelemetryConfig{
			Enabled:   true,
			Mode:      ModeCompact,
			Frequency: 20,
			Serial: SerialConfig{
				Port:     "", // stdout
				BaudRate: 19200,
			},
			MQTT: MQTTConfig{
				Topic:    "potservo/telemetry",
				ClientID: "potservo",
			},
		},
		Heartbeat: HeartbeatConfig{
			Interval: 3 * time.Second,
		},
		Mock: MockConfig{
			Setpoints:        []uint16{32768},
			InitialPositions: []uint16{16384},
			Noise:            64,
			SlewRate:         20000,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// BlockLen returns the number of 16-bit samples in one acquisition block.
func (c *Config) BlockLen() int {
	return c.Acquisition.FramesPerBlock * c.Acquisition.Motors * 2
}

// BlockPeriod returns the time between two acquisition callbacks.
func (c *Config) BlockPeriod() time.Duration {
	return period(c.Control.Frequency * float64(c.Acquisition.Oversampling))
}

// ControlPeriod returns the control loop period.
func (c *Config) ControlPeriod() time.Duration {
	return period(c.Control.Frequency)
}

// TelemetryPeriod returns the telemetry period.
func (c *Config) TelemetryPeriod() time.Duration {
	return period(c.Telemetry.Frequency)
}

func period(hz float64) time.Duration {
	if hz <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / hz)
}

// SharedLink reports whether samples and motor commands travel over one
// serial port, as with the companion firmware.
func (c *Config) SharedLink() bool {
	return c.Acquisition.Source == DriverSerial &&
		c.Actuator.Driver == DriverSerial &&
		c.Acquisition.Serial.Port == c.Actuator.Serial.Port
}

// Validate reports the first setting that the runtime cannot work with.
func (c *Config) Validate() error {
	switch {
	case c.Control.Kp <= 0:
		return fmt.Errorf("%w: control.kp must be positive", ErrInvalid)
	case c.Control.Frequency <= 0:
		return fmt.Errorf("%w: control.frequency must be positive", ErrInvalid)
	case c.Acquisition.Motors < 1:
		return fmt.Errorf("%w: acquisition.motors must be at least 1", ErrInvalid)
	case c.Acquisition.Oversampling < 1:
		return fmt.Errorf("%w: acquisition.oversampling must be at least 1", ErrInvalid)
	case c.Acquisition.FramesPerBlock < 1:
		return fmt.Errorf("%w: acquisition.frames_per_block must be at least 1", ErrInvalid)
	case c.Acquisition.Buffers < MinBuffers:
		return fmt.Errorf("%w: acquisition.buffers must be at least %d", ErrInvalid, MinBuffers)
	case c.Acquisition.Source != DriverMock && c.Acquisition.Source != DriverSerial:
		return fmt.Errorf("%w: unknown acquisition.source %q", ErrInvalid, c.Acquisition.Source)
	case c.Actuator.Driver != DriverMock && c.Actuator.Driver != DriverSerial:
		return fmt.Errorf("%w: unknown actuator.driver %q", ErrInvalid, c.Actuator.Driver)
	case c.Telemetry.Mode != ModeCompact && c.Telemetry.Mode != ModeVerbose:
		return fmt.Errorf("%w: unknown telemetry.mode %q", ErrInvalid, c.Telemetry.Mode)
	case c.Telemetry.Frequency <= 0 || c.Telemetry.Frequency >= c.Control.Frequency:
		return fmt.Errorf("%w: telemetry.frequency must be positive and below control.frequency", ErrInvalid)
	case c.Heartbeat.Interval <= 0:
		return fmt.Errorf("%w: heartbeat.interval must be positive", ErrInvalid)
	case c.SharedLink() && c.Acquisition.Serial.BaudRate != c.Actuator.Serial.BaudRate:
		return fmt.Errorf("%w: acquisition and actuator share %s at different baud rates", ErrInvalid, c.Acquisition.Serial.Port)
	}
	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Control.Kp == 0 {
		c.Control.Kp = def.Control.Kp
	}
	if c.Control.Frequency == 0 {
		c.Control.Frequency = def.Control.Frequency
	}

	if c.Acquisition.Motors == 0 {
		c.Acquisition.Motors = def.Acquisition.Motors
	}
	if c.Acquisition.Oversampling == 0 {
		c.Acquisition.Oversampling = def.Acquisition.Oversampling
	}
	if c.Acquisition.FramesPerBlock == 0 {
		c.Acquisition.FramesPerBlock = def.Acquisition.FramesPerBlock
	}
	if c.Acquisition.Buffers == 0 {
		c.Acquisition.Buffers = def.Acquisition.Buffers
	}
	if c.Acquisition.Source == "" {
		c.Acquisition.Source = def.Acquisition.Source
	}
	if c.Acquisition.Serial.BaudRate == 0 {
		c.Acquisition.Serial.BaudRate = def.Acquisition.Serial.BaudRate
	}

	if c.Actuator.Driver == "" {
		c.Actuator.Driver = def.Actuator.Driver
	}
	if c.Actuator.PWMFrequency == 0 {
		c.Actuator.PWMFrequency = def.Actuator.PWMFrequency
	}
	if c.Actuator.Serial.BaudRate == 0 {
		c.Actuator.Serial.BaudRate = def.Actuator.Serial.BaudRate
	}

	if c.Telemetry.Mode == "" {
		c.Telemetry.Mode = def.Telemetry.Mode
	}
	if c.Telemetry.Frequency == 0 {
		c.Telemetry.Frequency = def.Telemetry.Frequency
	}
	if c.Telemetry.Serial.BaudRate == 0 {
		c.Telemetry.Serial.BaudRate = def.Telemetry.Serial.BaudRate
	}
	if c.Telemetry.MQTT.Topic == "" {
		c.Telemetry.MQTT.Topic = def.Telemetry.MQTT.Topic
	}
	if c.Telemetry.MQTT.ClientID == "" {
		c.Telemetry.MQTT.ClientID = def.Telemetry.MQTT.ClientID
	}

	if c.Heartbeat.Interval == 0 {
		c.Heartbeat.Interval = def.Heartbeat.Interval
	}

	if c.Mock.SlewRate == 0 {
		c.Mock.SlewRate = def.Mock.SlewRate
	}
}
