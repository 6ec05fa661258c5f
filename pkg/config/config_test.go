package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, float32(1.0/32768), cfg.Control.Kp)
	assert.Equal(t, float64(100), cfg.Control.Frequency)
	assert.Equal(t, 1, cfg.Acquisition.Motors)
	assert.Equal(t, 10, cfg.Acquisition.Oversampling)
	assert.Equal(t, MinBuffers, cfg.Acquisition.Buffers)
	assert.Equal(t, 5000, cfg.Actuator.PWMFrequency)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, ModeCompact, cfg.Telemetry.Mode)
	assert.Equal(t, float64(20), cfg.Telemetry.Frequency)
	assert.Equal(t, 19200, cfg.Telemetry.Serial.BaudRate)
	assert.Equal(t, 3*time.Second, cfg.Heartbeat.Interval)
	assert.NoError(t, cfg.Validate())
}

func TestDefault_Periods(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 10*time.Millisecond, cfg.ControlPeriod())
	assert.Equal(t, 50*time.Millisecond, cfg.TelemetryPeriod())
	assert.Equal(t, time.Millisecond, cfg.BlockPeriod())
	assert.Equal(t, 8, cfg.BlockLen())
}

func TestDefault_SerialLinkMatchesFirmware(t *testing.T) {
	cfg := Default()

	// The companion MCU streams samples and takes commands on one UART.
	assert.Equal(t, 460800, LinkBaudRate)
	assert.Equal(t, LinkBaudRate, cfg.Acquisition.Serial.BaudRate)
	assert.Equal(t, LinkBaudRate, cfg.Actuator.Serial.BaudRate)
	assert.Equal(t, cfg.Acquisition.Serial.Port, cfg.Actuator.Serial.Port)

	assert.False(t, cfg.SharedLink(), "mock drivers use no port")
	cfg.Acquisition.Source = DriverSerial
	cfg.Actuator.Driver = DriverSerial
	assert.True(t, cfg.SharedLink())
	assert.NoError(t, cfg.Validate())

	// Default block rate: 1000 blocks/s of 4 header + 16 sample bytes, 10 bits per byte on the wire.
	bitsPerSecond := float64(4+cfg.BlockLen()*2) * 10 / cfg.BlockPeriod().Seconds()
	assert.Less(t, bitsPerSecond, float64(LinkBaudRate))

	cfg.Actuator.Serial.Port = "/dev/ttyACM1"
	assert.False(t, cfg.SharedLink())
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, float64(100), cfg.Control.Frequency)
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
control:
  kp: 0.0001
  frequency: 200

acquisition:
  motors: 2
  oversampling: 8
  buffers: 4
  source: serial
  serial:
    port: "/dev/ttyUSB0"

telemetry:
  enabled: false
  mode: verbose
  frequency: 10
  mqtt:
    broker: "tcp://localhost:1883"

heartbeat:
  interval: 5s

mock:
  setpoints: [1000, 2000]
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)

	assert.Equal(t, float32(0.0001), cfg.Control.Kp)
	assert.Equal(t, float64(200), cfg.Control.Frequency)
	assert.Equal(t, 2, cfg.Acquisition.Motors)
	assert.Equal(t, 8, cfg.Acquisition.Oversampling)
	assert.Equal(t, 4, cfg.Acquisition.Buffers)
	assert.Equal(t, DriverSerial, cfg.Acquisition.Source)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Acquisition.Serial.Port)
	assert.Equal(t, LinkBaudRate, cfg.Acquisition.Serial.BaudRate) // default
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, ModeVerbose, cfg.Telemetry.Mode)
	assert.Equal(t, "tcp://localhost:1883", cfg.Telemetry.MQTT.Broker)
	assert.Equal(t, "potservo/telemetry", cfg.Telemetry.MQTT.Topic) // default
	assert.Equal(t, 5*time.Second, cfg.Heartbeat.Interval)
	assert.Equal(t, []uint16{1000, 2000}, cfg.Mock.Setpoints)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	_, err = tmpfile.WriteString("invalid: yaml: content: [")
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_PartialYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	_, err = tmpfile.WriteString("control:\n  frequency: 50\n")
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)

	assert.Equal(t, float64(50), cfg.Control.Frequency)
	assert.Equal(t, float32(1.0/32768), cfg.Control.Kp) // default
	assert.Equal(t, ModeCompact, cfg.Telemetry.Mode)    // default
	assert.True(t, cfg.Telemetry.Enabled)               // default
}

func TestSave(t *testing.T) {
	cfg := Default()
	cfg.Acquisition.Motors = 3
	cfg.Telemetry.Mode = ModeVerbose

	tmpfile, err := os.CreateTemp("", "test_save_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	require.NoError(t, cfg.Save(tmpfile.Name()))

	loaded, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Acquisition.Motors)
	assert.Equal(t, ModeVerbose, loaded.Telemetry.Mode)
	assert.Equal(t, cfg.Control.Kp, loaded.Control.Kp)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"zero gain", func(c *Config) { c.Control.Kp = 0 }},
		{"negative control frequency", func(c *Config) { c.Control.Frequency = -1 }},
		{"no motors", func(c *Config) { c.Acquisition.Motors = 0 }},
		{"no oversampling", func(c *Config) { c.Acquisition.Oversampling = 0 }},
		{"empty block", func(c *Config) { c.Acquisition.FramesPerBlock = 0 }},
		{"two buffers", func(c *Config) { c.Acquisition.Buffers = 2 }},
		{"unknown source", func(c *Config) { c.Acquisition.Source = "dma" }},
		{"unknown driver", func(c *Config) { c.Actuator.Driver = "gpio" }},
		{"unknown mode", func(c *Config) { c.Telemetry.Mode = "json" }},
		{"telemetry faster than control", func(c *Config) { c.Telemetry.Frequency = 100 }},
		{"no heartbeat", func(c *Config) { c.Heartbeat.Interval = 0 }},
		{"shared port at two baud rates", func(c *Config) {
			c.Acquisition.Source = DriverSerial
			c.Actuator.Driver = DriverSerial
			c.Actuator.Serial.BaudRate = 115200
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}
