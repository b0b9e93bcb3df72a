package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(tmpfile.Name()) })

	_, err = tmpfile.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())
	return tmpfile.Name()
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 2*time.Second, cfg.ReportInterval)
	assert.Equal(t, BackendMock, cfg.Hardware.Backend)
	assert.Equal(t, uint16(0x48), cfg.Hardware.ADS1115.Address)
	assert.Equal(t, 115200, cfg.Hardware.Remote.BaudRate)
	assert.Equal(t, []SensorConfig{{Pin: 0, Type: "ec_meter"}}, cfg.Sensors)
	assert.Equal(t, []ChannelConfig{{Name: "console", Type: ChannelStdio}}, cfg.Channels)
	assert.Equal(t, 100*time.Millisecond, cfg.Calibration.PollInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.Calibration.Debounce)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, BackendMock, cfg.Hardware.Backend)
}

func TestLoad_ValidYAML(t *testing.T) {
	name := writeTemp(t, `
log_level: debug
report_interval: 5s

hardware:
  backend: remote
  remote:
    port: "/dev/ttyUSB1"
    timeout: 500ms

sensors:
  - pin: 1
    type: hygrometer
    label: Greenhouse
  - pin: 2
    type: ec_meter
    calibration:
      points: [500, 1500]
      slope: 0
  - pin: 3
    profile:
      name: Pressure
      unit: kPa
      slope: 0.1
      points: [0, 100, 200]
      decimals: 2

channels:
  - type: serial
    port: /dev/rfcomm0
  - name: broker
    type: mqtt
    mqtt:
      server: tcp://broker:1883
      state_topic: greenhouse/readings

metrics:
  addr: ":9100"

calibration:
  poll_interval: 50ms
`)

	cfg, err := Load(name)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.ReportInterval)
	assert.Equal(t, BackendRemote, cfg.Hardware.Backend)
	assert.Equal(t, "/dev/ttyUSB1", cfg.Hardware.Remote.Port)
	assert.Equal(t, 115200, cfg.Hardware.Remote.BaudRate) // default
	assert.Equal(t, 500*time.Millisecond, cfg.Hardware.Remote.Timeout)

	require.Len(t, cfg.Sensors, 3)
	assert.Equal(t, "hygrometer", cfg.Sensors[0].Type)
	assert.Equal(t, "Greenhouse", cfg.Sensors[0].Label)
	assert.Nil(t, cfg.Sensors[0].Calibration)

	cal := cfg.Sensors[1].Calibration
	require.NotNil(t, cal)
	assert.Equal(t, []float64{500, 1500}, cal.Points)
	require.NotNil(t, cal.Slope)
	assert.Equal(t, 0.0, *cal.Slope)
	assert.Nil(t, cal.Intercept)

	p := cfg.Sensors[2].Profile
	require.NotNil(t, p)
	assert.Equal(t, "ec_meter", cfg.Sensors[2].Type) // default
	assert.Equal(t, "Pressure", p.Name)
	assert.Equal(t, 1, p.Samples)       // default
	assert.Equal(t, "analog", p.Reader) // default
	assert.Equal(t, []float64{0, 100, 200}, p.Points)

	require.Len(t, cfg.Channels, 2)
	assert.Equal(t, "serial0", cfg.Channels[0].Name)
	assert.Equal(t, 9600, cfg.Channels[0].BaudRate)
	assert.Equal(t, "broker", cfg.Channels[1].Name)
	assert.Equal(t, "tcp://broker:1883", cfg.Channels[1].MQTT.Server)
	assert.Equal(t, "greenhouse/readings", cfg.Channels[1].MQTT.StateTopic)

	assert.Equal(t, ":9100", cfg.Metrics.Addr)
	assert.Equal(t, 50*time.Millisecond, cfg.Calibration.PollInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.Calibration.Debounce)
}

func TestLoad_InvalidYAML(t *testing.T) {
	cfg, err := Load(writeTemp(t, "invalid: yaml: content: ["))
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_PartialYAML(t *testing.T) {
	cfg, err := Load(writeTemp(t, `
hardware:
  backend: ads1115
  ads1115:
    bus: "/dev/i2c-1"
`))
	require.NoError(t, err)

	assert.Equal(t, BackendADS1115, cfg.Hardware.Backend)
	assert.Equal(t, "/dev/i2c-1", cfg.Hardware.ADS1115.Bus)
	assert.Equal(t, uint16(0x48), cfg.Hardware.ADS1115.Address) // default
	assert.Equal(t, 128, cfg.Hardware.ADS1115.SampleRate)       // default
	assert.Len(t, cfg.Sensors, 1)                               // default
	assert.Len(t, cfg.Channels, 1)                              // default
}

func TestSave(t *testing.T) {
	cfg := Default()
	slope := 2.5
	cfg.Sensors[0].Label = "Tank"
	cfg.Sensors[0].Calibration = &CalibrationOverride{Slope: &slope}
	cfg.Hardware.Mock.Levels = map[int]float64{0: 700}

	name := writeTemp(t, "")
	require.NoError(t, cfg.Save(name))

	loaded, err := Load(name)
	require.NoError(t, err)
	assert.Equal(t, "Tank", loaded.Sensors[0].Label)
	require.NotNil(t, loaded.Sensors[0].Calibration)
	assert.Equal(t, 2.5, *loaded.Sensors[0].Calibration.Slope)
	assert.Nil(t, loaded.Sensors[0].Calibration.Intercept)
	assert.Equal(t, 700.0, loaded.Hardware.Mock.Levels[0])
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"backend", func(c *Config) { c.Hardware.Backend = "gpio" }},
		{"channel type", func(c *Config) { c.Channels[0].Type = "bluetooth" }},
		{"serial port", func(c *Config) { c.Channels[0] = ChannelConfig{Type: ChannelSerial} }},
		{"profile points", func(c *Config) { c.Sensors[0].Profile = &ProfileConfig{Points: []float64{1}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}
