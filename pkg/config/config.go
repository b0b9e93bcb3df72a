package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Hardware backends.
const (
	BackendMock    = "mock"
	BackendADS1115 = "ads1115"
	BackendRemote  = "remote"
)

// Channel types.
const (
	ChannelStdio  = "stdio"
	ChannelSerial = "serial"
	ChannelMQTT   = "mqtt"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the application configuration.
type Config struct {
	LogLevel       string            `yaml:"log_level"`
	ReportInterval time.Duration     `yaml:"report_interval"`
	Hardware       HardwareConfig    `yaml:"hardware"`
	Sensors        []SensorConfig    `yaml:"sensors"`
	Channels       []ChannelConfig   `yaml:"channels"`
	Metrics        MetricsConfig     `yaml:"metrics"`
	Calibration    CalibrationConfig `yaml:"calibration"`
}

// HardwareConfig selects and configures the acquisition backend.
type HardwareConfig struct {
	Backend string        `yaml:"backend"` // mock, ads1115 or remote
	ADS1115 ADS1115Config `yaml:"ads1115"`
	Remote  RemoteConfig  `yaml:"remote"`
	Mock    MockConfig    `yaml:"mock"`
}

// ADS1115Config contains I2C ADC configuration.
type ADS1115Config struct {
	Bus        string `yaml:"bus"` // empty selects the first bus
	Address    uint16 `yaml:"address"`
	SampleRate int    `yaml:"sample_rate"`
}

// RemoteConfig contains the serial bridge configuration.
type RemoteConfig struct {
	Port     string        `yaml:"port"`
	BaudRate int           `yaml:"baud_rate"`
	Timeout  time.Duration `yaml:"timeout"`
}

// MockConfig contains simulated hardware configuration.
type MockConfig struct {
	Base        float64         `yaml:"base"`        // Analog level (counts)
	Noise       float64         `yaml:"noise"`       // Peak noise (counts)
	Threshold   float64         `yaml:"threshold"`   // Digital high level (counts)
	Humidity    float64         `yaml:"humidity"`    // %
	Temperature float64         `yaml:"temperature"` // C
	Levels      map[int]float64 `yaml:"levels"`      // Per-pin analog level overrides
}

// SensorConfig describes one sensor.
type SensorConfig struct {
	Pin         int                  `yaml:"pin"`
	Type        string               `yaml:"type"`
	Label       string               `yaml:"label"`
	Profile     *ProfileConfig       `yaml:"profile,omitempty"`     // replaces the built-in profile
	Calibration *CalibrationOverride `yaml:"calibration,omitempty"` // applied after construction
}

// ProfileConfig describes a custom sensor profile.
type ProfileConfig struct {
	Name      string        `yaml:"name"`
	Unit      string        `yaml:"unit"`
	Slope     float64       `yaml:"slope"`
	Intercept float64       `yaml:"intercept"`
	Samples   int           `yaml:"samples"`
	ReadDelay time.Duration `yaml:"read_delay"`
	Points    []float64     `yaml:"points"`
	Decimals  int           `yaml:"decimals"`
	Reader    string        `yaml:"reader"` // analog, digital, humidity or temperature
}

// CalibrationOverride holds previously determined calibration values. Slope
// and intercept are only applied when present.
type CalibrationOverride struct {
	Points    []float64 `yaml:"points,omitempty"`
	Slope     *float64  `yaml:"slope,omitempty"`
	Intercept *float64  `yaml:"intercept,omitempty"`
}

// ChannelConfig describes one reporting channel.
type ChannelConfig struct {
	Name     string     `yaml:"name"`
	Type     string     `yaml:"type"` // stdio, serial or mqtt
	Port     string     `yaml:"port,omitempty"`
	BaudRate int        `yaml:"baud_rate,omitempty"`
	MQTT     MQTTConfig `yaml:"mqtt,omitempty"`
}

// MQTTConfig contains broker settings for an MQTT channel.
type MQTTConfig struct {
	Server       string `yaml:"server,omitempty"`
	ClientID     string `yaml:"client_id,omitempty"`
	Username     string `yaml:"username,omitempty"`
	Password     string `yaml:"password,omitempty"`
	StateTopic   string `yaml:"state_topic,omitempty"`
	CommandTopic string `yaml:"command_topic,omitempty"`
	QoS          byte   `yaml:"qos,omitempty"`
}

// MetricsConfig contains the Prometheus endpoint configuration.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the endpoint
}

// CalibrationConfig contains interactive calibration timing.
type CalibrationConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	Debounce     time.Duration `yaml:"debounce"`
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		LogLevel:       "info",
		ReportInterval: 2 * time.Second,
		Hardware: HardwareConfig{
			Backend: BackendMock,
			ADS1115: ADS1115Config{
				Address:    0x48,
				SampleRate: 128,
			},
			Remote: RemoteConfig{
				Port:     "/dev/ttyACM0", // "COM3" on Windows
				BaudRate: 115200,
				Timeout:  2 * time.Second,
			},
			Mock: MockConfig{
				Base:        512,
				Noise:       4,
				Threshold:   512,
				Humidity:    45,
				Temperature: 21.5,
			},
		},
		Sensors: []SensorConfig{
			{Pin: 0, Type: "ec_meter"},
		},
		Channels: []ChannelConfig{
			{Name: "console", Type: ChannelStdio},
		},
		Calibration: CalibrationConfig{
			PollInterval: 100 * time.Millisecond,
			Debounce:     500 * time.Millisecond,
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

// Validate reports settings that cannot be wired.
func (c *Config) Validate() error {
	switch c.Hardware.Backend {
	case BackendMock, BackendADS1115, BackendRemote:
	default:
		return fmt.Errorf("%w: unknown hardware backend %q", ErrInvalid, c.Hardware.Backend)
	}

	for i, ch := range c.Channels {
		switch ch.Type {
		case ChannelStdio, ChannelMQTT:
		case ChannelSerial:
			if ch.Port == "" {
				return fmt.Errorf("%w: channel %d (%s) needs a port", ErrInvalid, i, ch.Name)
			}
		default:
			return fmt.Errorf("%w: channel %d has unknown type %q", ErrInvalid, i, ch.Type)
		}
	}

	for i, s := range c.Sensors {
		if s.Profile != nil && len(s.Profile.Points) < 2 {
			return fmt.Errorf("%w: sensor %d custom profile needs at least 2 points", ErrInvalid, i)
		}
	}
	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.ReportInterval <= 0 {
		c.ReportInterval = def.ReportInterval
	}

	if c.Hardware.Backend == "" {
		c.Hardware.Backend = def.Hardware.Backend
	}
	if c.Hardware.ADS1115.Address == 0 {
		c.Hardware.ADS1115.Address = def.Hardware.ADS1115.Address
	}
	if c.Hardware.ADS1115.SampleRate == 0 {
		c.Hardware.ADS1115.SampleRate = def.Hardware.ADS1115.SampleRate
	}
	if c.Hardware.Remote.Port == "" {
		c.Hardware.Remote.Port = def.Hardware.Remote.Port
	}
	if c.Hardware.Remote.BaudRate == 0 {
		c.Hardware.Remote.BaudRate = def.Hardware.Remote.BaudRate
	}
	if c.Hardware.Remote.Timeout == 0 {
		c.Hardware.Remote.Timeout = def.Hardware.Remote.Timeout
	}

	if len(c.Sensors) == 0 {
		c.Sensors = def.Sensors
	}
	for i := range c.Sensors {
		s := &c.Sensors[i]
		if s.Type == "" {
			s.Type = "ec_meter"
		}
		if p := s.Profile; p != nil {
			if p.Samples == 0 {
				p.Samples = 1
			}
			if p.Reader == "" {
				p.Reader = "analog"
			}
			if p.Name == "" {
				p.Name = s.Type
			}
		}
	}

	if len(c.Channels) == 0 {
		c.Channels = def.Channels
	}
	for i := range c.Channels {
		ch := &c.Channels[i]
		if ch.Type == "" {
			ch.Type = ChannelStdio
		}
		if ch.Name == "" {
			ch.Name = fmt.Sprintf("%s%d", ch.Type, i)
		}
		if ch.Type == ChannelSerial && ch.BaudRate == 0 {
			ch.BaudRate = 9600
		}
	}

	if c.Calibration.PollInterval == 0 {
		c.Calibration.PollInterval = def.Calibration.PollInterval
	}
	if c.Calibration.Debounce == 0 {
		c.Calibration.Debounce = def.Calibration.Debounce
	}
}
