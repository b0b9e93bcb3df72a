package hal

import (
	"math"
	"sync"
	"time"
)

// MockConfig describes the simulated signals.
type MockConfig struct {
	Base        float64 // Analog level (counts) for pins without an override
	Noise       float64 // Peak noise amplitude (counts)
	Threshold   float64 // Digital reads are high when the analog level is above this
	Humidity    float64 // Simulated relative humidity (%)
	Temperature float64 // Simulated temperature (C)
}

// Mock simulates analog, digital and climate hardware for development and tests.
type Mock struct {
	cfg MockConfig

	mu        sync.RWMutex
	levels    map[int]float64
	startTime time.Time
	now       func() time.Time
}

// NewMock creates a simulated backend. A nil config selects quiet defaults.
func NewMock(cfg *MockConfig) *Mock {
	if cfg == nil {
		cfg = &MockConfig{
			Base:        512,
			Noise:       0,
			Threshold:   512,
			Humidity:    45,
			Temperature: 21.5,
		}
	}
	return &Mock{
		cfg:       *cfg,
		levels:    make(map[int]float64),
		startTime: time.Now(),
		now:       time.Now,
	}
}

// SetLevel pins the simulated analog level of one pin.
func (m *Mock) SetLevel(pin int, level float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels[pin] = level
}

// SetClimate changes the simulated humidity and temperature.
func (m *Mock) SetClimate(humidity, temperature float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.Humidity = humidity
	m.cfg.Temperature = temperature
}

// ReadAnalog returns the pin level plus deterministic noise.
func (m *Mock) ReadAnalog(pin int) (float64, error) {
	m.mu.RLock()
	level, ok := m.levels[pin]
	if !ok {
		level = m.cfg.Base
	}
	noiseLevel := m.cfg.Noise
	elapsed := m.now().Sub(m.startTime)
	m.mu.RUnlock()

	if noiseLevel == 0 {
		return level, nil
	}

	noise := (math.Sin(float64(elapsed.Nanoseconds())*0.001+float64(pin)) +
		math.Cos(float64(elapsed.Nanoseconds())*0.0013)) *
		noiseLevel * 0.5
	return level + noise, nil
}

// ReadDigital compares the analog level against the configured threshold.
func (m *Mock) ReadDigital(pin int) (bool, error) {
	v, err := m.ReadAnalog(pin)
	if err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return v > m.cfg.Threshold, nil
}

// ReadClimate returns the configured humidity and temperature.
func (m *Mock) ReadClimate(pin int) (float64, float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.Humidity, m.cfg.Temperature, nil
}
