package sensor

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/itohio/sensorkit/pkg/channel"
	"github.com/itohio/sensorkit/pkg/profile"
)

const (
	// DefaultPollInterval spaces the iterations of the interactive loops.
	DefaultPollInterval = 100 * time.Millisecond
	// DefaultDebounce is the pause after a calibration point is accepted.
	DefaultDebounce = 500 * time.Millisecond
)

// Recorder receives measurement events, e.g. for metrics export.
type Recorder interface {
	ObserveReading(sensor, unit string, raw, value float64)
	ObserveCalibration(sensor string, err error)
	ObserveChannelError(sensor string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveReading(string, string, float64, float64) {}
func (nopRecorder) ObserveCalibration(string, error)                {}
func (nopRecorder) ObserveChannelError(string)                      {}

// Option configures a Sensor.
type Option func(*Sensor)

// WithLabel sets the display label. An empty label keeps the profile name.
func WithLabel(label string) Option {
	return func(s *Sensor) {
		if label != "" {
			s.label = label
		}
	}
}

// WithPollInterval sets the delay between iterations of the calibration and
// stream test loops.
func WithPollInterval(d time.Duration) Option {
	return func(s *Sensor) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithDebounce sets the pause after a calibration point is accepted.
func WithDebounce(d time.Duration) Option {
	return func(s *Sensor) {
		if d >= 0 {
			s.debounce = d
		}
	}
}

// WithControlChannel fixes the slot used for calibration prompts. By default
// the lowest occupied slot is used.
func WithControlChannel(i int) Option {
	return func(s *Sensor) { s.control = i }
}

// WithRecorder attaches a measurement event recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Sensor) {
		if r != nil {
			s.recorder = r
		}
	}
}

// Sensor is one physical input: a pin, a profile, the current calibration and
// the channels readings are reported on. A Sensor is owned by one goroutine.
type Sensor struct {
	pin     int
	profile profile.Profile
	label   string

	slope     float64
	intercept float64
	points    []float64

	history  History
	channels channel.Table

	pollInterval time.Duration
	debounce     time.Duration
	control      int
	recorder     Recorder
}

// New creates a sensor of a built-in type. Unknown types get the EC meter profile.
func New(pin int, t profile.Type, reg *profile.Registry, opts ...Option) *Sensor {
	return newSensor(pin, reg.Profile(t), opts...)
}

// NewCustom creates a sensor from a caller-supplied profile, bypassing the registry.
func NewCustom(pin int, p profile.Profile, opts ...Option) (*Sensor, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return newSensor(pin, p.Clone(), opts...), nil
}

func newSensor(pin int, p profile.Profile, opts ...Option) *Sensor {
	s := &Sensor{
		pin:          pin,
		profile:      p,
		label:        p.Name,
		slope:        p.Slope,
		intercept:    p.Intercept,
		points:       append([]float64(nil), p.Points...),
		pollInterval: DefaultPollInterval,
		debounce:     DefaultDebounce,
		control:      -1,
		recorder:     nopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CollectRawInput performs one raw acquisition through the profile's reader.
func (s *Sensor) CollectRawInput() (float64, error) {
	v, err := s.profile.Reader.Read(s.pin, s.profile.Samples)
	if err != nil {
		return 0, fmt.Errorf("sensor %s: %w", s.label, err)
	}
	return v, nil
}

// ConvertInputLinear applies the current calibration to a raw value.
func (s *Sensor) ConvertInputLinear(raw float64) float64 {
	return s.slope*raw + s.intercept
}

// CollectInput acquires and converts one reading and records it in the history.
func (s *Sensor) CollectInput() (float64, error) {
	raw, err := s.CollectRawInput()
	if err != nil {
		return 0, err
	}
	v := s.ConvertInputLinear(raw)
	s.history.Push(v)
	s.recorder.ObserveReading(s.label, s.profile.Unit, raw, v)
	return v, nil
}

// read acquires and converts without touching the history.
func (s *Sensor) read() (float64, error) {
	raw, err := s.CollectRawInput()
	if err != nil {
		return 0, err
	}
	v := s.ConvertInputLinear(raw)
	s.recorder.ObserveReading(s.label, s.profile.Unit, raw, v)
	return v, nil
}

// FormattedReading acquires a fresh reading and renders it for display.
func (s *Sensor) FormattedReading() (string, error) {
	v, err := s.read()
	if err != nil {
		return "", err
	}
	return s.Format(v), nil
}

// Format renders value as "<label>: <value><unit>" within MaxMessageLen bytes.
func (s *Sensor) Format(value float64) string {
	return formatReading(s.label, s.profile.Unit, value, s.profile.Decimals)
}

// History returns the recorded readings, oldest first.
func (s *Sensor) History() []float64 {
	return s.history.Values()
}

// LastReading returns the most recent recorded reading.
func (s *Sensor) LastReading() (float64, bool) {
	return s.history.Last()
}

// Pin returns the pin the sensor reads from.
func (s *Sensor) Pin() int { return s.pin }

// Label returns the display label.
func (s *Sensor) Label() string { return s.label }

// Name returns the profile name, i.e. the sensor type.
func (s *Sensor) Name() string { return s.profile.Name }

// Unit returns the measurement unit.
func (s *Sensor) Unit() string { return s.profile.Unit }

// Samples returns the number of physical reads averaged per reading.
func (s *Sensor) Samples() int { return s.profile.Samples }

// Slope returns the current calibration slope.
func (s *Sensor) Slope() float64 { return s.slope }

// Intercept returns the current calibration intercept.
func (s *Sensor) Intercept() float64 { return s.intercept }

// Profile returns a copy of the sensor's profile.
func (s *Sensor) Profile() profile.Profile { return s.profile.Clone() }

// CalibrationPoints returns a copy of the current reference points.
func (s *Sensor) CalibrationPoints() []float64 {
	return append([]float64(nil), s.points...)
}

// ValueOption supplies an optional calibration value to SetValues.
type ValueOption func(*valueSet)

type valueSet struct {
	slope     *float64
	intercept *float64
}

// WithSlope replaces the slope. Zero is a valid slope.
func WithSlope(v float64) ValueOption {
	return func(vs *valueSet) { vs.slope = &v }
}

// WithIntercept replaces the intercept. Zero is a valid intercept.
func WithIntercept(v float64) ValueOption {
	return func(vs *valueSet) { vs.intercept = &v }
}

// SetValues replaces the reference points element-wise, up to the profile's
// point count, and the slope and intercept when supplied.
func (s *Sensor) SetValues(points []float64, opts ...ValueOption) {
	for i := 0; i < len(s.points) && i < len(points); i++ {
		s.points[i] = points[i]
	}

	var vs valueSet
	for _, opt := range opts {
		opt(&vs)
	}
	if vs.slope != nil {
		s.slope = *vs.slope
	}
	if vs.intercept != nil {
		s.intercept = *vs.intercept
	}

	log.Debug().
		Str("sensor", s.label).
		Floats64("points", s.points).
		Float64("slope", s.slope).
		Float64("intercept", s.intercept).
		Msg("Calibration values set")
}
