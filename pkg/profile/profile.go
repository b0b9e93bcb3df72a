package profile

import (
	"errors"
	"fmt"
	"time"
)

const (
	// MinCalibrationPoints is the smallest number of reference points a line fit needs.
	MinCalibrationPoints = 2
	// MaxCalibrationPoints bounds the reference points a profile may carry.
	MaxCalibrationPoints = 10
	// MaxDecimals bounds the display precision.
	MaxDecimals = 6
)

// ErrInvalidProfile is returned by Validate.
var ErrInvalidProfile = errors.New("invalid sensor profile")

// Profile holds the static constants of one sensor type: default calibration,
// acquisition strategy and display metadata.
type Profile struct {
	Name      string
	Unit      string
	Slope     float64
	Intercept float64
	Samples   int           // readings averaged per measurement
	ReadDelay time.Duration // advisory spacing between averaged readings
	Points    []float64     // calibration reference values, in acquisition order
	Decimals  int
	Reader    Reader
}

// Validate checks the constraints every sensor relies on.
func (p Profile) Validate() error {
	if n := len(p.Points); n < MinCalibrationPoints || n > MaxCalibrationPoints {
		return fmt.Errorf("%w: %q has %d calibration points, want %d..%d",
			ErrInvalidProfile, p.Name, n, MinCalibrationPoints, MaxCalibrationPoints)
	}
	if p.Samples < 1 {
		return fmt.Errorf("%w: %q samples must be >= 1, got %d", ErrInvalidProfile, p.Name, p.Samples)
	}
	if p.Reader == nil {
		return fmt.Errorf("%w: %q has no reader", ErrInvalidProfile, p.Name)
	}
	if p.Decimals < 0 || p.Decimals > MaxDecimals {
		return fmt.Errorf("%w: %q decimals must be 0..%d, got %d", ErrInvalidProfile, p.Name, MaxDecimals, p.Decimals)
	}
	return nil
}

// Clone returns a copy that shares no mutable state with p.
func (p Profile) Clone() Profile {
	c := p
	c.Points = append([]float64(nil), p.Points...)
	return c
}
