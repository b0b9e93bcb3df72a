package sensor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/itohio/sensorkit/pkg/calibration"
	"github.com/itohio/sensorkit/pkg/channel"
)

// ErrReadingCount is returned by CalibrateWith when the readings do not pair
// up with the reference points.
var ErrReadingCount = errors.New("reading count does not match calibration points")

// Calibrate runs the interactive multi-point calibration on the control
// channel. For every reference point the operator applies the reference, watches
// live raw and converted values and confirms with 'c'. On success the slope and
// intercept are replaced by the least-squares fit. On any error the previous
// calibration is kept.
func (s *Sensor) Calibrate(ctx context.Context) error {
	idx, ch, err := s.controlChannel()
	if err != nil {
		return err
	}

	log.Info().Str("sensor", s.label).Int("channel", idx).Msg("Calibration started")

	err = ch.Printf("Calibrating %s with %d points", s.label, len(s.points))
	if err != nil {
		return s.calibrationDone(s.channelError(err))
	}

	points := make([]calibration.Point, 0, len(s.points))
	for i, ref := range s.points {
		raw, err := s.acquirePoint(ctx, ch, i, ref)
		if err != nil {
			return s.calibrationDone(err)
		}
		points = append(points, calibration.Point{X: raw, Y: ref})

		if err := ch.Printf("Point %d: raw %.3f = %.3f%s", i+1, raw, ref, s.profile.Unit); err != nil {
			return s.calibrationDone(s.channelError(err))
		}
		if err := sleep(ctx, s.debounce); err != nil {
			return s.calibrationDone(err)
		}
	}

	line, err := s.apply(points)
	if err != nil {
		if errors.Is(err, calibration.ErrDegenerate) {
			_ = s.channelError(ch.Println("Calibration failed: all raw readings are equal"))
		}
		return s.calibrationDone(err)
	}

	if err := ch.Printf("Slope = %.4f; Intercept = %.4f", line.Slope, line.Intercept); err != nil {
		return s.calibrationDone(s.channelError(err))
	}
	if !math.IsNaN(line.R2) {
		if err := ch.Printf("R2 = %.4f", line.R2); err != nil {
			return s.calibrationDone(s.channelError(err))
		}
	}
	return s.calibrationDone(nil)
}

// CalibrateWith fits the calibration to raw readings already taken at each
// reference point, in order.
func (s *Sensor) CalibrateWith(ctx context.Context, readings []float64) error {
	if err := ctx.Err(); err != nil {
		return s.calibrationDone(fmt.Errorf("calibrate %s: %w", s.label, err))
	}
	if len(readings) != len(s.points) {
		return s.calibrationDone(fmt.Errorf("%w: got %d, want %d", ErrReadingCount, len(readings), len(s.points)))
	}

	points := make([]calibration.Point, len(readings))
	for i, raw := range readings {
		points[i] = calibration.Point{X: raw, Y: s.points[i]}
	}
	_, err := s.apply(points)
	return s.calibrationDone(err)
}

// acquirePoint streams live readings until the operator confirms and returns
// the last raw value.
func (s *Sensor) acquirePoint(ctx context.Context, ch *channel.Channel, i int, ref float64) (float64, error) {
	if err := ch.Printf("Apply %.3f%s, press c to accept", ref, s.profile.Unit); err != nil {
		return 0, s.channelError(err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("interrupted: %w", err)
		}

		key, ok, err := ch.Poll()
		if err != nil {
			return 0, s.channelError(err)
		}

		raw, err := s.CollectRawInput()
		if err != nil {
			return 0, err
		}
		if err := ch.Printf("Raw: %.3f; Value: %.3f%s", raw, s.ConvertInputLinear(raw), s.profile.Unit); err != nil {
			return 0, s.channelError(err)
		}

		if ok && (key == 'c' || key == 'C') {
			log.Debug().Str("sensor", s.label).Int("point", i).Float64("raw", raw).Float64("ref", ref).Msg("Calibration point accepted")
			return raw, nil
		}
		if err := sleep(ctx, s.pollInterval); err != nil {
			return 0, err
		}
	}
}

func (s *Sensor) apply(points []calibration.Point) (calibration.Line, error) {
	line, err := calibration.Fit(points)
	if err != nil {
		return line, fmt.Errorf("calibrate %s: %w", s.label, err)
	}
	s.slope = line.Slope
	s.intercept = line.Intercept
	return line, nil
}

func (s *Sensor) calibrationDone(err error) error {
	s.recorder.ObserveCalibration(s.label, err)
	if err != nil {
		log.Warn().Err(err).Str("sensor", s.label).Msg("Calibration failed")
		return err
	}
	log.Info().
		Str("sensor", s.label).
		Float64("slope", s.slope).
		Float64("intercept", s.intercept).
		Msg("Calibration done")
	return nil
}

func (s *Sensor) controlChannel() (int, *channel.Channel, error) {
	if s.control >= 0 {
		ch, err := s.channels.Get(s.control)
		return s.control, ch, err
	}
	return s.channels.First()
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("interrupted: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}
