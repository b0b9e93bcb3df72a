package sensor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/sensorkit/pkg/calibration"
	"github.com/itohio/sensorkit/pkg/channel"
)

// console is an LCD+keypad style channel driven by a key script.
type console struct {
	keys  []byte
	lines []string
	hold  bool // when set an exhausted script keeps returning "nothing yet"
}

func (c *console) channel(name string) *channel.Channel {
	return channel.NewLCDKeypad(name,
		func() (byte, bool, error) {
			if len(c.keys) == 0 {
				if c.hold {
					return 0, false, nil
				}
				return 'c', true, nil
			}
			b := c.keys[0]
			c.keys = c.keys[1:]
			return b, true, nil
		},
		func(text string) error {
			c.lines = append(c.lines, text)
			return nil
		},
	)
}

func fastOptions(extra ...Option) []Option {
	return append([]Option{WithPollInterval(time.Millisecond), WithDebounce(0)}, extra...)
}

func TestCalibrate_ExactLine(t *testing.T) {
	rec := &fakeRecorder{}
	s, err := NewCustom(0, customProfile(scripted(1, 2), 5, 7), fastOptions(WithRecorder(rec))...)
	require.NoError(t, err)

	con := &console{}
	_, err = s.AttachChannel(con.channel("lcd"))
	require.NoError(t, err)

	require.NoError(t, s.Calibrate(context.Background()))
	assert.InDelta(t, 2, s.Slope(), 1e-9)
	assert.InDelta(t, 3, s.Intercept(), 1e-9)
	assert.Equal(t, []float64{5, 7}, s.CalibrationPoints(), "reference points are never changed")

	assert.Contains(t, con.lines, "Raw: 1.000; Value: 1.000u\r\n")
	assert.Contains(t, con.lines, "Slope = 2.0000; Intercept = 3.0000\r\n")
	assert.Contains(t, con.lines, "R2 = 1.0000\r\n")
	assert.Equal(t, []error{nil}, rec.calibrations)
}

func TestCalibrate_WaitsForConfirmation(t *testing.T) {
	s, err := NewCustom(0, customProfile(scripted(9, 9, 1, 3), 5, 9), fastOptions()...)
	require.NoError(t, err)

	// Two ignored keys while the raw value settles, then confirm each point.
	con := &console{keys: []byte("xycC")}
	_, err = s.AttachChannel(con.channel("lcd"))
	require.NoError(t, err)

	require.NoError(t, s.Calibrate(context.Background()))
	assert.InDelta(t, 2, s.Slope(), 1e-9)
	assert.InDelta(t, 3, s.Intercept(), 1e-9)
}

func TestCalibrate_DegenerateKeepsCalibration(t *testing.T) {
	rec := &fakeRecorder{}
	p := customProfile(scripted(400), 400, 2000)
	p.Slope = 1.5
	p.Intercept = -2
	s, err := NewCustom(0, p, fastOptions(WithRecorder(rec))...)
	require.NoError(t, err)

	con := &console{}
	_, err = s.AttachChannel(con.channel("lcd"))
	require.NoError(t, err)

	err = s.Calibrate(context.Background())
	assert.ErrorIs(t, err, calibration.ErrDegenerate)
	assert.Equal(t, 1.5, s.Slope())
	assert.Equal(t, -2.0, s.Intercept())
	require.Len(t, rec.calibrations, 1)
	assert.ErrorIs(t, rec.calibrations[0], calibration.ErrDegenerate)
}

func TestCalibrate_Cancelled(t *testing.T) {
	s, err := NewCustom(0, customProfile(scripted(1), 5, 7), fastOptions()...)
	require.NoError(t, err)

	con := &console{hold: true}
	_, err = s.AttachChannel(con.channel("lcd"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = s.Calibrate(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1.0, s.Slope())
	assert.Equal(t, 0.0, s.Intercept())
}

func TestCalibrate_NoChannel(t *testing.T) {
	s, err := NewCustom(0, customProfile(scripted(1), 5, 7))
	require.NoError(t, err)

	assert.ErrorIs(t, s.Calibrate(context.Background()), channel.ErrNoChannel)
}

func TestCalibrate_ControlChannel(t *testing.T) {
	s, err := NewCustom(0, customProfile(scripted(1, 2), 5, 7), fastOptions(WithControlChannel(1))...)
	require.NoError(t, err)

	first := &console{hold: true}
	second := &console{}
	_, err = s.AttachChannel(first.channel("first"))
	require.NoError(t, err)
	_, err = s.AttachChannel(second.channel("second"))
	require.NoError(t, err)

	require.NoError(t, s.Calibrate(context.Background()))
	assert.Empty(t, first.lines)
	assert.NotEmpty(t, second.lines)
}

func TestCalibrate_TransportFailure(t *testing.T) {
	rec := &fakeRecorder{}
	s, err := NewCustom(0, customProfile(scripted(1, 2), 5, 7), fastOptions(WithRecorder(rec))...)
	require.NoError(t, err)

	broken := channel.NewLCDKeypad("broken",
		func() (byte, bool, error) { return 0, false, errors.New("keypad gone") },
		func(string) error { return nil },
	)
	_, err = s.AttachChannel(broken)
	require.NoError(t, err)

	err = s.Calibrate(context.Background())
	var terr *channel.TransportError
	assert.ErrorAs(t, err, &terr)
	assert.Equal(t, 1.0, s.Slope())
	assert.Equal(t, 1, rec.channelErrors)
	require.Len(t, rec.calibrations, 1)
	assert.Error(t, rec.calibrations[0])
}

func TestCalibrate_PrintFailureCounted(t *testing.T) {
	rec := &fakeRecorder{}
	s, err := NewCustom(0, customProfile(scripted(1, 2), 5, 7), fastOptions(WithRecorder(rec))...)
	require.NoError(t, err)

	mute := channel.NewLCDKeypad("mute",
		func() (byte, bool, error) { return 'c', true, nil },
		func(string) error { return errors.New("lcd unplugged") },
	)
	_, err = s.AttachChannel(mute)
	require.NoError(t, err)

	err = s.Calibrate(context.Background())
	assert.ErrorContains(t, err, "lcd unplugged")
	assert.Equal(t, 1, rec.channelErrors)
}

func TestCalibrateWith(t *testing.T) {
	s, err := NewCustom(0, customProfile(scripted(0), 5, 7, 9))
	require.NoError(t, err)

	require.NoError(t, s.CalibrateWith(context.Background(), []float64{1, 2, 3}))
	assert.InDelta(t, 2, s.Slope(), 1e-9)
	assert.InDelta(t, 3, s.Intercept(), 1e-9)

	err = s.CalibrateWith(context.Background(), []float64{1, 2})
	assert.ErrorIs(t, err, ErrReadingCount)

	err = s.CalibrateWith(context.Background(), []float64{4, 4, 4})
	assert.ErrorIs(t, err, calibration.ErrDegenerate)
	assert.InDelta(t, 2, s.Slope(), 1e-9)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.CalibrateWith(ctx, []float64{1, 2, 3}), context.Canceled)
}

func TestCalibrate_CancelledWhileKeysKeepArriving(t *testing.T) {
	s, err := NewCustom(0, customProfile(scripted(1), 5, 7), WithPollInterval(time.Nanosecond), WithDebounce(0))
	require.NoError(t, err)

	stuck := channel.NewLCDKeypad("stuck",
		func() (byte, bool, error) { return 'x', true, nil },
		func(string) error { return nil },
	)
	_, err = s.AttachChannel(stuck)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Calibrate(ctx) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(time.Second):
		t.Fatal("calibration ignored cancellation")
	}
	assert.Equal(t, 1.0, s.Slope())
}
