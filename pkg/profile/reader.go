package profile

import (
	"fmt"
	"time"

	"github.com/itohio/sensorkit/pkg/hal"
)

// Reader acquires one raw reading from a pin, averaging samples physical reads
// where the modality allows it.
type Reader interface {
	Read(pin, samples int) (float64, error)
}

// ReaderFunc adapts a plain function to Reader.
type ReaderFunc func(pin, samples int) (float64, error)

// Read calls f(pin, samples).
func (f ReaderFunc) Read(pin, samples int) (float64, error) {
	return f(pin, samples)
}

// AnalogAverage returns the mean of samples analog reads, spaced by spacing.
// Backends that average on the device side are asked for the whole batch at once
// when no spacing is requested.
func AnalogAverage(adc hal.ADC, spacing time.Duration) Reader {
	return ReaderFunc(func(pin, samples int) (float64, error) {
		if samples < 1 {
			samples = 1
		}
		if av, ok := adc.(hal.Averager); ok && spacing == 0 {
			v, err := av.ReadAnalogAverage(pin, samples)
			if err != nil {
				return 0, fmt.Errorf("analog read pin %d: %w", pin, err)
			}
			return v, nil
		}

		var sum float64
		for i := 0; i < samples; i++ {
			if i > 0 && spacing > 0 {
				time.Sleep(spacing)
			}
			v, err := adc.ReadAnalog(pin)
			if err != nil {
				return 0, fmt.Errorf("analog read pin %d: %w", pin, err)
			}
			sum += v
		}
		return sum / float64(samples), nil
	})
}

// DigitalSingleShot reads the pin level once and reports 1 or 0.
func DigitalSingleShot(d hal.Digital) Reader {
	return ReaderFunc(func(pin, _ int) (float64, error) {
		high, err := d.ReadDigital(pin)
		if err != nil {
			return 0, fmt.Errorf("digital read pin %d: %w", pin, err)
		}
		if high {
			return 1, nil
		}
		return 0, nil
	})
}

// Humidity reads relative humidity from a climate driver.
func Humidity(c hal.Climate) Reader {
	return ReaderFunc(func(pin, _ int) (float64, error) {
		h, _, err := c.ReadClimate(pin)
		if err != nil {
			return 0, fmt.Errorf("humidity read pin %d: %w", pin, err)
		}
		return h, nil
	})
}

// Temperature reads temperature from a climate driver.
func Temperature(c hal.Climate) Reader {
	return ReaderFunc(func(pin, _ int) (float64, error) {
		_, t, err := c.ReadClimate(pin)
		if err != nil {
			return 0, fmt.Errorf("temperature read pin %d: %w", pin, err)
		}
		return t, nil
	})
}
