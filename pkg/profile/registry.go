package profile

import (
	"fmt"
	"strings"
	"time"

	"github.com/itohio/sensorkit/pkg/hal"
)

// Type enumerates the built-in sensor types.
type Type int

const (
	ECMeter Type = iota
	Hygrometer
	AirThermometer
	COSensor
	NOxSensor
	EtOHSensor
	VolumeMeter
	LightMeter
	LightRed
	LightBlue
	LightUV
	AnalogThermometer
	SoilMoisture
)

var typeNames = map[Type]string{
	ECMeter:           "ec_meter",
	Hygrometer:        "hygrometer",
	AirThermometer:    "air_thermometer",
	COSensor:          "co",
	NOxSensor:         "nox",
	EtOHSensor:        "etoh",
	VolumeMeter:       "volume",
	LightMeter:        "light",
	LightRed:          "light_red",
	LightBlue:         "light_blue",
	LightUV:           "light_uv",
	AnalogThermometer: "thermometer",
	SoilMoisture:      "soil_moisture",
}

// String returns the configuration token of the type.
func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// ParseType maps a configuration token to a Type. Unknown tokens resolve to
// ECMeter so that a sensor can always be constructed.
func ParseType(s string) Type {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range typeNames {
		if name == s {
			return t
		}
	}
	return ECMeter
}

// Hardware is the set of drivers the built-in reading strategies are bound to.
// Missing drivers make the affected sensor types fail on read, not on construction.
type Hardware struct {
	Analog  hal.ADC
	Digital hal.Digital
	Climate hal.Climate
}

// Registry maps sensor types to profiles. It is built once and never mutated.
type Registry struct {
	profiles map[Type]Profile
}

// NewRegistry builds the built-in profiles and binds their reading strategies to hw.
func NewRegistry(hw Hardware) *Registry {
	var analog, humidity Reader
	if hw.Analog != nil {
		analog = AnalogAverage(hw.Analog, 0)
	} else {
		analog = missingDriver("analog")
	}
	if hw.Climate != nil {
		humidity = Humidity(hw.Climate)
	} else {
		humidity = missingDriver("climate")
	}

	basic := func(name, unit string, slope, intercept float64, points ...float64) Profile {
		return Profile{
			Name:      name,
			Unit:      unit,
			Slope:     slope,
			Intercept: intercept,
			Samples:   10,
			ReadDelay: 100 * time.Millisecond,
			Points:    points,
			Decimals:  3,
			Reader:    analog,
		}
	}

	hygrometer := basic("Hygrometer", "%", 1, 0, 4, 7)
	hygrometer.Reader = humidity
	hygrometer.Samples = 1
	hygrometer.Decimals = 1

	return &Registry{profiles: map[Type]Profile{
		ECMeter:           basic("EC meter", "uS/cm", 1, 0, 400, 2000),
		Hygrometer:        hygrometer,
		AirThermometer:    basic("Air thermometer", "C", -0.0273, 19.655, 4, 7),
		COSensor:          basic("CO sensor", "ppm", 1, 0, 4, 7),
		NOxSensor:         basic("NOx sensor", "ppm", 1, 0, 4, 7),
		EtOHSensor:        basic("EtOH sensor", "ppm", 1, 0, 4, 7),
		VolumeMeter:       basic("Volume meter", "Db", -0.0273, 19.655, 4, 7),
		LightMeter:        basic("Lux meter", "lx", 1, 0, 4, 7),
		LightRed:          basic("Red light", "lx", 1, 0, 4, 7),
		LightBlue:         basic("Blue light", "lx", 1, 0, 4, 7),
		LightUV:           basic("UV light", "mW/cm2", 1, 0, 4, 7),
		AnalogThermometer: basic("Thermometer", "C", -0.0273, 19.655, 4, 7),
		SoilMoisture:      basic("Soil moisture", "%", 1, 0, 4, 7),
	}}
}

// Profile returns a copy of the profile for t, falling back to the EC meter
// profile for unknown types.
func (r *Registry) Profile(t Type) Profile {
	p, ok := r.profiles[t]
	if !ok {
		p = r.profiles[ECMeter]
	}
	return p.Clone()
}

// Types lists the registered types in enumeration order.
func (r *Registry) Types() []Type {
	out := make([]Type, 0, len(r.profiles))
	for t := ECMeter; t <= SoilMoisture; t++ {
		if _, ok := r.profiles[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

func missingDriver(kind string) Reader {
	return ReaderFunc(func(pin, _ int) (float64, error) {
		return 0, fmt.Errorf("pin %d: no %s driver configured", pin, kind)
	})
}

// Reader kinds accepted by ReaderFor.
const (
	ReaderAnalog      = "analog"
	ReaderDigital     = "digital"
	ReaderHumidity    = "humidity"
	ReaderTemperature = "temperature"
)

// ReaderFor builds a reading strategy by name for custom profiles.
func ReaderFor(kind string, hw Hardware, spacing time.Duration) (Reader, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", ReaderAnalog:
		if hw.Analog == nil {
			return nil, fmt.Errorf("reader %q: no analog driver configured", kind)
		}
		return AnalogAverage(hw.Analog, spacing), nil
	case ReaderDigital:
		if hw.Digital == nil {
			return nil, fmt.Errorf("reader %q: no digital driver configured", kind)
		}
		return DigitalSingleShot(hw.Digital), nil
	case ReaderHumidity:
		if hw.Climate == nil {
			return nil, fmt.Errorf("reader %q: no climate driver configured", kind)
		}
		return Humidity(hw.Climate), nil
	case ReaderTemperature:
		if hw.Climate == nil {
			return nil, fmt.Errorf("reader %q: no climate driver configured", kind)
		}
		return Temperature(hw.Climate), nil
	default:
		return nil, fmt.Errorf("unknown reader %q", kind)
	}
}
