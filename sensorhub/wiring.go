package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/itohio/sensorkit/pkg/channel"
	"github.com/itohio/sensorkit/pkg/config"
	"github.com/itohio/sensorkit/pkg/hal"
	"github.com/itohio/sensorkit/pkg/profile"
	"github.com/itohio/sensorkit/pkg/sensor"
)

// closers releases resources in reverse order of acquisition.
type closers []func() error

func (c *closers) add(fn func() error) {
	*c = append(*c, fn)
}

func (c closers) Close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// openHardware creates the configured acquisition backend.
func openHardware(cfg config.HardwareConfig, cl *closers) (profile.Hardware, error) {
	switch cfg.Backend {
	case config.BackendMock:
		mock := hal.NewMock(&hal.MockConfig{
			Base:        cfg.Mock.Base,
			Noise:       cfg.Mock.Noise,
			Threshold:   cfg.Mock.Threshold,
			Humidity:    cfg.Mock.Humidity,
			Temperature: cfg.Mock.Temperature,
		})
		for pin, level := range cfg.Mock.Levels {
			mock.SetLevel(pin, level)
		}
		log.Info().Msg("Using simulated hardware")
		return profile.Hardware{Analog: mock, Digital: mock, Climate: mock}, nil

	case config.BackendADS1115:
		adc, err := hal.NewADS1115(cfg.ADS1115.Bus, cfg.ADS1115.Address, cfg.ADS1115.SampleRate)
		if err != nil {
			return profile.Hardware{}, err
		}
		cl.add(adc.Close)
		log.Info().Str("bus", cfg.ADS1115.Bus).Uint16("address", cfg.ADS1115.Address).Msg("ADS1115 ready")
		return profile.Hardware{Analog: adc}, nil

	case config.BackendRemote:
		remote := hal.NewRemote(cfg.Remote.Port, cfg.Remote.BaudRate, cfg.Remote.Timeout)
		if err := remote.Connect(); err != nil {
			return profile.Hardware{}, err
		}
		cl.add(remote.Close)
		log.Info().Str("port", cfg.Remote.Port).Msg("Connected to sensor bridge")
		return profile.Hardware{Analog: remote, Digital: remote, Climate: remote}, nil
	}
	return profile.Hardware{}, fmt.Errorf("unknown hardware backend %q", cfg.Backend)
}

// openChannels opens every configured reporting channel.
func openChannels(cfgs []config.ChannelConfig, cl *closers) ([]*channel.Channel, error) {
	out := make([]*channel.Channel, 0, len(cfgs))
	for _, cc := range cfgs {
		c, err := openChannel(cc, cl)
		if err != nil {
			return nil, fmt.Errorf("channel %s: %w", cc.Name, err)
		}
		cl.add(c.Close)
		out = append(out, c)
		log.Debug().Str("channel", cc.Name).Str("type", cc.Type).Msg("Channel open")
	}
	return out, nil
}

func openChannel(cc config.ChannelConfig, cl *closers) (*channel.Channel, error) {
	switch cc.Type {
	case config.ChannelStdio:
		return channel.New(cc.Name, channel.Stdio()), nil

	case config.ChannelSerial:
		c, closeFn, err := channel.NewSerial(cc.Port, cc.BaudRate)
		if err != nil {
			return nil, err
		}
		cl.add(closeFn)
		return c, nil

	case config.ChannelMQTT:
		tr, err := channel.NewMQTT(channel.MQTTConfig{
			Server:       cc.MQTT.Server,
			ClientID:     cc.MQTT.ClientID,
			Username:     cc.MQTT.Username,
			Password:     cc.MQTT.Password,
			StateTopic:   cc.MQTT.StateTopic,
			CommandTopic: cc.MQTT.CommandTopic,
			QoS:          cc.MQTT.QoS,
		})
		if err != nil {
			return nil, err
		}
		cl.add(tr.Close)
		return channel.New(cc.Name, tr), nil
	}
	return nil, fmt.Errorf("unknown channel type %q", cc.Type)
}

// buildSensors creates the configured sensors and applies calibration overrides.
func buildSensors(cfg *config.Config, hw profile.Hardware, rec sensor.Recorder) ([]*sensor.Sensor, error) {
	reg := profile.NewRegistry(hw)
	opts := []sensor.Option{
		sensor.WithPollInterval(cfg.Calibration.PollInterval),
		sensor.WithDebounce(cfg.Calibration.Debounce),
		sensor.WithRecorder(rec),
	}

	out := make([]*sensor.Sensor, 0, len(cfg.Sensors))
	for i, sc := range cfg.Sensors {
		sopts := append(opts[:len(opts):len(opts)], sensor.WithLabel(sc.Label))

		var s *sensor.Sensor
		if sc.Profile != nil {
			p, err := customProfile(sc.Profile, hw)
			if err != nil {
				return nil, fmt.Errorf("sensor %d: %w", i, err)
			}
			if s, err = sensor.NewCustom(sc.Pin, p, sopts...); err != nil {
				return nil, fmt.Errorf("sensor %d: %w", i, err)
			}
		} else {
			t := profile.ParseType(sc.Type)
			if t.String() != strings.ToLower(strings.TrimSpace(sc.Type)) {
				log.Warn().Str("type", sc.Type).Msg("Unknown sensor type, using EC meter")
			}
			s = sensor.New(sc.Pin, t, reg, sopts...)
		}

		if ov := sc.Calibration; ov != nil {
			var vopts []sensor.ValueOption
			if ov.Slope != nil {
				vopts = append(vopts, sensor.WithSlope(*ov.Slope))
			}
			if ov.Intercept != nil {
				vopts = append(vopts, sensor.WithIntercept(*ov.Intercept))
			}
			s.SetValues(ov.Points, vopts...)
		}

		log.Info().
			Str("sensor", s.Label()).
			Str("type", s.Name()).
			Int("pin", s.Pin()).
			Float64("slope", s.Slope()).
			Float64("intercept", s.Intercept()).
			Msg("Sensor ready")
		out = append(out, s)
	}
	return out, nil
}

func customProfile(pc *config.ProfileConfig, hw profile.Hardware) (profile.Profile, error) {
	reader, err := profile.ReaderFor(pc.Reader, hw, pc.ReadDelay)
	if err != nil {
		return profile.Profile{}, err
	}
	return profile.Profile{
		Name:      pc.Name,
		Unit:      pc.Unit,
		Slope:     pc.Slope,
		Intercept: pc.Intercept,
		Samples:   pc.Samples,
		ReadDelay: pc.ReadDelay,
		Points:    pc.Points,
		Decimals:  pc.Decimals,
		Reader:    reader,
	}, nil
}
