package sensor

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/itohio/sensorkit/pkg/channel"
)

// AddChannel registers c in the first free slot and runs the stream test on
// it. A channel that fails the test is removed again.
func (s *Sensor) AddChannel(ctx context.Context, c *channel.Channel) (int, error) {
	idx, err := s.channels.Add(c)
	if err != nil {
		return -1, err
	}
	if err := s.StreamTest(ctx, idx); err != nil {
		_ = s.channels.Remove(idx)
		return -1, err
	}
	return idx, nil
}

// AttachChannel registers c without the interactive stream test.
func (s *Sensor) AttachChannel(c *channel.Channel) (int, error) {
	return s.channels.Add(c)
}

// RemoveChannel frees slot i. The channel itself is not closed.
func (s *Sensor) RemoveChannel(i int) error {
	return s.channels.Remove(i)
}

// Channels returns the occupied slot indices.
func (s *Sensor) Channels() []int {
	return s.channels.Indices()
}

// StreamTest echoes every character received on channel i back to it until the
// operator sends 'c' or 'C'.
func (s *Sensor) StreamTest(ctx context.Context, i int) error {
	ch, err := s.channels.Get(i)
	if err != nil {
		return err
	}

	log.Debug().Str("sensor", s.label).Str("channel", ch.Name()).Msg("Stream test started")
	if err := ch.Println("Stream test: type to echo, c to continue"); err != nil {
		return s.channelError(err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("stream test %s: interrupted: %w", ch.Name(), err)
		}

		b, ok, err := ch.Poll()
		if err != nil {
			return s.channelError(err)
		}
		if ok {
			if b == 'c' || b == 'C' {
				break
			}
			if err := ch.Print(string(b)); err != nil {
				return s.channelError(err)
			}
			continue
		}
		if err := sleep(ctx, s.pollInterval); err != nil {
			return fmt.Errorf("stream test %s: %w", ch.Name(), err)
		}
	}

	log.Debug().Str("sensor", s.label).Str("channel", ch.Name()).Msg("Stream test done")
	return s.channelError(ch.Println(""))
}

// PrintReading takes a fresh reading and prints it on channel i.
func (s *Sensor) PrintReading(i int) error {
	ch, err := s.channels.Get(i)
	if err != nil {
		return err
	}
	text, err := s.FormattedReading()
	if err != nil {
		return err
	}
	return s.channelError(ch.Println(text))
}

// PrintAll takes one fresh reading and broadcasts it to every channel.
func (s *Sensor) PrintAll() error {
	text, err := s.FormattedReading()
	if err != nil {
		return err
	}
	return s.channelError(s.channels.Broadcast(text))
}

// Report collects one reading into the history and broadcasts it to every
// channel. The reading is returned even when a channel fails.
func (s *Sensor) Report() (float64, error) {
	v, err := s.CollectInput()
	if err != nil {
		return 0, err
	}
	return v, s.channelError(s.channels.Broadcast(s.Format(v)))
}

func (s *Sensor) channelError(err error) error {
	if err != nil {
		s.recorder.ObserveChannelError(s.label)
		log.Warn().Err(err).Str("sensor", s.label).Msg("Channel error")
	}
	return err
}
