package hal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the UART rate used by the bridge firmware.
	DefaultBaudRate = 115200
	// DefaultTimeout bounds a single request/reply round trip.
	DefaultTimeout = 2 * time.Second

	replyBufferSize = 8
)

// Reply kinds of the bridge line protocol.
const (
	KindAnalog  = 'A'
	KindDigital = 'D'
	KindClimate = 'H'
	KindError   = 'E'
)

// Averager is implemented by backends that can average several analog samples
// close to the hardware instead of one round trip per sample.
type Averager interface {
	ReadAnalogAverage(pin, samples int) (float64, error)
}

var _ Averager = (*Remote)(nil)

// Reply is one parsed line received from the bridge firmware.
type Reply struct {
	Kind   byte
	Pin    int
	Value  float64
	Value2 float64
	Err    string
}

// Remote talks to the MCU bridge firmware over a serial link.
//
// Requests:  A<pin>,<n>  D<pin>  H<pin>
// Replies:   A<pin>,<avg>  D<pin>,<0|1>  H<pin>,<humidity>,<temperature>  E<pin>,<message>
type Remote struct {
	port     string
	baudRate int
	timeout  time.Duration

	conn      io.ReadWriteCloser
	replies   chan Reply
	reqMu     sync.Mutex
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	connected bool
}

// NewRemote creates a bridge client for the given serial port.
func NewRemote(port string, baudRate int, timeout time.Duration) *Remote {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Remote{
		port:     port,
		baudRate: baudRate,
		timeout:  timeout,
	}
}

// Connect opens the serial port and starts reading replies.
func (r *Remote) Connect() error {
	port, err := serial.Open(r.port, &serial.Mode{BaudRate: r.baudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", r.port, err)
	}
	if err := r.attach(port); err != nil {
		port.Close()
		return err
	}
	return nil
}

// attach binds an already open link; Connect and tests go through here.
func (r *Remote) attach(conn io.ReadWriteCloser) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.connected {
		return fmt.Errorf("already connected")
	}

	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.conn = conn
	r.replies = make(chan Reply, replyBufferSize)
	r.done = make(chan struct{})
	r.connected = true

	go r.readReplies(r.ctx, conn, r.replies, r.done)
	return nil
}

// Close stops the reader and closes the port.
func (r *Remote) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.connected {
		return nil
	}
	r.cancel()
	r.connected = false

	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			return fmt.Errorf("close serial port: %w", err)
		}
		r.conn = nil
	}
	return nil
}

// IsConnected reports whether the link is open.
func (r *Remote) IsConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connected
}

// ReadAnalog requests a single analog sample.
func (r *Remote) ReadAnalog(pin int) (float64, error) {
	return r.ReadAnalogAverage(pin, 1)
}

// ReadAnalogAverage asks the firmware to average samples readings of pin.
func (r *Remote) ReadAnalogAverage(pin, samples int) (float64, error) {
	if samples < 1 {
		samples = 1
	}
	rep, err := r.request(KindAnalog, pin, fmt.Sprintf("A%d,%d\n", pin, samples))
	if err != nil {
		return 0, err
	}
	return rep.Value, nil
}

// ReadDigital requests the logic level of pin.
func (r *Remote) ReadDigital(pin int) (bool, error) {
	rep, err := r.request(KindDigital, pin, fmt.Sprintf("D%d\n", pin))
	if err != nil {
		return false, err
	}
	return rep.Value != 0, nil
}

// ReadClimate requests humidity and temperature from the driver on pin.
func (r *Remote) ReadClimate(pin int) (float64, float64, error) {
	rep, err := r.request(KindClimate, pin, fmt.Sprintf("H%d\n", pin))
	if err != nil {
		return 0, 0, err
	}
	return rep.Value, rep.Value2, nil
}

func (r *Remote) request(kind byte, pin int, cmd string) (Reply, error) {
	r.reqMu.Lock()
	defer r.reqMu.Unlock()

	r.mu.RLock()
	connected, conn, replies, done := r.connected, r.conn, r.replies, r.done
	r.mu.RUnlock()
	if !connected {
		return Reply{}, ErrNotConnected
	}

	// Drop replies left over from a request that timed out.
	for drained := false; !drained; {
		select {
		case <-replies:
		default:
			drained = true
		}
	}

	if _, err := io.WriteString(conn, cmd); err != nil {
		return Reply{}, fmt.Errorf("failed to send request: %w", err)
	}

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	for {
		select {
		case rep := <-replies:
			if rep.Pin != pin {
				log.Debug().Int("pin", rep.Pin).Int("want", pin).Msg("Discarding reply for another pin")
				continue
			}
			if rep.Kind == KindError {
				return Reply{}, fmt.Errorf("bridge error on pin %d: %s", pin, rep.Err)
			}
			if rep.Kind != kind {
				continue
			}
			return rep, nil
		case <-done:
			return Reply{}, ErrNotConnected
		case <-timer.C:
			return Reply{}, fmt.Errorf("%c%d: %w", kind, pin, ErrTimeout)
		}
	}
}

// readReplies reads lines from the link and parses them into replies.
func (r *Remote) readReplies(ctx context.Context, conn io.Reader, out chan<- Reply, done chan struct{}) {
	defer close(done)

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		rep, err := parseLine(line)
		if err != nil {
			log.Warn().Err(err).Str("line", line).Msg("Failed to parse bridge reply")
			continue
		}

		select {
		case out <- rep:
		case <-ctx.Done():
			return
		default:
			log.Warn().Msg("Bridge reply buffer full, dropping reply")
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		select {
		case <-ctx.Done():
		default:
			log.Error().Err(err).Msg("Error reading from serial port")
		}
	}
}

// parseLine parses one reply line.
// Format: <kind><pin>,<value>[,<value2>]  or  E<pin>,<message>
// Example: A3,512.25
func parseLine(line string) (Reply, error) {
	if len(line) < 2 {
		return Reply{}, fmt.Errorf("invalid line: too short")
	}
	kind := line[0]
	parts := strings.Split(line[1:], ",")

	pin, err := strconv.Atoi(parts[0])
	if err != nil {
		return Reply{}, fmt.Errorf("invalid pin: %w", err)
	}
	if pin < 0 {
		return Reply{}, fmt.Errorf("pin out of range: %d", pin)
	}

	rep := Reply{Kind: kind, Pin: pin}
	switch kind {
	case KindAnalog:
		if len(parts) != 2 {
			return Reply{}, fmt.Errorf("invalid analog reply: expected 2 fields, got %d", len(parts))
		}
		if rep.Value, err = strconv.ParseFloat(parts[1], 64); err != nil {
			return Reply{}, fmt.Errorf("invalid analog value: %w", err)
		}
	case KindDigital:
		if len(parts) != 2 {
			return Reply{}, fmt.Errorf("invalid digital reply: expected 2 fields, got %d", len(parts))
		}
		switch parts[1] {
		case "0":
		case "1":
			rep.Value = 1
		default:
			return Reply{}, fmt.Errorf("invalid digital level %q", parts[1])
		}
	case KindClimate:
		if len(parts) != 3 {
			return Reply{}, fmt.Errorf("invalid climate reply: expected 3 fields, got %d", len(parts))
		}
		if rep.Value, err = strconv.ParseFloat(parts[1], 64); err != nil {
			return Reply{}, fmt.Errorf("invalid humidity: %w", err)
		}
		if rep.Value2, err = strconv.ParseFloat(parts[2], 64); err != nil {
			return Reply{}, fmt.Errorf("invalid temperature: %w", err)
		}
	case KindError:
		if len(parts) < 2 {
			return Reply{}, fmt.Errorf("invalid error reply: missing message")
		}
		rep.Err = strings.Join(parts[1:], ",")
	default:
		return Reply{}, fmt.Errorf("unknown reply kind %q", kind)
	}
	return rep, nil
}
