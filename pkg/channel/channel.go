package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// DefaultQueueSize bounds the bytes buffered between the transport pump and Poll.
const DefaultQueueSize = 256

var (
	// ErrCapacity is returned by Table.Add when every slot is occupied.
	ErrCapacity = errors.New("channel table is full")
	// ErrNoChannel is returned when a slot is empty or out of range.
	ErrNoChannel = errors.New("no channel in slot")
)

// TransportError wraps a failure of the underlying stream.
type TransportError struct {
	Op      string // "read" or "write"
	Channel string
	Err     error
}

// Error implements error.
func (e *TransportError) Error() string {
	return fmt.Sprintf("channel %s: %s: %v", e.Channel, e.Op, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *TransportError) Unwrap() error { return e.Err }

// ReadFunc polls for one input character. ok is false when nothing is available yet.
type ReadFunc func() (b byte, ok bool, err error)

// PrintFunc writes text to a custom output such as a character LCD.
type PrintFunc func(text string) error

// Option configures a Channel.
type Option func(*Channel)

// WithReadFunc overrides how input characters are obtained.
func WithReadFunc(fn ReadFunc) Option {
	return func(c *Channel) { c.readFn = fn }
}

// WithPrintFunc overrides how text is written.
func WithPrintFunc(fn PrintFunc) Option {
	return func(c *Channel) { c.printFn = fn }
}

// WithQueueSize sets the input queue size for stream transports.
func WithQueueSize(n int) Option {
	return func(c *Channel) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// Channel is a text transport used for prompts, operator input and readings.
// It wraps a duplex stream and optional read/print overrides; when both
// overrides are set the stream may be nil.
type Channel struct {
	name      string
	transport io.ReadWriter
	readFn    ReadFunc
	printFn   PrintFunc
	queueSize int

	startOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	input     chan byte
	errs      chan error
	err       error
	writeMu   sync.Mutex
}

// New creates a channel over transport.
func New(name string, transport io.ReadWriter, opts ...Option) *Channel {
	c := &Channel{
		name:      name,
		transport: transport,
		queueSize: DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

// Name returns the channel name used in logs and errors.
func (c *Channel) Name() string {
	return c.name
}

// Poll returns one input character without blocking. ok is false when no input
// is available yet. Transport errors are reported once the queued input is drained.
func (c *Channel) Poll() (byte, bool, error) {
	if c.readFn != nil {
		b, ok, err := c.readFn()
		if err != nil {
			return 0, false, &TransportError{Op: "read", Channel: c.name, Err: err}
		}
		return b, ok, nil
	}
	if c.transport == nil {
		return 0, false, &TransportError{Op: "read", Channel: c.name, Err: errors.New("no transport")}
	}

	c.startOnce.Do(c.startPump)

	select {
	case b := <-c.input:
		return b, true, nil
	default:
	}

	if c.err == nil {
		select {
		case err := <-c.errs:
			c.err = err
		default:
			return 0, false, nil
		}
	}

	// The pump queues all bytes before reporting an error.
	select {
	case b := <-c.input:
		return b, true, nil
	default:
	}
	return 0, false, &TransportError{Op: "read", Channel: c.name, Err: c.err}
}

// Print writes text without a line terminator.
func (c *Channel) Print(text string) error {
	if c.printFn != nil {
		if err := c.printFn(text); err != nil {
			return &TransportError{Op: "write", Channel: c.name, Err: err}
		}
		return nil
	}
	if c.transport == nil {
		return &TransportError{Op: "write", Channel: c.name, Err: errors.New("no transport")}
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := io.WriteString(c.transport, text); err != nil {
		return &TransportError{Op: "write", Channel: c.name, Err: err}
	}
	return nil
}

// Println writes text followed by CRLF.
func (c *Channel) Println(text string) error {
	return c.Print(text + "\r\n")
}

// Printf formats and writes a line.
func (c *Channel) Printf(format string, args ...any) error {
	return c.Println(fmt.Sprintf(format, args...))
}

// Close stops the input pump. The transport itself is borrowed and left open.
func (c *Channel) Close() error {
	c.cancel()
	return nil
}

func (c *Channel) startPump() {
	c.input = make(chan byte, c.queueSize)
	c.errs = make(chan error, 1)
	go c.pump()
}

// pump copies transport input into the queue until the stream fails or the
// channel is closed.
func (c *Channel) pump() {
	buf := make([]byte, 64)
	for {
		n, err := c.transport.Read(buf)
		for i := 0; i < n; i++ {
			select {
			case c.input <- buf[i]:
			case <-c.ctx.Done():
				return
			}
		}
		if err != nil {
			select {
			case c.errs <- err:
			case <-c.ctx.Done():
			}
			return
		}
		select {
		case <-c.ctx.Done():
			return
		default:
		}
	}
}
