package channel

import (
	"io"
	"os"
)

type duplex struct {
	io.Reader
	io.Writer
}

// Stdio returns a transport reading from stdin and writing to stdout.
func Stdio() io.ReadWriter {
	return Duplex(os.Stdin, os.Stdout)
}

// Duplex joins separate input and output streams into one transport.
func Duplex(r io.Reader, w io.Writer) io.ReadWriter {
	return duplex{Reader: r, Writer: w}
}

// NewLCDKeypad builds a channel for a character display plus keypad pair that
// has no byte stream of its own.
func NewLCDKeypad(name string, keypad ReadFunc, lcd PrintFunc) *Channel {
	return New(name, nil, WithReadFunc(keypad), WithPrintFunc(lcd))
}
