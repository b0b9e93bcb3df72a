package channel

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate is used when a serial channel does not specify one.
const DefaultBaudRate = 9600

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{Name: name, Description: name})
	}
	return result, nil
}

// OpenSerial opens a serial port for use as a channel transport. Hardware
// serial, USB CDC and Bluetooth SPP links all appear as serial ports.
func OpenSerial(name string, baudRate int) (serial.Port, error) {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	port, err := serial.Open(name, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	// A finite timeout lets the input pump notice Close.
	if err := port.SetReadTimeout(200 * time.Millisecond); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", name, err)
	}
	return port, nil
}

// NewSerial opens a serial port and wraps it in a channel. The returned
// closer releases the port.
func NewSerial(name string, baudRate int, opts ...Option) (*Channel, func() error, error) {
	port, err := OpenSerial(name, baudRate)
	if err != nil {
		return nil, nil, err
	}
	c := New(name, port, opts...)
	closer := func() error {
		c.Close()
		return port.Close()
	}
	return c, closer, nil
}
