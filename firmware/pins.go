//go:build tinygo

package main

import "machine"

const (
	// Sampling configuration
	SAMPLE_INTERVAL_US = 500 // Spacing between averaged ADC reads in microseconds
	MAX_SAMPLES        = 64  // Upper bound for a single averaging request
	LINE_BUFFER        = 16  // Longest accepted request line

	// ADC configuration
	ADC_REFERENCE_MV = 3300 // Reference voltage in millivolts (3.3V)
	ADC_RESOLUTION   = 12   // ADC resolution in bits (12-bit = 0-4095)

	// Serial configuration
	// Longest reply is "A10,4095.00\n" = 12 bytes; 115200 baud leaves ample headroom
	// for one reply per request.
	UART_BAUD_RATE = 115200
)

// Analog inputs by bridge pin index.
var analogPins = [...]machine.Pin{
	machine.A0,
	machine.A1,
	machine.A2,
	machine.A3,
}

// Digital inputs by bridge pin index.
var digitalPins = [...]machine.Pin{
	machine.D7,
	machine.D8,
	machine.D9,
	machine.D10,
}
