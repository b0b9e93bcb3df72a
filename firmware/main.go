//go:build tinygo

//go:generate tinygo flash -target=xiao

package main

import (
	"machine"
	"time"
)

var (
	adcs [len(analogPins)]machine.ADC
	uart = machine.UART0

	// Serial buffer for reading request lines
	serialBuffer [LINE_BUFFER]byte
	serialPos    int
)

func main() {
	adcConfig := machine.ADCConfig{
		Reference:  ADC_REFERENCE_MV,
		Resolution: ADC_RESOLUTION,
	}
	for i, pin := range analogPins {
		pin.Configure(machine.PinConfig{Mode: machine.PinInput})
		adcs[i] = machine.ADC{Pin: pin}
		adcs[i].Configure(adcConfig)
	}
	for _, pin := range digitalPins {
		pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	}

	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	for {
		processSerial()
		time.Sleep(100 * time.Microsecond)
	}
}

// processSerial collects request lines and answers complete ones.
func processSerial() {
	for uart.Buffered() > 0 {
		data, err := uart.ReadByte()
		if err != nil {
			break
		}

		if data == '\n' || data == '\r' {
			if serialPos > 0 {
				handleRequest(serialBuffer[:serialPos])
			}
			serialPos = 0
			continue
		}

		if data == ' ' || data == '\t' {
			continue
		}

		if serialPos < len(serialBuffer) {
			serialBuffer[serialPos] = data
			serialPos++
		} else {
			// Overlong line; drop it
			serialPos = 0
		}
	}
}

// handleRequest answers one request.
// Requests: A<pin>,<n>  D<pin>  H<pin>
// Replies:  A<pin>,<avg>  D<pin>,<0|1>  E<pin>,<message>
func handleRequest(line []byte) {
	kind := line[0]
	pin, rest := parseUint(line[1:])
	if pin < 0 {
		replyError(0, "bad pin")
		return
	}

	switch kind {
	case 'A':
		if pin >= len(adcs) {
			replyError(pin, "no such pin")
			return
		}
		n := 1
		if len(rest) > 1 && rest[0] == ',' {
			n, _ = parseUint(rest[1:])
		}
		if n < 1 {
			n = 1
		}
		if n > MAX_SAMPLES {
			n = MAX_SAMPLES
		}
		replyAnalog(pin, averageADC(pin, n))

	case 'D':
		if pin >= len(digitalPins) {
			replyError(pin, "no such pin")
			return
		}
		print("D", pin, ",")
		if digitalPins[pin].Get() {
			print("1")
		} else {
			print("0")
		}
		print("\n")

	case 'H':
		replyError(pin, "no climate sensor")

	default:
		replyError(pin, "unknown request")
	}
}

// averageADC returns the mean of n reads scaled by 100.
func averageADC(pin, n int) uint32 {
	var sum uint32
	for i := 0; i < n; i++ {
		// machine.ADC.Get is left aligned to 16 bits
		sum += uint32(adcs[pin].Get() >> (16 - ADC_RESOLUTION))
		if i < n-1 {
			time.Sleep(SAMPLE_INTERVAL_US * time.Microsecond)
		}
	}
	return sum * 100 / uint32(n)
}

// replyAnalog prints "A<pin>,<int>.<frac>" from a value scaled by 100.
func replyAnalog(pin int, scaled uint32) {
	frac := scaled % 100
	print("A", pin, ",", scaled/100, ".")
	if frac < 10 {
		print("0")
	}
	print(frac, "\n")
}

func replyError(pin int, msg string) {
	print("E", pin, ",", msg, "\n")
}

// parseUint parses leading decimal digits. It returns -1 when there are none.
func parseUint(b []byte) (int, []byte) {
	v, i := 0, 0
	for ; i < len(b) && b[i] >= '0' && b[i] <= '9'; i++ {
		v = v*10 + int(b[i]-'0')
	}
	if i == 0 {
		return -1, b
	}
	return v, b[i:]
}
