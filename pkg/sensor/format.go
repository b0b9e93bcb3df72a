package sensor

import (
	"strconv"
	"unicode/utf8"
)

const (
	// LabelWidth is the maximum number of label runes shown in a reading.
	LabelWidth = 20
	// MaxMessageLen bounds a formatted reading in bytes.
	MaxMessageLen = 50
)

// formatReading never cuts the value: a number too wide for fixed notation is
// written in exponent form, and the label gives up bytes before the number does.
func formatReading(label, unit string, value float64, decimals int) string {
	const sep = ": "

	label = truncateRunes(label, LabelWidth)
	num := strconv.FormatFloat(value, 'f', decimals, 64)
	if len(label)+len(sep)+len(num) > MaxMessageLen {
		if e := strconv.FormatFloat(value, 'e', decimals, 64); len(e) < len(num) {
			num = e
		}
	}
	if room := MaxMessageLen - len(sep) - len(num); len(label) > room {
		label = truncateBytes(label, max(room, 0))
	}

	msg := label + sep + num
	if room := MaxMessageLen - len(msg); room > 0 {
		msg += truncateBytes(unit, room)
	}
	return msg
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
