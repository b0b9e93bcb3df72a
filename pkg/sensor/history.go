package sensor

// MaxLastReadings is the number of readings kept in a sensor's history.
const MaxLastReadings = 20

// History is a fixed-size ring of the most recent readings. The zero value is
// ready to use.
type History struct {
	buf   [MaxLastReadings]float64
	next  int
	count int
}

// Push records v, dropping the oldest reading when full.
func (h *History) Push(v float64) {
	h.buf[h.next] = v
	h.next = (h.next + 1) % MaxLastReadings
	if h.count < MaxLastReadings {
		h.count++
	}
}

// Len returns the number of readings held.
func (h *History) Len() int {
	return h.count
}

// Values returns the readings oldest first.
func (h *History) Values() []float64 {
	out := make([]float64, 0, h.count)
	start := (h.next - h.count + MaxLastReadings) % MaxLastReadings
	for i := 0; i < h.count; i++ {
		out = append(out, h.buf[(start+i)%MaxLastReadings])
	}
	return out
}

// Last returns the newest reading.
func (h *History) Last() (float64, bool) {
	if h.count == 0 {
		return 0, false
	}
	return h.buf[(h.next-1+MaxLastReadings)%MaxLastReadings], true
}
