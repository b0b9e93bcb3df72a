// Package metrics exports sensor readings and events to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sensorkit"

// Recorder implements sensor.Recorder on top of Prometheus collectors.
// A nil *Recorder ignores every event.
type Recorder struct {
	reading       *prometheus.GaugeVec
	raw           *prometheus.GaugeVec
	calibrations  *prometheus.CounterVec
	channelErrors *prometheus.CounterVec
}

// NewRecorder creates the collectors and registers them with reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		reading: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reading",
			Help:      "Last converted sensor reading.",
		}, []string{"sensor", "unit"}),
		raw: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "raw_reading",
			Help:      "Last raw sensor value before calibration.",
		}, []string{"sensor"}),
		calibrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calibrations_total",
			Help:      "Calibration attempts by result.",
		}, []string{"sensor", "result"}),
		channelErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_errors_total",
			Help:      "Failed channel reads and writes.",
		}, []string{"sensor"}),
	}

	for _, c := range []prometheus.Collector{r.reading, r.raw, r.calibrations, r.channelErrors} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ObserveReading sets the converted and raw reading gauges of a sensor.
func (r *Recorder) ObserveReading(sensor, unit string, raw, value float64) {
	if r == nil {
		return
	}
	r.reading.WithLabelValues(sensor, unit).Set(value)
	r.raw.WithLabelValues(sensor).Set(raw)
}

// ObserveCalibration counts a calibration attempt as ok or failed.
func (r *Recorder) ObserveCalibration(sensor string, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	r.calibrations.WithLabelValues(sensor, result).Inc()
}

// ObserveChannelError counts a failed channel read or write.
func (r *Recorder) ObserveChannelError(sensor string) {
	if r == nil {
		return
	}
	r.channelErrors.WithLabelValues(sensor).Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
