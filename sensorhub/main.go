package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/itohio/sensorkit/pkg/channel"
	"github.com/itohio/sensorkit/pkg/config"
	"github.com/itohio/sensorkit/pkg/logging"
	"github.com/itohio/sensorkit/pkg/metrics"
	"github.com/itohio/sensorkit/pkg/sensor"
)

func main() {
	var (
		configFlag      = pflag.StringP("config", "c", "sensorhub.yaml", "Configuration file path")
		logLevelFlag    = pflag.String("log-level", "", "Log level override (trace, debug, info, warn, error)")
		mockFlag        = pflag.Bool("mock", false, "Use simulated hardware instead of the configured backend")
		calibrateFlag   = pflag.Int("calibrate", -1, "Interactively calibrate the sensor with this index and exit")
		onceFlag        = pflag.Bool("once", false, "Report one reading per sensor and exit")
		listPortsFlag   = pflag.Bool("list-ports", false, "List serial ports and exit")
		metricsAddrFlag = pflag.String("metrics-addr", "", "Prometheus listen address override (e.g. :9100)")
	)
	pflag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *logLevelFlag != "" {
		cfg.LogLevel = *logLevelFlag
	}
	if *mockFlag {
		cfg.Hardware.Backend = config.BackendMock
	}
	if *metricsAddrFlag != "" {
		cfg.Metrics.Addr = *metricsAddrFlag
	}

	logging.Init(logging.ParseLevel(cfg.LogLevel), nil)

	if *listPortsFlag {
		if err := listPorts(); err != nil {
			log.Fatal().Err(err).Msg("Failed to list ports")
		}
		return
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *calibrateFlag, *onceFlag); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("Sensor hub failed")
	}
}

func run(ctx context.Context, cfg *config.Config, calibrate int, once bool) error {
	var cl closers
	defer func() {
		if err := cl.Close(); err != nil {
			log.Warn().Err(err).Msg("Shutdown")
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	rec, err := metrics.NewRecorder(reg)
	if err != nil {
		return err
	}
	if cfg.Metrics.Addr != "" {
		cl.add(serveMetrics(cfg.Metrics.Addr, reg))
	}

	hw, err := openHardware(cfg.Hardware, &cl)
	if err != nil {
		return err
	}
	sensors, err := buildSensors(cfg, hw, rec)
	if err != nil {
		return err
	}
	channels, err := openChannels(cfg.Channels, &cl)
	if err != nil {
		return err
	}

	if calibrate >= 0 {
		return runCalibration(ctx, sensors, channels, calibrate)
	}

	for _, s := range sensors {
		for _, c := range channels {
			if _, err := s.AttachChannel(c); err != nil {
				return fmt.Errorf("sensor %s: %w", s.Label(), err)
			}
		}
	}

	if once {
		reportAll(sensors)
		return nil
	}
	return reportLoop(ctx, sensors, cfg.ReportInterval)
}

// reportLoop reports every sensor on each tick until ctx is done.
func reportLoop(ctx context.Context, sensors []*sensor.Sensor, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Int("sensors", len(sensors)).Msg("Reporting started")
	for {
		reportAll(sensors)
		select {
		case <-ctx.Done():
			log.Info().Msg("Reporting stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func reportAll(sensors []*sensor.Sensor) {
	for _, s := range sensors {
		v, err := s.Report()
		if err != nil {
			log.Warn().Err(err).Str("sensor", s.Label()).Msg("Report failed")
			continue
		}
		log.Debug().Str("sensor", s.Label()).Float64("value", v).Str("unit", s.Unit()).Msg("Reading")
	}
}

// runCalibration walks the operator through a stream test on every channel and
// the multi-point calibration of one sensor.
func runCalibration(ctx context.Context, sensors []*sensor.Sensor, channels []*channel.Channel, idx int) error {
	if idx >= len(sensors) {
		return fmt.Errorf("no sensor with index %d, have %d", idx, len(sensors))
	}
	s := sensors[idx]

	for _, c := range channels {
		if _, err := s.AddChannel(ctx, c); err != nil {
			log.Warn().Err(err).Str("channel", c.Name()).Msg("Channel failed the stream test")
		}
	}
	if len(s.Channels()) == 0 {
		return errors.New("no working channel for calibration")
	}

	if err := s.Calibrate(ctx); err != nil {
		return err
	}

	fmt.Printf("sensors[%d].calibration:\n  slope: %g\n  intercept: %g\n", idx, s.Slope(), s.Intercept())
	return nil
}

func listPorts() error {
	ports, err := channel.Ports()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Println(p.Name)
	}
	return nil
}

// serveMetrics starts the Prometheus endpoint and returns its shutdown func.
func serveMetrics(addr string, reg *prometheus.Registry) func() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info().Str("addr", addr).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
