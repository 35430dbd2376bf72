// Command sensor-gateway polls the configured sensors and forwards every
// reading to a communicator, bound actuators and storage.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"github.com/sweeney/sensor-gateway/internal/builder"
	"github.com/sweeney/sensor-gateway/internal/config"
	"github.com/sweeney/sensor-gateway/internal/gateway"
	"github.com/sweeney/sensor-gateway/internal/metrics"
	"github.com/sweeney/sensor-gateway/internal/mqtt"
	"github.com/sweeney/sensor-gateway/internal/status"
	"github.com/sweeney/sensor-gateway/internal/web"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var version = "dev"

// envConfig supplies the default for --config.
const envConfig = "GATEWAY_CONFIG"

type options struct {
	configPath    string
	httpAddr      string
	logLevel      string
	logFormat     string
	printReadings bool
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := pflag.NewFlagSet("sensor-gateway", pflag.ContinueOnError)
	fs.StringVarP(&o.configPath, "config", "c", os.Getenv(envConfig), "Path to the YAML config (env "+envConfig+")")
	fs.StringVar(&o.httpAddr, "http", "", "HTTP status address, overrides http.addr (\"off\" disables)")
	fs.StringVar(&o.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	fs.StringVar(&o.logFormat, "log-format", "json", "Log format (json, console)")
	fs.BoolVar(&o.printReadings, "print-readings", false, "Read every sensor once, print the readings and exit")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.configPath == "" {
		return o, fmt.Errorf("--config or %s is required", envConfig)
	}
	return o, nil
}

func newLogger(level, format string, w io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	var enc zapcore.Encoder
	switch format {
	case "json":
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(encCfg)
	case "console":
		enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), lvl)), nil
}

func main() {
	o, err := parseFlags(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := newLogger(o.logLevel, o.logFormat, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer logger.Sync()
	logger.Info("starting up", zap.String("version", version), zap.String("config", o.configPath))

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go watchSignals(sigCh, cancel, os.Exit, logger)

	if err := run(ctx, o, logger, os.Stdout); err != nil {
		logger.Fatal("fatal", zap.Error(err))
	}
}

// watchSignals cancels with the first signal as cause. A second signal
// during shutdown exits immediately.
func watchSignals(sigCh <-chan os.Signal, cancel context.CancelCauseFunc, exit func(int), logger *zap.Logger) {
	s := <-sigCh
	logger.Info("received signal, shutting down", zap.Stringer("signal", s))
	cancel(signalCause{s})

	s = <-sigCh
	logger.Warn("received second signal, exiting without clean shutdown", zap.Stringer("signal", s))
	exit(1)
}

// signalCause is the cancellation cause recorded when a signal stops the process.
type signalCause struct{ sig os.Signal }

func (s signalCause) Error() string { return "signal: " + s.sig.String() }

// shutdownReason names why ctx ended, for the SHUTDOWN event.
func shutdownReason(ctx context.Context) string {
	var sc signalCause
	if errors.As(context.Cause(ctx), &sc) {
		switch sc.sig {
		case syscall.SIGINT:
			return "SIGINT"
		case syscall.SIGTERM:
			return "SIGTERM"
		}
		return "UNKNOWN"
	}
	return "CONTEXT_DONE"
}

func loadConfig(o options) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	config.Normalize(cfg)

	switch o.httpAddr {
	case "":
	case "off":
		cfg.HTTP.Addr = ""
	default:
		cfg.HTTP.Addr = o.httpAddr
	}
	return cfg, nil
}

func run(ctx context.Context, o options, logger *zap.Logger, stdout io.Writer) error {
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}

	devices, err := builder.New(builder.WithLogger(logger), builder.WithOutput(stdout)).Build(cfg)
	if err != nil {
		return fmt.Errorf("build devices: %w", err)
	}
	if len(devices.Sensors) == 0 {
		devices.Close()
		return errors.New("no sensors could be started")
	}

	if o.printReadings {
		defer devices.Close()
		return printReadings(ctx, devices, stdout)
	}
	return serve(ctx, cfg, devices, logger)
}

// printReadings reads every sensor once.
func printReadings(ctx context.Context, d *builder.Devices, w io.Writer) error {
	for _, s := range d.Sensors {
		r, err := s.Device.Read(ctx)
		if err != nil {
			fmt.Fprintf(w, "%s: ERROR %v\n", s.Name, err)
			continue
		}
		fmt.Fprintf(w, "%s: %s\n", s.Name, r)
	}
	return nil
}

// linkObserver refreshes the communicator and network state on the status
// tracker after every cycle.
type linkObserver struct {
	gateway.NopObserver
	tracker *status.Tracker
	link    mqtt.ConnectionStatus // nil: always connected
}

func (l linkObserver) CycleDone(gateway.Cycle) {
	l.tracker.SetConnected(l.connected())
	if net := status.NetworkFromEnv(); net != nil {
		l.tracker.SetNetwork(net)
	}
}

func (l linkObserver) connected() bool {
	return l.link == nil || l.link.IsConnected()
}

func serve(ctx context.Context, cfg *config.Config, d *builder.Devices, logger *zap.Logger) error {
	// Status tracker exists before STARTUP so the event carries a full snapshot.
	tracker := status.NewTracker(time.Now(), d.StatusConfig(cfg), d.SensorNames()...)
	link := linkObserver{tracker: tracker}
	if d.MQTT != nil {
		link.link = d.MQTT
	}
	tracker.SetConnected(link.connected())
	if net := status.NetworkFromEnv(); net != nil {
		tracker.SetNetwork(net)
	}

	reg := prometheus.NewRegistry()
	collector, err := metrics.New(reg)
	if err != nil {
		d.Close()
		return fmt.Errorf("metrics: %w", err)
	}

	opts := append(d.Options(),
		gateway.WithLogger(logger.Named("gateway")),
		gateway.WithObserver(tracker),
		gateway.WithObserver(collector),
		gateway.WithObserver(link),
	)
	g, err := gateway.New(gateway.Config{Name: cfg.Gateway.Name, Interval: cfg.Gateway.Interval()}, opts...)
	if err != nil {
		d.Close()
		return fmt.Errorf("gateway: %w", err)
	}
	defer func() {
		if err := g.Close(); err != nil {
			logger.Warn("close devices", zap.Error(err))
		}
	}()

	publishEvent(d.MQTT, tracker, mqtt.EventStartup, "", logger)

	if addr := cfg.HTTP.Addr; addr != "" {
		srv := web.New(addr, tracker, web.WithMetrics(collector.Handler()))
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		logger.Info("http status server listening", zap.String("addr", addr))
	}

	if err := g.Run(ctx); err != nil {
		return err
	}

	tracker.SetConnected(link.connected())
	publishEvent(d.MQTT, tracker, mqtt.EventShutdown, shutdownReason(ctx), logger)
	return nil
}

// publishEvent sends a retained lifecycle event carrying the status snapshot.
func publishEvent(m *mqtt.Communicator, tracker *status.Tracker, event, reason string, logger *zap.Logger) {
	if m == nil {
		return
	}
	snap := tracker.Snapshot()
	err := m.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		logger.Warn("failed to publish system event", zap.String("event", event), zap.Error(err))
		return
	}
	logger.Info("published system event", zap.String("event", event))
}
