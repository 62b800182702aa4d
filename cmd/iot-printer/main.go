// Command iot-printer drives a button-and-LED thermal printer appliance: it
// prints its address at start-up, then runs task classes on tap, hold, a daily
// time and a fixed interval.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/iot-printer/internal/config"
	"github.com/sweeney/iot-printer/internal/gpio"
	"github.com/sweeney/iot-printer/internal/history"
	"github.com/sweeney/iot-printer/internal/logic"
	"github.com/sweeney/iot-printer/internal/mqtt"
	"github.com/sweeney/iot-printer/internal/printer"
	"github.com/sweeney/iot-printer/internal/scheduler"
	"github.com/sweeney/iot-printer/internal/setup"
	"github.com/sweeney/iot-printer/internal/status"
	"github.com/sweeney/iot-printer/internal/systemd"
	"github.com/sweeney/iot-printer/internal/tasks"
	"github.com/sweeney/iot-printer/internal/web"
)

const defaultConfigPath = "/etc/iot-printer/config.yaml"

const consoleTimeFormat = "15:04:05.000"

func main() {
	configPath := flag.String("config", defaultConfigPath, "YAML config file")
	fake := flag.Bool("fake", false, "Run without GPIO; print to the console and never power off")
	printState := flag.Bool("print-state", false, "Print current button state and exit")
	logLevel := flag.String("log-level", "", "Override log.level (debug, info, warn, error)")

	flag.Parse()

	explicit := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicit = true
		}
	})

	boot := newLogger(os.Stderr, zerolog.InfoLevel)
	cfg, err := loadConfig(*configPath, explicit)
	if err != nil {
		boot.Fatal().Err(err).Msg("load config")
	}
	applyFlags(&cfg, *fake, *logLevel)

	level, err := parseLevel(cfg.Log.Level)
	if err != nil {
		boot.Fatal().Err(err).Str("level", cfg.Log.Level).Msg("invalid log level")
	}
	log := newLogger(os.Stderr, level)

	if err := run(cfg, *printState, log); err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}

// newLogger returns a console logger with short timestamps.
func newLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat}
	return zerolog.New(cw).Level(level).With().Timestamp().Logger()
}

func parseLevel(s string) (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.InfoLevel, err
	}
	if level == zerolog.NoLevel {
		return zerolog.InfoLevel, nil
	}
	return level, nil
}

// loadConfig reads path. A missing file at the default location yields the
// defaults; a missing file named on the command line is an error.
func loadConfig(path string, explicit bool) (config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		cfg = config.Default()
		return cfg, cfg.Validate()
	}
	return cfg, err
}

func applyFlags(cfg *config.Config, fake bool, logLevel string) {
	if fake {
		cfg.Hardware.Fake = true
		cfg.Printer.Type = "console"
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
}

func run(cfg config.Config, printState bool, log zerolog.Logger) error {
	timing, err := cfg.Timings()
	if err != nil {
		return err
	}

	hw, err := openHardware(cfg.Hardware)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer hw.Close()

	if printState {
		raw, err := hw.ButtonState()
		if err != nil {
			return fmt.Errorf("read button: %w", err)
		}
		fmt.Printf("Button: %s\n", logic.ButtonState(raw))
		return nil
	}

	p, err := openPrinter(cfg.Printer, os.Stdout)
	if err != nil {
		return fmt.Errorf("init printer: %w", err)
	}
	defer p.Close()

	var power tasks.PowerController = systemd.Power{}
	if cfg.Hardware.Fake {
		power = logPower{log: log}
	}
	registry, loaded, err := buildRegistry(cfg, p, power, log)
	if err != nil {
		return err
	}

	ctx := context.Background()

	network, err := runSetup(ctx, cfg.Setup, cfg.Printer.HelloImage, hw, p, log)
	if err != nil {
		return err
	}

	tracker := status.NewTracker(time.Now(), statusConfig(cfg, timing))
	tracker.SetNetwork(network)

	opts := scheduler.Options{
		Config:           timing.MachineConfig(),
		Log:              log,
		Tracker:          tracker,
		Notifier:         systemd.NewNotify(log),
		WatchdogInterval: systemd.WatchdogInterval(),
	}

	if cfg.MQTT.Broker != "" {
		publisher, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:     cfg.MQTT.Broker,
			ClientID:   cfg.MQTT.ClientID,
			BufferSize: cfg.MQTT.Buffer,
			Log:        log,
		})
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer publisher.Close()
		opts.Publisher = publisher
		opts.MQTTStatus = publisher
		tracker.SetMQTTConnected(publisher.IsConnected())
	}

	var hist web.History
	if cfg.History.Path != "" {
		journal, err := history.Open(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("init history: %w", err)
		}
		defer journal.Close()
		if n, err := journal.Prune(history.DefaultKeep); err != nil {
			log.Warn().Err(err).Msg("prune history")
		} else if n > 0 {
			log.Info().Int64("removed", n).Msg("pruned history")
		}
		opts.Journal = journal
		hist = journal
	}

	if opts.Publisher != nil {
		publishStartup(opts.Publisher, tracker, log)
	}

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, hist)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("http server error")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("http status server listening")
	}

	log.Info().
		Dur("poll", timing.Poll).
		Dur("tap", timing.Tap).
		Dur("hold", timing.Hold).
		Stringer("daily_at", timing.DailyAt).
		Dur("interval", timing.Interval).
		Dur("heartbeat", timing.Heartbeat).
		Int("tasks", loaded).
		Msg("started")

	if err := opts.Notifier.Ready(); err != nil {
		log.Warn().Err(err).Msg("notify ready")
	}

	ticker := time.NewTicker(timing.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	err = scheduler.New(hw, registry, opts).Run(ctx, ticker.C, sigCh)
	if scheduler.IsTaskFailure(err) {
		return fmt.Errorf("stopping under failure_policy=stop: %w", err)
	}
	return err
}

func openHardware(c config.HardwareConfig) (gpio.Hardware, error) {
	if c.Fake {
		return gpio.IdleHardware{}, nil
	}
	return gpio.NewRealHardware(c.Chip, c.ButtonPin, c.LEDPin)
}

func openPrinter(c config.PrinterConfig, console io.Writer) (printer.Printer, error) {
	switch c.Type {
	case "thermal":
		return printer.OpenThermal(c.Device, c.Baud)
	case "console", "":
		return printer.NewConsole(console), nil
	}
	return nil, fmt.Errorf("unknown printer type %q", c.Type)
}

// buildRegistry loads the configured task lists and returns how many tasks
// were registered across all classes.
func buildRegistry(cfg config.Config, p printer.Printer, power tasks.PowerController, log zerolog.Logger) (*tasks.Registry, int, error) {
	policy, err := cfg.Policy()
	if err != nil {
		return nil, 0, err
	}
	registry := tasks.NewRegistry(policy, log)
	loader := tasks.NewLoader(cfg.TaskDefinitions(), p, power, log)
	n := loader.Populate(registry, cfg.ClassTasks())
	return registry, n, nil
}

// runSetup prints the start-up sheet. An unreachable network is fatal; a
// failed greeting is only logged.
func runSetup(ctx context.Context, c config.SetupConfig, helloImage string, led setup.LED, p printer.Printer, log zerolog.Logger) (*status.NetworkInfo, error) {
	if c.Skip {
		ip, err := setup.LocalIP(net.Dial, c.ProbeAddr)
		return networkInfo(ip, err), nil
	}

	delay, err := config.ParseDurationField("setup.retry_delay", c.RetryDelay)
	if err != nil {
		return nil, err
	}
	opts := setup.DefaultOptions()
	opts.ProbeAddr = c.ProbeAddr
	opts.Retries = c.Retries
	opts.RetryDelay = delay
	opts.HelloImage = helloImage

	// signals during setup abort the network retries
	setupCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ip, err := setup.Run(setupCtx, led, p, opts, log)
	if err == nil {
		return networkInfo(ip, nil), nil
	}

	var se *setup.Error
	if errors.As(err, &se) && se.Op == setup.OpNetwork {
		return nil, err
	}
	log.Warn().Err(err).Msg("setup incomplete")
	return networkInfo(ip, nil), nil
}

func networkInfo(ip string, err error) *status.NetworkInfo {
	if err != nil || ip == "" {
		return &status.NetworkInfo{Status: "unreachable"}
	}
	return &status.NetworkInfo{IP: ip, Status: "up"}
}

func statusConfig(cfg config.Config, t config.Timing) status.Config {
	sc := status.ConfigFromDurations(t.Poll, t.Tap, t.Hold, t.Interval, t.Heartbeat)
	sc.DailyAt = t.DailyAt.String()
	policy, _ := cfg.Policy()
	sc.FailurePolicy = string(policy)
	sc.Printer = cfg.Printer.Type
	sc.Broker = cfg.MQTT.Broker
	sc.HTTPAddr = cfg.HTTP.Addr
	return sc
}

func publishStartup(pub mqtt.Publisher, tracker *status.Tracker, log zerolog.Logger) {
	snap := tracker.Snapshot()
	event := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      mqtt.EventStartup,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, mqtt.EventStartup, ""),
	}
	if err := pub.PublishSystem(event); err != nil {
		log.Error().Err(err).Msg("failed to publish startup event")
		return
	}
	log.Info().Msg("published startup event")
}

// logPower stands in for the real power-off in --fake runs.
type logPower struct {
	log zerolog.Logger
}

func (l logPower) PowerOff(context.Context) error {
	l.log.Warn().Msg("power off requested; ignored in fake mode")
	return nil
}
