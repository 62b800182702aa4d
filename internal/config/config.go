// Package config loads the appliance configuration from a YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	yaml "go.yaml.in/yaml/v3"

	"github.com/sweeney/iot-printer/internal/gpio"
	"github.com/sweeney/iot-printer/internal/printer"
	"github.com/sweeney/iot-printer/internal/tasks"
)

type Config struct {
	Hardware      HardwareConfig            `yaml:"hardware"`
	Printer       PrinterConfig             `yaml:"printer"`
	Timing        TimingConfig              `yaml:"timing"`
	MQTT          MQTTConfig                `yaml:"mqtt"`
	HTTP          HTTPConfig                `yaml:"http"`
	History       HistoryConfig             `yaml:"history"`
	Log           LogConfig                 `yaml:"log"`
	Setup         SetupConfig               `yaml:"setup"`
	FailurePolicy string                    `yaml:"failure_policy"`
	Tasks         TaskLists                 `yaml:"tasks"`
	Definitions   map[string]TaskDefinition `yaml:"definitions"`
}

type HardwareConfig struct {
	Fake      bool   `yaml:"fake"`
	Chip      string `yaml:"chip"`
	ButtonPin int    `yaml:"button_pin"`
	LEDPin    int    `yaml:"led_pin"`
}

// PrinterConfig selects the printer. Type is "thermal" or "console".
type PrinterConfig struct {
	Type       string `yaml:"type"`
	Device     string `yaml:"device"`
	Baud       int    `yaml:"baud"`
	HelloImage string `yaml:"hello_image"`
}

// TimingConfig holds durations as strings, parsed by Timings().
type TimingConfig struct {
	Poll      string `yaml:"poll"`
	Tap       string `yaml:"tap"`
	Hold      string `yaml:"hold"`
	DailyAt   string `yaml:"daily_at"`
	Interval  string `yaml:"interval"`
	Heartbeat string `yaml:"heartbeat"`
}

// MQTTConfig configures event publishing. An empty broker disables it.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Buffer   int    `yaml:"buffer"`
}

// HTTPConfig configures the status page. An empty address disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// HistoryConfig configures the run journal. An empty path disables it.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type SetupConfig struct {
	Skip       bool   `yaml:"skip"`
	ProbeAddr  string `yaml:"probe_addr"`
	Retries    int    `yaml:"retries"`
	RetryDelay string `yaml:"retry_delay"`
}

// TaskLists names the tasks run for each class, in order.
type TaskLists struct {
	Daily    []string `yaml:"daily"`
	Hold     []string `yaml:"hold"`
	Interval []string `yaml:"interval"`
	Tap      []string `yaml:"tap"`
}

type TaskDefinition struct {
	Type    string   `yaml:"type"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Text    string   `yaml:"text"`
	Image   string   `yaml:"image"`
}

// Default returns the built-in configuration: a held button shuts the
// machine down, nothing else is scheduled.
func Default() Config {
	return Config{
		Hardware: HardwareConfig{
			Chip:      gpio.DefaultChip,
			ButtonPin: gpio.DefaultPinButton,
			LEDPin:    gpio.DefaultPinLED,
		},
		Printer: PrinterConfig{
			Type:   "console",
			Device: "/dev/serial0",
			Baud:   printer.DefaultBaud,
		},
		Timing: TimingConfig{
			Poll:      "5ms",
			Tap:       "10ms",
			Hold:      "2s",
			DailyAt:   "06:30",
			Interval:  "30s",
			Heartbeat: "15m",
		},
		MQTT: MQTTConfig{
			ClientID: "iot-printer",
			Buffer:   100,
		},
		HTTP: HTTPConfig{Addr: ":80"},
		Log:  LogConfig{Level: "info"},
		Setup: SetupConfig{
			ProbeAddr:  "8.8.8.8:80",
			RetryDelay: "10s",
		},
		FailurePolicy: string(tasks.ContinueOnError),
		Tasks: TaskLists{
			Hold: []string{"shutdown"},
		},
		Definitions: map[string]TaskDefinition{
			"shutdown": {Type: tasks.TypeShutdown},
		},
	}
}

// Load reads path over the defaults. Unknown keys are an error.
// An empty file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every field that can be checked without touching hardware.
func (c Config) Validate() error {
	var errs []error

	if _, err := c.Timings(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Policy(); err != nil {
		errs = append(errs, fmt.Errorf("failure_policy: %w", err))
	}
	switch c.Printer.Type {
	case "console":
	case "thermal":
		if c.Printer.Device == "" {
			errs = append(errs, errors.New("printer.device: required for thermal printer"))
		}
		if c.Printer.Baud <= 0 {
			errs = append(errs, errors.New("printer.baud: must be > 0"))
		}
	default:
		errs = append(errs, fmt.Errorf("printer.type: unknown type %q", c.Printer.Type))
	}
	if !c.Hardware.Fake {
		if c.Hardware.Chip == "" {
			errs = append(errs, errors.New("hardware.chip: required"))
		}
		if c.Hardware.ButtonPin < 0 || c.Hardware.LEDPin < 0 {
			errs = append(errs, errors.New("hardware: pins must be >= 0"))
		}
		if c.Hardware.ButtonPin == c.Hardware.LEDPin {
			errs = append(errs, errors.New("hardware: button and LED must use different pins"))
		}
	}
	if c.MQTT.Buffer < 0 {
		errs = append(errs, errors.New("mqtt.buffer: must be >= 0"))
	}
	if c.Setup.Retries < 0 {
		errs = append(errs, errors.New("setup.retries: must be >= 0"))
	}
	if _, err := ParseDurationField("setup.retry_delay", c.Setup.RetryDelay); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Policy returns the parsed failure policy.
func (c Config) Policy() (tasks.FailurePolicy, error) {
	return tasks.ParseFailurePolicy(c.FailurePolicy)
}

// ClassTasks returns the configured task names keyed by class.
func (c Config) ClassTasks() map[tasks.Class][]string {
	return map[tasks.Class][]string{
		tasks.ClassDaily:    c.Tasks.Daily,
		tasks.ClassHold:     c.Tasks.Hold,
		tasks.ClassInterval: c.Tasks.Interval,
		tasks.ClassTap:      c.Tasks.Tap,
	}
}

// TaskDefinitions converts the definitions for the task loader.
func (c Config) TaskDefinitions() map[string]tasks.Definition {
	out := make(map[string]tasks.Definition, len(c.Definitions))
	for name, d := range c.Definitions {
		out[name] = tasks.Definition{
			Type:    d.Type,
			Command: d.Command,
			Args:    d.Args,
			Text:    d.Text,
			Image:   d.Image,
		}
	}
	return out
}
