package tasks

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sweeney/iot-printer/internal/printer"
)

// Definition types understood by the Loader.
const (
	TypeScript   = "script"
	TypePrint    = "print"
	TypeShutdown = "shutdown"
)

// Definition describes a task in configuration.
type Definition struct {
	Type    string
	Command string
	Args    []string
	Text    string
	Image   string
}

// PowerController turns the machine off.
type PowerController interface {
	PowerOff(ctx context.Context) error
}

// Loader builds tasks from definitions. Each definition is built once and
// shared by every class that lists it.
type Loader struct {
	defs      map[string]Definition
	printer   printer.Printer
	power     PowerController
	loadImage func(path string) (image.Image, error)
	log       zerolog.Logger
	built     map[string]Task
}

// NewLoader creates a Loader. The printer and power controller may be nil if no
// definition needs them; tasks that do will fail when run.
func NewLoader(defs map[string]Definition, p printer.Printer, power PowerController, log zerolog.Logger) *Loader {
	return &Loader{
		defs:      defs,
		printer:   p,
		power:     power,
		loadImage: printer.LoadImage,
		log:       log.With().Str("component", "loader").Logger(),
		built:     make(map[string]Task),
	}
}

// Build returns the task for name. It reports false, after logging a warning,
// when the name has no definition or the definition type is unknown.
func (l *Loader) Build(name string) (Task, bool) {
	if t, ok := l.built[name]; ok {
		return t, true
	}
	def, ok := l.defs[name]
	if !ok {
		l.log.Warn().Str("task", name).Msg("no definition for task, skipping")
		return Task{}, false
	}

	var run func(context.Context) error
	switch def.Type {
	case TypeScript:
		run = l.script(name, def)
	case TypePrint:
		run = l.print(def)
	case TypeShutdown:
		run = l.shutdown(def)
	default:
		l.log.Warn().Str("task", name).Str("type", def.Type).Msg("unknown task type, skipping")
		return Task{}, false
	}

	t := Task{Name: name, Run: run}
	l.built[name] = t
	return t, true
}

// Populate adds the tasks listed for each class to r, in order.
// It returns the number of tasks added.
func (l *Loader) Populate(r *Registry, lists map[Class][]string) int {
	n := 0
	for _, class := range Classes {
		for _, name := range lists[class] {
			t, ok := l.Build(name)
			if !ok {
				continue
			}
			r.Add(class, t)
			n++
		}
	}
	return n
}

func (l *Loader) script(name string, def Definition) func(context.Context) error {
	return func(ctx context.Context) error {
		if def.Command == "" {
			return errors.New("script task has no command")
		}
		cmd := exec.CommandContext(ctx, def.Command, def.Args...)
		out, err := cmd.CombinedOutput()
		if len(out) > 0 {
			l.log.Debug().Str("task", name).Str("output", strings.TrimSpace(string(out))).Msg("script output")
		}
		if err != nil {
			return fmt.Errorf("run %s: %w", def.Command, err)
		}
		return nil
	}
}

func (l *Loader) print(def Definition) func(context.Context) error {
	return func(context.Context) error {
		if l.printer == nil {
			return errors.New("no printer configured")
		}
		for _, line := range strings.Split(def.Text, "\n") {
			if err := l.printer.Println(line); err != nil {
				return fmt.Errorf("print: %w", err)
			}
		}
		return l.printer.Feed(3)
	}
}

// shutdown prints the optional goodbye image, then powers off.
// An image failure is logged; the machine still shuts down.
func (l *Loader) shutdown(def Definition) func(context.Context) error {
	return func(ctx context.Context) error {
		if def.Image != "" && l.printer != nil {
			if err := l.printImage(def.Image); err != nil {
				l.log.Warn().Err(err).Msg("goodbye image not printed")
			}
		}
		if l.power == nil {
			return errors.New("no power controller configured")
		}
		l.log.Info().Msg("powering off")
		if err := l.power.PowerOff(ctx); err != nil {
			return fmt.Errorf("power off: %w", err)
		}
		return nil
	}
}

func (l *Loader) printImage(path string) error {
	img, err := l.loadImage(path)
	if err != nil {
		return err
	}
	if err := l.printer.PrintImage(img); err != nil {
		return err
	}
	return l.printer.Feed(3)
}
