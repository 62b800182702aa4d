package internal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/iot-printer/internal/gpio"
	"github.com/sweeney/iot-printer/internal/history"
	"github.com/sweeney/iot-printer/internal/logic"
	"github.com/sweeney/iot-printer/internal/mqtt"
	"github.com/sweeney/iot-printer/internal/printer"
	"github.com/sweeney/iot-printer/internal/scheduler"
	"github.com/sweeney/iot-printer/internal/status"
	"github.com/sweeney/iot-printer/internal/tasks"
	"github.com/sweeney/iot-printer/internal/web"
)

const (
	up   = true
	down = false
)

var startTime = time.Date(2026, 1, 1, 3, 0, 0, 500_000_000, time.UTC)

type recordingPower struct {
	calls int
}

func (p *recordingPower) PowerOff(context.Context) error {
	p.calls++
	return nil
}

// rig wires the real registry, loader, journal and tracker around fakes for
// the hardware, printer and broker.
type rig struct {
	hw      *gpio.FakeHardware
	printer *printer.FakePrinter
	pub     *mqtt.FakePublisher
	power   *recordingPower
	journal *history.Journal
	tracker *status.Tracker
	sched   *scheduler.Scheduler
}

func newRig(t *testing.T, policy tasks.FailurePolicy, defs map[string]tasks.Definition, lists map[tasks.Class][]string, samples []bool) *rig {
	t.Helper()
	journal, err := history.OpenMemory()
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { journal.Close() })

	r := &rig{
		hw:      gpio.NewFakeHardware(samples),
		printer: printer.NewFakePrinter(),
		pub:     mqtt.NewFakePublisher(),
		power:   &recordingPower{},
		journal: journal,
		tracker: status.NewTracker(startTime, status.Config{Broker: "tcp://broker:1883"}),
	}

	registry := tasks.NewRegistry(policy, zerolog.Nop())
	tasks.NewLoader(defs, r.printer, r.power, zerolog.Nop()).Populate(registry, lists)

	n := 0
	clock := func() time.Time {
		ts := startTime.Add(time.Duration(n) * 5 * time.Millisecond)
		n++
		return ts
	}
	r.sched = scheduler.New(r.hw, registry, scheduler.Options{
		Config: logic.Config{
			TapTime:  10 * time.Millisecond,
			HoldTime: 100 * time.Millisecond,
			DailyAt:  logic.TimeOfDay{Hour: 6, Minute: 30},
			Interval: time.Hour,
		},
		Now:        clock,
		Log:        zerolog.Nop(),
		Publisher:  r.pub,
		MQTTStatus: r.pub,
		Tracker:    r.tracker,
		Journal:    journal,
	})
	return r
}

func (r *rig) run(t *testing.T, ticks int, sg os.Signal) error {
	t.Helper()
	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- r.sched.Run(context.Background(), tick, sig)
	}()

	for i := 0; i < ticks; i++ {
		select {
		case tick <- time.Time{}:
		case err := <-errCh:
			return err
		}
	}
	sig <- sg
	return <-errCh
}

func tapSamples() []bool {
	s := []bool{up, up, down, down, down}
	for i := 0; i < 5; i++ {
		s = append(s, up)
	}
	return s
}

func holdSamples() []bool {
	s := []bool{up}
	for i := 0; i < 30; i++ {
		s = append(s, down)
	}
	return append(s, up, up, up)
}

func TestIntegrationTapPrints(t *testing.T) {
	r := newRig(t, tasks.ContinueOnError,
		map[string]tasks.Definition{"hello": {Type: tasks.TypePrint, Text: "Hello\nWorld"}},
		map[tasks.Class][]string{tasks.ClassTap: {"hello"}},
		tapSamples())

	if err := r.run(t, 10, syscall.SIGTERM); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(r.printer.Lines) != 2 || r.printer.Lines[0] != "Hello" || r.printer.Lines[1] != "World" {
		t.Errorf("printed %v", r.printer.Lines)
	}
	if r.printer.Fed != 3 {
		t.Errorf("fed %d lines, want 3", r.printer.Fed)
	}

	// INTERVAL has no tasks, so TAP is the only reported run
	if len(r.pub.Events) != 1 || r.pub.Events[0].Class != tasks.ClassTap || r.pub.Events[0].Ran != 1 {
		t.Errorf("events = %+v", r.pub.Events)
	}
	runs, err := r.journal.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 1 || runs[0].Class != "TAP" || runs[0].Tasks[0].Name != "hello" {
		t.Errorf("journal = %+v", runs)
	}
	if r.power.calls != 0 {
		t.Error("tap must not power off")
	}
}

func TestIntegrationHoldPowersOff(t *testing.T) {
	r := newRig(t, tasks.ContinueOnError,
		map[string]tasks.Definition{
			"hello":    {Type: tasks.TypePrint, Text: "Hello"},
			"shutdown": {Type: tasks.TypeShutdown},
		},
		map[tasks.Class][]string{
			tasks.ClassTap:  {"hello"},
			tasks.ClassHold: {"shutdown"},
		},
		holdSamples())

	if err := r.run(t, 33, syscall.SIGTERM); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if r.power.calls != 1 {
		t.Errorf("PowerOff called %d times, want 1", r.power.calls)
	}
	if len(r.printer.Lines) != 0 {
		t.Errorf("a hold must not also tap; printed %v", r.printer.Lines)
	}
	snap := r.tracker.Snapshot()
	if snap.Counts.Hold != 1 || snap.Counts.Tap != 0 {
		t.Errorf("counts = %+v", snap.Counts)
	}
}

func TestIntegrationStopPolicyEndsLoop(t *testing.T) {
	r := newRig(t, tasks.StopOnError,
		map[string]tasks.Definition{
			"fail":  {Type: tasks.TypeScript, Command: "sh", Args: []string{"-c", "exit 3"}},
			"after": {Type: tasks.TypePrint, Text: "never"},
		},
		map[tasks.Class][]string{tasks.ClassInterval: {"fail", "after"}},
		[]bool{up})

	err := r.run(t, 5, syscall.SIGTERM)
	if !errors.Is(err, tasks.ErrTaskFailed) {
		t.Fatalf("err = %v, want ErrTaskFailed", err)
	}
	if r.printer.Text.Len() != 0 {
		t.Errorf("task after the failure ran: %q", r.printer.Text.String())
	}

	runs, _ := r.journal.Recent(1)
	if len(runs) != 1 || runs[0].Failed != 1 || runs[0].Ran != 1 || runs[0].Error == "" {
		t.Errorf("journal = %+v", runs)
	}
	if r.hw.LED {
		t.Error("LED left on after fatal task error")
	}
}

func TestIntegrationContinuePolicyRunsRest(t *testing.T) {
	r := newRig(t, tasks.ContinueOnError,
		map[string]tasks.Definition{
			"fail":  {Type: tasks.TypeScript, Command: "sh", Args: []string{"-c", "exit 3"}},
			"after": {Type: tasks.TypePrint, Text: "still here"},
		},
		map[tasks.Class][]string{tasks.ClassInterval: {"fail", "after"}},
		[]bool{up})

	if err := r.run(t, 5, syscall.SIGTERM); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(r.printer.Lines) != 1 || r.printer.Lines[0] != "still here" {
		t.Errorf("printed %v", r.printer.Lines)
	}
	if len(r.pub.Events) != 1 || r.pub.Events[0].Failed != 1 || r.pub.Events[0].Ran != 2 {
		t.Errorf("events = %+v", r.pub.Events)
	}
}

func TestIntegrationShutdownPayload(t *testing.T) {
	r := newRig(t, tasks.ContinueOnError,
		map[string]tasks.Definition{"hello": {Type: tasks.TypePrint, Text: "Hello"}},
		map[tasks.Class][]string{tasks.ClassTap: {"hello"}},
		tapSamples())
	r.pub.Connected = true

	if err := r.run(t, 10, syscall.SIGINT); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(r.pub.SystemEvents) != 1 {
		t.Fatalf("system events = %+v", r.pub.SystemEvents)
	}
	var sj status.StatusJSON
	if err := json.Unmarshal(r.pub.SystemPayloads[0], &sj); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	s := sj.Status
	if s.Event != "SHUTDOWN" || s.Reason != "SIGINT" {
		t.Errorf("event=%q reason=%q", s.Event, s.Reason)
	}
	if !s.Ready || !s.MQTT.Connected || s.Counts.Tap != 1 {
		t.Errorf("status = %+v", s)
	}
	if s.LastRun == nil || s.LastRun.Class != "TAP" || s.LastRun.Ran != 1 {
		t.Errorf("last run = %+v", s.LastRun)
	}
}

func TestIntegrationHistoryOverHTTP(t *testing.T) {
	r := newRig(t, tasks.ContinueOnError,
		map[string]tasks.Definition{"hello": {Type: tasks.TypePrint, Text: "Hello"}},
		map[tasks.Class][]string{tasks.ClassTap: {"hello"}},
		tapSamples())

	if err := r.run(t, 10, syscall.SIGTERM); err != nil {
		t.Fatalf("Run: %v", err)
	}

	h := web.New(":0", r.tracker, r.journal).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history.json", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var hj web.HistoryJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &hj); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(hj.Runs) != 1 || hj.Runs[0].Class != "TAP" || hj.Runs[0].Tasks[0].Name != "hello" {
		t.Errorf("history = %+v", hj.Runs)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/index.json", nil))
	var sj status.StatusJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &sj); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if sj.Status.Counts.Tap != 1 || sj.Status.Phase != "IDLE" {
		t.Errorf("status = %+v", sj.Status)
	}
}
