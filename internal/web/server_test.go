package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/iot-printer/internal/history"
	"github.com/sweeney/iot-printer/internal/logic"
	"github.com/sweeney/iot-printer/internal/status"
	"github.com/sweeney/iot-printer/internal/tasks"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeHistory struct {
	runs      []history.Run
	err       error
	lastLimit int
}

func (f *fakeHistory) Recent(limit int) ([]history.Run, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

func newTestServer(t *testing.T, hist History) (*httptest.Server, *status.Tracker) {
	t.Helper()
	cfg := status.Config{
		PollMs:        5,
		TapMs:         10,
		HoldMs:        2000,
		IntervalMs:    30000,
		HeartbeatMs:   900000,
		DailyAt:       "06:30",
		FailurePolicy: "continue",
		Printer:       "console",
		Broker:        "tcp://192.168.1.200:1883",
		HTTPAddr:      ":80",
	}
	tr := status.NewTracker(start, cfg)
	srv := New(":0", tr, hist)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, tr
}

func getJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode JSON: %v", err)
		}
	}
	return resp
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t, nil)
	tr.Update(status.Loop{
		Button: logic.Pressed,
		Phase:  logic.PhasePressed,
		Counts: logic.Counts{Tap: 5, Hold: 1},
	})
	tr.SetMQTTConnected(true)

	var sj status.StatusJSON
	resp := getJSON(t, ts.URL+"/index.json", &sj)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}
	if sj.Status.Button != "PRESSED" || sj.Status.Phase != "PRESSED" {
		t.Errorf("button=%q phase=%q", sj.Status.Button, sj.Status.Phase)
	}
	if !sj.Status.Ready || !sj.Status.MQTT.Connected {
		t.Errorf("ready=%v mqtt=%v", sj.Status.Ready, sj.Status.MQTT.Connected)
	}
	if sj.Status.Counts.Tap != 5 || sj.Status.Counts.Hold != 1 {
		t.Errorf("counts = %+v", sj.Status.Counts)
	}
	if sj.Status.Config.PollMs != 5 || sj.Status.Config.DailyAt != "06:30" {
		t.Errorf("config = %+v", sj.Status.Config)
	}
}

func TestJSONNotReadyBeforeFirstTick(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	var sj status.StatusJSON
	getJSON(t, ts.URL+"/index.json", &sj)

	if sj.Status.Ready {
		t.Error("expected Ready=false before the loop reports")
	}
}

func TestJSONNetworkInfo(t *testing.T) {
	ts, tr := newTestServer(t, nil)
	tr.SetNetwork(&status.NetworkInfo{IP: "192.168.1.42", Status: "up"})

	var sj status.StatusJSON
	getJSON(t, ts.URL+"/index.json", &sj)

	if sj.Status.Network == nil || sj.Status.Network.IP != "192.168.1.42" {
		t.Errorf("network = %+v", sj.Status.Network)
	}
}

func TestHTMLEndpoints(t *testing.T) {
	ts, tr := newTestServer(t, nil)
	tr.Update(status.Loop{Button: logic.Released, Phase: logic.PhaseIdle})
	tr.RecordRun(status.RunInfo{Class: "TAP", Started: start, Duration: time.Second, Ran: 2, Failed: 1})

	for _, path := range []string{"/", "/index.html"} {
		t.Run(path, func(t *testing.T) {
			resp, err := http.Get(ts.URL + path)
			if err != nil {
				t.Fatalf("GET %s: %v", path, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Errorf("status: got %d, want 200", resp.StatusCode)
			}
			if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
				t.Errorf("Content-Type: got %q, want text/html", ct)
			}
			body, _ := io.ReadAll(resp.Body)
			for _, want := range []string{"RELEASED", "2 ran, 1 failed", "06:30"} {
				if !strings.Contains(string(body), want) {
					t.Errorf("page missing %q", want)
				}
			}
		})
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr := newTestServer(t, nil)

	var before status.StatusJSON
	getJSON(t, ts.URL+"/index.json", &before)

	tr.Update(status.Loop{Button: logic.Released, Phase: logic.PhaseIdle, Counts: logic.Counts{Interval: 1}})

	var after status.StatusJSON
	getJSON(t, ts.URL+"/index.json", &after)

	if before.Status.Ready || !after.Status.Ready {
		t.Errorf("ready before=%v after=%v", before.Status.Ready, after.Status.Ready)
	}
	if after.Status.Counts.Interval != 1 {
		t.Errorf("interval count = %d", after.Status.Counts.Interval)
	}
}

func TestHistoryDisabled(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp := getJSON(t, ts.URL+"/history.json", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestHistoryLimit(t *testing.T) {
	tests := []struct {
		query      string
		wantStatus int
		wantLimit  int
	}{
		{"", http.StatusOK, DefaultHistoryLimit},
		{"?limit=3", http.StatusOK, 3},
		{"?limit=100000", http.StatusOK, MaxHistoryLimit},
		{"?limit=0", http.StatusBadRequest, 0},
		{"?limit=abc", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			hist := &fakeHistory{}
			ts, _ := newTestServer(t, hist)

			resp := getJSON(t, ts.URL+"/history.json"+tt.query, nil)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status: got %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if hist.lastLimit != tt.wantLimit {
				t.Errorf("limit: got %d, want %d", hist.lastLimit, tt.wantLimit)
			}
		})
	}
}

func TestHistoryError(t *testing.T) {
	ts, _ := newTestServer(t, &fakeHistory{err: errors.New("database is locked")})

	resp := getJSON(t, ts.URL+"/history.json", nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status: got %d, want 500", resp.StatusCode)
	}
}

func TestHistoryFromJournal(t *testing.T) {
	j, err := history.OpenMemory()
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer j.Close()

	res := tasks.Result{
		Class:    tasks.ClassDaily,
		Started:  start.Add(6*time.Hour + 31*time.Minute),
		Duration: 1500 * time.Millisecond,
		Tasks: []tasks.TaskResult{
			{Name: "weather", Duration: time.Second},
			{Name: "news", Duration: 500 * time.Millisecond, Err: errors.New("exit status 1")},
		},
	}
	if _, err := j.Record(res, nil); err != nil {
		t.Fatalf("Record: %v", err)
	}

	ts, _ := newTestServer(t, j)
	var hj HistoryJSON
	resp := getJSON(t, ts.URL+"/history.json", &hj)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d", resp.StatusCode)
	}

	if len(hj.Runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(hj.Runs))
	}
	run := hj.Runs[0]
	if run.Class != "DAILY" || run.Started != "2026-01-01T06:31:00Z" || run.DurationMs != 1500 {
		t.Errorf("run = %+v", run)
	}
	if run.Ran != 2 || run.Failed != 1 || run.Error != "exit status 1" {
		t.Errorf("run counts = %+v", run)
	}
	if len(run.Tasks) != 2 || run.Tasks[1].Name != "news" || run.Tasks[1].Error != "exit status 1" {
		t.Errorf("tasks = %+v", run.Tasks)
	}
}

func TestHistoryEmptyIsArray(t *testing.T) {
	ts, _ := newTestServer(t, &fakeHistory{})

	resp, err := http.Get(ts.URL + "/history.json")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `"runs":[]`) {
		t.Errorf("body = %s, want empty runs array", body)
	}
}
