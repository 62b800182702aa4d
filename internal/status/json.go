package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event          string       `json:"event,omitempty"`
	Reason         string       `json:"reason,omitempty"`
	Button         string       `json:"button"`
	Phase          string       `json:"phase"`
	LED            bool         `json:"led"`
	Ready          bool         `json:"ready"`
	DailyTriggered bool         `json:"daily_triggered"`
	NextInterval   string       `json:"next_interval,omitempty"`
	UptimeSeconds  int64        `json:"uptime_seconds"`
	StartTime      string       `json:"start_time"`
	Timestamp      string       `json:"timestamp"`
	MQTT           MQTTStatus   `json:"mqtt"`
	Counts         CountsJSON   `json:"task_counts"`
	LastRun        *RunJSON     `json:"last_run,omitempty"`
	Network        *NetworkJSON `json:"network,omitempty"`
	Config         ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of per-class trigger counts.
type CountsJSON struct {
	Daily    int `json:"daily"`
	Hold     int `json:"hold"`
	Interval int `json:"interval"`
	Tap      int `json:"tap"`
}

// RunJSON is the JSON representation of the last task-class run.
type RunJSON struct {
	Class      string `json:"class"`
	Started    string `json:"started"`
	DurationMs int64  `json:"duration_ms"`
	Ran        int    `json:"ran"`
	Failed     int    `json:"failed"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	IP     string `json:"ip"`
	Status string `json:"status"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs        int64  `json:"poll_ms"`
	TapMs         int64  `json:"tap_ms"`
	HoldMs        int64  `json:"hold_ms"`
	IntervalMs    int64  `json:"interval_ms"`
	HeartbeatMs   int64  `json:"heartbeat_ms"`
	DailyAt       string `json:"daily_at"`
	FailurePolicy string `json:"failure_policy"`
	Printer       string `json:"printer"`
	Broker        string `json:"broker"`
	HTTPAddr      string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Button:         snap.Button.String(),
		Phase:          string(snap.Phase),
		LED:            snap.LED,
		Ready:          snap.Ready,
		DailyTriggered: snap.DailyTriggered,
		UptimeSeconds:  int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:      snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:      snap.Now.UTC().Format(time.RFC3339),
		MQTT:           MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Daily:    snap.Counts.Daily,
			Hold:     snap.Counts.Hold,
			Interval: snap.Counts.Interval,
			Tap:      snap.Counts.Tap,
		},
		Config: ConfigJSON{
			PollMs:        snap.Config.PollMs,
			TapMs:         snap.Config.TapMs,
			HoldMs:        snap.Config.HoldMs,
			IntervalMs:    snap.Config.IntervalMs,
			HeartbeatMs:   snap.Config.HeartbeatMs,
			DailyAt:       snap.Config.DailyAt,
			FailurePolicy: snap.Config.FailurePolicy,
			Printer:       snap.Config.Printer,
			Broker:        snap.Config.Broker,
			HTTPAddr:      snap.Config.HTTPAddr,
		},
	}
	if inner.Phase == "" {
		inner.Phase = "UNKNOWN"
	}
	if !snap.NextInterval.IsZero() {
		inner.NextInterval = snap.NextInterval.UTC().Format(time.RFC3339)
	}
	if snap.LastRun != nil {
		inner.LastRun = &RunJSON{
			Class:      snap.LastRun.Class,
			Started:    snap.LastRun.Started.UTC().Format(time.RFC3339),
			DurationMs: snap.LastRun.Duration.Milliseconds(),
			Ran:        snap.LastRun.Ran,
			Failed:     snap.LastRun.Failed,
		}
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{IP: snap.Network.IP, Status: snap.Network.Status}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
