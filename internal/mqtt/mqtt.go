// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/iot-printer/internal/tasks"
)

// TopicEvents is the MQTT topic for task-class runs.
const TopicEvents = "printer/iot/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "printer/iot/system"

// System event names.
const (
	EventStartup     = "STARTUP"
	EventShutdown    = "SHUTDOWN"
	EventHeartbeat   = "HEARTBEAT"
	EventReconnected = "RECONNECTED"
	EventOffline     = "OFFLINE"
)

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a task-class run to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event TaskEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// TaskEvent describes one run of a task class.
type TaskEvent struct {
	Timestamp time.Time
	Class     tasks.Class
	Ran       int
	Failed    int
	Duration  time.Duration
}

// EventFromResult converts a registry result into a TaskEvent.
func EventFromResult(r tasks.Result) TaskEvent {
	return TaskEvent{
		Timestamp: r.Started,
		Class:     r.Class,
		Ran:       r.Ran(),
		Failed:    r.Failed(),
		Duration:  r.Duration,
	}
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Task TaskPayload `json:"task"`
}

// TaskPayload contains the task-class run details.
type TaskPayload struct {
	Timestamp  string `json:"timestamp"`
	Class      string `json:"class"`
	Ran        int    `json:"ran"`
	Failed     int    `json:"failed"`
	DurationMs int64  `json:"duration_ms"`
}

// FormatPayload creates the JSON payload for a task event.
func FormatPayload(event TaskEvent) ([]byte, error) {
	payload := Payload{
		Task: TaskPayload{
			Timestamp:  event.Timestamp.UTC().Format(time.RFC3339),
			Class:      string(event.Class),
			Ran:        event.Ran,
			Failed:     event.Failed,
			DurationMs: event.Duration.Milliseconds(),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
