package web

import (
	"time"

	"github.com/sweeney/iot-printer/internal/history"
)

// HistoryJSON is the JSON envelope for /history.json.
type HistoryJSON struct {
	Runs []RunJSON `json:"runs"`
}

// RunJSON is one journaled task-class run.
type RunJSON struct {
	ID         int64      `json:"id"`
	Class      string     `json:"class"`
	Started    string     `json:"started"`
	DurationMs int64      `json:"duration_ms"`
	Ran        int        `json:"ran"`
	Failed     int        `json:"failed"`
	Error      string     `json:"error,omitempty"`
	Tasks      []TaskJSON `json:"tasks"`
}

// TaskJSON is one task within a run.
type TaskJSON struct {
	Name       string `json:"name"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

func formatHistory(runs []history.Run) HistoryJSON {
	out := HistoryJSON{Runs: make([]RunJSON, 0, len(runs))}
	for _, r := range runs {
		rj := RunJSON{
			ID:         r.ID,
			Class:      r.Class,
			Started:    r.Started.UTC().Format(time.RFC3339),
			DurationMs: r.Duration.Milliseconds(),
			Ran:        r.Ran,
			Failed:     r.Failed,
			Error:      r.Error,
			Tasks:      make([]TaskJSON, 0, len(r.Tasks)),
		}
		for _, t := range r.Tasks {
			rj.Tasks = append(rj.Tasks, TaskJSON{
				Name:       t.Name,
				DurationMs: t.Duration.Milliseconds(),
				Error:      t.Error,
			})
		}
		out.Runs = append(out.Runs, rj)
	}
	return out
}
