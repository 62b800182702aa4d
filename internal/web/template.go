package web

import (
	"fmt"
	"html/template"
	"time"

	"github.com/sweeney/iot-printer/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"orUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
	"stamp": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.UTC().Format("2006-01-02T15:04:05Z")
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>IoT Printer</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.failed { color: red; }
</style>
</head>
<body>
<h1>IoT Printer</h1>

<h2>Button</h2>
<table>
<tr><th>Button</th><td>{{if .Ready}}{{.Button}}{{else}}UNKNOWN{{end}}</td></tr>
<tr><th>Phase</th><td>{{orUnknown (printf "%s" .Phase)}}</td></tr>
<tr><th>LED</th><td class="{{if .LED}}on{{else}}off{{end}}">{{if .LED}}on{{else}}off{{end}}</td></tr>
<tr><th>Ready</th><td>{{if .Ready}}yes{{else}}no{{end}}</td></tr>
</table>

<h2>Schedule</h2>
<table>
<tr><th>Daily at</th><td>{{.Config.DailyAt}}{{if .DailyTriggered}} (done today){{end}}</td></tr>
<tr><th>Next interval</th><td>{{stamp .NextInterval}}</td></tr>
<tr><th>Failure policy</th><td>{{.Config.FailurePolicy}}</td></tr>
</table>

<h2>Task Counts</h2>
<table>
<tr><th>DAILY</th><td>{{.Counts.Daily}}</td></tr>
<tr><th>HOLD</th><td>{{.Counts.Hold}}</td></tr>
<tr><th>INTERVAL</th><td>{{.Counts.Interval}}</td></tr>
<tr><th>TAP</th><td>{{.Counts.Tap}}</td></tr>
</table>

{{with .LastRun}}<h2>Last Run</h2>
<table>
<tr><th>Class</th><td>{{.Class}}</td></tr>
<tr><th>Started</th><td>{{stamp .Started}}</td></tr>
<tr><th>Duration</th><td>{{.Duration}}</td></tr>
<tr><th>Tasks</th><td{{if .Failed}} class="failed"{{end}}>{{.Ran}} ran, {{.Failed}} failed</td></tr>
</table>
{{end}}
<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}}</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{stamp .StartTime}}</td></tr>
<tr><th>Printer</th><td>{{.Config.Printer}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Tap / Hold</th><td>{{.Config.TapMs}}ms / {{.Config.HoldMs}}ms</td></tr>
<tr><th>Interval</th><td>{{.Config.IntervalMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/history.json">History</a></p>
</body>
</html>
`

// page adds the fields the template cannot compute itself.
type page struct {
	status.Snapshot
	Uptime time.Duration
}

func newPage(snap status.Snapshot) page {
	return page{Snapshot: snap, Uptime: snap.Uptime()}
}
