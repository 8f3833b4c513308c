package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/ir-remote/internal/ir"
	"github.com/sweeney/ir-remote/internal/status"
)

// recentRows caps the event table on the status page.
const recentRows = 20

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
	"clock": func(t time.Time) string {
		return t.UTC().Format("15:04:05.000")
	},
	"kindClass": func(k ir.Kind) string {
		switch k {
		case ir.KindNEC, ir.KindSony:
			return "decoded"
		case ir.KindGeneric:
			return "generic"
		default:
			return "noise"
		}
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>IR Remote</title>
<style>
body { font-family: monospace; max-width: 760px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.events th { width: auto; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.decoded { color: green; }
.generic { color: #a60; }
.noise { color: #888; }
</style>
</head>
<body>
<h1>IR Remote</h1>

<h2>Capture</h2>
<table>
<tr><th>Listener</th><td class="{{if .Engine.Listening}}on{{else}}off{{end}}">{{if .Engine.Listening}}listening{{else}}stopped{{end}}</td></tr>
<tr><th>Transmitter</th><td class="{{if .Engine.Transmitting}}on{{else}}off{{end}}">{{if .Engine.Transmitting}}sending{{else}}idle{{end}}</td></tr>
<tr><th>Status</th><td>{{.Engine.Message}}</td></tr>
<tr><th>RX / TX pins</th><td>GPIO{{.Config.RxPin}} / GPIO{{.Config.TxPin}}</td></tr>
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Total captured</th><td>{{.Engine.TotalEvents}}</td></tr>
<tr><th>Stored</th><td>{{.Engine.Stored}} / {{.Config.MaxEvents}}</td></tr>
<tr><th>Last minute</th><td>{{.Engine.EventsLastMinute}}</td></tr>
<tr><th>Last 5 minutes</th><td>{{.Engine.EventsLast5Minutes}}</td></tr>
<tr><th>Glitches</th><td>{{.Engine.Glitches}}</td></tr>
<tr><th>Dropped edges</th><td>{{.Engine.Dropped}}</td></tr>
</table>

<h2>Recent Events</h2>
{{if .Recent}}<table class="events">
<tr><th>#</th><th>Time</th><th>Kind</th><th>Code</th><th>Pulses</th></tr>
{{range .Recent}}<tr><td>{{.Signal.Number}}</td><td>{{clock .Signal.CapturedAt}}</td><td class="{{kindClass .Analysis.Kind}}">{{.Analysis.Kind}}{{if and (eq .Analysis.Kind "NEC") (not .Analysis.Verified)}} (unverified){{end}}</td><td>{{.Analysis.Code}}</td><td>{{len .Signal.Pulses}}</td></tr>
{{end}}</table>{{else}}<p>No events in the last 5 minutes.</p>{{end}}

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
<tr><th>pigpiod</th><td>{{.Config.Pigpiod}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}: {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Silence timeout</th><td>{{.Config.SilenceMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceUs}}us</td></tr>
<tr><th>Carrier</th><td>{{.Config.CarrierHz}}Hz</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/events?horizon=300">Events JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot, recent []ir.Event) {
	// Newest first, capped.
	rows := make([]ir.Event, 0, min(len(recent), recentRows))
	for i := len(recent) - 1; i >= 0 && len(rows) < recentRows; i-- {
		rows = append(rows, recent[i])
	}

	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Recent []ir.Event
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Recent:   rows,
	}
	indexTmpl.Execute(w, data)
}
