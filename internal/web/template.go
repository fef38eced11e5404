package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/nexus-receiver/internal/status"
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
	"utc": func(t time.Time) string {
		return t.UTC().Format("2006-01-02T15:04:05Z")
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Nexus Receiver</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.none { color: orange; }
.low { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
pre { white-space: pre-wrap; word-break: break-all; }
</style>
</head>
<body>
<h1>Nexus Receiver<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<h2>Last Reading</h2>
<table>
{{if .Last}}<tr><th>Time</th><td id="r-time">{{utc .Last.Time}}</td></tr>
<tr><th>Temperature</th><td id="r-temp">{{.Last.Temperature}} &deg;C</td></tr>
<tr><th>Humidity</th><td id="r-hum">{{.Last.Humidity}}%</td></tr>
<tr><th>ID</th><td id="r-id">{{.Last.ID}}</td></tr>
<tr><th>Channel</th><td id="r-ch">{{.Last.Channel}}</td></tr>
<tr><th>Battery</th><td id="r-bat" class="{{if not .Last.BatteryOK}}low{{end}}">{{if .Last.BatteryOK}}ok{{else}}low{{end}}</td></tr>
{{else}}<tr><td class="none" id="r-none">no reading yet</td></tr>{{end}}
</table>
<pre id="record"></pre>

<h2>Frames</h2>
<table>
<tr><th>Frames</th><td>{{.Counts.Frames}}</td></tr>
<tr><th>Readings</th><td>{{.Counts.Readings}}</td></tr>
<tr><th>Wrong length</th><td>{{.Counts.WrongLength}}</td></tr>
<tr><th>Out of range</th><td>{{.Counts.OutOfRange}}</td></tr>
<tr><th>Other channel</th><td>{{.Counts.WrongChannel}}</td></tr>
<tr><th>Publish errors</th><td>{{.Counts.PublishErrors}}</td></tr>
{{if not .LastFrameAt.IsZero}}<tr><th>Last frame</th><td>{{utc .LastFrameAt}}</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Topic</th><td>{{.Config.Topic}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}} / {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{utc .StartTime}}</td></tr>
<tr><th>Pin</th><td>{{.Config.PinLabel}} ({{.Config.Mode}})</td></tr>
<tr><th>Channel</th><td>{{.Config.Channel}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>Watchdog</th><td>{{if eq .Config.WatchdogMs 0}}disabled{{else}}{{.Config.WatchdogMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  var rec = document.getElementById("record");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function set(id, text) {
    var el = document.getElementById(id);
    if (el) { el.textContent = text; }
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");

    ws.onopen = function() { setDot("ok", "live"); };
    ws.onerror = function() { setDot("err", "error"); };
    ws.onclose = function() {
      setDot("pending", "reconnecting");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(ev) {
      rec.textContent = ev.data;
      try {
        var r = JSON.parse(ev.data);
        set("r-time", r.time);
        set("r-temp", r.temperature_C.toFixed(1) + " °C");
        set("r-hum", r.humidity + "%");
        set("r-id", r.id);
        set("r-ch", r.channel);
        set("r-bat", r.battery_ok ? "ok" : "low");
      } catch (e) {}
    };
  }

  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
