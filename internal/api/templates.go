package api

import (
	"html/template"
	"time"
)

// pageTemplate renders the status page served at /
var pageTemplate = template.Must(template.New("page").Funcs(template.FuncMap{
	"levelClass": func(level string) string {
		switch level {
		case "error", "fatal", "panic":
			return "log-error"
		case "warn":
			return "log-warn"
		case "debug", "trace":
			return "log-debug"
		default:
			return "log-info"
		}
	},
	"when": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.UTC().Format("2006-01-02 15:04:05Z")
	},
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <meta http-equiv="refresh" content="30">
    <title>cfnotifier</title>
    <style>
        :root {
            --bg-primary: #0d1117;
            --bg-secondary: #161b22;
            --border-color: #30363d;
            --text-primary: #e6edf3;
            --text-secondary: #8b949e;
            --accent-green: #3fb950;
            --accent-red: #f85149;
            --accent-yellow: #d29922;
            --accent-blue: #58a6ff;
        }
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, sans-serif;
            background: var(--bg-primary);
            color: var(--text-primary);
            line-height: 1.6;
            padding: 2rem;
        }
        h1 { font-size: 1.5rem; margin-bottom: 0.25rem; }
        h2 { font-size: 1.1rem; margin: 1.5rem 0 0.5rem; color: var(--text-secondary); }
        .meta { color: var(--text-secondary); font-size: 0.85rem; }
        .stats { display: grid; grid-template-columns: repeat(4, 1fr); gap: 1rem; margin-top: 1rem; }
        .stat { background: var(--bg-secondary); border: 1px solid var(--border-color); border-radius: 6px; padding: 1rem; }
        .stat .value { font-size: 1.5rem; font-weight: 600; }
        .stat .label { color: var(--text-secondary); font-size: 0.8rem; }
        table { width: 100%; border-collapse: collapse; background: var(--bg-secondary); }
        th, td { text-align: left; padding: 0.5rem 0.75rem; border-bottom: 1px solid var(--border-color); font-size: 0.9rem; }
        th { color: var(--text-secondary); font-weight: 500; }
        .ok { color: var(--accent-green); }
        .err { color: var(--accent-red); }
        .logs { font-family: monospace; font-size: 0.8rem; background: var(--bg-secondary); padding: 0.75rem; border-radius: 6px; }
        .log-error { color: var(--accent-red); }
        .log-warn { color: var(--accent-yellow); }
        .log-debug { color: var(--text-secondary); }
        .log-info { color: var(--accent-blue); }
        @media (max-width: 768px) { .stats { grid-template-columns: repeat(2, 1fr); } }
    </style>
</head>
<body>
    <h1>cfnotifier</h1>
    <div class="meta">{{.Version}} ({{.Commit}}) &middot; up {{.Uptime}} &middot; polling every {{.Poller.Interval}}</div>

    <div class="stats">
        <div class="stat"><div class="value">{{len .Poller.Zones}}</div><div class="label">Zones</div></div>
        <div class="stat"><div class="value">{{.Poller.Cycles}}</div><div class="label">Cycles</div></div>
        <div class="stat"><div class="value">{{.Poller.Delivered}}</div><div class="label">Events delivered</div></div>
        <div class="stat"><div class="value">{{len .Channels}}</div><div class="label">Channels</div></div>
    </div>

    <h2>Zones</h2>
    <table>
        <tr><th>Zone</th><th>Cursor</th><th>Last poll</th><th>Delivered</th><th>State</th></tr>
        {{range .Poller.Zones}}
        <tr>
            <td>{{if .Name}}{{.Name}}{{else}}{{.ID}}{{end}}</td>
            <td>{{when .Cursor}}</td>
            <td>{{when .LastPoll}}</td>
            <td>{{.Delivered}}</td>
            <td>{{if .LastError}}<span class="err">{{.LastError}}</span>{{else}}<span class="ok">ok</span>{{end}}</td>
        </tr>
        {{end}}
    </table>

    <h2>Channels</h2>
    <div class="meta">{{range $i, $c := .Channels}}{{if $i}}, {{end}}{{$c}}{{else}}none configured{{end}}</div>

    <h2>Recent logs</h2>
    <div class="logs">
        {{range .Logs}}
        <div class="{{levelClass .Level}}">{{when .Timestamp}} [{{.Level}}] {{.Message}}{{if .Zone}} zone={{.Zone}}{{end}}</div>
        {{else}}
        <div class="log-debug">no log entries</div>
        {{end}}
    </div>
</body>
</html>
`))
