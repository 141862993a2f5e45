package api

import (
	"html/template"
	"strings"
	"time"
)

var templateFuncs = template.FuncMap{
	"orNA": func(s string) string {
		if s == "" {
			return "N/A"
		}
		return s
	},
	"clock": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.Format("2006-01-02 15:04:05")
	},
	"upper": strings.ToUpper,
}

// logsModalTemplate renders the detail fragment served by /logs_modal
var logsModalTemplate = template.Must(template.New("logs_modal").Funcs(templateFuncs).Parse(`<div class="modal-dialog modal-lg">
<div class="modal-content">
<div class="modal-header">
<h5 class="modal-title">{{.Appointment.CenterName}} / {{.Appointment.VisaCategory}}{{with .Appointment.VisaSubcategory}} / {{.}}{{end}}</h5>
</div>
<div class="modal-body">
<p class="text-muted">{{orNA .Appointment.SourceCountry}} &rarr; {{orNA .Appointment.MissionCountry}}</p>
{{if .Checks}}<table class="table table-sm table-striped">
<thead><tr><th>Checked At</th><th>Appointment Date</th><th>Last Checked</th><th>People Looking</th></tr></thead>
<tbody>
{{range .Checks}}<tr><td>{{.Timestamp}}</td><td>{{orNA .AppointmentDate}}</td><td>{{orNA .LastChecked}}</td><td>{{.PeopleLooking}}</td></tr>
{{end}}</tbody>
</table>{{else}}<div class="text-muted">No checks recorded for this appointment.</div>{{end}}
</div>
</div>
</div>`))

var diagnosticsTemplate = template.Must(template.New("diagnostics").Funcs(templateFuncs).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Dashboard Diagnostics</title>
<style>
*{box-sizing:border-box;margin:0;padding:0}
body{font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,sans-serif;background:#f5f5f5;color:#333;line-height:1.6}
.hdr{background:linear-gradient(135deg,#667eea 0%,#764ba2 100%);color:#fff;padding:14px 20px;display:flex;align-items:center;justify-content:space-between}
.hdr h1{font-size:18px;font-weight:600}
.hdr a{color:#fff;font-size:13px;margin-left:12px}
.container{max-width:960px;margin:0 auto;padding:20px}
.card{background:#fff;border-radius:8px;padding:20px;margin-bottom:20px;box-shadow:0 2px 4px rgba(0,0,0,.1)}
.card h2{font-size:16px;margin-bottom:12px;padding-bottom:8px;border-bottom:1px solid #eee}
.row{display:flex;justify-content:space-between;padding:6px 0;border-bottom:1px solid #f0f0f0;font-size:13px}
.row:last-child{border-bottom:none}
.ok{color:#22c55e}.bad{color:#ef4444}
.badge{display:inline-block;padding:1px 8px;border-radius:10px;font-size:11px;font-weight:600;background:#e5e7eb}
#log{background:#1a1a2e;color:#a0aec0;padding:12px;border-radius:6px;font-family:monospace;font-size:12px;max-height:400px;overflow-y:auto}
.log-time{color:#667eea}
.lvl-error{color:#ef4444}.lvl-warn{color:#f59e0b}
</style>
</head>
<body>
<div class="hdr"><h1>Dashboard Diagnostics</h1><div><a href="/">Appointments</a><a href="/logs">Logs</a></div></div>
<div class="container">
<div class="card">
<h2>Status</h2>
<div class="row"><span>Uptime</span><span>{{.Uptime}}</span></div>
{{with .Backend}}<div class="row"><span>Backend</span><span class="{{if .Connected}}ok{{else}}bad{{end}}">{{.BaseURL}} {{if .Connected}}connected{{else}}not connected{{end}}</span></div>
<div class="row"><span>Last seen</span><span>{{clock .LastSeen}}</span></div>
{{with .LastError}}<div class="row"><span>Last error</span><span class="bad">{{.}}</span></div>{{end}}{{end}}
{{with .PollerState}}<div class="row"><span>Log poller</span><span>{{.}}</span></div>{{end}}
{{range .LogRegions}}<div class="row"><span>{{.Region}}</span><span><span class="badge">{{.Status}}</span> {{.Entries}} entries {{clock .At}}{{with .Error}} <span class="bad">{{.}}</span>{{end}}</span></div>
{{end}}</div>
<div class="card">
<h2>Table Refreshes</h2>
{{range .Refreshes}}<div class="row"><span>#{{.Seq}} {{.Query}}</span><span><span class="badge">{{.Status}}</span> {{.Rows}} rows {{clock .StartedAt}}{{with .Error}} <span class="bad">{{.}}</span>{{end}}</span></div>
{{else}}<div class="row"><span>No refreshes yet.</span></div>
{{end}}</div>
<div class="card">
<h2>Activity Log</h2>
<div id="log">
{{range .Logs}}<div><span class="log-time">[{{clock .Timestamp}}]</span> <span class="lvl-{{.Level}}">{{upper .Level}}</span> {{.Message}}{{range $k, $v := .Fields}} {{$k}}={{$v}}{{end}}</div>
{{else}}<div>No log entries.</div>
{{end}}</div>
</div>
</div>
</body>
</html>`))
