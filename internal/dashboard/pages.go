package dashboard

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/schengenwatch/visadash/internal/dom"
	"github.com/schengenwatch/visadash/internal/model"
)

// AppointmentsMountID is the element the appointment table binds to
const AppointmentsMountID = "appointments-table"

// FilterFormID is the id of the filter form
const FilterFormID = "filter-form"

var fieldLabels = map[string]string{
	model.FieldCenterName:      "Center",
	model.FieldVisaCategory:    "Visa Category",
	model.FieldVisaSubcategory: "Visa Subcategory",
	model.FieldSourceCountry:   "Source Country",
	model.FieldMissionCountry:  "Mission Country",
}

const pageHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Visa Appointments</title>
<link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/bootstrap@5.3.3/dist/css/bootstrap.min.css">
<style>
body{padding:20px}
.log{border-bottom:1px solid #eee;padding:6px 0}
.timestamp{color:#888;font-size:12px}
pre.log-text{white-space:pre;margin:0;font-size:12px}
.modal.show{display:block;background:rgba(0,0,0,.4)}
</style>
</head>
<body>
<nav class="mb-3"><a href="/">Appointments</a> | <a href="/logs">Logs</a></nav>
`

const pageTail = `</body>
</html>`

// NewHomeDocument builds the appointments page: the filter form, one
// datalist per field and the table mount point.
func NewHomeDocument() *dom.Document {
	doc := dom.MustParse(pageHead + `<h1>Visa Appointments</h1>
<div id="` + AppointmentsMountID + `"></div>
` + pageTail)

	form := dom.Element("form", "id", FilterFormID, "class", "row g-2 mb-3",
		"method", "get", "action", "/dashboard/search")
	for _, f := range model.FilterFields {
		group := dom.Element("div", "class", "col")
		dom.Append(group,
			dom.TextElement("label", fieldLabels[f], "for", f, "class", "form-label"),
			dom.Element("input", "type", "text", "class", "form-control",
				"id", f, "name", f, "value", "", "list", datalistID(f), "autocomplete", "off"),
			dom.Element("datalist", "id", datalistID(f)),
		)
		form.AppendChild(group)
	}
	dom.Append(form, dom.Append(dom.Element("div", "class", "col-auto align-self-end"),
		dom.TextElement("button", "Filter", "type", "submit", "class", "btn btn-primary"),
		dom.Text(" "),
		dom.TextElement("button", "Clear", "type", "submit", "name", "action", "value", "clear",
			"class", "btn btn-secondary"),
	))

	// the form goes right above the table
	_ = doc.Update(AppointmentsMountID, func(n *html.Node) error {
		n.Parent.InsertBefore(form, n)
		return nil
	})
	return doc
}

// LogsRefreshPath runs one log poll on demand
const LogsRefreshPath = "/dashboard/logs/refresh"

// NewLogsDocument builds the logs page with its three regions. A positive
// reload makes the browser re-fetch the page at that cadence so it follows
// the poller.
func NewLogsDocument(reload time.Duration) *dom.Document {
	region := func(id, title string) string {
		return `<div class="col-md-4"><h4>` + title + `</h4><div id="` + id + `" class="log-region"></div></div>`
	}
	head := pageHead
	if reload > 0 {
		secs := max(int(reload.Round(time.Second)/time.Second), 1)
		head = strings.Replace(head, "</head>",
			`<meta http-equiv="refresh" content="`+strconv.Itoa(secs)+`">`+"\n</head>", 1)
	}
	return dom.MustParse(head + `<h1>Checker Logs</h1>
<form method="post" action="` + LogsRefreshPath + `" class="mb-3">
<button type="submit" class="btn btn-sm btn-outline-primary">Refresh</button>
</form>
<div class="row">
` + region(RegionRecentAppointments, "Recent Appointments") +
		region(RegionResponses, "Response Changes") +
		region(RegionLogs, "All Logs") + `
</div>
` + pageTail)
}
