package dashboard

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/net/html"

	"github.com/schengenwatch/visadash/internal/dom"
	"github.com/schengenwatch/visadash/internal/model"
)

// Column keys that are not filter fields
const (
	ColumnAppointmentDate = "appointment_date"
	ColumnLastChecked     = "last_checked"
	ColumnPeopleLooking   = "people_looking"
	ColumnBookNow         = "book_now_link"
	ColumnLogs            = "logs"
)

// AppointmentColumns returns the table layout for appointment records.
// Timestamps are shown in loc.
func AppointmentColumns(loc *time.Location) []Column {
	if loc == nil {
		loc = time.UTC
	}
	return []Column{
		{Key: model.FieldCenterName, Title: "Center", Text: func(a model.Appointment) string { return orMissing(a.CenterName) }},
		{Key: model.FieldVisaCategory, Title: "Category", Text: func(a model.Appointment) string { return orMissing(a.VisaCategory) }},
		{Key: model.FieldVisaSubcategory, Title: "Subcategory", Text: func(a model.Appointment) string { return orMissing(a.VisaSubcategory) }},
		{Key: model.FieldSourceCountry, Title: "Source Country", Text: func(a model.Appointment) string { return orMissing(a.SourceCountry) }},
		{Key: model.FieldMissionCountry, Title: "Mission Country", Text: func(a model.Appointment) string { return orMissing(a.MissionCountry) }},
		{
			Key:     ColumnAppointmentDate,
			Title:   "Appointment Date",
			Text:    func(a model.Appointment) string { return FormatDate(a.AppointmentDate) },
			SortKey: func(a model.Appointment) string { return sortableTime(a.AppointmentDate, time.UTC) },
		},
		{
			Key:     ColumnLastChecked,
			Title:   "Last Checked",
			Text:    func(a model.Appointment) string { return FormatTimestamp(a.LastChecked, loc) },
			SortKey: func(a model.Appointment) string { return sortableTime(a.LastChecked, loc) },
		},
		{
			Key:     ColumnPeopleLooking,
			Title:   "People Looking",
			Text:    func(a model.Appointment) string { return formatCount(a.PeopleLooking) },
			// counts below zero are meaningless and sort as zero
			SortKey: func(a model.Appointment) string { return fmt.Sprintf("%012d", max(a.PeopleLooking, 0)) },
		},
		{
			Key:         ColumnBookNow,
			Title:       "Book",
			Text:        bookNowText,
			Node:        bookNowNode,
			Unorderable: true,
		},
		{
			Key:         ColumnLogs,
			Title:       "Logs",
			Text:        func(model.Appointment) string { return "View Logs" },
			Node:        logsButton,
			Unorderable: true,
		},
	}
}

func sortableTime(s string, loc *time.Location) string {
	t, ok := parseTime(s, loc)
	if !ok {
		return s
	}
	return t.UTC().Format("2006-01-02T15:04:05.000000000")
}

func bookNowText(a model.Appointment) string {
	if a.BookNowLink == "" {
		return MissingText
	}
	return "Book Now"
}

func bookNowNode(a model.Appointment) *html.Node {
	if a.BookNowLink == "" {
		return dom.Text(MissingText)
	}
	// only http(s) links become anchors
	if u, err := url.Parse(a.BookNowLink); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return dom.Text(a.BookNowLink)
	}
	return dom.TextElement("a", "Book Now",
		"href", a.BookNowLink,
		"target", "_blank",
		"rel", "noopener noreferrer",
		"class", "btn btn-sm btn-success")
}

func logsButton(a model.Appointment) *html.Node {
	id := strconv.FormatInt(a.UniqueAppointmentID, 10)
	form := dom.Element("form",
		"method", "get",
		"action", "/dashboard/appointments/"+id+"/logs",
		"class", "d-inline")
	return dom.Append(form, dom.TextElement("button", "View Logs",
		"type", "submit",
		"class", "btn btn-sm btn-info view-logs",
		"data-appointment-id", id))
}
