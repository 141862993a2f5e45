// Package model holds the records exchanged between the appointment
// endpoints and the dashboard.
package model

import (
	"encoding/json"
	"net/url"
	"sort"
	"strings"
)

// Filter field names, in form order. They double as query parameter names
// and appointment JSON keys.
const (
	FieldCenterName      = "center_name"
	FieldVisaCategory    = "visa_category"
	FieldVisaSubcategory = "visa_subcategory"
	FieldSourceCountry   = "source_country"
	FieldMissionCountry  = "mission_country"
)

// FilterFields lists every filterable field
var FilterFields = []string{
	FieldCenterName,
	FieldVisaCategory,
	FieldVisaSubcategory,
	FieldSourceCountry,
	FieldMissionCountry,
}

// IsFilterField reports whether name is one of FilterFields
func IsFilterField(name string) bool {
	for _, f := range FilterFields {
		if f == name {
			return true
		}
	}
	return false
}

// Appointment is one monitored appointment slot with its latest check.
// Empty strings and a zero PeopleLooking mean "missing".
type Appointment struct {
	UniqueAppointmentID int64  `json:"unique_appointment_id" db:"unique_appointment_id"`
	CenterName          string `json:"center_name" db:"center_name"`
	VisaCategory        string `json:"visa_category" db:"visa_category"`
	VisaSubcategory     string `json:"visa_subcategory,omitempty" db:"visa_subcategory"`
	SourceCountry       string `json:"source_country,omitempty" db:"source_country"`
	MissionCountry      string `json:"mission_country,omitempty" db:"mission_country"`
	AppointmentDate     string `json:"appointment_date,omitempty" db:"appointment_date"`
	LastChecked         string `json:"last_checked,omitempty" db:"last_checked"`
	PeopleLooking       int    `json:"people_looking,omitempty" db:"people_looking"`
	BookNowLink         string `json:"book_now_link,omitempty" db:"book_now_link"`
}

// Field returns the value of a filter field
func (a Appointment) Field(name string) string {
	switch name {
	case FieldCenterName:
		return a.CenterName
	case FieldVisaCategory:
		return a.VisaCategory
	case FieldVisaSubcategory:
		return a.VisaSubcategory
	case FieldSourceCountry:
		return a.SourceCountry
	case FieldMissionCountry:
		return a.MissionCountry
	}
	return ""
}

// LogEntry is a timestamped message, used for both the recent appointment
// feed and the general check log.
type LogEntry struct {
	Timestamp string `json:"timestamp" db:"timestamp"`
	Message   string `json:"message" db:"message"`
}

// ResponseChange is a stored upstream response. Response is kept raw and
// only pretty printed for display.
type ResponseChange struct {
	Timestamp string          `json:"timestamp"`
	Response  json.RawMessage `json:"response"`
}

// CheckLog is one historical check of an appointment
type CheckLog struct {
	Timestamp       string `json:"timestamp" db:"timestamp"`
	AppointmentDate string `json:"appointment_date,omitempty" db:"appointment_date"`
	LastChecked     string `json:"last_checked,omitempty" db:"last_checked"`
	PeopleLooking   int    `json:"people_looking,omitempty" db:"people_looking"`
}

// AppointmentHistory backs the detail-log view
type AppointmentHistory struct {
	Appointment Appointment
	Checks      []CheckLog
}

// FilterQuery holds the active (non-empty) filter values by field name
type FilterQuery map[string]string

// NewFilterQuery keeps only known fields with non-blank values
func NewFilterQuery(values map[string]string) FilterQuery {
	q := FilterQuery{}
	for _, f := range FilterFields {
		if v := strings.TrimSpace(values[f]); v != "" {
			q[f] = values[f]
		}
	}
	return q
}

// FilterQueryFromValues reads the filter fields out of URL values
func FilterQueryFromValues(v url.Values) FilterQuery {
	m := make(map[string]string, len(FilterFields))
	for _, f := range FilterFields {
		m[f] = v.Get(f)
	}
	return NewFilterQuery(m)
}

// Values returns the query as URL values
func (q FilterQuery) Values() url.Values {
	v := url.Values{}
	for k, val := range q {
		v.Set(k, val)
	}
	return v
}

// Encode serializes the query; equal queries encode identically
func (q FilterQuery) Encode() string {
	return q.Values().Encode()
}

// String lists the active fields in a stable order, for logs
func (q FilterQuery) String() string {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+q[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
