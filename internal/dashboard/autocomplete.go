package dashboard

import (
	"sort"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/text/cases"

	"github.com/schengenwatch/visadash/internal/dom"
	"github.com/schengenwatch/visadash/internal/model"
)

// DeriveSuggestions returns, per filter field, the sorted distinct
// non-empty values found in rows.
func DeriveSuggestions(rows []model.Appointment) map[string][]string {
	out := make(map[string][]string, len(model.FilterFields))
	for _, f := range model.FilterFields {
		seen := map[string]bool{}
		values := []string{}
		for _, r := range rows {
			v := r.Field(f)
			if strings.TrimSpace(v) == "" || seen[v] {
				continue
			}
			seen[v] = true
			values = append(values, v)
		}
		sort.Strings(values)
		out[f] = values
	}
	return out
}

// Autocomplete is the suggestion control attached to one filter input.
// With MinLength 0 focusing the input opens the whole source list.
type Autocomplete struct {
	mu        sync.Mutex
	field     string
	minLength int
	source    []string
	open      bool
	shown     []string
	fold      cases.Caser
}

// NewAutocomplete creates a control for field
func NewAutocomplete(field string, minLength int) *Autocomplete {
	return &Autocomplete{field: field, minLength: minLength, fold: cases.Fold()}
}

// Field returns the filter field the control belongs to
func (a *Autocomplete) Field() string { return a.field }

// SetSource replaces the suggestion source. An open list is refreshed.
func (a *Autocomplete) SetSource(values []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.source = append([]string(nil), values...)
	if a.open {
		a.shown = append([]string(nil), a.source...)
	}
}

// Source returns a copy of the suggestion source
func (a *Autocomplete) Source() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.source...)
}

// Focus opens the list with every suggestion when MinLength is 0
func (a *Autocomplete) Focus() []string {
	return a.Type("")
}

// Type filters the source by term, ignoring case. Terms shorter than
// MinLength close the list.
func (a *Autocomplete) Type(term string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len([]rune(term)) < a.minLength {
		a.open = false
		a.shown = nil
		return nil
	}
	needle := a.fold.String(term)
	a.shown = a.shown[:0]
	for _, v := range a.source {
		if needle == "" || strings.Contains(a.fold.String(v), needle) {
			a.shown = append(a.shown, v)
		}
	}
	a.open = true
	return append([]string(nil), a.shown...)
}

// Close hides the list
func (a *Autocomplete) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.open = false
	a.shown = nil
}

// IsOpen reports whether the list is showing
func (a *Autocomplete) IsOpen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.open
}

// datalistID names the <datalist> element backing a field's input
func datalistID(field string) string {
	return field + "-options"
}

// renderDatalist mirrors the source into the document so the browser
// offers the same suggestions.
func (a *Autocomplete) renderDatalist(doc *dom.Document) error {
	values := a.Source()
	options := make([]*html.Node, 0, len(values))
	for _, v := range values {
		options = append(options, dom.Element("option", "value", v))
	}
	return doc.ReplaceChildren(datalistID(a.field), options...)
}
