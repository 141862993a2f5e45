package dashboard

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/text/cases"

	"github.com/schengenwatch/visadash/internal/dom"
	"github.com/schengenwatch/visadash/internal/model"
)

// ErrAlreadyBound is returned when a mount point already hosts a widget
var ErrAlreadyBound = errors.New("mount point already has a widget")

const widgetAttr = "data-widget"

// TableControlsPath receives the search, order, length and page forms
// rendered with the table
const TableControlsPath = "/dashboard/table"

var pageLengths = []int{10, 25, 50, 100}

// Column describes one table column
type Column struct {
	Key   string
	Title string
	// Text is the display text, also used for searching
	Text func(model.Appointment) string
	// Node renders interactive cells; when nil the cell shows Text
	Node func(model.Appointment) *html.Node
	// SortKey orders rows; when nil Text is used
	SortKey func(model.Appointment) string
	// Unorderable columns ignore Order requests
	Unorderable bool
}

// TableOptions configures a DataTable at construction
type TableOptions struct {
	PageLength  int
	OrderColumn string
	OrderDesc   bool
}

// DataTable is a searchable, sortable, paged table bound to one mount
// point. Its rows can be swapped without losing order, page or page length.
type DataTable struct {
	mu      sync.Mutex
	doc     *dom.Document
	mountID string
	columns []Column
	fold    cases.Caser

	rows       []model.Appointment
	pageLength int
	page       int
	orderCol   int
	orderDesc  bool
	search     string
}

// NewDataTable binds a table to the element mountID. It fails with
// ErrAlreadyBound when another widget owns that element.
func NewDataTable(doc *dom.Document, mountID string, columns []Column, opts TableOptions) (*DataTable, error) {
	if opts.PageLength <= 0 {
		opts.PageLength = 10
	}
	t := &DataTable{
		doc:        doc,
		mountID:    mountID,
		columns:    columns,
		fold:       cases.Fold(),
		pageLength: opts.PageLength,
		orderDesc:  opts.OrderDesc,
	}
	if i := t.columnIndex(opts.OrderColumn); i >= 0 {
		t.orderCol = i
	}

	err := doc.Update(mountID, func(n *html.Node) error {
		if _, bound := dom.GetAttr(n, widgetAttr); bound {
			return fmt.Errorf("%w: #%s", ErrAlreadyBound, mountID)
		}
		dom.SetAttr(n, widgetAttr, "datatable")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (t *DataTable) columnIndex(key string) int {
	for i, c := range t.columns {
		if c.Key == key {
			return i
		}
	}
	return -1
}

// Clear drops every row
func (t *DataTable) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = nil
}

// Add appends rows
func (t *DataTable) Add(rows ...model.Appointment) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = append(t.rows, rows...)
}

// Order sorts by the column key. Unknown or unorderable columns are ignored.
func (t *DataTable) Order(key string, desc bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.columnIndex(key)
	if i < 0 || t.columns[i].Unorderable {
		return
	}
	t.orderCol = i
	t.orderDesc = desc
}

// Ordering returns the current sort column key and direction
func (t *DataTable) Ordering() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.columns[t.orderCol].Key, t.orderDesc
}

// Search keeps rows whose cell text contains term, ignoring case
func (t *DataTable) Search(term string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.search = strings.TrimSpace(term)
	t.page = 0
}

// SetPageLength changes the number of rows per page
func (t *DataTable) SetPageLength(n int) {
	if n <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pageLength = n
	t.page = 0
}

// PageLength returns the rows per page
func (t *DataTable) PageLength() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pageLength
}

// SetPage selects a zero-based page; it is clamped on the next draw
func (t *DataTable) SetPage(p int) {
	if p < 0 {
		p = 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.page = p
}

// Page returns the zero-based current page
func (t *DataTable) Page() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.page
}

// Len returns the number of rows held, before searching
func (t *DataTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rows)
}

// Rows returns the cell text of the rows on the current page
func (t *DataTable) Rows() [][]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	visible, _ := t.view()
	out := make([][]string, 0, len(visible))
	for _, r := range visible {
		cells := make([]string, len(t.columns))
		for i, c := range t.columns {
			cells[i] = c.Text(r)
		}
		out = append(out, cells)
	}
	return out
}

// view returns the current page after search and sort, and the number of
// rows that matched the search. The page is clamped to the last page.
func (t *DataTable) view() ([]model.Appointment, int) {
	matched := make([]model.Appointment, 0, len(t.rows))
	needle := t.fold.String(t.search)
	for _, r := range t.rows {
		if needle == "" || t.matches(r, needle) {
			matched = append(matched, r)
		}
	}

	col := t.columns[t.orderCol]
	key := col.SortKey
	if key == nil {
		key = col.Text
	}
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := key(matched[i]), key(matched[j])
		if t.orderDesc {
			return a > b
		}
		return a < b
	})

	pages := (len(matched) + t.pageLength - 1) / t.pageLength
	if pages == 0 {
		pages = 1
	}
	if t.page >= pages {
		t.page = pages - 1
	}
	start := t.page * t.pageLength
	end := start + t.pageLength
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], len(matched)
}

func (t *DataTable) matches(r model.Appointment, needle string) bool {
	for _, c := range t.columns {
		if strings.Contains(t.fold.String(c.Text(r)), needle) {
			return true
		}
	}
	return false
}

// Draw renders the table into its mount point
func (t *DataTable) Draw() error {
	t.mu.Lock()
	visible, matched := t.view()
	wrapper := t.render(visible, matched)
	t.mu.Unlock()

	return t.doc.ReplaceChildren(t.mountID, wrapper)
}

func (t *DataTable) render(visible []model.Appointment, matched int) *html.Node {
	head := dom.Element("tr")
	for i, c := range t.columns {
		class := "sorting"
		if c.Unorderable {
			class = "sorting_disabled"
		} else if i == t.orderCol {
			class = "sorting_asc"
			if t.orderDesc {
				class = "sorting_desc"
			}
		}
		th := dom.Element("th", "data-column", c.Key, "class", class)
		if c.Unorderable {
			dom.Append(th, dom.Text(c.Title))
		} else {
			dir := "asc"
			if i == t.orderCol && !t.orderDesc {
				dir = "desc"
			}
			dom.Append(th, controlForm(c.Title, "btn btn-link p-0", "order", c.Key, "dir", dir))
		}
		dom.Append(head, th)
	}

	body := dom.Element("tbody")
	if len(visible) == 0 {
		dom.Append(body, dom.Append(dom.Element("tr", "class", "empty"),
			dom.TextElement("td", "No matching records found",
				"colspan", strconv.Itoa(len(t.columns)), "class", "dataTables_empty")))
	}
	for _, r := range visible {
		tr := dom.Element("tr", "data-id", strconv.FormatInt(r.UniqueAppointmentID, 10))
		for _, c := range t.columns {
			td := dom.Element("td", "data-column", c.Key)
			if c.Node != nil {
				dom.Append(td, c.Node(r))
			} else {
				dom.Append(td, dom.Text(c.Text(r)))
			}
			dom.Append(tr, td)
		}
		dom.Append(body, tr)
	}

	table := dom.Append(dom.Element("table", "class", "table table-striped table-bordered", "id", t.mountID+"-table"),
		dom.Append(dom.Element("thead"), head),
		body,
	)

	info := "Showing 0 to 0 of 0 entries"
	if matched > 0 {
		first := t.page*t.pageLength + 1
		info = fmt.Sprintf("Showing %d to %d of %d entries", first, first+len(visible)-1, matched)
	}
	if t.search != "" && matched != len(t.rows) {
		info += fmt.Sprintf(" (filtered from %d total entries)", len(t.rows))
	}
	pages := (matched + t.pageLength - 1) / t.pageLength
	if pages == 0 {
		pages = 1
	}

	prev := controlForm("Previous", "btn btn-sm btn-outline-secondary", "page", strconv.Itoa(t.page))
	if t.page == 0 {
		disable(prev)
	}
	next := controlForm("Next", "btn btn-sm btn-outline-secondary", "page", strconv.Itoa(t.page+2))
	if t.page+1 >= pages {
		disable(next)
	}

	return dom.Append(dom.Element("div", "class", "dataTables_wrapper"),
		dom.Append(dom.Element("div", "class", "d-flex justify-content-between mb-2"),
			t.lengthForm(),
			t.searchForm(),
		),
		table,
		dom.TextElement("div", info, "class", "dataTables_info"),
		dom.Append(dom.Element("div", "class", "dataTables_paginate d-flex gap-2 align-items-center"),
			prev,
			dom.TextElement("span", fmt.Sprintf("Page %d of %d", t.page+1, pages), "class", "page-info"),
			next,
		),
	)
}

func (t *DataTable) searchForm() *html.Node {
	return dom.Append(dom.Element("form", "method", "post", "action", TableControlsPath, "class", "dataTables_filter"),
		dom.Append(dom.TextElement("label", "Search: "),
			dom.Element("input", "type", "search", "name", "search", "value", t.search,
				"class", "form-control form-control-sm d-inline-block w-auto")),
		dom.TextElement("button", "Go", "type", "submit", "class", "btn btn-sm btn-outline-primary ms-1"),
	)
}

func (t *DataTable) lengthForm() *html.Node {
	sel := dom.Element("select", "name", "length", "class", "form-select form-select-sm d-inline-block w-auto")
	lengths := pageLengths
	if !slices.Contains(lengths, t.pageLength) {
		lengths = append(slices.Clone(lengths), t.pageLength)
		slices.Sort(lengths)
	}
	for _, n := range lengths {
		opt := dom.TextElement("option", strconv.Itoa(n), "value", strconv.Itoa(n))
		if n == t.pageLength {
			dom.SetAttr(opt, "selected", "selected")
		}
		dom.Append(sel, opt)
	}
	return dom.Append(dom.Element("form", "method", "post", "action", TableControlsPath, "class", "dataTables_length"),
		dom.Append(dom.TextElement("label", "Show "), sel),
		dom.TextElement("button", "Apply", "type", "submit", "class", "btn btn-sm btn-outline-primary ms-1"),
	)
}

// controlForm is a one-button form posting hidden key/value pairs
func controlForm(label, class string, kv ...string) *html.Node {
	form := dom.Element("form", "method", "post", "action", TableControlsPath, "class", "d-inline")
	for i := 0; i+1 < len(kv); i += 2 {
		dom.Append(form, dom.Element("input", "type", "hidden", "name", kv[i], "value", kv[i+1]))
	}
	return dom.Append(form, dom.TextElement("button", label, "type", "submit", "class", class))
}

func disable(form *html.Node) {
	if btn := form.LastChild; btn != nil {
		dom.SetAttr(btn, "disabled", "disabled")
	}
}
