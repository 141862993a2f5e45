package dashboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schengenwatch/visadash/internal/dom"
	"github.com/schengenwatch/visadash/internal/model"
)

func newTestTable(t *testing.T, doc *dom.Document, pageLength int) *DataTable {
	t.Helper()
	table, err := NewDataTable(doc, AppointmentsMountID, AppointmentColumns(time.UTC), TableOptions{
		PageLength:  pageLength,
		OrderColumn: ColumnLastChecked,
		OrderDesc:   true,
	})
	require.NoError(t, err)
	return table
}

func TestExampleRowRendering(t *testing.T) {
	doc := NewHomeDocument()
	table := newTestTable(t, doc, 10)
	table.Add(sampleRows[0])
	require.NoError(t, table.Draw())

	rows := table.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"Berlin", "Tourist", "-", "-", "-", "01/05/2024", "20/04/2024 10:00", "3", "-", "View Logs"}, rows[0])

	assert.Equal(t, 1, doc.Count(`//button[@data-appointment-id="7"]`))
	assert.Equal(t, 1, doc.Count(`//form[@action="/dashboard/appointments/7/logs"]`))
	assert.Equal(t, []string{"3"}, doc.Texts(`//tr[@data-id="7"]/td[@data-column="people_looking"]`))
}

func TestMissingFieldDefaults(t *testing.T) {
	doc := NewHomeDocument()
	table := newTestTable(t, doc, 10)
	table.Add(model.Appointment{UniqueAppointmentID: 1, CenterName: "Oslo", VisaCategory: "Tourist"})
	require.NoError(t, table.Draw())

	rows := table.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"-", "-", "-", "N/A", "N/A", "0"}, rows[0][2:8])
	assert.Equal(t, []string{"-"}, doc.Texts(`//tr[@data-id="1"]/td[@data-column="book_now_link"]`))
}

func TestDefaultOrderIsLastCheckedDescending(t *testing.T) {
	doc := NewHomeDocument()
	table := newTestTable(t, doc, 10)
	table.Add(sampleRows...)
	require.NoError(t, table.Draw())

	var ids []string
	for _, r := range table.Rows() {
		ids = append(ids, r[0]+"/"+r[1])
	}
	assert.Equal(t, []string{"Ankara/Business", "Berlin/Tourist", "Berlin/Business"}, ids)
	assert.Equal(t, 1, doc.Count(`//th[@data-column="last_checked" and @class="sorting_desc"]`))
}

func TestSecondBindingIsRejected(t *testing.T) {
	doc := NewHomeDocument()
	newTestTable(t, doc, 10)

	_, err := NewDataTable(doc, AppointmentsMountID, AppointmentColumns(time.UTC), TableOptions{})
	require.ErrorIs(t, err, ErrAlreadyBound)

	_, err = NewDataTable(doc, "missing", AppointmentColumns(time.UTC), TableOptions{})
	require.ErrorIs(t, err, dom.ErrNoElement)
}

func TestRowSwapKeepsOrderPageAndLength(t *testing.T) {
	doc := NewHomeDocument()
	table := newTestTable(t, doc, 10)
	table.Add(sampleRows...)
	table.SetPageLength(2)
	table.Order(model.FieldCenterName, false)
	table.SetPage(1)
	require.NoError(t, table.Draw())
	require.Len(t, table.Rows(), 1)

	table.Clear()
	table.Add(sampleRows...)
	table.Add(model.Appointment{UniqueAppointmentID: 10, CenterName: "Zagreb", VisaCategory: "Tourist"})
	require.NoError(t, table.Draw())

	key, desc := table.Ordering()
	assert.Equal(t, model.FieldCenterName, key)
	assert.False(t, desc)
	assert.Equal(t, 2, table.PageLength())
	assert.Equal(t, 1, table.Page())
	rows := table.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "Berlin", rows[0][0])
	assert.Equal(t, "Zagreb", rows[1][0])
	assert.Equal(t, []string{"Page 2 of 2"}, doc.Texts(`//div[contains(@class, "dataTables_paginate")]/span[@class="page-info"]`))
}

func TestPageIsClampedWhenRowsShrink(t *testing.T) {
	doc := NewHomeDocument()
	table := newTestTable(t, doc, 1)
	table.Add(sampleRows...)
	table.SetPage(2)
	require.NoError(t, table.Draw())

	table.Clear()
	table.Add(sampleRows[0])
	require.NoError(t, table.Draw())
	assert.Equal(t, 0, table.Page())
	assert.Len(t, table.Rows(), 1)
}

func TestSearchIgnoresCase(t *testing.T) {
	doc := NewHomeDocument()
	table := newTestTable(t, doc, 10)
	table.Add(sampleRows...)
	table.Search("GERMANY")
	require.NoError(t, table.Draw())

	rows := table.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "Ankara", rows[0][0])
	assert.Equal(t, []string{"Showing 1 to 1 of 1 entries (filtered from 3 total entries)"},
		doc.Texts(`//div[@class="dataTables_info"]`))

	table.Search("nowhere")
	require.NoError(t, table.Draw())
	assert.Equal(t, []string{"No matching records found"}, doc.Texts(`//td[@class="dataTables_empty"]`))
}

func TestUnorderableColumnsIgnoreOrder(t *testing.T) {
	doc := NewHomeDocument()
	table := newTestTable(t, doc, 10)
	table.Order(ColumnLogs, false)
	key, desc := table.Ordering()
	assert.Equal(t, ColumnLastChecked, key)
	assert.True(t, desc)
}

func TestCellTextIsEscaped(t *testing.T) {
	doc := NewHomeDocument()
	table := newTestTable(t, doc, 10)
	table.Add(model.Appointment{UniqueAppointmentID: 3, CenterName: `<img src=x onerror=alert(1)>`, VisaCategory: "Tourist"})
	require.NoError(t, table.Draw())

	assert.Equal(t, 0, doc.Count(`//img`))
	assert.Contains(t, doc.String(), "&lt;img src=x onerror=alert(1)&gt;")
}

func TestBookingLinkOnlyForHTTP(t *testing.T) {
	doc := NewHomeDocument()
	table := newTestTable(t, doc, 10)
	table.Add(
		model.Appointment{UniqueAppointmentID: 1, CenterName: "A", BookNowLink: "https://visa.example.com/book"},
		model.Appointment{UniqueAppointmentID: 2, CenterName: "B", BookNowLink: "javascript:alert(1)"},
	)
	require.NoError(t, table.Draw())

	assert.Equal(t, 1, doc.Count(`//a[@href="https://visa.example.com/book" and @target="_blank" and @rel="noopener noreferrer"]`))
	assert.Equal(t, 0, doc.Count(`//a[starts-with(@href, "javascript")]`))
	assert.Equal(t, []string{"javascript:alert(1)"}, doc.Texts(`//tr[@data-id="2"]/td[@data-column="book_now_link"]`))
}

func TestTableRendersControlForms(t *testing.T) {
	doc := NewHomeDocument()
	table := newTestTable(t, doc, 1)
	table.Add(sampleRows...)
	table.Search("berlin")
	table.SetPage(1)
	require.NoError(t, table.Draw())

	form := `//form[@method="post" and @action="` + TableControlsPath + `"]`
	assert.Equal(t, 1, doc.Count(form+`//input[@name="search" and @value="berlin"]`))
	assert.Equal(t, 1, doc.Count(form+`//select[@name="length"]/option[@value="1" and @selected]`))
	assert.Equal(t, 5, doc.Count(form+`//select[@name="length"]/option`))

	// the sorted column flips direction, the others start ascending
	assert.Equal(t, 1, doc.Count(`//thead//th[@data-column="last_checked"]`+form+`/input[@name="dir" and @value="asc"]`))
	assert.Equal(t, 1, doc.Count(`//thead//th[@data-column="center_name"]`+form+`/input[@name="order" and @value="center_name"]`))
	assert.Equal(t, 1, doc.Count(`//thead//th[@data-column="center_name"]`+form+`/input[@name="dir" and @value="asc"]`))
	assert.Equal(t, 0, doc.Count(`//thead//th[@data-column="logs"]//form`))

	pager := `//div[contains(@class, "dataTables_paginate")]`
	assert.Equal(t, 1, doc.Count(pager+form+`[input[@name="page" and @value="1"]]/button[not(@disabled)]`))
	assert.Equal(t, 1, doc.Count(pager+form+`[input[@name="page" and @value="3"]]/button[@disabled]`))
}

func TestPeopleLookingSortsNumerically(t *testing.T) {
	doc := NewHomeDocument()
	table := newTestTable(t, doc, 10)
	for i, n := range []int{2, -12, -5, 7, 100} {
		table.Add(model.Appointment{UniqueAppointmentID: int64(i + 1), CenterName: "Oslo", PeopleLooking: n})
	}

	counts := func() []string {
		var out []string
		for _, r := range table.Rows() {
			out = append(out, r[7])
		}
		return out
	}

	table.Order(ColumnPeopleLooking, false)
	assert.Equal(t, []string{"-12", "-5", "2", "7", "100"}, counts())

	table.Order(ColumnPeopleLooking, true)
	assert.Equal(t, []string{"100", "7", "2", "-12", "-5"}, counts())
}
