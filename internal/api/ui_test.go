package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/antchfx/htmlquery"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schengenwatch/visadash/internal/client"
	"github.com/schengenwatch/visadash/internal/config"
	"github.com/schengenwatch/visadash/internal/dashboard"
	"github.com/schengenwatch/visadash/internal/store"
)

// dashboardFixture runs the appointment endpoints over a seeded SQLite
// database and a dashboard that reads them through the HTTP client.
type dashboardFixture struct {
	ui   *Server
	view *dashboard.View
}

func newDashboardFixture(t *testing.T) *dashboardFixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.db")
	st, err := store.Open(path, store.Options{Migrate: true})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	db, err := sqlx.Connect("sqlite3", "file:"+path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.MustExec(`INSERT INTO unique_appointments (id, center_name, visa_category, source_country, mission_country, book_now_link) VALUES
		(7, 'Berlin', 'Tourist', 'Turkey', 'Germany', 'https://book.example/7'),
		(8, 'Paris', 'Business', 'Turkey', 'France', NULL)`)
	db.MustExec(`INSERT INTO appointment_logs (unique_appointment_id, timestamp, appointment_date, people_looking, last_checked) VALUES
		(7, '2024-04-20 10:00:00', '2024-05-01', 3, '2024-04-20T10:00:00Z'),
		(8, '2024-04-21 09:00:00', '2024-06-11', 5, '2024-04-21T09:00:00Z')`)
	db.MustExec(`INSERT INTO logs (timestamp, message) VALUES ('2024-04-20 10:00:00', '<b>check</b> finished')`)
	db.MustExec(`INSERT INTO responses (timestamp, response) VALUES ('2024-04-20 10:00:00', '{"slots":[1]}')`)

	backend := httptest.NewServer(newTestServer(st).Handler())
	t.Cleanup(backend.Close)

	c := client.New(backend.URL, 5*time.Second)
	view, err := dashboard.NewView(c, zerolog.Nop(), dashboard.ViewOptions{
		PageLength:      10,
		LogPollInterval: time.Hour,
	})
	require.NoError(t, err)
	view.Start(context.Background())
	t.Cleanup(view.Stop)

	ui := NewServer(config.Default(), Options{
		View:       view,
		Connection: c.Status,
		Logger:     zerolog.Nop(),
	})
	return &dashboardFixture{ui: ui, view: view}
}

func (f *dashboardFixture) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.ui.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func (f *dashboardFixture) postForm(t *testing.T, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.ui.Handler().ServeHTTP(rec, req)
	return rec
}

func (f *dashboardFixture) count(t *testing.T, expr string) int {
	t.Helper()
	rec := f.do(t, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	doc, err := htmlquery.Parse(strings.NewReader(rec.Body.String()))
	require.NoError(t, err)
	return len(htmlquery.Find(doc, expr))
}

func TestHomePageShowsAppointments(t *testing.T) {
	f := newDashboardFixture(t)

	assert.Equal(t, 2, f.count(t, `//table/tbody/tr[@data-id]`))
	assert.Equal(t, 1, f.count(t, `//tr[@data-id="7"]/td[@data-column="last_checked" and text()="20/04/2024 10:00"]`))
	assert.Equal(t, 1, f.count(t, `//datalist[@id="center_name-options"]/option[@value="Paris"]`))
}

func TestSearchAndClear(t *testing.T) {
	f := newDashboardFixture(t)

	rec := f.do(t, http.MethodGet, "/dashboard/search?center_name=Ber&visa_category=")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Equal(t, 1, f.count(t, `//table/tbody/tr[@data-id]`))
	assert.Equal(t, 1, f.count(t, `//input[@id="center_name" and @value="Ber"]`))

	f.do(t, http.MethodGet, "/dashboard/search?action=clear")
	assert.Equal(t, 2, f.count(t, `//table/tbody/tr[@data-id]`))
	assert.Equal(t, 1, f.count(t, `//input[@id="center_name" and @value=""]`))
}

func TestTableControls(t *testing.T) {
	f := newDashboardFixture(t)

	assert.Equal(t, 1, f.count(t, `//th[@data-column="center_name"]//form[@method="post" and @action="/dashboard/table"]`))
	assert.Equal(t, 1, f.count(t, `//form[@action="/dashboard/table"]//input[@name="search"]`))
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(t, http.MethodGet, "/dashboard/table?order=center_name").Code)

	rec := f.postForm(t, "/dashboard/table", url.Values{
		"order":  {"center_name"},
		"dir":    {"desc"},
		"length": {"1"},
		"page":   {"2"},
	})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, 1, f.count(t, `//tr[@data-id="7"]`))
	assert.Equal(t, 1, f.count(t, `//th[@data-column="center_name" and @class="sorting_desc"]`))
}

func TestDetailViewLifecycle(t *testing.T) {
	f := newDashboardFixture(t)

	rec := f.do(t, http.MethodGet, "/dashboard/appointments/7/logs")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	loc := rec.Header().Get("Location")
	require.True(t, strings.HasPrefix(loc, "/#"+dashboard.ModalIDPrefix))
	modalID := strings.TrimPrefix(loc, "/#")

	assert.Equal(t, 1, f.count(t, `//div[@data-appointment-id="7" and @id="`+modalID+`"]//h5`))

	rec = f.do(t, http.MethodPost, "/dashboard/modals/"+modalID+"/dismiss")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, 0, f.count(t, `//div[starts-with(@id, "logsModal-")]`))

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/dashboard/modals/"+modalID+"/dismiss").Code)
	assert.Equal(t, http.StatusBadGateway, f.do(t, http.MethodGet, "/dashboard/appointments/999/logs").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/dashboard/appointments/x/logs").Code)
}

func TestLogsPage(t *testing.T) {
	f := newDashboardFixture(t)

	rec := f.do(t, http.MethodPost, "/dashboard/logs/refresh")
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	rec = f.do(t, http.MethodGet, "/logs")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "&lt;b&gt;check&lt;/b&gt; finished")
	assert.Contains(t, body, "No recent appointments found.")
	assert.Contains(t, body, "&#34;slots&#34;: [")
	assert.Contains(t, body, `<meta http-equiv="refresh" content="3600"/>`)
	assert.Contains(t, body, `action="/dashboard/logs/refresh"`)
}
