package dashboard

import (
	"context"
	"sync"

	"github.com/schengenwatch/visadash/internal/model"
)

// fakeBackend serves canned data. The func fields override the canned
// answers when set.
type fakeBackend struct {
	mu sync.Mutex

	rows     []model.Appointment
	rowsErr  error
	filtered func(ctx context.Context, q model.FilterQuery) ([]model.Appointment, error)
	queries  []model.FilterQuery

	options    map[string][]string
	optionsErr error

	fragment    string
	fragmentErr error

	recent       []model.LogEntry
	recentErr    error
	responses    []model.ResponseChange
	responsesErr error
	logs         []model.LogEntry
	logsErr      error
	logsFn       func(ctx context.Context, call int) ([]model.LogEntry, error)
	logCalls     int
}

func (b *fakeBackend) FilteredAppointments(ctx context.Context, q model.FilterQuery) ([]model.Appointment, error) {
	b.mu.Lock()
	b.queries = append(b.queries, q)
	fn, rows, err := b.filtered, b.rows, b.rowsErr
	b.mu.Unlock()
	if fn != nil {
		return fn(ctx, q)
	}
	return rows, err
}

func (b *fakeBackend) FilterOptions(_ context.Context, column string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.optionsErr != nil {
		return nil, b.optionsErr
	}
	return b.options[column], nil
}

func (b *fakeBackend) LogsModal(_ context.Context, _ int64) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fragment, b.fragmentErr
}

func (b *fakeBackend) RecentAppointments(context.Context) ([]model.LogEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.recent, b.recentErr
}

func (b *fakeBackend) Responses(context.Context) ([]model.ResponseChange, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.responses, b.responsesErr
}

func (b *fakeBackend) Logs(ctx context.Context) ([]model.LogEntry, error) {
	b.mu.Lock()
	b.logCalls++
	fn, call, logs, err := b.logsFn, b.logCalls, b.logs, b.logsErr
	b.mu.Unlock()
	if fn != nil {
		return fn(ctx, call)
	}
	return logs, err
}

func (b *fakeBackend) setRows(rows []model.Appointment) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rows = rows
	b.rowsErr = nil
}

func (b *fakeBackend) setRowsErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rowsErr = err
}

func (b *fakeBackend) lastQuery() model.FilterQuery {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queries) == 0 {
		return nil
	}
	return b.queries[len(b.queries)-1]
}

func (b *fakeBackend) logFetches() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.logCalls
}

var sampleRows = []model.Appointment{
	{
		UniqueAppointmentID: 7,
		CenterName:          "Berlin",
		VisaCategory:        "Tourist",
		AppointmentDate:     "2024-05-01",
		LastChecked:         "2024-04-20T10:00:00Z",
		PeopleLooking:       3,
	},
	{
		UniqueAppointmentID: 8,
		CenterName:          "Ankara",
		VisaCategory:        "Business",
		VisaSubcategory:     "Short Stay",
		SourceCountry:       "Turkey",
		MissionCountry:      "Germany",
		LastChecked:         "2024-04-21T08:30:00Z",
		BookNowLink:         "https://visa.example.com/book",
	},
	{
		UniqueAppointmentID: 9,
		CenterName:          "Berlin",
		VisaCategory:        "Business",
		SourceCountry:       " ",
		LastChecked:         "2024-04-19T12:00:00Z",
	},
}
