package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schengenwatch/visadash/internal/dom"
	"github.com/schengenwatch/visadash/internal/model"
)

func newTestReconciler(b *fakeBackend) (*Reconciler, *dom.Document) {
	doc := NewHomeDocument()
	r := NewReconciler(b, doc, zerolog.Nop(), ReconcilerOptions{
		MountID:    AppointmentsMountID,
		Columns:    AppointmentColumns(time.UTC),
		PageLength: 10,
	})
	return r, doc
}

func TestRefreshIsIdempotent(t *testing.T) {
	b := &fakeBackend{rows: sampleRows}
	r, doc := newTestReconciler(b)
	ctx := context.Background()
	q := model.FilterQuery{model.FieldCenterName: "Berlin"}

	require.NoError(t, r.Refresh(ctx, q))
	once := r.Table().Rows()
	onceHTML := doc.OuterHTML(AppointmentsMountID)

	require.NoError(t, r.Refresh(ctx, q))
	assert.Equal(t, once, r.Table().Rows())
	assert.Equal(t, onceHTML, doc.OuterHTML(AppointmentsMountID))
	assert.Equal(t, q, b.lastQuery())
}

func TestSingleWidgetAfterManyRefreshes(t *testing.T) {
	b := &fakeBackend{rows: sampleRows}
	r, doc := newTestReconciler(b)
	ctx := context.Background()

	require.NoError(t, r.Refresh(ctx, model.FilterQuery{}))
	first := r.Table()
	for i := 0; i < 5; i++ {
		b.setRows(sampleRows[:i%3+1])
		require.NoError(t, r.Refresh(ctx, model.FilterQuery{}))
	}

	assert.Same(t, first, r.Table())
	assert.Equal(t, 1, doc.Count(`//div[@id="appointments-table"]/div[@class="dataTables_wrapper"]`))
	assert.Equal(t, 1, doc.Count(`//table`))
	assert.Equal(t, 1, doc.Count(`//thead`))
	assert.Equal(t, 1, doc.Count(`//div[@id="appointments-table" and @data-widget="datatable"]`))
}

func TestSuggestionsFollowLatestRows(t *testing.T) {
	b := &fakeBackend{rows: sampleRows}
	r, doc := newTestReconciler(b)
	ctx := context.Background()

	require.NoError(t, r.Refresh(ctx, model.FilterQuery{}))
	assert.Equal(t, []string{"Ankara", "Berlin"}, r.Autocomplete(model.FieldCenterName).Source())
	assert.Equal(t, []string{"Business", "Tourist"}, r.Autocomplete(model.FieldVisaCategory).Source())
	assert.Equal(t, []string{"Turkey"}, r.Autocomplete(model.FieldSourceCountry).Source())
	assert.Empty(t, r.Autocomplete(model.FieldMissionCountry).Source())
	assert.Equal(t, 2, doc.Count(`//datalist[@id="center_name-options"]/option`))

	b.setRows(sampleRows[:1])
	require.NoError(t, r.Refresh(ctx, model.FilterQuery{}))
	assert.Equal(t, []string{"Berlin"}, r.Autocomplete(model.FieldCenterName).Source())
	assert.Empty(t, r.Autocomplete(model.FieldSourceCountry).Source())
	assert.Equal(t, 1, doc.Count(`//datalist[@id="center_name-options"]/option`))
	assert.Equal(t, 1, doc.Count(`//datalist[@id="center_name-options"]/option[@value="Berlin"]`))
}

func TestFailedRefreshKeepsLastGoodRows(t *testing.T) {
	b := &fakeBackend{rows: sampleRows}
	r, _ := newTestReconciler(b)
	ctx := context.Background()

	require.NoError(t, r.Refresh(ctx, model.FilterQuery{}))
	before := r.Table().Rows()

	boom := errors.New("connection refused")
	b.setRowsErr(boom)
	err := r.Refresh(ctx, model.FilterQuery{model.FieldCenterName: "Berlin"})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, before, r.Table().Rows())

	entries := r.History().Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, RefreshFailed, entries[0].Status)
	assert.Equal(t, "connection refused", entries[0].Error)
	assert.Equal(t, RefreshApplied, entries[1].Status)
	assert.Equal(t, 3, entries[1].Rows)
}

func TestFailedFirstRefreshLeavesMountEmpty(t *testing.T) {
	b := &fakeBackend{rowsErr: errors.New("timeout")}
	r, doc := newTestReconciler(b)

	require.Error(t, r.Refresh(context.Background(), model.FilterQuery{}))
	assert.Nil(t, r.Table())
	assert.Equal(t, 0, doc.Count(`//table`))
	assert.Equal(t, 0, doc.Count(`//div[@data-widget]`))
}

func TestOlderResponseIsDropped(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	stale := []model.Appointment{{UniqueAppointmentID: 1, CenterName: "Stale", LastChecked: "2024-01-01"}}
	fresh := []model.Appointment{{UniqueAppointmentID: 2, CenterName: "Fresh", LastChecked: "2024-01-02"}}

	b := &fakeBackend{}
	b.filtered = func(_ context.Context, q model.FilterQuery) ([]model.Appointment, error) {
		if q[model.FieldCenterName] == "old" {
			close(started)
			<-release
			return stale, nil
		}
		return fresh, nil
	}
	r, _ := newTestReconciler(b)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		done <- r.Refresh(ctx, model.FilterQuery{model.FieldCenterName: "old"})
	}()
	<-started

	require.NoError(t, r.Refresh(ctx, model.FilterQuery{model.FieldCenterName: "new"}))
	close(release)
	require.NoError(t, <-done)

	rows := r.Table().Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "Fresh", rows[0][0])
	assert.Equal(t, []string{"Fresh"}, r.Autocomplete(model.FieldCenterName).Source())

	entries := r.History().Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(2), entries[0].Seq)
	assert.Equal(t, RefreshApplied, entries[0].Status)
	assert.Equal(t, uint64(1), entries[1].Seq)
	assert.Equal(t, RefreshStale, entries[1].Status)
}

func TestPrimeSuggestionsBeforeFirstRefresh(t *testing.T) {
	b := &fakeBackend{
		rows: sampleRows[:1],
		options: map[string][]string{
			model.FieldCenterName:   {"Ankara", "Berlin", "Istanbul"},
			model.FieldVisaCategory: {"Tourist"},
		},
	}
	r, doc := newTestReconciler(b)
	ctx := context.Background()

	require.NoError(t, r.PrimeSuggestions(ctx))
	assert.Equal(t, []string{"Ankara", "Berlin", "Istanbul"}, r.Autocomplete(model.FieldCenterName).Source())
	assert.Equal(t, 3, doc.Count(`//datalist[@id="center_name-options"]/option`))

	// after a refresh the suggestions come from the rows
	require.NoError(t, r.Refresh(ctx, model.FilterQuery{}))
	require.NoError(t, r.PrimeSuggestions(ctx))
	assert.Equal(t, []string{"Berlin"}, r.Autocomplete(model.FieldCenterName).Source())
}

func TestPrimeSuggestionsReportsErrors(t *testing.T) {
	b := &fakeBackend{optionsErr: errors.New("backend down")}
	r, _ := newTestReconciler(b)
	assert.Error(t, r.PrimeSuggestions(context.Background()))
}

func TestRedrawBeforeInitialize(t *testing.T) {
	r, _ := newTestReconciler(&fakeBackend{})
	assert.NoError(t, r.Redraw())
}
