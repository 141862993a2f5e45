package dashboard

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/schengenwatch/visadash/internal/dom"
	"github.com/schengenwatch/visadash/internal/model"
)

// AppointmentSource serves appointment rows and filter values
type AppointmentSource interface {
	FilteredAppointments(ctx context.Context, q model.FilterQuery) ([]model.Appointment, error)
	FilterOptions(ctx context.Context, column string) ([]string, error)
}

// ReconcilerOptions configures a Reconciler
type ReconcilerOptions struct {
	MountID    string
	Columns    []Column
	PageLength int
	History    *RefreshHistory
}

// Reconciler keeps the appointment table in step with the latest response.
// The table widget is created by the first applied refresh and only has its
// rows swapped afterwards.
type Reconciler struct {
	src     AppointmentSource
	doc     *dom.Document
	log     zerolog.Logger
	opts    ReconcilerOptions
	history *RefreshHistory

	stream stream
	// table is guarded by stream.mu
	table *DataTable

	autocompletes map[string]*Autocomplete
}

// NewReconciler creates a reconciler rendering into doc
func NewReconciler(src AppointmentSource, doc *dom.Document, log zerolog.Logger, opts ReconcilerOptions) *Reconciler {
	if opts.History == nil {
		opts.History = NewRefreshHistory(50)
	}
	if opts.Columns == nil {
		opts.Columns = AppointmentColumns(time.UTC)
	}
	r := &Reconciler{
		src:           src,
		doc:           doc,
		log:           log.With().Str("component", "reconciler").Logger(),
		opts:          opts,
		history:       opts.History,
		autocompletes: make(map[string]*Autocomplete, len(model.FilterFields)),
	}
	for _, f := range model.FilterFields {
		r.autocompletes[f] = NewAutocomplete(f, 0)
	}
	return r
}

// Refresh fetches the rows matching q and applies them, unless a response
// to a later Refresh was applied first. Fetch failures are logged and
// returned; the table keeps its previous rows.
func (r *Reconciler) Refresh(ctx context.Context, q model.FilterQuery) error {
	seq := r.stream.next()
	r.history.Add(RefreshRecord{
		Seq:       seq,
		Query:     q.String(),
		Status:    RefreshPending,
		StartedAt: time.Now(),
	})

	rows, err := r.src.FilteredAppointments(ctx, q)
	if err != nil {
		r.log.Error().Err(err).Uint64("seq", seq).Str("query", q.String()).Msg("fetching appointments failed")
		r.history.Complete(seq, RefreshFailed, 0, err.Error())
		return err
	}

	var applyErr error
	applied := r.stream.apply(seq, func() {
		if r.table == nil {
			applyErr = r.initialize(rows)
		} else {
			applyErr = r.update(rows)
		}
		if applyErr == nil {
			applyErr = r.rebindSuggestions(rows)
		}
	})

	switch {
	case !applied:
		r.log.Debug().Uint64("seq", seq).Msg("dropping response older than the displayed one")
		r.history.Complete(seq, RefreshStale, len(rows), "")
		return nil
	case applyErr != nil:
		r.log.Error().Err(applyErr).Uint64("seq", seq).Msg("rendering appointments failed")
		r.history.Complete(seq, RefreshFailed, len(rows), applyErr.Error())
		return applyErr
	}

	r.log.Debug().Uint64("seq", seq).Int("rows", len(rows)).Str("query", q.String()).Msg("appointments refreshed")
	r.history.Complete(seq, RefreshApplied, len(rows), "")
	return nil
}

// initialize builds the table widget; it runs once per page
func (r *Reconciler) initialize(rows []model.Appointment) error {
	t, err := NewDataTable(r.doc, r.opts.MountID, r.opts.Columns, TableOptions{
		PageLength:  r.opts.PageLength,
		OrderColumn: ColumnLastChecked,
		OrderDesc:   true,
	})
	if err != nil {
		return err
	}
	r.table = t
	t.Add(rows...)
	return t.Draw()
}

// update swaps the rows of the existing widget
func (r *Reconciler) update(rows []model.Appointment) error {
	r.table.Clear()
	r.table.Add(rows...)
	return r.table.Draw()
}

func (r *Reconciler) rebindSuggestions(rows []model.Appointment) error {
	var errs []error
	for field, values := range DeriveSuggestions(rows) {
		ac := r.autocompletes[field]
		ac.SetSource(values)
		if err := ac.renderDatalist(r.doc); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PrimeSuggestions loads the full option lists from the backend so the
// inputs have suggestions before the first response arrives. Once a refresh
// has been applied its derived suggestions take precedence.
func (r *Reconciler) PrimeSuggestions(ctx context.Context) error {
	var errs []error
	for _, f := range model.FilterFields {
		values, err := r.src.FilterOptions(ctx, f)
		if err != nil {
			r.log.Warn().Err(err).Str("field", f).Msg("loading filter options failed")
			errs = append(errs, err)
			continue
		}
		r.stream.mu.Lock()
		if r.table == nil {
			ac := r.autocompletes[f]
			ac.SetSource(values)
			if err := ac.renderDatalist(r.doc); err != nil {
				errs = append(errs, err)
			}
		}
		r.stream.mu.Unlock()
	}
	return errors.Join(errs...)
}

// Table returns the widget, or nil before the first applied refresh
func (r *Reconciler) Table() *DataTable {
	r.stream.mu.Lock()
	defer r.stream.mu.Unlock()
	return r.table
}

// Redraw renders the widget again after a sort, search or page change
func (r *Reconciler) Redraw() error {
	r.stream.mu.Lock()
	defer r.stream.mu.Unlock()
	if r.table == nil {
		return nil
	}
	return r.table.Draw()
}

// Autocomplete returns the suggestion control of a filter field
func (r *Reconciler) Autocomplete(field string) *Autocomplete {
	return r.autocompletes[field]
}

// History returns the refresh history
func (r *Reconciler) History() *RefreshHistory {
	return r.history
}
