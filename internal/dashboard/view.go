// Package dashboard keeps the appointment and log pages in step with the
// appointment endpoints. Pages are in-memory documents; user actions such
// as submitting the filter form or opening a detail view are method calls
// that mutate them.
package dashboard

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/schengenwatch/visadash/internal/dom"
)

// Backend serves everything the dashboard reads
type Backend interface {
	AppointmentSource
	FragmentSource
	LogSource
}

// ViewOptions configures a View
type ViewOptions struct {
	PageLength      int
	Location        *time.Location
	LogPollInterval time.Duration
	// RefreshSchedule re-submits the current filters; empty disables it
	RefreshSchedule string
	Workers         int
	HistorySize     int
	// RequestTimeout bounds background refreshes
	RequestTimeout time.Duration
}

// View owns the home and logs pages and the components acting on them
type View struct {
	home *dom.Document
	logs *dom.Document

	Filters *FilterController
	Table   *Reconciler
	Detail  *DetailView
	Poller  *LogPoller

	schedule *Schedule
	log      zerolog.Logger
	timeout  time.Duration

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewView wires the dashboard components to backend
func NewView(backend Backend, log zerolog.Logger, opts ViewOptions) (*View, error) {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = 50
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	if opts.LogPollInterval <= 0 {
		opts.LogPollInterval = DefaultLogPollInterval
	}

	v := &View{
		home:     NewHomeDocument(),
		logs:     NewLogsDocument(opts.LogPollInterval),
		schedule: NewSchedule(log),
		log:      log.With().Str("component", "view").Logger(),
		timeout:  opts.RequestTimeout,
	}
	v.Table = NewReconciler(backend, v.home, log, ReconcilerOptions{
		MountID:    AppointmentsMountID,
		Columns:    AppointmentColumns(opts.Location),
		PageLength: opts.PageLength,
		History:    NewRefreshHistory(opts.HistorySize),
	})
	v.Filters = NewFilterController(v.home, v.Table, log)
	v.Detail = NewDetailView(backend, v.home, log)
	v.Poller = NewLogPoller(backend, v.logs, log, LogPollerOptions{
		Interval: opts.LogPollInterval,
		Workers:  opts.Workers,
	})

	if opts.RefreshSchedule != "" {
		if err := v.schedule.Add(opts.RefreshSchedule, v.scheduledRefresh); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Start loads the home page, then starts the log poller and the refresh
// schedule. A failed first load is logged; the next refresh retries.
func (v *View) Start(ctx context.Context) {
	v.mu.Lock()
	v.ctx, v.cancel = context.WithCancel(ctx)
	runCtx := v.ctx
	v.mu.Unlock()

	loadCtx, cancel := context.WithTimeout(runCtx, v.timeout)
	if err := v.Filters.Load(loadCtx); err != nil {
		v.log.Warn().Err(err).Msg("initial appointment load failed")
	}
	cancel()

	v.Poller.Start(runCtx)
	v.schedule.Start()
	v.log.Info().
		Dur("log_poll_interval", v.Poller.Interval()).
		Int("scheduled_jobs", v.schedule.Len()).
		Msg("dashboard started")
}

// Stop cancels the background work and waits for it
func (v *View) Stop() {
	v.schedule.Stop()
	v.Poller.Stop()
	v.mu.Lock()
	if v.cancel != nil {
		v.cancel()
	}
	v.mu.Unlock()
	v.log.Info().Msg("dashboard stopped")
}

func (v *View) scheduledRefresh() {
	v.mu.Lock()
	parent := v.ctx
	v.mu.Unlock()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, v.timeout)
	defer cancel()
	// failures are logged and recorded by the reconciler
	_ = v.Filters.Submit(ctx)
}

// Home returns the appointments page
func (v *View) Home() *dom.Document {
	return v.home
}

// Logs returns the logs page
func (v *View) Logs() *dom.Document {
	return v.logs
}

// RenderHome writes the appointments page
func (v *View) RenderHome(w io.Writer) error {
	return v.home.Render(w)
}

// RenderLogs writes the logs page
func (v *View) RenderLogs(w io.Writer) error {
	return v.logs.Render(w)
}
