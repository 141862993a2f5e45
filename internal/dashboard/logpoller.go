package dashboard

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/schengenwatch/visadash/internal/dom"
	"github.com/schengenwatch/visadash/internal/model"
)

// Log regions of the logs page
const (
	RegionRecentAppointments = "recent-appointments"
	RegionResponses          = "response-changes"
	RegionLogs               = "all-logs"
)

// Poller states
const (
	PollerIdle     = "idle"
	PollerFetching = "fetching"
)

// Region outcomes
const (
	RegionRendered = "rendered"
	RegionFailed   = "failed"
	RegionStale    = "stale"
)

// DefaultLogPollInterval is the log refresh cadence
const DefaultLogPollInterval = 10 * time.Second

// LogSource serves the three log collections
type LogSource interface {
	RecentAppointments(ctx context.Context) ([]model.LogEntry, error)
	Responses(ctx context.Context) ([]model.ResponseChange, error)
	Logs(ctx context.Context) ([]model.LogEntry, error)
}

// RegionOutcome is the result of the last fetch of one region
type RegionOutcome struct {
	Region  string    `json:"region"`
	Status  string    `json:"status"`
	Entries int       `json:"entries"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// LogPollerOptions configures a LogPoller
type LogPollerOptions struct {
	Interval time.Duration
	// Workers bounds concurrent fetches across overlapping ticks
	Workers int
}

type logRegion struct {
	id      string
	empty   string
	failure string
	fetch   func(ctx context.Context) ([]*html.Node, int, error)
	stream  stream
}

// LogPoller refreshes the three log regions of a document on a fixed
// cadence. The regions are fetched independently; a failing fetch only
// affects its own region.
type LogPoller struct {
	src      LogSource
	doc      *dom.Document
	log      zerolog.Logger
	interval time.Duration
	pool     pond.Pool
	regions  []*logRegion

	mu       sync.Mutex
	inflight int
	ticks    uint64
	outcomes map[string]RegionOutcome
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// NewLogPoller creates a stopped poller rendering into doc
func NewLogPoller(src LogSource, doc *dom.Document, log zerolog.Logger, opts LogPollerOptions) *LogPoller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultLogPollInterval
	}
	if opts.Workers <= 0 {
		opts.Workers = 3
	}
	p := &LogPoller{
		src:      src,
		doc:      doc,
		log:      log.With().Str("component", "logpoller").Logger(),
		interval: opts.Interval,
		pool:     pond.NewPool(opts.Workers),
		outcomes: make(map[string]RegionOutcome, 3),
	}
	p.regions = []*logRegion{
		{
			id:      RegionRecentAppointments,
			empty:   "No recent appointments found.",
			failure: "Could not load recent appointments.",
			fetch: func(ctx context.Context) ([]*html.Node, int, error) {
				entries, err := p.src.RecentAppointments(ctx)
				if err != nil {
					return nil, 0, err
				}
				return messageNodes(entries), len(entries), nil
			},
		},
		{
			id:      RegionResponses,
			empty:   "No response changes found.",
			failure: "Could not load response changes.",
			fetch: func(ctx context.Context) ([]*html.Node, int, error) {
				changes, err := p.src.Responses(ctx)
				if err != nil {
					return nil, 0, err
				}
				return responseNodes(changes), len(changes), nil
			},
		},
		{
			id:      RegionLogs,
			empty:   "No logs available.",
			failure: "Could not load logs.",
			fetch: func(ctx context.Context) ([]*html.Node, int, error) {
				entries, err := p.src.Logs(ctx)
				if err != nil {
					return nil, 0, err
				}
				return messageNodes(entries), len(entries), nil
			},
		},
	}
	return p
}

// Interval returns the polling cadence
func (p *LogPoller) Interval() time.Duration {
	return p.interval
}

// Tick fetches and renders all three regions once and waits for them. It
// returns each region's outcome in region order; a region overtaken by a
// newer tick reports RegionStale.
func (p *LogPoller) Tick(ctx context.Context) []RegionOutcome {
	p.mu.Lock()
	p.inflight++
	p.ticks++
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.inflight--
		p.mu.Unlock()
	}()

	out := make([]RegionOutcome, len(p.regions))
	group := p.pool.NewGroup()
	for i, r := range p.regions {
		group.Submit(func() {
			out[i] = p.refreshRegion(ctx, r)
		})
	}
	if err := group.Wait(); err != nil {
		p.log.Error().Err(err).Msg("log poll tick aborted")
	}
	return out
}

func (p *LogPoller) refreshRegion(ctx context.Context, r *logRegion) RegionOutcome {
	seq := r.stream.next()
	nodes, n, err := r.fetch(ctx)

	outcome := RegionOutcome{Region: r.id, Status: RegionRendered, Entries: n}
	switch {
	case err != nil:
		p.log.Error().Err(err).Str("region", r.id).Msg("fetching log region failed")
		outcome.Status = RegionFailed
		outcome.Error = err.Error()
		nodes = []*html.Node{dom.TextElement("div", r.failure, "class", "text-danger")}
	case n == 0:
		nodes = []*html.Node{dom.TextElement("div", r.empty, "class", "text-muted")}
	}

	var renderErr error
	applied := r.stream.apply(seq, func() {
		renderErr = p.doc.ReplaceChildren(r.id, nodes...)
	})
	switch {
	case !applied:
		outcome.Status = RegionStale
	case renderErr != nil:
		p.log.Error().Err(renderErr).Str("region", r.id).Msg("rendering log region failed")
		outcome.Status = RegionFailed
		outcome.Error = renderErr.Error()
	}
	outcome.At = time.Now()

	p.mu.Lock()
	// a stale result never replaces the outcome of the newer fetch
	if outcome.Status != RegionStale {
		p.outcomes[r.id] = outcome
	}
	p.mu.Unlock()
	return outcome
}

// State reports whether a tick is in progress
func (p *LogPoller) State() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inflight > 0 {
		return PollerFetching
	}
	return PollerIdle
}

// LastOutcome returns the last applied outcome of a region
func (p *LogPoller) LastOutcome(region string) (RegionOutcome, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.outcomes[region]
	return o, ok
}

// Outcomes returns the last outcome of every region that has one
func (p *LogPoller) Outcomes() []RegionOutcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]RegionOutcome, 0, len(p.regions))
	for _, r := range p.regions {
		if o, ok := p.outcomes[r.id]; ok {
			out = append(out, o)
		}
	}
	return out
}

// Ticks returns the number of ticks started
func (p *LogPoller) Ticks() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ticks
}

// Start polls immediately and then on every interval until ctx is
// cancelled or Stop is called. Calling Start on a running poller is a no-op.
func (p *LogPoller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.pollLoop(ctx, p.done)
}

// Stop ends the polling loop, waits for the running tick and releases the
// worker pool. The poller cannot be restarted.
func (p *LogPoller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
	p.stopOnce.Do(p.pool.StopAndWait)
}

func (p *LogPoller) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	p.Tick(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

func messageNodes(entries []model.LogEntry) []*html.Node {
	nodes := make([]*html.Node, 0, len(entries))
	for _, e := range entries {
		nodes = append(nodes, dom.Append(dom.Element("div", "class", "log"),
			dom.TextElement("span", e.Timestamp, "class", "timestamp"),
			dom.TextElement("div", e.Message, "class", "log-text"),
		))
	}
	return nodes
}

func responseNodes(changes []model.ResponseChange) []*html.Node {
	nodes := make([]*html.Node, 0, len(changes))
	for _, c := range changes {
		nodes = append(nodes, dom.Append(dom.Element("div", "class", "log"),
			dom.TextElement("span", c.Timestamp, "class", "timestamp"),
			dom.TextElement("pre", PrettyJSON(c.Response), "class", "log-text"),
		))
	}
	return nodes
}

// PrettyJSON indents a JSON payload by two spaces. Payloads that are not
// valid JSON are returned unchanged.
func PrettyJSON(raw []byte) string {
	if len(raw) == 0 {
		return "null"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
