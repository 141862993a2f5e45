package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/schengenwatch/visadash/internal/client"
	"github.com/schengenwatch/visadash/internal/dashboard"
	"github.com/schengenwatch/visadash/internal/diag"
	"github.com/schengenwatch/visadash/internal/model"
)

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.view.RenderHome(w); err != nil {
		s.log.Error().Err(err).Msg("rendering home page failed")
	}
}

func (s *Server) handleLogsPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.view.RenderLogs(w); err != nil {
		s.log.Error().Err(err).Msg("rendering logs page failed")
	}
}

// handleSearch receives the filter form. Refresh failures are logged by the
// reconciler and leave the table as it was, so the page is shown either way.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	filters := s.view.Filters

	var err error
	if params.Get("action") == "clear" {
		err = filters.Clear(r.Context())
	} else {
		for _, f := range model.FilterFields {
			_ = filters.SetInput(f, params.Get(f))
		}
		_, err = filters.HandleKey(r.Context(), dashboard.KeyEnter)
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("filter refresh failed")
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleTable applies the table control forms: search, order, dir, page
// (1-based) and length. It mutates the shared table, so it only accepts POST.
func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	table := s.view.Table.Table()
	if table == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}
	params := r.PostForm
	if params.Has("search") {
		table.Search(params.Get("search"))
	}
	if key := params.Get("order"); key != "" {
		table.Order(key, params.Get("dir") == "desc")
	}
	if n, err := strconv.Atoi(params.Get("length")); err == nil {
		table.SetPageLength(n)
	}
	if p, err := strconv.Atoi(params.Get("page")); err == nil {
		table.SetPage(p - 1)
	}

	if err := s.view.Table.Redraw(); err != nil {
		s.log.Error().Err(err).Msg("redrawing table failed")
		writeError(w, http.StatusInternalServerError, "failed to redraw table")
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleOpenDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}
	modalID, err := s.view.Detail.Open(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to load appointment logs")
		return
	}
	http.Redirect(w, r, "/#"+modalID, http.StatusSeeOther)
}

func (s *Server) handleDismissDetail(w http.ResponseWriter, r *http.Request) {
	if !s.view.Detail.Dismiss(r.PathValue("id")) {
		writeError(w, http.StatusNotFound, "modal not found")
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogRefresh(w http.ResponseWriter, r *http.Request) {
	s.view.Poller.Tick(r.Context())
	http.Redirect(w, r, "/logs", http.StatusSeeOther)
}

type diagnostics struct {
	Uptime      string                    `json:"uptime"`
	Backend     *client.ConnectionStatus  `json:"backend,omitempty"`
	PollerState string                    `json:"poller_state,omitempty"`
	LogRegions  []dashboard.RegionOutcome `json:"log_regions,omitempty"`
	Refreshes   []dashboard.RefreshRecord `json:"refreshes,omitempty"`
	Logs        []diag.LogEntry           `json:"logs"`
}

func (s *Server) collectDiagnostics(r *http.Request) diagnostics {
	d := diagnostics{
		Uptime: time.Since(s.started).Round(time.Second).String(),
		Logs:   []diag.LogEntry{},
	}
	if s.conn != nil {
		status := s.conn()
		d.Backend = &status
	}
	if s.view != nil {
		d.PollerState = s.view.Poller.State()
		d.LogRegions = s.view.Poller.Outcomes()
		d.Refreshes = s.view.Table.History().Entries()
	}
	if s.logBuf != nil {
		var levels []string
		if lv := r.URL.Query().Get("level"); lv != "" {
			levels = strings.Split(lv, ",")
		}
		d.Logs = s.logBuf.Entries(levels)
	}
	return d
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.collectDiagnostics(r))
}

func (s *Server) handleClearDiagnostics(w http.ResponseWriter, r *http.Request) {
	if s.logBuf != nil {
		s.logBuf.Clear()
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleDiagnosticsPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := diagnosticsTemplate.Execute(w, s.collectDiagnostics(r)); err != nil {
		s.log.Error().Err(err).Msg("rendering diagnostics page failed")
	}
}
