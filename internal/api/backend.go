package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/schengenwatch/visadash/internal/model"
	"github.com/schengenwatch/visadash/internal/store"
)

func (s *Server) handleFilteredAppointments(w http.ResponseWriter, r *http.Request) {
	q := model.FilterQueryFromValues(r.URL.Query())
	rows, err := s.backend.FilteredAppointments(r.Context(), q)
	if err != nil {
		s.log.Error().Err(err).Str("query", q.String()).Msg("querying appointments failed")
		writeError(w, http.StatusInternalServerError, "failed to load appointments")
		return
	}
	if rows == nil {
		rows = []model.Appointment{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleFilterOptions(w http.ResponseWriter, r *http.Request) {
	column := r.URL.Query().Get("column")
	values, err := s.backend.FilterOptions(r.Context(), column)
	switch {
	case errors.Is(err, store.ErrInvalidColumn):
		writeError(w, http.StatusBadRequest, "invalid column: "+column)
		return
	case err != nil:
		s.log.Error().Err(err).Str("column", column).Msg("querying filter options failed")
		writeError(w, http.StatusInternalServerError, "failed to load filter options")
		return
	}
	if values == nil {
		values = []string{}
	}
	writeJSON(w, http.StatusOK, values)
}

func (s *Server) handleLogsModal(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("appointment_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "appointment_id must be an integer")
		return
	}
	history, err := s.backend.AppointmentHistory(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "appointment not found")
		return
	case err != nil:
		s.log.Error().Err(err).Int64("appointment_id", id).Msg("querying appointment history failed")
		writeError(w, http.StatusInternalServerError, "failed to load appointment logs")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := logsModalTemplate.Execute(w, history); err != nil {
		s.log.Error().Err(err).Int64("appointment_id", id).Msg("rendering logs modal failed")
	}
}

func (s *Server) handleRecentAppointments(w http.ResponseWriter, r *http.Request) {
	entries, err := s.backend.RecentAppointments(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("querying recent appointments failed")
		writeError(w, http.StatusInternalServerError, "failed to load recent appointments")
		return
	}
	writeEntries(w, entries)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := s.backend.Logs(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("querying logs failed")
		writeError(w, http.StatusInternalServerError, "failed to load logs")
		return
	}
	writeEntries(w, entries)
}

func (s *Server) handleResponses(w http.ResponseWriter, r *http.Request) {
	changes, err := s.backend.Responses(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("querying responses failed")
		writeError(w, http.StatusInternalServerError, "failed to load responses")
		return
	}
	if changes == nil {
		changes = []model.ResponseChange{}
	}
	writeJSON(w, http.StatusOK, changes)
}

func writeEntries(w http.ResponseWriter, entries []model.LogEntry) {
	if entries == nil {
		entries = []model.LogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
