package api

import (
	"net/http"
	"strings"
)

const (
	defaultCycleLimit = 50
	maxCycleLimit     = 500

	defaultAlarmHistoryLimit = 100
)

// handleListCycles returns the collector's recent poll cycles, newest
// first.
//
// Query parameters:
//   - limit: maximum number of cycles (optional, default 50)
func (s *Server) handleListCycles(w http.ResponseWriter, r *http.Request) {
	limit, err := parseIntParam(r.URL.Query().Get("limit"), defaultCycleLimit)
	if err != nil || limit < 1 || limit > maxCycleLimit {
		writeBadRequest(w, "invalid limit")
		return
	}

	cycles, err := s.journal.RecentCycles(r.Context(), limit)
	if err != nil {
		writeInternalError(w, "failed to load poll cycles")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"cycles": cycles,
		"count":  len(cycles),
	})
}

// handleListAlarms returns active alarms, or the full alarm history when
// history=true is given.
func (s *Server) handleListAlarms(w http.ResponseWriter, r *http.Request) {
	if strings.EqualFold(r.URL.Query().Get("history"), "true") {
		limit, err := parseIntParam(r.URL.Query().Get("limit"), defaultAlarmHistoryLimit)
		if err != nil || limit < 1 || limit > maxCycleLimit {
			writeBadRequest(w, "invalid limit")
			return
		}

		alarms, err := s.journal.AlarmHistory(r.Context(), limit)
		if err != nil {
			writeInternalError(w, "failed to load alarm history")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"alarms": alarms,
			"count":  len(alarms),
		})
		return
	}

	alarms, err := s.journal.ActiveAlarms(r.Context())
	if err != nil {
		writeInternalError(w, "failed to load active alarms")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"alarms": alarms,
		"count":  len(alarms),
	})
}
