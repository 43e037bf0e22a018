package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/seafront-labs/aquamon/internal/observability/metrics"
	"github.com/seafront-labs/aquamon/internal/query"
)

// maxQueryParamLen bounds user-supplied query parameters.
const maxQueryParamLen = 128

// handleGetReadings returns the history of one or more metrics over a
// window, each downsampled to at most `resolution` points.
//
// Query parameters:
//   - metrics: comma-separated metric keys from the catalog (required)
//   - start, end: RFC 3339 timestamps or unix seconds (required)
//   - resolution: maximum number of points per metric (optional)
//
// Any unknown metric fails the whole request; a valid metric with no
// data in the window yields an empty point list, not an error.
func (s *Server) handleGetReadings(w http.ResponseWriter, r *http.Request) {
	keys, err := parseMetricsParam(r)
	if err != nil {
		metrics.IncQueryRequest("readings", metrics.ResultError)
		writeBadRequest(w, err.Error())
		return
	}

	start, end, err := parseWindowParams(r)
	if err != nil {
		metrics.IncQueryRequest("readings", metrics.ResultError)
		writeBadRequest(w, err.Error())
		return
	}

	resolution, err := parseIntParam(r.URL.Query().Get("resolution"), 0)
	if err != nil {
		metrics.IncQueryRequest("readings", metrics.ResultError)
		writeBadRequest(w, "invalid resolution")
		return
	}

	results := make([]*query.RangeResult, 0, len(keys))
	for _, metric := range keys {
		result, err := s.service.Range(r.Context(), query.RangeRequest{
			Metric:     metric,
			Start:      start,
			End:        end,
			Resolution: resolution,
		})
		if err != nil {
			metrics.IncQueryRequest("readings", metrics.ResultError)
			writeQueryError(w, err)
			return
		}
		results = append(results, result)
	}

	metrics.IncQueryRequest("readings", metrics.ResultSuccess)
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"count":   len(results),
	})
}

// handleGetLatest returns the most recent stored value of every metric.
func (s *Server) handleGetLatest(w http.ResponseWriter, r *http.Request) {
	results, err := s.service.Latest(r.Context())
	if err != nil {
		metrics.IncQueryRequest("latest", metrics.ResultError)
		writeQueryError(w, err)
		return
	}

	metrics.IncQueryRequest("latest", metrics.ResultSuccess)
	writeJSON(w, http.StatusOK, map[string]any{
		"readings": results,
		"count":    len(results),
	})
}

// catalogEntry is the discovery view of one metric, taken straight from
// the decode table so documentation cannot drift from decoding.
type catalogEntry struct {
	Metric  string `json:"metric"`
	Label   string `json:"label"`
	Unit    string `json:"unit,omitempty"`
	Series  string `json:"series"`
	Divisor int64  `json:"divisor"`
}

// handleGetCatalog lists the metrics the sensor reports.
func (s *Server) handleGetCatalog(w http.ResponseWriter, _ *http.Request) {
	mappings := s.service.Catalog()
	entries := make([]catalogEntry, 0, len(mappings))
	for _, m := range mappings {
		entries = append(entries, catalogEntry{
			Metric:  m.Metric,
			Label:   m.Label,
			Unit:    m.Unit,
			Series:  m.Series,
			Divisor: m.Divisor,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"metrics": entries,
		"count":   len(entries),
	})
}

// parseMetricsParam reads the required metrics list. "metric" is
// accepted as an alias for single-metric callers.
func parseMetricsParam(r *http.Request) ([]string, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("metrics"))
	if raw == "" {
		raw = strings.TrimSpace(r.URL.Query().Get("metric"))
	}
	if raw == "" || len(raw) > maxQueryParamLen {
		return nil, fmt.Errorf("metrics is required")
	}

	var keys []string
	for _, key := range strings.Split(raw, ",") {
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("empty metric in list %q", raw)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// parseWindowParams reads the required start/end query parameters.
func parseWindowParams(r *http.Request) (time.Time, time.Time, error) {
	start, err := parseTimeParam(r.URL.Query().Get("start"))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start: %w", err)
	}
	end, err := parseTimeParam(r.URL.Query().Get("end"))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end: %w", err)
	}
	return start, end, nil
}

// parseTimeParam accepts RFC 3339 timestamps or unix seconds.
func parseTimeParam(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" || len(value) > maxQueryParamLen {
		return time.Time{}, fmt.Errorf("timestamp is required")
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("want RFC 3339 or unix seconds, got %q", value)
}

// parseIntParam parses an optional integer query parameter.
func parseIntParam(value string, defaultVal int) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return n, nil
}
