package tsdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Sample is one timestamped value from a query result.
type Sample struct {
	Time  time.Time
	Value float64
}

// Series is one result series: its identifying labels and its samples in
// ascending time order (the order the store returns them).
type Series struct {
	Labels  map[string]string
	Samples []Sample
}

// QueryRange executes a PromQL range query and returns the matrix result.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - query: PromQL query string
//   - start: Start time for the range (inclusive)
//   - end: End time for the range (inclusive)
//   - step: Query resolution step
//
// Returns:
//   - []Series: One entry per matching series, possibly empty
//   - error: nil on success, otherwise ErrQueryFailed or a validation error
func (c *Client) QueryRange(ctx context.Context, query string, start, end time.Time, step time.Duration) ([]Series, error) {
	if c == nil || !c.IsConnected() {
		return nil, ErrNotConnected
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("tsdb query is required")
	}
	if step <= 0 {
		return nil, fmt.Errorf("step must be positive")
	}
	if end.Before(start) {
		return nil, fmt.Errorf("end must be after start")
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("start", formatUnixSeconds(start))
	params.Set("end", formatUnixSeconds(end))
	params.Set("step", formatStepSeconds(step))

	body, err := c.doQuery(ctx, "/api/v1/query_range", params)
	if err != nil {
		return nil, err
	}
	return parsePromResponse(body, "matrix")
}

// QueryInstant executes a PromQL instant query and returns the vector
// result.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - query: PromQL query string
//
// Returns:
//   - []Series: One entry per matching series, each with a single sample
//   - error: nil on success, otherwise ErrQueryFailed or a validation error
func (c *Client) QueryInstant(ctx context.Context, query string) ([]Series, error) {
	if c == nil || !c.IsConnected() {
		return nil, ErrNotConnected
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("tsdb query is required")
	}

	params := url.Values{}
	params.Set("query", query)

	body, err := c.doQuery(ctx, "/api/v1/query", params)
	if err != nil {
		return nil, err
	}
	return parsePromResponse(body, "vector")
}

// doQuery executes a query request and returns the raw response body.
func (c *Client) doQuery(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := c.url + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	defer resp.Body.Close()

	const maxResponseSize = 10 << 20 // 10 MB
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrQueryFailed, resp.StatusCode, truncate(body, 200))
	}

	return body, nil
}

// promResponse is the Prometheus query API envelope.
type promResponse struct {
	Status string `json:"status"`
	Data   struct {
		ResultType string `json:"resultType"`
		Result     []struct {
			Metric map[string]string `json:"metric"`
			Values [][2]any          `json:"values"` // matrix
			Value  [2]any            `json:"value"`  // vector
		} `json:"result"`
	} `json:"data"`
	Error string `json:"error"`
}

// parsePromResponse decodes a Prometheus API payload into typed series.
// Samples arrive as [unix_seconds, "value"] pairs with the value as a
// string; both halves are converted here so callers never see the raw
// encoding.
func parsePromResponse(body []byte, wantType string) ([]Series, error) {
	var pr promResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, fmt.Errorf("%w: undecodable response: %w", ErrQueryFailed, err)
	}
	if pr.Status != "success" {
		return nil, fmt.Errorf("%w: %s", ErrQueryFailed, pr.Error)
	}
	if pr.Data.ResultType != wantType {
		return nil, fmt.Errorf("%w: unexpected result type %q", ErrQueryFailed, pr.Data.ResultType)
	}

	series := make([]Series, 0, len(pr.Data.Result))
	for _, r := range pr.Data.Result {
		s := Series{Labels: r.Metric}

		pairs := r.Values
		if wantType == "vector" {
			pairs = [][2]any{r.Value}
		}

		s.Samples = make([]Sample, 0, len(pairs))
		for _, pair := range pairs {
			sample, err := parseSample(pair)
			if err != nil {
				return nil, err
			}
			s.Samples = append(s.Samples, sample)
		}
		series = append(series, s)
	}
	return series, nil
}

// parseSample converts one [timestamp, "value"] pair.
func parseSample(pair [2]any) (Sample, error) {
	ts, ok := pair[0].(float64)
	if !ok {
		return Sample{}, fmt.Errorf("%w: non-numeric timestamp %v", ErrQueryFailed, pair[0])
	}
	str, ok := pair[1].(string)
	if !ok {
		return Sample{}, fmt.Errorf("%w: non-string value %v", ErrQueryFailed, pair[1])
	}
	value, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return Sample{}, fmt.Errorf("%w: undecodable value %q", ErrQueryFailed, str)
	}

	sec, frac := int64(ts), ts-float64(int64(ts))
	return Sample{
		Time:  time.Unix(sec, int64(frac*float64(time.Second))).UTC(),
		Value: value,
	}, nil
}

// truncate shortens an error body for log-friendly messages.
func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// formatUnixSeconds converts a timestamp to a seconds-since-epoch string.
func formatUnixSeconds(t time.Time) string {
	seconds := float64(t.UnixNano()) / float64(time.Second)
	return strconv.FormatFloat(seconds, 'f', -1, 64)
}

// formatStepSeconds converts a step duration to a Prometheus-compatible
// seconds string.
func formatStepSeconds(step time.Duration) string {
	return strconv.FormatFloat(step.Seconds(), 'f', -1, 64)
}
