package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/seafront-labs/aquamon/internal/dps"
	"github.com/seafront-labs/aquamon/internal/infrastructure/logging"
	"github.com/seafront-labs/aquamon/internal/infrastructure/tsdb"
)

// Query limits.
const (
	defaultResolution = 500
	maxResolution     = 10000
	maxRangeDuration  = 366 * 24 * time.Hour

	// latestLookback bounds how far back a "latest" reading may be. A
	// collector that has been silent longer than this has nothing
	// current to report.
	latestLookback = 24 * time.Hour
)

// Store is the slice of the time-series client the service needs.
type Store interface {
	QueryRange(ctx context.Context, query string, start, end time.Time, step time.Duration) ([]tsdb.Series, error)
	QueryInstant(ctx context.Context, query string) ([]tsdb.Series, error)
}

// Service answers read queries over the recorded measurements.
//
// Downsampling is pushed into the store as avg_over_time with
// epoch-aligned buckets, so the same request always yields the same
// buckets and the same values regardless of when it is asked.
type Service struct {
	store  Store
	table  dps.Table
	step   time.Duration
	logger *logging.Logger
}

// NewService creates a query service.
//
// step is the collector's poll interval; exports use it as the native
// sample spacing.
func NewService(store Store, table dps.Table, step time.Duration, logger *logging.Logger) *Service {
	if step <= 0 {
		step = 5 * time.Minute
	}
	return &Service{store: store, table: table, step: step, logger: logger}
}

// Range returns one metric's history, downsampled to at most
// req.Resolution evenly sized buckets.
//
// Bucket width is ceil(range/resolution) seconds and bucket boundaries
// are aligned to the epoch, not to req.Start: asking for an overlapping
// window later reuses identical buckets. Each bucket's value is the mean
// of the raw samples inside it; empty buckets are omitted, buckets that
// land before the requested start are dropped, and the returned point
// count never exceeds the resolution. An empty result for a valid metric
// is a normal response, not an error.
func (s *Service) Range(ctx context.Context, req RangeRequest) (*RangeResult, error) {
	mapping, ok := s.table.ByMetric(req.Metric)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, req.Metric)
	}
	if err := validateRange(req.Start, req.End); err != nil {
		return nil, err
	}

	resolution := req.Resolution
	if resolution == 0 {
		resolution = defaultResolution
	}
	if resolution < 1 || resolution > maxResolution {
		return nil, fmt.Errorf("%w: %d", ErrInvalidResolution, req.Resolution)
	}

	bucket := bucketSeconds(req.Start, req.End, resolution)
	alignedStart := time.Unix(req.Start.Unix()/bucket*bucket, 0).UTC()
	step := time.Duration(bucket) * time.Second

	promQL := fmt.Sprintf(`avg_over_time(%s{sensor=%q}[%ds])`, mapping.Series, dps.SensorTag, bucket)
	series, err := s.store.QueryRange(ctx, promQL, alignedStart, req.End, step)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	result := &RangeResult{
		Metric: mapping.Metric,
		Unit:   mapping.Unit,
		Bucket: bucket,
		Points: []TimedValue{},
	}
	for _, sr := range series {
		for _, sample := range sr.Samples {
			result.Points = append(result.Points, TimedValue{Timestamp: sample.Time, Value: sample.Value})
		}
	}
	sort.Slice(result.Points, func(i, j int) bool {
		return result.Points[i].Timestamp.Before(result.Points[j].Timestamp)
	})

	// Epoch alignment can place the first bucket boundary before the
	// requested start, and a window that is an exact multiple of the
	// bucket width evaluates to one extra step. Trim both so the result
	// holds only buckets inside the window and never more points than
	// the requested resolution.
	trimmed := result.Points[:0]
	for _, p := range result.Points {
		if p.Timestamp.Before(req.Start) {
			continue
		}
		trimmed = append(trimmed, p)
	}
	result.Points = trimmed
	if len(result.Points) > resolution {
		result.Points = result.Points[len(result.Points)-resolution:]
	}
	return result, nil
}

// Latest returns the most recent stored value of every metric that has
// reported within the lookback window, ordered by metric key.
func (s *Service) Latest(ctx context.Context) ([]LatestResult, error) {
	promQL := fmt.Sprintf(`last_over_time({sensor=%q}[%s])`,
		dps.SensorTag, formatLookback(latestLookback))
	series, err := s.store.QueryInstant(ctx, promQL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	bySeries := make(map[string]tsdb.Sample, len(series))
	for _, sr := range series {
		if len(sr.Samples) == 0 {
			continue
		}
		bySeries[sr.Labels["__name__"]] = sr.Samples[len(sr.Samples)-1]
	}

	results := make([]LatestResult, 0, len(s.table))
	for _, m := range s.table.Ordered() {
		sample, ok := bySeries[m.Series]
		if !ok {
			continue
		}
		results = append(results, LatestResult{
			Metric:    m.Metric,
			Unit:      m.Unit,
			Value:     sample.Value,
			Timestamp: sample.Time,
		})
	}
	return results, nil
}

// Export returns the full-resolution dataset over the window, all
// metrics joined on timestamp.
//
// Rows are the union of all sample timestamps in ascending order; a
// metric missing at a given timestamp yields a nil cell. No
// interpolation, no forward-fill: the export mirrors exactly what was
// stored.
func (s *Service) Export(ctx context.Context, req ExportRequest) (*Dataset, error) {
	if err := validateRange(req.Start, req.End); err != nil {
		return nil, err
	}

	columns := s.table.Ordered()
	cells := make(map[int64][]*float64)

	for i, m := range columns {
		promQL := fmt.Sprintf(`last_over_time(%s{sensor=%q}[%ds])`,
			m.Series, dps.SensorTag, int64(s.step.Seconds()))
		series, err := s.store.QueryRange(ctx, promQL, req.Start, req.End, s.step)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}

		for _, sr := range series {
			for _, sample := range sr.Samples {
				ts := sample.Time.Unix()
				row, ok := cells[ts]
				if !ok {
					row = make([]*float64, len(columns))
					cells[ts] = row
				}
				v := sample.Value
				row[i] = &v
			}
		}
	}

	timestamps := make([]int64, 0, len(cells))
	for ts := range cells {
		timestamps = append(timestamps, ts)
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })

	rows := make([]ExportRow, 0, len(timestamps))
	for _, ts := range timestamps {
		rows = append(rows, ExportRow{
			Timestamp: time.Unix(ts, 0).UTC(),
			Values:    cells[ts],
		})
	}

	return &Dataset{Columns: columns, Rows: rows}, nil
}

// Catalog returns the metric table in stable order, for discovery and
// export headers.
func (s *Service) Catalog() []dps.Mapping {
	return s.table.Ordered()
}

// validateRange rejects empty, inverted, and oversized windows.
func validateRange(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidRange)
	}
	if !end.After(start) {
		return fmt.Errorf("%w: end must be after start", ErrInvalidRange)
	}
	if end.Sub(start) > maxRangeDuration {
		return fmt.Errorf("%w: window exceeds %s", ErrInvalidRange, maxRangeDuration)
	}
	return nil
}

// bucketSeconds sizes downsampling buckets: the smallest whole-second
// width that fits the window into the resolution.
func bucketSeconds(start, end time.Time, resolution int) int64 {
	rangeSeconds := int64(end.Sub(start).Seconds())
	bucket := (rangeSeconds + int64(resolution) - 1) / int64(resolution)
	if bucket < 1 {
		bucket = 1
	}
	return bucket
}

// formatLookback renders a duration as a PromQL range literal.
func formatLookback(d time.Duration) string {
	return fmt.Sprintf("%ds", int64(d.Seconds()))
}
