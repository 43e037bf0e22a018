package query

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/seafront-labs/aquamon/internal/dps"
	"github.com/seafront-labs/aquamon/internal/infrastructure/logging"
	"github.com/seafront-labs/aquamon/internal/infrastructure/tsdb"
)

// fakeStore records the PromQL it receives and plays back canned series.
type fakeStore struct {
	rangeQueries   []string
	rangeStarts    []time.Time
	rangeSteps     []time.Duration
	instantQueries []string

	series []tsdb.Series
	err    error
}

func (f *fakeStore) QueryRange(ctx context.Context, query string, start, end time.Time, step time.Duration) ([]tsdb.Series, error) {
	f.rangeQueries = append(f.rangeQueries, query)
	f.rangeStarts = append(f.rangeStarts, start)
	f.rangeSteps = append(f.rangeSteps, step)
	return f.series, f.err
}

func (f *fakeStore) QueryInstant(ctx context.Context, query string) ([]tsdb.Series, error) {
	f.instantQueries = append(f.instantQueries, query)
	return f.series, f.err
}

func newTestService(store Store) *Service {
	return NewService(store, dps.DefaultTable, 5*time.Minute, logging.Default("test"))
}

func TestRange_DeterministicBuckets(t *testing.T) {
	store := &fakeStore{series: []tsdb.Series{{
		Labels: map[string]string{"sensor": dps.SensorTag},
		Samples: []tsdb.Sample{
			{Time: time.Unix(1785586200, 0).UTC(), Value: 23.5},
			{Time: time.Unix(1785586500, 0).UTC(), Value: 23.6},
		},
	}}}
	svc := newTestService(store)

	// A 25-hour window at resolution 100 needs 900-second buckets.
	start := time.Unix(1785585600+137, 0) // deliberately unaligned
	end := start.Add(25 * time.Hour)

	res, err := svc.Range(context.Background(), RangeRequest{
		Metric: "temperature", Start: start, End: end, Resolution: 100,
	})
	if err != nil {
		t.Fatalf("Range: %v", err)
	}

	if res.Bucket != 900 {
		t.Errorf("bucket = %d, want 900", res.Bucket)
	}
	// The store must see an epoch-aligned start, not the raw one.
	if got := store.rangeStarts[0].Unix(); got%900 != 0 {
		t.Errorf("query start %d not aligned to bucket", got)
	}
	if store.rangeSteps[0] != 900*time.Second {
		t.Errorf("step = %v, want bucket width", store.rangeSteps[0])
	}
	if !strings.Contains(store.rangeQueries[0], "avg_over_time(aquarium_temperature_celsius") {
		t.Errorf("promql = %q", store.rangeQueries[0])
	}
	if !strings.Contains(store.rangeQueries[0], `sensor="seafront_8in1"`) {
		t.Errorf("promql missing sensor matcher: %q", store.rangeQueries[0])
	}

	if len(res.Points) != 2 || res.Points[0].Value != 23.5 {
		t.Errorf("points = %+v", res.Points)
	}
	if !res.Points[0].Timestamp.Before(res.Points[1].Timestamp) {
		t.Error("points must be in ascending time order")
	}
}

func TestRange_PointCountNeverExceedsResolution(t *testing.T) {
	svc := newTestService(&evalStore{})

	// An epoch-aligned window that is an exact multiple of the bucket
	// width evaluates to resolution+1 steps at the store; the service
	// must cap the result.
	start := time.Unix(1785585600, 0).UTC() // multiple of 100
	end := start.Add(1000 * time.Second)

	res, err := svc.Range(context.Background(), RangeRequest{
		Metric: "temperature", Start: start, End: end, Resolution: 10,
	})
	if err != nil {
		t.Fatalf("Range: %v", err)
	}

	if res.Bucket != 100 {
		t.Fatalf("bucket = %d, want 100", res.Bucket)
	}
	if len(res.Points) > 10 {
		t.Fatalf("returned %d points, exceeds requested resolution 10", len(res.Points))
	}
	if len(res.Points) != 10 {
		t.Errorf("got %d points, want the full 10 buckets", len(res.Points))
	}
	if last := res.Points[len(res.Points)-1].Timestamp; !last.Equal(end) {
		t.Errorf("last point at %v, want the window end %v", last, end)
	}
}

func TestRange_NoBucketBeforeWindowStart(t *testing.T) {
	svc := newTestService(&evalStore{})

	start := time.Unix(1785585600+137, 0).UTC() // deliberately unaligned
	end := start.Add(3600 * time.Second)

	res, err := svc.Range(context.Background(), RangeRequest{
		Metric: "ph", Start: start, End: end, Resolution: 100,
	})
	if err != nil {
		t.Fatalf("Range: %v", err)
	}

	if len(res.Points) == 0 || len(res.Points) > 100 {
		t.Fatalf("got %d points, want 1..100", len(res.Points))
	}
	for _, p := range res.Points {
		if p.Timestamp.Before(start) {
			t.Fatalf("point at %v precedes the requested start %v", p.Timestamp, start)
		}
	}
}

func TestRange_EmptyWindowIsNotAnError(t *testing.T) {
	svc := newTestService(&fakeStore{})

	res, err := svc.Range(context.Background(), RangeRequest{
		Metric: "ph",
		Start:  time.Unix(0, 0),
		End:    time.Unix(3600, 0),
	})
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if res.Points == nil || len(res.Points) != 0 {
		t.Errorf("points = %v, want empty non-nil slice", res.Points)
	}
}

func TestRange_UnknownMetric(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.Range(context.Background(), RangeRequest{
		Metric: "turbidity",
		Start:  time.Unix(0, 0),
		End:    time.Unix(3600, 0),
	})
	if !errors.Is(err, ErrUnknownMetric) {
		t.Errorf("err = %v, want ErrUnknownMetric", err)
	}
}

func TestRange_Validation(t *testing.T) {
	svc := newTestService(&fakeStore{})
	ctx := context.Background()
	base := time.Unix(1785585600, 0)

	tests := []struct {
		name string
		req  RangeRequest
		want error
	}{
		{"inverted", RangeRequest{Metric: "ph", Start: base, End: base.Add(-time.Hour)}, ErrInvalidRange},
		{"zero width", RangeRequest{Metric: "ph", Start: base, End: base}, ErrInvalidRange},
		{"missing start", RangeRequest{Metric: "ph", End: base}, ErrInvalidRange},
		{"oversized", RangeRequest{Metric: "ph", Start: base, End: base.Add(400 * 24 * time.Hour)}, ErrInvalidRange},
		{"bad resolution", RangeRequest{Metric: "ph", Start: base, End: base.Add(time.Hour), Resolution: -1}, ErrInvalidResolution},
		{"huge resolution", RangeRequest{Metric: "ph", Start: base, End: base.Add(time.Hour), Resolution: 99999}, ErrInvalidResolution},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Range(ctx, tt.req); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRange_StoreError(t *testing.T) {
	svc := newTestService(&fakeStore{err: tsdb.ErrQueryFailed})

	_, err := svc.Range(context.Background(), RangeRequest{
		Metric: "ph", Start: time.Unix(0, 0), End: time.Unix(3600, 0),
	})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("err = %v, want ErrStoreUnavailable", err)
	}
}

func TestLatest(t *testing.T) {
	at := time.Unix(1785585600, 0).UTC()
	store := &fakeStore{series: []tsdb.Series{
		{
			Labels:  map[string]string{"__name__": "aquarium_ph", "sensor": dps.SensorTag},
			Samples: []tsdb.Sample{{Time: at, Value: 7.2}},
		},
		{
			Labels:  map[string]string{"__name__": "aquarium_temperature_celsius", "sensor": dps.SensorTag},
			Samples: []tsdb.Sample{{Time: at, Value: 23.5}},
		},
	}}
	svc := newTestService(store)

	results, err := svc.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}

	// Only reporting metrics appear, in stable metric-key order.
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Metric != "ph" || results[1].Metric != "temperature" {
		t.Errorf("order = %s, %s", results[0].Metric, results[1].Metric)
	}
	if results[1].Value != 23.5 || !results[1].Timestamp.Equal(at) {
		t.Errorf("temperature = %+v", results[1])
	}

	if len(store.instantQueries) != 1 {
		t.Fatalf("instant queries = %v, want a single query for all metrics", store.instantQueries)
	}
	if !strings.Contains(store.instantQueries[0], "last_over_time") {
		t.Errorf("promql = %q", store.instantQueries[0])
	}
}

func TestExport_JoinsOnTimestamp(t *testing.T) {
	t0 := time.Unix(1785585600, 0).UTC()
	t1 := t0.Add(5 * time.Minute)

	store := &exportStore{responses: map[string][]tsdb.Series{
		"aquarium_temperature_celsius": {{Samples: []tsdb.Sample{
			{Time: t0, Value: 23.5}, {Time: t1, Value: 23.6},
		}}},
		// pH missed the second cycle.
		"aquarium_ph": {{Samples: []tsdb.Sample{{Time: t0, Value: 7.2}}}},
	}}
	svc := newTestService(store)

	ds, err := svc.Export(context.Background(), ExportRequest{Start: t0, End: t1})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	if len(ds.Columns) != 7 {
		t.Fatalf("got %d columns, want all 7 metrics", len(ds.Columns))
	}
	if len(ds.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(ds.Rows))
	}

	col := map[string]int{}
	for i, c := range ds.Columns {
		col[c.Metric] = i
	}

	row0, row1 := ds.Rows[0], ds.Rows[1]
	if !row0.Timestamp.Equal(t0) || !row1.Timestamp.Equal(t1) {
		t.Fatalf("row timestamps = %v, %v", row0.Timestamp, row1.Timestamp)
	}
	if v := row0.Values[col["temperature"]]; v == nil || *v != 23.5 {
		t.Errorf("row0 temperature = %v", v)
	}
	if v := row0.Values[col["ph"]]; v == nil || *v != 7.2 {
		t.Errorf("row0 ph = %v", v)
	}
	// The missed cycle is an explicit null, not a copy of the last value.
	if v := row1.Values[col["ph"]]; v != nil {
		t.Errorf("row1 ph = %v, want nil", *v)
	}
	// Metrics that never reported stay nil throughout.
	if v := row0.Values[col["orp"]]; v != nil {
		t.Errorf("row0 orp = %v, want nil", *v)
	}
}

func TestExport_Validation(t *testing.T) {
	svc := newTestService(&fakeStore{})

	_, err := svc.Export(context.Background(), ExportRequest{
		Start: time.Unix(3600, 0), End: time.Unix(0, 0),
	})
	if !errors.Is(err, ErrInvalidRange) {
		t.Errorf("err = %v, want ErrInvalidRange", err)
	}
}

func TestCatalog(t *testing.T) {
	svc := newTestService(&fakeStore{})

	catalog := svc.Catalog()
	if len(catalog) != 7 {
		t.Fatalf("got %d entries, want 7", len(catalog))
	}
	for i := 1; i < len(catalog); i++ {
		if catalog[i-1].Metric >= catalog[i].Metric {
			t.Fatalf("catalog not sorted: %v then %v", catalog[i-1].Metric, catalog[i].Metric)
		}
	}
}

// evalStore mimics the store's range evaluation: one sample per step
// from the query start to the end, both inclusive.
type evalStore struct{}

func (f *evalStore) QueryRange(ctx context.Context, query string, start, end time.Time, step time.Duration) ([]tsdb.Series, error) {
	var samples []tsdb.Sample
	for ts := start; !ts.After(end); ts = ts.Add(step) {
		samples = append(samples, tsdb.Sample{Time: ts, Value: 1})
	}
	return []tsdb.Series{{Samples: samples}}, nil
}

func (f *evalStore) QueryInstant(ctx context.Context, query string) ([]tsdb.Series, error) {
	return nil, nil
}

// exportStore routes range queries to per-series canned responses.
type exportStore struct {
	responses map[string][]tsdb.Series
}

func (f *exportStore) QueryRange(ctx context.Context, query string, start, end time.Time, step time.Duration) ([]tsdb.Series, error) {
	for series, resp := range f.responses {
		if strings.Contains(query, series+"{") {
			return resp, nil
		}
	}
	return nil, nil
}

func (f *exportStore) QueryInstant(ctx context.Context, query string) ([]tsdb.Series, error) {
	return nil, nil
}
