package observer

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/almanac-ai/almanac"
)

type stubFacts struct {
	saved []almanac.Fact
	fail  error
}

func (s *stubFacts) SaveFact(_ context.Context, f almanac.Fact) error {
	if s.fail != nil {
		return s.fail
	}
	s.saved = append(s.saved, f)
	return nil
}

func (s *stubFacts) ListFacts(_ context.Context, _ int) ([]almanac.Fact, error) {
	return s.saved, nil
}

func factsSavedTotal(t *testing.T, reader *sdkmetric.ManualReader) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "almanac.facts.saved" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("unexpected data type %T", m.Data)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestObservedFactStoreCountsSuccessfulSaves(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	inst, err := NewInstruments()
	if err != nil {
		t.Fatalf("NewInstruments: %v", err)
	}

	inner := &stubFacts{}
	store := WrapFactStore(inner, inst)
	ctx := context.Background()

	store.SaveFact(ctx, almanac.Fact{ID: "f-1", Text: "likes tea"})
	store.SaveFact(ctx, almanac.Fact{ID: "f-2", Text: "lives in Lisbon"})
	if got := factsSavedTotal(t, reader); got != 2 {
		t.Errorf("counter = %d, want 2", got)
	}

	// Failed saves are not counted and the error passes through.
	inner.fail = errors.New("disk full")
	if err := store.SaveFact(ctx, almanac.Fact{ID: "f-3", Text: "x"}); err == nil {
		t.Fatal("expected save error")
	}
	if got := factsSavedTotal(t, reader); got != 2 {
		t.Errorf("failed save counted: %d", got)
	}
	if len(inner.saved) != 2 {
		t.Errorf("inner store saw %d saves, want 2", len(inner.saved))
	}
}
