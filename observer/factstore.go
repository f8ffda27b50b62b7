package observer

import (
	"context"

	"go.opentelemetry.io/otel/codes"

	"github.com/almanac-ai/almanac"
)

// ObservedFactStore wraps an almanac.FactStore, tracing saves and counting
// persisted facts.
type ObservedFactStore struct {
	inner almanac.FactStore
	inst  *Instruments
}

var _ almanac.FactStore = (*ObservedFactStore)(nil)

// WrapFactStore returns an instrumented fact store.
func WrapFactStore(inner almanac.FactStore, inst *Instruments) *ObservedFactStore {
	return &ObservedFactStore{inner: inner, inst: inst}
}

// SaveFact implements almanac.FactStore, incrementing the saved-facts
// counter on success.
func (o *ObservedFactStore) SaveFact(ctx context.Context, fact almanac.Fact) error {
	ctx, span := o.inst.Tracer.Start(ctx, "facts.save")
	defer span.End()

	err := o.inner.SaveFact(ctx, fact)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	o.inst.FactsSaved.Add(ctx, 1)
	return nil
}

// ListFacts delegates to the inner store.
func (o *ObservedFactStore) ListFacts(ctx context.Context, limit int) ([]almanac.Fact, error) {
	return o.inner.ListFacts(ctx, limit)
}
