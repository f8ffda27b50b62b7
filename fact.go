package almanac

import "context"

// Fact is one short natural-language statement persisted for the agent's
// recall feature. Facts are append-only: no uniqueness, no ordering
// guarantee beyond insertion order.
type Fact struct {
	ID        string
	Text      string
	CreatedAt int64
}

// FactStore persists facts durably. Implementations must tolerate
// concurrent SaveFact calls; facts carry no cross-request ordering.
type FactStore interface {
	SaveFact(ctx context.Context, fact Fact) error
	// ListFacts returns facts in insertion order, newest last. limit <= 0
	// means no limit.
	ListFacts(ctx context.Context, limit int) ([]Fact, error)
}
