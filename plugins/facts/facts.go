// Package facts provides an almanac.Plugin that renders the saved fact
// memory as one digest. This is what carries webhook-saved facts into the
// agent's knowledge base: the post-save pipeline pass runs this plugin,
// stages its output, and syncs it like any other artifact.
package facts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/almanac-ai/almanac"
)

// Option configures the plugin.
type Option func(*Plugin)

// WithLimit caps the digest to the most recent n facts. Default: all.
func WithLimit(n int) Option {
	return func(p *Plugin) {
		if n > 0 {
			p.limit = n
		}
	}
}

// Plugin renders the fact store as a text digest.
type Plugin struct {
	store almanac.FactStore
	limit int
}

var _ almanac.Plugin = (*Plugin)(nil)

// New creates the facts plugin over store.
func New(store almanac.FactStore, opts ...Option) *Plugin {
	p := &Plugin{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements almanac.Plugin.
func (p *Plugin) Name() string { return "facts" }

// Run lists saved facts in insertion order, oldest first, one line each.
// The output is stable for an unchanged store, so a pipeline pass with no
// new facts stages nothing and makes no remote call for this key.
func (p *Plugin) Run(ctx context.Context) (string, error) {
	facts, err := p.store.ListFacts(ctx, p.limit)
	if err != nil {
		return "", fmt.Errorf("list facts: %w", err)
	}
	if len(facts) == 0 {
		return "No saved facts yet.\n", nil
	}

	var b strings.Builder
	b.WriteString("Facts the user asked to remember:\n")
	for _, f := range facts {
		fmt.Fprintf(&b, "- %s (saved %s)\n", f.Text, time.Unix(f.CreatedAt, 0).UTC().Format("2006-01-02"))
	}
	return b.String(), nil
}
