package almanac

import (
	"context"
	"fmt"
	"sort"
)

// Plugin is a named content source. Name is the logical key that correlates
// artifacts, remote documents, and mapping entries across runs; it must be
// unique within a registry. Run returns the content to stage, or an error.
//
// Plugins are presumed to perform their own outbound I/O (weather APIs,
// news feeds, local files); all of that is opaque to the runner. Run must
// honor ctx cancellation — a plugin that ignores its deadline still gets a
// Timeout result but leaks its goroutine until it returns.
type Plugin interface {
	Name() string
	Run(ctx context.Context) (string, error)
}

// PluginResult is the outcome of invoking one plugin. Immutable once
// produced: exactly one of Text or Err is meaningful, decided by Err == nil.
type PluginResult struct {
	Plugin   string
	Text     string
	Err      error
	Started  int64
	Finished int64
}

// OK reports whether the plugin produced content.
func (r PluginResult) OK() bool { return r.Err == nil }

// Registry holds the plugins for a run and exposes them in a stable order.
type Registry struct {
	plugins map[string]Plugin
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// Register adds a plugin. Duplicate names are rejected so that one logical
// key never maps to two sources.
func (r *Registry) Register(p Plugin) error {
	name := p.Name()
	if name == "" {
		return fmt.Errorf("register: plugin has empty name")
	}
	if _, ok := r.plugins[name]; ok {
		return fmt.Errorf("register: duplicate plugin %q", name)
	}
	r.plugins[name] = p
	return nil
}

// List returns all registered plugins sorted lexicographically by name.
// The order is an explicit contract, not an artifact of map iteration, so
// that results, artifact naming, and logs are reproducible across runs.
func (r *Registry) List() []Plugin {
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Plugin, len(names))
	for i, name := range names {
		out[i] = r.plugins[name]
	}
	return out
}

// Len returns the number of registered plugins.
func (r *Registry) Len() int { return len(r.plugins) }

// PluginFunc adapts a function to the Plugin interface.
type PluginFunc struct {
	PluginName string
	Fn         func(ctx context.Context) (string, error)
}

func (p PluginFunc) Name() string { return p.PluginName }

func (p PluginFunc) Run(ctx context.Context) (string, error) { return p.Fn(ctx) }
