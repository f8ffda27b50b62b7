package almanac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Pipeline executes one full pass: Registry → Runner → Writer →
// Synchronizer. Stages run strictly in order; only plugin invocations and
// per-key remote operations are concurrent inside their stages.
type Pipeline struct {
	registry *Registry
	runner   *Runner
	writer   *Writer
	sync     *Synchronizer
	logger   *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithPipelineLogger sets a structured logger for stage transitions.
func WithPipelineLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline wires the four stages together.
func NewPipeline(registry *Registry, runner *Runner, writer *Writer, sync *Synchronizer, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		registry: registry,
		runner:   runner,
		writer:   writer,
		sync:     sync,
		logger:   nopLogger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunSummary is the single aggregated report a pipeline pass produces.
// Errors are collected here, never raised mid-run; only fatal conditions
// (unusable registry, unreadable mapping) abort a pass.
type RunSummary struct {
	RunID          string
	StartedAt      int64
	FinishedAt     int64
	Results        []PluginResult
	ArtifactErrors []error
	Outcomes       []KeyOutcome
}

// OK reports whether every key synced cleanly and no plugin or staging
// failure occurred.
func (s RunSummary) OK() bool {
	for _, r := range s.Results {
		if !r.OK() {
			return false
		}
	}
	if len(s.ArtifactErrors) > 0 {
		return false
	}
	for _, o := range s.Outcomes {
		if !o.OK() {
			return false
		}
	}
	return true
}

// String renders the per-key outcome line, e.g.
// "news: failed(Timeout), weather: ok".
func (s RunSummary) String() string {
	status := make(map[string]string)

	for _, o := range s.Outcomes {
		if o.OK() {
			status[o.Key] = "ok"
		} else {
			status[o.Key] = fmt.Sprintf("failed(%v)", o.Err)
		}
	}
	for _, err := range s.ArtifactErrors {
		var ae *ArtifactWriteError
		if errors.As(err, &ae) && ae.Key != "" {
			status[ae.Key] = fmt.Sprintf("failed(%v)", ae.Err)
		}
	}
	// Plugin failures override sync status for their key: a key can be
	// "ok" at the sync layer (stale artifact still attached) while the
	// plugin itself failed this run.
	for _, r := range s.Results {
		if r.OK() {
			continue
		}
		reason := "error"
		if errors.Is(r.Err, ErrPluginTimeout) {
			reason = "Timeout"
		} else if r.Err != nil {
			var pe *PluginError
			if errors.As(r.Err, &pe) {
				reason = pe.Err.Error()
			} else {
				reason = r.Err.Error()
			}
		}
		status[r.Plugin] = fmt.Sprintf("failed(%s)", reason)
	}

	keys := make([]string, 0, len(status))
	for k := range status {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + status[k]
	}
	return strings.Join(parts, ", ")
}

// Run executes one pipeline pass and returns the aggregated summary.
// The returned error is non-nil only for whole-run failures (mapping store
// unreadable, context cancelled); per-plugin and per-key failures live in
// the summary.
func (p *Pipeline) Run(ctx context.Context) (RunSummary, error) {
	summary := RunSummary{RunID: NewID(), StartedAt: NowUnix()}

	plugins := p.registry.List()
	p.logger.Info("run started", "run_id", summary.RunID, "plugins", len(plugins))

	summary.Results = p.runner.RunAll(ctx, plugins)
	if err := ctx.Err(); err != nil {
		summary.FinishedAt = NowUnix()
		return summary, err
	}

	artifacts, artErrs := p.writer.Write(summary.Results)
	summary.ArtifactErrors = artErrs
	for _, err := range artErrs {
		p.logger.Error("artifact staging failed", "run_id", summary.RunID, "error", err)
	}
	if err := ctx.Err(); err != nil {
		summary.FinishedAt = NowUnix()
		return summary, err
	}

	outcomes, err := p.sync.Sync(ctx, artifacts)
	if err != nil {
		summary.FinishedAt = NowUnix()
		return summary, err
	}
	summary.Outcomes = outcomes
	summary.FinishedAt = NowUnix()

	p.logger.Info("run finished", "run_id", summary.RunID, "ok", summary.OK(), "summary", summary.String())
	return summary, nil
}
