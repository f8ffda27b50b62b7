package almanac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultMaxParallel   = 4
	defaultPluginTimeout = 30 * time.Second
)

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithMaxParallel caps the number of plugins running concurrently.
// Default: 4.
func WithMaxParallel(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.maxParallel = n
		}
	}
}

// WithPluginTimeout bounds each plugin invocation. A plugin exceeding the
// deadline is recorded as a Timeout failure and the run moves on.
// Default: 30s.
func WithPluginTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithRunnerLogger sets a structured logger for per-plugin timing and
// failures. If not set, no logs are emitted.
func WithRunnerLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// Runner invokes every registered plugin and collects one PluginResult per
// plugin, in registry order. A single plugin's failure — error, panic, or
// timeout — never aborts the batch; partial success is the normal case.
type Runner struct {
	maxParallel int
	timeout     time.Duration
	logger      *slog.Logger
}

// NewRunner creates a Runner with default concurrency and timeout.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		maxParallel: defaultMaxParallel,
		timeout:     defaultPluginTimeout,
		logger:      nopLogger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunAll invokes each plugin and returns exactly one result per plugin, in
// the same order as the input regardless of completion order. Plugins run
// on a fixed worker pool of min(len(plugins), maxParallel) goroutines
// pulling from a shared work channel, so concurrency stays bounded without
// unbounded goroutine creation.
//
// The collection loop is context-aware: if ctx is cancelled while plugins
// are in-flight, incomplete slots are filled with context-error results
// instead of blocking indefinitely.
func (r *Runner) RunAll(ctx context.Context, plugins []Plugin) []PluginResult {
	if len(plugins) == 0 {
		return nil
	}

	// Fast path: single plugin, no pool needed.
	if len(plugins) == 1 {
		return []PluginResult{r.invoke(ctx, plugins[0])}
	}

	type indexedResult struct {
		idx    int
		result PluginResult
	}
	type workItem struct {
		idx int
		p   Plugin
	}

	resultCh := make(chan indexedResult, len(plugins))
	workCh := make(chan workItem, len(plugins))
	for i, p := range plugins {
		workCh <- workItem{idx: i, p: p}
	}
	close(workCh)

	numWorkers := min(len(plugins), r.maxParallel)
	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for range numWorkers {
		go func() {
			defer wg.Done()
			for w := range workCh {
				if ctx.Err() != nil {
					resultCh <- indexedResult{w.idx, r.failResult(w.p.Name(), ctx.Err())}
					continue
				}
				resultCh <- indexedResult{w.idx, r.invoke(ctx, w.p)}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]PluginResult, len(plugins))
	seen := make([]bool, len(plugins))
collect:
	for received := 0; received < len(plugins); received++ {
		select {
		case ir, ok := <-resultCh:
			if !ok {
				break collect
			}
			results[ir.idx] = ir.result
			seen[ir.idx] = true
		case <-ctx.Done():
			for i := range results {
				if !seen[i] {
					results[i] = r.failResult(plugins[i].Name(), ctx.Err())
				}
			}
			return results
		}
	}
	for i := range results {
		if !seen[i] {
			results[i] = r.failResult(plugins[i].Name(), fmt.Errorf("result not received"))
		}
	}
	return results
}

// invoke runs one plugin under its own deadline. The plugin runs in a
// goroutine and invoke selects on completion vs. the deadline, so even a
// plugin that ignores its context yields a Timeout result on schedule; the
// abandoned goroutine drains into the buffered channel when it returns.
func (r *Runner) invoke(ctx context.Context, p Plugin) PluginResult {
	name := p.Name()
	started := NowUnix()
	pctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", rec)}
			}
		}()
		text, err := p.Run(pctx)
		done <- outcome{text: text, err: err}
	}()

	select {
	case o := <-done:
		finished := NowUnix()
		if o.err != nil {
			// A cooperative plugin surfaces the deadline as its own error;
			// report it as a timeout either way.
			if errors.Is(o.err, context.DeadlineExceeded) && pctx.Err() != nil {
				o.err = ErrPluginTimeout
			}
			r.logger.Warn("plugin failed", "plugin", name, "error", o.err)
			return PluginResult{Plugin: name, Err: &PluginError{Plugin: name, Err: o.err}, Started: started, Finished: finished}
		}
		r.logger.Debug("plugin succeeded", "plugin", name, "bytes", len(o.text))
		return PluginResult{Plugin: name, Text: o.text, Started: started, Finished: finished}
	case <-pctx.Done():
		finished := NowUnix()
		err := pctx.Err()
		if err == context.DeadlineExceeded {
			err = ErrPluginTimeout
		}
		r.logger.Warn("plugin timed out", "plugin", name, "timeout", r.timeout)
		return PluginResult{Plugin: name, Err: &PluginError{Plugin: name, Err: err}, Started: started, Finished: finished}
	}
}

func (r *Runner) failResult(name string, err error) PluginResult {
	now := NowUnix()
	return PluginResult{
		Plugin:   name,
		Err:      &PluginError{Plugin: name, Err: err},
		Started:  now,
		Finished: now,
	}
}
