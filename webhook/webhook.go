// Package webhook serves the fact-memory endpoint: the agent POSTs short
// natural-language facts here and they are persisted for later recall.
//
// Each successful save also triggers a pipeline pass (single-flight) so the
// new fact reaches the knowledge base without waiting for the next
// scheduled run.
package webhook

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/almanac-ai/almanac"
)

// RunFunc triggers one pipeline pass. Wired to Pipeline.Run by the caller;
// nil disables post-save runs.
type RunFunc func(ctx context.Context) (almanac.RunSummary, error)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a structured logger for requests and save outcomes.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithRunFunc sets the pipeline trigger called after each saved fact.
func WithRunFunc(fn RunFunc) Option {
	return func(s *Server) { s.run = fn }
}

// WithMaxFactBytes caps accepted fact length. Default: 4096.
func WithMaxFactBytes(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxFactBytes = n
		}
	}
}

// Server is the always-on fact endpoint. Requests are independent;
// concurrent saves are safe because facts are append-only.
type Server struct {
	facts        almanac.FactStore
	run          RunFunc
	logger       *slog.Logger
	maxFactBytes int
	srv          *http.Server
	running      atomic.Bool // single-flight latch for post-save pipeline runs
}

// New creates a Server persisting into facts.
func New(facts almanac.FactStore, opts ...Option) *Server {
	s := &Server{
		facts:        facts,
		logger:       slog.New(discardHandler{}),
		maxFactBytes: 4096,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Handler returns the HTTP handler, mountable on any mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleHome)
	mux.HandleFunc("POST /save-fact", s.handleSaveFact)
	return mux
}

// ListenAndServe runs the server on addr until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.srv = &http.Server{Addr: addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.ListenAndServe() }()
	s.logger.Info("fact endpoint listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) handleHome(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("Fact-saving API is running.\n"))
}

func (s *Server) handleSaveFact(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Fact string `json:"fact"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, int64(s.maxFactBytes)+1024)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
		return
	}

	// Facts arrive from arbitrary clients: normalize to NFC and trim so
	// that validation and storage see one canonical form.
	fact := strings.TrimSpace(norm.NFC.String(body.Fact))
	if fact == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing fact"})
		return
	}
	if len(fact) > s.maxFactBytes {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Fact too long"})
		return
	}

	rec := almanac.Fact{ID: almanac.NewID(), Text: fact, CreatedAt: almanac.NowUnix()}
	if err := s.facts.SaveFact(r.Context(), rec); err != nil {
		s.logger.Error("save fact failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to save fact"})
		return
	}
	s.logger.Info("fact saved", "id", rec.ID, "bytes", len(fact))

	s.triggerRun()
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Fact saved: " + fact,
	})
}

// triggerRun starts one background pipeline pass unless one is already
// in flight. Bursts of saved facts collapse into at most one queued run;
// the response never waits on the pipeline.
func (s *Server) triggerRun() {
	if s.run == nil {
		return
	}
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer s.running.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		summary, err := s.run(ctx)
		if err != nil {
			s.logger.Error("post-save run failed", "error", err)
			return
		}
		s.logger.Info("post-save run finished", "ok", summary.OK(), "summary", summary.String())
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
