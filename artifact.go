package almanac

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Artifact is one plugin's staged output: a named, versioned unit of text.
// Key is the plugin name, stable across runs; at most one artifact per key
// is current at any time. The current artifact set after a Write is the
// desired target state for synchronization.
type Artifact struct {
	Key       string
	Content   string
	Hash      string
	Timestamp int64
}

// HashContent returns the hex sha256 of content, the identity used to
// detect unchanged plugin output across runs.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithWriterLogger sets a structured logger for staging operations.
func WithWriterLogger(l *slog.Logger) WriterOption {
	return func(w *Writer) { w.logger = l }
}

// Writer persists plugin results to a staging directory, one current file
// per logical key plus superseded versions under history/.
//
// Layout:
//
//	<dir>/<key>.txt                 current artifact
//	<dir>/history/<key>-<ts>.txt    superseded versions
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter creates a Writer staging into dir. The directory is created on
// first Write.
func NewWriter(dir string, opts ...WriterOption) *Writer {
	w := &Writer{dir: dir, logger: nopLogger}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write stages each successful result and returns the set of artifacts now
// current, plus any per-key errors (failed plugins are not errors here —
// they were already surfaced by the runner; only staging I/O failures are).
//
// Per result:
//   - success with changed content: the previous current file (if any) is
//     moved to history/, the new content written; superseded, not deleted.
//   - success with unchanged content: no rewrite (idempotent no-op); the
//     existing file's mtime is refreshed.
//   - failure: nothing written; the prior current artifact for that key,
//     if present on disk, is still returned — stale-but-present beats
//     missing.
//
// The returned artifacts appear in the same order as results.
func (w *Writer) Write(results []PluginResult) ([]Artifact, []error) {
	var artifacts []Artifact
	var errs []error

	if err := os.MkdirAll(filepath.Join(w.dir, "history"), 0o755); err != nil {
		return nil, []error{&ArtifactWriteError{Key: "", Err: err}}
	}

	for _, res := range results {
		if !res.OK() {
			if art, ok := w.readCurrent(res.Plugin); ok {
				w.logger.Debug("keeping stale artifact", "key", res.Plugin)
				artifacts = append(artifacts, art)
			}
			continue
		}

		art, err := w.writeOne(res)
		if err != nil {
			errs = append(errs, &ArtifactWriteError{Key: res.Plugin, Err: err})
			// Staging failed: fall back to the prior version like a
			// plugin failure would.
			if prior, ok := w.readCurrent(res.Plugin); ok {
				artifacts = append(artifacts, prior)
			}
			continue
		}
		artifacts = append(artifacts, art)
	}
	return artifacts, errs
}

func (w *Writer) writeOne(res PluginResult) (Artifact, error) {
	key := res.Plugin
	hash := HashContent(res.Text)
	path := w.currentPath(key)

	if prev, err := os.ReadFile(path); err == nil {
		if HashContent(string(prev)) == hash {
			// Unchanged content: refresh the pointer timestamp only.
			now := timeFromUnix(res.Finished)
			_ = os.Chtimes(path, now, now)
			w.logger.Debug("artifact unchanged", "key", key, "hash", hash[:12])
			return Artifact{Key: key, Content: res.Text, Hash: hash, Timestamp: res.Finished}, nil
		}
		// Supersede: keep the old version in history. The name carries the
		// old content's hash so rapid supersessions within one second never
		// overwrite an already-preserved version.
		histName := fmt.Sprintf("%s-%d-%s.txt", sanitizeKey(key), NowUnix(), HashContent(string(prev))[:8])
		if err := os.Rename(path, filepath.Join(w.dir, "history", histName)); err != nil {
			return Artifact{}, fmt.Errorf("supersede: %w", err)
		}
	}

	if err := writeFileAtomic(path, []byte(res.Text)); err != nil {
		return Artifact{}, err
	}
	w.logger.Debug("artifact written", "key", key, "bytes", len(res.Text), "hash", hash[:12])
	return Artifact{Key: key, Content: res.Text, Hash: hash, Timestamp: res.Finished}, nil
}

// readCurrent loads the current artifact for key from disk, if one exists
// from an earlier run.
func (w *Writer) readCurrent(key string) (Artifact, bool) {
	data, err := os.ReadFile(w.currentPath(key))
	if err != nil {
		return Artifact{}, false
	}
	info, err := os.Stat(w.currentPath(key))
	ts := NowUnix()
	if err == nil {
		ts = info.ModTime().Unix()
	}
	content := string(data)
	return Artifact{Key: key, Content: content, Hash: HashContent(content), Timestamp: ts}, true
}

func (w *Writer) currentPath(key string) string {
	return filepath.Join(w.dir, sanitizeKey(key)+".txt")
}

// sanitizeKey makes a plugin name safe as a file name.
func sanitizeKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, key)
}

func timeFromUnix(sec int64) time.Time { return time.Unix(sec, 0) }

// writeFileAtomic writes via a temp file + rename so a crash mid-write
// never leaves a truncated current artifact.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
