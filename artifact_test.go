package almanac

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func successResult(name, text string) PluginResult {
	return PluginResult{Plugin: name, Text: text, Started: NowUnix(), Finished: NowUnix()}
}

func failureResult(name string) PluginResult {
	return PluginResult{Plugin: name, Err: &PluginError{Plugin: name, Err: errors.New("down")}, Started: NowUnix(), Finished: NowUnix()}
}

func TestWriterStagesSuccesses(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	artifacts, errs := w.Write([]PluginResult{
		successResult("weather", "sunny, 20C"),
		successResult("time", "noon"),
	})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(artifacts) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(artifacts))
	}

	data, err := os.ReadFile(filepath.Join(dir, "weather.txt"))
	if err != nil {
		t.Fatalf("current file missing: %v", err)
	}
	if string(data) != "sunny, 20C" {
		t.Errorf("content mismatch: %q", data)
	}
	if artifacts[0].Hash != HashContent("sunny, 20C") {
		t.Errorf("hash mismatch: %s", artifacts[0].Hash)
	}
}

func TestWriterUnchangedContentIsNoOp(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	w.Write([]PluginResult{successResult("weather", "stable")})
	artifacts, errs := w.Write([]PluginResult{successResult("weather", "stable")})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if artifacts[0].Hash != HashContent("stable") {
		t.Errorf("hash changed on identical content")
	}

	// No version should have been superseded.
	entries, err := os.ReadDir(filepath.Join(dir, "history"))
	if err != nil {
		t.Fatalf("history dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty history for unchanged content, got %d entries", len(entries))
	}
}

func TestWriterSupersedesChangedContent(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	w.Write([]PluginResult{successResult("weather", "old forecast")})
	artifacts, _ := w.Write([]PluginResult{successResult("weather", "new forecast")})

	if artifacts[0].Content != "new forecast" {
		t.Errorf("current artifact not updated: %q", artifacts[0].Content)
	}
	data, err := os.ReadFile(filepath.Join(dir, "weather.txt"))
	if err != nil || string(data) != "new forecast" {
		t.Fatalf("current file not rewritten: %q, %v", data, err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "history"))
	if err != nil {
		t.Fatalf("history dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 superseded version, got %d", len(entries))
	}
	old, _ := os.ReadFile(filepath.Join(dir, "history", entries[0].Name()))
	if string(old) != "old forecast" {
		t.Errorf("superseded version content mismatch: %q", old)
	}
}

func TestWriterKeepsStaleArtifactOnFailure(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	w.Write([]PluginResult{successResult("news", "yesterday's headlines")})

	// Next run: the plugin fails, but its prior artifact must survive as
	// the current one — stale beats missing.
	artifacts, errs := w.Write([]PluginResult{failureResult("news")})
	if len(errs) != 0 {
		t.Fatalf("plugin failure must not be a write error: %v", errs)
	}
	if len(artifacts) != 1 {
		t.Fatalf("expected stale artifact returned, got %d artifacts", len(artifacts))
	}
	if artifacts[0].Key != "news" || artifacts[0].Content != "yesterday's headlines" {
		t.Errorf("stale artifact mismatch: %+v", artifacts[0])
	}
}

func TestWriterFailureWithNoPriorArtifact(t *testing.T) {
	w := NewWriter(t.TempDir())
	artifacts, errs := w.Write([]PluginResult{failureResult("news")})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(artifacts) != 0 {
		t.Fatalf("expected no artifacts for first-run failure, got %d", len(artifacts))
	}
}

func TestWriterRapidSupersessionsKeepAllVersions(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	// Three writes back to back, almost certainly within the same second:
	// both superseded versions must survive in history.
	w.Write([]PluginResult{successResult("weather", "v1")})
	w.Write([]PluginResult{successResult("weather", "v2")})
	w.Write([]PluginResult{successResult("weather", "v3")})

	entries, err := os.ReadDir(filepath.Join(dir, "history"))
	if err != nil {
		t.Fatalf("history dir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 preserved versions, got %d", len(entries))
	}
	got := map[string]bool{}
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(dir, "history", e.Name()))
		if err != nil {
			t.Fatalf("read %s: %v", e.Name(), err)
		}
		got[string(data)] = true
	}
	if !got["v1"] || !got["v2"] {
		t.Errorf("preserved versions wrong: %v", got)
	}
}

func TestWriterSanitizesKeys(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	if _, errs := w.Write([]PluginResult{successResult("../evil key", "safe")}); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if e.Name() != "history" && filepath.Dir(filepath.Join(dir, e.Name())) != dir {
			t.Errorf("artifact escaped staging dir: %s", e.Name())
		}
	}
	if _, err := os.Stat(filepath.Join(dir, ".._evil_key.txt")); err != nil {
		t.Errorf("sanitized file not found: %v", err)
	}
}

func TestHashContentStable(t *testing.T) {
	a := HashContent("sunny, 20C")
	b := HashContent("sunny, 20C")
	c := HashContent("sunny, 21C")
	if a != b {
		t.Error("hash not deterministic")
	}
	if a == c {
		t.Error("different content hashed equal")
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}
