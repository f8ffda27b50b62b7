package notes

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeNote(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestName(t *testing.T) {
	if got := New(t.TempDir()).Name(); got != "notes" {
		t.Errorf("Name() = %q", got)
	}
}

func TestCheck(t *testing.T) {
	if err := New(t.TempDir()).Check(); err != nil {
		t.Errorf("Check on valid dir: %v", err)
	}
	if err := New("/no/such/directory").Check(); err == nil {
		t.Error("Check on missing dir should fail")
	}

	f := filepath.Join(t.TempDir(), "file.txt")
	os.WriteFile(f, []byte("x"), 0o644)
	if err := New(f).Check(); err == nil || !strings.Contains(err.Error(), "not a directory") {
		t.Errorf("Check on plain file: %v", err)
	}
}

func TestRunEmptyDir(t *testing.T) {
	out, err := New(t.TempDir()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "No notes available.\n" {
		t.Errorf("output: %q", out)
	}
}

func TestRunMissingDir(t *testing.T) {
	_, err := New("/no/such/directory").Run(context.Background())
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestRunAggregatesSortedWithHeadings(t *testing.T) {
	dir := t.TempDir()
	writeNote(t, dir, "b-shopping.txt", "milk\neggs")
	writeNote(t, dir, "a-ideas.txt", "build a birdhouse")
	writeNote(t, dir, "ignored.docx", "should not appear")

	out, err := New(dir).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	aIdx := strings.Index(out, "## a-ideas.txt")
	bIdx := strings.Index(out, "## b-shopping.txt")
	if aIdx < 0 || bIdx < 0 {
		t.Fatalf("headings missing:\n%s", out)
	}
	if aIdx > bIdx {
		t.Error("notes not sorted by file name")
	}
	if !strings.Contains(out, "build a birdhouse") || !strings.Contains(out, "milk\neggs") {
		t.Errorf("contents missing:\n%s", out)
	}
	if strings.Contains(out, "should not appear") {
		t.Error("unsupported extension was included")
	}
}

func TestRunSkipsEmptyNotes(t *testing.T) {
	dir := t.TempDir()
	writeNote(t, dir, "empty.txt", "   \n\t\n")
	writeNote(t, dir, "real.txt", "content")

	out, err := New(dir).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.Contains(out, "## empty.txt") {
		t.Error("empty note got a heading")
	}
	if !strings.Contains(out, "## real.txt") {
		t.Error("non-empty note missing")
	}
}

func TestRunCancelled(t *testing.T) {
	dir := t.TempDir()
	writeNote(t, dir, "a.txt", "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(dir).Run(ctx); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestMarkdownToText(t *testing.T) {
	src := []byte("# Projects\n\nFinish the *deck* repair.\n\n- sand railings\n- buy stain\n\n```\nmake deck\n```\n")
	got := markdownToText(src)

	for _, want := range []string{"Projects", "Finish the deck repair.", "sand railings", "buy stain", "make deck"} {
		if !strings.Contains(got, want) {
			t.Errorf("flattened text missing %q:\n%s", want, got)
		}
	}
	for _, markup := range []string{"#", "*", "- ", "```"} {
		if strings.Contains(got, markup) {
			t.Errorf("markup %q leaked into text:\n%s", markup, got)
		}
	}
}

func TestRunMarkdownNote(t *testing.T) {
	dir := t.TempDir()
	writeNote(t, dir, "todo.md", "# Today\n\nCall the **dentist**.\n")

	out, err := New(dir).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out, "## todo.md") {
		t.Errorf("heading missing:\n%s", out)
	}
	if !strings.Contains(out, "Call the dentist.") {
		t.Errorf("markdown not flattened:\n%s", out)
	}
}

func TestRunUnreadablePDFGetsMarker(t *testing.T) {
	dir := t.TempDir()
	writeNote(t, dir, "broken.pdf", "this is not a pdf")
	writeNote(t, dir, "ok.txt", "fine")

	out, err := New(dir).Run(context.Background())
	if err != nil {
		t.Fatalf("a broken file must not fail the digest: %v", err)
	}
	if !strings.Contains(out, "## broken.pdf") || !strings.Contains(out, "(unreadable:") {
		t.Errorf("marker missing:\n%s", out)
	}
	if !strings.Contains(out, "fine") {
		t.Errorf("healthy note missing:\n%s", out)
	}
}
