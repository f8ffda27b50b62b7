// Package notes provides an almanac.Plugin that aggregates a local notes
// directory into one text digest for the knowledge base.
//
// Supported files: .md/.markdown (rendered to plain text via a goldmark AST
// walk), .txt (verbatim), .pdf (text-extracted, pure Go, no CGO).
// Other extensions are skipped.
package notes

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/almanac-ai/almanac"
)

// maxFileBytes caps how much of a single note is read.
const maxFileBytes = 1 << 20

// Plugin aggregates the contents of one directory of notes.
type Plugin struct {
	dir string
}

var _ almanac.Plugin = (*Plugin)(nil)

// New creates the notes plugin over dir.
func New(dir string) *Plugin {
	return &Plugin{dir: dir}
}

// Name implements almanac.Plugin.
func (p *Plugin) Name() string { return "notes" }

// Check verifies the notes directory is readable. Registry construction
// calls this so an unusable source fails the run before any plugin executes.
func (p *Plugin) Check() error {
	info, err := os.Stat(p.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", p.dir)
	}
	return nil
}

// Run reads every supported note, sorted by file name for reproducible
// output, and concatenates them under per-file headings. Individual
// unreadable files are skipped with a marker line rather than failing the
// whole digest.
func (p *Plugin) Run(ctx context.Context) (string, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return "", fmt.Errorf("read notes dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".md", ".markdown", ".txt", ".pdf":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	if len(names) == 0 {
		return "No notes available.\n", nil
	}

	var b strings.Builder
	b.WriteString("Personal notes:\n")
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		content, err := p.readNote(filepath.Join(p.dir, name))
		if err != nil {
			fmt.Fprintf(&b, "\n## %s\n(unreadable: %v)\n", name, err)
			continue
		}
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n%s\n", name, content)
	}
	return b.String(), nil
}

func (p *Plugin) readNote(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if len(data) > maxFileBytes {
		data = data[:maxFileBytes]
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return markdownToText(data), nil
	case ".pdf":
		return pdfToText(data)
	default:
		return string(data), nil
	}
}

// markdownToText flattens markdown to plain text by walking the goldmark
// AST and collecting text segments, one line per block node. Formatting is
// dropped on purpose: the knowledge base wants prose, not markup.
func markdownToText(source []byte) string {
	root := goldmark.DefaultParser().Parse(text.NewReader(source))

	var b strings.Builder
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.HardLineBreak() || t.SoftLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.Write(seg.Value(source))
			}
		case *ast.Heading, *ast.Paragraph, *ast.ListItem:
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
				b.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

// pdfToText extracts plain text from a PDF, page by page. Pages that fail
// to decode are skipped.
func pdfToText(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty PDF content")
	}
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(pageText)
	}
	return b.String(), nil
}
