// Package elevenlabs implements almanac.KnowledgeBase against the
// ElevenLabs conversational-AI API.
//
// Documents are created as text entries in the workspace knowledge base;
// attachment to the agent is a read-modify-write of the agent's
// conversation_config.agent.prompt.knowledge_base list. The API cannot edit
// a text document in place, so ReplaceDocument creates the new document,
// swaps the attachment, then deletes the old document.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/almanac-ai/almanac"
)

const defaultBaseURL = "https://api.elevenlabs.io/v1"

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL (useful for tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client. Default: 30s timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithLogger sets a structured logger for API calls.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// Client talks to the ElevenLabs convai API for one agent.
type Client struct {
	apiKey  string
	agentID string
	baseURL string
	client  *http.Client
	logger  *slog.Logger

	// agentMu serializes agent config read-modify-write cycles. Attach,
	// detach, and replace all rewrite the same knowledge_base list; without
	// serialization two concurrent key syncs would clobber each other's
	// entries.
	agentMu sync.Mutex
}

var _ almanac.KnowledgeBase = (*Client)(nil)
var _ almanac.KnowledgeLister = (*Client)(nil)

// New creates a Client for the given workspace API key and agent.
func New(apiKey, agentID string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		agentID: agentID,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(discardHandler{})
	}
	return c
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// kbEntry is one element of the agent's knowledge_base list.
type kbEntry struct {
	Type      string `json:"type"`
	Name      string `json:"name"`
	ID        string `json:"id"`
	UsageMode string `json:"usage_mode"`
}

// agentConfig mirrors the slice of the agent document the client rewrites.
type agentConfig struct {
	ConversationConfig struct {
		Agent struct {
			Prompt struct {
				KnowledgeBase []kbEntry `json:"knowledge_base"`
			} `json:"prompt"`
		} `json:"agent"`
	} `json:"conversation_config"`
}

// CreateDocument uploads content as a text document and returns its id.
func (c *Client) CreateDocument(ctx context.Context, name, content string) (string, error) {
	body := map[string]string{"text": content, "name": name}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, "create_document", http.MethodPost, "/convai/knowledge-base/text", body, &out); err != nil {
		return "", err
	}
	c.logger.Debug("document created", "name", name, "doc_id", out.ID)
	return out.ID, nil
}

// DeleteDocument removes a document from the knowledge base.
func (c *Client) DeleteDocument(ctx context.Context, docID string) error {
	return c.do(ctx, "delete_document", http.MethodDelete, "/convai/knowledge-base/"+docID, nil, nil)
}

// AttachDocument adds the document to the agent's knowledge_base list.
// Idempotent: an entry with the same id is replaced, not duplicated, and a
// stale entry carrying the same name but a different id is dropped — the
// same filter the list applies on every rewrite.
func (c *Client) AttachDocument(ctx context.Context, docID, name string) error {
	c.agentMu.Lock()
	defer c.agentMu.Unlock()

	entries, err := c.loadEntries(ctx)
	if err != nil {
		return err
	}
	filtered := entries[:0]
	for _, e := range entries {
		if e.ID == docID || e.Name == name {
			continue
		}
		filtered = append(filtered, e)
	}
	filtered = append(filtered, kbEntry{Type: "text", Name: name, ID: docID, UsageMode: "auto"})
	return c.patchEntries(ctx, filtered)
}

// DetachDocument removes the document from the agent's knowledge_base list.
// Detaching an id that is not attached is a no-op.
func (c *Client) DetachDocument(ctx context.Context, docID string) error {
	c.agentMu.Lock()
	defer c.agentMu.Unlock()

	entries, err := c.loadEntries(ctx)
	if err != nil {
		return err
	}
	filtered := entries[:0]
	for _, e := range entries {
		if e.ID != docID {
			filtered = append(filtered, e)
		}
	}
	return c.patchEntries(ctx, filtered)
}

// ReplaceDocument swaps the document backing name: create new → swap the
// agent's attachment → delete old. Returns the new document id. If the swap
// fails the new document is deleted again so the old pair stays intact.
func (c *Client) ReplaceDocument(ctx context.Context, docID, name, content string) (string, error) {
	newID, err := c.CreateDocument(ctx, name, content)
	if err != nil {
		return "", err
	}

	if err := c.AttachDocument(ctx, newID, name); err != nil {
		if delErr := c.DeleteDocument(ctx, newID); delErr != nil {
			c.logger.Warn("cleanup of replacement document failed", "doc_id", newID, "error", delErr)
		}
		return "", err
	}

	// Old document is detached by the attach filter above (same name);
	// deleting it is best-effort — a leftover unattached document is
	// harmless and visible to reconcile.
	if err := c.DeleteDocument(ctx, docID); err != nil {
		c.logger.Warn("delete of superseded document failed", "doc_id", docID, "error", err)
	}
	c.logger.Debug("document replaced", "name", name, "old_id", docID, "doc_id", newID)
	return newID, nil
}

// ListDocuments returns every document in the workspace knowledge base,
// attached or not. Reconciliation against the agent uses ListAttached; this
// is the wider view an operator needs to clean up unreferenced documents.
func (c *Client) ListDocuments(ctx context.Context) ([]almanac.RemoteDocument, error) {
	var out struct {
		Documents []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"documents"`
	}
	if err := c.do(ctx, "list_documents", http.MethodGet, "/convai/knowledge-base", nil, &out); err != nil {
		return nil, err
	}
	docs := make([]almanac.RemoteDocument, len(out.Documents))
	for i, d := range out.Documents {
		docs[i] = almanac.RemoteDocument{ID: d.ID, Name: d.Name}
	}
	return docs, nil
}

// ListAttached returns the documents currently attached to the agent.
func (c *Client) ListAttached(ctx context.Context) ([]almanac.RemoteDocument, error) {
	entries, err := c.loadEntries(ctx)
	if err != nil {
		return nil, err
	}
	docs := make([]almanac.RemoteDocument, len(entries))
	for i, e := range entries {
		docs[i] = almanac.RemoteDocument{ID: e.ID, Name: e.Name}
	}
	return docs, nil
}

func (c *Client) loadEntries(ctx context.Context) ([]kbEntry, error) {
	var cfg agentConfig
	if err := c.do(ctx, "get_agent", http.MethodGet, "/convai/agents/"+c.agentID, nil, &cfg); err != nil {
		return nil, err
	}
	return cfg.ConversationConfig.Agent.Prompt.KnowledgeBase, nil
}

func (c *Client) patchEntries(ctx context.Context, entries []kbEntry) error {
	if entries == nil {
		entries = []kbEntry{}
	}
	var cfg agentConfig
	cfg.ConversationConfig.Agent.Prompt.KnowledgeBase = entries
	return c.do(ctx, "update_agent", http.MethodPatch, "/convai/agents/"+c.agentID, cfg, nil)
}

// do performs one API call. Non-2xx responses become *almanac.ErrRemote
// (transient for 429/5xx); transport failures become *almanac.ErrNetwork.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode: %w", op, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &almanac.ErrNetwork{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &almanac.ErrNetwork{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &almanac.ErrRemote{Op: op, Status: resp.StatusCode, Body: string(data)}
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%s: decode: %w", op, err)
		}
	}
	return nil
}
