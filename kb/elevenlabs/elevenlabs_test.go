package elevenlabs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/almanac-ai/almanac"
)

// fakeAPI emulates the slice of the convai API the client uses.
type fakeAPI struct {
	mu      sync.Mutex
	nextID  int
	docs    map[string]string // id -> text
	entries []kbEntry
	apiKeys []string // xi-api-key header of each request
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{docs: map[string]string{}}
}

func (f *fakeAPI) handler(agentID string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /convai/knowledge-base/text", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		var body struct {
			Text string `json:"text"`
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.nextID++
		id := fmt.Sprintf("doc-%d", f.nextID)
		f.docs[id] = body.Text
		f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"id": id})
	})

	mux.HandleFunc("GET /convai/knowledge-base", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		f.mu.Lock()
		defer f.mu.Unlock()
		type doc struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		docs := []doc{}
		for id := range f.docs {
			docs = append(docs, doc{ID: id, Name: "doc"})
		}
		json.NewEncoder(w).Encode(map[string]any{"documents": docs})
	})

	mux.HandleFunc("DELETE /convai/knowledge-base/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		f.mu.Lock()
		defer f.mu.Unlock()
		id := r.PathValue("id")
		if _, ok := f.docs[id]; !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		delete(f.docs, id)
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("GET /convai/agents/"+agentID, func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		f.mu.Lock()
		defer f.mu.Unlock()
		var cfg agentConfig
		cfg.ConversationConfig.Agent.Prompt.KnowledgeBase = f.entries
		json.NewEncoder(w).Encode(cfg)
	})

	mux.HandleFunc("PATCH /convai/agents/"+agentID, func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		var cfg agentConfig
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.entries = cfg.ConversationConfig.Agent.Prompt.KnowledgeBase
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})

	return mux
}

func (f *fakeAPI) record(r *http.Request) {
	f.mu.Lock()
	f.apiKeys = append(f.apiKeys, r.Header.Get("xi-api-key"))
	f.mu.Unlock()
}

func (f *fakeAPI) attachedNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, e := range f.entries {
		names = append(names, e.Name)
	}
	return names
}

func newTestClient(t *testing.T) (*Client, *fakeAPI) {
	t.Helper()
	api := newFakeAPI()
	srv := httptest.NewServer(api.handler("agent-1"))
	t.Cleanup(srv.Close)
	return New("secret-key", "agent-1", WithBaseURL(srv.URL)), api
}

func TestCreateDocument(t *testing.T) {
	c, api := newTestClient(t)

	id, err := c.CreateDocument(context.Background(), "weather", "sunny, 20C")
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	if id != "doc-1" {
		t.Errorf("id %q", id)
	}
	if got := api.docs[id]; got != "sunny, 20C" {
		t.Errorf("stored text %q", got)
	}
	for _, k := range api.apiKeys {
		if k != "secret-key" {
			t.Fatalf("request missing api key header: %q", k)
		}
	}
}

func TestAttachDocument(t *testing.T) {
	c, api := newTestClient(t)
	ctx := context.Background()

	id, _ := c.CreateDocument(ctx, "weather", "sunny")
	if err := c.AttachDocument(ctx, id, "weather"); err != nil {
		t.Fatalf("AttachDocument: %v", err)
	}

	if len(api.entries) != 1 {
		t.Fatalf("entries: %+v", api.entries)
	}
	e := api.entries[0]
	if e.ID != id || e.Name != "weather" || e.Type != "text" || e.UsageMode != "auto" {
		t.Errorf("entry %+v", e)
	}
}

func TestAttachDocumentDropsStaleSameNameEntry(t *testing.T) {
	c, api := newTestClient(t)
	ctx := context.Background()

	oldID, _ := c.CreateDocument(ctx, "weather", "old")
	c.AttachDocument(ctx, oldID, "weather")
	newID, _ := c.CreateDocument(ctx, "weather", "new")
	if err := c.AttachDocument(ctx, newID, "weather"); err != nil {
		t.Fatalf("AttachDocument: %v", err)
	}

	if len(api.entries) != 1 || api.entries[0].ID != newID {
		t.Errorf("stale entry not dropped: %+v", api.entries)
	}
}

func TestAttachDocumentIdempotent(t *testing.T) {
	c, api := newTestClient(t)
	ctx := context.Background()

	id, _ := c.CreateDocument(ctx, "weather", "sunny")
	c.AttachDocument(ctx, id, "weather")
	c.AttachDocument(ctx, id, "weather")

	if len(api.entries) != 1 {
		t.Errorf("duplicate entries: %+v", api.entries)
	}
}

func TestDetachDocument(t *testing.T) {
	c, api := newTestClient(t)
	ctx := context.Background()

	id, _ := c.CreateDocument(ctx, "weather", "sunny")
	c.AttachDocument(ctx, id, "weather")
	other, _ := c.CreateDocument(ctx, "news", "headlines")
	c.AttachDocument(ctx, other, "news")

	if err := c.DetachDocument(ctx, id); err != nil {
		t.Fatalf("DetachDocument: %v", err)
	}
	if got := api.attachedNames(); len(got) != 1 || got[0] != "news" {
		t.Errorf("attached after detach: %v", got)
	}

	// Detaching an id that is not attached is a no-op.
	if err := c.DetachDocument(ctx, "doc-unknown"); err != nil {
		t.Errorf("detach of unknown id: %v", err)
	}
}

func TestReplaceDocumentSwapsAndDeletesOld(t *testing.T) {
	c, api := newTestClient(t)
	ctx := context.Background()

	oldID, _ := c.CreateDocument(ctx, "weather", "sunny")
	c.AttachDocument(ctx, oldID, "weather")

	newID, err := c.ReplaceDocument(ctx, oldID, "weather", "rainy")
	if err != nil {
		t.Fatalf("ReplaceDocument: %v", err)
	}
	if newID == oldID {
		t.Fatal("replace returned the old id")
	}
	if len(api.entries) != 1 || api.entries[0].ID != newID {
		t.Errorf("attachment not swapped: %+v", api.entries)
	}
	if _, ok := api.docs[oldID]; ok {
		t.Error("old document not deleted")
	}
	if got := api.docs[newID]; got != "rainy" {
		t.Errorf("new document text %q", got)
	}
}

func TestListAttached(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	id, _ := c.CreateDocument(ctx, "weather", "sunny")
	c.AttachDocument(ctx, id, "weather")

	docs, err := c.ListAttached(ctx)
	if err != nil {
		t.Fatalf("ListAttached: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != id || docs[0].Name != "weather" {
		t.Errorf("docs %+v", docs)
	}
}

func TestListDocumentsIncludesUnattached(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	attached, _ := c.CreateDocument(ctx, "weather", "sunny")
	c.AttachDocument(ctx, attached, "weather")
	orphan, _ := c.CreateDocument(ctx, "stray", "left behind")

	docs, err := c.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	ids := map[string]bool{}
	for _, d := range docs {
		ids[d.ID] = true
	}
	if !ids[attached] || !ids[orphan] {
		t.Errorf("expected both %s and %s, got %+v", attached, orphan, docs)
	}
}

func TestErrorMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "knowledge-base") {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()
	c := New("key", "agent-1", WithBaseURL(srv.URL))
	ctx := context.Background()

	_, err := c.CreateDocument(ctx, "weather", "sunny")
	var re *almanac.ErrRemote
	if !errors.As(err, &re) || re.Status != http.StatusTooManyRequests {
		t.Fatalf("expected 429 ErrRemote, got %v", err)
	}
	if !almanac.IsTransient(err) {
		t.Error("429 should be transient")
	}

	_, err = c.ListAttached(ctx)
	if !errors.As(err, &re) || re.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 ErrRemote, got %v", err)
	}
	if almanac.IsTransient(err) {
		t.Error("401 should be permanent")
	}
}

func TestNetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // connection refused from here on
	c := New("key", "agent-1", WithBaseURL(srv.URL))

	_, err := c.CreateDocument(context.Background(), "weather", "sunny")
	var ne *almanac.ErrNetwork
	if !errors.As(err, &ne) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
	if !almanac.IsTransient(err) {
		t.Error("network error should be transient")
	}
}
