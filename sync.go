package almanac

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// KnowledgeBase is the remote document service the synchronizer reconciles
// against. Implementations live under kb/ (see kb/elevenlabs).
//
// ReplaceDocument performs an atomic logical replace from the caller's
// point of view; remote APIs that cannot edit a document in place implement
// it as create-new → swap attachment → delete-old and return the new id.
type KnowledgeBase interface {
	CreateDocument(ctx context.Context, name, content string) (id string, err error)
	ReplaceDocument(ctx context.Context, docID, name, content string) (newID string, err error)
	AttachDocument(ctx context.Context, docID, name string) error
	DetachDocument(ctx context.Context, docID string) error
	DeleteDocument(ctx context.Context, docID string) error
}

// KnowledgeLister is an optional KnowledgeBase capability used by
// Reconcile to detect documents the mapping does not know about.
type KnowledgeLister interface {
	// ListAttached returns the document ids currently attached to the agent.
	ListAttached(ctx context.Context) ([]RemoteDocument, error)
}

// DocumentLister is an optional KnowledgeBase capability giving Reconcile
// the wider workspace view: documents that exist remotely whether or not
// they are attached to the agent. Without it, a document created just
// before a crash (confirmed remotely, never attached) stays invisible.
type DocumentLister interface {
	ListDocuments(ctx context.Context) ([]RemoteDocument, error)
}

// RemoteDocument identifies one document in the remote knowledge base.
type RemoteDocument struct {
	ID   string
	Name string
}

// MappingEntry records the remote document backing one logical key, along
// with the content hash last confirmed synced. The mapping is the single
// source of truth for which remote document corresponds to which plugin.
type MappingEntry struct {
	Key        string
	DocumentID string
	Hash       string
	SyncedAt   int64
}

// MappingStore persists the logical-key → document-id mapping durably
// across runs. Updates must be serialized per key; the synchronizer calls
// Put/Delete for different keys concurrently.
type MappingStore interface {
	Get(ctx context.Context, key string) (MappingEntry, bool, error)
	Put(ctx context.Context, entry MappingEntry) error
	Delete(ctx context.Context, key string) error
	All(ctx context.Context) ([]MappingEntry, error)
}

// SyncAction says what the synchronizer did for one logical key.
type SyncAction string

const (
	ActionCreated   SyncAction = "created"   // new document created and attached
	ActionReplaced  SyncAction = "replaced"  // content changed, document replaced
	ActionUnchanged SyncAction = "unchanged" // hash matched, no remote call
	ActionRemoved   SyncAction = "removed"   // key gone, document detached and deleted
)

// KeyOutcome is the per-key result of a sync pass.
type KeyOutcome struct {
	Key        string
	Action     SyncAction
	DocumentID string
	Err        error
}

// OK reports whether the key synced cleanly.
func (o KeyOutcome) OK() bool { return o.Err == nil }

// SyncOption configures a Synchronizer.
type SyncOption func(*Synchronizer)

// WithSyncLogger sets a structured logger for remote operations.
func WithSyncLogger(l *slog.Logger) SyncOption {
	return func(s *Synchronizer) { s.logger = l }
}

// WithSyncMaxAttempts sets the retry budget for transient remote errors.
// Default: 3.
func WithSyncMaxAttempts(n int) SyncOption {
	return func(s *Synchronizer) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithSyncBaseDelay sets the initial backoff delay. Default: 1s.
func WithSyncBaseDelay(d time.Duration) SyncOption {
	return func(s *Synchronizer) {
		if d > 0 {
			s.baseDelay = d
		}
	}
}

// WithSyncMaxParallel caps concurrent per-key remote operations.
// Default: 4.
func WithSyncMaxParallel(n int) SyncOption {
	return func(s *Synchronizer) {
		if n > 0 {
			s.maxParallel = n
		}
	}
}

// Synchronizer makes the remote attachment set match the local
// current-artifact set: uploads new or changed artifacts, attaches them to
// the agent, and removes documents whose keys are no longer produced.
//
// Keys are independent: a failure on one key's remote operation never
// aborts the others, and already-committed keys are never rolled back. The
// mapping entry for a key is persisted strictly after the remote operation
// is confirmed, so a crash mid-run leaves the mapping consistent with
// whatever the remote service actually did.
type Synchronizer struct {
	kb          KnowledgeBase
	mapping     MappingStore
	maxAttempts int
	baseDelay   time.Duration
	maxParallel int
	logger      *slog.Logger
}

// NewSynchronizer creates a Synchronizer over the given remote client and
// mapping store.
func NewSynchronizer(kb KnowledgeBase, mapping MappingStore, opts ...SyncOption) *Synchronizer {
	s := &Synchronizer{
		kb:          kb,
		mapping:     mapping,
		maxAttempts: 3,
		baseDelay:   time.Second,
		maxParallel: 4,
		logger:      nopLogger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync reconciles artifacts against the mapping and the remote service and
// returns one outcome per touched key, sorted by key. Outcomes with a
// non-nil Err identify keys whose remote state may be stale; everything
// else converged.
func (s *Synchronizer) Sync(ctx context.Context, artifacts []Artifact) ([]KeyOutcome, error) {
	existing, err := s.mapping.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load mapping: %w", err)
	}
	byKey := make(map[string]MappingEntry, len(existing))
	for _, e := range existing {
		byKey[e.Key] = e
	}

	current := make(map[string]bool, len(artifacts))
	outcomes := make([]KeyOutcome, len(artifacts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxParallel)

	for i, art := range artifacts {
		current[art.Key] = true
		entry, known := byKey[art.Key]
		g.Go(func() error {
			outcomes[i] = s.syncOne(gctx, art, entry, known)
			return nil
		})
	}

	// Keys present in the mapping but absent from current artifacts: the
	// plugin was removed (or never produced anything that survived), so the
	// remote document is detached, deleted, and forgotten.
	var removed []MappingEntry
	for _, e := range existing {
		if !current[e.Key] {
			removed = append(removed, e)
		}
	}
	base := len(outcomes)
	outcomes = append(outcomes, make([]KeyOutcome, len(removed))...)
	for i, e := range removed {
		g.Go(func() error {
			outcomes[base+i] = s.removeOne(gctx, e)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(outcomes, func(a, b int) bool { return outcomes[a].Key < outcomes[b].Key })
	return outcomes, nil
}

// syncOne handles one current artifact: create, replace, or skip.
func (s *Synchronizer) syncOne(ctx context.Context, art Artifact, entry MappingEntry, known bool) KeyOutcome {
	switch {
	case !known:
		return s.createOne(ctx, art)
	case entry.Hash == art.Hash:
		s.logger.Debug("key unchanged", "key", art.Key, "doc_id", entry.DocumentID)
		return KeyOutcome{Key: art.Key, Action: ActionUnchanged, DocumentID: entry.DocumentID}
	default:
		return s.replaceOne(ctx, art, entry)
	}
}

func (s *Synchronizer) createOne(ctx context.Context, art Artifact) KeyOutcome {
	out := KeyOutcome{Key: art.Key, Action: ActionCreated}

	id, err := retryCall(ctx, s.maxAttempts, s.baseDelay, "create_document", s.logger, func() (string, error) {
		return s.kb.CreateDocument(ctx, art.Key, art.Content)
	})
	if err != nil {
		out.Err = fmt.Errorf("create: %w", err)
		return out
	}

	if _, err := retryCall(ctx, s.maxAttempts, s.baseDelay, "attach_document", s.logger, func() (struct{}, error) {
		return struct{}{}, s.kb.AttachDocument(ctx, id, art.Key)
	}); err != nil {
		// Never leave a created-but-unattached document behind: delete
		// the fresh document best-effort and report the key failed.
		if delErr := s.kb.DeleteDocument(ctx, id); delErr != nil {
			s.logger.Warn("cleanup of unattached document failed", "key", art.Key, "doc_id", id, "error", delErr)
		}
		out.Err = fmt.Errorf("attach: %w", err)
		return out
	}

	// Remote state confirmed; only now does the mapping learn the id.
	if err := s.mapping.Put(ctx, MappingEntry{Key: art.Key, DocumentID: id, Hash: art.Hash, SyncedAt: NowUnix()}); err != nil {
		out.Err = fmt.Errorf("persist mapping: %w", err)
		return out
	}
	s.logger.Info("document created", "key", art.Key, "doc_id", id)
	out.DocumentID = id
	return out
}

func (s *Synchronizer) replaceOne(ctx context.Context, art Artifact, entry MappingEntry) KeyOutcome {
	out := KeyOutcome{Key: art.Key, Action: ActionReplaced}

	newID, err := retryCall(ctx, s.maxAttempts, s.baseDelay, "replace_document", s.logger, func() (string, error) {
		return s.kb.ReplaceDocument(ctx, entry.DocumentID, art.Key, art.Content)
	})
	if err != nil {
		out.Err = fmt.Errorf("replace: %w", err)
		return out
	}

	if err := s.mapping.Put(ctx, MappingEntry{Key: art.Key, DocumentID: newID, Hash: art.Hash, SyncedAt: NowUnix()}); err != nil {
		out.Err = fmt.Errorf("persist mapping: %w", err)
		return out
	}
	s.logger.Info("document replaced", "key", art.Key, "old_id", entry.DocumentID, "doc_id", newID)
	out.DocumentID = newID
	return out
}

func (s *Synchronizer) removeOne(ctx context.Context, entry MappingEntry) KeyOutcome {
	out := KeyOutcome{Key: entry.Key, Action: ActionRemoved, DocumentID: entry.DocumentID}

	if _, err := retryCall(ctx, s.maxAttempts, s.baseDelay, "detach_document", s.logger, func() (struct{}, error) {
		return struct{}{}, s.kb.DetachDocument(ctx, entry.DocumentID)
	}); err != nil {
		out.Err = fmt.Errorf("detach: %w", err)
		return out
	}
	if _, err := retryCall(ctx, s.maxAttempts, s.baseDelay, "delete_document", s.logger, func() (struct{}, error) {
		return struct{}{}, s.kb.DeleteDocument(ctx, entry.DocumentID)
	}); err != nil {
		out.Err = fmt.Errorf("delete: %w", err)
		return out
	}
	if err := s.mapping.Delete(ctx, entry.Key); err != nil {
		out.Err = fmt.Errorf("remove mapping: %w", err)
		return out
	}
	s.logger.Info("document removed", "key", entry.Key, "doc_id", entry.DocumentID)
	return out
}

// Reconcile lists remote documents and reports those the mapping does not
// know about. The agent's attachment list is always consulted; when the
// client also exposes the workspace document list, unattached leftovers are
// reported too — a crash between create_document and attach_document, or a
// failed delete of a superseded document, leaves exactly such a document.
// Untracked documents are reported, never modified. The operator decides.
func (s *Synchronizer) Reconcile(ctx context.Context) ([]RemoteDocument, error) {
	attLister, hasAttached := s.kb.(KnowledgeLister)
	docLister, hasDocs := s.kb.(DocumentLister)
	if !hasAttached && !hasDocs {
		return nil, fmt.Errorf("reconcile: knowledge base does not support listing")
	}

	var remote []RemoteDocument
	if hasAttached {
		attached, err := attLister.ListAttached(ctx)
		if err != nil {
			return nil, fmt.Errorf("reconcile: list attached: %w", err)
		}
		remote = append(remote, attached...)
	}
	if hasDocs {
		docs, err := docLister.ListDocuments(ctx)
		if err != nil {
			return nil, fmt.Errorf("reconcile: list documents: %w", err)
		}
		remote = append(remote, docs...)
	}

	entries, err := s.mapping.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: load mapping: %w", err)
	}
	mapped := make(map[string]bool, len(entries))
	for _, e := range entries {
		mapped[e.DocumentID] = true
	}

	seen := make(map[string]bool, len(remote))
	var untracked []RemoteDocument
	for _, doc := range remote {
		if mapped[doc.ID] || seen[doc.ID] {
			continue
		}
		seen[doc.ID] = true
		untracked = append(untracked, doc)
	}
	sort.Slice(untracked, func(a, b int) bool { return untracked[a].ID < untracked[b].ID })
	return untracked, nil
}
