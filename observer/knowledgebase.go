package observer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/almanac-ai/almanac"
)

// ObservedKnowledgeBase wraps an almanac.KnowledgeBase with OTEL
// instrumentation. If the inner client supports listing, the wrapper does
// too.
type ObservedKnowledgeBase struct {
	inner almanac.KnowledgeBase
	inst  *Instruments
}

var _ almanac.KnowledgeBase = (*ObservedKnowledgeBase)(nil)

// WrapKnowledgeBase returns an instrumented knowledge-base client.
func WrapKnowledgeBase(inner almanac.KnowledgeBase, inst *Instruments) *ObservedKnowledgeBase {
	return &ObservedKnowledgeBase{inner: inner, inst: inst}
}

func (o *ObservedKnowledgeBase) CreateDocument(ctx context.Context, name, content string) (string, error) {
	var id string
	err := o.observe(ctx, "create_document", name, "", func(ctx context.Context) error {
		var err error
		id, err = o.inner.CreateDocument(ctx, name, content)
		return err
	})
	return id, err
}

func (o *ObservedKnowledgeBase) ReplaceDocument(ctx context.Context, docID, name, content string) (string, error) {
	var newID string
	err := o.observe(ctx, "replace_document", name, docID, func(ctx context.Context) error {
		var err error
		newID, err = o.inner.ReplaceDocument(ctx, docID, name, content)
		return err
	})
	return newID, err
}

func (o *ObservedKnowledgeBase) AttachDocument(ctx context.Context, docID, name string) error {
	return o.observe(ctx, "attach_document", name, docID, func(ctx context.Context) error {
		return o.inner.AttachDocument(ctx, docID, name)
	})
}

func (o *ObservedKnowledgeBase) DetachDocument(ctx context.Context, docID string) error {
	return o.observe(ctx, "detach_document", "", docID, func(ctx context.Context) error {
		return o.inner.DetachDocument(ctx, docID)
	})
}

func (o *ObservedKnowledgeBase) DeleteDocument(ctx context.Context, docID string) error {
	return o.observe(ctx, "delete_document", "", docID, func(ctx context.Context) error {
		return o.inner.DeleteDocument(ctx, docID)
	})
}

// ListAttached implements almanac.KnowledgeLister when the inner client
// does.
func (o *ObservedKnowledgeBase) ListAttached(ctx context.Context) ([]almanac.RemoteDocument, error) {
	lister, ok := o.inner.(almanac.KnowledgeLister)
	if !ok {
		return nil, &almanac.ErrRemote{Op: "list_attached", Status: 0, Body: "listing not supported"}
	}
	var docs []almanac.RemoteDocument
	err := o.observe(ctx, "list_attached", "", "", func(ctx context.Context) error {
		var err error
		docs, err = lister.ListAttached(ctx)
		return err
	})
	return docs, err
}

// ListDocuments implements almanac.DocumentLister when the inner client
// does, keeping the wider reconcile view intact through the wrapper.
func (o *ObservedKnowledgeBase) ListDocuments(ctx context.Context) ([]almanac.RemoteDocument, error) {
	lister, ok := o.inner.(almanac.DocumentLister)
	if !ok {
		return nil, &almanac.ErrRemote{Op: "list_documents", Status: 0, Body: "listing not supported"}
	}
	var docs []almanac.RemoteDocument
	err := o.observe(ctx, "list_documents", "", "", func(ctx context.Context) error {
		var err error
		docs, err = lister.ListDocuments(ctx)
		return err
	})
	return docs, err
}

func (o *ObservedKnowledgeBase) observe(ctx context.Context, op, key, docID string, fn func(context.Context) error) error {
	attrs := []trace.SpanStartOption{trace.WithAttributes(AttrSyncOp.String(op))}
	if key != "" {
		attrs = append(attrs, trace.WithAttributes(AttrSyncKey.String(key)))
	}
	if docID != "" {
		attrs = append(attrs, trace.WithAttributes(AttrDocumentID.String(docID)))
	}
	ctx, span := o.inst.Tracer.Start(ctx, "kb."+op, attrs...)
	defer span.End()
	start := time.Now()

	err := fn(ctx)

	durationMs := float64(time.Since(start).Milliseconds())
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(AttrSyncStatus.String(status))

	mattrs := metric.WithAttributes(
		AttrSyncOp.String(op),
		AttrSyncStatus.String(status),
	)
	o.inst.SyncOps.Add(ctx, 1, mattrs)
	o.inst.SyncDuration.Record(ctx, durationMs, mattrs)
	return err
}
