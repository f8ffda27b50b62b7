package observer

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for pipeline observability spans and metrics.
var (
	AttrPluginName   = attribute.Key("plugin.name")
	AttrPluginStatus = attribute.Key("plugin.status")
	AttrPluginBytes  = attribute.Key("plugin.output_bytes")

	AttrSyncOp     = attribute.Key("sync.op")
	AttrSyncStatus = attribute.Key("sync.status")
	AttrSyncKey    = attribute.Key("sync.key")
	AttrDocumentID = attribute.Key("sync.document_id")
)
