package models

import "time"

// AuditCommand is the mutation recorded by an audit entry
type AuditCommand string

const (
	AuditInsert AuditCommand = "insert"
	AuditUpdate AuditCommand = "update"
	AuditDelete AuditCommand = "delete"
	// AuditSubmit and AuditCancel are package lifecycle transitions.
	AuditSubmit AuditCommand = "submit"
	AuditCancel AuditCommand = "cancel"
)

// AuditStream names an append-only audit log
type AuditStream string

const (
	StreamProvider      AuditStream = "provider"
	StreamKeyword       AuditStream = "keyword"
	StreamCollection    AuditStream = "collection"
	StreamPackage       AuditStream = "package"
	StreamRecord        AuditStream = "record"
	StreamCollectionTag AuditStream = "collection_tag"
	StreamPackageTag    AuditStream = "package_tag"
	StreamRecordTag     AuditStream = "record_tag"
)

// AuditStreams lists every stream in a stable order
var AuditStreams = []AuditStream{
	StreamProvider,
	StreamKeyword,
	StreamCollection,
	StreamPackage,
	StreamRecord,
	StreamCollectionTag,
	StreamPackageTag,
	StreamRecordTag,
}

// AuditRecord is an immutable snapshot of an entity or tag instance taken
// when a mutation committed. Snapshot keys carry a leading underscore.
type AuditRecord struct {
	ID        int64          `json:"audit_id"`
	Stream    AuditStream    `json:"table"`
	ClientID  string         `json:"client_id"`
	UserID    *string        `json:"user_id,omitempty"`
	Command   AuditCommand   `json:"command"`
	Timestamp time.Time      `json:"timestamp"`
	EntityID  string         `json:"entity_id"`
	Snapshot  map[string]any `json:"snapshot"`
}

// AuditFilter selects audit records
type AuditFilter struct {
	Stream   AuditStream
	EntityID string
	// Field restricts to records whose snapshot field equals Value, e.g.
	// tag audit rows by "_collection_id".
	Field string
	Value string
}
