package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/opendataplatform/registry/common/logger"
	"github.com/opendataplatform/registry/common/models"
	"github.com/opendataplatform/registry/common/repository"
	"github.com/opendataplatform/registry/common/telemetry"
)

// AuditRecorder appends snapshots of committed mutations to the audit streams.
// Record must be called with the transaction that performs the mutation.
type AuditRecorder struct {
	metrics *telemetry.Metrics
	log     *logger.Logger
}

// NewAuditRecorder creates an audit recorder
func NewAuditRecorder(metrics *telemetry.Metrics, log *logger.Logger) *AuditRecorder {
	return &AuditRecorder{metrics: metrics, log: log}
}

// Record writes one audit entry. The snapshot is stored as JSON, keyed by
// underscore-prefixed field names.
func (r *AuditRecorder) Record(
	ctx context.Context,
	tx repository.Tx,
	actor models.Actor,
	stream models.AuditStream,
	command models.AuditCommand,
	entityID string,
	timestamp time.Time,
	snapshot map[string]any,
) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode %s audit snapshot: %w", stream, err)
	}
	var normalized map[string]any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return fmt.Errorf("decode %s audit snapshot: %w", stream, err)
	}

	rec := &models.AuditRecord{
		Stream:    stream,
		ClientID:  actor.ClientID,
		UserID:    actor.UserID,
		Command:   command,
		Timestamp: timestamp,
		EntityID:  entityID,
		Snapshot:  normalized,
	}
	if err := tx.InsertAudit(ctx, rec); err != nil {
		return fmt.Errorf("write %s audit record: %w", stream, err)
	}

	r.metrics.AuditEntry(string(stream), string(command))
	r.log.Debug("audit record written",
		"stream", stream,
		"command", command,
		"entity_id", entityID,
		"audit_id", rec.ID,
	)
	return nil
}

// AuditLogEntry is one line of an entity's merged audit log
type AuditLogEntry struct {
	Table     models.AuditStream  `json:"table"`
	TagID     *string             `json:"tag_id"`
	AuditID   int64               `json:"audit_id"`
	ClientID  string              `json:"client_id"`
	UserID    *string             `json:"user_id"`
	Command   models.AuditCommand `json:"command"`
	Timestamp time.Time           `json:"timestamp"`
}

// auditedKinds maps an entity stream to the stream of its tag instances
var auditedKinds = map[models.AuditStream]struct {
	tagStream models.AuditStream
	field     string
}{
	models.StreamCollection: {models.StreamCollectionTag, "_collection_id"},
	models.StreamPackage:    {models.StreamPackageTag, "_package_id"},
	models.StreamRecord:     {models.StreamRecordTag, "_record_id"},
}

// AuditService answers audit log queries
type AuditService struct {
	store repository.Store
	log   *logger.Logger
}

// NewAuditService creates an audit query service
func NewAuditService(store repository.Store, log *logger.Logger) *AuditService {
	return &AuditService{store: store, log: log}
}

// EntityLog returns the audit history of one entity, merging the entity's own
// stream with the stream of its tag instances, oldest first
func (s *AuditService) EntityLog(ctx context.Context, stream models.AuditStream, entityID string) ([]*AuditLogEntry, error) {
	var entries []*AuditLogEntry

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		own, err := tx.ListAudit(ctx, models.AuditFilter{Stream: stream, EntityID: entityID})
		if err != nil {
			return err
		}
		for _, rec := range own {
			entries = append(entries, logEntry(rec, nil))
		}

		tagged, ok := auditedKinds[stream]
		if !ok {
			return nil
		}
		tagRecs, err := tx.ListAudit(ctx, models.AuditFilter{
			Stream: tagged.tagStream,
			Field:  tagged.field,
			Value:  entityID,
		})
		if err != nil {
			return err
		}
		for _, rec := range tagRecs {
			var tagID *string
			if id, ok := rec.Snapshot["_tag_id"].(string); ok {
				tagID = &id
			}
			entries = append(entries, logEntry(rec, tagID))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.Before(entries[j].Timestamp)
		}
		if entries[i].Table != entries[j].Table {
			return entries[i].Table < entries[j].Table
		}
		return entries[i].AuditID < entries[j].AuditID
	})
	return entries, nil
}

// GetEntry returns one audit record with its full snapshot
func (s *AuditService) GetEntry(ctx context.Context, stream models.AuditStream, auditID int64) (*models.AuditRecord, error) {
	var rec *models.AuditRecord
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		rec, err = tx.GetAudit(ctx, stream, auditID)
		return notFound(err, "audit record %s/%d not found", stream, auditID)
	})
	return rec, err
}

func logEntry(rec *models.AuditRecord, tagID *string) *AuditLogEntry {
	return &AuditLogEntry{
		Table:     rec.Stream,
		TagID:     tagID,
		AuditID:   rec.ID,
		ClientID:  rec.ClientID,
		UserID:    rec.UserID,
		Command:   rec.Command,
		Timestamp: rec.Timestamp,
	}
}
