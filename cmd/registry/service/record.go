package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"

	"github.com/opendataplatform/registry/common/errs"
	"github.com/opendataplatform/registry/common/logger"
	"github.com/opendataplatform/registry/common/models"
	"github.com/opendataplatform/registry/common/repository"
	"github.com/opendataplatform/registry/common/schema"
)

var doiPattern = regexp.MustCompile(`^10\.\d+(\.\d+)*/.+$`)

// RecordService manages metadata records. Record metadata is validated on
// every write and the validity report is stored with the record.
type RecordService struct {
	store   repository.Store
	schemas SchemaService
	audit   *AuditRecorder
	log     *logger.Logger
}

func NewRecordService(store repository.Store, schemas SchemaService, audit *AuditRecorder, log *logger.Logger) *RecordService {
	return &RecordService{store: store, schemas: schemas, audit: audit, log: log}
}

func (s *RecordService) Get(ctx context.Context, id string) (*models.Record, error) {
	var r *models.Record
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		r, err = tx.GetRecord(ctx, id)
		return notFound(err, "record %s not found", id)
	})
	return r, err
}

func (s *RecordService) Create(ctx context.Context, actor models.Actor, in models.RecordInput) (*models.Record, error) {
	r := &models.Record{ID: uuid.NewString()}

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if err := s.apply(ctx, tx, r, in); err != nil {
			return err
		}
		if err := tx.CreateRecord(ctx, r); err != nil {
			return recordWriteError(err, "create")
		}
		return s.audit.Record(ctx, tx, actor, models.StreamRecord, models.AuditInsert,
			r.ID, r.Timestamp, recordSnapshot(r))
	})
	if err != nil {
		return nil, err
	}

	s.log.WithActor(actor.ClientID, actor.UserID).
		WithEntity(string(models.KindRecord), r.ID).
		Info("record created", "schema_id", r.SchemaID, "valid", r.Validity["valid"])
	return r, nil
}

// Update replaces a record. An unchanged request writes nothing and returns
// the current record.
func (s *RecordService) Update(ctx context.Context, actor models.Actor, id string, in models.RecordInput) (*models.Record, error) {
	var r *models.Record
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		if r, err = tx.GetRecord(ctx, id); err != nil {
			return notFound(err, "record %s not found", id)
		}

		if sameString(r.DOI, in.DOI) && sameString(r.SID, in.SID) &&
			r.CollectionID == in.CollectionID && r.SchemaID == in.SchemaID &&
			sameString(r.ParentID, in.ParentID) && jsonEqual(r.Metadata, in.Metadata) {
			return nil
		}

		if err := s.apply(ctx, tx, r, in); err != nil {
			return err
		}
		if err := tx.UpdateRecord(ctx, r); err != nil {
			return recordWriteError(err, "update")
		}
		return s.audit.Record(ctx, tx, actor, models.StreamRecord, models.AuditUpdate,
			r.ID, r.Timestamp, recordSnapshot(r))
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Delete removes a record that has no child records
func (s *RecordService) Delete(ctx context.Context, actor models.Actor, id string) error {
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		r, err := tx.GetRecord(ctx, id)
		if err != nil {
			return notFound(err, "record %s not found", id)
		}

		if err := s.audit.Record(ctx, tx, actor, models.StreamRecord, models.AuditDelete,
			r.ID, now(), recordSnapshot(r)); err != nil {
			return err
		}

		if err := tx.DeleteRecord(ctx, id); err != nil {
			if errors.Is(err, repository.ErrForeignKeyViolation) {
				return errs.Unprocessable("a record with child records cannot be deleted")
			}
			return fmt.Errorf("failed to delete record: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.WithActor(actor.ClientID, actor.UserID).
		WithEntity(string(models.KindRecord), id).
		Info("record deleted")
	return nil
}

// apply checks references, validates the metadata and copies in onto r
func (s *RecordService) apply(ctx context.Context, tx repository.Tx, r *models.Record, in models.RecordInput) error {
	if in.DOI == nil && in.SID == nil {
		return errs.Unprocessable("a record requires a DOI or a SID")
	}
	if in.DOI != nil && !doiPattern.MatchString(*in.DOI) {
		return errs.Unprocessable("invalid DOI %q", *in.DOI)
	}
	if _, err := tx.GetCollection(ctx, in.CollectionID); err != nil {
		return notFound(err, "collection %s not found", in.CollectionID)
	}
	if in.ParentID != nil {
		if *in.ParentID == r.ID {
			return errs.Unprocessable("a record cannot be its own parent")
		}
		if _, err := tx.GetRecord(ctx, *in.ParentID); err != nil {
			return notFound(err, "parent record %s not found", *in.ParentID)
		}
	}
	if !s.schemas.Has(schema.TypeMetadata, in.SchemaID) {
		return errs.Unprocessable("unknown metadata schema %s", in.SchemaID)
	}

	metadata := in.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	validity, err := s.schemas.Validate(ctx, schema.TypeMetadata, in.SchemaID, metadata)
	if err != nil {
		return err
	}

	r.DOI = in.DOI
	r.SID = in.SID
	r.CollectionID = in.CollectionID
	r.SchemaID = in.SchemaID
	r.Metadata = metadata
	r.Validity = validity.Map()
	r.ParentID = in.ParentID
	r.Timestamp = now()
	return nil
}

func recordWriteError(err error, action string) error {
	switch {
	case errors.Is(err, repository.ErrUniqueViolation):
		return errs.Conflict("DOI or SID is already in use")
	case errors.Is(err, repository.ErrForeignKeyViolation):
		return errs.Unprocessable("record references a missing collection or parent")
	}
	return fmt.Errorf("failed to %s record: %w", action, err)
}

func recordSnapshot(r *models.Record) map[string]any {
	return map[string]any{
		"_id":            r.ID,
		"_doi":           r.DOI,
		"_sid":           r.SID,
		"_collection_id": r.CollectionID,
		"_schema_id":     r.SchemaID,
		"_metadata":      r.Metadata,
		"_parent_id":     r.ParentID,
	}
}
