package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/opendataplatform/registry/common/errs"
	"github.com/opendataplatform/registry/common/logger"
	"github.com/opendataplatform/registry/common/models"
	"github.com/opendataplatform/registry/common/repository"
	"github.com/opendataplatform/registry/common/schema"
	"github.com/opendataplatform/registry/common/telemetry"
)

// TagKind binds the tag instance manager to one taggable entity kind
type TagKind struct {
	Kind      models.EntityKind
	TagStream models.AuditStream
	// exists reports whether the owning entity is present.
	exists func(ctx context.Context, tx repository.Tx, id string) error
}

var (
	CollectionTags = TagKind{
		Kind:      models.KindCollection,
		TagStream: models.StreamCollectionTag,
		exists: func(ctx context.Context, tx repository.Tx, id string) error {
			_, err := tx.GetCollection(ctx, id)
			return err
		},
	}
	PackageTags = TagKind{
		Kind:      models.KindPackage,
		TagStream: models.StreamPackageTag,
		exists: func(ctx context.Context, tx repository.Tx, id string) error {
			_, err := tx.GetPackage(ctx, id)
			return err
		},
	}
	RecordTags = TagKind{
		Kind:      models.KindRecord,
		TagStream: models.StreamRecordTag,
		exists: func(ctx context.Context, tx repository.Tx, id string) error {
			_, err := tx.GetRecord(ctx, id)
			return err
		},
	}
)

// Tagger applies and removes tag instances on one entity kind, enforcing
// cardinality and ownership
type Tagger struct {
	kind    TagKind
	store   repository.Store
	schemas SchemaService
	audit   *AuditRecorder
	metrics *telemetry.Metrics
	log     *logger.Logger
}

// NewTagger creates a tagger for kind
func NewTagger(
	kind TagKind,
	store repository.Store,
	schemas SchemaService,
	audit *AuditRecorder,
	metrics *telemetry.Metrics,
	log *logger.Logger,
) *Tagger {
	return &Tagger{
		kind:    kind,
		store:   store,
		schemas: schemas,
		audit:   audit,
		metrics: metrics,
		log:     log,
	}
}

// Kind returns the entity kind this tagger serves
func (t *Tagger) Kind() models.EntityKind {
	return t.kind.Kind
}

// GetTag returns a tag definition of this tagger's kind
func (t *Tagger) GetTag(ctx context.Context, tagID string) (*models.Tag, error) {
	var tag *models.Tag
	err := t.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		tag, err = tx.GetTag(ctx, t.kind.Kind, tagID)
		return notFound(err, "tag %s not found", tagID)
	})
	return tag, err
}

// ListTags returns the tag definitions of this tagger's kind
func (t *Tagger) ListTags(ctx context.Context) ([]*models.Tag, error) {
	var tags []*models.Tag
	err := t.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		tags, err = tx.ListTags(ctx, t.kind.Kind)
		return err
	})
	return tags, err
}

// ListTagInstances returns an entity's tag instances in the order they were created
func (t *Tagger) ListTagInstances(ctx context.Context, entityID string) ([]*models.TagInstance, error) {
	var instances []*models.TagInstance
	err := t.store.WithTx(ctx, func(tx repository.Tx) error {
		if err := t.kind.exists(ctx, tx, entityID); err != nil {
			return notFound(err, "%s %s not found", t.kind.Kind, entityID)
		}

		var err error
		if instances, err = tx.ListTagInstances(ctx, t.kind.Kind, entityID); err != nil {
			return fmt.Errorf("failed to list tag instances: %w", err)
		}
		for _, inst := range instances {
			if err := withKeywordPath(ctx, tx, inst); err != nil {
				return err
			}
		}
		return nil
	})
	return instances, err
}

// SetTag applies a tag to an entity. Under cardinality "one" the entity's
// instance is updated, under "user" the actor's own instance is updated, and
// under "multi" a new instance is always created. Resubmitting the current
// data and keyword returns the existing instance without writing anything.
func (t *Tagger) SetTag(ctx context.Context, actor models.Actor, entityID string, in models.TagInstanceInput) (*models.TagInstance, error) {
	var (
		result  *models.TagInstance
		command models.AuditCommand
	)

	err := t.store.WithTx(ctx, func(tx repository.Tx) error {
		if err := t.kind.exists(ctx, tx, entityID); err != nil {
			return notFound(err, "%s %s not found", t.kind.Kind, entityID)
		}

		tag, err := tx.GetTag(ctx, t.kind.Kind, in.TagID)
		if err != nil {
			return notFound(err, "tag %s not found", in.TagID)
		}

		var keywordID *int
		if tag.VocabularyID != nil {
			if in.Keyword == nil {
				return errs.NotFound("keyword not found")
			}
			kw, err := tx.GetKeywordByKey(ctx, *tag.VocabularyID, *in.Keyword)
			if err != nil {
				return notFound(err, "keyword %s not found", *in.Keyword)
			}
			keywordID = &kw.ID
		} else if in.Keyword != nil {
			return errs.Unprocessable("keyword not allowed for tag %s", tag.ID)
		}

		data := in.Data
		if data == nil {
			data = map[string]any{}
		}

		inst, err := t.resolve(ctx, tx, actor, entityID, tag)
		if err != nil {
			return err
		}

		if inst != nil {
			command = models.AuditUpdate
			if jsonEqual(inst.Data, data) && sameInt(inst.KeywordID, keywordID) {
				result = inst
				command = ""
				return withKeywordPath(ctx, tx, inst)
			}
		} else {
			command = models.AuditInsert
			inst = &models.TagInstance{
				ID:          uuid.NewString(),
				EntityID:    entityID,
				TagID:       tag.ID,
				Cardinality: tag.Cardinality,
				Public:      tag.Public,
			}
		}

		validity, err := t.schemas.Validate(ctx, schema.TypeTag, tag.SchemaID, data)
		if err != nil {
			return err
		}
		if !validity.Valid {
			return invalid(validity, "tag data does not conform to %s", tag.SchemaID)
		}

		prev := repository.InstanceVersionOf(inst)
		ts := now()
		inst.UserID = actor.UserID
		inst.VocabularyID = tag.VocabularyID
		inst.KeywordID = keywordID
		inst.Data = data
		inst.Timestamp = ts

		if command == models.AuditInsert {
			err = tx.InsertTagInstance(ctx, t.kind.Kind, inst)
		} else {
			err = tx.UpdateTagInstance(ctx, t.kind.Kind, inst, prev)
		}
		if err != nil {
			if errors.Is(err, repository.ErrUniqueViolation) || errors.Is(err, repository.ErrStaleWrite) {
				return errs.Conflict("tag %s was applied concurrently", tag.ID)
			}
			return fmt.Errorf("failed to %s tag instance: %w", command, err)
		}

		if err := tx.TouchEntity(ctx, t.kind.Kind, entityID, ts); err != nil {
			return fmt.Errorf("failed to touch %s: %w", t.kind.Kind, err)
		}

		if err := t.audit.Record(ctx, tx, actor, t.kind.TagStream, command,
			inst.ID, ts, t.snapshot(inst)); err != nil {
			return err
		}

		if result, err = tx.GetTagInstance(ctx, t.kind.Kind, entityID, inst.ID); err != nil {
			return fmt.Errorf("failed to read tag instance: %w", err)
		}
		return withKeywordPath(ctx, tx, result)
	})
	if err != nil {
		return nil, err
	}

	if command != "" {
		t.metrics.TagCommand(string(t.kind.Kind), string(command))
		t.log.WithActor(actor.ClientID, actor.UserID).
			WithEntity(string(t.kind.Kind), entityID).
			Info("tag applied", "tag_id", result.TagID, "instance_id", result.ID, "command", command)
	}
	return result, nil
}

// resolve finds the instance an apply-tag request targets, or nil for an insert
func (t *Tagger) resolve(ctx context.Context, tx repository.Tx, actor models.Actor, entityID string, tag *models.Tag) (*models.TagInstance, error) {
	filter := repository.TagInstanceFilter{EntityID: entityID, TagID: tag.ID}

	switch tag.Cardinality {
	case models.CardinalityOne:
	case models.CardinalityUser:
		filter.ByUser = true
		filter.UserID = actor.UserID
	case models.CardinalityMulti:
		return nil, nil
	default:
		return nil, errs.Fatal(nil, "tag %s has unknown cardinality %q", tag.ID, tag.Cardinality)
	}

	found, err := tx.FindTagInstances(ctx, t.kind.Kind, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to look up tag instance: %w", err)
	}
	if len(found) == 0 {
		return nil, nil
	}

	inst := found[0]
	if tag.Cardinality == models.CardinalityOne && inst.UserID != nil && !actor.SameUser(inst.UserID) {
		return nil, errs.Conflict("cannot update a tag set by another user")
	}
	return inst, nil
}

// RemoveTag deletes a tag instance from an entity. Unless admin is set, only
// the user who owns the instance may remove it.
func (t *Tagger) RemoveTag(ctx context.Context, actor models.Actor, entityID, instanceID string, admin bool) error {
	var tagID string
	err := t.store.WithTx(ctx, func(tx repository.Tx) error {
		inst, err := tx.GetTagInstance(ctx, t.kind.Kind, entityID, instanceID)
		if err != nil {
			return notFound(err, "tag instance %s not found", instanceID)
		}
		if !admin && !actor.SameUser(inst.UserID) {
			return errs.Forbidden("tag instance %s belongs to another user", instanceID)
		}
		tagID = inst.TagID

		if err := tx.DeleteTagInstance(ctx, t.kind.Kind, inst.ID); err != nil {
			return notFound(err, "tag instance %s not found", instanceID)
		}

		ts := now()
		if err := tx.TouchEntity(ctx, t.kind.Kind, entityID, ts); err != nil {
			return fmt.Errorf("failed to touch %s: %w", t.kind.Kind, err)
		}

		return t.audit.Record(ctx, tx, actor, t.kind.TagStream, models.AuditDelete,
			inst.ID, ts, t.snapshot(inst))
	})
	if err != nil {
		return err
	}

	t.metrics.TagCommand(string(t.kind.Kind), string(models.AuditDelete))
	t.log.WithActor(actor.ClientID, actor.UserID).
		WithEntity(string(t.kind.Kind), entityID).
		Info("tag removed", "tag_id", tagID, "instance_id", instanceID, "admin", admin)
	return nil
}

func (t *Tagger) snapshot(inst *models.TagInstance) map[string]any {
	return map[string]any{
		"_" + string(t.kind.Kind) + "_id": inst.EntityID,
		"_id":                             inst.ID,
		"_tag_id":                         inst.TagID,
		"_user_id":                        inst.UserID,
		"_data":                           inst.Data,
		"_keyword_id":                     inst.KeywordID,
	}
}

// withKeywordPath fills the root-to-keyword path of a vocabulary tag instance
func withKeywordPath(ctx context.Context, tx repository.Tx, inst *models.TagInstance) error {
	if inst.VocabularyID == nil || inst.KeywordID == nil {
		return nil
	}

	var (
		ids  []int
		keys []string
	)
	seen := map[int]bool{}
	for cur := inst.KeywordID; cur != nil; {
		if seen[*cur] {
			return fmt.Errorf("keyword %d is part of a parent cycle", *cur)
		}
		seen[*cur] = true

		kw, err := tx.GetKeyword(ctx, *inst.VocabularyID, *cur)
		if err != nil {
			return fmt.Errorf("failed to resolve keyword %d: %w", *cur, err)
		}
		ids = append([]int{kw.ID}, ids...)
		keys = append([]string{kw.Key}, keys...)
		cur = kw.ParentID
	}

	inst.KeywordIDs = ids
	inst.KeywordKeys = keys
	return nil
}
