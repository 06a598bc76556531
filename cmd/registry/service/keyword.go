package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/opendataplatform/registry/common/cache"
	"github.com/opendataplatform/registry/common/errs"
	"github.com/opendataplatform/registry/common/logger"
	"github.com/opendataplatform/registry/common/models"
	"github.com/opendataplatform/registry/common/repository"
	"github.com/opendataplatform/registry/common/schema"
	"github.com/opendataplatform/registry/common/telemetry"
)

const hierarchyCacheKey = "keyword:hierarchy"

// KeywordPage is one window of a keyword listing
type KeywordPage struct {
	Items []*models.KeywordHierarchy `json:"items"`
	Total int                        `json:"total"`
}

// KeywordService manages vocabulary keywords and answers hierarchy queries
type KeywordService struct {
	store   repository.Store
	schemas SchemaService
	cache   cache.Cache
	ttl     time.Duration
	audit   *AuditRecorder
	metrics *telemetry.Metrics
	log     *logger.Logger
}

// NewKeywordService creates a keyword service. c may be nil, in which case
// the hierarchy is recomputed on every query.
func NewKeywordService(
	store repository.Store,
	schemas SchemaService,
	c cache.Cache,
	ttl time.Duration,
	audit *AuditRecorder,
	metrics *telemetry.Metrics,
	log *logger.Logger,
) *KeywordService {
	return &KeywordService{
		store:   store,
		schemas: schemas,
		cache:   c,
		ttl:     ttl,
		audit:   audit,
		metrics: metrics,
		log:     log,
	}
}

// hierarchy returns every keyword with its ancestor path. Cached entries are
// keyed by the store's keyword version, so a write by any instance makes
// older entries unreachable.
func (s *KeywordService) hierarchy(ctx context.Context, tx repository.Tx) ([]*models.KeywordHierarchy, error) {
	var key string
	if s.cache != nil {
		version, err := tx.KeywordVersion(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read keyword version: %w", err)
		}
		key = hierarchyCacheKey + ":" + strconv.FormatInt(version, 10)

		if raw, ok, err := s.cache.Get(ctx, key); err != nil {
			s.log.Warn("keyword hierarchy cache read failed", "error", err)
		} else if ok {
			var rows []*models.KeywordHierarchy
			if err := json.Unmarshal(raw, &rows); err == nil {
				return rows, nil
			}
		}
	}

	keywords, err := tx.ListKeywords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list keywords: %w", err)
	}
	rows, err := BuildHierarchy(keywords)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(rows); err == nil {
			if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
				s.log.Warn("keyword hierarchy cache write failed", "error", err)
			}
		}
	}
	return rows, nil
}

// ListAll returns keywords of all vocabularies, or of vocabularyIDs if given.
// A keyword whose parent lies in another vocabulary has no path and is left out.
func (s *KeywordService) ListAll(ctx context.Context, vocabularyIDs []string, page Page) (*KeywordPage, error) {
	var rows []*models.KeywordHierarchy
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		all, err := s.hierarchy(ctx, tx)
		if err != nil {
			return err
		}
		for _, row := range all {
			if len(vocabularyIDs) == 0 || slices.Contains(vocabularyIDs, row.VocabularyID) {
				rows = append(rows, row)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	start, end := page.apply(len(rows))
	return &KeywordPage{Items: rows[start:end], Total: len(rows)}, nil
}

// GetAny returns a keyword regardless of status. A keyword whose parent lies
// in another vocabulary has no path and is reported as not found.
func (s *KeywordService) GetAny(ctx context.Context, id int) (*models.KeywordHierarchy, error) {
	var found *models.KeywordHierarchy
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		all, err := s.hierarchy(ctx, tx)
		if err != nil {
			return err
		}
		for _, row := range all {
			if row.ID == id {
				found = row
				return nil
			}
		}
		return errs.NotFound("keyword %d not found", id)
	})
	return found, err
}

// List returns the approved keywords of a vocabulary, and proposed ones if
// includeProposed is set. With parentKey, only direct children of that
// keyword are returned. Approved keywords under an unapproved ancestor are
// still listed.
func (s *KeywordService) List(ctx context.Context, vocabularyID string, parentKey *string, includeProposed bool) ([]*models.KeywordHierarchy, error) {
	statuses := []models.KeywordStatus{models.KeywordApproved}
	if includeProposed {
		statuses = append(statuses, models.KeywordProposed)
	}

	var rows []*models.KeywordHierarchy
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetVocabulary(ctx, vocabularyID); err != nil {
			return notFound(err, "vocabulary %s not found", vocabularyID)
		}

		var parentID *int
		if parentKey != nil {
			parent, err := tx.GetKeywordByKey(ctx, vocabularyID, *parentKey)
			if err != nil {
				return notFound(err, "parent keyword %s not found", *parentKey)
			}
			parentID = &parent.ID
		}

		all, err := s.hierarchy(ctx, tx)
		if err != nil {
			return err
		}
		for _, row := range all {
			if row.VocabularyID != vocabularyID || !slices.Contains(statuses, row.Status) {
				continue
			}
			if parentID != nil && (row.ParentID == nil || *row.ParentID != *parentID) {
				continue
			}
			rows = append(rows, row)
		}
		return nil
	})
	return rows, err
}

// Get returns an approved keyword by key. A keyword in any other status is
// reported as not found.
func (s *KeywordService) Get(ctx context.Context, vocabularyID, key string) (*models.KeywordHierarchy, error) {
	var found *models.KeywordHierarchy
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		all, err := s.hierarchy(ctx, tx)
		if err != nil {
			return err
		}
		for _, row := range all {
			if row.VocabularyID == vocabularyID && row.Key == key {
				found = row
				break
			}
		}
		if found == nil || found.Status != models.KeywordApproved {
			found = nil
			return errs.NotFound("keyword %s/%s not found", vocabularyID, key)
		}
		return nil
	})
	return found, err
}

// Suggest creates a proposed keyword
func (s *KeywordService) Suggest(ctx context.Context, actor models.Actor, vocabularyID string, in models.KeywordInput) (*models.Keyword, error) {
	in.Status = models.KeywordProposed
	return s.create(ctx, actor, vocabularyID, in)
}

// Create creates a keyword with the requested status
func (s *KeywordService) Create(ctx context.Context, actor models.Actor, vocabularyID string, in models.KeywordInput) (*models.Keyword, error) {
	if !in.Status.Valid() {
		return nil, errs.Unprocessable("invalid keyword status %q", in.Status)
	}
	return s.create(ctx, actor, vocabularyID, in)
}

func (s *KeywordService) create(ctx context.Context, actor models.Actor, vocabularyID string, in models.KeywordInput) (*models.Keyword, error) {
	kw := &models.Keyword{
		VocabularyID: vocabularyID,
		Key:          in.Key,
		Data:         in.Data,
		Status:       in.Status,
		ParentID:     in.ParentID,
	}

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if err := s.validateInput(ctx, tx, vocabularyID, in); err != nil {
			return err
		}

		if _, err := tx.GetKeywordByKey(ctx, vocabularyID, in.Key); err == nil {
			return errs.Conflict("keyword '%s' already exists", in.Key)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		if err := tx.CreateKeyword(ctx, kw); err != nil {
			if errors.Is(err, repository.ErrUniqueViolation) {
				return errs.Conflict("keyword '%s' already exists", in.Key)
			}
			return fmt.Errorf("failed to create keyword: %w", err)
		}

		return s.audit.Record(ctx, tx, actor, models.StreamKeyword, models.AuditInsert,
			strconv.Itoa(kw.ID), now(), keywordSnapshot(kw))
	})
	if err != nil {
		return nil, err
	}

	s.metrics.KeywordMutation(string(models.AuditInsert))
	s.log.WithActor(actor.ClientID, actor.UserID).Info("created keyword",
		"vocabulary_id", vocabularyID,
		"keyword_id", kw.ID,
		"key", kw.Key,
		"status", kw.Status,
	)
	return kw, nil
}

// Update replaces a keyword's fields. It returns nil without writing
// anything when no field changes.
func (s *KeywordService) Update(ctx context.Context, actor models.Actor, vocabularyID string, id int, in models.KeywordInput) (*models.Keyword, error) {
	if !in.Status.Valid() {
		return nil, errs.Unprocessable("invalid keyword status %q", in.Status)
	}

	var updated *models.Keyword
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if err := s.validateInput(ctx, tx, vocabularyID, in); err != nil {
			return err
		}

		kw, err := tx.GetKeyword(ctx, vocabularyID, id)
		if err != nil {
			return notFound(err, "keyword %d not found", id)
		}

		if kw.Key == in.Key && jsonEqual(kw.Data, in.Data) && kw.Status == in.Status && sameInt(kw.ParentID, in.ParentID) {
			return nil
		}

		if in.ParentID != nil {
			if err := checkAncestry(ctx, tx, vocabularyID, id, *in.ParentID); err != nil {
				return err
			}
		}

		kw.Key = in.Key
		kw.Data = in.Data
		kw.Status = in.Status
		kw.ParentID = in.ParentID

		if err := tx.UpdateKeyword(ctx, kw); err != nil {
			if errors.Is(err, repository.ErrUniqueViolation) {
				return errs.Conflict("keyword '%s' already exists", in.Key)
			}
			return fmt.Errorf("failed to update keyword: %w", err)
		}
		updated = kw

		return s.audit.Record(ctx, tx, actor, models.StreamKeyword, models.AuditUpdate,
			strconv.Itoa(kw.ID), now(), keywordSnapshot(kw))
	})
	if err != nil || updated == nil {
		return nil, err
	}

	s.metrics.KeywordMutation(string(models.AuditUpdate))
	s.log.WithActor(actor.ClientID, actor.UserID).Info("updated keyword",
		"vocabulary_id", vocabularyID,
		"keyword_id", id,
		"status", updated.Status,
	)
	return updated, nil
}

// Delete removes a keyword that has no children and is not applied by any
// tag instance
func (s *KeywordService) Delete(ctx context.Context, actor models.Actor, vocabularyID string, id int) error {
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		kw, err := tx.GetKeyword(ctx, vocabularyID, id)
		if err != nil {
			return notFound(err, "keyword %d not found", id)
		}

		keywords, err := tx.ListKeywords(ctx)
		if err != nil {
			return fmt.Errorf("failed to list keywords: %w", err)
		}
		for _, other := range keywords {
			if other.ParentID != nil && *other.ParentID == id {
				return errs.Unprocessable("keyword '%d' has child keywords", id)
			}
		}

		if err := s.audit.Record(ctx, tx, actor, models.StreamKeyword, models.AuditDelete,
			strconv.Itoa(kw.ID), now(), keywordSnapshot(kw)); err != nil {
			return err
		}

		if err := tx.DeleteKeyword(ctx, vocabularyID, id); err != nil {
			if errors.Is(err, repository.ErrForeignKeyViolation) {
				return errs.Unprocessable("keyword '%d' is applied by tag instances", id)
			}
			return fmt.Errorf("failed to delete keyword: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.KeywordMutation(string(models.AuditDelete))
	s.log.WithActor(actor.ClientID, actor.UserID).Info("deleted keyword",
		"vocabulary_id", vocabularyID,
		"keyword_id", id,
	)
	return nil
}

// validateInput checks the vocabulary, the parent and the keyword data
func (s *KeywordService) validateInput(ctx context.Context, tx repository.Tx, vocabularyID string, in models.KeywordInput) error {
	vocab, err := tx.GetVocabulary(ctx, vocabularyID)
	if err != nil {
		return notFound(err, "vocabulary %s not found", vocabularyID)
	}

	if in.ParentID != nil {
		if _, err := tx.GetKeyword(ctx, vocabularyID, *in.ParentID); err != nil {
			return notFound(err, "parent keyword %d not found", *in.ParentID)
		}
	}

	validity, err := s.schemas.Validate(ctx, schema.TypeVocabulary, vocab.SchemaID, in.Data)
	if err != nil {
		return err
	}
	if !validity.Valid {
		return invalid(validity, "keyword data does not conform to %s", vocab.SchemaID)
	}
	return nil
}

// checkAncestry rejects a parent that is the keyword itself or one of its descendants
func checkAncestry(ctx context.Context, tx repository.Tx, vocabularyID string, id, parentID int) error {
	for cur := &parentID; cur != nil; {
		if *cur == id {
			return errs.Unprocessable("keyword %d cannot be a descendant of itself", id)
		}
		parent, err := tx.GetKeyword(ctx, vocabularyID, *cur)
		if err != nil {
			return notFound(err, "parent keyword %d not found", *cur)
		}
		cur = parent.ParentID
	}
	return nil
}

func keywordSnapshot(kw *models.Keyword) map[string]any {
	return map[string]any{
		"_vocabulary_id": kw.VocabularyID,
		"_id":            kw.ID,
		"_key":           kw.Key,
		"_data":          kw.Data,
		"_status":        kw.Status,
		"_parent_id":     kw.ParentID,
	}
}
