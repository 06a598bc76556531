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
)

// CollectionService manages record collections
type CollectionService struct {
	store repository.Store
	audit *AuditRecorder
	log   *logger.Logger
}

func NewCollectionService(store repository.Store, audit *AuditRecorder, log *logger.Logger) *CollectionService {
	return &CollectionService{store: store, audit: audit, log: log}
}

func (s *CollectionService) Get(ctx context.Context, id string) (*models.Collection, error) {
	var c *models.Collection
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		c, err = tx.GetCollection(ctx, id)
		return notFound(err, "collection %s not found", id)
	})
	return c, err
}

func (s *CollectionService) Create(ctx context.Context, actor models.Actor, in models.CollectionInput) (*models.Collection, error) {
	c := &models.Collection{
		ID:         uuid.NewString(),
		Name:       in.Name,
		DOIKey:     in.DOIKey,
		ProviderID: in.ProviderID,
		Timestamp:  now(),
	}

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetProvider(ctx, in.ProviderID); err != nil {
			return notFound(err, "provider %s not found", in.ProviderID)
		}
		if err := tx.CreateCollection(ctx, c); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		return s.audit.Record(ctx, tx, actor, models.StreamCollection, models.AuditInsert,
			c.ID, c.Timestamp, collectionSnapshot(c))
	})
	if err != nil {
		return nil, err
	}

	s.log.WithActor(actor.ClientID, actor.UserID).
		WithEntity(string(models.KindCollection), c.ID).
		Info("collection created", "name", c.Name)
	return c, nil
}

// Update replaces a collection's attributes. An unchanged request writes
// nothing and returns the current collection.
func (s *CollectionService) Update(ctx context.Context, actor models.Actor, id string, in models.CollectionInput) (*models.Collection, error) {
	var c *models.Collection
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		if c, err = tx.GetCollection(ctx, id); err != nil {
			return notFound(err, "collection %s not found", id)
		}
		if _, err := tx.GetProvider(ctx, in.ProviderID); err != nil {
			return notFound(err, "provider %s not found", in.ProviderID)
		}

		if c.Name == in.Name && sameString(c.DOIKey, in.DOIKey) && c.ProviderID == in.ProviderID {
			return nil
		}

		c.Name = in.Name
		c.DOIKey = in.DOIKey
		c.ProviderID = in.ProviderID
		c.Timestamp = now()

		if err := tx.UpdateCollection(ctx, c); err != nil {
			return fmt.Errorf("failed to update collection: %w", err)
		}
		return s.audit.Record(ctx, tx, actor, models.StreamCollection, models.AuditUpdate,
			c.ID, c.Timestamp, collectionSnapshot(c))
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes a collection that holds no records. Its tag instances go with it.
func (s *CollectionService) Delete(ctx context.Context, actor models.Actor, id string) error {
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		c, err := tx.GetCollection(ctx, id)
		if err != nil {
			return notFound(err, "collection %s not found", id)
		}

		if err := s.audit.Record(ctx, tx, actor, models.StreamCollection, models.AuditDelete,
			c.ID, now(), collectionSnapshot(c)); err != nil {
			return err
		}

		if err := tx.DeleteCollection(ctx, id); err != nil {
			if errors.Is(err, repository.ErrForeignKeyViolation) {
				return errs.Unprocessable("a non-empty collection cannot be deleted")
			}
			return fmt.Errorf("failed to delete collection: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.WithActor(actor.ClientID, actor.UserID).
		WithEntity(string(models.KindCollection), id).
		Info("collection deleted")
	return nil
}

func collectionSnapshot(c *models.Collection) map[string]any {
	return map[string]any{
		"_id":          c.ID,
		"_name":        c.Name,
		"_doi_key":     c.DOIKey,
		"_provider_id": c.ProviderID,
	}
}
