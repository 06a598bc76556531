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

// ProviderService manages data providers
type ProviderService struct {
	store repository.Store
	audit *AuditRecorder
	log   *logger.Logger
}

func NewProviderService(store repository.Store, audit *AuditRecorder, log *logger.Logger) *ProviderService {
	return &ProviderService{store: store, audit: audit, log: log}
}

func (s *ProviderService) Get(ctx context.Context, id string) (*models.Provider, error) {
	var p *models.Provider
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		p, err = tx.GetProvider(ctx, id)
		return notFound(err, "provider %s not found", id)
	})
	return p, err
}

// Create registers a provider. The id and the key must both be unused.
func (s *ProviderService) Create(ctx context.Context, actor models.Actor, in models.ProviderInput) (*models.Provider, error) {
	p := &models.Provider{
		ID:        uuid.NewString(),
		Key:       in.Key,
		Name:      in.Name,
		Timestamp: now(),
	}

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if err := tx.CreateProvider(ctx, p); err != nil {
			if errors.Is(err, repository.ErrUniqueViolation) {
				return errs.Conflict("provider '%s' already exists", in.Key)
			}
			return fmt.Errorf("failed to create provider: %w", err)
		}
		return s.audit.Record(ctx, tx, actor, models.StreamProvider, models.AuditInsert,
			p.ID, p.Timestamp, providerSnapshot(p))
	})
	if err != nil {
		return nil, err
	}

	s.log.WithActor(actor.ClientID, actor.UserID).Info("provider created", "provider_id", p.ID, "key", p.Key)
	return p, nil
}

// Delete removes a provider that owns no collections or packages
func (s *ProviderService) Delete(ctx context.Context, actor models.Actor, id string) error {
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		p, err := tx.GetProvider(ctx, id)
		if err != nil {
			return notFound(err, "provider %s not found", id)
		}

		if err := s.audit.Record(ctx, tx, actor, models.StreamProvider, models.AuditDelete,
			p.ID, now(), providerSnapshot(p)); err != nil {
			return err
		}

		if err := tx.DeleteProvider(ctx, id); err != nil {
			if errors.Is(err, repository.ErrForeignKeyViolation) {
				return errs.Unprocessable("a provider with associated collections or packages cannot be deleted")
			}
			return fmt.Errorf("failed to delete provider: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.WithActor(actor.ClientID, actor.UserID).Info("provider deleted", "provider_id", id)
	return nil
}

func providerSnapshot(p *models.Provider) map[string]any {
	return map[string]any{
		"_id":   p.ID,
		"_key":  p.Key,
		"_name": p.Name,
	}
}
