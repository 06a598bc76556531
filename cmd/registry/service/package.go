package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"

	"github.com/google/uuid"

	"github.com/opendataplatform/registry/common/errs"
	"github.com/opendataplatform/registry/common/logger"
	"github.com/opendataplatform/registry/common/models"
	"github.com/opendataplatform/registry/common/repository"
	"github.com/opendataplatform/registry/common/schema"
	"github.com/opendataplatform/registry/common/telemetry"
)

var nonWord = regexp.MustCompile(`\W`)

// PackageKey derives a package key from its title
func PackageKey(title string) string {
	return nonWord.ReplaceAllString(title, "_")
}

// PackageService manages packages and their submission lifecycle
type PackageService struct {
	store   repository.Store
	schemas SchemaService
	audit   *AuditRecorder
	metrics *telemetry.Metrics
	log     *logger.Logger
}

// NewPackageService creates a package service
func NewPackageService(
	store repository.Store,
	schemas SchemaService,
	audit *AuditRecorder,
	metrics *telemetry.Metrics,
	log *logger.Logger,
) *PackageService {
	return &PackageService{
		store:   store,
		schemas: schemas,
		audit:   audit,
		metrics: metrics,
		log:     log,
	}
}

// Get returns a package
func (s *PackageService) Get(ctx context.Context, id string) (*models.Package, error) {
	var pkg *models.Package
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		pkg, err = tx.GetPackage(ctx, id)
		return notFound(err, "package %s not found", id)
	})
	return pkg, err
}

// Create creates a pending package
func (s *PackageService) Create(ctx context.Context, actor models.Actor, in models.PackageInput) (*models.Package, error) {
	pkg := &models.Package{
		ID:         uuid.NewString(),
		Key:        PackageKey(in.Title),
		Title:      in.Title,
		Status:     models.PackagePending,
		ProviderID: in.ProviderID,
		SchemaID:   in.SchemaID,
		Resources:  slices.Clone(in.Resources),
		Timestamp:  now(),
	}

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		if err := s.checkInput(ctx, tx, in); err != nil {
			return err
		}

		if err := tx.CreatePackage(ctx, pkg); err != nil {
			return s.writeError(err, pkg, "create")
		}

		return s.audit.Record(ctx, tx, actor, models.StreamPackage, models.AuditInsert,
			pkg.ID, pkg.Timestamp, packageSnapshot(pkg))
	})
	if err != nil {
		return nil, err
	}

	s.log.WithActor(actor.ClientID, actor.UserID).
		WithEntity(string(models.KindPackage), pkg.ID).
		Info("package created", "key", pkg.Key, "provider_id", pkg.ProviderID)
	return pkg, nil
}

// Update changes a package's title, provider or schema. The key follows the
// title only while the package has no resources. An unchanged request writes
// nothing and returns the current package.
func (s *PackageService) Update(ctx context.Context, actor models.Actor, id string, in models.PackageInput) (*models.Package, error) {
	var (
		pkg     *models.Package
		changed bool
	)

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		if pkg, err = tx.GetPackage(ctx, id); err != nil {
			return notFound(err, "package %s not found", id)
		}
		if err := s.checkInput(ctx, tx, in); err != nil {
			return err
		}

		if pkg.Title == in.Title && pkg.ProviderID == in.ProviderID && pkg.SchemaID == in.SchemaID {
			return nil
		}
		changed = true
		prev := repository.PackageVersionOf(pkg)

		if pkg.Title != in.Title && len(pkg.Resources) == 0 {
			pkg.Key = PackageKey(in.Title)
		}
		pkg.Title = in.Title
		pkg.ProviderID = in.ProviderID
		pkg.SchemaID = in.SchemaID
		pkg.Timestamp = now()

		if err := tx.UpdatePackage(ctx, pkg, prev); err != nil {
			return s.writeError(err, pkg, "update")
		}

		return s.audit.Record(ctx, tx, actor, models.StreamPackage, models.AuditUpdate,
			pkg.ID, pkg.Timestamp, packageSnapshot(pkg))
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.log.WithActor(actor.ClientID, actor.UserID).
			WithEntity(string(models.KindPackage), pkg.ID).
			Info("package updated", "key", pkg.Key)
	}
	return pkg, nil
}

// Delete removes a package that carries no resources and backs no record
func (s *PackageService) Delete(ctx context.Context, actor models.Actor, id string) error {
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		pkg, err := tx.GetPackage(ctx, id)
		if err != nil {
			return notFound(err, "package %s not found", id)
		}
		if len(pkg.Resources) > 0 {
			return errs.Unprocessable("a package with an associated record or resources cannot be deleted")
		}

		if err := s.audit.Record(ctx, tx, actor, models.StreamPackage, models.AuditDelete,
			pkg.ID, now(), packageSnapshot(pkg)); err != nil {
			return err
		}

		if err := tx.DeletePackage(ctx, id); err != nil {
			if errors.Is(err, repository.ErrForeignKeyViolation) {
				return errs.Unprocessable("a package with an associated record or resources cannot be deleted")
			}
			return fmt.Errorf("failed to delete package: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.WithActor(actor.ClientID, actor.UserID).
		WithEntity(string(models.KindPackage), id).
		Info("package deleted")
	return nil
}

// Submit derives the package's metadata from its tag instances and moves it
// to submitted. The metadata is stored together with its validity report
// whether or not it validates.
func (s *PackageService) Submit(ctx context.Context, actor models.Actor, id string) (*models.Package, error) {
	var pkg *models.Package

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		if pkg, err = tx.GetPackage(ctx, id); err != nil {
			return notFound(err, "package %s not found", id)
		}
		if pkg.Status != models.PackagePending {
			return errs.Unprocessable("package status must be '%s'", models.PackagePending)
		}

		metadata, validity, err := s.buildMetadata(ctx, tx, pkg)
		if err != nil {
			return err
		}
		prev := repository.PackageVersionOf(pkg)

		pkg.Metadata = metadata
		pkg.Validity = validity.Map()
		pkg.Status = models.PackageSubmitted
		pkg.Timestamp = now()

		if err := tx.UpdatePackage(ctx, pkg, prev); err != nil {
			return s.writeError(err, pkg, "update")
		}

		return s.audit.Record(ctx, tx, actor, models.StreamPackage, models.AuditSubmit,
			pkg.ID, pkg.Timestamp, packageSnapshot(pkg))
	})
	if err != nil {
		return nil, err
	}

	valid, _ := pkg.Validity["valid"].(bool)
	s.metrics.PackageTransition(string(models.AuditSubmit), valid)
	s.log.WithActor(actor.ClientID, actor.UserID).
		WithEntity(string(models.KindPackage), pkg.ID).
		Info("package submitted", "schema_id", pkg.SchemaID, "valid", valid)
	return pkg, nil
}

// buildMetadata applies the translated tag data of pkg to its schema's template
func (s *PackageService) buildMetadata(ctx context.Context, tx repository.Tx, pkg *models.Package) (map[string]any, *schema.Validity, error) {
	template, err := s.schemas.Template(ctx, pkg.SchemaID)
	if err != nil {
		return nil, nil, asFatal(err, "resolve template for %s", pkg.SchemaID)
	}
	scheme, err := s.schemas.Scheme(ctx, pkg.SchemaID)
	if err != nil {
		return nil, nil, asFatal(err, "resolve translation scheme for %s", pkg.SchemaID)
	}

	instances, err := tx.ListTagInstances(ctx, models.KindPackage, pkg.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list package tags: %w", err)
	}

	var ops []schema.Operation
	for _, inst := range instances {
		tag, err := tx.GetTag(ctx, models.KindPackage, inst.TagID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to resolve tag %s: %w", inst.TagID, err)
		}

		patch, err := s.schemas.TranslationPatch(ctx, schema.TypeTag, tag.SchemaID, inst.Data, scheme)
		if err != nil {
			switch errs.KindOf(err) {
			case errs.KindFatal, errs.KindUnprocessable:
				return nil, nil, err
			default:
				return nil, nil, errs.Wrap(errs.KindUnprocessable, err, "translate tag %s to %s", tag.ID, scheme)
			}
		}
		ops = append(ops, patch...)
	}

	metadata, err := schema.ApplyPatch(template, ops)
	if err != nil {
		return nil, nil, errs.Wrap(errs.KindUnprocessable, err, "apply metadata patch for package %s", pkg.ID)
	}

	validity, err := s.schemas.Validate(ctx, schema.TypeMetadata, pkg.SchemaID, metadata)
	if err != nil {
		return nil, nil, asFatal(err, "validate metadata against %s", pkg.SchemaID)
	}
	return metadata, validity, nil
}

// Cancel returns a submitted package to pending and discards its metadata
func (s *PackageService) Cancel(ctx context.Context, actor models.Actor, id string) (*models.Package, error) {
	var pkg *models.Package

	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		if pkg, err = tx.GetPackage(ctx, id); err != nil {
			return notFound(err, "package %s not found", id)
		}
		if pkg.Status != models.PackageSubmitted {
			return errs.Unprocessable("package status must be '%s'", models.PackageSubmitted)
		}

		prev := repository.PackageVersionOf(pkg)
		pkg.Metadata = nil
		pkg.Validity = nil
		pkg.Status = models.PackagePending
		pkg.Timestamp = now()

		if err := tx.UpdatePackage(ctx, pkg, prev); err != nil {
			return s.writeError(err, pkg, "update")
		}

		return s.audit.Record(ctx, tx, actor, models.StreamPackage, models.AuditCancel,
			pkg.ID, pkg.Timestamp, packageSnapshot(pkg))
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PackageTransition(string(models.AuditCancel), false)
	s.log.WithActor(actor.ClientID, actor.UserID).
		WithEntity(string(models.KindPackage), pkg.ID).
		Info("package submission cancelled")
	return pkg, nil
}

func (s *PackageService) checkInput(ctx context.Context, tx repository.Tx, in models.PackageInput) error {
	if _, err := tx.GetProvider(ctx, in.ProviderID); err != nil {
		return notFound(err, "provider %s not found", in.ProviderID)
	}
	if !s.schemas.Has(schema.TypeMetadata, in.SchemaID) {
		return errs.Unprocessable("unknown metadata schema %s", in.SchemaID)
	}
	return nil
}

func (s *PackageService) writeError(err error, pkg *models.Package, action string) error {
	switch {
	case errors.Is(err, repository.ErrUniqueViolation):
		return errs.Conflict("package '%s' already exists", pkg.Key)
	case errors.Is(err, repository.ErrForeignKeyViolation):
		return errs.NotFound("provider %s not found", pkg.ProviderID)
	case errors.Is(err, repository.ErrStaleWrite):
		return errs.Conflict("package %s was modified concurrently", pkg.ID)
	}
	return fmt.Errorf("failed to %s package: %w", action, err)
}

// asFatal classifies a schema catalog failure as a configuration error
func asFatal(err error, format string, args ...any) error {
	if errs.KindOf(err) == errs.KindInternal {
		return errs.Fatal(err, format, args...)
	}
	return err
}

func packageSnapshot(p *models.Package) map[string]any {
	return map[string]any{
		"_id":          p.ID,
		"_key":         p.Key,
		"_title":       p.Title,
		"_status":      p.Status,
		"_provider_id": p.ProviderID,
		"_schema_id":   p.SchemaID,
		"_resources":   p.Resources,
	}
}
