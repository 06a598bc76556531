// Package repository persists registry entities. Every read and write happens
// inside Store.WithTx; a transaction either commits all of its writes, audit
// records included, or none of them.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/opendataplatform/registry/common/models"
)

var (
	// ErrNotFound is returned when a row does not exist
	ErrNotFound = errors.New("not found")
	// ErrUniqueViolation is returned when a write collides with a unique constraint
	ErrUniqueViolation = errors.New("unique constraint violation")
	// ErrForeignKeyViolation is returned when a write references a missing row
	// or a delete is restricted by dependent rows
	ErrForeignKeyViolation = errors.New("foreign key violation")
	// ErrStaleWrite is returned by a conditional update when the row no longer
	// holds the version it was read at
	ErrStaleWrite = errors.New("row changed since it was read")
)

// Store opens transactions against the entity store
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Health(ctx context.Context) error
	Close()
}

// TagInstanceFilter selects tag instances on one entity
type TagInstanceFilter struct {
	EntityID string
	TagID    string
	// ByUser restricts to instances owned by UserID; a nil UserID matches
	// instances without a user.
	ByUser bool
	UserID *string
}

// PackageVersion is the package state a conditional update expects to replace
type PackageVersion struct {
	Status    models.PackageStatus
	Timestamp time.Time
}

// PackageVersionOf returns the version p was read at
func PackageVersionOf(p *models.Package) PackageVersion {
	return PackageVersion{Status: p.Status, Timestamp: p.Timestamp}
}

// InstanceVersion is the tag instance state a conditional update expects to
// replace
type InstanceVersion struct {
	UserID    *string
	Timestamp time.Time
}

// InstanceVersionOf returns the version inst was read at
func InstanceVersionOf(inst *models.TagInstance) InstanceVersion {
	return InstanceVersion{UserID: inst.UserID, Timestamp: inst.Timestamp}
}

// Tx is a unit of work against the entity store
type Tx interface {
	GetTag(ctx context.Context, kind models.EntityKind, id string) (*models.Tag, error)
	ListTags(ctx context.Context, kind models.EntityKind) ([]*models.Tag, error)
	CreateTag(ctx context.Context, tag *models.Tag) error

	GetVocabulary(ctx context.Context, id string) (*models.Vocabulary, error)
	CreateVocabulary(ctx context.Context, v *models.Vocabulary) error

	GetKeyword(ctx context.Context, vocabularyID string, id int) (*models.Keyword, error)
	GetKeywordByKey(ctx context.Context, vocabularyID, key string) (*models.Keyword, error)
	ListKeywords(ctx context.Context) ([]*models.Keyword, error)
	// CreateKeyword assigns kw.ID.
	CreateKeyword(ctx context.Context, kw *models.Keyword) error
	UpdateKeyword(ctx context.Context, kw *models.Keyword) error
	DeleteKeyword(ctx context.Context, vocabularyID string, id int) error
	// KeywordVersion returns a counter that every keyword write advances. A
	// listing taken after it in the same transaction is at least that new.
	KeywordVersion(ctx context.Context) (int64, error)

	GetUser(ctx context.Context, id string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error

	GetProvider(ctx context.Context, id string) (*models.Provider, error)
	CreateProvider(ctx context.Context, p *models.Provider) error
	DeleteProvider(ctx context.Context, id string) error

	GetCollection(ctx context.Context, id string) (*models.Collection, error)
	CreateCollection(ctx context.Context, c *models.Collection) error
	UpdateCollection(ctx context.Context, c *models.Collection) error
	DeleteCollection(ctx context.Context, id string) error

	GetPackage(ctx context.Context, id string) (*models.Package, error)
	CreatePackage(ctx context.Context, p *models.Package) error
	// UpdatePackage writes p only if the stored row is still at prev, and
	// fails with ErrStaleWrite otherwise.
	UpdatePackage(ctx context.Context, p *models.Package, prev PackageVersion) error
	DeletePackage(ctx context.Context, id string) error

	GetRecord(ctx context.Context, id string) (*models.Record, error)
	ListRecords(ctx context.Context) ([]*models.Record, error)
	CreateRecord(ctx context.Context, r *models.Record) error
	UpdateRecord(ctx context.Context, r *models.Record) error
	DeleteRecord(ctx context.Context, id string) error

	// TouchEntity sets the modification timestamp of a taggable entity.
	TouchEntity(ctx context.Context, kind models.EntityKind, id string, ts time.Time) error

	GetTagInstance(ctx context.Context, kind models.EntityKind, entityID, id string) (*models.TagInstance, error)
	FindTagInstances(ctx context.Context, kind models.EntityKind, filter TagInstanceFilter) ([]*models.TagInstance, error)
	// ListTagInstances returns an entity's instances in creation order.
	ListTagInstances(ctx context.Context, kind models.EntityKind, entityID string) ([]*models.TagInstance, error)
	// InsertTagInstance enforces inst.Cardinality: a second instance under
	// "one", or under "user" for the same user, fails with ErrUniqueViolation.
	InsertTagInstance(ctx context.Context, kind models.EntityKind, inst *models.TagInstance) error
	// UpdateTagInstance writes inst only if the stored row is still at prev,
	// and fails with ErrStaleWrite otherwise.
	UpdateTagInstance(ctx context.Context, kind models.EntityKind, inst *models.TagInstance, prev InstanceVersion) error
	DeleteTagInstance(ctx context.Context, kind models.EntityKind, id string) error

	// InsertAudit assigns rec.ID.
	InsertAudit(ctx context.Context, rec *models.AuditRecord) error
	GetAudit(ctx context.Context, stream models.AuditStream, id int64) (*models.AuditRecord, error)
	ListAudit(ctx context.Context, filter models.AuditFilter) ([]*models.AuditRecord, error)

	GetCatalog(ctx context.Context, id string) (*models.Catalog, error)
	ListCatalogs(ctx context.Context) ([]*models.Catalog, error)
	CreateCatalog(ctx context.Context, c *models.Catalog) error
	GetCatalogRecord(ctx context.Context, catalogID, recordID string) (*models.CatalogRecord, error)
	ListCatalogRecords(ctx context.Context, catalogID string) ([]*models.CatalogRecord, error)
	UpsertCatalogRecord(ctx context.Context, cr *models.CatalogRecord) error
}
