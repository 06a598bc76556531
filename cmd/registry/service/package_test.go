package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendataplatform/registry/common/errs"
	"github.com/opendataplatform/registry/common/logger"
	"github.com/opendataplatform/registry/common/models"
	"github.com/opendataplatform/registry/common/repository"
)

func TestPackageKey(t *testing.T) {
	assert.Equal(t, "My_Package_1_", PackageKey("My Package 1!"))
	assert.Equal(t, "plain", PackageKey("plain"))
}

func TestSubmitAndCancel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pkg, err := env.packages.Create(ctx, alice, models.PackageInput{Title: "Coastal survey", ProviderID: "prov", SchemaID: models.SchemaSAEONDataCite4})
	require.NoError(t, err)
	assert.Equal(t, models.PackagePending, pkg.Status)
	assert.Equal(t, "Coastal_survey", pkg.Key)

	_, err = env.taggers[models.KindPackage].SetTag(ctx, alice, pkg.ID, models.TagInstanceInput{
		TagID: "Package.General",
		Data:  map[string]any{"comment": "Sea surface temperature"},
	})
	require.NoError(t, err)

	submitted, err := env.packages.Submit(ctx, alice, pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PackageSubmitted, submitted.Status)
	assert.Equal(t, map[string]any{"schemaVersion": "4", "title": "Sea surface temperature"}, submitted.Metadata)
	assert.Equal(t, map[string]any{"valid": true}, submitted.Validity)

	_, err = env.packages.Submit(ctx, alice, pkg.ID)
	assert.True(t, errs.Is(err, errs.KindUnprocessable))

	cancelled, err := env.packages.Cancel(ctx, alice, pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PackagePending, cancelled.Status)
	assert.Nil(t, cancelled.Metadata)
	assert.Nil(t, cancelled.Validity)

	_, err = env.packages.Cancel(ctx, alice, pkg.ID)
	assert.True(t, errs.Is(err, errs.KindUnprocessable))

	log, err := env.auditLog.EntityLog(ctx, models.StreamPackage, pkg.ID)
	require.NoError(t, err)
	var commands []models.AuditCommand
	for _, e := range log {
		commands = append(commands, e.Command)
	}
	assert.Equal(t, []models.AuditCommand{models.AuditInsert, models.AuditInsert, models.AuditSubmit, models.AuditCancel}, commands)
}

func TestSubmitStoresInvalidMetadata(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pkg, err := env.packages.Create(ctx, alice, models.PackageInput{Title: "Empty", ProviderID: "prov", SchemaID: models.SchemaSAEONDataCite4})
	require.NoError(t, err)

	submitted, err := env.packages.Submit(ctx, alice, pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PackageSubmitted, submitted.Status)
	assert.Equal(t, false, submitted.Validity["valid"])
	assert.NotEmpty(t, submitted.Validity["errors"])
}

func TestSubmitWithoutTemplateIsFatal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pkg, err := env.packages.Create(ctx, alice, models.PackageInput{Title: "ISO", ProviderID: "prov", SchemaID: models.SchemaSAEONISO19115})
	require.NoError(t, err)

	_, err = env.packages.Submit(ctx, alice, pkg.ID)
	assert.True(t, errs.Is(err, errs.KindFatal))

	still, err := env.packages.Get(ctx, pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PackagePending, still.Status)
	assert.Equal(t, 1, env.auditCount(t, models.StreamPackage))
}

func TestPackageCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.packages.Create(ctx, alice, models.PackageInput{Title: "x", ProviderID: "missing", SchemaID: models.SchemaSAEONDataCite4})
	assert.True(t, errs.Is(err, errs.KindNotFound))

	_, err = env.packages.Create(ctx, alice, models.PackageInput{Title: "x", ProviderID: "prov", SchemaID: "Unknown"})
	assert.True(t, errs.Is(err, errs.KindUnprocessable))

	_, err = env.packages.Create(ctx, alice, models.PackageInput{Title: "x", ProviderID: "prov", SchemaID: models.SchemaSAEONDataCite4})
	require.NoError(t, err)
	_, err = env.packages.Create(ctx, alice, models.PackageInput{Title: "x", ProviderID: "prov", SchemaID: models.SchemaSAEONDataCite4})
	assert.True(t, errs.Is(err, errs.KindConflict))
}

func TestPackageUpdate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pkg, err := env.packages.Create(ctx, alice, models.PackageInput{Title: "First", ProviderID: "prov", SchemaID: models.SchemaSAEONDataCite4})
	require.NoError(t, err)

	same, err := env.packages.Update(ctx, alice, pkg.ID, models.PackageInput{Title: "First", ProviderID: "prov", SchemaID: models.SchemaSAEONDataCite4})
	require.NoError(t, err)
	assert.Equal(t, pkg.Key, same.Key)
	assert.Equal(t, 1, env.auditCount(t, models.StreamPackage))

	renamed, err := env.packages.Update(ctx, alice, pkg.ID, models.PackageInput{Title: "Second one", ProviderID: "prov", SchemaID: models.SchemaSAEONDataCite4})
	require.NoError(t, err)
	assert.Equal(t, "Second_one", renamed.Key)
	assert.Equal(t, 2, env.auditCount(t, models.StreamPackage))

	withResources, err := env.packages.Create(ctx, alice, models.PackageInput{
		Title:      "Files",
		ProviderID: "prov",
		SchemaID:   models.SchemaSAEONDataCite4,
		Resources:  []string{"res-1"},
	})
	require.NoError(t, err)

	kept, err := env.packages.Update(ctx, alice, withResources.ID, models.PackageInput{Title: "Files renamed", ProviderID: "prov", SchemaID: models.SchemaSAEONDataCite4})
	require.NoError(t, err)
	assert.Equal(t, "Files", kept.Key)
	assert.Equal(t, "Files renamed", kept.Title)

	err = env.packages.Delete(ctx, alice, withResources.ID)
	assert.True(t, errs.Is(err, errs.KindUnprocessable))

	require.NoError(t, env.packages.Delete(ctx, alice, pkg.ID))
	_, err = env.packages.Get(ctx, pkg.ID)
	assert.True(t, errs.Is(err, errs.KindNotFound))
}

func TestSubmitLosesToConcurrentTransition(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pkg, err := env.packages.Create(ctx, alice, models.PackageInput{Title: "Raced", ProviderID: "prov", SchemaID: models.SchemaSAEONDataCite4})
	require.NoError(t, err)

	racing := &racingStore{Store: env.store}
	racing.afterGetPackage = func(ctx context.Context, tx repository.Tx) {
		other, err := tx.GetPackage(ctx, pkg.ID)
		require.NoError(t, err)
		read := repository.PackageVersionOf(other)
		other.Status = models.PackageSubmitted
		other.Timestamp = other.Timestamp.Add(time.Second)
		require.NoError(t, tx.UpdatePackage(ctx, other, read))
	}
	packages := NewPackageService(racing, env.schemas, env.audit, nil, logger.Discard())

	_, err = packages.Submit(ctx, bob, pkg.ID)
	assert.True(t, errs.Is(err, errs.KindConflict))

	// the rejected submission leaves no audit record of its own
	log, err := env.auditLog.EntityLog(ctx, models.StreamPackage, pkg.ID)
	require.NoError(t, err)
	for _, e := range log {
		assert.NotEqual(t, models.AuditSubmit, e.Command)
	}
}

func TestUpdateLosesToConcurrentWrite(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pkg, err := env.packages.Create(ctx, alice, models.PackageInput{Title: "Raced", ProviderID: "prov", SchemaID: models.SchemaSAEONDataCite4})
	require.NoError(t, err)

	racing := &racingStore{Store: env.store}
	racing.afterGetPackage = func(ctx context.Context, tx repository.Tx) {
		other, err := tx.GetPackage(ctx, pkg.ID)
		require.NoError(t, err)
		read := repository.PackageVersionOf(other)
		other.Title = "Renamed elsewhere"
		other.Timestamp = other.Timestamp.Add(time.Second)
		require.NoError(t, tx.UpdatePackage(ctx, other, read))
	}
	packages := NewPackageService(racing, env.schemas, env.audit, nil, logger.Discard())

	_, err = packages.Update(ctx, bob, pkg.ID, models.PackageInput{Title: "Mine", ProviderID: "prov", SchemaID: models.SchemaSAEONDataCite4})
	assert.True(t, errs.Is(err, errs.KindConflict))
}
