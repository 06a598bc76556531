package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opendataplatform/registry/common/models"
)

func strPtr(s string) *string { return &s }

func seeded(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	now := time.Now().UTC()

	err := store.WithTx(context.Background(), func(tx Tx) error {
		ctx := context.Background()
		require.NoError(t, tx.CreateVocabulary(ctx, &models.Vocabulary{ID: "Institution", SchemaID: "Keyword.Institution"}))
		require.NoError(t, tx.CreateTag(ctx, &models.Tag{ID: "Collection.Published", Kind: models.KindCollection, Cardinality: models.CardinalityOne, Public: true}))
		require.NoError(t, tx.CreateTag(ctx, &models.Tag{ID: "Record.QC", Kind: models.KindRecord, Cardinality: models.CardinalityUser}))
		require.NoError(t, tx.CreateTag(ctx, &models.Tag{ID: "Record.Note", Kind: models.KindRecord, Cardinality: models.CardinalityMulti}))
		require.NoError(t, tx.CreateUser(ctx, &models.User{ID: "u1", Name: "Alice"}))
		require.NoError(t, tx.CreateProvider(ctx, &models.Provider{ID: "p1", Key: "saeon", Name: "SAEON", Timestamp: now}))
		require.NoError(t, tx.CreateCollection(ctx, &models.Collection{ID: "c1", Name: "Coll", ProviderID: "p1", Timestamp: now}))
		require.NoError(t, tx.CreateRecord(ctx, &models.Record{ID: "r1", DOI: strPtr("10.1/a"), CollectionID: "c1", SchemaID: "s", Metadata: map[string]any{}, Validity: map[string]any{"valid": true}, Timestamp: now}))
		return nil
	})
	require.NoError(t, err)
	return store
}

func TestMemoryStoreRollback(t *testing.T) {
	store := seeded(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx Tx) error {
		return tx.DeleteTagInstance(ctx, models.KindRecord, "missing")
	})
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.WithTx(ctx, func(tx Tx) error {
		require.NoError(t, tx.CreateProvider(ctx, &models.Provider{ID: "p2", Key: "other", Name: "Other"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = store.WithTx(ctx, func(tx Tx) error {
		_, err := tx.GetProvider(ctx, "p2")
		return err
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreTagCardinality(t *testing.T) {
	store := seeded(t)
	ctx := context.Background()
	now := time.Now().UTC()

	insert := func(id, tagID string, card models.Cardinality, user *string) error {
		return store.WithTx(ctx, func(tx Tx) error {
			return tx.InsertTagInstance(ctx, models.KindRecord, &models.TagInstance{
				ID: id, EntityID: "r1", TagID: tagID, UserID: user,
				Data: map[string]any{"pass_": true}, Timestamp: now, Cardinality: card,
			})
		})
	}

	require.NoError(t, insert("i1", "Record.QC", models.CardinalityUser, strPtr("u1")))
	assert.ErrorIs(t, insert("i2", "Record.QC", models.CardinalityUser, strPtr("u1")), ErrUniqueViolation)
	require.NoError(t, insert("i3", "Record.QC", models.CardinalityUser, strPtr("u2")))
	require.NoError(t, insert("i4", "Record.QC", models.CardinalityUser, nil))
	assert.ErrorIs(t, insert("i5", "Record.QC", models.CardinalityUser, nil), ErrUniqueViolation)

	require.NoError(t, insert("n1", "Record.Note", models.CardinalityMulti, strPtr("u1")))
	require.NoError(t, insert("n2", "Record.Note", models.CardinalityMulti, strPtr("u1")))

	assert.ErrorIs(t, insert("x1", "Unknown.Tag", models.CardinalityMulti, nil), ErrForeignKeyViolation)

	err := store.WithTx(ctx, func(tx Tx) error {
		list, err := tx.ListTagInstances(ctx, models.KindRecord, "r1")
		require.NoError(t, err)
		ids := make([]string, 0, len(list))
		for _, inst := range list {
			ids = append(ids, inst.ID)
		}
		assert.Equal(t, []string{"i1", "i3", "i4", "n1", "n2"}, ids)
		require.NotNil(t, list[0].UserName)
		assert.Equal(t, "Alice", *list[0].UserName)
		assert.Nil(t, list[1].UserName)
		assert.Equal(t, models.CardinalityUser, list[0].Cardinality)

		mine, err := tx.FindTagInstances(ctx, models.KindRecord, TagInstanceFilter{EntityID: "r1", TagID: "Record.QC", ByUser: true})
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, "i4", mine[0].ID)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryStoreCopiesData(t *testing.T) {
	store := seeded(t)
	ctx := context.Background()

	data := map[string]any{"nested": map[string]any{"v": 1}}
	require.NoError(t, store.WithTx(ctx, func(tx Tx) error {
		return tx.InsertTagInstance(ctx, models.KindRecord, &models.TagInstance{
			ID: "i1", EntityID: "r1", TagID: "Record.Note", Data: data, Cardinality: models.CardinalityMulti,
		})
	}))
	data["nested"].(map[string]any)["v"] = 2

	require.NoError(t, store.WithTx(ctx, func(tx Tx) error {
		inst, err := tx.GetTagInstance(ctx, models.KindRecord, "r1", "i1")
		require.NoError(t, err)
		assert.Equal(t, 1, inst.Data["nested"].(map[string]any)["v"])

		_, err = tx.GetTagInstance(ctx, models.KindRecord, "other", "i1")
		assert.ErrorIs(t, err, ErrNotFound)
		return nil
	}))
}

func TestMemoryStoreConditionalUpdates(t *testing.T) {
	store := seeded(t)
	ctx := context.Background()
	now := time.Now().UTC()
	later := now.Add(time.Second)

	require.NoError(t, store.WithTx(ctx, func(tx Tx) error {
		require.NoError(t, tx.CreatePackage(ctx, &models.Package{
			ID: "k1", Key: "pkg", Title: "Pkg", Status: models.PackagePending,
			ProviderID: "p1", SchemaID: "s", Timestamp: now,
		}))
		return tx.InsertTagInstance(ctx, models.KindRecord, &models.TagInstance{
			ID: "i1", EntityID: "r1", TagID: "Record.QC", Data: map[string]any{},
			Timestamp: now, Cardinality: models.CardinalityUser,
		})
	}))

	t.Run("package", func(t *testing.T) {
		err := store.WithTx(ctx, func(tx Tx) error {
			pkg, err := tx.GetPackage(ctx, "k1")
			require.NoError(t, err)
			read := PackageVersionOf(pkg)

			pkg.Status = models.PackageSubmitted
			pkg.Timestamp = later
			require.NoError(t, tx.UpdatePackage(ctx, pkg, read))

			// a second writer that decided on the pending row loses
			pkg.Status = models.PackageSubmitted
			assert.ErrorIs(t, tx.UpdatePackage(ctx, pkg, read), ErrStaleWrite)

			assert.ErrorIs(t, tx.UpdatePackage(ctx, &models.Package{ID: "missing"}, read), ErrStaleWrite)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("tag instance", func(t *testing.T) {
		err := store.WithTx(ctx, func(tx Tx) error {
			inst, err := tx.GetTagInstance(ctx, models.KindRecord, "r1", "i1")
			require.NoError(t, err)
			read := InstanceVersionOf(inst)
			assert.Nil(t, read.UserID)

			claimed := *inst
			claimed.UserID = strPtr("u1")
			claimed.Timestamp = later
			require.NoError(t, tx.UpdateTagInstance(ctx, models.KindRecord, &claimed, read))

			overwrite := *inst
			overwrite.UserID = strPtr("u2")
			overwrite.Timestamp = later
			assert.ErrorIs(t, tx.UpdateTagInstance(ctx, models.KindRecord, &overwrite, read), ErrStaleWrite)

			got, err := tx.GetTagInstance(ctx, models.KindRecord, "r1", "i1")
			require.NoError(t, err)
			require.NotNil(t, got.UserID)
			assert.Equal(t, "u1", *got.UserID)
			return nil
		})
		require.NoError(t, err)
	})
}

func TestMemoryStoreKeywordVersion(t *testing.T) {
	store := seeded(t)
	ctx := context.Background()

	version := func() int64 {
		var v int64
		require.NoError(t, store.WithTx(ctx, func(tx Tx) error {
			var err error
			v, err = tx.KeywordVersion(ctx)
			return err
		}))
		return v
	}

	start := version()
	kw := &models.Keyword{VocabularyID: "Institution", Key: "saeon", Data: map[string]any{}, Status: models.KeywordApproved}
	require.NoError(t, store.WithTx(ctx, func(tx Tx) error { return tx.CreateKeyword(ctx, kw) }))
	assert.Equal(t, start+1, version())

	kw.Status = models.KeywordRejected
	require.NoError(t, store.WithTx(ctx, func(tx Tx) error { return tx.UpdateKeyword(ctx, kw) }))
	assert.Equal(t, start+2, version())

	// a rolled back write leaves the version alone
	err := store.WithTx(ctx, func(tx Tx) error {
		require.NoError(t, tx.DeleteKeyword(ctx, "Institution", kw.ID))
		return errors.New("abort")
	})
	require.Error(t, err)
	assert.Equal(t, start+2, version())
}

func TestMemoryStoreKeywordRestrict(t *testing.T) {
	store := seeded(t)
	ctx := context.Background()

	var parent, child models.Keyword
	require.NoError(t, store.WithTx(ctx, func(tx Tx) error {
		parent = models.Keyword{VocabularyID: "Institution", Key: "SAEON", Data: map[string]any{}, Status: models.KeywordApproved}
		require.NoError(t, tx.CreateKeyword(ctx, &parent))
		child = models.Keyword{VocabularyID: "Institution", Key: "Egagasini", Data: map[string]any{}, Status: models.KeywordApproved, ParentID: &parent.ID}
		require.NoError(t, tx.CreateKeyword(ctx, &child))
		return nil
	}))
	assert.Equal(t, 1, parent.ID)
	assert.Equal(t, 2, child.ID)

	err := store.WithTx(ctx, func(tx Tx) error {
		return tx.CreateKeyword(ctx, &models.Keyword{VocabularyID: "Institution", Key: "SAEON", Status: models.KeywordProposed})
	})
	assert.ErrorIs(t, err, ErrUniqueViolation)

	err = store.WithTx(ctx, func(tx Tx) error {
		return tx.DeleteKeyword(ctx, "Institution", parent.ID)
	})
	assert.ErrorIs(t, err, ErrForeignKeyViolation)

	err = store.WithTx(ctx, func(tx Tx) error {
		require.NoError(t, tx.DeleteKeyword(ctx, "Institution", child.ID))
		return tx.DeleteKeyword(ctx, "Institution", parent.ID)
	})
	require.NoError(t, err)
}

func TestMemoryStoreDeleteCascades(t *testing.T) {
	store := seeded(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx Tx) error {
		return tx.DeleteProvider(ctx, "p1")
	})
	assert.ErrorIs(t, err, ErrForeignKeyViolation)

	err = store.WithTx(ctx, func(tx Tx) error {
		require.NoError(t, tx.InsertTagInstance(ctx, models.KindRecord, &models.TagInstance{
			ID: "i1", EntityID: "r1", TagID: "Record.Note", Cardinality: models.CardinalityMulti,
		}))
		require.NoError(t, tx.CreateCatalog(ctx, &models.Catalog{ID: "SAEON"}))
		require.NoError(t, tx.UpsertCatalogRecord(ctx, &models.CatalogRecord{CatalogID: "SAEON", RecordID: "r1"}))

		require.NoError(t, tx.DeleteRecord(ctx, "r1"))

		_, err := tx.GetTagInstance(ctx, models.KindRecord, "r1", "i1")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = tx.GetCatalogRecord(ctx, "SAEON", "r1")
		assert.ErrorIs(t, err, ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryStoreAudit(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.WithTx(ctx, func(tx Tx) error {
		for _, id := range []string{"a", "b", "a"} {
			rec := &models.AuditRecord{
				Stream:   models.StreamRecordTag,
				ClientID: "client",
				Command:  models.AuditInsert,
				EntityID: "tag-" + id,
				Snapshot: map[string]any{"_record_id": id},
			}
			require.NoError(t, tx.InsertAudit(ctx, rec))
			assert.NotZero(t, rec.ID)
		}
		return nil
	}))

	require.NoError(t, store.WithTx(ctx, func(tx Tx) error {
		recs, err := tx.ListAudit(ctx, models.AuditFilter{Stream: models.StreamRecordTag, Field: "_record_id", Value: "a"})
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Less(t, recs[0].ID, recs[1].ID)

		rec, err := tx.GetAudit(ctx, models.StreamRecordTag, recs[1].ID)
		require.NoError(t, err)
		assert.Equal(t, "tag-a", rec.EntityID)

		_, err = tx.GetAudit(ctx, models.StreamRecord, recs[1].ID)
		assert.ErrorIs(t, err, ErrNotFound)
		return nil
	}))
}

func TestSeedIsRepeatable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixtures.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
vocabularies:
  - id: Institution
    schema_id: Keyword.Institution
tags:
  - id: Collection.Published
    type: collection
    cardinality: one
    public: true
    scope_id: odp.collection:admin
    schema_id: Tag.Generic
users:
  - id: u1
    name: Alice
providers:
  - id: p1
    key: saeon
    name: SAEON
catalogs:
  - id: SAEON
    url: https://catalog.saeon.ac.za
`), 0o644))

	f, err := LoadFixtures(path)
	require.NoError(t, err)
	require.Len(t, f.Tags, 1)
	assert.Equal(t, models.KindCollection, f.Tags[0].Kind)

	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, Seed(ctx, store, f))
	require.NoError(t, Seed(ctx, store, f))

	require.NoError(t, store.WithTx(ctx, func(tx Tx) error {
		tag, err := tx.GetTag(ctx, models.KindCollection, "Collection.Published")
		require.NoError(t, err)
		assert.Equal(t, models.CardinalityOne, tag.Cardinality)

		p, err := tx.GetProvider(ctx, "p1")
		require.NoError(t, err)
		assert.False(t, p.Timestamp.IsZero())
		return nil
	}))
}
