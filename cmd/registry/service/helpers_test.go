package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/opendataplatform/registry/common/cache"
	"github.com/opendataplatform/registry/common/errs"
	"github.com/opendataplatform/registry/common/logger"
	"github.com/opendataplatform/registry/common/models"
	"github.com/opendataplatform/registry/common/repository"
	"github.com/opendataplatform/registry/common/schema"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

// fakeSchemas is an in-memory SchemaService. A schema validates a document
// when every field listed in required is present.
type fakeSchemas struct {
	required     map[string][]string
	metadata     map[string]bool
	templates    map[string]map[string]any
	schemes      map[string]string
	patches      map[string]func(data map[string]any) []schema.Operation
	translations map[string]func(data map[string]any) map[string]any
}

func newFakeSchemas() *fakeSchemas {
	return &fakeSchemas{
		required:     map[string][]string{},
		metadata:     map[string]bool{},
		templates:    map[string]map[string]any{},
		schemes:      map[string]string{},
		patches:      map[string]func(map[string]any) []schema.Operation{},
		translations: map[string]func(map[string]any) map[string]any{},
	}
}

func (f *fakeSchemas) Has(typ schema.Type, id string) bool {
	if typ == schema.TypeMetadata {
		return f.metadata[id]
	}
	return true
}

func (f *fakeSchemas) Validate(ctx context.Context, typ schema.Type, id string, data map[string]any) (*schema.Validity, error) {
	v := &schema.Validity{Valid: true}
	for _, field := range f.required[id] {
		if _, ok := data[field]; !ok {
			v.Valid = false
			v.Errors = append(v.Errors, schema.ValidityError{
				KeywordLocation:  "/required",
				InstanceLocation: "",
				Error:            "missing property " + field,
			})
		}
	}
	return v, nil
}

func (f *fakeSchemas) TranslationPatch(ctx context.Context, typ schema.Type, id string, data map[string]any, scheme string) ([]schema.Operation, error) {
	v, _ := f.Validate(ctx, typ, id, data)
	if !v.Valid {
		return nil, errs.Unprocessable("data does not conform to %s", id).WithDetail(v.Map())
	}
	if fn, ok := f.patches[id]; ok {
		return fn(data), nil
	}
	return nil, nil
}

func (f *fakeSchemas) Translate(ctx context.Context, typ schema.Type, id string, data map[string]any, scheme string, ignoreValidity bool) (map[string]any, error) {
	if fn, ok := f.translations[id]; ok {
		return fn(data), nil
	}
	return map[string]any{}, nil
}

func (f *fakeSchemas) Template(ctx context.Context, id string) (map[string]any, error) {
	tmpl, ok := f.templates[id]
	if !ok {
		return nil, errs.Fatal(nil, "metadata schema %s has no template", id)
	}
	raw, _ := json.Marshal(tmpl)
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return out, nil
}

func (f *fakeSchemas) Scheme(ctx context.Context, id string) (string, error) {
	s, ok := f.schemes[id]
	if !ok {
		return "", errs.Fatal(nil, "metadata schema %s has no translation scheme", id)
	}
	return s, nil
}

// testEnv wires every service against a fresh in-memory store
type testEnv struct {
	store       *repository.MemoryStore
	schemas     *fakeSchemas
	audit       *AuditRecorder
	auditLog    *AuditService
	keywords    *KeywordService
	packages    *PackageService
	providers   *ProviderService
	collections *CollectionService
	records     *RecordService
	taggers     map[models.EntityKind]*Tagger
}

var (
	alice  = models.Actor{ClientID: "odp.web", UserID: strPtr("alice")}
	bob    = models.Actor{ClientID: "odp.web", UserID: strPtr("bob")}
	client = models.Actor{ClientID: "odp.harvester"}
)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := repository.NewMemoryStore()
	schemas := newFakeSchemas()
	log := logger.Discard()
	audit := NewAuditRecorder(nil, log)

	schemas.metadata[models.SchemaSAEONDataCite4] = true
	schemas.metadata[models.SchemaSAEONISO19115] = true
	schemas.required[models.SchemaSAEONDataCite4] = []string{"title"}
	schemas.templates[models.SchemaSAEONDataCite4] = map[string]any{"schemaVersion": "4"}
	schemas.schemes[models.SchemaSAEONDataCite4] = dataciteScheme
	schemas.required["Tag.Generic"] = []string{"comment"}
	schemas.patches["Tag.Generic"] = func(data map[string]any) []schema.Operation {
		return []schema.Operation{{Op: "add", Path: "/title", Value: data["comment"]}}
	}
	schemas.required["Keyword.Project"] = []string{"title"}

	env := &testEnv{
		store:       store,
		schemas:     schemas,
		audit:       audit,
		auditLog:    NewAuditService(store, log),
		keywords:    NewKeywordService(store, schemas, cache.NewMemoryCache(log), time.Minute, audit, nil, log),
		packages:    NewPackageService(store, schemas, audit, nil, log),
		providers:   NewProviderService(store, audit, log),
		collections: NewCollectionService(store, audit, log),
		records:     NewRecordService(store, schemas, audit, log),
		taggers: map[models.EntityKind]*Tagger{
			models.KindCollection: NewTagger(CollectionTags, store, schemas, audit, nil, log),
			models.KindPackage:    NewTagger(PackageTags, store, schemas, audit, nil, log),
			models.KindRecord:     NewTagger(RecordTags, store, schemas, audit, nil, log),
		},
	}

	require.NoError(t, repository.Seed(context.Background(), store, &repository.Fixtures{
		Vocabularies: []models.Vocabulary{
			{ID: "Project", SchemaID: "Keyword.Project"},
		},
		Tags: []models.Tag{
			{ID: "Collection.Published", Kind: models.KindCollection, Cardinality: models.CardinalityOne, Public: true, SchemaID: "Tag.Empty"},
			{ID: "Collection.Infrastructure", Kind: models.KindCollection, Cardinality: models.CardinalityOne, Public: true, SchemaID: "Tag.Infrastructure"},
			{ID: "Collection.Project", Kind: models.KindCollection, Cardinality: models.CardinalityMulti, Public: true, SchemaID: "Tag.Empty", VocabularyID: strPtr("Project")},
			{ID: "Package.General", Kind: models.KindPackage, Cardinality: models.CardinalityOne, SchemaID: "Tag.Generic"},
			{ID: "Record.QC", Kind: models.KindRecord, Cardinality: models.CardinalityUser, Public: true, SchemaID: "Tag.QC"},
			{ID: "Record.Note", Kind: models.KindRecord, Cardinality: models.CardinalityMulti, SchemaID: "Tag.Generic"},
			{ID: "Record.Retracted", Kind: models.KindRecord, Cardinality: models.CardinalityOne, Public: true, SchemaID: "Tag.Empty"},
		},
		Catalogs: []models.Catalog{
			{ID: models.CatalogSAEON, URL: "https://catalogue.example.org"},
			{ID: models.CatalogMIMS, URL: "https://mims.example.org"},
			{ID: models.CatalogDataCite, URL: "https://doi.example.org"},
		},
		Users: []models.User{
			{ID: "alice", Name: "Alice"},
			{ID: "bob", Name: "Bob"},
		},
		Providers: []models.Provider{
			{ID: "prov", Key: "saeon", Name: "SAEON"},
		},
	}))

	return env
}

// auditCount returns the number of records in one audit stream
func (e *testEnv) auditCount(t *testing.T, stream models.AuditStream) int {
	t.Helper()
	var n int
	err := e.store.WithTx(context.Background(), func(tx repository.Tx) error {
		recs, err := tx.ListAudit(context.Background(), models.AuditFilter{Stream: stream})
		n = len(recs)
		return err
	})
	require.NoError(t, err)
	return n
}

func (e *testEnv) collection(t *testing.T) *models.Collection {
	t.Helper()
	c, err := e.collections.Create(context.Background(), client, models.CollectionInput{Name: "Coastal", ProviderID: "prov"})
	require.NoError(t, err)
	return c
}

func (e *testEnv) record(t *testing.T, collectionID string, doi *string) *models.Record {
	t.Helper()
	r, err := e.records.Create(context.Background(), client, models.RecordInput{
		DOI:          doi,
		SID:          strPtr("sid-" + uuid.NewString()),
		CollectionID: collectionID,
		SchemaID:     models.SchemaSAEONDataCite4,
		Metadata:     map[string]any{"title": "Sea surface temperature"},
	})
	require.NoError(t, err)
	return r
}

// racingStore commits another writer's change inside the next transaction,
// right after the service has read the row it goes on to update
type racingStore struct {
	repository.Store
	afterGetPackage func(ctx context.Context, tx repository.Tx)
	afterFind       func(ctx context.Context, tx repository.Tx)
}

func (s *racingStore) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	return s.Store.WithTx(ctx, func(tx repository.Tx) error {
		return fn(&racingTx{Tx: tx, store: s})
	})
}

type racingTx struct {
	repository.Tx
	store *racingStore
}

func (t *racingTx) GetPackage(ctx context.Context, id string) (*models.Package, error) {
	p, err := t.Tx.GetPackage(ctx, id)
	if hook := t.store.afterGetPackage; err == nil && hook != nil {
		t.store.afterGetPackage = nil
		hook(ctx, t.Tx)
	}
	return p, err
}

func (t *racingTx) FindTagInstances(ctx context.Context, kind models.EntityKind, filter repository.TagInstanceFilter) ([]*models.TagInstance, error) {
	found, err := t.Tx.FindTagInstances(ctx, kind, filter)
	if hook := t.store.afterFind; err == nil && hook != nil {
		t.store.afterFind = nil
		hook(ctx, t.Tx)
	}
	return found, err
}
