package repository

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/opendataplatform/registry/common/models"
)

type tagKey struct {
	kind models.EntityKind
	id   string
}

type catalogRecordKey struct {
	catalogID string
	recordID  string
}

type storedInstance struct {
	models.TagInstance
	kind models.EntityKind
	seq  int64
}

type memState struct {
	tags           map[tagKey]models.Tag
	vocabularies   map[string]models.Vocabulary
	keywords       map[int]models.Keyword
	users          map[string]models.User
	providers      map[string]models.Provider
	collections    map[string]models.Collection
	packages       map[string]models.Package
	records        map[string]models.Record
	instances      map[string]storedInstance
	audit          map[models.AuditStream][]models.AuditRecord
	catalogs       map[string]models.Catalog
	catalogRecords map[catalogRecordKey]models.CatalogRecord

	nextKeywordID  int
	nextAuditID    int64
	nextInstanceNo int64
	keywordVersion int64
}

func newMemState() *memState {
	return &memState{
		tags:           make(map[tagKey]models.Tag),
		vocabularies:   make(map[string]models.Vocabulary),
		keywords:       make(map[int]models.Keyword),
		users:          make(map[string]models.User),
		providers:      make(map[string]models.Provider),
		collections:    make(map[string]models.Collection),
		packages:       make(map[string]models.Package),
		records:        make(map[string]models.Record),
		instances:      make(map[string]storedInstance),
		audit:          make(map[models.AuditStream][]models.AuditRecord),
		catalogs:       make(map[string]models.Catalog),
		catalogRecords: make(map[catalogRecordKey]models.CatalogRecord),
		nextKeywordID:  1,
		nextAuditID:    1,
	}
}

func (s *memState) clone() *memState {
	c := *s
	c.tags = maps.Clone(s.tags)
	c.vocabularies = maps.Clone(s.vocabularies)
	c.keywords = maps.Clone(s.keywords)
	c.users = maps.Clone(s.users)
	c.providers = maps.Clone(s.providers)
	c.collections = maps.Clone(s.collections)
	c.packages = maps.Clone(s.packages)
	c.records = maps.Clone(s.records)
	c.instances = maps.Clone(s.instances)
	c.catalogs = maps.Clone(s.catalogs)
	c.catalogRecords = maps.Clone(s.catalogRecords)
	c.audit = make(map[models.AuditStream][]models.AuditRecord, len(s.audit))
	for stream, recs := range s.audit {
		c.audit[stream] = slices.Clip(recs)
	}
	return &c
}

// MemoryStore is a transactional in-process store. Transactions are
// serialized and run against a copy of the state that replaces the committed
// state only when the transaction succeeds. It enforces the same unique and
// restrict rules as the Postgres schema.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

// WithTx runs fn in a serialized transaction. Calls must not be nested.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	working := s.state.clone()
	if err := fn(&memTx{s: working}); err != nil {
		return err
	}
	s.state = working
	return nil
}

func (s *MemoryStore) Health(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() {}

type memTx struct {
	s *memState
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Tx    = (*memTx)(nil)
)

// Tags

func (t *memTx) GetTag(ctx context.Context, kind models.EntityKind, id string) (*models.Tag, error) {
	tag, ok := t.s.tags[tagKey{kind, id}]
	if !ok {
		return nil, ErrNotFound
	}
	return &tag, nil
}

func (t *memTx) ListTags(ctx context.Context, kind models.EntityKind) ([]*models.Tag, error) {
	var out []*models.Tag
	for k, tag := range t.s.tags {
		if k.kind == kind {
			tag := tag
			out = append(out, &tag)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) CreateTag(ctx context.Context, tag *models.Tag) error {
	for k := range t.s.tags {
		if k.id == tag.ID {
			return ErrUniqueViolation
		}
	}
	if tag.VocabularyID != nil {
		if _, ok := t.s.vocabularies[*tag.VocabularyID]; !ok {
			return ErrForeignKeyViolation
		}
	}
	t.s.tags[tagKey{tag.Kind, tag.ID}] = *tag
	return nil
}

// Vocabularies and keywords

func (t *memTx) GetVocabulary(ctx context.Context, id string) (*models.Vocabulary, error) {
	v, ok := t.s.vocabularies[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (t *memTx) CreateVocabulary(ctx context.Context, v *models.Vocabulary) error {
	if _, ok := t.s.vocabularies[v.ID]; ok {
		return ErrUniqueViolation
	}
	t.s.vocabularies[v.ID] = *v
	return nil
}

func (t *memTx) GetKeyword(ctx context.Context, vocabularyID string, id int) (*models.Keyword, error) {
	kw, ok := t.s.keywords[id]
	if !ok || kw.VocabularyID != vocabularyID {
		return nil, ErrNotFound
	}
	return copyKeyword(kw), nil
}

func (t *memTx) GetKeywordByKey(ctx context.Context, vocabularyID, key string) (*models.Keyword, error) {
	for _, kw := range t.s.keywords {
		if kw.VocabularyID == vocabularyID && kw.Key == key {
			return copyKeyword(kw), nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) ListKeywords(ctx context.Context) ([]*models.Keyword, error) {
	out := make([]*models.Keyword, 0, len(t.s.keywords))
	for _, kw := range t.s.keywords {
		out = append(out, copyKeyword(kw))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) CreateKeyword(ctx context.Context, kw *models.Keyword) error {
	if _, ok := t.s.vocabularies[kw.VocabularyID]; !ok {
		return ErrForeignKeyViolation
	}
	if _, err := t.GetKeywordByKey(ctx, kw.VocabularyID, kw.Key); err == nil {
		return ErrUniqueViolation
	}
	if kw.ParentID != nil {
		if _, ok := t.s.keywords[*kw.ParentID]; !ok {
			return ErrForeignKeyViolation
		}
	}

	kw.ID = t.s.nextKeywordID
	t.s.nextKeywordID++
	t.s.keywords[kw.ID] = *copyKeyword(*kw)
	t.s.keywordVersion++
	return nil
}

func (t *memTx) UpdateKeyword(ctx context.Context, kw *models.Keyword) error {
	current, ok := t.s.keywords[kw.ID]
	if !ok || current.VocabularyID != kw.VocabularyID {
		return ErrNotFound
	}
	if existing, err := t.GetKeywordByKey(ctx, kw.VocabularyID, kw.Key); err == nil && existing.ID != kw.ID {
		return ErrUniqueViolation
	}
	if kw.ParentID != nil {
		if _, ok := t.s.keywords[*kw.ParentID]; !ok {
			return ErrForeignKeyViolation
		}
	}
	t.s.keywords[kw.ID] = *copyKeyword(*kw)
	t.s.keywordVersion++
	return nil
}

func (t *memTx) DeleteKeyword(ctx context.Context, vocabularyID string, id int) error {
	kw, ok := t.s.keywords[id]
	if !ok || kw.VocabularyID != vocabularyID {
		return ErrNotFound
	}
	for _, other := range t.s.keywords {
		if other.ParentID != nil && *other.ParentID == id {
			return ErrForeignKeyViolation
		}
	}
	for _, inst := range t.s.instances {
		if inst.KeywordID != nil && *inst.KeywordID == id {
			return ErrForeignKeyViolation
		}
	}
	delete(t.s.keywords, id)
	t.s.keywordVersion++
	return nil
}

func (t *memTx) KeywordVersion(ctx context.Context) (int64, error) {
	return t.s.keywordVersion, nil
}

// Users and providers

func (t *memTx) GetUser(ctx context.Context, id string) (*models.User, error) {
	u, ok := t.s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (t *memTx) CreateUser(ctx context.Context, u *models.User) error {
	if _, ok := t.s.users[u.ID]; ok {
		return ErrUniqueViolation
	}
	t.s.users[u.ID] = *u
	return nil
}

func (t *memTx) GetProvider(ctx context.Context, id string) (*models.Provider, error) {
	p, ok := t.s.providers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (t *memTx) CreateProvider(ctx context.Context, p *models.Provider) error {
	for _, other := range t.s.providers {
		if other.ID == p.ID || other.Key == p.Key {
			return ErrUniqueViolation
		}
	}
	t.s.providers[p.ID] = *p
	return nil
}

func (t *memTx) DeleteProvider(ctx context.Context, id string) error {
	if _, ok := t.s.providers[id]; !ok {
		return ErrNotFound
	}
	for _, c := range t.s.collections {
		if c.ProviderID == id {
			return ErrForeignKeyViolation
		}
	}
	for _, p := range t.s.packages {
		if p.ProviderID == id {
			return ErrForeignKeyViolation
		}
	}
	delete(t.s.providers, id)
	return nil
}

// Collections

func (t *memTx) GetCollection(ctx context.Context, id string) (*models.Collection, error) {
	c, ok := t.s.collections[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (t *memTx) CreateCollection(ctx context.Context, c *models.Collection) error {
	if _, ok := t.s.collections[c.ID]; ok {
		return ErrUniqueViolation
	}
	if _, ok := t.s.providers[c.ProviderID]; !ok {
		return ErrForeignKeyViolation
	}
	t.s.collections[c.ID] = *c
	return nil
}

func (t *memTx) UpdateCollection(ctx context.Context, c *models.Collection) error {
	if _, ok := t.s.collections[c.ID]; !ok {
		return ErrNotFound
	}
	if _, ok := t.s.providers[c.ProviderID]; !ok {
		return ErrForeignKeyViolation
	}
	t.s.collections[c.ID] = *c
	return nil
}

func (t *memTx) DeleteCollection(ctx context.Context, id string) error {
	if _, ok := t.s.collections[id]; !ok {
		return ErrNotFound
	}
	for _, r := range t.s.records {
		if r.CollectionID == id {
			return ErrForeignKeyViolation
		}
	}
	t.cascadeInstances(models.KindCollection, id)
	delete(t.s.collections, id)
	return nil
}

// Packages

func (t *memTx) GetPackage(ctx context.Context, id string) (*models.Package, error) {
	p, ok := t.s.packages[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyPackage(p), nil
}

func (t *memTx) CreatePackage(ctx context.Context, p *models.Package) error {
	if _, ok := t.s.packages[p.ID]; ok {
		return ErrUniqueViolation
	}
	if err := t.checkPackage(p); err != nil {
		return err
	}
	t.s.packages[p.ID] = *copyPackage(*p)
	return nil
}

func (t *memTx) UpdatePackage(ctx context.Context, p *models.Package, prev PackageVersion) error {
	stored, ok := t.s.packages[p.ID]
	if !ok || stored.Status != prev.Status || !stored.Timestamp.Equal(prev.Timestamp) {
		return ErrStaleWrite
	}
	if err := t.checkPackage(p); err != nil {
		return err
	}
	t.s.packages[p.ID] = *copyPackage(*p)
	return nil
}

func (t *memTx) checkPackage(p *models.Package) error {
	if _, ok := t.s.providers[p.ProviderID]; !ok {
		return ErrForeignKeyViolation
	}
	for _, other := range t.s.packages {
		if other.ID != p.ID && other.ProviderID == p.ProviderID && other.Key == p.Key {
			return ErrUniqueViolation
		}
	}
	return nil
}

func (t *memTx) DeletePackage(ctx context.Context, id string) error {
	if _, ok := t.s.packages[id]; !ok {
		return ErrNotFound
	}
	t.cascadeInstances(models.KindPackage, id)
	delete(t.s.packages, id)
	return nil
}

// Records

func (t *memTx) GetRecord(ctx context.Context, id string) (*models.Record, error) {
	r, ok := t.s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRecord(r), nil
}

func (t *memTx) ListRecords(ctx context.Context) ([]*models.Record, error) {
	out := make([]*models.Record, 0, len(t.s.records))
	for _, r := range t.s.records {
		out = append(out, copyRecord(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) CreateRecord(ctx context.Context, r *models.Record) error {
	if _, ok := t.s.records[r.ID]; ok {
		return ErrUniqueViolation
	}
	if err := t.checkRecord(r); err != nil {
		return err
	}
	t.s.records[r.ID] = *copyRecord(*r)
	return nil
}

func (t *memTx) UpdateRecord(ctx context.Context, r *models.Record) error {
	if _, ok := t.s.records[r.ID]; !ok {
		return ErrNotFound
	}
	if err := t.checkRecord(r); err != nil {
		return err
	}
	t.s.records[r.ID] = *copyRecord(*r)
	return nil
}

func (t *memTx) checkRecord(r *models.Record) error {
	if _, ok := t.s.collections[r.CollectionID]; !ok {
		return ErrForeignKeyViolation
	}
	if r.ParentID != nil {
		if _, ok := t.s.records[*r.ParentID]; !ok {
			return ErrForeignKeyViolation
		}
	}
	for _, other := range t.s.records {
		if other.ID == r.ID {
			continue
		}
		if sameString(other.DOI, r.DOI) || sameString(other.SID, r.SID) {
			return ErrUniqueViolation
		}
	}
	return nil
}

func (t *memTx) DeleteRecord(ctx context.Context, id string) error {
	if _, ok := t.s.records[id]; !ok {
		return ErrNotFound
	}
	for _, other := range t.s.records {
		if other.ParentID != nil && *other.ParentID == id {
			return ErrForeignKeyViolation
		}
	}
	t.cascadeInstances(models.KindRecord, id)
	for k := range t.s.catalogRecords {
		if k.recordID == id {
			delete(t.s.catalogRecords, k)
		}
	}
	delete(t.s.records, id)
	return nil
}

func (t *memTx) TouchEntity(ctx context.Context, kind models.EntityKind, id string, ts time.Time) error {
	switch kind {
	case models.KindCollection:
		c, ok := t.s.collections[id]
		if !ok {
			return ErrNotFound
		}
		c.Timestamp = ts
		t.s.collections[id] = c
	case models.KindPackage:
		p, ok := t.s.packages[id]
		if !ok {
			return ErrNotFound
		}
		p.Timestamp = ts
		t.s.packages[id] = p
	case models.KindRecord:
		r, ok := t.s.records[id]
		if !ok {
			return ErrNotFound
		}
		r.Timestamp = ts
		t.s.records[id] = r
	default:
		return fmt.Errorf("unknown entity kind %q", kind)
	}
	return nil
}

func (t *memTx) entityExists(kind models.EntityKind, id string) bool {
	var ok bool
	switch kind {
	case models.KindCollection:
		_, ok = t.s.collections[id]
	case models.KindPackage:
		_, ok = t.s.packages[id]
	case models.KindRecord:
		_, ok = t.s.records[id]
	}
	return ok
}

func (t *memTx) cascadeInstances(kind models.EntityKind, entityID string) {
	for id, inst := range t.s.instances {
		if inst.kind == kind && inst.EntityID == entityID {
			delete(t.s.instances, id)
		}
	}
}

// Tag instances

func (t *memTx) hydrate(inst storedInstance) *models.TagInstance {
	out := inst.TagInstance
	out.Data = cloneJSON(inst.Data)
	if tag, ok := t.s.tags[tagKey{inst.kind, inst.TagID}]; ok {
		out.Cardinality = tag.Cardinality
		out.Public = tag.Public
	}
	out.UserName = nil
	if inst.UserID != nil {
		if u, ok := t.s.users[*inst.UserID]; ok {
			name := u.Name
			out.UserName = &name
		}
	}
	return &out
}

func (t *memTx) GetTagInstance(ctx context.Context, kind models.EntityKind, entityID, id string) (*models.TagInstance, error) {
	inst, ok := t.s.instances[id]
	if !ok || inst.kind != kind || inst.EntityID != entityID {
		return nil, ErrNotFound
	}
	return t.hydrate(inst), nil
}

func (t *memTx) FindTagInstances(ctx context.Context, kind models.EntityKind, filter TagInstanceFilter) ([]*models.TagInstance, error) {
	var matched []storedInstance
	for _, inst := range t.s.instances {
		if inst.kind != kind || inst.EntityID != filter.EntityID {
			continue
		}
		if filter.TagID != "" && inst.TagID != filter.TagID {
			continue
		}
		if filter.ByUser && !sameString(inst.UserID, filter.UserID) && !(inst.UserID == nil && filter.UserID == nil) {
			continue
		}
		matched = append(matched, inst)
	}
	return t.ordered(matched), nil
}

func (t *memTx) ListTagInstances(ctx context.Context, kind models.EntityKind, entityID string) ([]*models.TagInstance, error) {
	return t.FindTagInstances(ctx, kind, TagInstanceFilter{EntityID: entityID})
}

func (t *memTx) ordered(insts []storedInstance) []*models.TagInstance {
	sort.Slice(insts, func(i, j int) bool { return insts[i].seq < insts[j].seq })
	out := make([]*models.TagInstance, 0, len(insts))
	for _, inst := range insts {
		out = append(out, t.hydrate(inst))
	}
	return out
}

func (t *memTx) InsertTagInstance(ctx context.Context, kind models.EntityKind, inst *models.TagInstance) error {
	if _, ok := t.s.instances[inst.ID]; ok {
		return ErrUniqueViolation
	}
	if !t.entityExists(kind, inst.EntityID) {
		return ErrForeignKeyViolation
	}
	if _, ok := t.s.tags[tagKey{kind, inst.TagID}]; !ok {
		return ErrForeignKeyViolation
	}
	if inst.KeywordID != nil {
		if _, ok := t.s.keywords[*inst.KeywordID]; !ok {
			return ErrForeignKeyViolation
		}
	}

	for _, other := range t.s.instances {
		if other.kind != kind || other.EntityID != inst.EntityID || other.TagID != inst.TagID {
			continue
		}
		switch inst.Cardinality {
		case models.CardinalityOne:
			return ErrUniqueViolation
		case models.CardinalityUser:
			if sameString(other.UserID, inst.UserID) || (other.UserID == nil && inst.UserID == nil) {
				return ErrUniqueViolation
			}
		}
	}

	t.s.nextInstanceNo++
	stored := storedInstance{TagInstance: *inst, kind: kind, seq: t.s.nextInstanceNo}
	stored.Data = cloneJSON(inst.Data)
	t.s.instances[inst.ID] = stored
	return nil
}

func (t *memTx) UpdateTagInstance(ctx context.Context, kind models.EntityKind, inst *models.TagInstance, prev InstanceVersion) error {
	stored, ok := t.s.instances[inst.ID]
	if !ok || stored.kind != kind {
		return ErrStaleWrite
	}
	if !sameOwner(stored.UserID, prev.UserID) || !stored.Timestamp.Equal(prev.Timestamp) {
		return ErrStaleWrite
	}
	if inst.KeywordID != nil {
		if _, ok := t.s.keywords[*inst.KeywordID]; !ok {
			return ErrForeignKeyViolation
		}
	}
	stored.UserID = inst.UserID
	stored.VocabularyID = inst.VocabularyID
	stored.KeywordID = inst.KeywordID
	stored.Data = cloneJSON(inst.Data)
	stored.Timestamp = inst.Timestamp
	t.s.instances[inst.ID] = stored
	return nil
}

func (t *memTx) DeleteTagInstance(ctx context.Context, kind models.EntityKind, id string) error {
	stored, ok := t.s.instances[id]
	if !ok || stored.kind != kind {
		return ErrNotFound
	}
	delete(t.s.instances, id)
	return nil
}

// Audit

func (t *memTx) InsertAudit(ctx context.Context, rec *models.AuditRecord) error {
	rec.ID = t.s.nextAuditID
	t.s.nextAuditID++

	stored := *rec
	stored.Snapshot = cloneJSON(rec.Snapshot)
	t.s.audit[rec.Stream] = append(t.s.audit[rec.Stream], stored)
	return nil
}

func (t *memTx) GetAudit(ctx context.Context, stream models.AuditStream, id int64) (*models.AuditRecord, error) {
	for _, rec := range t.s.audit[stream] {
		if rec.ID == id {
			out := rec
			out.Snapshot = cloneJSON(rec.Snapshot)
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) ListAudit(ctx context.Context, filter models.AuditFilter) ([]*models.AuditRecord, error) {
	var out []*models.AuditRecord
	for _, rec := range t.s.audit[filter.Stream] {
		if filter.EntityID != "" && rec.EntityID != filter.EntityID {
			continue
		}
		if filter.Field != "" && fmt.Sprint(rec.Snapshot[filter.Field]) != filter.Value {
			continue
		}
		r := rec
		r.Snapshot = cloneJSON(rec.Snapshot)
		out = append(out, &r)
	}
	return out, nil
}

// Catalogs

func (t *memTx) GetCatalog(ctx context.Context, id string) (*models.Catalog, error) {
	c, ok := t.s.catalogs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (t *memTx) ListCatalogs(ctx context.Context) ([]*models.Catalog, error) {
	out := make([]*models.Catalog, 0, len(t.s.catalogs))
	for _, c := range t.s.catalogs {
		c := c
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) CreateCatalog(ctx context.Context, c *models.Catalog) error {
	if _, ok := t.s.catalogs[c.ID]; ok {
		return ErrUniqueViolation
	}
	t.s.catalogs[c.ID] = *c
	return nil
}

func (t *memTx) GetCatalogRecord(ctx context.Context, catalogID, recordID string) (*models.CatalogRecord, error) {
	cr, ok := t.s.catalogRecords[catalogRecordKey{catalogID, recordID}]
	if !ok {
		return nil, ErrNotFound
	}
	cr.PublishedRecord = cloneJSON(cr.PublishedRecord)
	return &cr, nil
}

func (t *memTx) ListCatalogRecords(ctx context.Context, catalogID string) ([]*models.CatalogRecord, error) {
	var out []*models.CatalogRecord
	for k, cr := range t.s.catalogRecords {
		if k.catalogID == catalogID {
			cr := cr
			cr.PublishedRecord = cloneJSON(cr.PublishedRecord)
			out = append(out, &cr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordID < out[j].RecordID })
	return out, nil
}

func (t *memTx) UpsertCatalogRecord(ctx context.Context, cr *models.CatalogRecord) error {
	if _, ok := t.s.catalogs[cr.CatalogID]; !ok {
		return ErrForeignKeyViolation
	}
	if _, ok := t.s.records[cr.RecordID]; !ok {
		return ErrForeignKeyViolation
	}
	stored := *cr
	stored.PublishedRecord = cloneJSON(cr.PublishedRecord)
	t.s.catalogRecords[catalogRecordKey{cr.CatalogID, cr.RecordID}] = stored
	return nil
}

func sameString(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}

// sameOwner treats two nil users as equal, like IS NOT DISTINCT FROM
func sameOwner(a, b *string) bool {
	return (a == nil && b == nil) || sameString(a, b)
}

func copyKeyword(kw models.Keyword) *models.Keyword {
	kw.Data = cloneJSON(kw.Data)
	if kw.ParentID != nil {
		parent := *kw.ParentID
		kw.ParentID = &parent
	}
	return &kw
}

func copyPackage(p models.Package) *models.Package {
	p.Metadata = cloneJSON(p.Metadata)
	p.Validity = cloneJSON(p.Validity)
	p.Resources = slices.Clone(p.Resources)
	return &p
}

func copyRecord(r models.Record) *models.Record {
	r.Metadata = cloneJSON(r.Metadata)
	r.Validity = cloneJSON(r.Validity)
	return &r
}

// cloneJSON deep-copies a decoded JSON object
func cloneJSON(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneJSON(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return val
	}
}
