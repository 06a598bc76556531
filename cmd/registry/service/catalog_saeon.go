package service

import (
	"context"
	"strings"

	"github.com/opendataplatform/registry/common/errs"
	"github.com/opendataplatform/registry/common/models"
	"github.com/opendataplatform/registry/common/schema"
)

const dataciteScheme = "saeon/datacite4"

// SAEONCatalog is the primary, locally indexed catalog
type SAEONCatalog struct {
	id      string
	schemas SchemaService
}

func NewSAEONCatalog(id string, schemas SchemaService) *SAEONCatalog {
	return &SAEONCatalog{id: id, schemas: schemas}
}

func (c *SAEONCatalog) ID() string {
	return c.id
}

func (c *SAEONCatalog) Evaluate(v *RecordView) (bool, []string) {
	return evaluateRecord(v)
}

func (c *SAEONCatalog) Assemble(ctx context.Context, v *RecordView) (*Publication, error) {
	published, err := c.CreatePublishedRecord(ctx, v)
	if err != nil {
		return nil, err
	}
	return c.publication(v, published)
}

func (c *SAEONCatalog) publication(v *RecordView, published *models.PublishedSAEONRecord) (*Publication, error) {
	record, err := toMap(published)
	if err != nil {
		return nil, err
	}
	return &Publication{
		Record: record,
		Index: &IndexData{
			FullText: c.CreateFullTextSearchData(published),
			Keywords: c.CreateKeywordSearchData(published),
			Facets:   c.CreateFacetIndexData(v),
			Spatial:  c.CreateSpatialSearchData(published),
			Temporal: c.CreateTemporalSearchData(published),
		},
	}, nil
}

// CreatePublishedRecord assembles the published form of a record. ISO19115
// records also carry a DataCite variant, translated without requiring the
// source to validate.
func (c *SAEONCatalog) CreatePublishedRecord(ctx context.Context, v *RecordView) (*models.PublishedSAEONRecord, error) {
	r := v.Record
	metadata := []models.PublishedMetadata{{SchemaID: r.SchemaID, Metadata: r.Metadata}}

	if r.SchemaID == models.SchemaSAEONISO19115 {
		datacite, err := c.schemas.Translate(ctx, schema.TypeMetadata, r.SchemaID, r.Metadata, dataciteScheme, true)
		if err != nil {
			return nil, errs.Wrap(errs.KindUnprocessable, err, "translate record %s to DataCite", r.ID)
		}
		metadata = append(metadata, models.PublishedMetadata{
			SchemaID: models.SchemaSAEONDataCite4,
			Metadata: datacite,
		})
	}

	tags := []models.PublishedTag{}
	for _, t := range v.Tags() {
		if !t.Public {
			continue
		}
		tags = append(tags, models.PublishedTag{
			TagID:     t.TagID,
			Data:      t.Data,
			UserName:  t.UserName,
			Timestamp: t.Timestamp,
		})
	}

	return &models.PublishedSAEONRecord{
		ID:             r.ID,
		DOI:            r.DOI,
		SID:            r.SID,
		CollectionKey:  v.Collection.ID,
		CollectionName: v.Collection.Name,
		ProviderKey:    v.Provider.Key,
		ProviderName:   v.Provider.Name,
		Metadata:       metadata,
		Tags:           tags,
		Timestamp:      r.Timestamp,
	}, nil
}

// CreateFullTextSearchData joins the human-readable values of the DataCite
// variant in document order
func (c *SAEONCatalog) CreateFullTextSearchData(p *models.PublishedSAEONRecord) string {
	doc, ok := p.MetadataFor(models.SchemaSAEONDataCite4)
	if !ok {
		return ""
	}

	var values []string
	add := func(s string) {
		if s != "" {
			values = append(values, s)
		}
	}

	for _, title := range listOf(doc, "titles") {
		add(stringOf(title, "title"))
	}
	add(stringOf(doc, "publisher"))
	for _, field := range []string{"creators", "contributors"} {
		for _, person := range listOf(doc, field) {
			add(stringOf(person, "name"))
			for _, aff := range listOf(person, "affiliation") {
				add(stringOf(aff, "affiliation"))
			}
		}
	}
	for _, subject := range listOf(doc, "subjects") {
		add(stringOf(subject, "subject"))
	}
	for _, desc := range listOf(doc, "descriptions") {
		add(stringOf(desc, "description"))
	}

	return strings.Join(values, " ")
}

// CreateKeywordSearchData produces no keywords yet
func (c *SAEONCatalog) CreateKeywordSearchData(p *models.PublishedSAEONRecord) []string {
	return nil
}

// CreateSpatialSearchData produces no spatial extent yet
func (c *SAEONCatalog) CreateSpatialSearchData(p *models.PublishedSAEONRecord) *models.SpatialExtent {
	return nil
}

// CreateTemporalSearchData produces no temporal extent yet
func (c *SAEONCatalog) CreateTemporalSearchData(p *models.PublishedSAEONRecord) *models.TemporalExtent {
	return nil
}

// CreateFacetIndexData maps facet names to the values indexed for faceted search
func (c *SAEONCatalog) CreateFacetIndexData(v *RecordView) map[string][]string {
	return map[string][]string{
		"Collection": {v.Collection.Name},
		"Provider":   {v.Provider.Name},
	}
}
