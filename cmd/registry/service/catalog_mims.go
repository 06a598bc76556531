package service

import (
	"context"
	"fmt"

	"github.com/opendataplatform/registry/common/models"
)

// iso19115Facets maps ISO19115 keyword types to MIMS facet names
var iso19115Facets = map[string]string{
	"theme":   "Project",
	"place":   "Location",
	"stratum": "Instrument",
}

// MIMSCatalog publishes the SAEON records of MIMS collections, adding a
// schema.org Dataset variant
type MIMSCatalog struct {
	*SAEONCatalog
}

func NewMIMSCatalog(id string, schemas SchemaService) *MIMSCatalog {
	return &MIMSCatalog{SAEONCatalog: NewSAEONCatalog(id, schemas)}
}

// Evaluate additionally requires the collection to carry a MIMS
// infrastructure tag
func (c *MIMSCatalog) Evaluate(v *RecordView) (bool, []string) {
	ok, reasons := c.SAEONCatalog.Evaluate(v)
	mims := isMIMS(v)

	switch {
	case ok && !mims:
		return false, []string{ReasonNotMIMSCollection}
	case !ok && !mims:
		return false, append(reasons, ReasonNotMIMSCollection)
	case ok && mims:
		return true, append(reasons, ReasonMIMSCollection)
	}
	return ok, reasons
}

func isMIMS(v *RecordView) bool {
	for _, t := range v.tagged(models.TagCollectionInfrastructure) {
		if infra, _ := t.Data["infrastructure"].(string); infra == "MIMS" {
			return true
		}
	}
	return false
}

func (c *MIMSCatalog) Assemble(ctx context.Context, v *RecordView) (*Publication, error) {
	published, err := c.CreatePublishedRecord(ctx, v)
	if err != nil {
		return nil, err
	}

	record, err := toMap(published)
	if err != nil {
		return nil, err
	}
	return &Publication{
		Record: record,
		Index: &IndexData{
			FullText: c.CreateFullTextSearchData(published),
			Keywords: c.CreateKeywordSearchData(published),
			Facets:   c.CreateFacetIndexData(published),
			Spatial:  c.CreateSpatialSearchData(published),
			Temporal: c.CreateTemporalSearchData(published),
		},
	}, nil
}

// CreatePublishedRecord extends the SAEON form with HasPart links to published
// child records and a schema.org Dataset variant
func (c *MIMSCatalog) CreatePublishedRecord(ctx context.Context, v *RecordView) (*models.PublishedSAEONRecord, error) {
	published, err := c.SAEONCatalog.CreatePublishedRecord(ctx, v)
	if err != nil {
		return nil, err
	}

	var related []any
	for _, child := range v.Children {
		if child.Record.DOI == nil {
			continue
		}
		if ok, _ := c.Evaluate(child); ok {
			related = append(related, map[string]any{
				"relatedIdentifier":     *child.Record.DOI,
				"relatedIdentifierType": "DOI",
				"relationType":          "HasPart",
			})
		}
	}
	if len(related) > 0 {
		for i, m := range published.Metadata {
			doc, err := toMap(m.Metadata)
			if err != nil {
				return nil, fmt.Errorf("copy %s metadata: %w", m.SchemaID, err)
			}
			existing, _ := doc["relatedIdentifiers"].([]any)
			doc["relatedIdentifiers"] = append(existing, related...)
			published.Metadata[i].Metadata = doc
		}
	}

	datacite, _ := published.MetadataFor(models.SchemaSAEONDataCite4)

	var title, abstract, license string
	if titles := listOf(datacite, "titles"); len(titles) > 0 {
		title = stringOf(titles[0], "title")
	}
	for _, d := range listOf(datacite, "descriptions") {
		if stringOf(d, "descriptionType") == "Abstract" {
			abstract = stringOf(d, "description")
			break
		}
	}
	if rights := listOf(datacite, "rightsList"); len(rights) > 0 {
		license = stringOf(rights[0], "rightsURI")
	}

	var identifier any
	ref := published.ID
	if published.DOI != nil {
		identifier = "doi:" + *published.DOI
		ref = *published.DOI
	}

	keywords := []any{}
	for _, k := range c.CreateKeywordSearchData(published) {
		keywords = append(keywords, k)
	}

	published.Metadata = append(published.Metadata, models.PublishedMetadata{
		SchemaID: models.SchemaOrgDataset,
		Metadata: map[string]any{
			"@context":    "https://schema.org/",
			"@type":       "Dataset",
			"name":        title,
			"description": abstract,
			"identifier":  identifier,
			"keywords":    keywords,
			"license":     license,
			"url":         fmt.Sprintf("%s/%s", v.Catalog.URL, ref),
		},
	})
	return published, nil
}

// CreateFacetIndexData replaces the collection facet with project, location
// and instrument facets drawn from ISO19115 descriptive keywords
func (c *MIMSCatalog) CreateFacetIndexData(p *models.PublishedSAEONRecord) map[string][]string {
	facets := map[string][]string{
		"Provider":   {p.ProviderName},
		"Project":    {},
		"Location":   {},
		"Instrument": {},
	}

	iso, ok := p.MetadataFor(models.SchemaSAEONISO19115)
	if !ok {
		return facets
	}
	for _, kw := range listOf(iso, "descriptiveKeywords") {
		if facet, ok := iso19115Facets[stringOf(kw, "keywordType")]; ok {
			facets[facet] = append(facets[facet], stringOf(kw, "keyword"))
		}
	}
	return facets
}
