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
)

func publishableView() *RecordView {
	return &RecordView{
		Catalog:    &models.Catalog{ID: models.CatalogMIMS, URL: "https://mims.example.org"},
		Record:     &models.Record{ID: "r1", DOI: strPtr("10.15493/abc"), SchemaID: models.SchemaSAEONDataCite4, Metadata: map[string]any{"title": "x"}, Validity: map[string]any{"valid": true}},
		Collection: &models.Collection{ID: "c1", Name: "Coastal"},
		Provider:   &models.Provider{ID: "p1", Key: "saeon", Name: "SAEON"},
		CollectionTags: []*models.TagInstance{
			{TagID: models.TagCollectionPublished, Public: true, Data: map[string]any{}},
		},
		RecordTags: []*models.TagInstance{
			{TagID: models.TagRecordQC, Public: true, Data: map[string]any{"pass_": true}, UserName: strPtr("Alice")},
			{TagID: "Record.Note", Public: false, Data: map[string]any{"comment": "private"}},
		},
	}
}

func TestEvaluateRecord(t *testing.T) {
	ok, reasons := evaluateRecord(publishableView())
	assert.True(t, ok)
	assert.Equal(t, []string{ReasonCollectionPublished, ReasonQCPassed}, reasons)

	v := publishableView()
	v.CollectionTags = nil
	v.RecordTags = []*models.TagInstance{
		{TagID: models.TagRecordQC, Data: map[string]any{"pass_": true}},
		{TagID: models.TagRecordQC, Data: map[string]any{"pass_": false}},
		{TagID: models.TagRecordRetracted, Data: map[string]any{}},
	}
	v.Record.Validity = map[string]any{"valid": false}
	ok, reasons = evaluateRecord(v)
	assert.False(t, ok)
	assert.Equal(t, []string{ReasonCollectionNotPublished, ReasonRecordRetracted, ReasonQCFailed, ReasonMetadataInvalid}, reasons)

	v = publishableView()
	v.RecordTags = nil
	ok, reasons = evaluateRecord(v)
	assert.False(t, ok)
	assert.Equal(t, []string{ReasonQCNotPerformed}, reasons)
}

func TestSAEONPublishedRecord(t *testing.T) {
	schemas := newFakeSchemas()
	schemas.translations[models.SchemaSAEONISO19115] = func(data map[string]any) map[string]any {
		return map[string]any{
			"titles":    []any{map[string]any{"title": "Ocean heat"}},
			"publisher": "SAEON",
			"creators": []any{map[string]any{
				"name":        "Doe, J",
				"affiliation": []any{map[string]any{"affiliation": "UCT"}},
			}},
			"contributors": []any{map[string]any{"name": "Roe, R"}},
			"subjects":     []any{map[string]any{"subject": "oceans"}, map[string]any{"other": "ignored"}},
			"descriptions": []any{map[string]any{"description": "Heat content", "descriptionType": "Abstract"}},
		}
	}
	cat := NewSAEONCatalog(models.CatalogSAEON, schemas)

	v := publishableView()
	v.Record.SchemaID = models.SchemaSAEONISO19115
	v.Record.Timestamp = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	published, err := cat.CreatePublishedRecord(context.Background(), v)
	require.NoError(t, err)
	assert.Equal(t, "Coastal", published.CollectionName)
	assert.Equal(t, "saeon", published.ProviderKey)
	require.Len(t, published.Metadata, 2)
	assert.Equal(t, models.SchemaSAEONISO19115, published.Metadata[0].SchemaID)
	assert.Equal(t, models.SchemaSAEONDataCite4, published.Metadata[1].SchemaID)

	require.Len(t, published.Tags, 2)
	assert.Equal(t, models.TagCollectionPublished, published.Tags[0].TagID)
	assert.Equal(t, models.TagRecordQC, published.Tags[1].TagID)
	assert.Equal(t, "Alice", *published.Tags[1].UserName)

	assert.Equal(t, "Ocean heat SAEON Doe, J UCT Roe, R oceans Heat content", cat.CreateFullTextSearchData(published))
	assert.Nil(t, cat.CreateKeywordSearchData(published))
	assert.Nil(t, cat.CreateSpatialSearchData(published))
	assert.Nil(t, cat.CreateTemporalSearchData(published))

	pub, err := cat.Assemble(context.Background(), v)
	require.NoError(t, err)
	assert.Equal(t, "r1", pub.Record["id"])
	assert.Equal(t, map[string][]string{"Collection": {"Coastal"}, "Provider": {"SAEON"}}, pub.Index.Facets)
}

func TestMIMSCatalog(t *testing.T) {
	cat := NewMIMSCatalog(models.CatalogMIMS, newFakeSchemas())

	v := publishableView()
	ok, reasons := cat.Evaluate(v)
	assert.False(t, ok)
	assert.Equal(t, []string{ReasonNotMIMSCollection}, reasons)

	v.CollectionTags = append(v.CollectionTags, &models.TagInstance{
		TagID: models.TagCollectionInfrastructure,
		Data:  map[string]any{"infrastructure": "MIMS"},
	})
	ok, reasons = cat.Evaluate(v)
	assert.True(t, ok)
	assert.Equal(t, []string{ReasonCollectionPublished, ReasonQCPassed, ReasonMIMSCollection}, reasons)

	v.Record.Metadata = map[string]any{
		"titles":       []any{map[string]any{"title": "Ocean heat"}},
		"descriptions": []any{map[string]any{"description": "Methods", "descriptionType": "Methods"}, map[string]any{"description": "Abstract text", "descriptionType": "Abstract"}},
		"rightsList":   []any{map[string]any{"rightsURI": "https://creativecommons.org/licenses/by/4.0/"}},
	}
	child := publishableView()
	child.CollectionTags = v.CollectionTags
	child.Record.ID = "r2"
	child.Record.DOI = strPtr("10.15493/abc.1")
	v.Children = []*RecordView{child}

	published, err := cat.CreatePublishedRecord(context.Background(), v)
	require.NoError(t, err)
	require.Len(t, published.Metadata, 2)

	related, _ := published.Metadata[0].Metadata["relatedIdentifiers"].([]any)
	require.Len(t, related, 1)
	assert.Equal(t, "10.15493/abc.1", related[0].(map[string]any)["relatedIdentifier"])
	assert.NotContains(t, v.Record.Metadata, "relatedIdentifiers")

	dataset, ok := published.MetadataFor(models.SchemaOrgDataset)
	require.True(t, ok)
	assert.Equal(t, "Ocean heat", dataset["name"])
	assert.Equal(t, "Abstract text", dataset["description"])
	assert.Equal(t, "doi:10.15493/abc", dataset["identifier"])
	assert.Equal(t, "https://creativecommons.org/licenses/by/4.0/", dataset["license"])
	assert.Equal(t, "https://mims.example.org/10.15493/abc", dataset["url"])
}

func TestMIMSFacets(t *testing.T) {
	cat := NewMIMSCatalog(models.CatalogMIMS, newFakeSchemas())
	facets := cat.CreateFacetIndexData(&models.PublishedSAEONRecord{
		ProviderName: "SAEON",
		Metadata: []models.PublishedMetadata{{
			SchemaID: models.SchemaSAEONISO19115,
			Metadata: map[string]any{"descriptiveKeywords": []any{
				map[string]any{"keywordType": "theme", "keyword": "Benguela"},
				map[string]any{"keywordType": "place", "keyword": "Cape Point"},
				map[string]any{"keywordType": "discipline", "keyword": "ignored"},
			}},
		}},
	})
	assert.Equal(t, map[string][]string{
		"Provider":   {"SAEON"},
		"Project":    {"Benguela"},
		"Location":   {"Cape Point"},
		"Instrument": {},
	}, facets)
}

func TestDataCiteCatalog(t *testing.T) {
	schemas := newFakeSchemas()
	schemas.translations[models.SchemaSAEONISO19115] = func(data map[string]any) map[string]any {
		return map[string]any{"titles": []any{map[string]any{"title": "translated"}}}
	}
	cat := NewDataCiteCatalog(models.CatalogDataCite, "https://catalogue.example.org/records", schemas, nil, logger.Discard())

	v := publishableView()
	v.Record.DOI = nil
	ok, reasons := cat.Evaluate(v)
	assert.False(t, ok)
	assert.Equal(t, []string{ReasonNoDOI}, reasons)

	v.RecordTags = nil
	_, reasons = cat.Evaluate(v)
	assert.Equal(t, []string{ReasonQCNotPerformed, ReasonNoDOI}, reasons)

	v = publishableView()
	published, err := cat.CreatePublishedRecord(context.Background(), v)
	require.NoError(t, err)
	assert.Equal(t, "https://catalogue.example.org/records/10.15493/abc", published.URL)
	assert.Equal(t, v.Record.Metadata, published.Metadata)

	v.Record.SchemaID = models.SchemaSAEONISO19115
	published, err = cat.CreatePublishedRecord(context.Background(), v)
	require.NoError(t, err)
	assert.Equal(t, "translated", published.Metadata["titles"].([]any)[0].(map[string]any)["title"])

	v.Record.SchemaID = "Other"
	_, err = cat.CreatePublishedRecord(context.Background(), v)
	assert.True(t, errs.Is(err, errs.KindUnprocessable))
}

var _ SchemaService = (*fakeSchemas)(nil)
