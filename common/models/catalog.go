package models

import "time"

// Catalog ids
const (
	CatalogSAEON    = "SAEON"
	CatalogMIMS     = "MIMS"
	CatalogDataCite = "DataCite"
)

// Metadata schema ids known to the publication flavors
const (
	SchemaSAEONDataCite4 = "SAEON.DataCite4"
	SchemaSAEONISO19115  = "SAEON.ISO19115"
	SchemaOrgDataset     = "SchemaOrg.Dataset"
)

// Tag ids that drive publication decisions
const (
	TagCollectionPublished      = "Collection.Published"
	TagCollectionInfrastructure = "Collection.Infrastructure"
	TagRecordQC                 = "Record.QC"
	TagRecordRetracted          = "Record.Retracted"
)

// Catalog is a publication target
type Catalog struct {
	ID        string         `json:"id" yaml:"id"`
	URL       string         `json:"url" yaml:"url"`
	Data      map[string]any `json:"data,omitempty" yaml:"data"`
	Timestamp *time.Time     `json:"timestamp,omitempty" yaml:"-"`
}

// CatalogRecord captures the publication state of a record in a catalog
type CatalogRecord struct {
	CatalogID       string         `json:"catalog_id"`
	RecordID        string         `json:"record_id"`
	Published       bool           `json:"published"`
	PublishedRecord map[string]any `json:"published_record,omitempty"`
	Reason          string         `json:"reason"`
	Timestamp       time.Time      `json:"timestamp"`

	// External catalog sync state.
	Synced     *bool   `json:"synced,omitempty"`
	Error      *string `json:"error,omitempty"`
	ErrorCount int     `json:"error_count"`

	// Internal catalog index data.
	FullText      string              `json:"full_text,omitempty"`
	Keywords      []string            `json:"keywords,omitempty"`
	Facets        map[string][]string `json:"facets,omitempty"`
	SpatialNorth  *float64            `json:"spatial_north,omitempty"`
	SpatialEast   *float64            `json:"spatial_east,omitempty"`
	SpatialSouth  *float64            `json:"spatial_south,omitempty"`
	SpatialWest   *float64            `json:"spatial_west,omitempty"`
	TemporalStart *time.Time          `json:"temporal_start,omitempty"`
	TemporalEnd   *time.Time          `json:"temporal_end,omitempty"`
	Searchable    *bool               `json:"searchable,omitempty"`
}

// PublishedMetadata is one metadata variant of a published record
type PublishedMetadata struct {
	SchemaID string         `json:"schema_id"`
	Metadata map[string]any `json:"metadata"`
}

// PublishedTag is a public tag instance as exposed by a catalog
type PublishedTag struct {
	TagID     string         `json:"tag_id"`
	Data      map[string]any `json:"data"`
	UserName  *string        `json:"user_name"`
	Timestamp time.Time      `json:"timestamp"`
}

// PublishedSAEONRecord is the published form of a record in the SAEON catalog family
type PublishedSAEONRecord struct {
	ID             string              `json:"id"`
	DOI            *string             `json:"doi"`
	SID            *string             `json:"sid"`
	CollectionKey  string              `json:"collection_key"`
	CollectionName string              `json:"collection_name"`
	ProviderKey    string              `json:"provider_key"`
	ProviderName   string              `json:"provider_name"`
	Metadata       []PublishedMetadata `json:"metadata"`
	Tags           []PublishedTag      `json:"tags"`
	Timestamp      time.Time           `json:"timestamp"`
}

// MetadataFor returns the metadata variant for schemaID, if present
func (r *PublishedSAEONRecord) MetadataFor(schemaID string) (map[string]any, bool) {
	for _, m := range r.Metadata {
		if m.SchemaID == schemaID {
			return m.Metadata, true
		}
	}
	return nil, false
}

// PublishedDataCiteRecord is the published form of a record in DataCite
type PublishedDataCiteRecord struct {
	DOI      string         `json:"doi"`
	URL      string         `json:"url"`
	Metadata map[string]any `json:"metadata"`
}

// SpatialExtent is a N-E-S-W bounding box
type SpatialExtent struct {
	North, East, South, West float64
}

// TemporalExtent is a start-end range
type TemporalExtent struct {
	Start, End time.Time
}
