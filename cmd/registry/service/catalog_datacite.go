package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/opendataplatform/registry/common/errs"
	"github.com/opendataplatform/registry/common/logger"
	"github.com/opendataplatform/registry/common/models"
	"github.com/opendataplatform/registry/common/schema"
)

// DOIRegistry is the remote DOI platform that DataCite records are synced to
type DOIRegistry interface {
	PublishDOI(ctx context.Context, record *models.PublishedDataCiteRecord) error
	UnpublishDOI(ctx context.Context, doi string) error
}

// ErrRegistryDisabled is returned by DisabledDOIRegistry. Records that fail to
// sync stay unsynced and are retried on the next publication run.
var ErrRegistryDisabled = errors.New("DOI registry is not configured")

// DisabledDOIRegistry stands in for the DOI platform when no credentials are set
type DisabledDOIRegistry struct{}

func (DisabledDOIRegistry) PublishDOI(context.Context, *models.PublishedDataCiteRecord) error {
	return ErrRegistryDisabled
}

func (DisabledDOIRegistry) UnpublishDOI(context.Context, string) error {
	return ErrRegistryDisabled
}

// DataCiteCatalog publishes records with DOIs to an external DOI registry
type DataCiteCatalog struct {
	id        string
	returnURL string
	schemas   SchemaService
	registry  DOIRegistry
	log       *logger.Logger
}

func NewDataCiteCatalog(id, returnURL string, schemas SchemaService, registry DOIRegistry, log *logger.Logger) *DataCiteCatalog {
	return &DataCiteCatalog{
		id:        id,
		returnURL: returnURL,
		schemas:   schemas,
		registry:  registry,
		log:       log,
	}
}

func (c *DataCiteCatalog) ID() string {
	return c.id
}

// Evaluate additionally requires a DOI
func (c *DataCiteCatalog) Evaluate(v *RecordView) (bool, []string) {
	ok, reasons := evaluateRecord(v)
	if v.Record.DOI == nil {
		if ok {
			return false, []string{ReasonNoDOI}
		}
		return false, append(reasons, ReasonNoDOI)
	}
	return ok, reasons
}

func (c *DataCiteCatalog) Assemble(ctx context.Context, v *RecordView) (*Publication, error) {
	published, err := c.CreatePublishedRecord(ctx, v)
	if err != nil {
		return nil, err
	}
	record, err := toMap(published)
	if err != nil {
		return nil, err
	}
	return &Publication{Record: record}, nil
}

// CreatePublishedRecord builds the DataCite form of a record
func (c *DataCiteCatalog) CreatePublishedRecord(ctx context.Context, v *RecordView) (*models.PublishedDataCiteRecord, error) {
	r := v.Record
	if r.DOI == nil {
		return nil, errs.Unprocessable("record %s has no DOI", r.ID)
	}

	var metadata map[string]any
	switch r.SchemaID {
	case models.SchemaSAEONDataCite4:
		metadata = r.Metadata
	case models.SchemaSAEONISO19115:
		var err error
		metadata, err = c.schemas.Translate(ctx, schema.TypeMetadata, r.SchemaID, r.Metadata, dataciteScheme, true)
		if err != nil {
			return nil, errs.Wrap(errs.KindUnprocessable, err, "translate record %s to DataCite", r.ID)
		}
	default:
		return nil, errs.Unprocessable("schema %s cannot be published to DataCite", r.SchemaID)
	}

	return &models.PublishedDataCiteRecord{
		DOI:      *r.DOI,
		URL:      fmt.Sprintf("%s/%s", c.returnURL, *r.DOI),
		Metadata: metadata,
	}, nil
}

// Sync publishes a published record's DOI, or withdraws the DOI of a record
// that is no longer published
func (c *DataCiteCatalog) Sync(ctx context.Context, cr *models.CatalogRecord, record *models.Record) error {
	if cr.Published {
		raw, err := json.Marshal(cr.PublishedRecord)
		if err != nil {
			return fmt.Errorf("encode DataCite record: %w", err)
		}
		var published models.PublishedDataCiteRecord
		if err := json.Unmarshal(raw, &published); err != nil {
			return fmt.Errorf("decode DataCite record: %w", err)
		}
		c.log.Debug("publishing DOI", "doi", published.DOI, "record_id", cr.RecordID)
		return c.registry.PublishDOI(ctx, &published)
	}

	if record != nil && record.DOI != nil {
		c.log.Debug("unpublishing DOI", "doi", *record.DOI, "record_id", cr.RecordID)
		return c.registry.UnpublishDOI(ctx, *record.DOI)
	}
	return nil
}
