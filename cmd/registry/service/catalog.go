package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opendataplatform/registry/common/models"
)

// Publication reasons
const (
	ReasonCollectionPublished    = "collection published"
	ReasonQCPassed               = "QC passed"
	ReasonCollectionNotPublished = "collection not published"
	ReasonRecordRetracted        = "record retracted"
	ReasonQCNotPerformed         = "QC not performed"
	ReasonQCFailed               = "QC failed"
	ReasonMetadataInvalid        = "metadata invalid"
	ReasonNoDOI                  = "no DOI"
	ReasonMIMSCollection         = "MIMS collection"
	ReasonNotMIMSCollection      = "not a MIMS collection"
)

// RecordView is a record together with everything a catalog needs to decide
// on and assemble its published form
type RecordView struct {
	Catalog        *models.Catalog
	Record         *models.Record
	Collection     *models.Collection
	Provider       *models.Provider
	CollectionTags []*models.TagInstance
	RecordTags     []*models.TagInstance
	// Children are the views of records whose parent is Record.
	Children []*RecordView
}

// Tags returns the collection's and the record's tag instances, collection first
func (v *RecordView) Tags() []*models.TagInstance {
	tags := make([]*models.TagInstance, 0, len(v.CollectionTags)+len(v.RecordTags))
	tags = append(tags, v.CollectionTags...)
	return append(tags, v.RecordTags...)
}

func (v *RecordView) tagged(tagID string) []*models.TagInstance {
	var out []*models.TagInstance
	for _, t := range v.Tags() {
		if t.TagID == tagID {
			out = append(out, t)
		}
	}
	return out
}

// IndexData is the search payload of a record in an indexed catalog. Nil
// fields mean the dimension does not apply to the record.
type IndexData struct {
	FullText string
	Keywords []string
	Facets   map[string][]string
	Spatial  *models.SpatialExtent
	Temporal *models.TemporalExtent
}

// Publication is the assembled form of a record in one catalog
type Publication struct {
	Record map[string]any
	// Index is nil for catalogs that are not searched locally.
	Index *IndexData
}

// Catalog is a publication flavor
type Catalog interface {
	ID() string
	// Evaluate decides whether a record may be published and why.
	Evaluate(v *RecordView) (bool, []string)
	// Assemble builds the published form of a publishable record.
	Assemble(ctx context.Context, v *RecordView) (*Publication, error)
}

// ExternalCatalog is a catalog whose records live on a remote platform
type ExternalCatalog interface {
	Catalog
	// Sync pushes a catalog record's state to the remote platform.
	Sync(ctx context.Context, cr *models.CatalogRecord, record *models.Record) error
}

// evaluateRecord applies the publication rules shared by every catalog. A
// record is published only when its collection is published, it has passed
// QC, it is not retracted and its metadata is valid.
func evaluateRecord(v *RecordView) (bool, []string) {
	var reasons []string

	if len(v.tagged(models.TagCollectionPublished)) == 0 {
		reasons = append(reasons, ReasonCollectionNotPublished)
	}
	if len(v.tagged(models.TagRecordRetracted)) > 0 {
		reasons = append(reasons, ReasonRecordRetracted)
	}

	qc := v.tagged(models.TagRecordQC)
	if len(qc) == 0 {
		reasons = append(reasons, ReasonQCNotPerformed)
	} else {
		for _, t := range qc {
			if pass, _ := t.Data["pass_"].(bool); !pass {
				reasons = append(reasons, ReasonQCFailed)
				break
			}
		}
	}

	if valid, _ := v.Record.Validity["valid"].(bool); !valid {
		reasons = append(reasons, ReasonMetadataInvalid)
	}

	if len(reasons) > 0 {
		return false, reasons
	}
	return true, []string{ReasonCollectionPublished, ReasonQCPassed}
}

// toMap converts a published form into the JSON object stored on the catalog record
func toMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode published record: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode published record: %w", err)
	}
	return out, nil
}

// listOf returns the objects of a JSON array field, skipping non-objects
func listOf(doc map[string]any, field string) []map[string]any {
	items, _ := doc[field].([]any)
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

func stringOf(obj map[string]any, field string) string {
	s, _ := obj[field].(string)
	return s
}
