package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opendataplatform/registry/common/errs"
	"github.com/opendataplatform/registry/common/logger"
	"github.com/opendataplatform/registry/common/models"
	"github.com/opendataplatform/registry/common/repository"
	"github.com/opendataplatform/registry/common/telemetry"
)

// PublishResult summarizes one publication run of a catalog
type PublishResult struct {
	CatalogID   string `json:"catalog_id"`
	Evaluated   int    `json:"evaluated"`
	Published   int    `json:"published"`
	Unpublished int    `json:"unpublished"`
	Unchanged   int    `json:"unchanged"`
	Failed      int    `json:"failed"`
	Synced      int    `json:"synced"`
	SyncFailed  int    `json:"sync_failed"`
}

// Publisher evaluates every record against each catalog and stores the
// resulting catalog records
type Publisher struct {
	store     repository.Store
	catalogs  map[string]Catalog
	metrics   *telemetry.Metrics
	telemetry *telemetry.Telemetry
	log       *logger.Logger
}

// NewPublisher creates a publisher serving the given catalog flavors
func NewPublisher(store repository.Store, metrics *telemetry.Metrics, tel *telemetry.Telemetry, log *logger.Logger, catalogs ...Catalog) *Publisher {
	byID := make(map[string]Catalog, len(catalogs))
	for _, c := range catalogs {
		byID[c.ID()] = c
	}
	return &Publisher{
		store:     store,
		catalogs:  byID,
		metrics:   metrics,
		telemetry: tel,
		log:       log,
	}
}

// PublishAll publishes every catalog in the store that has a flavor
func (p *Publisher) PublishAll(ctx context.Context) ([]*PublishResult, error) {
	var catalogs []*models.Catalog
	err := p.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		catalogs, err = tx.ListCatalogs(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list catalogs: %w", err)
	}

	results := make([]*PublishResult, 0, len(catalogs))
	for _, c := range catalogs {
		if _, ok := p.catalogs[c.ID]; !ok {
			p.log.Warn("no publication flavor for catalog", "catalog_id", c.ID)
			continue
		}
		res, err := p.Publish(ctx, c.ID)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// CatalogRecord returns the publication state of a record in a catalog
func (p *Publisher) CatalogRecord(ctx context.Context, catalogID, recordID string) (*models.CatalogRecord, error) {
	var cr *models.CatalogRecord
	err := p.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		cr, err = tx.GetCatalogRecord(ctx, catalogID, recordID)
		return notFound(err, "record %s not found in catalog %s", recordID, catalogID)
	})
	return cr, err
}

// CatalogRecords lists a catalog's records, optionally only the published ones
func (p *Publisher) CatalogRecords(ctx context.Context, catalogID string, publishedOnly bool, page Page) ([]*models.CatalogRecord, int, error) {
	var all []*models.CatalogRecord
	err := p.store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetCatalog(ctx, catalogID); err != nil {
			return notFound(err, "catalog %s not found", catalogID)
		}
		var err error
		all, err = tx.ListCatalogRecords(ctx, catalogID)
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	items := all[:0:0]
	for _, cr := range all {
		if publishedOnly && !cr.Published {
			continue
		}
		items = append(items, cr)
	}
	start, end := page.apply(len(items))
	return items[start:end], len(items), nil
}

type pendingSync struct {
	cr     *models.CatalogRecord
	record *models.Record
}

// Publish evaluates all records against one catalog. Catalog records whose
// state changed are written in a single transaction; external catalogs are
// then synced record by record, and each sync outcome is stored separately.
func (p *Publisher) Publish(ctx context.Context, catalogID string) (*PublishResult, error) {
	if p.telemetry != nil {
		defer p.telemetry.RecordDuration("publish."+catalogID, time.Now())
	}

	cat, ok := p.catalogs[catalogID]
	if !ok {
		return nil, errs.NotFound("catalog %s not found", catalogID)
	}
	external, isExternal := cat.(ExternalCatalog)

	log := p.log.WithFields(map[string]any{"catalog_id": catalogID})
	res := &PublishResult{CatalogID: catalogID}
	var syncs []pendingSync

	err := p.store.WithTx(ctx, func(tx repository.Tx) error {
		catalog, err := tx.GetCatalog(ctx, catalogID)
		if err != nil {
			return notFound(err, "catalog %s not found", catalogID)
		}

		views, err := loadViews(ctx, tx, catalog)
		if err != nil {
			return err
		}

		for _, v := range views {
			res.Evaluated++
			recordID := v.Record.ID

			existing, err := tx.GetCatalogRecord(ctx, catalogID, recordID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("failed to read catalog record: %w", err)
			}

			ok, reasons := cat.Evaluate(v)
			cr := &models.CatalogRecord{
				CatalogID: catalogID,
				RecordID:  recordID,
				Published: ok,
				Reason:    strings.Join(reasons, ", "),
				Timestamp: now(),
			}

			if ok {
				pub, err := cat.Assemble(ctx, v)
				if err != nil {
					log.Warn("failed to assemble published record", "record_id", recordID, "error", err)
					res.Failed++
					continue
				}
				cr.PublishedRecord = pub.Record
				if pub.Index != nil {
					applyIndex(cr, pub.Index)
				}
			}
			if !isExternal {
				cr.Searchable = &ok
			}

			if existing != nil && sameCatalogRecord(existing, cr) {
				res.Unchanged++
				if isExternal && existing.Synced != nil && !*existing.Synced {
					syncs = append(syncs, pendingSync{cr: existing, record: v.Record})
				}
				continue
			}

			if isExternal {
				synced := false
				if existing == nil && !ok {
					synced = true
				}
				cr.Synced = &synced
				if existing != nil {
					cr.ErrorCount = existing.ErrorCount
				}
			}

			if err := tx.UpsertCatalogRecord(ctx, cr); err != nil {
				return fmt.Errorf("failed to store catalog record %s: %w", recordID, err)
			}

			if ok {
				res.Published++
			} else {
				res.Unpublished++
			}
			p.metrics.CatalogRecord(catalogID, ok)

			if cr.Synced != nil && !*cr.Synced {
				syncs = append(syncs, pendingSync{cr: cr, record: v.Record})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if isExternal {
		for _, s := range syncs {
			if p.sync(ctx, external, s) {
				res.Synced++
			} else {
				res.SyncFailed++
			}
		}
	}

	log.Info("catalog published",
		"evaluated", res.Evaluated,
		"published", res.Published,
		"unpublished", res.Unpublished,
		"unchanged", res.Unchanged,
		"failed", res.Failed,
		"synced", res.Synced,
		"sync_failed", res.SyncFailed,
	)
	return res, nil
}

// sync pushes one catalog record to an external catalog and records the outcome
func (p *Publisher) sync(ctx context.Context, cat ExternalCatalog, s pendingSync) bool {
	syncErr := cat.Sync(ctx, s.cr, s.record)

	cr := *s.cr
	synced := syncErr == nil
	cr.Synced = &synced
	if syncErr != nil {
		msg := syncErr.Error()
		cr.Error = &msg
		cr.ErrorCount++
		p.metrics.SyncFailure(cat.ID())
		p.log.Warn("catalog record sync failed",
			"catalog_id", cat.ID(),
			"record_id", cr.RecordID,
			"error_count", cr.ErrorCount,
			"error", syncErr,
		)
	} else {
		cr.Error = nil
		cr.ErrorCount = 0
	}

	err := p.store.WithTx(ctx, func(tx repository.Tx) error {
		return tx.UpsertCatalogRecord(ctx, &cr)
	})
	if err != nil {
		p.log.Error("failed to store sync state", "catalog_id", cat.ID(), "record_id", cr.RecordID, "error", err)
		return false
	}
	return synced
}

// loadViews assembles a view of every record, linking children to parents
func loadViews(ctx context.Context, tx repository.Tx, catalog *models.Catalog) ([]*RecordView, error) {
	records, err := tx.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	views := make([]*RecordView, 0, len(records))
	byID := make(map[string]*RecordView, len(records))
	for _, r := range records {
		v := &RecordView{Catalog: catalog, Record: r}

		if v.Collection, err = tx.GetCollection(ctx, r.CollectionID); err != nil {
			return nil, fmt.Errorf("failed to read collection of record %s: %w", r.ID, err)
		}
		if v.Provider, err = tx.GetProvider(ctx, v.Collection.ProviderID); err != nil {
			return nil, fmt.Errorf("failed to read provider of record %s: %w", r.ID, err)
		}
		if v.CollectionTags, err = tx.ListTagInstances(ctx, models.KindCollection, r.CollectionID); err != nil {
			return nil, fmt.Errorf("failed to list collection tags: %w", err)
		}
		if v.RecordTags, err = tx.ListTagInstances(ctx, models.KindRecord, r.ID); err != nil {
			return nil, fmt.Errorf("failed to list record tags: %w", err)
		}

		views = append(views, v)
		byID[r.ID] = v
	}

	for _, v := range views {
		if v.Record.ParentID == nil {
			continue
		}
		if parent, ok := byID[*v.Record.ParentID]; ok {
			parent.Children = append(parent.Children, v)
		}
	}
	return views, nil
}

func applyIndex(cr *models.CatalogRecord, idx *IndexData) {
	cr.FullText = idx.FullText
	cr.Keywords = idx.Keywords
	cr.Facets = idx.Facets
	if idx.Spatial != nil {
		cr.SpatialNorth = &idx.Spatial.North
		cr.SpatialEast = &idx.Spatial.East
		cr.SpatialSouth = &idx.Spatial.South
		cr.SpatialWest = &idx.Spatial.West
	}
	if idx.Temporal != nil {
		cr.TemporalStart = &idx.Temporal.Start
		cr.TemporalEnd = &idx.Temporal.End
	}
}

// sameCatalogRecord reports whether republishing would leave the stored
// catalog record as it is
func sameCatalogRecord(a, b *models.CatalogRecord) bool {
	return a.Published == b.Published &&
		a.Reason == b.Reason &&
		jsonEqual(a.PublishedRecord, b.PublishedRecord)
}
