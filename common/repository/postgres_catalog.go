package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/opendataplatform/registry/common/models"
)

func (t *pgTx) GetCatalog(ctx context.Context, id string) (*models.Catalog, error) {
	c := &models.Catalog{}
	err := t.tx.QueryRow(ctx,
		`SELECT id, url, data, timestamp FROM catalog WHERE id = $1`, id,
	).Scan(&c.ID, &c.URL, &c.Data, &c.Timestamp)
	if err != nil {
		return nil, mapError(err, "get catalog")
	}
	return c, nil
}

func (t *pgTx) ListCatalogs(ctx context.Context) ([]*models.Catalog, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, url, data, timestamp FROM catalog ORDER BY id`)
	if err != nil {
		return nil, mapError(err, "list catalogs")
	}
	defer rows.Close()

	var out []*models.Catalog
	for rows.Next() {
		c := &models.Catalog{}
		if err := rows.Scan(&c.ID, &c.URL, &c.Data, &c.Timestamp); err != nil {
			return nil, mapError(err, "scan catalog")
		}
		out = append(out, c)
	}
	return out, mapError(rows.Err(), "list catalogs")
}

func (t *pgTx) CreateCatalog(ctx context.Context, c *models.Catalog) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO catalog (id, url, data, timestamp) VALUES ($1, $2, $3, $4)`,
		c.ID, c.URL, c.Data, c.Timestamp,
	)
	return mapError(err, "create catalog")
}

const catalogRecordColumns = `
	catalog_id, record_id, published, published_record, reason, timestamp,
	synced, error, error_count, full_text, keywords, facets,
	spatial_north, spatial_east, spatial_south, spatial_west,
	temporal_start, temporal_end, searchable
`

func scanCatalogRecord(row pgx.Row) (*models.CatalogRecord, error) {
	cr := &models.CatalogRecord{}
	var fullText *string
	err := row.Scan(
		&cr.CatalogID,
		&cr.RecordID,
		&cr.Published,
		&cr.PublishedRecord,
		&cr.Reason,
		&cr.Timestamp,
		&cr.Synced,
		&cr.Error,
		&cr.ErrorCount,
		&fullText,
		&cr.Keywords,
		&cr.Facets,
		&cr.SpatialNorth,
		&cr.SpatialEast,
		&cr.SpatialSouth,
		&cr.SpatialWest,
		&cr.TemporalStart,
		&cr.TemporalEnd,
		&cr.Searchable,
	)
	if fullText != nil {
		cr.FullText = *fullText
	}
	return cr, err
}

func (t *pgTx) GetCatalogRecord(ctx context.Context, catalogID, recordID string) (*models.CatalogRecord, error) {
	cr, err := scanCatalogRecord(t.tx.QueryRow(ctx,
		`SELECT `+catalogRecordColumns+` FROM catalog_record WHERE catalog_id = $1 AND record_id = $2`,
		catalogID, recordID,
	))
	if err != nil {
		return nil, mapError(err, "get catalog record")
	}
	return cr, nil
}

func (t *pgTx) ListCatalogRecords(ctx context.Context, catalogID string) ([]*models.CatalogRecord, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+catalogRecordColumns+` FROM catalog_record WHERE catalog_id = $1 ORDER BY record_id`,
		catalogID,
	)
	if err != nil {
		return nil, mapError(err, "list catalog records")
	}
	defer rows.Close()

	var out []*models.CatalogRecord
	for rows.Next() {
		cr, err := scanCatalogRecord(rows)
		if err != nil {
			return nil, mapError(err, "scan catalog record")
		}
		out = append(out, cr)
	}
	return out, mapError(rows.Err(), "list catalog records")
}

func (t *pgTx) UpsertCatalogRecord(ctx context.Context, cr *models.CatalogRecord) error {
	query := `
		INSERT INTO catalog_record (` + catalogRecordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (catalog_id, record_id) DO UPDATE SET
			published = EXCLUDED.published,
			published_record = EXCLUDED.published_record,
			reason = EXCLUDED.reason,
			timestamp = EXCLUDED.timestamp,
			synced = EXCLUDED.synced,
			error = EXCLUDED.error,
			error_count = EXCLUDED.error_count,
			full_text = EXCLUDED.full_text,
			keywords = EXCLUDED.keywords,
			facets = EXCLUDED.facets,
			spatial_north = EXCLUDED.spatial_north,
			spatial_east = EXCLUDED.spatial_east,
			spatial_south = EXCLUDED.spatial_south,
			spatial_west = EXCLUDED.spatial_west,
			temporal_start = EXCLUDED.temporal_start,
			temporal_end = EXCLUDED.temporal_end,
			searchable = EXCLUDED.searchable
	`
	_, err := t.tx.Exec(ctx, query,
		cr.CatalogID,
		cr.RecordID,
		cr.Published,
		cr.PublishedRecord,
		cr.Reason,
		cr.Timestamp,
		cr.Synced,
		cr.Error,
		cr.ErrorCount,
		cr.FullText,
		cr.Keywords,
		cr.Facets,
		cr.SpatialNorth,
		cr.SpatialEast,
		cr.SpatialSouth,
		cr.SpatialWest,
		cr.TemporalStart,
		cr.TemporalEnd,
		cr.Searchable,
	)
	return mapError(err, "upsert catalog record")
}
