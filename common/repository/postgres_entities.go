package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/opendataplatform/registry/common/models"
)

func (t *pgTx) GetUser(ctx context.Context, id string) (*models.User, error) {
	u := &models.User{}
	err := t.tx.QueryRow(ctx, `SELECT id, name FROM users WHERE id = $1`, id).Scan(&u.ID, &u.Name)
	if err != nil {
		return nil, mapError(err, "get user")
	}
	return u, nil
}

func (t *pgTx) CreateUser(ctx context.Context, u *models.User) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO users (id, name) VALUES ($1, $2)`, u.ID, u.Name)
	return mapError(err, "create user")
}

// Providers

func (t *pgTx) GetProvider(ctx context.Context, id string) (*models.Provider, error) {
	p := &models.Provider{}
	err := t.tx.QueryRow(ctx,
		`SELECT id, key, name, timestamp FROM provider WHERE id = $1`, id,
	).Scan(&p.ID, &p.Key, &p.Name, &p.Timestamp)
	if err != nil {
		return nil, mapError(err, "get provider")
	}
	return p, nil
}

func (t *pgTx) CreateProvider(ctx context.Context, p *models.Provider) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO provider (id, key, name, timestamp) VALUES ($1, $2, $3, $4)`,
		p.ID, p.Key, p.Name, p.Timestamp,
	)
	return mapError(err, "create provider")
}

func (t *pgTx) DeleteProvider(ctx context.Context, id string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM provider WHERE id = $1`, id)
	return affected(tag, err, "delete provider")
}

// Collections

func (t *pgTx) GetCollection(ctx context.Context, id string) (*models.Collection, error) {
	c := &models.Collection{}
	err := t.tx.QueryRow(ctx,
		`SELECT id, name, doi_key, provider_id, timestamp FROM collection WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.DOIKey, &c.ProviderID, &c.Timestamp)
	if err != nil {
		return nil, mapError(err, "get collection")
	}
	return c, nil
}

func (t *pgTx) CreateCollection(ctx context.Context, c *models.Collection) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO collection (id, name, doi_key, provider_id, timestamp)
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, c.Name, c.DOIKey, c.ProviderID, c.Timestamp)
	return mapError(err, "create collection")
}

func (t *pgTx) UpdateCollection(ctx context.Context, c *models.Collection) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE collection SET name = $2, doi_key = $3, provider_id = $4, timestamp = $5
		WHERE id = $1
	`, c.ID, c.Name, c.DOIKey, c.ProviderID, c.Timestamp)
	return affected(tag, err, "update collection")
}

func (t *pgTx) DeleteCollection(ctx context.Context, id string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM collection WHERE id = $1`, id)
	return affected(tag, err, "delete collection")
}

// Packages

func (t *pgTx) GetPackage(ctx context.Context, id string) (*models.Package, error) {
	p := &models.Package{}
	err := t.tx.QueryRow(ctx, `
		SELECT id, key, title, status, provider_id, schema_id, metadata, validity, resource_ids, timestamp
		FROM package WHERE id = $1
	`, id).Scan(
		&p.ID,
		&p.Key,
		&p.Title,
		&p.Status,
		&p.ProviderID,
		&p.SchemaID,
		&p.Metadata,
		&p.Validity,
		&p.Resources,
		&p.Timestamp,
	)
	if err != nil {
		return nil, mapError(err, "get package")
	}
	return p, nil
}

func (t *pgTx) CreatePackage(ctx context.Context, p *models.Package) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO package (id, key, title, status, provider_id, schema_id, metadata, validity, resource_ids, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		p.ID,
		p.Key,
		p.Title,
		p.Status,
		p.ProviderID,
		p.SchemaID,
		p.Metadata,
		p.Validity,
		resourceIDs(p.Resources),
		p.Timestamp,
	)
	return mapError(err, "create package")
}

func (t *pgTx) UpdatePackage(ctx context.Context, p *models.Package, prev PackageVersion) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE package
		SET key = $2, title = $3, status = $4, provider_id = $5, schema_id = $6,
		    metadata = $7, validity = $8, resource_ids = $9, timestamp = $10
		WHERE id = $1 AND status = $11 AND timestamp = $12
	`,
		p.ID,
		p.Key,
		p.Title,
		p.Status,
		p.ProviderID,
		p.SchemaID,
		p.Metadata,
		p.Validity,
		resourceIDs(p.Resources),
		p.Timestamp,
		prev.Status,
		prev.Timestamp,
	)
	return applied(tag, err, "update package")
}

func (t *pgTx) DeletePackage(ctx context.Context, id string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM package WHERE id = $1`, id)
	return affected(tag, err, "delete package")
}

func resourceIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

// Records

const recordColumns = `id, doi, sid, collection_id, schema_id, metadata, validity, parent_id, timestamp`

func scanRecord(row pgx.Row) (*models.Record, error) {
	r := &models.Record{}
	err := row.Scan(
		&r.ID,
		&r.DOI,
		&r.SID,
		&r.CollectionID,
		&r.SchemaID,
		&r.Metadata,
		&r.Validity,
		&r.ParentID,
		&r.Timestamp,
	)
	return r, err
}

func (t *pgTx) GetRecord(ctx context.Context, id string) (*models.Record, error) {
	r, err := scanRecord(t.tx.QueryRow(ctx, `SELECT `+recordColumns+` FROM record WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err, "get record")
	}
	return r, nil
}

func (t *pgTx) ListRecords(ctx context.Context) ([]*models.Record, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+recordColumns+` FROM record ORDER BY id`)
	if err != nil {
		return nil, mapError(err, "list records")
	}
	defer rows.Close()

	var out []*models.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, mapError(err, "scan record")
		}
		out = append(out, r)
	}
	return out, mapError(rows.Err(), "list records")
}

func (t *pgTx) CreateRecord(ctx context.Context, r *models.Record) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO record (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		r.ID,
		r.DOI,
		r.SID,
		r.CollectionID,
		r.SchemaID,
		r.Metadata,
		r.Validity,
		r.ParentID,
		r.Timestamp,
	)
	return mapError(err, "create record")
}

func (t *pgTx) UpdateRecord(ctx context.Context, r *models.Record) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE record
		SET doi = $2, sid = $3, collection_id = $4, schema_id = $5,
		    metadata = $6, validity = $7, parent_id = $8, timestamp = $9
		WHERE id = $1
	`,
		r.ID,
		r.DOI,
		r.SID,
		r.CollectionID,
		r.SchemaID,
		r.Metadata,
		r.Validity,
		r.ParentID,
		r.Timestamp,
	)
	return affected(tag, err, "update record")
}

func (t *pgTx) DeleteRecord(ctx context.Context, id string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM record WHERE id = $1`, id)
	return affected(tag, err, "delete record")
}
