package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/opendataplatform/registry/common/models"
)

const tagColumns = `id, type, cardinality, public, scope_id, schema_id, vocabulary_id`

func scanTag(row pgx.Row) (*models.Tag, error) {
	tag := &models.Tag{}
	err := row.Scan(
		&tag.ID,
		&tag.Kind,
		&tag.Cardinality,
		&tag.Public,
		&tag.ScopeID,
		&tag.SchemaID,
		&tag.VocabularyID,
	)
	return tag, err
}

func (t *pgTx) GetTag(ctx context.Context, kind models.EntityKind, id string) (*models.Tag, error) {
	query := `SELECT ` + tagColumns + ` FROM tag WHERE id = $1 AND type = $2`

	tag, err := scanTag(t.tx.QueryRow(ctx, query, id, kind))
	if err != nil {
		return nil, mapError(err, "get tag")
	}
	return tag, nil
}

func (t *pgTx) ListTags(ctx context.Context, kind models.EntityKind) ([]*models.Tag, error) {
	query := `SELECT ` + tagColumns + ` FROM tag WHERE type = $1 ORDER BY id`

	rows, err := t.tx.Query(ctx, query, kind)
	if err != nil {
		return nil, mapError(err, "list tags")
	}
	defer rows.Close()

	var tags []*models.Tag
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, mapError(err, "scan tag")
		}
		tags = append(tags, tag)
	}
	return tags, mapError(rows.Err(), "list tags")
}

func (t *pgTx) CreateTag(ctx context.Context, tag *models.Tag) error {
	query := `
		INSERT INTO tag (id, type, cardinality, public, scope_id, schema_id, vocabulary_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := t.tx.Exec(ctx, query,
		tag.ID,
		tag.Kind,
		tag.Cardinality,
		tag.Public,
		tag.ScopeID,
		tag.SchemaID,
		tag.VocabularyID,
	)
	return mapError(err, "create tag")
}

func instanceSelect(it instanceTable) string {
	return fmt.Sprintf(`
		SELECT i.id, i.%[2]s, i.tag_id, i.user_id, u.name, i.vocabulary_id, i.keyword_id,
		       i.data, i.timestamp, t.cardinality, t.public
		FROM %[1]s i
		JOIN tag t ON t.id = i.tag_id
		LEFT JOIN users u ON u.id = i.user_id
	`, it.table, it.entityCol)
}

func scanInstance(row pgx.Row) (*models.TagInstance, error) {
	inst := &models.TagInstance{}
	err := row.Scan(
		&inst.ID,
		&inst.EntityID,
		&inst.TagID,
		&inst.UserID,
		&inst.UserName,
		&inst.VocabularyID,
		&inst.KeywordID,
		&inst.Data,
		&inst.Timestamp,
		&inst.Cardinality,
		&inst.Public,
	)
	return inst, err
}

func (t *pgTx) GetTagInstance(ctx context.Context, kind models.EntityKind, entityID, id string) (*models.TagInstance, error) {
	it, err := instanceTableFor(kind)
	if err != nil {
		return nil, err
	}

	query := instanceSelect(it) + fmt.Sprintf(` WHERE i.id = $1 AND i.%s = $2`, it.entityCol)
	inst, err := scanInstance(t.tx.QueryRow(ctx, query, id, entityID))
	if err != nil {
		return nil, mapError(err, "get tag instance")
	}
	return inst, nil
}

func (t *pgTx) FindTagInstances(ctx context.Context, kind models.EntityKind, filter TagInstanceFilter) ([]*models.TagInstance, error) {
	it, err := instanceTableFor(kind)
	if err != nil {
		return nil, err
	}

	query := instanceSelect(it) + fmt.Sprintf(` WHERE i.%s = $1`, it.entityCol)
	args := []any{filter.EntityID}
	if filter.TagID != "" {
		args = append(args, filter.TagID)
		query += fmt.Sprintf(` AND i.tag_id = $%d`, len(args))
	}
	if filter.ByUser {
		args = append(args, filter.UserID)
		query += fmt.Sprintf(` AND i.user_id IS NOT DISTINCT FROM $%d`, len(args))
	}
	query += ` ORDER BY i.seq`

	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "find tag instances")
	}
	defer rows.Close()

	var out []*models.TagInstance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, mapError(err, "scan tag instance")
		}
		out = append(out, inst)
	}
	return out, mapError(rows.Err(), "find tag instances")
}

func (t *pgTx) ListTagInstances(ctx context.Context, kind models.EntityKind, entityID string) ([]*models.TagInstance, error) {
	return t.FindTagInstances(ctx, kind, TagInstanceFilter{EntityID: entityID})
}

func (t *pgTx) InsertTagInstance(ctx context.Context, kind models.EntityKind, inst *models.TagInstance) error {
	it, err := instanceTableFor(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, %s, tag_id, cardinality, user_id, vocabulary_id, keyword_id, data, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, it.table, it.entityCol)

	_, err = t.tx.Exec(ctx, query,
		inst.ID,
		inst.EntityID,
		inst.TagID,
		inst.Cardinality,
		inst.UserID,
		inst.VocabularyID,
		inst.KeywordID,
		inst.Data,
		inst.Timestamp,
	)
	return mapError(err, "insert tag instance")
}

func (t *pgTx) UpdateTagInstance(ctx context.Context, kind models.EntityKind, inst *models.TagInstance, prev InstanceVersion) error {
	it, err := instanceTableFor(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET user_id = $2, vocabulary_id = $3, keyword_id = $4, data = $5, timestamp = $6
		WHERE id = $1 AND user_id IS NOT DISTINCT FROM $7 AND timestamp = $8
	`, it.table)

	tag, err := t.tx.Exec(ctx, query,
		inst.ID,
		inst.UserID,
		inst.VocabularyID,
		inst.KeywordID,
		inst.Data,
		inst.Timestamp,
		prev.UserID,
		prev.Timestamp,
	)
	return applied(tag, err, "update tag instance")
}

func (t *pgTx) DeleteTagInstance(ctx context.Context, kind models.EntityKind, id string) error {
	it, err := instanceTableFor(kind)
	if err != nil {
		return err
	}

	tag, err := t.tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, it.table), id)
	return affected(tag, err, "delete tag instance")
}

func (t *pgTx) TouchEntity(ctx context.Context, kind models.EntityKind, id string, ts time.Time) error {
	table, ok := entityTables[kind]
	if !ok {
		return fmt.Errorf("unknown entity kind %q", kind)
	}

	tag, err := t.tx.Exec(ctx, fmt.Sprintf(`UPDATE %s SET timestamp = $2 WHERE id = $1`, table), id, ts)
	return affected(tag, err, "touch "+table)
}
