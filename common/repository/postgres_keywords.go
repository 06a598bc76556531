package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/opendataplatform/registry/common/models"
)

func (t *pgTx) GetVocabulary(ctx context.Context, id string) (*models.Vocabulary, error) {
	v := &models.Vocabulary{}
	err := t.tx.QueryRow(ctx,
		`SELECT id, schema_id, static FROM vocabulary WHERE id = $1`, id,
	).Scan(&v.ID, &v.SchemaID, &v.Static)
	if err != nil {
		return nil, mapError(err, "get vocabulary")
	}
	return v, nil
}

func (t *pgTx) CreateVocabulary(ctx context.Context, v *models.Vocabulary) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO vocabulary (id, schema_id, static) VALUES ($1, $2, $3)`,
		v.ID, v.SchemaID, v.Static,
	)
	return mapError(err, "create vocabulary")
}

const keywordColumns = `vocabulary_id, id, key, data, status, parent_id`

func scanKeyword(row pgx.Row) (*models.Keyword, error) {
	kw := &models.Keyword{}
	err := row.Scan(&kw.VocabularyID, &kw.ID, &kw.Key, &kw.Data, &kw.Status, &kw.ParentID)
	return kw, err
}

func (t *pgTx) GetKeyword(ctx context.Context, vocabularyID string, id int) (*models.Keyword, error) {
	kw, err := scanKeyword(t.tx.QueryRow(ctx,
		`SELECT `+keywordColumns+` FROM keyword WHERE vocabulary_id = $1 AND id = $2`,
		vocabularyID, id,
	))
	if err != nil {
		return nil, mapError(err, "get keyword")
	}
	return kw, nil
}

func (t *pgTx) GetKeywordByKey(ctx context.Context, vocabularyID, key string) (*models.Keyword, error) {
	kw, err := scanKeyword(t.tx.QueryRow(ctx,
		`SELECT `+keywordColumns+` FROM keyword WHERE vocabulary_id = $1 AND key = $2`,
		vocabularyID, key,
	))
	if err != nil {
		return nil, mapError(err, "get keyword")
	}
	return kw, nil
}

func (t *pgTx) ListKeywords(ctx context.Context) ([]*models.Keyword, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+keywordColumns+` FROM keyword ORDER BY id`)
	if err != nil {
		return nil, mapError(err, "list keywords")
	}
	defer rows.Close()

	var out []*models.Keyword
	for rows.Next() {
		kw, err := scanKeyword(rows)
		if err != nil {
			return nil, mapError(err, "scan keyword")
		}
		out = append(out, kw)
	}
	return out, mapError(rows.Err(), "list keywords")
}

func (t *pgTx) CreateKeyword(ctx context.Context, kw *models.Keyword) error {
	query := `
		INSERT INTO keyword (vocabulary_id, key, data, status, parent_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := t.tx.QueryRow(ctx, query,
		kw.VocabularyID,
		kw.Key,
		kw.Data,
		kw.Status,
		kw.ParentID,
	).Scan(&kw.ID)
	if err != nil {
		return mapError(err, "create keyword")
	}
	return t.bumpKeywordVersion(ctx)
}

func (t *pgTx) UpdateKeyword(ctx context.Context, kw *models.Keyword) error {
	query := `
		UPDATE keyword
		SET key = $3, data = $4, status = $5, parent_id = $6
		WHERE vocabulary_id = $1 AND id = $2
	`
	tag, err := t.tx.Exec(ctx, query,
		kw.VocabularyID,
		kw.ID,
		kw.Key,
		kw.Data,
		kw.Status,
		kw.ParentID,
	)
	if err := affected(tag, err, "update keyword"); err != nil {
		return err
	}
	return t.bumpKeywordVersion(ctx)
}

func (t *pgTx) DeleteKeyword(ctx context.Context, vocabularyID string, id int) error {
	tag, err := t.tx.Exec(ctx,
		`DELETE FROM keyword WHERE vocabulary_id = $1 AND id = $2`, vocabularyID, id,
	)
	if err := affected(tag, err, "delete keyword"); err != nil {
		return err
	}
	return t.bumpKeywordVersion(ctx)
}

func (t *pgTx) KeywordVersion(ctx context.Context) (int64, error) {
	var version int64
	err := t.tx.QueryRow(ctx, `SELECT version FROM keyword_version`).Scan(&version)
	if err != nil {
		return 0, mapError(err, "get keyword version")
	}
	return version, nil
}

func (t *pgTx) bumpKeywordVersion(ctx context.Context) error {
	_, err := t.tx.Exec(ctx, `UPDATE keyword_version SET version = version + 1`)
	return mapError(err, "bump keyword version")
}
