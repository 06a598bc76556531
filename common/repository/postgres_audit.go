package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/opendataplatform/registry/common/models"
)

func (t *pgTx) InsertAudit(ctx context.Context, rec *models.AuditRecord) error {
	table, err := auditTableFor(rec.Stream)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (client_id, user_id, command, timestamp, _id, snapshot)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, table)

	err = t.tx.QueryRow(ctx, query,
		rec.ClientID,
		rec.UserID,
		rec.Command,
		rec.Timestamp,
		rec.EntityID,
		rec.Snapshot,
	).Scan(&rec.ID)
	return mapError(err, "insert audit record")
}

func scanAudit(row pgx.Row, stream models.AuditStream) (*models.AuditRecord, error) {
	rec := &models.AuditRecord{Stream: stream}
	err := row.Scan(
		&rec.ID,
		&rec.ClientID,
		&rec.UserID,
		&rec.Command,
		&rec.Timestamp,
		&rec.EntityID,
		&rec.Snapshot,
	)
	return rec, err
}

func (t *pgTx) GetAudit(ctx context.Context, stream models.AuditStream, id int64) (*models.AuditRecord, error) {
	table, err := auditTableFor(stream)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, client_id, user_id, command, timestamp, _id, snapshot
		FROM %s WHERE id = $1
	`, table)

	rec, err := scanAudit(t.tx.QueryRow(ctx, query, id), stream)
	if err != nil {
		return nil, mapError(err, "get audit record")
	}
	return rec, nil
}

func (t *pgTx) ListAudit(ctx context.Context, filter models.AuditFilter) ([]*models.AuditRecord, error) {
	table, err := auditTableFor(filter.Stream)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, client_id, user_id, command, timestamp, _id, snapshot
		FROM %s WHERE TRUE
	`, table)
	var args []any
	if filter.EntityID != "" {
		args = append(args, filter.EntityID)
		query += fmt.Sprintf(` AND _id = $%d`, len(args))
	}
	if filter.Field != "" {
		args = append(args, filter.Field, filter.Value)
		query += fmt.Sprintf(` AND snapshot ->> $%d = $%d`, len(args)-1, len(args))
	}
	query += ` ORDER BY id`

	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "list audit records")
	}
	defer rows.Close()

	var out []*models.AuditRecord
	for rows.Next() {
		rec, err := scanAudit(rows, filter.Stream)
		if err != nil {
			return nil, mapError(err, "scan audit record")
		}
		out = append(out, rec)
	}
	return out, mapError(rows.Err(), "list audit records")
}
