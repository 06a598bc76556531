package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/opendataplatform/registry/common/db"
	"github.com/opendataplatform/registry/common/models"
)

//go:embed schema.sql
var schemaSQL string

// Migrate creates any missing tables and indexes
func Migrate(ctx context.Context, database *db.DB) error {
	if _, err := database.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// PostgresStore is the Store backed by a pgx pool
type PostgresStore struct {
	db *db.DB
}

// NewPostgresStore creates a store over an open pool
func NewPostgresStore(database *db.DB) *PostgresStore {
	return &PostgresStore{db: database}
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

func (s *PostgresStore) Health(ctx context.Context) error {
	return s.db.Health(ctx)
}

func (s *PostgresStore) Close() {
	s.db.Close()
}

type pgTx struct {
	tx pgx.Tx
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Tx    = (*pgTx)(nil)
)

// mapError translates driver errors into the package sentinels
func mapError(err error, action string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return fmt.Errorf("%s: %w", action, ErrUniqueViolation)
		case pgerrcode.ForeignKeyViolation, pgerrcode.RestrictViolation:
			return fmt.Errorf("%s: %w", action, ErrForeignKeyViolation)
		}
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

func affected(tag pgconn.CommandTag, err error, action string) error {
	if err != nil {
		return mapError(err, action)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// applied reports ErrStaleWrite when a conditional update matched no row
func applied(tag pgconn.CommandTag, err error, action string) error {
	if err != nil {
		return mapError(err, action)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleWrite
	}
	return nil
}

var entityTables = map[models.EntityKind]string{
	models.KindCollection: "collection",
	models.KindPackage:    "package",
	models.KindRecord:     "record",
}

type instanceTable struct {
	table     string
	entityCol string
}

var instanceTables = map[models.EntityKind]instanceTable{
	models.KindCollection: {"collection_tag", "collection_id"},
	models.KindPackage:    {"package_tag", "package_id"},
	models.KindRecord:     {"record_tag", "record_id"},
}

func instanceTableFor(kind models.EntityKind) (instanceTable, error) {
	t, ok := instanceTables[kind]
	if !ok {
		return instanceTable{}, fmt.Errorf("unknown entity kind %q", kind)
	}
	return t, nil
}

func auditTableFor(stream models.AuditStream) (string, error) {
	for _, s := range models.AuditStreams {
		if s == stream {
			return string(s) + "_audit", nil
		}
	}
	return "", fmt.Errorf("unknown audit stream %q", stream)
}
