package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"koon/internal/utils"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const documentTableName = "koon.documents"

// txAttempts bounds the internal conflict retry. Exhaustion surfaces as
// ErrRetryExhausted and the caller must re-fetch before trying again.
const txAttempts = 3

type documentRow struct {
	Collection string    `db:"collection"`
	ID         string    `db:"id"`
	Data       []byte    `db:"data"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

var documentColumns = utils.StructTagValues(documentRow{})

type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate bootstraps the documents table. The app owns its schema the same
// way it owns its collections, so this runs at startup.
func (s *Postgres) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE SCHEMA IF NOT EXISTS koon`,
		`CREATE TABLE IF NOT EXISTS koon.documents (
			collection text NOT NULL,
			id         text NOT NULL,
			data       jsonb NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now(),
			updated_at timestamptz NOT NULL DEFAULT now(),
			PRIMARY KEY (collection, id)
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate documents table: %w", err)
		}
	}

	return nil
}

func (s *Postgres) Get(ctx context.Context, collection, id string) (*Document, error) {
	query, args, err := psql().Select(documentColumns...).From(documentTableName).
		Where(sq.Eq{"collection": collection, "id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate get document query: %w", err)
	}

	var row = new(documentRow)
	err = pgxscan.Get(ctx, s.pool, row, query, args...)
	if err != nil && !pgxscan.NotFound(err) {
		return nil, err
	}

	if err != nil {
		return nil, ErrNotFound
	}

	return row.document(), nil
}

func (s *Postgres) List(ctx context.Context, collection string) ([]*Document, error) {
	query, args, err := psql().Select(documentColumns...).From(documentTableName).
		Where(sq.Eq{"collection": collection}).
		OrderBy("created_at desc").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate list documents query: %w", err)
	}

	var rows = make([]*documentRow, 0)
	if err := pgxscan.Select(ctx, s.pool, &rows, query, args...); err != nil {
		return nil, utils.WrapError(err, "failed to list documents")
	}

	out := make([]*Document, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.document())
	}

	return out, nil
}

func (s *Postgres) Upsert(ctx context.Context, collection, id string, fields map[string]any, merge bool) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal upsert fields: %w", err)
	}

	assign := `data = EXCLUDED.data`
	if merge {
		assign = `data = documents.data || EXCLUDED.data`
	}

	query := fmt.Sprintf(`
		INSERT INTO koon.documents (collection, id, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection, id)
		DO UPDATE SET %s, updated_at = now()`, assign)

	_, err = s.pool.Exec(ctx, query, collection, id, data)
	return utils.ErrorWrapOrNil(err, "failed to upsert document")
}

func (s *Postgres) Delete(ctx context.Context, collection, id string) error {
	query, args, err := psql().Delete(documentTableName).
		Where(sq.Eq{"collection": collection, "id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate delete document query: %w", err)
	}

	_, err = s.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to delete document")
}

func (s *Postgres) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	var lastErr error

	for attempt := 0; attempt < txAttempts; attempt++ {
		err := s.runOnce(ctx, fn)
		if err == nil {
			return nil
		}

		if !retryable(err) {
			return err
		}

		lastErr = err
	}

	return fmt.Errorf("%w: %w", ErrRetryExhausted, lastErr)
}

func (s *Postgres) runOnce(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// retryable reports serialization failures and deadlocks, the two outcomes
// a fresh attempt can resolve.
func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}

	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

type pgTx struct {
	tx pgx.Tx
}

// Get locks the document row until commit, linearizing read-modify-write
// sequences against the same document.
func (t *pgTx) Get(ctx context.Context, collection, id string) (*Document, error) {
	query, args, err := psql().Select(documentColumns...).From(documentTableName).
		Where(sq.Eq{"collection": collection, "id": id}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate tx get query: %w", err)
	}

	var row = new(documentRow)
	err = pgxscan.Get(ctx, t.tx, row, query, args...)
	if err != nil && !pgxscan.NotFound(err) {
		return nil, err
	}

	if err != nil {
		return nil, ErrNotFound
	}

	return row.document(), nil
}

func (t *pgTx) Put(ctx context.Context, collection, id string, data []byte) error {
	query := `
		INSERT INTO koon.documents (collection, id, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection, id)
		DO UPDATE SET data = EXCLUDED.data, updated_at = now()`

	_, err := t.tx.Exec(ctx, query, collection, id, data)
	return utils.ErrorWrapOrNil(err, "failed to put document")
}

func (t *pgTx) Delete(ctx context.Context, collection, id string) error {
	query, args, err := psql().Delete(documentTableName).
		Where(sq.Eq{"collection": collection, "id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate tx delete query: %w", err)
	}

	_, err = t.tx.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to delete document")
}

func (r *documentRow) document() *Document {
	return &Document{
		ID:        r.ID,
		Data:      r.Data,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func psql() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}
