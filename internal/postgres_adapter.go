package internal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lychee-technology/dataeditor"
	"go.uber.org/zap"
)

const pgUniqueViolation = "23505"

// PgxPool is the subset of pgxpool.Pool used by the postgres adapter.
type PgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// EnsurePostgresTable creates the shared JSONB records table when it does not exist.
func EnsurePostgresTable(ctx context.Context, pool PgxPool, table string) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	model_id TEXT NOT NULL,
	record_key TEXT NOT NULL,
	created_at BIGINT NOT NULL,
	data JSONB NOT NULL,
	PRIMARY KEY (model_id, record_key)
)`, sanitizeIdentifier(table))
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}
	return nil
}

type postgresAdapter struct {
	pool    PgxPool
	table   string
	modelID string
	options AdapterOptions
	nowFunc func() time.Time
}

// NewPostgresAdapter stores the records of modelID as JSONB rows of a shared table.
func NewPostgresAdapter(pool PgxPool, table, modelID string, options AdapterOptions) dataeditor.Adapter {
	return &postgresAdapter{
		pool:    pool,
		table:   sanitizeIdentifier(table),
		modelID: modelID,
		options: options,
		nowFunc: time.Now,
	}
}

func (a *postgresAdapter) withClock(now func() time.Time) {
	if now == nil {
		return
	}
	a.nowFunc = now
}

func (a *postgresAdapter) List(ctx context.Context) ([]dataeditor.Record, error) {
	query := fmt.Sprintf("SELECT data FROM %s WHERE model_id = $1 ORDER BY created_at, record_key", a.table)
	rows, err := a.pool.Query(ctx, query, a.modelID)
	if err != nil {
		return nil, dataeditor.NewAdapterError("failed to list records", err)
	}
	defer rows.Close()

	records := make([]dataeditor.Record, 0)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, dataeditor.NewAdapterError("failed to scan record", err)
		}
		record, err := decodeRecord(data)
		if err != nil {
			return nil, dataeditor.NewAdapterError("failed to decode record", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, dataeditor.NewAdapterError("failed to list records", err)
	}
	return records, nil
}

func (a *postgresAdapter) Read(ctx context.Context, id string) (dataeditor.Record, error) {
	query := fmt.Sprintf("SELECT data FROM %s WHERE model_id = $1 AND record_key = $2", a.table)
	var data []byte
	err := a.pool.QueryRow(ctx, query, a.modelID, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, dataeditor.NewAdapterError(fmt.Sprintf("failed to read record %s", id), err)
	}
	record, err := decodeRecord(data)
	if err != nil {
		return nil, dataeditor.NewAdapterError("failed to decode record", err)
	}
	return record, nil
}

func (a *postgresAdapter) Create(ctx context.Context, data dataeditor.Record) (dataeditor.Record, error) {
	record := a.options.assignKey(data)
	key := RecordKey(record, a.options.primaryKey())
	payload, err := encodeRecord(record)
	if err != nil {
		return nil, dataeditor.NewAdapterError("failed to encode record", err)
	}

	stmt := fmt.Sprintf(`INSERT INTO %s (model_id, record_key, created_at, data)
		VALUES ($1, $2, $3, $4::jsonb)
		ON CONFLICT (model_id, record_key) DO NOTHING`, a.table)
	tag, err := a.pool.Exec(ctx, stmt, a.modelID, key, a.nowFunc().UnixNano(), string(payload))
	if err != nil {
		return nil, dataeditor.NewAdapterError(fmt.Sprintf("failed to insert record %s", key), err)
	}
	if tag.RowsAffected() == 0 {
		return nil, dataeditor.NewEntryExistsError(key)
	}
	zap.S().Debugw("Inserted record", "table", a.table, "model", a.modelID, "key", key)
	return dataeditor.CloneRecord(record), nil
}

func (a *postgresAdapter) Update(ctx context.Context, id string, data dataeditor.Record) (dataeditor.Record, error) {
	newKey := RecordKey(data, a.options.primaryKey())
	payload, err := encodeRecord(data)
	if err != nil {
		return nil, dataeditor.NewAdapterError("failed to encode record", err)
	}

	stmt := fmt.Sprintf("UPDATE %s SET record_key = $1, data = $2::jsonb WHERE model_id = $3 AND record_key = $4", a.table)
	tag, err := a.pool.Exec(ctx, stmt, newKey, string(payload), a.modelID, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, dataeditor.NewEntryExistsError(newKey).WithCause(err)
		}
		return nil, dataeditor.NewAdapterError(fmt.Sprintf("failed to update record %s", id), err)
	}
	if tag.RowsAffected() == 0 {
		return nil, dataeditor.NewEntryNotFoundError(id)
	}
	return dataeditor.CloneRecord(data), nil
}

func (a *postgresAdapter) Delete(ctx context.Context, id string) error {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE model_id = $1 AND record_key = $2", a.table)
	tag, err := a.pool.Exec(ctx, stmt, a.modelID, id)
	if err != nil {
		return dataeditor.NewAdapterError(fmt.Sprintf("failed to delete record %s", id), err)
	}
	if tag.RowsAffected() == 0 {
		return dataeditor.NewEntryNotFoundError(id)
	}
	return nil
}
