package internal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/lychee-technology/dataeditor"
)

// SQLDialect captures the differences between the database/sql backends.
type SQLDialect struct {
	Driver  string
	quoteFn func(string) string
}

var (
	DialectSQLite = SQLDialect{Driver: "sqlite", quoteFn: pq.QuoteIdentifier}
	DialectDuckDB = SQLDialect{Driver: "duckdb", quoteFn: pq.QuoteIdentifier}
	DialectMySQL  = SQLDialect{Driver: "mysql", quoteFn: quoteMySQLIdentifier}
)

// DialectFor returns the dialect registered for a driver name.
func DialectFor(driver string) (SQLDialect, error) {
	switch driver {
	case "sqlite":
		return DialectSQLite, nil
	case "duckdb":
		return DialectDuckDB, nil
	case "mysql":
		return DialectMySQL, nil
	default:
		return SQLDialect{}, fmt.Errorf("unsupported sql driver %q", driver)
	}
}

func quoteMySQLIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d SQLDialect) quote(name string) string {
	return d.quoteFn(name)
}

// EnsureSQLTable creates the shared records table when it does not exist.
func EnsureSQLTable(ctx context.Context, db *sql.DB, dialect SQLDialect, table string) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	model_id VARCHAR(255) NOT NULL,
	record_key VARCHAR(255) NOT NULL,
	created_at BIGINT NOT NULL,
	data TEXT NOT NULL,
	PRIMARY KEY (model_id, record_key)
)`, dialect.quote(table))
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}
	return nil
}

type sqlAdapter struct {
	db      *sql.DB
	table   string
	modelID string
	options AdapterOptions

	mu       sync.Mutex
	lastSeen int64
}

// NewSQLAdapter stores the records of modelID as JSON rows of a shared table.
func NewSQLAdapter(db *sql.DB, dialect SQLDialect, table, modelID string, options AdapterOptions) dataeditor.Adapter {
	return &sqlAdapter{
		db:      db,
		table:   dialect.quote(table),
		modelID: modelID,
		options: options,
	}
}

// nextPosition returns a strictly increasing insertion timestamp.
func (a *sqlAdapter) nextPosition() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := time.Now().UnixNano()
	if now <= a.lastSeen {
		now = a.lastSeen + 1
	}
	a.lastSeen = now
	return now
}

func (a *sqlAdapter) List(ctx context.Context) ([]dataeditor.Record, error) {
	query := fmt.Sprintf("SELECT data FROM %s WHERE model_id = ? ORDER BY created_at, record_key", a.table)
	rows, err := a.db.QueryContext(ctx, query, a.modelID)
	if err != nil {
		return nil, dataeditor.NewAdapterError("failed to list records", err)
	}
	defer rows.Close()

	records := make([]dataeditor.Record, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, dataeditor.NewAdapterError("failed to scan record", err)
		}
		record, err := decodeRecord([]byte(data))
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

func (a *sqlAdapter) Read(ctx context.Context, id string) (dataeditor.Record, error) {
	query := fmt.Sprintf("SELECT data FROM %s WHERE model_id = ? AND record_key = ?", a.table)
	var data string
	err := a.db.QueryRowContext(ctx, query, a.modelID, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, dataeditor.NewAdapterError(fmt.Sprintf("failed to read record %s", id), err)
	}
	record, err := decodeRecord([]byte(data))
	if err != nil {
		return nil, dataeditor.NewAdapterError("failed to decode record", err)
	}
	return record, nil
}

func (a *sqlAdapter) exists(ctx context.Context, id string) (bool, error) {
	record, err := a.Read(ctx, id)
	return record != nil, err
}

func (a *sqlAdapter) Create(ctx context.Context, data dataeditor.Record) (dataeditor.Record, error) {
	record := a.options.assignKey(data)
	key := RecordKey(record, a.options.primaryKey())

	found, err := a.exists(ctx, key)
	if err != nil {
		return nil, err
	}
	if found {
		return nil, dataeditor.NewEntryExistsError(key)
	}

	payload, err := encodeRecord(record)
	if err != nil {
		return nil, dataeditor.NewAdapterError("failed to encode record", err)
	}
	stmt := fmt.Sprintf("INSERT INTO %s (model_id, record_key, created_at, data) VALUES (?, ?, ?, ?)", a.table)
	if _, err := a.db.ExecContext(ctx, stmt, a.modelID, key, a.nextPosition(), string(payload)); err != nil {
		return nil, dataeditor.NewAdapterError(fmt.Sprintf("failed to insert record %s", key), err)
	}
	return dataeditor.CloneRecord(record), nil
}

func (a *sqlAdapter) Update(ctx context.Context, id string, data dataeditor.Record) (dataeditor.Record, error) {
	newKey := RecordKey(data, a.options.primaryKey())
	if newKey != id {
		found, err := a.exists(ctx, newKey)
		if err != nil {
			return nil, err
		}
		if found {
			return nil, dataeditor.NewEntryExistsError(newKey)
		}
	}

	payload, err := encodeRecord(data)
	if err != nil {
		return nil, dataeditor.NewAdapterError("failed to encode record", err)
	}
	stmt := fmt.Sprintf("UPDATE %s SET record_key = ?, data = ? WHERE model_id = ? AND record_key = ?", a.table)
	result, err := a.db.ExecContext(ctx, stmt, newKey, string(payload), a.modelID, id)
	if err != nil {
		return nil, dataeditor.NewAdapterError(fmt.Sprintf("failed to update record %s", id), err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, dataeditor.NewAdapterError(fmt.Sprintf("failed to update record %s", id), err)
	}
	if affected == 0 {
		// MySQL reports zero affected rows when the data did not change.
		found, err := a.exists(ctx, newKey)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, dataeditor.NewEntryNotFoundError(id)
		}
	}
	return dataeditor.CloneRecord(data), nil
}

func (a *sqlAdapter) Delete(ctx context.Context, id string) error {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE model_id = ? AND record_key = ?", a.table)
	result, err := a.db.ExecContext(ctx, stmt, a.modelID, id)
	if err != nil {
		return dataeditor.NewAdapterError(fmt.Sprintf("failed to delete record %s", id), err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return dataeditor.NewAdapterError(fmt.Sprintf("failed to delete record %s", id), err)
	}
	if affected == 0 {
		return dataeditor.NewEntryNotFoundError(id)
	}
	return nil
}
