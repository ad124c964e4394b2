package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/dreschagin/aip-monitor/internal/domain/entity"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// PoolConfig - настройки пула соединений
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Open подключается к PostgreSQL и проверяет соединение
func Open(ctx context.Context, dsn string, pool PoolConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// MetricExporter сохраняет записи в таблицу PostgreSQL, по строке на запись.
// Владеет соединением: Close закрывает *sql.DB.
type MetricExporter struct {
	db     *sql.DB
	table  string
	schema []string
	insert string
}

// NewMetricExporter создает экспортер для таблицы table
func NewMetricExporter(db *sql.DB, table string) *MetricExporter {
	return &MetricExporter{
		db:    db,
		table: table,
	}
}

// Initialize создает таблицу, если ее нет. Колонки следуют схеме записи.
func (e *MetricExporter) Initialize(ctx context.Context, schema []string) error {
	if !tableNamePattern.MatchString(e.table) {
		return fmt.Errorf("invalid table name %q", e.table)
	}

	columns := make([]string, 0, len(schema)+2)
	columns = append(columns, "id BIGSERIAL PRIMARY KEY")
	for _, field := range schema {
		columnType, ok := columnTypes[field]
		if !ok {
			return fmt.Errorf("unknown field %q", field)
		}
		columns = append(columns, fmt.Sprintf("%q %s", field, columnType))
	}
	columns = append(columns, "created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()")

	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %q (%s)", e.table, strings.Join(columns, ", "))
	if _, err := e.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create table %s: %w", e.table, err)
	}

	e.schema = schema
	e.insert = buildInsert(e.table, schema)
	return nil
}

func buildInsert(table string, schema []string) string {
	quoted := make([]string, len(schema))
	placeholders := make([]string, len(schema))
	for i, field := range schema {
		quoted[i] = fmt.Sprintf("%q", field)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %q (%s) VALUES (%s)",
		table, strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
}

// Write сохраняет пачку одной транзакцией
func (e *MetricExporter) Write(ctx context.Context, records []entity.Record) error {
	if e.insert == "" {
		return fmt.Errorf("table %s is not initialized", e.table)
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, e.insert)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, record := range records {
		row, err := ToRow(record, e.schema)
		if err != nil {
			return fmt.Errorf("failed to convert record to row: %w", err)
		}

		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Close закрывает соединение с БД
func (e *MetricExporter) Close(ctx context.Context) error {
	return e.db.Close()
}
