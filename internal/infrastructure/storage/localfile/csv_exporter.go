package localfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/dreschagin/aip-monitor/internal/domain/entity"
)

var errNotInitialized = errors.New("exporter not initialized")

// CSVExporter writes records as comma-separated rows under a header row.
type CSVExporter struct {
	path string

	mu      sync.Mutex
	file    *os.File
	writer  *csv.Writer
	columns []int
}

func NewCSVExporter(path string) *CSVExporter {
	return &CSVExporter{path: path}
}

// Initialize truncates the file and writes the header. Rows follow the
// column order of schema, every name of which must be a record field.
func (e *CSVExporter) Initialize(ctx context.Context, schema []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	columns, err := schemaColumns(schema)
	if err != nil {
		return fmt.Errorf("invalid schema for %s: %w", e.path, err)
	}

	file, err := openTruncated(e.path)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(schema); err != nil {
		file.Close()
		return fmt.Errorf("failed to write header to %s: %w", e.path, err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		file.Close()
		return fmt.Errorf("failed to write header to %s: %w", e.path, err)
	}

	e.file = file
	e.writer = writer
	e.columns = columns
	return nil
}

// Write appends one row per record and flushes.
func (e *CSVExporter) Write(ctx context.Context, records []entity.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.writer == nil {
		return errNotInitialized
	}

	row := make([]string, len(e.columns))
	for _, r := range records {
		values := r.Values()
		for i, column := range e.columns {
			row[i] = values[column]
		}
		if err := e.writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row to %s: %w", e.path, err)
		}
	}

	e.writer.Flush()
	if err := e.writer.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", e.path, err)
	}
	return nil
}

func (e *CSVExporter) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.file == nil {
		return nil
	}
	e.writer.Flush()
	err := errors.Join(e.writer.Error(), e.file.Close())
	e.file = nil
	e.writer = nil
	return err
}

// schemaColumns maps each schema name to its position in entity.RecordFields.
func schemaColumns(schema []string) ([]int, error) {
	if len(schema) == 0 {
		return nil, errors.New("empty schema")
	}

	positions := make(map[string]int, len(entity.RecordFields))
	for i, field := range entity.RecordFields {
		positions[field] = i
	}

	columns := make([]int, len(schema))
	for i, name := range schema {
		pos, ok := positions[name]
		if !ok {
			return nil, fmt.Errorf("unknown field %q", name)
		}
		columns[i] = pos
	}
	return columns, nil
}

func openTruncated(path string) (*os.File, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return file, nil
}
