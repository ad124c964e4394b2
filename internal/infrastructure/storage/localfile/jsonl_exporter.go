package localfile

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/dreschagin/aip-monitor/internal/domain/entity"
)

// JSONLExporter writes one JSON object per record per line. Keys follow the
// record field order.
type JSONLExporter struct {
	path string

	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer
}

func NewJSONLExporter(path string) *JSONLExporter {
	return &JSONLExporter{path: path}
}

// Initialize truncates the file to empty. There is no header.
func (e *JSONLExporter) Initialize(ctx context.Context, schema []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	file, err := openTruncated(e.path)
	if err != nil {
		return err
	}

	e.file = file
	e.buf = bufio.NewWriter(file)
	return nil
}

func (e *JSONLExporter) Write(ctx context.Context, records []entity.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.buf == nil {
		return errNotInitialized
	}

	enc := json.NewEncoder(e.buf)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode record for %s: %w", e.path, err)
		}
	}

	if err := e.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", e.path, err)
	}
	return nil
}

func (e *JSONLExporter) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.file == nil {
		return nil
	}
	err := errors.Join(e.buf.Flush(), e.file.Close())
	e.file = nil
	e.buf = nil
	return err
}
