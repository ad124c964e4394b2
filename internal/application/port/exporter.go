package port

import (
	"context"

	"github.com/dreschagin/aip-monitor/internal/domain/entity"
)

// Exporter persists batches of canonical records to one sink.
// Each exporter owns its output resource for the whole run.
type Exporter interface {
	// Initialize creates or truncates the target and declares the schema.
	// It is called exactly once, before any Write.
	Initialize(ctx context.Context, schema []string) error

	// Write appends one batch. An empty batch is valid.
	Write(ctx context.Context, records []entity.Record) error

	// Close flushes pending output and releases the resource.
	Close(ctx context.Context) error
}
