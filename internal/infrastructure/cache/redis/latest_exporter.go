package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dreschagin/aip-monitor/internal/domain/entity"
)

// LatestExporter keeps the most recent record of every device in a Redis
// hash at <prefix>:device:<uuid>. Older cycles are overwritten.
type LatestExporter struct {
	store  Store
	prefix string
	ttl    time.Duration
}

func NewLatestExporter(store Store, keyPrefix string, ttl time.Duration) *LatestExporter {
	keyPrefix = strings.TrimSuffix(strings.TrimSpace(keyPrefix), ":")
	if keyPrefix == "" {
		keyPrefix = "aip"
	}
	return &LatestExporter{store: store, prefix: keyPrefix, ttl: ttl}
}

// Initialize checks the connection and clears hashes left by a previous run.
func (e *LatestExporter) Initialize(ctx context.Context, schema []string) error {
	if err := e.store.Ping(ctx); err != nil {
		return err
	}
	return e.store.DeletePattern(ctx, e.prefix+":device:*")
}

func (e *LatestExporter) Write(ctx context.Context, records []entity.Record) error {
	if len(records) == 0 {
		return nil
	}

	hashes := make(map[string]map[string]any, len(records))
	for _, r := range records {
		hashes[e.key(r)] = toHash(r)
	}

	return e.store.SetHashes(ctx, hashes, e.ttl)
}

func (e *LatestExporter) Close(ctx context.Context) error {
	return e.store.Close()
}

func (e *LatestExporter) key(r entity.Record) string {
	return fmt.Sprintf("%s:device:%s", e.prefix, r.DeviceID())
}

func toHash(r entity.Record) map[string]any {
	fields := make(map[string]any, len(entity.RecordFields))
	for i, v := range r.Values() {
		fields[entity.RecordFields[i]] = v
	}
	return fields
}
