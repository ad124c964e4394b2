package valueobject

import (
	"errors"
	"fmt"
	"strings"
)

// SourceKind names a device source implementation.
type SourceKind string

const (
	SourceSimulated SourceKind = "simulated"
	SourceSDK       SourceKind = "sdk"
	SourceCLI       SourceKind = "cli"
)

// Validate reports whether the kind is known.
func (k SourceKind) Validate() error {
	switch k {
	case SourceSimulated, SourceSDK, SourceCLI:
		return nil
	default:
		return fmt.Errorf("invalid source kind %q", string(k))
	}
}

func (k SourceKind) String() string {
	return string(k)
}

// SinkKind names an exporter implementation.
type SinkKind string

const (
	SinkCSV               SinkKind = "csv"
	SinkJSONL             SinkKind = "jsonl"
	SinkCloudWatchLogs    SinkKind = "cloudwatch-logs"
	SinkCloudWatchMetrics SinkKind = "cloudwatch-metrics"
	SinkPostgres          SinkKind = "postgres"
	SinkDynamoDB          SinkKind = "dynamodb"
	SinkRedis             SinkKind = "redis"
	SinkNATS              SinkKind = "nats"
	SinkS3                SinkKind = "s3"
	SinkPrometheus        SinkKind = "prometheus"
	SinkWebSocket         SinkKind = "websocket"
)

// AllSinkKinds returns every supported sink kind.
func AllSinkKinds() []SinkKind {
	return []SinkKind{
		SinkCSV, SinkJSONL, SinkCloudWatchLogs, SinkCloudWatchMetrics,
		SinkPostgres, SinkDynamoDB, SinkRedis, SinkNATS, SinkS3,
		SinkPrometheus, SinkWebSocket,
	}
}

// Validate reports whether the kind is known.
func (k SinkKind) Validate() error {
	for _, known := range AllSinkKinds() {
		if k == known {
			return nil
		}
	}
	return fmt.Errorf("invalid sink kind %q", string(k))
}

func (k SinkKind) String() string {
	return string(k)
}

// ParseSinkKinds splits a comma-separated list into validated, de-duplicated
// sink kinds, keeping first-seen order. "wandb" is accepted as an alias for
// the remote log sink.
func ParseSinkKinds(raw string) ([]SinkKind, error) {
	seen := make(map[SinkKind]struct{})
	var kinds []SinkKind

	for _, part := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		if name == "wandb" {
			name = string(SinkCloudWatchLogs)
		}

		kind := SinkKind(name)
		if err := kind.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[kind]; dup {
			continue
		}
		seen[kind] = struct{}{}
		kinds = append(kinds, kind)
	}

	if len(kinds) == 0 {
		return nil, errors.New("at least one sink is required")
	}
	return kinds, nil
}
