package cloudwatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"

	"github.com/dreschagin/aip-monitor/internal/domain/entity"
)

const (
	// CloudWatch Logs limits
	maxLogEventsPerRequest = 10000
	maxLogEventSize        = 256000 // 256 KB
)

// LogsAPI is the subset of the CloudWatch Logs client used by LogsExporter.
type LogsAPI interface {
	CreateLogGroup(ctx context.Context, params *cloudwatchlogs.CreateLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error)
	CreateLogStream(ctx context.Context, params *cloudwatchlogs.CreateLogStreamInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error)
	PutLogEvents(ctx context.Context, params *cloudwatchlogs.PutLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
}

// LogsExporterConfig holds configuration for the remote log sink.
type LogsExporterConfig struct {
	Project    string // Log group name
	Run        string // Log stream name
	AutoCreate bool   // Create the log group/stream if missing
}

// LogsExporter is the remote-log sink. One run is one log stream inside the
// project's log group; every record becomes one event holding the device's
// uuid-namespaced point set.
type LogsExporter struct {
	client     LogsAPI
	project    string
	run        string
	autoCreate bool

	mu     sync.Mutex
	opened bool
	now    func() time.Time
}

func NewLogsExporter(client LogsAPI, cfg LogsExporterConfig) *LogsExporter {
	return &LogsExporter{
		client:     client,
		project:    cfg.Project,
		run:        cfg.Run,
		autoCreate: cfg.AutoCreate,
		now:        time.Now,
	}
}

// NewLogsClient creates a CloudWatch Logs client from an AWS config.
func NewLogsClient(awsCfg aws.Config) *cloudwatchlogs.Client {
	return cloudwatchlogs.NewFromConfig(awsCfg)
}

// Initialize opens the session: the log group and stream are created when
// missing. The schema is implied by the point keys.
func (e *LogsExporter) Initialize(ctx context.Context, schema []string) error {
	if e.project == "" {
		return fmt.Errorf("project name is required")
	}
	if e.run == "" {
		return fmt.Errorf("run name is required")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.autoCreate {
		if err := e.ensureLogGroupAndStream(ctx); err != nil {
			return fmt.Errorf("failed to open session %s/%s: %w", e.project, e.run, err)
		}
	}

	e.opened = true
	return nil
}

// Write submits one event per record in a single PutLogEvents call.
func (e *LogsExporter) Write(ctx context.Context, records []entity.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.opened {
		return fmt.Errorf("session %s/%s is not open", e.project, e.run)
	}
	if len(records) == 0 {
		return nil
	}

	timestamp := e.now().UnixMilli()
	events := make([]types.InputLogEvent, 0, len(records))
	for _, r := range records {
		event, err := convertToLogEvent(r, timestamp)
		if err != nil {
			return err
		}
		events = append(events, event)
	}

	for i := 0; i < len(events); i += maxLogEventsPerRequest {
		end := i + maxLogEventsPerRequest
		if end > len(events) {
			end = len(events)
		}

		_, err := e.client.PutLogEvents(ctx, &cloudwatchlogs.PutLogEventsInput{
			LogGroupName:  aws.String(e.project),
			LogStreamName: aws.String(e.run),
			LogEvents:     events[i:end],
		})
		if err != nil {
			return fmt.Errorf("failed to put log events: %w", err)
		}
	}

	return nil
}

// Close ends the session. Events are submitted synchronously, so there is
// nothing to flush.
func (e *LogsExporter) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.opened = false
	return nil
}

// convertToLogEvent encodes a record's point set as the event message.
func convertToLogEvent(r entity.Record, timestamp int64) (types.InputLogEvent, error) {
	body, err := json.Marshal(r.PointSet())
	if err != nil {
		return types.InputLogEvent{}, fmt.Errorf("failed to marshal point set for %s: %w", r.UUID, err)
	}

	message := string(body)
	if len(message) > maxLogEventSize {
		return types.InputLogEvent{}, fmt.Errorf("point set for %s exceeds %d bytes", r.UUID, maxLogEventSize)
	}

	return types.InputLogEvent{
		Message:   aws.String(message),
		Timestamp: aws.Int64(timestamp),
	}, nil
}

// ensureLogGroupAndStream creates the log group and stream if they don't exist.
func (e *LogsExporter) ensureLogGroupAndStream(ctx context.Context) error {
	var alreadyExists *types.ResourceAlreadyExistsException

	_, err := e.client.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(e.project),
	})
	if err != nil && !errors.As(err, &alreadyExists) {
		return fmt.Errorf("failed to create log group: %w", err)
	}

	_, err = e.client.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(e.project),
		LogStreamName: aws.String(e.run),
	})
	if err != nil && !errors.As(err, &alreadyExists) {
		return fmt.Errorf("failed to create log stream: %w", err)
	}

	return nil
}
