package dynamodb

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dreschagin/aip-monitor/internal/domain/entity"
	"github.com/dreschagin/aip-monitor/internal/domain/valueobject"
)

const (
	maxBatchWriteSize = 25
	maxBatchRetries   = 5

	attrPK = "PK"
	attrSK = "SK"
)

// API is the subset of the DynamoDB client used by MetricExporter.
type API interface {
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// NewClient creates a DynamoDB client, optionally against a local endpoint.
func NewClient(awsCfg aws.Config, endpoint string) *dynamodb.Client {
	return dynamodb.NewFromConfig(awsCfg, func(options *dynamodb.Options) {
		if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
			options.BaseEndpoint = &endpoint
		}
	})
}

// MetricExporter stores one item per record. Items are keyed by device
// (PK = DEVICE#<uuid>) and ordered by capture time (SK).
type MetricExporter struct {
	client    API
	tableName string
	now       func() time.Time

	mu  sync.Mutex
	seq uint64
}

func NewMetricExporter(client API, tableName string) *MetricExporter {
	return &MetricExporter{
		client:    client,
		tableName: strings.TrimSpace(tableName),
		now:       time.Now,
	}
}

// Initialize checks that the table exists.
func (e *MetricExporter) Initialize(ctx context.Context, schema []string) error {
	if e.tableName == "" {
		return fmt.Errorf("dynamodb table name is required")
	}

	if _, err := e.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(e.tableName),
	}); err != nil {
		return fmt.Errorf("dynamodb describe table %s failed: %w", e.tableName, err)
	}
	return nil
}

func (e *MetricExporter) Write(ctx context.Context, records []entity.Record) error {
	if len(records) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for start := 0; start < len(records); start += maxBatchWriteSize {
		end := start + maxBatchWriteSize
		if end > len(records) {
			end = len(records)
		}

		requests := make([]types.WriteRequest, 0, end-start)
		for _, record := range records[start:end] {
			e.seq++
			requests = append(requests, types.WriteRequest{
				PutRequest: &types.PutRequest{Item: e.toItem(record, e.seq)},
			})
		}

		if err := e.writeBatchWithRetry(ctx, requests); err != nil {
			return err
		}
	}

	return nil
}

func (e *MetricExporter) Close(ctx context.Context) error {
	return nil
}

// writeBatchWithRetry resubmits unprocessed items returned by DynamoDB
// throttling. Failed calls are not retried.
func (e *MetricExporter) writeBatchWithRetry(ctx context.Context, requests []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{
		e.tableName: requests,
	}

	for attempt := 0; attempt < maxBatchRetries; attempt++ {
		output, err := e.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: pending,
		})
		if err != nil {
			return fmt.Errorf("dynamodb batch write failed: %w", err)
		}

		if len(output.UnprocessedItems) == 0 {
			return nil
		}

		pending = output.UnprocessedItems
		select {
		case <-time.After(time.Duration(attempt+1) * 100 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("dynamodb batch write has unprocessed items after retries")
}

func (e *MetricExporter) toItem(record entity.Record, seq uint64) map[string]types.AttributeValue {
	capturedAt, err := time.Parse(valueobject.TimestampLayout, record.Timestamp)
	if err != nil {
		capturedAt = e.now().UTC()
	}

	item := map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: buildPK(record.UUID)},
		attrSK: &types.AttributeValueMemberS{Value: buildSK(capturedAt.UnixMilli(), seq)},
	}

	for _, p := range record.Points() {
		switch v := p.Value.(type) {
		case string:
			item[p.Field] = &types.AttributeValueMemberS{Value: v}
		case float64:
			item[p.Field] = &types.AttributeValueMemberN{Value: strconv.FormatFloat(v, 'f', -1, 64)}
		case int:
			item[p.Field] = &types.AttributeValueMemberN{Value: strconv.Itoa(v)}
		}
	}

	return item
}

func buildPK(uuid string) string {
	return "DEVICE#" + uuid
}

func buildSK(capturedAtMS int64, seq uint64) string {
	return fmt.Sprintf("TS#%013d#%08d", capturedAtMS, seq)
}
