package cloudwatch

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/dreschagin/aip-monitor/internal/domain/entity"
	"github.com/dreschagin/aip-monitor/internal/domain/valueobject"
)

const (
	// CloudWatch limits
	maxMetricsPerRequest = 1000
)

// MetricsAPI is the subset of the CloudWatch client used by MetricsExporter.
type MetricsAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// MetricsExporterConfig holds configuration for CloudWatch metrics publishing.
type MetricsExporterConfig struct {
	Namespace         string            // CloudWatch namespace (e.g., "AIPMonitor/Devices")
	DefaultDimensions map[string]string // Default dimensions added to all metrics
	StorageResolution int32             // Storage resolution in seconds (1 or 60)
}

// MetricsExporter publishes every numeric record field as a CloudWatch
// metric, dimensioned by device. Sentinel values are not published.
type MetricsExporter struct {
	client            MetricsAPI
	namespace         string
	defaultDimensions []types.Dimension
	storageResolution int32
	now               func() time.Time
}

func NewMetricsExporter(client MetricsAPI, cfg MetricsExporterConfig) *MetricsExporter {
	if cfg.StorageResolution != 1 && cfg.StorageResolution != 60 {
		cfg.StorageResolution = 60 // Default to standard resolution
	}

	keys := make([]string, 0, len(cfg.DefaultDimensions))
	for key := range cfg.DefaultDimensions {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	dimensions := make([]types.Dimension, 0, len(keys))
	for _, key := range keys {
		dimensions = append(dimensions, types.Dimension{
			Name:  aws.String(key),
			Value: aws.String(cfg.DefaultDimensions[key]),
		})
	}

	return &MetricsExporter{
		client:            client,
		namespace:         cfg.Namespace,
		defaultDimensions: dimensions,
		storageResolution: cfg.StorageResolution,
		now:               time.Now,
	}
}

// NewMetricsClient creates a CloudWatch client from an AWS config.
func NewMetricsClient(awsCfg aws.Config) *cloudwatch.Client {
	return cloudwatch.NewFromConfig(awsCfg)
}

func (e *MetricsExporter) Initialize(ctx context.Context, schema []string) error {
	if e.namespace == "" {
		return fmt.Errorf("namespace is required")
	}
	return nil
}

// Write publishes the batch in chunks of at most 1000 datums.
func (e *MetricsExporter) Write(ctx context.Context, records []entity.Record) error {
	data := make([]types.MetricDatum, 0, len(records)*7)
	for _, r := range records {
		data = append(data, e.convertToData(r)...)
	}

	for i := 0; i < len(data); i += maxMetricsPerRequest {
		end := i + maxMetricsPerRequest
		if end > len(data) {
			end = len(data)
		}

		_, err := e.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(e.namespace),
			MetricData: data[i:end],
		})
		if err != nil {
			return fmt.Errorf("failed to put metric data: %w", err)
		}
	}

	return nil
}

func (e *MetricsExporter) Close(ctx context.Context) error {
	return nil
}

// convertToData converts a record to one datum per available numeric field.
func (e *MetricsExporter) convertToData(r entity.Record) []types.MetricDatum {
	timestamp, err := time.Parse(valueobject.TimestampLayout, r.Timestamp)
	if err != nil {
		timestamp = e.now()
	}

	dimensions := make([]types.Dimension, 0, len(e.defaultDimensions)+3)
	dimensions = append(dimensions, e.defaultDimensions...)
	dimensions = append(dimensions,
		types.Dimension{Name: aws.String("UUID"), Value: aws.String(r.UUID)},
		types.Dimension{Name: aws.String("Bus"), Value: aws.String(r.Bus)},
		types.Dimension{Name: aws.String("Index"), Value: aws.String(strconv.Itoa(r.Index))},
	)

	data := make([]types.MetricDatum, 0, 7)
	for _, p := range r.Numeric() {
		value := p.Value.(float64)
		if value == valueobject.Sentinel {
			continue
		}

		datum := types.MetricDatum{
			MetricName: aws.String(p.Field),
			Value:      aws.Float64(value),
			Unit:       mapUnit(p.Field),
			Timestamp:  aws.Time(timestamp),
			Dimensions: dimensions,
		}
		if e.storageResolution > 0 {
			datum.StorageResolution = aws.Int32(e.storageResolution)
		}
		data = append(data, datum)
	}

	return data
}

// mapUnit maps record fields to CloudWatch StandardUnit.
func mapUnit(field string) types.StandardUnit {
	switch field {
	case entity.FieldUtilAIP, entity.FieldUtilMem:
		return types.StandardUnitPercent
	case entity.FieldMemTotal, entity.FieldMemFree, entity.FieldMemUsed:
		return types.StandardUnitMegabytes
	default:
		// temperature (°C) and power (W) have no standard unit
		return types.StandardUnitNone
	}
}
