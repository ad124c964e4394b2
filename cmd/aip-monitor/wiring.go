package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dreschagin/aip-monitor/internal/application/port"
	"github.com/dreschagin/aip-monitor/internal/domain/valueobject"
	"github.com/dreschagin/aip-monitor/internal/infrastructure/awsconfig"
	redisCache "github.com/dreschagin/aip-monitor/internal/infrastructure/cache/redis"
	"github.com/dreschagin/aip-monitor/internal/infrastructure/fanout"
	"github.com/dreschagin/aip-monitor/internal/infrastructure/hostinfo"
	natsInfra "github.com/dreschagin/aip-monitor/internal/infrastructure/messaging/nats"
	wsInfra "github.com/dreschagin/aip-monitor/internal/infrastructure/notification/websocket"
	"github.com/dreschagin/aip-monitor/internal/infrastructure/observability/cloudwatch"
	obsprom "github.com/dreschagin/aip-monitor/internal/infrastructure/observability/prometheus"
	dynamodbSink "github.com/dreschagin/aip-monitor/internal/infrastructure/persistence/dynamodb"
	"github.com/dreschagin/aip-monitor/internal/infrastructure/persistence/postgres"
	"github.com/dreschagin/aip-monitor/internal/infrastructure/source"
	"github.com/dreschagin/aip-monitor/internal/infrastructure/storage/localfile"
	s3storage "github.com/dreschagin/aip-monitor/internal/infrastructure/storage/s3"
	"github.com/dreschagin/aip-monitor/pkg/config"
	"github.com/dreschagin/aip-monitor/pkg/logger"
)

func buildSource(ctx context.Context, cfg *config.Config, log *logger.Logger) port.DeviceSource {
	switch cfg.Collector.Source {
	case valueobject.SourceSDK:
		return source.NewSDKSource(ctx, source.NewSysfsLibrary(cfg.Sysfs.Root), log)
	case valueobject.SourceCLI:
		runner := source.ExecRunner{Timeout: cfg.SMI.Timeout}
		return source.NewCLISource(ctx, cfg.SMI.Path, runner, log)
	default:
		return source.NewSimulatedSource(
			source.WithSeed(cfg.Simulated.Seed),
			source.WithNoise(cfg.Simulated.Noise),
		)
	}
}

type sinkDeps struct {
	registry prometheus.Registerer
	hub      *wsInfra.Hub
	host     hostinfo.Info
	logger   *logger.Logger

	awsCfg    *aws.Config
	remoteRun string
}

// buildExporter создает экспортеры в порядке AIP_SINKS и объединяет их.
// Инициализация выполняется позже, в usecase.NewCollector.
func buildExporter(ctx context.Context, cfg *config.Config, deps sinkDeps) (port.Exporter, error) {
	sinks := make([]fanout.Sink, 0, len(cfg.Collector.Sinks))

	for _, kind := range cfg.Collector.Sinks {
		exporter, err := buildSink(ctx, kind, cfg, &deps)
		if err != nil {
			for _, built := range sinks {
				_ = built.Exporter.Close(ctx)
			}
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		sinks = append(sinks, fanout.Sink{Name: kind.String(), Exporter: exporter})
		deps.logger.Info("Sink configured", "sink", kind.String())
	}

	switch len(sinks) {
	case 0:
		return nil, fmt.Errorf("no sinks configured")
	case 1:
		return sinks[0].Exporter, nil
	default:
		return fanout.New(sinks...), nil
	}
}

func buildSink(ctx context.Context, kind valueobject.SinkKind, cfg *config.Config, deps *sinkDeps) (port.Exporter, error) {
	switch kind {
	case valueobject.SinkCSV:
		return localfile.NewCSVExporter(cfg.Output.CSVFile), nil

	case valueobject.SinkJSONL:
		return localfile.NewJSONLExporter(cfg.Output.JSONLFile), nil

	case valueobject.SinkCloudWatchLogs:
		awsCfg, err := deps.aws(ctx, cfg)
		if err != nil {
			return nil, err
		}
		run := deps.run(cfg)
		deps.logger.Info("Remote log session", "project", cfg.Remote.Project, "run", run)
		return cloudwatch.NewLogsExporter(cloudwatch.NewLogsClient(awsCfg), cloudwatch.LogsExporterConfig{
			Project:    cfg.Remote.Project,
			Run:        run,
			AutoCreate: true,
		}), nil

	case valueobject.SinkCloudWatchMetrics:
		awsCfg, err := deps.aws(ctx, cfg)
		if err != nil {
			return nil, err
		}
		dimensions := map[string]string{}
		if deps.host.Hostname != "" {
			dimensions["Host"] = deps.host.Hostname
		}
		return cloudwatch.NewMetricsExporter(cloudwatch.NewMetricsClient(awsCfg), cloudwatch.MetricsExporterConfig{
			Namespace:         cfg.CloudWatch.Namespace,
			DefaultDimensions: dimensions,
			StorageResolution: cfg.CloudWatch.StorageResolution,
		}), nil

	case valueobject.SinkPostgres:
		db, err := postgres.Open(ctx, cfg.Database.DSN(), postgres.PoolConfig{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		})
		if err != nil {
			return nil, err
		}
		deps.logger.Info("Database connected successfully", "host", cfg.Database.Host, "table", cfg.Database.Table)
		return postgres.NewMetricExporter(db, cfg.Database.Table), nil

	case valueobject.SinkDynamoDB:
		awsCfg, err := deps.aws(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return dynamodbSink.NewMetricExporter(dynamodbSink.NewClient(awsCfg, cfg.DynamoDB.Endpoint), cfg.DynamoDB.Table), nil

	case valueobject.SinkRedis:
		store := redisCache.NewClientStore(redisCache.ClientOptions{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return redisCache.NewLatestExporter(store, cfg.Redis.KeyPrefix, cfg.Redis.TTL), nil

	case valueobject.SinkNATS:
		return natsInfra.Connect(cfg.NATS.URL, cfg.NATS.Stream, cfg.NATS.SubjectPrefix, deps.logger)

	case valueobject.SinkS3:
		awsCfg, err := deps.aws(ctx, cfg)
		if err != nil {
			return nil, err
		}
		client := s3storage.NewClient(awsCfg, cfg.S3.Endpoint, cfg.S3.UsePathStyle)
		return s3storage.NewBatchWriter(client, s3storage.Config{
			Bucket:    cfg.S3.Bucket,
			KeyPrefix: cfg.S3.KeyPrefix,
			Run:       deps.run(cfg),
		}), nil

	case valueobject.SinkPrometheus:
		return obsprom.NewDeviceExporter(deps.registry), nil

	case valueobject.SinkWebSocket:
		if deps.hub == nil {
			deps.hub = wsInfra.NewHub(deps.logger)
		}
		return deps.hub, nil

	default:
		return nil, fmt.Errorf("unsupported sink kind %q", kind)
	}
}

// aws загружает конфигурацию AWS один раз для всех AWS-экспортеров
func (d *sinkDeps) aws(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	if d.awsCfg != nil {
		return *d.awsCfg, nil
	}

	awsCfg, err := awsconfig.Load(ctx, awsconfig.Options{
		Region:          cfg.AWS.Region,
		Endpoint:        cfg.AWS.Endpoint,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
	})
	if err != nil {
		return aws.Config{}, err
	}
	d.awsCfg = &awsCfg
	return awsCfg, nil
}

// run возвращает имя сессии: REMOTE_RUN либо "<hostname>-<8 hex>", одно на процесс
func (d *sinkDeps) run(cfg *config.Config) string {
	if d.remoteRun != "" {
		return d.remoteRun
	}
	if run := strings.TrimSpace(cfg.Remote.Run); run != "" {
		d.remoteRun = run
	} else {
		d.remoteRun = d.host.RunName()
	}
	return d.remoteRun
}
