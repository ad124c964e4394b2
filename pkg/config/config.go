package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/dreschagin/aip-monitor/internal/domain/valueobject"
)

type Config struct {
	Collector  CollectorConfig
	Output     OutputConfig
	Log        LogConfig
	Server     ServerConfig
	Simulated  SimulatedConfig
	SMI        SMIConfig
	Sysfs      SysfsConfig
	Remote     RemoteConfig
	AWS        AWSConfig
	CloudWatch CloudWatchConfig
	Database   DatabaseConfig
	DynamoDB   DynamoDBConfig
	Redis      RedisConfig
	NATS       NATSConfig
	S3         S3Config
}

type CollectorConfig struct {
	Source   valueobject.SourceKind
	Sinks    []valueobject.SinkKind
	Interval time.Duration
	Echo     bool
	// Cycles bounds the number of polling cycles; 0 runs until interrupted.
	Cycles int
}

type OutputConfig struct {
	CSVFile   string
	JSONLFile string
}

type LogConfig struct {
	Level string
}

type ServerConfig struct {
	// Addr is empty when the HTTP surface is disabled.
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// AllowedOrigins lists the origins accepted by /ws; "*" accepts any.
	AllowedOrigins []string
}

type SimulatedConfig struct {
	Seed  uint64
	Noise float64
}

type SMIConfig struct {
	Path    string
	Timeout time.Duration
}

type SysfsConfig struct {
	Root string
}

type RemoteConfig struct {
	Project string
	// Run is empty when the run name should be derived from the host.
	Run string
}

type AWSConfig struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

type CloudWatchConfig struct {
	Namespace         string
	StorageResolution int32
}

type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	Table           string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type DynamoDBConfig struct {
	Table    string
	Endpoint string
}

type RedisConfig struct {
	Host      string
	Port      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

type NATSConfig struct {
	URL           string
	Stream        string
	SubjectPrefix string
}

type S3Config struct {
	Bucket       string
	Endpoint     string
	UsePathStyle bool
	KeyPrefix    string
}

// Load reads the environment (and an optional .env file), then applies
// command-line overrides from args. pflag.ErrHelp is returned unwrapped when
// --help is requested.
func Load(args []string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	flagSet := pflag.NewFlagSet("aip-monitor", pflag.ContinueOnError)
	source := flagSet.String("source", getEnv("AIP_SOURCE", string(valueobject.SourceSimulated)), "device source: simulated, sdk or cli")
	output := flagSet.String("output", getEnv("AIP_SINKS", string(valueobject.SinkCSV)), "comma-separated sinks (csv, jsonl, cloudwatch-logs, ...)")
	filename := flagSet.String("filename", getEnv("AIP_OUTPUT_FILE", "aip_metrics.csv"), "output file for the csv sink")
	interval := flagSet.Duration("interval", getEnvDuration("AIP_POLL_INTERVAL", time.Second), "polling period")
	echo := flagSet.Bool("echo", getEnvBool("AIP_ECHO", false), "print every batch to stdout as JSON lines")
	cycles := flagSet.Int("cycles", getEnvInt("AIP_CYCLES", 0), "stop after this many cycles (0 = run until interrupted)")
	logLevel := flagSet.String("log-level", getEnv("LOG_LEVEL", "info"), "debug, info, warn or error")
	httpAddr := flagSet.String("http-addr", getEnv("HTTP_ADDR", ""), "listen address for /healthz, /metrics and /ws (empty disables)")

	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}

	sourceKind := valueobject.SourceKind(strings.ToLower(strings.TrimSpace(*source)))
	if err := sourceKind.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AIP_SOURCE: %w", err)
	}

	sinks, err := valueobject.ParseSinkKinds(*output)
	if err != nil {
		return nil, fmt.Errorf("invalid AIP_SINKS: %w", err)
	}

	if *interval <= 0 {
		return nil, fmt.Errorf("invalid AIP_POLL_INTERVAL: must be positive, got %s", *interval)
	}
	if *cycles < 0 {
		return nil, fmt.Errorf("invalid AIP_CYCLES: must not be negative, got %d", *cycles)
	}

	smiTimeout, err := parseDuration(getEnv("AIP_SMI_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid AIP_SMI_TIMEOUT: %w", err)
	}

	seed, err := strconv.ParseUint(getEnv("SIM_SEED", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid SIM_SEED: %w", err)
	}

	resolution := getEnvInt("CLOUDWATCH_STORAGE_RESOLUTION", 60)
	if resolution != 1 && resolution != 60 {
		return nil, fmt.Errorf("invalid CLOUDWATCH_STORAGE_RESOLUTION: must be 1 or 60, got %d", resolution)
	}

	cfg := &Config{
		Collector: CollectorConfig{
			Source:   sourceKind,
			Sinks:    sinks,
			Interval: *interval,
			Echo:     *echo,
			Cycles:   *cycles,
		},
		Output: OutputConfig{
			CSVFile:   *filename,
			JSONLFile: getEnv("AIP_JSONL_FILE", jsonlPath(*filename, sinks)),
		},
		Log: LogConfig{
			Level: strings.ToLower(*logLevel),
		},
		Server: ServerConfig{
			Addr:            *httpAddr,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  splitList(getEnv("WS_ALLOWED_ORIGINS", "")),
		},
		Simulated: SimulatedConfig{
			Seed:  seed,
			Noise: getEnvFloat("SIM_NOISE", 0.5),
		},
		SMI: SMIConfig{
			Path:    getEnv("AIP_SMI_PATH", "hl-smi"),
			Timeout: smiTimeout,
		},
		Sysfs: SysfsConfig{
			Root: getEnv("AIP_SYSFS_ROOT", "/sys/class/accel"),
		},
		Remote: RemoteConfig{
			Project: getEnv("REMOTE_PROJECT", "aip_monitor"),
			Run:     getEnv("REMOTE_RUN", ""),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			Endpoint:        getEnv("AWS_ENDPOINT", ""),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		},
		CloudWatch: CloudWatchConfig{
			Namespace:         getEnv("CLOUDWATCH_NAMESPACE", "AIPMonitor/Devices"),
			StorageResolution: int32(resolution),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Database:        getEnv("DB_NAME", "monitoring"),
			Table:           getEnv("DB_TABLE", "aip_metrics"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 5),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 10 * time.Minute,
		},
		DynamoDB: DynamoDBConfig{
			Table:    getEnv("DYNAMO_TABLE", "aip_metrics"),
			Endpoint: getEnv("DYNAMO_ENDPOINT", ""),
		},
		Redis: RedisConfig{
			Host:      getEnv("REDIS_HOST", "localhost"),
			Port:      getEnv("REDIS_PORT", "6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvInt("REDIS_DB", 0),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "aip"),
			TTL:       getEnvDuration("REDIS_TTL", time.Minute),
		},
		NATS: NATSConfig{
			URL:           getEnv("NATS_URL", "nats://localhost:4222"),
			Stream:        getEnv("NATS_STREAM", "AIP_METRICS"),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "aip.metrics"),
		},
		S3: S3Config{
			Bucket:       getEnv("S3_BUCKET", ""),
			Endpoint:     getEnv("S3_ENDPOINT", ""),
			UsePathStyle: getEnvBool("S3_USE_PATH_STYLE", true),
			KeyPrefix:    getEnv("S3_KEY_PREFIX", "aip-metrics"),
		},
	}

	if cfg.HasSink(valueobject.SinkCSV) && cfg.HasSink(valueobject.SinkJSONL) &&
		filepath.Clean(cfg.Output.CSVFile) == filepath.Clean(cfg.Output.JSONLFile) {
		return nil, fmt.Errorf("csv and jsonl sinks cannot share %s: pick another --filename or set AIP_JSONL_FILE", cfg.Output.CSVFile)
	}

	if cfg.HasSink(valueobject.SinkS3) && cfg.S3.Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required when the s3 sink is enabled")
	}

	return cfg, nil
}

// HasSink reports whether kind is among the configured sinks.
func (c *Config) HasSink(kind valueobject.SinkKind) bool {
	for _, sink := range c.Collector.Sinks {
		if sink == kind {
			return true
		}
	}
	return false
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Database)
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// jsonlPath keeps the csv and jsonl sinks from sharing a file when both are
// enabled.
func jsonlPath(filename string, sinks []valueobject.SinkKind) string {
	csvEnabled := false
	for _, sink := range sinks {
		if sink == valueobject.SinkCSV {
			csvEnabled = true
		}
	}
	if !csvEnabled {
		return filename
	}
	return strings.TrimSuffix(filename, filepath.Ext(filename)) + ".jsonl"
}

func splitList(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func parseDuration(s string) (time.Duration, error) {
	return time.ParseDuration(s)
}
