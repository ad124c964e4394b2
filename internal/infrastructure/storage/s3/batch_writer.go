package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/dreschagin/aip-monitor/internal/domain/entity"
)

const contentTypeJSONL = "application/x-ndjson"

// API is the subset of the S3 client used by BatchWriter.
type API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Config struct {
	Bucket    string
	KeyPrefix string
	// Run groups the objects of one process; a random id is used when empty.
	Run string
}

// NewClient creates an S3 client for awsCfg with an optional endpoint override.
func NewClient(awsCfg aws.Config, endpoint string, usePathStyle bool) *s3.Client {
	return s3.NewFromConfig(awsCfg, func(options *s3.Options) {
		if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
			options.BaseEndpoint = &endpoint
		}
		options.UsePathStyle = usePathStyle
	})
}

// BatchWriter uploads every cycle as one JSON-lines object:
// <prefix>/<run>/<20060102T150405Z>-<seq>.jsonl
type BatchWriter struct {
	client API
	bucket string
	prefix string
	run    string
	now    func() time.Time

	mu  sync.Mutex
	seq int
}

func NewBatchWriter(client API, cfg Config) *BatchWriter {
	run := strings.Trim(strings.TrimSpace(cfg.Run), "/")
	if run == "" {
		run = uuid.NewString()
	}

	return &BatchWriter{
		client: client,
		bucket: strings.TrimSpace(cfg.Bucket),
		prefix: strings.Trim(strings.TrimSpace(cfg.KeyPrefix), "/"),
		run:    run,
		now:    time.Now,
	}
}

// Initialize checks that the bucket exists and is accessible.
func (w *BatchWriter) Initialize(ctx context.Context, schema []string) error {
	if w.bucket == "" {
		return fmt.Errorf("s3 bucket is required")
	}

	if _, err := w.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &w.bucket}); err != nil {
		return fmt.Errorf("head bucket %s failed: %w", w.bucket, err)
	}
	return nil
}

func (w *BatchWriter) Write(ctx context.Context, records []entity.Record) error {
	if len(records) == 0 {
		return nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}
	}

	w.mu.Lock()
	w.seq++
	key := w.objectKey(w.now().UTC(), w.seq)
	w.mu.Unlock()

	contentType := contentTypeJSONL
	_, err := w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &w.bucket,
		Key:         &key,
		Body:        bytes.NewReader(body.Bytes()),
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %s failed: %w", key, err)
	}

	return nil
}

func (w *BatchWriter) Close(ctx context.Context) error {
	return nil
}

func (w *BatchWriter) objectKey(at time.Time, seq int) string {
	name := fmt.Sprintf("%s-%06d.jsonl", at.Format("20060102T150405Z"), seq)
	if w.prefix == "" {
		return w.run + "/" + name
	}
	return w.prefix + "/" + w.run + "/" + name
}
