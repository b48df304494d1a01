// Package archive implements the S3 archive destination.
//
// Every record is written as one JSON object under a Hive-style key:
//
//	<prefix>/app_name=<app>/day=<YYYY-MM-DD>/<id>.json
//
// The day partition comes from the record timestamp in UTC.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/pithecene-io/relay/adapter"
	"github.com/pithecene-io/relay/config"
	"github.com/pithecene-io/relay/types"
)

// Name is the registry name of this destination.
const Name = "archive"

// ObjectPutter is the subset of the S3 client the adapter uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config configures the archive adapter.
type Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not subdomain).
	UsePathStyle bool
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New("archive bucket is required")
	}
	return nil
}

// Adapter writes records to an object store.
type Adapter struct {
	adapter.Whitelist

	bucket string
	prefix string
	client ObjectPutter
}

// New creates an adapter over an existing client.
func New(client ObjectPutter, bucket, prefix string) *Adapter {
	return &Adapter{
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		client: client,
	}
}

// NewS3 builds an S3 client from cfg using the AWS SDK default credential
// chain (env vars, shared config, IAM role).
func NewS3(ctx context.Context, cfg Config) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return New(s3.NewFromConfig(awsCfg, s3Opts...), cfg.Bucket, cfg.Prefix), nil
}

// Key returns the object key for rec.
func (a *Adapter) Key(rec *types.Record) string {
	return ObjectKey(a.prefix, rec)
}

// ObjectKey builds the partitioned key for rec under prefix.
func ObjectKey(prefix string, rec *types.Record) string {
	parts := make([]string, 0, 4)
	if p := strings.Trim(prefix, "/"); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts,
		"app_name="+partitionValue(rec.AppName),
		"day="+rec.Timestamp.UTC().Format("2006-01-02"),
		partitionValue(rec.ID)+".json",
	)
	return path.Join(parts...)
}

func partitionValue(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return strings.NewReplacer("/", "_", "=", "_").Replace(s)
}

// Capture writes rec as a JSON object stamped with the envelope version.
// Returns false without error on a whitelist miss.
func (a *Adapter) Capture(ctx context.Context, rec *types.Record) (bool, error) {
	if !a.Allows(rec.EventName) {
		return false, nil
	}

	body, err := json.Marshal(types.NewEnvelope(rec))
	if err != nil {
		return false, fmt.Errorf("archive: marshal record: %w", err)
	}

	key := a.Key(rec)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(config.DefaultArchiveContentType),
	})
	if err != nil {
		return false, wrapPutError(err, key)
	}
	return true, nil
}

// Kind registers the archive destination.
type Kind struct{}

// Available reports whether a bucket is configured.
func (Kind) Available(cfg *config.Config) bool {
	return strings.TrimSpace(cfg.Archive.Bucket) != ""
}

// FromConfig builds an S3-backed Adapter from the archive section.
func (Kind) FromConfig(cfg *config.Config, _ adapter.Deps) (adapter.Adapter, error) {
	return NewS3(context.Background(), Config{
		Bucket:       cfg.Archive.Bucket,
		Prefix:       cfg.Archive.Prefix,
		Region:       cfg.Archive.Region,
		Endpoint:     cfg.Archive.Endpoint,
		UsePathStyle: cfg.Archive.S3PathStyle,
	})
}

// Verify Adapter implements the adapter interfaces.
var (
	_ adapter.Adapter     = (*Adapter)(nil)
	_ adapter.Whitelister = (*Adapter)(nil)
	_ adapter.Kind        = Kind{}
)
