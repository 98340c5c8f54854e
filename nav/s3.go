package nav

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used by S3Fetcher.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config configures an S3 mirror of the BRDC archive.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is prepended to the <yyyy>/<doy>/<name> key.
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom endpoint for S3-compatible providers.
	Endpoint string
	// UsePathStyle forces path-style addressing.
	UsePathStyle bool
}

// Validate checks that required configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("nav: S3 bucket is required")
	}
	return nil
}

// ParseS3Path parses "bucket/prefix" or "bucket".
func ParseS3Path(p string) (bucket, prefix string) {
	bucket, prefix, _ = strings.Cut(p, "/")
	return bucket, prefix
}

// S3Fetcher downloads BRDC files from an S3 bucket mirroring the archive layout.
type S3Fetcher struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Fetcher wraps an existing S3 client.
func NewS3Fetcher(client S3API, bucket, prefix string) *S3Fetcher {
	return &S3Fetcher{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// NewS3FetcherFromConfig builds an S3 client from the AWS default credential
// chain (env vars, shared config, IAM role).
func NewS3FetcherFromConfig(ctx context.Context, cfg S3Config) (*S3Fetcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
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

	return NewS3Fetcher(s3.NewFromConfig(awsConfig, s3Opts...), cfg.Bucket, cfg.Prefix), nil
}

// Key returns the object key of the BRDC file for date.
func (f *S3Fetcher) Key(date time.Time) string {
	if f.prefix == "" {
		return ArchivePath(date)
	}
	return path.Join(f.prefix, ArchivePath(date))
}

// Fetch implements Fetcher.
func (f *S3Fetcher) Fetch(ctx context.Context, date time.Time, dir string) (*File, error) {
	key := f.Key(date)
	source := "s3://" + f.bucket + "/" + key
	return download(ctx, date, dir, source, func(ctx context.Context) (io.ReadCloser, error) {
		out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(f.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, fmt.Errorf("nav: get %s: %w", source, err)
		}
		return out.Body, nil
	})
}

var _ Fetcher = (*S3Fetcher)(nil)
