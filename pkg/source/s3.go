package source

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds the bucket the pilot units sync their exports to.
type S3Config struct {
	// Region is the AWS region (e.g., "eu-west-1").
	Region string

	// Bucket is the export bucket name.
	Bucket string

	// Prefix scopes all listing and reads, e.g. "unit-07/exports/".
	Prefix string

	// Endpoint overrides the default S3 endpoint (for S3-compatible services).
	Endpoint string

	// UsePathStyle forces path-style addressing (for MinIO, LocalStack).
	UsePathStyle bool

	// Credentials (optional - uses default chain if not provided).
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// DownloadTimeout bounds each object read.
	DownloadTimeout time.Duration
}

// S3 is a Source over an S3 bucket prefix.
type S3 struct {
	cfg    S3Config
	client *s3.Client
}

// NewS3 creates an S3-backed source.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.DownloadTimeout == 0 {
		cfg.DownloadTimeout = 5 * time.Minute
	}
	if cfg.Prefix != "" && !strings.HasSuffix(cfg.Prefix, "/") {
		cfg.Prefix += "/"
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				cfg.SessionToken,
			),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("source: failed to load AWS config: %w", err)
	}

	s3Opts := []func(*s3.Options){}
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &S3{
		cfg:    cfg,
		client: s3.NewFromConfig(awsCfg, s3Opts...),
	}, nil
}

// List walks the prefix with paginated ListObjectsV2 calls and matches
// each key's base name against the glob pattern.
func (s *S3) List(ctx context.Context, pattern string) ([]string, error) {
	var names []string
	var continuationToken *string

	for {
		input := &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.cfg.Bucket),
			ContinuationToken: continuationToken,
		}
		if s.cfg.Prefix != "" {
			input.Prefix = aws.String(s.cfg.Prefix)
		}

		output, err := s.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("source: failed to list s3://%s/%s: %w", s.cfg.Bucket, s.cfg.Prefix, err)
		}

		for _, obj := range output.Contents {
			key := aws.ToString(obj.Key)
			name := strings.TrimPrefix(key, s.cfg.Prefix)
			ok, err := path.Match(pattern, path.Base(name))
			if err != nil {
				return nil, fmt.Errorf("source: bad pattern %q: %w", pattern, err)
			}
			if ok {
				names = append(names, name)
			}
		}

		if !aws.ToBool(output.IsTruncated) {
			break
		}
		continuationToken = output.NextContinuationToken
	}

	return names, nil
}

// Open reads one object under the prefix.
func (s *S3) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.DownloadTimeout)

	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.cfg.Prefix + name),
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("source: failed to get object %s: %w", name, err)
	}

	return &cancelOnCloseReader{ReadCloser: output.Body, cancel: cancel}, nil
}

type cancelOnCloseReader struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *cancelOnCloseReader) Close() error {
	r.cancel()
	return r.ReadCloser.Close()
}
