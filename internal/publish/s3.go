package publish

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"tcgpricing/internal/config"
	"tcgpricing/internal/util"
)

// S3Publisher uploads artifacts to an S3-compatible bucket.
type S3Publisher struct {
	client   *s3.Client
	bucket   string
	prefix   string
	attempts int
	log      *slog.Logger
}

// NewS3Publisher creates an S3Publisher using the default AWS credential
// chain. Endpoint and path-style addressing support MinIO and LocalStack.
func NewS3Publisher(ctx context.Context, cfg config.Publish, attempts int, log *slog.Logger) (*S3Publisher, error) {
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
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	if log == nil {
		log = slog.Default()
	}
	return &S3Publisher{
		client:   s3.NewFromConfig(awsCfg, s3Opts...),
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
		attempts: max(attempts, 1),
		log:      log.With("component", "publish", "bucket", cfg.Bucket),
	}, nil
}

// ObjectKey returns the bucket key for key under the configured prefix.
func (p *S3Publisher) ObjectKey(key string) string {
	if p.prefix == "" {
		return key
	}
	return path.Join(p.prefix, key)
}

// Upload puts localPath under key, retrying failed attempts.
func (p *S3Publisher) Upload(ctx context.Context, localPath, key string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer file.Close()

	objectKey := p.ObjectKey(key)
	err = util.Retry(ctx, p.attempts, 500*time.Millisecond, func() error {
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return util.Permanent(err)
		}
		_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(p.bucket),
			Key:    aws.String(objectKey),
			Body:   file,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: s3://%s/%s: %v", ErrUploadFailed, p.bucket, objectKey, err)
	}
	p.log.Debug("uploaded", "key", objectKey)
	return nil
}
