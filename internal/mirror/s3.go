package mirror

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"filehost/internal/config"
	"filehost/internal/filehost"
)

// S3Mirror uploads copies to an S3 (or S3-compatible) bucket under an
// optional key prefix. Large files go through the multipart upload manager.
type S3Mirror struct {
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewS3Mirror builds the S3 client from the mirror config. Without static
// credentials the default AWS credential chain is used.
func NewS3Mirror(ctx context.Context, cfg config.MirrorConfig) (*S3Mirror, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// MinIO and similar servers need a custom endpoint and path-style addressing.
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Mirror{
		uploader: manager.NewUploader(client),
		bucket:   cfg.S3Bucket,
		prefix:   cfg.S3Prefix,
	}, nil
}

func (m *S3Mirror) Name() string { return "s3" }

// Key returns the object key for a relative path.
func (m *S3Mirror) Key(relativePath string) string {
	if m.prefix == "" {
		return relativePath
	}
	return path.Join(m.prefix, relativePath)
}

func (m *S3Mirror) Put(ctx context.Context, relativePath string, r io.Reader, size int64) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.Key(relativePath)),
		Body:   r,
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := m.uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("uploading %s to s3://%s: %w", relativePath, m.bucket, err)
	}
	return nil
}

// Compile-time check that S3Mirror implements filehost.Mirror
var _ filehost.Mirror = (*S3Mirror)(nil)
