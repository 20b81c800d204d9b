package media

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/google/uuid"
)

// S3Config holds the connection settings for an S3-compatible backend.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	UseSSL    bool
}

// S3Storage keeps file contents in an object bucket.
type S3Storage struct {
	mc     *minio.Client
	bucket string
}

// NewS3Storage connects to the endpoint and creates the bucket if missing.
func NewS3Storage(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}

	exists, err := mc.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		region := cfg.Region
		if region == "" {
			region = "us-east-1"
		}
		if err := mc.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &S3Storage{mc: mc, bucket: cfg.Bucket}, nil
}

func (s *S3Storage) Save(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (string, error) {
	key := uuid.New().String() + "_" + sanitizeFilename(filename)
	_, err := s.mc.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return key, nil
}

func (s *S3Storage) Remove(ctx context.Context, path string) error {
	return s.mc.RemoveObject(ctx, s.bucket, path, minio.RemoveObjectOptions{})
}
