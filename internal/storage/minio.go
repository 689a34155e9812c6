package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/abduss/filehub/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const defaultObjectStoreTimeout = 5 * time.Second

// bucketMaker is the part of *minio.Client that EnsureBucket needs.
type bucketMaker interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
}

// NewMinIOClient builds a MinIO client for cfg. The endpoint may carry a
// scheme, which is dropped in favour of cfg.UseSSL, and defaults to port 9000.
func NewMinIOClient(cfg config.ObjectStoreConfig) (*minio.Client, error) {
	client, err := minio.New(minioEndpoint(cfg.Endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client for %q: %w", cfg.Endpoint, err)
	}
	return client, nil
}

// EnsureBucket creates bucket in region unless it already exists. Losing a
// creation race to another instance counts as success.
func EnsureBucket(ctx context.Context, client bucketMaker, bucket, region string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultObjectStoreTimeout)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", bucket, err)
	}
	if exists {
		return nil
	}

	err = client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region})
	if err == nil {
		return nil
	}
	switch minio.ToErrorResponse(err).Code {
	case "BucketAlreadyOwnedByYou", "BucketAlreadyExists":
		return nil
	}
	return fmt.Errorf("create bucket %q: %w", bucket, err)
}

func minioEndpoint(endpoint string) string {
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")
	endpoint = strings.TrimSuffix(endpoint, "/")
	if !strings.Contains(endpoint, ":") {
		endpoint += ":9000"
	}
	return endpoint
}
