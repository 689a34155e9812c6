package objectstore

import (
	"bytes"
	"context"
	"io"
	"iter"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const noSuchKey = "NoSuchKey"

// minioAPI is the subset of *minio.Client the gateway uses.
type minioAPI interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
	PresignedPutObject(ctx context.Context, bucketName, objectName string, expires time.Duration) (*url.URL, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
}

// minioClient narrows GetObject's concrete return type so fakes can stand in.
type minioClient struct {
	*minio.Client
}

func (c minioClient) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	return c.Client.GetObject(ctx, bucketName, objectName, opts)
}

// MinIO implements Gateway on top of minio-go.
type MinIO struct {
	api    minioAPI
	bucket string
}

// NewMinIO binds a MinIO client to bucket.
func NewMinIO(client *minio.Client, bucket string) *MinIO {
	return &MinIO{api: minioClient{client}, bucket: bucket}
}

func (m *MinIO) Put(ctx context.Context, key string, data []byte, contentType string) error {
	ctx, span := startSpan(ctx, "minio.put", key)
	defer span.End()

	_, err := m.api.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return unavailable("put object", key, err)
	}
	return nil
}

func (m *MinIO) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, span := startSpan(ctx, "minio.get", key)
	defer span.End()

	reader, err := m.api.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, m.translate("get object", key, err)
	}
	defer reader.Close()

	// minio reports a missing key on first read, not on GetObject.
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, m.translate("read object", key, err)
	}
	return data, nil
}

func (m *MinIO) Delete(ctx context.Context, key string) error {
	ctx, span := startSpan(ctx, "minio.delete", key)
	defer span.End()

	if err := m.api.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == noSuchKey {
			return nil
		}
		return unavailable("remove object", key, err)
	}
	return nil
}

func (m *MinIO) List(ctx context.Context, prefix string) iter.Seq2[Object, error] {
	return func(yield func(Object, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		for info := range m.api.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
			if info.Err != nil {
				yield(Object{}, unavailable("list objects", prefix, info.Err))
				return
			}
			if !yield(Object{Key: info.Key, SizeBytes: info.Size}, nil) {
				return
			}
		}
	}
}

func (m *MinIO) Presign(ctx context.Context, key string, op Operation, ttl time.Duration) (string, error) {
	ctx, span := startSpan(ctx, "minio.presign", key)
	defer span.End()
	span.SetAttributes(attribute.String("op", op.String()))

	var (
		u   *url.URL
		err error
	)
	if op == OpWrite {
		u, err = m.api.PresignedPutObject(ctx, m.bucket, key, ttl)
	} else {
		u, err = m.api.PresignedGetObject(ctx, m.bucket, key, ttl, url.Values{})
	}
	if err != nil {
		return "", unavailable("presign", key, err)
	}
	return u.String(), nil
}

// Ready checks that the bucket is reachable.
func (m *MinIO) Ready(ctx context.Context) error {
	exists, err := m.api.BucketExists(ctx, m.bucket)
	if err != nil {
		return unavailable("bucket exists", m.bucket, err)
	}
	if !exists {
		return unavailable("bucket exists", m.bucket, ErrNotFound)
	}
	return nil
}

func (m *MinIO) translate(op, key string, err error) error {
	if minio.ToErrorResponse(err).Code == noSuchKey {
		return ErrNotFound
	}
	return unavailable(op, key, err)
}

func startSpan(ctx context.Context, name, key string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attribute.String("object.key", key)))
}
