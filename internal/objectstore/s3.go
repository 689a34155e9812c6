package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"iter"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.opentelemetry.io/otel/attribute"
)

type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

type s3Presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignPutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3 implements Gateway with the AWS SDK, for AWS or any S3 compatible endpoint.
type S3 struct {
	api     s3API
	presign s3Presigner
	bucket  string
}

// NewS3 binds an S3 client to bucket.
func NewS3(client *s3.Client, bucket string) *S3 {
	return &S3{
		api:     client,
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
	}
}

func (s *S3) Put(ctx context.Context, key string, data []byte, contentType string) error {
	ctx, span := startSpan(ctx, "s3.put", key)
	defer span.End()

	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return unavailable("put object", key, err)
	}
	return nil
}

func (s *S3) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, span := startSpan(ctx, "s3.get", key)
	defer span.End()

	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, ErrNotFound
		}
		return nil, unavailable("get object", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, unavailable("read object", key, err)
	}
	return data, nil
}

func (s *S3) Delete(ctx context.Context, key string) error {
	ctx, span := startSpan(ctx, "s3.delete", key)
	defer span.End()

	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return unavailable("delete object", key, err)
	}
	return nil
}

func (s *S3) List(ctx context.Context, prefix string) iter.Seq2[Object, error] {
	return func(yield func(Object, error) bool) {
		in := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
		if prefix != "" {
			in.Prefix = aws.String(prefix)
		}

		pages := s3.NewListObjectsV2Paginator(s.api, in)
		for pages.HasMorePages() {
			page, err := pages.NextPage(ctx)
			if err != nil {
				yield(Object{}, unavailable("list objects", prefix, err))
				return
			}
			for _, obj := range page.Contents {
				if !yield(Object{Key: aws.ToString(obj.Key), SizeBytes: aws.ToInt64(obj.Size)}, nil) {
					return
				}
			}
		}
	}
}

func (s *S3) Presign(ctx context.Context, key string, op Operation, ttl time.Duration) (string, error) {
	ctx, span := startSpan(ctx, "s3.presign", key)
	defer span.End()
	span.SetAttributes(attribute.String("op", op.String()))

	var (
		req *v4.PresignedHTTPRequest
		err error
	)
	if op == OpWrite {
		req, err = s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		}, s3.WithPresignExpires(ttl))
	} else {
		req, err = s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		}, s3.WithPresignExpires(ttl))
	}
	if err != nil {
		return "", unavailable("presign", key, err)
	}
	return req.URL, nil
}

// Ready checks that the bucket is reachable.
func (s *S3) Ready(ctx context.Context) error {
	if _, err := s.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return unavailable("head bucket", s.bucket, err)
	}
	return nil
}
