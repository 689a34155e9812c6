package objectstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS3GetMapsNoSuchKey(t *testing.T) {
	store := &S3{api: &fakeS3{getErr: &types.NoSuchKey{}}, bucket: "media"}

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3GetReturnsBody(t *testing.T) {
	store := &S3{api: &fakeS3{body: "payload"}, bucket: "media"}

	data, err := store.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestS3PutAndDeleteWrapFailures(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	store := &S3{api: &fakeS3{putErr: cause, deleteErr: cause}, bucket: "media"}

	err := store.Put(context.Background(), "k", []byte("x"), "image/png")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, cause)

	err = store.Delete(context.Background(), "k")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestS3PutSendsMetadata(t *testing.T) {
	api := &fakeS3{}
	store := &S3{api: api, bucket: "media"}

	require.NoError(t, store.Put(context.Background(), "k", []byte("abc"), "video/mp4"))
	require.NotNil(t, api.lastPut)
	assert.Equal(t, "media", aws.ToString(api.lastPut.Bucket))
	assert.Equal(t, "video/mp4", aws.ToString(api.lastPut.ContentType))
	assert.Equal(t, int64(3), aws.ToInt64(api.lastPut.ContentLength))
}

func TestS3ListFollowsPages(t *testing.T) {
	api := &fakeS3{pages: []*s3.ListObjectsV2Output{
		{
			Contents:              []types.Object{{Key: aws.String("a"), Size: aws.Int64(1)}},
			IsTruncated:           aws.Bool(true),
			NextContinuationToken: aws.String("page-2"),
		},
		{
			Contents:    []types.Object{{Key: aws.String("thumbnails/a"), Size: aws.Int64(2)}},
			IsTruncated: aws.Bool(false),
		},
	}}
	store := &S3{api: api, bucket: "media"}

	objects, err := Collect(store.List(context.Background(), "thumb"))
	require.NoError(t, err)
	assert.Equal(t, []Object{{Key: "a", SizeBytes: 1}, {Key: "thumbnails/a", SizeBytes: 2}}, objects)
	assert.Equal(t, "thumb", aws.ToString(api.listInputs[0].Prefix))
	assert.Equal(t, "page-2", aws.ToString(api.listInputs[1].ContinuationToken))
}

func TestS3PresignUsesTTL(t *testing.T) {
	presigner := &fakePresigner{}
	store := &S3{api: &fakeS3{}, presign: presigner, bucket: "media"}

	u, err := store.Presign(context.Background(), "k", OpWrite, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "https://s3.local/put/k", u)
	assert.Equal(t, 10*time.Minute, presigner.expires)

	u, err = store.Presign(context.Background(), "k", OpRead, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "https://s3.local/get/k", u)
}

// --- fakes ---

type fakeS3 struct {
	body       string
	getErr     error
	putErr     error
	deleteErr  error
	lastPut    *s3.PutObjectInput
	pages      []*s3.ListObjectsV2Output
	listInputs []*s3.ListObjectsV2Input
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.lastPut = in
	return &s3.PutObjectOutput{}, f.putErr
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	return &s3.DeleteObjectOutput{}, f.deleteErr
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.listInputs = append(f.listInputs, in)
	idx := len(f.listInputs) - 1
	if idx >= len(f.pages) {
		return &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}, nil
	}
	return f.pages[idx], nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, nil
}

type fakePresigner struct {
	expires time.Duration
}

func (p *fakePresigner) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	p.expires = applyPresign(optFns)
	return &v4.PresignedHTTPRequest{URL: "https://s3.local/get/" + aws.ToString(in.Key)}, nil
}

func (p *fakePresigner) PresignPutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	p.expires = applyPresign(optFns)
	return &v4.PresignedHTTPRequest{URL: "https://s3.local/put/" + aws.ToString(in.Key)}, nil
}

func applyPresign(optFns []func(*s3.PresignOptions)) time.Duration {
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts.Expires
}
