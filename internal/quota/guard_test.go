package quota

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/abduss/filehub/internal/objectstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mb = 1024 * 1024

func TestCurrentUsageExcludesThumbnails(t *testing.T) {
	guard := NewGuard(fakeListing{
		{Key: "a_one.jpg", SizeBytes: 3 * mb},
		{Key: "thumbnails/one.jpg", SizeBytes: 100 * mb},
		{Key: "b_two.mp4", SizeBytes: 2 * mb},
	}, 1024)

	usage, err := guard.CurrentUsageMB(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 5.0, usage, 1e-9)
}

func TestAdmitAllowsAtExactlyTheLimit(t *testing.T) {
	guard := NewGuard(fakeListing{{Key: "big", SizeBytes: 1024 * mb}}, 1024)

	decision, err := guard.Admit(context.Background(), 10*mb)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.NoError(t, decision.Reason)
	assert.InDelta(t, 1024.0, decision.UsageMB, 1e-9)
}

func TestAdmitDeniesAboveTheLimit(t *testing.T) {
	guard := NewGuard(fakeListing{{Key: "big", SizeBytes: 1024*mb + 1}}, 1024)

	decision, err := guard.Admit(context.Background(), 0)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.ErrorIs(t, decision.Reason, ErrQuotaExceeded)
}

func TestAdmitIgnoresCandidateSize(t *testing.T) {
	guard := NewGuard(fakeListing{{Key: "k", SizeBytes: 1000 * mb}}, 1024)

	decision, err := guard.Admit(context.Background(), 500*mb)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestAdmitIgnoresThumbnailsOverLimit(t *testing.T) {
	guard := NewGuard(fakeListing{
		{Key: "thumbnails/huge.jpg", SizeBytes: 4096 * mb},
		{Key: "k", SizeBytes: mb},
	}, 1024)

	decision, err := guard.Admit(context.Background(), mb)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestAdmitPropagatesStoreFailure(t *testing.T) {
	cause := errors.New("unreachable")
	guard := NewGuard(failingListing{err: cause}, 1024)

	_, err := guard.Admit(context.Background(), 1)
	assert.ErrorIs(t, err, cause)
}

func TestNewGuardDefaultsLimit(t *testing.T) {
	assert.Equal(t, float64(DefaultLimitMB), NewGuard(fakeListing{}, 0).LimitMB())
	assert.Equal(t, 10.0, NewGuard(fakeListing{}, 10).LimitMB())
}

type fakeListing []objectstore.Object

func (f fakeListing) List(_ context.Context, prefix string) iter.Seq2[objectstore.Object, error] {
	return func(yield func(objectstore.Object, error) bool) {
		for _, obj := range f {
			if !yield(obj, nil) {
				return
			}
		}
	}
}

type failingListing struct {
	err error
}

func (f failingListing) List(context.Context, string) iter.Seq2[objectstore.Object, error] {
	return func(yield func(objectstore.Object, error) bool) {
		yield(objectstore.Object{}, f.err)
	}
}
