package album

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/abduss/filehub/internal/objectstore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)

func newTestService(repo *memoryRepo) *Service {
	svc := NewService(repo, objectstore.NewMemory("media"), nil, Options{})
	svc.nowFunc = func() time.Time { return fixedNow }
	return svc
}

func TestCreateAssignsShareCodeAndExpiry(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	first, err := svc.Create(context.Background(), "holiday", []string{"a", "b", "a"})
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), "work", nil)
	require.NoError(t, err)

	assert.Len(t, first.ShareCode, DefaultShareCodeLength)
	assert.NotEqual(t, first.ShareCode, second.ShareCode)
	require.NotNil(t, first.ExpiresAt)
	assert.True(t, first.ExpiresAt.Equal(first.CreatedAt.Add(7*24*time.Hour)))
	assert.Equal(t, []string{"a", "b", "a"}, first.MemberKeys)
	assert.Equal(t, []string{}, second.MemberKeys)
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), "holiday", nil)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), "holiday", []string{"x"})
	assert.ErrorIs(t, err, ErrDuplicateName)

	// Names are compared exactly.
	_, err = svc.Create(context.Background(), "Holiday", nil)
	assert.NoError(t, err)
}

func TestCreateRejectsBlankName(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	_, err := svc.Create(context.Background(), "  ", nil)
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestCreateRetriesShareCodeCollision(t *testing.T) {
	repo := newMemoryRepo()
	repo.shareCodeCollisions = 2
	svc := newTestService(repo)

	a, err := svc.Create(context.Background(), "retry", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, a.ShareCode)
	assert.Equal(t, 3, repo.createCalls)
}

func TestCreateGivesUpAfterRepeatedCollisions(t *testing.T) {
	repo := newMemoryRepo()
	repo.shareCodeCollisions = maxShareCodeAttempts
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), "unlucky", nil)
	assert.ErrorIs(t, err, ErrPersistenceUnavailable)
	assert.Empty(t, repo.albums)
}

func TestResolveByShareCodeHonoursExpiry(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	a, err := svc.Create(context.Background(), "trip", []string{"k"})
	require.NoError(t, err)

	svc.nowFunc = func() time.Time { return a.ExpiresAt.Add(-time.Second) }
	resolved, err := svc.ResolveByShareCode(context.Background(), a.ShareCode)
	require.NoError(t, err)
	assert.Equal(t, a.ID, resolved.ID)

	svc.nowFunc = func() time.Time { return a.ExpiresAt.Add(time.Second) }
	_, err = svc.ResolveByShareCode(context.Background(), a.ShareCode)
	assert.ErrorIs(t, err, ErrAlbumNotFound)

	svc.nowFunc = func() time.Time { return *a.ExpiresAt }
	_, err = svc.ResolveByShareCode(context.Background(), a.ShareCode)
	assert.ErrorIs(t, err, ErrAlbumNotFound)
}

func TestResolveByShareCodeUnknownAndNoExpiry(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	_, err := svc.ResolveByShareCode(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrAlbumNotFound)
	_, err = svc.ResolveByShareCode(context.Background(), "")
	assert.ErrorIs(t, err, ErrAlbumNotFound)

	legacy := Album{ID: uuid.New(), Name: "legacy", ShareCode: "forever", MemberKeys: []string{}}
	repo.albums = append(repo.albums, legacy)
	svc.nowFunc = func() time.Time { return fixedNow.AddDate(10, 0, 0) }

	resolved, err := svc.ResolveByShareCode(context.Background(), "forever")
	require.NoError(t, err)
	assert.Equal(t, legacy.ID, resolved.ID)
}

func TestPruneKeyRemovesEveryOccurrence(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	abc, err := svc.Create(context.Background(), "abc", []string{"a", "b", "c"})
	require.NoError(t, err)
	dup, err := svc.Create(context.Background(), "dup", []string{"b", "x", "b"})
	require.NoError(t, err)
	other, err := svc.Create(context.Background(), "other", []string{"z"})
	require.NoError(t, err)

	require.NoError(t, svc.PruneKey(context.Background(), "b"))

	assert.Equal(t, []string{"a", "c"}, repo.byID(abc.ID).MemberKeys)
	assert.Equal(t, []string{"x"}, repo.byID(dup.ID).MemberKeys)
	assert.Equal(t, []string{"z"}, repo.byID(other.ID).MemberKeys)
	assert.Equal(t, 2, repo.updateCalls)
}

func TestPruneKeyAbsentLeavesMembershipUnchanged(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	a, err := svc.Create(context.Background(), "abc", []string{"a", "b", "c"})
	require.NoError(t, err)

	require.NoError(t, svc.PruneKey(context.Background(), "missing"))
	assert.Equal(t, []string{"a", "b", "c"}, repo.byID(a.ID).MemberKeys)
	assert.Zero(t, repo.updateCalls)
}

func TestPruneKeyPropagatesPersistenceFailure(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	_, err := svc.Create(context.Background(), "abc", []string{"a"})
	require.NoError(t, err)

	repo.updateErr = unavailable("update album members", errors.New("conn reset"))
	err = svc.PruneKey(context.Background(), "a")
	assert.ErrorIs(t, err, ErrPersistenceUnavailable)
}

func TestRemoveMember(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	a, err := svc.Create(context.Background(), "abc", []string{"a", "b", "a"})
	require.NoError(t, err)

	updated, err := svc.RemoveMember(context.Background(), a.ID, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, updated.MemberKeys)
	assert.Equal(t, []string{"b"}, repo.byID(a.ID).MemberKeys)

	_, err = svc.RemoveMember(context.Background(), uuid.New(), "a")
	assert.ErrorIs(t, err, ErrAlbumNotFound)
}

func TestDeleteIsIdempotent(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	a, err := svc.Create(context.Background(), "abc", nil)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), a.ID))
	require.NoError(t, svc.Delete(context.Background(), a.ID))
	_, err = svc.Get(context.Background(), a.ID)
	assert.ErrorIs(t, err, ErrAlbumNotFound)
}

func TestSharedViewPresignsMembers(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	a, err := svc.Create(context.Background(), "trip", []string{"abc_one.jpg", "def_two.mp4"})
	require.NoError(t, err)

	view, err := svc.SharedView(context.Background(), a.ShareCode)
	require.NoError(t, err)
	assert.Equal(t, "trip", view.Name)
	require.Len(t, view.Items, 2)
	assert.Equal(t, "abc_one.jpg", view.Items[0].Key)
	assert.True(t, strings.HasPrefix(view.Items[0].URL, "memory://media/abc_one.jpg?"))
	assert.Contains(t, view.Items[1].URL, "op=read")

	_, err = svc.SharedView(context.Background(), "unknown")
	assert.ErrorIs(t, err, ErrAlbumNotFound)
}

func TestNewServiceClampsShareCodeLength(t *testing.T) {
	assert.Equal(t, minShareCodeLength, NewService(newMemoryRepo(), nil, nil, Options{ShareCodeLength: 2}).opts.ShareCodeLength)
	assert.Equal(t, maxShareCodeLength, NewService(newMemoryRepo(), nil, nil, Options{ShareCodeLength: 64}).opts.ShareCodeLength)
}

// memoryRepo implements albumStore with the same uniqueness rules as the
// albums table.
type memoryRepo struct {
	albums []Album

	shareCodeCollisions int
	createCalls         int
	updateCalls         int
	updateErr           error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{}
}

func (m *memoryRepo) byID(id uuid.UUID) Album {
	for _, a := range m.albums {
		if a.ID == id {
			return a
		}
	}
	return Album{}
}

func (m *memoryRepo) Create(_ context.Context, a Album) (Album, error) {
	m.createCalls++
	if m.shareCodeCollisions > 0 {
		m.shareCodeCollisions--
		return Album{}, errShareCodeTaken
	}
	for _, existing := range m.albums {
		if existing.Name == a.Name {
			return Album{}, ErrDuplicateName
		}
		if existing.ShareCode == a.ShareCode {
			return Album{}, errShareCodeTaken
		}
	}
	a.MemberKeys = slices.Clone(a.MemberKeys)
	m.albums = append(m.albums, a)
	return a, nil
}

func (m *memoryRepo) List(context.Context) ([]Album, error) {
	return slices.Clone(m.albums), nil
}

func (m *memoryRepo) Get(_ context.Context, id uuid.UUID) (Album, error) {
	for _, a := range m.albums {
		if a.ID == id {
			return a, nil
		}
	}
	return Album{}, ErrAlbumNotFound
}

func (m *memoryRepo) GetByShareCode(_ context.Context, code string) (Album, error) {
	for _, a := range m.albums {
		if a.ShareCode == code {
			return a, nil
		}
	}
	return Album{}, ErrAlbumNotFound
}

func (m *memoryRepo) ExistsByName(_ context.Context, name string) (bool, error) {
	return slices.ContainsFunc(m.albums, func(a Album) bool { return a.Name == name }), nil
}

func (m *memoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.albums = slices.DeleteFunc(m.albums, func(a Album) bool { return a.ID == id })
	return nil
}

func (m *memoryRepo) UpdateMembers(_ context.Context, id uuid.UUID, keys []string) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updateCalls++
	for i := range m.albums {
		if m.albums[i].ID == id {
			m.albums[i].MemberKeys = slices.Clone(keys)
			return nil
		}
	}
	return ErrAlbumNotFound
}
