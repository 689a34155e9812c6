package album

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/abduss/filehub/internal/metrics"
	"github.com/abduss/filehub/internal/objectstore"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultShareTTL        = 7 * 24 * time.Hour
	DefaultShareCodeLength = 8
	DefaultPreviewTTL      = 10 * time.Minute

	minShareCodeLength   = 6
	maxShareCodeLength   = 32
	maxShareCodeAttempts = 5
)

// ErrInvalidName is returned for a blank album name.
var ErrInvalidName = errors.New("album name is required")

type albumStore interface {
	Create(ctx context.Context, a Album) (Album, error)
	List(ctx context.Context) ([]Album, error)
	Get(ctx context.Context, id uuid.UUID) (Album, error)
	GetByShareCode(ctx context.Context, code string) (Album, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	UpdateMembers(ctx context.Context, id uuid.UUID, keys []string) error
}

type presigner interface {
	Presign(ctx context.Context, key string, op objectstore.Operation, ttl time.Duration) (string, error)
}

// Options tunes sharing. Zero values fall back to the defaults.
type Options struct {
	ShareTTL        time.Duration
	ShareCodeLength int
	PreviewTTL      time.Duration
}

// Service manages albums and their share codes.
type Service struct {
	repo    albumStore
	objects presigner
	log     *zap.Logger
	opts    Options
	nowFunc func() time.Time
}

// NewService constructs an album service.
func NewService(repo albumStore, objects presigner, log *zap.Logger, opts Options) *Service {
	if opts.ShareTTL <= 0 {
		opts.ShareTTL = DefaultShareTTL
	}
	if opts.ShareCodeLength <= 0 {
		opts.ShareCodeLength = DefaultShareCodeLength
	}
	opts.ShareCodeLength = min(max(opts.ShareCodeLength, minShareCodeLength), maxShareCodeLength)
	if opts.PreviewTTL <= 0 {
		opts.PreviewTTL = DefaultPreviewTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:    repo,
		objects: objects,
		log:     log,
		opts:    opts,
		nowFunc: time.Now,
	}
}

// Create stores a new album with a fresh share code expiring ShareTTL from now.
func (s *Service) Create(ctx context.Context, name string, fileKeys []string) (Album, error) {
	if strings.TrimSpace(name) == "" {
		return Album{}, ErrInvalidName
	}

	exists, err := s.repo.ExistsByName(ctx, name)
	if err != nil {
		return Album{}, err
	}
	if exists {
		return Album{}, ErrDuplicateName
	}

	members := slices.Clone(fileKeys)
	if members == nil {
		members = []string{}
	}
	now := s.nowFunc().UTC().Truncate(time.Microsecond)
	expiresAt := now.Add(s.opts.ShareTTL)

	for range maxShareCodeAttempts {
		created, err := s.repo.Create(ctx, Album{
			ID:         uuid.New(),
			Name:       name,
			MemberKeys: members,
			ShareCode:  newShareCode(s.opts.ShareCodeLength),
			ExpiresAt:  &expiresAt,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		if errors.Is(err, errShareCodeTaken) {
			s.log.Debug("share code collision, retrying", zap.String("album", name))
			continue
		}
		if err != nil {
			return Album{}, err
		}
		return created, nil
	}
	return Album{}, fmt.Errorf("%w: %w after %d attempts", ErrPersistenceUnavailable, errShareCodeTaken, maxShareCodeAttempts)
}

// List returns every album.
func (s *Service) List(ctx context.Context) ([]Album, error) {
	return s.repo.List(ctx)
}

// Get returns the album with id or ErrAlbumNotFound.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Album, error) {
	return s.repo.Get(ctx, id)
}

// Delete removes the album. Missing albums are not an error.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// ResolveByShareCode returns the album behind code while it is still
// shareable. Unknown and expired codes both yield ErrAlbumNotFound.
func (s *Service) ResolveByShareCode(ctx context.Context, code string) (Album, error) {
	if code == "" {
		metrics.ShareResolutions.WithLabelValues("unknown").Inc()
		return Album{}, ErrAlbumNotFound
	}

	a, err := s.repo.GetByShareCode(ctx, code)
	if errors.Is(err, ErrAlbumNotFound) {
		metrics.ShareResolutions.WithLabelValues("unknown").Inc()
		return Album{}, ErrAlbumNotFound
	}
	if err != nil {
		return Album{}, err
	}
	if !a.Shareable(s.nowFunc()) {
		metrics.ShareResolutions.WithLabelValues("expired").Inc()
		return Album{}, ErrAlbumNotFound
	}

	metrics.ShareResolutions.WithLabelValues("ok").Inc()
	return a, nil
}

// SharedView resolves code and presigns a read URL for every member.
func (s *Service) SharedView(ctx context.Context, code string) (SharedAlbum, error) {
	a, err := s.ResolveByShareCode(ctx, code)
	if err != nil {
		return SharedAlbum{}, err
	}

	items := make([]SharedItem, 0, len(a.MemberKeys))
	for _, key := range a.MemberKeys {
		url, err := s.objects.Presign(ctx, key, objectstore.OpRead, s.opts.PreviewTTL)
		if err != nil {
			return SharedAlbum{}, err
		}
		items = append(items, SharedItem{Key: key, URL: url})
	}
	return SharedAlbum{Name: a.Name, ExpiresAt: a.ExpiresAt, Items: items}, nil
}

// PruneKey removes every occurrence of key from every album. Albums deleted
// while the scan runs are skipped. Concurrent prunes of the same album are
// not serialized, so the last update wins.
func (s *Service) PruneKey(ctx context.Context, key string) error {
	albums, err := s.repo.List(ctx)
	if err != nil {
		return err
	}

	for _, a := range albums {
		kept, changed := a.without(key)
		if !changed {
			continue
		}
		err := s.repo.UpdateMembers(ctx, a.ID, kept)
		if errors.Is(err, ErrAlbumNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		s.log.Debug("pruned key from album", zap.String("key", key), zap.Stringer("album_id", a.ID))
	}
	return nil
}

// RemoveMember removes every occurrence of key from one album.
func (s *Service) RemoveMember(ctx context.Context, id uuid.UUID, key string) (Album, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return Album{}, err
	}

	kept, changed := a.without(key)
	if !changed {
		return a, nil
	}
	if err := s.repo.UpdateMembers(ctx, id, kept); err != nil {
		return Album{}, err
	}
	a.MemberKeys = kept
	return a, nil
}

func newShareCode(length int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:length]
}
