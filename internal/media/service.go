// Package media owns the lifecycle of content objects: key generation, quota
// admission, retrieval, presigning and cascading deletion.
package media

import (
	"context"
	"strings"
	"time"

	"github.com/abduss/filehub/internal/metrics"
	"github.com/abduss/filehub/internal/objectstore"
	"github.com/abduss/filehub/internal/quota"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	DefaultPresignTTL     = 10 * time.Minute
	DefaultMaxUploadBytes = 512 << 20
)

var tracer = otel.Tracer("github.com/abduss/filehub/internal/media")

// pruner drops a deleted key from album membership.
type pruner interface {
	PruneKey(ctx context.Context, key string) error
}

type publisher interface {
	ObjectUploaded(ctx context.Context, key string, sizeBytes int64, contentType string) error
	ObjectDeleted(ctx context.Context, key string) error
}

// Options tunes the service. Zero values fall back to the defaults; a nil
// AllowedContentTypes accepts every content type.
type Options struct {
	PresignTTL          time.Duration
	AllowedContentTypes []string
	MaxUploadBytes      int64
}

// UploadTarget is a key reserved for a direct upload plus the URL to PUT it to.
type UploadTarget struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Stats reports content usage against the quota.
type Stats struct {
	UsedMB  float64 `json:"used_mb"`
	LimitMB float64 `json:"limit_mb"`
}

// Service manages content objects in the bucket.
type Service struct {
	store     objectstore.Gateway
	guard     *quota.Guard
	albums    pruner
	events    publisher
	log       *zap.Logger
	opts      Options
	allowed   map[string]struct{}
	tokenFunc func() string
	nowFunc   func() time.Time
}

// NewService constructs a media service. albums and events may be nil.
func NewService(store objectstore.Gateway, guard *quota.Guard, albums pruner, events publisher, log *zap.Logger, opts Options) *Service {
	if opts.PresignTTL <= 0 {
		opts.PresignTTL = DefaultPresignTTL
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if log == nil {
		log = zap.NewNop()
	}

	var allowed map[string]struct{}
	if len(opts.AllowedContentTypes) > 0 {
		allowed = make(map[string]struct{}, len(opts.AllowedContentTypes))
		for _, ct := range opts.AllowedContentTypes {
			allowed[normalizeContentType(ct)] = struct{}{}
		}
	}

	return &Service{
		store:     store,
		guard:     guard,
		albums:    albums,
		events:    events,
		log:       log,
		opts:      opts,
		allowed:   allowed,
		tokenFunc: uuid.NewString,
		nowFunc:   time.Now,
	}
}

// PresignTTL is the default lifetime of preview and upload URLs.
func (s *Service) PresignTTL() time.Duration {
	return s.opts.PresignTTL
}

// MaxUploadBytes is the largest payload Upload's HTTP handler accepts.
func (s *Service) MaxUploadBytes() int64 {
	return s.opts.MaxUploadBytes
}

// Upload admits the object against the quota, stores it under a fresh key and
// returns that key. No bytes are written when admission is denied.
func (s *Service) Upload(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	ctx, span := tracer.Start(ctx, "media.upload")
	defer span.End()

	if err := s.validate(filename, contentType); err != nil {
		metrics.Uploads.WithLabelValues("rejected").Inc()
		return "", err
	}

	decision, err := s.guard.Admit(ctx, int64(len(data)))
	if err != nil {
		metrics.Uploads.WithLabelValues("error").Inc()
		return "", err
	}
	if !decision.Allowed {
		metrics.Uploads.WithLabelValues("denied").Inc()
		s.log.Warn("upload denied by quota",
			zap.String("filename", filename),
			zap.Float64("usage_mb", decision.UsageMB),
			zap.Float64("limit_mb", s.guard.LimitMB()))
		return "", decision.Reason
	}

	key := s.newKey(filename)
	span.SetAttributes(attribute.String("object.key", key), attribute.Int("object.size", len(data)))

	if err := s.store.Put(ctx, key, data, contentType); err != nil {
		metrics.Uploads.WithLabelValues("error").Inc()
		return "", err
	}
	metrics.Uploads.WithLabelValues("ok").Inc()

	if s.events != nil {
		if err := s.events.ObjectUploaded(ctx, key, int64(len(data)), contentType); err != nil {
			s.log.Warn("publish object.uploaded failed", zap.String("key", key), zap.Error(err))
		}
	}
	return key, nil
}

// Download returns the object bytes or objectstore.ErrNotFound.
func (s *Service) Download(ctx context.Context, key string) ([]byte, error) {
	return s.store.Get(ctx, key)
}

// PreviewURL presigns a read URL for key. A non-positive ttl uses PresignTTL.
func (s *Service) PreviewURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.opts.PresignTTL
	}
	return s.store.Presign(ctx, key, objectstore.OpRead, ttl)
}

// DeleteWithDerived removes key and then its thumbnail. Only the content
// delete can fail the call; a failed thumbnail delete is logged and counted.
func (s *Service) DeleteWithDerived(ctx context.Context, key string) error {
	ctx, span := tracer.Start(ctx, "media.delete")
	defer span.End()
	span.SetAttributes(attribute.String("object.key", key))

	if err := s.store.Delete(ctx, key); err != nil {
		return err
	}

	thumbnail := objectstore.ThumbnailKey(key)
	if err := s.store.Delete(ctx, thumbnail); err != nil {
		metrics.ThumbnailCleanupFailures.Inc()
		s.log.Warn("thumbnail cleanup failed",
			zap.String("key", key),
			zap.String("thumbnail", thumbnail),
			zap.Error(err))
	}
	return nil
}

// Delete removes key with its thumbnail and prunes it from every album. The
// object is already gone when a prune failure is returned.
func (s *Service) Delete(ctx context.Context, key string) error {
	if err := s.DeleteWithDerived(ctx, key); err != nil {
		return err
	}
	if s.albums != nil {
		if err := s.albums.PruneKey(ctx, key); err != nil {
			return err
		}
	}
	if s.events != nil {
		if err := s.events.ObjectDeleted(ctx, key); err != nil {
			s.log.Warn("publish object.deleted failed", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

// ListContent returns every key outside the thumbnail namespace.
func (s *Service) ListContent(ctx context.Context) ([]string, error) {
	keys := make([]string, 0)
	for obj, err := range s.store.List(ctx, "") {
		if err != nil {
			return nil, err
		}
		if !obj.IsDerived() {
			keys = append(keys, obj.Key)
		}
	}
	return keys, nil
}

// ListThumbnails returns every key under the thumbnail namespace.
func (s *Service) ListThumbnails(ctx context.Context) ([]string, error) {
	keys := make([]string, 0)
	for obj, err := range s.store.List(ctx, objectstore.ThumbnailPrefix) {
		if err != nil {
			return nil, err
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// PresignedUploadTarget reserves a key and presigns a PUT for it. Quota is not
// checked here and nothing confirms that the upload happens.
func (s *Service) PresignedUploadTarget(ctx context.Context, filename, contentType string) (UploadTarget, error) {
	if err := s.validate(filename, contentType); err != nil {
		return UploadTarget{}, err
	}

	key := s.newKey(filename)
	expiresAt := s.nowFunc().Add(s.opts.PresignTTL)
	url, err := s.store.Presign(ctx, key, objectstore.OpWrite, s.opts.PresignTTL)
	if err != nil {
		return UploadTarget{}, err
	}
	return UploadTarget{Key: key, URL: url, ExpiresAt: expiresAt}, nil
}

// Stats reports current content usage and the quota limit.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	used, err := s.guard.CurrentUsageMB(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{UsedMB: used, LimitMB: s.guard.LimitMB()}, nil
}

func (s *Service) newKey(filename string) string {
	return s.tokenFunc() + objectstore.KeySeparator + filename
}

func (s *Service) validate(filename, contentType string) error {
	if strings.TrimSpace(filename) == "" {
		return ErrEmptyFilename
	}
	if s.allowed == nil {
		return nil
	}
	if _, ok := s.allowed[normalizeContentType(contentType)]; !ok {
		return ErrUnsupportedContentType
	}
	return nil
}

// normalizeContentType drops parameters such as "; charset=utf-8".
func normalizeContentType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}
