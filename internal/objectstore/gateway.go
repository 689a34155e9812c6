// Package objectstore wraps the single bucket FileHub keeps its media in.
//
// Every driver reports a missing key as ErrNotFound and any transport failure
// as ErrUnavailable. Nothing is retried here; callers see the failure as-is.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
)

// ThumbnailPrefix is the reserved namespace for derived objects. The store
// itself knows nothing about it.
const ThumbnailPrefix = "thumbnails/"

// KeySeparator joins the random upload token and the original filename.
const KeySeparator = "_"

var (
	// ErrNotFound signals that the key does not exist in the bucket.
	ErrNotFound = errors.New("object not found")
	// ErrUnavailable wraps transport or network failures of the store.
	ErrUnavailable = errors.New("object store unavailable")
)

var tracer = otel.Tracer("github.com/abduss/filehub/internal/objectstore")

// Operation selects what a presigned URL grants.
type Operation int

const (
	OpRead Operation = iota
	OpWrite
)

func (o Operation) String() string {
	if o == OpWrite {
		return "write"
	}
	return "read"
}

// Object is one entry of a bucket listing.
type Object struct {
	Key       string
	SizeBytes int64
}

// IsDerived reports whether the object lives under the thumbnail namespace.
func (o Object) IsDerived() bool {
	return IsDerived(o.Key)
}

// Gateway is the capability set the core needs from the bucket.
type Gateway interface {
	// Put stores data under key, replacing any existing object.
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Get returns the object bytes or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes key. Deleting a missing key succeeds.
	Delete(ctx context.Context, key string) error
	// List yields objects whose key starts with prefix ("" for all). Each call
	// starts a fresh listing; pages are fetched as the sequence is consumed.
	List(ctx context.Context, prefix string) iter.Seq2[Object, error]
	// Presign returns a URL granting op on key for ttl.
	Presign(ctx context.Context, key string, op Operation, ttl time.Duration) (string, error)
}

// IsDerived reports whether key is under ThumbnailPrefix.
func IsDerived(key string) bool {
	return strings.HasPrefix(key, ThumbnailPrefix)
}

// ThumbnailKey returns the derived key for a content key. The thumbnail is
// named after the last path segment with the upload token ("<token>_")
// stripped, so "abc_photo.jpg" maps to "thumbnails/photo.jpg".
func ThumbnailKey(key string) string {
	name := key[strings.LastIndex(key, "/")+1:]
	if i := strings.Index(name, KeySeparator); i >= 0 {
		name = name[i+len(KeySeparator):]
	}
	return ThumbnailPrefix + name
}

// Collect drains a listing into a slice, stopping at the first error.
func Collect(seq iter.Seq2[Object, error]) ([]Object, error) {
	var out []Object
	for obj, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, nil
}

func unavailable(op, key string, err error) error {
	if key == "" {
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
	}
	return fmt.Errorf("%w: %s %q: %w", ErrUnavailable, op, key, err)
}
