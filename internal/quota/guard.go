// Package quota computes aggregate content usage of the bucket and decides
// whether a new upload may be admitted.
//
// Usage is recomputed from a full listing on every call. Admission is a
// read-then-decide check with no lock, so two concurrent uploads can both be
// admitted before either is counted.
package quota

import (
	"context"
	"errors"
	"iter"

	"github.com/abduss/filehub/internal/metrics"
	"github.com/abduss/filehub/internal/objectstore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultLimitMB is the aggregate ceiling used when none is configured.
const DefaultLimitMB = 1024

const bytesPerMB = 1024 * 1024

// ErrQuotaExceeded is the denial reason when usage is already above the limit.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

var tracer = otel.Tracer("github.com/abduss/filehub/internal/quota")

type lister interface {
	List(ctx context.Context, prefix string) iter.Seq2[objectstore.Object, error]
}

// Decision is the outcome of an admission check. Reason is nil when Allowed.
type Decision struct {
	Allowed bool
	UsageMB float64
	Reason  error
}

// Guard evaluates quota against the live store listing.
type Guard struct {
	store   lister
	limitMB float64
}

// NewGuard returns a Guard enforcing limitMB. A non-positive limit falls back
// to DefaultLimitMB.
func NewGuard(store lister, limitMB float64) *Guard {
	if limitMB <= 0 {
		limitMB = DefaultLimitMB
	}
	return &Guard{store: store, limitMB: limitMB}
}

// LimitMB returns the configured ceiling.
func (g *Guard) LimitMB() float64 {
	return g.limitMB
}

// CurrentUsageMB sums the sizes of every content object, skipping thumbnails.
func (g *Guard) CurrentUsageMB(ctx context.Context) (float64, error) {
	ctx, span := tracer.Start(ctx, "quota.current_usage")
	defer span.End()

	var total int64
	for obj, err := range g.store.List(ctx, "") {
		if err != nil {
			return 0, err
		}
		if obj.IsDerived() {
			continue
		}
		total += obj.SizeBytes
	}

	usage := float64(total) / bytesPerMB
	span.SetAttributes(attribute.Float64("quota.usage_mb", usage))
	metrics.StorageUsageMB.Set(usage)
	return usage, nil
}

// Admit decides whether an upload of candidateBytes may proceed. The candidate
// is not added to the usage: the upload is denied only when the bucket is
// already strictly over the limit.
func (g *Guard) Admit(ctx context.Context, candidateBytes int64) (Decision, error) {
	usage, err := g.CurrentUsageMB(ctx)
	if err != nil {
		return Decision{}, err
	}
	if usage > g.limitMB {
		metrics.QuotaDenials.Inc()
		return Decision{Allowed: false, UsageMB: usage, Reason: ErrQuotaExceeded}, nil
	}
	return Decision{Allowed: true, UsageMB: usage}, nil
}
