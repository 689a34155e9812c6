package album

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Album groups content object keys behind a time-limited share code.
type Album struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	MemberKeys []string   `json:"file_keys"`
	ShareCode  string     `json:"share_code"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Shareable reports whether the album may be resolved through its share code
// at now. An album without expiry is always shareable.
func (a Album) Shareable(now time.Time) bool {
	return a.ExpiresAt == nil || a.ExpiresAt.After(now)
}

// Contains reports whether key is one of the album members.
func (a Album) Contains(key string) bool {
	return slices.Contains(a.MemberKeys, key)
}

// without returns the members with every occurrence of key removed, and
// whether anything was removed.
func (a Album) without(key string) ([]string, bool) {
	if !a.Contains(key) {
		return a.MemberKeys, false
	}
	kept := make([]string, 0, len(a.MemberKeys))
	for _, k := range a.MemberKeys {
		if k != key {
			kept = append(kept, k)
		}
	}
	return kept, true
}

// SharedItem is one member of a shared album with a presigned read URL.
type SharedItem struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// SharedAlbum is the public view of an album resolved by share code.
type SharedAlbum struct {
	Name      string       `json:"name"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty"`
	Items     []SharedItem `json:"items"`
}
