package album

import "errors"

var (
	// ErrDuplicateName indicates an album with the same name already exists.
	ErrDuplicateName = errors.New("album name already exists")
	// ErrAlbumNotFound signals a missing album, or a share code that is unknown or expired.
	ErrAlbumNotFound = errors.New("album not found")
	// ErrPersistenceUnavailable wraps failures of the relational store.
	ErrPersistenceUnavailable = errors.New("album persistence unavailable")

	errShareCodeTaken = errors.New("share code already in use")
)
