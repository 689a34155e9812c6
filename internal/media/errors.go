package media

import "errors"

var (
	// ErrEmptyFilename is returned when an upload carries no filename.
	ErrEmptyFilename = errors.New("filename is required")
	// ErrUnsupportedContentType signals a content type outside the allow-list.
	ErrUnsupportedContentType = errors.New("unsupported content type")
	// ErrFileTooLarge signals that the upload exceeds the configured size limit.
	ErrFileTooLarge = errors.New("file too large")
)
