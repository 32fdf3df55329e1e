// Package storage holds the media-object store collaborators backing
// contribution file attachments.
package storage

import (
	"context"
	"io"
)

// UploadResult identifies a stored media object.
type UploadResult struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
	Bytes    int64  `json:"bytes,omitempty"`
}

// MediaStore is the narrow contract the admin console needs from whichever
// media host is configured.
type MediaStore interface {
	Upload(ctx context.Context, file io.Reader, filename, contentType, folder string) (*UploadResult, error)

	// Delete is best effort: implementations without deletion credentials
	// report the skip instead of failing the surrounding operation.
	Delete(ctx context.Context, publicID string) error
}
