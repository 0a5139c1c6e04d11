package interfaces

import (
	"context"
	"io"
	"time"
)

// SaveOptions controls how an object is placed into storage
type SaveOptions struct {
	ContentType string
	// OriginalName is used by the "original" naming strategy and as the
	// stem for timestamped names
	OriginalName string
}

// StoredObject describes a persisted object
type StoredObject struct {
	Path      string
	SizeBytes int64
	StoredAt  time.Time
}

// IObjectStorage stores binary payloads (uploaded PDFs, extracted page
// images) outside the document database
type IObjectStorage interface {
	Save(ctx context.Context, reader io.Reader, opts SaveOptions) (*StoredObject, error)
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	Exists(ctx context.Context, path string) (bool, error)
	Delete(ctx context.Context, path string) error
	Health(ctx context.Context) error
}
