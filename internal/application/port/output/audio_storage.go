package output

import (
	"context"
	"time"
)

// AudioBlobMetadata describes one stored recording blob
type AudioBlobMetadata struct {
	Name        string // file name within the audio store
	StoragePath string // local path or s3://bucket/key
	Size        int64
	StoredAt    time.Time
}

// AudioStorage is where finished recordings live. The local implementation
// backs playback path resolution; the archive implementation (S3) keeps an
// off-device copy and is optional.
type AudioStorage interface {
	// Save stores content under name, overwriting any previous blob
	Save(ctx context.Context, name string, content []byte) (*AudioBlobMetadata, error)

	// Load reads a blob back by name
	Load(ctx context.Context, name string) ([]byte, error)

	// Resolve maps a relative blob name to an absolute local path, or
	// returns ErrFileMissing. Absolute inputs are verified as-is.
	Resolve(ctx context.Context, name string) (string, error)

	// Remove deletes a blob; removing a missing blob is not an error
	Remove(ctx context.Context, name string) error
}
