package servicetags

import (
	"context"
	"io"
	"time"
)

// Fetcher fetches a URL and returns the body plus metadata.
// Non-2xx responses are reported as ErrNetwork.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// BlobStore writes artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Mirror copies a finished publish tree somewhere else and reports how many files it copied.
type Mirror interface {
	Mirror(ctx context.Context, root string) (int, error)
}

// Notifier announces a successful run and returns a message ID.
type Notifier interface {
	Notify(ctx context.Context, summary RunSummary) (string, error)
}

// Hasher computes digests for the run summary.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
