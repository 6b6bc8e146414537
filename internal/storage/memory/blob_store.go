// Package memory is an in-memory servicetags.BlobStore test double. Production code writes
// through storage/local; tests use this store to inspect writes and inject write failures.
package memory

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/JakeFAU/servicetags-publisher/internal/servicetags"
)

// Object is one stored artifact.
type Object struct {
	ContentType string
	Data        []byte
}

// BlobStore stores artifacts in-memory and returns pseudo URIs.
type BlobStore struct {
	mu      sync.RWMutex
	objects map[string]Object
	// failAfter, when >= 0, makes every write after that many successes fail with ErrIO.
	failAfter int
	writes    int
}

// NewBlobStore creates a new in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{objects: make(map[string]Object), failAfter: -1}
}

// FailAfter makes the store reject writes once n writes have succeeded.
func (s *BlobStore) FailAfter(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAfter = n
}

// PutObject persists the content and returns a URI.
func (s *BlobStore) PutObject(_ context.Context, path string, contentType string, data io.Reader) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failAfter >= 0 && s.writes >= s.failAfter {
		return "", fmt.Errorf("%w: memory store rejected %s", servicetags.ErrIO, path)
	}
	byteData, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read data from reader: %w", servicetags.ErrIO, err)
	}

	s.objects[path] = Object{ContentType: contentType, Data: append([]byte(nil), byteData...)}
	s.writes++
	return fmt.Sprintf("memory://%s", path), nil
}

// Get returns the object stored at path.
func (s *BlobStore) Get(path string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[path]
	return obj, ok
}

// Paths lists every stored path in sorted order.
func (s *BlobStore) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.objects))
	for p := range s.objects {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
