package blob

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"

	ierr "go-firestore-admin/internal/errors"
)

const memoryScheme = "mem://"

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps objects in a map. Failures can be injected with FailPuts and FailDeletes.
type MemoryStore struct {
	mu        sync.RWMutex
	objects   map[string][]byte
	putErr    error
	deleteErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (s *MemoryStore) Put(ctx context.Context, key string, r io.Reader, onProgress func(int64)) (string, error) {
	s.mu.RLock()
	putErr := s.putErr
	s.mu.RUnlock()
	if putErr != nil {
		return "", &ierr.StorageError{Op: "put", Key: key, Err: putErr}
	}
	if err := ctx.Err(); err != nil {
		return "", &ierr.StorageError{Op: "put", Key: key, Err: err}
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, &progressReader{r: r, onProgress: onProgress}); err != nil {
		return "", &ierr.StorageError{Op: "put", Key: key, Err: err}
	}

	s.mu.Lock()
	s.objects[key] = buf.Bytes()
	s.mu.Unlock()

	return memoryScheme + key, nil
}

func (s *MemoryStore) Delete(ctx context.Context, url string) error {
	key := strings.TrimPrefix(url, memoryScheme)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deleteErr != nil {
		return &ierr.StorageError{Op: "delete", Key: key, Err: s.deleteErr}
	}
	delete(s.objects, key)
	return nil
}

func (s *MemoryStore) Has(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[strings.TrimPrefix(url, memoryScheme)]
	return ok
}

func (s *MemoryStore) Get(url string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[strings.TrimPrefix(url, memoryScheme)]
	return data, ok
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

func (s *MemoryStore) FailPuts(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putErr = err
}

func (s *MemoryStore) FailDeletes(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteErr = err
}
