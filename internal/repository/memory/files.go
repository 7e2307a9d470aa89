package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/deppfellow/layered-api/internal/errs"
	"github.com/deppfellow/layered-api/internal/model"
)

// FileStore keeps objects in a map. Stored bytes are copied on the way in and
// out.
type FileStore struct {
	mu    sync.RWMutex
	files map[string]model.File
}

func NewFileStore() *FileStore {
	return &FileStore{files: make(map[string]model.File)}
}

func (s *FileStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return errs.NewTimeoutError("memory.files.put", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[key] = model.File{Key: key, ContentType: contentType, Data: slices.Clone(data)}
	return nil
}

func (s *FileStore) Get(ctx context.Context, key string) (*model.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.NewTimeoutError("memory.files.get", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[key]
	if !ok {
		return nil, errs.NewNotFoundError("File not found")
	}
	f.Data = slices.Clone(f.Data)
	return &f, nil
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return errs.NewTimeoutError("memory.files.delete", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[key]; !ok {
		return errs.NewNotFoundError("File not found")
	}
	delete(s.files, key)
	return nil
}

// Len returns the number of stored objects.
func (s *FileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}
