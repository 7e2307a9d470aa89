// Package localfs implements the file storage capability on a go-billy
// filesystem: the local disk in production, memfs in tests.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/deppfellow/layered-api/internal/errs"
	"github.com/deppfellow/layered-api/internal/model"
)

// typeSuffix names the sidecar holding an object's content type.
const typeSuffix = ".content-type"

// FileStore writes each object to <key> with its content type in a sidecar.
type FileStore struct {
	mu sync.RWMutex
	fs billy.Filesystem
}

// New returns a store over fs.
func New(fs billy.Filesystem) *FileStore {
	return &FileStore{fs: fs}
}

// NewOS returns a store rooted at dir on the local disk. Paths cannot escape
// the root.
func NewOS(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating file root %s: %w", dir, err)
	}
	return New(osfs.New(dir, osfs.WithBoundOS())), nil
}

func cleanKey(op, key string) (string, error) {
	k := path.Clean("/" + key)[1:]
	if k == "" || strings.HasSuffix(k, typeSuffix) {
		return "", errs.NewInternalError(op, fmt.Errorf("invalid object key %q", key))
	}
	return k, nil
}

func translate(op string, err error) error {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return errs.NewNotFoundError("File not found")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return errs.NewTimeoutError(op, err)
	}
	return errs.NewInternalError(op, err)
}

func (s *FileStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	const op = "localfs.put"
	if err := ctx.Err(); err != nil {
		return translate(op, err)
	}
	k, err := cleanKey(op, key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := path.Dir(k); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return translate(op, err)
		}
	}
	if err := util.WriteFile(s.fs, k, data, 0o644); err != nil {
		return translate(op, err)
	}
	if err := util.WriteFile(s.fs, k+typeSuffix, []byte(contentType), 0o644); err != nil {
		return translate(op, err)
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context, key string) (*model.File, error) {
	const op = "localfs.get"
	if err := ctx.Err(); err != nil {
		return nil, translate(op, err)
	}
	k, err := cleanKey(op, key)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := util.ReadFile(s.fs, k)
	if err != nil {
		return nil, translate(op, err)
	}
	contentType := "application/octet-stream"
	if ct, err := util.ReadFile(s.fs, k+typeSuffix); err == nil && len(ct) > 0 {
		contentType = string(ct)
	}
	return &model.File{Key: key, ContentType: contentType, Data: data}, nil
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	const op = "localfs.delete"
	if err := ctx.Err(); err != nil {
		return translate(op, err)
	}
	k, err := cleanKey(op, key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.Remove(k); err != nil {
		return translate(op, err)
	}
	if err := s.fs.Remove(k + typeSuffix); err != nil && !errors.Is(err, os.ErrNotExist) {
		return translate(op, err)
	}
	return nil
}
