// Package memory implements the persistence capability with process memory.
// It is the default binding for local development and the reference adapter
// in contract tests.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/deppfellow/layered-api/internal/errs"
	"github.com/deppfellow/layered-api/internal/model"
)

// UserStore keeps users in maps guarded by one RWMutex. The email index is
// updated under the same lock as the row, so uniqueness checks are atomic.
type UserStore struct {
	mu      sync.RWMutex
	byID    map[string]model.User
	byEmail map[string]string
	now     func() time.Time
}

// NewUserStore returns an empty store.
func NewUserStore() *UserStore {
	return &UserStore{
		byID:    make(map[string]model.User),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func emailKey(email string) string {
	return strings.ToLower(email)
}

func notFound() *errs.Error {
	return errs.NewNotFoundError("User not found")
}

func conflict() *errs.Error {
	return errs.NewConflictError("A user with this email already exists", "email")
}

func (s *UserStore) Create(ctx context.Context, user *model.User) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.NewTimeoutError("memory.users.create", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[user.ID]; exists {
		return nil, errs.NewConflictError("A user with this id already exists", "id")
	}
	if _, taken := s.byEmail[emailKey(user.Email)]; taken {
		return nil, conflict()
	}

	u := *user
	now := s.now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	s.byID[u.ID] = u
	s.byEmail[emailKey(u.Email)] = u.ID
	return &u, nil
}

func (s *UserStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.NewTimeoutError("memory.users.find_by_id", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, notFound()
	}
	return &u, nil
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.NewTimeoutError("memory.users.find_by_email", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[emailKey(email)]
	if !ok {
		return nil, notFound()
	}
	u := s.byID[id]
	return &u, nil
}

func (s *UserStore) Update(ctx context.Context, user *model.User) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.NewTimeoutError("memory.users.update", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[user.ID]
	if !ok {
		return nil, notFound()
	}
	newKey := emailKey(user.Email)
	if owner, taken := s.byEmail[newKey]; taken && owner != user.ID {
		return nil, conflict()
	}

	u := *user
	u.CreatedAt = current.CreatedAt
	u.UpdatedAt = s.now().UTC()

	delete(s.byEmail, emailKey(current.Email))
	s.byEmail[newKey] = u.ID
	s.byID[u.ID] = u
	return &u, nil
}

func (s *UserStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return errs.NewTimeoutError("memory.users.delete", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[id]
	if !ok {
		return notFound()
	}
	delete(s.byID, id)
	delete(s.byEmail, emailKey(u.Email))
	return nil
}

// Len reports how many users are stored.
func (s *UserStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
