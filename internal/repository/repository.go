// Package repository declares the capability interfaces the service layer
// depends on, and binds each one to a concrete adapter at startup.
//
// Every operation either returns its result or fails with one of the kinds
// in internal/errs (NotFound, ConflictAlreadyExists, BackendUnavailable,
// TimeoutError, InternalError). No backend-specific error type crosses these
// interfaces.
package repository

import (
	"context"

	"github.com/deppfellow/layered-api/internal/model"
)

// UserRepository persists users. Email is the unique key: Create and Update
// fail with ConflictAlreadyExists when another user holds the email, and the
// check is atomic with the write.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	Update(ctx context.Context, user *model.User) (*model.User, error)
	Delete(ctx context.Context, id string) error
}

// FileRepository stores opaque objects by key. Put overwrites.
type FileRepository interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) (*model.File, error)
	Delete(ctx context.Context, key string) error
}

// TaskQueue schedules background work.
type TaskQueue interface {
	EnqueueWelcomeEmail(ctx context.Context, to, name string) error
}

// Pinger is implemented by adapters whose backend can be health-checked.
type Pinger interface {
	Ping(ctx context.Context) error
}
