// Package redisstore implements the persistence capability on Redis.
//
// Users are JSON documents at user:<id>. The unique email index lives at
// user:email:<email> and is claimed with SETNX, so two concurrent creates for
// the same email cannot both succeed.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/deppfellow/layered-api/internal/errs"
	"github.com/deppfellow/layered-api/internal/model"
)

// maxTxAttempts bounds optimistic transaction retries on concurrent writes
// to the same user.
const maxTxAttempts = 3

// UserStore stores users in Redis. The client is owned by the server and
// closed there.
type UserStore struct {
	rdb redis.UniversalClient
	now func() time.Time
}

func NewUserStore(rdb redis.UniversalClient) *UserStore {
	return &UserStore{rdb: rdb, now: time.Now}
}

func userKey(id string) string {
	return "user:" + id
}

func emailKey(email string) string {
	return "user:email:" + strings.ToLower(email)
}

func notFound() error {
	return errs.NewNotFoundError("User not found")
}

func emailConflict() error {
	return errs.NewConflictError("A user with this email already exists", "email")
}

// translate maps go-redis failures into the errs taxonomy.
func translate(op string, err error) error {
	var appErr *errs.Error
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, redis.Nil):
		return notFound()
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return errs.NewTimeoutError(op, err)
	case isConnectionError(err):
		return errs.NewUnavailableError(op, err)
	}
	return errs.NewInternalError(op, err)
}

func isConnectionError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, redis.ErrClosed) ||
		errors.Is(err, redis.TxFailedErr) ||
		strings.HasPrefix(err.Error(), "LOADING")
}

func (s *UserStore) Create(ctx context.Context, user *model.User) (*model.User, error) {
	const op = "redis.users.create"

	u := *user
	now := s.now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	doc, err := json.Marshal(u)
	if err != nil {
		return nil, errs.NewInternalError(op, err)
	}

	claimed, err := s.rdb.SetNX(ctx, emailKey(u.Email), u.ID, 0).Result()
	if err != nil {
		return nil, translate(op, err)
	}
	if !claimed {
		return nil, emailConflict()
	}

	stored, err := s.rdb.SetNX(ctx, userKey(u.ID), doc, 0).Result()
	if err != nil || !stored {
		// release the claim so the email stays usable
		s.rdb.Del(context.WithoutCancel(ctx), emailKey(u.Email))
		if err != nil {
			return nil, translate(op, err)
		}
		return nil, errs.NewConflictError("A user with this id already exists", "id")
	}
	return &u, nil
}

func (s *UserStore) get(ctx context.Context, getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}, id string) (*model.User, error) {
	raw, err := getter.Get(ctx, userKey(id)).Bytes()
	if err != nil {
		return nil, err
	}
	var u model.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, errs.NewInternalError("redis.users.decode", err)
	}
	return &u, nil
}

func (s *UserStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	u, err := s.get(ctx, s.rdb, id)
	if err != nil {
		return nil, translate("redis.users.find_by_id", err)
	}
	return u, nil
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	id, err := s.rdb.Get(ctx, emailKey(email)).Result()
	if err != nil {
		return nil, translate("redis.users.find_by_email", err)
	}
	return s.FindByID(ctx, id)
}

// Update replaces the user inside a WATCH transaction. A changed email is
// claimed before the transaction and released again if the write fails.
func (s *UserStore) Update(ctx context.Context, user *model.User) (*model.User, error) {
	const op = "redis.users.update"

	var updated *model.User
	txn := func(tx *redis.Tx) error {
		current, err := s.get(ctx, tx, user.ID)
		if err != nil {
			return err
		}

		u := *user
		u.CreatedAt = current.CreatedAt
		u.UpdatedAt = s.now().UTC()
		doc, err := json.Marshal(u)
		if err != nil {
			return errs.NewInternalError(op, err)
		}

		oldEmail, newEmail := emailKey(current.Email), emailKey(u.Email)
		claimedNew := false
		if newEmail != oldEmail {
			ok, err := tx.SetNX(ctx, newEmail, u.ID, 0).Result()
			if err != nil {
				return err
			}
			if !ok {
				return emailConflict()
			}
			claimedNew = true
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, userKey(u.ID), doc, 0)
			if claimedNew {
				pipe.Del(ctx, oldEmail)
			}
			return nil
		})
		if err != nil {
			if claimedNew {
				s.rdb.Del(context.WithoutCancel(ctx), newEmail)
			}
			return err
		}
		updated = &u
		return nil
	}

	var err error
	for range maxTxAttempts {
		err = s.rdb.Watch(ctx, txn, userKey(user.ID))
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return nil, translate(op, err)
	}
	return updated, nil
}

func (s *UserStore) Delete(ctx context.Context, id string) error {
	const op = "redis.users.delete"

	txn := func(tx *redis.Tx) error {
		current, err := s.get(ctx, tx, id)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, userKey(id))
			pipe.Del(ctx, emailKey(current.Email))
			return nil
		})
		return err
	}

	var err error
	for range maxTxAttempts {
		err = s.rdb.Watch(ctx, txn, userKey(id))
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return translate(op, err)
	}
	return nil
}

// Ping checks the Redis connection.
func (s *UserStore) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return translate("redis.ping", err)
	}
	return nil
}
