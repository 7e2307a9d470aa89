// Package repotest holds the contract every adapter of a capability interface
// must satisfy. Adapter packages run these suites against their own backend
// (or a faithful fake of it), which keeps adapters substitutable.
package repotest

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/layered-api/internal/errs"
	"github.com/deppfellow/layered-api/internal/model"
	"github.com/deppfellow/layered-api/internal/repository"
)

// NewUser returns a user with a fresh id.
func NewUser(name, email string) *model.User {
	return &model.User{ID: uuid.NewString(), Name: name, Email: email}
}

// UserRepositoryContract runs the persistence contract. newRepo must return
// an empty repository each time it is called.
func UserRepositoryContract(t *testing.T, newRepo func(t *testing.T) repository.UserRepository) {
	ctx := context.Background()

	t.Run("create then find", func(t *testing.T) {
		repo := newRepo(t)
		created, err := repo.Create(ctx, NewUser("Ada", "ada@x.com"))
		require.NoError(t, err)
		assert.False(t, created.CreatedAt.IsZero())

		byID, err := repo.FindByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.Email, byID.Email)
		assert.Equal(t, created.Name, byID.Name)

		byEmail, err := repo.FindByEmail(ctx, "ada@x.com")
		require.NoError(t, err)
		assert.Equal(t, created.ID, byEmail.ID)
	})

	t.Run("missing user", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.FindByID(ctx, uuid.NewString())
		assert.Equal(t, errs.KindNotFound, errs.KindOf(err))

		_, err = repo.FindByEmail(ctx, "nobody@x.com")
		assert.Equal(t, errs.KindNotFound, errs.KindOf(err))

		err = repo.Delete(ctx, uuid.NewString())
		assert.Equal(t, errs.KindNotFound, errs.KindOf(err))

		_, err = repo.Update(ctx, NewUser("Ghost", "ghost@x.com"))
		assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
	})

	t.Run("duplicate email", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Create(ctx, NewUser("Ada", "ada@x.com"))
		require.NoError(t, err)

		_, err = repo.Create(ctx, NewUser("Other Ada", "ada@x.com"))
		assert.Equal(t, errs.KindConflict, errs.KindOf(err))
	})

	t.Run("email is case-insensitive", func(t *testing.T) {
		repo := newRepo(t)
		created, err := repo.Create(ctx, NewUser("Ada", "Ada@X.com"))
		require.NoError(t, err)

		_, err = repo.Create(ctx, NewUser("Other Ada", "ada@x.com"))
		assert.Equal(t, errs.KindConflict, errs.KindOf(err))

		found, err := repo.FindByEmail(ctx, "ADA@X.COM")
		require.NoError(t, err)
		assert.Equal(t, created.ID, found.ID)
		assert.Equal(t, "Ada@X.com", found.Email)
	})

	t.Run("find is idempotent", func(t *testing.T) {
		repo := newRepo(t)
		created, err := repo.Create(ctx, NewUser("Ada", "ada@x.com"))
		require.NoError(t, err)

		first, err1 := repo.FindByID(ctx, created.ID)
		second, err2 := repo.FindByID(ctx, created.ID)
		require.NoError(t, err1)
		require.NoError(t, err2)
		assert.Equal(t, first, second)
	})

	t.Run("update", func(t *testing.T) {
		repo := newRepo(t)
		ada, err := repo.Create(ctx, NewUser("Ada", "ada@x.com"))
		require.NoError(t, err)
		_, err = repo.Create(ctx, NewUser("Grace", "grace@x.com"))
		require.NoError(t, err)

		ada.Email = "grace@x.com"
		_, err = repo.Update(ctx, ada)
		assert.Equal(t, errs.KindConflict, errs.KindOf(err))

		ada.Email = "lovelace@x.com"
		ada.AvatarKey = "avatars/" + ada.ID
		updated, err := repo.Update(ctx, ada)
		require.NoError(t, err)
		assert.Equal(t, "lovelace@x.com", updated.Email)

		_, err = repo.FindByEmail(ctx, "ada@x.com")
		assert.Equal(t, errs.KindNotFound, errs.KindOf(err))

		found, err := repo.FindByEmail(ctx, "lovelace@x.com")
		require.NoError(t, err)
		assert.Equal(t, "avatars/"+ada.ID, found.AvatarKey)
	})

	t.Run("delete frees the email", func(t *testing.T) {
		repo := newRepo(t)
		ada, err := repo.Create(ctx, NewUser("Ada", "ada@x.com"))
		require.NoError(t, err)

		require.NoError(t, repo.Delete(ctx, ada.ID))
		_, err = repo.FindByID(ctx, ada.ID)
		assert.Equal(t, errs.KindNotFound, errs.KindOf(err))

		_, err = repo.Create(ctx, NewUser("Ada again", "ada@x.com"))
		assert.NoError(t, err)
	})

	t.Run("concurrent creates with the same email", func(t *testing.T) {
		repo := newRepo(t)
		const n = 8

		var wg sync.WaitGroup
		results := make([]error, n)
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, results[i] = repo.Create(ctx, NewUser("Racer", "race@x.com"))
			}()
		}
		wg.Wait()

		successes, conflicts := 0, 0
		for _, err := range results {
			switch errs.KindOf(err) {
			case "":
				successes++
			case errs.KindConflict:
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, successes)
		assert.Equal(t, n-1, conflicts)
	})
}

// FileRepositoryContract runs the file storage contract.
func FileRepositoryContract(t *testing.T, newRepo func(t *testing.T) repository.FileRepository) {
	ctx := context.Background()

	t.Run("put then get", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Put(ctx, "avatars/1", []byte("png-bytes"), "image/png"))

		f, err := repo.Get(ctx, "avatars/1")
		require.NoError(t, err)
		assert.Equal(t, "avatars/1", f.Key)
		assert.Equal(t, "image/png", f.ContentType)
		assert.Equal(t, []byte("png-bytes"), f.Data)
	})

	t.Run("put overwrites", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Put(ctx, "avatars/1", []byte("old"), "image/png"))
		require.NoError(t, repo.Put(ctx, "avatars/1", []byte("new"), "image/jpeg"))

		f, err := repo.Get(ctx, "avatars/1")
		require.NoError(t, err)
		assert.Equal(t, []byte("new"), f.Data)
		assert.Equal(t, "image/jpeg", f.ContentType)
	})

	t.Run("get is idempotent", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Put(ctx, "avatars/1", []byte("data"), "image/gif"))

		first, err1 := repo.Get(ctx, "avatars/1")
		second, err2 := repo.Get(ctx, "avatars/1")
		require.NoError(t, err1)
		require.NoError(t, err2)
		assert.Equal(t, first, second)
	})

	t.Run("missing object", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Get(ctx, "avatars/none")
		assert.Equal(t, errs.KindNotFound, errs.KindOf(err))

		err = repo.Delete(ctx, "avatars/none")
		assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
	})

	t.Run("delete", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Put(ctx, "avatars/1", []byte("data"), "image/png"))
		require.NoError(t, repo.Delete(ctx, "avatars/1"))

		_, err := repo.Get(ctx, "avatars/1")
		assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
	})
}
