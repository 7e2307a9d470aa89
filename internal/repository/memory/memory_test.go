package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/deppfellow/layered-api/internal/errs"
	"github.com/deppfellow/layered-api/internal/repository"
	"github.com/deppfellow/layered-api/internal/repository/memory"
	"github.com/deppfellow/layered-api/internal/repository/repotest"
)

func TestUserStoreContract(t *testing.T) {
	repotest.UserRepositoryContract(t, func(*testing.T) repository.UserRepository {
		return memory.NewUserStore()
	})
}

func TestFileStoreContract(t *testing.T) {
	repotest.FileRepositoryContract(t, func(*testing.T) repository.FileRepository {
		return memory.NewFileStore()
	})
}

func TestCancelledContextIsTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := memory.NewUserStore().FindByID(ctx, "x")
	assert.Equal(t, errs.KindTimeout, errs.KindOf(err))
}

func TestStoredCopiesAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := memory.NewUserStore()
	u := repotest.NewUser("Ada", "ada@x.com")

	created, err := store.Create(ctx, u)
	assert.NoError(t, err)
	created.Name = "changed"
	u.Name = "changed too"

	found, err := store.FindByID(ctx, u.ID)
	assert.NoError(t, err)
	assert.Equal(t, "Ada", found.Name)
	assert.Equal(t, 1, store.Len())
}
