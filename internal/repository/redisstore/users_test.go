package redisstore_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/layered-api/internal/errs"
	"github.com/deppfellow/layered-api/internal/repository"
	"github.com/deppfellow/layered-api/internal/repository/redisstore"
	"github.com/deppfellow/layered-api/internal/repository/repotest"
)

func newStore(t *testing.T) (*miniredis.Miniredis, *redisstore.UserStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, redisstore.NewUserStore(rdb)
}

func TestUserStoreContract(t *testing.T) {
	repotest.UserRepositoryContract(t, func(t *testing.T) repository.UserRepository {
		_, store := newStore(t)
		return store
	})
}

func TestEmailIndexLayout(t *testing.T) {
	mr, store := newStore(t)
	u := repotest.NewUser("Ada", "Ada@X.com")

	_, err := store.Create(context.Background(), u)
	require.NoError(t, err)

	id, err := mr.Get("user:email:ada@x.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)
	assert.True(t, mr.Exists("user:"+u.ID))
}

func TestCorruptDocumentIsInternal(t *testing.T) {
	mr, store := newStore(t)
	require.NoError(t, mr.Set("user:broken", "{not json"))

	_, err := store.FindByID(context.Background(), "broken")
	assert.Equal(t, errs.KindInternal, errs.KindOf(err))
}

func TestServerDownIsUnavailable(t *testing.T) {
	mr, store := newStore(t)
	mr.Close()

	_, err := store.FindByID(context.Background(), "any")
	assert.Equal(t, errs.KindUnavailable, errs.KindOf(err))

	_, err = store.Create(context.Background(), repotest.NewUser("Ada", "ada@x.com"))
	assert.Equal(t, errs.KindUnavailable, errs.KindOf(err))

	assert.Equal(t, errs.KindUnavailable, errs.KindOf(store.Ping(context.Background())))
}

func TestClosedClientIsUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := redisstore.NewUserStore(rdb)
	require.NoError(t, rdb.Close())

	_, err := store.FindByEmail(context.Background(), "ada@x.com")
	assert.Equal(t, errs.KindUnavailable, errs.KindOf(err))
}

func TestCancelledContextIsTimeout(t *testing.T) {
	_, store := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.FindByID(ctx, "any")
	assert.Equal(t, errs.KindTimeout, errs.KindOf(err))
}
