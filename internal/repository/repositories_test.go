package repository_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/deppfellow/layered-api/internal/config"
	"github.com/deppfellow/layered-api/internal/errs"
	"github.com/deppfellow/layered-api/internal/lib/job"
	"github.com/deppfellow/layered-api/internal/model"
	"github.com/deppfellow/layered-api/internal/repository"
	"github.com/deppfellow/layered-api/internal/repository/localfs"
	"github.com/deppfellow/layered-api/internal/repository/memory"
	"github.com/deppfellow/layered-api/internal/repository/redisstore"
	"github.com/deppfellow/layered-api/internal/server"
)

func testServer(t *testing.T, cfg *config.Config) *server.Server {
	t.Helper()
	logger := zerolog.Nop()
	return &server.Server{Config: cfg, Logger: &logger}
}

func TestNewRepositoriesMemoryBinding(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{
		Persistence: config.PersistenceMemory,
		Files:       config.FilesLocal,
		Local:       config.LocalFileConfig{Root: t.TempDir()},
	}}

	repos, err := repository.NewRepositories(context.Background(), testServer(t, cfg))
	require.NoError(t, err)
	defer repos.Close()

	assert.IsType(t, &memory.UserStore{}, repos.Users)
	assert.IsType(t, &localfs.FileStore{}, repos.Files)
	assert.IsType(t, job.NoopQueue{}, repos.Tasks)
	assert.Equal(t, map[string]string{"users": "memory", "files": "local", "tasks": "noop"}, repos.Bindings())
	assert.Empty(t, repos.Checks())
}

func TestNewRepositoriesRedisBinding(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{Storage: config.StorageConfig{
		Persistence: config.PersistenceRedis,
		Files:       config.FilesLocal,
		Local:       config.LocalFileConfig{Root: t.TempDir()},
	}}
	s := testServer(t, cfg)
	s.Redis = rdb

	repos, err := repository.NewRepositories(context.Background(), s)
	require.NoError(t, err)

	assert.IsType(t, &redisstore.UserStore{}, repos.Users)
	require.Contains(t, repos.Checks(), "redis")
	assert.NoError(t, repos.Checks()["redis"].Ping(context.Background()))
}

func TestNewRepositoriesRequiresPools(t *testing.T) {
	for _, driver := range []string{config.PersistencePostgres, config.PersistenceRedis} {
		cfg := &config.Config{Storage: config.StorageConfig{Persistence: driver, Files: config.FilesLocal}}
		_, err := repository.NewRepositories(context.Background(), testServer(t, cfg))
		assert.Error(t, err, driver)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	repos := repository.NewStatic(memory.NewUserStore(), memory.NewFileStore(), job.NoopQueue{})
	assert.NoError(t, repos.Close())
	assert.NoError(t, repos.Close())
}

// TestAdaptersAreSubstitutable drives the same random operation sequence
// through every persistence adapter and requires identical outcome kinds.
func TestAdaptersAreSubstitutable(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		mr := miniredis.NewMiniRedis()
		if err := mr.Start(); err != nil {
			rt.Fatalf("miniredis: %v", err)
		}
		defer mr.Close()
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer rdb.Close()

		adapters := map[string]repository.UserRepository{
			"memory": memory.NewUserStore(),
			"redis":  redisstore.NewUserStore(rdb),
		}

		ids := []string{"0b7c8c0e-1d7a-4f0e-9a51-2f4b9c6f0a01", "0b7c8c0e-1d7a-4f0e-9a51-2f4b9c6f0a02", "0b7c8c0e-1d7a-4f0e-9a51-2f4b9c6f0a03"}
		emails := []string{"a@x.com", "b@x.com", "c@x.com"}
		ctx := context.Background()

		steps := rapid.IntRange(1, 25).Draw(rt, "steps")
		for i := range steps {
			op := rapid.SampledFrom([]string{"create", "find", "find_email", "update", "delete"}).Draw(rt, "op")
			id := rapid.SampledFrom(ids).Draw(rt, "id")
			email := rapid.SampledFrom(emails).Draw(rt, "email")

			outcomes := map[string]errs.Kind{}
			for name, repo := range adapters {
				var err error
				user := &model.User{ID: id, Name: "n", Email: email}
				switch op {
				case "create":
					_, err = repo.Create(ctx, user)
				case "find":
					_, err = repo.FindByID(ctx, id)
				case "find_email":
					_, err = repo.FindByEmail(ctx, email)
				case "update":
					_, err = repo.Update(ctx, user)
				case "delete":
					err = repo.Delete(ctx, id)
				}
				outcomes[name] = errs.KindOf(err)
			}
			if outcomes["memory"] != outcomes["redis"] {
				rt.Fatalf("step %d %s(%s, %s): memory=%q redis=%q", i, op, id, email, outcomes["memory"], outcomes["redis"])
			}
		}
	})
}

func TestFileAdaptersAreSubstitutable(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		adapters := map[string]repository.FileRepository{
			"memory":  memory.NewFileStore(),
			"localfs": localfs.New(memfs.New()),
		}
		ctx := context.Background()

		steps := rapid.IntRange(1, 20).Draw(rt, "steps")
		for i := range steps {
			op := rapid.SampledFrom([]string{"put", "get", "delete"}).Draw(rt, "op")
			key := rapid.SampledFrom([]string{"avatars/a", "avatars/b"}).Draw(rt, "key")

			outcomes := map[string]errs.Kind{}
			for name, repo := range adapters {
				var err error
				switch op {
				case "put":
					err = repo.Put(ctx, key, []byte(key), "image/png")
				case "get":
					_, err = repo.Get(ctx, key)
				case "delete":
					err = repo.Delete(ctx, key)
				}
				outcomes[name] = errs.KindOf(err)
			}
			if outcomes["memory"] != outcomes["localfs"] {
				rt.Fatalf("step %d %s(%s): %v", i, op, key, outcomes)
			}
		}
	})
}
