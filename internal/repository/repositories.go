package repository

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/deppfellow/layered-api/internal/config"
	"github.com/deppfellow/layered-api/internal/errs"
	"github.com/deppfellow/layered-api/internal/lib/email"
	"github.com/deppfellow/layered-api/internal/lib/job"
	"github.com/deppfellow/layered-api/internal/repository/localfs"
	"github.com/deppfellow/layered-api/internal/repository/memory"
	"github.com/deppfellow/layered-api/internal/repository/postgres"
	"github.com/deppfellow/layered-api/internal/repository/redisstore"
	"github.com/deppfellow/layered-api/internal/repository/s3store"
	"github.com/deppfellow/layered-api/internal/server"
)

var (
	_ UserRepository = (*memory.UserStore)(nil)
	_ UserRepository = (*postgres.UserStore)(nil)
	_ UserRepository = (*redisstore.UserStore)(nil)
	_ FileRepository = (*memory.FileStore)(nil)
	_ FileRepository = (*localfs.FileStore)(nil)
	_ FileRepository = (*s3store.FileStore)(nil)
	_ TaskQueue      = (*job.JobService)(nil)
	_ TaskQueue      = job.NoopQueue{}

	_ Pinger = (*postgres.UserStore)(nil)
	_ Pinger = (*redisstore.UserStore)(nil)
	_ Pinger = (*s3store.FileStore)(nil)
)

// Repositories is the adapter binding: one adapter per capability interface,
// chosen from config at startup and never reassigned.
type Repositories struct {
	Users UserRepository
	Files FileRepository
	Tasks TaskQueue

	bindings map[string]string
	checks   map[string]Pinger
	closers  []io.Closer
}

// NewRepositories binds every capability interface. Connection pools come
// from s, which opened them according to the same config.
func NewRepositories(ctx context.Context, s *server.Server) (*Repositories, error) {
	cfg := s.Config
	r := &Repositories{
		bindings: make(map[string]string, 3),
		checks:   make(map[string]Pinger),
	}

	switch cfg.Storage.Persistence {
	case config.PersistencePostgres:
		if s.DB == nil {
			return nil, errors.New("postgres persistence bound without a database pool")
		}
		users := postgres.NewUserStore(s.DB.Pool)
		r.Users = users
		r.checks["database"] = users
	case config.PersistenceRedis:
		if s.Redis == nil {
			return nil, errors.New("redis persistence bound without a redis client")
		}
		users := redisstore.NewUserStore(s.Redis)
		r.Users = users
		r.checks["redis"] = users
	default:
		r.Users = memory.NewUserStore()
	}
	r.bindings["users"] = cfg.Storage.Persistence

	switch cfg.Storage.Files {
	case config.FilesS3:
		files, err := s3store.NewFromConfig(ctx, cfg.Storage.S3)
		if err != nil {
			return nil, fmt.Errorf("binding s3 file storage: %w", err)
		}
		r.Files = files
		r.checks["s3"] = files
	default:
		files, err := localfs.NewOS(cfg.Storage.Local.Root)
		if err != nil {
			return nil, fmt.Errorf("binding local file storage: %w", err)
		}
		r.Files = files
	}
	r.bindings["files"] = cfg.Storage.Files

	if cfg.Jobs.Enabled {
		jobs := job.NewJobService(s.Logger, cfg, email.NewClient(cfg, s.Logger))
		if err := jobs.Start(); err != nil {
			return nil, err
		}
		r.Tasks = jobs
		r.closers = append(r.closers, jobs)
		r.bindings["tasks"] = "asynq"
		if _, ok := r.checks["redis"]; !ok && s.Redis != nil {
			r.checks["redis"] = pingFunc(func(ctx context.Context) error {
				if err := s.Redis.Ping(ctx).Err(); err != nil {
					return errs.NewUnavailableError("redis.ping", err)
				}
				return nil
			})
		}
	} else {
		r.Tasks = job.NoopQueue{}
		r.bindings["tasks"] = "noop"
	}

	s.Logger.Info().
		Str("users", r.bindings["users"]).
		Str("files", r.bindings["files"]).
		Str("tasks", r.bindings["tasks"]).
		Msg("adapter bindings established")

	return r, nil
}

// NewStatic binds the given adapters directly. Used by tests and tools that
// do not need config-driven wiring.
func NewStatic(users UserRepository, files FileRepository, tasks TaskQueue) *Repositories {
	return &Repositories{
		Users:    users,
		Files:    files,
		Tasks:    tasks,
		bindings: map[string]string{"users": "static", "files": "static", "tasks": "static"},
		checks:   map[string]Pinger{},
	}
}

// Bindings names the adapter bound to each interface.
func (r *Repositories) Bindings() map[string]string {
	out := make(map[string]string, len(r.bindings))
	for k, v := range r.bindings {
		out[k] = v
	}
	return out
}

// Checks returns the health checks of bound backends, keyed by backend.
func (r *Repositories) Checks() map[string]Pinger {
	out := make(map[string]Pinger, len(r.checks))
	for k, v := range r.checks {
		out[k] = v
	}
	return out
}

// Close releases resources owned by the bindings themselves. Shared pools are
// closed by the server.
func (r *Repositories) Close() error {
	var errList []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errList = append(errList, err)
		}
	}
	r.closers = nil
	return errors.Join(errList...)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }
