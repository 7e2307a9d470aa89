// Package job provides background job processing using Asynq.
//
// Asynq is a Redis-backed job queue:
//   - JobService enqueues tasks (producer) and is bound as the TaskQueue.
//   - A worker server processes those tasks (consumer).
package job

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/deppfellow/layered-api/internal/config"
	"github.com/deppfellow/layered-api/internal/errs"
)

// JobService holds the Asynq client (enqueue) and server (worker execution).
type JobService struct {
	client *asynq.Client
	server *asynq.Server
	mux    *asynq.ServeMux
	mailer Mailer
	logger *zerolog.Logger
}

// NewJobService creates a JobService backed by the configured Redis.
//
// Queue weights give "critical" tasks the largest share of workers.
func NewJobService(logger *zerolog.Logger, cfg *config.Config, mailer Mailer) *JobService {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	concurrency := cfg.Jobs.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}

	j := &JobService{
		client: asynq.NewClient(redisOpt),
		mailer: mailer,
		logger: logger,
	}
	j.server = asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			"critical": 6,
			"default":  3,
			"low":      1,
		},
		Logger:   asynqLogger{logger},
		LogLevel: asynq.WarnLevel,
	})

	j.mux = asynq.NewServeMux()
	j.mux.HandleFunc(TaskWelcome, j.handleWelcomeEmailTask)

	return j
}

// Start runs the worker server in the background. It returns once the
// workers are started.
func (j *JobService) Start() error {
	j.logger.Info().Msg("Starting background job server")
	if err := j.server.Start(j.mux); err != nil {
		return fmt.Errorf("starting job server: %w", err)
	}
	return nil
}

// EnqueueWelcomeEmail schedules the welcome email for a new user. A Redis
// failure is reported as BackendUnavailable.
func (j *JobService) EnqueueWelcomeEmail(ctx context.Context, to, name string) error {
	task, err := NewWelcomeEmailTask(to, name)
	if err != nil {
		return errs.NewInternalError("job.welcome.encode", err)
	}

	info, err := j.client.EnqueueContext(ctx, task)
	if err != nil {
		return errs.NewUnavailableError("job.welcome.enqueue", err)
	}

	zerolog.Ctx(ctx).Debug().Str("task_id", info.ID).Str("queue", info.Queue).Msg("welcome email enqueued")
	return nil
}

// Close stops the workers, waiting for running tasks, and closes the client.
func (j *JobService) Close() error {
	j.logger.Info().Msg("Stopping background job server")
	j.server.Shutdown()
	return j.client.Close()
}

// NoopQueue is bound as the TaskQueue when background jobs are disabled.
type NoopQueue struct{}

// EnqueueWelcomeEmail drops the task.
func (NoopQueue) EnqueueWelcomeEmail(ctx context.Context, to, _ string) error {
	zerolog.Ctx(ctx).Debug().Str("to", to).Msg("background jobs disabled, welcome email skipped")
	return nil
}

// Close is a no-op.
func (NoopQueue) Close() error { return nil }

// asynqLogger routes asynq's internal logs into zerolog.
type asynqLogger struct {
	l *zerolog.Logger
}

func (a asynqLogger) Debug(args ...any) { a.l.Debug().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Info(args ...any)  { a.l.Info().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Warn(args ...any)  { a.l.Warn().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Error(args ...any) { a.l.Error().Msg(fmt.Sprint(args...)) }
func (a asynqLogger) Fatal(args ...any) { a.l.Fatal().Msg(fmt.Sprint(args...)) }
