package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/newrelic/go-agent/v3/integrations/nrpkgerrors"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/deppfellow/layered-api/internal/errs"
	"github.com/deppfellow/layered-api/internal/metrics"
	"github.com/deppfellow/layered-api/internal/validation"
)

// Operation is the business step of an endpoint. It only ever sees input that
// passed the endpoint's schema.
type Operation func(ctx context.Context, req Request, in *validation.Input) (Result, error)

// Endpoint binds a schema to an operation.
type Endpoint struct {
	// Name identifies the endpoint in logs, metrics and the OpenAPI document,
	// e.g. "users.register".
	Name string

	Schema    *validation.Schema
	Operation Operation

	// SuccessStatus is used when the operation leaves Result.Status unset.
	// Defaults to 200.
	SuccessStatus int
}

func (ep Endpoint) successStatus() int {
	if ep.SuccessStatus == 0 {
		return http.StatusOK
	}
	return ep.SuccessStatus
}

// Controller runs endpoints. It is safe for concurrent use.
type Controller struct {
	statuses errs.StatusMap
	timeout  time.Duration
	metrics  *metrics.Metrics
	logger   *zerolog.Logger
}

// NewController builds a Controller. A zero timeout disables the deadline;
// m may be nil.
func NewController(statuses errs.StatusMap, timeout time.Duration, m *metrics.Metrics, logger *zerolog.Logger) *Controller {
	if statuses == nil {
		statuses = errs.DefaultStatuses()
	}
	return &Controller{
		statuses: statuses,
		timeout:  timeout,
		metrics:  m,
		logger:   logger,
	}
}

type outcome struct {
	result Result
	err    error
}

// Dispatch validates the request input against ep.Schema, runs ep.Operation
// under the request deadline and returns exactly one Result.
//
// Validation failures never reach the operation. When the deadline expires
// first, the Result is a TimeoutError and whatever the operation returns
// later is dropped.
func (c *Controller) Dispatch(ctx context.Context, ep Endpoint, req Request) Result {
	start := time.Now()
	logger := c.requestLogger(ctx).With().
		Str("operation", "dispatch").
		Str("endpoint", ep.Name).
		Logger()
	ctx = logger.WithContext(ctx)

	txn := newrelic.FromContext(ctx)
	if txn != nil {
		txn.AddAttribute("handler.name", ep.Name)
	}

	result, err := c.dispatch(ctx, ep, req, txn)
	if err != nil {
		result = c.failure(ctx, ep.Name, err)
	} else if result.Status == 0 {
		result.Status = ep.successStatus()
	}

	elapsed := time.Since(start)
	c.metrics.Observe(ep.Name, req.Method(), string(errs.KindOf(err)), elapsed)
	if txn != nil {
		txn.AddAttribute("total.duration_ms", elapsed.Milliseconds())
	}

	logger.Debug().
		Int("status", result.Status).
		Dur("total_duration", elapsed).
		Msg("request dispatched")

	return result
}

func (c *Controller) dispatch(ctx context.Context, ep Endpoint, req Request, txn *newrelic.Transaction) (Result, error) {
	logger := zerolog.Ctx(ctx)
	op := "handler." + ep.Name

	if ep.Schema == nil || ep.Operation == nil {
		return Result{}, errs.NewInternalError(op, errors.New("endpoint has no schema or operation"))
	}

	validationStart := time.Now()
	in, err := ep.Schema.Validate(req.Input())
	validationDuration := time.Since(validationStart)
	if txn != nil {
		txn.AddAttribute("validation.duration_ms", validationDuration.Milliseconds())
	}
	if err != nil {
		if txn != nil {
			txn.AddAttribute("validation.status", "failed")
		}
		return Result{}, err
	}
	if txn != nil {
		txn.AddAttribute("validation.status", "success")
	}
	logger.Debug().Dur("validation_duration", validationDuration).Msg("request validation successful")

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	// buffered so a late operation never blocks after the deadline won
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: errs.NewInternalError(op, errors.WithStack(fmt.Errorf("panic: %v", r)))}
			}
		}()
		res, err := ep.Operation(ctx, req, in)
		done <- outcome{result: res, err: err}
	}()

	handlerStart := time.Now()
	select {
	case o := <-done:
		if txn != nil {
			txn.AddAttribute("handler.duration_ms", time.Since(handlerStart).Milliseconds())
		}
		return o.result, o.err
	case <-ctx.Done():
		logger.Warn().
			Dur("handler_duration", time.Since(handlerStart)).
			Msg("request deadline expired before the operation returned")
		return Result{}, errs.NewTimeoutError(op, ctx.Err())
	}
}

// Fail turns err into an error Result without running any endpoint. The
// router uses it for requests that never resolve to one.
func (c *Controller) Fail(ctx context.Context, route, method string, err error) Result {
	start := time.Now()
	result := c.failure(ctx, route, err)
	c.metrics.Observe(route, method, string(errs.KindOf(err)), time.Since(start))
	return result
}

func (c *Controller) failure(ctx context.Context, name string, err error) Result {
	kind := errs.KindOf(err)
	status := c.statuses.Status(kind)
	logger := c.requestLogger(ctx)

	switch {
	case kind == errs.KindInternal:
		logger.Error().Stack().
			Err(err).
			Str("endpoint", name).
			Str("kind", string(kind)).
			Int("status", status).
			Msg("internal error")
		if txn := newrelic.FromContext(ctx); txn != nil {
			txn.NoticeError(nrpkgerrors.Wrap(err))
		}
	case status >= http.StatusInternalServerError:
		logger.Warn().
			Err(err).
			Str("endpoint", name).
			Str("kind", string(kind)).
			Int("status", status).
			Msg("request failed")
		if txn := newrelic.FromContext(ctx); txn != nil {
			txn.NoticeError(nrpkgerrors.Wrap(err))
		}
	default:
		logger.Info().
			Err(err).
			Str("endpoint", name).
			Str("kind", string(kind)).
			Int("status", status).
			Msg("request rejected")
	}

	return Result{Status: status, Body: errs.Describe(err)}
}

// requestLogger prefers the request-scoped logger installed by middleware.
func (c *Controller) requestLogger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	if c.logger != nil {
		return c.logger
	}
	nop := zerolog.Nop()
	return &nop
}
