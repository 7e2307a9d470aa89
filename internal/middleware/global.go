package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/deppfellow/layered-api/internal/errs"
	"github.com/deppfellow/layered-api/internal/server"
)

// GlobalMiddlewares groups the middleware every route gets, plus the global
// error handler.
type GlobalMiddlewares struct {
	server   *server.Server
	statuses errs.StatusMap
}

func NewGlobalMiddlewares(s *server.Server, statuses errs.StatusMap) *GlobalMiddlewares {
	if statuses == nil {
		statuses = errs.DefaultStatuses()
	}
	return &GlobalMiddlewares{
		server:   s,
		statuses: statuses,
	}
}

func (global *GlobalMiddlewares) CORS() echo.MiddlewareFunc {
	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: global.server.Config.Server.CORSAllowedOrigins,
	})
}

// RequestLogger writes one "API" line per request. When a handler returned an
// error the response is not written yet, so the status is derived from the
// error the same way GlobalErrorHandler derives it.
func (global *GlobalMiddlewares) RequestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogError:   true,
		LogLatency: true,
		LogHost:    true,
		LogMethod:  true,
		LogURIPath: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			statusCode := v.Status
			if v.Error != nil {
				statusCode, _ = global.describe(v.Error)
			}

			logger := GetLogger(c)

			var e *zerolog.Event
			switch {
			case statusCode >= 500:
				e = logger.Error().Err(v.Error)
			case statusCode >= 400:
				e = logger.Warn()
			default:
				e = logger.Info()
			}

			e.
				Dur("latency", v.Latency).
				Int("status", statusCode).
				Str("method", v.Method).
				Str("uri", v.URI).
				Str("host", v.Host).
				Str("user_agent", c.Request().UserAgent()).
				Msg("API")

			return nil
		},
	})
}

func (global *GlobalMiddlewares) Recover() echo.MiddlewareFunc {
	return middleware.Recover()
}

func (global *GlobalMiddlewares) Secure() echo.MiddlewareFunc {
	return middleware.Secure()
}

// BodyLimit caps request bodies. Avatars arrive base64-encoded in JSON.
func (global *GlobalMiddlewares) BodyLimit() echo.MiddlewareFunc {
	return middleware.BodyLimit("4M")
}

// GlobalErrorHandler is the last funnel for errors that escape a handler. It
// writes the same Descriptor body the controller writes.
func (global *GlobalMiddlewares) GlobalErrorHandler(err error, c echo.Context) {
	status, descriptor := global.describe(err)

	logger := GetLogger(c)
	event := logger.Warn()
	if descriptor.Kind == errs.KindInternal {
		event = logger.Error().Stack()
	}
	event.
		Err(err).
		Int("status", status).
		Str("kind", string(descriptor.Kind)).
		Msg(descriptor.Message)

	if c.Response().Committed {
		return
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	_ = c.JSON(status, descriptor)
}

// describe maps any error onto a status and Descriptor. Echo's own errors
// (unknown route, malformed body, auth failures) keep their status.
func (global *GlobalMiddlewares) describe(err error) (int, errs.Descriptor) {
	var echoErr *echo.HTTPError
	var appErr *errs.Error
	if errors.As(err, &echoErr) && !errors.As(err, &appErr) {
		message := http.StatusText(echoErr.Code)
		if msg, ok := echoErr.Message.(string); ok && echoErr.Code < 500 {
			message = msg
		}
		if echoErr.Code == http.StatusNotFound {
			message = "Route not found"
		}
		return echoErr.Code, errs.Descriptor{Kind: kindForStatus(echoErr.Code), Message: message}
	}

	d := errs.Describe(err)
	return global.statuses.Status(d.Kind), d
}

func kindForStatus(status int) errs.Kind {
	switch {
	case status == http.StatusNotFound, status == http.StatusMethodNotAllowed:
		return errs.KindNotFound
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return errs.KindTimeout
	case status == http.StatusServiceUnavailable:
		return errs.KindUnavailable
	case status >= 500:
		return errs.KindInternal
	case status == http.StatusBadRequest, status == http.StatusRequestEntityTooLarge, status == http.StatusUnsupportedMediaType:
		return errs.KindValidation
	default:
		return errs.KindService
	}
}
