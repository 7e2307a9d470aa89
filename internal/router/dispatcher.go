package router

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/deppfellow/layered-api/internal/errs"
	"github.com/deppfellow/layered-api/internal/handler"
)

// Dispatcher adapts Echo requests to the registry and the controller.
type Dispatcher struct {
	registry   *Registry
	controller *handler.Controller
}

func NewDispatcher(reg *Registry, c *handler.Controller) *Dispatcher {
	return &Dispatcher{registry: reg, controller: c}
}

// Handle resolves the request, builds the request envelope and writes the
// controller's Result. Unresolved requests are answered without reading the
// body or reaching any endpoint.
func (d *Dispatcher) Handle(c echo.Context) error {
	req := c.Request()
	ctx := req.Context()

	m, err := d.registry.Resolve(req.Method, req.URL.EscapedPath())
	if err != nil {
		return write(c, d.controller.Fail(ctx, "unmatched", req.Method, err))
	}

	body, err := decodeBody(req)
	if err != nil {
		return write(c, d.controller.Fail(ctx, m.Endpoint.Name, req.Method, err))
	}

	envelope := handler.NewRequest(req.Method, req.URL.Path,
		handler.WithParams(m.Params),
		handler.WithBody(body),
		handler.WithHeaders(firstValues(req.Header)),
		handler.WithQuery(firstValues(req.URL.Query())),
	)

	return write(c, d.controller.Dispatch(ctx, m.Endpoint, envelope))
}

// decodeBody reads a JSON object body. An empty body is an empty object.
func decodeBody(req *http.Request) (map[string]any, error) {
	if req.Body == nil || req.ContentLength == 0 {
		return nil, nil
	}
	ct := req.Header.Get(echo.HeaderContentType)
	if ct != "" && !strings.HasPrefix(ct, echo.MIMEApplicationJSON) {
		return nil, errs.NewValidationError(map[string]string{"body": "must be application/json"})
	}

	var body map[string]any
	dec := json.NewDecoder(req.Body)
	err := dec.Decode(&body)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err == nil {
		// exactly one JSON value; anything after it is malformed
		var trailing json.RawMessage
		if err = dec.Decode(&trailing); errors.Is(err, io.EOF) {
			return body, nil
		}
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) || errors.Is(err, echo.ErrStatusRequestEntityTooLarge) {
		return nil, errs.NewValidationError(map[string]string{"body": "is too large"})
	}
	return nil, errs.NewValidationError(map[string]string{"body": "must be a JSON object"})
}

func firstValues(values map[string][]string) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func write(c echo.Context, res handler.Result) error {
	switch {
	case res.Raw != nil:
		return c.Blob(res.Status, res.ContentType, res.Raw)
	case res.Body != nil:
		return c.JSON(res.Status, res.Body)
	default:
		return c.NoContent(res.Status)
	}
}
