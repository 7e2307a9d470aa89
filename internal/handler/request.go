package handler

import "maps"

// Request is the transport-agnostic request envelope. It is immutable once
// built: every accessor returns a copy.
type Request struct {
	method  string
	path    string
	params  map[string]string
	body    map[string]any
	headers map[string]string
	query   map[string]string
}

// RequestOption sets an optional part of a Request.
type RequestOption func(*Request)

// WithParams sets the path parameters extracted by the router.
func WithParams(params map[string]string) RequestOption {
	return func(r *Request) { r.params = maps.Clone(params) }
}

// WithBody sets the decoded JSON body.
func WithBody(body map[string]any) RequestOption {
	return func(r *Request) { r.body = copyBody(body) }
}

// WithHeaders sets the request headers. Keys are kept as given.
func WithHeaders(headers map[string]string) RequestOption {
	return func(r *Request) { r.headers = maps.Clone(headers) }
}

// WithQuery sets the query parameters (first value per key).
func WithQuery(query map[string]string) RequestOption {
	return func(r *Request) { r.query = maps.Clone(query) }
}

func NewRequest(method, path string, opts ...RequestOption) Request {
	r := Request{method: method, path: path}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

func (r Request) Method() string { return r.method }
func (r Request) Path() string   { return r.path }

func (r Request) Param(name string) string  { return r.params[name] }
func (r Request) Header(name string) string { return r.headers[name] }

func (r Request) Params() map[string]string  { return cloneOrEmpty(r.params) }
func (r Request) Headers() map[string]string { return cloneOrEmpty(r.headers) }
func (r Request) Query() map[string]string   { return cloneOrEmpty(r.query) }

// Body returns a deep copy of the body.
func (r Request) Body() map[string]any {
	if r.body == nil {
		return map[string]any{}
	}
	return copyBody(r.body)
}

// Input is the raw input of the validation gate: the body merged with the path
// parameters. Path parameters win on conflicting keys.
func (r Request) Input() map[string]any {
	in := r.Body()
	for k, v := range r.params {
		in[k] = v
	}
	return in
}

func cloneOrEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return maps.Clone(m)
}

func copyBody(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyBody(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}
