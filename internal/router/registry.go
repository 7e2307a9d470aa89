package router

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/deppfellow/layered-api/internal/errs"
	"github.com/deppfellow/layered-api/internal/handler"
)

// ErrFrozen is returned by Register once the registry serves requests.
var ErrFrozen = errors.New("route registry is frozen")

var methods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
}

// Match is the result of a successful Resolve.
type Match struct {
	Method   string
	Pattern  string
	Endpoint handler.Endpoint
	Params   map[string]string
}

type route struct {
	method   string
	pattern  string
	segments []string
	endpoint handler.Endpoint
}

// Registry maps (method, path pattern) pairs to endpoints. Patterns are
// "/"-separated; a segment starting with ":" is a parameter. No two
// registered patterns can match the same request, so Resolve never has to
// pick between candidates.
type Registry struct {
	mu     sync.RWMutex
	routes []route
	frozen bool
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a route. It fails on unknown methods, malformed patterns,
// incomplete endpoints, patterns overlapping an existing one, and after
// Freeze.
func (r *Registry) Register(method, pattern string, ep handler.Endpoint) error {
	method = strings.ToUpper(method)
	if !methods[method] {
		return fmt.Errorf("register %s %s: unsupported method", method, pattern)
	}
	segments, err := parsePattern(pattern)
	if err != nil {
		return fmt.Errorf("register %s %s: %w", method, pattern, err)
	}
	if ep.Name == "" || ep.Schema == nil || ep.Operation == nil {
		return fmt.Errorf("register %s %s: endpoint needs a name, a schema and an operation", method, pattern)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("register %s %s: %w", method, pattern, ErrFrozen)
	}
	for _, existing := range r.routes {
		if existing.method == method && overlaps(existing.segments, segments) {
			return fmt.Errorf("register %s %s: overlaps %s %s", method, pattern, existing.method, existing.pattern)
		}
	}

	r.routes = append(r.routes, route{
		method:   method,
		pattern:  pattern,
		segments: segments,
		endpoint: ep,
	})
	return nil
}

// RegisterAll registers routes in order and stops at the first failure.
func (r *Registry) RegisterAll(routes []handler.Route) error {
	for _, rt := range routes {
		if err := r.Register(rt.Method, rt.Path, rt.Endpoint); err != nil {
			return err
		}
	}
	return nil
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Resolve finds the endpoint for method and path. A pair that matches no
// route fails with NotFound, whether or not the path exists under another
// method.
func (r *Registry) Resolve(method, path string) (Match, error) {
	segments := splitPath(path)
	method = strings.ToUpper(method)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rt := range r.routes {
		if rt.method != method {
			continue
		}
		if params, ok := match(rt.segments, segments); ok {
			return Match{
				Method:   rt.method,
				Pattern:  rt.pattern,
				Endpoint: rt.endpoint,
				Params:   params,
			}, nil
		}
	}
	return Match{}, errs.NewNotFoundError("Route not found")
}

// Routes lists the registered routes sorted by pattern, then method.
func (r *Registry) Routes() []handler.Route {
	r.mu.RLock()
	out := make([]handler.Route, 0, len(r.routes))
	for _, rt := range r.routes {
		out = append(out, handler.Route{Method: rt.method, Path: rt.pattern, Endpoint: rt.endpoint})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Method < out[j].Method
	})
	return out
}

func parsePattern(pattern string) ([]string, error) {
	if !strings.HasPrefix(pattern, "/") {
		return nil, errors.New("pattern must start with /")
	}
	segments := splitPath(pattern)
	seen := make(map[string]bool)
	for _, s := range segments {
		if s == "" {
			return nil, errors.New("pattern has an empty segment")
		}
		name, isParam := strings.CutPrefix(s, ":")
		if !isParam {
			continue
		}
		if name == "" {
			return nil, errors.New("parameter without a name")
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate parameter %q", name)
		}
		seen[name] = true
	}
	return segments, nil
}

// splitPath drops the leading slash and one trailing slash. "/" has no
// segments.
func splitPath(path string) []string {
	path = strings.TrimPrefix(path, "/")
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func isParam(segment string) bool {
	return strings.HasPrefix(segment, ":")
}

// overlaps reports whether some path matches both patterns.
func overlaps(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if isParam(a[i]) || isParam(b[i]) {
			continue
		}
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func match(pattern, segments []string) (map[string]string, bool) {
	if len(pattern) != len(segments) {
		return nil, false
	}
	params := make(map[string]string)
	for i, p := range pattern {
		s := segments[i]
		if name, ok := strings.CutPrefix(p, ":"); ok {
			if s == "" {
				return nil, false
			}
			value, err := url.PathUnescape(s)
			if err != nil {
				return nil, false
			}
			params[name] = value
			continue
		}
		if p != s {
			return nil, false
		}
	}
	return params, true
}
