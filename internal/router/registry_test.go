package router

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/deppfellow/layered-api/internal/errs"
	"github.com/deppfellow/layered-api/internal/handler"
	"github.com/deppfellow/layered-api/internal/validation"
)

func endpoint(t require.TestingT, name string) handler.Endpoint {
	s, err := validation.NewSchema(name, map[string]validation.Field{})
	require.NoError(t, err)
	return handler.Endpoint{
		Name:   name,
		Schema: s,
		Operation: func(context.Context, handler.Request, *validation.Input) (handler.Result, error) {
			return handler.Empty(), nil
		},
	}
}

func TestResolve(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(http.MethodGet, "/users/:id", endpoint(t, "get")))
	require.NoError(t, reg.Register(http.MethodGet, "/users/:id/avatar", endpoint(t, "avatar")))
	require.NoError(t, reg.Register(http.MethodPost, "/users", endpoint(t, "create")))
	reg.Freeze()

	m, err := reg.Resolve(http.MethodGet, "/users/42")
	require.NoError(t, err)
	assert.Equal(t, "get", m.Endpoint.Name)
	assert.Equal(t, map[string]string{"id": "42"}, m.Params)
	assert.Equal(t, "/users/:id", m.Pattern)

	m, err = reg.Resolve("get", "/users/a%20b/avatar/")
	require.NoError(t, err)
	assert.Equal(t, "avatar", m.Endpoint.Name)
	assert.Equal(t, "a b", m.Params["id"])

	for _, miss := range [][2]string{
		{http.MethodGet, "/users"},
		{http.MethodDelete, "/users/42"},
		{http.MethodGet, "/users/42/other"},
		{http.MethodGet, "/"},
	} {
		_, err := reg.Resolve(miss[0], miss[1])
		assert.Equal(t, errs.KindNotFound, errs.KindOf(err), miss)
	}
}

func TestRegisterRejectsAmbiguity(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(http.MethodGet, "/users/:id", endpoint(t, "a")))

	assert.Error(t, reg.Register(http.MethodGet, "/users/me", endpoint(t, "b")))
	assert.Error(t, reg.Register(http.MethodGet, "/users/:name", endpoint(t, "c")))
	assert.Error(t, reg.Register(http.MethodGet, "/:kind/:id", endpoint(t, "d")))
	assert.NoError(t, reg.Register(http.MethodPut, "/users/me", endpoint(t, "e")))
	assert.NoError(t, reg.Register(http.MethodGet, "/teams/:id", endpoint(t, "f")))
}

func TestRegisterValidates(t *testing.T) {
	reg := NewRegistry()

	assert.Error(t, reg.Register("FETCH", "/x", endpoint(t, "x")))
	assert.Error(t, reg.Register(http.MethodGet, "x", endpoint(t, "x")))
	assert.Error(t, reg.Register(http.MethodGet, "/a//b", endpoint(t, "x")))
	assert.Error(t, reg.Register(http.MethodGet, "/a/:", endpoint(t, "x")))
	assert.Error(t, reg.Register(http.MethodGet, "/a/:id/b/:id", endpoint(t, "x")))
	assert.Error(t, reg.Register(http.MethodGet, "/a", handler.Endpoint{Name: "x"}))
	assert.Empty(t, reg.Routes())
}

func TestRegisterAfterFreeze(t *testing.T) {
	reg := NewRegistry()
	reg.Freeze()

	err := reg.Register(http.MethodGet, "/x", endpoint(t, "x"))

	assert.ErrorIs(t, err, ErrFrozen)
	assert.True(t, reg.Frozen())
}

func TestRoutesSorted(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(http.MethodPost, "/b", endpoint(t, "b-post")))
	require.NoError(t, reg.Register(http.MethodGet, "/b", endpoint(t, "b-get")))
	require.NoError(t, reg.Register(http.MethodGet, "/a", endpoint(t, "a-get")))

	var names []string
	for _, r := range reg.Routes() {
		names = append(names, r.Endpoint.Name)
	}
	assert.Equal(t, []string{"a-get", "b-get", "b-post"}, names)
}

func segmentGen() *rapid.Generator[string] {
	return rapid.OneOf(
		rapid.SampledFrom([]string{"users", "teams", "avatar", "v1"}),
		rapid.Custom(func(t *rapid.T) string {
			return ":" + rapid.StringMatching(`[a-z]{1,4}`).Draw(t, "param")
		}),
	)
}

func patternGen() *rapid.Generator[string] {
	return rapid.Custom(func(t *rapid.T) string {
		segs := rapid.SliceOfN(segmentGen(), 1, 4).Draw(t, "segments")
		seen := map[string]bool{}
		for i, s := range segs {
			if strings.HasPrefix(s, ":") {
				if seen[s] {
					segs[i] = fmt.Sprintf("%s%d", s, i)
				}
				seen[segs[i]] = true
			}
		}
		return "/" + strings.Join(segs, "/")
	})
}

// concrete substitutes a value for every parameter of pattern.
func concrete(pattern string, value string) string {
	segs := splitPath(pattern)
	for i, s := range segs {
		if isParam(s) {
			segs[i] = value
		}
	}
	return "/" + strings.Join(segs, "/")
}

func TestRegisteredRoutesResolveUniquelyProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		reg := NewRegistry()
		var accepted []string
		for i, p := range rapid.SliceOfN(patternGen(), 1, 12).Draw(t, "patterns") {
			if err := reg.Register(http.MethodGet, p, endpoint(t, fmt.Sprintf("ep%d", i))); err == nil {
				accepted = append(accepted, p)
			}
		}
		reg.Freeze()

		value := rapid.StringMatching(`[0-9]{1,6}`).Draw(t, "value")
		for _, p := range accepted {
			m, err := reg.Resolve(http.MethodGet, concrete(p, value))
			if err != nil {
				t.Fatalf("registered pattern %s did not resolve: %v", p, err)
			}
			if m.Pattern != p {
				t.Fatalf("path for %s resolved to %s", p, m.Pattern)
			}
			for name, v := range m.Params {
				if v != value {
					t.Fatalf("param %s = %q, want %q", name, v, value)
				}
			}
		}
	})
}

func TestRejectedPatternsOverlapProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		reg := NewRegistry()
		a := patternGen().Draw(t, "a")
		b := patternGen().Draw(t, "b")
		if err := reg.Register(http.MethodGet, a, endpoint(t, "a")); err != nil {
			t.Fatalf("first registration failed: %v", err)
		}
		err := reg.Register(http.MethodGet, b, endpoint(t, "b"))
		if (err != nil) != overlaps(splitPath(a), splitPath(b)) {
			t.Fatalf("register %s after %s: err=%v", b, a, err)
		}
	})
}
