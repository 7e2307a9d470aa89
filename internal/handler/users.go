package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/deppfellow/layered-api/internal/service"
	"github.com/deppfellow/layered-api/internal/validation"
)

// Route is one endpoint of the HTTP API.
type Route struct {
	Method   string
	Path     string
	Endpoint Endpoint
}

// UserHandler exposes the user service as endpoints.
type UserHandler struct {
	users *service.UserService
}

func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// Routes returns the user API. Every schema must exist in catalog.
func (h *UserHandler) Routes(catalog *validation.Catalog) ([]Route, error) {
	type def struct {
		method, path, name, schema string
		op                         Operation
		status                     int
	}
	defs := []def{
		{http.MethodPost, "/api/v1/users", "users.register", "register_user", h.register, http.StatusCreated},
		{http.MethodGet, "/api/v1/users/:id", "users.get", "user_id", h.get, http.StatusOK},
		{http.MethodPatch, "/api/v1/users/:id", "users.update", "update_user", h.update, http.StatusOK},
		{http.MethodDelete, "/api/v1/users/:id", "users.delete", "user_id", h.delete, http.StatusNoContent},
		{http.MethodPut, "/api/v1/users/:id/avatar", "users.avatar.put", "put_avatar", h.putAvatar, http.StatusOK},
		{http.MethodGet, "/api/v1/users/:id/avatar", "users.avatar.get", "user_id", h.getAvatar, http.StatusOK},
		{http.MethodDelete, "/api/v1/users/:id/avatar", "users.avatar.delete", "user_id", h.deleteAvatar, http.StatusNoContent},
	}

	routes := make([]Route, 0, len(defs))
	for _, d := range defs {
		schema, ok := catalog.Get(d.schema)
		if !ok {
			return nil, fmt.Errorf("endpoint %s: unknown schema %q", d.name, d.schema)
		}
		routes = append(routes, Route{
			Method: d.method,
			Path:   d.path,
			Endpoint: Endpoint{
				Name:          d.name,
				Schema:        schema,
				Operation:     d.op,
				SuccessStatus: d.status,
			},
		})
	}
	return routes, nil
}

func (h *UserHandler) register(ctx context.Context, _ Request, in *validation.Input) (Result, error) {
	user, err := h.users.RegisterUser(ctx, in)
	if err != nil {
		return Result{}, err
	}
	return JSON(user), nil
}

func (h *UserHandler) get(ctx context.Context, _ Request, in *validation.Input) (Result, error) {
	user, err := h.users.GetUser(ctx, in)
	if err != nil {
		return Result{}, err
	}
	return JSON(user), nil
}

func (h *UserHandler) update(ctx context.Context, _ Request, in *validation.Input) (Result, error) {
	user, err := h.users.UpdateUser(ctx, in)
	if err != nil {
		return Result{}, err
	}
	return JSON(user), nil
}

func (h *UserHandler) delete(ctx context.Context, _ Request, in *validation.Input) (Result, error) {
	if err := h.users.DeleteUser(ctx, in); err != nil {
		return Result{}, err
	}
	return Empty(), nil
}

func (h *UserHandler) putAvatar(ctx context.Context, _ Request, in *validation.Input) (Result, error) {
	user, err := h.users.PutAvatar(ctx, in)
	if err != nil {
		return Result{}, err
	}
	return JSON(user), nil
}

func (h *UserHandler) getAvatar(ctx context.Context, _ Request, in *validation.Input) (Result, error) {
	file, err := h.users.GetAvatar(ctx, in)
	if err != nil {
		return Result{}, err
	}
	return Blob(file.ContentType, file.Data), nil
}

func (h *UserHandler) deleteAvatar(ctx context.Context, _ Request, in *validation.Input) (Result, error) {
	if err := h.users.DeleteAvatar(ctx, in); err != nil {
		return Result{}, err
	}
	return Empty(), nil
}
