package handler

import (
	"fmt"

	"github.com/deppfellow/layered-api/internal/metrics"
	"github.com/deppfellow/layered-api/internal/repository"
	"github.com/deppfellow/layered-api/internal/server"
	"github.com/deppfellow/layered-api/internal/service"
)

// Handlers groups the controller and every handler so router setup takes a
// single value.
type Handlers struct {
	Controller *Controller
	Metrics    *metrics.Metrics
	Health     *HealthHandler
	Users      *UserHandler
}

func NewHandlers(s *server.Server, repos *repository.Repositories, services *service.Services, m *metrics.Metrics) (*Handlers, error) {
	statuses, err := s.Config.Errors.Statuses()
	if err != nil {
		return nil, fmt.Errorf("building status mapping: %w", err)
	}

	return &Handlers{
		Controller: NewController(statuses, s.Config.Server.RequestTimeout, m, s.Logger),
		Metrics:    m,
		Health:     NewHealthHandler(s, repos),
		Users:      NewUserHandler(services.Users),
	}, nil
}
