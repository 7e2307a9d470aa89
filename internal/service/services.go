package service

import (
	"github.com/deppfellow/layered-api/internal/lib/retry"
	"github.com/deppfellow/layered-api/internal/repository"
	"github.com/deppfellow/layered-api/internal/server"
)

type Services struct {
	Auth  *AuthService
	Users *UserService
}

// NewServices builds every service over the bound repositories.
func NewServices(s *server.Server, repos *repository.Repositories) (*Services, error) {
	services := &Services{
		Users: NewUserService(repos, retry.FromConfig(s.Config.Retry)),
	}
	if s.Config.Auth.Enabled {
		services.Auth = NewAuthService(s)
	}
	return services, nil
}
