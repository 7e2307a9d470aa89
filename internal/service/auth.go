package service

import (
	"github.com/clerk/clerk-sdk-go/v2"

	"github.com/deppfellow/layered-api/internal/server"
)

// AuthService configures the Clerk SDK with the secret key. It only exists
// when auth is enabled.
type AuthService struct {
	server *server.Server
}

func NewAuthService(s *server.Server) *AuthService {
	clerk.SetKey(s.Config.Auth.SecretKey)
	s.Logger.Info().Msg("clerk authentication enabled")
	return &AuthService{server: s}
}
