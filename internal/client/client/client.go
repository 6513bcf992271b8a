package client

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/client/models"
)

// API is the authentication backend as seen by the token lifecycle manager.
type API interface {
	Register(ctx context.Context, name, email, password string) (string, error)
	Login(ctx context.Context, email, password string) (*models.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenResponse, error)
	Logout(ctx context.Context, accessToken string) error
	Profile(ctx context.Context, accessToken string) (*models.Profile, error)
	DeleteAccount(ctx context.Context, accessToken string) (string, error)
	ExchangeOAuthCode(ctx context.Context, provider, code string) (*models.TokenResponse, error)
}

// Endpoints holds the request paths of each API operation, relative to the
// server URL.
type Endpoints struct {
	Register      string `json:"register"`
	Login         string `json:"login"`
	Logout        string `json:"logout"`
	Profile       string `json:"profile"`
	Refresh       string `json:"refresh"`
	DeleteAccount string `json:"delete_account"`
	OAuthCallback string `json:"oauth_callback"`
}

// DefaultEndpoints returns the paths served by the reference backend.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Register:      "/auth/register",
		Login:         "/auth/login",
		Logout:        "/user/logout",
		Profile:       "/user/profile",
		Refresh:       "/user/refresh",
		DeleteAccount: "/user/delete",
		OAuthCallback: "/oauth/callback",
	}
}
