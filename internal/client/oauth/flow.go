// Package oauth drives the authorization code flow against the supported
// identity providers. The provider redirects back with a code, which is
// handed to the API server for a session token pair.
package oauth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"sort"

	"github.com/dmitrijs2005/authkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

var (
	ErrUnknownProvider = errors.New("unknown oauth provider")
	ErrInvalidState    = errors.New("invalid oauth state")
	ErrMissingCode     = errors.New("authorization code missing")
)

const (
	Google   = "google"
	GitHub   = "github"
	Facebook = "facebook"
)

const stateBytes = 16

var endpoints = map[string]oauth2.Endpoint{
	Google:   google.Endpoint,
	GitHub:   github.Endpoint,
	Facebook: facebook.Endpoint,
}

var defaultScopes = map[string][]string{
	Google:   {"email", "profile"},
	GitHub:   {"user:email"},
	Facebook: {"email", "public_profile"},
}

// ProviderSettings configures one provider. A provider without a client id
// is disabled.
type ProviderSettings struct {
	ClientID string
	Scopes   []string
}

type Settings struct {
	RedirectURL string
	Providers   map[string]ProviderSettings
}

// Exchanger completes the login with a code issued by provider.
type Exchanger interface {
	LoginWithOAuthCode(ctx context.Context, provider, code string) error
}

type Flow struct {
	configs map[string]*oauth2.Config
	repo    metadata.Repository
	login   Exchanger
	log     logging.Logger
}

// NewFlow builds a flow for every enabled provider in s. The pending state
// is kept in repo between AuthCodeURL and Callback.
func NewFlow(s Settings, repo metadata.Repository, login Exchanger, log logging.Logger) *Flow {
	if log == nil {
		log = logging.NopLogger{}
	}
	f := &Flow{
		configs: make(map[string]*oauth2.Config),
		repo:    repo,
		login:   login,
		log:     log,
	}
	for name, ps := range s.Providers {
		endpoint, ok := endpoints[name]
		if !ok || ps.ClientID == "" {
			continue
		}
		scopes := ps.Scopes
		if len(scopes) == 0 {
			scopes = defaultScopes[name]
		}
		f.configs[name] = &oauth2.Config{
			ClientID:    ps.ClientID,
			RedirectURL: s.RedirectURL,
			Scopes:      scopes,
			Endpoint:    endpoint,
		}
	}
	return f
}

// Providers lists the enabled providers in name order.
func (f *Flow) Providers() []string {
	names := make([]string, 0, len(f.configs))
	for name := range f.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (f *Flow) config(provider string) (*oauth2.Config, error) {
	cfg, ok := f.configs[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	return cfg, nil
}

// AuthCodeURL starts a login with provider and returns the URL the user has
// to open. A new state replaces any pending one.
func (f *Flow) AuthCodeURL(ctx context.Context, provider string) (string, error) {
	cfg, err := f.config(provider)
	if err != nil {
		return "", err
	}

	state, err := common.MakeRandHexString(stateBytes)
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	if err := f.repo.Set(ctx, common.KeyOAuthState, []byte(state)); err != nil {
		return "", fmt.Errorf("save state: %w", err)
	}

	var opts []oauth2.AuthCodeOption
	if provider == Google {
		opts = append(opts, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	}

	f.log.Debug(ctx, "oauth flow started", "provider", provider)
	return cfg.AuthCodeURL(state, opts...), nil
}

// Callback verifies state against the pending one and exchanges code. The
// pending state is consumed whatever the outcome.
func (f *Flow) Callback(ctx context.Context, provider, code, state string) error {
	if _, err := f.config(provider); err != nil {
		return err
	}

	saved, err := f.repo.Get(ctx, common.KeyOAuthState)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if err := f.repo.Delete(ctx, common.KeyOAuthState); err != nil {
		return fmt.Errorf("delete state: %w", err)
	}

	if len(saved) == 0 || subtle.ConstantTimeCompare(saved, []byte(state)) != 1 {
		f.log.Warn(ctx, "oauth state mismatch", "provider", provider)
		return ErrInvalidState
	}
	if code == "" {
		return ErrMissingCode
	}

	return f.login.LoginWithOAuthCode(ctx, provider, code)
}

// ParseCallbackURL extracts code and state from the redirect URL the
// provider sent the browser to.
func ParseCallbackURL(raw string) (code, state string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse callback url: %w", err)
	}
	q := u.Query()
	if e := q.Get("error"); e != "" {
		if d := q.Get("error_description"); d != "" {
			e += ": " + d
		}
		return "", "", fmt.Errorf("provider returned error: %s", e)
	}
	code = q.Get("code")
	if code == "" {
		return "", "", ErrMissingCode
	}
	return code, q.Get("state"), nil
}
