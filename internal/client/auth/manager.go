// Package auth manages the lifecycle of the access/refresh token pair:
// login, transparent refresh of expired access tokens, logout and account
// deletion. The credential store is the single source of truth; the Manager
// is the only component that turns API errors into state transitions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/client/client"
	"github.com/dmitrijs2005/authkeeper/internal/client/credstore"
	"github.com/dmitrijs2005/authkeeper/internal/client/models"
	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"golang.org/x/sync/singleflight"
)

// Manager is safe for concurrent use.
type Manager struct {
	api   client.API
	store credstore.Store
	log   logging.Logger
	now   func() time.Time

	// mu serializes every store write and guards closed.
	mu     sync.Mutex
	closed bool

	flights    singleflight.Group
	refreshing atomic.Int32
}

type Option func(*Manager)

func WithLogger(l logging.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(api client.API, store credstore.Store, opts ...Option) *Manager {
	m := &Manager{
		api:   api,
		store: store,
		log:   logging.NopLogger{},
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State reports the current state without touching the network.
func (m *Manager) State(ctx context.Context) State {
	cred, err := m.store.Load(ctx)
	if err != nil {
		m.log.Warn(ctx, "load credentials failed", "error", err)
		return LoggedOut
	}
	if cred == nil {
		return LoggedOut
	}
	if m.refreshing.Load() > 0 {
		return Refreshing
	}
	if cred.AccessExpired(m.now()) {
		return Expired
	}
	return Valid
}

// IsAuthenticated reports whether a record is stored whose refresh token is
// still usable. An expired access token does not make the session invalid.
func (m *Manager) IsAuthenticated(ctx context.Context) bool {
	cred, err := m.store.Load(ctx)
	if err != nil || cred == nil {
		return false
	}
	return !cred.RefreshExpired(m.now())
}

func (m *Manager) Register(ctx context.Context, name, email, password string) (string, error) {
	if m.isClosed() {
		return "", ErrClosed
	}
	msg, err := m.api.Register(ctx, name, email, password)
	if err != nil {
		m.log.Info(ctx, "registration rejected", "error", err)
		return "", authFailure("registration failed", err)
	}
	return msg, nil
}

// Login exchanges email and password for a token pair and stores it.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	if m.isClosed() {
		return ErrClosed
	}
	resp, err := m.api.Login(ctx, email, password)
	if err != nil {
		m.log.Info(ctx, "login rejected", "error", err)
		return authFailure("login failed", err)
	}
	return m.establish(ctx, resp)
}

// LoginWithOAuthCode exchanges an authorization code obtained from provider
// for a token pair and stores it.
func (m *Manager) LoginWithOAuthCode(ctx context.Context, provider, code string) error {
	if m.isClosed() {
		return ErrClosed
	}
	resp, err := m.api.ExchangeOAuthCode(ctx, provider, code)
	if err != nil {
		m.log.Info(ctx, "oauth code exchange rejected", "provider", provider, "error", err)
		return authFailure("oauth login failed", err)
	}
	return m.establish(ctx, resp)
}

func (m *Manager) establish(ctx context.Context, resp *models.TokenResponse) error {
	cred, err := resp.Credentials()
	if err != nil {
		return &AuthError{Message: "server sent an invalid token response", Err: err}
	}
	if err := m.write(func() error { return m.store.Save(ctx, cred) }); err != nil {
		return err
	}
	m.log.Info(ctx, "session established", "state", Valid)
	return nil
}

// Authorized runs fn with a valid access token. An expired access token is
// refreshed first. If fn fails with HTTP 401 the token is refreshed and fn is
// called once more; a second 401 is returned as is.
func (m *Manager) Authorized(ctx context.Context, fn func(ctx context.Context, accessToken string) error) error {
	if m.isClosed() {
		return ErrClosed
	}
	cred, err := m.session(ctx)
	if err != nil {
		return err
	}

	err = fn(ctx, cred.AccessToken)
	if !client.IsUnauthorized(err) {
		return err
	}

	m.log.Info(ctx, "access token rejected, refreshing")
	cred, err = m.refresh(ctx, cred)
	if err != nil {
		return err
	}
	return fn(ctx, cred.AccessToken)
}

// Refresh exchanges the stored refresh token for a new pair even if the
// access token has not expired yet.
func (m *Manager) Refresh(ctx context.Context) error {
	if m.isClosed() {
		return ErrClosed
	}
	cred, err := m.load(ctx)
	if err != nil {
		return err
	}
	if cred.RefreshExpired(m.now()) {
		return m.expire(ctx, cred, common.ErrRefreshTokenExpired)
	}
	_, err = m.refresh(ctx, cred)
	return err
}

func (m *Manager) Profile(ctx context.Context) (*models.Profile, error) {
	var p *models.Profile
	err := m.Authorized(ctx, func(ctx context.Context, token string) error {
		var err error
		p, err = m.api.Profile(ctx, token)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteAccount removes the account on the server and, only if that
// succeeds, the local session.
func (m *Manager) DeleteAccount(ctx context.Context) (string, error) {
	var msg string
	err := m.Authorized(ctx, func(ctx context.Context, token string) error {
		var err error
		msg, err = m.api.DeleteAccount(ctx, token)
		return err
	})
	if err != nil {
		m.log.Warn(ctx, "account deletion failed", "error", err)
		return "", err
	}

	if err := m.write(func() error { return m.store.Clear(ctx) }); err != nil {
		return msg, fmt.Errorf("clear credentials: %w", err)
	}
	m.log.Info(ctx, "account deleted", "state", LoggedOut)
	return msg, nil
}

// Logout always ends in LoggedOut. The server is told on a best-effort basis
// and any failure is only logged.
func (m *Manager) Logout(ctx context.Context) {
	if m.isClosed() {
		m.log.Debug(ctx, "logout skipped, manager closed")
		return
	}

	cred, err := m.store.Load(ctx)
	if err != nil {
		m.log.Warn(ctx, "load credentials failed", "error", err)
	}
	if cred != nil {
		if err := m.api.Logout(ctx, cred.AccessToken); err != nil {
			m.log.Warn(ctx, "server logout failed", "error", err)
		}
	}

	if err := m.write(func() error { return m.store.Clear(ctx) }); err != nil {
		if !errors.Is(err, ErrClosed) {
			m.log.Error(ctx, "clear credentials failed", "error", err)
		}
		return
	}
	m.log.Info(ctx, "logged out", "state", LoggedOut)
}

// Close stops the Manager from writing to the store. Refreshes still in
// flight complete but their results are discarded.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// write runs fn under the store mutex unless the Manager is closed.
func (m *Manager) write(fn func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return fn()
}

// load returns the stored record or ErrNotLoggedIn. A corrupt record is
// cleared and reported as ErrNotLoggedIn.
func (m *Manager) load(ctx context.Context) (*models.Credentials, error) {
	cred, err := m.store.Load(ctx)
	if errors.Is(err, credstore.ErrCorruptRecord) {
		m.log.Warn(ctx, "discarding corrupt credentials", "state", LoggedOut, "error", err)
		if err := m.write(func() error { return m.store.Clear(ctx) }); err != nil && !errors.Is(err, ErrClosed) {
			m.log.Error(ctx, "clear credentials failed", "error", err)
		}
		return nil, ErrNotLoggedIn
	}
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	if cred == nil {
		return nil, ErrNotLoggedIn
	}
	return cred, nil
}

// session returns a record with an unexpired access token, refreshing it if
// needed.
func (m *Manager) session(ctx context.Context) (*models.Credentials, error) {
	cred, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	now := m.now()
	if cred.RefreshExpired(now) {
		return nil, m.expire(ctx, cred, common.ErrRefreshTokenExpired)
	}
	if cred.AccessExpired(now) {
		return m.refresh(ctx, cred)
	}
	return cred, nil
}

// refresh replaces seen with a freshly minted record. Concurrent callers
// holding the same refresh token share one request. The flight outlives a
// cancelled caller so that a rotated refresh token is never lost.
func (m *Manager) refresh(ctx context.Context, seen *models.Credentials) (*models.Credentials, error) {
	ch := m.flights.DoChan(seen.RefreshToken, func() (any, error) {
		return m.exchange(context.WithoutCancel(ctx), seen)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.Credentials), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) exchange(ctx context.Context, seen *models.Credentials) (*models.Credentials, error) {
	stored, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	if stored.AccessToken != seen.AccessToken || stored.RefreshToken != seen.RefreshToken {
		m.log.Debug(ctx, "credentials already rotated")
		return stored, nil
	}
	if stored.RefreshExpired(m.now()) {
		return nil, m.expire(ctx, stored, common.ErrRefreshTokenExpired)
	}

	m.refreshing.Add(1)
	defer m.refreshing.Add(-1)
	m.log.Debug(ctx, "refreshing access token", "state", Refreshing)

	resp, err := m.api.Refresh(ctx, stored.RefreshToken)
	if err != nil {
		return nil, m.expire(ctx, stored, err)
	}
	next, err := resp.Credentials()
	if err != nil {
		return nil, m.expire(ctx, stored, err)
	}

	err = m.write(func() error {
		cur, err := m.store.Load(ctx)
		if err != nil {
			return fmt.Errorf("load credentials: %w", err)
		}
		if cur == nil || cur.RefreshToken != stored.RefreshToken {
			// Logged out or logged in again while the request was in flight.
			return ErrNotLoggedIn
		}
		return m.store.Save(ctx, next)
	})
	if err != nil {
		m.log.Info(ctx, "refreshed credentials discarded", "error", err)
		return nil, err
	}

	m.log.Info(ctx, "access token refreshed", "state", Valid)
	return next, nil
}

// expire clears the record that failed to refresh and returns
// ErrSessionExpired wrapping cause. A record replaced in the meantime is
// left alone.
func (m *Manager) expire(ctx context.Context, failed *models.Credentials, cause error) error {
	m.log.Warn(ctx, "session expired", "state", LoggedOut, "error", cause)

	err := m.write(func() error {
		cur, err := m.store.Load(ctx)
		if err != nil {
			return err
		}
		if cur == nil || cur.RefreshToken != failed.RefreshToken {
			return nil
		}
		return m.store.Clear(ctx)
	})
	if err != nil && !errors.Is(err, ErrClosed) {
		m.log.Error(ctx, "clear credentials failed", "error", err)
	}
	return fmt.Errorf("%w: %w", ErrSessionExpired, cause)
}

// authFailure turns an API error from login or registration into an
// *AuthError carrying a message fit for the user.
func authFailure(fallback string, err error) error {
	var he *client.HTTPError
	if errors.As(err, &he) && he.Message != "" {
		return &AuthError{Message: he.Message, Err: err}
	}
	if errors.Is(err, client.ErrUnavailable) {
		return &AuthError{Message: "server is unreachable, check your connection", Err: err}
	}
	return &AuthError{Message: fallback, Err: err}
}
