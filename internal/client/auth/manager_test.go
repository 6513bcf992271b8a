package auth

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/client/client"
	"github.com/dmitrijs2005/authkeeper/internal/client/credstore"
	"github.com/dmitrijs2005/authkeeper/internal/client/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return base }

// ---- fake API ----

type fakeAPI struct {
	registerFn func(name, email, password string) (string, error)
	loginFn    func(email, password string) (*models.TokenResponse, error)
	refreshFn  func(refreshToken string) (*models.TokenResponse, error)
	profileFn  func(token string) (*models.Profile, error)
	deleteFn   func(token string) (string, error)
	exchangeFn func(provider, code string) (*models.TokenResponse, error)
	logoutErr  error

	refreshCalls atomic.Int32

	mu           sync.Mutex
	logoutTokens []string
}

var errNotStubbed = errors.New("not stubbed")

func (f *fakeAPI) Register(_ context.Context, name, email, password string) (string, error) {
	if f.registerFn == nil {
		return "", errNotStubbed
	}
	return f.registerFn(name, email, password)
}

func (f *fakeAPI) Login(_ context.Context, email, password string) (*models.TokenResponse, error) {
	if f.loginFn == nil {
		return nil, errNotStubbed
	}
	return f.loginFn(email, password)
}

func (f *fakeAPI) Refresh(_ context.Context, refreshToken string) (*models.TokenResponse, error) {
	f.refreshCalls.Add(1)
	if f.refreshFn == nil {
		return nil, errNotStubbed
	}
	return f.refreshFn(refreshToken)
}

func (f *fakeAPI) Logout(_ context.Context, accessToken string) error {
	f.mu.Lock()
	f.logoutTokens = append(f.logoutTokens, accessToken)
	f.mu.Unlock()
	return f.logoutErr
}

func (f *fakeAPI) Profile(_ context.Context, accessToken string) (*models.Profile, error) {
	if f.profileFn == nil {
		return nil, errNotStubbed
	}
	return f.profileFn(accessToken)
}

func (f *fakeAPI) DeleteAccount(_ context.Context, accessToken string) (string, error) {
	if f.deleteFn == nil {
		return "", errNotStubbed
	}
	return f.deleteFn(accessToken)
}

func (f *fakeAPI) ExchangeOAuthCode(_ context.Context, provider, code string) (*models.TokenResponse, error) {
	if f.exchangeFn == nil {
		return nil, errNotStubbed
	}
	return f.exchangeFn(provider, code)
}

// ---- helpers ----

func tokens(access, refresh string, accessExp, refreshExp time.Time) *models.TokenResponse {
	return &models.TokenResponse{
		Token:                 access,
		TokenExpiredAt:        accessExp.Format(time.RFC3339),
		RefreshToken:          refresh,
		RefreshTokenExpiredAt: refreshExp.Format(time.RFC3339),
	}
}

func record(access, refresh string, accessExp, refreshExp time.Time) *models.Credentials {
	return &models.Credentials{
		AccessToken:        access,
		RefreshToken:       refresh,
		AccessTokenExpiry:  accessExp,
		RefreshTokenExpiry: refreshExp,
	}
}

var (
	fresh       = record("T1", "R1", base.Add(5*time.Minute), base.Add(7*24*time.Hour))
	staleAccess = record("T1", "R1", base.Add(-time.Minute), base.Add(7*24*time.Hour))
	staleAll    = record("T1", "R1", base.Add(-time.Hour), base.Add(-time.Minute))
	rotated     = record("T2", "R2", base.Add(10*time.Minute), base.Add(8*24*time.Hour))
)

func rotatedResponse(string) (*models.TokenResponse, error) {
	return tokens("T2", "R2", rotated.AccessTokenExpiry, rotated.RefreshTokenExpiry), nil
}

func newManager(t *testing.T, api *fakeAPI, seed *models.Credentials) (*Manager, *credstore.MemoryStore) {
	t.Helper()
	store := credstore.NewMemoryStore()
	if seed != nil {
		require.NoError(t, store.Save(context.Background(), seed))
	}
	return NewManager(api, store, WithClock(clock)), store
}

func stored(t *testing.T, s credstore.Store) *models.Credentials {
	t.Helper()
	c, err := s.Load(context.Background())
	require.NoError(t, err)
	return c
}

func unauthorized() error {
	return &client.HTTPError{Status: http.StatusUnauthorized, Message: "unauthorized"}
}

// ---- login / register ----

func TestLogin_StoresFullRecord(t *testing.T) {
	api := &fakeAPI{loginFn: func(email, password string) (*models.TokenResponse, error) {
		assert.Equal(t, "a@b.com", email)
		assert.Equal(t, "x", password)
		return tokens("T1", "R1", fresh.AccessTokenExpiry, fresh.RefreshTokenExpiry), nil
	}}
	m, store := newManager(t, api, nil)
	ctx := context.Background()

	require.Equal(t, LoggedOut, m.State(ctx))
	require.NoError(t, m.Login(ctx, "a@b.com", "x"))

	assert.Equal(t, Valid, m.State(ctx))
	assert.True(t, m.IsAuthenticated(ctx))
	if diff := cmp.Diff(fresh, stored(t, store)); diff != "" {
		t.Fatalf("stored record mismatch (-want +got):\n%s", diff)
	}
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		resp    *models.TokenResponse
		wantMsg string
		check   func(t *testing.T, err error)
	}{
		{
			name:    "rejected by server",
			err:     &client.HTTPError{Status: http.StatusUnauthorized, Message: "invalid email or password"},
			wantMsg: "invalid email or password",
			check: func(t *testing.T, err error) {
				assert.True(t, client.IsUnauthorized(err))
			},
		},
		{
			name:    "network failure",
			err:     &client.NetworkError{Op: "POST /auth/login", Err: errors.New("connection refused")},
			wantMsg: "server is unreachable, check your connection",
			check: func(t *testing.T, err error) {
				var ne *client.NetworkError
				assert.ErrorAs(t, err, &ne)
				assert.ErrorIs(t, err, client.ErrUnavailable)
			},
		},
		{
			name:    "token response without refresh token",
			resp:    &models.TokenResponse{Token: "T1", TokenExpiredAt: base.Format(time.RFC3339)},
			wantMsg: "server sent an invalid token response",
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, models.ErrInvalidTokenResponse)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{loginFn: func(string, string) (*models.TokenResponse, error) {
				return tt.resp, tt.err
			}}
			m, store := newManager(t, api, nil)
			ctx := context.Background()

			err := m.Login(ctx, "a@b.com", "bad")

			var ae *AuthError
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, tt.wantMsg, ae.Error())
			tt.check(t, err)
			assert.Equal(t, LoggedOut, m.State(ctx))
			assert.Nil(t, stored(t, store))
		})
	}
}

func TestRegister(t *testing.T) {
	api := &fakeAPI{registerFn: func(name, email, password string) (string, error) {
		if email == "taken@b.com" {
			return "", &client.HTTPError{Status: http.StatusConflict, Message: "email already registered"}
		}
		return "User registered successfully", nil
	}}
	m, store := newManager(t, api, nil)
	ctx := context.Background()

	msg, err := m.Register(ctx, "Ann", "a@b.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, "User registered successfully", msg)
	assert.Nil(t, stored(t, store), "registration does not log in")

	_, err = m.Register(ctx, "Ann", "taken@b.com", "password1")
	var ae *AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "email already registered", ae.Message)
}

func TestLoginWithOAuthCode(t *testing.T) {
	api := &fakeAPI{exchangeFn: func(provider, code string) (*models.TokenResponse, error) {
		if provider != "github" || code != "abc" {
			return nil, &client.HTTPError{Status: http.StatusBadRequest, Message: "bad code"}
		}
		return tokens("T1", "R1", fresh.AccessTokenExpiry, fresh.RefreshTokenExpiry), nil
	}}
	m, store := newManager(t, api, nil)
	ctx := context.Background()

	err := m.LoginWithOAuthCode(ctx, "github", "nope")
	require.Error(t, err)
	assert.Nil(t, stored(t, store))

	require.NoError(t, m.LoginWithOAuthCode(ctx, "github", "abc"))
	assert.Equal(t, "T1", stored(t, store).AccessToken)
}

// ---- state queries ----

func TestStateAndIsAuthenticated(t *testing.T) {
	tests := []struct {
		name      string
		seed      *models.Credentials
		wantState State
		wantAuth  bool
	}{
		{"no record", nil, LoggedOut, false},
		{"valid access token", fresh, Valid, true},
		{"expired access, usable refresh", staleAccess, Expired, true},
		{"both expired", staleAll, Expired, false},
		{"access expires exactly now", record("T1", "R1", base, base.Add(time.Hour)), Expired, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{}
			m, store := newManager(t, api, tt.seed)
			ctx := context.Background()

			assert.Equal(t, tt.wantState, m.State(ctx))
			assert.Equal(t, tt.wantAuth, m.IsAuthenticated(ctx))

			// Pure queries: no network, no writes.
			assert.Zero(t, api.refreshCalls.Load())
			if diff := cmp.Diff(tt.seed, stored(t, store)); diff != "" {
				t.Fatalf("store changed (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "logged out", LoggedOut.String())
	assert.Equal(t, "valid", Valid.String())
	assert.Equal(t, "expired", Expired.String())
	assert.Equal(t, "refreshing", Refreshing.String())
	assert.Equal(t, "unknown", State(42).String())
}

// ---- protected calls ----

func TestAuthorized_NotLoggedIn(t *testing.T) {
	m, _ := newManager(t, &fakeAPI{}, nil)

	called := false
	err := m.Authorized(context.Background(), func(context.Context, string) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, ErrNotLoggedIn)
	assert.False(t, called)
}

func TestAuthorized_ValidTokenNoRefresh(t *testing.T) {
	api := &fakeAPI{}
	m, _ := newManager(t, api, fresh)

	var got string
	err := m.Authorized(context.Background(), func(_ context.Context, token string) error {
		got = token
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "T1", got)
	assert.Zero(t, api.refreshCalls.Load())
}

func TestAuthorized_ExpiredAccessRefreshesFirst(t *testing.T) {
	api := &fakeAPI{refreshFn: func(rt string) (*models.TokenResponse, error) {
		assert.Equal(t, "R1", rt)
		return rotatedResponse(rt)
	}}
	m, store := newManager(t, api, staleAccess)
	ctx := context.Background()

	var tokensSeen []string
	err := m.Authorized(ctx, func(_ context.Context, token string) error {
		tokensSeen = append(tokensSeen, token)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"T2"}, tokensSeen)
	assert.EqualValues(t, 1, api.refreshCalls.Load())
	assert.Equal(t, Valid, m.State(ctx))
	if diff := cmp.Diff(rotated, stored(t, store)); diff != "" {
		t.Fatalf("record not fully replaced (-want +got):\n%s", diff)
	}
}

func TestAuthorized_RetriesOnceAfter401(t *testing.T) {
	api := &fakeAPI{refreshFn: rotatedResponse}
	m, _ := newManager(t, api, fresh)

	var tokensSeen []string
	err := m.Authorized(context.Background(), func(_ context.Context, token string) error {
		tokensSeen = append(tokensSeen, token)
		if token == "T1" {
			return unauthorized()
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"T1", "T2"}, tokensSeen)
	assert.EqualValues(t, 1, api.refreshCalls.Load())
}

func TestAuthorized_Second401IsReturned(t *testing.T) {
	api := &fakeAPI{refreshFn: rotatedResponse}
	m, store := newManager(t, api, fresh)

	calls := 0
	err := m.Authorized(context.Background(), func(context.Context, string) error {
		calls++
		return unauthorized()
	})
	require.True(t, client.IsUnauthorized(err))
	assert.Equal(t, 2, calls)
	assert.EqualValues(t, 1, api.refreshCalls.Load())
	assert.Equal(t, "T2", stored(t, store).AccessToken)
}

func TestAuthorized_OtherErrorsPassThrough(t *testing.T) {
	api := &fakeAPI{}
	m, store := newManager(t, api, fresh)

	boom := &client.HTTPError{Status: http.StatusInternalServerError, Message: "boom"}
	err := m.Authorized(context.Background(), func(context.Context, string) error { return boom })

	require.ErrorIs(t, err, boom)
	assert.Zero(t, api.refreshCalls.Load())
	assert.NotNil(t, stored(t, store))
}

func TestAuthorized_RefreshFailureEndsSession(t *testing.T) {
	tests := []struct {
		name  string
		seed  *models.Credentials
		fn    func(string) (*models.TokenResponse, error)
		calls int32
		check func(t *testing.T, err error)
	}{
		{
			name:  "refresh rejected with 401",
			seed:  staleAccess,
			fn:    func(string) (*models.TokenResponse, error) { return nil, unauthorized() },
			calls: 1,
			check: func(t *testing.T, err error) { assert.True(t, client.IsUnauthorized(err)) },
		},
		{
			name: "refresh network failure",
			seed: staleAccess,
			fn: func(string) (*models.TokenResponse, error) {
				return nil, &client.NetworkError{Op: "POST /user/refresh", Err: errors.New("reset")}
			},
			calls: 1,
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, client.ErrUnavailable) },
		},
		{
			name: "malformed refresh response",
			seed: staleAccess,
			fn: func(string) (*models.TokenResponse, error) {
				return &models.TokenResponse{Token: "T2"}, nil
			},
			calls: 1,
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, models.ErrInvalidTokenResponse) },
		},
		{
			name:  "refresh token already expired",
			seed:  staleAll,
			fn:    rotatedResponse,
			calls: 0,
			check: func(t *testing.T, err error) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{refreshFn: tt.fn}
			m, store := newManager(t, api, tt.seed)
			ctx := context.Background()

			called := false
			err := m.Authorized(ctx, func(context.Context, string) error {
				called = true
				return nil
			})

			require.ErrorIs(t, err, ErrSessionExpired)
			tt.check(t, err)
			assert.False(t, called)
			assert.Equal(t, tt.calls, api.refreshCalls.Load())
			assert.Nil(t, stored(t, store))
			assert.Equal(t, LoggedOut, m.State(ctx))
			assert.False(t, m.IsAuthenticated(ctx))
		})
	}
}

func TestAuthorized_401ThenRefreshRejected(t *testing.T) {
	api := &fakeAPI{refreshFn: func(string) (*models.TokenResponse, error) { return nil, unauthorized() }}
	m, store := newManager(t, api, fresh)

	err := m.Authorized(context.Background(), func(context.Context, string) error { return unauthorized() })

	require.ErrorIs(t, err, ErrSessionExpired)
	assert.Nil(t, stored(t, store))
}

func TestAuthorized_ConcurrentCallsShareOneRefresh(t *testing.T) {
	release := make(chan struct{})
	api := &fakeAPI{refreshFn: func(rt string) (*models.TokenResponse, error) {
		<-release
		return rotatedResponse(rt)
	}}
	m, store := newManager(t, api, staleAccess)

	const callers = 8
	var (
		wg   sync.WaitGroup
		errs = make(chan error, callers)
		seen = make(chan string, callers)
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- m.Authorized(context.Background(), func(_ context.Context, token string) error {
				seen <- token
				return nil
			})
		}()
	}

	require.Eventually(t, func() bool { return api.refreshCalls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)
	close(seen)

	for err := range errs {
		require.NoError(t, err)
	}
	for token := range seen {
		assert.Equal(t, "T2", token)
	}
	assert.EqualValues(t, 1, api.refreshCalls.Load())
	assert.Equal(t, "R2", stored(t, store).RefreshToken)
}

func TestAuthorized_StaleCallerReusesRotatedRecord(t *testing.T) {
	api := &fakeAPI{refreshFn: rotatedResponse}
	m, store := newManager(t, api, staleAccess)
	ctx := context.Background()

	require.NoError(t, m.Refresh(ctx))
	require.EqualValues(t, 1, api.refreshCalls.Load())

	// A caller that still holds the pre-refresh record must not spend R1 again.
	got, err := m.refresh(ctx, staleAccess)
	require.NoError(t, err)
	assert.Equal(t, "T2", got.AccessToken)
	assert.EqualValues(t, 1, api.refreshCalls.Load())
	assert.Equal(t, "R2", stored(t, store).RefreshToken)
}

func TestAuthorized_CallerCancelledDuringRefresh(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	api := &fakeAPI{refreshFn: func(rt string) (*models.TokenResponse, error) {
		close(started)
		<-release
		return rotatedResponse(rt)
	}}
	m, store := newManager(t, api, staleAccess)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- m.Authorized(ctx, func(context.Context, string) error { return nil })
	}()

	<-started
	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)

	close(release)
	require.Eventually(t, func() bool {
		c := stored(t, store)
		return c != nil && c.RefreshToken == "R2"
	}, time.Second, 5*time.Millisecond, "rotated refresh token must still be stored")
}

// ---- refresh / profile / delete ----

func TestRefresh_Forced(t *testing.T) {
	api := &fakeAPI{refreshFn: rotatedResponse}
	m, store := newManager(t, api, fresh)

	require.NoError(t, m.Refresh(context.Background()))
	assert.Equal(t, "T2", stored(t, store).AccessToken)
}

func TestRefresh_Errors(t *testing.T) {
	m, _ := newManager(t, &fakeAPI{}, nil)
	require.ErrorIs(t, m.Refresh(context.Background()), ErrNotLoggedIn)

	m, store := newManager(t, &fakeAPI{refreshFn: rotatedResponse}, staleAll)
	require.ErrorIs(t, m.Refresh(context.Background()), ErrSessionExpired)
	assert.Nil(t, stored(t, store))
}

func TestProfile(t *testing.T) {
	want := &models.Profile{ID: 7, Name: "Ann", Email: "a@b.com"}
	api := &fakeAPI{
		refreshFn: rotatedResponse,
		profileFn: func(token string) (*models.Profile, error) {
			if token != "T2" {
				return nil, unauthorized()
			}
			return want, nil
		},
	}
	m, _ := newManager(t, api, fresh)

	got, err := m.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDeleteAccount(t *testing.T) {
	t.Run("success clears the session", func(t *testing.T) {
		api := &fakeAPI{deleteFn: func(token string) (string, error) {
			assert.Equal(t, "T1", token)
			return "account deleted successfully", nil
		}}
		m, store := newManager(t, api, fresh)
		ctx := context.Background()

		msg, err := m.DeleteAccount(ctx)
		require.NoError(t, err)
		assert.Equal(t, "account deleted successfully", msg)
		assert.Nil(t, stored(t, store))
		assert.Equal(t, LoggedOut, m.State(ctx))
	})

	t.Run("failure keeps the session", func(t *testing.T) {
		api := &fakeAPI{deleteFn: func(string) (string, error) {
			return "", &client.HTTPError{Status: http.StatusInternalServerError, Message: "db down"}
		}}
		m, store := newManager(t, api, fresh)
		ctx := context.Background()

		_, err := m.DeleteAccount(ctx)
		require.True(t, client.IsStatus(err, http.StatusInternalServerError))
		if diff := cmp.Diff(fresh, stored(t, store)); diff != "" {
			t.Fatalf("record changed (-want +got):\n%s", diff)
		}
		assert.Equal(t, Valid, m.State(ctx))
	})
}

// ---- logout ----

func TestLogout(t *testing.T) {
	tests := []struct {
		name       string
		seed       *models.Credentials
		logoutErr  error
		wantTokens []string
	}{
		{"server accepts", fresh, nil, []string{"T1"}},
		{"server fails", fresh, &client.HTTPError{Status: http.StatusInternalServerError, Message: "boom"}, []string{"T1"}},
		{"server unreachable", staleAccess, &client.NetworkError{Op: "POST /user/logout", Err: errors.New("refused")}, []string{"T1"}},
		{"already logged out", nil, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{logoutErr: tt.logoutErr}
			m, store := newManager(t, api, tt.seed)
			ctx := context.Background()

			m.Logout(ctx)

			assert.Equal(t, LoggedOut, m.State(ctx))
			assert.Nil(t, stored(t, store))
			assert.Equal(t, tt.wantTokens, api.logoutTokens)
		})
	}
}

// ---- teardown ----

func TestClose_NoWritesAfterwards(t *testing.T) {
	api := &fakeAPI{
		loginFn: func(string, string) (*models.TokenResponse, error) {
			return tokens("T9", "R9", fresh.AccessTokenExpiry, fresh.RefreshTokenExpiry), nil
		},
		refreshFn: rotatedResponse,
	}
	m, store := newManager(t, api, staleAccess)
	ctx := context.Background()

	m.Close()

	require.ErrorIs(t, m.Login(ctx, "a@b.com", "x"), ErrClosed)
	require.ErrorIs(t, m.Refresh(ctx), ErrClosed)
	require.ErrorIs(t, m.Authorized(ctx, func(context.Context, string) error { return nil }), ErrClosed)
	m.Logout(ctx)
	assert.Empty(t, api.logoutTokens, "no server logout after Close")

	if diff := cmp.Diff(staleAccess, stored(t, store)); diff != "" {
		t.Fatalf("store written after Close (-want +got):\n%s", diff)
	}
}

func TestClose_DiscardsInFlightRefresh(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	api := &fakeAPI{refreshFn: func(rt string) (*models.TokenResponse, error) {
		close(started)
		<-release
		return rotatedResponse(rt)
	}}
	m, store := newManager(t, api, staleAccess)
	ctx := context.Background()

	errCh := make(chan error, 1)
	go func() {
		errCh <- m.Authorized(ctx, func(context.Context, string) error { return nil })
	}()

	<-started
	assert.Equal(t, Refreshing, m.State(ctx))

	m.Close()
	close(release)

	require.ErrorIs(t, <-errCh, ErrClosed)
	if diff := cmp.Diff(staleAccess, stored(t, store)); diff != "" {
		t.Fatalf("refresh result written after Close (-want +got):\n%s", diff)
	}
}
