package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/client/models"
	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/google/uuid"
)

const maxResponseBytes = 1 << 20

// RequestOptions describe a single call made with Do. A non-empty Token is
// sent as "Authorization: Bearer <token>"; a non-nil Body is JSON-encoded.
type RequestOptions struct {
	Token   string
	Body    any
	Headers map[string]string
}

type HTTPClient struct {
	baseURL   string
	endpoints Endpoints
	http      *http.Client
	log       logging.Logger
}

type Option func(*HTTPClient)

// WithHTTPClient sends requests through a copy of hc, so later options never
// modify hc. The transport is still shared.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) {
		cp := *hc
		c.http = &cp
	}
}

// WithTimeout bounds every request, including reading the response body.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		cp := *c.http
		cp.Timeout = d
		c.http = &cp
	}
}

func WithLogger(l logging.Logger) Option {
	return func(c *HTTPClient) { c.log = l }
}

func NewHTTPClient(baseURL string, endpoints Endpoints, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		endpoints: endpoints,
		http:      &http.Client{Timeout: 15 * time.Second},
		log:       logging.NopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do performs one request and returns the raw response body of a 2xx
// response. It never retries.
func (c *HTTPClient) Do(ctx context.Context, method, path string, opts RequestOptions) ([]byte, error) {
	op := method + " " + path

	var body io.Reader
	if opts.Body != nil {
		b, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode body: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(common.RequestIDHeaderName, requestID)
	if opts.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if opts.Token != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerScheme+" "+opts.Token)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	log := c.log.With("method", method, "path", path, "request_id", requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		log.Warn(ctx, "request failed", "error", err)
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		log.Warn(ctx, "reading response failed", "status", resp.StatusCode, "error", err)
		return nil, &NetworkError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Debug(ctx, "request rejected", "status", resp.StatusCode)
		return nil, &HTTPError{Status: resp.StatusCode, Message: errorMessage(data, resp.StatusCode)}
	}

	log.Debug(ctx, "request completed", "status", resp.StatusCode)
	return data, nil
}

// errorMessage extracts {"error": ...} or {"message": ...} from a failed
// response, falling back to the status text.
func errorMessage(data []byte, status int) string {
	var er models.ErrorResponse
	if err := json.Unmarshal(data, &er); err == nil {
		if er.Error != "" {
			return er.Error
		}
		if er.Message != "" {
			return er.Message
		}
	}
	if text := strings.TrimSpace(string(data)); text != "" && !strings.HasPrefix(text, "{") && len(text) < 200 {
		return text
	}
	return strings.ToLower(http.StatusText(status))
}

// decode unmarshals a success body. An empty body yields the zero value.
func decode[T any](op string, data []byte) (*T, error) {
	v := new(T)
	if len(bytes.TrimSpace(data)) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", op, err)
	}
	return v, nil
}

type credentialsRequest struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type oauthCodeRequest struct {
	Provider string `json:"provider"`
	Code     string `json:"code"`
}

func (c *HTTPClient) Register(ctx context.Context, name, email, password string) (string, error) {
	data, err := c.Do(ctx, http.MethodPost, c.endpoints.Register, RequestOptions{
		Body: credentialsRequest{Name: name, Email: email, Password: password},
	})
	if err != nil {
		return "", err
	}
	resp, err := decode[models.MessageResponse]("register", data)
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (*models.TokenResponse, error) {
	data, err := c.Do(ctx, http.MethodPost, c.endpoints.Login, RequestOptions{
		Body: credentialsRequest{Email: email, Password: password},
	})
	if err != nil {
		return nil, err
	}
	return decode[models.TokenResponse]("login", data)
}

// Refresh exchanges a refresh token for a new token pair. The refresh token
// itself is the bearer credential of this call.
func (c *HTTPClient) Refresh(ctx context.Context, refreshToken string) (*models.TokenResponse, error) {
	data, err := c.Do(ctx, http.MethodPost, c.endpoints.Refresh, RequestOptions{Token: refreshToken})
	if err != nil {
		return nil, err
	}
	return decode[models.TokenResponse]("refresh", data)
}

func (c *HTTPClient) Logout(ctx context.Context, accessToken string) error {
	_, err := c.Do(ctx, http.MethodPost, c.endpoints.Logout, RequestOptions{Token: accessToken})
	return err
}

func (c *HTTPClient) Profile(ctx context.Context, accessToken string) (*models.Profile, error) {
	data, err := c.Do(ctx, http.MethodGet, c.endpoints.Profile, RequestOptions{Token: accessToken})
	if err != nil {
		return nil, err
	}
	return decode[models.Profile]("profile", data)
}

func (c *HTTPClient) DeleteAccount(ctx context.Context, accessToken string) (string, error) {
	data, err := c.Do(ctx, http.MethodDelete, c.endpoints.DeleteAccount, RequestOptions{Token: accessToken})
	if err != nil {
		return "", err
	}
	resp, err := decode[models.MessageResponse]("delete account", data)
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

func (c *HTTPClient) ExchangeOAuthCode(ctx context.Context, provider, code string) (*models.TokenResponse, error) {
	data, err := c.Do(ctx, http.MethodPost, c.endpoints.OAuthCallback, RequestOptions{
		Body: oauthCodeRequest{Provider: provider, Code: code},
	})
	if err != nil {
		return nil, err
	}
	return decode[models.TokenResponse]("oauth code exchange", data)
}
