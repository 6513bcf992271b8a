package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidTokenResponse = errors.New("invalid token response")

// TokenResponse is returned by the login, refresh and OAuth code exchange
// endpoints.
type TokenResponse struct {
	Token                 string `json:"token"`
	TokenExpiredAt        string `json:"token_expired_at"`
	RefreshToken          string `json:"refresh_token"`
	RefreshTokenExpiredAt string `json:"refresh_token_expired_at"`
}

// timestampLayouts are tried in order. Layouts without a zone are read in
// local time, which is how the server formats "2006-01-02 15:04:05".
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses an ISO-8601 style timestamp into an absolute instant.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// Credentials converts the response into a complete credential record.
// A missing expiry is taken from the token's own "exp" claim when the token
// is a JWT; the signature is not checked, only the server can do that.
func (r *TokenResponse) Credentials() (*Credentials, error) {
	if r.Token == "" || r.RefreshToken == "" {
		return nil, fmt.Errorf("%w: missing token", ErrInvalidTokenResponse)
	}

	accessExpiry, err := expiry(r.TokenExpiredAt, r.Token)
	if err != nil {
		return nil, fmt.Errorf("%w: token_expired_at: %v", ErrInvalidTokenResponse, err)
	}
	refreshExpiry, err := expiry(r.RefreshTokenExpiredAt, r.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: refresh_token_expired_at: %v", ErrInvalidTokenResponse, err)
	}

	return &Credentials{
		AccessToken:        r.Token,
		RefreshToken:       r.RefreshToken,
		AccessTokenExpiry:  accessExpiry,
		RefreshTokenExpiry: refreshExpiry,
	}, nil
}

func expiry(timestamp, token string) (time.Time, error) {
	if timestamp != "" {
		return ParseTimestamp(timestamp)
	}
	return jwtExpiry(token)
}

func jwtExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("no expiry and token is not a JWT: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if exp == nil {
		return time.Time{}, errors.New("no expiry and token has no exp claim")
	}
	return exp.Time, nil
}
