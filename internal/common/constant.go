// Package common contains shared constants, sentinel errors and small helpers
// used across the authkeeper client packages.
package common

// AuthorizationHeaderName is the HTTP header that carries the bearer credential.
const AuthorizationHeaderName = "Authorization"

// BearerScheme prefixes the token in the Authorization header.
const BearerScheme = "Bearer"

// RequestIDHeaderName tags every outbound API request for log correlation.
const RequestIDHeaderName = "X-Request-ID"

// Keys of the persisted credential record and OAuth state in the local
// metadata table.
const (
	KeyAccessToken        = "token"
	KeyRefreshToken       = "refreshToken"
	KeyAccessTokenExpiry  = "tokenExpiry"
	KeyRefreshTokenExpiry = "refreshTokenExpiry"
	KeyOAuthState         = "oauth_state"
)

// CredentialKeys lists the four keys that together form a credential record.
var CredentialKeys = []string{
	KeyAccessToken,
	KeyRefreshToken,
	KeyAccessTokenExpiry,
	KeyRefreshTokenExpiry,
}
