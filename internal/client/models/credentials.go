// Package models defines the client-side data models: the persisted
// credential record and the wire shapes of the authentication API.
package models

import "time"

// Credentials is the persisted authentication state. A record is only ever
// stored whole; see Complete.
type Credentials struct {
	AccessToken        string
	RefreshToken       string
	AccessTokenExpiry  time.Time
	RefreshTokenExpiry time.Time
}

// Complete reports whether every field is set. Access token and its expiry
// travel together, and a record without a refresh token is not usable.
func (c *Credentials) Complete() bool {
	if c == nil {
		return false
	}
	return c.AccessToken != "" &&
		c.RefreshToken != "" &&
		!c.AccessTokenExpiry.IsZero() &&
		!c.RefreshTokenExpiry.IsZero()
}

// AccessExpired reports whether the access token is no longer valid at now.
func (c *Credentials) AccessExpired(now time.Time) bool {
	return !now.Before(c.AccessTokenExpiry)
}

// RefreshExpired reports whether the refresh token is no longer valid at now.
func (c *Credentials) RefreshExpired(now time.Time) bool {
	return !now.Before(c.RefreshTokenExpiry)
}
