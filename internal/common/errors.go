package common

import "errors"

var (
	// ErrRefreshTokenExpired is the cause attached to a session that ended
	// because its refresh token ran out.
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)
