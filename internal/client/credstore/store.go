// Package credstore persists the credential record.
//
// A record is written and removed as a unit: either all four keys
// (token, refreshToken, tokenExpiry, refreshTokenExpiry) are present or the
// record is treated as absent.
package credstore

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/authkeeper/internal/client/models"
)

var (
	ErrIncompleteRecord = errors.New("incomplete credential record")

	// ErrCorruptRecord is returned by Load when all keys are present but a
	// value cannot be decoded. Callers should Clear the record.
	ErrCorruptRecord = errors.New("corrupt credential record")
)

// Store is the credential record persistence contract. Load returns
// (nil, nil) when no complete record is stored. Clear on an empty store is a
// no-op.
type Store interface {
	Save(ctx context.Context, c *models.Credentials) error
	Load(ctx context.Context) (*models.Credentials, error)
	Clear(ctx context.Context) error
}
