package credstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/client/models"
	"github.com/dmitrijs2005/authkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
)

// SQLiteStore keeps the record in the metadata table of the local database.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Save(ctx context.Context, c *models.Credentials) error {
	if !c.Complete() {
		return ErrIncompleteRecord
	}

	values := map[string][]byte{
		common.KeyAccessToken:        []byte(c.AccessToken),
		common.KeyRefreshToken:       []byte(c.RefreshToken),
		common.KeyAccessTokenExpiry:  []byte(c.AccessTokenExpiry.Format(time.RFC3339Nano)),
		common.KeyRefreshTokenExpiry: []byte(c.RefreshTokenExpiry.Format(time.RFC3339Nano)),
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		for _, key := range common.CredentialKeys {
			if err := repo.Set(ctx, key, values[key]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context) (*models.Credentials, error) {
	values, err := metadata.NewSQLiteRepository(s.db).GetMany(ctx, common.CredentialKeys...)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}

	for _, key := range common.CredentialKeys {
		if len(values[key]) == 0 {
			return nil, nil
		}
	}

	accessExpiry, err := time.Parse(time.RFC3339Nano, string(values[common.KeyAccessTokenExpiry]))
	if err != nil {
		return nil, fmt.Errorf("load credentials: %s: %w: %w", common.KeyAccessTokenExpiry, ErrCorruptRecord, err)
	}
	refreshExpiry, err := time.Parse(time.RFC3339Nano, string(values[common.KeyRefreshTokenExpiry]))
	if err != nil {
		return nil, fmt.Errorf("load credentials: %s: %w: %w", common.KeyRefreshTokenExpiry, ErrCorruptRecord, err)
	}

	return &models.Credentials{
		AccessToken:        string(values[common.KeyAccessToken]),
		RefreshToken:       string(values[common.KeyRefreshToken]),
		AccessTokenExpiry:  accessExpiry,
		RefreshTokenExpiry: refreshExpiry,
	}, nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if err := metadata.NewSQLiteRepository(s.db).Delete(ctx, common.CredentialKeys...); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}
