package credstore

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/authkeeper/internal/client/models"
)

// MemoryStore keeps the record in process memory. It does not survive
// restarts.
type MemoryStore struct {
	mu   sync.RWMutex
	cred *models.Credentials
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Save(_ context.Context, c *models.Credentials) error {
	if !c.Complete() {
		return ErrIncompleteRecord
	}
	cp := *c
	m.mu.Lock()
	m.cred = &cp
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Load(context.Context) (*models.Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cred == nil {
		return nil, nil
	}
	cp := *m.cred
	return &cp, nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	m.cred = nil
	m.mu.Unlock()
	return nil
}
