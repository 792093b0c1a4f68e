package session

import (
	"context"
	"sync"
)

const (
	TokenKey  = "jwtToken"
	RecordKey = "sessionInfo"
)

// Store holds one client's credential and its session-scoped record.
// It also satisfies guard.CredentialStore.
type Store interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error

	LoadRecord(ctx context.Context) (Record, bool, error)
	SaveRecord(ctx context.Context, rec Record) error
	ClearRecord(ctx context.Context) error

	// Clear removes both the token and the record.
	Clear(ctx context.Context) error
}

// StoreFactory hands out the Store for a client id.
type StoreFactory interface {
	For(clientID string) Store
}

type MemoryStore struct {
	mu     sync.Mutex
	token  string
	record *Record
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Token(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

func (s *MemoryStore) SetToken(_ context.Context, token string) error {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ClearToken(context.Context) error {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) LoadRecord(context.Context) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record == nil {
		return Record{}, false, nil
	}
	return *s.record, true, nil
}

func (s *MemoryStore) SaveRecord(_ context.Context, rec Record) error {
	s.mu.Lock()
	s.record = &rec
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ClearRecord(context.Context) error {
	s.mu.Lock()
	s.record = nil
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	s.token = ""
	s.record = nil
	s.mu.Unlock()
	return nil
}

// MemoryStores keeps one MemoryStore per client for the life of the process.
type MemoryStores struct {
	mu     sync.Mutex
	stores map[string]*MemoryStore
}

func NewMemoryStores() *MemoryStores {
	return &MemoryStores{stores: make(map[string]*MemoryStore)}
}

func (m *MemoryStores) For(clientID string) Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stores[clientID]
	if !ok {
		s = NewMemoryStore()
		m.stores[clientID] = s
	}
	return s
}
