package storage

import (
	"context"
	"errors"
	"sync"
)

// ErrStateNotFound - сохранённого состояния ещё нет
var ErrStateNotFound = errors.New("state not found")

// StateStore хранит сериализованный снимок мира.
type StateStore interface {
	// Save атомарно заменяет сохранённое состояние.
	Save(ctx context.Context, data []byte) error
	// Load возвращает последнее состояние или ErrStateNotFound.
	Load(ctx context.Context) ([]byte, error)
	// Name - название бэкенда для логов и событий.
	Name() string
	Close() error
}

// MemoryStore держит снимок в памяти процесса (для тестов и режима без диска)
type MemoryStore struct {
	mu   sync.RWMutex
	data []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append([]byte(nil), data...)
	return nil
}

func (s *MemoryStore) Load(_ context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return nil, ErrStateNotFound
	}
	return append([]byte(nil), s.data...), nil
}

func (s *MemoryStore) Name() string { return "memory" }
func (s *MemoryStore) Close() error { return nil }
