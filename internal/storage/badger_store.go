package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/annel0/dog-gatherer/internal/logging"
	"github.com/dgraph-io/badger/v3"
)

var stateKey = []byte("dogs:state")

// BadgerStore хранит снимок под одним ключом BadgerDB
type BadgerStore struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool
}

// NewBadgerStore открывает (или создаёт) базу в каталоге dbPath
func NewBadgerStore(dbPath string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	logging.GetStorageLogger().Info("📦 BadgerDB открыта: %s", dbPath)
	return &BadgerStore{db: db, dbPath: dbPath, isReady: true}, nil
}

func (s *BadgerStore) Save(_ context.Context, data []byte) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.isReady {
		return fmt.Errorf("хранилище закрыто")
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(stateKey, data)
	})
}

func (s *BadgerStore) Load(_ context.Context) ([]byte, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.isReady {
		return nil, fmt.Errorf("хранилище закрыто")
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(stateKey)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("чтение состояния из BadgerDB: %w", err)
	}
	return data, nil
}

func (s *BadgerStore) Name() string { return "badger" }

// Close закрывает базу
func (s *BadgerStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isReady {
		return nil
	}
	s.isReady = false
	return s.db.Close()
}
