package records

import (
	"context"
	"sync"
)

// MemoryRepo - потокобезопасная таблица рекордов в памяти
type MemoryRepo struct {
	mu      sync.RWMutex
	records map[uint64]Record
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{records: make(map[uint64]Record)}
}

func (r *MemoryRepo) Upsert(_ context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.records[rec.DogID]; ok && old.Score >= rec.Score {
		return nil
	}
	r.records[rec.DogID] = rec
	return nil
}

func (r *MemoryRepo) Get(_ context.Context, dogID uint64) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[dogID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (r *MemoryRepo) List(_ context.Context, start, maxItems int) ([]Record, error) {
	if err := CheckRange(start, maxItems); err != nil {
		return nil, err
	}

	r.mu.RLock()
	all := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		all = append(all, rec)
	}
	r.mu.RUnlock()

	sortRecords(all)
	if start >= len(all) {
		return []Record{}, nil
	}
	end := start + maxItems
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (r *MemoryRepo) Close() error { return nil }
