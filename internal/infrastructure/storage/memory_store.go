package storage

import (
	"context"
	"fmt"
	"sync"

	"vein-detect/internal/domain/entity"
	"vein-detect/internal/domain/port"
)

// MemoryKVStore in-memory хранилище записей сессии
type MemoryKVStore struct {
	mu      sync.RWMutex
	records map[string]string
}

// NewMemoryKVStore создаёт новое in-memory хранилище
func NewMemoryKVStore() *MemoryKVStore {
	return &MemoryKVStore{
		records: make(map[string]string),
	}
}

// Load возвращает запись по ключу
func (s *MemoryKVStore) Load(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	value, exists := s.records[key]
	s.mu.RUnlock()

	return value, exists, nil
}

// Save сохраняет запись
func (s *MemoryKVStore) Save(ctx context.Context, key, value string) error {
	s.mu.Lock()
	s.records[key] = value
	s.mu.Unlock()

	return nil
}

// MemoryBlobStore in-memory хранилище артефактов
type MemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryBlobStore создаёт новое in-memory хранилище артефактов
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{
		blobs: make(map[string][]byte),
	}
}

// Put сохраняет копию данных
func (s *MemoryBlobStore) Put(ctx context.Context, id string, data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	s.blobs[id] = buf
	s.mu.Unlock()

	return nil
}

// Get возвращает данные артефакта
func (s *MemoryBlobStore) Get(ctx context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	data, exists := s.blobs[id]
	s.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("blob %s: %w", id, entity.ErrArtifactNotFound)
	}
	return data, nil
}

// Delete удаляет артефакт, отсутствие не считается ошибкой
func (s *MemoryBlobStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.blobs, id)
	s.mu.Unlock()

	return nil
}

// Len возвращает число хранимых артефактов
func (s *MemoryBlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

// Проверка реализации интерфейсов
var (
	_ port.KVStore   = (*MemoryKVStore)(nil)
	_ port.BlobStore = (*MemoryBlobStore)(nil)
)
