package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"vein-detect/internal/domain/entity"
	"vein-detect/internal/domain/port"
)

// ArtifactManager выдаёт дескрипторы результатов и считает ссылки на них.
// Байты удаляются из хранилища, когда ссылок не остаётся.
type ArtifactManager struct {
	mu       sync.Mutex
	blobs    port.BlobStore
	refs     map[string]int
	recorder port.Recorder
}

// NewArtifactManager создаёт менеджер поверх хранилища байтов
func NewArtifactManager(blobs port.BlobStore, recorder port.Recorder) *ArtifactManager {
	return &ArtifactManager{
		blobs:    blobs,
		refs:     make(map[string]int),
		recorder: recorderOrNop(recorder),
	}
}

// Materialize сохраняет байты и возвращает артефакт с одной ссылкой,
// которой владеет вызывающий (текущий просмотр результата).
func (m *ArtifactManager) Materialize(ctx context.Context, data []byte, mimeType string) (*entity.Artifact, error) {
	handle := entity.HandlePrefix + uuid.NewString()
	if err := m.blobs.Put(ctx, handle, data); err != nil {
		return nil, fmt.Errorf("store artifact: %w", err)
	}

	m.mu.Lock()
	m.refs[handle] = 1
	live := len(m.refs)
	m.mu.Unlock()
	m.recorder.SetLiveArtifacts(live)

	return &entity.Artifact{
		Handle:   handle,
		MIMEType: mimeType,
		Size:     len(data),
	}, nil
}

// Retain добавляет ссылку. Незнакомый дескриптор (например, из сохранённой
// истории) начинает отслеживаться с одной ссылкой.
func (m *ArtifactManager) Retain(handle string) {
	if handle == "" {
		return
	}
	m.mu.Lock()
	m.refs[handle]++
	live := len(m.refs)
	m.mu.Unlock()
	m.recorder.SetLiveArtifacts(live)
}

// Release снимает ссылку и удаляет байты, когда ссылок больше нет
func (m *ArtifactManager) Release(ctx context.Context, handle string) error {
	m.mu.Lock()
	count, ok := m.refs[handle]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	if count > 1 {
		m.refs[handle] = count - 1
		m.mu.Unlock()
		return nil
	}
	delete(m.refs, handle)
	live := len(m.refs)
	m.mu.Unlock()
	m.recorder.SetLiveArtifacts(live)

	if err := m.blobs.Delete(ctx, handle); err != nil {
		return fmt.Errorf("release %s: %w", handle, err)
	}
	return nil
}

// Open возвращает байты артефакта
func (m *ArtifactManager) Open(ctx context.Context, handle string) ([]byte, error) {
	if !entity.IsHandle(handle) {
		return nil, fmt.Errorf("%q: %w", handle, entity.ErrArtifactNotFound)
	}
	data, err := m.blobs.Get(ctx, handle)
	if err != nil {
		if errors.Is(err, entity.ErrArtifactNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("open %s: %w", handle, err)
	}
	return data, nil
}

// RefCount возвращает текущее число ссылок
func (m *ArtifactManager) RefCount(handle string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refs[handle]
}

// Live возвращает число отслеживаемых артефактов
func (m *ArtifactManager) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.refs)
}
