package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"vein-detect/internal/domain/entity"
	"vein-detect/internal/domain/port"
)

// FileKVStore хранит записи сессии в одном JSON-файле.
// Файл перечитывается при каждом Load и переписывается целиком при Save.
type FileKVStore struct {
	mu   sync.Mutex
	path string
}

// NewFileKVStore создаёт хранилище поверх файла path
func NewFileKVStore(path string) *FileKVStore {
	return &FileKVStore{path: path}
}

// Load возвращает запись по ключу
func (s *FileKVStore) Load(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return "", false, err
	}
	value, exists := records[key]
	return value, exists, nil
}

// Save перезаписывает запись и сохраняет файл
func (s *FileKVStore) Save(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return err
	}
	records[key] = value

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session file: %w", err)
	}
	return writeFileAtomic(s.path, data)
}

func (s *FileKVStore) read() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	records := make(map[string]string)
	if len(data) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		// Битый файл не должен мешать запуску: начинаем с пустого состояния.
		slog.Warn("Session file is corrupted, starting empty", "path", s.path, "err", err)
		return make(map[string]string), nil
	}
	return records, nil
}

// DirBlobStore хранит артефакты файлами в каталоге
type DirBlobStore struct {
	dir string
}

// NewDirBlobStore создаёт каталог, если его ещё нет
func NewDirBlobStore(dir string) (*DirBlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &DirBlobStore{dir: dir}, nil
}

// Put записывает артефакт на диск
func (s *DirBlobStore) Put(ctx context.Context, id string, data []byte) error {
	return writeFileAtomic(s.pathFor(id), data)
}

// Get читает артефакт с диска
func (s *DirBlobStore) Get(ctx context.Context, id string) ([]byte, error) {
	data, err := os.ReadFile(s.pathFor(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("blob %s: %w", id, entity.ErrArtifactNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", id, err)
	}
	return data, nil
}

// Delete удаляет файл артефакта
func (s *DirBlobStore) Delete(ctx context.Context, id string) error {
	err := os.Remove(s.pathFor(id))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete blob %s: %w", id, err)
	}
	return nil
}

func (s *DirBlobStore) pathFor(id string) string {
	name := strings.TrimPrefix(id, entity.HandlePrefix)
	return filepath.Join(s.dir, filepath.Base(name)+".bin")
}

func writeFileAtomic(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

var (
	_ port.KVStore   = (*FileKVStore)(nil)
	_ port.BlobStore = (*DirBlobStore)(nil)
)
