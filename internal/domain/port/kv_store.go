package port

import "context"

// KVStore долговременное хранилище строковых записей сессии
type KVStore interface {
	// Load возвращает значение и признак его наличия
	Load(ctx context.Context, key string) (string, bool, error)

	// Save перезаписывает значение целиком
	Save(ctx context.Context, key, value string) error
}
