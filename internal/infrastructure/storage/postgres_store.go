package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver

	"vein-detect/internal/domain/port"
)

const schemaSessionRecords = `
create table if not exists session_records (
	profile    text        not null,
	key        text        not null,
	value      text        not null,
	updated_at timestamptz not null default now(),
	primary key (profile, key)
)`

// PostgresKVStore хранит записи сессии в Postgres, по профилю на оператора
type PostgresKVStore struct {
	DB      *sql.DB
	profile string
}

// OpenPostgres открывает пул соединений и проверяет доступность базы
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("database DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(1 * time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db.Ping: %w", err)
	}
	return db, nil
}

// NewPostgresKVStore создаёт таблицу при необходимости
func NewPostgresKVStore(ctx context.Context, db *sql.DB, profile string) (*PostgresKVStore, error) {
	if _, err := db.ExecContext(ctx, schemaSessionRecords); err != nil {
		return nil, fmt.Errorf("create session_records: %w", err)
	}
	return &PostgresKVStore{DB: db, profile: profile}, nil
}

// Load возвращает запись профиля по ключу
func (s *PostgresKVStore) Load(ctx context.Context, key string) (string, bool, error) {
	const q = `select value from session_records where profile=$1 and key=$2`
	var value string
	err := s.DB.QueryRowContext(ctx, q, s.profile, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load %s: %w", key, err)
	}
	return value, true, nil
}

// Save сохраняет или обновляет запись.
// PK: (profile, key).
func (s *PostgresKVStore) Save(ctx context.Context, key, value string) error {
	const q = `
insert into session_records(profile, key, value)
values ($1,$2,$3)
on conflict (profile, key)
do update set value=excluded.value, updated_at=now()`
	if _, err := s.DB.ExecContext(ctx, q, s.profile, key, value); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

var _ port.KVStore = (*PostgresKVStore)(nil)
