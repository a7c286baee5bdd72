package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"vein-detect/internal/domain/entity"
	"vein-detect/internal/domain/port"
)

// Ключи записей в хранилище сессии
const (
	KeyTheme     = "vein-ui-theme"
	KeyThreshold = "vein-ui-thresh"
	KeyHistory   = "vein-ui-history"
)

// SessionCache держит тему, порог и историю и пишет каждое изменение
// в хранилище сразу же.
type SessionCache struct {
	mu        sync.RWMutex
	store     port.KVStore
	artifacts *ArtifactManager
	recorder  port.Recorder

	theme     entity.Theme
	threshold entity.Threshold
	history   []entity.HistoryEntry
	loaded    bool
}

// NewSessionCache создаёт кэш со значениями по умолчанию
func NewSessionCache(store port.KVStore, artifacts *ArtifactManager, recorder port.Recorder) *SessionCache {
	return &SessionCache{
		store:     store,
		artifacts: artifacts,
		recorder:  recorderOrNop(recorder),
		theme:     entity.ThemeLight,
		threshold: entity.ThresholdDefault,
	}
}

// Load читает все три записи. Повторный вызов ничего не делает.
func (c *SessionCache) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		return nil
	}

	raw, ok, err := c.store.Load(ctx, KeyTheme)
	if err != nil {
		return fmt.Errorf("load theme: %w", err)
	}
	if ok {
		c.theme = entity.ParseTheme(raw)
	}

	raw, ok, err = c.store.Load(ctx, KeyThreshold)
	if err != nil {
		return fmt.Errorf("load threshold: %w", err)
	}
	if ok {
		th, err := entity.ParseThreshold(raw)
		if err != nil {
			slog.Debug("Stored threshold is malformed, using default", "value", raw, "err", err)
		}
		c.threshold = th
	}

	raw, ok, err = c.store.Load(ctx, KeyHistory)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	var dropped []entity.HistoryEntry
	if ok {
		history, overflow, err := decodeHistory(raw)
		if err != nil {
			slog.Debug("Stored history is malformed, starting empty", "err", err)
			history = nil
		}
		c.history = history
		dropped = overflow
	}

	if c.artifacts != nil {
		for _, entry := range c.history {
			c.artifacts.Retain(entry.ResultURL)
		}
		// Записи сверх ёмкости берутся на учёт и сразу освобождаются,
		// чтобы их байты не остались в хранилище.
		for _, entry := range dropped {
			c.artifacts.Retain(entry.ResultURL)
		}
		c.releaseEntries(ctx, dropped)
	}
	if len(dropped) > 0 {
		slog.Debug("Stored history exceeds capacity, trimmed", "dropped", len(dropped))
		if err := c.saveHistory(ctx); err != nil {
			return fmt.Errorf("save trimmed history: %w", err)
		}
	}
	c.loaded = true
	c.recorder.SetHistoryLength(len(c.history))
	return nil
}

// Theme возвращает текущую тему
func (c *SessionCache) Theme() entity.Theme {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.theme
}

// SetTheme сохраняет тему
func (c *SessionCache) SetTheme(ctx context.Context, theme entity.Theme) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.theme = entity.ParseTheme(string(theme))
	return c.store.Save(ctx, KeyTheme, string(c.theme))
}

// ToggleTheme переключает тему и возвращает новое значение
func (c *SessionCache) ToggleTheme(ctx context.Context) (entity.Theme, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.theme = c.theme.Toggle()
	return c.theme, c.store.Save(ctx, KeyTheme, string(c.theme))
}

// Threshold возвращает текущий порог уверенности
func (c *SessionCache) Threshold() entity.Threshold {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.threshold
}

// SetThreshold приводит значение к диапазону слайдера и сохраняет его
func (c *SessionCache) SetThreshold(ctx context.Context, v float64) (entity.Threshold, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.threshold = entity.NewThreshold(v)
	return c.threshold, c.store.Save(ctx, KeyThreshold, c.threshold.String())
}

// History возвращает копию истории, новые записи первыми
func (c *SessionCache) History() []entity.HistoryEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]entity.HistoryEntry, len(c.history))
	copy(out, c.history)
	return out
}

// FindHistory ищет запись по id или по номеру в списке, начиная с 1
func (c *SessionCache) FindHistory(ref string) (entity.HistoryEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ref = strings.TrimSpace(ref)
	for _, e := range c.history {
		if e.ID == ref {
			return e, true
		}
	}
	if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(c.history) {
		return c.history[n-1], true
	}
	return entity.HistoryEntry{}, false
}

// AddHistory добавляет запись в начало, вытесняет старые сверх ёмкости
// и переписывает запись истории целиком.
func (c *SessionCache) AddHistory(ctx context.Context, entry entity.HistoryEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.artifacts != nil {
		c.artifacts.Retain(entry.ResultURL)
	}

	var evicted []entity.HistoryEntry
	c.history, evicted = entity.PrependHistory(c.history, entry, entity.HistoryCapacity)
	c.releaseEntries(ctx, evicted)
	c.recorder.SetHistoryLength(len(c.history))

	return c.saveHistory(ctx)
}

// ClearHistory удаляет все записи истории
func (c *SessionCache) ClearHistory(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.releaseEntries(ctx, c.history)
	c.history = nil
	c.recorder.SetHistoryLength(0)

	return c.saveHistory(ctx)
}

func (c *SessionCache) releaseEntries(ctx context.Context, entries []entity.HistoryEntry) {
	if c.artifacts == nil {
		return
	}
	for _, e := range entries {
		if err := c.artifacts.Release(ctx, e.ResultURL); err != nil {
			slog.Warn("Failed to release evicted artifact", "handle", e.ResultURL, "err", err)
		}
	}
}

func (c *SessionCache) saveHistory(ctx context.Context) error {
	history := c.history
	if history == nil {
		history = []entity.HistoryEntry{}
	}
	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	return c.store.Save(ctx, KeyHistory, string(data))
}

// decodeHistory разбирает сохранённую историю. Второе значение содержит
// самые старые записи сверх ёмкости.
func decodeHistory(raw string) ([]entity.HistoryEntry, []entity.HistoryEntry, error) {
	var history []entity.HistoryEntry
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", entity.ErrMalformedStoredState, err)
	}
	if len(history) > entity.HistoryCapacity {
		return history[:entity.HistoryCapacity:entity.HistoryCapacity], history[entity.HistoryCapacity:], nil
	}
	return history, nil, nil
}
