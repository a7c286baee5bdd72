package app

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vein-detect/internal/domain/entity"
	"vein-detect/internal/infrastructure/storage"
)

func TestSessionCache_Defaults(t *testing.T) {
	cache := NewSessionCache(storage.NewMemoryKVStore(), nil, nil)
	require.NoError(t, cache.Load(context.Background()))

	require.Equal(t, entity.ThemeLight, cache.Theme())
	require.Equal(t, entity.ThresholdDefault, cache.Threshold())
	require.Empty(t, cache.History())
}

func TestSessionCache_MalformedHistoryStartsEmpty(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKVStore()
	require.NoError(t, kv.Save(ctx, KeyHistory, "not json"))
	require.NoError(t, kv.Save(ctx, KeyThreshold, "NaN-ish"))
	require.NoError(t, kv.Save(ctx, KeyTheme, "dark"))

	cache := NewSessionCache(kv, nil, nil)
	require.NoError(t, cache.Load(ctx))

	require.Empty(t, cache.History())
	require.Equal(t, entity.ThresholdDefault, cache.Threshold())
	require.Equal(t, entity.ThemeDark, cache.Theme())
}

func TestSessionCache_WritesOnChange(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKVStore()
	cache := NewSessionCache(kv, nil, nil)
	require.NoError(t, cache.Load(ctx))

	th, err := cache.SetThreshold(ctx, 1.7)
	require.NoError(t, err)
	require.Equal(t, entity.ThresholdMax, th)

	theme, err := cache.ToggleTheme(ctx)
	require.NoError(t, err)
	require.Equal(t, entity.ThemeDark, theme)

	raw, ok, err := kv.Load(ctx, KeyThreshold)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "0.9", raw)

	raw, _, _ = kv.Load(ctx, KeyTheme)
	require.Equal(t, "dark", raw)

	reloaded := NewSessionCache(kv, nil, nil)
	require.NoError(t, reloaded.Load(ctx))
	require.Equal(t, entity.ThresholdMax, reloaded.Threshold())
	require.Equal(t, entity.ThemeDark, reloaded.Theme())
}

func TestSessionCache_HistoryLengthIsBounded(t *testing.T) {
	ctx := context.Background()

	for _, tc := range []struct{ prior, n int }{{0, 1}, {0, 24}, {0, 30}, {10, 10}, {20, 7}, {24, 1}} {
		t.Run(fmt.Sprintf("prior=%d/n=%d", tc.prior, tc.n), func(t *testing.T) {
			kv := storage.NewMemoryKVStore()
			prior := make([]entity.HistoryEntry, 0, tc.prior)
			for i := 0; i < tc.prior; i++ {
				prior = append(prior, entity.HistoryEntry{ID: fmt.Sprintf("old-%d", i), CreatedAt: time.UnixMilli(int64(i))})
			}
			raw, err := json.Marshal(prior)
			require.NoError(t, err)
			require.NoError(t, kv.Save(ctx, KeyHistory, string(raw)))

			cache := NewSessionCache(kv, nil, nil)
			require.NoError(t, cache.Load(ctx))
			for i := 0; i < tc.n; i++ {
				require.NoError(t, cache.AddHistory(ctx, entity.HistoryEntry{ID: fmt.Sprintf("new-%d", i)}))
			}

			want := tc.n + tc.prior
			if want > entity.HistoryCapacity {
				want = entity.HistoryCapacity
			}
			history := cache.History()
			require.Len(t, history, want)
			require.Equal(t, fmt.Sprintf("new-%d", tc.n-1), history[0].ID)

			// Хранилище отражает вытеснение, а не только память.
			stored, ok, err := kv.Load(ctx, KeyHistory)
			require.NoError(t, err)
			require.True(t, ok)
			var persisted []entity.HistoryEntry
			require.NoError(t, json.Unmarshal([]byte(stored), &persisted))
			require.Len(t, persisted, want)
			require.Equal(t, history[0].ID, persisted[0].ID)
			require.Equal(t, history[want-1].ID, persisted[want-1].ID)
		})
	}
}

func TestSessionCache_EvictionReleasesArtifact(t *testing.T) {
	ctx := context.Background()
	blobs := storage.NewMemoryBlobStore()
	artifacts := NewArtifactManager(blobs, nil)
	cache := NewSessionCache(storage.NewMemoryKVStore(), artifacts, nil)
	require.NoError(t, cache.Load(ctx))

	var first *entity.Artifact
	for i := 0; i < entity.HistoryCapacity+1; i++ {
		a, err := artifacts.Materialize(ctx, []byte{byte(i)}, "image/jpeg")
		require.NoError(t, err)
		if first == nil {
			first = a
		}
		require.NoError(t, cache.AddHistory(ctx, entity.HistoryEntry{ID: fmt.Sprint(i), ResultURL: a.Handle}))
		// текущий просмотр больше не смотрит на этот результат
		require.NoError(t, artifacts.Release(ctx, a.Handle))
	}

	require.Equal(t, entity.HistoryCapacity, artifacts.Live())
	require.Equal(t, entity.HistoryCapacity, blobs.Len())
	_, err := artifacts.Open(ctx, first.Handle)
	require.ErrorIs(t, err, entity.ErrArtifactNotFound)
}

func TestSessionCache_ClearHistory(t *testing.T) {
	ctx := context.Background()
	artifacts := NewArtifactManager(storage.NewMemoryBlobStore(), nil)
	kv := storage.NewMemoryKVStore()
	cache := NewSessionCache(kv, artifacts, nil)
	require.NoError(t, cache.Load(ctx))

	a, err := artifacts.Materialize(ctx, []byte("X"), "image/jpeg")
	require.NoError(t, err)
	require.NoError(t, cache.AddHistory(ctx, entity.HistoryEntry{ID: "1", ResultURL: a.Handle}))
	require.Equal(t, 2, artifacts.RefCount(a.Handle))

	require.NoError(t, cache.ClearHistory(ctx))
	require.Empty(t, cache.History())
	require.Equal(t, 1, artifacts.RefCount(a.Handle))

	raw, _, _ := kv.Load(ctx, KeyHistory)
	require.Equal(t, "[]", raw)
}

func TestSessionCache_LoadTrimsOverflowAndDeletesItsBlobs(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKVStore()
	blobs := storage.NewMemoryBlobStore()

	stored := make([]entity.HistoryEntry, 0, entity.HistoryCapacity+2)
	for i := 0; i < entity.HistoryCapacity+2; i++ {
		handle := fmt.Sprintf("%s%02d", entity.HandlePrefix, i)
		require.NoError(t, blobs.Put(ctx, handle, []byte{byte(i)}))
		stored = append(stored, entity.HistoryEntry{ID: fmt.Sprint(i), ResultURL: handle, CreatedAt: time.UnixMilli(int64(1000 - i))})
	}
	raw, err := json.Marshal(stored)
	require.NoError(t, err)
	require.NoError(t, kv.Save(ctx, KeyHistory, string(raw)))

	artifacts := NewArtifactManager(blobs, nil)
	cache := NewSessionCache(kv, artifacts, nil)
	require.NoError(t, cache.Load(ctx))

	history := cache.History()
	require.Len(t, history, entity.HistoryCapacity)
	require.Equal(t, "0", history[0].ID)
	require.Equal(t, entity.HistoryCapacity, artifacts.Live())
	require.Equal(t, entity.HistoryCapacity, blobs.Len())

	for _, e := range stored[entity.HistoryCapacity:] {
		_, err := blobs.Get(ctx, e.ResultURL)
		require.ErrorIs(t, err, entity.ErrArtifactNotFound)
		require.Zero(t, artifacts.RefCount(e.ResultURL))
	}

	persisted, _, err := kv.Load(ctx, KeyHistory)
	require.NoError(t, err)
	var trimmed []entity.HistoryEntry
	require.NoError(t, json.Unmarshal([]byte(persisted), &trimmed))
	require.Len(t, trimmed, entity.HistoryCapacity)
}

func TestSessionCache_FindHistory(t *testing.T) {
	ctx := context.Background()
	cache := NewSessionCache(storage.NewMemoryKVStore(), nil, nil)
	require.NoError(t, cache.Load(ctx))
	require.NoError(t, cache.AddHistory(ctx, entity.HistoryEntry{ID: "old", ResultURL: "blob:1"}))
	require.NoError(t, cache.AddHistory(ctx, entity.HistoryEntry{ID: "new", ResultURL: "blob:2"}))

	tests := []struct {
		ref    string
		wantID string
		found  bool
	}{
		{"1", "new", true},
		{" 2 ", "old", true},
		{"old", "old", true},
		{"0", "", false},
		{"3", "", false},
		{"missing", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			e, ok := cache.FindHistory(tt.ref)
			require.Equal(t, tt.found, ok)
			require.Equal(t, tt.wantID, e.ID)
		})
	}
}
