package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"vein-detect/internal/domain/entity"
)

func runCLI(t *testing.T, args ...string) string {
	t.Helper()

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	return out.String()
}

func setupEnv(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("VEIN_CONFIG", "")
	t.Setenv("VEIN_STORE_DRIVER", "file")
	t.Setenv("VEIN_STORE_PATH", filepath.Join(dir, "session.json"))
	t.Setenv("VEIN_ARTIFACT_DIR", filepath.Join(dir, "artifacts"))
	return dir
}

func TestThemeCommand_TogglePersists(t *testing.T) {
	setupEnv(t)

	require.Contains(t, runCLI(t, "theme"), "Theme: light")
	require.Contains(t, runCLI(t, "theme", "toggle"), "Theme: dark")
	require.Contains(t, runCLI(t, "theme"), "Theme: dark")
	require.Contains(t, runCLI(t, "theme", "light"), "Theme: light")
}

func TestThresholdCommand_ClampsAndPersists(t *testing.T) {
	setupEnv(t)

	require.Contains(t, runCLI(t, "threshold"), "Conf: 25%")
	require.Contains(t, runCLI(t, "threshold", "0.93"), "Conf: 90% (0.9)")
	require.Contains(t, runCLI(t, "threshold"), "Conf: 90%")
}

func TestHistoryCommand_Empty(t *testing.T) {
	setupEnv(t)

	require.Contains(t, runCLI(t, "history"), "No detections yet.")
	require.Equal(t, "[]\n", runCLI(t, "history", "export"))
	require.Contains(t, runCLI(t, "history", "clear"), "History cleared")
}

func TestHistoryShow_SavesPastResult(t *testing.T) {
	dir := setupEnv(t)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = fmt.Fprintf(w, "result-%d", calls.Add(1))
	}))
	defer srv.Close()
	t.Setenv("VEIN_API_BASE", srv.URL)

	img := filepath.Join(dir, "hand.jpg")
	require.NoError(t, os.WriteFile(img, []byte("raw"), 0o644))

	runCLI(t, "detect", img, "--out", filepath.Join(dir, "r1.jpg"))
	runCLI(t, "detect", img, "--out", filepath.Join(dir, "r2.jpg"))

	out := filepath.Join(dir, "past.jpg")
	require.Contains(t, runCLI(t, "history", "show", "2", "--out", out), "Saved")
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, "result-1", string(data))

	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"history", "show", "9"})
	require.ErrorIs(t, cmd.ExecuteContext(context.Background()), entity.ErrHistoryEntryNotFound)
}

func sampleEntries() []entity.HistoryEntry {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []entity.HistoryEntry{
		{ID: "b", Name: "b.jpg", ResultURL: "blob:2", CreatedAt: created.Add(time.Minute)},
		{ID: "a", Name: "a.jpg", ResultURL: "blob:1", CreatedAt: created},
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeTable(&buf, sampleEntries()))

	out := buf.String()
	require.Contains(t, out, "NAME")
	require.Contains(t, out, "b.jpg")
	require.Contains(t, out, "blob:1")
	require.Less(t, bytes.Index(buf.Bytes(), []byte("b.jpg")), bytes.Index(buf.Bytes(), []byte("a.jpg")))
}

func TestExportHistory_JSONAndYAML(t *testing.T) {
	records := toRecords(sampleEntries())

	var buf bytes.Buffer
	require.NoError(t, exportHistory(&buf, records, "json", ""))
	var decoded []historyRecord
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, records, decoded)
	require.Equal(t, "2026-03-01T12:01:00Z", decoded[0].CreatedAt)

	buf.Reset()
	require.NoError(t, exportHistory(&buf, records, "yaml", ""))
	var fromYAML []historyRecord
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &fromYAML))
	require.Equal(t, records, fromYAML)
}

func TestExportHistory_Parquet(t *testing.T) {
	records := toRecords(sampleEntries())
	path := filepath.Join(t.TempDir(), "history.parquet")

	require.Error(t, exportHistory(&bytes.Buffer{}, records, "parquet", ""))
	require.NoError(t, exportHistory(&bytes.Buffer{}, records, "parquet", path))

	rows, err := parquet.ReadFile[historyRecord](path)
	require.NoError(t, err)
	require.Equal(t, records, rows)
}

func TestExportHistory_UnsupportedFormat(t *testing.T) {
	err := exportHistory(&bytes.Buffer{}, nil, "csv", "")
	require.ErrorContains(t, err, "unsupported format")
}

func TestExportHistory_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, exportHistory(&bytes.Buffer{}, toRecords(sampleEntries()), "json", path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"resultUrl": "blob:2"`)
}
