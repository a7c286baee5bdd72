package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"vein-detect/internal/domain/entity"
)

// DownloadName имя файла, под которым сохраняется текущий результат
const DownloadName = "vein-detection.jpg"

// Workspace состояние рабочего места оператора: выбранное изображение,
// текущий результат и строка статуса. Через него проходят все каналы
// получения изображений и отправка.
type Workspace struct {
	mu        sync.Mutex
	detection *DetectionService
	camera    *CameraService
	cache     *SessionCache
	artifacts *ArtifactManager

	candidate *entity.Candidate
	result    *entity.Artifact
	status    string
	pending   bool
}

// NewWorkspace создаёт пустое рабочее место
func NewWorkspace(detection *DetectionService, camera *CameraService, cache *SessionCache, artifacts *ArtifactManager) *Workspace {
	return &Workspace{
		detection: detection,
		camera:    camera,
		cache:     cache,
		artifacts: artifacts,
	}
}

// SelectFile читает файл с диска как выбранный через диалог
func (w *Workspace) SelectFile(ctx context.Context, path string) (*entity.Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		err = fmt.Errorf("read %s: %w", path, err)
		w.setStatus(err.Error())
		return nil, err
	}
	return w.SelectUpload(ctx, filepath.Base(path), "", data), nil
}

// SelectUpload принимает изображение из диалога выбора файла
func (w *Workspace) SelectUpload(ctx context.Context, name, mimeType string, data []byte) *entity.Candidate {
	return w.selectCandidate(ctx, entity.NewCandidate(entity.SourcePicker, name, guessMIME(name, mimeType, data), data))
}

// SelectDrop принимает перетащенный файл
func (w *Workspace) SelectDrop(ctx context.Context, name, mimeType string, data []byte) *entity.Candidate {
	return w.selectCandidate(ctx, entity.NewCandidate(entity.SourceDrop, name, guessMIME(name, mimeType, data), data))
}

// StartCamera включает камеру. Ошибка попадает в статус, остальные каналы работают.
func (w *Workspace) StartCamera(ctx context.Context) error {
	if err := w.camera.Start(ctx); err != nil {
		w.setStatus(err.Error())
		return err
	}
	return nil
}

// CaptureFromCamera снимает кадр. Без активной камеры ничего не делает и возвращает nil.
func (w *Workspace) CaptureFromCamera(ctx context.Context) (*entity.Candidate, error) {
	candidate, err := w.camera.Capture(ctx)
	if err != nil {
		w.setStatus(err.Error())
		return nil, err
	}
	if candidate == nil {
		return nil, nil
	}
	return w.selectCandidate(ctx, candidate), nil
}

// StopCamera выключает камеру
func (w *Workspace) StopCamera() {
	w.camera.Stop()
}

// CameraState возвращает состояние камеры
func (w *Workspace) CameraState() entity.CameraState {
	return w.camera.State()
}

// Submit отправляет выбранное изображение с текущим порогом.
// При ошибке прежний результат и история не меняются.
func (w *Workspace) Submit(ctx context.Context) (*entity.Artifact, error) {
	w.mu.Lock()
	if w.pending {
		w.mu.Unlock()
		return nil, entity.ErrSubmissionPending
	}
	candidate := w.candidate
	if candidate == nil {
		w.mu.Unlock()
		return nil, entity.ErrNoCandidate
	}
	w.pending = true
	w.status = ""
	w.mu.Unlock()

	artifact, err := w.detection.Submit(ctx, candidate, w.cache.Threshold())

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = false
	if err != nil {
		w.status = err.Error()
		return nil, err
	}

	w.releaseResultLocked(ctx)
	w.result = artifact
	if w.candidate == candidate {
		w.candidate = nil
	}
	return artifact, nil
}

// ShowHistory делает результат из истории текущим, как при клике по
// карточке в галерее. ref это id записи или её номер, начиная с 1.
// Выбранное изображение не меняется.
func (w *Workspace) ShowHistory(ctx context.Context, ref string) (*entity.Artifact, error) {
	entry, ok := w.cache.FindHistory(ref)
	if !ok {
		return nil, fmt.Errorf("%q: %w", ref, entity.ErrHistoryEntryNotFound)
	}

	// Ссылка берётся до чтения, чтобы вытеснение из истории не удалило байты.
	w.artifacts.Retain(entry.ResultURL)
	data, err := w.artifacts.Open(ctx, entry.ResultURL)
	if err != nil {
		if relErr := w.artifacts.Release(ctx, entry.ResultURL); relErr != nil {
			slog.Warn("Failed to release history result", "handle", entry.ResultURL, "err", relErr)
		}
		return nil, err
	}

	artifact := &entity.Artifact{
		Handle:   entry.ResultURL,
		MIMEType: http.DetectContentType(data),
		Size:     len(data),
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.releaseResultLocked(ctx)
	w.result = artifact
	w.status = ""
	return artifact, nil
}

// Reset сбрасывает выбранное изображение, результат и статус
func (w *Workspace) Reset(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.candidate = nil
	w.status = ""
	w.releaseResultLocked(ctx)
}

// Download возвращает имя файла и содержимое текущего результата
func (w *Workspace) Download(ctx context.Context) (string, []byte, error) {
	w.mu.Lock()
	result := w.result
	w.mu.Unlock()

	if result == nil {
		return "", nil, entity.ErrNoResult
	}
	data, err := w.artifacts.Open(ctx, result.Handle)
	if err != nil {
		return "", nil, err
	}
	return DownloadName, data, nil
}

// Candidate возвращает выбранное изображение или nil
func (w *Workspace) Candidate() *entity.Candidate {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.candidate
}

// Result возвращает текущий результат или nil
func (w *Workspace) Result() *entity.Artifact {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.result
}

// Status возвращает текст последней ошибки, пустой если ошибок нет
func (w *Workspace) Status() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Pending сообщает, идёт ли отправка
func (w *Workspace) Pending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending
}

// Cache возвращает кэш сессии
func (w *Workspace) Cache() *SessionCache {
	return w.cache
}

func (w *Workspace) selectCandidate(ctx context.Context, candidate *entity.Candidate) *entity.Candidate {
	w.mu.Lock()
	defer w.mu.Unlock()

	// Прежний результат и ошибка относятся к старому изображению.
	w.candidate = candidate
	w.status = ""
	w.releaseResultLocked(ctx)

	slog.Debug("Candidate selected", "name", candidate.Name, "source", candidate.Source, "bytes", candidate.Size())
	return candidate
}

func (w *Workspace) releaseResultLocked(ctx context.Context) {
	if w.result == nil {
		return
	}
	if err := w.artifacts.Release(ctx, w.result.Handle); err != nil && !errors.Is(err, entity.ErrArtifactNotFound) {
		slog.Warn("Failed to release result", "handle", w.result.Handle, "err", err)
	}
	w.result = nil
}

func (w *Workspace) setStatus(status string) {
	w.mu.Lock()
	w.status = status
	w.mu.Unlock()
}

// guessMIME подсказка о типе: переданный тип, затем расширение, затем содержимое
func guessMIME(name, mimeType string, data []byte) string {
	if mimeType != "" {
		return mimeType
	}
	if byExt := mime.TypeByExtension(filepath.Ext(name)); byExt != "" {
		return byExt
	}
	if len(data) == 0 {
		return "application/octet-stream"
	}
	return http.DetectContentType(data)
}
