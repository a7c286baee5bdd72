package app

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"log/slog"
	"sync"

	"vein-detect/internal/domain/entity"
	"vein-detect/internal/domain/port"
)

const (
	CameraFileName    = "camera.jpg"
	CameraMIMEType    = "image/jpeg"
	cameraJPEGQuality = 95
	defaultFrameW     = 640
	defaultFrameH     = 480
)

// CameraService владеет единственной сессией камеры
type CameraService struct {
	mu     sync.Mutex
	opener port.CameraOpener
	device port.CameraDevice
}

// NewCameraService создаёт сервис в состоянии Idle
func NewCameraService(opener port.CameraOpener) *CameraService {
	return &CameraService{opener: opener}
}

// State возвращает состояние сессии
func (s *CameraService) State() entity.CameraState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device != nil {
		return entity.CameraActive
	}
	return entity.CameraIdle
}

// Start открывает поток. Активная сессия заменяется новой.
// При ошибке сессия остаётся в Idle.
func (s *CameraService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeLocked()

	if s.opener == nil {
		return &entity.AcquisitionError{Reason: fmt.Errorf("no camera configured")}
	}
	device, err := s.opener.Open(ctx)
	if err != nil {
		return &entity.AcquisitionError{Reason: err}
	}
	s.device = device
	return nil
}

// Capture снимает текущий кадр в JPEG. Без активной сессии возвращает nil, nil.
func (s *CameraService) Capture(ctx context.Context) (*entity.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.device == nil {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	frame, err := s.device.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	data, err := encodeFrame(frame)
	if err != nil {
		return nil, err
	}
	return entity.NewCandidate(entity.SourceCamera, CameraFileName, CameraMIMEType, data), nil
}

// Stop останавливает поток. Повторный вызов ничего не делает.
func (s *CameraService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *CameraService) closeLocked() {
	if s.device == nil {
		return
	}
	if err := s.device.Close(); err != nil {
		slog.Warn("Failed to close camera", "err", err)
	}
	s.device = nil
}

// encodeFrame рисует кадр в растр его размера (640x480, если кадра ещё нет)
// и кодирует в JPEG.
func encodeFrame(frame image.Image) ([]byte, error) {
	w, h := defaultFrameW, defaultFrameH
	if frame != nil {
		b := frame.Bounds()
		if b.Dx() > 0 && b.Dy() > 0 {
			w, h = b.Dx(), b.Dy()
		}
	}

	raster := image.NewRGBA(image.Rect(0, 0, w, h))
	if frame != nil {
		draw.Draw(raster, raster.Bounds(), frame, frame.Bounds().Min, draw.Src)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, raster, &jpeg.Options{Quality: cameraJPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}
