//go:build !gocv
// +build !gocv

package vision

import (
	"context"
	"errors"

	"vein-detect/internal/domain/port"
)

// ErrNoCameraSupport сборка без тега gocv не умеет открывать камеру.
var ErrNoCameraSupport = errors.New("gocv build tag is not enabled")

type GoCVCamera struct {
	DeviceID    int
	FrameWidth  int
	FrameHeight int
}

// NewGoCVCamera создаёт источник-заглушку (без OpenCV).
func NewGoCVCamera(deviceID int) *GoCVCamera {
	return &GoCVCamera{
		DeviceID:    deviceID,
		FrameWidth:  1280,
		FrameHeight: 720,
	}
}

// Open всегда возвращает ошибку, если сборка без тега gocv.
func (c *GoCVCamera) Open(ctx context.Context) (port.CameraDevice, error) {
	_ = ctx
	return nil, ErrNoCameraSupport
}

var _ port.CameraOpener = (*GoCVCamera)(nil)
