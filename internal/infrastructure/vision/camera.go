//go:build gocv
// +build gocv

package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"vein-detect/internal/domain/port"
)

// GoCVCamera открывает устройство захвата через OpenCV.
type GoCVCamera struct {
	DeviceID    int
	FrameWidth  int
	FrameHeight int
}

// NewGoCVCamera создаёт источник для устройства с индексом deviceID.
func NewGoCVCamera(deviceID int) *GoCVCamera {
	return &GoCVCamera{
		DeviceID:    deviceID,
		FrameWidth:  1280,
		FrameHeight: 720,
	}
}

// Open запрашивает поток у устройства.
func (c *GoCVCamera) Open(ctx context.Context) (port.CameraDevice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vc, err := gocv.OpenVideoCapture(c.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("open device %d: %w", c.DeviceID, err)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return nil, fmt.Errorf("device %d is not available", c.DeviceID)
	}

	if c.FrameWidth > 0 && c.FrameHeight > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(c.FrameWidth))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(c.FrameHeight))
	}

	return &gocvDevice{vc: vc, frame: gocv.NewMat()}, nil
}

type gocvDevice struct {
	mu     sync.Mutex
	vc     *gocv.VideoCapture
	frame  gocv.Mat
	closed bool
}

// ReadFrame читает текущий кадр. Пустой кадр (камера ещё прогревается) не ошибка.
func (d *gocvDevice) ReadFrame() (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, errors.New("device is closed")
	}
	if ok := d.vc.Read(&d.frame); !ok || d.frame.Empty() {
		return nil, nil
	}
	img, err := d.frame.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	return img, nil
}

// Close освобождает кадр и устройство.
func (d *gocvDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	_ = d.frame.Close()
	return d.vc.Close()
}

var _ port.CameraOpener = (*GoCVCamera)(nil)
