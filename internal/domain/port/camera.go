package port

import (
	"context"
	"image"
)

// CameraOpener открывает устройство захвата видео
type CameraOpener interface {
	// Open запрашивает поток с основной (тыловой) камеры
	Open(ctx context.Context) (CameraDevice, error)
}

// CameraDevice открытый поток камеры
type CameraDevice interface {
	// ReadFrame возвращает текущий кадр. Если кадра ещё нет, возвращает nil без ошибки.
	ReadFrame() (image.Image, error)

	// Close останавливает поток
	Close() error
}
