package container

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"vein-detect/config"
	app "vein-detect/internal/application"
	"vein-detect/internal/domain/port"
	"vein-detect/internal/infrastructure/detection"
	"vein-detect/internal/infrastructure/metrics"
	"vein-detect/internal/infrastructure/storage"
	"vein-detect/internal/infrastructure/vision"
)

type Container struct {
	Config    *config.Config
	Metrics   *metrics.Manager
	Artifacts *app.ArtifactManager
	Cache     *app.SessionCache
	Detection *app.DetectionService
	Camera    *app.CameraService
	Workspace *app.Workspace

	db *sql.DB
}

// New собирает сервисы приложения по настройкам и загружает кэш сессии
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{
		Config:  cfg,
		Metrics: metrics.NewManager(),
	}

	kv, err := c.openKVStore(ctx)
	if err != nil {
		return nil, err
	}

	blobs, err := openBlobStore(cfg)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.Artifacts = app.NewArtifactManager(blobs, c.Metrics)
	c.Cache = app.NewSessionCache(kv, c.Artifacts, c.Metrics)
	if err := c.Cache.Load(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("load session: %w", err)
	}

	client := detection.NewClient(cfg.HTTPTimeout)
	c.Detection = app.NewDetectionService(client, cfg.Endpoints(), c.Artifacts, c.Cache, c.Metrics)
	c.Camera = app.NewCameraService(vision.NewGoCVCamera(cfg.CameraDevice))
	c.Workspace = app.NewWorkspace(c.Detection, c.Camera, c.Cache, c.Artifacts)

	slog.Debug("Container ready",
		"store", cfg.StoreDriver,
		"endpoints", c.Detection.Endpoints(),
		"history", len(c.Cache.History()),
	)
	return c, nil
}

// Close останавливает камеру и закрывает соединения
func (c *Container) Close() {
	if c.Camera != nil {
		c.Camera.Stop()
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			slog.Warn("Failed to close database", "err", err)
		}
		c.db = nil
	}
}

func (c *Container) openKVStore(ctx context.Context) (port.KVStore, error) {
	switch c.Config.StoreDriver {
	case config.StorePostgres:
		db, err := storage.OpenPostgres(ctx, c.Config.DatabaseURL)
		if err != nil {
			return nil, err
		}
		c.db = db
		return storage.NewPostgresKVStore(ctx, db, c.Config.Profile)
	case config.StoreMemory:
		return storage.NewMemoryKVStore(), nil
	default:
		return storage.NewFileKVStore(c.Config.StorePath), nil
	}
}

func openBlobStore(cfg *config.Config) (port.BlobStore, error) {
	if cfg.ArtifactDir == "" {
		return storage.NewMemoryBlobStore(), nil
	}
	return storage.NewDirBlobStore(cfg.ArtifactDir)
}
