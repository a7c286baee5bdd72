//go:build !gocv

package container

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"vein-detect/config"
	"vein-detect/internal/domain/entity"
)

func TestContainer_CameraUnavailableWithoutGoCV(t *testing.T) {
	cfg := config.Default()
	cfg.StoreDriver = config.StoreMemory

	c, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer c.Close()

	err = c.Workspace.StartCamera(context.Background())
	require.Error(t, err)
	require.Equal(t, entity.CameraIdle, c.Workspace.CameraState())
}
