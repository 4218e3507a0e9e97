package storage

import (
	"context"

	"github.com/attendsync/backend/internal/application/reconciliation"
	infraconfig "github.com/attendsync/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// NewPunchArchive returns an S3 archive when storage is enabled and a no-op
// archive otherwise. The bucket is created if missing.
func NewPunchArchive(ctx context.Context, cfg *infraconfig.StorageConfig, logger *zap.Logger) (reconciliation.PunchArchive, error) {
	if cfg == nil || !cfg.Enabled {
		return reconciliation.NopArchive{}, nil
	}
	archive, err := NewS3PunchArchive(cfg, WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if err := archive.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return archive, nil
}
