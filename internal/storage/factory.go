package storage

import (
	"context"

	appconfig "github.com/kmorozova/mealscan/internal/config"
)

func NewStorage(ctx context.Context, cfg appconfig.Config) (Storage, error) {
	switch cfg.StorageMode {
	case "s3", "aws":
		return NewS3Storage(ctx, cfg)
	default:
		return NewLocalStorage(cfg.LocalStorageDir, cfg.LocalStorageURL)
	}
}

func StorageType(cfg appconfig.Config) string {
	switch cfg.StorageMode {
	case "s3", "aws":
		return "S3"
	default:
		return "local filesystem"
	}
}
