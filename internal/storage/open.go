package storage

import (
	"context"
	"fmt"
	"gift_registry/internal/config"
)

// Open selects the backend named by STORAGE_DRIVER and makes sure its bucket exists
func Open(ctx context.Context, cfg *config.Config) (*Storage, error) {
	var backend ObjectStorage
	switch cfg.StorageDriver {
	case "", "local":
		backend = NewLocal(cfg.UploadDir)
	case "minio":
		m, err := NewMinio(cfg)
		if err != nil {
			return nil, err
		}
		backend = m
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver)
	}
	s := New(backend)
	if err := s.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", s.Bucket(), err)
	}
	return s, nil
}
