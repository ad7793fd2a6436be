package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ithub/crossposter/internal/repository"
	"github.com/ithub/crossposter/internal/transfer"
)

// MediaResolver turns a media id into descriptive metadata and raw content.
type MediaResolver interface {
	GetDescriptor(ctx context.Context, mediaID int64) (*transfer.MediaDescriptor, error)
	GetContent(ctx context.Context, mediaID int64) ([]byte, error)
}

// NewMediaResolver wraps a resolver so that callers always get a usable
// value: failures and timeouts come back as a degraded placeholder instead
// of an error. One unavailable storage backend must not block text-only
// deliveries.
func NewMediaResolver(inner MediaResolver, timeout time.Duration) MediaResolver {
	return &fallbackResolver{inner: inner, timeout: timeout}
}

type fallbackResolver struct {
	inner   MediaResolver
	timeout time.Duration
}

func (r *fallbackResolver) GetDescriptor(ctx context.Context, mediaID int64) (*transfer.MediaDescriptor, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	desc, err := r.inner.GetDescriptor(ctx, mediaID)
	if err != nil {
		slog.Error("media storage unavailable, using placeholder descriptor", "media_id", mediaID, "error", err.Error())
		return &transfer.MediaDescriptor{
			MimeType: "application/octet-stream",
			FileName: "unavailable.file",
		}, nil
	}
	return desc, nil
}

func (r *fallbackResolver) GetContent(ctx context.Context, mediaID int64) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	data, err := r.inner.GetContent(ctx, mediaID)
	if err != nil {
		slog.Error("media storage unavailable, using empty content", "media_id", mediaID, "error", err.Error())
		return []byte{}, nil
	}
	return data, nil
}

// NewStorageResolver reads metadata from the media_assets table and content
// from object storage.
func NewStorageResolver(ma repository.MediaAssetRepository, storage *StorageService) MediaResolver {
	return &storageResolver{ma: ma, storage: storage}
}

type storageResolver struct {
	ma      repository.MediaAssetRepository
	storage *StorageService
}

func (r *storageResolver) GetDescriptor(ctx context.Context, mediaID int64) (*transfer.MediaDescriptor, error) {
	asset, err := r.ma.GetByID(ctx, mediaID)
	if err != nil {
		return nil, fmt.Errorf("error fetching media asset %d: %w", mediaID, err)
	}
	if asset == nil {
		return nil, fmt.Errorf("media asset %d does not exist", mediaID)
	}

	return &transfer.MediaDescriptor{
		MimeType:  asset.MimeType,
		FileName:  asset.FileName,
		SizeBytes: asset.FileSize,
	}, nil
}

func (r *storageResolver) GetContent(ctx context.Context, mediaID int64) ([]byte, error) {
	asset, err := r.ma.GetByID(ctx, mediaID)
	if err != nil {
		return nil, fmt.Errorf("error fetching media asset %d: %w", mediaID, err)
	}
	if asset == nil {
		return nil, fmt.Errorf("media asset %d does not exist", mediaID)
	}

	data, err := r.storage.Download(ctx, asset.FileName)
	if err != nil {
		return nil, fmt.Errorf("error downloading media asset %d: %w", mediaID, err)
	}
	return data, nil
}
