package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	"github.com/ithub/crossposter/internal/models"
	"github.com/ithub/crossposter/internal/repository"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type MediaService interface {
	Upload(ctx context.Context, userID int64, data []byte) (*models.MediaAsset, error)
	List(ctx context.Context, userID int64) ([]*models.MediaAsset, error)
}

type mediaService struct {
	ma      repository.MediaAssetRepository
	storage *StorageService
}

func NewMediaService(ma repository.MediaAssetRepository, storage *StorageService) MediaService {
	return &mediaService{ma: ma, storage: storage}
}

// Upload sniffs the real content type, stores the bytes in object storage
// under a random key and records the asset row. Only still images and the
// common video containers are accepted.
func (s *mediaService) Upload(ctx context.Context, userID int64, data []byte) (*models.MediaAsset, error) {
	if len(data) == 0 {
		return nil, errors.New("no file content provided")
	}

	allowedTypes := map[string]struct{}{
		"mp4": {}, "mov": {}, "jpeg": {}, "png": {}, "jpg": {}, "gif": {},
	}

	fileType, err := filetype.Match(data)
	if err != nil || fileType == types.Unknown {
		return nil, fmt.Errorf("unsupported file type: %v", err)
	}
	if _, ok := allowedTypes[fileType.Extension]; !ok {
		return nil, fmt.Errorf("file type %s is not allowed", fileType.Extension)
	}

	key, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("error generating storage key: %w", err)
	}

	fileURL, err := s.storage.Upload(ctx, key, data, fileType.MIME.Value)
	if err != nil {
		return nil, fmt.Errorf("error uploading file: %w", err)
	}

	asset := models.MediaAsset{
		UserID:   userID,
		FileName: key,
		MimeType: fileType.MIME.Value,
		FileSize: int64(len(data)),
		FileURL:  fileURL,
	}

	assetID, err := s.ma.Create(ctx, nil, &asset)
	if err != nil {
		return nil, fmt.Errorf("error saving media asset: %w", err)
	}
	asset.ID = assetID

	return &asset, nil
}

func (s *mediaService) List(ctx context.Context, userID int64) ([]*models.MediaAsset, error) {
	assets, err := s.ma.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing media assets: %w", err)
	}
	return assets, nil
}
