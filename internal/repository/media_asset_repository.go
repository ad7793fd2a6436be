package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/ithub/crossposter/internal/models"
)

type MediaAssetRepository interface {
	Create(ctx context.Context, tx *sql.Tx, ma *models.MediaAsset) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.MediaAsset, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.MediaAsset, error)
}

type mediaAssetRepository struct {
	db *sql.DB
}

func NewMediaAssetRepository(db *sql.DB) MediaAssetRepository {
	return &mediaAssetRepository{db: db}
}

func (r *mediaAssetRepository) Create(ctx context.Context, tx *sql.Tx, ma *models.MediaAsset) (int64, error) {
	query := `
		INSERT INTO media_assets (user_id, file_name, mime_type, file_size, file_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	var id int64
	var err error

	if tx != nil {
		err = tx.QueryRowContext(ctx, query, ma.UserID, ma.FileName, ma.MimeType, ma.FileSize, ma.FileURL).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, ma.UserID, ma.FileName, ma.MimeType, ma.FileSize, ma.FileURL).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *mediaAssetRepository) GetByID(ctx context.Context, id int64) (*models.MediaAsset, error) {
	query := `SELECT id, user_id, file_name, mime_type, file_size, file_url, created_at FROM media_assets WHERE id = $1`

	var ma models.MediaAsset
	err := r.db.QueryRowContext(ctx, query, id).Scan(&ma.ID, &ma.UserID, &ma.FileName, &ma.MimeType, &ma.FileSize, &ma.FileURL, &ma.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &ma, nil
}

func (r *mediaAssetRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.MediaAsset, error) {
	query := `SELECT id, user_id, file_name, mime_type, file_size, file_url, created_at FROM media_assets WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var assets []*models.MediaAsset
	for rows.Next() {
		var ma models.MediaAsset
		if err := rows.Scan(&ma.ID, &ma.UserID, &ma.FileName, &ma.MimeType, &ma.FileSize, &ma.FileURL, &ma.CreatedAt); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		assets = append(assets, &ma)
	}
	if err = rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return assets, nil
}
