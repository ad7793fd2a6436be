package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/ithub/crossposter/internal/models"
)

type PostMediaRepository interface {
	Create(ctx context.Context, tx *sql.Tx, pm *models.PostMedia) error
	FirstByPostID(ctx context.Context, postID int64) (*models.PostMedia, error)
	ListByPostID(ctx context.Context, postID int64) ([]*models.PostMedia, error)
	RemoveByPostID(ctx context.Context, tx *sql.Tx, postID int64) error
}

type postMediaRepository struct {
	db *sql.DB
}

func NewPostMediaRepository(db *sql.DB) PostMediaRepository {
	return &postMediaRepository{db: db}
}

func (r *postMediaRepository) Create(ctx context.Context, tx *sql.Tx, pm *models.PostMedia) error {
	var err error

	query := `
		INSERT INTO post_media (post_id, media_id, caption, sort_order)
		VALUES ($1, $2, $3, $4)
	`
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, pm.PostID, pm.MediaID, pm.Caption, pm.SortOrder)
	} else {
		_, err = r.db.ExecContext(ctx, query, pm.PostID, pm.MediaID, pm.Caption, pm.SortOrder)
	}

	if err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}

// FirstByPostID returns the first media item in display order. Dispatch sends
// only this item per task.
func (r *postMediaRepository) FirstByPostID(ctx context.Context, postID int64) (*models.PostMedia, error) {
	query := `
		SELECT id, post_id, media_id, caption, sort_order, created_at
		FROM post_media
		WHERE post_id = $1
		ORDER BY sort_order
		LIMIT 1
	`

	var pm models.PostMedia
	err := r.db.QueryRowContext(ctx, query, postID).Scan(&pm.ID, &pm.PostID, &pm.MediaID, &pm.Caption, &pm.SortOrder, &pm.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &pm, nil
}

func (r *postMediaRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.PostMedia, error) {
	query := `
		SELECT id, post_id, media_id, caption, sort_order, created_at
		FROM post_media
		WHERE post_id = $1
		ORDER BY sort_order
	`

	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var postMedias []*models.PostMedia
	for rows.Next() {
		var pm models.PostMedia
		if err := rows.Scan(&pm.ID, &pm.PostID, &pm.MediaID, &pm.Caption, &pm.SortOrder, &pm.CreatedAt); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		postMedias = append(postMedias, &pm)
	}

	if err = rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return postMedias, nil
}

func (r *postMediaRepository) RemoveByPostID(ctx context.Context, tx *sql.Tx, postID int64) error {
	var err error

	query := `DELETE FROM post_media WHERE post_id = $1`
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, postID)
	} else {
		_, err = r.db.ExecContext(ctx, query, postID)
	}

	if err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}
