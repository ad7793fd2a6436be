package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/ithub/crossposter/internal/models"
)

type SocialTaskRepository interface {
	Create(ctx context.Context, tx *sql.Tx, task *models.SocialTask) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.SocialTask, error)
	ListByPostID(ctx context.Context, postID int64) ([]*models.SocialTask, error)
	MarkProcessing(ctx context.Context, taskID int64) error
	MarkCompleted(ctx context.Context, taskID int64, externalPostID, externalPostURL string, executedAt time.Time) error
	MarkFailed(ctx context.Context, taskID int64, errorMessage string) error
}

type socialTaskRepository struct {
	db *sql.DB
}

func NewSocialTaskRepository(db *sql.DB) SocialTaskRepository {
	return &socialTaskRepository{db: db}
}

const taskColumns = `id, post_id, platform, social_account_id, status, error_message, external_post_id, external_post_url, executed_at, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (*models.SocialTask, error) {
	var task models.SocialTask
	err := row.Scan(
		&task.ID,
		&task.PostID,
		&task.Platform,
		&task.SocialAccountID,
		&task.Status,
		&task.ErrorMessage,
		&task.ExternalPostID,
		&task.ExternalPostURL,
		&task.ExecutedAt,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *socialTaskRepository) Create(ctx context.Context, tx *sql.Tx, task *models.SocialTask) (int64, error) {
	query := `
		INSERT INTO social_tasks (post_id, platform, social_account_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	var id int64
	var err error

	if tx != nil {
		err = tx.QueryRowContext(ctx, query, task.PostID, task.Platform, task.SocialAccountID, task.Status).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, task.PostID, task.Platform, task.SocialAccountID, task.Status).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *socialTaskRepository) GetByID(ctx context.Context, id int64) (*models.SocialTask, error) {
	query := `SELECT ` + taskColumns + ` FROM social_tasks WHERE id = $1`

	task, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return task, nil
}

func (r *socialTaskRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.SocialTask, error) {
	query := `SELECT ` + taskColumns + ` FROM social_tasks WHERE post_id = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var tasks []*models.SocialTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err = rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return tasks, nil
}

func (r *socialTaskRepository) MarkProcessing(ctx context.Context, taskID int64) error {
	query := `
		UPDATE social_tasks
		SET status = $1,
			error_message = '',
			updated_at = $2
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, models.TaskStatusProcessing, time.Now(), taskID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *socialTaskRepository) MarkCompleted(ctx context.Context, taskID int64, externalPostID, externalPostURL string, executedAt time.Time) error {
	query := `
		UPDATE social_tasks
		SET status = $1,
			external_post_id = $2,
			external_post_url = $3,
			executed_at = $4,
			updated_at = $5
		WHERE id = $6
	`
	_, err := r.db.ExecContext(ctx, query, models.TaskStatusCompleted, externalPostID, externalPostURL, executedAt, time.Now(), taskID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *socialTaskRepository) MarkFailed(ctx context.Context, taskID int64, errorMessage string) error {
	query := `
		UPDATE social_tasks
		SET status = $1,
			error_message = $2,
			updated_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, models.TaskStatusFailed, errorMessage, time.Now(), taskID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
