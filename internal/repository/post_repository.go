package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/ithub/crossposter/internal/models"
	"github.com/lib/pq"
)

type PostRepository interface {
	Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	ListByAuthorID(ctx context.Context, authorID int64, status string, limit, offset int) ([]*models.Post, error)
	ListDue(ctx context.Context, now time.Time) ([]*models.Post, error)
	Update(ctx context.Context, tx *sql.Tx, post *models.Post) error
	UpdateStatus(ctx context.Context, status string, postID int64) error
	SetPublished(ctx context.Context, postID int64, publishedAt time.Time) error
	CheckByAuthorID(ctx context.Context, postID, authorID int64) (bool, error)
	Remove(ctx context.Context, id int64) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, author_id, title, content, post_type, tags, status, scheduled_at, published_at, created_at, updated_at`

func scanPost(row interface{ Scan(...any) error }) (*models.Post, error) {
	var post models.Post
	err := row.Scan(
		&post.ID,
		&post.AuthorID,
		&post.Title,
		&post.Content,
		&post.PostType,
		pq.Array(&post.Tags),
		&post.Status,
		&post.ScheduledAt,
		&post.PublishedAt,
		&post.CreatedAt,
		&post.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	query := `
		INSERT INTO posts (author_id, title, content, post_type, tags, status, scheduled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	var id int64
	var err error

	if tx != nil {
		err = tx.QueryRowContext(ctx, query, post.AuthorID, post.Title, post.Content, post.PostType, pq.Array(post.Tags), post.Status, post.ScheduledAt).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, post.AuthorID, post.Title, post.Content, post.PostType, pq.Array(post.Tags), post.Status, post.ScheduledAt).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	post, err := scanPost(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return post, nil
}

func (r *postRepository) ListByAuthorID(ctx context.Context, authorID int64, status string, limit, offset int) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE author_id = $1`
	args := []any{authorID}

	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	if limit > 0 {
		args = append(args, limit, offset)
		switch len(args) {
		case 3:
			query += ` LIMIT $2 OFFSET $3`
		case 4:
			query += ` LIMIT $3 OFFSET $4`
		}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	if err = rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) ListDue(ctx context.Context, now time.Time) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE status = $1 AND scheduled_at IS NOT NULL AND scheduled_at <= $2`

	rows, err := r.db.QueryContext(ctx, query, models.PostStatusScheduled, now)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	if err = rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) Update(ctx context.Context, tx *sql.Tx, post *models.Post) error {
	query := `
		UPDATE posts
		SET title = $1,
			content = $2,
			post_type = $3,
			tags = $4,
			status = $5,
			scheduled_at = $6,
			updated_at = $7
		WHERE id = $8
	`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, post.Title, post.Content, post.PostType, pq.Array(post.Tags), post.Status, post.ScheduledAt, time.Now(), post.ID)
	} else {
		_, err = r.db.ExecContext(ctx, query, post.Title, post.Content, post.PostType, pq.Array(post.Tags), post.Status, post.ScheduledAt, time.Now(), post.ID)
	}
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) UpdateStatus(ctx context.Context, status string, postID int64) error {
	query := `
		UPDATE posts
		SET status = $1,
			updated_at = $2
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, status, time.Now(), postID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// SetPublished stamps published_at only if it has not been set before.
func (r *postRepository) SetPublished(ctx context.Context, postID int64, publishedAt time.Time) error {
	query := `
		UPDATE posts
		SET status = $1,
			published_at = COALESCE(published_at, $2),
			updated_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, models.PostStatusPublished, publishedAt, time.Now(), postID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) CheckByAuthorID(ctx context.Context, postID, authorID int64) (bool, error) {
	query := "SELECT 1 FROM posts WHERE id = $1 AND author_id = $2"

	var result int
	err := r.db.QueryRowContext(ctx, query, postID, authorID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

// Remove deletes the post; post_media and social_tasks rows go with it
// through ON DELETE CASCADE.
func (r *postRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM posts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
