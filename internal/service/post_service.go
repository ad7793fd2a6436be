package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ithub/crossposter/internal/models"
	"github.com/ithub/crossposter/internal/repository"
	"github.com/ithub/crossposter/internal/transfer"
)

type PostService interface {
	Create(ctx context.Context, userID int64, pc *transfer.PostCreation) (*models.Post, error)
	Get(ctx context.Context, userID, postID int64) (*models.Post, error)
	List(ctx context.Context, userID int64, status string, limit, offset int) ([]*models.Post, error)
	Update(ctx context.Context, userID, postID int64, pu *transfer.PostUpdate) (*models.Post, error)
	Remove(ctx context.Context, userID, postID int64) error
}

type postService struct {
	db *sql.DB
	pr repository.PostRepository
	tr repository.SocialTaskRepository
	pm repository.PostMediaRepository
	sa repository.SocialAccountRepository
	ma repository.MediaAssetRepository
}

func NewPostService(
	db *sql.DB,
	pr repository.PostRepository,
	tr repository.SocialTaskRepository,
	pm repository.PostMediaRepository,
	sa repository.SocialAccountRepository,
	ma repository.MediaAssetRepository) PostService {
	return &postService{
		db: db,
		pr: pr,
		tr: tr,
		pm: pm,
		sa: sa,
		ma: ma,
	}
}

func (s *postService) Create(ctx context.Context, userID int64, pc *transfer.PostCreation) (*models.Post, error) {
	if pc == nil {
		return nil, errors.New("post data is nil")
	}
	if strings.TrimSpace(pc.Title) == "" {
		return nil, errors.New("title cannot be empty")
	}

	scheduledAt, status, err := parseScheduledAt(pc.ScheduledAt)
	if err != nil {
		return nil, err
	}

	postType, err := s.derivePostType(ctx, userID, pc.Media)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		}
	}()

	post := models.Post{
		AuthorID:    userID,
		Title:       pc.Title,
		Content:     pc.Content,
		PostType:    postType,
		Tags:        uniqueTags(pc.Tags),
		Status:      status,
		ScheduledAt: scheduledAt,
	}

	postID, err := s.pr.Create(ctx, tx, &post)
	if err != nil {
		return nil, fmt.Errorf("error creating post: %w", err)
	}

	if err = s.saveMedia(ctx, tx, postID, pc.Media); err != nil {
		return nil, err
	}

	if err = s.saveTasks(ctx, tx, userID, postID, pc.SocialAccountIDs); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	created, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	return s.attach(ctx, created)
}

func parseScheduledAt(raw string) (sql.NullTime, string, error) {
	if raw == "" {
		return sql.NullTime{}, models.PostStatusDraft, nil
	}

	scheduledAt, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return sql.NullTime{}, "", fmt.Errorf("invalid scheduled time format: %w", err)
	}
	if !scheduledAt.After(time.Now()) {
		return sql.NullTime{}, "", errors.New("scheduled time must be in the future")
	}

	return sql.NullTime{Time: scheduledAt, Valid: true}, models.PostStatusScheduled, nil
}

func uniqueTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	var out []string
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// derivePostType classifies the post by its attachments. Every referenced
// asset must exist and belong to the caller; foreign assets look the same as
// missing ones.
func (s *postService) derivePostType(ctx context.Context, userID int64, media []transfer.PostMediaItem) (string, error) {
	if len(media) == 0 {
		return models.PostTypeText, nil
	}

	var hasImage, hasVideo, hasOther bool
	for _, item := range media {
		asset, err := s.ma.GetByID(ctx, item.MediaID)
		if err != nil {
			return "", fmt.Errorf("error checking media %d: %w", item.MediaID, err)
		}
		if asset == nil || asset.UserID != userID {
			return "", fmt.Errorf("media asset %d does not exist", item.MediaID)
		}
		switch {
		case strings.HasPrefix(asset.MimeType, "image/"):
			hasImage = true
		case strings.HasPrefix(asset.MimeType, "video/"):
			hasVideo = true
		default:
			hasOther = true
		}
	}

	switch {
	case hasImage && !hasVideo && !hasOther:
		return models.PostTypeImage, nil
	case hasVideo && !hasImage && !hasOther:
		return models.PostTypeVideo, nil
	default:
		return models.PostTypeMixed, nil
	}
}

// saveMedia records the attachment rows; ownership of the referenced assets
// was already verified by derivePostType.
func (s *postService) saveMedia(ctx context.Context, tx *sql.Tx, postID int64, media []transfer.PostMediaItem) error {
	for i, item := range media {
		pm := models.PostMedia{
			PostID:    postID,
			MediaID:   item.MediaID,
			Caption:   item.Caption,
			SortOrder: i,
		}
		if err := s.pm.Create(ctx, tx, &pm); err != nil {
			return fmt.Errorf("error saving media reference %d: %w", item.MediaID, err)
		}
	}
	return nil
}

func (s *postService) saveTasks(ctx context.Context, tx *sql.Tx, userID, postID int64, accountIDs []int64) error {
	for _, accountID := range accountIDs {
		account, err := s.sa.GetByID(ctx, accountID)
		if err != nil {
			return fmt.Errorf("error checking social account %d: %w", accountID, err)
		}
		if account == nil || account.UserID != userID {
			return fmt.Errorf("%w: id %d", ErrAccountNotFound, accountID)
		}

		task := models.SocialTask{
			PostID:          postID,
			Platform:        account.Platform,
			SocialAccountID: accountID,
			Status:          models.TaskStatusPending,
		}
		if _, err := s.tr.Create(ctx, tx, &task); err != nil {
			return fmt.Errorf("error creating task for account %d: %w", accountID, err)
		}
	}
	return nil
}

func (s *postService) attach(ctx context.Context, post *models.Post) (*models.Post, error) {
	if post == nil {
		return nil, nil
	}

	media, err := s.pm.ListByPostID(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.tr.ListByPostID(ctx, post.ID)
	if err != nil {
		return nil, err
	}

	post.Media = media
	post.Tasks = tasks
	return post, nil
}

func (s *postService) Get(ctx context.Context, userID, postID int64) (*models.Post, error) {
	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil || post.AuthorID != userID {
		return nil, fmt.Errorf("%w: id %d", ErrPostNotFound, postID)
	}

	return s.attach(ctx, post)
}

func (s *postService) List(ctx context.Context, userID int64, status string, limit, offset int) ([]*models.Post, error) {
	posts, err := s.pr.ListByAuthorID(ctx, userID, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("error listing posts: %w", err)
	}
	return posts, nil
}

// Update replaces the editable fields of a draft. Posts in any other state
// are immutable outside the publish pipeline.
func (s *postService) Update(ctx context.Context, userID, postID int64, pu *transfer.PostUpdate) (*models.Post, error) {
	if pu == nil {
		return nil, errors.New("post data is nil")
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil || post.AuthorID != userID {
		return nil, fmt.Errorf("%w: id %d", ErrPostNotFound, postID)
	}
	if post.Status != models.PostStatusDraft {
		return nil, fmt.Errorf("%w: cannot update a %s post", ErrInvalidState, post.Status)
	}

	scheduledAt, status, err := parseScheduledAt(pu.ScheduledAt)
	if err != nil {
		return nil, err
	}

	postType, err := s.derivePostType(ctx, userID, pu.Media)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		}
	}()

	post.Title = pu.Title
	post.Content = pu.Content
	post.Tags = uniqueTags(pu.Tags)
	post.PostType = postType
	post.ScheduledAt = scheduledAt
	post.Status = status

	if err = s.pr.Update(ctx, tx, post); err != nil {
		return nil, fmt.Errorf("error updating post: %w", err)
	}

	if err = s.pm.RemoveByPostID(ctx, tx, postID); err != nil {
		return nil, fmt.Errorf("error clearing media references: %w", err)
	}
	if err = s.saveMedia(ctx, tx, postID, pu.Media); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return s.attach(ctx, post)
}

// Remove deletes a post that is still a draft or has failed publication.
func (s *postService) Remove(ctx context.Context, userID, postID int64) error {
	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post == nil || post.AuthorID != userID {
		slog.Info("post not found for removal", "post_id", postID, "user_id", userID)
		return fmt.Errorf("%w: id %d", ErrPostNotFound, postID)
	}
	if post.Status != models.PostStatusDraft && post.Status != models.PostStatusFailed {
		return fmt.Errorf("%w: cannot delete a %s post", ErrInvalidState, post.Status)
	}

	if err := s.pr.Remove(ctx, postID); err != nil {
		return fmt.Errorf("error removing post: %w", err)
	}

	return nil
}
