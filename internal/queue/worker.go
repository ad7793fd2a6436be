package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/ithub/crossposter/internal/models"
	"github.com/ithub/crossposter/internal/service"
)

type publisher interface {
	Publish(ctx context.Context, postID int64) (*models.Post, error)
}

type postStatusUpdater interface {
	UpdateStatus(ctx context.Context, status string, postID int64) error
}

// Worker consumes publish tasks. Each task covers exactly one post, so a
// failure here can never spill over into another post's delivery.
type Worker struct {
	publisher publisher
	posts     postStatusUpdater
}

func NewWorker(publisher publisher, posts postStatusUpdater) *Worker {
	return &Worker{publisher: publisher, posts: posts}
}

func (w *Worker) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	post, err := w.publisher.Publish(ctx, payload.PostID)
	if err != nil {
		slog.Error("publish failed", "post_id", payload.PostID, "error", err.Error())

		// A vanished or task-less post is unrecoverable; everything else
		// gets recorded as a failed post so the owner can retry.
		if !errors.Is(err, service.ErrPostNotFound) && !errors.Is(err, service.ErrNoTasks) {
			if err := w.posts.UpdateStatus(ctx, models.PostStatusFailed, payload.PostID); err != nil {
				slog.Error("error marking post failed", "post_id", payload.PostID, "error", err.Error())
			}
		}
		return nil
	}

	slog.Info("publish finished", "post_id", post.ID, "status", post.Status)
	return nil
}
