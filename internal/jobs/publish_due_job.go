package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/ithub/crossposter/internal/queue"
	"github.com/ithub/crossposter/internal/repository"
)

// PublishDueJob promotes scheduled posts whose time has come into the
// publish pipeline. It only queries; the orchestrator owns the state
// transitions.
type PublishDueJob struct {
	pr repository.PostRepository
	eq queue.Enqueuer
}

func NewPublishDueJob(pr repository.PostRepository, eq queue.Enqueuer) *PublishDueJob {
	return &PublishDueJob{pr: pr, eq: eq}
}

func (j *PublishDueJob) Run() {
	ctx := context.Background()

	posts, err := j.pr.ListDue(ctx, time.Now())
	if err != nil {
		slog.Info(err.Error())
		return
	}

	for _, post := range posts {
		if err := j.eq.EnqueuePublish(post.ID, 0); err != nil {
			slog.Error("error enqueueing due post", "post_id", post.ID, "error", err.Error())
			continue
		}
	}
}
