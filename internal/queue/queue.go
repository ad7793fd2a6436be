package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const TaskTypePublishPost = "publish:post"

type PublishPostPayload struct {
	PostID int64 `json:"post_id"`
}

// Enqueuer hands a post over to the asynchronous publish pipeline.
type Enqueuer interface {
	EnqueuePublish(postID int64, delay time.Duration) error
}

type Client struct {
	asynq *asynq.Client
}

func NewClient(asynqClient *asynq.Client) *Client {
	return &Client{asynq: asynqClient}
}

// EnqueuePublish schedules one publish task per post. The task id pins the
// post so a tick firing while an earlier publish is still pending does not
// enqueue it twice.
func (c *Client) EnqueuePublish(postID int64, delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}

	payload, err := json.Marshal(PublishPostPayload{PostID: postID})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypePublishPost, payload)
	_, err = c.asynq.Enqueue(task,
		asynq.ProcessIn(delay),
		asynq.TaskID(fmt.Sprintf("publish:post:%d", postID)),
	)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			slog.Info("publish already enqueued", "post_id", postID)
			return nil
		}
		return err
	}

	slog.Info("publish enqueued", "post_id", postID, "delay", delay.String())
	return nil
}
