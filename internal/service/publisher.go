package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ithub/crossposter/internal/models"
	"github.com/ithub/crossposter/internal/repository"
	"github.com/ithub/crossposter/internal/sender"
	"github.com/ithub/crossposter/internal/transfer"
)

// Publisher owns a post's social-delivery lifecycle: it walks the post's
// tasks, dispatches each one to its platform sender and folds the per-task
// outcomes into the post status.
type Publisher interface {
	Publish(ctx context.Context, postID int64) (*models.Post, error)
}

type publisher struct {
	pr       repository.PostRepository
	tr       repository.SocialTaskRepository
	pm       repository.PostMediaRepository
	accounts AccountDirectory
	resolver MediaResolver
	senders  *sender.Registry

	mu    sync.Mutex
	locks map[int64]*postLock
}

// postLock serializes publish runs for one post. The queue worker and the
// manual publish endpoint share the same publisher, so both paths queue up
// here instead of marking the same pending task twice.
type postLock struct {
	mu   sync.Mutex
	refs int
}

func NewPublisher(
	pr repository.PostRepository,
	tr repository.SocialTaskRepository,
	pm repository.PostMediaRepository,
	accounts AccountDirectory,
	resolver MediaResolver,
	senders *sender.Registry) Publisher {
	return &publisher{
		pr:       pr,
		tr:       tr,
		pm:       pm,
		accounts: accounts,
		resolver: resolver,
		senders:  senders,
		locks:    make(map[int64]*postLock),
	}
}

func (p *publisher) acquire(postID int64) *postLock {
	p.mu.Lock()
	l := p.locks[postID]
	if l == nil {
		l = &postLock{}
		p.locks[postID] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return l
}

func (p *publisher) release(postID int64, l *postLock) {
	l.mu.Unlock()

	p.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(p.locks, postID)
	}
	p.mu.Unlock()
}

// Publish runs every task of the post that has not completed yet. Tasks are
// processed one after another and each status change is persisted before the
// next step, so a crash mid-loop leaves visible progress and a re-run skips
// what already went out. One task's failure never aborts its siblings; it
// only drags the aggregate status down to failed.
//
// Runs for the same post are serialized: a second caller waits, then sees the
// first run's completed tasks and skips them.
func (p *publisher) Publish(ctx context.Context, postID int64) (*models.Post, error) {
	l := p.acquire(postID)
	defer p.release(postID, l)

	post, err := p.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("error loading post %d: %w", postID, err)
	}
	if post == nil {
		return nil, fmt.Errorf("%w: id %d", ErrPostNotFound, postID)
	}

	tasks, err := p.tr.ListByPostID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("error loading tasks for post %d: %w", postID, err)
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("%w: id %d", ErrNoTasks, postID)
	}

	allSuccess := true

	for _, task := range tasks {
		if task.Status == models.TaskStatusCompleted {
			continue
		}

		slog.Info("task entering processing", "post_id", postID, "task_id", task.ID, "platform", task.Platform)
		if err := p.tr.MarkProcessing(ctx, task.ID); err != nil {
			return nil, fmt.Errorf("error marking task %d processing: %w", task.ID, err)
		}
		task.Status = models.TaskStatusProcessing

		ref, err := p.dispatch(ctx, post, task)
		if err != nil {
			slog.Error("task delivery failed", "post_id", postID, "task_id", task.ID, "platform", task.Platform, "error", err.Error())
			if err := p.tr.MarkFailed(ctx, task.ID, err.Error()); err != nil {
				return nil, fmt.Errorf("error marking task %d failed: %w", task.ID, err)
			}
			task.Status = models.TaskStatusFailed
			task.ErrorMessage = err.Error()
			allSuccess = false
			continue
		}

		executedAt := time.Now()
		if err := p.tr.MarkCompleted(ctx, task.ID, ref.PostID, ref.PostURL, executedAt); err != nil {
			return nil, fmt.Errorf("error marking task %d completed: %w", task.ID, err)
		}
		task.Status = models.TaskStatusCompleted
		task.ErrorMessage = ""
		task.ExternalPostID = ref.PostID
		task.ExternalPostURL = ref.PostURL
		task.ExecutedAt.Time = executedAt
		task.ExecutedAt.Valid = true
	}

	// Pessimistic aggregate: the post counts as published only when every
	// selected platform succeeded. Individual completed tasks survive a
	// failed aggregate and are skipped on the next attempt.
	if allSuccess {
		publishedAt := time.Now()
		if err := p.pr.SetPublished(ctx, postID, publishedAt); err != nil {
			return nil, fmt.Errorf("error marking post %d published: %w", postID, err)
		}
		post.Status = models.PostStatusPublished
		if !post.PublishedAt.Valid {
			post.PublishedAt.Time = publishedAt
			post.PublishedAt.Valid = true
		}
	} else {
		if err := p.pr.UpdateStatus(ctx, models.PostStatusFailed, postID); err != nil {
			return nil, fmt.Errorf("error marking post %d failed: %w", postID, err)
		}
		post.Status = models.PostStatusFailed
	}

	post.Tasks = tasks
	return post, nil
}

// dispatch resolves the task's account and sends the post through the
// platform sender. Posts without media go out as text; otherwise only the
// first attached media item in sort order is sent.
func (p *publisher) dispatch(ctx context.Context, post *models.Post, task *models.SocialTask) (*sender.ExternalRef, error) {
	s, err := p.senders.Get(task.Platform)
	if err != nil {
		return nil, err
	}

	accounts, err := p.accounts.ListForUser(ctx, post.AuthorID, task.Platform)
	if err != nil {
		return nil, err
	}

	var account *models.SocialAccount
	for _, acc := range accounts {
		if acc.ID == task.SocialAccountID {
			account = acc
			break
		}
	}
	if account == nil {
		return nil, fmt.Errorf("%w: id %d for platform %s", ErrAccountNotFound, task.SocialAccountID, task.Platform)
	}
	if !account.Active {
		return nil, fmt.Errorf("social account %d is not active", account.ID)
	}

	target := sender.Account{
		ExternalID:  account.ExternalID,
		AccessToken: account.AccessToken,
	}

	first, err := p.pm.FirstByPostID(ctx, post.ID)
	if err != nil {
		return nil, fmt.Errorf("error loading media for post %d: %w", post.ID, err)
	}

	if first == nil {
		return s.PublishText(ctx, target, post.Content)
	}

	// Unavailable storage degrades to a placeholder and the sender decides
	// what to do with it. The fallback resolver already guarantees this; the
	// guard keeps the contract when a bare resolver is injected.
	desc, err := p.resolver.GetDescriptor(ctx, first.MediaID)
	if err != nil || desc == nil {
		desc = &transfer.MediaDescriptor{
			MimeType: "application/octet-stream",
			FileName: "unavailable.file",
		}
	}
	content, err := p.resolver.GetContent(ctx, first.MediaID)
	if err != nil {
		content = []byte{}
	}

	caption := sender.TruncateCaption(post.Content, s.CaptionLimit())
	return s.PublishMedia(ctx, target, content, desc.MimeType, caption)
}
