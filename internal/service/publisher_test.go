package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ithub/crossposter/internal/models"
	"github.com/ithub/crossposter/internal/sender"
	"github.com/ithub/crossposter/internal/transfer"
)

type fakePostRepo struct {
	posts         map[int64]*models.Post
	due           []*models.Post
	statusUpdates []string
	published     map[int64]time.Time
}

func newFakePostRepo(posts ...*models.Post) *fakePostRepo {
	r := &fakePostRepo{posts: make(map[int64]*models.Post), published: make(map[int64]time.Time)}
	for _, p := range posts {
		r.posts[p.ID] = p
	}
	return r
}

func (r *fakePostRepo) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	post.ID = int64(len(r.posts) + 1)
	r.posts[post.ID] = post
	return post.ID, nil
}

func (r *fakePostRepo) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	return r.posts[id], nil
}

func (r *fakePostRepo) ListByAuthorID(ctx context.Context, authorID int64, status string, limit, offset int) ([]*models.Post, error) {
	var out []*models.Post
	for _, p := range r.posts {
		if p.AuthorID == authorID && (status == "" || p.Status == status) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePostRepo) ListDue(ctx context.Context, now time.Time) ([]*models.Post, error) {
	return r.due, nil
}

func (r *fakePostRepo) Update(ctx context.Context, tx *sql.Tx, post *models.Post) error {
	r.posts[post.ID] = post
	return nil
}

func (r *fakePostRepo) UpdateStatus(ctx context.Context, status string, postID int64) error {
	r.statusUpdates = append(r.statusUpdates, status)
	if p, ok := r.posts[postID]; ok {
		p.Status = status
	}
	return nil
}

func (r *fakePostRepo) SetPublished(ctx context.Context, postID int64, publishedAt time.Time) error {
	if _, ok := r.published[postID]; !ok {
		r.published[postID] = publishedAt
	}
	if p, ok := r.posts[postID]; ok {
		p.Status = models.PostStatusPublished
	}
	return nil
}

func (r *fakePostRepo) CheckByAuthorID(ctx context.Context, postID, authorID int64) (bool, error) {
	p, ok := r.posts[postID]
	return ok && p.AuthorID == authorID, nil
}

func (r *fakePostRepo) Remove(ctx context.Context, id int64) error {
	delete(r.posts, id)
	return nil
}

type fakeTaskRepo struct {
	tasks     []*models.SocialTask
	processed []int64
	completed []int64
	failed    []int64
}

func (r *fakeTaskRepo) find(id int64) *models.SocialTask {
	for _, t := range r.tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (r *fakeTaskRepo) Create(ctx context.Context, tx *sql.Tx, task *models.SocialTask) (int64, error) {
	task.ID = int64(len(r.tasks) + 1)
	r.tasks = append(r.tasks, task)
	return task.ID, nil
}

func (r *fakeTaskRepo) GetByID(ctx context.Context, id int64) (*models.SocialTask, error) {
	return r.find(id), nil
}

func (r *fakeTaskRepo) ListByPostID(ctx context.Context, postID int64) ([]*models.SocialTask, error) {
	var out []*models.SocialTask
	for _, t := range r.tasks {
		if t.PostID == postID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTaskRepo) MarkProcessing(ctx context.Context, taskID int64) error {
	r.processed = append(r.processed, taskID)
	if t := r.find(taskID); t != nil {
		t.Status = models.TaskStatusProcessing
		t.ErrorMessage = ""
	}
	return nil
}

func (r *fakeTaskRepo) MarkCompleted(ctx context.Context, taskID int64, externalPostID, externalPostURL string, executedAt time.Time) error {
	r.completed = append(r.completed, taskID)
	return nil
}

func (r *fakeTaskRepo) MarkFailed(ctx context.Context, taskID int64, errorMessage string) error {
	r.failed = append(r.failed, taskID)
	return nil
}

type fakePostMediaRepo struct {
	media []*models.PostMedia
}

func (r *fakePostMediaRepo) Create(ctx context.Context, tx *sql.Tx, pm *models.PostMedia) error {
	r.media = append(r.media, pm)
	return nil
}

func (r *fakePostMediaRepo) FirstByPostID(ctx context.Context, postID int64) (*models.PostMedia, error) {
	for _, pm := range r.media {
		if pm.PostID == postID {
			return pm, nil
		}
	}
	return nil, nil
}

func (r *fakePostMediaRepo) ListByPostID(ctx context.Context, postID int64) ([]*models.PostMedia, error) {
	var out []*models.PostMedia
	for _, pm := range r.media {
		if pm.PostID == postID {
			out = append(out, pm)
		}
	}
	return out, nil
}

func (r *fakePostMediaRepo) RemoveByPostID(ctx context.Context, tx *sql.Tx, postID int64) error {
	var kept []*models.PostMedia
	for _, pm := range r.media {
		if pm.PostID != postID {
			kept = append(kept, pm)
		}
	}
	r.media = kept
	return nil
}

type fakeDirectory struct {
	accounts []*models.SocialAccount
}

func (d *fakeDirectory) ListForUser(ctx context.Context, userID int64, platform string) ([]*models.SocialAccount, error) {
	var out []*models.SocialAccount
	for _, acc := range d.accounts {
		if acc.UserID == userID && acc.Platform == platform {
			out = append(out, acc)
		}
	}
	return out, nil
}

type fakeResolver struct {
	desc    *transfer.MediaDescriptor
	content []byte
	err     error
}

func (r *fakeResolver) GetDescriptor(ctx context.Context, mediaID int64) (*transfer.MediaDescriptor, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.desc, nil
}

func (r *fakeResolver) GetContent(ctx context.Context, mediaID int64) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.content, nil
}

type sentMedia struct {
	mimeType string
	caption  string
	size     int
}

type fakeSender struct {
	platform     string
	captionLimit int
	failFor      map[string]error
	delay        time.Duration

	texts []string
	media []sentMedia
}

func (s *fakeSender) Platform() string { return s.platform }

func (s *fakeSender) CaptionLimit() int {
	if s.captionLimit == 0 {
		return 1024
	}
	return s.captionLimit
}

func (s *fakeSender) PublishText(ctx context.Context, account sender.Account, text string) (*sender.ExternalRef, error) {
	time.Sleep(s.delay)
	if err := s.failFor[account.ExternalID]; err != nil {
		return nil, err
	}
	s.texts = append(s.texts, text)
	return &sender.ExternalRef{PostID: "101", PostURL: "https://example.com/101"}, nil
}

func (s *fakeSender) PublishMedia(ctx context.Context, account sender.Account, media []byte, mimeType, caption string) (*sender.ExternalRef, error) {
	if err := s.failFor[account.ExternalID]; err != nil {
		return nil, err
	}
	s.media = append(s.media, sentMedia{mimeType: mimeType, caption: caption, size: len(media)})
	return &sender.ExternalRef{PostID: "202"}, nil
}

func telegramAccount(id, userID int64, chatID string) *models.SocialAccount {
	return &models.SocialAccount{
		ID:         id,
		UserID:     userID,
		Platform:   models.PlatformTelegram,
		ExternalID: chatID,
		Active:     true,
	}
}

func pendingTask(id, postID, accountID int64) *models.SocialTask {
	return &models.SocialTask{
		ID:              id,
		PostID:          postID,
		Platform:        models.PlatformTelegram,
		SocialAccountID: accountID,
		Status:          models.TaskStatusPending,
	}
}

func TestPublishTextOnlySuccess(t *testing.T) {
	pr := newFakePostRepo(&models.Post{ID: 1, AuthorID: 7, Content: "hello world", Status: models.PostStatusScheduled})
	tr := &fakeTaskRepo{tasks: []*models.SocialTask{pendingTask(1, 1, 10), pendingTask(2, 1, 11)}}
	dir := &fakeDirectory{accounts: []*models.SocialAccount{telegramAccount(10, 7, "123"), telegramAccount(11, 7, "456")}}
	snd := &fakeSender{platform: models.PlatformTelegram}

	p := NewPublisher(pr, tr, &fakePostMediaRepo{}, dir, &fakeResolver{}, sender.NewRegistry(snd))

	post, err := p.Publish(context.Background(), 1)
	if err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	if post.Status != models.PostStatusPublished {
		t.Fatalf("post status = %s, want %s", post.Status, models.PostStatusPublished)
	}
	if !post.PublishedAt.Valid {
		t.Fatal("published post has no published_at")
	}
	if len(snd.texts) != 2 {
		t.Fatalf("sender received %d texts, want 2", len(snd.texts))
	}
	if _, ok := pr.published[1]; !ok {
		t.Fatal("SetPublished was not persisted")
	}
	for _, task := range post.Tasks {
		if task.Status != models.TaskStatusCompleted {
			t.Fatalf("task %d status = %s, want %s", task.ID, task.Status, models.TaskStatusCompleted)
		}
		if !task.ExecutedAt.Valid {
			t.Fatalf("task %d has no executed_at", task.ID)
		}
	}
}

func TestPublishPartialFailure(t *testing.T) {
	pr := newFakePostRepo(&models.Post{ID: 1, AuthorID: 7, Content: "hello", Status: models.PostStatusScheduled})
	tr := &fakeTaskRepo{tasks: []*models.SocialTask{pendingTask(1, 1, 10), pendingTask(2, 1, 11)}}
	dir := &fakeDirectory{accounts: []*models.SocialAccount{telegramAccount(10, 7, "123"), telegramAccount(11, 7, "456")}}
	snd := &fakeSender{
		platform: models.PlatformTelegram,
		failFor:  map[string]error{"456": errors.New("chat not found")},
	}

	p := NewPublisher(pr, tr, &fakePostMediaRepo{}, dir, &fakeResolver{}, sender.NewRegistry(snd))

	post, err := p.Publish(context.Background(), 1)
	if err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	if post.Status != models.PostStatusFailed {
		t.Fatalf("post status = %s, want %s", post.Status, models.PostStatusFailed)
	}

	byID := make(map[int64]*models.SocialTask)
	for _, task := range post.Tasks {
		byID[task.ID] = task
		if task.Status == models.TaskStatusProcessing {
			t.Fatalf("task %d left in processing", task.ID)
		}
	}
	if byID[1].Status != models.TaskStatusCompleted {
		t.Fatalf("task 1 status = %s, want %s", byID[1].Status, models.TaskStatusCompleted)
	}
	if byID[2].Status != models.TaskStatusFailed {
		t.Fatalf("task 2 status = %s, want %s", byID[2].Status, models.TaskStatusFailed)
	}
	if !strings.Contains(byID[2].ErrorMessage, "chat not found") {
		t.Fatalf("task 2 error = %q, want the sender failure", byID[2].ErrorMessage)
	}
	if len(tr.failed) != 1 || tr.failed[0] != 2 {
		t.Fatalf("persisted failures = %v, want [2]", tr.failed)
	}
	if _, ok := pr.published[1]; ok {
		t.Fatal("failed post must not be marked published")
	}
}

func TestPublishRetrySkipsCompleted(t *testing.T) {
	pr := newFakePostRepo(&models.Post{ID: 1, AuthorID: 7, Content: "hello", Status: models.PostStatusFailed})
	done := pendingTask(1, 1, 10)
	done.Status = models.TaskStatusCompleted
	tr := &fakeTaskRepo{tasks: []*models.SocialTask{done, pendingTask(2, 1, 11)}}
	dir := &fakeDirectory{accounts: []*models.SocialAccount{telegramAccount(10, 7, "123"), telegramAccount(11, 7, "456")}}
	snd := &fakeSender{platform: models.PlatformTelegram}

	p := NewPublisher(pr, tr, &fakePostMediaRepo{}, dir, &fakeResolver{}, sender.NewRegistry(snd))

	post, err := p.Publish(context.Background(), 1)
	if err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	if len(snd.texts) != 1 {
		t.Fatalf("sender received %d deliveries, want 1: completed tasks must not be re-sent", len(snd.texts))
	}
	if len(tr.processed) != 1 || tr.processed[0] != 2 {
		t.Fatalf("processed tasks = %v, want [2]", tr.processed)
	}
	if post.Status != models.PostStatusPublished {
		t.Fatalf("post status = %s, want %s after retry", post.Status, models.PostStatusPublished)
	}
}

func TestPublishPostNotFound(t *testing.T) {
	p := NewPublisher(newFakePostRepo(), &fakeTaskRepo{}, &fakePostMediaRepo{}, &fakeDirectory{}, &fakeResolver{}, sender.NewRegistry())

	_, err := p.Publish(context.Background(), 99)
	if !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("err = %v, want ErrPostNotFound", err)
	}
}

func TestPublishNoTasks(t *testing.T) {
	pr := newFakePostRepo(&models.Post{ID: 1, AuthorID: 7})
	p := NewPublisher(pr, &fakeTaskRepo{}, &fakePostMediaRepo{}, &fakeDirectory{}, &fakeResolver{}, sender.NewRegistry())

	_, err := p.Publish(context.Background(), 1)
	if !errors.Is(err, ErrNoTasks) {
		t.Fatalf("err = %v, want ErrNoTasks", err)
	}
}

func TestPublishUnsupportedPlatform(t *testing.T) {
	pr := newFakePostRepo(&models.Post{ID: 1, AuthorID: 7, Content: "hello"})
	task := pendingTask(1, 1, 10)
	task.Platform = "myspace"
	tr := &fakeTaskRepo{tasks: []*models.SocialTask{task}}

	p := NewPublisher(pr, tr, &fakePostMediaRepo{}, &fakeDirectory{}, &fakeResolver{}, sender.NewRegistry())

	post, err := p.Publish(context.Background(), 1)
	if err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	if post.Status != models.PostStatusFailed {
		t.Fatalf("post status = %s, want %s", post.Status, models.PostStatusFailed)
	}
	if post.Tasks[0].Status != models.TaskStatusFailed {
		t.Fatalf("task status = %s, want %s", post.Tasks[0].Status, models.TaskStatusFailed)
	}
	if !strings.Contains(post.Tasks[0].ErrorMessage, "not supported") {
		t.Fatalf("task error = %q, want unsupported platform", post.Tasks[0].ErrorMessage)
	}
}

func TestPublishInactiveAccount(t *testing.T) {
	pr := newFakePostRepo(&models.Post{ID: 1, AuthorID: 7, Content: "hello"})
	tr := &fakeTaskRepo{tasks: []*models.SocialTask{pendingTask(1, 1, 10)}}
	acc := telegramAccount(10, 7, "123")
	acc.Active = false
	dir := &fakeDirectory{accounts: []*models.SocialAccount{acc}}
	snd := &fakeSender{platform: models.PlatformTelegram}

	p := NewPublisher(pr, tr, &fakePostMediaRepo{}, dir, &fakeResolver{}, sender.NewRegistry(snd))

	post, err := p.Publish(context.Background(), 1)
	if err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	if post.Status != models.PostStatusFailed {
		t.Fatalf("post status = %s, want %s", post.Status, models.PostStatusFailed)
	}
	if len(snd.texts) != 0 {
		t.Fatal("inactive account must not receive deliveries")
	}
}

func TestPublishMediaCaptionTruncated(t *testing.T) {
	longCaption := strings.Repeat("x", 40)
	pr := newFakePostRepo(&models.Post{ID: 1, AuthorID: 7, Content: longCaption})
	tr := &fakeTaskRepo{tasks: []*models.SocialTask{pendingTask(1, 1, 10)}}
	dir := &fakeDirectory{accounts: []*models.SocialAccount{telegramAccount(10, 7, "123")}}
	pm := &fakePostMediaRepo{media: []*models.PostMedia{{ID: 1, PostID: 1, MediaID: 5}}}
	resolver := &fakeResolver{
		desc:    &transfer.MediaDescriptor{MimeType: "image/jpeg", FileName: "photo.jpg"},
		content: []byte("jpegdata"),
	}
	snd := &fakeSender{platform: models.PlatformTelegram, captionLimit: 10}

	p := NewPublisher(pr, tr, pm, dir, resolver, sender.NewRegistry(snd))

	if _, err := p.Publish(context.Background(), 1); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	if len(snd.media) != 1 {
		t.Fatalf("sender received %d media deliveries, want 1", len(snd.media))
	}
	got := snd.media[0]
	if got.mimeType != "image/jpeg" {
		t.Fatalf("mime = %s, want image/jpeg", got.mimeType)
	}
	if len([]rune(got.caption)) != 10 {
		t.Fatalf("caption length = %d runes, want the 10 rune platform limit", len([]rune(got.caption)))
	}
	if !strings.HasSuffix(got.caption, "...") {
		t.Fatalf("caption %q not marked as truncated", got.caption)
	}
}

func TestPublishSerializesConcurrentRuns(t *testing.T) {
	pr := newFakePostRepo(&models.Post{ID: 1, AuthorID: 7, Content: "hello", Status: models.PostStatusScheduled})
	tr := &fakeTaskRepo{tasks: []*models.SocialTask{pendingTask(1, 1, 10)}}
	dir := &fakeDirectory{accounts: []*models.SocialAccount{telegramAccount(10, 7, "123")}}
	snd := &fakeSender{platform: models.PlatformTelegram, delay: 50 * time.Millisecond}

	p := NewPublisher(pr, tr, &fakePostMediaRepo{}, dir, &fakeResolver{}, sender.NewRegistry(snd))

	// The queue worker and the manual publish endpoint can fire together.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Publish(context.Background(), 1); err != nil {
				t.Errorf("Publish error: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(snd.texts) != 1 {
		t.Fatalf("task delivered %d times by concurrent runs, want 1", len(snd.texts))
	}
	if len(tr.processed) != 1 {
		t.Fatalf("task marked processing %d times, want 1", len(tr.processed))
	}
	if got := tr.find(1).Status; got != models.TaskStatusCompleted {
		t.Fatalf("task status = %s, want %s", got, models.TaskStatusCompleted)
	}
}

func TestPublishDegradedMediaStorage(t *testing.T) {
	pr := newFakePostRepo(&models.Post{ID: 1, AuthorID: 7, Content: "caption"})
	tr := &fakeTaskRepo{tasks: []*models.SocialTask{pendingTask(1, 1, 10)}}
	dir := &fakeDirectory{accounts: []*models.SocialAccount{telegramAccount(10, 7, "123")}}
	pm := &fakePostMediaRepo{media: []*models.PostMedia{{ID: 1, PostID: 1, MediaID: 5}}}
	broken := &fakeResolver{err: fmt.Errorf("storage is down")}
	snd := &fakeSender{platform: models.PlatformTelegram}

	p := NewPublisher(pr, tr, pm, dir, NewMediaResolver(broken, time.Second), sender.NewRegistry(snd))

	post, err := p.Publish(context.Background(), 1)
	if err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	if post.Status != models.PostStatusPublished {
		t.Fatalf("post status = %s, want %s: storage outage must degrade, not fail", post.Status, models.PostStatusPublished)
	}
	if len(snd.media) != 1 {
		t.Fatalf("sender received %d media deliveries, want 1", len(snd.media))
	}
	got := snd.media[0]
	if got.mimeType != "application/octet-stream" {
		t.Fatalf("mime = %s, want the placeholder type", got.mimeType)
	}
	if got.size != 0 {
		t.Fatalf("media size = %d, want empty placeholder content", got.size)
	}
}

func TestPublishBareResolverFailure(t *testing.T) {
	pr := newFakePostRepo(&models.Post{ID: 1, AuthorID: 7, Content: "caption"})
	tr := &fakeTaskRepo{tasks: []*models.SocialTask{pendingTask(1, 1, 10)}}
	dir := &fakeDirectory{accounts: []*models.SocialAccount{telegramAccount(10, 7, "123")}}
	pm := &fakePostMediaRepo{media: []*models.PostMedia{{ID: 1, PostID: 1, MediaID: 5}}}
	broken := &fakeResolver{err: fmt.Errorf("storage is down")}
	snd := &fakeSender{platform: models.PlatformTelegram}

	// Resolver injected without the fallback wrapper; dispatch must still
	// degrade to the placeholder instead of failing or dereferencing nil.
	p := NewPublisher(pr, tr, pm, dir, broken, sender.NewRegistry(snd))

	post, err := p.Publish(context.Background(), 1)
	if err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	if post.Status != models.PostStatusPublished {
		t.Fatalf("post status = %s, want %s", post.Status, models.PostStatusPublished)
	}
	if len(snd.media) != 1 {
		t.Fatalf("sender received %d media deliveries, want 1", len(snd.media))
	}
	if snd.media[0].mimeType != "application/octet-stream" || snd.media[0].size != 0 {
		t.Fatalf("delivery = %+v, want empty placeholder content", snd.media[0])
	}
}
