package sender

import (
	"context"
	"errors"
	"fmt"
)

// Account is the resolved delivery address for one platform account.
// ExternalID is the platform-native address (telegram chat id, instagram
// user id). AccessToken is already decrypted and may be empty for platforms
// that authenticate at the sender level (telegram bot token).
type Account struct {
	ExternalID  string
	AccessToken string
}

// ExternalRef is the platform-assigned identity of a delivered post. Both
// fields are best effort: a platform may acknowledge a delivery without
// returning an id.
type ExternalRef struct {
	PostID  string
	PostURL string
}

// Sender publishes content to one social platform.
type Sender interface {
	Platform() string
	CaptionLimit() int
	PublishText(ctx context.Context, account Account, text string) (*ExternalRef, error)
	PublishMedia(ctx context.Context, account Account, media []byte, mimeType, caption string) (*ExternalRef, error)
}

// ErrUnsupportedPlatform means no sender is registered for a task's platform.
// This is a configuration error and is never retried.
var ErrUnsupportedPlatform = errors.New("platform is not supported")

type Registry struct {
	senders map[string]Sender
}

func NewRegistry(senders ...Sender) *Registry {
	r := &Registry{senders: make(map[string]Sender)}
	for _, s := range senders {
		r.Register(s)
	}
	return r
}

func (r *Registry) Register(s Sender) {
	r.senders[s.Platform()] = s
}

func (r *Registry) Get(platform string) (Sender, error) {
	s, ok := r.senders[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, platform)
	}
	return s, nil
}

// TruncateCaption cuts a caption down to the platform limit, appending a
// marker so the cut is visible to readers. Limits too small to fit the
// marker get a hard cut.
func TruncateCaption(caption string, limit int) string {
	if limit <= 0 {
		return caption
	}
	runes := []rune(caption)
	if len(runes) <= limit {
		return caption
	}
	const marker = "..."
	if limit <= len(marker) {
		return string(runes[:limit])
	}
	return string(runes[:limit-len(marker)]) + marker
}
