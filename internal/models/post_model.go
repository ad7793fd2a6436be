package models

import (
	"database/sql"
	"time"
)

type Post struct {
	ID          int64        `db:"id" json:"id"`
	AuthorID    int64        `db:"author_id" json:"author_id"`
	Title       string       `db:"title" json:"title"`
	Content     string       `db:"content" json:"content"`
	PostType    string       `db:"post_type" json:"post_type"` // text, image, video, mixed
	Tags        []string     `db:"tags" json:"tags"`
	Status      string       `db:"status" json:"status"` // draft, scheduled, published, failed
	ScheduledAt sql.NullTime `db:"scheduled_at" json:"scheduled_at"`
	PublishedAt sql.NullTime `db:"published_at" json:"published_at"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`

	Media []*PostMedia  `json:"media,omitempty"`
	Tasks []*SocialTask `json:"tasks,omitempty"`
}

type PostMedia struct {
	ID        int64     `db:"id" json:"id"`
	PostID    int64     `db:"post_id" json:"post_id"`
	MediaID   int64     `db:"media_id" json:"media_id"`
	Caption   string    `db:"caption" json:"caption"`
	SortOrder int       `db:"sort_order" json:"sort_order"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

const (
	PostStatusDraft     = "draft"
	PostStatusScheduled = "scheduled"
	PostStatusPublished = "published"
	PostStatusFailed    = "failed"
)

const (
	PostTypeText  = "text"
	PostTypeImage = "image"
	PostTypeVideo = "video"
	PostTypeMixed = "mixed"
)
