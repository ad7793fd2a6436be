package models

import (
	"database/sql"
	"time"
)

// SocialTask is one delivery attempt of a post to a single platform account.
// Tasks are owned by their post: they are created with it and removed with it.
type SocialTask struct {
	ID              int64        `db:"id" json:"id"`
	PostID          int64        `db:"post_id" json:"post_id"`
	Platform        string       `db:"platform" json:"platform"`
	SocialAccountID int64        `db:"social_account_id" json:"social_account_id"`
	Status          string       `db:"status" json:"status"` // pending, processing, completed, failed
	ErrorMessage    string       `db:"error_message" json:"error_message,omitempty"`
	ExternalPostID  string       `db:"external_post_id" json:"external_post_id,omitempty"`
	ExternalPostURL string       `db:"external_post_url" json:"external_post_url,omitempty"`
	ExecutedAt      sql.NullTime `db:"executed_at" json:"executed_at"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updated_at"`
}

const (
	TaskStatusPending    = "pending"
	TaskStatusProcessing = "processing"
	TaskStatusCompleted  = "completed"
	TaskStatusFailed     = "failed"
)
