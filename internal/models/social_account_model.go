package models

import (
	"time"
)

type SocialAccount struct {
	ID              int64     `db:"id" json:"id"`
	UserID          int64     `db:"user_id" json:"user_id"`
	Platform        string    `db:"platform" json:"platform"`
	ExternalID      string    `db:"external_id" json:"external_id"` // chat id, ig user id, ...
	AccountName     string    `db:"account_name" json:"account_name"`
	AccountUsername string    `db:"account_username" json:"account_username"`
	AccessToken     string    `db:"access_token" json:"-"`
	RefreshToken    string    `db:"refresh_token" json:"-"`
	TokenExpiresAt  time.Time `db:"token_expires_at" json:"token_expires_at"`
	Active          bool      `db:"active" json:"active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

const (
	PlatformTelegram  = "telegram"
	PlatformInstagram = "instagram"
)
