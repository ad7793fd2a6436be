package transfer

type PostMediaItem struct {
	MediaID int64  `json:"media_id"`
	Caption string `json:"caption"`
}

type PostCreation struct {
	Title            string          `json:"title"`
	Content          string          `json:"content"`
	Tags             []string        `json:"tags"`
	ScheduledAt      string          `json:"scheduled_at"` // RFC 3339, optional
	Media            []PostMediaItem `json:"media"`
	SocialAccountIDs []int64         `json:"social_account_ids"`
}

type PostUpdate struct {
	Title       string          `json:"title"`
	Content     string          `json:"content"`
	Tags        []string        `json:"tags"`
	ScheduledAt string          `json:"scheduled_at"`
	Media       []PostMediaItem `json:"media"`
}

type MediaDescriptor struct {
	MimeType  string `json:"mime_type"`
	FileName  string `json:"file_name"`
	SizeBytes int64  `json:"size_bytes"`
}
