package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const instagramCaptionLimit = 2200

// Uploader stages media bytes somewhere the platform can fetch them from and
// returns a public URL. The Graph API only accepts media by URL.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

type Instagram struct {
	graphURL string
	uploader Uploader
	client   *http.Client
}

func NewInstagram(uploader Uploader) *Instagram {
	return &Instagram{
		graphURL: "https://graph.instagram.com/v21.0",
		uploader: uploader,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

func (ig *Instagram) Platform() string { return "instagram" }

func (ig *Instagram) CaptionLimit() int { return instagramCaptionLimit }

// PublishText always fails: instagram has no text-only post type.
func (ig *Instagram) PublishText(ctx context.Context, account Account, text string) (*ExternalRef, error) {
	return nil, fmt.Errorf("instagram does not support text-only posts")
}

func (ig *Instagram) PublishMedia(ctx context.Context, account Account, media []byte, mimeType, caption string) (*ExternalRef, error) {
	if len(media) == 0 {
		return nil, fmt.Errorf("media content is empty")
	}

	key, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("error generating media key: %w", err)
	}
	mediaURL, err := ig.uploader.Upload(ctx, key, media, mimeType)
	if err != nil {
		return nil, fmt.Errorf("error staging media for instagram: %w", err)
	}

	payload := map[string]any{
		"caption":      caption,
		"access_token": account.AccessToken,
	}
	if strings.HasPrefix(mimeType, "video/") {
		payload["media_type"] = "REELS"
		payload["video_url"] = mediaURL
	} else {
		payload["image_url"] = mediaURL
	}

	containerID, err := ig.post(ctx, fmt.Sprintf("%s/%s/media", ig.graphURL, account.ExternalID), payload)
	if err != nil {
		return nil, fmt.Errorf("error creating media container: %w", err)
	}

	publishPayload := map[string]any{
		"creation_id":  containerID,
		"access_token": account.AccessToken,
	}
	publishedID, err := ig.post(ctx, fmt.Sprintf("%s/%s/media_publish", ig.graphURL, account.ExternalID), publishPayload)
	if err != nil {
		return nil, fmt.Errorf("error publishing media container: %w", err)
	}

	return &ExternalRef{PostID: publishedID}, nil
}

func (ig *Instagram) post(ctx context.Context, url string, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ig.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code from instagram: %d: %s", resp.StatusCode, respBody)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("error parsing response: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("no media ID returned from instagram")
	}

	return result.ID, nil
}
