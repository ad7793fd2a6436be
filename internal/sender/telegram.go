package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const telegramCaptionLimit = 1024

// Telegram delivers posts through the Bot API. One bot token serves every
// linked chat; the account's ExternalID is the chat id.
type Telegram struct {
	botToken string
	baseURL  string
	client   *http.Client
}

func NewTelegram(botToken string) *Telegram {
	return &Telegram{
		botToken: botToken,
		baseURL:  "https://api.telegram.org",
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (t *Telegram) Platform() string { return "telegram" }

func (t *Telegram) CaptionLimit() int { return telegramCaptionLimit }

func (t *Telegram) apiURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", t.baseURL, t.botToken, method)
}

func (t *Telegram) PublishText(ctx context.Context, account Account, text string) (*ExternalRef, error) {
	data := url.Values{}
	data.Set("chat_id", account.ExternalID)
	data.Set("text", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiURL("sendMessage"), strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending message to telegram: %w", err)
	}
	defer resp.Body.Close()

	return t.parseResponse(account.ExternalID, resp)
}

func (t *Telegram) PublishMedia(ctx context.Context, account Account, media []byte, mimeType, caption string) (*ExternalRef, error) {
	method, field := mediaMethod(mimeType)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("chat_id", account.ExternalID); err != nil {
		return nil, fmt.Errorf("error building form: %w", err)
	}
	if caption != "" {
		if err := writer.WriteField("caption", caption); err != nil {
			return nil, fmt.Errorf("error building form: %w", err)
		}
	}

	part, err := writer.CreateFormFile(field, "file")
	if err != nil {
		return nil, fmt.Errorf("error building form: %w", err)
	}
	if _, err := part.Write(media); err != nil {
		return nil, fmt.Errorf("error building form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("error building form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiURL(method), &body)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending %s to telegram: %w", field, err)
	}
	defer resp.Body.Close()

	return t.parseResponse(account.ExternalID, resp)
}

// mediaMethod selects the Bot API method by MIME family. Anything that is
// neither image nor video goes out as a document.
func mediaMethod(mimeType string) (method, field string) {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return "sendPhoto", "photo"
	case strings.HasPrefix(mimeType, "video/"):
		return "sendVideo", "video"
	default:
		return "sendDocument", "document"
	}
}

// parseResponse extracts the platform-assigned message id. A response with
// ok=true but no recognizable message id is still a success; the external
// reference is best effort.
func (t *Telegram) parseResponse(chatID string, resp *http.Response) (*ExternalRef, error) {
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading telegram response: %w", err)
	}

	var result struct {
		Ok          bool   `json:"ok"`
		Description string `json:"description"`
		Result      struct {
			MessageID int64 `json:"message_id"`
		} `json:"result"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("error parsing telegram response: %w", err)
	}

	if !result.Ok {
		return nil, fmt.Errorf("telegram API error: %s", result.Description)
	}

	ref := &ExternalRef{}
	if result.Result.MessageID == 0 {
		slog.Info("message id not found in telegram response", "chat_id", chatID)
		return ref, nil
	}

	ref.PostID = strconv.FormatInt(result.Result.MessageID, 10)
	if strings.HasPrefix(chatID, "-100") {
		ref.PostURL = fmt.Sprintf("https://t.me/c/%s/%d", strings.TrimPrefix(chatID, "-100"), result.Result.MessageID)
	}

	return ref, nil
}
