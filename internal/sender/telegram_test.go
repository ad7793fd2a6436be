package sender

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testTelegram(t *testing.T, handler http.HandlerFunc) *Telegram {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tg := NewTelegram("TOKEN")
	tg.baseURL = srv.URL
	return tg
}

func TestTelegramPublishText(t *testing.T) {
	var gotPath, gotChatID, gotText string

	tg := testTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		r.ParseForm()
		gotChatID = r.FormValue("chat_id")
		gotText = r.FormValue("text")
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":42}}`)
	})

	ref, err := tg.PublishText(context.Background(), Account{ExternalID: "123"}, "hello")
	if err != nil {
		t.Fatalf("PublishText error: %v", err)
	}
	if gotPath != "/botTOKEN/sendMessage" {
		t.Fatalf("path = %s, want /botTOKEN/sendMessage", gotPath)
	}
	if gotChatID != "123" || gotText != "hello" {
		t.Fatalf("form = chat_id %q text %q, want 123 hello", gotChatID, gotText)
	}
	if ref.PostID != "42" {
		t.Fatalf("PostID = %s, want 42", ref.PostID)
	}
}

func TestTelegramMediaMethodSelection(t *testing.T) {
	tests := []struct {
		name     string
		mimeType string
		method   string
		field    string
	}{
		{name: "photo", mimeType: "image/jpeg", method: "sendPhoto", field: "photo"},
		{name: "video", mimeType: "video/mp4", method: "sendVideo", field: "video"},
		{name: "document", mimeType: "application/pdf", method: "sendDocument", field: "document"},
		{name: "placeholder goes as document", mimeType: "application/octet-stream", method: "sendDocument", field: "document"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath string
			var hasField bool
			var gotCaption string

			tg := testTelegram(t, func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				if err := r.ParseMultipartForm(1 << 20); err != nil {
					t.Errorf("bad multipart form: %v", err)
				}
				_, _, err := r.FormFile(tt.field)
				hasField = err == nil
				gotCaption = r.FormValue("caption")
				fmt.Fprint(w, `{"ok":true,"result":{"message_id":7}}`)
			})

			ref, err := tg.PublishMedia(context.Background(), Account{ExternalID: "123"}, []byte("data"), tt.mimeType, "cap")
			if err != nil {
				t.Fatalf("PublishMedia error: %v", err)
			}
			if gotPath != "/botTOKEN/"+tt.method {
				t.Fatalf("path = %s, want /botTOKEN/%s", gotPath, tt.method)
			}
			if !hasField {
				t.Fatalf("form file field %q missing", tt.field)
			}
			if gotCaption != "cap" {
				t.Fatalf("caption = %q, want cap", gotCaption)
			}
			if ref.PostID != "7" {
				t.Fatalf("PostID = %s, want 7", ref.PostID)
			}
		})
	}
}

func TestTelegramChannelPostURL(t *testing.T) {
	tg := testTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":42}}`)
	})

	ref, err := tg.PublishText(context.Background(), Account{ExternalID: "-1001234"}, "hello")
	if err != nil {
		t.Fatalf("PublishText error: %v", err)
	}
	if ref.PostURL != "https://t.me/c/1234/42" {
		t.Fatalf("PostURL = %s, want https://t.me/c/1234/42", ref.PostURL)
	}

	ref, err = tg.PublishText(context.Background(), Account{ExternalID: "123"}, "hello")
	if err != nil {
		t.Fatalf("PublishText error: %v", err)
	}
	if ref.PostURL != "" {
		t.Fatalf("PostURL = %s, want empty for a private chat", ref.PostURL)
	}
}

func TestTelegramAPIErrorSurfaced(t *testing.T) {
	tg := testTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":false,"description":"Bad Request: chat not found"}`)
	})

	_, err := tg.PublishText(context.Background(), Account{ExternalID: "123"}, "hello")
	if err == nil {
		t.Fatal("expected error for ok=false response")
	}
	if want := "chat not found"; !strings.Contains(err.Error(), want) {
		t.Fatalf("err = %v, want it to carry %q", err, want)
	}
}

func TestTelegramOkWithoutMessageID(t *testing.T) {
	tg := testTelegram(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":true,"result":{}}`)
	})

	ref, err := tg.PublishText(context.Background(), Account{ExternalID: "123"}, "hello")
	if err != nil {
		t.Fatalf("a response without a message id is still a success, got: %v", err)
	}
	if ref.PostID != "" || ref.PostURL != "" {
		t.Fatalf("ref = %+v, want empty external reference", ref)
	}
}
