package sender

import (
	"errors"
	"strings"
	"testing"
)

func TestTruncateCaption(t *testing.T) {
	tests := []struct {
		name    string
		caption string
		limit   int
		want    string
	}{
		{name: "short unchanged", caption: "hello", limit: 10, want: "hello"},
		{name: "exactly at limit", caption: "hello", limit: 5, want: "hello"},
		{name: "truncated with marker", caption: "hello world", limit: 8, want: "hello..."},
		{name: "no limit", caption: "hello world", limit: 0, want: "hello world"},
		{name: "multibyte runes", caption: "héllö wörld", limit: 8, want: "héllö..."},
		{name: "limit below marker", caption: "hello", limit: 2, want: "he"},
		{name: "limit equals marker", caption: "hello", limit: 3, want: "hel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateCaption(tt.caption, tt.limit)
			if got != tt.want {
				t.Fatalf("TruncateCaption(%q, %d) = %q, want %q", tt.caption, tt.limit, got, tt.want)
			}
			if tt.limit > 0 && len([]rune(got)) > tt.limit {
				t.Fatalf("result %q exceeds limit %d", got, tt.limit)
			}
		})
	}
}

func TestRegistryLookup(t *testing.T) {
	tg := NewTelegram("token")
	r := NewRegistry(tg)

	got, err := r.Get("telegram")
	if err != nil {
		t.Fatalf("Get(telegram) error: %v", err)
	}
	if got.Platform() != "telegram" {
		t.Fatalf("platform = %s, want telegram", got.Platform())
	}

	_, err = r.Get("myspace")
	if !errors.Is(err, ErrUnsupportedPlatform) {
		t.Fatalf("err = %v, want ErrUnsupportedPlatform", err)
	}
	if !strings.Contains(err.Error(), "myspace") {
		t.Fatalf("err = %v, want it to name the platform", err)
	}
}
