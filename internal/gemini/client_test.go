package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nutrilog/nutrilog/internal/common"
)

func candidateResponse(texts ...string) map[string]any {
	parts := make([]map[string]string, 0, len(texts))
	for _, t := range texts {
		parts = append(parts, map[string]string{"text": t})
	}
	return map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": parts}},
		},
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(common.GeminiConfig{
		BaseURL: srv.URL,
		Model:   "gemini-2.5-flash",
		APIKey:  "test-key",
	}, nil)
}

func TestGenerateText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-2.5-flash:generateContent" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("x-goog-api-key"); got != "test-key" {
			t.Errorf("api key header = %q", got)
		}
		_ = json.NewEncoder(w).Encode(candidateResponse("2"))
	})

	got, err := c.GenerateText(context.Background(), "pick one")
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if got != "2" {
		t.Fatalf("response = %q", got)
	}
}

func TestGenerateFromImageEncodesInlineData(t *testing.T) {
	image := []byte{0xff, 0xd8, 0xff}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Contents []struct {
				Parts []struct {
					Text       string `json:"text"`
					InlineData *struct {
						MimeType string `json:"mime_type"`
						Data     string `json:"data"`
					} `json:"inline_data"`
				} `json:"parts"`
			} `json:"contents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		parts := body.Contents[0].Parts
		if len(parts) != 2 || parts[0].Text != "what food is this" {
			t.Errorf("parts = %+v", parts)
		}
		if parts[1].InlineData == nil ||
			parts[1].InlineData.MimeType != "image/jpeg" ||
			parts[1].InlineData.Data != base64.StdEncoding.EncodeToString(image) {
			t.Errorf("inline data = %+v", parts[1].InlineData)
		}
		_ = json.NewEncoder(w).Encode(candidateResponse("Apple (180g)"))
	})

	got, err := c.GenerateFromImage(context.Background(), "what food is this", image, "image/jpeg")
	if err != nil {
		t.Fatalf("GenerateFromImage: %v", err)
	}
	if got != "Apple (180g)" {
		t.Fatalf("response = %q", got)
	}
}

func TestGenerateConcatenatesParts(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(candidateResponse("Apple (180g); ", "Banana (120g)"))
	})

	got, err := c.GenerateText(context.Background(), "list food")
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if got != "Apple (180g); Banana (120g)" {
		t.Fatalf("response = %q", got)
	}
}

func TestGenerateNoCandidates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	})

	_, err := c.GenerateText(context.Background(), "anything")
	if !errors.Is(err, common.ErrEmptyModelResponse) {
		t.Fatalf("err = %v, want ErrEmptyModelResponse", err)
	}
}

func TestGenerateNon2xxStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": {"message": "quota exceeded"}}`, http.StatusTooManyRequests)
	})

	_, err := c.GenerateText(context.Background(), "anything")
	if err == nil {
		t.Fatal("GenerateText succeeded, want error")
	}
	if errors.Is(err, common.ErrEmptyModelResponse) {
		t.Fatal("HTTP failure must not be classified as empty response")
	}
}
