// Package telegram wraps the two Bot API calls the pipeline needs: fetching a
// photo by file id and sending a text message to a chat.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/nutrilog/nutrilog/internal/common"
)

const defaultBaseURL = "https://api.telegram.org"

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *slog.Logger
}

type Option func(*Client)

// WithBaseURL overrides the Bot API host, used by tests.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func NewClient(cfg common.TelegramConfig, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	sendRate := cfg.SendRate
	if sendRate <= 0 {
		sendRate = 25
	}
	burst := cfg.SendBurst
	if burst <= 0 {
		burst = 5
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		token:      cfg.BotToken,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(sendRate), burst),
		log:        logger,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// GetImage downloads a photo's bytes by Bot API file id: getFile resolves the
// file path, then the file endpoint serves the content.
func (c *Client) GetImage(ctx context.Context, fileID string) ([]byte, error) {
	reqID := uuid.New().String()
	start := time.Now()

	getFileURL := fmt.Sprintf("%s/bot%s/getFile?file_id=%s", c.baseURL, c.token, url.QueryEscape(fileID))
	raw, err := c.get(ctx, getFileURL)
	if err != nil {
		c.log.Error("telegram.get_file.failed", "req_id", reqID, "error", err)
		return nil, fmt.Errorf("telegram getFile: %w", err)
	}

	var meta struct {
		OK     bool `json:"ok"`
		Result struct {
			FilePath string `json:"file_path"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("decode getFile response: %w", err)
	}
	if !meta.OK || meta.Result.FilePath == "" {
		return nil, fmt.Errorf("telegram getFile: no file path for file_id")
	}

	fileURL := fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.token, meta.Result.FilePath)
	content, err := c.get(ctx, fileURL)
	if err != nil {
		c.log.Error("telegram.download.failed", "req_id", reqID, "error", err)
		return nil, fmt.Errorf("telegram file download: %w", err)
	}

	c.log.Info("telegram.download.ok",
		"req_id", reqID,
		"bytes", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

// SendMessage sends a plain text message to a chat. Sends are rate limited
// client-side to stay under the Bot API's per-bot budget.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram send rate wait: %w", err)
	}

	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	bs, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode sendMessage payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bs))
	if err != nil {
		return fmt.Errorf("build sendMessage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Warn("telegram.send.body_close_error", "error", err)
		}
	}()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("telegram sendMessage status %d: %s", resp.StatusCode, string(body))
	}
	c.log.Info("telegram.send.ok", "chat_id", chatID, "text_len", len(text))
	return nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.Warn("telegram.get.body_close_error", "error", err)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}
	return raw, nil
}
