package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pnptv/broadcastq/core/broadcast"
)

// Client delivers broadcast messages through the Telegram Bot API. It
// implements broadcast.Sender with the per-recipient error classification the
// fan-out expects.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// New creates a Telegram delivery client.
func New(cfg Config, opts ...ClientOption) (*Client, error) {
	if cfg.BotToken == "" {
		return nil, ErrEmptyBotToken
	}

	baseURL := strings.TrimSuffix(cfg.APIBaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		token:      cfg.BotToken,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// ClientOption is a functional option for configuring a client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client, mainly for tests.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// sendRequest is the JSON body for sendMessage and sendPhoto calls. Text
// carries the message body for sendMessage and the caption for sendPhoto.
type sendRequest struct {
	ChatID                int64        `json:"chat_id"`
	Text                  string       `json:"text,omitempty"`
	Photo                 string       `json:"photo,omitempty"`
	Caption               string       `json:"caption,omitempty"`
	ParseMode             string       `json:"parse_mode"`
	DisableWebPagePreview bool         `json:"disable_web_page_preview"`
	ReplyMarkup           *replyMarkup `json:"reply_markup,omitempty"`
}

type replyMarkup struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

type inlineButton struct {
	Text         string `json:"text"`
	URL          string `json:"url,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// Send delivers one message to one recipient. Photo messages go through
// sendPhoto with the text as caption, plain messages through sendMessage,
// both in HTML parse mode with link previews disabled.
func (c *Client) Send(ctx context.Context, recipient broadcast.Recipient, msg broadcast.Message) error {
	method := "sendMessage"
	req := sendRequest{
		ChatID:                recipient.ID,
		Text:                  msg.Text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
		ReplyMarkup:           buildMarkup(msg.Buttons),
	}

	if msg.PhotoURL != "" {
		method = "sendPhoto"
		req.Photo = msg.PhotoURL
		req.Caption = msg.Text
		req.Text = ""
	}

	return c.call(ctx, method, req)
}

func (c *Client) call(ctx context.Context, method string, payload sendRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	defer resp.Body.Close()

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return fmt.Errorf("%w: failed to decode response: %w", ErrSendFailed, err)
	}

	if apiResp.OK {
		return nil
	}

	return classify(apiResp)
}

// classify maps a Bot API rejection onto the fan-out's error taxonomy. The
// API signals blocked and deactivated recipients only through the human
// description text.
func classify(resp apiResponse) error {
	desc := strings.ToLower(resp.Description)

	switch {
	case strings.Contains(desc, "blocked"):
		return broadcast.ErrRecipientBlocked
	case strings.Contains(desc, "deactivated"):
		return broadcast.ErrRecipientDeactivated
	case resp.ErrorCode == http.StatusTooManyRequests:
		retryAfter := time.Second
		if resp.Parameters != nil && resp.Parameters.RetryAfter > 0 {
			retryAfter = time.Duration(resp.Parameters.RetryAfter) * time.Second
		}
		return &broadcast.RateLimitedError{RetryAfter: retryAfter}
	default:
		return fmt.Errorf("%w: %d %s", ErrSendFailed, resp.ErrorCode, resp.Description)
	}
}

func buildMarkup(buttons []broadcast.Button) *replyMarkup {
	if len(buttons) == 0 {
		return nil
	}

	// One button per row, matching how campaign buttons are authored.
	rows := make([][]inlineButton, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, []inlineButton{{
			Text:         b.Text,
			URL:          b.URL,
			CallbackData: b.CallbackData,
		}})
	}

	return &replyMarkup{InlineKeyboard: rows}
}
