package telegram_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pnptv/broadcastq/core/broadcast"
	"github.com/pnptv/broadcastq/integration/telegram"
)

type capturedCall struct {
	path string
	body map[string]any
}

// newTestClient wires a client against a stub Bot API that replies with the
// given response body and records the last request.
func newTestClient(t *testing.T, response string) (*telegram.Client, *capturedCall) {
	t.Helper()

	captured := &capturedCall{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured.body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)

	client, err := telegram.New(telegram.Config{
		BotToken:   "test-token",
		APIBaseURL: server.URL,
	})
	require.NoError(t, err)

	return client, captured
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("empty token is rejected", func(t *testing.T) {
		t.Parallel()

		_, err := telegram.New(telegram.Config{})
		require.ErrorIs(t, err, telegram.ErrEmptyBotToken)
	})

	t.Run("custom http client", func(t *testing.T) {
		t.Parallel()

		client, err := telegram.New(telegram.Config{BotToken: "t"},
			telegram.WithHTTPClient(&http.Client{Timeout: time.Second}))
		require.NoError(t, err)
		require.NotNil(t, client)
	})
}

func TestClient_Send(t *testing.T) {
	t.Parallel()

	t.Run("text message goes through sendMessage", func(t *testing.T) {
		t.Parallel()

		client, captured := newTestClient(t, `{"ok":true}`)

		err := client.Send(context.Background(),
			broadcast.Recipient{ID: 42},
			broadcast.Message{Text: "<b>Hello</b>"},
		)
		require.NoError(t, err)

		assert.Equal(t, "/bottest-token/sendMessage", captured.path)
		assert.EqualValues(t, 42, captured.body["chat_id"])
		assert.Equal(t, "<b>Hello</b>", captured.body["text"])
		assert.Equal(t, "HTML", captured.body["parse_mode"])
		assert.Equal(t, true, captured.body["disable_web_page_preview"])
		assert.NotContains(t, captured.body, "photo")
	})

	t.Run("photo message goes through sendPhoto with caption", func(t *testing.T) {
		t.Parallel()

		client, captured := newTestClient(t, `{"ok":true}`)

		err := client.Send(context.Background(),
			broadcast.Recipient{ID: 7},
			broadcast.Message{Text: "caption", PhotoURL: "https://cdn.example.com/a.png"},
		)
		require.NoError(t, err)

		assert.Equal(t, "/bottest-token/sendPhoto", captured.path)
		assert.Equal(t, "https://cdn.example.com/a.png", captured.body["photo"])
		assert.Equal(t, "caption", captured.body["caption"])
		assert.NotContains(t, captured.body, "text")
	})

	t.Run("buttons become a one-per-row inline keyboard", func(t *testing.T) {
		t.Parallel()

		client, captured := newTestClient(t, `{"ok":true}`)

		err := client.Send(context.Background(),
			broadcast.Recipient{ID: 1},
			broadcast.Message{
				Text: "pick one",
				Buttons: []broadcast.Button{
					{Text: "Open", URL: "https://example.com"},
					{Text: "Later", CallbackData: "later"},
				},
			},
		)
		require.NoError(t, err)

		markup, ok := captured.body["reply_markup"].(map[string]any)
		require.True(t, ok)
		keyboard, ok := markup["inline_keyboard"].([]any)
		require.True(t, ok)
		require.Len(t, keyboard, 2)

		firstRow, ok := keyboard[0].([]any)
		require.True(t, ok)
		require.Len(t, firstRow, 1)
		button, ok := firstRow[0].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "Open", button["text"])
		assert.Equal(t, "https://example.com", button["url"])
	})
}

func TestClient_ErrorClassification(t *testing.T) {
	t.Parallel()

	t.Run("blocked recipient", func(t *testing.T) {
		t.Parallel()

		client, _ := newTestClient(t,
			`{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`)

		err := client.Send(context.Background(), broadcast.Recipient{ID: 1}, broadcast.Message{Text: "hi"})
		require.ErrorIs(t, err, broadcast.ErrRecipientBlocked)
	})

	t.Run("deactivated recipient", func(t *testing.T) {
		t.Parallel()

		client, _ := newTestClient(t,
			`{"ok":false,"error_code":403,"description":"Forbidden: user is deactivated"}`)

		err := client.Send(context.Background(), broadcast.Recipient{ID: 1}, broadcast.Message{Text: "hi"})
		require.ErrorIs(t, err, broadcast.ErrRecipientDeactivated)
	})

	t.Run("rate limit carries retry_after", func(t *testing.T) {
		t.Parallel()

		client, _ := newTestClient(t,
			`{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 3","parameters":{"retry_after":3}}`)

		err := client.Send(context.Background(), broadcast.Recipient{ID: 1}, broadcast.Message{Text: "hi"})

		rateLimited, ok := broadcast.AsRateLimited(err)
		require.True(t, ok)
		assert.Equal(t, 3*time.Second, rateLimited.RetryAfter)
	})

	t.Run("rate limit without parameters defaults to one second", func(t *testing.T) {
		t.Parallel()

		client, _ := newTestClient(t,
			`{"ok":false,"error_code":429,"description":"Too Many Requests"}`)

		err := client.Send(context.Background(), broadcast.Recipient{ID: 1}, broadcast.Message{Text: "hi"})

		rateLimited, ok := broadcast.AsRateLimited(err)
		require.True(t, ok)
		assert.Equal(t, time.Second, rateLimited.RetryAfter)
	})

	t.Run("other api errors map to ErrSendFailed", func(t *testing.T) {
		t.Parallel()

		client, _ := newTestClient(t,
			`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)

		err := client.Send(context.Background(), broadcast.Recipient{ID: 1}, broadcast.Message{Text: "hi"})
		require.ErrorIs(t, err, telegram.ErrSendFailed)
		assert.ErrorContains(t, err, "chat not found")
	})

	t.Run("transport failure maps to ErrSendFailed", func(t *testing.T) {
		t.Parallel()

		client, err := telegram.New(telegram.Config{
			BotToken:    "t",
			APIBaseURL:  "http://127.0.0.1:1",
			SendTimeout: 100 * time.Millisecond,
		})
		require.NoError(t, err)

		err = client.Send(context.Background(), broadcast.Recipient{ID: 1}, broadcast.Message{Text: "hi"})
		require.ErrorIs(t, err, telegram.ErrSendFailed)
	})
}
