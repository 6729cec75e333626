package telegram

import "errors"

var (
	// ErrEmptyBotToken is returned when no bot token is configured.
	ErrEmptyBotToken = errors.New("telegram bot token cannot be empty")

	// ErrSendFailed wraps Bot API rejections that are neither a blocked
	// recipient, a deactivated account nor a rate limit.
	ErrSendFailed = errors.New("failed to send telegram message")
)
