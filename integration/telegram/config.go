package telegram

import "time"

// Config holds Telegram Bot API settings.
type Config struct {
	BotToken    string        `env:"TELEGRAM_BOT_TOKEN,required"`
	APIBaseURL  string        `env:"TELEGRAM_API_BASE_URL" envDefault:"https://api.telegram.org"`
	SendTimeout time.Duration `env:"TELEGRAM_SEND_TIMEOUT" envDefault:"15s"`
}
