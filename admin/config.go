package admin

import "time"

// Config holds admin HTTP server settings.
type Config struct {
	Addr            string        `env:"ADMIN_ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"ADMIN_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"ADMIN_WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"ADMIN_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}
