package pg

import "errors"

// Domain-specific PostgreSQL errors for consistent error handling across the
// application. Use errors.Is() to check error types for retry logic.
var (
	ErrEmptyConnectionString = errors.New("empty postgres connection string")
	ErrFailedToParseConfig   = errors.New("failed to parse postgres connection string")
	ErrDBNotReady            = errors.New("postgres did not become ready within the given time period")
	ErrMigrationFailed       = errors.New("failed to apply database migrations")
	ErrHealthcheckFailed     = errors.New("postgres healthcheck failed")
)
