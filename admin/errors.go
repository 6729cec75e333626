package admin

import "errors"

var (
	// ErrServiceNil is returned when a nil queue service is provided.
	ErrServiceNil = errors.New("queue service cannot be nil")

	// ErrServerAlreadyStarted is returned when Start is called on a running
	// server.
	ErrServerAlreadyStarted = errors.New("admin server already started")
)
