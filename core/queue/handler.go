package queue

import (
	"context"
	"encoding/json"
	"fmt"
)

type (
	// Handler defines the interface for job processors. Name identifies the
	// job type the handler executes; Handle runs one job and returns an
	// optional result payload stored on the job row.
	Handler interface {
		Name() string
		Handle(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)
	}

	// JobHandlerFunc is a type-safe handler function. The generic type T is
	// the expected payload structure; the returned value, if non-nil, is
	// marshaled and stored as the job result.
	JobHandlerFunc[T any] func(ctx context.Context, payload T) (any, error)
)

// NewJobHandler creates a type-safe handler for the given job type. The raw
// payload is unmarshaled into T before the function runs; an empty payload
// yields the zero value of T.
func NewJobHandler[T any](name string, fn JobHandlerFunc[T]) Handler {
	return &jobHandler[T]{name: name, fn: fn}
}

type jobHandler[T any] struct {
	name string
	fn   JobHandlerFunc[T]
}

func (h *jobHandler[T]) Name() string {
	return h.name
}

func (h *jobHandler[T]) Handle(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var t T
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &t); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %q payload: %w", h.name, err)
		}
	}

	result, err := h.fn(ctx, t)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %q result: %w", h.name, err)
	}
	return raw, nil
}
