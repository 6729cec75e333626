package admin_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pnptv/broadcastq/admin"
)

func TestServer_Lifecycle(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("serves requests until stopped", func(t *testing.T) {
		t.Parallel()

		server := admin.NewServer(admin.Config{Addr: "127.0.0.1:0"})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- server.Run(ctx, handler)() }()

		// Let the listener come up, then shut down through context cancellation.
		time.Sleep(50 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("server did not shut down in time")
		}
	})

	t.Run("double start is rejected", func(t *testing.T) {
		t.Parallel()

		server := admin.NewServer(admin.Config{Addr: "127.0.0.1:0"})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go func() { _ = server.Start(ctx, handler) }()
		time.Sleep(50 * time.Millisecond)

		err := server.Start(ctx, handler)
		assert.ErrorIs(t, err, admin.ErrServerAlreadyStarted)

		require.NoError(t, server.Stop())
	})

	t.Run("stop without start is a no-op", func(t *testing.T) {
		t.Parallel()

		server := admin.NewServer(admin.Config{Addr: "127.0.0.1:0"})
		require.NoError(t, server.Stop())
		require.NoError(t, server.Stop())
	})
}
