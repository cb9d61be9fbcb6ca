// Standalone mock backend for trying the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockbackend
//
// Then in another terminal:
//
//	go run ./cmd/netpulse serve -c example/config.yaml
//	go run ./cmd/netpulse watch --base-url http://localhost:9000 --resource network-traffic
//
// Toggle failures with:
//
//	curl -X POST 'http://localhost:9000/fail?on=true'
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/netpulse/example/mockbackend"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	addr := os.Getenv("MOCK_BACKEND_ADDR")
	if addr == "" {
		addr = ":9000"
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           mockbackend.New(mockbackend.WithLatency(80*time.Millisecond), mockbackend.WithLogger(logger)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("mock backend listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
