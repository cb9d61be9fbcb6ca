package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/netpulse"
	"github.com/jpalmerr/netpulse/example/mockbackend"
	"github.com/jpalmerr/netpulse/visibility"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// start the mock backend (see mockbackend/)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		logger.Error("failed to listen", "error", err)
		os.Exit(1)
	}
	backend := &http.Server{
		Handler:           mockbackend.New(mockbackend.WithLogger(logger)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() { _ = backend.Serve(ln) }()
	defer backend.Close()

	traffic, _ := netpulse.NewWidget("Traffic", netpulse.WidgetTraffic,
		netpulse.WithWidgetInterval(2*time.Second),
	)
	stats, _ := netpulse.NewWidget("Stats", netpulse.WidgetStats)

	board, err := netpulse.New("http://"+ln.Addr().String(),
		netpulse.WithWidgets(traffic, stats),
		netpulse.WithPollingInterval(5*time.Second),
		netpulse.WithPort(8080),
		netpulse.WithLogger(logger),
		// no browser in this demo, so poll without waiting for a visible page
		netpulse.WithVisibility(&visibility.Always{}),
		netpulse.WithSnapshotCallback(func(s netpulse.WidgetSnapshot) {
			if s.State == netpulse.Failure {
				logger.Warn("widget failing", "widget", s.Widget, "message", s.Message)
			}
		}),
	)
	if err != nil {
		logger.Error("failed to create board", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  netpulse demo")
	fmt.Println()
	fmt.Println("  State:    curl http://localhost:8080/api/state")
	fmt.Println("  Stream:   curl -N http://localhost:8080/api/sse")
	fmt.Printf("  Failures: curl -X POST 'http://%s/fail?on=true'\n", ln.Addr())
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := board.Start(ctx); err != nil {
		logger.Error("netpulse error", "error", err)
		os.Exit(1)
	}
}
