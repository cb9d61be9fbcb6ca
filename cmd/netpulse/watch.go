package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/netpulse"
	"github.com/jpalmerr/netpulse/config"
	"github.com/jpalmerr/netpulse/visibility"
)

// watchCmd polls one resource without a server and prints every state.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll one resource and print each state as a JSON line",
	Long: `Poll a single backend resource and print every state transition to
stdout as one JSON object per line. Polling is always on.

The base URL comes from --base-url, then $NETPULSE_BACKEND_URL, then
http://localhost:8080.

Example:
  netpulse watch --base-url http://router:9000 --resource network-stats
  netpulse watch --resource network-traffic --interval 2s --once`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("base-url", "", "backend base URL")
	watchCmd.Flags().String("resource", netpulse.ResourceStats, "resource path under the base URL")
	watchCmd.Flags().Duration("interval", 5*time.Second, "time between fetches")
	watchCmd.Flags().Duration("timeout", 10*time.Second, "per-request timeout")
	watchCmd.Flags().StringToString("header", nil, "request header as key=value (repeatable)")
	watchCmd.Flags().Bool("once", false, "exit after the first completed attempt")
	watchCmd.Flags().String("env-file", defaultEnvFile, "dotenv file loaded before resolving the base URL")
	watchCmd.Flags().String("log-level", "warn", "log level (debug, info, warn, error)")
}

// watchLine is one line of watch output.
type watchLine struct {
	Resource  string          `json:"resource"`
	State     netpulse.Kind   `json:"state"`
	Seq       uint64          `json:"seq"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	FetchedAt *time.Time      `json:"fetched_at,omitempty"`
	At        time.Time       `json:"at"`
}

func runWatch(cmd *cobra.Command, args []string) error {
	level, _ := cmd.Flags().GetString("log-level")
	logger, err := newLogger(cmd.ErrOrStderr(), level)
	if err != nil {
		return err
	}
	if err := loadEnv(cmd); err != nil {
		return err
	}

	baseURL, _ := cmd.Flags().GetString("base-url")
	if baseURL == "" {
		baseURL = (&config.Config{}).ResolveBaseURL()
	}
	resource, _ := cmd.Flags().GetString("resource")
	interval, _ := cmd.Flags().GetDuration("interval")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	headers, _ := cmd.Flags().GetStringToString("header")
	once, _ := cmd.Flags().GetBool("once")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return watch(ctx, watchOptions{
		baseURL:  baseURL,
		resource: resource,
		interval: interval,
		timeout:  timeout,
		headers:  headers,
		once:     once,
		out:      cmd.OutOrStdout(),
		logger:   logger,
	})
}

type watchOptions struct {
	baseURL  string
	resource string
	interval time.Duration
	timeout  time.Duration
	headers  map[string]string
	once     bool
	out      io.Writer
	logger   *slog.Logger
}

// watch runs a poller behind an always-visible gate until ctx ends, or
// until the first completed attempt when once is set.
func watch(ctx context.Context, o watchOptions) error {
	fetcher, err := netpulse.NewHTTPFetcher[json.RawMessage](netpulse.ResourceURL(o.baseURL, o.resource), o.headers)
	if err != nil {
		return err
	}

	var (
		encMu sync.Mutex
		enc   = json.NewEncoder(o.out)
	)
	completed := make(chan struct{}, 1)

	poller, err := netpulse.NewPoller[json.RawMessage](fetcher,
		netpulse.WithName(o.resource),
		netpulse.WithInterval(o.interval),
		netpulse.WithFetchTimeout(o.timeout),
		netpulse.WithPollerLogger(o.logger),
		netpulse.WithOnChange(func(r netpulse.Result[json.RawMessage]) {
			line := watchLine{
				Resource: o.resource,
				State:    r.Kind,
				Seq:      r.Seq,
				Error:    r.Err(),
				At:       time.Now(),
			}
			if r.HasData {
				line.Data = r.Data
				fetchedAt := r.FetchedAt
				line.FetchedAt = &fetchedAt
			}

			encMu.Lock()
			if err := enc.Encode(line); err != nil {
				o.logger.Warn("failed to write state", "error", err)
			}
			encMu.Unlock()

			if r.Kind == netpulse.Success || r.Kind == netpulse.Failure {
				select {
				case completed <- struct{}{}:
				default:
				}
			}
		}),
	)
	if err != nil {
		return err
	}

	gate := netpulse.NewGate(&visibility.Always{}, poller, o.logger)
	if err := gate.Attach(); err != nil {
		poller.Dispose()
		return err
	}
	defer func() {
		gate.Detach()
		poller.Dispose()
		poller.Wait()
	}()

	if o.once {
		select {
		case <-completed:
		case <-ctx.Done():
		}
		return nil
	}

	<-ctx.Done()
	return nil
}
