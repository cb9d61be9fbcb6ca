package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// decodedLine mirrors watchLine with the state as its wire name.
type decodedLine struct {
	Resource string          `json:"resource"`
	State    string          `json:"state"`
	Seq      uint64          `json:"seq"`
	Data     json.RawMessage `json:"data"`
	Error    string          `json:"error"`
}

func decodeLines(t *testing.T, out string) []decodedLine {
	t.Helper()
	var lines []decodedLine
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		var l decodedLine
		if err := json.Unmarshal(sc.Bytes(), &l); err != nil {
			t.Fatalf("line %q is not JSON: %v", sc.Text(), err)
		}
		lines = append(lines, l)
	}
	return lines
}

func TestWatch_Once(t *testing.T) {
	var gotAuth atomic.Value
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/network-stats" {
			http.NotFound(w, r)
			return
		}
		gotAuth.Store(r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"totalPackets":42,"activeConnections":3}`))
	}))
	defer backend.Close()

	var out bytes.Buffer
	err := watch(context.Background(), watchOptions{
		baseURL:  backend.URL,
		resource: "network-stats",
		interval: time.Hour,
		timeout:  time.Second,
		headers:  map[string]string{"Authorization": "Bearer t"},
		once:     true,
		out:      &out,
		logger:   discardLogger(),
	})
	if err != nil {
		t.Fatalf("watch() error = %v", err)
	}

	lines := decodeLines(t, out.String())
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2 (loading, success):\n%s", len(lines), out.String())
	}
	if lines[0].State != "loading" || lines[1].State != "success" {
		t.Errorf("states = [%s %s], want [loading success]", lines[0].State, lines[1].State)
	}
	if lines[1].Resource != "network-stats" {
		t.Errorf("resource = %q", lines[1].Resource)
	}
	if !strings.Contains(string(lines[1].Data), `"totalPackets":42`) {
		t.Errorf("data = %s", lines[1].Data)
	}
	if got, _ := gotAuth.Load().(string); got != "Bearer t" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer t")
	}
}

func TestWatch_OnceFailure(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"message":"capture interface down"}`))
	}))
	defer backend.Close()

	var out bytes.Buffer
	err := watch(context.Background(), watchOptions{
		baseURL:  backend.URL,
		resource: "network-traffic",
		interval: time.Hour,
		timeout:  time.Second,
		once:     true,
		out:      &out,
		logger:   discardLogger(),
	})
	if err != nil {
		t.Fatalf("watch() error = %v", err)
	}

	lines := decodeLines(t, out.String())
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), out.String())
	}
	if lines[1].State != "failure" {
		t.Errorf("state = %q, want failure", lines[1].State)
	}
	if lines[1].Error != "capture interface down" {
		t.Errorf("error = %q, want %q", lines[1].Error, "capture interface down")
	}
}

func TestWatch_StopsOnCancel(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer backend.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- watch(ctx, watchOptions{
			baseURL:  backend.URL,
			resource: "network-traffic",
			interval: time.Hour,
			timeout:  time.Second,
			out:      io.Discard,
			logger:   discardLogger(),
		})
	}()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("watch() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return after cancel")
	}
}

func TestWatch_InvalidBaseURL(t *testing.T) {
	err := watch(context.Background(), watchOptions{
		baseURL:  "ftp://router",
		resource: "network-stats",
		interval: time.Second,
		timeout:  time.Second,
		out:      io.Discard,
		logger:   discardLogger(),
	})
	if err == nil {
		t.Fatal("watch() expected error for ftp base URL")
	}
}

func TestWatchCmd_Once(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"totalPackets":1}`))
	}))
	defer backend.Close()

	output, err := executeCmd(t, "watch", "--base-url", backend.URL, "--resource", "network-stats", "--once")
	if err != nil {
		t.Fatalf("watch command error = %v", err)
	}
	if !strings.Contains(output, `"state":"success"`) {
		t.Errorf("output missing success line:\n%s", output)
	}
}

func TestRunUntilDone(t *testing.T) {
	t.Run("start error", func(t *testing.T) {
		err := runUntilDone(context.Background(), discardLogger(), func(context.Context) error {
			return errors.New("bind failed")
		})
		if err == nil || !strings.Contains(err.Error(), "server error: bind failed") {
			t.Errorf("runUntilDone() error = %v", err)
		}
	})

	t.Run("graceful shutdown", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := runUntilDone(ctx, discardLogger(), func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		})
		if err != nil {
			t.Errorf("runUntilDone() error = %v", err)
		}
	})
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	if _, err := newLogger(io.Discard, "loud"); err == nil {
		t.Error("newLogger() expected error for unknown level")
	}
	if _, err := newLogger(io.Discard, "debug"); err != nil {
		t.Errorf("newLogger(debug) error = %v", err)
	}
}
