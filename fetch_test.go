package netpulse

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewHTTPFetcher_Validation(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		wantErr  bool
	}{
		{name: "http", endpoint: "http://localhost:8080/network-stats"},
		{name: "https", endpoint: "https://example.com/network-traffic"},
		{name: "no scheme", endpoint: "localhost:8080/network-stats", wantErr: true},
		{name: "ftp", endpoint: "ftp://example.com/x", wantErr: true},
		{name: "no host", endpoint: "http:///network-stats", wantErr: true},
		{name: "unparseable", endpoint: "http://[::1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewHTTPFetcher[NetworkStats](tt.endpoint, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewHTTPFetcher() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && f.Endpoint() != tt.endpoint {
				t.Errorf("Endpoint() = %q, want %q", f.Endpoint(), tt.endpoint)
			}
		})
	}
}

func TestHTTPFetcher_Success(t *testing.T) {
	var gotHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Api-Key")
		_, _ = w.Write([]byte(`{"packetsSent":100,"packetsReceived":98,"errorRate":0.02}`))
	}))
	defer server.Close()

	headers := map[string]string{"X-Api-Key": "secret"}
	f, err := NewHTTPFetcher[NetworkStats](ResourceURL(server.URL, ResourceStats), headers)
	if err != nil {
		t.Fatalf("NewHTTPFetcher() error = %v", err)
	}
	defer f.Close()

	// the fetcher keeps its own copy
	headers["X-Api-Key"] = "changed"

	got, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	want := NetworkStats{PacketsSent: 100, PacketsReceived: 98, ErrorRate: 0.02}
	if got != want {
		t.Errorf("Fetch() = %+v, want %+v", got, want)
	}
	if gotHeader != "secret" {
		t.Errorf("X-Api-Key = %q, want secret", gotHeader)
	}
}

func TestHTTPFetcher_ApplicationErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantStatus  int
		wantMessage string
	}{
		{name: "payload message", status: 500, body: `{"message":"X"}`, wantStatus: 500, wantMessage: "X"},
		{name: "no payload", status: 503, body: ``, wantStatus: 503, wantMessage: "request failed with status code 503"},
		{name: "html error page", status: 502, body: `<html>Bad Gateway</html>`, wantStatus: 502, wantMessage: "request failed with status code 502"},
		{name: "wrong shape", status: 200, body: `[1,2,3]`, wantStatus: 200, wantMessage: "unexpected response: decode netpulse.NetworkStats"},
		{name: "truncated body", status: 200, body: `{"message":"not ready"`, wantStatus: 200, wantMessage: "unexpected response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			f, _ := NewHTTPFetcher[NetworkStats](server.URL, nil)
			_, err := f.Fetch(context.Background())

			var appErr *ApplicationError
			if !errors.As(err, &appErr) {
				t.Fatalf("Fetch() error = %T %v, want *ApplicationError", err, err)
			}
			if appErr.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", appErr.StatusCode, tt.wantStatus)
			}
			if msg := ErrorMessage(err); !strings.HasPrefix(msg, tt.wantMessage) {
				t.Errorf("ErrorMessage() = %q, want prefix %q", msg, tt.wantMessage)
			}
		})
	}
}

func TestHTTPFetcher_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := server.URL
	server.Close()

	f, _ := NewHTTPFetcher[[]TrafficPoint](endpoint, nil)
	_, err := f.Fetch(context.Background())

	var tErr *TransportError
	if !errors.As(err, &tErr) {
		t.Fatalf("Fetch() error = %T %v, want *TransportError", err, err)
	}
	if tErr.Op != "request" {
		t.Errorf("Op = %q, want request", tErr.Op)
	}
	if ErrorMessage(err) == "" || ErrorMessage(err) == DefaultErrorMessage {
		t.Errorf("ErrorMessage() = %q, want the transport text", ErrorMessage(err))
	}
}

func TestHTTPFetcher_Cancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	f, _ := NewHTTPFetcher[NetworkStats](server.URL, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Fetch() error = %v, want context.Canceled in chain", err)
	}
}

func TestResourceURL(t *testing.T) {
	tests := []struct {
		base, resource, want string
	}{
		{"http://localhost:8080", "network-stats", "http://localhost:8080/network-stats"},
		{"http://localhost:8080/", "/network-stats", "http://localhost:8080/network-stats"},
		{"https://lab.example.com/api/", "network-traffic", "https://lab.example.com/api/network-traffic"},
	}

	for _, tt := range tests {
		if got := ResourceURL(tt.base, tt.resource); got != tt.want {
			t.Errorf("ResourceURL(%q, %q) = %q, want %q", tt.base, tt.resource, got, tt.want)
		}
	}
}

func TestFetchFunc(t *testing.T) {
	var f Fetcher[int] = FetchFunc[int](func(ctx context.Context) (int, error) { return 3, nil })
	got, err := f.Fetch(context.Background())
	if err != nil || got != 3 {
		t.Errorf("Fetch() = %d, %v", got, err)
	}
}
