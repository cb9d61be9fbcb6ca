// Package publish fans widget snapshots out to NATS so other services can
// follow the dashboard without polling the backend themselves.
package publish

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/jpalmerr/netpulse/internal/store"
)

// SubjectWidgetState is the subject pattern for snapshot events:
// prefix, then the widget token.
const SubjectWidgetState = "%s.widget.%s.state"

// EventWidgetState is the envelope type of snapshot events.
const EventWidgetState = "widget.state"

// Config holds the NATS connection settings.
type Config struct {
	URL            string
	SubjectPrefix  string
	Token          string
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:            nats.DefaultURL,
		SubjectPrefix:  "netpulse",
		ConnectTimeout: 5 * time.Second,
		ReconnectWait:  2 * time.Second,
		MaxReconnects:  -1, // infinite
	}
}

// Event is the envelope published for every snapshot.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// conn is the subset of *nats.Conn the publisher uses.
type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// Publisher publishes widget snapshots to NATS.
type Publisher struct {
	conn   conn
	prefix string
	source string
	logger *slog.Logger
}

// Connect dials NATS and returns a Publisher. source names this process in
// the connection and in every event envelope.
func Connect(cfg Config, source string, logger *slog.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.Name(source),
		nats.Timeout(cfg.ConnectTimeout),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return newPublisher(nc, cfg.SubjectPrefix, source, logger), nil
}

func newPublisher(c conn, prefix, source string, logger *slog.Logger) *Publisher {
	prefix = strings.Trim(prefix, ". ")
	if prefix == "" {
		prefix = DefaultConfig().SubjectPrefix
	}
	return &Publisher{
		conn:   c,
		prefix: prefix,
		source: source,
		logger: logger.With("component", "publish"),
	}
}

// Subject returns the subject snapshots of widget are published on.
func (p *Publisher) Subject(widget string) string {
	return fmt.Sprintf(SubjectWidgetState, p.prefix, subjectToken(widget))
}

// PublishSnapshot wraps snap in an [Event] and publishes it.
func (p *Publisher) PublishSnapshot(snap store.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	data, err := json.Marshal(Event{
		ID:        uuid.New().String(),
		Type:      EventWidgetState,
		Source:    p.source,
		Timestamp: time.Now().UTC(),
		Data:      raw,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := p.Subject(snap.Name)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.logger.Debug("snapshot published", "subject", subject, "state", snap.State, "seq", snap.Seq)
	return nil
}

// Close drains and closes the connection.
func (p *Publisher) Close() error {
	if p.conn != nil {
		return p.conn.Drain()
	}
	return nil
}

// subjectToken turns a widget name into a single NATS subject token.
// Wildcards, separators and whitespace become "-".
func subjectToken(name string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	token := strings.TrimRight(b.String(), "-")
	if token == "" {
		return "_"
	}
	return token
}
