// Package config provides YAML configuration parsing for netpulse.
//
// This package enables running netpulse as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	title: Edge Router
//	port: 8080
//	base_url: ${NETPULSE_BACKEND_URL:-http://localhost:9000}
//	poll_interval: 5s
//
//	widgets:
//	  - name: Traffic
//	    kind: traffic
//	  - name: Stats
//	    kind: stats
//	    resource: network-stats
//	    interval: 10s
//
//	nats:
//	  url: nats://localhost:4222
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/netpulse"
)

const (
	// minPollInterval is the minimum allowed polling interval for production configs.
	// This prevents accidental DoS of the backend with overly aggressive polling.
	minPollInterval = 1 * time.Second

	defaultPort         = 8080
	defaultPollInterval = 5 * time.Second
	defaultTimeout      = 10 * time.Second

	// BaseURLEnv is consulted when the file sets no base_url.
	BaseURLEnv = "NETPULSE_BACKEND_URL"

	// DefaultBaseURL is used when neither the file nor the environment
	// names a backend.
	DefaultBaseURL = "http://localhost:8080"
)

// Visibility modes accepted by the visibility field.
const (
	VisibilityClients = "clients"
	VisibilityAlways  = "always"
)

// Config is the root configuration structure for netpulse.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the board title. Defaults to "NetPulse" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// BaseURL is the backend all widget resources are resolved against.
	// When empty, [Config.ResolveBaseURL] falls back to the environment.
	BaseURL string `yaml:"base_url"`

	// PollInterval is the time between fetches for widgets without their
	// own interval. Defaults to 5s.
	PollInterval Duration `yaml:"poll_interval"`

	// InitialDelay postpones the first fetch of every widget.
	InitialDelay Duration `yaml:"initial_delay"`

	// Timeout bounds each fetch. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`

	// Visibility is "clients" (poll while a dashboard page is visible) or
	// "always". Defaults to "clients".
	Visibility string `yaml:"visibility"`

	// Widgets lists the panels to poll. Empty means the built-in traffic
	// and stats widgets.
	Widgets []WidgetConfig `yaml:"widgets"`

	// NATS enables publishing snapshots when URL is set.
	NATS NATSConfig `yaml:"nats"`
}

// WidgetConfig defines a single widget.
type WidgetConfig struct {
	// Name is the display name; it must be unique.
	Name string `yaml:"name"`

	// Kind is "traffic" or "stats".
	Kind string `yaml:"kind"`

	// Resource is the path under base_url. Defaults by kind to
	// network-traffic or network-stats.
	Resource string `yaml:"resource"`

	// Interval overrides poll_interval for this widget. Must be between 1s and 1h.
	Interval Duration `yaml:"interval"`

	// InitialDelay overrides the global initial_delay.
	InitialDelay Duration `yaml:"initial_delay"`

	// Timeout overrides the global timeout.
	Timeout Duration `yaml:"timeout"`

	// Headers are sent with each request. Values support environment
	// variable substitution.
	Headers map[string]string `yaml:"headers"`
}

// NATSConfig configures snapshot publishing.
type NATSConfig struct {
	// URL of the NATS server. Supports environment variable substitution.
	URL string `yaml:"url"`

	// SubjectPrefix defaults to "netpulse".
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// LoadEnvFile loads KEY=VALUE pairs from a dotenv file into the process
// environment. Variables that are already set keep their value. A missing
// file is not an error when optional is true.
func LoadEnvFile(path string, optional bool) error {
	if err := godotenv.Load(path); err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in base_url, header values and the
// NATS URL. Defaults are applied for Port (8080), PollInterval (5s),
// Timeout (10s) and Visibility ("clients").
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = Duration(defaultPollInterval)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = Duration(defaultTimeout)
	}
	if cfg.Visibility == "" {
		cfg.Visibility = VisibilityClients
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ResolveBaseURL returns base_url, then $NETPULSE_BACKEND_URL, then
// [DefaultBaseURL].
func (c *Config) ResolveBaseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	if v := strings.TrimSpace(os.Getenv(BaseURLEnv)); v != "" {
		return v
	}
	return DefaultBaseURL
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", c.Port)
	}
	if c.PollInterval.Duration() < minPollInterval {
		return fmt.Errorf("poll_interval must be at least %s, got %s", minPollInterval, c.PollInterval.Duration())
	}
	if c.InitialDelay.Duration() < 0 {
		return fmt.Errorf("initial_delay cannot be negative, got %s", c.InitialDelay.Duration())
	}
	if c.Timeout.Duration() < 0 {
		return fmt.Errorf("timeout cannot be negative, got %s", c.Timeout.Duration())
	}

	switch c.Visibility {
	case VisibilityClients, VisibilityAlways:
	default:
		return fmt.Errorf("visibility must be %q or %q, got %q", VisibilityClients, VisibilityAlways, c.Visibility)
	}

	if c.BaseURL != "" {
		expanded, err := expandEnvVars(c.BaseURL)
		if err != nil {
			return fmt.Errorf("base_url: %w", err)
		}
		c.BaseURL = expanded
		if err := validateHTTPURL(c.BaseURL); err != nil {
			return fmt.Errorf("base_url: %w", err)
		}
	}

	seen := make(map[string]struct{}, len(c.Widgets))
	for i := range c.Widgets {
		w := &c.Widgets[i]

		if w.Name == "" {
			return fmt.Errorf("widgets[%d]: name is required", i)
		}
		if _, dup := seen[w.Name]; dup {
			return fmt.Errorf("widgets[%d] (%s): duplicate widget name", i, w.Name)
		}
		seen[w.Name] = struct{}{}

		if w.Kind == "" {
			return fmt.Errorf("widgets[%d] (%s): kind is required", i, w.Name)
		}
		kind, err := netpulse.ParseWidgetKind(w.Kind)
		if err != nil {
			return fmt.Errorf("widgets[%d] (%s): %w", i, w.Name, err)
		}
		w.Kind = string(kind)

		if strings.Contains(w.Resource, "://") {
			return fmt.Errorf("widgets[%d] (%s): resource must be a path relative to base_url", i, w.Name)
		}

		for k, v := range w.Headers {
			expanded, err := expandEnvVars(v)
			if err != nil {
				return fmt.Errorf("widgets[%d] (%s): headers[%s]: %w", i, w.Name, k, err)
			}
			w.Headers[k] = expanded
		}

		if w.Interval != 0 {
			if w.Interval.Duration() < time.Second {
				return fmt.Errorf("widgets[%d] (%s): interval must be at least 1s, got %s",
					i, w.Name, w.Interval.Duration())
			}
			if w.Interval.Duration() > time.Hour {
				return fmt.Errorf("widgets[%d] (%s): interval must not exceed 1h, got %s",
					i, w.Name, w.Interval.Duration())
			}
		}

		if w.InitialDelay.Duration() < 0 {
			return fmt.Errorf("widgets[%d] (%s): initial_delay cannot be negative, got %s",
				i, w.Name, w.InitialDelay.Duration())
		}
		if w.Timeout.Duration() < 0 {
			return fmt.Errorf("widgets[%d] (%s): timeout cannot be negative, got %s",
				i, w.Name, w.Timeout.Duration())
		}
	}

	if c.NATS.URL != "" {
		expanded, err := expandEnvVars(c.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats.url: %w", err)
		}
		c.NATS.URL = expanded
	}

	return nil
}

func validateHTTPURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme == "" {
		return errors.New("url must have a scheme (http:// or https://)")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("url must have a host")
	}
	return nil
}
