// Package config provides YAML configuration parsing for the etlive binary.
//
// It is the file-based alternative to configuring an [etlive.Service] with
// functional options.
//
// Example configuration:
//
//	title: ET Live
//	port: 8080
//	poll_interval: 1s
//	poll_timeout: 10s
//
//	nats:
//	  url: ${NATS_URL:-nats://localhost:4222}
//
//	nodes:
//	  - id: ET0001
//	    endpoint: http://10.0.0.1/api/last
//	    location: Zurich
//	    headers:
//	      Authorization: Bearer ${ET_TOKEN}
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// minPollInterval keeps a config file from hammering the nodes.
const minPollInterval = 1 * time.Second

const (
	defaultPort            = 8080
	defaultPollInterval    = 1 * time.Second
	defaultPollTimeout     = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second
)

// Config is the root configuration structure.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard title. Defaults to "ET Live" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// PollInterval is the time between collection ticks. Defaults to 1s.
	PollInterval Duration `yaml:"poll_interval"`

	// PollTimeout bounds a single node poll. Defaults to 10s.
	PollTimeout Duration `yaml:"poll_timeout"`

	// ShutdownTimeout is the grace period on SIGINT/SIGTERM. Defaults to 5s.
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`

	// StaticDir serves a front-end build instead of the embedded dashboard.
	StaticDir string `yaml:"static_dir"`

	// NATS enables publishing node updates when URL is set.
	NATS NATSConfig `yaml:"nats"`

	// Nodes lists the ET nodes to poll.
	Nodes []NodeConfig `yaml:"nodes"`
}

// NATSConfig configures the optional NATS relay.
type NATSConfig struct {
	// URL of the NATS server. Supports ${VAR} substitution.
	URL string `yaml:"url"`

	// Subject defaults to "etlive.measurements".
	Subject string `yaml:"subject"`
}

// NodeConfig defines a single ET node.
type NodeConfig struct {
	// ID identifies the node; it is matched case-insensitively.
	ID string `yaml:"id"`

	// Endpoint is the URL returning the node's last measurement.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	Endpoint string `yaml:"endpoint"`

	// Location is a free-form description shown next to the node.
	Location string `yaml:"location"`

	// Headers are sent with every poll. Values support substitution.
	Headers map[string]string `yaml:"headers"`
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
// Group 2: the ":-default" part, present when a default was given
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		sub := envVarPattern.FindStringSubmatch(match)
		if len(sub) < 2 {
			return match
		}

		name := sub[1]
		hasDefault := len(sub) > 2 && sub[2] != ""

		value, exists := os.LookupEnv(name)
		if !exists {
			if hasDefault {
				return sub[3]
			}
			firstErr = fmt.Errorf("environment variable %q is not set", name)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in node endpoints, header values and the
// NATS URL. Defaults are applied for port and the three durations.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.PollInterval == 0 {
		c.PollInterval = Duration(defaultPollInterval)
	}
	if c.PollTimeout == 0 {
		c.PollTimeout = Duration(defaultPollTimeout)
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = Duration(defaultShutdownTimeout)
	}
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.PollInterval.Duration() < minPollInterval {
		return fmt.Errorf("poll_interval must be at least %s, got %s", minPollInterval, c.PollInterval.Duration())
	}
	if c.PollTimeout.Duration() <= 0 {
		return fmt.Errorf("poll_timeout must be positive, got %s", c.PollTimeout.Duration())
	}
	if c.ShutdownTimeout.Duration() <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive, got %s", c.ShutdownTimeout.Duration())
	}

	if c.NATS.URL != "" {
		expanded, err := expandEnvVars(c.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats.url: %w", err)
		}
		c.NATS.URL = expanded
	} else if c.NATS.Subject != "" {
		return errors.New("nats.subject is set but nats.url is empty")
	}

	if len(c.Nodes) == 0 {
		return errors.New("at least one node must be defined")
	}

	seen := make(map[string]int, len(c.Nodes))
	for i := range c.Nodes {
		n := &c.Nodes[i]

		n.ID = strings.TrimSpace(n.ID)
		if n.ID == "" {
			return fmt.Errorf("nodes[%d]: id is required", i)
		}
		key := strings.ToUpper(n.ID)
		if prev, dup := seen[key]; dup {
			return fmt.Errorf("nodes[%d] (%s): duplicate id, already used by nodes[%d]", i, n.ID, prev)
		}
		seen[key] = i

		if n.Endpoint == "" {
			return fmt.Errorf("nodes[%d] (%s): endpoint is required", i, n.ID)
		}
		expanded, err := expandEnvVars(n.Endpoint)
		if err != nil {
			return fmt.Errorf("nodes[%d] (%s): endpoint: %w", i, n.ID, err)
		}
		n.Endpoint = expanded

		u, err := url.Parse(n.Endpoint)
		if err != nil {
			return fmt.Errorf("nodes[%d] (%s): invalid endpoint: %w", i, n.ID, err)
		}
		if u.Scheme == "" {
			return fmt.Errorf("nodes[%d] (%s): endpoint must have a scheme (http:// or https://)", i, n.ID)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("nodes[%d] (%s): endpoint scheme must be http or https, got %q", i, n.ID, u.Scheme)
		}

		for k, v := range n.Headers {
			expanded, err := expandEnvVars(v)
			if err != nil {
				return fmt.Errorf("nodes[%d] (%s): headers[%s]: %w", i, n.ID, k, err)
			}
			n.Headers[k] = expanded
		}
	}

	return nil
}
