package config

import (
	"fmt"
	"time"
)

// Config represents an anxeod.yaml configuration file.
// CLI flags override config values where both exist.
type Config struct {
	Gateway       GatewayConfig `yaml:"gateway"`
	Email         EmailConfig   `yaml:"email"`
	Paths         PathsConfig   `yaml:"paths"`
	Prefixes      []string      `yaml:"prefixes"`
	InputEncoding string        `yaml:"input_encoding"`
	Logging       LoggingConfig `yaml:"logging"`
	Archive       ArchiveConfig `yaml:"archive"`
	Notify        NotifyConfig  `yaml:"notify"`
}

// GatewayConfig locates the item API.
type GatewayConfig struct {
	ItemRoot          string   `yaml:"item_root"`
	PutTemplate       string   `yaml:"put_template"`
	APIKey            string   `yaml:"api_key"`
	LookupTimeout     Duration `yaml:"lookup_timeout,omitempty"`
	UpdateTimeout     Duration `yaml:"update_timeout,omitempty"`
	CallDelay         Duration `yaml:"call_delay,omitempty"`
	PermalinkTemplate string   `yaml:"permalink_template,omitempty"`
}

// EmailConfig holds the SMTP relay and report recipients.
type EmailConfig struct {
	Host       string   `yaml:"host"`
	Port       int      `yaml:"port"`
	From       string   `yaml:"from"`
	Recipients []string `yaml:"recipients"`
	Subject    string   `yaml:"subject,omitempty"`
}

// PathsConfig holds the working directories and the tracker file.
type PathsConfig struct {
	SourceDir   string `yaml:"source_dir"`
	ArchiveDir  string `yaml:"archive_dir"`
	TrackerPath string `yaml:"tracker_path"`
}

// LoggingConfig selects level and destination. An empty path logs to stderr.
type LoggingConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

// ArchiveConfig configures the run archive. An empty backend disables it.
type ArchiveConfig struct {
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// NotifyConfig configures the run-completed notification adapter.
// An empty type disables it.
type NotifyConfig struct {
	Type       string            `yaml:"type"`
	URL        string            `yaml:"url"`
	Channel    string            `yaml:"channel,omitempty"`
	Exchange   string            `yaml:"exchange,omitempty"`
	RoutingKey string            `yaml:"routing_key,omitempty"`
	Headers    map[string]string `yaml:"headers,omitempty"`
	Timeout    Duration          `yaml:"timeout,omitempty"`
	Retries    *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "250ms").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "-1s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
