package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/justapithecus/anxeod/alma"
	"github.com/justapithecus/anxeod/mailer"
	"github.com/justapithecus/anxeod/types"
)

// EnvPrefix prefixes every legacy environment variable read by FromEnv.
const EnvPrefix = "ANXEODALERTS__"

// Load reads a YAML config file, expands environment variables, unmarshals
// into a Config struct and applies defaults. It does not validate; callers
// validate for the scope of the command they run.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("cannot read config file %q: %w", path, err)
	}

	expanded := ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// FromEnv builds a Config from the ANXEODALERTS__* variables used by cron
// deployments that predate the YAML file.
func FromEnv() (*Config, error) {
	env := func(key string) string { return strings.TrimSpace(os.Getenv(EnvPrefix + key)) }

	cfg := Config{
		Gateway: GatewayConfig{
			ItemRoot:    env("ITEM_API_ROOT"),
			PutTemplate: env("ITEM_PUT_API_ROOT"),
			APIKey:      env("ITEM_API_KEY"),
		},
		Email: EmailConfig{
			Host: env("EMAIL_HOST"),
			From: env("EMAIL_FROM"),
		},
		Paths: PathsConfig{
			SourceDir:   env("SOURCE_DIR"),
			ArchiveDir:  env("ARCHIVE_DIR"),
			TrackerPath: env("TRACKER_FILE_PATH"),
		},
		Logging: LoggingConfig{
			Level: env("LOG_LEVEL"),
			Path:  env("LOG_PATH"),
		},
	}

	var errs []error
	if v := env("EMAIL_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sEMAIL_PORT: %w", EnvPrefix, err))
		}
		cfg.Email.Port = port
	}
	if v := env("EMAIL_RECIPIENTS_JSON"); v != "" {
		if err := json.Unmarshal([]byte(v), &cfg.Email.Recipients); err != nil {
			errs = append(errs, fmt.Errorf("%sEMAIL_RECIPIENTS_JSON: %w", EnvPrefix, err))
		}
	}
	if v := env("PREFIX_LIST_JSON"); v != "" {
		if err := json.Unmarshal([]byte(v), &cfg.Prefixes); err != nil {
			errs = append(errs, fmt.Errorf("%sPREFIX_LIST_JSON: %w", EnvPrefix, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Email.From == "" {
		c.Email.From = mailer.DefaultFrom
	}
	if c.Email.Subject == "" {
		c.Email.Subject = mailer.DefaultSubject
	}
	if c.InputEncoding == "" {
		c.InputEncoding = "utf-8"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Archive.Dataset == "" {
		c.Archive.Dataset = "anxeod"
	}
}

// Scope selects which keys a command needs.
type Scope int

const (
	// ScopeGateway needs only the item API.
	ScopeGateway Scope = iota
	// ScopeProcess adds the SMTP relay.
	ScopeProcess
	// ScopeRun needs everything the scheduled run touches.
	ScopeRun
)

// MissingError lists every required key that is unset.
type MissingError struct {
	Keys []string
}

func (e *MissingError) Error() string {
	return "missing required configuration: " + strings.Join(e.Keys, ", ")
}

// Validate reports every required key missing for scope, and values that
// are present but malformed.
func (c *Config) Validate(scope Scope) error {
	var missing []string
	need := func(key, v string) {
		if v == "" {
			missing = append(missing, key)
		}
	}

	need("gateway.item_root", c.Gateway.ItemRoot)
	need("gateway.put_template", c.Gateway.PutTemplate)
	need("gateway.api_key", c.Gateway.APIKey)

	if scope >= ScopeProcess {
		need("email.host", c.Email.Host)
		if c.Email.Port == 0 {
			missing = append(missing, "email.port")
		}
	}
	if scope >= ScopeRun {
		if len(c.Email.Recipients) == 0 {
			missing = append(missing, "email.recipients")
		}
		need("paths.source_dir", c.Paths.SourceDir)
		need("paths.archive_dir", c.Paths.ArchiveDir)
		need("paths.tracker_path", c.Paths.TrackerPath)
		if len(c.Prefixes) == 0 {
			missing = append(missing, "prefixes")
		}
	}
	if len(missing) > 0 {
		return &MissingError{Keys: missing}
	}

	// zero means the client default
	if d := c.Gateway.CallDelay.Duration; d != 0 && (d < alma.MinCallDelay || d > alma.MaxCallDelay) {
		return fmt.Errorf("gateway.call_delay: %v outside %v-%v", d, alma.MinCallDelay, alma.MaxCallDelay)
	}
	if p := c.Email.Port; p < 0 || p > 65535 {
		return fmt.Errorf("email.port: %d out of range", p)
	}
	for _, p := range c.Prefixes {
		if !types.FileCategory(p).Valid() {
			return fmt.Errorf("prefixes: unknown category %q", p)
		}
	}
	switch c.Archive.Backend {
	case "", "fs", "s3":
	default:
		return fmt.Errorf("archive.backend: unknown backend %q (want fs or s3)", c.Archive.Backend)
	}
	if c.Archive.Backend != "" && c.Archive.Path == "" {
		return errors.New("archive.path is required when archive.backend is set")
	}
	if c.Notify.Type != "" {
		if !slices.Contains([]string{"webhook", "redis", "amqp"}, c.Notify.Type) {
			return fmt.Errorf("notify.type: unknown adapter %q (want webhook, redis or amqp)", c.Notify.Type)
		}
		if c.Notify.URL == "" {
			return errors.New("notify.url is required when notify.type is set")
		}
	}
	return nil
}
