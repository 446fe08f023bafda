package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/anxeod/adapter"
	"github.com/justapithecus/anxeod/adapter/amqp"
	"github.com/justapithecus/anxeod/adapter/redis"
	"github.com/justapithecus/anxeod/adapter/webhook"
	"github.com/justapithecus/anxeod/alma"
	"github.com/justapithecus/anxeod/cli/config"
	"github.com/justapithecus/anxeod/eod"
	"github.com/justapithecus/anxeod/housekeeping"
	"github.com/justapithecus/anxeod/lode"
	"github.com/justapithecus/anxeod/log"
	"github.com/justapithecus/anxeod/mailer"
	"github.com/justapithecus/anxeod/metrics"
	"github.com/justapithecus/anxeod/runtime"
)

// notifyTimeout bounds the completion event publish after a run.
const notifyTimeout = 30 * time.Second

// readConfig loads --config, or the environment when it is unset.
func readConfig(c *cli.Context) (*config.Config, error) {
	if path := c.String("config"); path != "" {
		return config.Load(path)
	}
	return config.FromEnv()
}

// loadConfig reads and validates configuration for scope. Failures exit
// with the configuration error code before any work starts.
func loadConfig(c *cli.Context, scope config.Scope) (*config.Config, error) {
	cfg, err := readConfig(c)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("config: %v", err), eod.ExitConfigError)
	}
	if err := cfg.Validate(scope); err != nil {
		return nil, cli.Exit(fmt.Sprintf("config: %v", err), eod.ExitConfigError)
	}
	return cfg, nil
}

// session holds what one executing command builds from configuration.
type session struct {
	cfg       *config.Config
	mode      string
	runID     string
	started   time.Time
	logger    *log.Logger
	collector *metrics.Collector
	logFile   io.Closer
}

func newSession(cfg *config.Config, mode string) (*session, error) {
	s := &session{
		cfg:     cfg,
		mode:    mode,
		runID:   uuid.NewString(),
		started: time.Now(),
	}

	level, err := log.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("config: logging.level: %v", err), eod.ExitConfigError)
	}
	s.logger = log.New(s.runID, os.Stderr, level)
	if cfg.Logging.Path != "" {
		f, err := os.OpenFile(cfg.Logging.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, cli.Exit(fmt.Sprintf("config: logging.path: %v", err), eod.ExitConfigError)
		}
		s.logger = s.logger.WithOutput(f)
		s.logFile = f
	}
	s.collector = metrics.NewCollector(mode, cfg.Archive.Backend, s.runID)
	return s, nil
}

func (s *session) close() {
	_ = s.logger.Sync()
	if s.logFile != nil {
		_ = s.logFile.Close()
	}
}

func (s *session) report(dryRun bool) *runtime.RunReport {
	return runtime.NewRunReport(s.runID, s.mode, dryRun, s.started)
}

func (s *session) gateway() (*alma.Client, error) {
	g := s.cfg.Gateway
	return alma.New(alma.Config{
		ItemRoot:      g.ItemRoot,
		PutTemplate:   g.PutTemplate,
		APIKey:        g.APIKey,
		LookupTimeout: g.LookupTimeout.Duration,
		UpdateTimeout: g.UpdateTimeout.Duration,
		CallDelay:     g.CallDelay.Duration,
	}, alma.WithLogger(s.logger), alma.WithMetrics(s.collector))
}

func (s *session) runner(dryRun bool) (*runtime.Runner, error) {
	gw, err := s.gateway()
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("config: gateway: %v", err), eod.ExitConfigError)
	}
	opts := []runtime.RunnerOption{
		runtime.WithLogger(s.logger),
		runtime.WithMetrics(s.collector),
		runtime.WithDryRun(dryRun),
	}
	if tmpl := s.cfg.Gateway.PermalinkTemplate; tmpl != "" {
		opts = append(opts, runtime.WithPermalinkTemplate(tmpl))
	}
	return runtime.NewRunner(gw, opts...), nil
}

func (s *session) mailer() (*mailer.SMTPMailer, error) {
	e := s.cfg.Email
	m, err := mailer.New(mailer.Config{Host: e.Host, Port: e.Port, From: e.From, To: e.Recipients})
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("config: email: %v", err), eod.ExitConfigError)
	}
	return m, nil
}

// archive opens the run archive, or returns nil when none is configured.
func (s *session) archive(ctx context.Context) (*lode.Archive, error) {
	a := s.cfg.Archive
	if a.Backend == "" {
		return nil, nil
	}
	factory, err := archiveBackend(a).Factory(ctx)
	if err != nil {
		return nil, err
	}
	arch, err := lode.NewArchive(lode.Config{
		Dataset: a.Dataset,
		Day:     lode.DeriveDay(s.started),
		RunID:   s.runID,
	}, factory)
	if err != nil {
		return nil, err
	}
	return arch.WithMetrics(s.collector), nil
}

func archiveBackend(a config.ArchiveConfig) lode.Backend {
	return lode.Backend{
		Kind:         a.Backend,
		Path:         a.Path,
		Region:       a.Region,
		Endpoint:     a.Endpoint,
		UsePathStyle: a.S3PathStyle,
	}
}

// storagePath renders the archive location for completion events.
func storagePath(a config.ArchiveConfig) string {
	switch a.Backend {
	case "fs":
		if abs, err := filepath.Abs(a.Path); err == nil {
			return "file://" + filepath.Join(abs, "datasets", a.Dataset)
		}
		return "file://" + a.Path
	case "s3":
		return "s3://" + a.Path
	}
	return ""
}

// newAdapter builds the configured notification adapter, or nil.
func newAdapter(n config.NotifyConfig) (adapter.Adapter, error) {
	retries := func(def int) int {
		if n.Retries != nil {
			return *n.Retries
		}
		return def
	}
	switch n.Type {
	case "":
		return nil, nil
	case "webhook":
		return webhook.New(webhook.Config{
			URL:     n.URL,
			Headers: n.Headers,
			Timeout: n.Timeout.Duration,
			Retries: retries(webhook.DefaultRetries),
		})
	case "redis":
		return redis.New(redis.Config{
			URL:     n.URL,
			Channel: n.Channel,
			Timeout: n.Timeout.Duration,
			Retries: retries(redis.DefaultRetries),
		})
	case "amqp":
		return amqp.New(amqp.Config{
			URL:        n.URL,
			Exchange:   n.Exchange,
			RoutingKey: n.RoutingKey,
			Timeout:    n.Timeout.Duration,
			Retries:    retries(amqp.DefaultRetries),
		})
	}
	return nil, fmt.Errorf("unknown notify type %q", n.Type)
}

// outcome classifies a run error for completion events.
func outcome(err error) string {
	switch {
	case err == nil:
		return adapter.OutcomeSuccess
	case errors.Is(err, eod.ErrDelivery):
		return adapter.OutcomeDeliveryFailed
	default:
		return adapter.OutcomeRunError
	}
}

// notifier publishes a completion event through a. Publish failures are
// logged only.
func (s *session) notifier(a adapter.Adapter) eod.Notifier {
	day := lode.DeriveDay(s.started)
	path := storagePath(s.cfg.Archive)
	return func(ctx context.Context, r *runtime.RunReport, runErr error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()

		event := adapter.NewRunCompletedEvent(r, outcome(runErr), day, path, time.Now())
		if err := a.Publish(ctx, event); err != nil {
			s.logger.Warn("completion event not published", map[string]any{
				"adapter": s.cfg.Notify.Type,
				"error":   err.Error(),
			})
			return
		}
		s.logger.Debug("completion event published", map[string]any{"adapter": s.cfg.Notify.Type})
	}
}

// orchestrator wires an eod.Orchestrator for this session. The returned
// cleanup closes the archive and the adapter.
func (s *session) orchestrator(ctx context.Context, tracker *housekeeping.Tracker, opts eod.Options) (*eod.Orchestrator, func(), error) {
	runner, err := s.runner(opts.DryRun)
	if err != nil {
		return nil, nil, err
	}
	sender, err := s.mailer()
	if err != nil {
		return nil, nil, err
	}

	options := []eod.Option{eod.WithLogger(s.logger), eod.WithMetrics(s.collector)}
	var closers []func() error

	arch, err := s.archive(ctx)
	if err != nil {
		s.logger.Warn("run archive unavailable", map[string]any{
			"error":     err.Error(),
			"retriable": lode.Retriable(err),
		})
	} else if arch != nil && !opts.DryRun {
		options = append(options, eod.WithArchiver(arch))
		closers = append(closers, arch.Close)
	}

	a, err := newAdapter(s.cfg.Notify)
	if err != nil {
		return nil, nil, cli.Exit(fmt.Sprintf("config: notify: %v", err), eod.ExitConfigError)
	}
	if a != nil {
		options = append(options, eod.WithNotifier(s.notifier(a)))
		closers = append(closers, a.Close)
	}

	opts.Prefixes = s.cfg.Prefixes
	opts.Encoding = s.cfg.InputEncoding
	opts.Subject = s.cfg.Email.Subject

	cleanup := func() {
		for _, c := range closers {
			_ = c()
		}
	}
	return eod.New(runner, tracker, sender, opts, options...), cleanup, nil
}

// finishRun writes --report and maps the run error to an exit.
func finishRun(c *cli.Context, rep *runtime.RunReport, runErr error) error {
	if path := c.String("report"); path != "" {
		if err := runtime.WriteRunReport(rep, path); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
	if runErr != nil {
		return cli.Exit(runErr.Error(), eod.ExitCode(runErr))
	}
	return nil
}
