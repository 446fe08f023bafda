// Package eod orchestrates the end-of-day run: discover new batch files,
// archive them, reconcile every barcode, and deliver the report.
//
// The orchestrator owns ordering only. Lookups and updates belong to the
// runtime.Runner, file handling to housekeeping, delivery to mailer.
package eod

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/justapithecus/anxeod/category"
	"github.com/justapithecus/anxeod/housekeeping"
	"github.com/justapithecus/anxeod/log"
	"github.com/justapithecus/anxeod/mailer"
	"github.com/justapithecus/anxeod/metrics"
	"github.com/justapithecus/anxeod/report"
	"github.com/justapithecus/anxeod/runtime"
	"github.com/justapithecus/anxeod/types"
)

var (
	// ErrRun marks failures that abort a run before any report is sent:
	// missing directories, unreadable tracker or unclassifiable files.
	ErrRun = errors.New("run failed")
	// ErrDelivery marks a completed run whose report could not be emailed.
	ErrDelivery = errors.New("report delivery failed")
)

// WorkbookName is the file name of the combined XLSX attachment.
const WorkbookName = "annex-end-of-day.xlsx"

// BatchRunner reconciles one file's barcodes.
type BatchRunner interface {
	Run(ctx context.Context, cat types.FileCategory, barcodes []string) (*types.BatchReport, error)
}

// Archiver persists a finished run.
type Archiver interface {
	WriteRun(ctx context.Context, r *runtime.RunReport) error
}

// Notifier is told about every finished run, successful or not.
type Notifier func(ctx context.Context, r *runtime.RunReport, runErr error)

// Options selects directories and behavior for one orchestrator.
type Options struct {
	SourceDir  string
	ArchiveDir string
	Prefixes   []string
	Encoding   string
	Subject    string

	DryRun          bool
	DeleteProcessed bool
	ForceEmail      bool
}

// Orchestrator runs end-of-day batches.
type Orchestrator struct {
	runner    BatchRunner
	tracker   *housekeeping.Tracker
	sender    mailer.Sender
	archiver  Archiver
	notify    Notifier
	logger    *log.Logger
	collector *metrics.Collector
	opts      Options
	now       func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithMetrics sets the collector that counts files and emails.
func WithMetrics(c *metrics.Collector) Option {
	return func(o *Orchestrator) { o.collector = c }
}

// WithArchiver persists every finished run. Archive failures are logged,
// never fatal.
func WithArchiver(a Archiver) Option {
	return func(o *Orchestrator) { o.archiver = a }
}

// WithNotifier registers a completion hook.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notify = n }
}

// WithClock overrides time.Now, for archive stamps in tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator. tracker may be nil for single-file mode.
func New(runner BatchRunner, tracker *housekeeping.Tracker, sender mailer.Sender, opts Options, options ...Option) *Orchestrator {
	if opts.Encoding == "" {
		opts.Encoding = housekeeping.DefaultEncoding
	}
	o := &Orchestrator{
		runner:  runner,
		tracker: tracker,
		sender:  sender,
		logger:  log.Nop(),
		opts:    opts,
		now:     time.Now,
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// Run processes every new file in the source directory. A run with no new
// files returns an empty report and sends nothing.
//
// Errors wrap ErrRun or ErrDelivery. rep is stamped, archived and
// announced either way.
func (o *Orchestrator) Run(ctx context.Context, rep *runtime.RunReport) error {
	err := o.run(ctx, rep)
	o.finish(ctx, rep, err)
	return err
}

func (o *Orchestrator) run(ctx context.Context, rep *runtime.RunReport) error {
	if o.tracker == nil {
		return fmt.Errorf("%w: no tracker", ErrRun)
	}
	dirs := []string{o.opts.SourceDir}
	if !o.opts.DryRun {
		dirs = append(dirs, o.opts.ArchiveDir)
	}
	if err := housekeeping.CheckDirectories(dirs...); err != nil {
		return fmt.Errorf("%w: %w", ErrRun, err)
	}

	names, err := housekeeping.ScanDirectory(o.opts.SourceDir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRun, err)
	}
	fresh := housekeeping.NewFiles(o.opts.Prefixes, names, o.tracker.Names())
	if len(fresh) == 0 {
		o.logger.Info("no new files found", map[string]any{"source_dir": o.opts.SourceDir})
		return nil
	}
	o.logger.Info("new files found", map[string]any{"files": fresh})

	files, err := o.stage(fresh)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRun, err)
	}

	for _, f := range files {
		b, err := o.processFile(ctx, f)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrRun, err)
		}
		rep.Add(b)
		if o.opts.DryRun {
			continue
		}
		if err := o.tracker.Append(f.Name); err != nil {
			return fmt.Errorf("%w: %w", ErrRun, err)
		}
	}

	if o.opts.DeleteProcessed && !o.opts.DryRun {
		if err := housekeeping.DeleteProcessed(fresh, o.opts.SourceDir); err != nil {
			// the files are archived and tracked, so a leftover is harmless
			o.logger.Warn("delete processed files failed", map[string]any{"error": err.Error()})
		}
	}

	if !o.shouldEmail(rep) {
		o.logger.Info("email threshold not reached", map[string]any{"categories": rep.Categories})
		return nil
	}
	return o.deliver(ctx, rep, nil)
}

// stage archives the new files, or in dry-run classifies them in place.
func (o *Orchestrator) stage(names []string) ([]housekeeping.ArchivedFile, error) {
	if !o.opts.DryRun {
		return housekeeping.Archive(names, o.opts.SourceDir, o.opts.ArchiveDir, o.now())
	}
	out := make([]housekeeping.ArchivedFile, 0, len(names))
	for _, name := range names {
		cat, err := category.Classify(name)
		if err != nil {
			return nil, err
		}
		path := filepath.Join(o.opts.SourceDir, name)
		out = append(out, housekeeping.ArchivedFile{Name: name, SourcePath: path, Category: cat})
	}
	return out, nil
}

func (o *Orchestrator) processFile(ctx context.Context, f housekeeping.ArchivedFile) (*types.BatchReport, error) {
	path := f.ArchivePath
	if path == "" {
		path = f.SourcePath
	}
	barcodes, err := housekeeping.ReadBarcodes(path, o.opts.Encoding)
	if err != nil {
		return nil, err
	}
	o.logger.Info("processing file", map[string]any{
		"file":     f.Name,
		"category": f.Category,
		"barcodes": len(barcodes),
	})

	b, err := o.runner.Run(ctx, f.Category, barcodes)
	if err != nil {
		return nil, fmt.Errorf("process %s: %w", f.Name, err)
	}
	b.SourceFile = f.Name
	b.ArchivePath = f.ArchivePath
	o.collector.IncFilesProcessed()
	return b, nil
}

// ProcessFile runs one file outside the tracker and always emails its
// report, to recipients when given.
func (o *Orchestrator) ProcessFile(ctx context.Context, rep *runtime.RunReport, path string, recipients []string) error {
	err := o.processOne(ctx, rep, path, recipients)
	o.finish(ctx, rep, err)
	return err
}

func (o *Orchestrator) processOne(ctx context.Context, rep *runtime.RunReport, path string, recipients []string) error {
	name := filepath.Base(path)
	cat, err := category.Classify(name)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRun, err)
	}
	b, err := o.processFile(ctx, housekeeping.ArchivedFile{Name: name, SourcePath: path, Category: cat})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRun, err)
	}
	rep.Add(b)
	return o.deliver(ctx, rep, recipients)
}

func (o *Orchestrator) shouldEmail(rep *runtime.RunReport) bool {
	if o.opts.ForceEmail {
		return true
	}
	// a dry run only mails on request
	if o.opts.DryRun {
		return false
	}
	return rep.ShouldEmail()
}

func (o *Orchestrator) deliver(ctx context.Context, rep *runtime.RunReport, recipients []string) error {
	if o.sender == nil {
		return fmt.Errorf("%w: no mailer configured", ErrDelivery)
	}
	msg, err := BuildMessage(rep, o.opts.Subject, o.now())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	msg.To = recipients

	if err := o.sender.Send(ctx, msg); err != nil {
		o.logger.Error("report email failed", map[string]any{"error": err.Error()})
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	rep.Emailed = true
	o.collector.IncEmailsSent()
	o.logger.Info("report emailed", map[string]any{"attachments": len(msg.Attachments)})
	return nil
}

// BuildMessage renders the summary body, one CSV per batch and a workbook
// with one sheet per batch.
func BuildMessage(rep *runtime.RunReport, subject string, now time.Time) (mailer.Message, error) {
	body, err := report.Summary(rep.Categories, now)
	if err != nil {
		return mailer.Message{}, err
	}
	msg := mailer.Message{Subject: subject, Body: body}

	for _, b := range rep.Batches {
		data, err := report.CSVBytes(b.Rows)
		if err != nil {
			return mailer.Message{}, err
		}
		msg.Attachments = append(msg.Attachments, mailer.Attachment{
			Name:        report.BatchCSVName(b),
			ContentType: mailer.ContentTypeCSV,
			Data:        data,
		})
	}
	if len(rep.Batches) > 0 {
		xlsx, err := report.WriteXLSX(rep.Batches)
		if err != nil {
			return mailer.Message{}, err
		}
		msg.Attachments = append(msg.Attachments, mailer.Attachment{
			Name:        WorkbookName,
			ContentType: mailer.ContentTypeXLSX,
			Data:        xlsx,
		})
	}
	return msg, nil
}

// Exit codes reported for a run.
const (
	ExitSuccess      = 0
	ExitConfigError  = 1
	ExitRunError     = 2
	ExitDeliveryFail = 3
)

// ExitCode maps a run error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, ErrDelivery):
		return ExitDeliveryFail
	default:
		return ExitRunError
	}
}

// finish stamps, archives and announces the run. Archiving and
// notification never change the outcome.
func (o *Orchestrator) finish(ctx context.Context, rep *runtime.RunReport, runErr error) {
	if runErr != nil {
		rep.Message = runErr.Error()
	}
	rep.Finish(o.collector.Snapshot(), ExitCode(runErr), o.now())

	if o.archiver != nil && len(rep.Batches) > 0 {
		if err := o.archiver.WriteRun(ctx, rep); err != nil {
			o.logger.Warn("archive run failed", map[string]any{"error": err.Error()})
		}
	}
	if o.notify != nil {
		o.notify(ctx, rep, runErr)
	}
}
