package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ORAITApps/attachment-migrator/internal/config"
	"github.com/ORAITApps/attachment-migrator/internal/filestructure"
	"github.com/ORAITApps/attachment-migrator/internal/gui"
	"github.com/ORAITApps/attachment-migrator/internal/logger"
	"github.com/ORAITApps/attachment-migrator/internal/metrics"
	"github.com/ORAITApps/attachment-migrator/internal/processor"
	"github.com/ORAITApps/attachment-migrator/internal/report"
	"github.com/ORAITApps/attachment-migrator/internal/salesforce"
)

const (
	applicationName      = "sf-attachment-migrator"
	applicationShort     = "Copy parent records and their Attachments between Salesforce orgs"
	applicationLong      = "sf-attachment-migrator re-creates the records selected by a SOQL query in a target org, then copies their Attachments with ParentId remapped to the new records."
	reportFilePermission = 0o644
)

// Application wires the cobra root command to the migrator.
type Application struct {
	rootCommand *cobra.Command
	logger      *zap.Logger
	configPath  string

	// connector overrides the Salesforce connector; tests point it at fakes.
	connector processor.Connector
	openURL   func(url string) error
	stdout    io.Writer
	// logTee, when set, receives every entry alongside the configured logger.
	logTee zapcore.Core
}

func NewApplication() *Application {
	application := &Application{
		logger:  zap.NewNop(),
		openURL: browser.OpenURL,
		stdout:  os.Stdout,
	}

	cmd := &cobra.Command{
		Use:           applicationName,
		Short:         applicationShort,
		Long:          applicationLong,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.run(command)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&application.configPath, "config", "", "Optional path to a YAML configuration file.")
	flags.String("log-level", "", "Override the configured log level (debug, info, warn, error).")
	flags.String("log-format", "", "Override the configured log format (console or structured).")
	flags.String("api-version", "", "REST API version used against both orgs.")
	flags.String("parent-query", "", "SOQL selecting the parent records to re-create.")
	flags.String("attachment-query", "", "SOQL selecting the attachments to copy. Defaults to the attachments of every created parent.")
	flags.String("parent-type", "", "Object type for parent rows that carry no attributes.")
	flags.Int("workers", 1, "Number of attachments transferred concurrently.")
	flags.Float64("rate", 0, "Maximum requests per second per org (0 disables the limit).")
	flags.String("save-dir", "", "Also write every fetched attachment body under this directory.")
	flags.String("report", "", "Write the run report to this file.")
	flags.String("report-format", "json", "Report format (json or yaml).")
	flags.String("metrics-file", "", "Write Prometheus metrics in textfile format to this path.")
	flags.Bool("gui", false, "Show a progress window instead of console output.")
	flags.Bool("open", false, "Open the first migrated parent in a browser when done.")

	application.rootCommand = cmd
	return application
}

// Execute runs the root command until it finishes or the process is interrupted.
func (application *Application) Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := application.rootCommand.ExecuteContext(ctx)
	if syncErr := application.flushLogger(); syncErr != nil && err == nil {
		return fmt.Errorf("unable to flush logger: %w", syncErr)
	}
	return err
}

// Execute builds the default application and runs it.
func Execute() error {
	return NewApplication().Execute()
}

func (application *Application) run(command *cobra.Command) error {
	cfg, err := config.Load(application.configPath, command.Flags())
	if err != nil {
		return fmt.Errorf("unable to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(logger.Level(cfg.Log.Level), logger.Format(cfg.Log.Format))
	if err != nil {
		return fmt.Errorf("unable to create logger: %w", err)
	}
	if application.logTee != nil {
		log = log.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, application.logTee)
		}))
	}
	application.logger = log
	log.Debug("configuration loaded",
		zap.String("config_file", application.configPath),
		zap.String("api_version", cfg.APIVersion),
		zap.Int("workers", cfg.Workers))

	m, err := application.newMigrator(cfg, log)
	if err != nil {
		return err
	}

	if cfg.GUI {
		return application.runWithWindow(command.Context(), cfg, m)
	}

	m.Reporter = processor.LogReporter{Logger: log}
	rep, runErr := m.Run(command.Context())
	url, finishErr := application.finish(cfg, m, rep)
	if runErr != nil {
		return runErr
	}
	if finishErr != nil {
		return finishErr
	}
	if cfg.Open && url != "" {
		_ = application.openInBrowser(url)
	}
	return nil
}

func (application *Application) newMigrator(cfg *config.Config, log *zap.Logger) (*processor.Migrator, error) {
	runMetrics := metrics.New()

	connector := application.connector
	if connector == nil {
		httpClient := &http.Client{Timeout: cfg.RequestTimeout}
		connector = processor.SalesforceConnector(httpClient,
			salesforce.WithAPIVersion(cfg.APIVersion),
			salesforce.WithRateLimit(cfg.RequestsPerSecond, cfg.Workers),
			salesforce.WithObserver(runMetrics.ObserveRequest),
		)
	}

	m := &processor.Migrator{
		Connect: connector,
		Source:  cfg.Source,
		Target:  cfg.Target,
		Plan:    cfg.Migration,
		Workers: cfg.Workers,
		Logger:  log,
		Metrics: runMetrics,
	}

	if cfg.SaveDir != "" {
		store, err := filestructure.NewStore(cfg.SaveDir)
		if err != nil {
			return nil, fmt.Errorf("unable to prepare save directory: %w", err)
		}
		m.Store = store
	}
	return m, nil
}

// runWithWindow drives the migration from a goroutine while the window owns the main
// goroutine. Closing the window cancels a run still in progress.
func (application *Application) runWithWindow(ctx context.Context, cfg *config.Config, m *processor.Migrator) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	window := gui.New()
	m.Reporter = window

	var runErr error
	done := make(chan struct{})
	go func() {
		defer close(done)

		rep, err := m.Run(ctx)
		url, finishErr := application.finish(cfg, m, rep)
		runErr = errors.Join(err, finishErr)
		if runErr != nil {
			window.Log("Migration failed: %v", runErr)
			window.ShowError("Migration Error", runErr)
			return
		}
		if url != "" {
			window.EnableOpen(url, application.openURL)
			if cfg.Open {
				if err := application.openInBrowser(url); err != nil {
					window.Log("Failed to open browser: %v", err)
				}
			}
		}
	}()

	window.Show()
	cancel()
	<-done
	return runErr
}

// finish persists the report and metrics and prints the summary. It returns the
// record URL of the first created parent, if any.
func (application *Application) finish(cfg *config.Config, m *processor.Migrator, rep *report.Report) (string, error) {
	var errs []error
	if cfg.MetricsFile != "" {
		if err := m.Metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			errs = append(errs, fmt.Errorf("unable to write metrics: %w", err))
		}
	}
	if rep == nil {
		return "", errors.Join(errs...)
	}

	if cfg.Report.Path != "" {
		path, err := writeReport(cfg.Report.Path, cfg.Report.Format, rep)
		if err != nil {
			errs = append(errs, err)
		} else {
			application.logger.Info("report written", zap.String("path", path))
		}
	}
	if store, ok := m.Store.(*filestructure.Store); ok {
		files, err := store.Walk()
		if err != nil {
			errs = append(errs, fmt.Errorf("unable to list saved attachments: %w", err))
		} else {
			application.logger.Info("attachments saved locally",
				zap.String("dir", store.Root()),
				zap.Int("saved_files", len(files)))
		}
	}
	if !cfg.GUI {
		if err := report.RenderSummary(application.stdout, rep); err != nil {
			errs = append(errs, err)
		}
	}

	url := ""
	if first, ok := rep.FirstCreatedParent(); ok {
		url = recordURL(rep.TargetInstanceURL, first.ObjectType, first.TargetID)
	}
	return url, errors.Join(errs...)
}

// writeReport exports rep to path, adding the format's extension when path has none.
func writeReport(path, format string, rep *report.Report) (string, error) {
	exporter, err := report.NewExporter(format)
	if err != nil {
		return "", err
	}
	if filepath.Ext(path) == "" {
		path += "." + exporter.Extension()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("unable to create report directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, reportFilePermission)
	if err != nil {
		return "", fmt.Errorf("unable to create report: %w", err)
	}
	if err := exporter.Export(rep, f); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("unable to write report: %w", err)
	}
	return path, f.Close()
}

// openInBrowser opens url, logging a failure at warn level.
func (application *Application) openInBrowser(url string) error {
	err := application.openURL(url)
	if err != nil {
		application.logger.Warn("failed to open browser", zap.String("url", url), zap.Error(err))
	}
	return err
}

func recordURL(instanceURL, objectType, id string) string {
	return fmt.Sprintf("%s/lightning/r/%s/%s/view", instanceURL, objectType, id)
}

func (application *Application) flushLogger() error {
	if application.logger == nil {
		return nil
	}

	err := application.logger.Sync()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, syscall.ENOTSUP), errors.Is(err, syscall.EINVAL), errors.Is(err, syscall.ENOTTY):
		return nil
	default:
		return err
	}
}
