package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"scr-lifecycle-policy/internal/config"
	"scr-lifecycle-policy/internal/database"
	"scr-lifecycle-policy/internal/grace"
	"scr-lifecycle-policy/internal/logging"
	"scr-lifecycle-policy/internal/registry"
	"scr-lifecycle-policy/internal/retention"
)

// Process exit codes
const (
	exitOK                 = 0
	exitInvalidConfig      = 1
	exitCatalogUnavailable = 2
	exitHistory            = 3
	exitInterrupted        = 4
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	// cobra flag parsing and usage errors
	return exitInvalidConfig
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCode(err)
	}
	return exitOK
}

func newRootCmd() *cobra.Command {
	cfg := config.Defaults()

	cmd := &cobra.Command{
		Use:   "scr-lifecycle-policy",
		Short: "Delete the Docker tags of a Scaleway registry image that were not updated for a while",
		Long: `scr-lifecycle-policy deletes the Docker tags of one Scaleway Container Registry
image that have not been updated within the grace period.

It runs in dry-run mode unless --dry-run no is given.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPolicy(cmd.Context(), cfg, cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.Token, "token", cfg.Token, "Scaleway token [$SCR_TOKEN]")
	f.StringVar(&cfg.ImageID, "image-id", cfg.ImageID, "The unique ID of the Image [$SCR_IMAGE_ID]")
	f.StringVar(&cfg.Grace, "grace", cfg.Grace, `Relative duration in which to ignore references, like "30d", "1h", "30m" or "30s". Refs newer than the duration will not be deleted [$SCR_GRACE]`)
	f.StringVar(&cfg.DryRun, "dry-run", cfg.DryRun, "Dry run mode, yes or no [$SCR_DRY_RUN]")
	f.StringVar(&cfg.Region, "region", cfg.Region, "The region to target: fr-par, nl-ams or pl-waw [$SCR_REGION]")
	f.StringVar(&cfg.APIURL, "api-url", cfg.APIURL, "Base URL of the registry API [$SCR_API_URL]")
	f.IntVar(&cfg.MaxPages, "max-pages", cfg.MaxPages, "Maximum number of tag pages to request [$SCR_MAX_PAGES]")
	f.IntVar(&cfg.PageSize, "page-size", cfg.PageSize, "Number of tags requested per page [$SCR_PAGE_SIZE]")
	f.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Timeout of each registry API call [$SCR_TIMEOUT]")
	f.StringVar(&cfg.HistoryDB, "history-db", cfg.HistoryDB, "Record the run in this SQLite file, disabled when empty [$SCR_HISTORY_DB]")

	pf := cmd.PersistentFlags()
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error [$LOG_LEVEL]")
	pf.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text or json [$LOG_FORMAT]")

	cmd.AddCommand(newHistoryCmd(&cfg))
	return cmd
}

func runPolicy(ctx context.Context, cfg config.Config, logOut io.Writer) error {
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: logOut})
	if err != nil {
		return withExitCode(exitInvalidConfig, err)
	}

	policy, err := cfg.Validate()
	if err != nil {
		logGraceError(logger, err)
		return withExitCode(exitInvalidConfig, err)
	}

	runner := &retention.Runner{
		Registry: registry.NewClient(registry.Options{
			BaseURL:   cfg.APIURL,
			Token:     cfg.Token,
			Region:    policy.Region,
			PageSize:  cfg.PageSize,
			Timeout:   cfg.Timeout,
			UserAgent: "scr-lifecycle-policy",
		}),
		Log: logger,
	}

	if cfg.HistoryDB != "" {
		db, err := database.New(cfg.HistoryDB)
		if err != nil {
			return withExitCode(exitHistory, err)
		}
		defer db.Close()
		runner.Recorder = db
	}

	logger.WithFields(logrus.Fields{
		"image_id": policy.ImageID,
		"region":   policy.Region,
		"grace":    policy.Grace.String(),
		"dry_run":  policy.DryRun,
	}).Debug("Starting retention run")

	_, err = runner.Run(ctx, policy)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, retention.ErrInterrupted):
		return withExitCode(exitInterrupted, err)
	case errors.Is(err, retention.ErrCatalogUnavailable):
		return withExitCode(exitCatalogUnavailable, err)
	case errors.Is(err, retention.ErrRecordRun):
		return withExitCode(exitHistory, err)
	}
	return err
}

func logGraceError(logger logrus.FieldLogger, err error) {
	var unitErr *grace.UnsupportedUnitError
	if errors.As(err, &unitErr) {
		logger.Error("This unit of time is not supported. This value is specified as a time duration value like 30d, 1h, 30m or 30s.")
		return
	}
	logger.WithError(err).Error("Invalid configuration")
}
