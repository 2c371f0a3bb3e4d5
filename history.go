package main

import (
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"scr-lifecycle-policy/internal/config"
	"scr-lifecycle-policy/internal/database"
	"scr-lifecycle-policy/internal/models"
)

func newHistoryCmd(cfg *config.Config) *cobra.Command {
	var (
		limit int
		runID string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past retention runs recorded with --history-db",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.HistoryDB == "" {
				return withExitCode(exitInvalidConfig, errors.New("--history-db is required"))
			}
			db, err := database.New(cfg.HistoryDB)
			if err != nil {
				return withExitCode(exitHistory, err)
			}
			defer db.Close()

			if runID != "" {
				entries, err := db.ListRunEntries(runID)
				if err != nil {
					return withExitCode(exitHistory, err)
				}
				return printEntries(cmd.OutOrStdout(), entries)
			}

			runs, err := db.ListRuns(cfg.ImageID, limit)
			if err != nil {
				return withExitCode(exitHistory, err)
			}
			return printRuns(cmd.OutOrStdout(), runs)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.HistoryDB, "history-db", cfg.HistoryDB, "SQLite file the runs were recorded in [$SCR_HISTORY_DB]")
	f.StringVar(&cfg.ImageID, "image-id", cfg.ImageID, "Only show runs for this image [$SCR_IMAGE_ID]")
	f.IntVar(&limit, "limit", 20, "Maximum number of runs to show")
	f.StringVar(&runID, "run", "", "Show the per-tag entries of this run instead")

	return cmd
}

func printRuns(w io.Writer, runs []models.Run) error {
	table := tablewriter.NewWriter(w)
	table.Header("RUN", "IMAGE", "REGION", "GRACE", "MODE", "STARTED", "TAGS", "ELIGIBLE", "DELETED", "FAILED")

	for _, r := range runs {
		mode := "enforce"
		if r.DryRun {
			mode = "dry-run"
		}
		if r.Interrupted {
			mode += " (interrupted)"
		}
		if err := table.Append([]string{
			r.ID,
			r.ImageID,
			r.Region,
			r.Grace,
			mode,
			r.StartedAt.UTC().Format(time.RFC3339),
			strconv.Itoa(r.TagsTotal),
			strconv.Itoa(r.Eligible),
			strconv.Itoa(r.Deleted),
			strconv.Itoa(r.Failed),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

func printEntries(w io.Writer, entries []models.RetentionLog) error {
	table := tablewriter.NewWriter(w)
	table.Header("TAG ID", "NAME", "STATUS", "UPDATED", "ACTION", "REASON")

	for _, e := range entries {
		updated := ""
		if !e.UpdatedAt.IsZero() {
			updated = e.UpdatedAt.UTC().Format(time.RFC3339)
		}
		if err := table.Append([]string{e.TagID, e.TagName, e.Status, updated, e.Action, e.Reason}); err != nil {
			return err
		}
	}
	return table.Render()
}
