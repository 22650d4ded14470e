package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/metalagman/racefix/internal/config"
	"github.com/metalagman/racefix/internal/db"
	"github.com/metalagman/racefix/internal/run"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect and manage recorded runs",
	}
	cmd.PersistentFlags().StringP("project", "C", ".", "project directory")
	cmd.AddCommand(runsListCmd())
	cmd.AddCommand(runsShowCmd())
	cmd.AddCommand(runsPruneCmd())
	return cmd
}

func openProjectStore(cmd *cobra.Command) (*db.Store, string, func(), error) {
	dir, _ := cmd.Flags().GetString("project")
	root, err := projectRoot([]string{dir})
	if err != nil {
		return nil, "", func() {}, err
	}
	storeDB, closeFn, err := openDB(root)
	if err != nil {
		return nil, "", func() {}, err
	}
	return db.NewStore(storeDB), root, closeFn, nil
}

func runsListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:          "list",
		Short:        "List recorded runs, newest first",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, closeFn, err := openProjectStore(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			writeRunsTable(cmd.OutOrStdout(), runs)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to show (0 for all)")
	return cmd
}

func writeRunsTable(out io.Writer, runs []db.RunRecord) {
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(out, "no runs recorded")
		return
	}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		mode := ""
		if r.DryRun {
			mode = "dry-run"
		}
		rows = append(rows, []string{
			r.RunID,
			r.CreatedAt,
			r.Status,
			fmt.Sprintf("%d/%d", r.FixedCount, r.TotalFailing),
			r.Framework,
			r.Provider,
			mode,
		})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers("RUN", "CREATED", "STATUS", "FIXED", "FRAMEWORK", "PROVIDER", "MODE").
		Rows(rows...)
	_, _ = fmt.Fprintln(out, t.Render())
}

func runsShowCmd() *cobra.Command {
	var events bool
	cmd := &cobra.Command{
		Use:          "show <run-id>",
		Short:        "Show the outcome of one run",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, closeFn, err := openProjectStore(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			ctx := cmd.Context()
			r, ok, err := store.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("run %s not found", args[0])
			}
			tests, err := store.Tests(ctx, r.RunID)
			if err != nil {
				return err
			}
			var timeline []db.Event
			if events {
				if timeline, err = store.Events(ctx, r.RunID); err != nil {
					return err
				}
			}
			writeRunDetails(cmd.OutOrStdout(), r, tests, timeline)
			return nil
		},
	}
	cmd.Flags().BoolVar(&events, "events", false, "include the event timeline")
	return cmd
}

func writeRunDetails(out io.Writer, r db.RunRecord, tests []db.TestRecord, events []db.Event) {
	p := func(format string, args ...any) { _, _ = fmt.Fprintf(out, format, args...) }

	p("%s\n", titleStyle.Render("Run "+r.RunID))
	p("  status:     %s\n", r.Status)
	p("  project:    %s\n", r.ProjectRoot)
	p("  framework:  %s\n", r.Framework)
	p("  provider:   %s %s\n", r.Provider, r.Model)
	p("  agents:     %d, max attempts %d\n", r.Agents, r.MaxAttempts)
	p("  created:    %s\n", r.CreatedAt)
	if r.FinishedAt != "" {
		p("  finished:   %s\n", r.FinishedAt)
	}
	if r.GitHead != "" {
		dirty := ""
		if r.GitDirty {
			dirty = " (dirty)"
		}
		p("  git:        %s%s\n", r.GitHead, dirty)
	}
	p("  fixed:      %d/%d\n", r.FixedCount, r.TotalFailing)
	if r.StateSuspect {
		p("  %s\n", failStyle.Render("project state suspect: a revert failed or the run was interrupted"))
	}

	if len(tests) > 0 {
		rows := make([][]string, 0, len(tests))
		for _, t := range tests {
			producer := ""
			if t.FixedByProducer != nil {
				producer = strconv.Itoa(*t.FixedByProducer)
			}
			rows = append(rows, []string{t.Identifier, t.State, t.Reason, strconv.Itoa(t.Attempts), producer})
		}
		tbl := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(dimStyle).
			Headers("TEST", "STATE", "REASON", "ATTEMPTS", "PRODUCER").
			Rows(rows...)
		p("%s\n", tbl.Render())
	}

	for _, ev := range events {
		p("%s %s %s\n", dimStyle.Render(ev.TS), ev.Type, ev.Message)
	}
}

func runsPruneCmd() *cobra.Command {
	var keepLast int
	var keepDays int
	var dryRun bool
	var all bool
	cmd := &cobra.Command{
		Use:          "prune",
		Short:        "Prune old runs from disk and database",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, root, closeFn, err := openProjectStore(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			lock, ok, err := run.TryAcquireLock(stateDir(root))
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("a racefix run is active in %s", root)
			}
			defer func() { _ = lock.Release() }()

			if all {
				n, err := run.Purge(cmd.Context(), store, runsDir(root))
				if err != nil {
					return fmt.Errorf("purge failed: %w", err)
				}
				log.Info().Msgf("purged %d runs", n)
				return nil
			}

			policy := config.RetentionPolicy{KeepLast: keepLast, KeepDays: keepDays}
			if policy.KeepLast <= 0 && policy.KeepDays <= 0 {
				cfg, err := loadConfig(root)
				if err != nil {
					return err
				}
				policy = cfg.Retention
			}
			if policy.KeepLast <= 0 && policy.KeepDays <= 0 {
				return fmt.Errorf("set --keep-last or --keep-days (or configure retention in %s)", defaultConfigPath)
			}

			res, err := run.PruneRuns(cmd.Context(), store, runsDir(root), policy, dryRun)
			if err != nil {
				return err
			}
			mode := "deleted"
			if dryRun {
				mode = "would delete"
			}
			log.Info().Msgf("%s %d runs (kept %d, skipped %d)", mode, res.Deleted, res.Kept, res.Skipped)
			return nil
		},
	}
	cmd.Flags().IntVar(&keepLast, "keep-last", 0, "keep the newest N runs")
	cmd.Flags().IntVar(&keepDays, "keep-days", 0, "keep runs newer than N days")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be pruned without deleting")
	cmd.Flags().BoolVar(&all, "all", false, "remove every finished run")
	return cmd
}
