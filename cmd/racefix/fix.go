package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/metalagman/racefix/internal/agent"
	"github.com/metalagman/racefix/internal/candidate"
	"github.com/metalagman/racefix/internal/config"
	"github.com/metalagman/racefix/internal/db"
	"github.com/metalagman/racefix/internal/git"
	"github.com/metalagman/racefix/internal/model"
	"github.com/metalagman/racefix/internal/oracle"
	"github.com/metalagman/racefix/internal/patch"
	"github.com/metalagman/racefix/internal/reconcile"
	"github.com/metalagman/racefix/internal/run"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var errNoneFixed = errors.New("no failing tests were fixed")

func fixCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "fix [path]",
		Short: "Generate candidate fixes for failing tests and keep the ones that pass",
		Long: "Run the project's test suite, ask several generators in parallel for a fix to each failing test, " +
			"then apply the candidates one at a time and keep the first one the suite accepts. " +
			"Rejected candidates are reverted.",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			for key, flag := range map[string]string{
				"agents":       "agents",
				"max_attempts": "max-attempts",
				"framework":    "framework",
				"acceptance":   "acceptance",
			} {
				if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return fmt.Errorf("bind %s flag: %w", flag, err)
				}
			}
			root, err := projectRoot(args)
			if err != nil {
				return err
			}
			return runFix(cmd.Context(), cmd.OutOrStdout(), root, dryRun)
		},
	}
	cmd.Flags().IntP("agents", "n", config.DefaultAgents, "number of concurrent fix generators per attempt")
	cmd.Flags().Int("max-attempts", config.DefaultMaxAttempts, "maximum generate/verify rounds per failing test")
	cmd.Flags().StringP("framework", "f", config.FrameworkAuto, "test framework: auto, "+strings.Join(oracle.Names(), ", "))
	cmd.Flags().String("acceptance", config.AcceptanceLenient, "acceptance policy: lenient or strict")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "generate and show candidates without applying them")
	return cmd
}

func runFix(ctx context.Context, out io.Writer, root string, dryRun bool) error {
	if err := loadDotEnv(root); err != nil {
		return err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	fw, err := oracle.Resolve(root, oracle.Framework(cfg.Framework))
	if err != nil {
		return err
	}
	policy, err := run.ParsePolicy(cfg.Acceptance)
	if err != nil {
		return err
	}
	provider, err := config.ResolveProvider(cfg.Provider, os.Getenv)
	if err != nil {
		return err
	}

	lock, ok, err := run.TryAcquireLock(stateDir(root))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("another racefix run is active in %s", root)
	}
	defer func() { _ = lock.Release() }()

	storeDB, closeFn, err := openDB(root)
	if err != nil {
		return err
	}
	defer closeFn()
	store := db.NewStore(storeDB)
	if _, err := reconcile.Run(ctx, store); err != nil {
		return err
	}

	runID, err := run.NewRunID()
	if err != nil {
		return err
	}
	runRec := db.RunRecord{
		RunID:       runID,
		ProjectRoot: root,
		Framework:   string(fw),
		Provider:    provider.Type,
		Model:       provider.Model,
		Agents:      cfg.Agents,
		MaxAttempts: cfg.MaxAttempts,
		DryRun:      dryRun,
		RunDir:      filepath.Join(runsDir(root), runID),
	}
	if info, ok := git.Describe(ctx, root); ok {
		runRec.GitHead = info.Head
		runRec.GitDirty = info.Dirty
		if info.Dirty && !dryRun {
			log.Warn().Msg("working tree has uncommitted changes; accepted fixes are written in place")
		}
	}
	recorder, err := run.NewRecorder(ctx, store, runRec)
	if err != nil {
		return err
	}

	provider.WorkDir = filepath.Join(runRec.RunDir, "agents")
	gen, err := agent.NewGenerator(ctx, provider, nil)
	if err != nil {
		_ = recorder.Finish(ctx, model.RunReport{}, err)
		return err
	}

	log.Info().
		Str("run_id", runID).
		Str("project", root).
		Str("framework", string(fw)).
		Str("provider", provider.Type).
		Str("model", provider.Model).
		Int("agents", cfg.Agents).
		Int("max_attempts", cfg.MaxAttempts).
		Bool("dry_run", dryRun).
		Msg("starting run")

	console := newConsole(out, cfg.Agents, cfg.MaxAttempts)
	orch, err := run.NewOrchestrator(
		oracle.NewRunner(cfg.Oracle.Timeout, cfg.Oracle.Commands),
		oracle.ContextResolver{},
		candidate.NewSource(gen, cfg.Temperatures, provider.Timeout),
		patch.NewApplier(root),
		run.Observers{recorder, console},
		run.Options{
			Root:        root,
			Framework:   fw,
			Agents:      cfg.Agents,
			MaxAttempts: cfg.MaxAttempts,
			DryRun:      dryRun,
			Policy:      policy,
		},
	)
	if err != nil {
		return err
	}

	report, runErr := orch.Run(ctx)
	if err := recorder.Finish(ctx, report, runErr); err != nil {
		log.Warn().Err(err).Str("run_id", runID).Msg("record run result")
	}
	if errors.Is(runErr, run.ErrNoTestsParsed) {
		_, _ = fmt.Fprintln(out, report.InitialOutput)
		return runErr
	}

	console.summary(report, dryRun)
	if report.FixedCount > 0 && git.Available(ctx, root) {
		if stat, err := git.DiffStat(ctx, root); err == nil && stat != "" {
			_, _ = fmt.Fprintln(out, dimStyle.Render(stat))
		}
	}
	_, _ = fmt.Fprintln(out, dimStyle.Render("run "+runID+" recorded in "+runRec.RunDir))
	return exitError(report, runErr)
}

// exitError maps a finished run to the process outcome: success when nothing
// was failing or at least one test was fixed.
func exitError(report model.RunReport, runErr error) error {
	if runErr != nil {
		return runErr
	}
	if report.TotalFailing == 0 || report.FixedCount > 0 {
		return nil
	}
	return errNoneFixed
}
