package main

import (
	"context"
	"fmt"
	"os"

	"github.com/metalagman/racefix/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	debug   bool
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "racefix",
		Short: "racefix generates candidate fixes for failing tests and keeps the ones the suite accepts",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Init(debug)
		},
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default <project>/"+defaultConfigPath+")")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.AddCommand(fixCmd())
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(runsCmd())
	return rootCmd
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	rootCmd := newRootCmd()
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		return fmt.Errorf("bind config flag: %w", err)
	}
	return rootCmd.ExecuteContext(ctx)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
}
