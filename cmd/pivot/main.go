// Package main provides the entry point for the pivot CLI application.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version   = "0.1.0-dev"
	globalDir string
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "pivot",
		Short:         "Many-to-many associations between entity collections",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&globalDir, "dir", "C", "", "Project directory holding .pivot (default: current directory)")

	rootCmd.AddCommand(
		newInitCmd(),
		newPivotsCmd(),
		newEntitiesCmd(),
		newLinkCmd(),
		newUnlinkCmd(),
		newSyncCmd(),
		newLinksCmd(),
		newHistoryCmd(),
		newImportCmd(),
		newExportCmd(),
		newServeCmd(),
	)

	return rootCmd
}

// baseDir returns the directory holding .pivot.
func baseDir() (string, error) {
	if globalDir != "" {
		return globalDir, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	return cwd, nil
}
