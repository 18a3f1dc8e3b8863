package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/pivot/internal/application/handlers"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a new pivot store",
		Long:  "Creates a .pivot directory with default configuration, an empty pivots.yaml and the database schema.",
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	dir, err := baseDir()
	if err != nil {
		return err
	}

	result, err := handlers.NewInitHandler(openStore).Handle(cmd.Context(), dir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created %s\n", result.ConfigPath)
	fmt.Fprintf(out, "Created %s\n", result.PivotsPath)
	fmt.Fprintf(out, "Initialized %s store\n", result.Driver)
	return nil
}
