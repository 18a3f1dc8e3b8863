package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

type exportFlags struct {
	format string
	output string
	limit  int
}

func newExportCmd() *cobra.Command {
	var flags exportFlags

	cmd := &cobra.Command{
		Use:   "export <pivot>",
		Short: "Export a pivot's associations to file",
		Long:  "Exports a pivot's associations to JSON, CSV, or markdown format. CSV output can be imported again.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.format, "format", "f", "json", "Output format (json, csv, markdown)")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().IntVarP(&flags.limit, "limit", "l", DefaultExportLimit, "Maximum number of associations to export (0 for all)")

	return cmd
}

func runExport(cmd *cobra.Command, pivot string, flags exportFlags) error {
	if !contains(validFormats, flags.format) {
		return fmt.Errorf("invalid format %q, valid formats: %v", flags.format, validFormats)
	}

	ctx := cmd.Context()

	return withDeps(ctx, func(d *Deps) error {
		w, closeFn, err := openOutput(cmd.OutOrStdout(), flags.output)
		if err != nil {
			return err
		}

		n, err := d.ExportHandler.Handle(ctx, w, pivot, flags.format, flags.limit)
		if cerr := closeFn(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("exporting %s: %w", pivot, err)
		}

		if flags.output != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d associations to %s\n", n, flags.output)
		}
		return nil
	})
}

// openOutput returns the file named by path, or stdout when path is empty.
func openOutput(stdout io.Writer, path string) (io.Writer, func() error, error) {
	if path == "" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return f, f.Close, nil
}
