package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/pivot/internal/application/handlers"
	"github.com/ersonp/pivot/internal/domain/services"
)

type importFlags struct {
	format        string
	pivot         string
	dryRun        bool
	onConflict    string
	createMissing bool
}

func newImportCmd() *cobra.Command {
	var flags importFlags

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import links from JSON or CSV",
		Long: `Imports links from a structured file in one transaction. Rows that fail
validation are reported and skipped; the rest are applied.

CSV files need left and right columns; a pivot column is optional when
--pivot is given. Other columns become pivot metadata.

Examples:
  pivot import enrollments.csv --pivot enrollments
  pivot import links.json --dry-run
  pivot import links.csv --on-conflict overwrite --create-missing`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.format, "format", "f", "auto", "File format (json, csv, auto)")
	cmd.Flags().StringVarP(&flags.pivot, "pivot", "p", "", "Pivot for rows that name none")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Validate without saving")
	cmd.Flags().StringVar(&flags.onConflict, "on-conflict", "skip", "Already linked pairs (skip, overwrite)")
	cmd.Flags().BoolVar(&flags.createMissing, "create-missing", false, "Create entities that do not exist yet")

	return cmd
}

func runImport(cmd *cobra.Command, filePath string, flags importFlags) error {
	strategy, err := services.ParseConflictStrategy(flags.onConflict)
	if err != nil {
		return fmt.Errorf("invalid --on-conflict value: %w", err)
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	return withDeps(ctx, func(d *Deps) error {
		opts := handlers.ImportOptions{
			Format:        flags.format,
			Pivot:         flags.pivot,
			DryRun:        flags.dryRun,
			OnConflict:    strategy,
			CreateMissing: flags.createMissing,
		}

		fmt.Fprintf(out, "Importing %s...\n", filePath)

		result, err := d.ImportHandler.Handle(ctx, filePath, opts)
		if err != nil {
			return fmt.Errorf("importing file: %w", err)
		}

		// Display errors
		if len(result.Errors) > 0 {
			fmt.Fprintf(out, "\nValidation errors (%d):\n", len(result.Errors))
			for _, e := range result.Errors {
				fmt.Fprintf(out, "  %s\n", e.Error())
			}
		}

		// Display summary
		fmt.Fprintln(out)
		if flags.dryRun {
			fmt.Fprintf(out, "Dry run: %d links would be imported", result.Imported)
		} else {
			fmt.Fprintf(out, "Imported: %d links", result.Imported)
		}
		if result.Updated > 0 {
			fmt.Fprintf(out, ", %d updated", result.Updated)
		}
		if result.Skipped > 0 {
			fmt.Fprintf(out, ", %d skipped (already linked)", result.Skipped)
		}
		if result.Created > 0 {
			fmt.Fprintf(out, ", %d entities created", result.Created)
		}
		if len(result.Errors) > 0 {
			fmt.Fprintf(out, ", %d errors", len(result.Errors))
		}
		fmt.Fprintln(out)

		return nil
	})
}
