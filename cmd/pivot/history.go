package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ersonp/pivot/internal/application/handlers"
	"github.com/ersonp/pivot/internal/domain/entities"
)

func newHistoryCmd() *cobra.Command {
	var action string
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history [pivot left-id]",
		Short: "Show the audit log",
		Long: `Shows audit entries for one left entity of a pivot, or every entry of
an action type.

Examples:
  pivot history enrollments A1
  pivot history --action synchronize --limit 20`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := handlers.HistoryOptions{Action: action, Limit: limit}
			switch {
			case len(args) == 2:
				opts.Pivot, opts.LeftID = args[0], args[1]
			case action == "":
				return errors.New("give a pivot and left id, or --action")
			}

			ctx := cmd.Context()
			return withDeps(ctx, func(d *Deps) error {
				entries, err := d.AssociationHandler.HandleHistory(ctx, opts)
				if err != nil {
					return fmt.Errorf("reading history: %w", err)
				}
				out := cmd.OutOrStdout()
				if asJSON {
					return printJSON(out, entries)
				}
				if len(entries) == 0 {
					fmt.Fprintln(out, "No history found.")
					return nil
				}
				for _, e := range entries {
					fmt.Fprintln(out, formatAuditEntry(e))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&action, "action", "", "Filter by action (link, unlink, synchronize, delete_entity, delete_pivot, import)")
	cmd.Flags().IntVar(&limit, "limit", DefaultHistoryLimit, "Maximum number of entries")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the entries as JSON")

	return cmd
}

func formatAuditEntry(e entities.AuditEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %-14s %s", e.CreatedAt.Format("2006-01-02 15:04:05"), e.Action, e.Subject)
	if md := formatMetadata(e.Details); md != "" {
		b.WriteString("  ")
		b.WriteString(md)
	}
	return b.String()
}
