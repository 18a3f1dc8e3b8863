package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/pivot/internal/application/handlers"
)

type linksFlags struct {
	left   string
	right  string
	limit  int
	offset int
	json   bool
}

func newLinksCmd() *cobra.Command {
	var flags linksFlags

	cmd := &cobra.Command{
		Use:   "links <pivot>",
		Short: "List associations of a pivot",
		Long: `Lists associations of a pivot, either for one left entity, for one
right entity, or the whole pivot page by page.

Examples:
  pivot links enrollments --left A1
  pivot links enrollments --right B101
  pivot links enrollments --limit 100 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLinks(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringVar(&flags.left, "left", "", "Only associations of this left entity")
	cmd.Flags().StringVar(&flags.right, "right", "", "Only associations of this right entity")
	cmd.Flags().IntVar(&flags.limit, "limit", DefaultListLimit, "Maximum number of associations when listing the whole pivot")
	cmd.Flags().IntVar(&flags.offset, "offset", 0, "Number of associations to skip when listing the whole pivot")
	cmd.Flags().BoolVar(&flags.json, "json", false, "Print the result as JSON")

	return cmd
}

func runLinks(cmd *cobra.Command, pivot string, flags linksFlags) error {
	if flags.left != "" && flags.right != "" {
		return errors.New("use either --left or --right, not both")
	}

	ctx := cmd.Context()
	return withDeps(ctx, func(d *Deps) error {
		res, err := d.AssociationHandler.HandleList(ctx, handlers.ListOptions{
			Pivot:   pivot,
			LeftID:  flags.left,
			RightID: flags.right,
			Limit:   flags.limit,
			Offset:  flags.offset,
		})
		if err != nil {
			return fmt.Errorf("listing associations: %w", err)
		}

		out := cmd.OutOrStdout()
		if flags.json {
			return printJSON(out, res)
		}
		if len(res.Associations) == 0 {
			fmt.Fprintln(out, "No associations found.")
			return nil
		}

		fmt.Fprintf(out, "%s (%d total):\n", pivot, res.Total)
		for _, a := range res.Associations {
			line := fmt.Sprintf("  %s -> %s", a.LeftID, a.RightID)
			if md := formatMetadata(a.Metadata); md != "" {
				line += "  [" + md + "]"
			}
			fmt.Fprintln(out, line)
		}
		if res.Fingerprint != "" {
			fmt.Fprintf(out, "Fingerprint: %s\n", res.Fingerprint)
		}
		return nil
	})
}
