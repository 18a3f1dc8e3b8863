package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ersonp/pivot/internal/application/handlers"
)

type syncFlags struct {
	meta    []string
	ifMatch string
	json    bool
}

func newSyncCmd() *cobra.Command {
	var flags syncFlags

	cmd := &cobra.Command{
		Use:   "sync <pivot> <left-id> [right-id...]",
		Short: "Make a left entity's associations exactly the given set",
		Long: `Replaces the right-side set of a left entity in one transaction:
missing pairs are added, pairs not listed are removed. With no right IDs
every association of the left entity is removed.

Examples:
  pivot sync enrollments A1 B101 B103
  pivot sync enrollments A1 B101 --meta term=fall
  pivot sync enrollments A1 B102 --if-match 5f1c0e0a9d3b2c41`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, args, flags)
		},
	}

	cmd.Flags().StringArrayVarP(&flags.meta, "meta", "m", nil, "Metadata for newly added pairs as key=value (repeatable)")
	cmd.Flags().StringVar(&flags.ifMatch, "if-match", "", "Only apply if the current set has this fingerprint")
	cmd.Flags().BoolVar(&flags.json, "json", false, "Print the result as JSON")

	return cmd
}

func runSync(cmd *cobra.Command, args []string, flags syncFlags) error {
	metadata, err := ParseMetadataPairs(flags.meta)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	return withDeps(ctx, func(d *Deps) error {
		res, err := d.AssociationHandler.HandleSync(ctx, handlers.SyncInput{
			Pivot:    args[0],
			LeftID:   args[1],
			RightIDs: args[2:],
			Metadata: metadata,
			IfMatch:  flags.ifMatch,
		})
		if err != nil {
			return fmt.Errorf("synchronizing: %w", err)
		}

		out := cmd.OutOrStdout()
		if flags.json {
			return printJSON(out, res)
		}
		if !res.Changed() {
			fmt.Fprintf(out, "%s/%s already in sync\n", res.Pivot, res.LeftID)
		} else {
			fmt.Fprintf(out, "Synchronized %s/%s: %d added, %d removed\n", res.Pivot, res.LeftID, len(res.ToAdd), len(res.ToRemove))
			if len(res.ToAdd) > 0 {
				fmt.Fprintf(out, "  + %s\n", strings.Join(res.ToAdd, ", "))
			}
			if len(res.ToRemove) > 0 {
				fmt.Fprintf(out, "  - %s\n", strings.Join(res.ToRemove, ", "))
			}
		}
		fmt.Fprintf(out, "Fingerprint: %s\n", res.Fingerprint)
		return nil
	})
}
