package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/pivot/internal/application/handlers"
)

func newLinkCmd() *cobra.Command {
	var meta []string

	cmd := &cobra.Command{
		Use:   "link <pivot> <left-id> <right-id>",
		Short: "Link two entities through a pivot",
		Long: `Creates an association between a left and a right entity.
Linking an existing pair follows the pivot's duplicate policy.

Examples:
  pivot link enrollments A1 B101
  pivot link enrollments A1 B101 --meta grade=A --meta credits=4`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLink(cmd, args, meta)
		},
	}

	cmd.Flags().StringArrayVarP(&meta, "meta", "m", nil, "Pivot metadata as key=value (repeatable)")

	return cmd
}

func runLink(cmd *cobra.Command, args []string, meta []string) error {
	metadata, err := ParseMetadataPairs(meta)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	return withDeps(ctx, func(d *Deps) error {
		res, err := d.AssociationHandler.HandleLink(ctx, handlers.LinkInput{
			Pivot:    args[0],
			LeftID:   args[1],
			RightID:  args[2],
			Metadata: metadata,
		})
		if err != nil {
			return fmt.Errorf("linking: %w", err)
		}

		out := cmd.OutOrStdout()
		switch {
		case res.Created:
			fmt.Fprintf(out, "Linked %s -> %s in %s\n", args[1], args[2], args[0])
		case res.Updated:
			fmt.Fprintf(out, "Updated %s -> %s in %s\n", args[1], args[2], args[0])
		default:
			fmt.Fprintf(out, "Already linked %s -> %s in %s\n", args[1], args[2], args[0])
		}
		if md := formatMetadata(res.Association.Metadata); md != "" {
			fmt.Fprintf(out, "  %s\n", md)
		}
		return nil
	})
}

func newUnlinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlink <pivot> <left-id> <right-id>",
		Short: "Remove the association between two entities",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, func(d *Deps) error {
				removed, err := d.AssociationHandler.HandleUnlink(ctx, args[0], args[1], args[2])
				if err != nil {
					return fmt.Errorf("unlinking: %w", err)
				}
				if removed {
					fmt.Fprintf(cmd.OutOrStdout(), "Unlinked %s -> %s in %s\n", args[1], args[2], args[0])
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Not linked: %s -> %s in %s\n", args[1], args[2], args[0])
				}
				return nil
			})
		},
	}
}
