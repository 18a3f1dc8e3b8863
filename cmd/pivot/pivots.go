package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/pivot/internal/application/handlers"
	"github.com/ersonp/pivot/internal/infrastructure/config"
)

func newPivotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pivots",
		Short: "Manage pivots",
		RunE:  runPivotsList,
	}

	cmd.AddCommand(
		newPivotsListCmd(),
		newPivotsAddCmd(),
		newPivotsShowCmd(),
		newPivotsRemoveCmd(),
	)

	return cmd
}

func newPivotsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all pivots",
		RunE:  runPivotsList,
	}
}

func runPivotsList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	return withDeps(ctx, func(d *Deps) error {
		pivots, err := d.PivotHandler.HandleList(ctx)
		if err != nil {
			return fmt.Errorf("listing pivots: %w", err)
		}

		if len(pivots) == 0 {
			fmt.Fprintln(out, "No pivots defined.")
			fmt.Fprintln(out, "Use 'pivot pivots add NAME --left L --right R' to create one.")
			return nil
		}

		fmt.Fprintf(out, "%-20s %-15s %-15s %-10s %-10s %s\n", "NAME", "LEFT", "RIGHT", "ON DELETE", "DUPLICATE", "DESCRIPTION")
		fmt.Fprintf(out, "%-20s %-15s %-15s %-10s %-10s %s\n", "----", "----", "-----", "---------", "---------", "-----------")
		for _, p := range pivots {
			fmt.Fprintf(out, "%-20s %-15s %-15s %-10s %-10s %s\n",
				p.Name, p.LeftCollection, p.RightCollection, p.OnDelete, p.OnDuplicate, p.Description)
		}
		return nil
	})
}

func newPivotsAddCmd() *cobra.Command {
	var in handlers.PivotInput

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Create a pivot between two collections",
		Long: `Creates a pivot and records it in pivots.yaml.

Examples:
  pivot pivots add enrollments --left students --right courses
  pivot pivots add authorship --left authors --right books --on-delete restrict --on-duplicate reject`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Name = args[0]
			return runPivotsAdd(cmd, in)
		},
	}

	cmd.Flags().StringVar(&in.Left, "left", "", "Left collection (required)")
	cmd.Flags().StringVar(&in.Right, "right", "", "Right collection (required)")
	cmd.Flags().StringVar(&in.OnDelete, "on-delete", "cascade", "Delete policy (cascade, restrict)")
	cmd.Flags().StringVar(&in.OnDuplicate, "on-duplicate", "update", "Duplicate link policy (update, ignore, reject)")
	cmd.Flags().StringVarP(&in.Description, "description", "d", "", "Pivot description")
	_ = cmd.MarkFlagRequired("left")
	_ = cmd.MarkFlagRequired("right")

	return cmd
}

func runPivotsAdd(cmd *cobra.Command, in handlers.PivotInput) error {
	ctx := cmd.Context()

	return withDeps(ctx, func(d *Deps) error {
		p, err := d.PivotHandler.HandleCreate(ctx, in)
		if err != nil {
			return fmt.Errorf("creating pivot: %w", err)
		}

		d.Pivots.Add(p.Name, config.PivotEntry{
			Left:        p.LeftCollection,
			Right:       p.RightCollection,
			OnDelete:    string(p.OnDelete),
			OnDuplicate: string(p.OnDuplicate),
			Description: p.Description,
		})
		if err := d.Pivots.Save(d.BaseDir); err != nil {
			return fmt.Errorf("updating pivots file: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created pivot %s (%s -> %s)\n", p.Name, p.LeftCollection, p.RightCollection)
		return nil
	})
}

func newPivotsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Show a pivot and its association count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, func(d *Deps) error {
				p, err := d.PivotHandler.HandleGet(ctx, args[0])
				if err != nil {
					return err
				}
				res, err := d.AssociationHandler.HandleList(ctx, handlers.ListOptions{Pivot: p.Name, Limit: 1})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Name:         %s\n", p.Name)
				fmt.Fprintf(out, "Left:         %s\n", p.LeftCollection)
				fmt.Fprintf(out, "Right:        %s\n", p.RightCollection)
				fmt.Fprintf(out, "On delete:    %s\n", p.OnDelete)
				fmt.Fprintf(out, "On duplicate: %s\n", p.OnDuplicate)
				if p.Description != "" {
					fmt.Fprintf(out, "Description:  %s\n", p.Description)
				}
				fmt.Fprintf(out, "Associations: %d\n", res.Total)
				return nil
			})
		},
	}
}

func newPivotsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove NAME",
		Aliases: []string{"rm", "delete"},
		Short:   "Delete a pivot and all of its associations",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, func(d *Deps) error {
				removed, err := d.PivotHandler.HandleDelete(ctx, args[0])
				if err != nil {
					return fmt.Errorf("deleting pivot: %w", err)
				}
				d.Pivots.Remove(args[0])
				if err := d.Pivots.Save(d.BaseDir); err != nil {
					return fmt.Errorf("updating pivots file: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted pivot %s (%d associations removed)\n", args[0], removed)
				return nil
			})
		},
	}
}
