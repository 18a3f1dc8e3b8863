package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ersonp/pivot/internal/application/handlers"
)

func newEntitiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entities",
		Short: "Manage entities in a collection",
	}

	cmd.AddCommand(
		newEntitiesAddCmd(),
		newEntitiesListCmd(),
		newEntitiesShowCmd(),
		newEntitiesDeleteCmd(),
	)

	return cmd
}

func newEntitiesAddCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "add <collection> [id]",
		Short: "Create or rename an entity",
		Long: `Creates an entity in a collection, or renames it if it already exists.
Without an id a UUID is generated.

Examples:
  pivot entities add students A1 --name "Ada Lovelace"
  pivot entities add courses --name "Linear Algebra"`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := ""
			if len(args) > 1 {
				id = args[1]
			}
			return withDeps(ctx, func(d *Deps) error {
				e, err := d.EntityHandler.HandleSave(ctx, args[0], id, name)
				if err != nil {
					return fmt.Errorf("saving entity: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s/%s (%s)\n", e.Collection, e.ID, e.Name)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name (default: the id)")

	return cmd
}

func newEntitiesListCmd() *cobra.Command {
	var searchQuery string
	var limit int
	var offset int

	cmd := &cobra.Command{
		Use:   "list <collection>",
		Short: "List entities in a collection",
		Long: `Lists the entities of a collection. Use --search to filter by name.

Examples:
  pivot entities list courses
  pivot entities list courses --search "alg"
  pivot entities list courses --limit 20 --offset 40`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			return withDeps(ctx, func(d *Deps) error {
				var result *handlers.EntityListResult
				var err error
				if searchQuery != "" {
					result, err = d.EntityHandler.HandleSearch(ctx, args[0], searchQuery, limit)
				} else {
					result, err = d.EntityHandler.HandleList(ctx, args[0], limit, offset)
				}
				if err != nil {
					return fmt.Errorf("listing entities: %w", err)
				}

				if len(result.Entities) == 0 {
					fmt.Fprintln(out, "No entities found.")
					return nil
				}

				fmt.Fprintf(out, "Entities (%d total):\n\n", result.Total)
				for _, e := range result.Entities {
					fmt.Fprintf(out, "  %-38s %s\n", e.ID, e.Name)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&searchQuery, "search", "", "Search entities by name")
	cmd.Flags().IntVar(&limit, "limit", DefaultListLimit, "Maximum number of entities to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of entities to skip")

	return cmd
}

func newEntitiesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <collection> <id>",
		Short: "Show an entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withDeps(ctx, func(d *Deps) error {
				e, err := d.EntityHandler.HandleGet(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), e)
			})
		},
	}
}

func newEntitiesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <collection> <id>",
		Aliases: []string{"rm"},
		Short:   "Delete an entity",
		Long: `Deletes an entity. Associations referencing it are removed on pivots
with the cascade policy; a pivot with the restrict policy blocks the delete
while associations remain.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			return withDeps(ctx, func(d *Deps) error {
				res, err := d.EntityHandler.HandleDelete(ctx, args[0], args[1])
				if err != nil {
					return fmt.Errorf("deleting entity: %w", err)
				}
				fmt.Fprintf(out, "Deleted %s/%s\n", res.Collection, res.ID)

				pivots := make([]string, 0, len(res.Cascaded))
				for p := range res.Cascaded {
					pivots = append(pivots, p)
				}
				sort.Strings(pivots)
				for _, p := range pivots {
					fmt.Fprintf(out, "  %s: %d associations removed\n", p, res.Cascaded[p])
				}
				return nil
			})
		},
	}
}
