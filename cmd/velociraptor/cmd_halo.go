package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/go-velociraptor/particles"
)

func newHaloCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "halo <catalogue> <id>",
		Short: "Print the bound and unbound particles of a halo",
		Long: `Resolve the particles of halo <id>, its 0-based row in the catalogue,
from the catalog_groups and catalog_particles files next to the
properties file.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			showIDs, _ := cmd.Flags().GetBool("ids")
			id, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("halo id %q: %w", args[1], err)
			}

			view, err := a.openCatalogue(args[0])
			if err != nil {
				return err
			}
			defer view.Close()

			files, err := particles.FileSetFromCatalogue(args[0])
			if err != nil {
				return err
			}
			res, err := particles.Load(files, particles.WithLogger(a.logger))
			if err != nil {
				return err
			}
			defer res.Close()

			bound, unbound, err := res.ExtractHalo(view, id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.jsonOut {
				result := map[string]any{
					"halo":    id,
					"bound":   bound.Len(),
					"unbound": unbound.Len(),
				}
				if bound.Halo.Known {
					result["mass_200crit"] = bound.Halo.Mass200Crit.String()
					result["radius"] = bound.Halo.Radius.String()
				}
				if showIDs {
					result["bound_ids"] = bound.IDs
					result["unbound_ids"] = unbound.IDs
				}
				return a.encode(out, result)
			}

			fmt.Fprintf(out, "halo %d: %d bound, %d unbound\n", id, bound.Len(), unbound.Len())
			if bound.Halo.Known {
				c := bound.Halo.Centre
				fmt.Fprintf(out, "  centre: (%s, %s, %s)\n", c[0], c[1], c[2])
				fmt.Fprintf(out, "  radius: %s\n  mass:   %s\n", bound.Halo.Radius, bound.Halo.Mass200Crit)
			}
			if showIDs {
				fmt.Fprintf(out, "  bound ids:   %v\n  unbound ids: %v\n", bound.IDs, unbound.IDs)
			}
			return nil
		},
	}
	cmd.Flags().Bool("ids", false, "Print the particle ids")
	return cmd
}
