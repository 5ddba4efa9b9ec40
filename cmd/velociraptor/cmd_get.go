package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/go-velociraptor/units"
)

func newGetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <catalogue> <category.field>",
		Short: "Summarize one catalogue field",
		Long: `Print the unit and summary statistics of one field. The field is named by
its accessor, for example masses.mass_200crit. Use --units to convert and
--values to print every value.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, _ := cmd.Flags().GetString("units")
			all, _ := cmd.Flags().GetBool("values")

			view, err := a.openCatalogue(args[0])
			if err != nil {
				return err
			}
			defer view.Close()

			arr, err := view.Get(args[1])
			if err != nil {
				return err
			}
			if to != "" {
				if arr, err = arr.ToSymbol(to); err != nil {
					return err
				}
			}

			s := arr.Summarize()
			out := cmd.OutOrStdout()
			if a.jsonOut {
				result := map[string]any{
					"field": args[1],
					"label": units.FullLabel(arr),
					"unit":  arr.Unit().String(),
					"count": s.Count,
					"min":   s.Min,
					"max":   s.Max,
					"mean":  s.Mean,
				}
				if all {
					result["values"] = arr.Values()
				}
				return a.encode(out, result)
			}

			fmt.Fprintf(out, "%s\n", units.FullLabel(arr))
			fmt.Fprintf(out, "  rows:  %d (%d finite)\n", arr.Len(), s.Count)
			if s.Count > 0 {
				fmt.Fprintf(out, "  min:   %g\n  max:   %g\n  mean:  %g\n", s.Min, s.Max, s.Mean)
			}
			if all {
				for i, v := range arr.Values() {
					fmt.Fprintf(out, "%d\t%g\n", i, v)
				}
			}
			return nil
		},
	}
	cmd.Flags().String("units", "", "Convert to these units, e.g. Msun")
	cmd.Flags().Bool("values", false, "Print every value")
	return cmd
}
