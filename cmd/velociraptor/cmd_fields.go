package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/go-velociraptor/registry"
)

type fieldRow struct {
	Accessor string `json:"accessor"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	Category string `json:"category"`
	Unit     string `json:"unit"`
	Rule     string `json:"rule"`
	Comoving bool   `json:"comoving"`
	Warnings int    `json:"warnings"`
}

func newFieldsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fields <catalogue>",
		Short: "List the classified fields of a catalogue with their units",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, _ := cmd.Flags().GetString("category")

			view, err := a.openCatalogue(args[0])
			if err != nil {
				return err
			}
			defer view.Close()

			var rows []fieldRow
			for _, f := range view.Fields() {
				if category != "" && string(f.Category) != category {
					continue
				}
				rows = append(rows, fieldRow{
					Accessor: f.Key(),
					Name:     f.Name,
					FullName: f.FullName,
					Category: string(f.Category),
					Unit:     f.Unit.String(),
					Rule:     f.Rule,
					Comoving: f.Comoving,
					Warnings: len(f.Warnings),
				})
			}

			if a.jsonOut {
				return a.encode(cmd.OutOrStdout(), map[string]any{
					"redshift": view.Cosmology().Redshift(),
					"rows":     view.Len(),
					"fields":   rows,
					"warnings": warningRows(view.Warnings()),
				})
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ACCESSOR\tNAME\tUNIT\tRULE\tWARNINGS")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Accessor, r.FullName, r.Unit, r.Rule, strconv.Itoa(r.Warnings))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			for _, w := range view.Warnings() {
				fmt.Fprintf(cmd.OutOrStdout(), "warning: %s\n", w.Error())
			}
			return nil
		},
	}
	cmd.Flags().String("category", "", "Only list fields of this category")
	return cmd
}

func warningRows(ws []registry.Warning) []map[string]string {
	out := make([]map[string]string, len(ws))
	for i, w := range ws {
		out[i] = map[string]string{"field": w.Field, "kind": w.Kind.String(), "detail": w.Detail}
	}
	return out
}
