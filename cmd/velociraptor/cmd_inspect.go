package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/go-velociraptor/hdf5"
)

func newInspectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print the group and dataset tree of an HDF5 file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			withAttrs, _ := cmd.Flags().GetBool("attrs")
			f, err := hdf5.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening %s: %w", args[0], err)
			}
			defer f.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (superblock v%d)\n", args[0], f.Version())
			return hdf5.Walk(f.Root(), func(path string, obj hdf5.Object, err error) error {
				indent := strings.Repeat("  ", depth(path))
				if err != nil {
					// keep walking past members that cannot be opened
					fmt.Fprintf(out, "%s%s: ERROR %v\n", indent, path, err)
					return nil
				}
				switch o := obj.(type) {
				case *hdf5.Group:
					fmt.Fprintf(out, "%sgroup %s\n", indent, path)
				case *hdf5.Dataset:
					fmt.Fprintf(out, "%sdataset %s %v\n", indent, path, o.Shape())
				}
				if withAttrs {
					for _, name := range obj.Attrs() {
						fmt.Fprintf(out, "%s  @%s = %s\n", indent, name, attrValue(obj.Attr(name)))
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().Bool("attrs", false, "Print attribute values")
	return cmd
}

func depth(path string) int {
	if path == "/" {
		return 0
	}
	return strings.Count(path, "/")
}

func attrValue(attr *hdf5.Attribute) string {
	if attr == nil {
		return "?"
	}
	v, err := attr.Value()
	if err != nil {
		return "ERROR " + err.Error()
	}
	return fmt.Sprint(v)
}
