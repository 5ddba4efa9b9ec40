package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/go-velociraptor/internal/fetch"
	"github.com/robert-malhotra/go-velociraptor/observational"
	"github.com/robert-malhotra/go-velociraptor/observational/index"
)

const observationSuffix = ".hdf5"

func newObservationsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "observations",
		Short: "Select, index and fetch observational comparison data",
	}
	cmd.AddCommand(
		newObservationsSelectCmd(a),
		newObservationsIndexCmd(a),
		newObservationsFetchCmd(a),
	)
	return cmd
}

type selectionRow struct {
	File     string  `json:"file"`
	Name     string  `json:"name"`
	Citation string  `json:"citation"`
	Redshift float64 `json:"redshift"`
	Lower    float64 `json:"redshift_lower"`
	Upper    float64 `json:"redshift_upper"`
	Points   int     `json:"points"`
	PlotAs   string  `json:"plot_as"`
}

func newObservationsSelectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select [file...]",
		Short: "List datasets whose redshift bracket overlaps a range",
		Long: `Load observational files and print the datasets overlapping
[--z-min, --z-max]. Without file arguments the redshift index picks the
files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			lo, _ := cmd.Flags().GetFloat64("z-min")
			hi, _ := cmd.Flags().GetFloat64("z-max")
			r := observational.Range{Lo: lo, Hi: hi}
			ctx := cmd.Context()

			paths := args
			if len(paths) == 0 {
				idx, err := index.Open(ctx, a.cfg.Observations.IndexFile())
				if err != nil {
					return err
				}
				paths, err = idx.Query(ctx, lo, hi)
				_ = idx.Close()
				if err != nil {
					return err
				}
			}

			containers, err := observational.LoadAll(ctx, paths, observational.LoadOptions{
				Concurrency: a.cfg.Observations.Parallelism,
				Logger:      a.logger,
			})
			if err != nil {
				return err
			}
			selections, err := observational.Select(containers, r)
			if err != nil {
				return err
			}

			rows := []selectionRow{}
			for i, sel := range selections {
				for _, d := range sel.Datasets {
					rows = append(rows, selectionRow{
						File:     paths[i],
						Name:     d.Name,
						Citation: d.Citation,
						Redshift: d.Redshift,
						Lower:    d.RedshiftLower,
						Upper:    d.RedshiftUpper,
						Points:   d.Len(),
						PlotAs:   d.PlotAs.String(),
					})
				}
			}

			out := cmd.OutOrStdout()
			if a.jsonOut {
				return a.encode(out, rows)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tZ\tBRACKET\tPOINTS\tPLOT\tCITATION")
			for _, row := range rows {
				fmt.Fprintf(tw, "%s\t%g\t[%g, %g]\t%d\t%s\t%s\n",
					row.Name, row.Redshift, row.Lower, row.Upper, row.Points, row.PlotAs, row.Citation)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Float64("z-min", 0, "Lower end of the redshift range")
	cmd.Flags().Float64("z-max", 0, "Upper end of the redshift range")
	return cmd
}

func newObservationsIndexCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index [file...]",
		Short: "Add observational files to the redshift index",
		Long: `Add files to the redshift index, replacing earlier entries for the same
path. Without arguments every .hdf5 file below the data directory is
indexed. The index contents are printed afterwards.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			remove, _ := cmd.Flags().GetBool("remove")

			paths := args
			if len(paths) == 0 && !remove {
				var err error
				if paths, err = findObservations(a.cfg.Observations.DataDir); err != nil {
					return err
				}
			}

			idx, err := index.Open(ctx, a.cfg.Observations.IndexFile())
			if err != nil {
				return err
			}
			defer idx.Close()

			for _, p := range paths {
				if remove {
					err = idx.Remove(ctx, p)
				} else {
					err = idx.AddFile(ctx, p)
				}
				if err != nil {
					return err
				}
				a.logger.Debug("updated index", "path", p, "removed", remove)
			}
			return printEntries(cmd, a, idx)
		},
	}
	cmd.Flags().Bool("remove", false, "Remove the named files instead of adding them")
	return cmd
}

func printEntries(cmd *cobra.Command, a *app, idx *index.Index) error {
	entries, err := idx.Entries(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if a.jsonOut {
		if entries == nil {
			entries = []index.Entry{}
		}
		return a.encode(out, entries)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tNAME\tDATASETS\tBIBCODE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", e.Path, e.Name, e.Datasets, e.Bibcode)
	}
	return tw.Flush()
}

func findObservations(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(p, observationSuffix) {
			paths = append(paths, p)
		}
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return paths, err
}

func newObservationsFetchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch [name...]",
		Short: "Download observational files from S3 into the data directory",
		Long: `Download the named objects, or every .hdf5 object below the configured
prefix, into the data directory and add them to the redshift index. Files
already present are not downloaded again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			obs := a.cfg.Observations
			s3cfg := fetch.Config{
				Bucket:    obs.S3.Bucket,
				Region:    obs.S3.Region,
				Endpoint:  obs.S3.Endpoint,
				Prefix:    obs.S3.Prefix,
				PathStyle: obs.S3.PathStyle,
			}
			f, err := fetch.New(ctx, s3cfg, obs.DataDir, fetch.WithLogger(a.logger))
			if err != nil {
				return err
			}

			names := args
			if len(names) == 0 {
				if names, err = f.List(ctx, observationSuffix); err != nil {
					return err
				}
			}
			paths, err := f.FetchAll(ctx, names, obs.Parallelism)
			if err != nil {
				return err
			}

			idx, err := index.Open(ctx, obs.IndexFile())
			if err != nil {
				return err
			}
			defer idx.Close()
			for _, p := range paths {
				if err := idx.AddFile(ctx, p); err != nil {
					return err
				}
			}
			a.logger.Info("fetched observational data", "files", len(paths), "bucket", obs.S3.Bucket)
			return printEntries(cmd, a, idx)
		},
	}
	return cmd
}
