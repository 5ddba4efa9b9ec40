package main

import (
	"errors"
	"fmt"
	"math"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/go-velociraptor/catalogue"
	"github.com/robert-malhotra/go-velociraptor/internal/config"
	"github.com/robert-malhotra/go-velociraptor/massfunction"
	"github.com/robert-malhotra/go-velociraptor/units"
)

var errNoBoxSize = errors.New("catalogue has no box size")

type massFunctionRow struct {
	Center  float64 `json:"center"`
	Density float64 `json:"density"`
	Error   float64 `json:"error"`
	Count   int     `json:"count"`
}

type massFunctionOutput struct {
	Job     string            `json:"job"`
	Label   string            `json:"label"`
	XUnit   string            `json:"x_unit"`
	YUnit   string            `json:"y_unit"`
	Bins    []massFunctionRow `json:"bins"`
	Total   int               `json:"total"`
	Applied bool              `json:"box_size_corrected"`
}

func newMassFunctionCmd(a *app) *cobra.Command {
	var adhoc config.MassFunctionJob
	cmd := &cobra.Command{
		Use:   "massfunction <catalogue>",
		Short: "Compute the configured mass functions of a catalogue",
		Long: `Compute every mass function job in the config file, or a single job
described by --field, --low, --high and --units. The volume is the cube of
the catalogue's box size, with the h factor removed under the physical
convention. Densities are per unit volume per unit of the binned quantity,
or per dex with --dex.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			only, _ := cmd.Flags().GetString("job")

			jobs := a.cfg.MassFunctions
			if adhoc.Field != "" {
				adhoc.Name = adhoc.Field
				jobs = []config.MassFunctionJob{adhoc}
			}
			if len(jobs) == 0 {
				return errors.New("no mass function jobs configured; pass --field or add mass_functions to the config")
			}

			view, err := a.openCatalogue(args[0])
			if err != nil {
				return err
			}
			defer view.Close()

			var results []massFunctionOutput
			for _, job := range jobs {
				if only != "" && job.Name != only {
					continue
				}
				res, err := runMassFunction(view, job)
				if err != nil {
					return fmt.Errorf("mass function %s: %w", job.Name, err)
				}
				a.logger.Info("computed mass function", "job", job.Name, "bins", len(res.Bins), "haloes", res.Total)
				results = append(results, *res)
			}

			out := cmd.OutOrStdout()
			if a.jsonOut {
				return a.encode(out, results)
			}
			for _, r := range results {
				fmt.Fprintf(out, "# %s: %s\n", r.Job, r.Label)
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintf(tw, "CENTER [%s]\tDENSITY [%s]\tERROR\tCOUNT\n", r.XUnit, r.YUnit)
				for _, b := range r.Bins {
					fmt.Fprintf(tw, "%.4g\t%.4g\t%.4g\t%d\n", b.Center, b.Density, b.Error, b.Count)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().String("job", "", "Only run the configured job with this name")
	cmd.Flags().StringVar(&adhoc.Field, "field", "", "Accessor of the field to bin, e.g. masses.mass_200crit")
	cmd.Flags().Float64Var(&adhoc.Low, "low", 1e8, "Lower bound of the binned range")
	cmd.Flags().Float64Var(&adhoc.High, "high", 1e15, "Upper bound of the binned range")
	cmd.Flags().StringVar(&adhoc.Units, "units", "Msun", "Units of --low and --high")
	cmd.Flags().IntVar(&adhoc.Bins, "bins", 25, "Number of bins")
	cmd.Flags().BoolVar(&adhoc.Adaptive, "adaptive", false, "Widen sparse bins")
	cmd.Flags().BoolVar(&adhoc.Dex, "dex", false, "Divide by bin widths in dex instead of linear widths")
	cmd.Flags().IntVar(&adhoc.MinCount, "min-count", massfunction.DefaultMinCount, "Minimum haloes per adaptive bin")
	cmd.Flags().StringVar(&adhoc.BoxSizeCorrection, "box-size-correction", "", "YAML correction table to apply")
	return cmd
}

func runMassFunction(view *catalogue.View, job config.MassFunctionJob) (*massFunctionOutput, error) {
	values, err := view.Get(job.Field)
	if err != nil {
		return nil, err
	}
	u, err := units.Parse(job.Units)
	if err != nil {
		return nil, err
	}
	volume, err := boxVolume(view)
	if err != nil {
		return nil, err
	}
	low := units.Quantity{Value: job.Low, Unit: u}
	high := units.Quantity{Value: job.High, Unit: u}

	var opts []massfunction.Option
	if job.Dex {
		opts = append(opts, massfunction.WithDexWidths())
	}
	var res *massfunction.Result
	if job.Adaptive {
		minCount := job.MinCount
		if minCount <= 0 {
			minCount = massfunction.DefaultMinCount
		}
		res, err = massfunction.CreateAdaptiveMassFunction(values, low, high, volume, job.Bins, minCount, opts...)
	} else {
		res, err = massfunction.CreateMassFunction(values, low, high, volume, job.Bins, opts...)
	}
	if err != nil {
		return nil, err
	}

	out := &massFunctionOutput{Job: job.Name, Total: res.Total()}
	if job.BoxSizeCorrection != "" {
		corr, err := massfunction.LoadCorrection(job.BoxSizeCorrection)
		if err != nil {
			return nil, err
		}
		res = corr.Apply(res)
		out.Applied = true
	}

	out.Label = massfunction.Label(values.Name(), res.Density.Unit())
	out.XUnit = res.Centers.Unit().String()
	out.YUnit = res.Density.Unit().String()
	for i := range res.Len() {
		out.Bins = append(out.Bins, massFunctionRow{
			Center:  res.Centers.At(i),
			Density: res.Density.At(i),
			Error:   res.Scatter.At(i),
			Count:   res.Counts[i],
		})
	}
	return out, nil
}

func boxVolume(view *catalogue.View) (units.Quantity, error) {
	side, ok := view.BoxSize()
	if !ok || !(side.Value > 0) {
		return units.Quantity{}, errNoBoxSize
	}
	return units.Quantity{
		Value: math.Pow(side.Value, 3),
		Unit:  side.Unit.Pow(3),
	}, nil
}
