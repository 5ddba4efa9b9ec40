// Command velociraptor inspects VELOCIraptor halo catalogues, builds mass
// functions from them and manages the observational data used alongside.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/robert-malhotra/go-velociraptor/catalogue"
	"github.com/robert-malhotra/go-velociraptor/internal/config"
	"github.com/robert-malhotra/go-velociraptor/internal/logging"
	"github.com/robert-malhotra/go-velociraptor/internal/metrics"
	"github.com/robert-malhotra/go-velociraptor/registry"
)

var version = "0.1.0-dev"

// app is the state shared by every subcommand once the root pre-run has
// loaded the configuration.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	observer catalogue.Observer
	server   *http.Server
	jsonOut  bool
	stderr   io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{stderr: os.Stderr}

	rootCmd := &cobra.Command{
		Use:   "velociraptor",
		Short: "Read VELOCIraptor halo catalogues",
		Long: `velociraptor reads halo catalogues written by the VELOCIraptor halo
finder, attaches units to every field, extracts halo particles and builds
mass functions. Observational comparison data can be indexed by redshift
and fetched from an S3 bucket.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("metrics-addr", "", "Serve Prometheus metrics on this address")

	rootCmd.AddCommand(
		newVersionCmd(a),
		newInspectCmd(a),
		newFieldsCmd(a),
		newGetCmd(a),
		newHaloCmd(a),
		newMassFunctionCmd(a),
		newObservationsCmd(a),
	)
	return rootCmd
}

func (a *app) setup(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		cfg.Metrics.Addr = addr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.jsonOut, _ = cmd.Flags().GetBool("json")
	a.logger = logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, a.stderr)
	a.observer = catalogue.NoopObserver{}

	if cfg.Metrics.Addr != "" {
		if err := a.serveMetrics(cfg.Metrics.Addr); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) serveMetrics(addr string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	obs, err := metrics.NewCatalogueObserver(reg)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}
	a.observer = obs

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	a.server = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	a.logger.Info("serving metrics", "addr", addr)
	return nil
}

func (a *app) teardown() error {
	if a.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.server.Shutdown(ctx)
}

// openCatalogue opens a properties file with the configured convention,
// strictness, logger and observer.
func (a *app) openCatalogue(path string) (*catalogue.View, error) {
	conv, err := registry.ParseConvention(a.cfg.Catalogue.Convention)
	if err != nil {
		return nil, err
	}
	return catalogue.Open(path,
		catalogue.WithLogger(a.logger),
		catalogue.WithObserver(a.observer),
		catalogue.WithConvention(conv),
		catalogue.WithStrict(a.cfg.Catalogue.Strict),
	)
}

func (a *app) encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.jsonOut {
				return a.encode(cmd.OutOrStdout(), map[string]string{"version": version})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "velociraptor version %s\n", version)
			return nil
		},
	}
}
