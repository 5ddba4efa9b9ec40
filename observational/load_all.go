package observational

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/robert-malhotra/go-velociraptor/internal/logging"
)

// LoadOptions controls LoadAll.
type LoadOptions struct {
	// Concurrency bounds the number of files read at once; values below
	// one mean one.
	Concurrency int
	Logger      *slog.Logger
}

// LoadAll loads every path with bounded concurrency. The result is in the
// order of paths. The first error cancels the loads not yet started and
// is returned.
func LoadAll(ctx context.Context, paths []string, opts LoadOptions) ([]*Container, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	out := make([]*Container, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Concurrency, 1))
	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			c, err := Load(p)
			if err != nil {
				return err
			}
			logger.Debug("loaded observational data", "path", p, "datasets", c.Len())
			out[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
