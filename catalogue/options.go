package catalogue

import (
	"log/slog"

	"github.com/robert-malhotra/go-velociraptor/registry"
)

type options struct {
	registry   *registry.Registry
	logger     *slog.Logger
	observer   Observer
	convention registry.Convention
	strict     bool
}

// Option configures Open and New.
type Option func(*options)

// WithRegistry replaces the default rule table.
func WithRegistry(r *registry.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithLogger sets the logger for warnings and read diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithObserver sets the receiver of cache and read events.
//
// If nil is passed, events are discarded.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs == nil {
			obs = NoopObserver{}
		}
		o.observer = obs
	}
}

// WithConvention selects physical (the default) or stored units.
func WithConvention(c registry.Convention) Option {
	return func(o *options) {
		o.convention = c
	}
}

// WithStrict makes access to a field with a classification or unit miss
// fail instead of falling back to a dimensionless array.
func WithStrict(strict bool) Option {
	return func(o *options) {
		o.strict = strict
	}
}
