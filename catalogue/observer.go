package catalogue

import (
	"sync/atomic"
	"time"

	"github.com/robert-malhotra/go-velociraptor/registry"
)

// Observer receives field access events from a View. Keys are
// "category.field".
type Observer interface {
	OnCacheHit(key string)
	OnCacheMiss(key string)
	// OnRead is called after a field was read from the source.
	OnRead(key string, d time.Duration, err error)
	OnWarning(w registry.Warning)
}

// NoopObserver discards every event.
type NoopObserver struct{}

func (NoopObserver) OnCacheHit(string)                   {}
func (NoopObserver) OnCacheMiss(string)                  {}
func (NoopObserver) OnRead(string, time.Duration, error) {}
func (NoopObserver) OnWarning(registry.Warning)          {}

// BasicObserver counts events with atomic counters. It is safe to share
// between views.
type BasicObserver struct {
	Hits       atomic.Int64
	Misses     atomic.Int64
	Reads      atomic.Int64
	ReadErrors atomic.Int64
	ReadNanos  atomic.Int64
	Warnings   atomic.Int64
}

func (o *BasicObserver) OnCacheHit(string)  { o.Hits.Add(1) }
func (o *BasicObserver) OnCacheMiss(string) { o.Misses.Add(1) }

func (o *BasicObserver) OnRead(_ string, d time.Duration, err error) {
	o.Reads.Add(1)
	o.ReadNanos.Add(int64(d))
	if err != nil {
		o.ReadErrors.Add(1)
	}
}

func (o *BasicObserver) OnWarning(registry.Warning) { o.Warnings.Add(1) }

// Stats is a point-in-time copy of a BasicObserver.
type Stats struct {
	Hits, Misses, Reads, ReadErrors, Warnings int64
	ReadTime                                  time.Duration
}

// Stats returns the current counter values.
func (o *BasicObserver) Stats() Stats {
	return Stats{
		Hits:       o.Hits.Load(),
		Misses:     o.Misses.Load(),
		Reads:      o.Reads.Load(),
		ReadErrors: o.ReadErrors.Load(),
		Warnings:   o.Warnings.Load(),
		ReadTime:   time.Duration(o.ReadNanos.Load()),
	}
}
