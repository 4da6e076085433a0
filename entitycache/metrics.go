package entitycache

import (
	"errors"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Stats is a snapshot of the lookup counters of one table.
type Stats struct {
	Hits   uint64
	Misses uint64
	Skips  uint64
}

type counters struct {
	hits   atomic.Uint64
	misses atomic.Uint64
	skips  atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Skips: c.skips.Load()}
}

// Metrics exports lookup outcomes and store failures of every table.
type Metrics struct {
	lookups     *prometheus.CounterVec
	storeErrors *prometheus.CounterVec
}

// NewMetrics registers the entity cache collectors with reg. Collectors that
// are already registered are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "entitycache",
		Name:      "lookups_total",
		Help:      "Identity cache lookups by outcome (hit, miss, skip).",
	}, []string{"table", "outcome"})

	storeErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "entitycache",
		Name:      "store_errors_total",
		Help:      "Store failures swallowed at the table runtime boundary.",
	}, []string{"table", "op"})

	var err error
	if lookups, err = register(reg, lookups); err != nil {
		return nil, err
	}
	if storeErrors, err = register(reg, storeErrors); err != nil {
		return nil, err
	}
	return &Metrics{lookups: lookups, storeErrors: storeErrors}, nil
}

func register(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return c, nil
}

func (m *Metrics) lookup(table, outcome string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(table, outcome).Inc()
}

func (m *Metrics) storeError(table, op string) {
	if m == nil {
		return
	}
	m.storeErrors.WithLabelValues(table, op).Inc()
}
