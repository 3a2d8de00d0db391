// Package metrics exports per-turn colony figures as Prometheus series.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talgya/starcolony/internal/colony"
	"github.com/talgya/starcolony/internal/economy"
	"github.com/talgya/starcolony/internal/empire"
)

const namespace = "starcolony"

// Metrics holds the simulation's collectors on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	Turns        prometheus.Counter
	Events       *prometheus.CounterVec // kind
	Population   *prometheus.GaugeVec   // empire, colony
	Morale       *prometheus.GaugeVec   // empire, colony
	Stability    *prometheus.GaugeVec   // empire, colony
	Stockpile    *prometheus.GaugeVec   // empire, colony, resource
	Colonies     *prometheus.GaugeVec   // empire
	Production   *prometheus.CounterVec // empire, resource
	TurnDuration prometheus.Histogram
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		Turns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Turns processed.",
		}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Colony events by kind.",
		}, []string{"kind"}),
		Population: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "colony_population",
			Help:      "Population after the latest turn.",
		}, []string{"empire", "colony"}),
		Morale: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "colony_morale",
			Help:      "Morale after the latest turn.",
		}, []string{"empire", "colony"}),
		Stability: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "colony_stability",
			Help:      "Stability after the latest turn.",
		}, []string{"empire", "colony"}),
		Stockpile: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "colony_stockpile",
			Help:      "Stockpiled resources after the latest turn.",
		}, []string{"empire", "colony", "resource"}),
		Colonies: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "empire_colonies",
			Help:      "Colonies held by each empire.",
		}, []string{"empire"}),
		Production: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "production_total",
			Help:      "Cumulative resource output.",
		}, []string{"empire", "resource"}),
		TurnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Wall time spent processing one turn across all empires.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
	}
	m.reg.MustRegister(
		m.Turns, m.Events, m.Population, m.Morale, m.Stability,
		m.Stockpile, m.Colonies, m.Production, m.TurnDuration,
	)
	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// ObserveTurn records one full turn: the duration and every empire's results.
func (m *Metrics) ObserveTurn(results []empire.TurnResult, elapsed time.Duration) {
	m.Turns.Inc()
	m.TurnDuration.Observe(elapsed.Seconds())
	for _, r := range results {
		m.ObserveEmpire(r)
	}
}

// ObserveEmpire records one empire's turn. Abandoned colonies lose their series.
func (m *Metrics) ObserveEmpire(r empire.TurnResult) {
	emp := strconv.FormatUint(r.EmpireID, 10)
	live := 0
	for _, cr := range r.Colonies {
		col := strconv.FormatUint(uint64(cr.ColonyID), 10)
		for _, e := range cr.Events {
			m.Events.WithLabelValues(string(e.Kind)).Inc()
		}
		if cr.Abandoned {
			m.forget(emp, col)
			continue
		}
		live++
		m.Population.WithLabelValues(emp, col).Set(float64(cr.Population))
		m.Morale.WithLabelValues(emp, col).Set(float64(cr.NewMorale))
		m.Stability.WithLabelValues(emp, col).Set(float64(cr.NewStability))
	}
	m.Colonies.WithLabelValues(emp).Set(float64(live))
	for _, res := range economy.AllResources {
		if v := r.TotalProduction.Get(res); v > 0 {
			m.Production.WithLabelValues(emp, res.String()).Add(v)
		}
	}
}

// ObserveStockpiles sets the stockpile gauges from colony states.
func (m *Metrics) ObserveStockpiles(states []colony.State) {
	for _, s := range states {
		emp := strconv.FormatUint(s.EmpireID, 10)
		col := strconv.FormatUint(uint64(s.ID), 10)
		for _, res := range economy.AllResources {
			m.Stockpile.WithLabelValues(emp, col, res.String()).Set(s.Stockpile.Get(res))
		}
	}
}

func (m *Metrics) forget(emp, col string) {
	labels := prometheus.Labels{"empire": emp, "colony": col}
	m.Population.Delete(labels)
	m.Morale.Delete(labels)
	m.Stability.Delete(labels)
	m.Stockpile.DeletePartialMatch(labels)
}
