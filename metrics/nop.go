package metrics

import "github.com/prometheus/client_golang/prometheus"

// NopRegistry is a Registry whose metrics discard every value.
type NopRegistry struct{}

func (NopRegistry) NewGauge(prometheus.GaugeOpts) (Gauge, error) { return nopGauge{}, nil }

func (NopRegistry) NewGaugeVec(prometheus.GaugeOpts, []string) (GaugeVec, error) {
	return nopGauge{}, nil
}

func (NopRegistry) NewCounter(prometheus.CounterOpts) (Counter, error) { return nopCounter{}, nil }

func (NopRegistry) NewCounterVec(prometheus.CounterOpts, []string) (CounterVec, error) {
	return nopCounter{}, nil
}

type nopGauge struct{}

func (nopGauge) Set(float64)                  {}
func (nopGauge) With(prometheus.Labels) Gauge { return nopGauge{} }
func (nopGauge) Reset()                       {}

type nopCounter struct{}

func (nopCounter) Inc()                           {}
func (nopCounter) Add(float64)                    {}
func (nopCounter) With(prometheus.Labels) Counter { return nopCounter{} }
