package controller

import (
	"fmt"

	"github.com/nomis52/signup/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Load and submission outcomes used as the "outcome" label.
const (
	outcomeSuccess    = "success"
	outcomeAPIError   = "api_error"
	outcomeFailure    = "failure"
	outcomeSuperseded = "superseded"
	outcomeRejected   = "rejected"
)

// Metrics are the controller's instruments.
type Metrics struct {
	loads       metrics.CounterVec
	submissions metrics.CounterVec
	activities  metrics.Gauge
	spotsLeft   metrics.GaugeVec
}

// NewMetrics registers the controller's metrics with reg.
func NewMetrics(reg metrics.Registry) (*Metrics, error) {
	loads, err := reg.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_loads_total",
		Help: "Catalog loads by outcome",
	}, []string{"outcome"})
	if err != nil {
		return nil, fmt.Errorf("creating loads counter: %w", err)
	}

	submissions, err := reg.NewCounterVec(prometheus.CounterOpts{
		Name: "submissions_total",
		Help: "Form submissions by form and outcome",
	}, []string{"form", "outcome"})
	if err != nil {
		return nil, fmt.Errorf("creating submissions counter: %w", err)
	}

	activities, err := reg.NewGauge(prometheus.GaugeOpts{
		Name: "activities",
		Help: "Number of activities in the last loaded catalog",
	})
	if err != nil {
		return nil, fmt.Errorf("creating activities gauge: %w", err)
	}

	spotsLeft, err := reg.NewGaugeVec(prometheus.GaugeOpts{
		Name: "activity_spots_left",
		Help: "Spots left per activity in the last loaded catalog",
	}, []string{"activity"})
	if err != nil {
		return nil, fmt.Errorf("creating spots gauge: %w", err)
	}

	return &Metrics{
		loads:       loads,
		submissions: submissions,
		activities:  activities,
		spotsLeft:   spotsLeft,
	}, nil
}

func nopMetrics() *Metrics {
	m, _ := NewMetrics(metrics.NopRegistry{})
	return m
}

func (m *Metrics) load(outcome string) {
	m.loads.With(prometheus.Labels{"outcome": outcome}).Inc()
}

func (m *Metrics) submission(form, outcome string) {
	m.submissions.With(prometheus.Labels{"form": form, "outcome": outcome}).Inc()
}
