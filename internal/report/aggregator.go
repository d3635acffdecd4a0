// Package report aggregates probe outcomes and renders sweep summaries.
package report

import (
	"time"

	"modelprobe/internal/metrics"
	"modelprobe/internal/models"
)

// Aggregator owns the outcome sequence of a sweep. Outcomes are appended a
// whole batch at a time, after the batch has joined.
type Aggregator struct {
	outcomes []models.ProbeOutcome
}

// NewAggregator creates an aggregator sized for the expected number of targets.
func NewAggregator(capacity int) *Aggregator {
	if capacity < 0 {
		capacity = 0
	}
	return &Aggregator{outcomes: make([]models.ProbeOutcome, 0, capacity)}
}

// Append adds a completed batch in target order.
func (a *Aggregator) Append(batch []models.ProbeOutcome) {
	a.outcomes = append(a.outcomes, batch...)
}

// Len returns the number of outcomes collected so far.
func (a *Aggregator) Len() int {
	return len(a.outcomes)
}

// Outcomes returns a copy of the collected outcomes.
func (a *Aggregator) Outcomes() []models.ProbeOutcome {
	out := make([]models.ProbeOutcome, len(a.outcomes))
	copy(out, a.outcomes)
	return out
}

// Meta carries the sweep details that are not derived from outcomes.
type Meta struct {
	SweepID     string
	StartedAt   time.Time
	GeneratedAt time.Time
	Routes      models.RouteTable
	Preflight   []models.ConnectivityStatus
}

// Summarize derives the sweep report from the full outcome list.
func Summarize(meta Meta, outcomes []models.ProbeOutcome) models.SweepReport {
	report := models.SweepReport{
		SweepID:        meta.SweepID,
		Timestamp:      meta.GeneratedAt,
		StartedAt:      meta.StartedAt,
		DirectRouteURL: meta.Routes[models.DirectRoute].EndpointURL,
		ProxyRouteURL:  meta.Routes[models.ProxyRoute].EndpointURL,
		TotalModels:    len(outcomes),
		Preflight:      meta.Preflight,
		Results:        make([]models.ProbeOutcome, len(outcomes)),
	}
	copy(report.Results, outcomes)

	for _, outcome := range outcomes {
		if outcome.OK() {
			report.Successful++
		}
	}
	report.Failed = report.TotalModels - report.Successful

	if stats, ok := metrics.ComputeLatencyStats(outcomes); ok {
		avg := stats.Average
		fastest := stats.Fastest
		slowest := stats.Slowest
		report.AverageLatencyMillis = &avg
		report.Fastest = &fastest
		report.Slowest = &slowest
	}
	return report
}
