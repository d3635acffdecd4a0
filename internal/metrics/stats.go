package metrics

import (
	"math"
	"sort"
	"time"

	"modelprobe/internal/models"
)

// LatencyStats summarises latency over successful probes.
type LatencyStats struct {
	Count   int
	Average float64
	Fastest models.LatencyMark
	Slowest models.LatencyMark
}

// ComputeLatencyStats aggregates latency over successful outcomes. Ties for
// fastest and slowest go to the earliest outcome. ok is false when nothing
// succeeded.
func ComputeLatencyStats(outcomes []models.ProbeOutcome) (stats LatencyStats, ok bool) {
	var sum float64
	for _, outcome := range outcomes {
		if !outcome.OK() {
			continue
		}
		mark := models.LatencyMark{TargetID: outcome.TargetID, LatencyMillis: outcome.LatencyMillis}
		if stats.Count == 0 || mark.LatencyMillis < stats.Fastest.LatencyMillis {
			stats.Fastest = mark
		}
		if stats.Count == 0 || mark.LatencyMillis > stats.Slowest.LatencyMillis {
			stats.Slowest = mark
		}
		sum += outcome.LatencyMillis
		stats.Count++
	}
	if stats.Count == 0 {
		return LatencyStats{}, false
	}
	stats.Average = round2(sum / float64(stats.Count))
	return stats, true
}

// TargetReliability summarises how a target fared across stored sweeps.
type TargetReliability struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Route          models.RoutingPath `json:"route"`
	SuccessPercent float64            `json:"success_percent"`
	TotalProbes    int                `json:"total_probes"`
	Passing        int                `json:"passing"`
	Failing        int                `json:"failing"`
	AvgLatencyMS   float64            `json:"avg_latency_ms,omitempty"`
	LastStatus     models.Status      `json:"last_status,omitempty"`
	LastUpdated    string             `json:"last_updated,omitempty"`
}

// ComputeTargetReliability aggregates per-target success rates from reports.
// Reports are expected oldest first so that the last status wins.
func ComputeTargetReliability(reports []models.SweepReport) []TargetReliability {
	type acc struct {
		name       string
		route      models.RoutingPath
		passing    int
		failing    int
		latencySum float64
		lastStatus models.Status
		lastTime   time.Time
	}
	state := make(map[string]*acc)
	for _, report := range reports {
		for _, outcome := range report.Results {
			target := state[outcome.TargetID]
			if target == nil {
				target = &acc{name: outcome.Name, route: outcome.Route}
				state[outcome.TargetID] = target
			}
			if outcome.OK() {
				target.passing++
				target.latencySum += outcome.LatencyMillis
			} else {
				target.failing++
			}
			target.lastStatus = outcome.Status
			target.lastTime = report.Timestamp
		}
	}
	if len(state) == 0 {
		return nil
	}

	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	results := make([]TargetReliability, 0, len(keys))
	for _, id := range keys {
		data := state[id]
		total := data.passing + data.failing
		success := 0.0
		if total > 0 {
			success = float64(data.passing) / float64(total) * 100
		}

		result := TargetReliability{
			ID:             id,
			Name:           data.name,
			Route:          data.route,
			SuccessPercent: round2(success),
			TotalProbes:    total,
			Passing:        data.passing,
			Failing:        data.failing,
			LastStatus:     data.lastStatus,
		}
		if data.passing > 0 {
			result.AvgLatencyMS = round2(data.latencySum / float64(data.passing))
		}
		if !data.lastTime.IsZero() {
			result.LastUpdated = data.lastTime.UTC().Format(time.RFC3339)
		}
		results = append(results, result)
	}
	return results
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
