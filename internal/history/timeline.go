// Package history turns stored sweep reports into per-target timelines.
package history

import (
	"sort"
	"strings"
	"time"

	"modelprobe/internal/models"
)

// DefaultTimelinePoints controls how many sweeps a timeline covers.
const DefaultTimelinePoints = 30

// TimelinePoint is the state of one target in one sweep.
type TimelinePoint struct {
	SweepID       string        `json:"sweep_id"`
	At            time.Time     `json:"at"`
	ClassName     string        `json:"class"`
	Label         string        `json:"label"`
	Status        models.Status `json:"status,omitempty"`
	LatencyMillis float64       `json:"latency_ms,omitempty"`
	Error         string        `json:"error,omitempty"`
}

// TargetTimeline is the recent history of one target.
type TargetTimeline struct {
	TargetID string             `json:"id"`
	Name     string             `json:"name"`
	Route    models.RoutingPath `json:"route"`
	Timeline []TimelinePoint    `json:"timeline"`
}

// BuildTargetTimelines converts the most recent reports (oldest first) into
// one timeline per target with one point per sweep. Sweeps that did not probe
// a target show up as missing points.
func BuildTargetTimelines(reports []models.SweepReport, points int) []TargetTimeline {
	if points <= 0 {
		points = DefaultTimelinePoints
	}
	if len(reports) > points {
		reports = reports[len(reports)-points:]
	}

	type entry struct {
		name  string
		route models.RoutingPath
	}
	targets := make(map[string]entry)
	for _, report := range reports {
		for _, outcome := range report.Results {
			name := outcome.Name
			if name == "" {
				name = outcome.TargetID
			}
			targets[outcome.TargetID] = entry{name: name, route: outcome.Route}
		}
	}
	if len(targets) == 0 {
		return nil
	}

	ids := make([]string, 0, len(targets))
	for id := range targets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return strings.ToLower(targets[ids[i]].name) < strings.ToLower(targets[ids[j]].name)
	})

	result := make([]TargetTimeline, 0, len(ids))
	for _, id := range ids {
		timeline := make([]TimelinePoint, 0, len(reports))
		for _, report := range reports {
			timeline = append(timeline, pointFor(report, id))
		}
		result = append(result, TargetTimeline{
			TargetID: id,
			Name:     targets[id].name,
			Route:    targets[id].route,
			Timeline: timeline,
		})
	}
	return result
}

func pointFor(report models.SweepReport, id string) TimelinePoint {
	point := TimelinePoint{SweepID: report.SweepID, At: report.StartedAt}
	for _, outcome := range report.Results {
		if outcome.TargetID != id {
			continue
		}
		point.ClassName, point.Label = classify(outcome.Status)
		point.Status = outcome.Status
		point.LatencyMillis = outcome.LatencyMillis
		point.Error = valueOrEmpty(outcome.ErrorDetail)
		return point
	}
	point.ClassName, point.Label = "state-missing", "No data"
	return point
}

func classify(status models.Status) (className, label string) {
	switch status {
	case models.StatusSuccess:
		return "state-success", "Operational"
	case models.StatusTimeout:
		return "state-warning", "Timed out"
	case models.StatusHTTPError, models.StatusTransportError:
		return "state-error", "Unavailable"
	default:
		return "state-missing", "No data"
	}
}

func valueOrEmpty(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
