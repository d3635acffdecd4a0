package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelprobe/internal/models"
)

func outcome(id string, status models.Status, latency float64) models.ProbeOutcome {
	return models.ProbeOutcome{TargetID: id, Name: id, Route: models.DirectRoute, Status: status, LatencyMillis: latency}
}

func TestComputeLatencyStats(t *testing.T) {
	outcomes := []models.ProbeOutcome{
		outcome("a", models.StatusSuccess, 300),
		outcome("b", models.StatusTimeout, 60000),
		outcome("c", models.StatusSuccess, 100),
		outcome("d", models.StatusSuccess, 500),
		outcome("e", models.StatusHTTPError, 1),
	}

	stats, ok := ComputeLatencyStats(outcomes)
	require.True(t, ok)
	assert.Equal(t, 3, stats.Count)
	assert.Equal(t, 300.0, stats.Average)
	assert.Equal(t, models.LatencyMark{TargetID: "c", LatencyMillis: 100}, stats.Fastest)
	assert.Equal(t, models.LatencyMark{TargetID: "d", LatencyMillis: 500}, stats.Slowest)
}

func TestComputeLatencyStatsTiesGoToFirst(t *testing.T) {
	outcomes := []models.ProbeOutcome{
		outcome("a", models.StatusSuccess, 200),
		outcome("b", models.StatusSuccess, 200),
		outcome("c", models.StatusSuccess, 200),
	}

	stats, ok := ComputeLatencyStats(outcomes)
	require.True(t, ok)
	assert.Equal(t, "a", stats.Fastest.TargetID)
	assert.Equal(t, "a", stats.Slowest.TargetID)
}

func TestComputeLatencyStatsWithoutSuccess(t *testing.T) {
	_, ok := ComputeLatencyStats([]models.ProbeOutcome{outcome("a", models.StatusTransportError, 3)})
	assert.False(t, ok)
}

func TestComputeTargetReliability(t *testing.T) {
	first := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	reports := []models.SweepReport{
		{
			Timestamp: first,
			Results: []models.ProbeOutcome{
				outcome("b", models.StatusSuccess, 100),
				outcome("a", models.StatusTimeout, 60000),
			},
		},
		{
			Timestamp: first.Add(time.Hour),
			Results: []models.ProbeOutcome{
				outcome("b", models.StatusSuccess, 300),
				outcome("a", models.StatusSuccess, 50),
			},
		},
	}

	got := ComputeTargetReliability(reports)
	require.Len(t, got, 2)

	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, 50.0, got[0].SuccessPercent)
	assert.Equal(t, 1, got[0].Passing)
	assert.Equal(t, 1, got[0].Failing)
	assert.Equal(t, 50.0, got[0].AvgLatencyMS)
	assert.Equal(t, models.StatusSuccess, got[0].LastStatus)
	assert.Equal(t, "2026-10-01T13:00:00Z", got[0].LastUpdated)

	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, 100.0, got[1].SuccessPercent)
	assert.Equal(t, 200.0, got[1].AvgLatencyMS)
	assert.Equal(t, 2, got[1].TotalProbes)
}

func TestComputeTargetReliabilityEmpty(t *testing.T) {
	assert.Nil(t, ComputeTargetReliability(nil))
}
