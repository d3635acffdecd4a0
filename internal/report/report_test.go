package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelprobe/internal/models"
)

func init() {
	color.NoColor = true
}

func ptr(s string) *string { return &s }

func success(id string, route models.RoutingPath, latency float64, tokens int) models.ProbeOutcome {
	return models.ProbeOutcome{
		TargetID: id, Name: id, Route: route, Status: models.StatusSuccess,
		LatencyMillis: latency, ResponseSnippet: ptr("OK"), TokenCount: tokens,
	}
}

func failure(id string, route models.RoutingPath, status models.Status, detail string) models.ProbeOutcome {
	return models.ProbeOutcome{
		TargetID: id, Name: id, Route: route, Status: status, LatencyMillis: 10, ErrorDetail: ptr(detail),
	}
}

func sampleOutcomes() []models.ProbeOutcome {
	return []models.ProbeOutcome{
		success("gpt-4.1-mini", models.ProxyRoute, 900, 12),
		failure("gpt-4o", models.DirectRoute, models.StatusHTTPError, "HTTP 500: server overloaded"),
		success("gemini-2.5-flash", models.DirectRoute, 300, 9),
		failure("claude-3-opus", models.DirectRoute, models.StatusTimeout, "request timed out after 1m0s"),
		success("grok-2", models.DirectRoute, 300, 7),
	}
}

func TestAggregatorAppendsBatchesInOrder(t *testing.T) {
	agg := NewAggregator(4)
	outcomes := sampleOutcomes()
	agg.Append(outcomes[:3])
	agg.Append(outcomes[3:])

	assert.Equal(t, 5, agg.Len())
	got := agg.Outcomes()
	assert.Equal(t, outcomes, got)

	got[0].TargetID = "changed"
	assert.Equal(t, "gpt-4.1-mini", agg.Outcomes()[0].TargetID)
}

func TestSummarize(t *testing.T) {
	started := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)
	meta := Meta{
		SweepID:     "sweep-1",
		StartedAt:   started,
		GeneratedAt: started.Add(time.Minute),
		Routes: models.RouteTable{
			models.DirectRoute: {EndpointURL: "https://direct"},
			models.ProxyRoute:  {EndpointURL: "https://proxy"},
		},
	}

	report := Summarize(meta, sampleOutcomes())

	assert.Equal(t, 5, report.TotalModels)
	assert.Equal(t, 3, report.Successful)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, report.TotalModels, report.Successful+report.Failed)
	assert.Equal(t, "https://direct", report.DirectRouteURL)
	assert.Equal(t, "https://proxy", report.ProxyRouteURL)
	require.NotNil(t, report.AverageLatencyMillis)
	assert.Equal(t, 500.0, *report.AverageLatencyMillis)
	require.NotNil(t, report.Fastest)
	assert.Equal(t, "gemini-2.5-flash", report.Fastest.TargetID)
	require.NotNil(t, report.Slowest)
	assert.Equal(t, "gpt-4.1-mini", report.Slowest.TargetID)
	assert.Len(t, report.Results, 5)
}

func TestSummarizeWithoutSuccesses(t *testing.T) {
	report := Summarize(Meta{}, []models.ProbeOutcome{
		failure("a", models.DirectRoute, models.StatusTransportError, "connection refused"),
	})
	assert.Equal(t, 1, report.Failed)
	assert.Nil(t, report.AverageLatencyMillis)
	assert.Nil(t, report.Fastest)
	assert.Nil(t, report.Slowest)
}

func TestConsoleSummaryOrdering(t *testing.T) {
	var buf bytes.Buffer
	console := NewConsole(&buf)
	console.Summary(Summarize(Meta{}, sampleOutcomes()))
	out := buf.String()

	assert.Contains(t, out, "Successful: 3 (60.0%)")
	assert.Contains(t, out, "Failed: 2 (40.0%)")
	assert.Contains(t, out, "Average latency (successful): 500ms")
	assert.Contains(t, out, "Fastest: gemini-2.5-flash (300ms)")

	gemini := strings.Index(out, "✔ gemini-2.5-flash")
	grok := strings.Index(out, "✔ grok-2")
	mini := strings.Index(out, "✔ gpt-4.1-mini")
	require.True(t, gemini >= 0 && grok >= 0 && mini >= 0)
	assert.Less(t, gemini, grok, "equal latencies keep registry order")
	assert.Less(t, grok, mini)

	gpt4o := strings.Index(out, "✘ gpt-4o")
	opus := strings.Index(out, "✘ claude-3-opus")
	require.True(t, gpt4o >= 0 && opus >= 0)
	assert.Less(t, gpt4o, opus)
	assert.Contains(t, out, "[forge     ] http_error      HTTP 500: server overloaded")
}

func TestConsoleProgress(t *testing.T) {
	var buf bytes.Buffer
	console := NewConsole(&buf)
	batch := models.Batch{Index: 2, Total: 11, Targets: []models.ProbeTarget{{ID: "a"}, {ID: "b"}}}
	console.BatchStarted(batch)
	console.BatchCompleted(batch, []models.ProbeOutcome{
		success("a", models.ProxyRoute, 120, 3),
		failure("b", models.DirectRoute, models.StatusHTTPError, "HTTP 403: forbidden"),
	})
	out := buf.String()

	assert.Contains(t, out, "Testing batch 2/11: a, b")
	assert.Contains(t, out, "Response: OK...")
	assert.Contains(t, out, "Error: HTTP 403: forbidden")
}

func TestConsoleBannerMasksSecrets(t *testing.T) {
	var buf bytes.Buffer
	NewConsole(&buf).Banner(models.RouteTable{
		models.DirectRoute: {EndpointURL: "https://direct", AuthToken: "abcdefghij12345", AdminCredential: "secretpw9876"},
		models.ProxyRoute:  {EndpointURL: "https://proxy"},
	}, 31)
	out := buf.String()

	assert.NotContains(t, out, "abcdefghij12345")
	assert.Contains(t, out, "**********12345")
	assert.Contains(t, out, "**********9876")
	assert.Contains(t, out, "(not set)")
	assert.Contains(t, out, "Models to test:   31")
}
