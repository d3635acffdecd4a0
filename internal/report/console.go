package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"modelprobe/internal/models"
)

var headingColor = color.New(color.Bold)                //nolint:gochecknoglobals
var successColor = color.New(color.FgGreen)             //nolint:gochecknoglobals
var failureColor = color.New(color.FgRed)               //nolint:gochecknoglobals
var detailColor = color.New(color.Faint)                //nolint:gochecknoglobals
var warningColor = color.New(color.FgYellow)            //nolint:gochecknoglobals
var ruleColor = color.New(color.Faint, color.FgHiBlack) //nolint:gochecknoglobals

const (
	ruleWidth       = 70
	progressErrLen  = 80
	progressRespLen = 60
	summaryErrLen   = 40
)

// Console renders sweep progress and summaries for humans.
type Console struct {
	out io.Writer
}

// NewConsole creates a console renderer writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) rule(ch string) {
	_, _ = ruleColor.Fprintln(c.out, strings.Repeat(ch, ruleWidth))
}

// Banner prints the endpoints in use with credentials masked.
func (c *Console) Banner(routes models.RouteTable, targets int) {
	direct := routes[models.DirectRoute]
	proxy := routes[models.ProxyRoute]

	c.rule("=")
	_, _ = headingColor.Fprintln(c.out, "MODEL PROBE SWEEP")
	c.rule("=")
	fmt.Fprintf(c.out, "Direct route URL: %s\n", direct.EndpointURL)
	fmt.Fprintf(c.out, "Direct API key:   %s\n", mask(direct.AuthToken, 5))
	fmt.Fprintf(c.out, "Admin credential: %s\n", mask(direct.AdminCredential, 4))
	fmt.Fprintf(c.out, "Proxy route URL:  %s\n", proxy.EndpointURL)
	fmt.Fprintf(c.out, "Proxy API key:    %s\n", mask(proxy.AuthToken, 5))
	fmt.Fprintf(c.out, "Models to test:   %d\n", targets)
	c.rule("=")
	fmt.Fprintln(c.out)
}

// Preflight prints endpoint reachability.
func (c *Console) Preflight(statuses []models.ConnectivityStatus) {
	for _, status := range statuses {
		if status.OK {
			_, _ = successColor.Fprintf(c.out, "  reachable   [%s] %s (%dms)\n", status.Route, status.Target, status.LatencyMs)
			continue
		}
		_, _ = warningColor.Fprintf(c.out, "  unreachable [%s] %s: %s\n", status.Route, status.Target, status.Error)
	}
	if len(statuses) > 0 {
		fmt.Fprintln(c.out)
	}
}

// BatchStarted announces a batch.
func (c *Console) BatchStarted(batch models.Batch) {
	ids := make([]string, 0, len(batch.Targets))
	for _, t := range batch.Targets {
		ids = append(ids, t.ID)
	}
	_, _ = headingColor.Fprintf(c.out, "Testing batch %d/%d: %s\n", batch.Index, batch.Total, strings.Join(ids, ", "))
}

// BatchCompleted prints one line per outcome of the batch.
func (c *Console) BatchCompleted(_ models.Batch, outcomes []models.ProbeOutcome) {
	for _, o := range outcomes {
		tag := "[" + string(o.Route) + "]"
		if o.OK() {
			_, _ = successColor.Fprintf(c.out, "  ✔ %-25s %-12s %s (%.0fms)\n", o.TargetID, tag, o.Status, o.LatencyMillis)
		} else {
			_, _ = failureColor.Fprintf(c.out, "  ✘ %-25s %-12s %s (%.0fms)\n", o.TargetID, tag, o.Status, o.LatencyMillis)
		}
		if o.ErrorDetail != nil {
			_, _ = detailColor.Fprintf(c.out, "      Error: %s\n", truncate(*o.ErrorDetail, progressErrLen))
		}
		if o.ResponseSnippet != nil && *o.ResponseSnippet != "" {
			_, _ = detailColor.Fprintf(c.out, "      Response: %s...\n", truncate(*o.ResponseSnippet, progressRespLen))
		}
	}
}

// Summary prints the final statistics, successes by latency and failures in
// registry order.
func (c *Console) Summary(report models.SweepReport) {
	fmt.Fprintln(c.out)
	c.rule("=")
	_, _ = headingColor.Fprintln(c.out, "TEST SUMMARY")
	c.rule("=")

	fmt.Fprintf(c.out, "Total models tested: %d\n", report.TotalModels)
	fmt.Fprintf(c.out, "Successful: %d (%.1f%%)\n", report.Successful, percent(report.Successful, report.TotalModels))
	fmt.Fprintf(c.out, "Failed: %d (%.1f%%)\n", report.Failed, percent(report.Failed, report.TotalModels))
	fmt.Fprintln(c.out)

	if report.AverageLatencyMillis != nil {
		fmt.Fprintf(c.out, "Average latency (successful): %.0fms\n", *report.AverageLatencyMillis)
	}
	if report.Fastest != nil && report.Slowest != nil {
		fmt.Fprintf(c.out, "Fastest: %s (%.0fms)\n", report.Fastest.TargetID, report.Fastest.LatencyMillis)
		fmt.Fprintf(c.out, "Slowest: %s (%.0fms)\n", report.Slowest.TargetID, report.Slowest.LatencyMillis)
	}

	successes, failures := splitOutcomes(report.Results)

	fmt.Fprintln(c.out)
	c.rule("-")
	_, _ = headingColor.Fprintln(c.out, "SUCCESSFUL MODELS:")
	c.rule("-")
	for _, o := range successes {
		_, _ = successColor.Fprintf(c.out, "  ✔ %-25s [%-10s] %6.0fms  %4d tokens\n", o.TargetID, o.Route, o.LatencyMillis, o.TokenCount)
	}

	if len(failures) > 0 {
		fmt.Fprintln(c.out)
		c.rule("-")
		_, _ = headingColor.Fprintln(c.out, "FAILED MODELS:")
		c.rule("-")
		for _, o := range failures {
			detail := ""
			if o.ErrorDetail != nil {
				detail = truncate(*o.ErrorDetail, summaryErrLen)
			}
			_, _ = failureColor.Fprintf(c.out, "  ✘ %-25s [%-10s] %-15s %s\n", o.TargetID, o.Route, o.Status, detail)
		}
	}

	fmt.Fprintln(c.out)
	c.rule("=")
}

// Saved reports where the snapshot was written.
func (c *Console) Saved(path string) {
	fmt.Fprintf(c.out, "Results saved to: %s\n", path)
}

// splitOutcomes returns successes ordered by latency (stable, so equal
// latencies keep registry order) and failures in their original order.
func splitOutcomes(outcomes []models.ProbeOutcome) (successes, failures []models.ProbeOutcome) {
	for _, o := range outcomes {
		if o.OK() {
			successes = append(successes, o)
		} else {
			failures = append(failures, o)
		}
	}
	sort.SliceStable(successes, func(i, j int) bool {
		return successes[i].LatencyMillis < successes[j].LatencyMillis
	})
	return successes, failures
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

func mask(secret string, visible int) string {
	if secret == "" {
		return "(not set)"
	}
	runes := []rune(secret)
	if len(runes) <= visible {
		return strings.Repeat("*", len(runes))
	}
	return strings.Repeat("*", 10) + string(runes[len(runes)-visible:])
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
