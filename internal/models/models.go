package models

import (
	"fmt"
	"time"
)

// RoutingPath selects the endpoint/credential pair a target is probed through.
// The value is also the provider tag written into reports.
type RoutingPath string

const (
	// DirectRoute talks to the backend directly and carries admin credentials.
	DirectRoute RoutingPath = "forge"
	// ProxyRoute goes through the LLM proxy with a bearer token only.
	ProxyRoute RoutingPath = "llm-proxy"
)

// Valid reports whether the routing path is one of the known values.
func (r RoutingPath) Valid() bool {
	return r == DirectRoute || r == ProxyRoute
}

// UnmarshalText rejects unknown routing paths when decoding configuration.
func (r *RoutingPath) UnmarshalText(text []byte) error {
	path := RoutingPath(text)
	if !path.Valid() {
		return fmt.Errorf("unknown routing path %q", string(text))
	}
	*r = path
	return nil
}

// ProbeTarget is one model to probe.
type ProbeTarget struct {
	ID    string      `yaml:"id" json:"id"`
	Name  string      `yaml:"name" json:"name"`
	Route RoutingPath `yaml:"route" json:"route"`
}

// RouteConfig holds the endpoint and credentials of a routing path.
type RouteConfig struct {
	EndpointURL     string
	AuthToken       string
	AdminCredential string
	ExtraHeaders    map[string]string
}

// RouteTable maps each routing path to its configuration. It is built once at
// startup and only read afterwards.
type RouteTable map[RoutingPath]RouteConfig

// Status classifies a probe outcome.
type Status string

const (
	// StatusSuccess is a 200 response with a readable body.
	StatusSuccess Status = "success"
	// StatusHTTPError is any response other than 200.
	StatusHTTPError Status = "http_error"
	// StatusTimeout means the probe exceeded its time budget.
	StatusTimeout Status = "timeout"
	// StatusTransportError covers connection failures and unreadable bodies.
	StatusTransportError Status = "transport_error"
)

// ProbeOutcome captures the result of a single probe.
type ProbeOutcome struct {
	TargetID        string      `json:"model"`
	Name            string      `json:"name"`
	Route           RoutingPath `json:"provider"`
	Status          Status      `json:"status"`
	LatencyMillis   float64     `json:"latency_ms"`
	ResponseSnippet *string     `json:"response"`
	TokenCount      int         `json:"tokens"`
	ErrorDetail     *string     `json:"error"`
}

// OK reports whether the probe succeeded.
func (o ProbeOutcome) OK() bool {
	return o.Status == StatusSuccess
}

// LatencyMark names the target behind a latency statistic.
type LatencyMark struct {
	TargetID      string  `json:"model"`
	LatencyMillis float64 `json:"latency_ms"`
}

// SweepReport is the read-only summary of one full pass over the registry.
type SweepReport struct {
	SweepID              string               `json:"sweep_id"`
	Timestamp            time.Time            `json:"timestamp"`
	StartedAt            time.Time            `json:"started_at"`
	DirectRouteURL       string               `json:"forge_api_url"`
	ProxyRouteURL        string               `json:"llm_proxy_url"`
	TotalModels          int                  `json:"total_models"`
	Successful           int                  `json:"successful"`
	Failed               int                  `json:"failed"`
	AverageLatencyMillis *float64             `json:"average_latency_ms,omitempty"`
	Fastest              *LatencyMark         `json:"fastest,omitempty"`
	Slowest              *LatencyMark         `json:"slowest,omitempty"`
	Preflight            []ConnectivityStatus `json:"preflight,omitempty"`
	Results              []ProbeOutcome       `json:"results"`
}

// Batch identifies a group of targets probed concurrently. Index is 1-based.
type Batch struct {
	Index   int           `json:"index"`
	Total   int           `json:"total"`
	Targets []ProbeTarget `json:"targets"`
}
