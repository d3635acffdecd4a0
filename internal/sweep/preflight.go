package sweep

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sort"
	"time"

	"modelprobe/internal/models"
)

const defaultPreflightTimeout = 4 * time.Second

// Preflight dials the host of every route endpoint and reports whether it
// accepts TCP connections. It is informational only; the sweep runs either
// way.
func Preflight(ctx context.Context, routes models.RouteTable, timeout time.Duration) []models.ConnectivityStatus {
	if timeout <= 0 {
		timeout = defaultPreflightTimeout
	}

	paths := make([]string, 0, len(routes))
	for path := range routes {
		paths = append(paths, string(path))
	}
	sort.Strings(paths)

	statuses := make([]models.ConnectivityStatus, 0, len(paths))
	for _, path := range paths {
		route := models.RoutingPath(path)
		statuses = append(statuses, dialEndpoint(ctx, route, routes[route].EndpointURL, timeout))
	}
	return statuses
}

func dialEndpoint(ctx context.Context, route models.RoutingPath, endpoint string, timeout time.Duration) models.ConnectivityStatus {
	status := models.ConnectivityStatus{
		Route:     route,
		Target:    endpoint,
		CheckedAt: time.Now().UTC(),
	}

	address, err := endpointAddress(endpoint)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.Target = address

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	var dialer net.Dialer
	conn, err := dialer.DialContext(dialCtx, "tcp", address)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.OK = true
	status.LatencyMs = int64(time.Since(started) / time.Millisecond)
	_ = conn.Close()
	return status
}

func endpointAddress(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("endpoint %q has no host", endpoint)
	}
	if u.Port() != "" {
		return u.Host, nil
	}
	port := "443"
	if u.Scheme == "http" {
		port = "80"
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}
