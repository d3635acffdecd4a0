package probe

import (
	"fmt"
	"net/http"

	"modelprobe/internal/models"
)

const (
	// Prompt is the user message sent to every model.
	Prompt = "Hello! Please respond with just 'OK' to confirm you're working."

	maxTokens   = 100
	temperature = 0.7

	headerAPIKey        = "X-API-Key"
	headerAdminPassword = "X-Admin-Password"
)

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the JSON body of a chat completion call.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

// Request describes one outbound probe call.
type Request struct {
	Target models.ProbeTarget
	Method string
	URL    string
	Header http.Header
	Body   ChatRequest
}

// RoutingDirective returns the system message that steers the backend to the
// requested model.
func RoutingDirective(id string) string {
	return fmt.Sprintf("[MODEL_ROUTING] Requested model: %s. Route this request to %s backend. Model identifier: %s", id, id, id)
}

// Build assembles the request for target using the configuration of its route.
func Build(target models.ProbeTarget, route models.RouteConfig) Request {
	header := make(http.Header)
	for name, value := range route.ExtraHeaders {
		if target.Route != models.DirectRoute && isDirectCredential(name) {
			continue
		}
		header.Set(name, value)
	}
	header.Set("Content-Type", "application/json")
	header.Set("Authorization", "Bearer "+route.AuthToken)
	if target.Route == models.DirectRoute {
		header.Set(headerAPIKey, route.AuthToken)
		header.Set(headerAdminPassword, route.AdminCredential)
	}

	return Request{
		Target: target,
		Method: http.MethodPost,
		URL:    route.EndpointURL,
		Header: header,
		Body: ChatRequest{
			Model: target.ID,
			Messages: []Message{
				{Role: "system", Content: RoutingDirective(target.ID)},
				{Role: "user", Content: Prompt},
			},
			MaxTokens:   maxTokens,
			Temperature: temperature,
		},
	}
}

func isDirectCredential(name string) bool {
	canonical := http.CanonicalHeaderKey(name)
	return canonical == http.CanonicalHeaderKey(headerAPIKey) ||
		canonical == http.CanonicalHeaderKey(headerAdminPassword)
}
