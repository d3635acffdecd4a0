// Package registry holds the catalogue of models probed by a sweep.
package registry

import (
	"errors"
	"fmt"

	"modelprobe/internal/models"
)

var (
	// ErrEmptyRegistry is returned when no targets are defined.
	ErrEmptyRegistry = errors.New("registry must define at least one target")
	// ErrDuplicateTarget is returned when two targets share an id.
	ErrDuplicateTarget = errors.New("duplicate target id")
)

func proxy(id, name string) models.ProbeTarget {
	return models.ProbeTarget{ID: id, Name: name, Route: models.ProxyRoute}
}

func direct(id, name string) models.ProbeTarget {
	return models.ProbeTarget{ID: id, Name: name, Route: models.DirectRoute}
}

var defaultTargets = []models.ProbeTarget{
	// served by the LLM proxy
	proxy("gpt-4.1-mini", "GPT-4.1 Mini"),
	proxy("gpt-4.1-nano", "GPT-4.1 Nano"),

	// OpenAI
	direct("gpt-4o", "GPT-4o"),
	direct("gpt-4o-mini", "GPT-4o Mini"),
	direct("gpt-4-turbo", "GPT-4 Turbo"),
	direct("gpt-3.5-turbo", "GPT-3.5 Turbo"),
	direct("o1-mini", "O1 Mini"),

	// Google
	direct("gemini-2.5-flash", "Gemini 2.5 Flash"),
	direct("gemini-2.5-pro", "Gemini 2.5 Pro"),
	direct("gemini-1.5-pro", "Gemini 1.5 Pro"),
	direct("gemini-1.5-flash", "Gemini 1.5 Flash"),

	// Anthropic
	direct("claude-3.5-sonnet", "Claude 3.5 Sonnet"),
	direct("claude-3-opus", "Claude 3 Opus"),
	direct("claude-3-sonnet", "Claude 3 Sonnet"),
	direct("claude-3-haiku", "Claude 3 Haiku"),

	// Meta
	direct("llama-3.3-70b", "Llama 3.3 70B"),
	direct("llama-3.1-405b", "Llama 3.1 405B"),
	direct("llama-3.1-70b", "Llama 3.1 70B"),
	direct("llama-3.1-8b", "Llama 3.1 8B"),

	// Mistral
	direct("mistral-large", "Mistral Large"),
	direct("mistral-small", "Mistral Small"),
	direct("mixtral-8x7b", "Mixtral 8x7B"),
	direct("mixtral-8x22b", "Mixtral 8x22B"),
	direct("codestral", "Codestral"),

	// DeepSeek
	direct("deepseek-v3", "DeepSeek V3"),
	direct("deepseek-v2.5", "DeepSeek V2.5"),
	direct("deepseek-coder", "DeepSeek Coder"),

	// others
	direct("grok-2", "Grok 2"),
	direct("command-r-plus", "Command R+"),
	direct("command-r", "Command R"),
	direct("qwen-2.5-72b", "Qwen 2.5 72B"),
}

// Targets returns the built-in targets in declaration order. The returned
// slice is a copy and may be modified by the caller.
func Targets() []models.ProbeTarget {
	out := make([]models.ProbeTarget, len(defaultTargets))
	copy(out, defaultTargets)
	return out
}

// Validate checks that ids are present and unique and that every target uses
// a known routing path.
func Validate(targets []models.ProbeTarget) error {
	if len(targets) == 0 {
		return ErrEmptyRegistry
	}
	seen := make(map[string]struct{}, len(targets))
	for i, t := range targets {
		if t.ID == "" {
			return fmt.Errorf("target %d is missing id", i)
		}
		if !t.Route.Valid() {
			return fmt.Errorf("target %s has unknown route %q", t.ID, t.Route)
		}
		if _, ok := seen[t.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateTarget, t.ID)
		}
		seen[t.ID] = struct{}{}
	}
	return nil
}
