package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// BackendSpec describes one model backend in the verifier roster.
type BackendSpec struct {
	Name      string `yaml:"name" validate:"required"`
	Provider  string `yaml:"provider" validate:"required,oneof=openai anthropic"`
	Model     string `yaml:"model" validate:"required"`
	BaseURL   string `yaml:"baseUrl" validate:"omitempty,url"`
	APIKeyEnv string `yaml:"apiKeyEnv"`
}

// APIKey resolves the backend's key from its configured env var, falling back
// to the provider default.
func (b BackendSpec) APIKey(cfg Config) string {
	if b.APIKeyEnv != "" {
		if v := strings.TrimSpace(os.Getenv(b.APIKeyEnv)); v != "" {
			return v
		}
	}
	switch b.Provider {
	case "anthropic":
		return cfg.AnthropicAPIKey
	default:
		return cfg.OpenAIAPIKey
	}
}

type rosterFile struct {
	Backends []BackendSpec `yaml:"backends" validate:"required,min=1,dive"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadRoster reads the verifier roster. Without a roster file it falls back to
// the backends whose API keys are present.
func LoadRoster(cfg Config) ([]BackendSpec, error) {
	if strings.TrimSpace(cfg.ModelRosterFile) == "" {
		return DefaultRoster(cfg), nil
	}
	raw, err := os.ReadFile(cfg.ModelRosterFile)
	if err != nil {
		return nil, fmt.Errorf("read model roster %s: %w", cfg.ModelRosterFile, err)
	}
	return ParseRoster(raw)
}

// ParseRoster decodes and validates a YAML roster document.
func ParseRoster(raw []byte) ([]BackendSpec, error) {
	var doc rosterFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse model roster: %w", err)
	}
	for i := range doc.Backends {
		doc.Backends[i].Provider = strings.ToLower(strings.TrimSpace(doc.Backends[i].Provider))
	}
	if err := validate.Struct(doc); err != nil {
		return nil, fmt.Errorf("validate model roster: %w", err)
	}
	seen := make(map[string]struct{}, len(doc.Backends))
	for _, b := range doc.Backends {
		if _, dup := seen[b.Name]; dup {
			return nil, fmt.Errorf("validate model roster: duplicate backend %q", b.Name)
		}
		seen[b.Name] = struct{}{}
	}
	return doc.Backends, nil
}

// DefaultRoster lists the built-in backends whose credentials are configured.
func DefaultRoster(cfg Config) []BackendSpec {
	var out []BackendSpec
	if cfg.OpenAIAPIKey != "" {
		out = append(out,
			BackendSpec{Name: "gpt-4o-mini", Provider: "openai", Model: "gpt-4o-mini", BaseURL: cfg.OpenAIBaseURL},
			BackendSpec{Name: "gpt-4o", Provider: "openai", Model: "gpt-4o", BaseURL: cfg.OpenAIBaseURL},
		)
	}
	if cfg.AnthropicAPIKey != "" {
		out = append(out, BackendSpec{Name: "claude-haiku", Provider: "anthropic", Model: "claude-haiku-4-5"})
	}
	return out
}
