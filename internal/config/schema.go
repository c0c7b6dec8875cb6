package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/salmonumbrella/llmctl/internal/provider"
)

// ProviderSchema is the JSON schema every stored provider must satisfy.
const ProviderSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "name"],
  "properties": {
    "id": {"type": "string", "pattern": "^[a-z0-9][a-z0-9_-]{0,63}$"},
    "name": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "type": {"type": "string"},
    "baseUrl": {"type": "string", "pattern": "^https?://"},
    "apiKey": {"type": "string"},
    "modelName": {"type": "string"},
    "maxTokens": {"type": "integer", "minimum": 1},
    "temperature": {"type": "number", "minimum": 0, "maximum": 2},
    "extraHeaders": {"type": "object", "additionalProperties": {"type": "string"}},
    "envVars": {"type": "object", "additionalProperties": {"type": "string"}},
    "tokens": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["value"],
        "properties": {
          "value": {"type": "string", "minLength": 1},
          "alias": {"type": "string"},
          "weight": {"type": "integer", "minimum": 0, "maximum": 10},
          "enabled": {"type": "boolean"},
          "healthy": {"type": "boolean"},
          "lastUsed": {"type": "integer", "minimum": 0}
        }
      }
    },
    "tokenStrategy": {
      "type": "object",
      "required": ["type"],
      "properties": {
        "type": {"enum": ["round-robin", "weighted", "random", "least-used"]},
        "fallbackOnError": {"type": "boolean"}
      }
    }
  }
}`

var providerSchemaLoader = gojsonschema.NewStringLoader(ProviderSchema)

// ValidationReport is the outcome of checking a whole config.
type ValidationReport struct {
	Valid     bool                         `json:"valid"`
	Errors    []string                     `json:"errors"`
	Warnings  []string                     `json:"warnings"`
	Providers map[string]provider.Problems `json:"providers,omitempty"`
}

// ValidateProvider checks one provider against the schema and the provider rules.
func ValidateProvider(p *provider.Provider) provider.Problems {
	probs := provider.Check(p)
	if err := validateSchema(p); err != nil {
		probs.Errors = append([]string{err.Error()}, probs.Errors...)
	}
	return probs
}

func validateSchema(p *provider.Provider) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("cannot encode provider: %w", err)
	}

	result, err := gojsonschema.Validate(providerSchemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("schema: %s", strings.Join(msgs, "; "))
}

// Validate checks config-level rules and every provider.
func Validate(c *Config) ValidationReport {
	report := ValidationReport{
		Errors:    []string{},
		Warnings:  []string{},
		Providers: map[string]provider.Problems{},
	}

	seen := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if seen[p.ID] {
			report.Errors = append(report.Errors, fmt.Sprintf("duplicate provider id %q", p.ID))
		}
		seen[p.ID] = true
		report.Providers[p.ID] = ValidateProvider(p)
	}

	if c.ActiveProvider != "" && !seen[c.ActiveProvider] {
		report.Errors = append(report.Errors, fmt.Sprintf("active provider %q does not exist", c.ActiveProvider))
	}
	if len(c.Providers) == 0 {
		report.Warnings = append(report.Warnings, "no providers configured")
	}
	switch c.GetSessionBackend() {
	case BackendFile, BackendSQLite:
	default:
		report.Errors = append(report.Errors, fmt.Sprintf("unknown session_backend %q", c.SessionBackend))
	}

	report.Valid = len(report.Errors) == 0
	for _, probs := range report.Providers {
		if !probs.OK() {
			report.Valid = false
		}
	}
	return report
}
