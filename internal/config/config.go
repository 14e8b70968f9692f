// Package config provides configuration types and shared domain types for eksight.
package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Config holds the application-wide configuration.
type Config struct {
	Region    string          `mapstructure:"region"`
	Format    string          `mapstructure:"format"`
	Verbose   bool            `mapstructure:"verbose"`
	Logs      LogsConfig      `mapstructure:"logs"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Redaction RedactionConfig `mapstructure:"redaction"`
}

// LogsConfig holds settings for log retrieval and context budgeting.
type LogsConfig struct {
	// HoursBack is the default lookback window when no explicit range is given
	HoursBack int `mapstructure:"hours_back"`

	// Categories restricts retrieval to these log categories; empty means
	// every category the cluster has enabled
	Categories []string `mapstructure:"categories"`

	// MaxRecords caps how many records end up in the budgeted context
	MaxRecords int `mapstructure:"max_records"`

	// MaxChars caps the serialized size of the budgeted context
	MaxChars int `mapstructure:"max_chars"`

	// MaxEventsPerCategory bounds how many raw events the adapter fetches
	// per category, independent of the budgeter's cap
	MaxEventsPerCategory int `mapstructure:"max_events_per_category"`
}

// LLMConfig holds configuration for inference providers.
type LLMConfig struct {
	// Provider selects which backend to use: "bedrock" or "ollama"
	Provider string `mapstructure:"provider"`

	// Global settings applied to all providers
	Temperature     float32       `mapstructure:"temperature"`
	MaxAnswerTokens int           `mapstructure:"max_answer_tokens"`
	QuestionTimeout time.Duration `mapstructure:"question_timeout"`

	// Provider-specific configuration
	Bedrock BedrockConfig `mapstructure:"bedrock"`
	Ollama  OllamaConfig  `mapstructure:"ollama"`
}

// BedrockConfig holds Bedrock-specific settings.
type BedrockConfig struct {
	ModelID string `mapstructure:"model_id"` // e.g. "anthropic.claude-3-sonnet-20240229-v1:0"
}

// OllamaConfig holds Ollama-specific settings.
type OllamaConfig struct {
	Host  string `mapstructure:"host"`  // API endpoint
	Model string `mapstructure:"model"` // Default model name
}

// RedactionConfig controls secret redaction of log messages before they
// leave the process.
type RedactionConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Patterns selects which redaction patterns to use.
	// Available: ipv4, email, token
	Patterns []string `mapstructure:"patterns"`
}

// LogCategory identifies one EKS control-plane log stream family.
// Values match the EKS API log type names.
type LogCategory string

const (
	CategoryAPI               LogCategory = "api"
	CategoryAudit             LogCategory = "audit"
	CategoryAuthenticator     LogCategory = "authenticator"
	CategoryControllerManager LogCategory = "controllerManager"
	CategoryScheduler         LogCategory = "scheduler"
)

// AllCategories returns every known log category in stable order.
func AllCategories() []LogCategory {
	return []LogCategory{
		CategoryAPI,
		CategoryAudit,
		CategoryAuthenticator,
		CategoryControllerManager,
		CategoryScheduler,
	}
}

// String returns the EKS API name of the category.
func (c LogCategory) String() string {
	return string(c)
}

// ParseCategory converts a string to a LogCategory.
// Accepts the EKS API names plus common lowercase aliases.
func ParseCategory(s string) (LogCategory, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "api", "apiserver", "kube-apiserver":
		return CategoryAPI, nil
	case "audit":
		return CategoryAudit, nil
	case "authenticator", "auth":
		return CategoryAuthenticator, nil
	case "controllermanager", "controller-manager":
		return CategoryControllerManager, nil
	case "scheduler":
		return CategoryScheduler, nil
	default:
		return "", fmt.Errorf("unknown log category: %s (must be one of: api, audit, authenticator, controllerManager, scheduler)", s)
	}
}

// ParseCategories converts a list of strings to categories, deduplicating
// while preserving first-seen order.
func ParseCategories(ss []string) ([]LogCategory, error) {
	seen := make(map[LogCategory]struct{})
	out := make([]LogCategory, 0, len(ss))
	for _, s := range ss {
		c, err := ParseCategory(s)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out, nil
}

// MarshalJSON implements json.Marshaler for LogCategory.
func (c LogCategory) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(c))
}

// LogRecord is a normalized control-plane log record. Timestamp is always
// present; Fields is a best-effort parse of the payload and may be empty.
type LogRecord struct {
	Timestamp time.Time         `json:"timestamp"`
	Category  LogCategory       `json:"category"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// TimeWindow is the [Start, End) range of log timestamps considered for a
// session.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate checks that the window is well-formed.
func (w TimeWindow) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return fmt.Errorf("time window requires both start and end")
	}
	if !w.End.After(w.Start) {
		return fmt.Errorf("time window end %s is not after start %s",
			w.End.Format(time.RFC3339), w.Start.Format(time.RFC3339))
	}
	return nil
}

// WindowHoursBack returns a window ending now and starting the given number
// of hours earlier.
func WindowHoursBack(hours int) TimeWindow {
	end := time.Now().UTC()
	return TimeWindow{Start: end.Add(-time.Duration(hours) * time.Hour), End: end}
}

// String renders the window for display and prompt headers.
func (w TimeWindow) String() string {
	const layout = "2006-01-02 15:04:05 MST"
	return fmt.Sprintf("%s to %s", w.Start.Format(layout), w.End.Format(layout))
}
