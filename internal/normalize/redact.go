package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
)

// Redactor removes sensitive data from log messages before they leave the
// process, while preserving correlation: the same value always gets the same
// placeholder, so the model can still tell that one IP appears in several
// events without seeing the address itself.
type Redactor struct {
	enabled  bool
	patterns []redactionPattern
	hashMap  map[string]string // original value -> placeholder
}

type redactionPattern struct {
	Type  string
	Regex *regexp.Regexp
}

var allPatterns = map[string]redactionPattern{
	"ipv4": {
		Type:  "IPV4",
		Regex: regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
	},
	"email": {
		Type:  "EMAIL",
		Regex: regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
	},
	"token": {
		Type:  "TOKEN",
		Regex: regexp.MustCompile(`\b(?:Bearer\s+|token[=:]\s*)[A-Za-z0-9._\-]{16,}`),
	},
}

// DefaultPatterns returns the pattern names applied when none are configured.
func DefaultPatterns() []string {
	return []string{"ipv4", "email", "token"}
}

// NewRedactor creates a Redactor. If enabled is false, Redact returns text
// unchanged. Unknown pattern names are ignored.
func NewRedactor(enabled bool, patternNames []string) *Redactor {
	if len(patternNames) == 0 {
		patternNames = DefaultPatterns()
	}

	var patterns []redactionPattern
	for _, name := range patternNames {
		if p, ok := allPatterns[name]; ok {
			patterns = append(patterns, p)
		}
	}

	return &Redactor{
		enabled:  enabled,
		patterns: patterns,
		hashMap:  make(map[string]string),
	}
}

// Redact replaces sensitive values with correlation-preserving placeholders.
//
//	"request from 10.0.1.5 denied" -> "request from [IPV4:a3f2] denied"
func (r *Redactor) Redact(text string) string {
	if !r.enabled {
		return text
	}

	result := text
	for _, pattern := range r.patterns {
		result = pattern.Regex.ReplaceAllStringFunc(result, func(match string) string {
			return r.placeholder(match, pattern.Type)
		})
	}
	return result
}

func (r *Redactor) placeholder(value, patternType string) string {
	if p, ok := r.hashMap[value]; ok {
		return p
	}

	h := sha256.Sum256([]byte(value))
	p := fmt.Sprintf("[%s:%s]", patternType, hex.EncodeToString(h[:2]))
	r.hashMap[value] = p
	return p
}

// RedactedCount returns how many distinct values have been redacted so far.
func (r *Redactor) RedactedCount() int {
	return len(r.hashMap)
}
