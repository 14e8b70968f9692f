// Package normalize converts raw control-plane log events into uniform
// records.
//
// Normalization is a total function: a malformed payload still produces a
// record (empty fields, message truncated to the cap) because a garbled
// record is itself evidence worth surfacing. Timestamp extraction tries the
// category's own payload format first and falls back to the event's
// ingestion time, so every record carries a timestamp.
package normalize

import (
	"log/slog"
	"unicode/utf8"

	"github.com/bimmerbailey/eksight/internal/config"
	"github.com/bimmerbailey/eksight/internal/logsource"
)

// MaxMessageChars caps each record's message to bound downstream budgeting
// cost.
const MaxMessageChars = 500

// payloadParser extracts a timestamp and structured fields from one
// category's payload format. Implementations must tolerate arbitrary input.
type payloadParser interface {
	// Parse returns the payload's own timestamp (zero if unparseable) and
	// a best-effort string field mapping (nil or empty if none).
	Parse(message string) (parsed parsedPayload)
}

// Normalizer converts raw records to normalized ones using per-category
// parsers.
type Normalizer struct {
	parsers  map[config.LogCategory]payloadParser
	fallback payloadParser
	redactor *Redactor
	logger   *slog.Logger
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithRedaction enables secret redaction of messages using the named
// patterns. An empty pattern list uses the defaults.
func WithRedaction(enabled bool, patterns []string) Option {
	return func(n *Normalizer) {
		n.redactor = NewRedactor(enabled, patterns)
	}
}

// New creates a Normalizer with the standard per-category parsers:
// JSON for api and audit payloads, klog headers for the rest.
func New(logger *slog.Logger, opts ...Option) *Normalizer {
	jsonP := &jsonParser{}
	klogP := &klogParser{}

	n := &Normalizer{
		parsers: map[config.LogCategory]payloadParser{
			config.CategoryAPI:               jsonP,
			config.CategoryAudit:             jsonP,
			config.CategoryAuthenticator:     klogP,
			config.CategoryControllerManager: klogP,
			config.CategoryScheduler:         klogP,
		},
		fallback: rawParser{},
		redactor: NewRedactor(false, nil),
		logger:   logger,
	}

	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize converts one raw record. It never fails.
func (n *Normalizer) Normalize(raw logsource.RawRecord) config.LogRecord {
	parser, ok := n.parsers[raw.Category]
	if !ok {
		parser = n.fallback
	}

	parsed := parser.Parse(raw.Message)

	ts := parsed.Timestamp
	if ts.IsZero() {
		ts = raw.IngestTime
	}

	msg := n.redactor.Redact(truncate(raw.Message, MaxMessageChars))

	return config.LogRecord{
		Timestamp: ts.UTC(),
		Category:  raw.Category,
		Message:   msg,
		Fields:    parsed.Fields,
	}
}

// truncate cuts s to at most limit bytes, backing up to a rune boundary so
// the tail stays valid UTF-8.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

// NormalizeAll converts a batch, preserving source order.
func (n *Normalizer) NormalizeAll(raws []logsource.RawRecord) []config.LogRecord {
	out := make([]config.LogRecord, len(raws))
	for i, raw := range raws {
		out[i] = n.Normalize(raw)
	}
	return out
}
