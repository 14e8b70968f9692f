package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/bimmerbailey/eksight/internal/budget"
	"github.com/bimmerbailey/eksight/internal/config"
	"github.com/bimmerbailey/eksight/internal/eks"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"json", FormatJSON},
		{"JSON", FormatJSON},
		{"table", FormatTable},
		{"text", FormatText},
		{"", FormatText},
		{"bogus", FormatText},
	}
	for _, tt := range tests {
		if got := ParseFormat(tt.in); got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWriteAnswerText(t *testing.T) {
	var buf bytes.Buffer
	wr := New(&buf, FormatText).WithColor(ColorNever)

	err := wr.WriteAnswer(Answer{
		Cluster:   "prod-cluster",
		Question:  "what failed?",
		Answer:    "The scheduler crashed at 14:02.",
		Model:     "anthropic.claude-3-sonnet-20240229-v1:0",
		TokensIn:  1200,
		TokensOut: 80,
	})
	if err != nil {
		t.Fatalf("WriteAnswer() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "The scheduler crashed at 14:02.") {
		t.Errorf("output missing answer:\n%s", out)
	}
	if !strings.Contains(out, "1200 tokens in") {
		t.Errorf("output missing token accounting:\n%s", out)
	}
}

func TestWriteAnswerJSON(t *testing.T) {
	var buf bytes.Buffer
	wr := New(&buf, FormatJSON)

	if err := wr.WriteAnswer(Answer{Cluster: "prod-cluster", Question: "q", Answer: "a"}); err != nil {
		t.Fatalf("WriteAnswer() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded["cluster"] != "prod-cluster" || decoded["answer"] != "a" {
		t.Errorf("decoded = %v", decoded)
	}
}

func TestWriteClustersTable(t *testing.T) {
	var buf bytes.Buffer
	wr := New(&buf, FormatTable)

	err := wr.WriteClusters([]eks.ClusterInfo{
		{Name: "prod-cluster", Status: "ACTIVE", Version: "1.29",
			EnabledCategories: []config.LogCategory{config.CategoryAPI, config.CategoryAudit}},
		{Name: "dev-cluster", Status: "ACTIVE", Version: "1.28"},
	})
	if err != nil {
		t.Fatalf("WriteClusters() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"NAME", "prod-cluster", "api,audit", "dev-cluster", "none"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestWriteFailureWithRemediation(t *testing.T) {
	var buf bytes.Buffer
	wr := New(&buf, FormatText).WithColor(ColorNever)

	f := config.NewFailure(config.FailLoggingNotEnabled, "cluster prod ships none of the requested log categories")
	if err := wr.WriteFailure(f); err != nil {
		t.Fatalf("WriteFailure() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "error: cluster prod") {
		t.Errorf("output missing failure detail:\n%s", out)
	}
	if !strings.Contains(out, "aws eks update-cluster-config") {
		t.Errorf("output missing enable-logging command:\n%s", out)
	}
}

func TestWriteFailureJSONIncludesRemediation(t *testing.T) {
	var buf bytes.Buffer
	wr := New(&buf, FormatJSON)

	f := config.NewFailure(config.FailNoLogData, "no log events found")
	if err := wr.WriteFailure(f); err != nil {
		t.Fatalf("WriteFailure() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["kind"] != "no_log_data_in_window" {
		t.Errorf("kind = %v", decoded["kind"])
	}
	if rem, _ := decoded["remediation"].(string); !strings.Contains(rem, "widen it with --since") {
		t.Errorf("remediation = %q, want window guidance", rem)
	}
}

func TestWriteContextSummary(t *testing.T) {
	records := []config.LogRecord{
		{Timestamp: time.Date(2024, 2, 13, 12, 0, 0, 0, time.UTC), Category: config.CategoryAPI, Message: "ok"},
		{Timestamp: time.Date(2024, 2, 13, 12, 1, 0, 0, time.UTC), Category: config.CategoryAudit, Message: "ok"},
	}
	bc := budget.Build(records, 150, 24000)
	bc.Window = config.TimeWindow{
		Start: time.Date(2024, 2, 13, 12, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 2, 13, 14, 0, 0, 0, time.UTC),
	}

	var buf bytes.Buffer
	wr := New(&buf, FormatText).WithColor(ColorNever)
	if err := wr.WriteContextSummary("prod-cluster", bc); err != nil {
		t.Fatalf("WriteContextSummary() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "2 events") {
		t.Errorf("summary missing event count:\n%s", out)
	}
	if !strings.Contains(out, "api=1 audit=1") {
		t.Errorf("summary missing category breakdown:\n%s", out)
	}
	if strings.Contains(out, "limited") {
		t.Errorf("summary mentions truncation for an untruncated context:\n%s", out)
	}
}

func TestRemediationPerKind(t *testing.T) {
	hinted := []config.FailureKind{
		config.FailLoggingNotEnabled,
		config.FailNoLogData,
		config.FailClusterNotFound,
		config.FailAccessDenied,
		config.FailRegionUnsupported,
		config.FailThrottled,
		config.FailInputTooLarge,
	}
	for _, kind := range hinted {
		f := config.NewFailure(kind, "detail")
		if Remediation(f) == "" {
			t.Errorf("Remediation(%v) empty, want guidance", kind)
		}
	}
	if got := Remediation(config.NewFailure(config.FailUnknown, "detail")); got != "" {
		t.Errorf("Remediation(unknown) = %q, want empty", got)
	}
}

func TestPaintRespectsColorMode(t *testing.T) {
	var buf bytes.Buffer

	always := New(&buf, FormatText).WithColor(ColorAlways)
	if got := always.paint(colorRed, "boom"); got != colorRed+"boom"+colorReset {
		t.Errorf("paint(always) = %q", got)
	}

	never := New(&buf, FormatText).WithColor(ColorNever)
	if got := never.paint(colorRed, "boom"); got != "boom" {
		t.Errorf("paint(never) = %q", got)
	}

	// bytes.Buffer is not a terminal, auto stays plain
	auto := New(&buf, FormatText).WithColor(ColorAuto)
	if got := auto.paint(colorRed, "boom"); got != "boom" {
		t.Errorf("paint(auto, buffer) = %q", got)
	}
}
