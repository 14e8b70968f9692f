package config

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestFailureError(t *testing.T) {
	f := NewFailure(FailAccessDenied, "model %s not entitled", "claude")
	if !strings.Contains(f.Error(), "access_denied") {
		t.Errorf("error string should contain kind, got %q", f.Error())
	}
	if !strings.Contains(f.Error(), "claude") {
		t.Errorf("error string should contain detail, got %q", f.Error())
	}
}

func TestAsFailureUnwrapsChain(t *testing.T) {
	inner := NewFailure(FailThrottled, "rate exceeded")
	wrapped := fmt.Errorf("invoking model: %w", inner)

	f, ok := AsFailure(wrapped)
	if !ok {
		t.Fatal("expected to find Failure in wrapped chain")
	}
	if f.Kind != FailThrottled {
		t.Errorf("expected throttled kind, got %s", f.Kind)
	}
}

func TestAsFailurePlainError(t *testing.T) {
	if _, ok := AsFailure(errors.New("plain")); ok {
		t.Error("plain error should not be a Failure")
	}
}

func TestFailureOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{"nil error", nil, ""},
		{"existing failure kept", NewFailure(FailTimeout, "deadline"), FailTimeout},
		{"plain error wrapped", errors.New("connection refused"), FailTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FailureOf(tt.err, FailTransport)
			if tt.err == nil {
				if got != nil {
					t.Fatal("nil error should yield nil Failure")
				}
				return
			}
			if got.Kind != tt.want {
				t.Errorf("expected kind %s, got %s", tt.want, got.Kind)
			}
		})
	}
}

func TestFailureCategoryNames(t *testing.T) {
	f := &Failure{
		Kind:       FailLoggingNotEnabled,
		Categories: []LogCategory{CategoryAPI, CategoryAudit},
	}
	if got := f.CategoryNames(); got != "api, audit" {
		t.Errorf("CategoryNames() = %q, want %q", got, "api, audit")
	}
}
