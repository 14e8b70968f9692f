package config

import (
	"errors"
	"fmt"
	"strings"
)

// FailureKind classifies everything that can go wrong across the pipeline.
// Every adapter or backend error maps to exactly one kind; no error is
// surfaced untyped.
type FailureKind string

const (
	FailClusterNotFound   FailureKind = "cluster_not_found"
	FailLoggingNotEnabled FailureKind = "logging_not_enabled"
	FailNoLogData         FailureKind = "no_log_data_in_window"
	FailTransport         FailureKind = "transport_error"
	FailAccessDenied      FailureKind = "access_denied"
	FailRegionUnsupported FailureKind = "region_unsupported"
	FailInputTooLarge     FailureKind = "input_too_large"
	FailThrottled         FailureKind = "throttled"
	FailTimeout           FailureKind = "timeout"
	FailUnknown           FailureKind = "unknown"
)

// Failure is a typed, user-renderable failure. It implements error so it can
// travel through ordinary error returns; callers recover the type with
// AsFailure.
type Failure struct {
	Kind   FailureKind
	Detail string

	// Categories carries the affected log categories for
	// FailLoggingNotEnabled and FailNoLogData.
	Categories []LogCategory
}

// NewFailure creates a Failure with a formatted detail message.
func NewFailure(kind FailureKind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Detail == "" {
		return string(f.Kind)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Detail)
}

// CategoryNames returns the affected categories as a comma-separated string.
func (f *Failure) CategoryNames() string {
	names := make([]string, len(f.Categories))
	for i, c := range f.Categories {
		names[i] = c.String()
	}
	return strings.Join(names, ", ")
}

// AsFailure unwraps err to a *Failure if one is in the chain.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// FailureOf returns the Failure in err's chain, or wraps err under the given
// fallback kind. A nil err returns nil.
func FailureOf(err error, fallback FailureKind) *Failure {
	if err == nil {
		return nil
	}
	if f, ok := AsFailure(err); ok {
		return f
	}
	return &Failure{Kind: fallback, Detail: err.Error()}
}
