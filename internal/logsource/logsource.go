// Package logsource retrieves raw EKS control-plane log events from
// CloudWatch Logs.
//
// For each requested log category the adapter discovers the matching log
// streams, fetches events inside the time window, and reports one of three
// outcomes: records, "stream not found" (the category never shipped logs),
// or "empty in window". The distinction matters downstream: a missing stream
// gets remediation guidance, an empty window does not.
package logsource

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/smithy-go"

	"github.com/bimmerbailey/eksight/internal/config"
)

// API is the subset of the CloudWatch Logs client used by the adapter.
type API interface {
	DescribeLogStreams(ctx context.Context, params *cloudwatchlogs.DescribeLogStreamsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogStreamsOutput, error)
	FilterLogEvents(ctx context.Context, params *cloudwatchlogs.FilterLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.FilterLogEventsOutput, error)
}

// RawRecord is one log event as stored, before normalization. The payload
// schema depends on the category and is not validated here.
type RawRecord struct {
	Stream     string
	Category   config.LogCategory
	IngestTime time.Time
	Message    string
}

// Status reports the outcome of fetching one category.
type Status int

const (
	// StatusOK means at least one record was retrieved.
	StatusOK Status = iota

	// StatusStreamMissing means the log group or the category's streams do
	// not exist. Usually the category was never enabled on the cluster.
	StatusStreamMissing

	// StatusEmpty means streams exist but held no events in the window.
	StatusEmpty
)

// CategoryResult holds the records fetched for one category.
type CategoryResult struct {
	Category config.LogCategory
	Status   Status
	Records  []RawRecord
}

// Options bounds adapter-side cost independent of downstream budgeting.
type Options struct {
	// MaxEventsPerCategory caps total raw events fetched per category.
	MaxEventsPerCategory int

	// StreamsDescribed is how many streams to consider per category,
	// newest first.
	StreamsDescribed int

	// StreamsFetched is how many of the described streams to actually read.
	StreamsFetched int
}

// DefaultOptions returns the adapter's standard bounds.
func DefaultOptions() Options {
	return Options{
		MaxEventsPerCategory: 2000,
		StreamsDescribed:     5,
		StreamsFetched:       3,
	}
}

// Adapter queries CloudWatch Logs for control-plane log events.
type Adapter struct {
	api    API
	opts   Options
	logger *slog.Logger
}

// New creates an adapter over an authenticated CloudWatch Logs handle.
func New(api API, opts Options, logger *slog.Logger) *Adapter {
	if opts.MaxEventsPerCategory <= 0 {
		opts.MaxEventsPerCategory = DefaultOptions().MaxEventsPerCategory
	}
	if opts.StreamsDescribed <= 0 {
		opts.StreamsDescribed = DefaultOptions().StreamsDescribed
	}
	if opts.StreamsFetched <= 0 {
		opts.StreamsFetched = DefaultOptions().StreamsFetched
	}
	return &Adapter{api: api, opts: opts, logger: logger}
}

// LogGroupName returns the CloudWatch log group for an EKS cluster.
func LogGroupName(cluster string) string {
	return "/aws/eks/" + cluster + "/cluster"
}

// streamPrefix maps a category to its control-plane stream name prefix.
// The api prefix also matches audit streams; fetchCategory filters those out.
func streamPrefix(c config.LogCategory) string {
	switch c {
	case config.CategoryAPI:
		return "kube-apiserver-"
	case config.CategoryAudit:
		return "kube-apiserver-audit-"
	case config.CategoryAuthenticator:
		return "authenticator-"
	case config.CategoryControllerManager:
		return "kube-controller-manager-"
	case config.CategoryScheduler:
		return "kube-scheduler-"
	default:
		return string(c) + "-"
	}
}

// Fetch retrieves raw records for every requested category within the window.
// Categories are fetched concurrently; result order matches the input order.
// An invalid window yields empty results, not an error. Transport and auth
// errors abort the fetch with a typed failure.
func (a *Adapter) Fetch(ctx context.Context, cluster string, categories []config.LogCategory, window config.TimeWindow) ([]CategoryResult, error) {
	results := make([]CategoryResult, len(categories))

	if err := window.Validate(); err != nil {
		a.logger.Debug("invalid time window, returning empty results", "error", err)
		for i, c := range categories {
			results[i] = CategoryResult{Category: c, Status: StatusEmpty}
		}
		return results, nil
	}

	errs := make([]error, len(categories))
	var wg sync.WaitGroup
	for i, c := range categories {
		wg.Add(1)
		go func(i int, c config.LogCategory) {
			defer wg.Done()
			results[i], errs[i] = a.fetchCategory(ctx, cluster, c, window)
		}(i, c)
	}
	wg.Wait()

	// First error in input order, for determinism.
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (a *Adapter) fetchCategory(ctx context.Context, cluster string, category config.LogCategory, window config.TimeWindow) (CategoryResult, error) {
	result := CategoryResult{Category: category}

	streams, err := a.describeStreams(ctx, cluster, category)
	if err != nil {
		if isNotFound(err) {
			a.logger.Debug("log streams not found", "cluster", cluster, "category", category)
			result.Status = StatusStreamMissing
			return result, nil
		}
		return result, classify(err, category)
	}
	if len(streams) == 0 {
		result.Status = StatusStreamMissing
		return result, nil
	}

	if len(streams) > a.opts.StreamsFetched {
		streams = streams[:a.opts.StreamsFetched]
	}

	records, err := a.filterEvents(ctx, cluster, category, streams, window)
	if err != nil {
		return result, classify(err, category)
	}

	if len(records) == 0 {
		result.Status = StatusEmpty
		return result, nil
	}

	result.Status = StatusOK
	result.Records = records
	a.logger.Debug("fetched category",
		"category", category,
		"streams", len(streams),
		"records", len(records))
	return result, nil
}

// describeStreams returns the category's stream names, most recent first.
func (a *Adapter) describeStreams(ctx context.Context, cluster string, category config.LogCategory) ([]string, error) {
	out, err := a.api.DescribeLogStreams(ctx, &cloudwatchlogs.DescribeLogStreamsInput{
		LogGroupName:        aws.String(LogGroupName(cluster)),
		LogStreamNamePrefix: aws.String(streamPrefix(category)),
		Limit:               aws.Int32(50),
	})
	if err != nil {
		return nil, err
	}

	streams := out.LogStreams
	if category == config.CategoryAPI {
		streams = excludeAuditStreams(streams)
	}

	// DescribeLogStreams cannot order by event time when a prefix is set.
	sort.SliceStable(streams, func(i, j int) bool {
		return lastEvent(streams[i]) > lastEvent(streams[j])
	})

	if len(streams) > a.opts.StreamsDescribed {
		streams = streams[:a.opts.StreamsDescribed]
	}

	names := make([]string, 0, len(streams))
	for _, s := range streams {
		if s.LogStreamName != nil {
			names = append(names, *s.LogStreamName)
		}
	}
	return names, nil
}

// filterEvents reads events from the given streams, paginating until the
// window is exhausted or the per-category cap is hit.
func (a *Adapter) filterEvents(ctx context.Context, cluster string, category config.LogCategory, streams []string, window config.TimeWindow) ([]RawRecord, error) {
	var records []RawRecord
	var nextToken *string

	for len(records) < a.opts.MaxEventsPerCategory {
		remaining := a.opts.MaxEventsPerCategory - len(records)
		limit := int32(remaining)
		if limit > 10000 {
			limit = 10000
		}

		out, err := a.api.FilterLogEvents(ctx, &cloudwatchlogs.FilterLogEventsInput{
			LogGroupName:   aws.String(LogGroupName(cluster)),
			LogStreamNames: streams,
			StartTime:      aws.Int64(window.Start.UnixMilli()),
			EndTime:        aws.Int64(window.End.UnixMilli()),
			Limit:          aws.Int32(limit),
			NextToken:      nextToken,
		})
		if err != nil {
			return nil, err
		}

		for _, ev := range out.Events {
			records = append(records, toRawRecord(ev, category))
		}

		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}

	return records, nil
}

func toRawRecord(ev cwtypes.FilteredLogEvent, category config.LogCategory) RawRecord {
	r := RawRecord{Category: category}
	if ev.LogStreamName != nil {
		r.Stream = *ev.LogStreamName
	}
	if ev.Message != nil {
		r.Message = *ev.Message
	}
	switch {
	case ev.IngestionTime != nil:
		r.IngestTime = time.UnixMilli(*ev.IngestionTime).UTC()
	case ev.Timestamp != nil:
		r.IngestTime = time.UnixMilli(*ev.Timestamp).UTC()
	}
	return r
}

func excludeAuditStreams(streams []cwtypes.LogStream) []cwtypes.LogStream {
	out := streams[:0:0]
	for _, s := range streams {
		if s.LogStreamName != nil && strings.Contains(*s.LogStreamName, "kube-apiserver-audit-") {
			continue
		}
		out = append(out, s)
	}
	return out
}

func lastEvent(s cwtypes.LogStream) int64 {
	if s.LastEventTimestamp == nil {
		return 0
	}
	return *s.LastEventTimestamp
}

func isNotFound(err error) bool {
	var notFound *cwtypes.ResourceNotFoundException
	return errors.As(err, &notFound)
}

// classify maps a CloudWatch Logs API error to a typed failure.
func classify(err error, category config.LogCategory) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDeniedException", "UnrecognizedClientException":
			return config.NewFailure(config.FailAccessDenied, "fetching %s logs: %s", category, apiErr.ErrorMessage())
		case "ThrottlingException":
			return config.NewFailure(config.FailThrottled, "fetching %s logs: %s", category, apiErr.ErrorMessage())
		}
	}
	return config.NewFailure(config.FailTransport, "fetching %s logs: %v", category, err)
}
