package analyzer

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	awseks "github.com/aws/aws-sdk-go-v2/service/eks"
	ekstypes "github.com/aws/aws-sdk-go-v2/service/eks/types"
	"github.com/aws/smithy-go"

	"github.com/bimmerbailey/eksight/internal/config"
	"github.com/bimmerbailey/eksight/internal/eks"
	"github.com/bimmerbailey/eksight/internal/llm"
	"github.com/bimmerbailey/eksight/internal/logsource"
	"github.com/bimmerbailey/eksight/internal/normalize"
)

// --- fakes ---

type fakeEKSAPI struct {
	enabled  []ekstypes.LogType
	describe error
}

func (f *fakeEKSAPI) ListClusters(context.Context, *awseks.ListClustersInput, ...func(*awseks.Options)) (*awseks.ListClustersOutput, error) {
	return &awseks.ListClustersOutput{Clusters: []string{"prod-cluster"}}, nil
}

func (f *fakeEKSAPI) DescribeCluster(_ context.Context, params *awseks.DescribeClusterInput, _ ...func(*awseks.Options)) (*awseks.DescribeClusterOutput, error) {
	if f.describe != nil {
		return nil, f.describe
	}
	var logging *ekstypes.Logging
	if len(f.enabled) > 0 {
		logging = &ekstypes.Logging{ClusterLogging: []ekstypes.LogSetup{
			{Enabled: aws.Bool(true), Types: f.enabled},
		}}
	}
	return &awseks.DescribeClusterOutput{Cluster: &ekstypes.Cluster{
		Name:    params.Name,
		Status:  ekstypes.ClusterStatusActive,
		Version: aws.String("1.29"),
		Logging: logging,
	}}, nil
}

type fakeLogsAPI struct {
	// events returned for any stream fetch; empty means streams exist but
	// held nothing in the window
	events []cwtypes.FilteredLogEvent
}

func (f *fakeLogsAPI) DescribeLogStreams(_ context.Context, params *cloudwatchlogs.DescribeLogStreamsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogStreamsOutput, error) {
	name := *params.LogStreamNamePrefix + "abc123"
	return &cloudwatchlogs.DescribeLogStreamsOutput{LogStreams: []cwtypes.LogStream{
		{LogStreamName: aws.String(name), LastEventTimestamp: aws.Int64(time.Now().UnixMilli())},
	}}, nil
}

func (f *fakeLogsAPI) FilterLogEvents(context.Context, *cloudwatchlogs.FilterLogEventsInput, ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.FilterLogEventsOutput, error) {
	return &cloudwatchlogs.FilterLogEventsOutput{Events: f.events}, nil
}

type scriptedProvider struct {
	outcomes []error
	calls    int
	models   []string
}

func (p *scriptedProvider) Invoke(_ context.Context, messages []llm.Message, opts *llm.InvokeOptions) (*llm.Response, error) {
	if opts != nil {
		p.models = append(p.models, opts.Model)
	}
	var err error
	if p.calls < len(p.outcomes) {
		err = p.outcomes[p.calls]
	}
	p.calls++
	if err != nil {
		return nil, err
	}
	return &llm.Response{Content: "the api server logged repeated timeouts", Model: "test-model"}, nil
}

func (p *scriptedProvider) Heartbeat(context.Context) error { return nil }

// --- helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		Region: "us-east-2",
		Logs:   config.LogsConfig{MaxRecords: 150, MaxChars: 24000},
		LLM:    config.LLMConfig{Temperature: 0.1, MaxAnswerTokens: 2000},
	}
}

func newSession(t *testing.T, eksAPI *fakeEKSAPI, logsAPI *fakeLogsAPI, provider llm.Provider) *Session {
	t.Helper()
	logger := discardLogger()
	client := llm.NewClient(provider, llm.RetryPolicy{ThrottleAttempts: 3, BackoffBase: time.Millisecond}, time.Second, logger)
	return New(
		eks.New(eksAPI, logger),
		logsource.New(logsAPI, logsource.DefaultOptions(), logger),
		normalize.New(logger),
		client,
		testConfig(),
		logger,
	)
}

func apiEvents(n int) []cwtypes.FilteredLogEvent {
	events := make([]cwtypes.FilteredLogEvent, n)
	base := time.Date(2024, 2, 13, 12, 0, 0, 0, time.UTC)
	for i := range events {
		events[i] = cwtypes.FilteredLogEvent{
			Timestamp: aws.Int64(base.Add(time.Duration(i) * time.Second).UnixMilli()),
			Message:   aws.String("E0213 12:00:00.000000 10 controller.go:42] watch closed"),
		}
	}
	return events
}

func window() config.TimeWindow {
	start := time.Date(2024, 2, 13, 12, 0, 0, 0, time.UTC)
	return config.TimeWindow{Start: start, End: start.Add(time.Hour)}
}

// --- tests ---

func TestBuildContextAndAsk(t *testing.T) {
	eksAPI := &fakeEKSAPI{enabled: []ekstypes.LogType{ekstypes.LogTypeApi, ekstypes.LogTypeScheduler}}
	session := newSession(t, eksAPI, &fakeLogsAPI{events: apiEvents(5)}, &scriptedProvider{})

	err := session.BuildContext(context.Background(), "prod-cluster",
		[]config.LogCategory{config.CategoryAPI}, window())
	if err != nil {
		t.Fatalf("BuildContext() error = %v", err)
	}

	bc := session.Context()
	if bc.TotalRecords != 5 {
		t.Errorf("TotalRecords = %d, want 5", bc.TotalRecords)
	}
	if bc.Truncated {
		t.Error("Truncated = true for a small context")
	}

	result := session.Ask(context.Background(), "what failed?")
	if !result.OK() {
		t.Fatalf("Ask() failure = %v", result.Failure)
	}
	if result.Answer == "" {
		t.Error("Ask() returned empty answer")
	}
}

func TestBuildContextClusterNotFound(t *testing.T) {
	eksAPI := &fakeEKSAPI{describe: &smithy.GenericAPIError{Code: "ResourceNotFoundException", Message: "no such cluster"}}
	session := newSession(t, eksAPI, &fakeLogsAPI{}, &scriptedProvider{})

	err := session.BuildContext(context.Background(), "ghost", nil, window())
	if f, ok := config.AsFailure(err); !ok || f.Kind != config.FailClusterNotFound {
		t.Errorf("BuildContext() error = %v, want cluster not found", err)
	}
}

func TestBuildContextAllCategoriesDisabledContinues(t *testing.T) {
	session := newSession(t, &fakeEKSAPI{}, &fakeLogsAPI{}, &scriptedProvider{})

	err := session.BuildContext(context.Background(), "prod-cluster",
		[]config.LogCategory{config.CategoryAPI, config.CategoryAudit}, window())
	if err != nil {
		t.Fatalf("BuildContext() error = %v, want success with annotation", err)
	}

	bc := session.Context()
	if len(bc.Records) != 0 || bc.Truncated {
		t.Errorf("context = %d records truncated=%v, want empty untruncated", len(bc.Records), bc.Truncated)
	}

	notes := session.Notes()
	if len(notes) != 1 || notes[0].Kind != config.FailLoggingNotEnabled {
		t.Fatalf("Notes() = %v, want one logging-not-enabled note", notes)
	}
	if notes[0].CategoryNames() != "api, audit" {
		t.Errorf("note categories = %q, want both requested categories", notes[0].CategoryNames())
	}
}

func TestBuildContextPartiallyDisabledContinues(t *testing.T) {
	eksAPI := &fakeEKSAPI{enabled: []ekstypes.LogType{ekstypes.LogTypeApi}}
	session := newSession(t, eksAPI, &fakeLogsAPI{events: apiEvents(3)}, &scriptedProvider{})

	err := session.BuildContext(context.Background(), "prod-cluster",
		[]config.LogCategory{config.CategoryAPI, config.CategoryAudit}, window())
	if err != nil {
		t.Fatalf("BuildContext() error = %v, want success with note", err)
	}

	notes := session.Notes()
	if len(notes) != 1 || notes[0].Kind != config.FailLoggingNotEnabled {
		t.Fatalf("Notes() = %v, want one logging-not-enabled note", notes)
	}
	if notes[0].CategoryNames() != "audit" {
		t.Errorf("note categories = %q, want audit", notes[0].CategoryNames())
	}
}

func TestBuildContextEmptyWindow(t *testing.T) {
	eksAPI := &fakeEKSAPI{enabled: []ekstypes.LogType{ekstypes.LogTypeApi}}
	session := newSession(t, eksAPI, &fakeLogsAPI{}, &scriptedProvider{})

	err := session.BuildContext(context.Background(), "prod-cluster",
		[]config.LogCategory{config.CategoryAPI}, window())
	if err != nil {
		t.Fatalf("BuildContext() error = %v, want success with note", err)
	}

	bc := session.Context()
	if len(bc.Records) != 0 || bc.Truncated {
		t.Errorf("context = %d records truncated=%v, want empty untruncated", len(bc.Records), bc.Truncated)
	}

	notes := session.Notes()
	if len(notes) != 1 || notes[0].Kind != config.FailNoLogData {
		t.Errorf("Notes() = %v, want one no-log-data note", notes)
	}
}

func TestBuildContextInvalidWindow(t *testing.T) {
	session := newSession(t, &fakeEKSAPI{}, &fakeLogsAPI{}, &scriptedProvider{})

	w := window()
	w.Start, w.End = w.End, w.Start
	err := session.BuildContext(context.Background(), "prod-cluster", nil, w)
	if err == nil {
		t.Fatal("BuildContext() accepted an inverted window")
	}
	f, ok := config.AsFailure(err)
	if !ok {
		t.Fatalf("BuildContext() returned untyped error %v, want Failure", err)
	}
	if f.Kind != config.FailUnknown {
		t.Errorf("failure kind = %v, want %v", f.Kind, config.FailUnknown)
	}
}

func TestAskWithoutContext(t *testing.T) {
	session := newSession(t, &fakeEKSAPI{}, &fakeLogsAPI{}, &scriptedProvider{})

	result := session.Ask(context.Background(), "anything?")
	if result.OK() {
		t.Fatal("Ask() succeeded without a built context")
	}
}

func TestAskReadsModelFromLiveConfig(t *testing.T) {
	eksAPI := &fakeEKSAPI{enabled: []ekstypes.LogType{ekstypes.LogTypeApi}}
	provider := &scriptedProvider{}
	session := newSession(t, eksAPI, &fakeLogsAPI{events: apiEvents(3)}, provider)
	session.cfg.LLM.Provider = "bedrock"
	session.cfg.LLM.Bedrock.ModelID = "anthropic.claude-3-sonnet-20240229-v1:0"

	if err := session.BuildContext(context.Background(), "prod-cluster",
		[]config.LogCategory{config.CategoryAPI}, window()); err != nil {
		t.Fatalf("BuildContext() error = %v", err)
	}

	session.Ask(context.Background(), "first question?")
	// Simulate a config reload between questions.
	session.cfg.LLM.Bedrock.ModelID = "anthropic.claude-3-haiku-20240307-v1:0"
	session.Ask(context.Background(), "second question?")

	if len(provider.models) != 2 {
		t.Fatalf("provider saw %d invocations, want 2", len(provider.models))
	}
	if provider.models[0] != "anthropic.claude-3-sonnet-20240229-v1:0" {
		t.Errorf("first model = %q", provider.models[0])
	}
	if provider.models[1] != "anthropic.claude-3-haiku-20240307-v1:0" {
		t.Errorf("second model = %q, want the reloaded model id", provider.models[1])
	}
}

func TestAskOversizedPromptHalvesContext(t *testing.T) {
	eksAPI := &fakeEKSAPI{enabled: []ekstypes.LogType{ekstypes.LogTypeApi}}
	provider := &scriptedProvider{outcomes: []error{
		config.NewFailure(config.FailInputTooLarge, "input exceeds model limit"),
	}}
	session := newSession(t, eksAPI, &fakeLogsAPI{events: apiEvents(20)}, provider)

	if err := session.BuildContext(context.Background(), "prod-cluster",
		[]config.LogCategory{config.CategoryAPI}, window()); err != nil {
		t.Fatalf("BuildContext() error = %v", err)
	}

	result := session.Ask(context.Background(), "what failed?")
	if !result.OK() {
		t.Fatalf("Ask() failure = %v, want success after halving", result.Failure)
	}
	if got := len(session.Context().Records); got != 10 {
		t.Errorf("context records after halving = %d, want 10", got)
	}
	if provider.calls != 2 {
		t.Errorf("provider called %d times, want 2", provider.calls)
	}
}
