// Package analyzer coordinates one analysis session: verify the cluster,
// fetch and normalize its control plane logs, budget them into a bounded
// context, and answer questions against that context.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bimmerbailey/eksight/internal/budget"
	"github.com/bimmerbailey/eksight/internal/config"
	"github.com/bimmerbailey/eksight/internal/eks"
	"github.com/bimmerbailey/eksight/internal/llm"
	"github.com/bimmerbailey/eksight/internal/logsource"
	"github.com/bimmerbailey/eksight/internal/normalize"
	"github.com/bimmerbailey/eksight/internal/prompt"
)

// Session is one cluster analysis conversation. Build the context once,
// then ask any number of questions against it. Not safe for concurrent use.
type Session struct {
	clusters   *eks.Client
	logs       *logsource.Adapter
	normalizer *normalize.Normalizer
	client     *llm.Client
	cfg        *config.Config
	logger     *slog.Logger

	cluster string
	window  config.TimeWindow
	// full normalized record set, kept for halved-context rebuilds
	records  []config.LogRecord
	bounded  *budget.Context
	rendered *prompt.Context
	notes    []*config.Failure
}

// New creates an analysis session from its collaborators.
func New(clusters *eks.Client, logs *logsource.Adapter, normalizer *normalize.Normalizer, client *llm.Client, cfg *config.Config, logger *slog.Logger) *Session {
	return &Session{
		clusters:   clusters,
		logs:       logs,
		normalizer: normalizer,
		client:     client,
		cfg:        cfg,
		logger:     logger,
	}
}

// BuildContext assembles the bounded log context for a cluster and time
// window. Returns a typed failure when the cluster itself cannot be read;
// degraded situations, disabled categories (even all of them) or an empty
// window, succeed with an empty or partial context and are recorded as
// Notes.
func (s *Session) BuildContext(ctx context.Context, cluster string, categories []config.LogCategory, window config.TimeWindow) error {
	if err := window.Validate(); err != nil {
		return config.NewFailure(config.FailUnknown, "invalid time window: %v", err)
	}
	if len(categories) == 0 {
		categories = config.AllCategories()
	}

	info, err := s.clusters.Describe(ctx, cluster)
	if err != nil {
		return err
	}

	var enabled, disabled []config.LogCategory
	for _, cat := range categories {
		if info.HasCategory(cat) {
			enabled = append(enabled, cat)
		} else {
			disabled = append(disabled, cat)
		}
	}
	if len(disabled) > 0 {
		detail := "some requested categories are not enabled on cluster %s"
		if len(enabled) == 0 {
			detail = "cluster %s ships none of the requested log categories"
		}
		f := config.NewFailure(config.FailLoggingNotEnabled, detail, cluster)
		f.Categories = disabled
		s.notes = append(s.notes, f)
		s.logger.Info("skipping disabled log categories",
			"cluster", cluster, "categories", f.CategoryNames())
	}

	var raws []logsource.RawRecord
	var missing []config.LogCategory
	if len(enabled) == 0 {
		// Nothing to fetch. The session still builds an empty context so
		// the disabled-category note is the only finding.
		missing = disabled
	} else {
		results, err := s.logs.Fetch(ctx, cluster, enabled, window)
		if err != nil {
			return err
		}
		for _, res := range results {
			if res.Status != logsource.StatusOK {
				missing = append(missing, res.Category)
				continue
			}
			raws = append(raws, res.Records...)
		}
		if len(raws) == 0 {
			f := config.NewFailure(config.FailNoLogData,
				"no log events found for cluster %s in window %s", cluster, window)
			f.Categories = missing
			s.notes = append(s.notes, f)
		}
	}

	s.cluster = cluster
	s.window = window
	s.records = s.normalizer.NormalizeAll(raws)
	s.bounded = budget.Build(s.records, s.cfg.Logs.MaxRecords, s.cfg.Logs.MaxChars)
	s.bounded.Window = window
	s.bounded.MissingCategories = missing
	s.rendered = prompt.NewContext(cluster, s.bounded)

	s.logger.Info("log context assembled",
		"cluster", cluster,
		"window", window.String(),
		"events", s.bounded.TotalRecords,
		"records_in_context", len(s.bounded.Records),
		"truncated", s.bounded.Truncated)
	return nil
}

// Context returns the budgeted context, or nil before BuildContext.
func (s *Session) Context() *budget.Context { return s.bounded }

// Notes returns non-fatal findings gathered while building the context,
// such as disabled categories or an empty window.
func (s *Session) Notes() []*config.Failure { return s.notes }

// Cluster returns the cluster the context was built for.
func (s *Session) Cluster() string { return s.cluster }

// Ask answers one question against the built context. When the backend
// rejects the prompt as too large, the context is rebuilt at half the
// record count and the session keeps the smaller context for later
// questions.
func (s *Session) Ask(ctx context.Context, question string) llm.Result {
	if s.rendered == nil {
		return llm.Result{Failure: config.NewFailure(config.FailUnknown,
			"no log context built, call BuildContext first")}
	}

	// Model and tunables are read per question, not at session start, so a
	// config reload takes effect on the next Ask.
	opts := &llm.InvokeOptions{
		Temperature:     s.cfg.LLM.Temperature,
		MaxAnswerTokens: s.cfg.LLM.MaxAnswerTokens,
	}
	switch s.cfg.LLM.Provider {
	case "ollama":
		opts.Model = s.cfg.LLM.Ollama.Model
	default:
		opts.Model = s.cfg.LLM.Bedrock.ModelID
	}

	return s.client.Ask(ctx, llm.AskRequest{
		Messages: s.rendered.Messages(question),
		Options:  opts,
		Reduced: func() []llm.Message {
			s.halveContext()
			return s.rendered.Messages(question)
		},
	})
}

// halveContext rebuilds the bounded context at half the current record
// count, never below one record.
func (s *Session) halveContext() {
	target := len(s.bounded.Records) / 2
	if target < 1 {
		target = 1
	}
	missing := s.bounded.MissingCategories
	s.bounded = budget.Build(s.records, target, s.cfg.Logs.MaxChars)
	s.bounded.Window = s.window
	s.bounded.MissingCategories = missing
	s.rendered = prompt.NewContext(s.cluster, s.bounded)
	s.logger.Info("rebuilt log context at half size", "records", len(s.bounded.Records))
}

// Summary renders a short human description of the built context.
func (s *Session) Summary() string {
	if s.bounded == nil {
		return "no context built"
	}
	return fmt.Sprintf("%d events from %s (%d in context, truncated=%v)",
		s.bounded.TotalRecords, s.window, len(s.bounded.Records), s.bounded.Truncated)
}
