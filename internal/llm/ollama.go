package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"

	"github.com/bimmerbailey/eksight/internal/config"
)

// ollamaProvider runs questions against a local Ollama server. Useful for
// iterating on prompts without Bedrock access or cost.
type ollamaProvider struct {
	client *api.Client
	host   string
	model  string
	logger *slog.Logger
}

// NewOllama creates an Ollama-backed provider. An empty host falls back to
// the OLLAMA_HOST environment variable or http://localhost:11434.
func NewOllama(host, model string, logger *slog.Logger) (Provider, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if model == "" {
		return nil, errors.New("ollama model cannot be empty")
	}

	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, fmt.Errorf("creating ollama client: %w", err)
	}
	if host != "" {
		parsed, err := url.Parse(host)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
		}
		client = api.NewClient(parsed, http.DefaultClient)
	}

	return &ollamaProvider{client: client, host: host, model: model, logger: logger}, nil
}

// Invoke sends messages to Ollama and returns the complete response.
func (p *ollamaProvider) Invoke(ctx context.Context, messages []Message, opts *InvokeOptions) (*Response, error) {
	if len(messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}

	model := p.model
	options := map[string]any{"temperature": float32(0)}
	if opts != nil {
		if opts.Model != "" {
			model = opts.Model
		}
		options["temperature"] = opts.Temperature
		if opts.MaxAnswerTokens > 0 {
			options["num_predict"] = opts.MaxAnswerTokens
		}
	}

	ollamaMessages := make([]api.Message, len(messages))
	for i, msg := range messages {
		ollamaMessages[i] = api.Message{Role: msg.Role, Content: msg.Content}
	}

	p.logger.Debug("sending ollama chat request", "model", model, "messages", len(messages))

	req := &api.ChatRequest{
		Model:    model,
		Messages: ollamaMessages,
		Options:  options,
		Stream:   new(bool),
	}

	var response api.ChatResponse
	err := p.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		response = resp
		return nil
	})
	if err != nil {
		return nil, classifyOllamaError(err)
	}

	return &Response{
		Content:   response.Message.Content,
		Model:     response.Model,
		TokensIn:  response.PromptEvalCount,
		TokensOut: response.EvalCount,
	}, nil
}

// Heartbeat checks whether the Ollama server responds.
func (p *ollamaProvider) Heartbeat(ctx context.Context) error {
	if err := p.client.Heartbeat(ctx); err != nil {
		return config.NewFailure(config.FailTransport, "ollama server unreachable: %v", err)
	}
	return nil
}

func classifyOllamaError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return config.NewFailure(config.FailTimeout, "ollama request interrupted: %v", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return config.NewFailure(config.FailTransport, "cannot reach ollama server: %v", err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return config.NewFailure(config.FailTransport, "cannot reach ollama server: %v", err)
	}
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusTooManyRequests:
			return config.NewFailure(config.FailThrottled, "ollama server is overloaded: %v", err)
		case http.StatusRequestEntityTooLarge:
			return config.NewFailure(config.FailInputTooLarge, "prompt too large for ollama: %v", err)
		}
	}
	return config.NewFailure(config.FailUnknown, "ollama request failed: %v", err)
}
