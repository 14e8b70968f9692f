package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/smithy-go"

	"github.com/bimmerbailey/eksight/internal/config"
)

// BedrockAPI is the subset of the Bedrock runtime client used here.
// Satisfied by *bedrockruntime.Client.
type BedrockAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// bedrockProvider invokes Anthropic models through the Bedrock runtime.
type bedrockProvider struct {
	api     BedrockAPI
	modelID string
	logger  *slog.Logger
}

// anthropicVersion is the messages-API revision Bedrock expects in the body.
const anthropicVersion = "bedrock-2023-05-31"

// anthropicRequest is the request body for Anthropic models on Bedrock.
type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Temperature      float32            `json:"temperature"`
	System           string             `json:"system,omitempty"`
	Messages         []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// NewBedrock creates a Bedrock-backed provider.
func NewBedrock(api BedrockAPI, modelID string, logger *slog.Logger) (Provider, error) {
	if api == nil {
		return nil, errors.New("bedrock client cannot be nil")
	}
	if modelID == "" {
		return nil, errors.New("model id cannot be empty")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &bedrockProvider{api: api, modelID: modelID, logger: logger}, nil
}

// Invoke sends messages to Bedrock and returns the complete response.
// System-role messages go into the body's system field; the rest become
// the conversation.
func (p *bedrockProvider) Invoke(ctx context.Context, messages []Message, opts *InvokeOptions) (*Response, error) {
	if len(messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}

	modelID := p.modelID
	body := anthropicRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        2000,
		Temperature:      0.1,
	}
	if opts != nil {
		if opts.Model != "" {
			modelID = opts.Model
		}
		if opts.MaxAnswerTokens > 0 {
			body.MaxTokens = opts.MaxAnswerTokens
		}
		body.Temperature = opts.Temperature
	}

	var system []string
	for _, msg := range messages {
		if msg.Role == "system" {
			system = append(system, msg.Content)
			continue
		}
		body.Messages = append(body.Messages, anthropicMessage(msg))
	}
	body.System = strings.Join(system, "\n\n")
	if len(body.Messages) == 0 {
		return nil, errors.New("at least one non-system message is required")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling bedrock request: %w", err)
	}

	p.logger.Debug("invoking bedrock model",
		"model", modelID,
		"messages", len(body.Messages),
		"payload_bytes", len(payload))

	out, err := p.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        payload,
	})
	if err != nil {
		return nil, classifyBedrockError(err)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(out.Body, &parsed); err != nil {
		return nil, config.NewFailure(config.FailUnknown, "decoding bedrock response: %v", err)
	}
	if len(parsed.Content) == 0 {
		return nil, config.NewFailure(config.FailUnknown, "bedrock response contained no content blocks")
	}

	p.logger.Debug("bedrock invocation completed",
		"model", modelID,
		"stop_reason", parsed.StopReason,
		"tokens_in", parsed.Usage.InputTokens,
		"tokens_out", parsed.Usage.OutputTokens)

	return &Response{
		Content:   parsed.Content[0].Text,
		Model:     modelID,
		TokensIn:  parsed.Usage.InputTokens,
		TokensOut: parsed.Usage.OutputTokens,
	}, nil
}

// Heartbeat reports the backend reachable. Bedrock has no free health
// endpoint, so problems surface at invocation time with typed failures.
func (p *bedrockProvider) Heartbeat(context.Context) error { return nil }

// classifyBedrockError maps SDK errors to the failure taxonomy.
func classifyBedrockError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return config.NewFailure(config.FailTimeout, "bedrock invocation interrupted: %v", err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		msg := apiErr.ErrorMessage()
		switch code {
		case "AccessDeniedException", "UnauthorizedException":
			return config.NewFailure(config.FailAccessDenied,
				"not authorized to invoke the model, check IAM permissions for bedrock:InvokeModel and model access grants: %s", msg)
		case "ThrottlingException", "TooManyRequestsException", "ServiceQuotaExceededException":
			return config.NewFailure(config.FailThrottled, "bedrock throttled the request: %s", msg)
		case "ResourceNotFoundException":
			return config.NewFailure(config.FailRegionUnsupported,
				"model not found, it may not be available in this region: %s", msg)
		case "ModelTimeoutException":
			return config.NewFailure(config.FailTimeout, "model timed out: %s", msg)
		case "ValidationException":
			lower := strings.ToLower(msg)
			if strings.Contains(lower, "too long") || strings.Contains(lower, "token") || strings.Contains(lower, "input") {
				return config.NewFailure(config.FailInputTooLarge, "prompt exceeds the model input limit: %s", msg)
			}
			return config.NewFailure(config.FailUnknown, "bedrock rejected the request: %s", msg)
		default:
			return config.NewFailure(config.FailUnknown, "bedrock error %s: %s", code, msg)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return config.NewFailure(config.FailTransport, "network failure reaching bedrock: %v", err)
	}

	return config.NewFailure(config.FailUnknown, "bedrock request failed: %v", err)
}
