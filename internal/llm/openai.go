package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	. "github.com/roelfdiedericks/gaiabot/internal/logging"
	. "github.com/roelfdiedericks/gaiabot/internal/metrics"
)

// Fireworks defaults, used when Type is "fireworks".
const (
	FireworksBaseURL = "https://api.fireworks.ai/inference/v1"
	FireworksModel   = "accounts/fireworks/models/llama-v3p3-70b-instruct"
)

// OpenAIProvider implements Provider for OpenAI-compatible APIs.
// Works with OpenAI, Fireworks, LM Studio, OpenRouter and others via BaseURL.
type OpenAIProvider struct {
	name         string
	typ          string
	client       *openai.Client
	model        string
	maxTokens    int
	temperature  float32
	baseURL      string
	metricPrefix string // e.g., "llm/fireworks"
}

// NewOpenAIProvider creates a new OpenAI-compatible provider from ProviderConfig.
// API key is optional for local servers like LM Studio.
func NewOpenAIProvider(name string, cfg ProviderConfig) (*OpenAIProvider, error) {
	typ := cfg.Type
	if typ == "" {
		typ = "openai"
	}

	baseURL := cfg.BaseURL
	model := cfg.Model
	if typ == "fireworks" {
		if baseURL == "" {
			baseURL = FireworksBaseURL
		}
		if model == "" {
			model = FireworksModel
		}
	}
	if model == "" {
		return nil, fmt.Errorf("%s: model not configured", name)
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "not-needed" // Placeholder for local servers that don't require auth
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/v1") && !strings.HasSuffix(baseURL, "/v1/") {
			baseURL = strings.TrimSuffix(baseURL, "/") + "/v1"
		}
		config.BaseURL = baseURL
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	config.HTTPClient = &http.Client{Timeout: timeout}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 500
	}

	displayURL := baseURL
	if displayURL == "" {
		displayURL = "(default)"
	}
	L_debug("openai provider created", "name", name, "type", typ, "baseURL", displayURL, "model", model, "maxTokens", maxTokens)

	return &OpenAIProvider{
		name:         name,
		typ:          typ,
		client:       openai.NewClientWithConfig(config),
		model:        model,
		maxTokens:    maxTokens,
		temperature:  float32(cfg.Temperature),
		baseURL:      baseURL,
		metricPrefix: "llm/" + name,
	}, nil
}

// Name returns the provider instance name
func (p *OpenAIProvider) Name() string {
	return p.name
}

// Type returns the provider type
func (p *OpenAIProvider) Type() string {
	return p.typ
}

// Model returns the model name
func (p *OpenAIProvider) Model() string {
	return p.model
}

// Chat sends one non-streaming chat completion.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	startTime := time.Now()

	req := openai.ChatCompletionRequest{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	L_debug("llm: request started", "provider", p.name, "model", p.model, "messages", len(messages))

	resp, err := p.client.CreateChatCompletion(ctx, req)
	MetricDuration(p.metricPrefix, "request", time.Since(startTime))
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			L_warn("llm: request failed (APIError)",
				"provider", p.name,
				"model", p.model,
				"statusCode", apiErr.HTTPStatusCode,
				"code", apiErr.Code,
				"message", apiErr.Message,
			)
		} else {
			L_warn("llm: request failed", "provider", p.name, "model", p.model, "error", err)
		}
		MetricFailWithReason(p.metricPrefix, "request_status", string(ClassifyError(err.Error())))
		return "", fmt.Errorf("%s: %w", p.name, err)
	}

	if len(resp.Choices) == 0 {
		MetricFailWithReason(p.metricPrefix, "request_status", "no_choices")
		return "", fmt.Errorf("%s: response has no choices", p.name)
	}

	text := resp.Choices[0].Message.Content
	MetricSuccess(p.metricPrefix, "request_status")
	MetricAdd(p.metricPrefix, "input_tokens", int64(resp.Usage.PromptTokens))
	MetricAdd(p.metricPrefix, "output_tokens", int64(resp.Usage.CompletionTokens))
	L_debug("llm: response received",
		"provider", p.name,
		"finishReason", resp.Choices[0].FinishReason,
		"inputTokens", resp.Usage.PromptTokens,
		"outputTokens", resp.Usage.CompletionTokens,
		"elapsed", time.Since(startTime),
	)
	L_trace("llm: raw response", "text", text)
	return text, nil
}
