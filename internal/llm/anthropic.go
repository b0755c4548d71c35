package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	. "github.com/roelfdiedericks/gaiabot/internal/logging"
	. "github.com/roelfdiedericks/gaiabot/internal/metrics"
)

// AnthropicProvider implements Provider for Anthropic's Messages API.
// Also works with Anthropic-compatible APIs via BaseURL.
type AnthropicProvider struct {
	name         string
	client       *anthropic.Client
	model        string
	maxTokens    int
	temperature  float64
	metricPrefix string
}

// NewAnthropicProvider creates a new Anthropic provider from ProviderConfig.
func NewAnthropicProvider(name string, cfg ProviderConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key not configured")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%s: model not configured", name)
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
		option.WithMaxRetries(0), // the router has its own fallback
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 500
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "(default)"
	}
	L_debug("anthropic provider created", "name", name, "baseURL", baseURL, "model", cfg.Model, "maxTokens", maxTokens)

	return &AnthropicProvider{
		name:         name,
		client:       &client,
		model:        cfg.Model,
		maxTokens:    maxTokens,
		temperature:  cfg.Temperature,
		metricPrefix: "llm/" + name,
	}, nil
}

// Name returns the provider instance name
func (p *AnthropicProvider) Name() string {
	return p.name
}

// Type returns the provider type
func (p *AnthropicProvider) Type() string {
	return "anthropic"
}

// Model returns the model name
func (p *AnthropicProvider) Model() string {
	return p.model
}

// Chat sends one Messages API request. System messages become the system
// prompt.
func (p *AnthropicProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	startTime := time.Now()
	system, rest := splitSystem(messages)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   int64(p.maxTokens),
		Temperature: anthropic.Float(p.temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	for _, m := range rest {
		if m.Role == RoleAssistant {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
			continue
		}
		params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
	}

	L_debug("llm: request started", "provider", p.name, "model", p.model, "messages", len(params.Messages))

	message, err := p.client.Messages.New(ctx, params)
	MetricDuration(p.metricPrefix, "request", time.Since(startTime))
	if err != nil {
		L_warn("llm: request failed", "provider", p.name, "model", p.model, "error", err)
		MetricFailWithReason(p.metricPrefix, "request_status", string(ClassifyError(err.Error())))
		return "", fmt.Errorf("%s: %w", p.name, err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(variant.Text)
		}
	}

	MetricSuccess(p.metricPrefix, "request_status")
	MetricAdd(p.metricPrefix, "input_tokens", message.Usage.InputTokens)
	MetricAdd(p.metricPrefix, "output_tokens", message.Usage.OutputTokens)
	L_debug("llm: response received",
		"provider", p.name,
		"stopReason", message.StopReason,
		"inputTokens", message.Usage.InputTokens,
		"outputTokens", message.Usage.OutputTokens,
		"elapsed", time.Since(startTime),
	)
	L_trace("llm: raw response", "text", text.String())
	return text.String(), nil
}
