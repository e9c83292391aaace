// Package vlllm calls a vision-capable chat model and folds its answer into
// an analysis verdict.
package vlllm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"
	"github.com/sashabaranov/go-openai"

	"github.com/arluqh/pregnancy-food-checker/internal/domain/analysis"
	"github.com/arluqh/pregnancy-food-checker/internal/platform/observability"
	"github.com/arluqh/pregnancy-food-checker/internal/utils"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	DefaultModel   = "gemini-1.5-flash"
)

// errOverloaded marks an attempt that may be retried.
var errOverloaded = errors.New("upstream overloaded")

// Config VLLLM配置结构
type Config struct {
	BaseURL     string
	Model       string
	APIKey      string
	Attempts    int
	BaseDelay   time.Duration
	Timeout     time.Duration
	Temperature float32
	MaxTokens   int
}

// AttemptObserver is told the outcome of every upstream attempt.
type AttemptObserver interface {
	IncUpstreamAttempt(result string)
}

type Option func(*Provider)

// WithHTTPClient replaces the transport used for upstream calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *Provider) {
		if hc != nil {
			p.httpClient = hc
		}
	}
}

func WithObserver(o AttemptObserver) Option {
	return func(p *Provider) {
		p.observer = o
	}
}

// Provider sends one image per request to an OpenAI-compatible endpoint.
type Provider struct {
	config     Config
	logger     *utils.Logger
	observer   AttemptObserver
	httpClient *http.Client

	openaiClient *openai.Client
}

// NewProvider 创建新的VLLLM提供者
func NewProvider(config Config, logger *utils.Logger, opts ...Option) *Provider {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Attempts < 1 {
		config.Attempts = 3
	}
	if config.BaseDelay < 0 {
		config.BaseDelay = 0
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = utils.DefaultLogger
	}

	p := &Provider{
		config:     config,
		logger:     logger,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(p)
	}

	if config.APIKey != "" {
		clientConfig := openai.DefaultConfig(config.APIKey)
		clientConfig.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
		clientConfig.HTTPClient = p.httpClient
		p.openaiClient = openai.NewClientWithConfig(clientConfig)
	}

	p.logger.DebugTag("Inference", "provider ready: base_url=%s model=%s attempts=%d configured=%t",
		config.BaseURL, config.Model, config.Attempts, p.Configured())
	return p
}

// Configured reports whether an API credential is present.
func (p *Provider) Configured() bool {
	return p.openaiClient != nil
}

// Infer analyses one image. Upstream failures are reported inside the verdict,
// never as an error.
func (p *Provider) Infer(ctx context.Context, base64Image, mimeType, prompt string) analysis.Verdict {
	if !p.Configured() {
		p.logger.ErrorTag("Inference", "api key not configured")
		return analysis.Failure(analysis.MessageNoCredential, "")
	}

	ctx, end := observability.StartSpan(ctx, "vlllm", "infer")

	resp, err := p.complete(ctx, p.buildRequest(base64Image, mimeType, prompt))
	if err != nil {
		end(err)
		if errors.Is(err, errOverloaded) {
			p.logger.WarnTag("Inference", "upstream overloaded after %d attempts", p.config.Attempts)
			return analysis.Failure(analysis.MessageTryLater, "")
		}
		p.logger.ErrorTag("Inference", "upstream call failed: %v", err)
		return analysis.Failure(analysis.MessageUnavailable, err.Error())
	}
	end(nil)

	return p.fold(resp)
}

func (p *Provider) buildRequest(base64Image, mimeType, prompt string) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: p.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: prompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: fmt.Sprintf("data:%s;base64,%s", mimeType, base64Image),
						},
					},
				},
			},
		},
		Temperature: p.config.Temperature,
		MaxTokens:   p.config.MaxTokens,
	}
}

func (p *Provider) backoffPolicy(ctx context.Context) backoff.BackOffContext {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = p.config.BaseDelay
	expo.Multiplier = 2
	expo.RandomizationFactor = 0
	expo.MaxInterval = p.config.BaseDelay << uint(p.config.Attempts)
	expo.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(expo, uint64(p.config.Attempts-1)), ctx)
}

// complete runs the chat call with retries. Only 503 responses are retried.
func (p *Provider) complete(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	var (
		resp    openai.ChatCompletionResponse
		attempt int
	)

	op := func() error {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()

		start := time.Now()
		r, err := p.openaiClient.CreateChatCompletion(attemptCtx, req)
		if err != nil {
			if isOverloaded(err) {
				p.observe("overloaded")
				p.logger.WarnTag("Inference", "attempt %d/%d overloaded (503) after %s",
					attempt, p.config.Attempts, time.Since(start))
				return fmt.Errorf("%w: %v", errOverloaded, err)
			}
			p.observe("error")
			return backoff.Permanent(err)
		}

		p.observe("ok")
		p.logger.DebugTag("Inference", "attempt %d/%d succeeded in %s", attempt, p.config.Attempts, time.Since(start))
		resp = r
		return nil
	}

	if err := backoff.Retry(op, p.backoffPolicy(ctx)); err != nil {
		return openai.ChatCompletionResponse{}, err
	}
	return resp, nil
}

func (p *Provider) observe(result string) {
	if p.observer != nil {
		p.observer.IncUpstreamAttempt(result)
	}
}

func (p *Provider) fold(resp openai.ChatCompletionResponse) analysis.Verdict {
	if len(resp.Choices) == 0 {
		p.logger.WarnTag("Inference", "upstream returned no choices")
		return analysis.Failure(analysis.MessageNoResponse, rawPayload(resp))
	}

	text := resp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		p.logger.WarnTag("Inference", "upstream returned empty text")
		return analysis.Failure(analysis.MessageNoText, rawPayload(resp))
	}

	foods, err := analysis.Parse(text)
	if err != nil {
		p.logger.WarnTag("Inference", "unreadable model output: %v", err)
		return analysis.Failure("unreadable model response: "+err.Error(), text)
	}

	return analysis.FromFoods(foods)
}

func isOverloaded(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusServiceUnavailable
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusServiceUnavailable
	}
	return false
}

func rawPayload(resp openai.ChatCompletionResponse) string {
	s, err := sonic.MarshalString(resp)
	if err != nil {
		return ""
	}
	return s
}
