package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/pavelanni/interviewer/internal/metrics"
	"github.com/pavelanni/interviewer/internal/model"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultBaseDelay = 500 * time.Millisecond
)

var errNoChoices = errors.New("LLM returned no choices")

// Config configures the oracle client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	// Timeout bounds each attempt. Zero means 60s.
	Timeout time.Duration
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// RequestsPerSecond limits outbound calls. Zero disables the limiter.
	RequestsPerSecond float64
	// RetryBaseDelay is the first backoff interval. Zero means 500ms.
	RetryBaseDelay time.Duration
}

// Options tunes a single completion.
type Options struct {
	// Operation labels metrics and logs, e.g. "gd_topic".
	Operation   string
	Temperature float32
	MaxTokens   int
	// JSON asks the provider for a JSON object response.
	JSON bool
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api        *openai.Client
	model      string
	timeout    time.Duration
	maxRetries int
	baseDelay  time.Duration
	limiter    *rate.Limiter
}

// New creates a new LLM client.
func New(cfg Config) *Client {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	c := &Client{
		api:        openai.NewClientWithConfig(config),
		model:      cfg.Model,
		timeout:    cfg.Timeout,
		maxRetries: max(cfg.MaxRetries, 0),
		baseDelay:  cfg.RetryBaseDelay,
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.baseDelay <= 0 {
		c.baseDelay = defaultBaseDelay
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c
}

func (c *Client) backOff() backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.baseDelay
	expo.MaxInterval = 10 * c.baseDelay
	// Attempts are bounded by WithMaxRetries and the caller's context.
	expo.MaxElapsedTime = 0
	return backoff.WithMaxRetries(expo, uint64(c.maxRetries))
}

// Complete sends one system/user prompt pair and returns the raw reply text.
// Transient failures are retried with exponential backoff. Errors wrap
// model.ErrOracleTimeout when attempts ran out of time and
// model.ErrOracleUnavailable otherwise.
func (c *Client) Complete(ctx context.Context, system, user string, opts Options) (string, error) {
	var msgs []openai.ChatCompletionMessage
	if system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: user})

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	if opts.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	start := time.Now()
	attempt := 0
	var text string
	op := func() error {
		attempt++
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		actx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.api.CreateChatCompletion(actx, req)
		if err != nil {
			if isPermanent(err) {
				return backoff.Permanent(err)
			}
			slog.Warn("LLM call failed, retrying", "operation", opts.Operation, "attempt", attempt, "error", err)
			return err
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(errNoChoices)
		}
		text = resp.Choices[0].Message.Content
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(c.backOff(), ctx))
	elapsed := time.Since(start)
	if err != nil {
		err = classify(err)
		outcome := "unavailable"
		if errors.Is(err, model.ErrOracleTimeout) {
			outcome = "timeout"
		}
		metrics.ObserveOracle(opts.Operation, outcome, elapsed)
		slog.Error("LLM call failed", "operation", opts.Operation, "attempts", attempt, "duration", elapsed, "error", err)
		return "", err
	}

	metrics.ObserveOracle(opts.Operation, "ok", elapsed)
	slog.Debug("LLM response", "operation", opts.Operation, "attempts", attempt, "duration", elapsed, "raw", text)
	return strings.TrimSpace(text), nil
}

// Ping checks that the endpoint is reachable and the key is accepted.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if _, err := c.api.ListModels(ctx); err != nil {
		return classify(err)
	}
	return nil
}

// isPermanent reports whether retrying err cannot help: client errors other
// than rate limiting.
func isPermanent(err error) bool {
	status := statusCode(err)
	return status >= 400 && status < 500 && status != http.StatusTooManyRequests
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", model.ErrOracleTimeout, err)
	}
	return fmt.Errorf("%w: %w", model.ErrOracleUnavailable, err)
}
