package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"dubbing/internal/logging"
)

const (
	defaultBaseURL        = "https://api.openai.com/v1"
	defaultConnectTimeout = 10 * time.Second
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 64 * time.Second
	defaultRequestRate    = 5
	defaultMaxInFlight    = 20
)

// Config captures the runtime settings required to talk to the LLM.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// ConnectTimeoutSeconds bounds connection establishment only; long
	// generations are never cut off.
	ConnectTimeoutSeconds int
	// RequestsPerSecond is the token-bucket rate shared by every caller.
	RequestsPerSecond float64
	// MaxInFlight bounds concurrent requests.
	MaxInFlight int
}

// Client issues chat completions against an OpenAI-compatible API.
type Client struct {
	cfg     Config
	api     *openai.Client
	limiter *rate.Limiter
	gate    *semaphore.Weighted
	logger  *slog.Logger

	httpClient       *http.Client
	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)

	logMu      sync.Mutex
	messageLog io.Writer

	promptTokens     atomic.Int64
	completionTokens atomic.Int64
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts caps the number of attempts per request. Zero or a
// negative value (the default) retries until the context ends.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// WithLogger attaches a logger for retry warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMessageLog records every exchange in a plain-text transcript.
func WithMessageLog(w io.Writer) Option {
	return func(c *Client) {
		c.messageLog = w
	}
}

// NewClient constructs an LLM client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaultRequestRate
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = defaultMaxInFlight
	}

	client := &Client{
		cfg:            cfg,
		limiter:        rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), int(math.Ceil(cfg.RequestsPerSecond))),
		gate:           semaphore.NewWeighted(int64(cfg.MaxInFlight)),
		retryBaseDelay: defaultRetryBaseDelay,
		retryMaxDelay:  defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.logger == nil {
		client.logger = logging.NewNop()
	}
	if client.httpClient == nil {
		client.httpClient = newHTTPClient(cfg.ConnectTimeoutSeconds)
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = cfg.BaseURL
	apiCfg.HTTPClient = client.httpClient
	client.api = openai.NewClientWithConfig(apiCfg)
	return client
}

func newHTTPClient(connectTimeoutSeconds int) *http.Client {
	timeout := defaultConnectTimeout
	if connectTimeoutSeconds > 0 {
		timeout = time.Duration(connectTimeoutSeconds) * time.Second
	}
	dialer := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: timeout,
			MaxIdleConnsPerHost: defaultMaxInFlight,
		},
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Usage returns the prompt and completion tokens consumed so far.
func (c *Client) Usage() (prompt, completion int64) {
	return c.promptTokens.Load(), c.completionTokens.Load()
}

// emptyContentAttempts caps how often a blank completion is requested again.
const emptyContentAttempts = 3

type emptyContentError struct {
	Op           string
	FinishReason string
	Refusal      string
}

func (e *emptyContentError) Error() string {
	return fmt.Sprintf("%s: empty content (finish_reason=%q, refusal=%q)", e.Op, e.FinishReason, e.Refusal)
}

// Ask sends a system prompt and an optional user prompt and returns the
// model's reply. Transport failures are retried with exponential backoff
// until the context ends (or the configured attempt cap is reached).
func (c *Client) Ask(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return "", errors.New("llm ask: system prompt required")
	}
	if c.cfg.APIKey == "" {
		return "", errors.New("llm ask: api key required")
	}
	messages := []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleSystem, Content: systemPrompt}}
	if strings.TrimSpace(userPrompt) != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: userPrompt})
	}
	content, err := c.completionContentWithRetry(ctx, messages, "llm ask", c.retryMaxAttempts)
	if err != nil {
		return "", err
	}
	c.recordExchange(systemPrompt, userPrompt, content)
	return content, nil
}

// HealthCheck issues a single fast request to verify the API key and model.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return errors.New("llm health: api key required")
	}
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: "You must respond with JSON only."},
		{Role: openai.ChatMessageRoleUser, Content: "Respond with {\"ok\":true}"},
	}
	content, err := c.completionContentWithRetry(ctx, messages, "llm health", 1)
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeLLMJSON(content, &parsed); err != nil {
		return fmt.Errorf("llm health: parse payload: %w", err)
	}
	if !parsed.OK {
		return errors.New("llm health: unexpected response")
	}
	return nil
}

func (c *Client) completionContentWithRetry(ctx context.Context, messages []openai.ChatCompletionMessage, op string, maxAttempts int) (string, error) {
	for attempt := 1; ; attempt++ {
		content, err := c.sendOnce(ctx, messages, op)
		if err == nil {
			return content, nil
		}
		var empty *emptyContentError
		if errors.As(err, &empty) && (empty.Refusal != "" || attempt >= emptyContentAttempts) {
			// A refusal or a model that keeps answering blank will not change
			// its mind; callers fall back on an empty reply.
			logging.WarnWithContext(logging.WithContext(ctx, c.logger), "llm returned empty content",
				"llm_empty_content",
				logging.Int("attempt", attempt),
				logging.String("finish_reason", empty.FinishReason),
				logging.String("refusal", empty.Refusal),
				logging.String(logging.FieldImpact, "the affected lines keep an empty translation"),
			)
			return "", nil
		}
		delay, retry := c.retryDelay(ctx, err, attempt, maxAttempts)
		if !retry {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", fmt.Errorf("%s: %w (last error: %v)", op, ctxErr, err)
			}
			if attempt > 1 {
				return "", fmt.Errorf("%s: failed after %d attempts: %w", op, attempt, err)
			}
			return "", err
		}
		logging.WarnWithContext(logging.WithContext(ctx, c.logger), "llm request failed; retrying",
			"llm_retry",
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the API endpoint, key, and provider status"),
			logging.String(logging.FieldImpact, "translation is delayed until the request succeeds"),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return "", err
		}
	}
}

func (c *Client) sendOnce(ctx context.Context, messages []openai.ChatCompletionMessage, op string) (string, error) {
	if err := c.gate.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.gate.Release(1)
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.cfg.Model,
		Messages: messages,
		// Zero is dropped by omitempty; the smallest positive value is the
		// documented way to request deterministic sampling.
		Temperature: math.SmallestNonzeroFloat32,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	c.promptTokens.Add(int64(resp.Usage.PromptTokens))
	c.completionTokens.Add(int64(resp.Usage.CompletionTokens))

	if len(resp.Choices) == 0 {
		return "", &emptyContentError{Op: op}
	}
	choice := resp.Choices[0]
	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		return "", &emptyContentError{
			Op:           op,
			FinishReason: string(choice.FinishReason),
			Refusal:      choice.Message.Refusal,
		}
	}
	return content, nil
}

func (c *Client) recordExchange(system, user, reply string) {
	if c.messageLog == nil {
		return
	}
	c.logMu.Lock()
	defer c.logMu.Unlock()
	var b strings.Builder
	b.WriteString("[System]\n")
	b.WriteString(system)
	b.WriteString("\n")
	if user != "" {
		b.WriteString("[User]\n")
		b.WriteString(user)
		b.WriteString("\n")
	}
	b.WriteString("[LLM]\n")
	b.WriteString(reply)
	b.WriteString("\n\n")
	_, _ = io.WriteString(c.messageLog, b.String())
}

func (c *Client) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if err == nil || ctx == nil || ctx.Err() != nil {
		return 0, false
	}
	if maxAttempts > 0 && attempt >= maxAttempts {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	if isPermanent(err) {
		return 0, false
	}
	return c.backoffDelay(attempt), true
}

// isPermanent reports request errors that no amount of retrying will fix.
func isPermanent(err error) bool {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	default:
		return false
	}
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	base := c.retryBaseDelay
	if base <= 0 {
		return 0
	}
	maxDelay := c.retryMaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultRetryMaxDelay
	}
	// attempt 1 -> base, attempt 2 -> base*2, attempt 3 -> base*4, ...
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > maxDelay/2 {
			return maxDelay
		}
		delay *= 2
	}
	return min(delay, maxDelay)
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if delay <= 0 {
		return nil
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// DecodeLLMJSON decodes JSON from an LLM response, handling common formatting quirks.
func DecodeLLMJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}
	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}
	sanitized := sanitizeJSONPayload(trimmed)
	if sanitized == "" || sanitized == trimmed {
		return fmt.Errorf("%w (payload snippet: %s)", directErr, SummarizeSnippet(trimmed))
	}
	if err := json.Unmarshal([]byte(sanitized), target); err != nil {
		return fmt.Errorf("%w (sanitized payload snippet: %s)", err, SummarizeSnippet(sanitized))
	}
	return nil
}

func sanitizeJSONPayload(content string) string {
	trimmed := strings.TrimSpace(StripCodeFence(content))
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	return trimmed
}

// StripCodeFence removes a surrounding Markdown code fence, if present.
func StripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := trimmed[3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.ContainsAny(body[:nl], " \t") {
		// Drop the info string (```json, ```html, ...).
		body = body[nl+1:]
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

// SummarizeSnippet collapses whitespace and truncates content for logs.
func SummarizeSnippet(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "<empty>"
	}
	clean := strings.Join(strings.Fields(trimmed), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
