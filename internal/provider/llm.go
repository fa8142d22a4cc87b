package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/certhours/cert-hours-api/pkg/config"
)

const (
	defaultLLMTimeout    = 120 * time.Second
	defaultLLMRetries    = 3
	defaultLLMRetryDelay = 2 * time.Second
	maxLLMRetryDelay     = 30 * time.Second
)

// CertificateFields is the structured extraction result. Every field is
// optional: the model returns null for anything it cannot read, and that is
// stored rather than treated as a failure.
type CertificateFields struct {
	ParticipantName *string `json:"nome_participante"`
	EventName       *string `json:"evento"`
	Location        *string `json:"local"`
	EventDate       *string `json:"data"`
	Hours           *string `json:"carga_horaria"`
}

// Categorization is the model's category proposal for an activity.
type Categorization struct {
	Category   string   `json:"categoria"`
	Confidence *float64 `json:"confianca"`
	Reasoning  string   `json:"justificativa"`
}

// LLMClient wraps an Ollama-style generate API. Requests run with a low
// temperature for stable extraction; transient failures (5xx, 429, network
// timeouts) are retried with doubling backoff up to the configured limit.
type LLMClient struct {
	baseURL    string
	model      string
	httpClient *http.Client

	maxRetries int
	retryDelay time.Duration
	sleeper    func(time.Duration)
}

// LLMOption customizes the client.
type LLMOption func(*LLMClient)

// WithLLMHTTPClient overrides the default HTTP client.
func WithLLMHTTPClient(client *http.Client) LLMOption {
	return func(c *LLMClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLLMSleeper overrides how retry sleeps are performed, for tests.
func WithLLMSleeper(sleeper func(time.Duration)) LLMOption {
	return func(c *LLMClient) {
		c.sleeper = sleeper
	}
}

// NewLLMClient constructs an LLM client from configuration.
func NewLLMClient(cfg config.LLMProviderConfig, opts ...LLMOption) *LLMClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultLLMTimeout
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultLLMRetries
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = defaultLLMRetryDelay
	}
	client := &LLMClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: retries,
		retryDelay: delay,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// ExtractFields asks the model for the five certificate fields. Fields the
// model left out come back nil.
func (c *LLMClient) ExtractFields(ctx context.Context, text string) (*CertificateFields, error) {
	raw, err := c.generate(ctx, extractionPrompt(text))
	if err != nil {
		return nil, err
	}
	var fields CertificateFields
	if err := decodeModelJSON(raw, &fields); err != nil {
		return nil, fmt.Errorf("llm extract: parse payload: %w", err)
	}
	return &fields, nil
}

// Categorize asks the model to pick the best-fitting activity category by
// name from the supplied catalog text.
func (c *LLMClient) Categorize(ctx context.Context, rawText string, fields CertificateFields, catalog string) (*Categorization, error) {
	raw, err := c.generate(ctx, categorizationPrompt(rawText, fields, catalog))
	if err != nil {
		return nil, err
	}
	var result Categorization
	if err := decodeModelJSON(raw, &result); err != nil {
		return nil, fmt.Errorf("llm categorize: parse payload: %w", err)
	}
	result.Category = strings.TrimSpace(result.Category)
	result.Reasoning = strings.TrimSpace(result.Reasoning)
	if result.Reasoning == "" {
		result.Reasoning = strings.TrimSpace(raw)
	}
	return &result, nil
}

// Ping verifies the model server responds.
func (c *LLMClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("llm ping: new request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("llm ping: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("llm ping: http %d", resp.StatusCode)
	}
	return nil
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

func (c *LLMClient) generate(ctx context.Context, prompt string) (string, error) {
	payload := generateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  false,
		Options: generateOptions{Temperature: 0.1, TopP: 0.9},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("llm request: encode body: %w", err)
	}

	var lastErr error
	delay := c.retryDelay
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, delay); err != nil {
				return "", err
			}
			if delay < maxLLMRetryDelay {
				delay *= 2
			}
		}

		raw, err := c.generateOnce(ctx, encoded)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if !retryable(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("llm request: failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *LLMClient) generateOnce(ctx context.Context, encoded []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("llm request: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("llm request: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("llm request: decode response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("llm request: api error: %s", parsed.Error)
	}
	return strings.TrimSpace(parsed.Response), nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.code, e.body)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return statusErr.code == http.StatusTooManyRequests ||
			statusErr.code == http.StatusRequestTimeout ||
			statusErr.code >= http.StatusInternalServerError
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

func (c *LLMClient) sleep(ctx context.Context, delay time.Duration) error {
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

// decodeModelJSON tolerates models that wrap the JSON object in prose or a
// code fence: it slices from the first '{' to the last '}' before decoding.
func decodeModelJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}
	if err := json.Unmarshal([]byte(trimmed), target); err == nil {
		return nil
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return errors.New("no json object in payload")
	}
	return json.Unmarshal([]byte(trimmed[start:end+1]), target)
}
