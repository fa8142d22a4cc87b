package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/certhours/cert-hours-api/pkg/config"
)

const defaultOCRTimeout = 60 * time.Second

// OCRResult is the text-recognition output for one document.
type OCRResult struct {
	Text             string  `json:"text"`
	Confidence       float64 `json:"confidence"`
	ProcessingTimeMs int     `json:"processing_time_ms"`
}

// OCRClient talks to the text-recognition sidecar over HTTP. The provider is
// opaque: callers hand it raw file bytes and get text back, or an error.
type OCRClient struct {
	baseURL    string
	language   string
	httpClient *http.Client
}

// OCROption customizes the client.
type OCROption func(*OCRClient)

// WithOCRHTTPClient overrides the default HTTP client, mainly for tests.
func WithOCRHTTPClient(client *http.Client) OCROption {
	return func(c *OCRClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewOCRClient constructs an OCR client from configuration.
func NewOCRClient(cfg config.OCRProviderConfig, opts ...OCROption) *OCRClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultOCRTimeout
	}
	client := &OCRClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		language:   cfg.Language,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Recognize uploads the document and returns the extracted text. A non-2xx
// status or a transport failure is a provider error; an empty text result is
// returned as-is and left to the caller to judge.
func (c *OCRClient) Recognize(ctx context.Context, filename string, content []byte) (*OCRResult, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("ocr request: build form: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("ocr request: write file: %w", err)
	}
	if c.language != "" {
		if err := writer.WriteField("language", c.language); err != nil {
			return nil, fmt.Errorf("ocr request: write language: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("ocr request: close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ocr", &buf)
	if err != nil {
		return nil, fmt.Errorf("ocr request: new request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ocr request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ocr request: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ocr request: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result OCRResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("ocr request: decode response: %w", err)
	}
	if result.ProcessingTimeMs == 0 {
		result.ProcessingTimeMs = int(time.Since(started).Milliseconds())
	}
	return &result, nil
}
