// Package openai implements ai.Generator for OpenAI-compatible chat
// completion endpoints. Groq is the default backend.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/logger"
	"github.com/spigell/job-matcher/internal/telemetry"
	"github.com/spigell/job-matcher/internal/utils"
)

const (
	ProviderName = "groq"

	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama-3.1-8b-instant"

	completionsPath   = "/chat/completions"
	contentType       = "application/json"
	userAgent         = "spigell/job-matcher"
	defaultMaxRetries = 2
	baseRetryDelay    = time.Second
	maxErrorBody      = 512
)

var tracer = telemetry.Tracer("github.com/spigell/job-matcher/internal/ai/openai")

type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxRetries int
	// JSONMode asks the backend to constrain the answer to a JSON object.
	JSONMode bool
	Timeout  time.Duration
}

// Client talks to a chat completions endpoint with a bearer credential.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	maxRetries int
	jsonMode   bool
	logger     *zap.Logger
	HTTPClient *http.Client

	wait func(ctx context.Context, d time.Duration) error
}

// StatusError is returned for non-success responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bad status: %d %s: %s", e.Code, http.StatusText(e.Code), e.Body)
}

func (e *StatusError) temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

func New(opts Options, log *zap.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("chat completions api key is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}

	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		maxRetries: maxRetries,
		jsonMode:   opts.JSONMode,
		logger:     logger.WithCommonFields(log, ProviderName, model),
		HTTPClient: &http.Client{Timeout: timeout},
		wait:       utils.WaitFor,
	}, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type completionRequest struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// GenerateContent sends system and prompt as a two-message conversation and
// returns the content of the first choice.
func (c *Client) GenerateContent(ctx context.Context, system, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	body := completionRequest{Model: c.model}
	if system = strings.TrimSpace(system); system != "" {
		body.Messages = append(body.Messages, message{Role: "system", Content: system})
	}
	body.Messages = append(body.Messages, message{Role: "user", Content: prompt})
	if c.jsonMode {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		output, err := c.complete(ctx, payload)
		if err == nil {
			return output, nil
		}
		lastErr = err

		var statusErr *StatusError
		if !errors.As(err, &statusErr) || !statusErr.temporary() || attempt == c.maxRetries {
			break
		}

		delay := baseRetryDelay * time.Duration(1<<(attempt-1))
		c.logger.Warn("chat completion failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := c.wait(ctx, delay); err != nil {
			return "", err
		}
	}

	return "", lastErr
}

func (c *Client) complete(ctx context.Context, payload []byte) (string, error) {
	ctx, span := tracer.Start(ctx, "openai.ChatCompletion")
	defer span.End()
	span.SetAttributes(attribute.String(logger.FieldModel, c.model))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completionsPath, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	req.Header.Set("User-Agent", userAgent)

	c.logger.Debug("make request", zap.String("url", req.URL.String()))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("chat completion request: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("failed to close response body", zap.Error(cerr))
		}
	}()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := &StatusError{Code: resp.StatusCode, Body: utils.TruncateForLog(string(data), maxErrorBody)}
		span.RecordError(err)
		return "", err
	}

	var decoded completionResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("response has no choices")
	}

	return decoded.Choices[0].Message.Content, nil
}

func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.model
}
