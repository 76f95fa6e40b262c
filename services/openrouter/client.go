package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultBaseURL is the OpenRouter chat completions API base URL
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	// DefaultTimeout is longer for LLM completion requests
	DefaultTimeout = 120 * time.Second
	// DefaultModel is the default model for completions
	DefaultModel = "openai/gpt-4o-mini"
)

// Client handles chat completion calls against the OpenRouter API
// (OpenAI-compatible wire format). It is a pure request/response gateway:
// no caching, no persistence.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	model      string
}

// Config holds configuration for the completion client
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Model   string
}

// NewClient creates a new OpenRouter completion client
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}

	return &Client{
		apiKey:  config.APIKey,
		baseURL: config.BaseURL,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		model: config.Model,
	}
}

// APIError is returned when the provider responds with a non-success status
// or a malformed envelope. The raw body is kept for diagnostics and never
// forwarded to clients.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openrouter API error (status %d): %s", e.StatusCode, e.Body)
}

// Message represents a message in the chat completion request
type Message struct {
	Role    string `json:"role"`    // "system", "user", "assistant"
	Content string `json:"content"` // The message content
}

// ResponseFormat requests a constrained output mode ("json_object")
type ResponseFormat struct {
	Type string `json:"type"`
}

// Request represents an OpenAI-compatible chat completion request
type Request struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Stream         bool            `json:"stream,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// Choice represents a choice in the completion response
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response represents the raw response from the completions API
type Response struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Completion is the result handed to callers: the generated text plus the
// provider's token accounting.
type Completion struct {
	Text  string
	Usage Usage
}

// Option is a function that modifies the completion request
type Option func(*Request)

// WithTemperature sets the temperature for the request
func WithTemperature(temp float64) Option {
	return func(req *Request) {
		req.Temperature = temp
	}
}

// WithMaxTokens sets the max tokens for the request
func WithMaxTokens(tokens int) Option {
	return func(req *Request) {
		req.MaxTokens = tokens
	}
}

// WithModel sets a different model for the request
func WithModel(model string) Option {
	return func(req *Request) {
		req.Model = model
	}
}

// WithJSONResponse requests JSON object output mode from the provider
func WithJSONResponse() Option {
	return func(req *Request) {
		req.ResponseFormat = &ResponseFormat{Type: "json_object"}
	}
}

// ChatCompletion sends a chat completion request to the API
func (c *Client) ChatCompletion(ctx context.Context, messages []Message, options ...Option) (*Response, error) {
	req := Request{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0.3, // Default temperature for more deterministic output
		MaxTokens:   4096,
		Stream:      false,
	}

	// Apply options
	for _, opt := range options {
		opt(&req)
	}

	return c.sendChatCompletion(ctx, req)
}

// Complete is the single-turn convenience used by the generation services:
// system prompt + user payload in, generated text + usage out.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPayload string, options ...Option) (*Completion, error) {
	messages := []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPayload},
	}

	resp, err := c.ChatCompletion(ctx, messages, options...)
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, &APIError{StatusCode: http.StatusOK, Body: "no choices returned from completions API"}
	}

	return &Completion{
		Text:  resp.Choices[0].Message.Content,
		Usage: resp.Usage,
	}, nil
}

// sendChatCompletion performs the actual API request
func (c *Client) sendChatCompletion(ctx context.Context, req Request) (*Response, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers (OpenAI-compatible format)
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	// Perform request
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// Read response body
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	// Check for errors
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	// Parse response
	var result Response
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &result, nil
}

// HealthCheck verifies the completions API is accessible
func (c *Client) HealthCheck(ctx context.Context) error {
	messages := []Message{
		{Role: "user", Content: "Say 'ok' if you can hear me."},
	}

	_, err := c.ChatCompletion(ctx, messages, WithMaxTokens(10))
	return err
}
