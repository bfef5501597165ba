package ark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the Volcengine Ark OpenAI-compatible API base URL
	DefaultBaseURL = "https://ark.cn-beijing.volces.com/api/v3"
	// DefaultTimeout is longer for LLM inference requests
	DefaultTimeout = 120 * time.Second
	// DefaultModel is the default chat model
	DefaultModel = "doubao-seed-1-6-251015"
)

// ThinkingMode controls whether the model runs an explicit reasoning pass
// before answering. The current models support only "disabled" and "enabled".
type ThinkingMode string

const (
	ThinkingDisabled ThinkingMode = "disabled"
	ThinkingEnabled  ThinkingMode = "enabled"
)

// Thinking is the request section carrying the thinking mode
type Thinking struct {
	Type ThinkingMode `json:"type"`
}

// Client handles chat completion calls against the Ark API
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	model      string
}

// Config holds configuration for the Ark client
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Model   string
}

// NewClient creates a new Ark chat completion client
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
		baseURL: strings.TrimSuffix(config.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		model: config.Model,
	}
}

// Message represents one turn in a chat completion request. Content is
// either a plain string or a []ContentPart for multimodal turns.
type Message struct {
	Role    string      `json:"role"`    // "system", "user", "assistant"
	Content interface{} `json:"content"` // string or []ContentPart
}

// ContentPart is one element of a multimodal message content list
type ContentPart struct {
	Type     string    `json:"type"` // "text" or "image_url"
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL carries an image reference: an http(s) URL or a data URI
type ImageURL struct {
	URL string `json:"url"`
}

// TextMessage builds a plain text message
func TextMessage(role, content string) Message {
	return Message{Role: role, Content: content}
}

// MultimodalMessage builds a user message carrying images followed by text.
// Image references may be http(s) URLs, full data URIs, or bare base64
// payloads (assumed PNG).
func MultimodalMessage(role, text string, images []string) Message {
	if len(images) == 0 {
		return TextMessage(role, text)
	}

	parts := make([]ContentPart, 0, len(images)+1)
	for _, img := range images {
		url := img
		if !strings.HasPrefix(img, "http://") && !strings.HasPrefix(img, "https://") &&
			!strings.HasPrefix(img, "data:image/") {
			url = "data:image/png;base64," + img
		}
		parts = append(parts, ContentPart{
			Type:     "image_url",
			ImageURL: &ImageURL{URL: url},
		})
	}
	parts = append(parts, ContentPart{Type: "text", Text: text})

	return Message{Role: role, Content: parts}
}

// Request represents an OpenAI-compatible chat completion request
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	TopP        float64   `json:"top_p,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
	Thinking    *Thinking `json:"thinking,omitempty"`
}

// ResponseMessage is the assistant message in a completion choice
type ResponseMessage struct {
	Role             string `json:"role"`
	Content          string `json:"content"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
}

// Choice represents a choice in the completion response
type Choice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response represents the response from the chat completion API
type Response struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
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

// WithThinking sets the thinking mode for the request
func WithThinking(mode ThinkingMode) Option {
	return func(req *Request) {
		req.Thinking = &Thinking{Type: mode}
	}
}

// ChatCompletion sends a chat completion request to the Ark API
func (c *Client) ChatCompletion(ctx context.Context, messages []Message, options ...Option) (*Response, error) {
	req := Request{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0.3,
		MaxTokens:   5000,
		Thinking:    &Thinking{Type: ThinkingDisabled},
		Stream:      false,
	}

	for _, opt := range options {
		opt(&req)
	}

	return c.sendChatCompletion(ctx, req)
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

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ark API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result Response
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &result, nil
}

// SimpleCompletion is a convenience method for simple single-turn completions
func (c *Client) SimpleCompletion(ctx context.Context, systemPrompt, userPrompt string, options ...Option) (string, error) {
	messages := []Message{
		TextMessage("system", systemPrompt),
		TextMessage("user", userPrompt),
	}

	resp, err := c.ChatCompletion(ctx, messages, options...)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from ark API")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// HealthCheck verifies the Ark API is accessible
func (c *Client) HealthCheck(ctx context.Context) error {
	messages := []Message{
		TextMessage("user", "Say 'ok' if you can hear me."),
	}

	_, err := c.ChatCompletion(ctx, messages, WithMaxTokens(10))
	return err
}

// ExtractContent extracts the content from a completion response
func (r *Response) ExtractContent() string {
	if len(r.Choices) == 0 {
		return ""
	}
	return strings.TrimSpace(r.Choices[0].Message.Content)
}

// GetUsage returns the token usage from the response
func (r *Response) GetUsage() (prompt, completion, total int) {
	return r.Usage.PromptTokens, r.Usage.CompletionTokens, r.Usage.TotalTokens
}
