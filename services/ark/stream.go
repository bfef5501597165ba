package ark

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// StreamChunkDelta represents the delta content in a streaming chunk.
// During a thinking-enabled call the model emits ReasoningContent deltas
// first, then Content deltas; either may be empty in any given chunk.
type StreamChunkDelta struct {
	Role             string `json:"role,omitempty"`
	Content          string `json:"content,omitempty"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
}

// StreamChunkChoice represents a choice in a streaming chunk
type StreamChunkChoice struct {
	Index        int              `json:"index"`
	Delta        StreamChunkDelta `json:"delta"`
	FinishReason string           `json:"finish_reason,omitempty"`
}

// StreamChunk represents one SSE event in a streaming response
type StreamChunk struct {
	ID      string              `json:"id"`
	Object  string              `json:"object,omitempty"`
	Created int64               `json:"created"`
	Model   string              `json:"model"`
	Choices []StreamChunkChoice `json:"choices"`
	Usage   *Usage              `json:"usage,omitempty"` // Token usage (in final chunk)
}

// GetContent returns the content delta from the first choice
func (c *StreamChunk) GetContent() string {
	if len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].Delta.Content
}

// GetReasoningContent returns the reasoning delta from the first choice
func (c *StreamChunk) GetReasoningContent() string {
	if len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].Delta.ReasoningContent
}

// GetFinishReason returns the finish reason from the first choice
func (c *StreamChunk) GetFinishReason() string {
	if len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].FinishReason
}

// IsDone returns true if the stream is done
func (c *StreamChunk) IsDone() bool {
	return c.GetFinishReason() == "stop"
}

// StreamChatCompletion creates a streaming chat completion and invokes the
// callback for every parsed chunk in arrival order. A callback error aborts
// the stream and is returned to the caller.
func (c *Client) StreamChatCompletion(ctx context.Context, messages []Message, callback func(StreamChunk) error, options ...Option) error {
	req := Request{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0.3,
		MaxTokens:   5000,
		Thinking:    &Thinking{Type: ThinkingDisabled},
	}

	for _, opt := range options {
		opt(&req)
	}

	// Force stream to true
	req.Stream = true

	jsonBody, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("streaming failed with status %d: %s", resp.StatusCode, string(body))
	}

	// Read SSE stream
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}

		if strings.HasPrefix(line, "data: ") {
			data := strings.TrimPrefix(line, "data: ")

			// Check for stream end
			if data == "[DONE]" {
				break
			}

			var chunk StreamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				// Skip malformed chunks but keep reading
				continue
			}

			if err := callback(chunk); err != nil {
				return fmt.Errorf("callback error: %w", err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream reading error: %w", err)
	}

	return nil
}
