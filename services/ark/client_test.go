package ark

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestChatCompletion(t *testing.T) {
	var captured Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}

		json.NewEncoder(w).Encode(Response{
			ID:    "resp-1",
			Model: captured.Model,
			Choices: []Choice{
				{Message: ResponseMessage{Role: "assistant", Content: "hello back"}},
			},
			Usage: Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})

	resp, err := client.ChatCompletion(context.Background(),
		[]Message{TextMessage("user", "hello")},
		WithTemperature(0.7),
		WithMaxTokens(100),
		WithThinking(ThinkingEnabled),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.ExtractContent() != "hello back" {
		t.Errorf("unexpected content: %q", resp.ExtractContent())
	}
	prompt, completion, total := resp.GetUsage()
	if prompt != 10 || completion != 5 || total != 15 {
		t.Errorf("unexpected usage: %d %d %d", prompt, completion, total)
	}

	if captured.Model != DefaultModel {
		t.Errorf("expected default model, got %s", captured.Model)
	}
	if captured.Temperature != 0.7 {
		t.Errorf("expected temperature option applied, got %f", captured.Temperature)
	}
	if captured.MaxTokens != 100 {
		t.Errorf("expected max tokens option applied, got %d", captured.MaxTokens)
	}
	if captured.Thinking == nil || captured.Thinking.Type != ThinkingEnabled {
		t.Errorf("expected thinking enabled, got %+v", captured.Thinking)
	}
	if captured.Stream {
		t.Errorf("non-streaming call must not set stream")
	}
}

func TestChatCompletionAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error": {"message": "rate limited"}}`)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})

	_, err := client.ChatCompletion(context.Background(), []Message{TextMessage("user", "hi")})
	if err == nil {
		t.Fatal("expected error for non-2xx status")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error should carry the status code, got %v", err)
	}
}

func TestStreamChatCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if !req.Stream {
			t.Errorf("streaming call must set stream=true")
		}

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"reasoning_content\":\"thinking...\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		fmt.Fprint(w, ": keep-alive comment\n\n")
		fmt.Fprint(w, "data: not-json\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"},\"finish_reason\":\"stop\"}],\"usage\":{\"total_tokens\":20}}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})

	var content, reasoning strings.Builder
	var totalTokens int
	err := client.StreamChatCompletion(context.Background(),
		[]Message{TextMessage("user", "hello")},
		func(chunk StreamChunk) error {
			content.WriteString(chunk.GetContent())
			reasoning.WriteString(chunk.GetReasoningContent())
			if chunk.Usage != nil {
				totalTokens = chunk.Usage.TotalTokens
			}
			return nil
		},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if content.String() != "Hello" {
		t.Errorf("expected accumulated content %q, got %q", "Hello", content.String())
	}
	if reasoning.String() != "thinking..." {
		t.Errorf("expected reasoning delta, got %q", reasoning.String())
	}
	if totalTokens != 20 {
		t.Errorf("expected usage from final chunk, got %d", totalTokens)
	}
}

func TestStreamChatCompletionCallbackError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"chunk\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})

	err := client.StreamChatCompletion(context.Background(),
		[]Message{TextMessage("user", "hello")},
		func(chunk StreamChunk) error {
			return fmt.Errorf("client went away")
		},
	)
	if err == nil || !strings.Contains(err.Error(), "client went away") {
		t.Errorf("expected callback error surfaced, got %v", err)
	}
}

func TestMultimodalMessage(t *testing.T) {
	msg := MultimodalMessage("user", "what is this?", []string{
		"https://cdn.example.com/a.png",
		"iVBORw0KGgo=",
	})

	parts, ok := msg.Content.([]ContentPart)
	if !ok {
		t.Fatalf("expected content parts, got %T", msg.Content)
	}
	if len(parts) != 3 {
		t.Fatalf("expected 2 images + 1 text, got %d parts", len(parts))
	}
	if parts[0].ImageURL.URL != "https://cdn.example.com/a.png" {
		t.Errorf("http URL should pass through, got %q", parts[0].ImageURL.URL)
	}
	if !strings.HasPrefix(parts[1].ImageURL.URL, "data:image/png;base64,") {
		t.Errorf("bare base64 should become a data URI, got %q", parts[1].ImageURL.URL)
	}
	if parts[2].Type != "text" || parts[2].Text != "what is this?" {
		t.Errorf("text part should come last, got %+v", parts[2])
	}

	// Without images the message degrades to plain text
	plain := MultimodalMessage("user", "hi", nil)
	if _, ok := plain.Content.(string); !ok {
		t.Errorf("expected plain string content without images, got %T", plain.Content)
	}
}
