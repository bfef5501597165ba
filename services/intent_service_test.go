package services

import (
	"context"
	"errors"
	"testing"

	"github.com/kindred-ai/kindred-api/services/ark"
)

// scriptedCompleter returns a fixed response (or error) and records calls
type scriptedCompleter struct {
	content string
	err     error
	calls   int
}

func (f *scriptedCompleter) ChatCompletion(ctx context.Context, messages []ark.Message, options ...ark.Option) (*ark.Response, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &ark.Response{
		Choices: []ark.Choice{
			{Message: ark.ResponseMessage{Role: "assistant", Content: f.content}},
		},
	}, nil
}

func newTestIntentService(client ChatCompleter) *IntentService {
	return NewIntentService(client, "test-lite-model", DefaultLexicon())
}

func TestDetectAgentIntentKnowledgeQuery(t *testing.T) {
	client := &scriptedCompleter{
		content: `{"intent": "KNOWLEDGE_QUERY", "confidence": 0.95, "query_params": {"date": "yesterday", "keywords": ["hiking"]}, "reason": "asks about past events"}`,
	}
	s := newTestIntentService(client)

	result := s.DetectAgentIntent(context.Background(), "what did we talk about yesterday?")
	if result.Intent != AgentIntentKnowledgeQuery {
		t.Errorf("expected KNOWLEDGE_QUERY, got %s", result.Intent)
	}
	if result.Confidence != 0.95 {
		t.Errorf("expected confidence 0.95, got %f", result.Confidence)
	}
	if result.QueryParams == nil || result.QueryParams.Date != "yesterday" {
		t.Errorf("expected query params with date, got %+v", result.QueryParams)
	}
}

func TestDetectAgentIntentUnknownLabelDegrades(t *testing.T) {
	client := &scriptedCompleter{
		content: `{"intent": "SOMETHING_ELSE", "confidence": 0.8, "query_params": {"date": "yesterday"}}`,
	}
	s := newTestIntentService(client)

	result := s.DetectAgentIntent(context.Background(), "hello")
	if result.Intent != AgentIntentNormalChat {
		t.Errorf("unknown intent label should degrade to NORMAL_CHAT, got %s", result.Intent)
	}
	if result.QueryParams != nil {
		t.Errorf("query params should be cleared for normal chat")
	}
}

func TestDetectAgentIntentKeywordFallback(t *testing.T) {
	// Not JSON, but the text mentions a recall phrase
	client := &scriptedCompleter{content: "the user asks what happened yesterday"}
	s := newTestIntentService(client)

	result := s.DetectAgentIntent(context.Background(), "what happened yesterday")
	if result.Intent != AgentIntentKnowledgeQuery {
		t.Errorf("expected keyword fallback to KNOWLEDGE_QUERY, got %s", result.Intent)
	}
	if result.Confidence != 0.6 {
		t.Errorf("expected fallback confidence 0.6, got %f", result.Confidence)
	}
	if result.QueryParams == nil || result.QueryParams.Date != "yesterday" {
		t.Errorf("expected date extracted by lexicon, got %+v", result.QueryParams)
	}
}

func TestDetectAgentIntentErrorDegradesToNormalChat(t *testing.T) {
	client := &scriptedCompleter{err: errors.New("gateway down")}
	s := newTestIntentService(client)

	result := s.DetectAgentIntent(context.Background(), "hi there")
	if result.Intent != AgentIntentNormalChat {
		t.Errorf("expected NORMAL_CHAT on error, got %s", result.Intent)
	}
	if result.Confidence != 0 {
		t.Errorf("expected zero confidence on error, got %f", result.Confidence)
	}
}

func TestDetectChatIntentAttachmentShortCircuit(t *testing.T) {
	client := &scriptedCompleter{content: `should not be called`}
	s := newTestIntentService(client)

	// Content question about an attachment stays normal chat (vision path)
	result := s.DetectChatIntent(context.Background(), "what is shown in this picture?", true)
	if result.Intent != ChatIntentNormalChat {
		t.Errorf("inquiry over attachment should be NORMAL_CHAT, got %s", result.Intent)
	}

	// Generation verbs win over inquiry terms
	result = s.DetectChatIntent(context.Background(), "change the background to a beach", true)
	if result.Intent != ChatIntentImageGenerate {
		t.Errorf("generation request should be IMAGE_GENERATE, got %s", result.Intent)
	}

	// Bare attachment means parse it
	result = s.DetectChatIntent(context.Background(), "here you go", true)
	if result.Intent != ChatIntentFileParse {
		t.Errorf("bare attachment should be FILE_PARSE, got %s", result.Intent)
	}

	if client.calls != 0 {
		t.Errorf("attachment short-circuit must not call the model, got %d calls", client.calls)
	}
}

func TestDetectChatIntentModelClassification(t *testing.T) {
	client := &scriptedCompleter{content: `{"intent": "IMAGE_GENERATE", "reason": "asks for a drawing"}`}
	s := newTestIntentService(client)

	result := s.DetectChatIntent(context.Background(), "draw me a fox", false)
	if result.Intent != ChatIntentImageGenerate {
		t.Errorf("expected IMAGE_GENERATE, got %s", result.Intent)
	}
	if client.calls != 1 {
		t.Errorf("expected exactly one model call, got %d", client.calls)
	}
}

func TestDetectChatIntentKeywordFallback(t *testing.T) {
	client := &scriptedCompleter{content: "this looks like a file_parse request"}
	s := newTestIntentService(client)

	result := s.DetectChatIntent(context.Background(), "parse this document", false)
	if result.Intent != ChatIntentFileParse {
		t.Errorf("expected FILE_PARSE via keyword fallback, got %s", result.Intent)
	}
}

func TestDetectChatIntentErrorDegradesToNormalChat(t *testing.T) {
	client := &scriptedCompleter{err: errors.New("timeout")}
	s := newTestIntentService(client)

	result := s.DetectChatIntent(context.Background(), "hello", false)
	if result.Intent != ChatIntentNormalChat {
		t.Errorf("expected NORMAL_CHAT on error, got %s", result.Intent)
	}
}
