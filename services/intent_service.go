package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/kindred-ai/kindred-api/services/ark"
	"github.com/kindred-ai/kindred-api/utils"
)

// AgentIntent classifies a message batch sent to an agent
type AgentIntent string

const (
	AgentIntentNormalChat     AgentIntent = "NORMAL_CHAT"
	AgentIntentKnowledgeQuery AgentIntent = "KNOWLEDGE_QUERY"
)

// ChatIntent classifies a message in the plain chat flow
type ChatIntent string

const (
	ChatIntentFileParse     ChatIntent = "FILE_PARSE"
	ChatIntentImageGenerate ChatIntent = "IMAGE_GENERATE"
	ChatIntentNormalChat    ChatIntent = "NORMAL_CHAT"
)

// DateRange bounds a knowledge query in time
type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// QueryParams carries retrieval hints extracted by the classifier
type QueryParams struct {
	Date      string     `json:"date,omitempty"`
	Keywords  []string   `json:"keywords,omitempty"`
	DateRange *DateRange `json:"date_range,omitempty"`
}

// AgentIntentResult is the outcome of agent-flow classification
type AgentIntentResult struct {
	Intent      AgentIntent  `json:"intent"`
	Confidence  float64      `json:"confidence"`
	QueryParams *QueryParams `json:"query_params,omitempty"`
	Reason      string       `json:"reason"`
	RawResponse string       `json:"-"`
}

// ChatIntentResult is the outcome of plain-chat classification
type ChatIntentResult struct {
	Intent      ChatIntent `json:"intent"`
	Reason      string     `json:"reason"`
	RawResponse string     `json:"-"`
}

const agentIntentSystemPrompt = `You are an intent classifier for messages sent to a persona agent.

Possible intents:
1. NORMAL_CHAT - ordinary conversation, the agent just replies
2. KNOWLEDGE_QUERY - the user asks about the agent's past memories, including:
   - questions about past events ("what happened yesterday", "what did we discuss last week")
   - questions about earlier conversations ("remember when we talked about...")
   - questions about a specific date ("on 2024-01-15...")
   - any request that needs the agent's memory archive

Return JSON only, in this exact shape:
{
    "intent": "NORMAL_CHAT" | "KNOWLEDGE_QUERY",
    "confidence": 0.0-1.0,
    "query_params": {
        "date": "yesterday" | "last_week" | "2024-01-15" | null,
        "keywords": ["keyword1", "keyword2"],
        "date_range": {
            "from": "2024-01-01",
            "to": "2024-01-15"
        }
    },
    "reason": "short justification"
}

Return JSON only, nothing else.`

const chatIntentSystemPrompt = `You are an intent classifier. Analyze the user message and decide what the user wants.

Possible intents:
1. FILE_PARSE - the user wants a document parsed (upload a document, parse a PDF, analyze file contents)
2. IMAGE_GENERATE - the user wants an image generated or modified (draw a picture, change the background, image-to-image requests)
3. NORMAL_CHAT - everything else, including questions about what an image shows (that is vision analysis, not generation)

Return JSON only, in this exact shape:
{
    "intent": "FILE_PARSE" | "IMAGE_GENERATE" | "NORMAL_CHAT",
    "reason": "short justification"
}

Return JSON only, nothing else.`

// IntentService classifies user messages with a lightweight model and falls
// back to lexicon matching when the model output cannot be parsed.
// Classification never returns an error: any failure degrades to
// NORMAL_CHAT so the conversation keeps flowing.
type IntentService struct {
	client    ChatCompleter
	liteModel string
	lexicon   *Lexicon
}

// NewIntentService creates an intent classifier backed by the given client
// and lite model
func NewIntentService(client ChatCompleter, liteModel string, lexicon *Lexicon) *IntentService {
	return &IntentService{
		client:    client,
		liteModel: liteModel,
		lexicon:   lexicon,
	}
}

// DetectAgentIntent classifies a combined batch message for the agent flow
func (s *IntentService) DetectAgentIntent(ctx context.Context, userMessage string) AgentIntentResult {
	log.Printf("[Intent] classifying agent message: %s", preview(userMessage, 50))

	messages := []ark.Message{
		ark.TextMessage("system", agentIntentSystemPrompt),
		ark.TextMessage("user", userMessage),
	}

	resp, err := s.client.ChatCompletion(ctx, messages,
		ark.WithModel(s.liteModel),
		ark.WithThinking(ark.ThinkingDisabled),
		ark.WithMaxTokens(300),
		ark.WithTemperature(0.1),
	)
	if err != nil {
		log.Printf("[Intent] agent classification failed, degrading to normal chat: %v", err)
		return AgentIntentResult{
			Intent:     AgentIntentNormalChat,
			Confidence: 0,
			Reason:     fmt.Sprintf("classification failed: %v", err),
		}
	}

	return s.parseAgentIntent(resp.ExtractContent())
}

// parseAgentIntent decodes the classifier response, falling back to
// lexicon matching when it is not valid JSON
func (s *IntentService) parseAgentIntent(responseText string) AgentIntentResult {
	var result AgentIntentResult
	if err := utils.ExtractJSONTo(responseText, &result); err != nil {
		log.Printf("[Intent] agent intent JSON parse failed, using keyword fallback: %v", err)
		return s.agentKeywordFallback(responseText)
	}

	if result.Intent != AgentIntentKnowledgeQuery {
		result.Intent = AgentIntentNormalChat
		result.QueryParams = nil
	}
	result.RawResponse = responseText

	log.Printf("[Intent] agent intent: %s (confidence %.2f)", result.Intent, result.Confidence)

	return result
}

// agentKeywordFallback classifies from the lexicon when JSON parsing fails
func (s *IntentService) agentKeywordFallback(responseText string) AgentIntentResult {
	if s.lexicon.ContainsRecallTerm(responseText) {
		return AgentIntentResult{
			Intent:     AgentIntentKnowledgeQuery,
			Confidence: 0.6,
			QueryParams: &QueryParams{
				Date: s.lexicon.MatchDateTerm(responseText),
			},
			Reason:      "keyword match",
			RawResponse: responseText,
		}
	}

	return AgentIntentResult{
		Intent:      AgentIntentNormalChat,
		Confidence:  0.5,
		Reason:      "keyword match (normal chat)",
		RawResponse: responseText,
	}
}

// DetectChatIntent classifies a plain-chat message. When attachments are
// present the model call is skipped entirely and the lexicon decides:
// content questions stay NORMAL_CHAT (vision analysis), generation verbs
// mean IMAGE_GENERATE, everything else is FILE_PARSE.
func (s *IntentService) DetectChatIntent(ctx context.Context, userMessage string, hasFiles bool) ChatIntentResult {
	log.Printf("[Intent] classifying chat message: %s (files=%v)", preview(userMessage, 50), hasFiles)

	if hasFiles {
		hasInquiry := s.lexicon.ContainsInquiryTerm(userMessage)
		hasGenerate := s.lexicon.ContainsGenerateTerm(userMessage)

		switch {
		case hasInquiry && !hasGenerate:
			return ChatIntentResult{
				Intent: ChatIntentNormalChat,
				Reason: "attachment with a content question, analyzing via vision",
			}
		case hasGenerate:
			return ChatIntentResult{
				Intent: ChatIntentImageGenerate,
				Reason: "attachment with a generation request",
			}
		default:
			return ChatIntentResult{
				Intent: ChatIntentFileParse,
				Reason: "attachment present",
			}
		}
	}

	messages := []ark.Message{
		ark.TextMessage("system", chatIntentSystemPrompt),
		ark.TextMessage("user", userMessage),
	}

	resp, err := s.client.ChatCompletion(ctx, messages,
		ark.WithModel(s.liteModel),
		ark.WithThinking(ark.ThinkingDisabled),
		ark.WithMaxTokens(200),
		ark.WithTemperature(0.1),
	)
	if err != nil {
		log.Printf("[Intent] chat classification failed, degrading to normal chat: %v", err)
		return ChatIntentResult{
			Intent: ChatIntentNormalChat,
			Reason: fmt.Sprintf("classification failed: %v", err),
		}
	}

	return s.parseChatIntent(resp.ExtractContent(), userMessage)
}

func (s *IntentService) parseChatIntent(responseText, userMessage string) ChatIntentResult {
	var result ChatIntentResult
	if err := utils.ExtractJSONTo(responseText, &result); err == nil {
		switch result.Intent {
		case ChatIntentFileParse, ChatIntentImageGenerate, ChatIntentNormalChat:
		default:
			result.Intent = ChatIntentNormalChat
		}
		result.RawResponse = responseText
		log.Printf("[Intent] chat intent: %s", result.Intent)
		return result
	}

	// Keyword fallback over both the model response and the user message
	log.Printf("[Intent] chat intent JSON parse failed, using keyword fallback")
	responseLower := strings.ToLower(responseText)

	var intent ChatIntent
	switch {
	case strings.Contains(responseLower, "file_parse"):
		intent = ChatIntentFileParse
	case strings.Contains(responseLower, "image_generate"),
		s.lexicon.ContainsGenerateTerm(responseText),
		s.lexicon.ContainsGenerateTerm(userMessage):
		intent = ChatIntentImageGenerate
	default:
		intent = ChatIntentNormalChat
	}

	return ChatIntentResult{
		Intent:      intent,
		Reason:      "keyword match",
		RawResponse: responseText,
	}
}

func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
