package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kindred-ai/kindred-api/model"
	"github.com/kindred-ai/kindred-api/services/ark"
	"gorm.io/gorm"
)

// replyFormatInstructions is appended to every agent prompt so the model
// answers as a JSON batch of independently delayed replies
const replyFormatInstructions = `Answer using exactly this JSON format:
{
    "replies": [
        {
            "content": "reply text",
            "send_delay_seconds": 0
        }
    ]
}

Notes:
- Reply naturally, like a real person texting; let your persona decide the style
- Choose the number of replies from your persona and the situation:
  * a reserved, quiet persona may answer many messages with one short reply
  * a warm, talkative persona may answer one message with several replies
  * a methodical persona may reply once per topic
- Pick realistic delays that imitate thinking and typing time (0-10 seconds)
- The first reply must have a delay of 0 seconds
- Above all, stay in character and respond naturally`

// BatchReply is one reply returned to the client, in display order
type BatchReply struct {
	Content          string `json:"content"`
	SendDelaySeconds int    `json:"send_delay_seconds"`
	Order            int    `json:"order"`
}

// BatchResult is the outcome of a processed message batch
type BatchResult struct {
	BatchID string       `json:"batch_id"`
	Replies []BatchReply `json:"replies"`
}

// AgentBatchService runs the batch dialogue pipeline: validate, persist the
// user messages, classify intent, retrieve memories when asked, compose the
// augmented prompt, call the model, parse the reply batch and persist it.
// Everything from input persistence onward runs in one transaction, so a
// failed batch leaves no trace.
type AgentBatchService struct {
	db        *gorm.DB
	intents   *IntentService
	knowledge *KnowledgeService
	client    ChatCompleter
	parser    *ReplyParser
}

// NewAgentBatchService creates the batch pipeline service
func NewAgentBatchService(db *gorm.DB, intents *IntentService, knowledge *KnowledgeService, client ChatCompleter) *AgentBatchService {
	return &AgentBatchService{
		db:        db,
		intents:   intents,
		knowledge: knowledge,
		client:    client,
		parser:    NewReplyParser(),
	}
}

// SendBatch processes a batch of user messages and returns the agent's
// delayed replies
func (s *AgentBatchService) SendBatch(ctx context.Context, user *model.User, agentID uint, userMessages []string) (*BatchResult, error) {
	log.Printf("[Agent Batch] processing batch: agent=%d messages=%d", agentID, len(userMessages))

	filtered, err := ValidateBatchMessages(userMessages)
	if err != nil {
		return nil, err
	}

	var result *BatchResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		agent, err := getAgentForUser(tx, user, agentID)
		if err != nil {
			return err
		}

		// The stored current prompt is only a cache, recompute before use
		if _, err := RefreshCurrentPrompt(tx, agent); err != nil {
			return err
		}

		session, err := getOrCreateSession(tx, agent.ID)
		if err != nil {
			return err
		}

		batchID := uuid.NewString()

		for idx, content := range filtered {
			userMsg := model.AgentChatMessage{
				SessionID:  session.ID,
				Role:       model.MessageRoleUser,
				Content:    content,
				BatchID:    batchID,
				BatchIndex: idx,
			}
			if err := tx.Create(&userMsg).Error; err != nil {
				return fmt.Errorf("failed to persist user message: %w", err)
			}
		}

		combined := strings.Join(filtered, " ")
		intent := s.intents.DetectAgentIntent(ctx, combined)

		var knowledgeEntries []model.AgentKnowledgeIndex
		if intent.Intent == AgentIntentKnowledgeQuery && intent.QueryParams != nil {
			knowledgeEntries = s.queryKnowledge(ctx, agent.ID, intent.QueryParams)
			log.Printf("[Agent Batch] knowledge lookup found %d entries", len(knowledgeEntries))
		}

		systemPrompt := buildAgentPrompt(agent, knowledgeEntries)

		turns := []ark.Message{ark.TextMessage("system", systemPrompt)}

		history, err := getSessionMessages(tx, session.ID)
		if err != nil {
			return err
		}
		for _, msg := range history {
			if msg.BatchID == batchID {
				continue
			}
			turns = append(turns, ark.TextMessage(string(msg.Role), msg.Content))
		}
		for _, content := range filtered {
			turns = append(turns, ark.TextMessage("user", content))
		}

		log.Printf("[Agent Batch] calling model with %d turns", len(turns))

		resp, err := s.client.ChatCompletion(ctx, turns, ark.WithThinking(ark.ThinkingDisabled))
		if err != nil {
			return fmt.Errorf("model call failed: %w", err)
		}

		parsed := s.parser.Parse(resp.ExtractContent())

		replies := make([]BatchReply, 0, len(parsed.Replies))
		for idx, reply := range parsed.Replies {
			aiMsg := model.AgentChatMessage{
				SessionID:        session.ID,
				Role:             model.MessageRoleAssistant,
				Content:          reply.Content,
				BatchID:          batchID,
				BatchIndex:       idx,
				SendDelaySeconds: reply.SendDelaySeconds,
			}
			if err := tx.Create(&aiMsg).Error; err != nil {
				return fmt.Errorf("failed to persist reply: %w", err)
			}
			replies = append(replies, BatchReply{
				Content:          reply.Content,
				SendDelaySeconds: reply.SendDelaySeconds,
				Order:            idx,
			})
		}

		if err := tx.Model(session).Update("updated_at", time.Now()).Error; err != nil {
			return fmt.Errorf("failed to touch session: %w", err)
		}

		result = &BatchResult{BatchID: batchID, Replies: replies}
		return nil
	})
	if err != nil {
		log.Printf("[Agent Batch] batch failed and rolled back: %v", err)
		return nil, err
	}

	log.Printf("[Agent Batch] batch complete: batch_id=%s replies=%d", result.BatchID, len(result.Replies))
	return result, nil
}

// queryKnowledge resolves the classifier's query params into a knowledge
// search. Lookup failures surface as an empty context, never an error.
func (s *AgentBatchService) queryKnowledge(ctx context.Context, agentID uint, params *QueryParams) []model.AgentKnowledgeIndex {
	var dates []time.Time
	if params.Date != "" {
		dates = ResolveDateKeyword(params.Date, time.Now())
	}
	return s.knowledge.Search(ctx, agentID, dates, params.Keywords, DefaultKnowledgeLimit)
}

// buildAgentPrompt assembles the system prompt: the agent's effective
// prompt, the reply format contract, and retrieved memories when present
func buildAgentPrompt(agent *model.Agent, knowledge []model.AgentKnowledgeIndex) string {
	parts := []string{agent.CurrentPrompt, replyFormatInstructions}

	if len(knowledge) > 0 {
		parts = append(parts, "[Relevant memories]")
		for _, entry := range knowledge {
			parts = append(parts, fmt.Sprintf("Date: %s", time.Time(entry.SummaryDate).Format("2006-01-02")))
			parts = append(parts, fmt.Sprintf("Content: %s", entry.Summary))
			if len(entry.Topics) > 0 {
				parts = append(parts, fmt.Sprintf("Topics: %s", strings.Join(entry.Topics, ", ")))
			}
		}
	}

	return strings.Join(parts, "\n\n")
}
