package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/kindred-ai/kindred-api/model"
	"github.com/kindred-ai/kindred-api/services/ark"
	"github.com/kindred-ai/kindred-api/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrNoSummaryToDelete is returned by DeleteLatestSummary when the agent
// has no consolidation history to undo.
var ErrNoSummaryToDelete = errors.New("no summary to delete")

// MemoryService consolidates an agent's conversation into prompt growth.
// A consolidation summarizes the session with deep thinking, appends the
// summary as a prompt delta, indexes it for retrieval, and hard-deletes the
// raw messages, all atomically.
type MemoryService struct {
	db     *gorm.DB
	client ChatCompleter
}

// NewMemoryService creates a new memory consolidation service
func NewMemoryService(db *gorm.DB, client ChatCompleter) *MemoryService {
	return &MemoryService{db: db, client: client}
}

// ConsolidationResult reports what a consolidation did
type ConsolidationResult struct {
	Summarized       bool   `json:"summarized"`
	Summary          string `json:"summary,omitempty"`
	MessageCount     int    `json:"message_count"`
	UserMessageCount int    `json:"user_message_count"`
}

// UndoResult reports the effect of removing the latest consolidation
type UndoResult struct {
	DeletedDate    time.Time `json:"deleted_summary_date"`
	RemainingCount int64     `json:"remaining_count"`
	PromptPreview  string    `json:"current_prompt_preview"`
}

// summaryPayload is the JSON contract for the consolidation model call
type summaryPayload struct {
	Summary   string   `json:"summary"`
	Topics    []string `json:"topics"`
	KeyPoints []string `json:"key_points"`
	Keywords  []string `json:"keywords"`
	Impact    string   `json:"impact"`
}

// ClearAndSummarize consolidates the agent's current conversation. With no
// messages it is a no-op. The model call happens before the transaction;
// the persistence steps (prompt history, knowledge index, message deletion,
// prompt recompute, timestamp) commit or roll back together.
func (s *MemoryService) ClearAndSummarize(ctx context.Context, user *model.User, agentID uint) (*ConsolidationResult, error) {
	log.Printf("[Memory] consolidating agent %d", agentID)

	var agent *model.Agent
	var session *model.AgentChatSession
	var messages []model.AgentChatMessage

	err := func() error {
		var err error
		if agent, err = getAgentForUser(s.db.WithContext(ctx), user, agentID); err != nil {
			return err
		}
		if session, err = getOrCreateSession(s.db.WithContext(ctx), agent.ID); err != nil {
			return err
		}
		messages, err = getSessionMessages(s.db.WithContext(ctx), session.ID)
		return err
	}()
	if err != nil {
		return nil, err
	}

	if len(messages) == 0 {
		log.Printf("[Memory] agent %d has no messages, nothing to consolidate", agentID)
		return &ConsolidationResult{Summarized: false}, nil
	}

	userCount := 0
	for _, msg := range messages {
		if msg.Role == model.MessageRoleUser {
			userCount++
		}
	}

	summaryDate := time.Now()
	rawSummary, err := s.summarize(ctx, agent, messages, summaryDate)
	if err != nil {
		return nil, fmt.Errorf("summary generation failed: %w", err)
	}

	payload, addedPrompt := parseSummary(rawSummary)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		promptBefore, err := RefreshCurrentPrompt(tx, agent)
		if err != nil {
			return err
		}

		history := model.AgentPromptHistory{
			AgentID:          agent.ID,
			AddedPrompt:      addedPrompt,
			FullPromptBefore: promptBefore,
			FullPromptAfter:  promptBefore + "\n\n" + addedPrompt,
			SummaryDate:      datatypes.Date(summaryDate),
		}
		if err := tx.Create(&history).Error; err != nil {
			return fmt.Errorf("failed to create prompt history: %w", err)
		}

		index := model.AgentKnowledgeIndex{
			AgentID:          agent.ID,
			PromptHistoryID:  history.ID,
			SummaryDate:      datatypes.Date(summaryDate),
			Summary:          payload.Summary,
			Topics:           payload.Topics,
			KeyPoints:        payload.KeyPoints,
			Keywords:         payload.Keywords,
			MessageCount:     len(messages),
			UserMessageCount: userCount,
		}
		if err := tx.Create(&index).Error; err != nil {
			return fmt.Errorf("failed to create knowledge index: %w", err)
		}

		// Consolidated messages are gone for good, not soft-deleted
		if err := tx.Unscoped().Where("session_id = ?", session.ID).Delete(&model.AgentChatMessage{}).Error; err != nil {
			return fmt.Errorf("failed to clear session messages: %w", err)
		}

		if _, err := RefreshCurrentPrompt(tx, agent); err != nil {
			return err
		}

		now := time.Now()
		if err := tx.Model(agent).Update("last_summarized_at", &now).Error; err != nil {
			return fmt.Errorf("failed to stamp consolidation time: %w", err)
		}

		return nil
	})
	if err != nil {
		log.Printf("[Memory] consolidation failed and rolled back: %v", err)
		return nil, err
	}

	log.Printf("[Memory] consolidation complete for agent %d: %d messages summarized", agentID, len(messages))

	return &ConsolidationResult{
		Summarized:       true,
		Summary:          payload.Summary,
		MessageCount:     len(messages),
		UserMessageCount: userCount,
	}, nil
}

// summarize asks the model for a first-person growth summary of the
// conversation, with deep thinking enabled
func (s *MemoryService) summarize(ctx context.Context, agent *model.Agent, messages []model.AgentChatMessage, summaryDate time.Time) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, `You are an observer and summarizer. From the perspective of the agent (%s), distill today's conversation into a growth memory.

The agent's original persona: %s

Today's (%s) conversation:
`, agent.Name, agent.InitialPrompt, summaryDate.Format("2006-01-02"))

	for _, msg := range messages {
		roleName := "Agent"
		if msg.Role == model.MessageRoleUser {
			roleName = "User"
		}
		fmt.Fprintf(&b, "\n%s: %s\n", roleName, msg.Content)
	}

	b.WriteString(`
Think deeply, then produce the summary. Requirements:

1. Be highly condensed: 2-5 sentences covering the core of today's conversation
2. Write as the agent: first person, describing what "I" experienced
3. Show growth: briefly note how the conversation affected or changed the agent
4. Stay short: a few sentences, no padding

Return JSON in this format:
{
    "summary": "the summary (2-5 sentences, first person, highly condensed)",
    "topics": ["topic1", "topic2"],
    "key_points": ["point1", "point2"],
    "keywords": ["keyword1", "keyword2"],
    "impact": "how this experience affected the agent (1-2 short sentences)"
}

Note: topics, key_points and keywords are used for later retrieval, extract only what matters most.`)

	resp, err := s.client.ChatCompletion(ctx,
		[]ark.Message{
			ark.TextMessage("system", "You are a careful observer who summarizes an agent's conversations into concise first-person growth memories."),
			ark.TextMessage("user", b.String()),
		},
		ark.WithThinking(ark.ThinkingEnabled),
	)
	if err != nil {
		return "", err
	}

	return resp.ExtractContent(), nil
}

// parseSummary decodes the summary JSON defensively. When the model did not
// return usable JSON, the raw text itself becomes both summary and prompt
// delta and the retrieval fields stay empty.
func parseSummary(rawSummary string) (summaryPayload, string) {
	var payload summaryPayload
	if err := utils.ExtractJSONTo(rawSummary, &payload); err != nil || payload.Summary == "" {
		log.Printf("[Memory] summary JSON parse failed, keeping raw text: %v", err)
		return summaryPayload{Summary: rawSummary}, rawSummary
	}

	addedPrompt := payload.Summary
	if impact := strings.TrimSpace(payload.Impact); impact != "" {
		addedPrompt = fmt.Sprintf("%s This experience changed me: %s", payload.Summary, impact)
	}

	return payload, addedPrompt
}

// DeleteLatestSummary removes the newest consolidation (undo). Only the
// latest prompt delta may be removed; its knowledge index entry goes with
// it and the effective prompt is recomputed.
func (s *MemoryService) DeleteLatestSummary(ctx context.Context, user *model.User, agentID uint) (*UndoResult, error) {
	log.Printf("[Memory] deleting latest summary for agent %d", agentID)

	var result *UndoResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		agent, err := getAgentForUser(tx, user, agentID)
		if err != nil {
			return err
		}

		var latest model.AgentPromptHistory
		err = tx.Where("agent_id = ?", agent.ID).
			Order("created_at DESC, id DESC").
			First(&latest).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoSummaryToDelete
		}
		if err != nil {
			return fmt.Errorf("failed to load latest summary: %w", err)
		}

		if err := tx.Unscoped().Where("prompt_history_id = ?", latest.ID).Delete(&model.AgentKnowledgeIndex{}).Error; err != nil {
			return fmt.Errorf("failed to delete knowledge index: %w", err)
		}
		if err := tx.Unscoped().Delete(&latest).Error; err != nil {
			return fmt.Errorf("failed to delete prompt history: %w", err)
		}

		current, err := RefreshCurrentPrompt(tx, agent)
		if err != nil {
			return err
		}

		var remaining int64
		if err := tx.Model(&model.AgentPromptHistory{}).Where("agent_id = ?", agent.ID).Count(&remaining).Error; err != nil {
			return fmt.Errorf("failed to count remaining summaries: %w", err)
		}

		preview := current
		if len([]rune(preview)) > 100 {
			preview = string([]rune(preview)[:100]) + "..."
		}

		result = &UndoResult{
			DeletedDate:    time.Time(latest.SummaryDate),
			RemainingCount: remaining,
			PromptPreview:  preview,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Memory] latest summary deleted for agent %d, %d remaining", agentID, result.RemainingCount)
	return result, nil
}

// ListPromptHistory returns the agent's prompt deltas, newest first
func (s *MemoryService) ListPromptHistory(ctx context.Context, user *model.User, agentID uint) ([]model.AgentPromptHistory, error) {
	agent, err := getAgentForUser(s.db.WithContext(ctx), user, agentID)
	if err != nil {
		return nil, err
	}

	var histories []model.AgentPromptHistory
	err = s.db.WithContext(ctx).
		Where("agent_id = ?", agent.ID).
		Order("created_at DESC, id DESC").
		Find(&histories).Error
	return histories, err
}
