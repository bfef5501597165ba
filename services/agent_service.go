package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/kindred-ai/kindred-api/model"
	"gorm.io/gorm"
)

// Batch limits for a single send
const (
	MaxBatchMessages = 20
	MaxMessageLength = 5000
)

// Validation and lookup errors surfaced to handlers
var (
	ErrAgentNotFound    = errors.New("agent not found")
	ErrEmptyBatch       = errors.New("message list cannot be empty")
	ErrTooManyMessages  = fmt.Errorf("a batch may contain at most %d messages", MaxBatchMessages)
	ErrAllMessagesBlank = errors.New("all messages are empty")
	ErrMessageTooLong   = fmt.Errorf("message exceeds %d characters", MaxMessageLength)
)

// AgentService manages agent lifecycle, sessions and prompt composition
type AgentService struct {
	db *gorm.DB
}

// NewAgentService creates a new agent service
func NewAgentService(db *gorm.DB) *AgentService {
	return &AgentService{db: db}
}

// CreateAgent creates an agent with its single conversation session. The
// initial prompt is immutable after this point; the current prompt starts
// out equal to it.
func (s *AgentService) CreateAgent(ctx context.Context, user *model.User, name, initialPrompt string) (*model.Agent, error) {
	log.Printf("[Agent Service] creating agent %q for user %d", name, user.ID)

	agent := &model.Agent{
		UserID:        user.ID,
		Name:          name,
		InitialPrompt: initialPrompt,
		CurrentPrompt: initialPrompt,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(agent).Error; err != nil {
			return fmt.Errorf("failed to create agent: %w", err)
		}
		session := &model.AgentChatSession{
			AgentID: agent.ID,
			Title:   fmt.Sprintf("Conversation with %s", name),
		}
		if err := tx.Create(session).Error; err != nil {
			return fmt.Errorf("failed to create agent session: %w", err)
		}
		return nil
	})
	if err != nil {
		log.Printf("[Agent Service] agent creation failed: %v", err)
		return nil, err
	}

	log.Printf("[Agent Service] agent created: id=%d", agent.ID)
	return agent, nil
}

// ListAgents returns the user's agents, newest first
func (s *AgentService) ListAgents(ctx context.Context, user *model.User, offset, limit int) ([]model.Agent, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var agents []model.Agent
	err := s.db.WithContext(ctx).
		Where("user_id = ?", user.ID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&agents).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	return agents, nil
}

// GetAgent fetches an agent and verifies ownership
func (s *AgentService) GetAgent(ctx context.Context, user *model.User, agentID uint) (*model.Agent, error) {
	agent, err := getAgentForUser(s.db.WithContext(ctx), user, agentID)
	if err != nil {
		return nil, err
	}
	// The stored prompt is a cache; recompute before handing it out
	if _, err := RefreshCurrentPrompt(s.db.WithContext(ctx), agent); err != nil {
		return nil, err
	}
	return agent, nil
}

func getAgentForUser(tx *gorm.DB, user *model.User, agentID uint) (*model.Agent, error) {
	var agent model.Agent
	err := tx.Where("id = ? AND user_id = ?", agentID, user.ID).First(&agent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAgentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch agent: %w", err)
	}
	return &agent, nil
}

// UpdateAgentName renames an agent. Only the name is mutable; the initial
// prompt never changes.
func (s *AgentService) UpdateAgentName(ctx context.Context, user *model.User, agentID uint, newName string) (*model.Agent, error) {
	agent, err := s.GetAgent(ctx, user, agentID)
	if err != nil {
		return nil, err
	}

	agent.Name = newName
	if err := s.db.WithContext(ctx).Model(agent).Update("name", newName).Error; err != nil {
		return nil, fmt.Errorf("failed to update agent name: %w", err)
	}

	log.Printf("[Agent Service] agent %d renamed to %q", agentID, newName)
	return agent, nil
}

// DeleteAgent deletes an agent; the session, messages, prompt history and
// knowledge index go with it via cascade
func (s *AgentService) DeleteAgent(ctx context.Context, user *model.User, agentID uint) error {
	agent, err := s.GetAgent(ctx, user, agentID)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Select("ChatSession", "PromptHistory", "KnowledgeIndex").Delete(agent).Error; err != nil {
		return fmt.Errorf("failed to delete agent: %w", err)
	}

	log.Printf("[Agent Service] agent %d deleted", agentID)
	return nil
}

// GetOrCreateSession returns the agent's single session, creating it if a
// prior consolidation or migration left the agent without one
func (s *AgentService) GetOrCreateSession(ctx context.Context, agentID uint) (*model.AgentChatSession, error) {
	return getOrCreateSession(s.db.WithContext(ctx), agentID)
}

func getOrCreateSession(tx *gorm.DB, agentID uint) (*model.AgentChatSession, error) {
	var session model.AgentChatSession
	err := tx.Where("agent_id = ?", agentID).First(&session).Error
	if err == nil {
		return &session, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to fetch agent session: %w", err)
	}

	session = model.AgentChatSession{AgentID: agentID}
	if err := tx.Create(&session).Error; err != nil {
		return nil, fmt.Errorf("failed to create agent session: %w", err)
	}

	log.Printf("[Agent Service] created session %d for agent %d", session.ID, agentID)
	return &session, nil
}

// GetSessionMessages returns the session's messages in chronological order
func (s *AgentService) GetSessionMessages(ctx context.Context, sessionID uint) ([]model.AgentChatMessage, error) {
	return getSessionMessages(s.db.WithContext(ctx), sessionID)
}

func getSessionMessages(tx *gorm.DB, sessionID uint) ([]model.AgentChatMessage, error) {
	var messages []model.AgentChatMessage
	err := tx.Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch session messages: %w", err)
	}
	return messages, nil
}

// ComposeCurrentPrompt builds the effective prompt from the initial prompt
// and the surviving consolidation deltas in creation order
func ComposeCurrentPrompt(initialPrompt string, deltas []string) string {
	parts := make([]string, 0, len(deltas)+1)
	parts = append(parts, initialPrompt)
	parts = append(parts, deltas...)
	return strings.Join(parts, "\n\n")
}

// RefreshCurrentPrompt recomputes the effective prompt from the prompt
// history and stores the result back on the agent. The stored column is
// only a cache; this recomputation runs before every use.
func RefreshCurrentPrompt(tx *gorm.DB, agent *model.Agent) (string, error) {
	var histories []model.AgentPromptHistory
	err := tx.Where("agent_id = ?", agent.ID).
		Order("created_at ASC, id ASC").
		Find(&histories).Error
	if err != nil {
		return "", fmt.Errorf("failed to load prompt history: %w", err)
	}

	deltas := make([]string, 0, len(histories))
	for _, h := range histories {
		deltas = append(deltas, h.AddedPrompt)
	}

	current := ComposeCurrentPrompt(agent.InitialPrompt, deltas)
	if current != agent.CurrentPrompt {
		if err := tx.Model(agent).Update("current_prompt", current).Error; err != nil {
			return "", fmt.Errorf("failed to store current prompt: %w", err)
		}
		agent.CurrentPrompt = current
	}

	return current, nil
}

// ValidateBatchMessages checks a batch and returns the trimmed, non-blank
// messages. Each failure mode has its own error so handlers can report
// exactly what was wrong.
func ValidateBatchMessages(messages []string) ([]string, error) {
	if len(messages) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(messages) > MaxBatchMessages {
		return nil, ErrTooManyMessages
	}

	filtered := make([]string, 0, len(messages))
	for _, msg := range messages {
		if trimmed := strings.TrimSpace(msg); trimmed != "" {
			filtered = append(filtered, trimmed)
		}
	}
	if len(filtered) == 0 {
		return nil, ErrAllMessagesBlank
	}

	for idx, msg := range filtered {
		if len([]rune(msg)) > MaxMessageLength {
			return nil, fmt.Errorf("message %d: %w", idx+1, ErrMessageTooLong)
		}
	}

	return filtered, nil
}
