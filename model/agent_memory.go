package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AgentPromptHistory is one consolidation delta appended to an agent's
// effective prompt. Rows are append-only; only the most recent row may be
// hard-deleted (undo), and deleting it cascades to its knowledge index
// entry. FullPromptBefore/After snapshot the composed prompt around the
// consolidation for audit.
type AgentPromptHistory struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
	AgentID          uint           `gorm:"not null;index" json:"agent_id"`
	AddedPrompt      string         `gorm:"type:text;not null" json:"added_prompt"`
	FullPromptBefore string         `gorm:"type:text" json:"full_prompt_before,omitempty"`
	FullPromptAfter  string         `gorm:"type:text" json:"full_prompt_after,omitempty"`
	SummaryDate      datatypes.Date `gorm:"index" json:"summary_date"`

	// Relationships
	Agent          Agent                `gorm:"foreignKey:AgentID;constraint:OnDelete:CASCADE" json:"-"`
	KnowledgeIndex *AgentKnowledgeIndex `gorm:"foreignKey:PromptHistoryID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for AgentPromptHistory
func (AgentPromptHistory) TableName() string {
	return "agent_prompt_histories"
}

// AgentKnowledgeIndex is the searchable record paired 1:1 with a prompt
// history entry. It holds the consolidation summary plus extracted topics,
// key points and keywords used for date and keyword retrieval.
type AgentKnowledgeIndex struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
	AgentID          uint           `gorm:"not null;index" json:"agent_id"`
	PromptHistoryID  uint           `gorm:"not null;uniqueIndex" json:"prompt_history_id"`
	SummaryDate      datatypes.Date `gorm:"index" json:"summary_date"`
	Summary          string         `gorm:"type:text;not null" json:"summary"`
	Topics           StringArray    `gorm:"type:jsonb" json:"topics"`
	KeyPoints        StringArray    `gorm:"type:jsonb" json:"key_points"`
	Keywords         StringArray    `gorm:"type:jsonb" json:"keywords"`
	MessageCount     int            `gorm:"default:0" json:"message_count"`
	UserMessageCount int            `gorm:"default:0" json:"user_message_count"`

	// Relationships
	Agent         Agent              `gorm:"foreignKey:AgentID;constraint:OnDelete:CASCADE" json:"-"`
	PromptHistory AgentPromptHistory `gorm:"foreignKey:PromptHistoryID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for AgentKnowledgeIndex
func (AgentKnowledgeIndex) TableName() string {
	return "agent_knowledge_indexes"
}
