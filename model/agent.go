package model

import (
	"time"

	"gorm.io/gorm"
)

// Agent represents a persistent persona owned by a user. InitialPrompt is
// fixed at creation; CurrentPrompt is a cached projection of InitialPrompt
// plus every surviving prompt-history delta and must be recomputed from
// those sources before use, never trusted on its own.
type Agent struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
	UserID           uint           `gorm:"not null;index" json:"user_id"`
	Name             string         `gorm:"type:varchar(100);not null" json:"name"`
	InitialPrompt    string         `gorm:"type:text;not null" json:"initial_prompt"`
	CurrentPrompt    string         `gorm:"type:text;not null" json:"current_prompt"`
	LastSummarizedAt *time.Time     `json:"last_summarized_at,omitempty"`

	// Relationships
	User           User                  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	ChatSession    *AgentChatSession     `gorm:"foreignKey:AgentID;constraint:OnDelete:CASCADE" json:"-"`
	PromptHistory  []AgentPromptHistory  `gorm:"foreignKey:AgentID;constraint:OnDelete:CASCADE" json:"-"`
	KnowledgeIndex []AgentKnowledgeIndex `gorm:"foreignKey:AgentID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for Agent
func (Agent) TableName() string {
	return "agents"
}
