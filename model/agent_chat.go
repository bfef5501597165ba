package model

import (
	"time"

	"gorm.io/gorm"
)

// AgentChatSession is the single conversation thread for an agent. Each
// agent has at most one session (enforced by the unique index); it is
// created lazily on first use and emptied, never deleted, when history is
// consolidated.
type AgentChatSession struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	AgentID   uint           `gorm:"not null;uniqueIndex" json:"agent_id"`
	Title     string         `gorm:"type:varchar(255)" json:"title"`

	// Relationships
	Agent    Agent              `gorm:"foreignKey:AgentID;constraint:OnDelete:CASCADE" json:"-"`
	Messages []AgentChatMessage `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
}

// TableName specifies the table name for AgentChatSession
func (AgentChatSession) TableName() string {
	return "agent_chat_sessions"
}

// AgentChatMessage is one message in an agent conversation. User messages
// arrive in batches sharing a BatchID; assistant replies to a batch share
// the same BatchID with BatchIndex giving their order and SendDelaySeconds
// the client-side delay before displaying each one. Consolidation
// hard-deletes these rows.
type AgentChatMessage struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
	SessionID        uint           `gorm:"not null;index" json:"session_id"`
	Role             MessageRole    `gorm:"type:varchar(20);not null" json:"role"`
	Content          string         `gorm:"type:text;not null" json:"content"`
	ReasoningContent string         `gorm:"type:text" json:"reasoning_content,omitempty"`
	Images           StringArray    `gorm:"type:jsonb" json:"images,omitempty"`
	GeneratedImages  StringArray    `gorm:"type:jsonb" json:"generated_images,omitempty"`
	BatchID          string         `gorm:"type:varchar(50);index" json:"batch_id,omitempty"`
	BatchIndex       int            `gorm:"default:0" json:"batch_index"`
	SendDelaySeconds int            `gorm:"default:0" json:"send_delay_seconds"`

	// Relationships
	Session AgentChatSession `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for AgentChatMessage
func (AgentChatMessage) TableName() string {
	return "agent_chat_messages"
}
