package model

import (
	"gorm.io/gorm"
	"time"
)

// ChatSession represents a plain (non-agent) conversation session
type ChatSession struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	UserID        uint           `gorm:"not null;index" json:"user_id"`
	Title         string         `gorm:"type:varchar(255)" json:"title"`
	Status        string         `gorm:"type:varchar(20);default:'active'" json:"status"` // active, archived
	MessageCount  int            `gorm:"default:0" json:"message_count"`
	TotalTokens   int            `gorm:"default:0" json:"total_tokens"`
	LastMessageAt *time.Time     `json:"last_message_at"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	User     User          `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Messages []ChatMessage `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
}

// TableName specifies the table name for ChatSession
func (ChatSession) TableName() string {
	return "chat_sessions"
}
