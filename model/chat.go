package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// MessageRole represents the role of the message sender
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// MessageStatus represents the completion status of a message
type MessageStatus string

const (
	MessageStatusComplete MessageStatus = "complete" // Message was fully generated
	MessageStatusPartial  MessageStatus = "partial"  // Message was cut off due to cancel/error
	MessageStatusPending  MessageStatus = "pending"  // Message is still being generated
)

// JSONMap is a custom type for storing JSON data as JSONB
type JSONMap map[string]interface{}

// Scan implements the sql.Scanner interface for reading from database
func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = JSONMap{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal JSONMap value")
	}

	if len(bytes) == 0 {
		*j = JSONMap{}
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Value implements the driver.Valuer interface for writing to database
func (j JSONMap) Value() (driver.Value, error) {
	if len(j) == 0 {
		return []byte("{}"), nil // Return empty JSON object instead of nil
	}
	return json.Marshal(j)
}

// StringArray is a custom type for storing string arrays as JSONB
type StringArray []string

func (s *StringArray) Scan(value interface{}) error {
	if value == nil {
		*s = StringArray{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal StringArray value")
	}

	if len(bytes) == 0 {
		*s = StringArray{}
		return nil
	}

	return json.Unmarshal(bytes, s)
}

func (s StringArray) Value() (driver.Value, error) {
	if len(s) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

// ChatMessage represents a single message in a plain (non-agent) chat
// conversation
type ChatMessage struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	SessionID        uint           `gorm:"not null;index" json:"session_id"`
	UserID           uint           `gorm:"not null;index" json:"user_id"`
	Role             MessageRole    `gorm:"type:varchar(20);not null" json:"role"`
	Content          string         `gorm:"type:text;not null" json:"content"`
	ReasoningContent string         `gorm:"type:text" json:"reasoning_content,omitempty"`
	Images           StringArray    `gorm:"type:jsonb" json:"images,omitempty"`
	TokensUsed       int            `gorm:"default:0" json:"tokens_used"`
	ModelUsed        string         `gorm:"type:varchar(100)" json:"model_used"`
	ResponseTime     int            `gorm:"default:0" json:"response_time_ms"` // Response time in milliseconds
	IsStreamed       bool           `gorm:"default:false" json:"is_streamed"`
	Metadata         JSONMap        `gorm:"type:jsonb;default:'{}'" json:"metadata,omitempty"`

	// Partial response recovery fields
	Status       MessageStatus `gorm:"type:varchar(20);default:'complete'" json:"status"`
	ErrorType    string        `gorm:"type:varchar(100)" json:"error_type,omitempty"`
	ErrorMessage string        `gorm:"type:text" json:"error_message,omitempty"`

	// Relationships
	Session ChatSession `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"session,omitempty"`
	User    User        `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
}

// TableName specifies the table name for ChatMessage
func (ChatMessage) TableName() string {
	return "chat_messages"
}

// IsPartial returns true if this message was cut off before completion
func (m *ChatMessage) IsPartial() bool {
	return m.Status == MessageStatusPartial
}

// MarkAsPartial sets the message status to partial with error info
func (m *ChatMessage) MarkAsPartial(errorType, errorMessage string) {
	m.Status = MessageStatusPartial
	m.ErrorType = errorType
	m.ErrorMessage = errorMessage
}

// MarkAsComplete sets the message status to complete
func (m *ChatMessage) MarkAsComplete() {
	m.Status = MessageStatusComplete
	m.ErrorType = ""
	m.ErrorMessage = ""
}
