package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ChatMessage struct {
	Id              uuid.UUID      `gorm:"type:uuid;primaryKey"`
	SessionId       uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_chat_messages_session_order"`
	MessageOrder    int            `gorm:"not null;uniqueIndex:idx_chat_messages_session_order"`
	SenderType      string         `gorm:"type:text;not null"`
	Content         string         `gorm:"type:text;not null"`
	MessageMetadata datatypes.JSON `gorm:"column:message_metadata;type:jsonb"`
	TimestampSent   time.Time      `gorm:"not null"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}

func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if m.Id == uuid.Nil {
		m.Id = uuid.New()
	}
	return nil
}
