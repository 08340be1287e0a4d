package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Sender types for chat messages.
const (
	SenderUser = "user"
	SenderBot  = "bot"
)

// ChatMessage is the durable per-group message log. Bot rows double as the
// activity feed: every ledger event broadcast by the hub is persisted here
// first, so offline members can catch up later.
type ChatMessage struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	GroupID    uuid.UUID  `gorm:"type:uuid;index" json:"group_id"`
	Group      Group      `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"-"`
	SenderID   *uuid.UUID `gorm:"type:uuid" json:"sender_id,omitempty"` // nil for bot messages
	Sender     *User      `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	SenderType string     `gorm:"default:user;size:10" json:"sender_type"` // user, bot
	Content    string     `gorm:"not null" json:"content"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

type ChatReadReceipt struct {
	MessageID uuid.UUID `gorm:"type:uuid;primaryKey" json:"message_id"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	ReadAt    time.Time `gorm:"autoCreateTime" json:"read_at"`
}

type ChatMessageResponse struct {
	ID         uuid.UUID `json:"id"`
	SenderID   uuid.UUID `json:"sender_id,omitempty"`
	SenderName string    `json:"sender_name,omitempty"`
	SenderType string    `json:"sender_type"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}
