package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Settlement is one generated transfer obligation. Amount is fixed at
// creation; only Paid/SettledAt change afterwards (pending -> paid -> pending
// on an admin undo).
type Settlement struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	GroupID    uuid.UUID  `gorm:"type:uuid;index" json:"group_id"`
	Group      Group      `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"-"`
	PayerID    uuid.UUID  `gorm:"type:uuid" json:"payer_id"`
	Payer      User       `gorm:"foreignKey:PayerID" json:"payer,omitempty"`
	ReceiverID uuid.UUID  `gorm:"type:uuid" json:"receiver_id"`
	Receiver   User       `gorm:"foreignKey:ReceiverID" json:"receiver,omitempty"`
	Amount     float64    `gorm:"type:decimal(12,2);not null" json:"amount"`
	Paid       bool       `gorm:"default:false;index" json:"paid"`
	SettledAt  *time.Time `json:"settled_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (s *Settlement) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

type SettlementResponse struct {
	ID           uuid.UUID  `json:"id"`
	GroupID      uuid.UUID  `json:"group_id"`
	PayerID      uuid.UUID  `json:"payer_id"`
	PayerName    string     `json:"payer_name"`
	ReceiverID   uuid.UUID  `json:"receiver_id"`
	ReceiverName string     `json:"receiver_name"`
	Amount       float64    `json:"amount"`
	Paid         bool       `json:"paid"`
	SettledAt    *time.Time `json:"settled_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
