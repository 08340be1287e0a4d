package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Expense is immutable after creation; rows are removed only when the
// owning group is deleted (cascade).
type Expense struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	GroupID   uuid.UUID       `gorm:"type:uuid;index" json:"group_id"`
	Group     Group           `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"-"`
	PaidBy    uuid.UUID       `gorm:"type:uuid" json:"paid_by"`
	Payer     User            `gorm:"foreignKey:PaidBy" json:"payer,omitempty"`
	Amount    float64         `gorm:"type:decimal(12,2);not null" json:"amount"`
	Note      string          `gorm:"size:255" json:"note,omitempty"`
	Involved  []ExpenseMember `gorm:"foreignKey:ExpenseID;constraint:OnDelete:CASCADE" json:"involved,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func (e *Expense) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// ExpenseMember records one user's participation in an expense's equal
// split. The payer always has a row here too.
type ExpenseMember struct {
	ExpenseID uuid.UUID `gorm:"type:uuid;primaryKey" json:"expense_id"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// Request structs
type CreateExpenseRequest struct {
	Amount          float64  `json:"amount" binding:"required,gt=0"`
	Note            string   `json:"note"`
	InvolvedUserIDs []string `json:"involved_user_ids" binding:"required,min=1"`
}

// Response
type ExpenseResponse struct {
	ID        uuid.UUID          `json:"id"`
	GroupID   uuid.UUID          `json:"group_id"`
	PaidBy    uuid.UUID          `json:"paid_by"`
	PayerName string             `json:"payer_name"`
	Amount    float64            `json:"amount"`
	Note      string             `json:"note,omitempty"`
	Involved  []InvolvedResponse `json:"involved"`
	CreatedAt time.Time          `json:"created_at"`
}

type InvolvedResponse struct {
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name"`
}
