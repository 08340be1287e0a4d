package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"smart-splitter-backend/ledger"
	"smart-splitter-backend/models"
)

// GormStore backs the settlement lifecycle and the hub's durable event log
// with the application database. It implements SettlementStore, RoleChecker
// and MessageStore.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Init wires the package singletons against the live database. Called once
// from main after database.Connect.
func Init(db *gorm.DB) {
	store := NewGormStore(db)
	hub = NewHub(store)
	settlementService = NewSettlementService(store, store, hub)
}

// Snapshot reads the group's expenses and paid settlements within a single
// transaction so aggregation always sees a consistent ledger.
func (s *GormStore) Snapshot(ctx context.Context, groupID uuid.UUID) (*LedgerSnapshot, error) {
	snap := &LedgerSnapshot{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var expenses []models.Expense
		if err := tx.Where("group_id = ?", groupID).Preload("Involved").Find(&expenses).Error; err != nil {
			return err
		}
		for _, e := range expenses {
			le := ledger.Expense{
				ID:      e.ID,
				PayerID: e.PaidBy,
				Amount:  decimal.NewFromFloat(e.Amount),
			}
			for _, m := range e.Involved {
				le.Involved = append(le.Involved, m.UserID)
			}
			snap.Expenses = append(snap.Expenses, le)
		}

		var paid []models.Settlement
		if err := tx.Where("group_id = ? AND paid = ?", groupID, true).Find(&paid).Error; err != nil {
			return err
		}
		for _, p := range paid {
			snap.Paid = append(snap.Paid, ledger.Payment{
				PayerID:    p.PayerID,
				ReceiverID: p.ReceiverID,
				Amount:     decimal.NewFromFloat(p.Amount),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// ReplacePending atomically swaps the group's pending set: delete all
// unpaid records, insert one per planned transfer.
func (s *GormStore) ReplacePending(ctx context.Context, groupID uuid.UUID, transfers []ledger.Transfer) ([]models.Settlement, error) {
	var records []models.Settlement

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("group_id = ? AND paid = ?", groupID, false).Delete(&models.Settlement{}).Error; err != nil {
			return err
		}

		for _, tr := range transfers {
			rec := models.Settlement{
				GroupID:    groupID,
				PayerID:    tr.From,
				ReceiverID: tr.To,
				Amount:     tr.Amount.InexactFloat64(),
			}
			if err := tx.Create(&rec).Error; err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *GormStore) Settlement(ctx context.Context, id uuid.UUID) (*models.Settlement, error) {
	var rec models.Settlement
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// MarkPaid flips pending -> paid with a conditional update; returns false
// when the record was already paid (lost update protection).
func (s *GormStore) MarkPaid(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Settlement{}).
		Where("id = ? AND paid = ?", id, false).
		Updates(map[string]interface{}{"paid": true, "settled_at": at})
	return res.RowsAffected > 0, res.Error
}

// MarkUnpaid flips paid -> pending and clears the settled timestamp.
func (s *GormStore) MarkUnpaid(ctx context.Context, id uuid.UUID) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Settlement{}).
		Where("id = ? AND paid = ?", id, true).
		Updates(map[string]interface{}{"paid": false, "settled_at": nil})
	return res.RowsAffected > 0, res.Error
}

func (s *GormStore) MemberNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}

	names := make(map[uuid.UUID]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}
	return names, nil
}

func (s *GormStore) RoleOf(ctx context.Context, groupID, userID uuid.UUID) (string, error) {
	var member models.GroupMember
	err := s.db.WithContext(ctx).Where("group_id = ? AND user_id = ?", groupID, userID).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return member.Role, nil
}

func (s *GormStore) SaveBotMessage(groupID uuid.UUID, content string) (*models.ChatMessage, error) {
	msg := models.ChatMessage{
		GroupID:    groupID,
		SenderType: models.SenderBot,
		Content:    content,
	}
	if err := s.db.Create(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}
