package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"smart-splitter-backend/ledger"
	"smart-splitter-backend/models"
)

// Error kinds surfaced by the settlement lifecycle. Handlers map these onto
// HTTP status codes.
var (
	ErrNotFound      = errors.New("not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInvalidState  = errors.New("invalid state")
	ErrDataIntegrity = errors.New("data integrity violation")
)

// LedgerSnapshot is a consistent read of everything the aggregator needs:
// the full expense history plus the settlements already paid.
type LedgerSnapshot struct {
	Expenses []ledger.Expense
	Paid     []ledger.Payment
}

// SettlementStore is the persistence collaborator for the settlement
// lifecycle. Snapshot must read expenses and paid settlements within one
// transaction; ReplacePending must delete the old pending set and insert
// the new one atomically.
type SettlementStore interface {
	Snapshot(ctx context.Context, groupID uuid.UUID) (*LedgerSnapshot, error)
	ReplacePending(ctx context.Context, groupID uuid.UUID, transfers []ledger.Transfer) ([]models.Settlement, error)
	Settlement(ctx context.Context, id uuid.UUID) (*models.Settlement, error)
	MarkPaid(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkUnpaid(ctx context.Context, id uuid.UUID) (bool, error)
	MemberNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

// RoleChecker resolves a user's role within a group ("admin", "member", or
// "" for non-members).
type RoleChecker interface {
	RoleOf(ctx context.Context, groupID, userID uuid.UUID) (string, error)
}

// Announcer is the notification sink for ledger events.
type Announcer interface {
	Announce(groupID uuid.UUID, content string)
}

// SettlementService owns the settlement record lifecycle:
// regenerate (pending replace), mark paid, undo.
type SettlementService struct {
	store SettlementStore
	roles RoleChecker
	sink  Announcer

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex // per-group regenerate serialization
}

func NewSettlementService(store SettlementStore, roles RoleChecker, sink Announcer) *SettlementService {
	return &SettlementService{
		store: store,
		roles: roles,
		sink:  sink,
		locks: make(map[uuid.UUID]*sync.Mutex),
	}
}

var settlementService *SettlementService

func GetSettlementService() *SettlementService {
	return settlementService
}

func (s *SettlementService) groupLock(groupID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[groupID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[groupID] = lock
	}
	return lock
}

// Balances aggregates the group's current net balances from a consistent
// snapshot. Read-only; callers enforce membership.
func (s *SettlementService) Balances(ctx context.Context, groupID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	snap, err := s.store.Snapshot(ctx, groupID)
	if err != nil {
		return nil, err
	}

	balances, err := ledger.Aggregate(snap.Expenses, snap.Paid)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataIntegrity, err)
	}
	return balances, nil
}

// Regenerate replaces the group's entire pending settlement set with a fresh
// plan computed from all expenses plus currently paid settlements. Admin
// only. Serialized per group so two racing calls cannot both insert a
// pending set. Idempotent: with no intervening mutation a second call
// produces the same transfers.
func (s *SettlementService) Regenerate(ctx context.Context, groupID, actorID uuid.UUID) ([]models.Settlement, error) {
	role, err := s.roles.RoleOf(ctx, groupID, actorID)
	if err != nil {
		return nil, err
	}
	if role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: only admins can settle a group", ErrUnauthorized)
	}

	lock := s.groupLock(groupID)
	lock.Lock()
	defer lock.Unlock()

	snap, err := s.store.Snapshot(ctx, groupID)
	if err != nil {
		return nil, err
	}

	balances, err := ledger.Aggregate(snap.Expenses, snap.Paid)
	if err != nil {
		log.Printf("❌ Group %s ledger is inconsistent: %v", groupID, err)
		return nil, fmt.Errorf("%w: %v", ErrDataIntegrity, err)
	}
	if err := ledger.CheckBalanced(balances); err != nil {
		// Never persist a plan computed from an inconsistent ledger.
		log.Printf("❌ Group %s ledger is inconsistent: %v", groupID, err)
		return nil, fmt.Errorf("%w: %v", ErrDataIntegrity, err)
	}

	transfers := ledger.Plan(balances)

	records, err := s.store.ReplacePending(ctx, groupID, transfers)
	if err != nil {
		return nil, err
	}

	s.sink.Announce(groupID, s.planSummary(ctx, records))
	return records, nil
}

// MarkPaid transitions one pending settlement to paid. Only the payer may
// do it. Re-invoking on an already-paid record is a no-op success, so
// retried requests stay unambiguous and no second event is emitted.
func (s *SettlementService) MarkPaid(ctx context.Context, settlementID, actorID uuid.UUID) (*models.Settlement, error) {
	rec, err := s.store.Settlement(ctx, settlementID)
	if err != nil {
		return nil, err
	}
	if rec.PayerID != actorID {
		return nil, fmt.Errorf("%w: only the payer can mark a settlement paid", ErrUnauthorized)
	}
	if rec.Paid {
		return rec, nil
	}

	now := time.Now().UTC()
	changed, err := s.store.MarkPaid(ctx, rec.ID, now)
	if err != nil {
		return nil, err
	}
	if !changed {
		// Lost the race to an identical retry; same outcome.
		return s.store.Settlement(ctx, rec.ID)
	}

	rec.Paid = true
	rec.SettledAt = &now

	names := s.names(ctx, rec.PayerID, rec.ReceiverID)
	s.sink.Announce(rec.GroupID, fmt.Sprintf("Payment completed: %s paid %s %.2f",
		names[rec.PayerID], names[rec.ReceiverID], rec.Amount))
	return rec, nil
}

// Undo reverts a paid settlement back to pending at its original amount.
// Admin only. The planner is not re-run. Fails with ErrInvalidState on a
// record that is not currently paid.
func (s *SettlementService) Undo(ctx context.Context, settlementID, actorID uuid.UUID) (*models.Settlement, error) {
	rec, err := s.store.Settlement(ctx, settlementID)
	if err != nil {
		return nil, err
	}

	role, err := s.roles.RoleOf(ctx, rec.GroupID, actorID)
	if err != nil {
		return nil, err
	}
	if role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: only admins can undo settlements", ErrUnauthorized)
	}

	if !rec.Paid {
		return nil, fmt.Errorf("%w: settlement is not paid", ErrInvalidState)
	}

	changed, err := s.store.MarkUnpaid(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, fmt.Errorf("%w: settlement is not paid", ErrInvalidState)
	}

	rec.Paid = false
	rec.SettledAt = nil

	names := s.names(ctx, rec.PayerID, rec.ReceiverID)
	s.sink.Announce(rec.GroupID, fmt.Sprintf("Settlement undone: %s owes %s %.2f again",
		names[rec.PayerID], names[rec.ReceiverID], rec.Amount))
	return rec, nil
}

func (s *SettlementService) planSummary(ctx context.Context, records []models.Settlement) string {
	if len(records) == 0 {
		return "Settlement plan updated: everyone is settled up"
	}

	ids := make([]uuid.UUID, 0, len(records)*2)
	for _, r := range records {
		ids = append(ids, r.PayerID, r.ReceiverID)
	}
	names := s.lookupNames(ctx, ids)

	lines := make([]string, 0, len(records))
	for _, r := range records {
		lines = append(lines, fmt.Sprintf("%s has to pay %s %.2f", names[r.PayerID], names[r.ReceiverID], r.Amount))
	}
	return "Settlement plan updated: " + strings.Join(lines, "; ")
}

func (s *SettlementService) names(ctx context.Context, ids ...uuid.UUID) map[uuid.UUID]string {
	return s.lookupNames(ctx, ids)
}

// lookupNames resolves display names, falling back to the raw ID so a
// notification never blocks a mutation.
func (s *SettlementService) lookupNames(ctx context.Context, ids []uuid.UUID) map[uuid.UUID]string {
	names, err := s.store.MemberNames(ctx, ids)
	if err != nil {
		log.Printf("⚠️  Failed to resolve member names: %v", err)
		names = map[uuid.UUID]string{}
	}
	for _, id := range ids {
		if _, ok := names[id]; !ok {
			names[id] = id.String()
		}
	}
	return names
}
