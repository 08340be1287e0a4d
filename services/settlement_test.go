package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"smart-splitter-backend/ledger"
	"smart-splitter-backend/models"
)

var (
	testGroup = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	alice     = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	bob       = uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	carol     = uuid.MustParse("00000000-0000-0000-0000-00000000000c")
)

// fakeStore keeps everything in memory. Snapshot derives the paid payment
// list from the settlement records so regenerate-after-payment behaves like
// the real store.
type fakeStore struct {
	mu           sync.Mutex
	expenses     []ledger.Expense
	settlements  map[uuid.UUID]*models.Settlement
	names        map[uuid.UUID]string
	replaceCalls int
}

func newFakeStore(expenses []ledger.Expense) *fakeStore {
	return &fakeStore{
		expenses:    expenses,
		settlements: make(map[uuid.UUID]*models.Settlement),
		names: map[uuid.UUID]string{
			alice: "Alice",
			bob:   "Bob",
			carol: "Carol",
		},
	}
}

func (f *fakeStore) Snapshot(ctx context.Context, groupID uuid.UUID) (*LedgerSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	snap := &LedgerSnapshot{Expenses: f.expenses}
	for _, rec := range f.settlements {
		if rec.Paid {
			snap.Paid = append(snap.Paid, ledger.Payment{
				PayerID:    rec.PayerID,
				ReceiverID: rec.ReceiverID,
				Amount:     decimal.NewFromFloat(rec.Amount),
			})
		}
	}
	return snap, nil
}

func (f *fakeStore) ReplacePending(ctx context.Context, groupID uuid.UUID, transfers []ledger.Transfer) ([]models.Settlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.replaceCalls++
	for id, rec := range f.settlements {
		if !rec.Paid {
			delete(f.settlements, id)
		}
	}

	var records []models.Settlement
	for _, tr := range transfers {
		rec := models.Settlement{
			ID:         uuid.New(),
			GroupID:    groupID,
			PayerID:    tr.From,
			ReceiverID: tr.To,
			Amount:     tr.Amount.InexactFloat64(),
		}
		cp := rec
		f.settlements[rec.ID] = &cp
		records = append(records, rec)
	}
	return records, nil
}

func (f *fakeStore) Settlement(ctx context.Context, id uuid.UUID) (*models.Settlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.settlements[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeStore) MarkPaid(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.settlements[id]
	if !ok || rec.Paid {
		return false, nil
	}
	rec.Paid = true
	t := at
	rec.SettledAt = &t
	return true, nil
}

func (f *fakeStore) MarkUnpaid(ctx context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.settlements[id]
	if !ok || !rec.Paid {
		return false, nil
	}
	rec.Paid = false
	rec.SettledAt = nil
	return true, nil
}

func (f *fakeStore) MemberNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	names := make(map[uuid.UUID]string)
	for _, id := range ids {
		if n, ok := f.names[id]; ok {
			names[id] = n
		}
	}
	return names, nil
}

func (f *fakeStore) pendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, rec := range f.settlements {
		if !rec.Paid {
			n++
		}
	}
	return n
}

type fakeRoles struct {
	roles map[uuid.UUID]string
}

func (f *fakeRoles) RoleOf(ctx context.Context, groupID, userID uuid.UUID) (string, error) {
	return f.roles[userID], nil
}

type fakeSink struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeSink) Announce(groupID uuid.UUID, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, content)
}

func (f *fakeSink) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func newTestService(store *fakeStore) (*SettlementService, *fakeSink) {
	sink := &fakeSink{}
	roles := &fakeRoles{roles: map[uuid.UUID]string{
		alice: models.RoleAdmin,
		bob:   models.RoleMember,
		carol: models.RoleMember,
	}}
	return NewSettlementService(store, roles, sink), sink
}

// Alice paid 90 split three ways: Bob and Carol each owe her 30.
func threeWayExpenses() []ledger.Expense {
	return []ledger.Expense{{
		ID:       uuid.New(),
		PayerID:  alice,
		Amount:   decimal.NewFromInt(90),
		Involved: []uuid.UUID{alice, bob, carol},
	}}
}

func TestRegenerateRequiresAdmin(t *testing.T) {
	store := newFakeStore(threeWayExpenses())
	svc, sink := newTestService(store)

	_, err := svc.Regenerate(context.Background(), testGroup, bob)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if store.replaceCalls != 0 {
		t.Fatalf("pending set was replaced by a non-admin")
	}
	if len(sink.all()) != 0 {
		t.Fatalf("unexpected events: %v", sink.all())
	}
}

func TestRegenerate(t *testing.T) {
	store := newFakeStore(threeWayExpenses())
	svc, sink := newTestService(store)

	records, err := svc.Regenerate(context.Background(), testGroup, alice)
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("expected 2 settlements, got %d", len(records))
	}
	for _, rec := range records {
		if rec.ReceiverID != alice {
			t.Errorf("receiver = %s, want %s", rec.ReceiverID, alice)
		}
		if rec.Amount != 30 {
			t.Errorf("amount = %.2f, want 30.00", rec.Amount)
		}
		if rec.Paid {
			t.Errorf("new settlement must start pending")
		}
	}

	events := sink.all()
	if len(events) != 1 {
		t.Fatalf("expected exactly one event, got %d: %v", len(events), events)
	}
	if !strings.HasPrefix(events[0], "Settlement plan updated:") {
		t.Errorf("unexpected event: %q", events[0])
	}
	if !strings.Contains(events[0], "Bob has to pay Alice 30.00") {
		t.Errorf("event missing Bob's obligation: %q", events[0])
	}
}

func TestRegenerateIdempotent(t *testing.T) {
	store := newFakeStore(threeWayExpenses())
	svc, _ := newTestService(store)

	first, err := svc.Regenerate(context.Background(), testGroup, alice)
	if err != nil {
		t.Fatalf("first Regenerate: %v", err)
	}
	second, err := svc.Regenerate(context.Background(), testGroup, alice)
	if err != nil {
		t.Fatalf("second Regenerate: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("plan size changed: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].PayerID != second[i].PayerID ||
			first[i].ReceiverID != second[i].ReceiverID ||
			first[i].Amount != second[i].Amount {
			t.Errorf("transfer %d changed between runs", i)
		}
	}
	if store.pendingCount() != len(second) {
		t.Errorf("stale pending records left behind: %d", store.pendingCount())
	}
}

func TestRegenerateEmptyGroup(t *testing.T) {
	store := newFakeStore(nil)
	svc, sink := newTestService(store)

	records, err := svc.Regenerate(context.Background(), testGroup, alice)
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty plan, got %d records", len(records))
	}

	events := sink.all()
	if len(events) != 1 || !strings.Contains(events[0], "everyone is settled up") {
		t.Errorf("unexpected events: %v", events)
	}
}

func TestRegenerateCorruptLedger(t *testing.T) {
	// An expense with no involved members cannot be aggregated.
	store := newFakeStore([]ledger.Expense{{
		ID:      uuid.New(),
		PayerID: alice,
		Amount:  decimal.NewFromInt(50),
	}})
	svc, sink := newTestService(store)

	_, err := svc.Regenerate(context.Background(), testGroup, alice)
	if !errors.Is(err, ErrDataIntegrity) {
		t.Fatalf("expected ErrDataIntegrity, got %v", err)
	}
	if store.replaceCalls != 0 {
		t.Fatalf("a plan was persisted from a corrupt ledger")
	}
	if len(sink.all()) != 0 {
		t.Fatalf("unexpected events: %v", sink.all())
	}
}

func TestMarkPaid(t *testing.T) {
	store := newFakeStore(threeWayExpenses())
	svc, sink := newTestService(store)

	records, err := svc.Regenerate(context.Background(), testGroup, alice)
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}

	target := records[0]
	rec, err := svc.MarkPaid(context.Background(), target.ID, target.PayerID)
	if err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if !rec.Paid {
		t.Errorf("record not marked paid")
	}
	if rec.SettledAt == nil {
		t.Errorf("settled timestamp not set")
	}
	if rec.Amount != target.Amount {
		t.Errorf("amount changed: %.2f vs %.2f", rec.Amount, target.Amount)
	}

	events := sink.all()
	if len(events) != 2 {
		t.Fatalf("expected 2 events (plan + payment), got %d: %v", len(events), events)
	}
	if !strings.HasPrefix(events[1], "Payment completed:") {
		t.Errorf("unexpected payment event: %q", events[1])
	}
}

func TestMarkPaidOnlyPayer(t *testing.T) {
	store := newFakeStore(threeWayExpenses())
	svc, _ := newTestService(store)

	records, _ := svc.Regenerate(context.Background(), testGroup, alice)
	target := records[0]

	// The receiver cannot mark it, nor can an uninvolved admin.
	if _, err := svc.MarkPaid(context.Background(), target.ID, target.ReceiverID); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("receiver: expected ErrUnauthorized, got %v", err)
	}

	rec, err := store.Settlement(context.Background(), target.ID)
	if err != nil {
		t.Fatalf("Settlement: %v", err)
	}
	if rec.Paid {
		t.Errorf("record was paid by the wrong actor")
	}
}

func TestMarkPaidIdempotent(t *testing.T) {
	store := newFakeStore(threeWayExpenses())
	svc, sink := newTestService(store)

	records, _ := svc.Regenerate(context.Background(), testGroup, alice)
	target := records[0]

	if _, err := svc.MarkPaid(context.Background(), target.ID, target.PayerID); err != nil {
		t.Fatalf("first MarkPaid: %v", err)
	}
	rec, err := svc.MarkPaid(context.Background(), target.ID, target.PayerID)
	if err != nil {
		t.Fatalf("second MarkPaid: %v", err)
	}
	if !rec.Paid {
		t.Errorf("record no longer paid after retry")
	}

	// The retry must not emit a second payment event.
	if got := len(sink.all()); got != 2 {
		t.Errorf("expected 2 events, got %d: %v", got, sink.all())
	}
}

func TestMarkPaidNotFound(t *testing.T) {
	store := newFakeStore(nil)
	svc, _ := newTestService(store)

	_, err := svc.MarkPaid(context.Background(), uuid.New(), alice)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUndoRequiresAdmin(t *testing.T) {
	store := newFakeStore(threeWayExpenses())
	svc, _ := newTestService(store)

	records, _ := svc.Regenerate(context.Background(), testGroup, alice)
	target := records[0]
	svc.MarkPaid(context.Background(), target.ID, target.PayerID)

	if _, err := svc.Undo(context.Background(), target.ID, bob); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestUndoPendingFails(t *testing.T) {
	store := newFakeStore(threeWayExpenses())
	svc, _ := newTestService(store)

	records, _ := svc.Regenerate(context.Background(), testGroup, alice)

	_, err := svc.Undo(context.Background(), records[0].ID, alice)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestUndo(t *testing.T) {
	store := newFakeStore(threeWayExpenses())
	svc, sink := newTestService(store)

	records, _ := svc.Regenerate(context.Background(), testGroup, alice)
	target := records[0]
	svc.MarkPaid(context.Background(), target.ID, target.PayerID)

	rec, err := svc.Undo(context.Background(), target.ID, alice)
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if rec.Paid {
		t.Errorf("record still paid after undo")
	}
	if rec.SettledAt != nil {
		t.Errorf("settled timestamp not cleared")
	}
	if rec.Amount != target.Amount {
		t.Errorf("undo changed the amount: %.2f vs %.2f", rec.Amount, target.Amount)
	}

	events := sink.all()
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d: %v", len(events), events)
	}
	if !strings.HasPrefix(events[2], "Settlement undone:") {
		t.Errorf("unexpected undo event: %q", events[2])
	}
}

// Undoing a payment and regenerating must reproduce a pending transfer of
// the same amount between the same pair.
func TestUndoThenRegenerate(t *testing.T) {
	store := newFakeStore(threeWayExpenses())
	svc, _ := newTestService(store)

	records, err := svc.Regenerate(context.Background(), testGroup, alice)
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	target := records[0]

	if _, err := svc.MarkPaid(context.Background(), target.ID, target.PayerID); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if _, err := svc.Undo(context.Background(), target.ID, alice); err != nil {
		t.Fatalf("Undo: %v", err)
	}

	records, err = svc.Regenerate(context.Background(), testGroup, alice)
	if err != nil {
		t.Fatalf("second Regenerate: %v", err)
	}

	found := false
	for _, rec := range records {
		if rec.PayerID == target.PayerID && rec.ReceiverID == target.ReceiverID && rec.Amount == target.Amount {
			found = true
		}
	}
	if !found {
		t.Fatalf("undone transfer %s -> %s %.2f not reproduced in %v",
			target.PayerID, target.ReceiverID, target.Amount, records)
	}
}

// Paying one settlement and regenerating must shrink the plan to the
// remaining debt rather than resurrecting the paid one.
func TestRegenerateAfterPayment(t *testing.T) {
	store := newFakeStore(threeWayExpenses())
	svc, _ := newTestService(store)

	records, err := svc.Regenerate(context.Background(), testGroup, alice)
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}

	var bobsDebt *models.Settlement
	for i := range records {
		if records[i].PayerID == bob {
			bobsDebt = &records[i]
		}
	}
	if bobsDebt == nil {
		t.Fatalf("no settlement for Bob in %v", records)
	}

	if _, err := svc.MarkPaid(context.Background(), bobsDebt.ID, bob); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}

	records, err = svc.Regenerate(context.Background(), testGroup, alice)
	if err != nil {
		t.Fatalf("second Regenerate: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 remaining settlement, got %d", len(records))
	}
	if records[0].PayerID != carol || records[0].ReceiverID != alice || records[0].Amount != 30 {
		t.Errorf("unexpected remaining settlement: %+v", records[0])
	}
}
