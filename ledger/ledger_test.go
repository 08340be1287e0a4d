package ledger

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	alice = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	bob   = uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	carol = uuid.MustParse("00000000-0000-0000-0000-00000000000c")
	dave  = uuid.MustParse("00000000-0000-0000-0000-00000000000d")
)

func dec(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func wantBalance(t *testing.T, balances map[uuid.UUID]decimal.Decimal, id uuid.UUID, want float64) {
	t.Helper()
	got := balances[id]
	if got.Sub(dec(want)).Abs().GreaterThan(Epsilon) {
		t.Errorf("balance[%s] = %s, want %.2f", id, got.StringFixed(2), want)
	}
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name     string
		expenses []Expense
		paid     []Payment
		validate func(t *testing.T, balances map[uuid.UUID]decimal.Decimal)
	}{
		{
			name: "payer is credited full amount and debited one share",
			expenses: []Expense{
				{PayerID: alice, Amount: dec(90), Involved: []uuid.UUID{alice, bob, carol}},
			},
			validate: func(t *testing.T, balances map[uuid.UUID]decimal.Decimal) {
				wantBalance(t, balances, alice, 60)
				wantBalance(t, balances, bob, -30)
				wantBalance(t, balances, carol, -30)
			},
		},
		{
			name: "mirrored expenses cancel out",
			expenses: []Expense{
				{PayerID: alice, Amount: dec(30), Involved: []uuid.UUID{alice, bob}},
				{PayerID: bob, Amount: dec(30), Involved: []uuid.UUID{alice, bob}},
			},
			validate: func(t *testing.T, balances map[uuid.UUID]decimal.Decimal) {
				wantBalance(t, balances, alice, 0)
				wantBalance(t, balances, bob, 0)
			},
		},
		{
			name: "paid settlement shrinks both sides",
			expenses: []Expense{
				{PayerID: alice, Amount: dec(90), Involved: []uuid.UUID{alice, bob, carol}},
			},
			paid: []Payment{
				{PayerID: bob, ReceiverID: alice, Amount: dec(30)},
			},
			validate: func(t *testing.T, balances map[uuid.UUID]decimal.Decimal) {
				wantBalance(t, balances, alice, 30)
				wantBalance(t, balances, bob, 0)
				wantBalance(t, balances, carol, -30)
			},
		},
		{
			name: "uneven three way split keeps cents consistent",
			expenses: []Expense{
				{PayerID: alice, Amount: dec(100), Involved: []uuid.UUID{alice, bob, carol}},
				{PayerID: bob, Amount: dec(25.55), Involved: []uuid.UUID{bob, dave}},
			},
			validate: func(t *testing.T, balances map[uuid.UUID]decimal.Decimal) {
				wantBalance(t, balances, dave, -12.775)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			balances, err := Aggregate(tt.expenses, tt.paid)
			if err != nil {
				t.Fatalf("Aggregate() error = %v", err)
			}
			tt.validate(t, balances)

			// Every consistent history nets to ~0.
			if err := CheckBalanced(balances); err != nil {
				t.Errorf("CheckBalanced() = %v, want nil", err)
			}
		})
	}
}

func TestAggregateEmptyInvolved(t *testing.T) {
	_, err := Aggregate([]Expense{
		{ID: uuid.New(), PayerID: alice, Amount: dec(10), Involved: nil},
	}, nil)

	if !errors.Is(err, ErrEmptyInvolved) {
		t.Fatalf("Aggregate() error = %v, want ErrEmptyInvolved", err)
	}
}

func TestAggregateEmptyHistory(t *testing.T) {
	balances, err := Aggregate(nil, nil)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if len(balances) != 0 {
		t.Errorf("Aggregate() returned %d balances, want 0", len(balances))
	}
}

func TestCheckBalanced(t *testing.T) {
	unbalanced := map[uuid.UUID]decimal.Decimal{
		alice: dec(10),
		bob:   dec(-5),
	}
	if err := CheckBalanced(unbalanced); err == nil {
		t.Error("CheckBalanced() = nil for a 5.00 residual, want error")
	}

	noisy := map[uuid.UUID]decimal.Decimal{
		alice: dec(10.005),
		bob:   dec(-10),
	}
	if err := CheckBalanced(noisy); err != nil {
		t.Errorf("CheckBalanced() = %v for sub-epsilon residual, want nil", err)
	}
}
