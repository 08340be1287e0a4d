package ledger

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestPlan(t *testing.T) {
	tests := []struct {
		name     string
		balances map[uuid.UUID]decimal.Decimal
		want     []Transfer
	}{
		{
			name: "two equal debtors pay one creditor",
			balances: map[uuid.UUID]decimal.Decimal{
				alice: dec(60),
				bob:   dec(-30),
				carol: dec(-30),
			},
			// bob and carol tie at 30; ascending UUID puts bob first.
			want: []Transfer{
				{From: bob, To: alice, Amount: dec(30)},
				{From: carol, To: alice, Amount: dec(30)},
			},
		},
		{
			name: "settled group yields no transfers",
			balances: map[uuid.UUID]decimal.Decimal{
				alice: decimal.Zero,
				bob:   decimal.Zero,
			},
			want: nil,
		},
		{
			name:     "empty balances yield no transfers",
			balances: map[uuid.UUID]decimal.Decimal{},
			want:     nil,
		},
		{
			name: "largest debtor pairs with largest creditor first",
			balances: map[uuid.UUID]decimal.Decimal{
				alice: dec(70),
				bob:   dec(10),
				carol: dec(-50),
				dave:  dec(-30),
			},
			want: []Transfer{
				{From: carol, To: alice, Amount: dec(50)},
				{From: dave, To: alice, Amount: dec(20)},
				{From: dave, To: bob, Amount: dec(10)},
			},
		},
		{
			name: "sub-epsilon balances are ignored",
			balances: map[uuid.UUID]decimal.Decimal{
				alice: dec(0.005),
				bob:   dec(-0.005),
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Plan(tt.balances)
			if len(got) != len(tt.want) {
				t.Fatalf("Plan() returned %d transfers, want %d: %v", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i].From != tt.want[i].From || got[i].To != tt.want[i].To {
					t.Errorf("transfer[%d] = %s -> %s, want %s -> %s",
						i, got[i].From, got[i].To, tt.want[i].From, tt.want[i].To)
				}
				if !got[i].Amount.Equal(tt.want[i].Amount.Round(2)) {
					t.Errorf("transfer[%d] amount = %s, want %s",
						i, got[i].Amount, tt.want[i].Amount)
				}
			}
		})
	}
}

// Plan must pay out exactly what the creditors are owed (up to rounding).
func TestPlanConservation(t *testing.T) {
	balances := map[uuid.UUID]decimal.Decimal{
		alice: dec(41.67),
		bob:   dec(12.50),
		carol: dec(-20.84),
		dave:  dec(-33.33),
	}

	transfers := Plan(balances)

	paidOut := decimal.Zero
	for _, tr := range transfers {
		if !tr.Amount.IsPositive() {
			t.Errorf("transfer %s -> %s has non-positive amount %s", tr.From, tr.To, tr.Amount)
		}
		paidOut = paidOut.Add(tr.Amount)
	}

	owed := decimal.Zero
	for _, b := range balances {
		if b.IsPositive() {
			owed = owed.Add(b)
		}
	}

	if paidOut.Sub(owed).Abs().GreaterThan(Epsilon.Mul(decimal.NewFromInt(int64(len(balances))))) {
		t.Errorf("transfers pay out %s, creditors are owed %s", paidOut, owed)
	}
}

func TestPlanDeterministic(t *testing.T) {
	balances := map[uuid.UUID]decimal.Decimal{
		alice: dec(25),
		bob:   dec(25),
		carol: dec(-25),
		dave:  dec(-25),
	}

	first := Plan(balances)
	for run := 0; run < 10; run++ {
		again := Plan(balances)
		if len(again) != len(first) {
			t.Fatalf("run %d: got %d transfers, want %d", run, len(again), len(first))
		}
		for i := range first {
			if first[i].From != again[i].From || first[i].To != again[i].To || !first[i].Amount.Equal(again[i].Amount) {
				t.Fatalf("run %d: transfer[%d] = %v, want %v", run, i, again[i], first[i])
			}
		}
	}
}
