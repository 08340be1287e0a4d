// Package ledger turns a group's expense and settlement history into net
// per-member balances and collapses those balances into a small set of
// pairwise transfers. It is pure computation: no storage, no transport.
package ledger

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Epsilon is the rounding tolerance for balance checks. Balances are held
// in currency units with two meaningful decimal places, so anything below
// one minor unit is noise.
var Epsilon = decimal.NewFromFloat(0.01)

// ErrEmptyInvolved marks an expense with no involved members. That is a
// data-integrity violation (the payer must always be involved), not a
// recoverable input.
var ErrEmptyInvolved = errors.New("expense has no involved members")

// Expense is the slice of an expense record the aggregator needs.
// Involved always contains the payer.
type Expense struct {
	ID       uuid.UUID
	PayerID  uuid.UUID
	Amount   decimal.Decimal
	Involved []uuid.UUID
}

// Payment is a settled (paid) transfer between two members.
type Payment struct {
	PayerID    uuid.UUID
	ReceiverID uuid.UUID
	Amount     decimal.Decimal
}

// Aggregate computes each member's signed net balance from the full expense
// history plus all settlements already paid. Positive means the group owes
// the member, negative means the member owes the group.
//
// For every expense the payer is credited the full amount and every involved
// member (payer included) is debited an equal share. The payer being both
// creditor and one-share debtor is intentional: it is what makes the
// balances sum to zero.
func Aggregate(expenses []Expense, paid []Payment) (map[uuid.UUID]decimal.Decimal, error) {
	balances := make(map[uuid.UUID]decimal.Decimal)

	for _, e := range expenses {
		if len(e.Involved) == 0 {
			return nil, fmt.Errorf("expense %s: %w", e.ID, ErrEmptyInvolved)
		}

		share := e.Amount.Div(decimal.NewFromInt(int64(len(e.Involved))))
		for _, uid := range e.Involved {
			balances[uid] = balances[uid].Sub(share)
		}
		balances[e.PayerID] = balances[e.PayerID].Add(e.Amount)
	}

	for _, p := range paid {
		// Paying a settlement shrinks the payer's debt and shrinks what
		// the receiver is still owed.
		balances[p.PayerID] = balances[p.PayerID].Add(p.Amount)
		balances[p.ReceiverID] = balances[p.ReceiverID].Sub(p.Amount)
	}

	return balances, nil
}

// Sum adds up all balances. For a consistent history the result is zero up
// to Epsilon.
func Sum(balances map[uuid.UUID]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, b := range balances {
		total = total.Add(b)
	}
	return total
}

// CheckBalanced returns an error when the balances do not net to ~0. A
// failure means the underlying records are inconsistent and no plan should
// be generated from them.
func CheckBalanced(balances map[uuid.UUID]decimal.Decimal) error {
	if total := Sum(balances); total.Abs().GreaterThan(Epsilon) {
		return fmt.Errorf("balances do not net to zero (residual %s)", total.StringFixed(2))
	}
	return nil
}
