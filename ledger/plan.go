package ledger

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transfer is one planned payment: From owes To.
type Transfer struct {
	From   uuid.UUID
	To     uuid.UUID
	Amount decimal.Decimal
}

type memberAmount struct {
	id     uuid.UUID
	amount decimal.Decimal // positive magnitude
}

// Plan reduces net balances to a list of transfers with a greedy two-pointer
// sweep: the largest remaining debtor pays the largest remaining creditor
// min(debt, credit), repeatedly, until one side runs out. The result is a
// heuristic, not a provably minimal transaction count.
//
// Members with equal magnitudes are ordered by ascending UUID string so the
// output is deterministic. Transfer amounts are rounded to two decimal
// places; zero and sub-epsilon transfers are dropped.
func Plan(balances map[uuid.UUID]decimal.Decimal) []Transfer {
	var debtors, creditors []memberAmount

	for id, b := range balances {
		switch {
		case b.LessThan(Epsilon.Neg()):
			debtors = append(debtors, memberAmount{id, b.Neg()})
		case b.GreaterThan(Epsilon):
			creditors = append(creditors, memberAmount{id, b})
		}
	}

	sortByMagnitude(debtors)
	sortByMagnitude(creditors)

	var transfers []Transfer
	i, j := 0, 0

	for i < len(debtors) && j < len(creditors) {
		pay := decimal.Min(debtors[i].amount, creditors[j].amount)

		if rounded := pay.Round(2); rounded.IsPositive() {
			transfers = append(transfers, Transfer{
				From:   debtors[i].id,
				To:     creditors[j].id,
				Amount: rounded,
			})
		}

		debtors[i].amount = debtors[i].amount.Sub(pay)
		creditors[j].amount = creditors[j].amount.Sub(pay)

		if debtors[i].amount.LessThan(Epsilon) {
			i++
		}
		if creditors[j].amount.LessThan(Epsilon) {
			j++
		}
	}

	return transfers
}

func sortByMagnitude(entries []memberAmount) {
	sort.Slice(entries, func(a, b int) bool {
		if !entries[a].amount.Equal(entries[b].amount) {
			return entries[a].amount.GreaterThan(entries[b].amount)
		}
		return entries[a].id.String() < entries[b].id.String()
	})
}
