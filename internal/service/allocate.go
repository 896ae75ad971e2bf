package service

import (
	"github.com/punchamoorthee/creditledger/internal/domain"
	"github.com/shopspring/decimal"
)

// Allocation is the outcome of walking unpaid purchases against an amount.
type Allocation struct {
	Settled   []domain.Purchase
	Remaining decimal.Decimal
}

// Allocate settles purchases from the front of unpaid while each fits in what
// is left of amount. It stops at the first purchase that does not fit, even
// if a later, smaller one would. unpaid must already be ordered oldest first.
func Allocate(unpaid []domain.Purchase, amount decimal.Decimal) Allocation {
	a := Allocation{Settled: []domain.Purchase{}, Remaining: amount}
	for _, p := range unpaid {
		if p.Value.GreaterThan(a.Remaining) {
			break
		}
		a.Settled = append(a.Settled, p)
		a.Remaining = a.Remaining.Sub(p.Value)
	}
	return a
}

// SettledIDs returns the ids of the settled purchases.
func (a Allocation) SettledIDs() []int64 {
	ids := make([]int64, len(a.Settled))
	for i, p := range a.Settled {
		ids[i] = p.ID
	}
	return ids
}
