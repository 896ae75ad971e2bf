package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Client is a member allowed to buy on credit.
// Debit is a cached balance: it should always equal the sum of Value over
// the client's unpaid purchases.
type Client struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Level     string          `json:"level"`
	Course    string          `json:"course,omitempty"`
	Contact   string          `json:"contact"`
	Credit    decimal.Decimal `json:"credit"`
	Debit     decimal.Decimal `json:"debit"`
	CreatedAt time.Time       `json:"created_at"`
	Purchases []Purchase      `json:"purchases"`
}

// Purchase is one credit sale. Value never changes after creation and Paid
// only ever moves from false to true.
type Purchase struct {
	ID       int64           `json:"id"`
	ClientID int64           `json:"client_id"`
	Value    decimal.Decimal `json:"value"`
	DateSell time.Time       `json:"date_sell"`
	DatePay  time.Time       `json:"date_pay"`
	Paid     bool            `json:"paid"`
	PaidAt   *time.Time      `json:"paid_at,omitempty"`
	Items    []LineItem      `json:"items"`
}

// LineItem is a receipt line. It does not take part in the debit invariant.
type LineItem struct {
	ID          int64           `json:"id"`
	PurchaseID  int64           `json:"purchase_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// Total is the line amount (quantity x unit price).
func (li LineItem) Total() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Product is a catalog entry.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

// PurchaseFilter narrows a purchase listing. A zero ClientID means all clients.
type PurchaseFilter struct {
	ClientID int64
	Start    time.Time
	End      time.Time
	Paid     *bool
}

// Snapshot is a full dump of the ledger used by backup and restore.
type Snapshot struct {
	Clients   []Client   `json:"clients"`
	Products  []Product  `json:"products"`
	Purchases []Purchase `json:"sales"`
}

// DebitDrift reports a client whose cached debit disagrees with its unpaid purchases.
type DebitDrift struct {
	ClientID int64           `json:"client_id"`
	Name     string          `json:"name"`
	Cached   decimal.Decimal `json:"cached_debit"`
	Unpaid   decimal.Decimal `json:"unpaid_total"`
	Delta    decimal.Decimal `json:"delta"`
}

// DueDate returns the first day of the month following t, in t's location.
func DueDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
}

// UnpaidTotal sums the values of the unpaid purchases in ps.
func UnpaidTotal(ps []Purchase) decimal.Decimal {
	total := decimal.Zero
	for _, p := range ps {
		if !p.Paid {
			total = total.Add(p.Value)
		}
	}
	return total
}

// SumValues sums the values of every purchase in ps, paid or not.
func SumValues(ps []Purchase) decimal.Decimal {
	total := decimal.Zero
	for _, p := range ps {
		total = total.Add(p.Value)
	}
	return total
}

// Rank codes accepted for Client.Level.
var Levels = []string{"SD", "CB", "SGT", "STTEN", "TEN", "CAP", "MAJ", "CEL"}

// ValidLevel reports whether level is a known rank code.
func ValidLevel(level string) bool {
	for _, l := range Levels {
		if l == level {
			return true
		}
	}
	return false
}

// NormalizeLevel maps unknown rank codes to the lowest rank.
func NormalizeLevel(level string) string {
	if ValidLevel(level) {
		return level
	}
	return "SD"
}
