package models

import (
	"encoding/json"
	"time"

	"github.com/punchamoorthee/creditledger/internal/domain"
	"github.com/shopspring/decimal"
)

// Payment modes, also used as metric labels.
const (
	ModeClear     = "clear"
	ModeSelection = "selection"
	ModeAmount    = "amount"
	ModeSingle    = "single"
)

// CreateClientRequest is the input for registering a client.
type CreateClientRequest struct {
	Name    string           `json:"name"`
	Level   string           `json:"level"`
	Course  string           `json:"course"`
	Contact string           `json:"contact"`
	Credit  *decimal.Decimal `json:"credit"`
	// Debit is an opening balance with no purchases behind it; the debit audit reports it as drift.
	Debit   *decimal.Decimal `json:"debit"`
}

func (r CreateClientRequest) Validate() error {
	switch {
	case r.Name == "":
		return domain.Invalid("name is required")
	case r.Contact == "":
		return domain.Invalid("contact is required")
	case !domain.ValidLevel(r.Level):
		return domain.Invalid("unknown level " + r.Level)
	case r.Credit != nil && r.Credit.IsNegative():
		return domain.Invalid("credit must not be negative")
	case r.Debit != nil && r.Debit.IsNegative():
		return domain.Invalid("debit must not be negative")
	}
	return nil
}

// ProductRequest is the input for creating or replacing a catalog entry.
type ProductRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

func (r ProductRequest) Validate() error {
	switch {
	case r.Name == "":
		return domain.Invalid("name is required")
	case r.Price.IsNegative():
		return domain.Invalid("price must not be negative")
	}
	return nil
}

// SaleItem is one product line of a sale.
type SaleItem struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// SaleRequest records a credit sale.
type SaleRequest struct {
	ClientID int64           `json:"client_id"`
	Value    decimal.Decimal `json:"value"`
	Products []SaleItem      `json:"products"`
}

func (r SaleRequest) Validate() error {
	if r.ClientID <= 0 {
		return domain.Invalid("client_id is required")
	}
	if !r.Value.IsPositive() {
		return domain.Invalid("value must be greater than zero")
	}
	if len(r.Products) == 0 {
		return domain.Invalid("at least one product is required")
	}
	for _, it := range r.Products {
		if it.ProductID <= 0 {
			return domain.Invalid("product_id is required")
		}
		if it.Quantity <= 0 {
			return domain.Invalid("quantity must be greater than zero")
		}
		if it.Price.IsNegative() {
			return domain.Invalid("price must not be negative")
		}
	}
	return nil
}

// PartialPaymentRequest settles part of a client's debt, either by an explicit
// purchase selection or by an amount. A non-empty selection wins.
type PartialPaymentRequest struct {
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	PurchaseIDs []int64          `json:"purchaseIds,omitempty"`
}

// Mode reports which allocation the request asks for.
func (r PartialPaymentRequest) Mode() string {
	if len(r.PurchaseIDs) > 0 {
		return ModeSelection
	}
	return ModeAmount
}

func (r PartialPaymentRequest) Validate() error {
	if len(r.PurchaseIDs) > 0 {
		return nil
	}
	if r.Amount == nil {
		return domain.Invalid("amount or purchaseIds is required")
	}
	if !r.Amount.IsPositive() {
		return domain.Invalid("amount must be greater than zero")
	}
	return nil
}

// PartialPaymentResponse carries either the settled purchases (amount mode) or
// the settled ids (selection mode), never both.
type PartialPaymentResponse struct {
	Mode            string
	Client          *domain.Client
	PaidAmount      decimal.Decimal
	PaidPurchases   []domain.Purchase
	PaidPurchaseIDs []int64
}

func (r PartialPaymentResponse) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"client":     r.Client,
		"paidAmount": r.PaidAmount,
	}
	if r.Mode == ModeSelection {
		ids := r.PaidPurchaseIDs
		if ids == nil {
			ids = []int64{}
		}
		out["paidPurchaseIds"] = ids
	} else {
		ps := r.PaidPurchases
		if ps == nil {
			ps = []domain.Purchase{}
		}
		out["paidPurchases"] = ps
	}
	return json.Marshal(out)
}

// Period is the inclusive date_sell window of a purchase report.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// PurchaseReport lists a client's purchases within a period.
type PurchaseReport struct {
	Purchases  []domain.Purchase `json:"purchases"`
	TotalValue decimal.Decimal   `json:"totalValue"`
	Period     Period            `json:"period"`
}

// DebtMessageResponse reports a debt reminder.
type DebtMessageResponse struct {
	Success   bool            `json:"success"`
	Delivered bool            `json:"delivered"`
	Total     decimal.Decimal `json:"total"`
	Message   string          `json:"message"`
}

// AuditReport lists clients whose cached debit disagrees with their purchases.
type AuditReport struct {
	CheckedAt time.Time           `json:"checked_at"`
	Clients   int                 `json:"clients"`
	Drifts    []domain.DebitDrift `json:"drifts"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}
