// Package store persists clients, purchases and the product catalog.
//
// Two backends implement the same contract: Postgres through pgxpool for
// deployments, and SQLite for single-box installs and tests. Every ledger
// mutation goes through WithTx; a Tx is only valid inside the callback.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/punchamoorthee/creditledger/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a lookup by id matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrReferenced is returned when a delete would orphan dependent rows.
	ErrReferenced = errors.New("record is still referenced")
)

// Store is the non-transactional surface plus the transaction coordinator.
type Store interface {
	// WithTx runs fn inside one database transaction. A nil return commits,
	// anything else rolls back and is returned unchanged.
	WithTx(ctx context.Context, fn func(Tx) error) error

	CreateClient(ctx context.Context, c *domain.Client) error
	// Client returns the client with all of its purchases.
	Client(ctx context.Context, id int64) (*domain.Client, error)
	Clients(ctx context.Context) ([]domain.Client, error)
	// Purchases lists purchases (with items) matching f, oldest first.
	Purchases(ctx context.Context, f domain.PurchaseFilter) ([]domain.Purchase, error)

	CreateProduct(ctx context.Context, p *domain.Product) error
	Product(ctx context.Context, id int64) (*domain.Product, error)
	Products(ctx context.Context) ([]domain.Product, error)
	UpdateProduct(ctx context.Context, p *domain.Product) error
	DeleteProduct(ctx context.Context, id int64) error
	DecrementStock(ctx context.Context, productID int64, qty int) error

	Snapshot(ctx context.Context) (*domain.Snapshot, error)
	// Restore upserts s by id. A purchase already paid stays paid; when the
	// snapshot still had it unpaid, its value comes off the restored debit.
	Restore(ctx context.Context, s *domain.Snapshot) error

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Tx is the ledger repository scoped to one transaction.
type Tx interface {
	// LockClient loads the client row and holds it for the rest of the
	// transaction, serialising concurrent ledger operations on one client.
	LockClient(ctx context.Context, id int64) (*domain.Client, error)

	// ClientPurchases returns every purchase of the client, oldest first.
	ClientPurchases(ctx context.Context, clientID int64) ([]domain.Purchase, error)
	// UnpaidPurchases returns the client's unpaid purchases ordered by
	// date_sell, ties broken by id.
	UnpaidPurchases(ctx context.Context, clientID int64) ([]domain.Purchase, error)
	// PurchasesByID returns the purchases among ids owned by clientID.
	PurchasesByID(ctx context.Context, clientID int64, ids []int64) ([]domain.Purchase, error)
	Purchase(ctx context.Context, id int64) (*domain.Purchase, error)

	// MarkPaid flips unpaid purchases among ids to paid and reports how many changed.
	MarkPaid(ctx context.Context, ids []int64, at time.Time) (int64, error)
	// AdjustDebit adds delta to the client's cached debit and returns the new value.
	AdjustDebit(ctx context.Context, clientID int64, delta decimal.Decimal) (decimal.Decimal, error)
	SetDebit(ctx context.Context, clientID int64, v decimal.Decimal) error

	// InsertPurchase stores p and its items, filling in the generated ids.
	InsertPurchase(ctx context.Context, p *domain.Purchase) error
	// ProductNames resolves names for ids; missing ids are absent from the map.
	ProductNames(ctx context.Context, ids []int64) (map[int64]string, error)
}

func purchaseIDs(ps []domain.Purchase) []int64 {
	ids := make([]int64, len(ps))
	for i, p := range ps {
		ids[i] = p.ID
	}
	return ids
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// attachItems groups items onto their purchases in place.
func attachItems(ps []domain.Purchase, items []domain.LineItem) {
	byID := make(map[int64]int, len(ps))
	for i := range ps {
		ps[i].Items = []domain.LineItem{}
		byID[ps[i].ID] = i
	}
	for _, it := range items {
		if i, ok := byID[it.PurchaseID]; ok {
			ps[i].Items = append(ps[i].Items, it)
		}
	}
}

// attachPurchases groups purchases onto their clients in place.
func attachPurchases(cs []domain.Client, ps []domain.Purchase) {
	byID := make(map[int64]int, len(cs))
	for i := range cs {
		cs[i].Purchases = []domain.Purchase{}
		byID[cs[i].ID] = i
	}
	for _, p := range ps {
		if i, ok := byID[p.ClientID]; ok {
			cs[i].Purchases = append(cs[i].Purchases, p)
		}
	}
}
