package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/punchamoorthee/creditledger/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	ctx := context.Background()
	s, err := NewSQLite(ctx, ":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { s.Close() })
	return s
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedClient(t *testing.T, s *SQLite, name string) *domain.Client {
	t.Helper()
	c := &domain.Client{Name: name, Level: "CB", Contact: "11999990000", Credit: dec("500")}
	require.NoError(t, s.CreateClient(context.Background(), c))
	return c
}

func seedPurchase(t *testing.T, s *SQLite, clientID int64, value string, sold time.Time, items ...domain.LineItem) *domain.Purchase {
	t.Helper()
	p := &domain.Purchase{
		ClientID: clientID,
		Value:    dec(value),
		DateSell: sold,
		DatePay:  domain.DueDate(sold),
		Items:    items,
	}
	err := s.WithTx(context.Background(), func(tx Tx) error {
		if err := tx.InsertPurchase(context.Background(), p); err != nil {
			return err
		}
		_, err := tx.AdjustDebit(context.Background(), clientID, p.Value)
		return err
	})
	require.NoError(t, err)
	return p
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, s.Ping(context.Background()))
}

func TestClientRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := seedClient(t, s, "Ana")
	assert.NotZero(t, c.ID)

	got, err := s.Client(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Name)
	assert.True(t, got.Credit.Equal(dec("500")))
	assert.True(t, got.Debit.IsZero())
	assert.Empty(t, got.Purchases)

	_, err = s.Client(ctx, c.ID+100)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsertPurchaseWithItems(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	prod := &domain.Product{Name: "Coffee", Price: dec("3.50"), Stock: 10}
	require.NoError(t, s.CreateProduct(ctx, prod))
	c := seedClient(t, s, "Bruno")

	sold := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	p := seedPurchase(t, s, c.ID, "7.00", sold, domain.LineItem{ProductID: prod.ID, Quantity: 2, Price: dec("3.50")})
	assert.NotZero(t, p.ID)
	assert.NotZero(t, p.Items[0].ID)

	got, err := s.Client(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, got.Purchases, 1)
	assert.True(t, got.Debit.Equal(dec("7")))
	assert.True(t, got.Purchases[0].DateSell.Equal(sold))
	require.Len(t, got.Purchases[0].Items, 1)
	assert.Equal(t, "Coffee", got.Purchases[0].Items[0].ProductName)
	assert.False(t, got.Purchases[0].Paid)
	assert.Nil(t, got.Purchases[0].PaidAt)
}

func TestUnpaidPurchasesOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := seedClient(t, s, "Caio")

	day := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	late := seedPurchase(t, s, c.ID, "5", day.Add(48*time.Hour))
	early := seedPurchase(t, s, c.ID, "5", day)
	tie := seedPurchase(t, s, c.ID, "5", day)

	err := s.WithTx(ctx, func(tx Tx) error {
		ps, err := tx.UnpaidPurchases(ctx, c.ID)
		require.NoError(t, err)
		require.Len(t, ps, 3)
		assert.Equal(t, []int64{early.ID, tie.ID, late.ID}, purchaseIDs(ps))
		return nil
	})
	require.NoError(t, err)
}

func TestMarkPaidOnlyFlipsUnpaid(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := seedClient(t, s, "Duda")
	other := seedClient(t, s, "Eva")

	now := time.Now()
	p1 := seedPurchase(t, s, c.ID, "10", now)
	p2 := seedPurchase(t, s, c.ID, "20", now)
	foreign := seedPurchase(t, s, other.ID, "30", now)

	err := s.WithTx(ctx, func(tx Tx) error {
		owned, err := tx.PurchasesByID(ctx, c.ID, []int64{p1.ID, foreign.ID, 9999, p1.ID})
		require.NoError(t, err)
		assert.Equal(t, []int64{p1.ID}, purchaseIDs(owned))

		n, err := tx.MarkPaid(ctx, []int64{p1.ID}, now)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		n, err = tx.MarkPaid(ctx, []int64{p1.ID, p2.ID}, now)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
		return nil
	})
	require.NoError(t, err)

	got, err := s.Client(ctx, c.ID)
	require.NoError(t, err)
	for _, p := range got.Purchases {
		assert.True(t, p.Paid)
		assert.NotNil(t, p.PaidAt)
	}
}

func TestWithTxRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := seedClient(t, s, "Fabi")
	seedPurchase(t, s, c.ID, "40", time.Now())

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx Tx) error {
		ps, err := tx.UnpaidPurchases(ctx, c.ID)
		require.NoError(t, err)
		_, err = tx.MarkPaid(ctx, purchaseIDs(ps), time.Now())
		require.NoError(t, err)
		_, err = tx.AdjustDebit(ctx, c.ID, dec("-40"))
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Client(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.Debit.Equal(dec("40")))
	assert.False(t, got.Purchases[0].Paid)
}

func TestAdjustDebitUnknownClient(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	err := s.WithTx(ctx, func(tx Tx) error {
		_, err := tx.AdjustDebit(ctx, 42, dec("1"))
		return err
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPurchasesFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := seedClient(t, s, "Gil")
	other := seedClient(t, s, "Hugo")

	mar := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	apr := time.Date(2025, 4, 15, 10, 0, 0, 0, time.UTC)
	p1 := seedPurchase(t, s, c.ID, "1", mar)
	p2 := seedPurchase(t, s, c.ID, "2", apr)
	seedPurchase(t, s, other.ID, "3", apr)

	err := s.WithTx(ctx, func(tx Tx) error {
		_, err := tx.MarkPaid(ctx, []int64{p2.ID}, apr)
		return err
	})
	require.NoError(t, err)

	all, err := s.Purchases(ctx, domain.PurchaseFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := s.Purchases(ctx, domain.PurchaseFilter{ClientID: c.ID})
	require.NoError(t, err)
	assert.Equal(t, []int64{p1.ID, p2.ID}, purchaseIDs(mine))

	march, err := s.Purchases(ctx, domain.PurchaseFilter{
		Start: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{p1.ID}, purchaseIDs(march))

	paid := true
	settled, err := s.Purchases(ctx, domain.PurchaseFilter{Paid: &paid})
	require.NoError(t, err)
	assert.Equal(t, []int64{p2.ID}, purchaseIDs(settled))
}

func TestProductLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &domain.Product{Name: "Water", Price: dec("2"), Stock: 5}
	require.NoError(t, s.CreateProduct(ctx, p))

	p.Price = dec("2.25")
	require.NoError(t, s.UpdateProduct(ctx, p))
	require.NoError(t, s.DecrementStock(ctx, p.ID, 2))

	got, err := s.Product(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(dec("2.25")))
	assert.Equal(t, 3, got.Stock)

	c := seedClient(t, s, "Iris")
	seedPurchase(t, s, c.ID, "2.25", time.Now(), domain.LineItem{ProductID: p.ID, Quantity: 1, Price: dec("2.25")})
	assert.ErrorIs(t, s.DeleteProduct(ctx, p.ID), ErrReferenced)

	lone := &domain.Product{Name: "Tea", Price: dec("1")}
	require.NoError(t, s.CreateProduct(ctx, lone))
	require.NoError(t, s.DeleteProduct(ctx, lone.ID))
	assert.ErrorIs(t, s.DeleteProduct(ctx, lone.ID), ErrNotFound)
	assert.ErrorIs(t, s.UpdateProduct(ctx, lone), ErrNotFound)

	products, err := s.Products(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 1)
}

func TestSnapshotRestore(t *testing.T) {
	src := newTestStore(t)
	ctx := context.Background()

	prod := &domain.Product{Name: "Bread", Price: dec("4"), Stock: 8}
	require.NoError(t, src.CreateProduct(ctx, prod))
	c := seedClient(t, src, "Joana")
	p := seedPurchase(t, src, c.ID, "8", time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC),
		domain.LineItem{ProductID: prod.ID, Quantity: 2, Price: dec("4")})
	seedPurchase(t, src, c.ID, "4", time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC))
	err := src.WithTx(ctx, func(tx Tx) error {
		_, err := tx.MarkPaid(ctx, []int64{p.ID}, time.Now())
		return err
	})
	require.NoError(t, err)

	snap, err := src.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Clients, 1)
	assert.Len(t, snap.Products, 1)
	assert.Len(t, snap.Purchases, 2)

	dst := newTestStore(t)
	require.NoError(t, dst.Restore(ctx, snap))
	// Restoring twice converges on the same state.
	require.NoError(t, dst.Restore(ctx, snap))

	got, err := dst.Client(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.Debit.Equal(dec("12")))
	require.Len(t, got.Purchases, 2)
	assert.True(t, got.Purchases[0].Paid)
	assert.Equal(t, "Bread", got.Purchases[0].Items[0].ProductName)

	// New rows continue after the restored ids.
	fresh := &domain.Client{Name: "Kaio", Level: "SD"}
	require.NoError(t, dst.CreateClient(ctx, fresh))
	assert.Greater(t, fresh.ID, c.ID)
}

func TestInClause(t *testing.T) {
	in, args := inClause([]int64{4, 5, 6})
	assert.Equal(t, "(?, ?, ?)", in)
	assert.Equal(t, []any{int64(4), int64(5), int64(6)}, args)
}

func TestChunkIDs(t *testing.T) {
	assert.Nil(t, chunkIDs(nil, 3))
	assert.Equal(t, [][]int64{{1, 2}}, chunkIDs([]int64{1, 2}, 3))
	assert.Equal(t, [][]int64{{1, 2, 3}, {4, 5, 6}, {7}}, chunkIDs([]int64{1, 2, 3, 4, 5, 6, 7}, 3))
}

func TestLargeIDListsAreChunked(t *testing.T) {
	// GIVEN: more purchases than fit in one IN list
	orig := sqliteMaxVars
	sqliteMaxVars = 2
	t.Cleanup(func() { sqliteMaxVars = orig })

	s := newTestStore(t)
	ctx := context.Background()
	prod := &domain.Product{Name: "Gum", Price: dec("1"), Stock: 100}
	require.NoError(t, s.CreateProduct(ctx, prod))
	c := seedClient(t, s, "Lara")

	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	var want []int64
	for i := 0; i < 7; i++ {
		p := seedPurchase(t, s, c.ID, "1", day.AddDate(0, 0, 6-i),
			domain.LineItem{ProductID: prod.ID, Quantity: 1, Price: dec("1")})
		want = append([]int64{p.ID}, want...)
	}

	// WHEN / THEN: every read loads all rows with their items
	got, err := s.Client(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, got.Purchases, 7)
	for _, p := range got.Purchases {
		require.Len(t, p.Items, 1)
		assert.Equal(t, "Gum", p.Items[0].ProductName)
	}

	clients, err := s.Clients(ctx)
	require.NoError(t, err)
	require.Len(t, clients[0].Purchases, 7)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Purchases, 7)

	err = s.WithTx(ctx, func(tx Tx) error {
		selected, err := tx.PurchasesByID(ctx, c.ID, want)
		require.NoError(t, err)
		assert.Equal(t, want, purchaseIDs(selected))

		names, err := tx.ProductNames(ctx, []int64{prod.ID, 404, 405})
		require.NoError(t, err)
		assert.Equal(t, map[int64]string{prod.ID: "Gum"}, names)

		n, err := tx.MarkPaid(ctx, want, day)
		require.NoError(t, err)
		assert.EqualValues(t, 7, n)
		return nil
	})
	require.NoError(t, err)
}

func TestRestoreOverNewerPaymentsKeepsDebitConsistent(t *testing.T) {
	// GIVEN: a snapshot taken while two purchases were unpaid
	s := newTestStore(t)
	ctx := context.Background()
	c := seedClient(t, s, "Rita")
	day := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	p1 := seedPurchase(t, s, c.ID, "10", day)
	seedPurchase(t, s, c.ID, "20", day.Add(time.Hour))
	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)

	// AND: the first one was paid afterwards
	err = s.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.MarkPaid(ctx, []int64{p1.ID}, day); err != nil {
			return err
		}
		_, err := tx.AdjustDebit(ctx, c.ID, dec("-10"))
		return err
	})
	require.NoError(t, err)

	// WHEN: the older snapshot is restored on top
	require.NoError(t, s.Restore(ctx, snap))

	// THEN: the payment survives and the debit matches the unpaid total
	got, err := s.Client(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.Purchases[0].Paid)
	assert.True(t, got.Debit.Equal(dec("20")), "debit %s", got.Debit)
	assert.True(t, got.Debit.Equal(domain.UnpaidTotal(got.Purchases)))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "x")
	assert.Error(t, err)
}
