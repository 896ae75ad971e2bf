package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/punchamoorthee/creditledger/internal/domain"
	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Money is stored as TEXT so decimals round-trip exactly; times use a
// fixed-width UTC layout so string comparison orders them correctly.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS clients (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL,
	level      TEXT NOT NULL,
	course     TEXT NOT NULL DEFAULT '',
	contact    TEXT NOT NULL DEFAULT '',
	credit     TEXT NOT NULL DEFAULT '0',
	debit      TEXT NOT NULL DEFAULT '0',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS products (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	price       TEXT NOT NULL DEFAULT '0',
	stock       INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS purchases (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	client_id INTEGER NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
	value     TEXT NOT NULL,
	date_sell TEXT NOT NULL,
	date_pay  TEXT NOT NULL,
	paid      INTEGER NOT NULL DEFAULT 0,
	paid_at   TEXT
);

CREATE INDEX IF NOT EXISTS idx_purchases_client_unpaid
	ON purchases(client_id, date_sell, id) WHERE paid = 0;
CREATE INDEX IF NOT EXISTS idx_purchases_date_sell ON purchases(date_sell);

CREATE TABLE IF NOT EXISTS purchase_items (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	purchase_id INTEGER NOT NULL REFERENCES purchases(id) ON DELETE CASCADE,
	product_id  INTEGER NOT NULL REFERENCES products(id) ON DELETE RESTRICT,
	quantity    INTEGER NOT NULL,
	price       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_purchase_items_purchase ON purchase_items(purchase_id);
`

// sqliteMaxVars caps the ids bound into one IN list. SQLite rejects
// statements with more than 32766 parameters.
var sqliteMaxVars = 1000

const (
	sqliteTimeLayout   = "2006-01-02 15:04:05.000000000"
	sqliteClientCols   = "id, name, level, course, contact, credit, debit, created_at"
	sqlitePurchaseCols = "id, client_id, value, date_sell, date_pay, paid, paid_at"
)

// sqlQuerier is satisfied by both *sql.DB and *sql.Tx.
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLite is a single-connection store. Holding one connection serialises
// every transaction, which is what makes LockClient a no-op here.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens path (":memory:" for an in-memory database).
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if path != ":memory:" {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL: %w", err)
		}
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}
	return nil
}

func (s *SQLite) WithTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqliteTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("tx commit failed: %w", err)
	}
	return nil
}

// =============================================================================
// CLIENTS
// =============================================================================

func (s *SQLite) CreateClient(ctx context.Context, c *domain.Client) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO clients (name, level, course, contact, credit, debit, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.Level, c.Course, c.Contact, c.Credit.String(), c.Debit.String(), formatTime(now))
	if err != nil {
		return fmt.Errorf("client insert failed: %w", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("client insert failed: %w", err)
	}
	c.CreatedAt = now
	c.Purchases = []domain.Purchase{}
	return nil
}

func (s *SQLite) Client(ctx context.Context, id int64) (*domain.Client, error) {
	c, err := sqliteScanClient(s.db.QueryRowContext(ctx, "SELECT "+sqliteClientCols+" FROM clients WHERE id = ?", id))
	if err != nil {
		return nil, err
	}
	ps, err := sqlitePurchases(ctx, s.db, "WHERE client_id = ? ORDER BY date_sell, id", id)
	if err != nil {
		return nil, err
	}
	c.Purchases = ps
	return c, nil
}

func (s *SQLite) Clients(ctx context.Context) ([]domain.Client, error) {
	clients, err := sqliteClients(ctx, s.db, "ORDER BY name, id")
	if err != nil {
		return nil, err
	}
	ps, err := sqlitePurchases(ctx, s.db, "ORDER BY date_sell, id")
	if err != nil {
		return nil, err
	}
	attachPurchases(clients, ps)
	return clients, nil
}

func (s *SQLite) Purchases(ctx context.Context, f domain.PurchaseFilter) ([]domain.Purchase, error) {
	var (
		conds []string
		args  []any
	)
	if f.ClientID != 0 {
		conds = append(conds, "client_id = ?")
		args = append(args, f.ClientID)
	}
	if !f.Start.IsZero() {
		conds = append(conds, "date_sell >= ?")
		args = append(args, formatTime(f.Start))
	}
	if !f.End.IsZero() {
		conds = append(conds, "date_sell <= ?")
		args = append(args, formatTime(f.End))
	}
	if f.Paid != nil {
		conds = append(conds, "paid = ?")
		args = append(args, *f.Paid)
	}

	clause := ""
	if len(conds) > 0 {
		clause = "WHERE " + strings.Join(conds, " AND ")
	}
	return sqlitePurchases(ctx, s.db, clause+" ORDER BY date_sell, id", args...)
}

// =============================================================================
// CATALOG
// =============================================================================

func (s *SQLite) CreateProduct(ctx context.Context, p *domain.Product) error {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO products (name, description, price, stock) VALUES (?, ?, ?, ?)",
		p.Name, p.Description, p.Price.String(), p.Stock)
	if err != nil {
		return fmt.Errorf("product insert failed: %w", err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("product insert failed: %w", err)
	}
	return nil
}

func (s *SQLite) Product(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, description, price, stock FROM products WHERE id = ?", id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("product query failed: %w", err)
	}
	return &p, nil
}

func (s *SQLite) Products(ctx context.Context) ([]domain.Product, error) {
	return sqliteProducts(ctx, s.db, "ORDER BY name, id")
}

func (s *SQLite) UpdateProduct(ctx context.Context, p *domain.Product) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE products SET name = ?, description = ?, price = ?, stock = ? WHERE id = ?",
		p.Name, p.Description, p.Price.String(), p.Stock, p.ID)
	if err != nil {
		return fmt.Errorf("product update failed: %w", err)
	}
	return requireRow(res)
}

func (s *SQLite) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = ?", id)
	if err != nil {
		var sqliteErr *sqlite.Error
		if errors.As(err, &sqliteErr) {
			switch sqliteErr.Code() {
			case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY, sqlite3.SQLITE_CONSTRAINT:
				return ErrReferenced
			}
		}
		return fmt.Errorf("product delete failed: %w", err)
	}
	return requireRow(res)
}

func (s *SQLite) DecrementStock(ctx context.Context, productID int64, qty int) error {
	res, err := s.db.ExecContext(ctx, "UPDATE products SET stock = stock - ? WHERE id = ?", qty, productID)
	if err != nil {
		return fmt.Errorf("stock update failed: %w", err)
	}
	return requireRow(res)
}

// =============================================================================
// BACKUP
// =============================================================================

func (s *SQLite) Snapshot(ctx context.Context) (*domain.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback()

	clients, err := sqliteClients(ctx, tx, "ORDER BY id")
	if err != nil {
		return nil, err
	}
	products, err := sqliteProducts(ctx, tx, "ORDER BY id")
	if err != nil {
		return nil, err
	}
	purchases, err := sqlitePurchases(ctx, tx, "ORDER BY id")
	if err != nil {
		return nil, err
	}
	return &domain.Snapshot{Clients: clients, Products: products, Purchases: purchases}, nil
}

func (s *SQLite) Restore(ctx context.Context, snap *domain.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback()

	for _, c := range snap.Clients {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO clients (id, name, level, course, contact, credit, debit, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name, level = excluded.level, course = excluded.course,
				contact = excluded.contact, credit = excluded.credit, debit = excluded.debit`,
			c.ID, c.Name, domain.NormalizeLevel(c.Level), c.Course, c.Contact,
			c.Credit.String(), c.Debit.String(), formatTime(createdAt(c.CreatedAt)))
		if err != nil {
			return fmt.Errorf("client %d restore failed: %w", c.ID, err)
		}
	}

	for _, p := range snap.Products {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO products (id, name, description, price, stock)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name, description = excluded.description,
				price = excluded.price, stock = excluded.stock`,
			p.ID, p.Name, p.Description, p.Price.String(), p.Stock)
		if err != nil {
			return fmt.Errorf("product %d restore failed: %w", p.ID, err)
		}
	}

	settled := make(map[int64]decimal.Decimal)
	for _, p := range snap.Purchases {
		var paid bool
		err := tx.QueryRowContext(ctx, `
			INSERT INTO purchases (id, client_id, value, date_sell, date_pay, paid, paid_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				paid = MAX(purchases.paid, excluded.paid),
				paid_at = COALESCE(purchases.paid_at, excluded.paid_at)
			RETURNING paid`,
			p.ID, p.ClientID, p.Value.String(), formatTime(p.DateSell), formatTime(p.DatePay),
			p.Paid, formatTimePtr(p.PaidAt)).Scan(&paid)
		if err != nil {
			return fmt.Errorf("purchase %d restore failed: %w", p.ID, err)
		}
		if paid && !p.Paid {
			settled[p.ClientID] = settled[p.ClientID].Add(p.Value)
		}
		for _, it := range p.Items {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO purchase_items (id, purchase_id, product_id, quantity, price)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(id) DO NOTHING`,
				it.ID, p.ID, it.ProductID, it.Quantity, it.Price.String())
			if err != nil {
				return fmt.Errorf("purchase item %d restore failed: %w", it.ID, err)
			}
		}
	}

	stx := &sqliteTx{tx: tx}
	for clientID, v := range settled {
		if _, err := stx.AdjustDebit(ctx, clientID, v.Neg()); err != nil {
			return fmt.Errorf("client %d debit restore failed: %w", clientID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("tx commit failed: %w", err)
	}
	return nil
}

// =============================================================================
// TRANSACTION SCOPE
// =============================================================================

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) LockClient(ctx context.Context, id int64) (*domain.Client, error) {
	return sqliteScanClient(t.tx.QueryRowContext(ctx, "SELECT "+sqliteClientCols+" FROM clients WHERE id = ?", id))
}

func (t *sqliteTx) ClientPurchases(ctx context.Context, clientID int64) ([]domain.Purchase, error) {
	return sqlitePurchases(ctx, t.tx, "WHERE client_id = ? ORDER BY date_sell, id", clientID)
}

func (t *sqliteTx) UnpaidPurchases(ctx context.Context, clientID int64) ([]domain.Purchase, error) {
	return sqlitePurchases(ctx, t.tx, "WHERE client_id = ? AND paid = 0 ORDER BY date_sell, id", clientID)
}

func (t *sqliteTx) PurchasesByID(ctx context.Context, clientID int64, ids []int64) ([]domain.Purchase, error) {
	if len(ids) == 0 {
		return []domain.Purchase{}, nil
	}
	out := []domain.Purchase{}
	for _, chunk := range chunkIDs(uniqueIDs(ids), sqliteMaxVars) {
		in, args := inClause(chunk)
		args = append([]any{clientID}, args...)
		ps, err := sqlitePurchases(ctx, t.tx, "WHERE client_id = ? AND id IN "+in+" ORDER BY date_sell, id", args...)
		if err != nil {
			return nil, err
		}
		out = append(out, ps...)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DateSell.Equal(out[j].DateSell) {
			return out[i].DateSell.Before(out[j].DateSell)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *sqliteTx) Purchase(ctx context.Context, id int64) (*domain.Purchase, error) {
	ps, err := sqlitePurchases(ctx, t.tx, "WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(ps) == 0 {
		return nil, ErrNotFound
	}
	return &ps[0], nil
}

func (t *sqliteTx) MarkPaid(ctx context.Context, ids []int64, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var total int64
	for _, chunk := range chunkIDs(uniqueIDs(ids), sqliteMaxVars) {
		in, args := inClause(chunk)
		args = append([]any{formatTime(at)}, args...)
		res, err := t.tx.ExecContext(ctx, "UPDATE purchases SET paid = 1, paid_at = ? WHERE paid = 0 AND id IN "+in, args...)
		if err != nil {
			return 0, fmt.Errorf("settlement update failed: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("settlement update failed: %w", err)
		}
		total += n
	}
	return total, nil
}

func (t *sqliteTx) AdjustDebit(ctx context.Context, clientID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	var debit decimal.Decimal
	err := t.tx.QueryRowContext(ctx, "SELECT debit FROM clients WHERE id = ?", clientID).Scan(&debit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, ErrNotFound
		}
		return decimal.Zero, fmt.Errorf("debit query failed: %w", err)
	}
	debit = debit.Add(delta)
	if err := t.SetDebit(ctx, clientID, debit); err != nil {
		return decimal.Zero, err
	}
	return debit, nil
}

func (t *sqliteTx) SetDebit(ctx context.Context, clientID int64, v decimal.Decimal) error {
	res, err := t.tx.ExecContext(ctx, "UPDATE clients SET debit = ? WHERE id = ?", v.String(), clientID)
	if err != nil {
		return fmt.Errorf("debit update failed: %w", err)
	}
	return requireRow(res)
}

func (t *sqliteTx) InsertPurchase(ctx context.Context, p *domain.Purchase) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO purchases (client_id, value, date_sell, date_pay, paid) VALUES (?, ?, ?, ?, 0)`,
		p.ClientID, p.Value.String(), formatTime(p.DateSell), formatTime(p.DatePay))
	if err != nil {
		return fmt.Errorf("purchase insert failed: %w", err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("purchase insert failed: %w", err)
	}

	for i := range p.Items {
		it := &p.Items[i]
		it.PurchaseID = p.ID
		res, err := t.tx.ExecContext(ctx,
			"INSERT INTO purchase_items (purchase_id, product_id, quantity, price) VALUES (?, ?, ?, ?)",
			p.ID, it.ProductID, it.Quantity, it.Price.String())
		if err != nil {
			return fmt.Errorf("purchase item insert failed: %w", err)
		}
		if it.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("purchase item insert failed: %w", err)
		}
	}
	return nil
}

func (t *sqliteTx) ProductNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	names := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	for _, chunk := range chunkIDs(uniqueIDs(ids), sqliteMaxVars) {
		in, args := inClause(chunk)
		if err := sqliteProductNames(ctx, t.tx, in, args, names); err != nil {
			return nil, err
		}
	}
	return names, nil
}

func sqliteProductNames(ctx context.Context, q sqlQuerier, in string, args []any, names map[int64]string) error {
	rows, err := q.QueryContext(ctx, "SELECT id, name FROM products WHERE id IN "+in, args...)
	if err != nil {
		return fmt.Errorf("product query failed: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return fmt.Errorf("product scan failed: %w", err)
		}
		names[id] = name
	}
	return rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func sqliteScanClientRow(row rowScanner) (*domain.Client, error) {
	var (
		c       domain.Client
		created string
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Level, &c.Course, &c.Contact, &c.Credit, &c.Debit, &created); err != nil {
		return nil, err
	}
	t, err := parseTime(created)
	if err != nil {
		return nil, err
	}
	c.CreatedAt = t
	return &c, nil
}

func sqliteScanClient(row *sql.Row) (*domain.Client, error) {
	c, err := sqliteScanClientRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("client query failed: %w", err)
	}
	return c, nil
}

func sqliteClients(ctx context.Context, q sqlQuerier, order string) ([]domain.Client, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+sqliteClientCols+" FROM clients "+order)
	if err != nil {
		return nil, fmt.Errorf("client query failed: %w", err)
	}
	defer rows.Close()

	clients := []domain.Client{}
	for rows.Next() {
		c, err := sqliteScanClientRow(rows)
		if err != nil {
			return nil, fmt.Errorf("client scan failed: %w", err)
		}
		clients = append(clients, *c)
	}
	return clients, rows.Err()
}

func sqliteProducts(ctx context.Context, q sqlQuerier, order string) ([]domain.Product, error) {
	rows, err := q.QueryContext(ctx, "SELECT id, name, description, price, stock FROM products "+order)
	if err != nil {
		return nil, fmt.Errorf("product query failed: %w", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock); err != nil {
			return nil, fmt.Errorf("product scan failed: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func sqlitePurchases(ctx context.Context, q sqlQuerier, tail string, args ...any) ([]domain.Purchase, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+sqlitePurchaseCols+" FROM purchases "+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("purchase query failed: %w", err)
	}

	purchases := []domain.Purchase{}
	for rows.Next() {
		var (
			p                 domain.Purchase
			dateSell, datePay string
			paidAt            sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.ClientID, &p.Value, &dateSell, &datePay, &p.Paid, &paidAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("purchase scan failed: %w", err)
		}
		if p.DateSell, err = parseTime(dateSell); err != nil {
			rows.Close()
			return nil, err
		}
		if p.DatePay, err = parseTime(datePay); err != nil {
			rows.Close()
			return nil, err
		}
		if paidAt.Valid {
			at, err := parseTime(paidAt.String)
			if err != nil {
				rows.Close()
				return nil, err
			}
			p.PaidAt = &at
		}
		purchases = append(purchases, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("purchase query failed: %w", err)
	}
	if len(purchases) == 0 {
		return purchases, nil
	}

	var items []domain.LineItem
	for _, chunk := range chunkIDs(purchaseIDs(purchases), sqliteMaxVars) {
		if items, err = sqliteItems(ctx, q, chunk, items); err != nil {
			return nil, err
		}
	}

	attachItems(purchases, items)
	return purchases, nil
}

// sqliteItems appends the line items of the given purchases to items.
func sqliteItems(ctx context.Context, q sqlQuerier, purchaseIDs []int64, items []domain.LineItem) ([]domain.LineItem, error) {
	in, args := inClause(purchaseIDs)
	rows, err := q.QueryContext(ctx, `
		SELECT i.id, i.purchase_id, i.product_id, COALESCE(p.name, ''), i.quantity, i.price
		FROM purchase_items i
		LEFT JOIN products p ON p.id = i.product_id
		WHERE i.purchase_id IN `+in+`
		ORDER BY i.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("purchase item query failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.LineItem
		if err := rows.Scan(&it.ID, &it.PurchaseID, &it.ProductID, &it.ProductName, &it.Quantity, &it.Price); err != nil {
			return nil, fmt.Errorf("purchase item scan failed: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("purchase item query failed: %w", err)
	}
	return items, nil
}

// chunkIDs splits ids into consecutive slices of at most size elements.
func chunkIDs(ids []int64, size int) [][]int64 {
	var chunks [][]int64
	for len(ids) > size {
		chunks = append(chunks, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		chunks = append(chunks, ids)
	}
	return chunks
}

// inClause renders "(?, ?, ...)" for ids along with the matching args.
func inClause(ids []int64) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return "(" + strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ") + ")", args
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(sqliteTimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad stored time %q: %w", s, err)
	}
	return t, nil
}
