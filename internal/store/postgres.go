package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/punchamoorthee/creditledger/internal/domain"
	"github.com/shopspring/decimal"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS clients (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT NOT NULL,
	level      TEXT NOT NULL,
	course     TEXT NOT NULL DEFAULT '',
	contact    TEXT NOT NULL DEFAULT '',
	credit     NUMERIC(14,2) NOT NULL DEFAULT 0,
	debit      NUMERIC(14,2) NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS products (
	id          BIGSERIAL PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	price       NUMERIC(14,2) NOT NULL DEFAULT 0,
	stock       INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS purchases (
	id        BIGSERIAL PRIMARY KEY,
	client_id BIGINT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
	value     NUMERIC(14,2) NOT NULL,
	date_sell TIMESTAMPTZ NOT NULL DEFAULT now(),
	date_pay  TIMESTAMPTZ NOT NULL,
	paid      BOOLEAN NOT NULL DEFAULT false,
	paid_at   TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_purchases_client_unpaid
	ON purchases(client_id, date_sell, id) WHERE paid = false;
CREATE INDEX IF NOT EXISTS idx_purchases_date_sell ON purchases(date_sell);

CREATE TABLE IF NOT EXISTS purchase_items (
	id          BIGSERIAL PRIMARY KEY,
	purchase_id BIGINT NOT NULL REFERENCES purchases(id) ON DELETE CASCADE,
	product_id  BIGINT NOT NULL REFERENCES products(id) ON DELETE RESTRICT,
	quantity    INTEGER NOT NULL,
	price       NUMERIC(14,2) NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_purchase_items_purchase ON purchase_items(purchase_id);
`

const (
	pgClientCols   = "id, name, level, course, contact, credit, debit, created_at"
	pgPurchaseCols = "id, client_id, value, date_sell, date_pay, paid, paid_at"
)

// pgQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Postgres struct {
	Db *pgxpool.Pool
}

// NewPostgres opens a pool against connString and verifies it with a ping.
func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Postgres{Db: pool}, nil
}

func (s *Postgres) Close() error {
	s.Db.Close()
	return nil
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.Db.Ping(ctx)
}

func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.Db.Exec(ctx, pgSchema); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}
	return nil
}

// WithTx runs fn in a READ COMMITTED transaction. Ordering between concurrent
// ledger operations comes from LockClient's row lock, not the isolation level.
func (s *Postgres) WithTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.Db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx commit failed: %w", err)
	}
	return nil
}

// =============================================================================
// CLIENTS
// =============================================================================

func (s *Postgres) CreateClient(ctx context.Context, c *domain.Client) error {
	err := s.Db.QueryRow(ctx,
		`INSERT INTO clients (name, level, course, contact, credit, debit)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`,
		c.Name, c.Level, c.Course, c.Contact, c.Credit, c.Debit,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("client insert failed: %w", err)
	}
	c.Purchases = []domain.Purchase{}
	return nil
}

func (s *Postgres) Client(ctx context.Context, id int64) (*domain.Client, error) {
	c, err := pgScanClient(s.Db.QueryRow(ctx, "SELECT "+pgClientCols+" FROM clients WHERE id = $1", id))
	if err != nil {
		return nil, err
	}
	ps, err := pgPurchases(ctx, s.Db, "WHERE client_id = $1 ORDER BY date_sell, id", id)
	if err != nil {
		return nil, err
	}
	c.Purchases = ps
	return c, nil
}

func (s *Postgres) Clients(ctx context.Context) ([]domain.Client, error) {
	clients, err := pgClients(ctx, s.Db)
	if err != nil {
		return nil, err
	}
	ps, err := pgPurchases(ctx, s.Db, "ORDER BY date_sell, id")
	if err != nil {
		return nil, err
	}
	attachPurchases(clients, ps)
	return clients, nil
}

func (s *Postgres) Purchases(ctx context.Context, f domain.PurchaseFilter) ([]domain.Purchase, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.ClientID != 0 {
		add("client_id = $%d", f.ClientID)
	}
	if !f.Start.IsZero() {
		add("date_sell >= $%d", f.Start)
	}
	if !f.End.IsZero() {
		add("date_sell <= $%d", f.End)
	}
	if f.Paid != nil {
		add("paid = $%d", *f.Paid)
	}

	clause := ""
	if len(conds) > 0 {
		clause = "WHERE " + strings.Join(conds, " AND ")
	}
	return pgPurchases(ctx, s.Db, clause+" ORDER BY date_sell, id", args...)
}

// =============================================================================
// CATALOG
// =============================================================================

func (s *Postgres) CreateProduct(ctx context.Context, p *domain.Product) error {
	err := s.Db.QueryRow(ctx,
		"INSERT INTO products (name, description, price, stock) VALUES ($1, $2, $3, $4) RETURNING id",
		p.Name, p.Description, p.Price, p.Stock,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("product insert failed: %w", err)
	}
	return nil
}

func (s *Postgres) Product(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	err := s.Db.QueryRow(ctx,
		"SELECT id, name, description, price, stock FROM products WHERE id = $1", id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("product query failed: %w", err)
	}
	return &p, nil
}

func (s *Postgres) Products(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.Db.Query(ctx, "SELECT id, name, description, price, stock FROM products ORDER BY name, id")
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

func (s *Postgres) UpdateProduct(ctx context.Context, p *domain.Product) error {
	tag, err := s.Db.Exec(ctx,
		"UPDATE products SET name = $1, description = $2, price = $3, stock = $4 WHERE id = $5",
		p.Name, p.Description, p.Price, p.Stock, p.ID,
	)
	if err != nil {
		return fmt.Errorf("product update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) DeleteProduct(ctx context.Context, id int64) error {
	tag, err := s.Db.Exec(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" { // foreign_key_violation
			return ErrReferenced
		}
		return fmt.Errorf("product delete failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) DecrementStock(ctx context.Context, productID int64, qty int) error {
	tag, err := s.Db.Exec(ctx, "UPDATE products SET stock = stock - $1 WHERE id = $2", qty, productID)
	if err != nil {
		return fmt.Errorf("stock update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// =============================================================================
// BACKUP
// =============================================================================

func (s *Postgres) Snapshot(ctx context.Context) (*domain.Snapshot, error) {
	tx, err := s.Db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	clients, err := pgClients(ctx, tx)
	if err != nil {
		return nil, err
	}
	for i := range clients {
		clients[i].Purchases = nil
	}

	products := []domain.Product{}
	rows, err := tx.Query(ctx, "SELECT id, name, description, price, stock FROM products ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("product query failed: %w", err)
	}
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock); err != nil {
			rows.Close()
			return nil, fmt.Errorf("product scan failed: %w", err)
		}
		products = append(products, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	purchases, err := pgPurchases(ctx, tx, "ORDER BY id")
	if err != nil {
		return nil, err
	}

	return &domain.Snapshot{Clients: clients, Products: products, Purchases: purchases}, nil
}

func (s *Postgres) Restore(ctx context.Context, snap *domain.Snapshot) error {
	tx, err := s.Db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, c := range snap.Clients {
		_, err := tx.Exec(ctx, `
			INSERT INTO clients (id, name, level, course, contact, credit, debit, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				name = excluded.name, level = excluded.level, course = excluded.course,
				contact = excluded.contact, credit = excluded.credit, debit = excluded.debit`,
			c.ID, c.Name, domain.NormalizeLevel(c.Level), c.Course, c.Contact, c.Credit, c.Debit, createdAt(c.CreatedAt))
		if err != nil {
			return fmt.Errorf("client %d restore failed: %w", c.ID, err)
		}
	}

	for _, p := range snap.Products {
		_, err := tx.Exec(ctx, `
			INSERT INTO products (id, name, description, price, stock)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				name = excluded.name, description = excluded.description,
				price = excluded.price, stock = excluded.stock`,
			p.ID, p.Name, p.Description, p.Price, p.Stock)
		if err != nil {
			return fmt.Errorf("product %d restore failed: %w", p.ID, err)
		}
	}

	settled := make(map[int64]decimal.Decimal)
	for _, p := range snap.Purchases {
		var paid bool
		err := tx.QueryRow(ctx, `
			INSERT INTO purchases (id, client_id, value, date_sell, date_pay, paid, paid_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET paid = excluded.paid OR purchases.paid, paid_at = COALESCE(purchases.paid_at, excluded.paid_at)
			RETURNING paid`,
			p.ID, p.ClientID, p.Value, p.DateSell, p.DatePay, p.Paid, p.PaidAt).Scan(&paid)
		if err != nil {
			return fmt.Errorf("purchase %d restore failed: %w", p.ID, err)
		}
		if paid && !p.Paid {
			settled[p.ClientID] = settled[p.ClientID].Add(p.Value)
		}
		for _, it := range p.Items {
			_, err := tx.Exec(ctx, `
				INSERT INTO purchase_items (id, purchase_id, product_id, quantity, price)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (id) DO NOTHING`,
				it.ID, p.ID, it.ProductID, it.Quantity, it.Price)
			if err != nil {
				return fmt.Errorf("purchase item %d restore failed: %w", it.ID, err)
			}
		}
	}

	ptx := &pgTx{tx: tx}
	for clientID, v := range settled {
		if _, err := ptx.AdjustDebit(ctx, clientID, v.Neg()); err != nil {
			return fmt.Errorf("client %d debit restore failed: %w", clientID, err)
		}
	}

	for _, table := range []string{"clients", "products", "purchases", "purchase_items"} {
		_, err := tx.Exec(ctx, fmt.Sprintf(
			"SELECT setval(pg_get_serial_sequence('%[1]s', 'id'), GREATEST((SELECT COALESCE(MAX(id), 0) FROM %[1]s), 1))", table))
		if err != nil {
			return fmt.Errorf("sequence reset for %s failed: %w", table, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx commit failed: %w", err)
	}
	return nil
}

// =============================================================================
// TRANSACTION SCOPE
// =============================================================================

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) LockClient(ctx context.Context, id int64) (*domain.Client, error) {
	return pgScanClient(t.tx.QueryRow(ctx, "SELECT "+pgClientCols+" FROM clients WHERE id = $1 FOR UPDATE", id))
}

func (t *pgTx) ClientPurchases(ctx context.Context, clientID int64) ([]domain.Purchase, error) {
	return pgPurchases(ctx, t.tx, "WHERE client_id = $1 ORDER BY date_sell, id", clientID)
}

func (t *pgTx) UnpaidPurchases(ctx context.Context, clientID int64) ([]domain.Purchase, error) {
	return pgPurchases(ctx, t.tx, "WHERE client_id = $1 AND paid = false ORDER BY date_sell, id", clientID)
}

func (t *pgTx) PurchasesByID(ctx context.Context, clientID int64, ids []int64) ([]domain.Purchase, error) {
	if len(ids) == 0 {
		return []domain.Purchase{}, nil
	}
	return pgPurchases(ctx, t.tx, "WHERE client_id = $1 AND id = ANY($2) ORDER BY date_sell, id", clientID, uniqueIDs(ids))
}

func (t *pgTx) Purchase(ctx context.Context, id int64) (*domain.Purchase, error) {
	ps, err := pgPurchases(ctx, t.tx, "WHERE id = $1", id)
	if err != nil {
		return nil, err
	}
	if len(ps) == 0 {
		return nil, ErrNotFound
	}
	return &ps[0], nil
}

func (t *pgTx) MarkPaid(ctx context.Context, ids []int64, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := t.tx.Exec(ctx,
		"UPDATE purchases SET paid = true, paid_at = $1 WHERE id = ANY($2) AND paid = false",
		at, uniqueIDs(ids))
	if err != nil {
		return 0, fmt.Errorf("settlement update failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (t *pgTx) AdjustDebit(ctx context.Context, clientID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	var debit decimal.Decimal
	err := t.tx.QueryRow(ctx,
		"UPDATE clients SET debit = debit + $1 WHERE id = $2 RETURNING debit", delta, clientID,
	).Scan(&debit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrNotFound
		}
		return decimal.Zero, fmt.Errorf("debit update failed: %w", err)
	}
	return debit, nil
}

func (t *pgTx) SetDebit(ctx context.Context, clientID int64, v decimal.Decimal) error {
	tag, err := t.tx.Exec(ctx, "UPDATE clients SET debit = $1 WHERE id = $2", v, clientID)
	if err != nil {
		return fmt.Errorf("debit update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) InsertPurchase(ctx context.Context, p *domain.Purchase) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO purchases (client_id, value, date_sell, date_pay, paid)
		 VALUES ($1, $2, $3, $4, false) RETURNING id`,
		p.ClientID, p.Value, p.DateSell, p.DatePay,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("purchase insert failed: %w", err)
	}

	// Items go out in a single round trip.
	batch := &pgx.Batch{}
	for _, it := range p.Items {
		batch.Queue(
			"INSERT INTO purchase_items (purchase_id, product_id, quantity, price) VALUES ($1, $2, $3, $4) RETURNING id",
			p.ID, it.ProductID, it.Quantity, it.Price)
	}
	br := t.tx.SendBatch(ctx, batch)
	for i := range p.Items {
		p.Items[i].PurchaseID = p.ID
		if err := br.QueryRow().Scan(&p.Items[i].ID); err != nil {
			br.Close()
			return fmt.Errorf("purchase item insert failed: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("purchase item batch failed: %w", err)
	}
	return nil
}

func (t *pgTx) ProductNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	names := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	rows, err := t.tx.Query(ctx, "SELECT id, name FROM products WHERE id = ANY($1)", uniqueIDs(ids))
	if err != nil {
		return nil, fmt.Errorf("product query failed: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("product scan failed: %w", err)
		}
		names[id] = name
	}
	return names, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func pgScanClient(row pgx.Row) (*domain.Client, error) {
	var c domain.Client
	err := row.Scan(&c.ID, &c.Name, &c.Level, &c.Course, &c.Contact, &c.Credit, &c.Debit, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("client query failed: %w", err)
	}
	return &c, nil
}

func pgClients(ctx context.Context, q pgQuerier) ([]domain.Client, error) {
	rows, err := q.Query(ctx, "SELECT "+pgClientCols+" FROM clients ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("client query failed: %w", err)
	}
	defer rows.Close()

	clients := []domain.Client{}
	for rows.Next() {
		var c domain.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Level, &c.Course, &c.Contact, &c.Credit, &c.Debit, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("client scan failed: %w", err)
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// pgPurchases runs a purchase query with the given tail (WHERE/ORDER BY) and
// loads the line items of every returned purchase.
func pgPurchases(ctx context.Context, q pgQuerier, tail string, args ...any) ([]domain.Purchase, error) {
	rows, err := q.Query(ctx, "SELECT "+pgPurchaseCols+" FROM purchases "+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("purchase query failed: %w", err)
	}

	purchases := []domain.Purchase{}
	for rows.Next() {
		var p domain.Purchase
		if err := rows.Scan(&p.ID, &p.ClientID, &p.Value, &p.DateSell, &p.DatePay, &p.Paid, &p.PaidAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("purchase scan failed: %w", err)
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

	rows, err = q.Query(ctx, `
		SELECT i.id, i.purchase_id, i.product_id, COALESCE(p.name, ''), i.quantity, i.price
		FROM purchase_items i
		LEFT JOIN products p ON p.id = i.product_id
		WHERE i.purchase_id = ANY($1)
		ORDER BY i.id`, purchaseIDs(purchases))
	if err != nil {
		return nil, fmt.Errorf("purchase item query failed: %w", err)
	}
	defer rows.Close()

	var items []domain.LineItem
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

	attachItems(purchases, items)
	return purchases, nil
}

func createdAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
