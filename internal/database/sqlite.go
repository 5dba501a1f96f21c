package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"stocksaga/internal/domain"
	"stocksaga/internal/repository"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Store implements repository.Store on SQLite with the Single Writer
// Principle: one connection, WAL journal, and a mutex so only one writer
// touches the database at a time within this process. Cross-process safety
// comes from the optimistic version checks, not the mutex.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
	mu     sync.Mutex
}

// queryer abstracts *sql.DB and *sql.Tx so repositories work in both modes.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Open opens the database, applies connection settings and creates the schema.
func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // Single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("Database connected and schema initialized", zap.String("path", path))
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		sku TEXT UNIQUE NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		price REAL NOT NULL DEFAULT 0,
		available INTEGER NOT NULL DEFAULT 0,
		active INTEGER NOT NULL DEFAULT 1,
		minimum_stock INTEGER NOT NULL DEFAULT 0,
		version INTEGER NOT NULL DEFAULT 1,
		created_by TEXT NOT NULL DEFAULT '',
		updated_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK(available >= 0),
		CHECK(minimum_stock >= 0),
		CHECK(price >= 0),
		CHECK(active IN (0, 1))
	);

	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		status TEXT NOT NULL,
		total_amount REAL NOT NULL DEFAULT 0,
		previous_status TEXT NOT NULL DEFAULT '',
		cancel_reason TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 1,
		created_by TEXT NOT NULL DEFAULT '',
		updated_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK(status IN ('PENDING', 'CONFIRMED', 'CANCELLED', 'FULFILLED'))
	);

	CREATE TABLE IF NOT EXISTS order_items (
		order_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		name TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (order_id, product_id),
		FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE,
		CHECK(quantity > 0),
		CHECK(unit_price >= 0)
	);

	CREATE TABLE IF NOT EXISTS stock_reservations (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL,
		product_name TEXT NOT NULL DEFAULT '',
		order_id TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'ACTIVE',
		correlation_id TEXT NOT NULL DEFAULT '',
		reserved_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK(quantity > 0),
		CHECK(status IN ('ACTIVE', 'COMPLETED', 'CANCELLED', 'EXPIRED'))
	);

	CREATE TABLE IF NOT EXISTS processed_events (
		id TEXT PRIMARY KEY,
		event_id TEXT UNIQUE NOT NULL,
		event_type TEXT NOT NULL,
		order_id TEXT NOT NULL DEFAULT '',
		correlation_id TEXT NOT NULL DEFAULT '',
		processed_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_products_sku ON products(sku);
	CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at);
	CREATE INDEX IF NOT EXISTS idx_reservations_order_product ON stock_reservations(order_id, product_id);
	CREATE INDEX IF NOT EXISTS idx_reservations_status ON stock_reservations(status);
	CREATE INDEX IF NOT EXISTS idx_processed_events_event_id ON processed_events(event_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *Store) Ping() error {
	return s.db.Ping()
}

func (s *Store) Products() repository.ProductRepository {
	return &productRepo{store: s, q: s.db}
}

func (s *Store) Orders() repository.OrderRepository {
	return &orderRepo{store: s, q: s.db}
}

func (s *Store) Reservations() repository.ReservationRepository {
	return &reservationRepo{store: s, q: s.db}
}

func (s *Store) ProcessedEvents() repository.ProcessedEventRepository {
	return &processedEventRepo{store: s, q: s.db}
}

// InTx runs fn against transaction-scoped repositories. The single-writer
// mutex is held for the whole transaction.
func (s *Store) InTx(ctx context.Context, fn func(tx repository.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&txStore{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// txStore is the transaction-scoped Store view.
type txStore struct {
	q *sql.Tx
}

func (t *txStore) Products() repository.ProductRepository {
	return &productRepo{q: t.q}
}

func (t *txStore) Orders() repository.OrderRepository {
	return &orderRepo{q: t.q}
}

func (t *txStore) Reservations() repository.ReservationRepository {
	return &reservationRepo{q: t.q}
}

func (t *txStore) ProcessedEvents() repository.ProcessedEventRepository {
	return &processedEventRepo{q: t.q}
}

// InTx inside a transaction joins the surrounding transaction.
func (t *txStore) InTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return fn(t)
}

// lock takes the single-writer mutex when operating outside a transaction.
func (r *productRepo) lock() func() {
	if r.store == nil {
		return func() {}
	}
	r.store.mu.Lock()
	return r.store.mu.Unlock
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

type productRepo struct {
	store *Store
	q     queryer
}

func (r *productRepo) Save(ctx context.Context, product *domain.Product) error {
	defer r.lock()()

	now := time.Now().UTC().Format(time.RFC3339)

	if product.Version == 0 {
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO products (id, sku, name, description, price, available, active, minimum_stock, version, created_by, updated_by, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?, ?)`,
			product.ID.String(), product.SKU, product.Name, product.Description,
			product.Price, product.Available.Value(), boolToInt(product.Active), product.MinimumStock,
			product.CreatedBy, product.UpdatedBy,
			product.CreatedAt.UTC().Format(time.RFC3339), now,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return repository.ErrDuplicateSKU
			}
			return fmt.Errorf("failed to insert product: %w", err)
		}
		product.Version = 1
		return nil
	}

	result, err := r.q.ExecContext(ctx, `
		UPDATE products
		SET name = ?, description = ?, price = ?, available = ?, active = ?, minimum_stock = ?,
		    version = version + 1, updated_by = ?, updated_at = ?
		WHERE id = ? AND version = ?`,
		product.Name, product.Description, product.Price, product.Available.Value(),
		boolToInt(product.Active), product.MinimumStock,
		product.UpdatedBy, now,
		product.ID.String(), product.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrVersionConflict
	}

	product.Version++
	return nil
}

const productColumns = `id, sku, name, description, price, available, active, minimum_stock, version, created_by, updated_by, created_at, updated_at`

func (r *productRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id.String())
	return scanProduct(row)
}

func (r *productRepo) FindBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE sku = ?`, sku)
	return scanProduct(row)
}

func (r *productRepo) FindAll(ctx context.Context) ([]*domain.Product, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY sku`)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()
	return scanProducts(rows)
}

func (r *productRepo) FindBelowMinimum(ctx context.Context) ([]*domain.Product, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE active = 1 AND available <= minimum_stock ORDER BY sku`)
	if err != nil {
		return nil, fmt.Errorf("failed to query low-stock products: %w", err)
	}
	defer rows.Close()
	return scanProducts(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var (
		p                    domain.Product
		idStr                string
		available            int
		active               int
		createdAt, updatedAt string
	)
	err := row.Scan(&idStr, &p.SKU, &p.Name, &p.Description, &p.Price, &available, &active,
		&p.MinimumStock, &p.Version, &p.CreatedBy, &p.UpdatedBy, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}

	p.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid product id in database: %w", err)
	}
	p.Available, err = domain.NewStockQuantity(available)
	if err != nil {
		return nil, fmt.Errorf("invalid available quantity in database: %w", err)
	}
	p.Active = active == 1
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &p, nil
}

func scanProducts(rows *sql.Rows) ([]*domain.Product, error) {
	var products []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product rows: %w", err)
	}
	return products, nil
}

type orderRepo struct {
	store *Store
	q     queryer
}

func (r *orderRepo) lock() func() {
	if r.store == nil {
		return func() {}
	}
	r.store.mu.Lock()
	return r.store.mu.Unlock
}

func (r *orderRepo) Save(ctx context.Context, order *domain.Order) error {
	defer r.lock()()

	now := time.Now().UTC().Format(time.RFC3339)

	if order.Version == 0 {
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO orders (id, customer_id, status, total_amount, previous_status, cancel_reason, version, created_by, updated_by, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?, ?, ?)`,
			order.ID.String(), order.CustomerID.String(), string(order.Status), order.TotalAmount,
			string(order.PreviousStatus), order.CancelReason,
			order.CreatedBy, order.UpdatedBy,
			order.CreatedAt.UTC().Format(time.RFC3339), now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}

		// Items are fixed at creation; they are only ever inserted here.
		for _, item := range order.Items {
			_, err := r.q.ExecContext(ctx, `
				INSERT INTO order_items (order_id, product_id, name, quantity, unit_price)
				VALUES (?, ?, ?, ?, ?)`,
				order.ID.String(), item.ProductID.String(), item.Name, item.Quantity, item.UnitPrice,
			)
			if err != nil {
				return fmt.Errorf("failed to insert order item: %w", err)
			}
		}
		order.Version = 1
		return nil
	}

	result, err := r.q.ExecContext(ctx, `
		UPDATE orders
		SET status = ?, previous_status = ?, cancel_reason = ?, version = version + 1, updated_by = ?, updated_at = ?
		WHERE id = ? AND version = ?`,
		string(order.Status), string(order.PreviousStatus), order.CancelReason,
		order.UpdatedBy, now,
		order.ID.String(), order.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrVersionConflict
	}

	order.Version++
	return nil
}

const orderColumns = `id, customer_id, status, total_amount, previous_status, cancel_reason, version, created_by, updated_by, created_at, updated_at`

func (r *orderRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id.String())
	order, err := r.scanOrder(row)
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *orderRepo) FindRecent(ctx context.Context, limit int) ([]*domain.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := r.scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order rows: %w", err)
	}

	for _, order := range orders {
		if err := r.loadItems(ctx, order); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *orderRepo) scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o                            domain.Order
		idStr, customerStr           string
		status, previousStatus       string
		createdAt, updatedAt         string
	)
	err := row.Scan(&idStr, &customerStr, &status, &o.TotalAmount, &previousStatus, &o.CancelReason,
		&o.Version, &o.CreatedBy, &o.UpdatedBy, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}

	o.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid order id in database: %w", err)
	}
	o.CustomerID, err = uuid.Parse(customerStr)
	if err != nil {
		return nil, fmt.Errorf("invalid customer id in database: %w", err)
	}
	o.Status = domain.OrderStatus(status)
	o.PreviousStatus = domain.OrderStatus(previousStatus)
	o.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	o.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &o, nil
}

func (r *orderRepo) loadItems(ctx context.Context, order *domain.Order) error {
	rows, err := r.q.QueryContext(ctx,
		`SELECT product_id, name, quantity, unit_price FROM order_items WHERE order_id = ?`,
		order.ID.String())
	if err != nil {
		return fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item         domain.OrderItem
			productIDStr string
		)
		if err := rows.Scan(&productIDStr, &item.Name, &item.Quantity, &item.UnitPrice); err != nil {
			return fmt.Errorf("failed to scan order item: %w", err)
		}
		item.ProductID, err = uuid.Parse(productIDStr)
		if err != nil {
			return fmt.Errorf("invalid product id in order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}
	return rows.Err()
}

type reservationRepo struct {
	store *Store
	q     queryer
}

func (r *reservationRepo) lock() func() {
	if r.store == nil {
		return func() {}
	}
	r.store.mu.Lock()
	return r.store.mu.Unlock
}

func (r *reservationRepo) Save(ctx context.Context, reservation *domain.StockReservation) error {
	defer r.lock()()

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO stock_reservations (id, product_id, product_name, order_id, quantity, status, correlation_id, reserved_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at`,
		reservation.ID.String(), reservation.ProductID.String(), reservation.ProductName,
		reservation.OrderID.String(), reservation.Quantity, string(reservation.Status),
		reservation.CorrelationID,
		reservation.ReservedAt.UTC().Format(time.RFC3339),
		reservation.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save reservation: %w", err)
	}
	return nil
}

const reservationColumns = `id, product_id, product_name, order_id, quantity, status, correlation_id, reserved_at, updated_at`

func (r *reservationRepo) FindActiveByOrderAndProduct(ctx context.Context, orderID, productID uuid.UUID) (*domain.StockReservation, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM stock_reservations
		 WHERE order_id = ? AND product_id = ? AND status = 'ACTIVE'`,
		orderID.String(), productID.String())
	return scanReservation(row)
}

func (r *reservationRepo) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]*domain.StockReservation, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM stock_reservations WHERE order_id = ? ORDER BY reserved_at`,
		orderID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}
	defer rows.Close()
	return scanReservations(rows)
}

func (r *reservationRepo) FindActiveBefore(ctx context.Context, cutoff time.Time) ([]*domain.StockReservation, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM stock_reservations
		 WHERE status = 'ACTIVE' AND reserved_at < ? ORDER BY reserved_at`,
		cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to query stale reservations: %w", err)
	}
	defer rows.Close()
	return scanReservations(rows)
}

func scanReservation(row rowScanner) (*domain.StockReservation, error) {
	var (
		res                      domain.StockReservation
		idStr, productStr        string
		orderStr, status         string
		reservedAt, updatedAt    string
	)
	err := row.Scan(&idStr, &productStr, &res.ProductName, &orderStr, &res.Quantity,
		&status, &res.CorrelationID, &reservedAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan reservation: %w", err)
	}

	res.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("invalid reservation id in database: %w", err)
	}
	res.ProductID, err = uuid.Parse(productStr)
	if err != nil {
		return nil, fmt.Errorf("invalid product id in reservation: %w", err)
	}
	res.OrderID, err = uuid.Parse(orderStr)
	if err != nil {
		return nil, fmt.Errorf("invalid order id in reservation: %w", err)
	}
	res.Status = domain.ReservationStatus(status)
	res.ReservedAt, _ = time.Parse(time.RFC3339, reservedAt)
	res.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &res, nil
}

func scanReservations(rows *sql.Rows) ([]*domain.StockReservation, error) {
	var reservations []*domain.StockReservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reservation rows: %w", err)
	}
	return reservations, nil
}

type processedEventRepo struct {
	store *Store
	q     queryer
}

func (r *processedEventRepo) lock() func() {
	if r.store == nil {
		return func() {}
	}
	r.store.mu.Lock()
	return r.store.mu.Unlock
}

func (r *processedEventRepo) Record(ctx context.Context, event *domain.ProcessedEvent) error {
	defer r.lock()()

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO processed_events (id, event_id, event_type, order_id, correlation_id, processed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID.String(), event.EventID, event.EventType, event.OrderID, event.CorrelationID,
		event.ProcessedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateEvent
		}
		return fmt.Errorf("failed to record processed event: %w", err)
	}
	return nil
}

func (r *processedEventRepo) WasProcessed(ctx context.Context, eventID string) (bool, error) {
	var count int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM processed_events WHERE event_id = ?`, eventID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check processed event: %w", err)
	}
	return count > 0, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
