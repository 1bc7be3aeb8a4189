/*
Package sqlite provides a SQLite-backed implementation of the procurement stores.

PURPOSE:
  Implements procurement.RequestStore, procurement.ProductLedger and
  procurement.NotificationLog on a single SQLite database.

KEY TABLES:
  purchase_requests: One row per request. Filter columns are kept next to
                     the full request document (data_json)
  products:          Product ledger, one row per product per warehouse
  notifications:     Notification log, newest first by insertion sequence

UPDATE:
  Update runs inside a SQL transaction: read the row, apply the mutation,
  write it back. A failing mutation rolls back and leaves the row as it was.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of a single connection, so
  ":memory:" databases are shared by every caller.

USAGE:
  store, err := sqlite.New("./data/procurement.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - procurement/store.go: Interface definitions
  - procurement/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/procurement-engine/procurement"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS purchase_requests (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL,
		warehouse_id TEXT NOT NULL,
		product_id TEXT,
		requested_by TEXT,
		requested_at TEXT NOT NULL,
		data_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON purchase_requests(status);
	CREATE INDEX IF NOT EXISTS idx_requests_product
		ON purchase_requests(product_id) WHERE product_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_requests_warehouse
		ON purchase_requests(warehouse_id);

	-- One row per product per warehouse; code links the same product across warehouses
	CREATE TABLE IF NOT EXISTS products (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		code TEXT,
		name TEXT NOT NULL,
		warehouse_id TEXT NOT NULL,
		warehouse_name TEXT,
		stock INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_products_code
		ON products(code);

	CREATE TABLE IF NOT EXISTS notifications (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		warehouse_id TEXT,
		warehouse_name TEXT,
		read INTEGER NOT NULL DEFAULT 0,
		related_id TEXT,
		severity TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notifications_unread
		ON notifications(read) WHERE read = 0;
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// REQUEST STORE
// =============================================================================

func (s *Store) Create(ctx context.Context, r *procurement.PurchaseRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO purchase_requests
			(id, status, warehouse_id, product_id, requested_by, requested_at, data_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		string(r.ID),
		string(r.Status),
		string(r.Warehouse.ID),
		nullString(string(r.ProductID())),
		r.RequestedBy,
		r.RequestedAt.UTC().Format(timeLayout),
		string(data),
		time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return procurement.ErrDuplicateRequest
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id procurement.RequestID) (*procurement.PurchaseRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getRequest(ctx, s.db, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getRequest(ctx context.Context, q querier, id procurement.RequestID) (*procurement.PurchaseRequest, error) {
	var data string
	err := q.QueryRowContext(ctx,
		`SELECT data_json FROM purchase_requests WHERE id = ?`, string(id)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, procurement.ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load request %s: %w", id, err)
	}
	return decodeRequest(data)
}

// List returns matching requests in creation order. Status, warehouse and
// product filters run in SQL; the full filter is re-checked on decode.
func (s *Store) List(ctx context.Context, filter procurement.RequestFilter) ([]procurement.PurchaseRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if len(filter.Statuses) > 0 {
		marks := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			marks[i] = "?"
			args = append(args, string(st))
		}
		where = append(where, "status IN ("+strings.Join(marks, ",")+")")
	}
	if filter.WarehouseID != "" {
		where = append(where, "warehouse_id = ?")
		args = append(args, string(filter.WarehouseID))
	}
	if filter.ProductID != "" {
		where = append(where, "product_id = ?")
		args = append(args, string(filter.ProductID))
	}
	if filter.RequestedBy != "" {
		where = append(where, "requested_by = ?")
		args = append(args, filter.RequestedBy)
	}

	query := `SELECT data_json FROM purchase_requests`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	var out []procurement.PurchaseRequest
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		r, err := decodeRequest(data)
		if err != nil {
			return nil, err
		}
		if filter.Matches(r) {
			out = append(out, *r)
		}
	}
	return out, rows.Err()
}

// Update reads, mutates and writes the request in one SQL transaction.
func (s *Store) Update(ctx context.Context, id procurement.RequestID, fn func(*procurement.PurchaseRequest) error) (*procurement.PurchaseRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	r, err := getRequest(ctx, sqlTx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(r); err != nil {
		return nil, err
	}
	r.ID = id

	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	_, err = sqlTx.ExecContext(ctx, `
		UPDATE purchase_requests
		SET status = ?, warehouse_id = ?, product_id = ?, requested_at = ?, data_json = ?, updated_at = ?
		WHERE id = ?`,
		string(r.Status),
		string(r.Warehouse.ID),
		nullString(string(r.ProductID())),
		r.RequestedAt.UTC().Format(timeLayout),
		string(data),
		time.Now().UTC().Format(timeLayout),
		string(id),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update request %s: %w", id, err)
	}
	if err := sqlTx.Commit(); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) Delete(ctx context.Context, id procurement.RequestID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM purchase_requests WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("failed to delete request %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return procurement.ErrRequestNotFound
	}
	return nil
}

func decodeRequest(data string) (*procurement.PurchaseRequest, error) {
	var r procurement.PurchaseRequest
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}
	return &r, nil
}

// =============================================================================
// PRODUCT LEDGER
// =============================================================================

// PutProduct inserts or replaces a product entry.
func (s *Store) PutProduct(ctx context.Context, p procurement.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, code, name, warehouse_id, warehouse_name, stock)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			code = excluded.code,
			name = excluded.name,
			warehouse_id = excluded.warehouse_id,
			warehouse_name = excluded.warehouse_name,
			stock = excluded.stock`,
		string(p.ID), p.Code, p.Name, string(p.WarehouseID), p.WarehouseName, p.Stock,
	)
	if err != nil {
		return fmt.Errorf("failed to save product %s: %w", p.ID, err)
	}
	return nil
}

func (s *Store) ListProducts(ctx context.Context) ([]procurement.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(code, ''), name, warehouse_id, COALESCE(warehouse_name, ''), stock
		FROM products ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var out []procurement.Product
	for rows.Next() {
		var p procurement.Product
		var id, warehouseID string
		if err := rows.Scan(&id, &p.Code, &p.Name, &warehouseID, &p.WarehouseName, &p.Stock); err != nil {
			return nil, err
		}
		p.ID = procurement.ProductID(id)
		p.WarehouseID = procurement.WarehouseID(warehouseID)
		out = append(out, p)
	}
	return out, rows.Err()
}

// =============================================================================
// NOTIFICATION LOG
// =============================================================================

func (s *Store) Notify(ctx context.Context, n procurement.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications
			(id, type, title, message, warehouse_id, warehouse_name, read, related_id, severity, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID,
		string(n.Type),
		n.Title,
		n.Message,
		nullString(string(n.WarehouseID)),
		nullString(n.WarehouseName),
		n.Read,
		nullString(n.RelatedID),
		string(n.Severity),
		n.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to save notification: %w", err)
	}
	return nil
}

// ListNotifications returns newest first.
func (s *Store) ListNotifications(ctx context.Context, filter procurement.NotificationFilter) ([]procurement.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if filter.UnreadOnly {
		where = append(where, "read = 0")
	}
	if filter.WarehouseID != "" {
		where = append(where, "warehouse_id = ?")
		args = append(args, string(filter.WarehouseID))
	}

	query := `
		SELECT id, type, title, message, COALESCE(warehouse_id, ''), COALESCE(warehouse_name, ''),
			read, COALESCE(related_id, ''), severity, created_at
		FROM notifications`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, seq DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var out []procurement.Notification
	for rows.Next() {
		var (
			n                          procurement.Notification
			typ, warehouseID, severity string
			createdAt                  string
		)
		if err := rows.Scan(&n.ID, &typ, &n.Title, &n.Message, &warehouseID, &n.WarehouseName,
			&n.Read, &n.RelatedID, &severity, &createdAt); err != nil {
			return nil, err
		}
		n.Type = procurement.NotificationType(typ)
		n.WarehouseID = procurement.WarehouseID(warehouseID)
		n.Severity = procurement.Severity(severity)
		n.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) MarkRead(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET read = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification %s read: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return procurement.ErrNotificationNotFound
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// Reset clears all data (for testing/demo reset).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"purchase_requests", "products", "notifications"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
