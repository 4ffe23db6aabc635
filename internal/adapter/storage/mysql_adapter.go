package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/rl1809/comic-store/internal/config"
	"github.com/rl1809/comic-store/internal/core/domain"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS items (
		code VARCHAR(32) NOT NULL PRIMARY KEY,
		category VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL,
		producer VARCHAR(255) NOT NULL,
		stock INT NOT NULL,
		available_from DATE NULL,
		price DECIMAL(12,2) NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		rut VARCHAR(16) NOT NULL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL UNIQUE,
		phone CHAR(8) NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS purchases (
		id CHAR(36) NOT NULL PRIMARY KEY,
		rut VARCHAR(16) NOT NULL,
		item_code VARCHAR(32) NOT NULL,
		quantity INT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id CHAR(36) NOT NULL PRIMARY KEY,
		rut VARCHAR(16) NOT NULL,
		item_code VARCHAR(32) NOT NULL,
		quantity INT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
}

const upsertItemSQL = `
	INSERT INTO items (code, category, name, producer, stock, available_from, price, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
		category = VALUES(category), name = VALUES(name), producer = VALUES(producer),
		stock = VALUES(stock), available_from = VALUES(available_from), price = VALUES(price),
		updated_at = VALUES(updated_at)`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type MySQLAdapter struct {
	db  *sql.DB
	now func() time.Time
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db, now: time.Now}
}

// OpenMySQL opens a pooled connection from config and verifies it.
func OpenMySQL(ctx context.Context, cfg config.MySQLConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the audit tables when they are missing.
func (m *MySQLAdapter) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) SaveItem(ctx context.Context, item domain.Item) error {
	return m.saveItem(ctx, m.db, item)
}

func (m *MySQLAdapter) saveItem(ctx context.Context, db execer, item domain.Item) error {
	_, err := db.ExecContext(ctx, upsertItemSQL,
		item.Code, item.Category, item.Name, item.Producer, item.Stock,
		item.AvailableFrom, item.Price, m.now(),
	)
	if err != nil {
		return fmt.Errorf("upsert item: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) DeleteItem(ctx context.Context, itemCode string) error {
	if _, err := m.db.ExecContext(ctx, `DELETE FROM items WHERE code = ?`, itemCode); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) SaveUser(ctx context.Context, user domain.User) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO users (rut, name, email, phone, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		user.Rut, user.Name, user.Email, user.Phone, m.now(),
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) CreatePurchase(ctx context.Context, rut string, item domain.Item, quantity int) error {
	return m.recordMovement(ctx, "purchases", rut, item, quantity)
}

func (m *MySQLAdapter) CreateReservation(ctx context.Context, rut string, item domain.Item, quantity int) error {
	return m.recordMovement(ctx, "reservations", rut, item, quantity)
}

// recordMovement inserts the movement row and the item's resulting stock in one transaction.
func (m *MySQLAdapter) recordMovement(ctx context.Context, table, rut string, item domain.Item, quantity int) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO `+table+` (id, rut, item_code, quantity, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), rut, item.Code, quantity, m.now(),
	)
	if err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}

	if err := m.saveItem(ctx, tx, item); err != nil {
		return err
	}

	return tx.Commit()
}
