// Package sqlitestore is the reference Catalog/Orders/Shop implementation
// backed by SQLite. It mirrors the hosted catalog's query shapes: active
// products only, name/description matching, most-stocked first.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/sharpshop/sharpshop/pkg/commerce"
)

const schema = `
CREATE TABLE IF NOT EXISTS traders (
	id              TEXT PRIMARY KEY,
	business_name   TEXT NOT NULL,
	whatsapp_number TEXT NOT NULL DEFAULT '',
	address         TEXT NOT NULL DEFAULT '',
	bio             TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS products (
	id             TEXT PRIMARY KEY,
	trader_id      TEXT NOT NULL REFERENCES traders(id),
	name           TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	category       TEXT NOT NULL DEFAULT '',
	price          REAL NOT NULL,
	stock_quantity INTEGER NOT NULL DEFAULT 0,
	image_url      TEXT NOT NULL DEFAULT '',
	is_active      INTEGER NOT NULL DEFAULT 1,
	created_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS orders (
	id               TEXT PRIMARY KEY,
	trader_id        TEXT NOT NULL REFERENCES traders(id),
	product_id       TEXT NOT NULL REFERENCES products(id),
	amount           REAL NOT NULL,
	currency         TEXT NOT NULL DEFAULT 'NGN',
	fulfillment_type TEXT NOT NULL DEFAULT 'delivery',
	delivery_details TEXT NOT NULL DEFAULT '{}',
	status           TEXT NOT NULL DEFAULT 'pending',
	created_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_products_trader ON products(trader_id, is_active);
CREATE INDEX IF NOT EXISTS idx_orders_trader ON orders(trader_id);
`

// orderIDAlphabet keeps order ids URL-safe for payment references.
const orderIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Store implements commerce.Catalog, commerce.Orders and commerce.Shop.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens (and migrates) a store at path. Use ":memory:" for tests.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate catalog schema: %w", err)
	}

	logger.Info().Str("path", path).Msg("Catalog store opened")

	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Search matches active products by name or description, most stocked first.
func (s *Store) Search(ctx context.Context, traderID, query string) ([]commerce.Product, error) {
	pattern := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price, category, stock_quantity, image_url, description
		FROM products
		WHERE trader_id = ? AND is_active = 1
		  AND (name LIKE ? COLLATE NOCASE OR description LIKE ? COLLATE NOCASE)
		ORDER BY stock_quantity DESC`,
		traderID, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("product search failed: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// Availability performs a real-time stock check.
func (s *Store) Availability(ctx context.Context, productID, traderID string) (commerce.Availability, error) {
	p, err := s.ProductDetails(ctx, traderID, productID)
	if err != nil {
		if err == commerce.ErrNotFound {
			return commerce.Availability{ProductName: "Unknown"}, nil
		}
		return commerce.Availability{}, err
	}

	return commerce.Availability{
		Available:     p.StockQuantity > 0,
		StockQuantity: p.StockQuantity,
		ProductName:   p.Name,
	}, nil
}

// ProductDetails returns the full record for a product.
func (s *Store) ProductDetails(ctx context.Context, traderID, productID string) (*commerce.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, price, category, stock_quantity, image_url, description
		FROM products
		WHERE id = ? AND trader_id = ?`,
		productID, traderID)

	var p commerce.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Category, &p.StockQuantity, &p.ImageURL, &p.Description)
	if err == sql.ErrNoRows {
		return nil, commerce.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("product lookup failed: %w", err)
	}
	return &p, nil
}

// ProductsByCategory lists active products in a category.
func (s *Store) ProductsByCategory(ctx context.Context, traderID, category string) ([]commerce.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price, category, stock_quantity, image_url, description
		FROM products
		WHERE trader_id = ? AND is_active = 1 AND category = ?
		ORDER BY stock_quantity DESC`,
		traderID, category)
	if err != nil {
		return nil, fmt.Errorf("category listing failed: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// PriceRange summarizes prices across the trader's active products.
func (s *Store) PriceRange(ctx context.Context, traderID string) (commerce.PriceRange, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MIN(price), 0), COALESCE(MAX(price), 0), COALESCE(AVG(price), 0)
		FROM products
		WHERE trader_id = ? AND is_active = 1`,
		traderID)

	var pr commerce.PriceRange
	if err := row.Scan(&pr.Min, &pr.Max, &pr.Average); err != nil {
		return commerce.PriceRange{}, fmt.Errorf("price range query failed: %w", err)
	}
	return pr, nil
}

// ProductsInPriceRange lists active products within a budget, cheapest first.
func (s *Store) ProductsInPriceRange(ctx context.Context, traderID string, min, max float64) ([]commerce.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price, category, stock_quantity, image_url, description
		FROM products
		WHERE trader_id = ? AND is_active = 1 AND price >= ? AND price <= ?
		ORDER BY price ASC`,
		traderID, min, max)
	if err != nil {
		return nil, fmt.Errorf("price range listing failed: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// ShopProducts lists the newest active products for a shop preview.
func (s *Store) ShopProducts(ctx context.Context, traderID string, limit int) ([]commerce.Product, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price, category, stock_quantity, image_url, description
		FROM products
		WHERE trader_id = ? AND is_active = 1
		ORDER BY created_at DESC
		LIMIT ?`,
		traderID, limit)
	if err != nil {
		return nil, fmt.Errorf("shop preview listing failed: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// CreateOrder inserts a pending order priced from the product record.
func (s *Store) CreateOrder(ctx context.Context, traderID, productID, fulfillmentType string, details map[string]string) (commerce.Order, error) {
	product, err := s.ProductDetails(ctx, traderID, productID)
	if err != nil {
		return commerce.Order{}, fmt.Errorf("failed to price order: %w", err)
	}

	id, err := gonanoid.Generate(orderIDAlphabet, 16)
	if err != nil {
		return commerce.Order{}, fmt.Errorf("failed to generate order id: %w", err)
	}

	if details == nil {
		details = map[string]string{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return commerce.Order{}, fmt.Errorf("failed to encode delivery details: %w", err)
	}

	order := commerce.Order{
		ID:              id,
		TraderID:        traderID,
		ProductID:       productID,
		Amount:          product.Price,
		Currency:        "NGN",
		FulfillmentType: fulfillmentType,
		DeliveryDetails: details,
		Status:          "pending",
		CreatedAt:       time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (id, trader_id, product_id, amount, currency, fulfillment_type, delivery_details, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.TraderID, order.ProductID, order.Amount, order.Currency,
		order.FulfillmentType, string(detailsJSON), order.Status, order.CreatedAt)
	if err != nil {
		return commerce.Order{}, fmt.Errorf("failed to create order: %w", err)
	}

	s.logger.Debug().
		Str("order_id", order.ID).
		Str("trader_id", traderID).
		Str("product_id", productID).
		Float64("amount", order.Amount).
		Msg("Order created")

	return order, nil
}

// OrderAmount returns an order's amount for payment payload construction.
func (s *Store) OrderAmount(ctx context.Context, orderID string) (float64, error) {
	row := s.db.QueryRowContext(ctx, `SELECT amount FROM orders WHERE id = ?`, orderID)

	var amount float64
	err := row.Scan(&amount)
	if err == sql.ErrNoRows {
		return 0, commerce.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("order lookup failed: %w", err)
	}
	return amount, nil
}

// ShopInfo returns a trader's public profile.
func (s *Store) ShopInfo(ctx context.Context, traderID string) (*commerce.ShopInfo, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT business_name, whatsapp_number, address, bio
		FROM traders
		WHERE id = ?`,
		traderID)

	var info commerce.ShopInfo
	err := row.Scan(&info.BusinessName, &info.WhatsAppNumber, &info.Address, &info.Bio)
	if err == sql.ErrNoRows {
		return nil, commerce.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("trader lookup failed: %w", err)
	}

	row = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM products WHERE trader_id = ? AND is_active = 1`,
		traderID)
	if err := row.Scan(&info.ProductCount); err != nil {
		return nil, fmt.Errorf("product count failed: %w", err)
	}

	return &info, nil
}

// UpsertTrader creates or updates a trader profile.
func (s *Store) UpsertTrader(ctx context.Context, id, businessName, whatsappNumber string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO traders (id, business_name, whatsapp_number)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET business_name = excluded.business_name, whatsapp_number = excluded.whatsapp_number`,
		id, businessName, whatsappNumber)
	if err != nil {
		return fmt.Errorf("failed to upsert trader: %w", err)
	}
	return nil
}

// UpsertProduct creates or updates a product record.
func (s *Store) UpsertProduct(ctx context.Context, traderID string, p commerce.Product) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, trader_id, name, description, category, price, stock_quantity, image_url, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, description = excluded.description,
			category = excluded.category, price = excluded.price,
			stock_quantity = excluded.stock_quantity, image_url = excluded.image_url`,
		p.ID, traderID, p.Name, p.Description, p.Category, p.Price, p.StockQuantity, p.ImageURL)
	if err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}
	return nil
}

func scanProducts(rows *sql.Rows) ([]commerce.Product, error) {
	var products []commerce.Product
	for rows.Next() {
		var p commerce.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Category, &p.StockQuantity, &p.ImageURL, &p.Description); err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read product rows: %w", err)
	}
	return products, nil
}
