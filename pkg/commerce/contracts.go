// Package commerce defines the collaborator contracts the conversation core
// depends on: catalog reads, order creation, payment links and seller
// notification. Implementations live in subpackages; tests use in-memory
// fakes.
package commerce

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a trader, product or order does not exist.
var ErrNotFound = errors.New("commerce: not found")

// Catalog provides read access to a trader's product catalog.
type Catalog interface {
	// Search matches products by name or description, most stocked first.
	Search(ctx context.Context, traderID, query string) ([]Product, error)

	// Availability performs a real-time stock check for one product.
	Availability(ctx context.Context, productID, traderID string) (Availability, error)

	// ProductDetails returns the full record for a product, or ErrNotFound.
	ProductDetails(ctx context.Context, traderID, productID string) (*Product, error)

	// ProductsByCategory lists active products in a category.
	ProductsByCategory(ctx context.Context, traderID, category string) ([]Product, error)

	// PriceRange summarizes prices across the trader's active products.
	PriceRange(ctx context.Context, traderID string) (PriceRange, error)

	// ProductsInPriceRange lists active products within a budget, cheapest first.
	ProductsInPriceRange(ctx context.Context, traderID string, min, max float64) ([]Product, error)

	// ShopProducts lists the newest active products for a shop preview.
	ShopProducts(ctx context.Context, traderID string, limit int) ([]Product, error)
}

// Orders creates purchase records.
type Orders interface {
	// CreateOrder inserts a pending order priced from the product record.
	CreateOrder(ctx context.Context, traderID, productID, fulfillmentType string, details map[string]string) (Order, error)
}

// Payments talks to the payment gateway.
type Payments interface {
	// CreateLink returns a hosted checkout URL for an order.
	CreateLink(ctx context.Context, orderID string) (string, error)

	// CheckStatus verifies an order's payment with the gateway.
	CheckStatus(ctx context.Context, orderID string) (PaymentStatus, error)
}

// Notifier tells a seller about a paid order. Fire-and-forget from the
// core's perspective: failures are logged, never block state progress.
type Notifier interface {
	NotifySeller(ctx context.Context, orderID string) (bool, error)
}

// Shop provides trader profile reads.
type Shop interface {
	ShopInfo(ctx context.Context, traderID string) (*ShopInfo, error)
}
