package commerce

import "time"

// Product is a catalog item scoped to a trader's shop.
type Product struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Category      string  `json:"category"`
	StockQuantity int     `json:"stock_quantity"`
	ImageURL      string  `json:"image_url,omitempty"`
	Description   string  `json:"description,omitempty"`

	// Filled in by the dispatcher when an order and payment link were
	// pre-created for this product during a search.
	OrderID     string `json:"order_id,omitempty"`
	PaymentLink string `json:"payment_link,omitempty"`
}

// Availability is the result of a real-time stock check.
type Availability struct {
	Available     bool   `json:"available"`
	StockQuantity int    `json:"stock_quantity"`
	ProductName   string `json:"product_name"`
}

// Order is a purchase record created for a single product.
type Order struct {
	ID              string            `json:"id"`
	TraderID        string            `json:"trader_id"`
	ProductID       string            `json:"product_id"`
	Amount          float64           `json:"amount"`
	Currency        string            `json:"currency"`
	FulfillmentType string            `json:"fulfillment_type"`
	DeliveryDetails map[string]string `json:"delivery_details,omitempty"`
	Status          string            `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
}

// ShopInfo is a trader's public profile.
type ShopInfo struct {
	BusinessName   string `json:"business_name"`
	WhatsAppNumber string `json:"whatsapp_number"`
	Address        string `json:"address,omitempty"`
	Bio            string `json:"bio,omitempty"`
	ProductCount   int    `json:"product_count"`
}

// PriceRange summarizes a shop's price spread.
type PriceRange struct {
	Min     float64 `json:"min_price"`
	Max     float64 `json:"max_price"`
	Average float64 `json:"average_price"`
}

// PaymentStatus is the gateway's view of an order's payment.
type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentPending PaymentStatus = "pending"
	PaymentError   PaymentStatus = "error"
)
