package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sharpshop/sharpshop/internal/metrics"
	"github.com/sharpshop/sharpshop/pkg/commerce"
	"github.com/sharpshop/sharpshop/pkg/decision"
	"github.com/sharpshop/sharpshop/pkg/session"
)

const (
	// maxSearchListings bounds the eager order/link pre-creation per search.
	maxSearchListings = 3

	// minDeliveryDetailsLen is the threshold above which previously
	// collected details are considered substantial enough to skip
	// re-collection after payment.
	minDeliveryDetailsLen = 10

	// defaultFulfillment is used for orders created before the customer
	// states a preference.
	defaultFulfillment = "delivery"
)

// Collaborators bundles the commerce services the dispatcher drives.
type Collaborators struct {
	Catalog  commerce.Catalog
	Orders   commerce.Orders
	Payments commerce.Payments
	Notifier commerce.Notifier
	Shop     commerce.Shop
}

// Dispatcher executes decisions against the commerce collaborators.
type Dispatcher struct {
	c      Collaborators
	logger zerolog.Logger
}

// New creates a dispatcher.
func New(c Collaborators, logger zerolog.Logger) *Dispatcher {
	metrics.EnsureRegistered()
	return &Dispatcher{c: c, logger: logger}
}

// Execute runs the decision's selected operation and applies its state
// effects to the session. It is also invoked with a tool-less decision
// whenever the state is awaiting_payment or paid, so state-contingent side
// effects run every turn. Branch failures become error-shaped results;
// state mutations applied before a failure point are preserved.
func (d *Dispatcher) Execute(ctx context.Context, sess *session.Session, dec decision.Decision) *Result {
	var result *Result

	switch dec.Tool {
	case decision.ToolCatalogSearch:
		result = d.searchProducts(ctx, sess, dec.ArgString("query"))
	case decision.ToolAvailabilityCheck:
		result = d.checkAvailability(ctx, sess, dec)
	case decision.ToolCreateOrder:
		// Orders are created through the availability/search chaining paths;
		// an explicit create_order decision has nothing left to do.
	case decision.ToolPaymentLinkCreate:
		result = d.createPaymentLink(ctx, sess)
	case decision.ToolOrderStatusCheck:
		result = d.checkOrderStatus(ctx, sess)
	case decision.ToolShopInfo:
		result = d.shopInfo(ctx, sess)
	case decision.ToolNone:
		// Automatic state-driven behavior only; nothing explicit to run
	default:
		d.logger.Warn().
			Str("session_id", sess.ID).
			Str("tool", string(dec.Tool)).
			Msg("Unrecognized tool, ignoring")
	}

	if result != nil {
		status := "ok"
		if result.IsError() {
			status = "error"
		}
		metrics.RecordToolExecution(toolLabel(dec.Tool), status)

		d.logger.Debug().
			Str("session_id", sess.ID).
			Str("status", string(sess.State)).
			Str("tool", string(dec.Tool)).
			Bool("has_message", result.Message != "").
			Msg("Tool executed")
	}

	return result
}

// searchProducts queries the catalog and eagerly pre-commits the top
// matches: every available item gets an order and a payment link before the
// reply is synthesized, so the common single-intent case needs no extra
// round trip.
func (d *Dispatcher) searchProducts(ctx context.Context, sess *session.Session, query string) *Result {
	// A new search invalidates prior purchase context; a stale payment link
	// must never be attached to a newly displayed product.
	sess.OrderID = ""
	sess.PaymentLink = ""
	sess.State = session.StateBrowsing

	products, err := d.c.Catalog.Search(ctx, sess.TraderID, query)
	if err != nil {
		metrics.RecordToolError(string(decision.ToolCatalogSearch))
		d.logger.Error().
			Err(err).
			Str("session_id", sess.ID).
			Str("query", query).
			Msg("Catalog search failed")
		return ErrorResult("search failed: " + err.Error())
	}

	if len(products) == 0 {
		return &Result{
			Payload: map[string]interface{}{"error": "No products found", "total": 0},
			Message: "I couldn't find exactly that. Want to check our categories?",
		}
	}

	top := products
	if len(top) > maxSearchListings {
		top = top[:maxSearchListings]
	}

	var b strings.Builder
	b.WriteString("Here is what I found:\n")

	for i := range top {
		p := &top[i]
		available, err := d.prepareListing(ctx, sess.TraderID, p)
		if err != nil {
			// Degrade this line item only; siblings keep their links
			metrics.RecordToolError(string(decision.ToolCatalogSearch))
			d.logger.Error().
				Err(err).
				Str("session_id", sess.ID).
				Str("product_id", p.ID).
				Msg("Failed to prepare product listing")
			fmt.Fprintf(&b, "\n- **%s**\n  Price: %.2f\n", p.Name, p.Price)
			continue
		}

		if available {
			fmt.Fprintf(&b, "\n- **%s**\n  Price: %.2f | Stock: %d\n  [Buy Now](%s)\n",
				p.Name, p.Price, p.StockQuantity, p.PaymentLink)
		} else {
			fmt.Fprintf(&b, "\n- **%s** (Out of Stock)\n", p.Name)
		}
	}

	// A single match is auto-selected so the session context follows it
	if len(products) == 1 {
		sess.ProductID = top[0].ID
		sess.PaymentLink = top[0].PaymentLink
		sess.OrderID = top[0].OrderID
		if sess.PaymentLink != "" {
			sess.State = session.StateAwaitingPayment
		}
	}

	return &Result{
		Payload:  map[string]interface{}{"total": len(products)},
		Message:  b.String(),
		Products: top,
	}
}

// prepareListing runs the availability -> order -> payment link chain for
// one search hit, annotating the product in place.
func (d *Dispatcher) prepareListing(ctx context.Context, traderID string, p *commerce.Product) (available bool, err error) {
	avail, err := d.c.Catalog.Availability(ctx, p.ID, traderID)
	if err != nil {
		return false, fmt.Errorf("availability check: %w", err)
	}
	p.StockQuantity = avail.StockQuantity
	if !avail.Available {
		return false, nil
	}

	order, err := d.c.Orders.CreateOrder(ctx, traderID, p.ID, defaultFulfillment, nil)
	if err != nil {
		return false, fmt.Errorf("order creation: %w", err)
	}

	link, err := d.c.Payments.CreateLink(ctx, order.ID)
	if err != nil {
		return false, fmt.Errorf("payment link: %w", err)
	}

	p.OrderID = order.ID
	p.PaymentLink = link
	return true, nil
}

// checkAvailability resolves a product directly or by name, and on success
// runs the same order/link chain as the search path so both entry points
// converge: an available product implies order and link exist before the
// reply is synthesized.
func (d *Dispatcher) checkAvailability(ctx context.Context, sess *session.Session, dec decision.Decision) *Result {
	productID := dec.ArgString("product_id")
	if productID == "" {
		productID = sess.ProductID
	}

	if productID == "" {
		if name := dec.ArgString("product_name"); name != "" {
			hits, err := d.c.Catalog.Search(ctx, sess.TraderID, name)
			if err == nil && len(hits) > 0 {
				productID = hits[0].ID
			}
		}
	}

	if productID == "" {
		return ErrorResult("Product not identified")
	}

	avail, err := d.c.Catalog.Availability(ctx, productID, sess.TraderID)
	if err != nil {
		metrics.RecordToolError(string(decision.ToolAvailabilityCheck))
		return ErrorResult("availability check failed: " + err.Error())
	}

	payload := map[string]interface{}{
		"available":      avail.Available,
		"stock_quantity": avail.StockQuantity,
		"product_name":   avail.ProductName,
	}

	if !avail.Available {
		return &Result{Payload: payload}
	}

	sess.ProductID = productID

	order, err := d.c.Orders.CreateOrder(ctx, sess.TraderID, productID, defaultFulfillment, nil)
	if err != nil {
		metrics.RecordToolError(string(decision.ToolAvailabilityCheck))
		return ErrorResult("order creation failed: " + err.Error())
	}

	link, err := d.c.Payments.CreateLink(ctx, order.ID)
	if err != nil {
		metrics.RecordToolError(string(decision.ToolAvailabilityCheck))
		return ErrorResult("payment link generation failed: " + err.Error())
	}

	sess.OrderID = order.ID
	sess.PaymentLink = link
	sess.State = session.StateAwaitingPayment

	payload["order_created"] = true
	payload["payment_link"] = link

	return &Result{
		Payload: payload,
		Message: fmt.Sprintf("**%s** is available (Stock: %d).\n[Buy Now](%s)",
			avail.ProductName, avail.StockQuantity, link),
	}
}

// createPaymentLink regenerates a link for the session's active order.
func (d *Dispatcher) createPaymentLink(ctx context.Context, sess *session.Session) *Result {
	if sess.OrderID == "" {
		return ErrorResult("No active order")
	}

	link, err := d.c.Payments.CreateLink(ctx, sess.OrderID)
	if err != nil {
		metrics.RecordToolError(string(decision.ToolPaymentLinkCreate))
		return ErrorResult("payment link generation failed: " + err.Error())
	}

	sess.PaymentLink = link
	return &Result{Payload: map[string]interface{}{"payment_link": link}}
}

// checkOrderStatus verifies payment with the gateway. A paid status routes
// to delivery-detail collection, unless substantial details were already
// collected, in which case it goes straight to paid and notifies the seller
// exactly once.
func (d *Dispatcher) checkOrderStatus(ctx context.Context, sess *session.Session) *Result {
	if sess.OrderID == "" {
		return ErrorResult("No active order")
	}

	status, err := d.c.Payments.CheckStatus(ctx, sess.OrderID)
	if err != nil {
		metrics.RecordToolError(string(decision.ToolOrderStatusCheck))
		d.logger.Warn().
			Err(err).
			Str("session_id", sess.ID).
			Str("order_id", sess.OrderID).
			Msg("Payment status check failed")
		status = commerce.PaymentError
	}

	if status == commerce.PaymentPaid {
		if sess.DeliveryDetailsLen() > minDeliveryDetailsLen {
			sess.State = session.StatePaid
			d.notifySeller(ctx, sess)
		} else {
			sess.State = session.StateCollectingDeliveryDetails
		}
	}

	return &Result{Payload: map[string]interface{}{"status": string(status)}}
}

// shopInfo is a pass-through read with no state change.
func (d *Dispatcher) shopInfo(ctx context.Context, sess *session.Session) *Result {
	info, err := d.c.Shop.ShopInfo(ctx, sess.TraderID)
	if err != nil {
		metrics.RecordToolError(string(decision.ToolShopInfo))
		return ErrorResult("shop lookup failed: " + err.Error())
	}

	return &Result{Payload: map[string]interface{}{
		"business_name":   info.BusinessName,
		"whatsapp_number": info.WhatsAppNumber,
		"address":         info.Address,
		"bio":             info.Bio,
		"product_count":   info.ProductCount,
	}}
}

func (d *Dispatcher) notifySeller(ctx context.Context, sess *session.Session) {
	if d.c.Notifier == nil {
		return
	}
	if _, err := d.c.Notifier.NotifySeller(ctx, sess.OrderID); err != nil {
		d.logger.Warn().
			Err(err).
			Str("session_id", sess.ID).
			Str("order_id", sess.OrderID).
			Msg("Seller notification failed")
	}
}

func toolLabel(t decision.Tool) string {
	if t == decision.ToolNone {
		return "none"
	}
	return string(t)
}
