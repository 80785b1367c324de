package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharpshop/sharpshop/pkg/commerce"
	"github.com/sharpshop/sharpshop/pkg/completion"
	"github.com/sharpshop/sharpshop/pkg/decision"
	"github.com/sharpshop/sharpshop/pkg/dispatch"
	"github.com/sharpshop/sharpshop/pkg/session"
	"github.com/sharpshop/sharpshop/pkg/synthesis"
)

// scriptedProvider returns queued responses in order, repeating the last.
type scriptedProvider struct {
	mu        sync.Mutex
	responses []string
}

func (p *scriptedProvider) Complete(ctx context.Context, req completion.Request) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	resp := p.responses[0]
	if len(p.responses) > 1 {
		p.responses = p.responses[1:]
	}
	return resp, nil
}

func (p *scriptedProvider) Name() string { return "scripted" }

type stubCatalog struct {
	products []commerce.Product
}

func (s *stubCatalog) Search(ctx context.Context, traderID, query string) ([]commerce.Product, error) {
	return s.products, nil
}

func (s *stubCatalog) Availability(ctx context.Context, productID, traderID string) (commerce.Availability, error) {
	for _, p := range s.products {
		if p.ID == productID {
			return commerce.Availability{Available: p.StockQuantity > 0, StockQuantity: p.StockQuantity, ProductName: p.Name}, nil
		}
	}
	return commerce.Availability{}, commerce.ErrNotFound
}

func (s *stubCatalog) ProductDetails(ctx context.Context, traderID, productID string) (*commerce.Product, error) {
	return nil, commerce.ErrNotFound
}

func (s *stubCatalog) ProductsByCategory(ctx context.Context, traderID, category string) ([]commerce.Product, error) {
	return nil, nil
}

func (s *stubCatalog) PriceRange(ctx context.Context, traderID string) (commerce.PriceRange, error) {
	return commerce.PriceRange{}, nil
}

func (s *stubCatalog) ProductsInPriceRange(ctx context.Context, traderID string, min, max float64) ([]commerce.Product, error) {
	return nil, nil
}

func (s *stubCatalog) ShopProducts(ctx context.Context, traderID string, limit int) ([]commerce.Product, error) {
	return s.products, nil
}

type stubOrders struct{}

func (stubOrders) CreateOrder(ctx context.Context, traderID, productID, fulfillmentType string, details map[string]string) (commerce.Order, error) {
	return commerce.Order{ID: "order-1", TraderID: traderID, ProductID: productID, Status: "pending"}, nil
}

type stubPayments struct{}

func (stubPayments) CreateLink(ctx context.Context, orderID string) (string, error) {
	return "https://pay.example/" + orderID, nil
}

func (stubPayments) CheckStatus(ctx context.Context, orderID string) (commerce.PaymentStatus, error) {
	return commerce.PaymentPending, nil
}

type stubShop struct {
	info *commerce.ShopInfo
	err  error
}

func (s *stubShop) ShopInfo(ctx context.Context, traderID string) (*commerce.ShopInfo, error) {
	return s.info, s.err
}

func newTestOrchestrator(t *testing.T, provider completion.Provider, shop commerce.Shop, products ...commerce.Product) (*Orchestrator, *session.Store) {
	t.Helper()

	store := session.NewStore(30*time.Minute, 2*time.Hour)
	catalog := &stubCatalog{products: products}

	dispatcher := dispatch.New(dispatch.Collaborators{
		Catalog:  catalog,
		Orders:   stubOrders{},
		Payments: stubPayments{},
		Shop:     shop,
	}, zerolog.Nop())

	orch, err := New(Options{
		Store:       store,
		Engine:      decision.NewEngine(provider, 8, zerolog.Nop()),
		Dispatcher:  dispatcher,
		Synthesizer: synthesis.New(provider, 500, zerolog.Nop()),
		Shop:        shop,
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, err)
	return orch, store
}

func TestOrchestrator_FirstContactCreatesSession(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"tool": null}`,
		"Welcome to Ada Electronics! What are you looking for?",
	}}
	shop := &stubShop{info: &commerce.ShopInfo{BusinessName: "Ada Electronics"}}
	orch, store := newTestOrchestrator(t, provider, shop)

	result, err := orch.HandleTurn(context.Background(), "", "trader-1", "hi")
	require.NoError(t, err)
	require.NotEmpty(t, result.SessionID)
	assert.Equal(t, "Welcome to Ada Electronics! What are you looking for?", result.Reply)

	sess, err := store.Get(result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "Ada Electronics", sess.TraderName)
	assert.Equal(t, session.StateBrowsing, sess.State)
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, "user", sess.Messages[0].Role)
	assert.Equal(t, "assistant", sess.Messages[1].Role)
}

func TestOrchestrator_SearchTurnEndToEnd(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"tool": "search_shop_products", "args": {"query": "solar lamp"}}`,
		"unused",
	}}
	shop := &stubShop{info: &commerce.ShopInfo{BusinessName: "Ada Electronics"}}
	orch, store := newTestOrchestrator(t, provider, shop,
		commerce.Product{ID: "p1", Name: "Solar Lamp", Price: 8000, StockQuantity: 4},
	)

	result, err := orch.HandleTurn(context.Background(), "", "trader-1", "do you have a solar lamp?")
	require.NoError(t, err)

	// The pre-formatted listing is the reply, untouched by synthesis
	assert.Contains(t, result.Reply, "Here is what I found:")
	assert.Contains(t, result.Reply, "[Buy Now](https://pay.example/order-1)")
	require.Len(t, result.Products, 1)
	assert.Equal(t, "order-1", result.Products[0].OrderID)

	// The single match was auto-selected and the session advanced
	sess, err := store.Get(result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, session.StateAwaitingPayment, sess.State)
	assert.Equal(t, "order-1", sess.OrderID)
	assert.Equal(t, session.TurnContext{}, sess.Context, "turn scratch must not outlive the turn")
}

func TestOrchestrator_UnknownTrader(t *testing.T) {
	provider := &scriptedProvider{responses: []string{`{"tool": null}`}}
	shop := &stubShop{err: commerce.ErrNotFound}
	orch, store := newTestOrchestrator(t, provider, shop)

	_, err := orch.HandleTurn(context.Background(), "", "no-such-trader", "hi")
	assert.ErrorIs(t, err, ErrTraderNotFound)
	assert.Equal(t, 0, store.Len(), "no session may be created for an unknown trader")
}

func TestOrchestrator_ShopProfileFailureUsesDefaults(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"tool": null}`,
		"Hello!",
	}}
	shop := &stubShop{err: context.DeadlineExceeded}
	orch, store := newTestOrchestrator(t, provider, shop)

	result, err := orch.HandleTurn(context.Background(), "", "trader-1", "hi")
	require.NoError(t, err)

	sess, err := store.Get(result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "Shop", sess.TraderName)
}

func TestOrchestrator_UnknownSession(t *testing.T) {
	provider := &scriptedProvider{responses: []string{`{"tool": null}`}}
	shop := &stubShop{info: &commerce.ShopInfo{BusinessName: "Shop"}}
	orch, _ := newTestOrchestrator(t, provider, shop)

	_, err := orch.HandleTurn(context.Background(), "expired-session", "trader-1", "hello?")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestOrchestrator_HistoryAndClose(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"tool": null}`,
		"Hello!",
	}}
	shop := &stubShop{info: &commerce.ShopInfo{BusinessName: "Shop"}}
	orch, _ := newTestOrchestrator(t, provider, shop)

	result, err := orch.HandleTurn(context.Background(), "", "trader-1", "hi")
	require.NoError(t, err)

	history, err := orch.History(result.SessionID)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	assert.True(t, orch.CloseSession(result.SessionID))
	_, err = orch.History(result.SessionID)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestOrchestrator_HistoryDuringConcurrentTurns(t *testing.T) {
	provider := &scriptedProvider{responses: []string{`{"tool": null}`}}
	shop := &stubShop{info: &commerce.ShopInfo{BusinessName: "Shop"}}
	orch, _ := newTestOrchestrator(t, provider, shop)

	first, err := orch.HandleTurn(context.Background(), "", "trader-1", "hello")
	require.NoError(t, err)

	// Transcript reads share the session's lane with turns, so a reader
	// never touches the message slice while a turn is appending to it
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := orch.HandleTurn(context.Background(), first.SessionID, "trader-1", "hello again")
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			history, err := orch.History(first.SessionID)
			if assert.NoError(t, err) {
				// A turn appends user and assistant messages as a unit;
				// a snapshot taken between turns always sees whole pairs
				assert.Zero(t, len(history)%2)
			}
		}()
	}
	wg.Wait()
}

func TestOrchestrator_CloseWaitsForInFlightTurn(t *testing.T) {
	provider := &scriptedProvider{responses: []string{`{"tool": null}`}}
	shop := &stubShop{info: &commerce.ShopInfo{BusinessName: "Shop"}}
	orch, store := newTestOrchestrator(t, provider, shop)

	first, err := orch.HandleTurn(context.Background(), "", "trader-1", "hello")
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = orch.HandleTurn(context.Background(), first.SessionID, "trader-1", "hello again")
	}()
	go func() {
		defer wg.Done()
		orch.CloseSession(first.SessionID)
	}()
	wg.Wait()

	assert.Equal(t, 0, store.Len())
}

func TestOrchestrator_ConcurrentTurnsSameSessionSerialize(t *testing.T) {
	provider := &scriptedProvider{responses: []string{`{"tool": null}`}}
	shop := &stubShop{info: &commerce.ShopInfo{BusinessName: "Shop"}}
	orch, store := newTestOrchestrator(t, provider, shop)

	first, err := orch.HandleTurn(context.Background(), "", "trader-1", "hello")
	require.NoError(t, err)

	const turns = 10
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := orch.HandleTurn(context.Background(), first.SessionID, "trader-1", "again")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	sess, err := store.Get(first.SessionID)
	require.NoError(t, err)
	// Every turn contributed exactly one user and one assistant message
	assert.Len(t, sess.Messages, (turns+1)*2)
}
