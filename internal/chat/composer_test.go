package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartline-ai/cartline/internal/observability"
	"github.com/cartline-ai/cartline/internal/orders"
	"github.com/cartline-ai/cartline/internal/retrieval"
)

type stubRetriever struct {
	lastReq retrieval.SearchRequest
	resp    *retrieval.Response
	err     error
}

func (s *stubRetriever) Search(ctx context.Context, req retrieval.SearchRequest) (*retrieval.Response, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

type stubOrderService struct {
	lastCustomerID int
	lastPriority   string
	orders         []orders.Order
	err            error
}

func (s *stubOrderService) GetOrders(ctx context.Context, customerID int) ([]orders.Order, error) {
	s.lastCustomerID = customerID
	return s.orders, s.err
}

func (s *stubOrderService) GetOrdersByPriority(ctx context.Context, level string, limit int) ([]orders.Order, error) {
	s.lastPriority = level
	return s.orders, s.err
}

func (s *stubOrderService) SalesByCategory(ctx context.Context) ([]orders.CategorySales, error) {
	return []orders.CategorySales{{Category: "Electronics", Sales: 1234.5}}, s.err
}

func (s *stubOrderService) ProfitByGender(ctx context.Context) ([]orders.GenderProfit, error) {
	return []orders.GenderProfit{{Gender: "Female", Profit: 987.6}}, s.err
}

func (s *stubOrderService) HighProfitProducts(ctx context.Context, minProfit float64, limit int) ([]orders.Order, error) {
	return s.orders, s.err
}

func (s *stubOrderService) ShippingCostSummary(ctx context.Context) (*orders.ShippingSummary, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &orders.ShippingSummary{Average: 7.5, Min: 2, Max: 20}, nil
}

func productResponse(results ...retrieval.Result) *retrieval.Response {
	return &retrieval.Response{
		Results:   results,
		Aggregate: retrieval.Aggregate(results),
		Path:      retrieval.PathVector,
	}
}

func newTestComposer(r Retriever, o OrderService) *Composer {
	return NewComposer(observability.Nop(), r, o, NewSessionManager(time.Minute), ComposerOptions{TopK: 5})
}

func TestComposer_Handle_RoutesOrdersToOrderPath(t *testing.T) {
	orderSvc := &stubOrderService{orders: []orders.Order{
		{CustomerID: 53639, OrderDate: "2024-03-01", Product: "Running Shoes", Sales: 120, ShippingCost: 8, Priority: "Medium"},
		{CustomerID: 53639, OrderDate: "2024-05-10", Product: "Water Bottle", Sales: 15, ShippingCost: 3, Priority: "Low"},
	}}
	rt := &stubRetriever{resp: productResponse()}
	c := newTestComposer(rt, orderSvc)

	reply := c.Handle(context.Background(), "Show me my recent orders. Customer ID 53639", "")

	assert.Equal(t, IntentOrder, reply.Intent)
	assert.Equal(t, 53639, orderSvc.lastCustomerID)
	assert.Contains(t, reply.Text, "2024-05-10", "most recent order leads the reply")
	assert.Contains(t, reply.Text, "Water Bottle")
	assert.Empty(t, rt.lastReq.Query, "product search must not run on the order path")
}

func TestComposer_Handle_RoutesProductQueriesToSearch(t *testing.T) {
	rt := &stubRetriever{resp: productResponse(
		retrieval.Result{ProductID: "B001", Title: "USB Microphone", Price: 25, Rating: 4.5, Score: 0.9},
		retrieval.Result{ProductID: "B002", Title: "Mini Microphone", Price: 15, Rating: 4.0, Score: 0.8},
	)}
	c := newTestComposer(rt, &stubOrderService{})

	reply := c.Handle(context.Background(), "Show me microphones under $30", "")

	assert.Equal(t, IntentProduct, reply.Intent)
	require.NotNil(t, rt.lastReq.Filters)
	require.NotNil(t, rt.lastReq.Filters.MaxPrice)
	assert.Equal(t, 30.0, *rt.lastReq.Filters.MaxPrice)
	assert.Contains(t, reply.Text, "USB Microphone")
	assert.Contains(t, reply.Text, "$20.00", "average price is computed over the matches")
}

func TestComposer_Handle_GreetingGetsHelpText(t *testing.T) {
	c := newTestComposer(&stubRetriever{resp: productResponse()}, &stubOrderService{})

	reply := c.Handle(context.Background(), "hello", "")

	assert.Equal(t, IntentUnknown, reply.Intent)
	assert.Equal(t, helpText, reply.Text)
}

func TestComposer_Handle_IssuesAndReusesSessionToken(t *testing.T) {
	c := newTestComposer(&stubRetriever{resp: productResponse()}, &stubOrderService{})

	first := c.Handle(context.Background(), "hello", "")
	assert.True(t, first.NewSession)
	assert.NotEmpty(t, first.SessionID)

	second := c.Handle(context.Background(), "hello again?", first.SessionID)
	assert.False(t, second.NewSession)
	assert.Equal(t, first.SessionID, second.SessionID)

	session, created := c.sessions.Get(first.SessionID)
	require.False(t, created)
	assert.Len(t, session.History(), 4, "both exchanges share one session history")
}

func TestComposer_Handle_RemembersCustomerIDAcrossTurns(t *testing.T) {
	orderSvc := &stubOrderService{orders: []orders.Order{
		{CustomerID: 53639, OrderDate: "2024-05-10", Product: "Water Bottle", Sales: 15, ShippingCost: 3, Priority: "Low"},
	}}
	c := newTestComposer(&stubRetriever{resp: productResponse()}, orderSvc)

	first := c.Handle(context.Background(), "Show my orders. Customer ID 53639", "")
	orderSvc.lastCustomerID = 0

	reply := c.Handle(context.Background(), "show my orders", first.SessionID)
	assert.Equal(t, IntentOrder, reply.Intent)
	assert.Equal(t, 53639, orderSvc.lastCustomerID)
}

func TestComposer_Handle_AsksForCustomerIDWhenMissing(t *testing.T) {
	c := newTestComposer(&stubRetriever{resp: productResponse()}, &stubOrderService{})

	reply := c.Handle(context.Background(), "where is my order", "")

	assert.Equal(t, IntentOrder, reply.Intent)
	assert.Equal(t, askCustomerIDText, reply.Text)
}

func TestComposer_Handle_CollaboratorFailureBecomesApology(t *testing.T) {
	orderSvc := &stubOrderService{err: orders.ErrUnavailable}
	c := newTestComposer(&stubRetriever{resp: productResponse()}, orderSvc)

	reply := c.Handle(context.Background(), "My order 41066 status?", "")

	assert.Equal(t, apologyText, reply.Text, "raw errors never reach the chat boundary")

	session, _ := c.sessions.Get(reply.SessionID)
	history := session.History()
	require.Len(t, history, 2, "failed exchanges are still recorded")
	assert.Equal(t, apologyText, history[1].Message)
}

func TestComposer_Handle_NotFoundRendersNoOrders(t *testing.T) {
	orderSvc := &stubOrderService{err: orders.ErrNotFound}
	c := newTestComposer(&stubRetriever{resp: productResponse()}, orderSvc)

	reply := c.Handle(context.Background(), "My order 41066 status?", "")

	assert.Contains(t, reply.Text, "41066")
	assert.NotEqual(t, apologyText, reply.Text)
}

func TestComposer_Handle_PriorityOrders(t *testing.T) {
	orderSvc := &stubOrderService{orders: []orders.Order{
		{CustomerID: 11111, OrderDate: "2024-06-01", Product: "Laptop", Sales: 900, Priority: "High"},
	}}
	c := newTestComposer(&stubRetriever{resp: productResponse()}, orderSvc)

	reply := c.Handle(context.Background(), "show me high priority orders", "")

	assert.Equal(t, "High", orderSvc.lastPriority)
	assert.Contains(t, reply.Text, "Laptop")
}

func TestComposer_Handle_ShippingSummary(t *testing.T) {
	c := newTestComposer(&stubRetriever{resp: productResponse()}, &stubOrderService{})

	reply := c.Handle(context.Background(), "what is the shipping cost summary?", "")

	assert.Contains(t, reply.Text, "$7.50")
}

type stubPhraser struct {
	phrased string
	err     error
}

func (s *stubPhraser) Phrase(ctx context.Context, draft string, history []Turn) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.phrased, nil
}

func TestComposer_Handle_PhraserRewritesReply(t *testing.T) {
	rt := &stubRetriever{resp: productResponse(
		retrieval.Result{ProductID: "B001", Title: "USB Microphone", Price: 25, Rating: 4.5, Score: 0.9},
	)}
	c := NewComposer(observability.Nop(), rt, &stubOrderService{}, NewSessionManager(time.Minute),
		ComposerOptions{TopK: 5, Phraser: &stubPhraser{phrased: "How about this microphone?"}})

	reply := c.Handle(context.Background(), "show me microphones", "")

	assert.Equal(t, "How about this microphone?", reply.Text)
}

func TestComposer_Handle_PhraserFailureFallsBackToDraft(t *testing.T) {
	rt := &stubRetriever{resp: productResponse(
		retrieval.Result{ProductID: "B001", Title: "USB Microphone", Price: 25, Rating: 4.5, Score: 0.9},
	)}
	c := NewComposer(observability.Nop(), rt, &stubOrderService{}, NewSessionManager(time.Minute),
		ComposerOptions{TopK: 5, Phraser: &stubPhraser{err: errors.New("text service down")}})

	reply := c.Handle(context.Background(), "show me microphones", "")

	assert.Contains(t, reply.Text, "USB Microphone", "the drafted reply survives a phrasing failure")
}

func TestParseFilters(t *testing.T) {
	f := parseFilters("microphones under $30")
	require.NotNil(t, f)
	require.NotNil(t, f.MaxPrice)
	assert.Equal(t, 30.0, *f.MaxPrice)

	f = parseFilters("headphones rated at least 4 stars")
	require.NotNil(t, f)
	require.NotNil(t, f.MinRating)
	assert.Equal(t, 4.0, *f.MinRating)

	assert.Nil(t, parseFilters("plain query"))
}
