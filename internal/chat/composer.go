package chat

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/cartline-ai/cartline/internal/observability"
	"github.com/cartline-ai/cartline/internal/orders"
	"github.com/cartline-ai/cartline/internal/retrieval"
)

// State is a session's position in the message-handling cycle.
type State string

const (
	StateAwaitingInput State = "awaiting_input"
	StateProcessing    State = "processing"
	StateResponded     State = "responded"
	StateError         State = "error"
)

// Retriever is the product-search collaborator.
type Retriever interface {
	Search(ctx context.Context, req retrieval.SearchRequest) (*retrieval.Response, error)
}

// OrderService is the order-lookup collaborator.
type OrderService interface {
	GetOrders(ctx context.Context, customerID int) ([]orders.Order, error)
	GetOrdersByPriority(ctx context.Context, level string, limit int) ([]orders.Order, error)
	SalesByCategory(ctx context.Context) ([]orders.CategorySales, error)
	ProfitByGender(ctx context.Context) ([]orders.GenderProfit, error)
	HighProfitProducts(ctx context.Context, minProfit float64, limit int) ([]orders.Order, error)
	ShippingCostSummary(ctx context.Context) (*orders.ShippingSummary, error)
}

// Phraser optionally rewrites a drafted reply into more natural prose via
// an external text service. Failures fall back to the draft.
type Phraser interface {
	Phrase(ctx context.Context, draft string, history []Turn) (string, error)
}

// Reply is the composed answer for one chat message.
type Reply struct {
	Text       string
	SessionID  string
	Intent     Intent
	NewSession bool
}

// Composer owns session state and turns classified messages into rendered
// replies. Collaborator failures never escape: they become a user-safe
// apology and the session returns to accepting input.
type Composer struct {
	logger     *observability.Logger
	classifier *Classifier
	retriever  Retriever
	orders     OrderService
	sessions   *SessionManager
	phraser    Phraser
	topK       int
	maxHistory int
}

// ComposerOptions configures a Composer.
type ComposerOptions struct {
	TopK       int
	MaxHistory int
	Phraser    Phraser
}

// NewComposer wires the dispatch pipeline.
func NewComposer(
	logger *observability.Logger,
	retriever Retriever,
	orderSvc OrderService,
	sessions *SessionManager,
	opts ComposerOptions,
) *Composer {
	topK := opts.TopK
	if topK <= 0 {
		topK = 5
	}
	maxHistory := opts.MaxHistory
	if maxHistory <= 0 {
		maxHistory = 20
	}
	return &Composer{
		logger:     logger,
		classifier: NewClassifier(),
		retriever:  retriever,
		orders:     orderSvc,
		sessions:   sessions,
		phraser:    opts.Phraser,
		topK:       topK,
		maxHistory: maxHistory,
	}
}

// Handle processes one chat message: resolve the session, classify, run
// the selected path and render the reply. It always returns a reply; the
// chat boundary never sees internal errors.
func (c *Composer) Handle(ctx context.Context, message, sessionToken string) Reply {
	session, created := c.sessions.Get(sessionToken)
	logger := c.logger.WithSession(session.ID)

	session.lock()
	defer session.unlock()

	session.state = StateProcessing

	intent, ruleName := c.classifier.Classify(message)
	logger.Info().
		Str("intent", string(intent)).
		Str("rule", ruleName).
		Msg("message classified")

	var text string
	var failed bool
	switch intent {
	case IntentOrder:
		text, failed = c.handleOrder(ctx, logger, session, message)
	case IntentProduct:
		text, failed = c.handleProduct(ctx, logger, message)
	default:
		text = helpText
	}

	if failed {
		session.state = StateError
	} else {
		text = c.phrase(ctx, session, text)
		session.state = StateResponded
	}

	now := time.Now()
	session.appendTurns(c.maxHistory,
		Turn{Role: "user", Message: message, At: now},
		Turn{Role: "bot", Message: text, At: now},
	)

	// The session accepts the next message immediately.
	session.state = StateAwaitingInput

	return Reply{
		Text:       text,
		SessionID:  session.ID,
		Intent:     intent,
		NewSession: created,
	}
}

func (c *Composer) phrase(ctx context.Context, session *Session, draft string) string {
	if c.phraser == nil {
		return draft
	}
	phrased, err := c.phraser.Phrase(ctx, draft, session.history)
	if err != nil {
		c.logger.Warn().Err(err).Msg("phrasing service failed, using draft reply")
		return draft
	}
	return phrased
}

var (
	maxPricePattern  = regexp.MustCompile(`(?:under|below|less than|cheaper than|at most)\s*\$?\s*(\d+(?:\.\d+)?)`)
	minRatingPattern = regexp.MustCompile(`(?:rated(?: at least| above| over)?|at least)\s*(\d(?:\.\d+)?)\s*(?:stars?|/5|\+)?`)
)

// parseFilters extracts a price ceiling and rating floor from free text.
func parseFilters(text string) *retrieval.Filters {
	var f retrieval.Filters
	if m := maxPricePattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			f.MaxPrice = &v
		}
	}
	if m := minRatingPattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v <= 5 {
			f.MinRating = &v
		}
	}
	if f.MaxPrice == nil && f.MinRating == nil {
		return nil
	}
	return &f
}

func (c *Composer) handleProduct(ctx context.Context, logger *observability.Logger, message string) (string, bool) {
	normalized := normalizeMessage(message)
	resp, err := c.retriever.Search(ctx, retrieval.SearchRequest{
		Query:   message,
		TopK:    c.topK,
		Filters: parseFilters(normalized),
	})
	if err != nil {
		logger.Error().Err(err).Msg("product search failed")
		return apologyText, true
	}
	return renderProducts(normalized, resp), false
}

var (
	priorityPattern   = regexp.MustCompile(`\b(?:high[- ]priority|priority orders|urgent orders?)\b`)
	salesPattern      = regexp.MustCompile(`\bsales\b`)
	profitPattern     = regexp.MustCompile(`\bprofit\b`)
	genderPattern     = regexp.MustCompile(`\bgender\b`)
	shippingPattern   = regexp.MustCompile(`\bshipping\b`)
	highProfitPattern = regexp.MustCompile(`\bhigh[- ]profit\b|\bprofitable\b`)
)

const priorityListLimit = 5

// handleOrder dispatches the order path: priority listings and analytics
// are matched first, then customer order lookup when a customer identifier
// is present in the message or remembered from the session.
func (c *Composer) handleOrder(ctx context.Context, logger *observability.Logger, session *Session, message string) (string, bool) {
	text := normalizeMessage(message)

	switch {
	case priorityPattern.MatchString(text):
		list, err := c.orders.GetOrdersByPriority(ctx, "High", priorityListLimit)
		return c.renderOrderResult(logger, renderPriorityOrders(list, "High"), err, 0)

	case shippingPattern.MatchString(text) && !customerIDPattern.MatchString(text):
		summary, err := c.orders.ShippingCostSummary(ctx)
		if err != nil {
			return c.orderFailure(logger, err, 0)
		}
		return renderShippingSummary(summary), false

	case salesPattern.MatchString(text):
		rows, err := c.orders.SalesByCategory(ctx)
		return c.renderOrderResult(logger, renderSalesByCategory(rows), err, 0)

	case profitPattern.MatchString(text) && genderPattern.MatchString(text):
		rows, err := c.orders.ProfitByGender(ctx)
		return c.renderOrderResult(logger, renderProfitByGender(rows), err, 0)

	case highProfitPattern.MatchString(text):
		list, err := c.orders.HighProfitProducts(ctx, 100, priorityListLimit)
		return c.renderOrderResult(logger, renderHighProfitProducts(list), err, 0)
	}

	customerID := session.customerID
	if m := customerIDPattern.FindString(text); m != "" {
		if id, err := strconv.Atoi(m); err == nil {
			customerID = id
			session.customerID = id
		}
	}
	if customerID == 0 {
		return askCustomerIDText, false
	}

	list, err := c.orders.GetOrders(ctx, customerID)
	return c.renderOrderResult(logger, renderCustomerOrders(customerID, sortByDateDesc(list)), err, customerID)
}

func (c *Composer) renderOrderResult(logger *observability.Logger, rendered string, err error, customerID int) (string, bool) {
	if err != nil {
		return c.orderFailure(logger, err, customerID)
	}
	return rendered, false
}

func (c *Composer) orderFailure(logger *observability.Logger, err error, customerID int) (string, bool) {
	if customerID != 0 && errorsIsNotFound(err) {
		return renderNoOrders(customerID), false
	}
	if errorsIsNotFound(err) {
		return noDataText, false
	}
	logger.Error().Err(err).Msg("order lookup failed")
	return apologyText, true
}

// sortByDateDesc orders records most-recent-first. Records with
// unparseable dates sort last in their original relative order.
func sortByDateDesc(list []orders.Order) []orders.Order {
	sorted := make([]orders.Order, len(list))
	copy(sorted, list)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, iOK := parseOrderDate(sorted[i].OrderDate)
		tj, jOK := parseOrderDate(sorted[j].OrderDate)
		if iOK != jOK {
			return iOK
		}
		return ti.After(tj)
	})
	return sorted
}

func parseOrderDate(s string) (time.Time, bool) {
	t, err := time.Parse("2006-01-02", s)
	return t, err == nil
}
