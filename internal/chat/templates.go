package chat

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cartline-ai/cartline/internal/orders"
	"github.com/cartline-ai/cartline/internal/retrieval"
)

const (
	helpText = "Hi! I can help you find products or look up your orders. " +
		"Ask me about a product, or share your five-digit customer ID for order details."
	askCustomerIDText = "I can look that up. Could you share your five-digit customer ID?"
	apologyText       = "Sorry, I'm having trouble looking that up right now. Please try again in a moment."
	noDataText        = "I couldn't find any matching records."
)

func errorsIsNotFound(err error) bool {
	return errors.Is(err, orders.ErrNotFound)
}

func renderProducts(query string, resp *retrieval.Response) string {
	if len(resp.Results) == 0 {
		return fmt.Sprintf("I couldn't find any products matching '%s'.", query)
	}

	top := resp.Results[0]
	if len(resp.Results) == 1 {
		return fmt.Sprintf("I found '%s' for $%.2f, rated %.1f/5.",
			top.Title, top.Price, top.Rating)
	}

	text := fmt.Sprintf("I found %d products matching '%s'. The top match is '%s' at $%.2f.",
		len(resp.Results), query, top.Title, top.Price)
	if resp.Aggregate.AveragePrice != nil {
		text += fmt.Sprintf(" The average price is $%.2f.", *resp.Aggregate.AveragePrice)
	}
	return text
}

func renderNoOrders(customerID int) string {
	return fmt.Sprintf("I couldn't find any orders for customer ID %d.", customerID)
}

// renderCustomerOrders expects list sorted most-recent-first.
func renderCustomerOrders(customerID int, list []orders.Order) string {
	if len(list) == 0 {
		return renderNoOrders(customerID)
	}

	recent := list[0]
	product := recent.Product
	if product == "" {
		product = recent.Category
	}

	if len(list) == 1 {
		return fmt.Sprintf(
			"Your only order was placed on %s for '%s'. The total came to $%.2f with $%.2f shipping, at '%s' priority.",
			recent.OrderDate, product, recent.Sales, recent.ShippingCost, recent.Priority)
	}
	return fmt.Sprintf(
		"You have %d orders. The most recent was placed on %s for '%s': $%.2f total with $%.2f shipping, at '%s' priority. Want details on another order?",
		len(list), recent.OrderDate, product, recent.Sales, recent.ShippingCost, recent.Priority)
}

func renderPriorityOrders(list []orders.Order, level string) string {
	if len(list) == 0 {
		return fmt.Sprintf("I couldn't find any %s-priority orders.", strings.ToLower(level))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Here are %d %s-priority orders:", len(list), strings.ToLower(level))
	for i, o := range list {
		product := o.Product
		if product == "" {
			product = o.Category
		}
		fmt.Fprintf(&b, "\n%d. %s: '%s' for customer %d, $%.2f.",
			i+1, o.OrderDate, product, o.CustomerID, o.Sales)
	}
	return b.String()
}

func renderSalesByCategory(rows []orders.CategorySales) string {
	if len(rows) == 0 {
		return noDataText
	}
	var b strings.Builder
	b.WriteString("Total sales by category:")
	for _, row := range rows {
		fmt.Fprintf(&b, "\n- %s: $%.2f", row.Category, row.Sales)
	}
	return b.String()
}

func renderProfitByGender(rows []orders.GenderProfit) string {
	if len(rows) == 0 {
		return noDataText
	}
	var b strings.Builder
	b.WriteString("Total profit by gender:")
	for _, row := range rows {
		fmt.Fprintf(&b, "\n- %s: $%.2f", row.Gender, row.Profit)
	}
	return b.String()
}

func renderHighProfitProducts(list []orders.Order) string {
	if len(list) == 0 {
		return noDataText
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Here are %d high-profit products:", len(list))
	for i, o := range list {
		product := o.Product
		if product == "" {
			product = o.Category
		}
		fmt.Fprintf(&b, "\n%d. '%s': $%.2f profit.", i+1, product, o.Profit)
	}
	return b.String()
}

func renderShippingSummary(s *orders.ShippingSummary) string {
	return fmt.Sprintf(
		"Shipping costs range from $%.2f to $%.2f, averaging $%.2f per order.",
		s.Min, s.Max, s.Average)
}
