// Package orders is the HTTP client for the order-lookup collaborator. The
// collaborator is treated as a black box returning validated records or a
// not-found signal; its unavailability is reported through ErrUnavailable
// so callers can degrade to a user-safe message.
package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrNotFound indicates the collaborator has no data for the request.
	ErrNotFound = errors.New("orders: no data found")
	// ErrUnavailable indicates the collaborator could not be reached or
	// answered with a server error within the timeout.
	ErrUnavailable = errors.New("orders: service unavailable")
)

// Order is one order record as served by the collaborator.
type Order struct {
	CustomerID   int     `json:"Customer_Id"`
	OrderDate    string  `json:"Order_Date"`
	Product      string  `json:"Product"`
	Category     string  `json:"Product_Category"`
	Sales        float64 `json:"Sales"`
	Profit       float64 `json:"Profit"`
	ShippingCost float64 `json:"Shipping_Cost"`
	Priority     string  `json:"Order_Priority"`
	Gender       string  `json:"Gender"`
}

// CategorySales is total sales for one product category.
type CategorySales struct {
	Category string  `json:"Product_Category"`
	Sales    float64 `json:"Sales"`
}

// GenderProfit is total profit for one customer gender.
type GenderProfit struct {
	Gender string  `json:"Gender"`
	Profit float64 `json:"Profit"`
}

// ShippingSummary holds shipping cost statistics across all orders.
type ShippingSummary struct {
	Average float64 `json:"average_shipping_cost"`
	Min     float64 `json:"min_shipping_cost"`
	Max     float64 `json:"max_shipping_cost"`
}

// Config holds client settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the order-lookup service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an order service client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("order service base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// GetOrders returns every order for a customer, or ErrNotFound when the
// customer has none.
func (c *Client) GetOrders(ctx context.Context, customerID int) ([]Order, error) {
	var out []Order
	path := fmt.Sprintf("/data/customer/%d", customerID)
	if err := c.getList(ctx, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetOrdersByPriority returns up to limit orders with the given priority
// level (e.g. "High", "Critical"). A non-positive limit returns all.
func (c *Client) GetOrdersByPriority(ctx context.Context, level string, limit int) ([]Order, error) {
	var out []Order
	path := "/data/order-priority/" + url.PathEscape(level)
	if err := c.getList(ctx, path, nil, &out); err != nil {
		return nil, err
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SalesByCategory returns total sales grouped by product category.
func (c *Client) SalesByCategory(ctx context.Context) ([]CategorySales, error) {
	var out []CategorySales
	if err := c.getList(ctx, "/data/total-sales-by-category", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ProfitByGender returns total profit grouped by customer gender.
func (c *Client) ProfitByGender(ctx context.Context) ([]GenderProfit, error) {
	var out []GenderProfit
	if err := c.getList(ctx, "/data/profit-by-gender", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// HighProfitProducts returns up to limit orders whose profit exceeds
// minProfit.
func (c *Client) HighProfitProducts(ctx context.Context, minProfit float64, limit int) ([]Order, error) {
	var out []Order
	query := url.Values{"min_profit": {fmt.Sprintf("%g", minProfit)}}
	if err := c.getList(ctx, "/data/high-profit-products", query, &out); err != nil {
		return nil, err
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ShippingCostSummary returns shipping cost statistics across all orders.
func (c *Client) ShippingCostSummary(ctx context.Context) (*ShippingSummary, error) {
	body, err := c.get(ctx, "/data/shipping-cost-summary", nil)
	if err != nil {
		return nil, err
	}
	var summary ShippingSummary
	if err := json.Unmarshal(body, &summary); err != nil {
		return nil, fmt.Errorf("decode shipping summary: %w", err)
	}
	return &summary, nil
}

// getList fetches a path and decodes a record list. The collaborator
// reports "no data" either as a 404 or as a 200 with an error object
// instead of a list; both map to ErrNotFound.
func (c *Client) getList(ctx context.Context, path string, query url.Values, out interface{}) error {
	body, err := c.get(ctx, path, query)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		var apiErr struct {
			Error string `json:"error"`
		}
		if jsonErr := json.Unmarshal(body, &apiErr); jsonErr == nil && apiErr.Error != "" {
			return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Error)
		}
		return fmt.Errorf("decode order response: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create order request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("order service returned status %d", resp.StatusCode)
	}

	return body, nil
}
