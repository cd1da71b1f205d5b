package square

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	sq "github.com/square/square-go-sdk"
)

// Order is the slice of a Square order this subsystem reads. Metadata holds
// the raw order metadata; license references live under its "licenses" key.
type Order struct {
	ID           string
	Status       string
	Email        string
	CurrencyCode string
	Total        decimal.Decimal
	Items        []OrderItem
	Metadata     map[string]string
}

// OrderItem is a purchased line item on an order.
type OrderItem struct {
	Name     string
	Quantity string
	Total    decimal.Decimal
}

// OrderSearchParams scopes an order search to one customer.
type OrderSearchParams struct {
	CustomerID string
	// Email stamps the buyer email onto each returned order; Square orders
	// do not carry it directly.
	Email string
}

// SearchCompletedOrders returns every completed order for the customer,
// following pagination until the cursor is exhausted.
func (c *Client) SearchCompletedOrders(ctx context.Context, params OrderSearchParams) ([]Order, error) {
	if c == nil {
		return nil, errAccessTokenRequired
	}
	customerID := strings.TrimSpace(params.CustomerID)
	if customerID == "" {
		return nil, nil
	}

	c.log(ctx, "request", "search_orders", map[string]any{"customer_id": customerID})

	query := &sq.SearchOrdersQuery{
		Filter: &sq.SearchOrdersFilter{
			CustomerFilter: &sq.SearchOrdersCustomerFilter{CustomerIDs: []string{customerID}},
			StateFilter:    &sq.SearchOrdersStateFilter{States: []sq.OrderState{sq.OrderStateCompleted}},
		},
	}

	var (
		orders []Order
		cursor *string
	)
	for {
		req := &sq.SearchOrdersRequest{
			LocationIDs: []string{c.locationID},
			Query:       query,
			Cursor:      cursor,
		}
		resp, err := c.sdk.Orders.Search(ctx, req)
		if err != nil {
			c.log(ctx, "error", "search_orders", map[string]any{"error": err.Error()})
			return nil, c.mapSquareError(err, "search orders")
		}
		for _, order := range resp.GetOrders() {
			if order == nil {
				continue
			}
			orders = append(orders, mapOrder(order, params.Email))
		}
		next := resp.GetCursor()
		if next == nil || strings.TrimSpace(*next) == "" {
			break
		}
		cursor = next
	}

	c.log(ctx, "response", "search_orders", map[string]any{"count": len(orders)})
	return orders, nil
}

func mapOrder(order *sq.Order, email string) Order {
	mapped := Order{
		ID:       stringValue(order.GetID()),
		Email:    email,
		Metadata: flattenMetadata(order.GetMetadata()),
	}
	if state := order.GetState(); state != nil {
		mapped.Status = string(*state)
	}
	if money := order.GetTotalMoney(); money != nil {
		mapped.Total = decimalFromMoney(money)
		if currency := money.GetCurrency(); currency != nil {
			mapped.CurrencyCode = string(*currency)
		}
	}
	for _, item := range order.GetLineItems() {
		if item == nil {
			continue
		}
		mappedItem := OrderItem{
			Name:     stringValue(item.GetName()),
			Quantity: item.GetQuantity(),
		}
		if money := item.GetTotalMoney(); money != nil {
			mappedItem.Total = decimalFromMoney(money)
		}
		mapped.Items = append(mapped.Items, mappedItem)
	}
	return mapped
}

func flattenMetadata(raw map[string]*string) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	flat := make(map[string]string, len(raw))
	for key, value := range raw {
		if value == nil {
			continue
		}
		flat[key] = *value
	}
	return flat
}

// Square money amounts are integer minor units.
func decimalFromMoney(money *sq.Money) decimal.Decimal {
	amount := money.GetAmount()
	if amount == nil {
		return decimal.Zero
	}
	return decimal.New(*amount, -2)
}
