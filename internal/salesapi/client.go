// Package salesapi talks to the external sales-processing backend. It is the
// engine's only network boundary: product lookups feed cart snapshots and
// create-sale calls commit a checkout. The engine never assumes these calls
// are idempotent.
package salesapi

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Product is one row of a product lookup response.
type Product struct {
	ID            string          `json:"productId"`
	Name          string          `json:"name"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	StockQuantity int             `json:"stockQuantity"`
}

// SaleItem is one cart line inside a create-sale request.
type SaleItem struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// CreateSaleRequest is the wire body submitted to the create-sale endpoint.
// Totals are included for server-side audit; the server stays the authority
// on final pricing.
type CreateSaleRequest struct {
	Items           []SaleItem      `json:"items"`
	PaymentMethod   string          `json:"paymentMethod"`
	ReferenceNumber string          `json:"referenceNumber,omitempty"`
	Discount        decimal.Decimal `json:"discount"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Total           decimal.Decimal `json:"total"`
	CustomerName    string          `json:"customerName,omitempty"`
	CustomerPhone   string          `json:"customerPhone,omitempty"`
}

// CreateSaleResult carries the server-assigned identifiers for a committed sale.
type CreateSaleResult struct {
	SaleID        string `json:"saleId"`
	ReceiptNumber string `json:"receiptNumber"`
}

// APIError is a failure the backend declared: it received the request,
// processed it, and refused it with a reason. The message is surfaced to the
// operator verbatim. Transport-level failures are never APIErrors.
type APIError struct {
	Code       string
	Message    string
	HTTPStatus int
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("sales api: %s: %s", e.Code, e.Message)
	}
	return "sales api: " + e.Message
}

// Client abstracts the sales-processing backend.
type Client interface {
	// CreateSale submits a finished checkout. A *APIError means the backend
	// declared a failure; any other error is an indeterminate outcome and the
	// caller must not clear local state.
	CreateSale(ctx context.Context, req CreateSaleRequest) (CreateSaleResult, error)
	// SearchProducts resolves a search term into product snapshots.
	SearchProducts(ctx context.Context, term string) ([]Product, error)
}

// GetProduct resolves a single product by id through the lookup endpoint.
func GetProduct(ctx context.Context, c Client, productID string) (Product, error) {
	products, err := c.SearchProducts(ctx, productID)
	if err != nil {
		return Product{}, err
	}
	for _, p := range products {
		if p.ID == productID {
			return p, nil
		}
	}
	return Product{}, &APIError{Code: "NOT_FOUND", Message: "product not found", HTTPStatus: 404}
}
