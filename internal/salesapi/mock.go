package salesapi

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MockClient serves canned products and accepts every sale. Useful for
// development against no backend and for handler tests.
type MockClient struct {
	mu       sync.Mutex
	sales    []CreateSaleRequest
	catalog  []Product
	FailWith error
}

// NewMockClient seeds a small pharmacy catalog.
func NewMockClient() *MockClient {
	return &MockClient{
		catalog: []Product{
			{ID: "P-001", Name: "Amoxicillin 500mg", UnitPrice: decimal.RequireFromString("52.50"), StockQuantity: 40},
			{ID: "P-002", Name: "Paracetamol 500mg", UnitPrice: decimal.RequireFromString("12.00"), StockQuantity: 120},
			{ID: "P-003", Name: "Cough Syrup 60ml", UnitPrice: decimal.RequireFromString("38.75"), StockQuantity: 0},
		},
	}
}

func (m *MockClient) CreateSale(ctx context.Context, req CreateSaleRequest) (CreateSaleResult, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return CreateSaleResult{}, m.FailWith
	}
	m.sales = append(m.sales, req)
	return CreateSaleResult{
		SaleID:        uuid.NewString(),
		ReceiptNumber: fmt.Sprintf("RC-%06d", len(m.sales)),
	}, nil
}

func (m *MockClient) SearchProducts(ctx context.Context, term string) ([]Product, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	needle := strings.ToLower(strings.TrimSpace(term))
	var out []Product
	for _, p := range m.catalog {
		if needle == "" || strings.Contains(strings.ToLower(p.Name), needle) || strings.EqualFold(p.ID, term) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Sales returns the sales recorded so far.
func (m *MockClient) Sales() []CreateSaleRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CreateSaleRequest, len(m.sales))
	copy(out, m.sales)
	return out
}
