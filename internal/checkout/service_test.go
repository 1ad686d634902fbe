package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/apotekpos/backend-pos/internal/pricing"
	"github.com/apotekpos/backend-pos/internal/salesapi"
)

type fakeOwner struct {
	busy     bool
	began    int
	ended    int
	resets   int
	beginErr error
}

func (f *fakeOwner) BeginCheckout() error {
	if f.beginErr != nil {
		return f.beginErr
	}
	if f.busy {
		return ErrCheckoutInProgress
	}
	f.busy = true
	f.began++
	return nil
}

func (f *fakeOwner) EndCheckout() {
	f.busy = false
	f.ended++
}

func (f *fakeOwner) ResetAfterSale() { f.resets++ }

type stubClient struct {
	res   salesapi.CreateSaleResult
	err   error
	calls int
}

func (s *stubClient) CreateSale(ctx context.Context, req salesapi.CreateSaleRequest) (salesapi.CreateSaleResult, error) {
	s.calls++
	return s.res, s.err
}

func (s *stubClient) SearchProducts(ctx context.Context, term string) ([]salesapi.Product, error) {
	return nil, errors.New("not implemented")
}

func buildPayload(t *testing.T) Payload {
	t.Helper()
	p, err := Builder{}.Build(sampleLines(), pricing.Default(dec("10")), PaymentCash, "", Customer{})
	if err != nil {
		t.Fatalf("build payload: %v", err)
	}
	return p
}

func TestSubmitCommittedClearsCart(t *testing.T) {
	owner := &fakeOwner{}
	client := &stubClient{res: salesapi.CreateSaleResult{SaleID: "s-9", ReceiptNumber: "RC-9"}}
	svc := &Service{Client: client, Logger: zerolog.Nop()}

	res, err := svc.Submit(context.Background(), owner, buildPayload(t))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Outcome != OutcomeCommitted || res.SaleID != "s-9" || res.ReceiptNumber != "RC-9" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if owner.resets != 1 {
		t.Fatalf("committed sale must reset the cart, resets=%d", owner.resets)
	}
	if owner.ended != 1 {
		t.Fatalf("checkout guard must be released, ended=%d", owner.ended)
	}
}

func TestSubmitRejectedRetainsCart(t *testing.T) {
	owner := &fakeOwner{}
	client := &stubClient{err: &salesapi.APIError{Code: "INSUFFICIENT_STOCK", Message: "insufficient stock for Amoxicillin 500mg", HTTPStatus: 422}}
	svc := &Service{Client: client, Logger: zerolog.Nop()}

	res, err := svc.Submit(context.Background(), owner, buildPayload(t))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Outcome != OutcomeRejected {
		t.Fatalf("expected rejected outcome, got %+v", res)
	}
	if res.Message != "insufficient stock for Amoxicillin 500mg" {
		t.Fatalf("backend message must surface verbatim, got %q", res.Message)
	}
	if owner.resets != 0 {
		t.Fatal("rejected sale must not clear the cart")
	}
	if owner.ended != 1 {
		t.Fatal("checkout guard must be released after rejection")
	}
}

func TestSubmitIndeterminateRetainsCart(t *testing.T) {
	owner := &fakeOwner{}
	client := &stubClient{err: errors.New("sales api unreachable: connection refused")}
	svc := &Service{Client: client, Logger: zerolog.Nop()}

	res, err := svc.Submit(context.Background(), owner, buildPayload(t))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Outcome != OutcomeIndeterminate {
		t.Fatalf("expected indeterminate outcome, got %+v", res)
	}
	if owner.resets != 0 {
		t.Fatal("indeterminate sale must not clear the cart")
	}
	if client.calls != 1 {
		t.Fatalf("submission must happen exactly once, calls=%d", client.calls)
	}
}

func TestSubmitRefusesConcurrentCheckout(t *testing.T) {
	owner := &fakeOwner{busy: true}
	client := &stubClient{}
	svc := &Service{Client: client, Logger: zerolog.Nop()}

	_, err := svc.Submit(context.Background(), owner, buildPayload(t))
	if !errors.Is(err, ErrCheckoutInProgress) {
		t.Fatalf("expected ErrCheckoutInProgress, got %v", err)
	}
	if client.calls != 0 {
		t.Fatal("no submission may happen while a checkout is in flight")
	}
}
