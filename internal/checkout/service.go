package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/apotekpos/backend-pos/internal/obs"
	"github.com/apotekpos/backend-pos/internal/salesapi"
)

// Outcome classifies what happened to a submitted sale.
type Outcome string

const (
	// OutcomeCommitted means the backend persisted the sale.
	OutcomeCommitted Outcome = "committed"
	// OutcomeRejected means the backend received the sale and refused it.
	OutcomeRejected Outcome = "rejected"
	// OutcomeIndeterminate means we cannot know whether the sale was
	// persisted. Local state must be kept so the operator can retry or
	// verify against the backend.
	OutcomeIndeterminate Outcome = "indeterminate"
)

// Result is the terminal state of one submission.
type Result struct {
	Outcome       Outcome `json:"outcome"`
	SaleID        string  `json:"saleId,omitempty"`
	ReceiptNumber string  `json:"receiptNumber,omitempty"`
	Message       string  `json:"message,omitempty"`
}

// CartOwner is the register session side of a checkout. BeginCheckout must
// refuse concurrent submissions; ResetAfterSale is called only on a committed
// outcome.
type CartOwner interface {
	BeginCheckout() error
	EndCheckout()
	ResetAfterSale()
}

// Service submits frozen payloads to the sales backend and maps errors to
// outcomes.
type Service struct {
	Client  salesapi.Client
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Submit sends the payload exactly once. Local cart state is cleared only on
// a committed outcome; rejected and indeterminate submissions leave the cart
// intact.
func (s *Service) Submit(ctx context.Context, owner CartOwner, payload Payload) (Result, error) {
	if s == nil || s.Client == nil {
		return Result{}, errors.New("checkout service not configured")
	}
	if err := owner.BeginCheckout(); err != nil {
		return Result{}, err
	}
	defer owner.EndCheckout()

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	res, err := s.Client.CreateSale(ctx, payload.SaleRequest())
	if err != nil {
		var apiErr *salesapi.APIError
		if errors.As(err, &apiErr) {
			s.Logger.Warn().
				Str("code", apiErr.Code).
				Str("payment_method", string(payload.PaymentMethod)).
				Msg("sale rejected")
			record(OutcomeRejected, start)
			return Result{Outcome: OutcomeRejected, Message: apiErr.Message}, nil
		}
		s.Logger.Error().
			Err(err).
			Str("payment_method", string(payload.PaymentMethod)).
			Msg("sale outcome unknown")
		record(OutcomeIndeterminate, start)
		return Result{
			Outcome: OutcomeIndeterminate,
			Message: "could not confirm the sale; the cart was kept, verify before retrying",
		}, nil
	}

	owner.ResetAfterSale()
	s.Logger.Info().
		Str("sale_id", res.SaleID).
		Str("receipt_number", res.ReceiptNumber).
		Msg("sale committed")
	record(OutcomeCommitted, start)
	return Result{
		Outcome:       OutcomeCommitted,
		SaleID:        res.SaleID,
		ReceiptNumber: res.ReceiptNumber,
	}, nil
}

func record(outcome Outcome, start time.Time) {
	SubmissionsTotal.WithLabelValues(string(outcome)).Inc()
	if obs.SaleSubmitLatency != nil {
		obs.SaleSubmitLatency.WithLabelValues(string(outcome)).Observe(obs.DurationMillis(time.Since(start)))
	}
}
