package register

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/apotekpos/backend-pos/internal/auth"
	"github.com/apotekpos/backend-pos/internal/cart"
	"github.com/apotekpos/backend-pos/internal/checkout"
	"github.com/apotekpos/backend-pos/internal/common"
	"github.com/apotekpos/backend-pos/internal/obs"
	"github.com/apotekpos/backend-pos/internal/pricing"
	"github.com/apotekpos/backend-pos/internal/salesapi"
)

// Handler wires register sessions to HTTP.
type Handler struct {
	Registry  *Registry
	Sales     salesapi.Client
	Submitter *checkout.Service
	Validate  *validator.Validate
	Logger    zerolog.Logger

	ManagerDiscountCap decimal.Decimal
	StaffDiscountCap   decimal.Decimal
	Currency           string
}

// Mount registers the routes. Middlewares in checkoutMW wrap only the
// checkout endpoint, which is where idempotency keys and the tighter rate
// limit apply.
func (h *Handler) Mount(r chi.Router, checkoutMW ...func(http.Handler) http.Handler) {
	r.Route("/registers", func(r chi.Router) {
		r.Post("/", h.Open)
		r.With(auth.RequireRole(auth.RoleManager, auth.RoleAdmin)).Get("/", h.List)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Delete("/", h.Close)
			r.Post("/items", h.AddItem)
			r.Delete("/items", h.ClearItems)
			r.Patch("/items/{productId}", h.SetQuantity)
			r.Post("/items/{productId}/increment", h.Increment)
			r.Delete("/items/{productId}", h.RemoveItem)
			r.Put("/discount", h.SetDiscount)
			r.With(checkoutMW...).Post("/checkout", h.Checkout)
		})
	})
}

// Open creates a register session for the authenticated operator.
func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	ac, ok := common.Auth(r.Context())
	if !ok || ac.OperatorID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	s := h.Registry.Open(ac.OperatorID, ac.Role, h.capFor(ac.Role))
	h.Logger.Info().Str("register_id", s.ID).Str("operator_id", ac.OperatorID).Str("role", ac.Role).Msg("register opened")
	common.JSONData(w, http.StatusCreated, map[string]any{
		"registerId": s.ID,
		"operatorId": s.OperatorID,
		"role":       s.Role,
		"openedAt":   s.OpenedAt,
	})
}

// List is the floor supervision view: every open register with its operator
// and cart size. The route restricts it to managers and admins.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	sessions := h.Registry.Sessions()
	out := make([]map[string]any, 0, len(sessions))
	for _, s := range sessions {
		lines, _ := s.Snapshot()
		out = append(out, map[string]any{
			"registerId": s.ID,
			"operatorId": s.OperatorID,
			"role":       s.Role,
			"openedAt":   s.OpenedAt,
			"itemCount":  len(lines),
			"processing": s.Processing(),
		})
	}
	common.JSONData(w, http.StatusOK, out)
}

// Get returns the cart contents with a totals preview.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	common.JSONData(w, http.StatusOK, h.view(s))
}

// Close ends the session. A session with a checkout in flight cannot close.
func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if s.Processing() {
		common.JSONError(w, http.StatusConflict, "CHECKOUT_IN_PROGRESS", "a checkout is in flight for this register", nil)
		return
	}
	if err := h.Registry.Close(s.ID); err != nil {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "register session not found", nil)
		return
	}
	h.Logger.Info().Str("register_id", s.ID).Msg("register closed")
	common.JSONData(w, http.StatusOK, map[string]any{"closed": true})
}

// AddItem resolves the product against the sales backend and adds the frozen
// snapshot to the cart. Prices from the SPA are never trusted.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var payload struct {
		ProductID string `json:"productId" validate:"required"`
	}
	if !h.decode(w, r, &payload) {
		return
	}
	p, err := salesapi.GetProduct(r.Context(), h.Sales, strings.TrimSpace(payload.ProductID))
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	line, err := s.AddProduct(cart.Product{
		ID:            p.ID,
		Name:          p.Name,
		UnitPrice:     p.UnitPrice,
		StockQuantity: p.StockQuantity,
	})
	recordCartOp("add", err)
	if err != nil {
		h.writeCartError(w, err)
		return
	}
	h.Logger.Debug().Str("register_id", s.ID).Str("product_id", line.ProductID).Int("quantity", line.Quantity).Msg("item added")
	common.JSONData(w, http.StatusOK, h.view(s))
}

// SetQuantity applies direct numeric input for a line.
func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var payload struct {
		Quantity int `json:"quantity"`
	}
	if !h.decode(w, r, &payload) {
		return
	}
	_, err := s.SetQuantity(chi.URLParam(r, "productId"), payload.Quantity)
	recordCartOp("set_quantity", err)
	if err != nil {
		h.writeCartError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, h.view(s))
}

// Increment adjusts a line by a delta; reaching zero removes the line.
func (h *Handler) Increment(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var payload struct {
		Delta int `json:"delta"`
	}
	if !h.decode(w, r, &payload) {
		return
	}
	if payload.Delta == 0 {
		payload.Delta = 1
	}
	_, _, err := s.Increment(chi.URLParam(r, "productId"), payload.Delta)
	recordCartOp("increment", err)
	if err != nil {
		h.writeCartError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, h.view(s))
}

// RemoveItem deletes a line. Removing an absent product still succeeds.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.RemoveLine(chi.URLParam(r, "productId"))
	recordCartOp("remove", nil)
	common.JSONData(w, http.StatusOK, h.view(s))
}

// ClearItems empties the cart without closing the session.
func (h *Handler) ClearItems(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.ClearCart()
	recordCartOp("clear", nil)
	common.JSONData(w, http.StatusOK, h.view(s))
}

// SetDiscount replaces the discount in force. Values over the operator's
// role cap are accepted and clamp at compute time.
func (h *Handler) SetDiscount(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var payload struct {
		Kind  string          `json:"kind" validate:"required,oneof=percentage fixed"`
		Value decimal.Decimal `json:"value"`
	}
	if !h.decode(w, r, &payload) {
		return
	}
	kind, err := pricing.ParseKind(payload.Kind)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown discount kind", nil)
		return
	}
	ac, _ := common.Auth(r.Context())
	policy := pricing.Policy{Kind: kind, Value: payload.Value, Cap: h.capFor(ac.Role)}
	if err := policy.Validate(); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid discount policy", nil)
		return
	}
	s.SetPolicy(policy)
	recordCartOp("set_discount", nil)
	common.JSONData(w, http.StatusOK, h.view(s))
}

// Checkout freezes the cart into a payload and submits it. The cart is
// cleared only on a committed outcome.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var payload struct {
		PaymentMethod   string            `json:"paymentMethod" validate:"required"`
		ReferenceNumber string            `json:"referenceNumber"`
		Customer        checkout.Customer `json:"customer"`
	}
	if !h.decode(w, r, &payload) {
		return
	}
	method, err := checkout.ParsePaymentMethod(payload.PaymentMethod)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown payment method", nil)
		return
	}

	lines, policy := s.Snapshot()
	built, err := checkout.Builder{}.Build(lines, policy, method, payload.ReferenceNumber, payload.Customer)
	if err != nil {
		h.writeBuildError(w, err)
		return
	}

	result, err := h.Submitter.Submit(r.Context(), s, built)
	if err != nil {
		if errors.Is(err, checkout.ErrCheckoutInProgress) {
			common.JSONError(w, http.StatusConflict, "CHECKOUT_IN_PROGRESS", "a checkout is already in flight for this register", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout failed", nil)
		return
	}

	switch result.Outcome {
	case checkout.OutcomeCommitted:
		common.JSONData(w, http.StatusCreated, result)
	case checkout.OutcomeRejected:
		common.JSONError(w, http.StatusUnprocessableEntity, "SALE_REJECTED", result.Message, map[string]any{"outcome": result.Outcome})
	default:
		common.JSONError(w, http.StatusBadGateway, "SALE_UNCONFIRMED", result.Message, map[string]any{"outcome": result.Outcome})
	}
}

func recordCartOp(op string, err error) {
	if obs.CartOpsTotal == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	obs.CartOpsTotal.WithLabelValues(op, result).Inc()
}

func (h *Handler) capFor(role string) decimal.Decimal {
	switch strings.ToLower(role) {
	case "manager", "admin":
		return h.ManagerDiscountCap
	default:
		return h.StaffDiscountCap
	}
}

// session resolves the URL's register id, enforcing session ownership.
// Admins may touch any register.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	ac, ok := common.Auth(r.Context())
	if !ok || ac.OperatorID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return nil, false
	}
	s, err := h.Registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "register session not found", nil)
		return nil, false
	}
	if s.OperatorID != ac.OperatorID && !strings.EqualFold(ac.Role, "admin") {
		common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "register session belongs to another operator", nil)
		return nil, false
	}
	return s, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(v); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", validationDetails(err))
			return false
		}
	}
	return true
}

func validationDetails(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return fields
}

func (h *Handler) view(s *Session) map[string]any {
	lines, policy := s.Snapshot()
	totals := pricing.Compute(lines, policy).Display()
	items := make([]map[string]any, 0, len(lines))
	for _, l := range lines {
		items = append(items, map[string]any{
			"productId":   l.ProductID,
			"name":        l.Name,
			"unitPrice":   l.UnitPrice,
			"quantity":    l.Quantity,
			"maxQuantity": l.MaxQuantity,
			"subtotal":    l.Subtotal().Round(2),
		})
	}
	return map[string]any{
		"registerId": s.ID,
		"operatorId": s.OperatorID,
		"items":      items,
		"discount": map[string]any{
			"kind":  policy.Kind,
			"value": policy.Value,
		},
		"pricing": map[string]any{
			"subtotal": totals.Subtotal,
			"discount": totals.Discount,
			"total":    totals.Total,
		},
		"currency": h.Currency,
	}
}

func (h *Handler) writeLookupError(w http.ResponseWriter, err error) {
	common.WriteError(w, lookupError(err))
}

func (h *Handler) writeCartError(w http.ResponseWriter, err error) {
	common.WriteError(w, cartError(err))
}

func (h *Handler) writeBuildError(w http.ResponseWriter, err error) {
	common.WriteError(w, buildError(err))
}

// lookupError classifies a product lookup failure. Declared upstream errors
// keep their code and message; transport failures are an upstream problem.
func lookupError(err error) error {
	var apiErr *salesapi.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatus == http.StatusNotFound {
			return common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, err)
		}
		return common.NewAppError(apiErr.Code, apiErr.Message, http.StatusUnprocessableEntity, err)
	}
	return common.NewAppError("UPSTREAM_UNAVAILABLE", "product lookup failed", http.StatusBadGateway, err)
}

func cartError(err error) error {
	switch {
	case errors.Is(err, cart.ErrNotFound):
		return common.NewAppError("NOT_FOUND", "product not in cart", http.StatusNotFound, err)
	case errors.Is(err, cart.ErrOutOfStock):
		return common.NewAppError("OUT_OF_STOCK", "product is out of stock", http.StatusConflict, err)
	case errors.Is(err, cart.ErrInvalidProduct):
		return common.NewAppError("INVALID_PRODUCT", "product cannot be added", http.StatusUnprocessableEntity, err)
	default:
		return err
	}
}

func buildError(err error) error {
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		return common.NewAppError("EMPTY_CART", "cannot check out an empty cart", http.StatusConflict, err)
	case errors.Is(err, checkout.ErrMissingReference):
		return common.NewAppError("REFERENCE_REQUIRED", "reference number required for non-cash payment", http.StatusBadRequest, err)
	case errors.Is(err, checkout.ErrUnknownPaymentMethod):
		return common.NewAppError("BAD_REQUEST", "unknown payment method", http.StatusBadRequest, err)
	case errors.Is(err, checkout.ErrDiscountCapExceeded):
		return common.NewAppError("DISCOUNT_CAP_EXCEEDED", "discount exceeds the operator cap", http.StatusUnprocessableEntity, err)
	case errors.Is(err, pricing.ErrInvalidPolicy):
		return common.NewAppError("BAD_REQUEST", "invalid discount policy", http.StatusBadRequest, err)
	default:
		return err
	}
}
