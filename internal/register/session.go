// Package register holds the in-memory register sessions. One session owns
// one in-progress sale; nothing here survives a restart. Durable state lives
// behind the sales backend.
package register

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/apotekpos/backend-pos/internal/cart"
	"github.com/apotekpos/backend-pos/internal/checkout"
	"github.com/apotekpos/backend-pos/internal/pricing"
)

var (
	// ErrSessionNotFound covers unknown and expired register sessions alike.
	ErrSessionNotFound = errors.New("register: session not found")
	// ErrNotOwner is returned when an operator touches a session they did not open.
	ErrNotOwner = errors.New("register: session belongs to another operator")
)

// Session is one register's working state: the open cart, the discount
// currently applied, and the checkout-in-flight flag. All access goes through
// the methods; the cart itself is not safe for concurrent use.
type Session struct {
	ID         string
	OperatorID string
	Role       string
	OpenedAt   time.Time

	mu         sync.Mutex
	lastUsed   time.Time
	cart       *cart.Cart
	policy     pricing.Policy
	processing bool
}

// AddProduct adds a product snapshot to the cart, incrementing on re-add.
func (s *Session) AddProduct(p cart.Product) (cart.Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Add(p)
}

// SetQuantity applies direct numeric input, normalising and clamping.
func (s *Session) SetQuantity(productID string, quantity int) (cart.Line, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.SetQuantity(productID, quantity)
}

// Increment adjusts a line by delta; a result at or below zero removes it.
func (s *Session) Increment(productID string, delta int) (cart.Line, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Increment(productID, delta)
}

// RemoveLine removes a product's line; absent products are a no-op.
func (s *Session) RemoveLine(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart.Remove(productID)
}

// ClearCart empties the cart but keeps the session and discount cap.
func (s *Session) ClearCart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart.Clear()
}

// SetPolicy replaces the discount in force. The role cap on the incoming
// policy is preserved by the caller; values over the cap clamp at compute time.
func (s *Session) SetPolicy(p pricing.Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policy = p
}

// Snapshot returns a stable copy of the cart lines and the active policy.
// Checkout builds its payload from this; later edits cannot reach it.
func (s *Session) Snapshot() ([]cart.Line, pricing.Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Lines(), s.policy
}

// BeginCheckout marks the session busy. A second checkout on the same
// session is refused until the first reaches a terminal outcome.
func (s *Session) BeginCheckout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processing {
		return checkout.ErrCheckoutInProgress
	}
	s.processing = true
	return nil
}

// EndCheckout releases the busy flag.
func (s *Session) EndCheckout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processing = false
}

// ResetAfterSale clears the cart and discount after a committed sale. The
// role cap carries over into the fresh policy.
func (s *Session) ResetAfterSale() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart.Clear()
	s.policy = pricing.Default(s.policy.Cap)
}

// Processing reports whether a checkout is in flight.
func (s *Session) Processing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing
}

// Registry tracks open sessions with TTL expiry. Expired sessions are lazily
// purged on access; use lazily touches the deadline forward.
type Registry struct {
	TTL time.Duration
	Now func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry builds a registry with the given idle TTL.
func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Registry{
		TTL:      ttl,
		Now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Open creates a fresh session for the operator with the role's discount cap.
func (r *Registry) Open(operatorID, role string, discountCap decimal.Decimal) *Session {
	now := r.Now()
	s := &Session{
		ID:         uuid.NewString(),
		OperatorID: operatorID,
		Role:       role,
		OpenedAt:   now,
		lastUsed:   now,
		cart:       cart.New(),
		policy:     pricing.Default(discountCap),
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	return s
}

// Get returns the session if it exists and has not idled out, refreshing its
// deadline.
func (r *Registry) Get(id string) (*Session, error) {
	now := r.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.mu.Lock()
	expired := now.Sub(s.lastUsed) > r.TTL
	if !expired {
		s.lastUsed = now
	}
	s.mu.Unlock()
	if expired {
		delete(r.sessions, id)
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close removes the session. Closing an unknown session reports not found.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	return nil
}

// Sessions returns the live sessions in opening order, purging idle ones.
func (r *Registry) Sessions() []*Session {
	now := r.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		s.mu.Lock()
		expired := now.Sub(s.lastUsed) > r.TTL
		s.mu.Unlock()
		if expired {
			delete(r.sessions, id)
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out
}

// Len returns the number of live sessions, purging idle ones first.
func (r *Registry) Len() int {
	now := r.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		s.mu.Lock()
		expired := now.Sub(s.lastUsed) > r.TTL
		s.mu.Unlock()
		if expired {
			delete(r.sessions, id)
		}
	}
	return len(r.sessions)
}
