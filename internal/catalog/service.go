// Package catalog proxies product search for the POS search box. Results are
// cached briefly so repeated keystrokes do not hammer the sales backend; the
// snapshot a cart line freezes still comes from the add-item lookup.
package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/rs/zerolog"

	"github.com/apotekpos/backend-pos/internal/obs"
	"github.com/apotekpos/backend-pos/internal/salesapi"
)

// Service answers product searches, cache first.
type Service struct {
	Sales  salesapi.Client
	Cache  *Cache
	Logger zerolog.Logger
}

// Search returns product snapshots matching the term. Cache failures are
// logged and ignored; the upstream answer always wins.
func (s *Service) Search(ctx context.Context, term string) ([]salesapi.Product, error) {
	term = strings.TrimSpace(term)
	key := cacheKey(term)

	var cached []salesapi.Product
	hit, err := s.Cache.GetJSON(ctx, key, &cached)
	if err != nil {
		s.Logger.Warn().Err(err).Msg("catalog cache read failed")
	}
	if hit {
		return cached, nil
	}

	products, err := s.Sales.SearchProducts(ctx, term)
	recordLookup(err)
	if err != nil {
		return nil, err
	}
	if err := s.Cache.SetJSON(ctx, key, products); err != nil {
		s.Logger.Warn().Err(err).Msg("catalog cache write failed")
	}
	return products, nil
}

func recordLookup(err error) {
	if obs.ProductLookupTotal == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	obs.ProductLookupTotal.WithLabelValues(result).Inc()
}

func cacheKey(term string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(term)))
	return "catalog:search:" + hex.EncodeToString(sum[:8])
}
