package catalog

import (
	"errors"
	"net/http"

	"github.com/apotekpos/backend-pos/internal/common"
	"github.com/apotekpos/backend-pos/internal/salesapi"
)

// Handler wires product search to HTTP.
type Handler struct {
	Svc *Service
}

// Search handles GET /products?q=term.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	products, err := h.Svc.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		common.WriteError(w, searchError(err))
		return
	}
	if products == nil {
		products = []salesapi.Product{}
	}
	common.JSONData(w, http.StatusOK, products)
}

func searchError(err error) error {
	var apiErr *salesapi.APIError
	if errors.As(err, &apiErr) {
		return common.NewAppError(apiErr.Code, apiErr.Message, http.StatusUnprocessableEntity, err)
	}
	return common.NewAppError("UPSTREAM_UNAVAILABLE", "product search failed", http.StatusBadGateway, err)
}
