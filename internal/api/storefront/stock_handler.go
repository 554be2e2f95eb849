// Package storefront serves the public, read-only views used by the rental
// site: stock availability and per-device eligibility.
package storefront

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/CaioWing/Arcade/internal/api/response"
	"github.com/CaioWing/Arcade/internal/domain"
	"github.com/CaioWing/Arcade/internal/service"
)

// SourceHeader names the tier that produced a stock response.
const SourceHeader = "X-Stock-Source"

type stockResponse struct {
	Items  []domain.StockItem `json:"items"`
	Source service.Tier       `json:"source"`
}

type StockHandler struct {
	stockSvc       *service.StockService
	eligibilitySvc *service.EligibilityService
}

func NewStockHandler(stockSvc *service.StockService, eligibilitySvc *service.EligibilityService) *StockHandler {
	return &StockHandler{stockSvc: stockSvc, eligibilitySvc: eligibilitySvc}
}

// Stock always answers 200. When the device store is unreachable the body
// comes from the cached snapshot or the built-in seed.
func (h *StockHandler) Stock(w http.ResponseWriter, r *http.Request) {
	items, tier := h.stockSvc.Stock(r.Context())
	w.Header().Set(SourceHeader, string(tier))
	response.JSON(w, http.StatusOK, stockResponse{Items: items, Source: tier})
}

// Eligibility reports whether a device may be rented right now. A denial is
// a normal 200 answer carrying the reason.
func (h *StockHandler) Eligibility(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid device id")
		return
	}
	response.JSON(w, http.StatusOK, h.eligibilitySvc.CheckEligibility(r.Context(), id))
}
