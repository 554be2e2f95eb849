package management

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/CaioWing/Arcade/internal/api/response"
	"github.com/CaioWing/Arcade/internal/report"
	"github.com/CaioWing/Arcade/internal/service"
)

type StockHandler struct {
	stockSvc *service.StockService
	log      *zap.Logger
}

func NewStockHandler(stockSvc *service.StockService, log *zap.Logger) *StockHandler {
	return &StockHandler{stockSvc: stockSvc, log: log}
}

// Invalidate forces a fresh fetch and pushes it to every live subscriber.
func (h *StockHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	h.stockSvc.Invalidate(r.Context())
	items, tier := h.stockSvc.Latest()
	response.JSON(w, http.StatusOK, map[string]any{"items": items, "source": tier})
}

func (h *StockHandler) Export(w http.ResponseWriter, r *http.Request) {
	items, tier := h.stockSvc.Stock(r.Context())
	now := time.Now()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=stock-%s.xlsx", now.UTC().Format("20060102-150405")))
	if err := report.WriteStock(w, items, string(tier), now); err != nil {
		h.log.Error("stock export failed", zap.Error(err))
	}
}
