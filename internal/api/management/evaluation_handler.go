package management

import (
	"net/http"

	"github.com/CaioWing/Arcade/internal/api/response"
	"github.com/CaioWing/Arcade/internal/service"
)

type EvaluationHandler struct {
	maintenanceSvc *service.MaintenanceService
}

func NewEvaluationHandler(maintenanceSvc *service.MaintenanceService) *EvaluationHandler {
	return &EvaluationHandler{maintenanceSvc: maintenanceSvc}
}

// Run executes one evaluation cycle on demand and reports its counts. A client
// disconnect cancels the cycle; writes that already landed are kept.
func (h *EvaluationHandler) Run(w http.ResponseWriter, r *http.Request) {
	result, err := h.maintenanceSvc.RunEvaluationCycle(r.Context())
	if err != nil {
		response.FromError(w, err, "evaluation failed")
		return
	}
	response.JSON(w, http.StatusOK, result)
}
