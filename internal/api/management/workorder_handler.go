package management

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/CaioWing/Arcade/internal/api/request"
	"github.com/CaioWing/Arcade/internal/api/response"
	"github.com/CaioWing/Arcade/internal/domain"
	"github.com/CaioWing/Arcade/internal/service"
)

type WorkOrderHandler struct {
	workOrderSvc *service.WorkOrderService
}

func NewWorkOrderHandler(workOrderSvc *service.WorkOrderService) *WorkOrderHandler {
	return &WorkOrderHandler{workOrderSvc: workOrderSvc}
}

func (h *WorkOrderHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := response.ParsePagination(r)
	_, order := response.ParseSort(r)
	q := r.URL.Query()

	filter := domain.WorkOrderFilter{
		Page:      page,
		PerPage:   perPage,
		SortOrder: order,
	}

	if v := q.Get("device_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "invalid device_id")
			return
		}
		filter.DeviceID = &id
	}
	if v := q.Get("status"); v != "" {
		status := domain.WorkOrderStatus(v)
		if !status.Valid() {
			response.Error(w, http.StatusBadRequest, "unknown status")
			return
		}
		filter.Status = &status
	}
	if v := q.Get("priority"); v != "" {
		priority := domain.WorkOrderPriority(v)
		if !priority.Valid() {
			response.Error(w, http.StatusBadRequest, "unknown priority")
			return
		}
		filter.Priority = &priority
	}

	orders, total, err := h.workOrderSvc.List(r.Context(), filter)
	if err != nil {
		response.FromError(w, err, "failed to list work orders")
		return
	}

	response.Paginated(w, http.StatusOK, orders, page, perPage, total)
}

func (h *WorkOrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "work order")
	if !ok {
		return
	}

	wo, err := h.workOrderSvc.GetByID(r.Context(), id)
	if err != nil {
		response.FromError(w, err, "failed to get work order")
		return
	}

	response.JSON(w, http.StatusOK, wo)
}

type createWorkOrderRequest struct {
	DeviceID    uuid.UUID `json:"device_id" validate:"required"`
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description" validate:"max=2000"`
	Priority    string    `json:"priority" validate:"omitempty,wo_priority"`
}

func (h *WorkOrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createWorkOrderRequest
	if err := request.Decode(w, r, &req); err != nil {
		response.FromError(w, err, "invalid request body")
		return
	}

	wo, err := h.workOrderSvc.Create(r.Context(), service.CreateWorkOrderInput{
		DeviceID:    req.DeviceID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    domain.WorkOrderPriority(req.Priority),
	})
	if err != nil {
		response.FromError(w, err, "failed to create work order")
		return
	}

	response.JSON(w, http.StatusCreated, wo)
}

func (h *WorkOrderHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.workOrderSvc.Start, "failed to start work order")
}

func (h *WorkOrderHandler) Wait(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.workOrderSvc.Wait, "failed to park work order")
}

func (h *WorkOrderHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.workOrderSvc.Complete, "failed to complete work order")
}

func (h *WorkOrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.workOrderSvc.Cancel, "failed to cancel work order")
}

type transitionFunc func(ctx context.Context, id uuid.UUID) (*domain.WorkOrder, error)

func (h *WorkOrderHandler) transition(w http.ResponseWriter, r *http.Request, fn transitionFunc, failure string) {
	id, ok := pathID(w, r, "work order")
	if !ok {
		return
	}

	wo, err := fn(r.Context(), id)
	if err != nil {
		response.FromError(w, err, failure)
		return
	}

	response.JSON(w, http.StatusOK, wo)
}
