package management

import (
	"net/http"

	"github.com/CaioWing/Arcade/internal/api/request"
	"github.com/CaioWing/Arcade/internal/api/response"
	"github.com/CaioWing/Arcade/internal/service"
)

type PolicyHandler struct {
	policySvc *service.PolicyService
}

func NewPolicyHandler(policySvc *service.PolicyService) *PolicyHandler {
	return &PolicyHandler{policySvc: policySvc}
}

func (h *PolicyHandler) List(w http.ResponseWriter, r *http.Request) {
	policies, err := h.policySvc.List(r.Context())
	if err != nil {
		response.FromError(w, err, "failed to list policies")
		return
	}
	response.JSON(w, http.StatusOK, policies)
}

type createPolicyRequest struct {
	Name         string `json:"name" validate:"required,max=128"`
	IntervalDays int    `json:"interval_days" validate:"required,gte=1,lte=3650"`
	Active       *bool  `json:"is_active"`
}

func (h *PolicyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPolicyRequest
	if err := request.Decode(w, r, &req); err != nil {
		response.FromError(w, err, "invalid request body")
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	p, err := h.policySvc.Create(r.Context(), req.Name, req.IntervalDays, active)
	if err != nil {
		response.FromError(w, err, "failed to create policy")
		return
	}
	response.JSON(w, http.StatusCreated, p)
}

func (h *PolicyHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *PolicyHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *PolicyHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, ok := pathID(w, r, "policy")
	if !ok {
		return
	}

	p, err := h.policySvc.SetActive(r.Context(), id, active)
	if err != nil {
		response.FromError(w, err, "failed to update policy")
		return
	}
	response.JSON(w, http.StatusOK, p)
}
