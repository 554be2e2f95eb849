package management

import (
	"net/http"

	"github.com/CaioWing/Arcade/internal/api/request"
	"github.com/CaioWing/Arcade/internal/api/response"
	"github.com/CaioWing/Arcade/internal/domain"
	"github.com/CaioWing/Arcade/internal/service"
)

type DeviceHandler struct {
	deviceSvc *service.DeviceService
}

func NewDeviceHandler(deviceSvc *service.DeviceService) *DeviceHandler {
	return &DeviceHandler{deviceSvc: deviceSvc}
}

func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := response.ParsePagination(r)
	sortBy, order := response.ParseSort(r)
	q := r.URL.Query()

	filter := domain.DeviceFilter{
		Page:      page,
		PerPage:   perPage,
		SortBy:    sortBy,
		SortOrder: order,
	}

	if s := q.Get("status"); s != "" {
		status := domain.DeviceStatus(s)
		if !status.Valid() {
			response.Error(w, http.StatusBadRequest, "unknown status")
			return
		}
		filter.Status = &status
	}
	if s := q.Get("maintenance_status"); s != "" {
		ms := domain.MaintenanceStatus(s)
		if !ms.Valid() {
			response.Error(w, http.StatusBadRequest, "unknown maintenance_status")
			return
		}
		filter.MaintenanceStatus = &ms
	}
	if c := q.Get("category"); c != "" {
		filter.Category = &c
	}

	devices, total, err := h.deviceSvc.List(r.Context(), filter)
	if err != nil {
		response.FromError(w, err, "failed to list devices")
		return
	}

	response.Paginated(w, http.StatusOK, devices, page, perPage, total)
}

func (h *DeviceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "device")
	if !ok {
		return
	}

	device, err := h.deviceSvc.GetByID(r.Context(), id)
	if err != nil {
		response.FromError(w, err, "failed to get device")
		return
	}

	response.JSON(w, http.StatusOK, device)
}

func (h *DeviceHandler) Count(w http.ResponseWriter, r *http.Request) {
	counts, err := h.deviceSvc.CountByStatus(r.Context())
	if err != nil {
		response.FromError(w, err, "failed to count devices")
		return
	}

	response.JSON(w, http.StatusOK, counts)
}

type intakeRequest struct {
	SerialNumber string `json:"serial_number" validate:"required,max=128"`
	Category     string `json:"category" validate:"required,max=64"`
	Health       *int   `json:"health" validate:"omitempty,gte=0,lte=100"`
}

func (h *DeviceHandler) Intake(w http.ResponseWriter, r *http.Request) {
	var req intakeRequest
	if err := request.Decode(w, r, &req); err != nil {
		response.FromError(w, err, "invalid request body")
		return
	}

	device, err := h.deviceSvc.Intake(r.Context(), service.IntakeInput{
		SerialNumber: req.SerialNumber,
		Category:     req.Category,
		Health:       req.Health,
	})
	if err != nil {
		response.FromError(w, err, "failed to register device")
		return
	}

	response.JSON(w, http.StatusCreated, device)
}

// Rent hands a device to a customer. A device the eligibility gate refuses is
// answered with 409 and the gate's reason.
func (h *DeviceHandler) Rent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "device")
	if !ok {
		return
	}

	device, err := h.deviceSvc.AssignRental(r.Context(), id)
	if err != nil {
		response.FromError(w, err, "failed to rent device")
		return
	}

	response.JSON(w, http.StatusOK, device)
}

type returnRequest struct {
	DaysRented       int  `json:"days_rented" validate:"gte=0"`
	NeedsMaintenance bool `json:"needs_maintenance"`
}

func (h *DeviceHandler) Return(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "device")
	if !ok {
		return
	}

	var req returnRequest
	if err := request.Decode(w, r, &req); err != nil {
		response.FromError(w, err, "invalid request body")
		return
	}

	device, err := h.deviceSvc.Return(r.Context(), id, service.ReturnInput{
		DaysRented:       req.DaysRented,
		NeedsMaintenance: req.NeedsMaintenance,
	})
	if err != nil {
		response.FromError(w, err, "failed to return device")
		return
	}

	response.JSON(w, http.StatusOK, device)
}

func (h *DeviceHandler) Retire(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "device")
	if !ok {
		return
	}

	device, err := h.deviceSvc.Retire(r.Context(), id)
	if err != nil {
		response.FromError(w, err, "failed to retire device")
		return
	}

	response.JSON(w, http.StatusOK, device)
}

type maintenanceRequest struct {
	Status string `json:"status" validate:"required,maintenance_status"`
}

// SetMaintenance is the manual override. It may lower a status, which the
// evaluator never does.
func (h *DeviceHandler) SetMaintenance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "device")
	if !ok {
		return
	}

	var req maintenanceRequest
	if err := request.Decode(w, r, &req); err != nil {
		response.FromError(w, err, "invalid request body")
		return
	}

	device, err := h.deviceSvc.SetMaintenanceStatus(r.Context(), id, domain.MaintenanceStatus(req.Status))
	if err != nil {
		response.FromError(w, err, "failed to update maintenance status")
		return
	}

	response.JSON(w, http.StatusOK, device)
}

type healthRequest struct {
	Health *int `json:"health" validate:"required,gte=0,lte=100"`
}

func (h *DeviceHandler) SetHealth(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "device")
	if !ok {
		return
	}

	var req healthRequest
	if err := request.Decode(w, r, &req); err != nil {
		response.FromError(w, err, "invalid request body")
		return
	}

	device, err := h.deviceSvc.SetHealth(r.Context(), id, *req.Health)
	if err != nil {
		response.FromError(w, err, "failed to update health")
		return
	}

	response.JSON(w, http.StatusOK, device)
}
