package management

import (
	"fmt"
	"net/http"
	"time"

	"github.com/CaioWing/Arcade/internal/api/response"
	"github.com/CaioWing/Arcade/internal/domain"
	"github.com/CaioWing/Arcade/internal/service"
)

type AuditHandler struct {
	auditSvc *service.AuditService
}

func NewAuditHandler(auditSvc *service.AuditService) *AuditHandler {
	return &AuditHandler{auditSvc: auditSvc}
}

// List serves the audit log. Supported filters: actor, action, resource,
// resource_id and since (RFC 3339).
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAuditFilter(r)
	if err != nil {
		response.FromError(w, err, "invalid audit filter")
		return
	}
	h.list(w, r, filter)
}

// DeviceTrail serves the audit entries recorded against one device, such as
// rentals, returns and manual maintenance changes.
func (h *AuditHandler) DeviceTrail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "device")
	if !ok {
		return
	}
	filter, err := parseAuditFilter(r)
	if err != nil {
		response.FromError(w, err, "invalid audit filter")
		return
	}
	resource, resourceID := domain.AuditResourceDevice, id.String()
	filter.Resource = &resource
	filter.ResourceID = &resourceID
	h.list(w, r, filter)
}

func (h *AuditHandler) list(w http.ResponseWriter, r *http.Request, filter domain.AuditFilter) {
	entries, total, err := h.auditSvc.List(r.Context(), filter)
	if err != nil {
		response.FromError(w, err, "failed to list audit log")
		return
	}
	response.Paginated(w, http.StatusOK, entries, filter.Page, filter.PerPage, total)
}

func parseAuditFilter(r *http.Request) (domain.AuditFilter, error) {
	page, perPage := response.ParsePagination(r)
	q := r.URL.Query()

	filter := domain.AuditFilter{
		Page:      page,
		PerPage:   perPage,
		SortOrder: q.Get("order"),
	}
	if v := q.Get("actor"); v != "" {
		filter.Actor = &v
	}
	if v := q.Get("action"); v != "" {
		filter.Action = &v
	}
	if v := q.Get("resource"); v != "" {
		if !domain.ValidAuditResource(v) {
			return filter, fmt.Errorf("%w: unknown resource %q", domain.ErrInvalidInput, v)
		}
		filter.Resource = &v
	}
	if v := q.Get("resource_id"); v != "" {
		filter.ResourceID = &v
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, fmt.Errorf("%w: since must be an RFC 3339 timestamp", domain.ErrInvalidInput)
		}
		filter.Since = &since
	}
	return filter, nil
}
