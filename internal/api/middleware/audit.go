package middleware

import (
	"net/http"
	"strings"

	"github.com/CaioWing/Arcade/internal/domain"
	"github.com/CaioWing/Arcade/internal/service"
)

const managementPrefix = "/api/v1/management/"

// AuditLog returns a middleware that records management API mutations.
func AuditLog(auditSvc *service.AuditService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			// Only audit mutating requests that succeeded
			if r.Method == http.MethodGet || r.Method == http.MethodOptions {
				return
			}
			if rw.status >= 400 {
				return
			}

			action, resource, resourceID := classifyRequest(r.Method, r.URL.Path)
			if action == "" {
				return
			}

			actor := UserID(r.Context())
			if actor == "" {
				actor = "anonymous"
			}

			auditSvc.Log(r.Context(), &domain.AuditEntry{
				Actor:      actor,
				ActorType:  domain.ActorManagement,
				Action:     action,
				Resource:   resource,
				ResourceID: resourceID,
				IPAddress:  r.RemoteAddr,
				Details:    map[string]any{"method": r.Method, "path": r.URL.Path},
			})
		})
	}
}

var resourceNames = map[string]string{
	"devices":     domain.AuditResourceDevice,
	"work-orders": domain.AuditResourceWorkOrder,
	"policies":    domain.AuditResourcePolicy,
	"evaluations": domain.AuditResourceEvaluation,
	"stock":       domain.AuditResourceStock,
}

// classifyRequest maps a management route to an audit action such as
// device.rent or workorder.complete.
func classifyRequest(method, path string) (action, resource, resourceID string) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(path, managementPrefix), "/"), "/")
	resource, ok := resourceNames[parts[0]]
	if !ok {
		return "", "", ""
	}

	switch {
	case len(parts) == 1 && method == http.MethodPost:
		switch resource {
		case domain.AuditResourceDevice:
			return "device.intake", resource, ""
		case domain.AuditResourceEvaluation:
			return "evaluation.run", resource, ""
		}
		return resource + ".create", resource, ""
	case len(parts) == 2 && resource == domain.AuditResourceStock && method == http.MethodPost:
		return "stock." + parts[1], resource, ""
	case len(parts) == 3 && method == http.MethodPost:
		return resource + "." + parts[2], resource, parts[1]
	case len(parts) == 3 && (method == http.MethodPut || method == http.MethodPatch):
		return resource + ".set_" + parts[2], resource, parts[1]
	}
	return "", "", ""
}
