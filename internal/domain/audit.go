package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	ActorManagement = "management"
	ActorSystem     = "system"
)

// Audited resources.
const (
	AuditResourceDevice     = "device"
	AuditResourceWorkOrder  = "workorder"
	AuditResourcePolicy     = "policy"
	AuditResourceEvaluation = "evaluation"
	AuditResourceStock      = "stock"
)

// ValidAuditResource reports whether r names an audited resource.
func ValidAuditResource(r string) bool {
	switch r {
	case AuditResourceDevice, AuditResourceWorkOrder, AuditResourcePolicy,
		AuditResourceEvaluation, AuditResourceStock:
		return true
	}
	return false
}

type AuditEntry struct {
	ID         uuid.UUID      `json:"id"`
	Actor      string         `json:"actor"`
	ActorType  string         `json:"actor_type"` // management, system
	Action     string         `json:"action"`     // e.g. device.rent, workorder.complete, evaluation.run
	Resource   string         `json:"resource"`   // device, workorder, policy, evaluation, stock
	ResourceID string         `json:"resource_id"`
	Details    map[string]any `json:"details,omitempty"`
	IPAddress  string         `json:"ip_address,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// AuditFilter narrows the audit log. Resource plus ResourceID yields the
// trail of a single device, work order or policy.
type AuditFilter struct {
	Actor      *string
	Action     *string
	Resource   *string
	ResourceID *string
	Since      *time.Time
	Page      int
	PerPage   int
	SortOrder string
}

type AuditRepository interface {
	Create(ctx context.Context, entry *AuditEntry) error
	List(ctx context.Context, filter AuditFilter) ([]*AuditEntry, int, error)
}
