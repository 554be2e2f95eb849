package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type MaintenancePolicy struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	IntervalDays int       `json:"interval_days"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

type PolicyRepository interface {
	Create(ctx context.Context, policy *MaintenancePolicy) error
	GetByID(ctx context.Context, id uuid.UUID) (*MaintenancePolicy, error)
	List(ctx context.Context) ([]*MaintenancePolicy, error)
	ListActive(ctx context.Context) ([]*MaintenancePolicy, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

// EvaluationResult summarizes one evaluator cycle. Failed counts writes that
// could not be persisted; those devices keep their pre-cycle status and are
// retried on the next cycle. Skipped counts writes lost to a concurrent change.
type EvaluationResult struct {
	Evaluated int  `json:"evaluated"`
	Updated   int  `json:"updated"`
	Failed    int  `json:"failed"`
	Skipped   int  `json:"skipped"`
	Cancelled bool `json:"cancelled"`
}
