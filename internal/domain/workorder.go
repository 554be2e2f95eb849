package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type WorkOrderStatus string

const (
	WorkOrderOpen         WorkOrderStatus = "Open"
	WorkOrderInProgress   WorkOrderStatus = "In-Progress"
	WorkOrderWaitingParts WorkOrderStatus = "Waiting-Parts"
	WorkOrderCompleted    WorkOrderStatus = "Completed"
	WorkOrderCancelled    WorkOrderStatus = "Cancelled"
)

// OpenWorkOrderStatuses are the non-terminal statuses.
var OpenWorkOrderStatuses = []WorkOrderStatus{WorkOrderOpen, WorkOrderInProgress, WorkOrderWaitingParts}

func (s WorkOrderStatus) IsOpen() bool {
	switch s {
	case WorkOrderOpen, WorkOrderInProgress, WorkOrderWaitingParts:
		return true
	}
	return false
}

func (s WorkOrderStatus) Valid() bool {
	return s.IsOpen() || s == WorkOrderCompleted || s == WorkOrderCancelled
}

type WorkOrderPriority string

const (
	PriorityLow      WorkOrderPriority = "Low"
	PriorityMedium   WorkOrderPriority = "Medium"
	PriorityHigh     WorkOrderPriority = "High"
	PriorityCritical WorkOrderPriority = "Critical"
)

// BlockingPriorities deny rentals while a work order with one of them is open.
var BlockingPriorities = []WorkOrderPriority{PriorityHigh, PriorityCritical}

func (p WorkOrderPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

type WorkOrder struct {
	ID          uuid.UUID         `json:"id"`
	DeviceID    uuid.UUID         `json:"device_id"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Status      WorkOrderStatus   `json:"status"`
	Priority    WorkOrderPriority `json:"priority"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

type WorkOrderFilter struct {
	DeviceID  *uuid.UUID
	Status    *WorkOrderStatus
	Priority  *WorkOrderPriority
	Page      int
	PerPage   int
	SortOrder string
}

type WorkOrderRepository interface {
	Create(ctx context.Context, wo *WorkOrder) error
	GetByID(ctx context.Context, id uuid.UUID) (*WorkOrder, error)
	List(ctx context.Context, filter WorkOrderFilter) ([]*WorkOrder, int, error)
	// ListOpen returns non-terminal work orders for a device whose priority is
	// one of priorities.
	ListOpen(ctx context.Context, deviceID uuid.UUID, priorities []WorkOrderPriority) ([]*WorkOrder, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status WorkOrderStatus) error
}
