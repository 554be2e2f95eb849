package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CaioWing/Arcade/internal/domain"
)

const (
	ReasonSystemError       = "device not found or system error"
	ReasonCriticalWorkOrder = "active critical work order"
)

// EligibilityService decides whether a device may be rented. It only reads.
type EligibilityService struct {
	store      *DeviceStore
	workOrders domain.WorkOrderRepository
	log        *zap.Logger
}

func NewEligibilityService(store *DeviceStore, workOrders domain.WorkOrderRepository, log *zap.Logger) *EligibilityService {
	return &EligibilityService{store: store, workOrders: workOrders, log: log}
}

// CheckEligibility applies the rental rules in order, first match wins:
// unreadable device, blocking maintenance status, open high-priority work
// order. Store failures deny.
func (s *EligibilityService) CheckEligibility(ctx context.Context, id uuid.UUID) domain.Eligibility {
	verdict, _, err := s.check(ctx, id)
	if err != nil {
		s.log.Debug("eligibility lookup failed", zap.Stringer("device_id", id), zap.Error(err))
	}
	return verdict
}

// check also returns the device it read, so a caller committing a rental can
// guard the write with the state the verdict was based on, and the store
// error behind a system-error denial.
func (s *EligibilityService) check(ctx context.Context, id uuid.UUID) (domain.Eligibility, *domain.Device, error) {
	d, err := s.store.FetchOne(ctx, id)
	if err != nil {
		return deny(ReasonSystemError), nil, err
	}

	if d.MaintenanceStatus.BlocksRental() {
		return deny(fmt.Sprintf("device maintenance status is %s", d.MaintenanceStatus)), d, nil
	}

	open, err := s.workOrders.ListOpen(ctx, id, domain.BlockingPriorities)
	if err != nil {
		return deny(ReasonSystemError), d, fmt.Errorf("list open work orders: %w: %v", domain.ErrStoreUnavailable, err)
	}
	if len(open) > 0 {
		return deny(ReasonCriticalWorkOrder), d, nil
	}

	return domain.Eligibility{Allowed: true}, d, nil
}

func deny(reason string) domain.Eligibility {
	return domain.Eligibility{Allowed: false, Reason: reason}
}
