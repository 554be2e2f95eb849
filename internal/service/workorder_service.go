package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CaioWing/Arcade/internal/bus"
	"github.com/CaioWing/Arcade/internal/domain"
)

// WorkOrderService owns work-order transitions and the device transitions
// they drive: starting work puts the device under repair, completing it
// returns the device to service.
type WorkOrderService struct {
	repo    domain.WorkOrderRepository
	store   *DeviceStore
	changes *bus.Bus
	log     *zap.Logger
	now     func() time.Time
}

func NewWorkOrderService(repo domain.WorkOrderRepository, store *DeviceStore, changes *bus.Bus, log *zap.Logger) *WorkOrderService {
	return &WorkOrderService{
		repo:    repo,
		store:   store,
		changes: changes,
		log:     log,
		now:     time.Now,
	}
}

type CreateWorkOrderInput struct {
	DeviceID    uuid.UUID
	Title       string
	Description string
	Priority    domain.WorkOrderPriority
}

func (s *WorkOrderService) Create(ctx context.Context, in CreateWorkOrderInput) (*domain.WorkOrder, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrInvalidInput)
	}
	if in.Priority == "" {
		in.Priority = domain.PriorityMedium
	}
	if !in.Priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", domain.ErrInvalidInput, in.Priority)
	}
	if _, err := s.store.FetchOne(ctx, in.DeviceID); err != nil {
		return nil, fmt.Errorf("lookup device: %w", err)
	}

	wo := &domain.WorkOrder{
		DeviceID:    in.DeviceID,
		Title:       title,
		Description: in.Description,
		Status:      domain.WorkOrderOpen,
		Priority:    in.Priority,
	}
	if err := s.repo.Create(ctx, wo); err != nil {
		return nil, fmt.Errorf("create work order: %w", err)
	}

	s.log.Info("work order opened",
		zap.Stringer("id", wo.ID),
		zap.Stringer("device_id", wo.DeviceID),
		zap.String("priority", string(wo.Priority)))
	return wo, nil
}

func (s *WorkOrderService) GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkOrder, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *WorkOrderService) List(ctx context.Context, filter domain.WorkOrderFilter) ([]*domain.WorkOrder, int, error) {
	return s.repo.List(ctx, filter)
}

// Start moves the order to In-Progress and the device to Under-Repair /
// In-Repair. Rented and lost devices cannot be worked on.
func (s *WorkOrderService) Start(ctx context.Context, id uuid.UUID) (*domain.WorkOrder, error) {
	wo, err := s.transition(ctx, id, domain.WorkOrderInProgress, domain.WorkOrderOpen, domain.WorkOrderWaitingParts)
	if err != nil {
		return nil, err
	}

	d, err := s.store.FetchOne(ctx, wo.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("lookup device: %w", err)
	}
	if d.Status == domain.DeviceStatusRented || d.Status == domain.DeviceStatusLost {
		return nil, fmt.Errorf("%w: device is %s", domain.ErrConflict, d.Status)
	}

	// The device moves first; the order only follows a committed device write.
	if _, err := s.store.Update(ctx, d.ID, domain.DevicePatch{
		Status:            domain.StatusPtr(domain.DeviceStatusUnderRepair),
		MaintenanceStatus: domain.MaintenancePtr(domain.MaintenanceInRepair),
		ExpectStatus:      domain.StatusPtr(d.Status),
	}); err != nil {
		return nil, fmt.Errorf("put device under repair: %w", err)
	}
	if err := s.repo.UpdateStatus(ctx, id, domain.WorkOrderInProgress); err != nil {
		s.revertRepair(ctx, d)
		return nil, fmt.Errorf("update work order: %w", err)
	}

	wo.Status = domain.WorkOrderInProgress
	s.log.Info("work order started", zap.Stringer("id", id), zap.Stringer("device_id", d.ID))
	s.announce(ctx)
	return wo, nil
}

// Wait parks an in-progress order until parts arrive. The device stays under repair.
func (s *WorkOrderService) Wait(ctx context.Context, id uuid.UUID) (*domain.WorkOrder, error) {
	wo, err := s.transition(ctx, id, domain.WorkOrderWaitingParts, domain.WorkOrderInProgress)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, id, domain.WorkOrderWaitingParts); err != nil {
		return nil, fmt.Errorf("update work order: %w", err)
	}
	wo.Status = domain.WorkOrderWaitingParts
	return wo, nil
}

// Complete closes the order and records a service on the device: maintenance
// status back to OK and the service date set to now. A device that was taken
// out of service for the repair becomes Ready again.
func (s *WorkOrderService) Complete(ctx context.Context, id uuid.UUID) (*domain.WorkOrder, error) {
	wo, err := s.transition(ctx, id, domain.WorkOrderCompleted, domain.OpenWorkOrderStatuses...)
	if err != nil {
		return nil, err
	}

	d, err := s.store.FetchOne(ctx, wo.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("lookup device: %w", err)
	}

	now := s.now().UTC()
	metrics := d.UsageMetrics
	metrics.LastServiceDate = &now
	patch := domain.DevicePatch{
		MaintenanceStatus: domain.MaintenancePtr(domain.MaintenanceOK),
		UsageMetrics:      &metrics,
		ExpectStatus:      domain.StatusPtr(d.Status),
	}
	if d.Status == domain.DeviceStatusUnderRepair || d.Status == domain.DeviceStatusMaintenance {
		patch.Status = domain.StatusPtr(domain.DeviceStatusReady)
	}
	// The device write is repeatable, so the order closes last and a failed
	// Complete can be retried.
	if _, err := s.store.Update(ctx, d.ID, patch); err != nil {
		return nil, fmt.Errorf("return device to service: %w", err)
	}
	if err := s.repo.UpdateStatus(ctx, id, domain.WorkOrderCompleted); err != nil {
		return nil, fmt.Errorf("update work order: %w", err)
	}

	wo.Status = domain.WorkOrderCompleted
	wo.CompletedAt = &now
	s.log.Info("work order completed", zap.Stringer("id", id), zap.Stringer("device_id", d.ID))
	s.announce(ctx)
	return wo, nil
}

// Cancel closes the order without touching the device.
func (s *WorkOrderService) Cancel(ctx context.Context, id uuid.UUID) (*domain.WorkOrder, error) {
	wo, err := s.transition(ctx, id, domain.WorkOrderCancelled, domain.OpenWorkOrderStatuses...)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, id, domain.WorkOrderCancelled); err != nil {
		return nil, fmt.Errorf("update work order: %w", err)
	}
	wo.Status = domain.WorkOrderCancelled
	s.log.Info("work order cancelled", zap.Stringer("id", id))
	return wo, nil
}

// revertRepair puts a device back the way Start found it after the order
// write failed. It only applies while the device is still in the state Start
// left it in.
func (s *WorkOrderService) revertRepair(ctx context.Context, d *domain.Device) {
	_, err := s.store.Update(context.WithoutCancel(ctx), d.ID, domain.DevicePatch{
		Status:                  domain.StatusPtr(d.Status),
		MaintenanceStatus:       domain.MaintenancePtr(d.MaintenanceStatus),
		ExpectStatus:            domain.StatusPtr(domain.DeviceStatusUnderRepair),
		ExpectMaintenanceStatus: domain.MaintenancePtr(domain.MaintenanceInRepair),
	})
	if err != nil {
		s.log.Error("revert device after failed work order start",
			zap.Stringer("device_id", d.ID), zap.Error(err))
	}
}

// transition loads the order and checks that it may move to next.
func (s *WorkOrderService) transition(ctx context.Context, id uuid.UUID, next domain.WorkOrderStatus, from ...domain.WorkOrderStatus) (*domain.WorkOrder, error) {
	wo, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, f := range from {
		if wo.Status == f {
			return wo, nil
		}
	}
	return nil, fmt.Errorf("%w: cannot move work order from %s to %s", domain.ErrConflict, wo.Status, next)
}

func (s *WorkOrderService) announce(ctx context.Context) {
	if s.changes != nil {
		s.changes.Announce(context.WithoutCancel(ctx))
	}
}
