package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CaioWing/Arcade/internal/bus"
	"github.com/CaioWing/Arcade/internal/domain"
)

type DeviceService struct {
	repo    domain.DeviceRepository
	store   *DeviceStore
	gate    *EligibilityService
	changes *bus.Bus
	log     *zap.Logger
	now     func() time.Time
}

func NewDeviceService(
	repo domain.DeviceRepository,
	store *DeviceStore,
	gate *EligibilityService,
	changes *bus.Bus,
	log *zap.Logger,
) *DeviceService {
	return &DeviceService{
		repo:    repo,
		store:   store,
		gate:    gate,
		changes: changes,
		log:     log,
		now:     time.Now,
	}
}

type IntakeInput struct {
	SerialNumber string
	Category     string
	Health       *int
}

// Intake registers a new device as Ready with maintenance status OK.
func (s *DeviceService) Intake(ctx context.Context, in IntakeInput) (*domain.Device, error) {
	serial := strings.TrimSpace(in.SerialNumber)
	category := strings.TrimSpace(in.Category)
	if serial == "" || category == "" {
		return nil, fmt.Errorf("%w: serial number and category are required", domain.ErrInvalidInput)
	}
	health := 100
	if in.Health != nil {
		health = *in.Health
	}
	if health < 0 || health > 100 {
		return nil, fmt.Errorf("%w: health must be between 0 and 100", domain.ErrInvalidInput)
	}

	d := &domain.Device{
		SerialNumber:      serial,
		Category:          category,
		Status:            domain.DeviceStatusReady,
		MaintenanceStatus: domain.MaintenanceOK,
		Health:            health,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("%w: serial number %s already registered", domain.ErrConflict, serial)
		}
		return nil, fmt.Errorf("create device: %w", err)
	}

	s.log.Info("device registered", zap.Stringer("id", d.ID), zap.String("serial", serial), zap.String("category", category))
	s.announce(ctx)
	return d, nil
}

func (s *DeviceService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Device, error) {
	return s.store.FetchOne(ctx, id)
}

func (s *DeviceService) List(ctx context.Context, filter domain.DeviceFilter) ([]*domain.Device, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *DeviceService) CountByStatus(ctx context.Context) (map[domain.DeviceStatus]int, error) {
	return s.repo.CountByStatus(ctx)
}

// AssignRental marks a device as rented. The eligibility gate is consulted
// first and the write is guarded by the status and maintenance status the
// gate saw, so a maintenance flag raised in between fails the assignment with
// domain.ErrConflict instead of slipping through.
func (s *DeviceService) AssignRental(ctx context.Context, id uuid.UUID) (*domain.Device, error) {
	verdict, d, err := s.gate.check(ctx, id)
	if err != nil {
		return nil, err
	}
	if !verdict.Allowed {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotEligible, verdict.Reason)
	}
	if d.Status != domain.DeviceStatusReady {
		return nil, fmt.Errorf("%w: device is %s", domain.ErrConflict, d.Status)
	}

	metrics := d.UsageMetrics
	metrics.TotalRentals++
	updated, err := s.store.Update(ctx, id, domain.DevicePatch{
		Status:                  domain.StatusPtr(domain.DeviceStatusRented),
		UsageMetrics:            &metrics,
		ExpectStatus:            domain.StatusPtr(domain.DeviceStatusReady),
		ExpectMaintenanceStatus: domain.MaintenancePtr(d.MaintenanceStatus),
	})
	if err != nil {
		return nil, fmt.Errorf("assign rental: %w", err)
	}

	s.log.Info("device rented", zap.Stringer("id", id), zap.Int("total_rentals", metrics.TotalRentals))
	s.announce(ctx)
	return updated, nil
}

type ReturnInput struct {
	DaysRented       int
	NeedsMaintenance bool
}

// Return closes a rental. The device goes back to Ready, or to Maintenance
// when the return inspection flagged it.
func (s *DeviceService) Return(ctx context.Context, id uuid.UUID, in ReturnInput) (*domain.Device, error) {
	if in.DaysRented < 0 {
		return nil, fmt.Errorf("%w: days rented must not be negative", domain.ErrInvalidInput)
	}
	d, err := s.store.FetchOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Status != domain.DeviceStatusRented {
		return nil, fmt.Errorf("%w: device is %s, not Rented", domain.ErrConflict, d.Status)
	}

	next := domain.DeviceStatusReady
	if in.NeedsMaintenance {
		next = domain.DeviceStatusMaintenance
	}
	metrics := d.UsageMetrics
	metrics.TotalDaysRented += in.DaysRented

	updated, err := s.store.Update(ctx, id, domain.DevicePatch{
		Status:       &next,
		UsageMetrics: &metrics,
		ExpectStatus: domain.StatusPtr(domain.DeviceStatusRented),
	})
	if err != nil {
		return nil, fmt.Errorf("return device: %w", err)
	}

	s.log.Info("device returned", zap.Stringer("id", id), zap.String("status", string(next)))
	s.announce(ctx)
	return updated, nil
}

// Retire marks a device as Lost. Lost devices leave the stock view but are
// never deleted.
func (s *DeviceService) Retire(ctx context.Context, id uuid.UUID) (*domain.Device, error) {
	d, err := s.store.FetchOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Status == domain.DeviceStatusLost {
		return d, nil
	}

	updated, err := s.store.Update(ctx, id, domain.DevicePatch{
		Status:       domain.StatusPtr(domain.DeviceStatusLost),
		ExpectStatus: domain.StatusPtr(d.Status),
	})
	if err != nil {
		return nil, fmt.Errorf("retire device: %w", err)
	}

	s.log.Info("device retired", zap.Stringer("id", id), zap.String("previous_status", string(d.Status)))
	s.announce(ctx)
	return updated, nil
}

// SetMaintenanceStatus is the manual override. It is the only way, besides
// work orders, to put a device into Critical or to clear an escalation.
func (s *DeviceService) SetMaintenanceStatus(ctx context.Context, id uuid.UUID, status domain.MaintenanceStatus) (*domain.Device, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown maintenance status %q", domain.ErrInvalidInput, status)
	}
	patch := domain.DevicePatch{MaintenanceStatus: &status}
	if status == domain.MaintenanceOK {
		now := s.now().UTC()
		d, err := s.store.FetchOne(ctx, id)
		if err != nil {
			return nil, err
		}
		metrics := d.UsageMetrics
		metrics.LastServiceDate = &now
		patch.UsageMetrics = &metrics
		// Metrics were read above; a rental in between must not be overwritten.
		patch.ExpectStatus = domain.StatusPtr(d.Status)
	}

	updated, err := s.store.Update(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("set maintenance status: %w", err)
	}

	s.log.Info("maintenance status set", zap.Stringer("id", id), zap.String("status", string(status)))
	s.announce(ctx)
	return updated, nil
}

// SetHealth records the display health score. It has no effect on
// maintenance status or eligibility.
func (s *DeviceService) SetHealth(ctx context.Context, id uuid.UUID, health int) (*domain.Device, error) {
	if health < 0 || health > 100 {
		return nil, fmt.Errorf("%w: health must be between 0 and 100", domain.ErrInvalidInput)
	}
	updated, err := s.store.Update(ctx, id, domain.DevicePatch{Health: &health})
	if err != nil {
		return nil, fmt.Errorf("set health: %w", err)
	}
	return updated, nil
}

func (s *DeviceService) announce(ctx context.Context) {
	if s.changes != nil {
		s.changes.Announce(context.WithoutCancel(ctx))
	}
}
