package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CaioWing/Arcade/internal/domain"
)

type PolicyService struct {
	repo domain.PolicyRepository
	log  *zap.Logger
}

func NewPolicyService(repo domain.PolicyRepository, log *zap.Logger) *PolicyService {
	return &PolicyService{repo: repo, log: log}
}

func (s *PolicyService) Create(ctx context.Context, name string, intervalDays int, active bool) (*domain.MaintenancePolicy, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	if intervalDays < 1 {
		return nil, fmt.Errorf("%w: interval_days must be positive", domain.ErrInvalidInput)
	}

	p := &domain.MaintenancePolicy{Name: name, IntervalDays: intervalDays, IsActive: active}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create policy: %w", err)
	}
	s.log.Info("maintenance policy created", zap.Stringer("id", p.ID), zap.String("name", name), zap.Int("interval_days", intervalDays))
	return p, nil
}

func (s *PolicyService) GetByID(ctx context.Context, id uuid.UUID) (*domain.MaintenancePolicy, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *PolicyService) List(ctx context.Context) ([]*domain.MaintenancePolicy, error) {
	return s.repo.List(ctx)
}

// SetActive toggles whether the evaluator applies the policy. Deactivating a
// policy never lowers statuses already written.
func (s *PolicyService) SetActive(ctx context.Context, id uuid.UUID, active bool) (*domain.MaintenancePolicy, error) {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	s.log.Info("maintenance policy toggled", zap.Stringer("id", id), zap.Bool("active", active))
	return s.repo.GetByID(ctx, id)
}
