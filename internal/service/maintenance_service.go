package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/CaioWing/Arcade/internal/bus"
	"github.com/CaioWing/Arcade/internal/domain"
	"github.com/CaioWing/Arcade/internal/metrics"
)

const DefaultDueSoonWindow = 7

// Escalate returns the status the active policies call for, resolved by
// severity. It only ever yields OK, Due-Soon or Overdue. A device that has
// never been serviced is measured from the Unix epoch.
func Escalate(d *domain.Device, policies []*domain.MaintenancePolicy, now time.Time, dueSoonWindow int) domain.MaintenanceStatus {
	since := time.Unix(0, 0).UTC()
	if d.UsageMetrics.LastServiceDate != nil {
		since = *d.UsageMetrics.LastServiceDate
	}
	days := int(now.Sub(since) / (24 * time.Hour))

	verdict := domain.MaintenanceOK
	for _, p := range policies {
		if !p.IsActive {
			continue
		}
		switch {
		case days >= p.IntervalDays:
			verdict = domain.MaxSeverity(verdict, domain.MaintenanceOverdue)
		case days >= p.IntervalDays-dueSoonWindow:
			verdict = domain.MaxSeverity(verdict, domain.MaintenanceDueSoon)
		}
	}
	return verdict
}

type MaintenanceOptions struct {
	DueSoonWindow int
	// Workers bounds concurrent status writes. 1 writes sequentially.
	Workers int
}

// MaintenanceService runs the policy evaluator over the whole fleet.
type MaintenanceService struct {
	store    *DeviceStore
	policies domain.PolicyRepository
	notifier *NotificationService
	changes  *bus.Bus
	metrics  *metrics.Metrics
	log      *zap.Logger

	dueSoonWindow int
	workers       int
	now           func() time.Time
}

func NewMaintenanceService(
	store *DeviceStore,
	policies domain.PolicyRepository,
	notifier *NotificationService,
	changes *bus.Bus,
	opts MaintenanceOptions,
	m *metrics.Metrics,
	log *zap.Logger,
) *MaintenanceService {
	if opts.DueSoonWindow <= 0 {
		opts.DueSoonWindow = DefaultDueSoonWindow
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &MaintenanceService{
		store:         store,
		policies:      policies,
		notifier:      notifier,
		changes:       changes,
		metrics:       m,
		log:           log,
		dueSoonWindow: opts.DueSoonWindow,
		workers:       opts.Workers,
		now:           time.Now,
	}
}

// StartScheduler runs an evaluation cycle immediately and then at the given
// interval. Call in a goroutine.
func (s *MaintenanceService) StartScheduler(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("maintenance scheduler started", zap.Duration("interval", interval))
	s.runScheduled(ctx)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("maintenance scheduler stopped")
			return
		case <-ticker.C:
			s.runScheduled(ctx)
		}
	}
}

func (s *MaintenanceService) runScheduled(ctx context.Context) {
	if _, err := s.RunEvaluationCycle(ctx); err != nil {
		s.log.Warn("maintenance evaluation skipped", zap.Error(err))
	}
}

type escalation struct {
	device *domain.Device
	from   domain.MaintenanceStatus
	to     domain.MaintenanceStatus
}

// RunEvaluationCycle evaluates every device against the active policies and
// writes only upward changes. A failed write is counted and left for the next
// cycle; it never stops the others. A write that loses to a concurrent change
// is counted as skipped. Cancelling ctx stops evaluation, keeping writes that
// already landed.
//
// The cycle never lowers a status. After a policy is deactivated or its
// interval raised, devices already at Due-Soon or Overdue stay there until a
// work order completes or the status is set back to OK by hand.
func (s *MaintenanceService) RunEvaluationCycle(ctx context.Context) (domain.EvaluationResult, error) {
	var result domain.EvaluationResult

	devices, ok := s.store.FetchAll(ctx)
	if !ok {
		return result, fmt.Errorf("read devices: %w", domain.ErrStoreUnavailable)
	}
	policies, err := s.policies.ListActive(ctx)
	if err != nil {
		return result, fmt.Errorf("read policies: %w: %v", domain.ErrStoreUnavailable, err)
	}

	now := s.now()
	var (
		mu        sync.Mutex
		escalated []escalation
		g         errgroup.Group
	)
	g.SetLimit(s.workers)

	for _, d := range devices {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}
		if d.MaintenanceStatus.RequiresIntervention() {
			continue
		}
		result.Evaluated++

		target := Escalate(d, policies, now, s.dueSoonWindow)
		if target.Severity() <= d.MaintenanceStatus.Severity() {
			continue
		}

		e := escalation{device: d, from: d.MaintenanceStatus, to: target}
		g.Go(func() error {
			_, err := s.store.Update(ctx, e.device.ID, domain.DevicePatch{
				MaintenanceStatus:       &e.to,
				ExpectMaintenanceStatus: &e.from,
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				result.Updated++
				escalated = append(escalated, e)
			case errors.Is(err, domain.ErrConflict):
				result.Skipped++
			default:
				result.Failed++
				s.log.Warn("maintenance status write failed",
					zap.Stringer("device_id", e.device.ID),
					zap.String("to", string(e.to)),
					zap.Error(err))
			}
			return nil
		})
	}
	g.Wait()

	s.metrics.ObserveEvaluation(result.Evaluated, result.Updated, result.Failed, result.Skipped)
	s.log.Info("maintenance evaluation completed",
		zap.Int("devices", len(devices)),
		zap.Int("policies", len(policies)),
		zap.Int("evaluated", result.Evaluated),
		zap.Int("updated", result.Updated),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
		zap.Bool("cancelled", result.Cancelled))

	if result.Updated > 0 {
		// Follow-up signalling must not be lost to the cycle's cancellation.
		after := context.WithoutCancel(ctx)
		if s.changes != nil {
			s.changes.Announce(after)
		}
		for _, e := range escalated {
			s.notifier.Notify(after, escalationNotice(e))
		}
	}

	return result, nil
}

func escalationNotice(e escalation) domain.Notification {
	severity := domain.SeverityInfo
	if e.to == domain.MaintenanceOverdue {
		severity = domain.SeverityWarning
	}
	return domain.Notification{
		Title:    fmt.Sprintf("Device %s is %s", e.device.SerialNumber, e.to),
		Message:  fmt.Sprintf("Maintenance status of %s (%s) changed from %s to %s.", e.device.SerialNumber, e.device.Category, e.from, e.to),
		Severity: severity,
	}
}
