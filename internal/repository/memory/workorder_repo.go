package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CaioWing/Arcade/internal/domain"
)

type WorkOrderRepo struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]*domain.WorkOrder
	now    func() time.Time
}

func NewWorkOrderRepo() *WorkOrderRepo {
	return &WorkOrderRepo{
		orders: make(map[uuid.UUID]*domain.WorkOrder),
		now:    time.Now,
	}
}

func (r *WorkOrderRepo) Create(_ context.Context, wo *domain.WorkOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if wo.ID == uuid.Nil {
		wo.ID = uuid.New()
	}
	now := r.now()
	wo.CreatedAt, wo.UpdatedAt = now, now
	c := *wo
	r.orders[wo.ID] = &c
	return nil
}

func (r *WorkOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.WorkOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if wo, ok := r.orders[id]; ok {
		c := *wo
		return &c, nil
	}
	return nil, domain.ErrNotFound
}

func (r *WorkOrderRepo) List(_ context.Context, f domain.WorkOrderFilter) ([]*domain.WorkOrder, int, error) {
	r.mu.RLock()
	var result []*domain.WorkOrder
	for _, wo := range r.orders {
		if f.DeviceID != nil && wo.DeviceID != *f.DeviceID {
			continue
		}
		if f.Status != nil && wo.Status != *f.Status {
			continue
		}
		if f.Priority != nil && wo.Priority != *f.Priority {
			continue
		}
		c := *wo
		result = append(result, &c)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if f.SortOrder == "asc" {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	total := len(result)
	return paginate(result, f.Page, f.PerPage), total, nil
}

func (r *WorkOrderRepo) ListOpen(_ context.Context, deviceID uuid.UUID, priorities []domain.WorkOrderPriority) ([]*domain.WorkOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*domain.WorkOrder
	for _, wo := range r.orders {
		if wo.DeviceID != deviceID || !wo.Status.IsOpen() {
			continue
		}
		if len(priorities) > 0 && !slices.Contains(priorities, wo.Priority) {
			continue
		}
		c := *wo
		result = append(result, &c)
	}
	return result, nil
}

func (r *WorkOrderRepo) UpdateStatus(_ context.Context, id uuid.UUID, status domain.WorkOrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	wo, ok := r.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := r.now()
	wo.Status = status
	wo.UpdatedAt = now
	if status == domain.WorkOrderCompleted {
		wo.CompletedAt = &now
	}
	return nil
}
