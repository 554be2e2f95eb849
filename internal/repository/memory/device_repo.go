// Package memory holds in-process repositories used by demo mode and as a
// fallback when no database is configured. Values are copied on the way in and
// out so callers never share state with the store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CaioWing/Arcade/internal/domain"
)

type DeviceRepo struct {
	mu      sync.RWMutex
	devices map[uuid.UUID]*domain.Device
	serials map[string]uuid.UUID
	now     func() time.Time
}

func NewDeviceRepo(seed ...*domain.Device) *DeviceRepo {
	r := &DeviceRepo{
		devices: make(map[uuid.UUID]*domain.Device),
		serials: make(map[string]uuid.UUID),
		now:     time.Now,
	}
	for _, d := range seed {
		c := cloneDevice(d)
		r.devices[c.ID] = c
		r.serials[c.SerialNumber] = c.ID
	}
	return r
}

func (r *DeviceRepo) Create(_ context.Context, d *domain.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.serials[d.SerialNumber]; exists {
		return domain.ErrConflict
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	now := r.now()
	d.CreatedAt, d.UpdatedAt = now, now
	r.devices[d.ID] = cloneDevice(d)
	r.serials[d.SerialNumber] = d.ID
	return nil
}

func (r *DeviceRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.devices[id]; ok {
		return cloneDevice(d), nil
	}
	return nil, domain.ErrNotFound
}

func (r *DeviceRepo) List(_ context.Context, f domain.DeviceFilter) ([]*domain.Device, int, error) {
	r.mu.RLock()
	var result []*domain.Device
	for _, d := range r.devices {
		if f.Status != nil && d.Status != *f.Status {
			continue
		}
		if f.MaintenanceStatus != nil && d.MaintenanceStatus != *f.MaintenanceStatus {
			continue
		}
		if f.Category != nil && domain.CategoryKey(d.Category) != domain.CategoryKey(*f.Category) {
			continue
		}
		result = append(result, cloneDevice(d))
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

func (r *DeviceRepo) ListAll(_ context.Context) ([]*domain.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*domain.Device, 0, len(r.devices))
	for _, d := range r.devices {
		result = append(result, cloneDevice(d))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SerialNumber < result[j].SerialNumber })
	return result, nil
}

func (r *DeviceRepo) Update(_ context.Context, id uuid.UUID, patch domain.DevicePatch) (*domain.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !patch.Matches(d) {
		return nil, domain.ErrConflict
	}
	patch.Apply(d)
	d.UpdatedAt = r.now()
	return cloneDevice(d), nil
}

func (r *DeviceRepo) CountByStatus(_ context.Context) (map[domain.DeviceStatus]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[domain.DeviceStatus]int)
	for _, d := range r.devices {
		counts[d.Status]++
	}
	return counts, nil
}

func cloneDevice(d *domain.Device) *domain.Device {
	c := *d
	if d.UsageMetrics.LastServiceDate != nil {
		t := *d.UsageMetrics.LastServiceDate
		c.UsageMetrics.LastServiceDate = &t
	}
	return &c
}

func paginate[T any](items []T, page, perPage int) []T {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	start := (page - 1) * perPage
	if start >= len(items) {
		return []T{}
	}
	end := min(start+perPage, len(items))
	return items[start:end]
}
