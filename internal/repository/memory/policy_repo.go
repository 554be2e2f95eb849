package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CaioWing/Arcade/internal/domain"
)

type PolicyRepo struct {
	mu       sync.RWMutex
	policies map[uuid.UUID]*domain.MaintenancePolicy
}

func NewPolicyRepo(seed ...*domain.MaintenancePolicy) *PolicyRepo {
	r := &PolicyRepo{policies: make(map[uuid.UUID]*domain.MaintenancePolicy)}
	for _, p := range seed {
		c := *p
		r.policies[c.ID] = &c
	}
	return r
}

func (r *PolicyRepo) Create(_ context.Context, p *domain.MaintenancePolicy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	c := *p
	r.policies[p.ID] = &c
	return nil
}

func (r *PolicyRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.MaintenancePolicy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.policies[id]; ok {
		c := *p
		return &c, nil
	}
	return nil, domain.ErrNotFound
}

func (r *PolicyRepo) List(_ context.Context) ([]*domain.MaintenancePolicy, error) {
	return r.list(false), nil
}

func (r *PolicyRepo) ListActive(_ context.Context) ([]*domain.MaintenancePolicy, error) {
	return r.list(true), nil
}

func (r *PolicyRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.policies[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.IsActive = active
	return nil
}

func (r *PolicyRepo) list(activeOnly bool) []*domain.MaintenancePolicy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := []*domain.MaintenancePolicy{}
	for _, p := range r.policies {
		if activeOnly && !p.IsActive {
			continue
		}
		c := *p
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}
