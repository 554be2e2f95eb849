package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CaioWing/Arcade/internal/domain"
	"github.com/CaioWing/Arcade/internal/storage"
)

// --- Mock Device Repository ---

type mockDeviceRepo struct {
	mu         sync.RWMutex
	devices    map[uuid.UUID]*domain.Device
	listErr    error
	getErr     error
	updateErrs map[uuid.UUID]error
	updates    int
	listCalls  int
	// beforeUpdate, if set, runs inside Update before preconditions are checked.
	beforeUpdate func(d *domain.Device)
}

func newMockDeviceRepo(devices ...*domain.Device) *mockDeviceRepo {
	m := &mockDeviceRepo{
		devices:    make(map[uuid.UUID]*domain.Device),
		updateErrs: make(map[uuid.UUID]error),
	}
	for _, d := range devices {
		if d.ID == uuid.Nil {
			d.ID = uuid.New()
		}
		m.devices[d.ID] = d
	}
	return m
}

func (m *mockDeviceRepo) Create(_ context.Context, d *domain.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.devices {
		if existing.SerialNumber == d.SerialNumber {
			return domain.ErrConflict
		}
	}
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	d.UpdatedAt = d.CreatedAt
	cp := *d
	m.devices[d.ID] = &cp
	return nil
}

func (m *mockDeviceRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if d, ok := m.devices[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockDeviceRepo) List(_ context.Context, f domain.DeviceFilter) ([]*domain.Device, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Device
	for _, d := range m.devices {
		if f.Status != nil && d.Status != *f.Status {
			continue
		}
		if f.MaintenanceStatus != nil && d.MaintenanceStatus != *f.MaintenanceStatus {
			continue
		}
		cp := *d
		result = append(result, &cp)
	}
	return result, len(result), nil
}

func (m *mockDeviceRepo) ListAll(_ context.Context) ([]*domain.Device, error) {
	m.mu.Lock()
	m.listCalls++
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	result := make([]*domain.Device, 0, len(m.devices))
	for _, d := range m.devices {
		cp := *d
		result = append(result, &cp)
	}
	return result, nil
}

func (m *mockDeviceRepo) Update(_ context.Context, id uuid.UUID, patch domain.DevicePatch) (*domain.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.updateErrs[id]; err != nil {
		return nil, err
	}
	d, ok := m.devices[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if m.beforeUpdate != nil {
		m.beforeUpdate(d)
	}
	if !patch.Matches(d) {
		return nil, domain.ErrConflict
	}
	patch.Apply(d)
	d.UpdatedAt = time.Now()
	m.updates++
	cp := *d
	return &cp, nil
}

func (m *mockDeviceRepo) CountByStatus(_ context.Context) (map[domain.DeviceStatus]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[domain.DeviceStatus]int)
	for _, d := range m.devices {
		counts[d.Status]++
	}
	return counts, nil
}

func (m *mockDeviceRepo) get(id uuid.UUID) domain.Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.devices[id]
}

func (m *mockDeviceRepo) setListErr(err error) {
	m.mu.Lock()
	m.listErr = err
	m.mu.Unlock()
}

// --- Mock Work Order Repository ---

type mockWorkOrderRepo struct {
	mu              sync.RWMutex
	orders          map[uuid.UUID]*domain.WorkOrder
	listOpenErr     error
	updateStatusErr error
}

func newMockWorkOrderRepo() *mockWorkOrderRepo {
	return &mockWorkOrderRepo{orders: make(map[uuid.UUID]*domain.WorkOrder)}
}

func (m *mockWorkOrderRepo) Create(_ context.Context, wo *domain.WorkOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	wo.ID = uuid.New()
	wo.CreatedAt = time.Now()
	wo.UpdatedAt = wo.CreatedAt
	cp := *wo
	m.orders[wo.ID] = &cp
	return nil
}

func (m *mockWorkOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.WorkOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if wo, ok := m.orders[id]; ok {
		cp := *wo
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockWorkOrderRepo) List(_ context.Context, f domain.WorkOrderFilter) ([]*domain.WorkOrder, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.WorkOrder
	for _, wo := range m.orders {
		if f.DeviceID != nil && wo.DeviceID != *f.DeviceID {
			continue
		}
		if f.Status != nil && wo.Status != *f.Status {
			continue
		}
		cp := *wo
		result = append(result, &cp)
	}
	return result, len(result), nil
}

func (m *mockWorkOrderRepo) ListOpen(_ context.Context, deviceID uuid.UUID, priorities []domain.WorkOrderPriority) ([]*domain.WorkOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.listOpenErr != nil {
		return nil, m.listOpenErr
	}
	var result []*domain.WorkOrder
	for _, wo := range m.orders {
		if wo.DeviceID != deviceID || !wo.Status.IsOpen() {
			continue
		}
		if len(priorities) > 0 && !containsPriority(priorities, wo.Priority) {
			continue
		}
		cp := *wo
		result = append(result, &cp)
	}
	return result, nil
}

func (m *mockWorkOrderRepo) UpdateStatus(_ context.Context, id uuid.UUID, status domain.WorkOrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateStatusErr != nil {
		return m.updateStatusErr
	}
	wo, ok := m.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	wo.Status = status
	return nil
}

func (m *mockWorkOrderRepo) add(wo *domain.WorkOrder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if wo.ID == uuid.Nil {
		wo.ID = uuid.New()
	}
	m.orders[wo.ID] = wo
}

func containsPriority(list []domain.WorkOrderPriority, p domain.WorkOrderPriority) bool {
	for _, q := range list {
		if q == p {
			return true
		}
	}
	return false
}

// --- Mock Policy Repository ---

type mockPolicyRepo struct {
	mu       sync.RWMutex
	policies map[uuid.UUID]*domain.MaintenancePolicy
	err      error
}

func newMockPolicyRepo(policies ...*domain.MaintenancePolicy) *mockPolicyRepo {
	m := &mockPolicyRepo{policies: make(map[uuid.UUID]*domain.MaintenancePolicy)}
	for _, p := range policies {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		m.policies[p.ID] = p
	}
	return m
}

func (m *mockPolicyRepo) Create(_ context.Context, p *domain.MaintenancePolicy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	cp := *p
	m.policies[p.ID] = &cp
	return nil
}

func (m *mockPolicyRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.MaintenancePolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.policies[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockPolicyRepo) List(_ context.Context) ([]*domain.MaintenancePolicy, error) {
	return m.list(false)
}

func (m *mockPolicyRepo) ListActive(_ context.Context) ([]*domain.MaintenancePolicy, error) {
	return m.list(true)
}

func (m *mockPolicyRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.policies[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.IsActive = active
	return nil
}

func (m *mockPolicyRepo) list(activeOnly bool) ([]*domain.MaintenancePolicy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	var result []*domain.MaintenancePolicy
	for _, p := range m.policies {
		if activeOnly && !p.IsActive {
			continue
		}
		cp := *p
		result = append(result, &cp)
	}
	return result, nil
}

// --- Mock Audit Repository ---

type mockAuditRepo struct {
	mu      sync.Mutex
	entries []*domain.AuditEntry
	err     error
}

func (m *mockAuditRepo) Create(_ context.Context, e *domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	e.ID = uuid.New()
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockAuditRepo) List(_ context.Context, _ domain.AuditFilter) ([]*domain.AuditEntry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries, len(m.entries), nil
}

// --- Mock Notification Sender ---

type mockSender struct {
	mu   sync.Mutex
	sent []domain.Notification
	err  error
}

func (m *mockSender) Send(_ context.Context, n domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, n)
	return nil
}

func (m *mockSender) all() []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Notification(nil), m.sent...)
}

// --- Mock Snapshot Store ---

type mockSnapshotStore struct {
	mu      sync.Mutex
	slots   map[string][]byte
	loadErr error
	saves   int
}

func newMockSnapshotStore() *mockSnapshotStore {
	return &mockSnapshotStore{slots: make(map[string][]byte)}
}

func (m *mockSnapshotStore) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	data, ok := m.slots[key]
	if !ok {
		return nil, storage.ErrMiss
	}
	return data, nil
}

func (m *mockSnapshotStore) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[key] = append([]byte(nil), data...)
	m.saves++
	return nil
}

func (m *mockSnapshotStore) Close() error { return nil }

func (m *mockSnapshotStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
