package service

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/CaioWing/Arcade/internal/bus"
	"github.com/CaioWing/Arcade/internal/domain"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	devices    *mockDeviceRepo
	workOrders *mockWorkOrderRepo
	policies   *mockPolicyRepo
	sender     *mockSender
	changes    *bus.Bus

	store       *DeviceStore
	eligibility *EligibilityService
	maintenance *MaintenanceService
	deviceSvc   *DeviceService
	workOrdSvc  *WorkOrderService
}

func newTestEnv(devices ...*domain.Device) *testEnv {
	log := zap.NewNop()
	e := &testEnv{
		devices:    newMockDeviceRepo(devices...),
		workOrders: newMockWorkOrderRepo(),
		policies:   newMockPolicyRepo(),
		sender:     &mockSender{},
		changes:    bus.New(log),
	}
	e.store = NewDeviceStore(e.devices, log)
	e.eligibility = NewEligibilityService(e.store, e.workOrders, log)
	e.maintenance = NewMaintenanceService(e.store, e.policies, NewNotificationService(e.sender, log),
		e.changes, MaintenanceOptions{}, nil, log)
	e.maintenance.now = func() time.Time { return testNow }
	e.deviceSvc = NewDeviceService(e.devices, e.store, e.eligibility, e.changes, log)
	e.deviceSvc.now = func() time.Time { return testNow }
	e.workOrdSvc = NewWorkOrderService(e.workOrders, e.store, e.changes, log)
	e.workOrdSvc.now = func() time.Time { return testNow }
	return e
}

func daysAgo(n int) *time.Time {
	t := testNow.AddDate(0, 0, -n)
	return &t
}

func device(category string, status domain.DeviceStatus, ms domain.MaintenanceStatus) *domain.Device {
	return &domain.Device{
		SerialNumber:      category + "-" + string(status) + "-" + string(ms),
		Category:          category,
		Status:            status,
		MaintenanceStatus: ms,
		Health:            100,
		UsageMetrics:      domain.UsageMetrics{LastServiceDate: daysAgo(1)},
	}
}

func policy(intervalDays int, active bool) *domain.MaintenancePolicy {
	return &domain.MaintenancePolicy{Name: fmt.Sprintf("every %d days", intervalDays), IntervalDays: intervalDays, IsActive: active}
}
