package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/CaioWing/Arcade/internal/domain"
)

func TestIntake_CreatesReadyDevice(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	d, err := env.deviceSvc.Intake(ctx, IntakeInput{SerialNumber: " PS5-0100 ", Category: "PS5"})
	if err != nil {
		t.Fatalf("intake: %v", err)
	}
	if d.Status != domain.DeviceStatusReady || d.MaintenanceStatus != domain.MaintenanceOK {
		t.Fatalf("unexpected initial state %s/%s", d.Status, d.MaintenanceStatus)
	}
	if d.SerialNumber != "PS5-0100" || d.Health != 100 {
		t.Fatalf("unexpected device %+v", d)
	}

	_, err = env.deviceSvc.Intake(ctx, IntakeInput{SerialNumber: "PS5-0100", Category: "PS5"})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate serial, got %v", err)
	}
}

func TestIntake_Validation(t *testing.T) {
	env := newTestEnv()
	bad := 101

	inputs := []IntakeInput{
		{SerialNumber: "", Category: "PS5"},
		{SerialNumber: "X", Category: "  "},
		{SerialNumber: "X", Category: "PS5", Health: &bad},
	}
	for _, in := range inputs {
		if _, err := env.deviceSvc.Intake(context.Background(), in); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("Intake(%+v): expected ErrInvalidInput, got %v", in, err)
		}
	}
}

func TestAssignRental_Success(t *testing.T) {
	d := device("PS5", domain.DeviceStatusReady, domain.MaintenanceDueSoon)
	d.UsageMetrics.TotalRentals = 3
	env := newTestEnv(d)

	updated, err := env.deviceSvc.AssignRental(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if updated.Status != domain.DeviceStatusRented {
		t.Fatalf("expected Rented, got %s", updated.Status)
	}
	if updated.UsageMetrics.TotalRentals != 4 {
		t.Fatalf("expected 4 rentals, got %d", updated.UsageMetrics.TotalRentals)
	}
}

func TestAssignRental_DeniedByGate(t *testing.T) {
	d := device("PS5", domain.DeviceStatusReady, domain.MaintenanceOverdue)
	env := newTestEnv(d)

	_, err := env.deviceSvc.AssignRental(context.Background(), d.ID)
	if !errors.Is(err, domain.ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible, got %v", err)
	}
	if env.devices.get(d.ID).Status != domain.DeviceStatusReady {
		t.Fatal("denied rental changed the device")
	}
}

func TestAssignRental_NotReady(t *testing.T) {
	d := device("PS5", domain.DeviceStatusRented, domain.MaintenanceOK)
	env := newTestEnv(d)

	if _, err := env.deviceSvc.AssignRental(context.Background(), d.ID); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestAssignRental_UnknownDevice(t *testing.T) {
	env := newTestEnv()
	if _, err := env.deviceSvc.AssignRental(context.Background(), uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAssignRental_MaintenanceFlaggedBeforeCommit(t *testing.T) {
	d := device("PS5", domain.DeviceStatusReady, domain.MaintenanceOK)
	env := newTestEnv(d)
	// The evaluator escalates the device after the gate allowed it.
	env.devices.beforeUpdate = func(d *domain.Device) {
		d.MaintenanceStatus = domain.MaintenanceOverdue
	}

	_, err := env.deviceSvc.AssignRental(context.Background(), d.ID)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if env.devices.get(d.ID).Status != domain.DeviceStatusReady {
		t.Fatal("rental committed despite the maintenance flag")
	}
}

func TestReturn(t *testing.T) {
	tests := []struct {
		name             string
		needsMaintenance bool
		want             domain.DeviceStatus
	}{
		{"clean return", false, domain.DeviceStatusReady},
		{"flagged on inspection", true, domain.DeviceStatusMaintenance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := device("PS5", domain.DeviceStatusRented, domain.MaintenanceOK)
			d.UsageMetrics.TotalDaysRented = 10
			env := newTestEnv(d)

			updated, err := env.deviceSvc.Return(context.Background(), d.ID, ReturnInput{DaysRented: 4, NeedsMaintenance: tt.needsMaintenance})
			if err != nil {
				t.Fatalf("return: %v", err)
			}
			if updated.Status != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, updated.Status)
			}
			if updated.UsageMetrics.TotalDaysRented != 14 {
				t.Fatalf("expected 14 days rented, got %d", updated.UsageMetrics.TotalDaysRented)
			}
		})
	}
}

func TestReturn_NotRented(t *testing.T) {
	d := device("PS5", domain.DeviceStatusReady, domain.MaintenanceOK)
	env := newTestEnv(d)

	if _, err := env.deviceSvc.Return(context.Background(), d.ID, ReturnInput{}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestRetire(t *testing.T) {
	d := device("PS5", domain.DeviceStatusReady, domain.MaintenanceOK)
	env := newTestEnv(d)

	updated, err := env.deviceSvc.Retire(context.Background(), d.ID)
	if err != nil {
		t.Fatalf("retire: %v", err)
	}
	if updated.Status != domain.DeviceStatusLost {
		t.Fatalf("expected Lost, got %s", updated.Status)
	}

	// Retiring again is a no-op.
	if _, err := env.deviceSvc.Retire(context.Background(), d.ID); err != nil {
		t.Fatalf("second retire: %v", err)
	}
	if env.devices.updates != 1 {
		t.Fatalf("expected 1 write, got %d", env.devices.updates)
	}
}

func TestSetMaintenanceStatus(t *testing.T) {
	d := device("PS5", domain.DeviceStatusReady, domain.MaintenanceOverdue)
	d.UsageMetrics.LastServiceDate = daysAgo(90)
	env := newTestEnv(d)
	ctx := context.Background()

	updated, err := env.deviceSvc.SetMaintenanceStatus(ctx, d.ID, domain.MaintenanceCritical)
	if err != nil {
		t.Fatalf("set critical: %v", err)
	}
	if updated.MaintenanceStatus != domain.MaintenanceCritical {
		t.Fatalf("expected Critical, got %s", updated.MaintenanceStatus)
	}

	updated, err = env.deviceSvc.SetMaintenanceStatus(ctx, d.ID, domain.MaintenanceOK)
	if err != nil {
		t.Fatalf("set ok: %v", err)
	}
	if updated.UsageMetrics.LastServiceDate == nil || !updated.UsageMetrics.LastServiceDate.Equal(testNow) {
		t.Fatalf("clearing to OK should record a service, got %v", updated.UsageMetrics.LastServiceDate)
	}

	if _, err := env.deviceSvc.SetMaintenanceStatus(ctx, d.ID, "Broken"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSetMaintenanceStatus_OKDoesNotOverwriteConcurrentRental(t *testing.T) {
	d := device("PS5", domain.DeviceStatusReady, domain.MaintenanceOverdue)
	d.UsageMetrics.TotalRentals = 7
	env := newTestEnv(d)
	ctx := context.Background()

	env.devices.beforeUpdate = func(stored *domain.Device) {
		stored.Status = domain.DeviceStatusRented
		stored.UsageMetrics.TotalRentals++
	}

	if _, err := env.deviceSvc.SetMaintenanceStatus(ctx, d.ID, domain.MaintenanceOK); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	got := env.devices.get(d.ID)
	if got.UsageMetrics.TotalRentals != 8 {
		t.Fatalf("rental increment lost, total rentals = %d", got.UsageMetrics.TotalRentals)
	}
	if got.MaintenanceStatus != domain.MaintenanceOverdue {
		t.Fatalf("maintenance status changed despite conflict: %s", got.MaintenanceStatus)
	}
}

func TestSetHealth_IndependentOfMaintenance(t *testing.T) {
	d := device("PS5", domain.DeviceStatusReady, domain.MaintenanceOK)
	env := newTestEnv(d)

	updated, err := env.deviceSvc.SetHealth(context.Background(), d.ID, 12)
	if err != nil {
		t.Fatalf("set health: %v", err)
	}
	if updated.Health != 12 || updated.MaintenanceStatus != domain.MaintenanceOK {
		t.Fatalf("unexpected device %+v", updated)
	}
	if !env.eligibility.CheckEligibility(context.Background(), d.ID).Allowed {
		t.Fatal("low health must not block rentals")
	}

	if _, err := env.deviceSvc.SetHealth(context.Background(), d.ID, -1); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
