package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

type DeviceStatus string

const (
	DeviceStatusReady       DeviceStatus = "Ready"
	DeviceStatusRented      DeviceStatus = "Rented"
	DeviceStatusMaintenance DeviceStatus = "Maintenance"
	DeviceStatusUnderRepair DeviceStatus = "Under-Repair"
	DeviceStatusLost        DeviceStatus = "Lost"
)

func (s DeviceStatus) Valid() bool {
	switch s {
	case DeviceStatusReady, DeviceStatusRented, DeviceStatusMaintenance,
		DeviceStatusUnderRepair, DeviceStatusLost:
		return true
	}
	return false
}

// Unavailable reports whether a device in this status is counted as rented
// (not currently rentable) by the stock view. Lost devices are not counted at all.
func (s DeviceStatus) Unavailable() bool {
	switch s {
	case DeviceStatusRented, DeviceStatusMaintenance, DeviceStatusUnderRepair:
		return true
	}
	return false
}

type MaintenanceStatus string

const (
	MaintenanceOK       MaintenanceStatus = "OK"
	MaintenanceDueSoon  MaintenanceStatus = "Due-Soon"
	MaintenanceOverdue  MaintenanceStatus = "Overdue"
	MaintenanceCritical MaintenanceStatus = "Critical"
	MaintenanceInRepair MaintenanceStatus = "In-Repair"
)

// Severity orders maintenance statuses: OK < Due-Soon < Overdue < Critical < In-Repair.
// Unknown values sort below OK.
func (s MaintenanceStatus) Severity() int {
	switch s {
	case MaintenanceOK:
		return 0
	case MaintenanceDueSoon:
		return 1
	case MaintenanceOverdue:
		return 2
	case MaintenanceCritical:
		return 3
	case MaintenanceInRepair:
		return 4
	}
	return -1
}

func (s MaintenanceStatus) Valid() bool {
	return s.Severity() >= 0
}

// BlocksRental reports whether the status alone denies a rental.
func (s MaintenanceStatus) BlocksRental() bool {
	return s.Severity() >= MaintenanceOverdue.Severity()
}

// RequiresIntervention is true for statuses the evaluator never touches.
func (s MaintenanceStatus) RequiresIntervention() bool {
	return s == MaintenanceCritical || s == MaintenanceInRepair
}

// MaxSeverity returns the more severe of a and b.
func MaxSeverity(a, b MaintenanceStatus) MaintenanceStatus {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}

type UsageMetrics struct {
	TotalRentals    int        `json:"total_rentals"`
	TotalDaysRented int        `json:"total_days_rented"`
	LastServiceDate *time.Time `json:"last_service_date"`
}

type Device struct {
	ID                uuid.UUID         `json:"id"`
	SerialNumber      string            `json:"serial_number"`
	Category          string            `json:"category"`
	Status            DeviceStatus      `json:"status"`
	MaintenanceStatus MaintenanceStatus `json:"maintenance_status"`
	UsageMetrics      UsageMetrics      `json:"usage_metrics"`
	Health            int               `json:"health"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// DevicePatch is a partial update. Nil fields are left untouched. The Expect
// fields are preconditions: when set, the update only applies if the stored
// row still carries those values, otherwise it fails with ErrConflict.
type DevicePatch struct {
	Status            *DeviceStatus
	MaintenanceStatus *MaintenanceStatus
	UsageMetrics      *UsageMetrics
	Health            *int

	ExpectStatus            *DeviceStatus
	ExpectMaintenanceStatus *MaintenanceStatus
}

func (p DevicePatch) Empty() bool {
	return p.Status == nil && p.MaintenanceStatus == nil && p.UsageMetrics == nil && p.Health == nil
}

// Apply copies the patch fields onto d. Preconditions are not checked.
func (p DevicePatch) Apply(d *Device) {
	if p.Status != nil {
		d.Status = *p.Status
	}
	if p.MaintenanceStatus != nil {
		d.MaintenanceStatus = *p.MaintenanceStatus
	}
	if p.UsageMetrics != nil {
		d.UsageMetrics = *p.UsageMetrics
	}
	if p.Health != nil {
		d.Health = *p.Health
	}
}

// Matches reports whether d satisfies the patch preconditions.
func (p DevicePatch) Matches(d *Device) bool {
	if p.ExpectStatus != nil && d.Status != *p.ExpectStatus {
		return false
	}
	if p.ExpectMaintenanceStatus != nil && d.MaintenanceStatus != *p.ExpectMaintenanceStatus {
		return false
	}
	return true
}

type DeviceFilter struct {
	Status            *DeviceStatus
	MaintenanceStatus *MaintenanceStatus
	Category          *string
	Page              int
	PerPage           int
	SortBy            string
	SortOrder         string
}

type DeviceRepository interface {
	Create(ctx context.Context, device *Device) error
	GetByID(ctx context.Context, id uuid.UUID) (*Device, error)
	List(ctx context.Context, filter DeviceFilter) ([]*Device, int, error)
	ListAll(ctx context.Context) ([]*Device, error)
	Update(ctx context.Context, id uuid.UUID, patch DevicePatch) (*Device, error)
	CountByStatus(ctx context.Context) (map[DeviceStatus]int, error)
}

// CategoryKey normalizes a free-form category into the stock grouping key:
// trimmed, lowercased, whitespace runs collapsed to a single hyphen.
func CategoryKey(category string) string {
	return strings.Join(strings.Fields(strings.ToLower(category)), "-")
}

func StatusPtr(s DeviceStatus) *DeviceStatus { return &s }

func MaintenancePtr(s MaintenanceStatus) *MaintenanceStatus { return &s }
