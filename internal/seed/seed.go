// Package seed loads the static dataset embedded in the binary: the category
// catalog, the last-resort stock view and a demo fleet.
package seed

import (
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/CaioWing/Arcade/internal/domain"
)

//go:embed seed.yaml
var raw []byte

type categoryRecord struct {
	Key                    string `yaml:"key"`
	Name                   string `yaml:"name"`
	LowStockAlert          int    `yaml:"low_stock_alert"`
	MaxControllers         int    `yaml:"max_controllers"`
	ExtraControllerEnabled bool   `yaml:"extra_controller_enabled"`
}

type stockRecord struct {
	ID     string `yaml:"id"`
	Total  int    `yaml:"total"`
	Rented int    `yaml:"rented"`
}

type policyRecord struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	IntervalDays int    `yaml:"interval_days"`
	Active       bool   `yaml:"active"`
}

type deviceRecord struct {
	ID                string `yaml:"id"`
	Serial            string `yaml:"serial"`
	Category          string `yaml:"category"`
	Status            string `yaml:"status"`
	MaintenanceStatus string `yaml:"maintenance_status"`
	Health            int    `yaml:"health"`
	// Omitted means the device has never been serviced.
	DaysSinceService *int `yaml:"days_since_service"`
}

type file struct {
	Catalog  []categoryRecord `yaml:"catalog"`
	Stock    []stockRecord    `yaml:"stock"`
	Policies []policyRecord   `yaml:"policies"`
	Devices  []deviceRecord   `yaml:"devices"`
}

type Dataset struct {
	Catalog  domain.Catalog
	Stock    []domain.StockItem
	Policies []*domain.MaintenancePolicy
	Devices  []*domain.Device
}

// Load parses the embedded dataset. Device service dates are expressed
// relative to now.
func Load(now time.Time) (*Dataset, error) {
	return parse(raw, now)
}

func parse(data []byte, now time.Time) (*Dataset, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}

	ds := &Dataset{Catalog: make(domain.Catalog, len(f.Catalog))}
	for _, c := range f.Catalog {
		ds.Catalog[domain.CategoryKey(c.Key)] = domain.CategoryInfo{
			Name:                   c.Name,
			LowStockAlert:          c.LowStockAlert,
			MaxControllers:         c.MaxControllers,
			ExtraControllerEnabled: c.ExtraControllerEnabled,
		}
	}

	for _, s := range f.Stock {
		if s.Rented > s.Total {
			return nil, fmt.Errorf("seed stock %q: rented exceeds total", s.ID)
		}
		key := domain.CategoryKey(s.ID)
		info := ds.Catalog.Lookup(key, s.ID)
		available := s.Total - s.Rented
		ds.Stock = append(ds.Stock, domain.StockItem{
			ID:                     key,
			Name:                   info.Name,
			Total:                  s.Total,
			Rented:                 s.Rented,
			Available:              available,
			LowStockAlert:          info.LowStockAlert,
			LowStock:               available <= info.LowStockAlert,
			MaxControllers:         info.MaxControllers,
			ExtraControllerEnabled: info.ExtraControllerEnabled,
		})
	}
	if len(ds.Stock) == 0 {
		return nil, fmt.Errorf("seed has no stock entries")
	}

	for _, p := range f.Policies {
		id, err := uuid.Parse(p.ID)
		if err != nil {
			return nil, fmt.Errorf("seed policy %q: %w", p.Name, err)
		}
		ds.Policies = append(ds.Policies, &domain.MaintenancePolicy{
			ID:           id,
			Name:         p.Name,
			IntervalDays: p.IntervalDays,
			IsActive:     p.Active,
			CreatedAt:    now,
		})
	}

	for _, d := range f.Devices {
		dev, err := d.toDomain(now)
		if err != nil {
			return nil, err
		}
		ds.Devices = append(ds.Devices, dev)
	}

	return ds, nil
}

func (d deviceRecord) toDomain(now time.Time) (*domain.Device, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("seed device %q: %w", d.Serial, err)
	}
	status := domain.DeviceStatus(d.Status)
	if !status.Valid() {
		return nil, fmt.Errorf("seed device %q: invalid status %q", d.Serial, d.Status)
	}
	ms := domain.MaintenanceStatus(d.MaintenanceStatus)
	if !ms.Valid() {
		return nil, fmt.Errorf("seed device %q: invalid maintenance status %q", d.Serial, d.MaintenanceStatus)
	}

	dev := &domain.Device{
		ID:                id,
		SerialNumber:      d.Serial,
		Category:          d.Category,
		Status:            status,
		MaintenanceStatus: ms,
		Health:            d.Health,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if d.DaysSinceService != nil {
		serviced := now.AddDate(0, 0, -*d.DaysSinceService)
		dev.UsageMetrics.LastServiceDate = &serviced
	}
	return dev, nil
}
