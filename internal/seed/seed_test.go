package seed

import (
	"testing"
	"time"

	"github.com/CaioWing/Arcade/internal/domain"
)

func TestLoad_EmbeddedDataset(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ds, err := Load(now)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if len(ds.Stock) == 0 {
		t.Fatal("seed stock must never be empty")
	}
	for _, item := range ds.Stock {
		if item.Available != item.Total-item.Rented {
			t.Fatalf("%s: available %d != total %d - rented %d", item.ID, item.Available, item.Total, item.Rented)
		}
		if item.Name == "" {
			t.Fatalf("%s: missing display name", item.ID)
		}
	}

	if _, ok := ds.Catalog["xbox-series-x"]; !ok {
		t.Fatal("expected catalog entry for xbox-series-x")
	}
	if len(ds.Policies) == 0 || len(ds.Devices) == 0 {
		t.Fatal("expected demo policies and devices")
	}
}

func TestLoad_DaysSinceServiceIsRelative(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ds, err := Load(now)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	for _, d := range ds.Devices {
		if d.SerialNumber != "PS5-0002" {
			continue
		}
		if d.UsageMetrics.LastServiceDate == nil {
			t.Fatal("expected a service date")
		}
		if got := now.Sub(*d.UsageMetrics.LastServiceDate); got != 40*24*time.Hour {
			t.Fatalf("expected 40 days since service, got %s", got)
		}
		return
	}
	t.Fatal("PS5-0002 not found in seed")
}

func TestParse_RejectsInvalidStatus(t *testing.T) {
	data := []byte(`
stock:
  - id: ps5
    total: 1
devices:
  - id: 0d4f6a1e-1c1b-4c8e-9d11-000000000001
    serial: X
    category: PS5
    status: Broken
    maintenance_status: OK
`)
	if _, err := parse(data, time.Now()); err == nil {
		t.Fatal("expected invalid status to be rejected")
	}
}

func TestParse_RequiresStock(t *testing.T) {
	if _, err := parse([]byte("catalog: []\n"), time.Now()); err == nil {
		t.Fatal("expected error for empty stock")
	}
}

func TestParse_UnknownCategoryUsesDefaults(t *testing.T) {
	ds, err := parse([]byte("stock:\n  - id: Steam Deck\n    total: 2\n"), time.Now())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	item := ds.Stock[0]
	if item.ID != "steam-deck" || item.Name != "Steam Deck" {
		t.Fatalf("unexpected item %+v", item)
	}
	if item.LowStockAlert != domain.DefaultLowStockAlert || item.MaxControllers != domain.DefaultMaxControllers {
		t.Fatalf("expected default catalog values, got %+v", item)
	}
}
