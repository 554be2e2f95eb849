package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/CaioWing/Arcade/internal/domain"
)

func TestWriteStock(t *testing.T) {
	items := []domain.StockItem{
		{ID: "ps5", Name: "PlayStation 5", Total: 4, Rented: 3, Available: 1, LowStockAlert: 2, LowStock: true, MaxControllers: 4, ExtraControllerEnabled: true},
		{ID: "switch", Name: "Switch", Total: 6, Rented: 1, Available: 5, LowStockAlert: 2, MaxControllers: 2},
	}

	var buf bytes.Buffer
	if err := WriteStock(&buf, items, "live", time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	if sheets := f.GetSheetList(); len(sheets) != 1 || sheets[0] != StockSheet {
		t.Fatalf("unexpected sheets %v", sheets)
	}

	rows, err := f.GetRows(StockSheet)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header, 2 items and a footer row, got %d", len(rows))
	}
	if rows[0][0] != "Category" || rows[1][0] != "ps5" || rows[2][0] != "switch" {
		t.Fatalf("unexpected rows %v", rows)
	}
	if rows[1][4] != "1" || rows[1][6] != "yes" || rows[2][6] != "no" {
		t.Fatalf("unexpected ps5/switch values %v %v", rows[1], rows[2])
	}
	if rows[3][0] != "Source: live" || rows[3][1] != "2026-03-15T12:00:00Z" {
		t.Fatalf("unexpected footer %v", rows[3])
	}
}

func TestWriteStock_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteStock(&buf, nil, "seed", time.Now()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected a workbook")
	}
}
