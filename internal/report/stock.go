// Package report renders fleet views as downloadable spreadsheets.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/CaioWing/Arcade/internal/domain"
)

const StockSheet = "Stock"

var stockHeaders = []string{
	"Category", "Name", "Total", "Rented", "Available",
	"Low Stock Alert", "Low Stock", "Max Controllers", "Extra Controller",
}

// WriteStock writes items as an XLSX workbook with a single Stock sheet. Low
// stock rows are highlighted. The last row records tier and generatedAt.
func WriteStock(w io.Writer, items []domain.StockItem, tier string, generatedAt time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(StockSheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	lowStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#F8D7DA"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create low stock style: %w", err)
	}

	if err := f.SetSheetRow(StockSheet, "A1", &stockHeaders); err != nil {
		return fmt.Errorf("write headers: %w", err)
	}
	last, _ := excelize.ColumnNumberToName(len(stockHeaders))
	if err := f.SetCellStyle(StockSheet, "A1", last+"1", headerStyle); err != nil {
		return fmt.Errorf("style headers: %w", err)
	}

	for i, it := range items {
		row := i + 2
		values := []any{
			it.ID, it.Name, it.Total, it.Rented, it.Available,
			it.LowStockAlert, yesNo(it.LowStock), it.MaxControllers, yesNo(it.ExtraControllerEnabled),
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(StockSheet, start, &values); err != nil {
			return fmt.Errorf("write row %d: %w", row, err)
		}
		if it.LowStock {
			end, _ := excelize.CoordinatesToCellName(len(stockHeaders), row)
			if err := f.SetCellStyle(StockSheet, start, end, lowStyle); err != nil {
				return fmt.Errorf("style row %d: %w", row, err)
			}
		}
	}

	footer, _ := excelize.CoordinatesToCellName(1, len(items)+2)
	note := []any{fmt.Sprintf("Source: %s", tier), generatedAt.UTC().Format(time.RFC3339)}
	if err := f.SetSheetRow(StockSheet, footer, &note); err != nil {
		return fmt.Errorf("write footer: %w", err)
	}

	if err := f.SetColWidth(StockSheet, "A", last, 15); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
