// Package reports renders downloadable spreadsheets from a cache snapshot.
package reports

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/zenpa1/budget-tracker/internal/cache"
	"github.com/zenpa1/budget-tracker/internal/views"
)

const (
	AnomaliesSheet = "Anomalies"
	ExceededSheet  = "Exceeded Budgets"
	dateLayout     = "2006-01-02"
)

var (
	anomalyHeader  = []interface{}{"Event", "Team", "Allocated", "Exceeded By", "% Over", "Detected", "Status", "Reason"}
	exceededHeader = []interface{}{"Event", "Team", "Category", "Allocated", "Spent", "Overspend", "Utilization %"}
)

// AnomalyWorkbook builds a workbook with one row per anomaly and a summary
// of every exceeded budget.
func AnomalyWorkbook(s cache.Snapshot) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", AnomaliesSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(ExceededSheet); err != nil {
		return nil, fmt.Errorf("add sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E7FF"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	rows := make([][]interface{}, 0, len(s.Anomalies))
	for _, a := range s.Anomalies {
		reason := ""
		if a.Reason != nil {
			reason = *a.Reason
		}
		rows = append(rows, []interface{}{
			a.EventName,
			a.Team,
			a.AllocatedAmount.InexactFloat64(),
			a.ExceededAmount.InexactFloat64(),
			a.PercentageOver.InexactFloat64(),
			a.DetectedAt.Format(dateLayout),
			string(a.Status),
			reason,
		})
	}
	if err := writeSheet(f, AnomaliesSheet, header, anomalyHeader, rows); err != nil {
		return nil, err
	}

	exceeded := views.ExceededBudgets(s)
	rows = make([][]interface{}, 0, len(exceeded)+1)
	for _, b := range exceeded {
		rows = append(rows, []interface{}{
			b.EventName,
			b.Team,
			b.Category,
			b.AllocatedAmount.InexactFloat64(),
			b.SpentAmount.InexactFloat64(),
			b.Overspend().InexactFloat64(),
			b.UtilizationPercent().InexactFloat64(),
		})
	}
	rows = append(rows, []interface{}{"Total", "", "", "", "", views.TotalExceeded(s).InexactFloat64(), ""})
	if err := writeSheet(f, ExceededSheet, header, exceededHeader, rows); err != nil {
		return nil, err
	}

	f.SetActiveSheet(0)
	return f, nil
}

func writeSheet(f *excelize.File, sheet string, headerStyle int, header []interface{}, rows [][]interface{}) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("%s header: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("%s header style: %w", sheet, err)
	}

	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+2, err)
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", lastCol, 18)
}
