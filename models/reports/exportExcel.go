package reports

import (
	"context"
	"fmt"
	"io"

	"bitbucket.org/mmdatafocus/livestock_backend/models"
	"github.com/xuri/excelize/v2"
)

// ExportFinancialsExcel writes the fiscal-year disbursement financials as a
// two-sheet workbook, one sheet per grouping.
func ExportFinancialsExcel(ctx context.Context, fiscalYear string, w io.Writer) error {
	financials, err := models.GetDisbursementFinancials(ctx, fiscalYear)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	statusSheet := "ByStatus"
	if err := f.SetSheetName("Sheet1", statusSheet); err != nil {
		return err
	}

	f.SetCellValue(statusSheet, "A1", "FiscalYear")
	f.SetCellValue(statusSheet, "B1", financials.FiscalYear)
	f.SetCellValue(statusSheet, "A2", "TotalAmount")
	f.SetCellValue(statusSheet, "B2", financials.TotalAmount.String())
	f.SetCellValue(statusSheet, "A3", "TotalCount")
	f.SetCellValue(statusSheet, "B3", financials.TotalCount)

	f.SetCellValue(statusSheet, "A5", "Status")
	f.SetCellValue(statusSheet, "B5", "Count")
	f.SetCellValue(statusSheet, "C5", "Total")
	for i, bucket := range financials.ByStatus {
		row := i + 6
		f.SetCellValue(statusSheet, "A"+fmt.Sprint(row), string(bucket.Status))
		f.SetCellValue(statusSheet, "B"+fmt.Sprint(row), bucket.Count)
		f.SetCellValue(statusSheet, "C"+fmt.Sprint(row), bucket.Total.String())
	}

	monthSheet := "ByMonth"
	if _, err := f.NewSheet(monthSheet); err != nil {
		return err
	}
	f.SetCellValue(monthSheet, "A1", "Month")
	f.SetCellValue(monthSheet, "B1", "Count")
	f.SetCellValue(monthSheet, "C1", "Total")
	for i, bucket := range financials.ByMonth {
		row := i + 2
		f.SetCellValue(monthSheet, "A"+fmt.Sprint(row), bucket.Month)
		f.SetCellValue(monthSheet, "B"+fmt.Sprint(row), bucket.Count)
		f.SetCellValue(monthSheet, "C"+fmt.Sprint(row), bucket.Total.String())
	}

	return f.Write(w)
}
