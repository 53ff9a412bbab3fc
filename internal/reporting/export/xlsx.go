package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"fleet-settlement/internal/reporting"
)

// SettlementXLSX renders a settlement with a summary and an earnings sheet.
func SettlementXLSX(view reporting.SettlementView) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "summary"
	earningsSheet := "earnings"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(earningsSheet); err != nil {
		return nil, err
	}

	rows := [][2]any{
		{"Settlement", view.ID},
		{"Contract", view.ContractID},
		{"Period start", view.PeriodStart.Format(dateLayout)},
		{"Period end", view.PeriodEnd.Format(dateLayout)},
		{"Status", view.Status},
		{"Currency", view.Currency},
		{"Gross income", view.GrossAmount},
		{"BTW", view.BTWAmount},
		{"Net income", view.NetIncome},
		{"Rent deduction", view.RentDeduction},
		{"Extra costs", view.ExtraCosts},
		{"Net payout", view.NetPayout},
		{"Snapshot", view.SnapshotHash},
	}
	_ = f.SetCellValue(summarySheet, "A1", "Driver Settlement")
	for i, row := range rows {
		r := i + 3
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", r), row[0])
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", r), row[1])
	}

	header := []string{"Date", "Platform", "Gross", "BTW %", "BTW", "Net"}
	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(earningsSheet, cell, h)
	}
	for i, e := range view.Earnings {
		r := i + 2
		_ = f.SetCellValue(earningsSheet, fmt.Sprintf("A%d", r), e.IncomeDate.Format(dateLayout))
		_ = f.SetCellValue(earningsSheet, fmt.Sprintf("B%d", r), e.Platform)
		_ = f.SetCellValue(earningsSheet, fmt.Sprintf("C%d", r), e.GrossIncome)
		_ = f.SetCellValue(earningsSheet, fmt.Sprintf("D%d", r), e.BTWPercentage)
		_ = f.SetCellValue(earningsSheet, fmt.Sprintf("E%d", r), e.BTWAmount)
		_ = f.SetCellValue(earningsSheet, fmt.Sprintf("F%d", r), e.NetIncome)
	}
	return write(f)
}

// ExpenseXLSX renders an expense report on one sheet.
func ExpenseXLSX(report reporting.ExpenseReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := "expenses"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(sheet, "A1", "Expense Report")
	_ = f.SetCellValue(sheet, "A2", "Vehicle")
	_ = f.SetCellValue(sheet, "B2", report.CarName)
	_ = f.SetCellValue(sheet, "A3", "From")
	_ = f.SetCellValue(sheet, "B3", report.From.Format(dateLayout))
	_ = f.SetCellValue(sheet, "A4", "To")
	_ = f.SetCellValue(sheet, "B4", report.To.Format(dateLayout))
	_ = f.SetCellValue(sheet, "A5", "Currency")
	_ = f.SetCellValue(sheet, "B5", report.Currency)

	header := []string{"Type", "Count", "Net", "VAT", "Gross"}
	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 7)
		_ = f.SetCellValue(sheet, cell, h)
	}
	r := 8
	for _, line := range report.Breakdown {
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", r), line.Label)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", r), line.Count)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", r), line.Net)
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", r), line.VAT)
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", r), line.Gross)
		r++
	}
	_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", r), "Total")
	_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", r), report.Count)
	_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", r), report.Totals.Net)
	_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", r), report.Totals.VAT)
	_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", r), report.Totals.Gross)
	return write(f)
}

func write(f *excelize.File) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
