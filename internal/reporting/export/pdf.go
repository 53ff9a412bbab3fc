// Package export renders report views as PDF, XLSX and CSV documents.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"fleet-settlement/internal/reporting"
)

const dateLayout = "2006-01-02"

// SettlementPDF renders a tabular settlement statement.
func SettlementPDF(view reporting.SettlementView) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Driver Settlement")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	line := func(label, value string) {
		pdf.Cell(0, 6, fmt.Sprintf("%s: %s", label, value))
		pdf.Ln(5)
	}
	line("Settlement", view.ID)
	line("Contract", view.ContractID)
	line("Period", fmt.Sprintf("%s - %s", view.PeriodStart.Format(dateLayout), view.PeriodEnd.AddDate(0, 0, -1).Format(dateLayout)))
	line("Status", view.Status)
	if view.ConfirmedAt != nil {
		line("Confirmed", view.ConfirmedAt.Format(time.RFC3339))
		line("Snapshot", view.SnapshotHash)
	}
	if view.Description != "" {
		line("Description", view.Description)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(30, 6, "Date", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Platform", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Gross", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "BTW %", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "BTW", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Net", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, e := range view.Earnings {
		pdf.CellFormat(30, 6, e.IncomeDate.Format(dateLayout), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, e.Platform, "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 6, e.GrossIncome, "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, e.BTWPercentage, "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, e.BTWAmount, "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, e.NetIncome, "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	totals := [][2]string{
		{"Gross income", view.GrossAmount},
		{"BTW", view.BTWAmount},
		{"Net income", view.NetIncome},
		{"Rent deduction", view.RentDeduction},
		{"Extra costs", view.ExtraCosts},
		{"Net payout", view.NetPayout},
	}
	for _, row := range totals {
		pdf.CellFormat(60, 6, row[0], "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, fmt.Sprintf("%s %s", view.Currency, row[1]), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	return output(pdf)
}

// ExpensePDF renders an expense summary by type.
func ExpensePDF(report reporting.ExpenseReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Expense Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Vehicle: %s", report.CarName))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Period: %s - %s", report.From.Format(dateLayout), report.To.Format(dateLayout)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(50, 6, "Type", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Count", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Net", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "VAT", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Gross", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, line := range report.Breakdown {
		pdf.CellFormat(50, 6, line.Label, "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 6, fmt.Sprintf("%d", line.Count), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, line.Net, "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, line.VAT, "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, line.Gross, "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(50, 6, "Total ("+report.Currency+")", "1", 0, "L", false, 0, "")
	pdf.CellFormat(20, 6, fmt.Sprintf("%d", report.Count), "1", 0, "R", false, 0, "")
	pdf.CellFormat(35, 6, report.Totals.Net, "1", 0, "R", false, 0, "")
	pdf.CellFormat(35, 6, report.Totals.VAT, "1", 0, "R", false, 0, "")
	pdf.CellFormat(35, 6, report.Totals.Gross, "1", 0, "R", false, 0, "")
	pdf.Ln(-1)

	return output(pdf)
}

func output(pdf *gofpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
