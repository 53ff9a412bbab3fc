// Package reporting shapes settlements and expense summaries for dashboards
// and exports. Amounts are rendered as fixed two-decimal strings; all sums
// come from the settlement and expense packages.
package reporting

import (
	"time"

	expense "fleet-settlement/internal/expense/domain"
	"fleet-settlement/internal/money"
	settlement "fleet-settlement/internal/settlement/domain"
)

// EarningLine is one earning on a settlement statement.
type EarningLine struct {
	ID            string    `json:"id"`
	Platform      string    `json:"platform"`
	IncomeDate    time.Time `json:"income_date"`
	GrossIncome   string    `json:"gross_income"`
	BTWPercentage string    `json:"btw_percentage"`
	BTWAmount     string    `json:"btw_amount"`
	NetIncome     string    `json:"net_income"`
}

// SettlementView is the presentation shape of a settlement.
type SettlementView struct {
	ID                string        `json:"id"`
	CompanyID         string        `json:"company_id"`
	ContractID        string        `json:"contract_id"`
	PeriodStart       time.Time     `json:"period_start"`
	PeriodEnd         time.Time     `json:"period_end"`
	Currency          string        `json:"currency"`
	GrossAmount       string        `json:"gross_amount"`
	BTWAmount         string        `json:"btw_amount"`
	NetIncome         string        `json:"net_income"`
	RentDeduction     string        `json:"rent_deduction"`
	ExtraCosts        string        `json:"extra_costs"`
	NetPayout         string        `json:"net_payout"`
	NegativePayout    bool          `json:"negative_payout"`
	Description       string        `json:"description,omitempty"`
	Status            string        `json:"status"`
	ConfirmedByDriver bool          `json:"confirmed_by_driver"`
	ConfirmedAt       *time.Time    `json:"confirmed_at,omitempty"`
	SnapshotHash      string        `json:"snapshot_hash,omitempty"`
	DisputeReason     string        `json:"dispute_reason,omitempty"`
	Version           int           `json:"version"`
	Earnings          []EarningLine `json:"earnings"`
}

// TotalsView is the presentation shape of settlement.Totals.
type TotalsView struct {
	Count          int    `json:"count"`
	Pending        int    `json:"pending"`
	Confirmed      int    `json:"confirmed"`
	NegativePayout int    `json:"negative_payout"`
	GrossAmount    string `json:"gross_amount"`
	BTWAmount      string `json:"btw_amount"`
	NetIncome      string `json:"net_income"`
	RentDeduction  string `json:"rent_deduction"`
	ExtraCosts     string `json:"extra_costs"`
	NetPayout      string `json:"net_payout"`
}

// SettlementReport lists settlements with their totals.
type SettlementReport struct {
	From        time.Time        `json:"from,omitempty"`
	To          time.Time        `json:"to,omitempty"`
	Currency    string           `json:"currency"`
	Settlements []SettlementView `json:"settlements"`
	Totals      TotalsView       `json:"totals"`
}

// AmountsView renders net/VAT/gross.
type AmountsView struct {
	Net   string `json:"net"`
	VAT   string `json:"vat"`
	Gross string `json:"gross"`
}

// ExpenseLine is one type in an expense report.
type ExpenseLine struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	Count int    `json:"count"`
	AmountsView
}

// ExpenseReport is the presentation shape of an expense summary.
type ExpenseReport struct {
	CompanyID string        `json:"company_id"`
	CarID     string        `json:"car_id,omitempty"`
	CarName   string        `json:"car_name"`
	From      time.Time     `json:"from"`
	To        time.Time     `json:"to"`
	Currency  string        `json:"currency"`
	Count     int           `json:"count"`
	Totals    AmountsView   `json:"totals"`
	Breakdown []ExpenseLine `json:"breakdown"`
}

// Dashboard combines the settlement and expense views of one period.
type Dashboard struct {
	CompanyID   string           `json:"company_id"`
	From        time.Time        `json:"from"`
	To          time.Time        `json:"to"`
	Settlements SettlementReport `json:"settlements"`
	Expenses    ExpenseReport    `json:"expenses"`
}

// AllVehicles names an expense report that spans every car.
const AllVehicles = "All vehicles"

// Formatter renders views in one currency.
type Formatter struct {
	Currency string
}

// SettlementView shapes one settlement.
func (f Formatter) SettlementView(s *settlement.Settlement) SettlementView {
	view := SettlementView{
		ID:                s.ID,
		CompanyID:         s.CompanyID,
		ContractID:        s.ContractID,
		PeriodStart:       s.PeriodStart,
		PeriodEnd:         s.PeriodEnd,
		Currency:          f.Currency,
		GrossAmount:       money.Format(s.GrossAmount),
		BTWAmount:         money.Format(s.BTWAmount),
		NetIncome:         money.Format(s.NetIncome),
		RentDeduction:     money.Format(s.RentDeduction),
		ExtraCosts:        money.Format(s.ExtraCosts),
		NetPayout:         money.Format(s.NetPayout),
		NegativePayout:    s.IsNegativePayout(),
		Description:       s.Description,
		Status:            string(s.Status),
		ConfirmedByDriver: s.ConfirmedByDriver,
		SnapshotHash:      s.SnapshotHash,
		DisputeReason:     s.DisputeReason,
		Version:           s.Version,
		Earnings:          make([]EarningLine, 0, len(s.Earnings)),
	}
	if !s.ConfirmedAt.IsZero() {
		at := s.ConfirmedAt
		view.ConfirmedAt = &at
	}
	for _, e := range s.Earnings {
		view.Earnings = append(view.Earnings, EarningLine{
			ID:            e.ID,
			Platform:      e.Platform.DisplayName(),
			IncomeDate:    e.IncomeDate,
			GrossIncome:   money.Format(e.GrossIncome),
			BTWPercentage: e.BTWPercentage.String(),
			BTWAmount:     money.Format(e.BTWAmount),
			NetIncome:     money.Format(e.NetIncome),
		})
	}
	return view
}

// SettlementReport shapes a list of settlements and their totals.
func (f Formatter) SettlementReport(from, to time.Time, settlements []settlement.Settlement) SettlementReport {
	report := SettlementReport{
		From:        from,
		To:          to,
		Currency:    f.Currency,
		Settlements: make([]SettlementView, 0, len(settlements)),
		Totals:      totalsView(settlement.SumTotals(settlements)),
	}
	for i := range settlements {
		report.Settlements = append(report.Settlements, f.SettlementView(&settlements[i]))
	}
	return report
}

// ExpenseReport shapes an expense summary.
func (f Formatter) ExpenseReport(summary expense.Summary) ExpenseReport {
	report := ExpenseReport{
		CompanyID: summary.CompanyID,
		CarID:     summary.CarID,
		CarName:   summary.CarName,
		From:      summary.From,
		To:        summary.To,
		Currency:  f.Currency,
		Count:     summary.Count,
		Totals:    amountsView(summary.Totals),
		Breakdown: make([]ExpenseLine, 0, len(summary.Breakdown)),
	}
	switch {
	case summary.CarID == "":
		report.CarName = AllVehicles
	case report.CarName == "":
		report.CarName = summary.CarID
	}
	for _, line := range summary.Breakdown {
		report.Breakdown = append(report.Breakdown, ExpenseLine{
			Type:        string(line.Type),
			Label:       line.Type.Label(),
			Count:       line.Count,
			AmountsView: amountsView(line.Amounts),
		})
	}
	return report
}

// Dashboard combines both reports.
func (f Formatter) Dashboard(companyID string, from, to time.Time, settlements []settlement.Settlement, summary expense.Summary) Dashboard {
	return Dashboard{
		CompanyID:   companyID,
		From:        from,
		To:          to,
		Settlements: f.SettlementReport(from, to, settlements),
		Expenses:    f.ExpenseReport(summary),
	}
}

func totalsView(t settlement.Totals) TotalsView {
	return TotalsView{
		Count:          t.Count,
		Pending:        t.Pending,
		Confirmed:      t.Confirmed,
		NegativePayout: t.NegativePayout,
		GrossAmount:    money.Format(t.GrossAmount),
		BTWAmount:      money.Format(t.BTWAmount),
		NetIncome:      money.Format(t.NetIncome),
		RentDeduction:  money.Format(t.RentDeduction),
		ExtraCosts:     money.Format(t.ExtraCosts),
		NetPayout:      money.Format(t.NetPayout),
	}
}

func amountsView(a expense.Amounts) AmountsView {
	return AmountsView{
		Net:   money.Format(a.Net),
		VAT:   money.Format(a.VAT),
		Gross: money.Format(a.Gross),
	}
}
