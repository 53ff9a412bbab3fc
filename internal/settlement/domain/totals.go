package settlement

import "github.com/shopspring/decimal"

// Totals aggregates amounts over many settlements.
type Totals struct {
	Count          int             `json:"count"`
	GrossAmount    decimal.Decimal `json:"gross_amount"`
	BTWAmount      decimal.Decimal `json:"btw_amount"`
	NetIncome      decimal.Decimal `json:"net_income"`
	RentDeduction  decimal.Decimal `json:"rent_deduction"`
	ExtraCosts     decimal.Decimal `json:"extra_costs"`
	NetPayout      decimal.Decimal `json:"net_payout"`
	Pending        int             `json:"pending"`
	Confirmed      int             `json:"confirmed"`
	NegativePayout int             `json:"negative_payout"`
}

// SumTotals adds up the amounts and status counts of settlements.
func SumTotals(settlements []Settlement) Totals {
	totals := Totals{
		GrossAmount:   decimal.Zero,
		BTWAmount:     decimal.Zero,
		NetIncome:     decimal.Zero,
		RentDeduction: decimal.Zero,
		ExtraCosts:    decimal.Zero,
		NetPayout:     decimal.Zero,
	}
	for i := range settlements {
		s := &settlements[i]
		totals.Count++
		totals.GrossAmount = totals.GrossAmount.Add(s.GrossAmount)
		totals.BTWAmount = totals.BTWAmount.Add(s.BTWAmount)
		totals.NetIncome = totals.NetIncome.Add(s.NetIncome)
		totals.RentDeduction = totals.RentDeduction.Add(s.RentDeduction)
		totals.ExtraCosts = totals.ExtraCosts.Add(s.ExtraCosts)
		totals.NetPayout = totals.NetPayout.Add(s.NetPayout)
		if s.IsConfirmed() {
			totals.Confirmed++
		} else {
			totals.Pending++
		}
		if s.IsNegativePayout() {
			totals.NegativePayout++
		}
	}
	return totals
}
