package expense

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Amounts holds a net/VAT/gross triple.
type Amounts struct {
	Net   decimal.Decimal `json:"net"`
	VAT   decimal.Decimal `json:"vat"`
	Gross decimal.Decimal `json:"gross"`
}

func (a Amounts) add(r Record) Amounts {
	return Amounts{
		Net:   a.Net.Add(r.NetAmount),
		VAT:   a.VAT.Add(r.VATAmount),
		Gross: a.Gross.Add(r.GrossAmount),
	}
}

func (a Amounts) plus(b Amounts) Amounts {
	return Amounts{Net: a.Net.Add(b.Net), VAT: a.VAT.Add(b.VAT), Gross: a.Gross.Add(b.Gross)}
}

// TypeTotal is the subtotal of one expense type.
type TypeTotal struct {
	Type  Type `json:"type"`
	Count int  `json:"count"`
	Amounts
}

// Summary aggregates expenses by type over an inclusive date range. An
// empty CarID means all vehicles of the company.
type Summary struct {
	CompanyID string      `json:"company_id"`
	CarID     string      `json:"car_id,omitempty"`
	CarName   string      `json:"car_name,omitempty"`
	From      time.Time   `json:"from"`
	To        time.Time   `json:"to"`
	Totals    Amounts     `json:"totals"`
	Count     int         `json:"count"`
	Breakdown []TypeTotal `json:"breakdown"`
}

// Summarize groups records by type. Totals are the sum of the subtotals and
// the breakdown is ordered by type identifier. Records are assumed to be
// already filtered.
func Summarize(companyID, carID string, from, to time.Time, records []Record) Summary {
	groups := make(map[Type]*TypeTotal)
	for _, r := range records {
		g, ok := groups[r.Type]
		if !ok {
			g = &TypeTotal{Type: r.Type, Amounts: zeroAmounts()}
			groups[r.Type] = g
		}
		g.Amounts = g.Amounts.add(r)
		g.Count++
	}

	breakdown := make([]TypeTotal, 0, len(groups))
	for _, g := range groups {
		breakdown = append(breakdown, *g)
	}
	slices.SortFunc(breakdown, func(a, b TypeTotal) int {
		switch {
		case a.Type < b.Type:
			return -1
		case a.Type > b.Type:
			return 1
		}
		return 0
	})

	totals := zeroAmounts()
	count := 0
	for _, g := range breakdown {
		totals = totals.plus(g.Amounts)
		count += g.Count
	}
	return Summary{
		CompanyID: companyID,
		CarID:     carID,
		From:      day(from),
		To:        day(to),
		Totals:    totals,
		Count:     count,
		Breakdown: breakdown,
	}
}

func zeroAmounts() Amounts {
	return Amounts{Net: decimal.Zero, VAT: decimal.Zero, Gross: decimal.Zero}
}
