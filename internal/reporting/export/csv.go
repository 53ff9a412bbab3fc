package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"fleet-settlement/internal/reporting"
)

var settlementHeader = []string{
	"settlement_id",
	"company_id",
	"contract_id",
	"period_start",
	"period_end",
	"currency",
	"gross_amount",
	"btw_amount",
	"net_income",
	"rent_deduction",
	"extra_costs",
	"net_payout",
	"status",
	"confirmed_at",
	"version",
}

// SettlementsCSV writes one row per settlement.
func SettlementsCSV(w io.Writer, report reporting.SettlementReport) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(settlementHeader); err != nil {
		return err
	}
	for _, s := range report.Settlements {
		confirmedAt := ""
		if s.ConfirmedAt != nil {
			confirmedAt = s.ConfirmedAt.UTC().Format(time.RFC3339)
		}
		if err := writer.Write([]string{
			s.ID,
			s.CompanyID,
			s.ContractID,
			s.PeriodStart.UTC().Format(time.RFC3339),
			s.PeriodEnd.UTC().Format(time.RFC3339),
			s.Currency,
			s.GrossAmount,
			s.BTWAmount,
			s.NetIncome,
			s.RentDeduction,
			s.ExtraCosts,
			s.NetPayout,
			s.Status,
			confirmedAt,
			strconv.Itoa(s.Version),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
